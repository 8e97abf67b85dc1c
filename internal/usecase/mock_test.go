package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"invoice-ai-extraction/internal/domain"
	"invoice-ai-extraction/internal/domain/model"
	"invoice-ai-extraction/internal/domain/ports/adapter"
	"invoice-ai-extraction/internal/domain/ports/repository"
)

// In-memory fakes shared by the use case tests. All of them are safe for
// concurrent use because document workers run in parallel.

type fakeTxManager struct{}

func (f *fakeTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, nil)
}

type fakeJobRepo struct {
	mu   sync.Mutex
	jobs map[string]model.Job

	saveErr error
	// every progress value written, in order
	progressTrail []int
	statusTrail   []model.JobStatus
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: make(map[string]model.Job)}
}

func (f *fakeJobRepo) Save(_ context.Context, _ repository.Tx, job *model.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.jobs[job.ID] = *job
	f.progressTrail = append(f.progressTrail, job.Progress)
	f.statusTrail = append(f.statusTrail, job.Status)
	return nil
}

func (f *fakeJobRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := j
	return &cp, nil
}

func (f *fakeJobRepo) ListRecent(_ context.Context, _ repository.Tx, limit int) ([]*model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Job
	for _, j := range f.jobs {
		cp := j
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeDocRepo struct {
	mu   sync.Mutex
	docs map[string]model.Document
}

func newFakeDocRepo() *fakeDocRepo {
	return &fakeDocRepo{docs: make(map[string]model.Document)}
}

func (f *fakeDocRepo) Save(_ context.Context, _ repository.Tx, doc *model.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[doc.ID] = *doc
	return nil
}

func (f *fakeDocRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := d
	return &cp, nil
}

func (f *fakeDocRepo) ListByJob(_ context.Context, _ repository.Tx, jobID string) ([]*model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Document
	for _, d := range f.docs {
		if d.JobID == jobID {
			cp := d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.Before(out[k].CreatedAt) })
	return out, nil
}

func (f *fakeDocRepo) UpdateStatus(_ context.Context, _ repository.Tx, id string, status model.DocumentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return domain.ErrNotFound
	}
	d.Status = status
	f.docs[id] = d
	return nil
}

func (f *fakeDocRepo) status(id string) model.DocumentStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docs[id].Status
}

type fakeResultRepo struct {
	mu      sync.Mutex
	rows    []*model.Result
	saveErr error
}

func (f *fakeResultRepo) SaveBatch(_ context.Context, _ repository.Tx, results []*model.Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.rows = append(f.rows, results...)
	return nil
}

func (f *fakeResultRepo) ListByJob(_ context.Context, _ repository.Tx, jobID string) ([]*model.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Result
	for _, r := range f.rows {
		if r.JobID == jobID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeResultRepo) CountByJob(_ context.Context, _ repository.Tx, jobID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.rows {
		if r.JobID == jobID {
			n++
		}
	}
	return n, nil
}

type fakeChatRepo struct {
	mu        sync.Mutex
	exchanges []*model.ChatExchange
	saveErr   error
}

func (f *fakeChatRepo) Save(_ context.Context, _ repository.Tx, ex *model.ChatExchange) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.exchanges = append(f.exchanges, ex)
	return nil
}

func (f *fakeChatRepo) ListByJob(_ context.Context, _ repository.Tx, jobID string) ([]*model.ChatExchange, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.ChatExchange
	for _, ex := range f.exchanges {
		if ex.JobID == jobID {
			out = append(out, ex)
		}
	}
	return out, nil
}

type fakeSynonymRepo struct {
	mu       sync.Mutex
	synonyms map[string]*model.Synonym // keyed by term
	listErr  error
}

func newFakeSynonymRepo() *fakeSynonymRepo {
	return &fakeSynonymRepo{synonyms: make(map[string]*model.Synonym)}
}

func (f *fakeSynonymRepo) Save(_ context.Context, _ repository.Tx, s *model.Synonym) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s.ID == "" {
		s.ID = "syn-" + s.Term
	}
	f.synonyms[s.Term] = s
	return nil
}

func (f *fakeSynonymRepo) Delete(_ context.Context, _ repository.Tx, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for term, s := range f.synonyms {
		if s.ID == id {
			delete(f.synonyms, term)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakeSynonymRepo) ListAll(_ context.Context, _ repository.Tx) ([]*model.Synonym, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*model.Synonym
	for _, s := range f.synonyms {
		out = append(out, s)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Term < out[k].Term })
	return out, nil
}

// fakeText maps payload content to extraction outcomes.
type fakeText struct {
	texts map[string]string // payload -> text
	pages int
	errs  map[string]error // payload -> error
}

func (f *fakeText) ExtractText(data []byte) (string, int, error) {
	if err, ok := f.errs[string(data)]; ok {
		return "", 0, err
	}
	text, ok := f.texts[string(data)]
	if !ok {
		return "", 0, domain.ErrUnreadableDocument
	}
	pages := f.pages
	if pages == 0 {
		pages = 1
	}
	return text, pages, nil
}

// fakeCandidates returns canned candidates per document text.
type fakeCandidates struct {
	mu         sync.Mutex
	candidates map[string][]model.Candidate // text -> candidates
	errs       map[string]error
	calls      int
}

func (f *fakeCandidates) ExtractCandidates(_ context.Context, text string, _ int) ([]model.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err, ok := f.errs[text]; ok {
		return nil, err
	}
	return f.candidates[text], nil
}

type fakeDictSource struct {
	synonyms []*model.Synonym
	err      error
}

func (f *fakeDictSource) Snapshot(context.Context) ([]*model.Synonym, error) {
	return f.synonyms, f.err
}

// fakeAI records calls and replies with a fixed answer.
type fakeAI struct {
	mu     sync.Mutex
	reply  string
	err    error
	calls  int
	lastIn []adapter.Message
}

func (f *fakeAI) Chat(_ context.Context, _ string, messages []adapter.Message, _ adapter.ChatOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastIn = messages
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeAI) CountTokens(_ context.Context, _ string, messages []adapter.Message) (int, error) {
	n := 0
	for _, m := range messages {
		n += len(m.Content) / 4
	}
	return n, nil
}

type fakeDictCache struct {
	mu          sync.Mutex
	stored      []*model.Synonym
	warm        bool
	invalidated int
}

func (f *fakeDictCache) Get(context.Context) ([]*model.Synonym, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.warm {
		return nil, false
	}
	return f.stored, true
}

func (f *fakeDictCache) Store(_ context.Context, synonyms []*model.Synonym) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored = synonyms
	f.warm = true
	return nil
}

func (f *fakeDictCache) Invalidate(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.warm = false
	f.invalidated++
	return nil
}

var errBoom = errors.New("boom")

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}
