package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"invoice-ai-extraction/internal/domain"
	"invoice-ai-extraction/internal/domain/model"
	"invoice-ai-extraction/internal/domain/ports/adapter"
	"invoice-ai-extraction/internal/domain/ports/repository"
	"invoice-ai-extraction/internal/extraction"
	"invoice-ai-extraction/internal/infra/logging"
	"invoice-ai-extraction/internal/infra/metrics"
	"invoice-ai-extraction/internal/infra/worker"
)

// Upload is one file received in an ingest request.
type Upload struct {
	Name string
	Data []byte
}

// DocumentPayload pairs a persisted document record with its raw bytes for
// the duration of the processing run.
type DocumentPayload struct {
	DocID string
	Name  string
	Data  []byte
}

// CandidateExtractor produces raw candidates from one document's text.
type CandidateExtractor interface {
	ExtractCandidates(ctx context.Context, text string, totalPages int) ([]model.Candidate, error)
}

var _ CandidateExtractor = (*extraction.Extractor)(nil)

// DictionarySource yields the current synonym table for a job's snapshot.
type DictionarySource interface {
	Snapshot(ctx context.Context) ([]*model.Synonym, error)
}

// IngestUseCase owns the job lifecycle: it accepts a batch of documents,
// persists the job, and drives the queued -> running -> done|error state
// machine. All writes to one job go through its controller goroutine, so job
// updates need no locking.
type IngestUseCase struct {
	jobs    repository.JobRepository
	docs    repository.DocumentRepository
	tm      repository.TransactionManager
	text    adapter.TextExtractor
	extract CandidateExtractor
	dict    DictionarySource
	pub     *ResultPublisher
	pool    *worker.Pool

	abortOnFailure bool
	log            *zerolog.Logger
}

func NewIngestUseCase(
	jobs repository.JobRepository,
	docs repository.DocumentRepository,
	tm repository.TransactionManager,
	text adapter.TextExtractor,
	extract CandidateExtractor,
	dict DictionarySource,
	pub *ResultPublisher,
	pool *worker.Pool,
	abortOnFailure bool,
	log *zerolog.Logger,
) *IngestUseCase {
	return &IngestUseCase{
		jobs:           jobs,
		docs:           docs,
		tm:             tm,
		text:           text,
		extract:        extract,
		dict:           dict,
		pub:            pub,
		pool:           pool,
		abortOnFailure: abortOnFailure,
		log:            log,
	}
}

// CreateJob validates the batch, persists the job and its documents in one
// transaction, and hands the batch to a background controller. The returned
// job is in status queued; everything after that is observable through
// Status and the result stream.
func (uc *IngestUseCase) CreateJob(ctx context.Context, uploads []Upload) (*model.Job, error) {
	if len(uploads) == 0 {
		return nil, fmt.Errorf("%w: request contains no documents", domain.ErrInvalidArgument)
	}
	for _, u := range uploads {
		if u.Name == "" {
			return nil, fmt.Errorf("%w: document without a filename", domain.ErrInvalidArgument)
		}
		if len(u.Data) == 0 {
			return nil, fmt.Errorf("%w: document %q is empty", domain.ErrInvalidArgument, u.Name)
		}
	}

	job := model.NewJob(uuid.NewString())
	job.Message = "Job queued"

	payloads := make([]DocumentPayload, 0, len(uploads))
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := uc.jobs.Save(ctx, tx, job); err != nil {
			return err
		}
		for _, u := range uploads {
			doc := &model.Document{
				ID:        uuid.NewString(),
				JobID:     job.ID,
				Name:      u.Name,
				FilePath:  fmt.Sprintf("/uploads/%s/%s", job.ID, u.Name),
				FileSize:  int64(len(u.Data)),
				Status:    model.DocumentStatusUploaded,
				CreatedAt: time.Now(),
			}
			if err := uc.docs.Save(ctx, tx, doc); err != nil {
				return err
			}
			payloads = append(payloads, DocumentPayload{DocID: doc.ID, Name: u.Name, Data: u.Data})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}

	// The controller outlives the HTTP request.
	go uc.Run(logging.WithJobID(context.Background(), job.ID), job.ID, payloads)
	return job, nil
}

// Run processes one job's batch to a terminal state. Calling it for a job
// already in a terminal state is a no-op. Exported so the controller can be
// driven synchronously.
func (uc *IngestUseCase) Run(ctx context.Context, jobID string, payloads []DocumentPayload) {
	log := logging.With(ctx, uc.log)
	defer logging.TraceDuration(log, "IngestUseCase.Run")()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("job processing panicked")
			uc.failByID(ctx, jobID, fmt.Sprintf("%v", r))
		}
	}()

	job, err := uc.jobs.FindByID(ctx, nil, jobID)
	if err != nil {
		log.Error().Err(err).Msg("cannot load job")
		return
	}
	if job.Terminal() {
		log.Debug().Str("status", string(job.Status)).Msg("job already terminal, nothing to do")
		return
	}

	uc.advance(ctx, job, model.JobStatusRunning, 10, fmt.Sprintf("Processing %d documents...", len(payloads)))
	uc.advance(ctx, job, model.JobStatusRunning, 30, "Extracting text from PDFs...")

	// One dictionary snapshot per job; synonym edits during the run do not
	// affect it. A cache/DB outage degrades to pass-through terms.
	synonyms, err := uc.dict.Snapshot(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("synonym snapshot unavailable, terms pass through unmapped")
		synonyms = nil
	}
	dict := extraction.NewDictionary(synonyms)

	outcomes := make([]docOutcome, len(payloads))
	var wg sync.WaitGroup
	for i, p := range payloads {
		i, p := i, p
		wg.Add(1)
		err := uc.pool.Submit(ctx, func(taskCtx context.Context) error {
			defer wg.Done()
			outcomes[i] = uc.processDocument(taskCtx, p)
			return nil
		})
		if err != nil {
			outcomes[i] = docOutcome{payload: p, err: err}
			wg.Done()
		}
	}
	wg.Wait()

	uc.advance(ctx, job, model.JobStatusRunning, 60, "Normalizing extracted data...")

	var failed int
	var firstErr error
	for _, out := range outcomes {
		if out.err == nil {
			out.err = uc.finalizeDocument(ctx, dict, jobID, out)
		}
		if out.err != nil {
			failed++
			if firstErr == nil {
				firstErr = out.err
			}
			uc.markDocument(ctx, out.payload.DocID, model.DocumentStatusFailed)
			log.Warn().Str("doc", out.payload.Name).Err(out.err).Msg("document failed")
			if uc.abortOnFailure {
				uc.fail(ctx, job, out.err.Error())
				return
			}
			continue
		}
		uc.markDocument(ctx, out.payload.DocID, model.DocumentStatusProcessed)
	}

	if failed == len(payloads) {
		cause := "all documents failed"
		if firstErr != nil {
			cause = firstErr.Error()
		}
		uc.fail(ctx, job, cause)
		return
	}

	uc.advance(ctx, job, model.JobStatusRunning, 90, "Finalizing results...")

	total, err := uc.pub.Count(ctx, jobID)
	if err != nil {
		log.Warn().Err(err).Msg("cannot count published results")
	}
	job.DocumentsProcessed = len(payloads)
	job.TotalRecords = total
	uc.advance(ctx, job, model.JobStatusDone, 100, "Processing completed successfully")
	metrics.IncJob("done")
	log.Info().Int("documents", len(payloads)).Int("failed", failed).Int("records", total).Msg("job completed")
}

type docOutcome struct {
	payload    DocumentPayload
	candidates []model.Candidate
	err        error
}

func (uc *IngestUseCase) processDocument(ctx context.Context, p DocumentPayload) docOutcome {
	ctx = logging.WithDocID(ctx, p.DocID)
	log := logging.With(ctx, uc.log)

	text, pages, err := uc.text.ExtractText(p.Data)
	if err != nil {
		return docOutcome{payload: p, err: err}
	}
	log.Debug().Int("pages", pages).Int("text_len", len(text)).Msg("text extracted")

	candidates, err := uc.extract.ExtractCandidates(ctx, text, pages)
	if err != nil {
		return docOutcome{payload: p, err: err}
	}
	return docOutcome{payload: p, candidates: candidates}
}

// finalizeDocument canonicalizes one document's candidates and publishes them
// as a single atomic batch.
func (uc *IngestUseCase) finalizeDocument(ctx context.Context, dict extraction.Dictionary, jobID string, out docOutcome) error {
	rows := make([]*model.Result, 0, len(out.candidates))
	for _, c := range out.candidates {
		rows = append(rows, extraction.Canonicalize(c, dict, jobID, out.payload.DocID, out.payload.Name))
	}
	return uc.pub.PublishBatch(ctx, jobID, rows)
}

func (uc *IngestUseCase) markDocument(ctx context.Context, docID string, status model.DocumentStatus) {
	if err := uc.docs.UpdateStatus(ctx, nil, docID, status); err != nil {
		logging.With(ctx, uc.log).Warn().Str("doc_id", docID).Err(err).Msg("cannot update document status")
	}
	metrics.IncDocument(string(status))
}

// advance moves the job forward one checkpoint. Progress never decreases and
// only legal status transitions are applied.
func (uc *IngestUseCase) advance(ctx context.Context, job *model.Job, status model.JobStatus, progress int, message string) {
	if status != job.Status {
		if !job.CanTransition(status) {
			logging.With(ctx, uc.log).Warn().
				Str("from", string(job.Status)).Str("to", string(status)).
				Msg("illegal job transition skipped")
			return
		}
		job.Status = status
	}
	if progress > job.Progress {
		job.Progress = progress
	}
	job.Message = message
	if err := uc.jobs.Save(ctx, nil, job); err != nil {
		logging.With(ctx, uc.log).Warn().Err(err).Msg("checkpoint save failed")
	}
}

func (uc *IngestUseCase) fail(ctx context.Context, job *model.Job, cause string) {
	if job.CanTransition(model.JobStatusError) {
		job.Status = model.JobStatusError
		job.Message = "Processing failed: " + cause
		if err := uc.jobs.Save(ctx, nil, job); err != nil {
			logging.With(ctx, uc.log).Error().Err(err).Msg("cannot persist job failure")
		}
	}
	metrics.IncJob("error")
}

func (uc *IngestUseCase) failByID(ctx context.Context, jobID, cause string) {
	job, err := uc.jobs.FindByID(ctx, nil, jobID)
	if err != nil {
		logging.With(ctx, uc.log).Error().Err(err).Msg("cannot load job for failure marking")
		return
	}
	if !job.Terminal() {
		uc.fail(ctx, job, cause)
	}
}

// Status returns the job record, or domain.ErrNotFound for an unknown id.
func (uc *IngestUseCase) Status(ctx context.Context, jobID string) (*model.Job, error) {
	return uc.jobs.FindByID(ctx, nil, jobID)
}

// ListRecent returns the newest jobs first.
func (uc *IngestUseCase) ListRecent(ctx context.Context, limit int) ([]*model.Job, error) {
	return uc.jobs.ListRecent(ctx, nil, limit)
}
