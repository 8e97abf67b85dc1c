package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"invoice-ai-extraction/internal/domain"
	"invoice-ai-extraction/internal/domain/model"
)

func newQueryFixture(ai *fakeAI, results *fakeResultRepo, history *fakeChatRepo) *QueryUseCase {
	return NewQueryUseCase(results, history, ai, "gpt-4o-mini", 6, 5*time.Second, nopLogger())
}

func seedResults(repo *fakeResultRepo, jobID string) {
	repo.rows = append(repo.rows, &model.Result{
		ID: "01H1", JobID: jobID, DocID: "d1", DocName: "invoice.pdf",
		Page: 2, OriginalTerm: "vat", Canonical: "Value Added Tax",
		Value: "150.00", Confidence: 95, Evidence: "VAT: 150.00",
	})
}

func TestQuery_Answer_EmptyJobReturnsFixedMessage(t *testing.T) {
	ai := &fakeAI{reply: "should not be called"}
	history := &fakeChatRepo{}
	uc := newQueryFixture(ai, &fakeResultRepo{}, history)

	answer, err := uc.Answer(context.Background(), "job-1", "What is the total?", nil)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if answer != EmptyDataMessage {
		t.Errorf("expected fixed empty-data message, got %q", answer)
	}
	if ai.calls != 0 {
		t.Errorf("no model call expected for an empty job, saw %d", ai.calls)
	}
	if len(history.exchanges) != 1 {
		t.Errorf("expected the exchange recorded, got %d", len(history.exchanges))
	}
}

func TestQuery_Answer_GroundsPromptOnResults(t *testing.T) {
	ai := &fakeAI{reply: "The VAT total is 150.00."}
	results := &fakeResultRepo{}
	seedResults(results, "job-1")
	history := &fakeChatRepo{}
	uc := newQueryFixture(ai, results, history)

	answer, err := uc.Answer(context.Background(), "job-1", "What is the VAT?", nil)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if answer != "The VAT total is 150.00." {
		t.Errorf("unexpected answer: %q", answer)
	}

	if len(ai.lastIn) != 2 {
		t.Fatalf("expected system+user messages, got %d", len(ai.lastIn))
	}
	prompt := ai.lastIn[1].Content
	for _, want := range []string{"Value Added Tax", "150.00", "invoice.pdf", "What is the VAT?"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}

	if len(history.exchanges) != 1 || history.exchanges[0].Answer != answer {
		t.Error("expected exchange persisted with the returned answer")
	}
}

func TestQuery_Answer_BoundsConversationHistory(t *testing.T) {
	ai := &fakeAI{reply: "ok"}
	results := &fakeResultRepo{}
	seedResults(results, "job-1")
	history := &fakeChatRepo{}
	for i := 0; i < 8; i++ {
		history.exchanges = append(history.exchanges, &model.ChatExchange{
			JobID:    "job-1",
			Question: fmt.Sprintf("question-%d", i),
			Answer:   "a",
		})
	}
	uc := newQueryFixture(ai, results, history)

	if _, err := uc.Answer(context.Background(), "job-1", "latest?", nil); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	prompt := ai.lastIn[1].Content
	if strings.Contains(prompt, "question-0") || strings.Contains(prompt, "question-1") {
		t.Error("prompt includes turns beyond the history window")
	}
	if !strings.Contains(prompt, "question-7") {
		t.Error("prompt missing the most recent turn")
	}
}

func TestQuery_Answer_UsesSuppliedHistory(t *testing.T) {
	ai := &fakeAI{reply: "ok"}
	results := &fakeResultRepo{}
	seedResults(results, "job-1")
	history := &fakeChatRepo{exchanges: []*model.ChatExchange{
		{JobID: "job-1", Question: "persisted-question", Answer: "persisted-answer"},
	}}
	uc := newQueryFixture(ai, results, history)

	turns := []ChatTurn{
		{Role: "user", Content: "what did invoice.pdf charge?"},
		{Role: "assistant", Content: "VAT of 150.00"},
	}
	if _, err := uc.Answer(context.Background(), "job-1", "and the total?", turns); err != nil {
		t.Fatalf("Answer: %v", err)
	}

	prompt := ai.lastIn[1].Content
	if !strings.Contains(prompt, "User: what did invoice.pdf charge?") {
		t.Error("prompt missing the supplied user turn")
	}
	if !strings.Contains(prompt, "Assistant: VAT of 150.00") {
		t.Error("prompt missing the supplied assistant turn")
	}
	if strings.Contains(prompt, "persisted-question") {
		t.Error("supplied history must replace the persisted tail, not mix with it")
	}
}

func TestQuery_Answer_BoundsSuppliedHistory(t *testing.T) {
	ai := &fakeAI{reply: "ok"}
	results := &fakeResultRepo{}
	seedResults(results, "job-1")
	uc := newQueryFixture(ai, results, &fakeChatRepo{})

	var turns []ChatTurn
	for i := 0; i < 20; i++ {
		turns = append(turns, ChatTurn{Role: "user", Content: fmt.Sprintf("turn-%d", i)})
	}
	if _, err := uc.Answer(context.Background(), "job-1", "latest?", turns); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	prompt := ai.lastIn[1].Content
	if strings.Contains(prompt, "turn-0") {
		t.Error("prompt includes turns beyond the history window")
	}
	if !strings.Contains(prompt, "turn-19") {
		t.Error("prompt missing the most recent turn")
	}
}

func TestQuery_Answer_ModelFailure(t *testing.T) {
	ai := &fakeAI{err: errBoom}
	results := &fakeResultRepo{}
	seedResults(results, "job-1")
	uc := newQueryFixture(ai, results, &fakeChatRepo{})

	_, err := uc.Answer(context.Background(), "job-1", "total?", nil)
	if !errors.Is(err, domain.ErrExtractionService) {
		t.Errorf("expected ErrExtractionService, got %v", err)
	}
}

func TestQuery_Answer_HistoryWriteFailureIsBestEffort(t *testing.T) {
	ai := &fakeAI{reply: "fine"}
	results := &fakeResultRepo{}
	seedResults(results, "job-1")
	uc := newQueryFixture(ai, results, &fakeChatRepo{saveErr: errBoom})

	answer, err := uc.Answer(context.Background(), "job-1", "total?", nil)
	if err != nil {
		t.Fatalf("history write failure must not fail the answer: %v", err)
	}
	if answer != "fine" {
		t.Errorf("unexpected answer: %q", answer)
	}
}

func TestQuery_Answer_ValidatesInput(t *testing.T) {
	uc := newQueryFixture(&fakeAI{}, &fakeResultRepo{}, &fakeChatRepo{})

	if _, err := uc.Answer(context.Background(), "", "q", nil); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for missing job id, got %v", err)
	}
	if _, err := uc.Answer(context.Background(), "job-1", "   ", nil); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for blank question, got %v", err)
	}
}
