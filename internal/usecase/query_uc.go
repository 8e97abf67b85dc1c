package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"invoice-ai-extraction/internal/domain"
	"invoice-ai-extraction/internal/domain/model"
	"invoice-ai-extraction/internal/domain/ports/adapter"
	"invoice-ai-extraction/internal/domain/ports/repository"
	"invoice-ai-extraction/internal/extraction"
	"invoice-ai-extraction/internal/infra/logging"
	"invoice-ai-extraction/internal/infra/metrics"
)

// EmptyDataMessage is returned verbatim when a job has no published results
// yet. No model call is made in that case.
const EmptyDataMessage = "I don't have any financial data to query yet. Please wait for the document processing to complete."

// QueryUseCase answers free-text questions grounded strictly on a job's
// extracted results.
type QueryUseCase struct {
	results repository.ResultRepository
	history repository.ChatHistoryRepository
	ai      adapter.AIServiceAdapter

	model        string
	historyTurns int
	timeout      time.Duration
	log          *zerolog.Logger
}

func NewQueryUseCase(
	results repository.ResultRepository,
	history repository.ChatHistoryRepository,
	ai adapter.AIServiceAdapter,
	model string,
	historyTurns int,
	timeout time.Duration,
	log *zerolog.Logger,
) *QueryUseCase {
	if historyTurns <= 0 {
		historyTurns = 6
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &QueryUseCase{
		results:      results,
		history:      history,
		ai:           ai,
		model:        model,
		historyTurns: historyTurns,
		timeout:      timeout,
		log:          log,
	}
}

// ChatTurn is one prior message of the client-held conversation, as sent
// with the chat request.
type ChatTurn struct {
	Role    string
	Content string
}

type dataPoint struct {
	DocName    string `json:"docName"`
	Page       int    `json:"page"`
	Term       string `json:"term"`
	Canonical  string `json:"canonical"`
	Value      string `json:"value"`
	Confidence int    `json:"confidence"`
	Evidence   string `json:"evidence"`
}

// Answer responds to one question about the job's data. The caller's
// conversation history grounds the prompt when supplied; otherwise the
// persisted history is used. The exchange is persisted best-effort; a
// history write failure never fails the answer.
func (uc *QueryUseCase) Answer(ctx context.Context, jobID, question string, history []ChatTurn) (string, error) {
	question = strings.TrimSpace(question)
	if jobID == "" || question == "" {
		return "", fmt.Errorf("%w: jobId and question are required", domain.ErrInvalidArgument)
	}
	ctx = logging.WithJobID(ctx, jobID)

	rows, err := uc.results.ListByJob(ctx, nil, jobID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	if len(rows) == 0 {
		uc.saveExchange(ctx, jobID, question, EmptyDataMessage)
		return EmptyDataMessage, nil
	}

	points := make([]dataPoint, 0, len(rows))
	for _, r := range rows {
		points = append(points, dataPoint{
			DocName:    r.DocName,
			Page:       r.Page,
			Term:       r.OriginalTerm,
			Canonical:  r.Canonical,
			Value:      r.Value,
			Confidence: r.Confidence,
			Evidence:   r.Evidence,
		})
	}
	dataContext, err := json.Marshal(points)
	if err != nil {
		return "", fmt.Errorf("marshal data context: %w", err)
	}

	msgs := []adapter.Message{
		{Role: "system", Content: extraction.AnswerSystemPrompt},
		{Role: "user", Content: extraction.BuildAnswerPrompt(string(dataContext), uc.conversationContext(ctx, jobID, history), question)},
	}

	callCtx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	start := time.Now()
	answer, err := uc.ai.Chat(callCtx, uc.model, msgs, adapter.ChatOptions{Temperature: 0.3, MaxTokens: 500})
	metrics.ObserveAICall("chat", uc.model, time.Since(start), err == nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrExtractionService, err)
	}

	uc.saveExchange(ctx, jobID, question, answer)
	return answer, nil
}

// conversationContext renders the prior conversation for prompt grounding.
// A request-supplied history wins; the persisted tail is the fallback.
func (uc *QueryUseCase) conversationContext(ctx context.Context, jobID string, history []ChatTurn) string {
	if len(history) == 0 {
		return uc.conversationTail(ctx, jobID)
	}
	// One turn is a question/answer pair, so the message bound is doubled.
	if max := uc.historyTurns * 2; len(history) > max {
		history = history[len(history)-max:]
	}
	var b strings.Builder
	for _, turn := range history {
		who := "Assistant"
		if strings.EqualFold(turn.Role, "user") {
			who = "User"
		}
		fmt.Fprintf(&b, "%s: %s\n", who, turn.Content)
	}
	return b.String()
}

// conversationTail renders the last few persisted exchanges. History read
// failures degrade to an empty conversation.
func (uc *QueryUseCase) conversationTail(ctx context.Context, jobID string) string {
	exchanges, err := uc.history.ListByJob(ctx, nil, jobID)
	if err != nil {
		logging.With(ctx, uc.log).Warn().Err(err).Msg("chat history unavailable")
		return "(none)"
	}
	if len(exchanges) > uc.historyTurns {
		exchanges = exchanges[len(exchanges)-uc.historyTurns:]
	}
	if len(exchanges) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for _, ex := range exchanges {
		fmt.Fprintf(&b, "User: %s\nAssistant: %s\n", ex.Question, ex.Answer)
	}
	return b.String()
}

func (uc *QueryUseCase) saveExchange(ctx context.Context, jobID, question, answer string) {
	ex := &model.ChatExchange{
		JobID:     jobID,
		Question:  question,
		Answer:    answer,
		CreatedAt: time.Now(),
	}
	if err := uc.history.Save(ctx, nil, ex); err != nil {
		logging.With(ctx, uc.log).Warn().Err(err).Msg("chat exchange not persisted")
	}
}

// History returns the job's stored exchanges in chronological order.
func (uc *QueryUseCase) History(ctx context.Context, jobID string) ([]*model.ChatExchange, error) {
	exchanges, err := uc.history.ListByJob(ctx, nil, jobID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	return exchanges, nil
}
