package extraction

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"invoice-ai-extraction/internal/domain"
	"invoice-ai-extraction/internal/domain/model"
	"invoice-ai-extraction/internal/domain/ports/adapter"
	"invoice-ai-extraction/internal/infra/metrics"
)

// Extractor runs the AI-assisted structured-extraction step for one
// document's text. The model call is bounded by a timeout; malformed content
// in a successful call degrades to zero candidates.
type Extractor struct {
	ai          adapter.AIServiceAdapter
	model       string
	timeout     time.Duration
	tokenBudget int
	log         *zerolog.Logger
}

func NewExtractor(ai adapter.AIServiceAdapter, model string, timeout time.Duration, tokenBudget int, log *zerolog.Logger) *Extractor {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Extractor{ai: ai, model: model, timeout: timeout, tokenBudget: tokenBudget, log: log}
}

// ExtractCandidates sends the document text to the model and parses the
// response leniently. Returns domain.ErrExtractionService only when the call
// itself fails (network/auth/timeout).
func (e *Extractor) ExtractCandidates(ctx context.Context, text string, totalPages int) ([]model.Candidate, error) {
	text = e.capToBudget(ctx, text)

	msgs := []adapter.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: BuildExtractionPrompt(text, totalPages)},
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	reply, err := e.ai.Chat(callCtx, e.model, msgs, adapter.ChatOptions{Temperature: 0.1, MaxTokens: 2000})
	metrics.ObserveAICall("extract", e.model, time.Since(start), err == nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExtractionService, err)
	}

	candidates := ParseCandidates([]byte(reply), totalPages)
	if len(candidates) == 0 {
		// Diagnostics only: malformed content is not an error.
		e.log.Warn().Int("response_len", len(reply)).Msg("model response yielded no candidates")
	}
	return candidates, nil
}

// capToBudget truncates document text so the prompt stays inside the
// configured token budget. Counting is best-effort; on a counting error the
// text passes through untouched.
func (e *Extractor) capToBudget(ctx context.Context, text string) string {
	if e.tokenBudget <= 0 {
		return text
	}
	probe := []adapter.Message{{Role: "user", Content: text}}
	tokens, err := e.ai.CountTokens(ctx, e.model, probe)
	if err != nil || tokens <= e.tokenBudget {
		return text
	}
	// Proportional cut; tokens scale roughly linearly with bytes here.
	keep := len(text) * e.tokenBudget / tokens
	if keep < 1 {
		keep = 1
	}
	e.log.Debug().Int("tokens", tokens).Int("budget", e.tokenBudget).Msg("truncating document text to token budget")
	return text[:keep]
}
