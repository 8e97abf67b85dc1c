package ai

import (
	"context"

	"invoice-ai-extraction/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*NoopAdapter)(nil)

// NoopAdapter returns canned output; useful for dev mode and wiring tests.
type NoopAdapter struct {
	Reply string
}

func (n *NoopAdapter) Chat(ctx context.Context, model string, messages []adapter.Message, opts adapter.ChatOptions) (string, error) {
	if n.Reply != "" {
		return n.Reply, nil
	}
	return "[]", nil
}

func (n *NoopAdapter) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	total := 0
	for _, m := range messages {
		total += len(m.Content) / 4
	}
	return total, nil
}
