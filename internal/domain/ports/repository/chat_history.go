package repository

import (
	"context"

	"invoice-ai-extraction/internal/domain/model"
)

type ChatHistoryRepository interface {
	Save(ctx context.Context, tx Tx, ex *model.ChatExchange) error
	ListByJob(ctx context.Context, tx Tx, jobID string) ([]*model.ChatExchange, error)
}
