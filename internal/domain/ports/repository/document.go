package repository

import (
	"context"

	"invoice-ai-extraction/internal/domain/model"
)

type DocumentRepository interface {
	Save(ctx context.Context, tx Tx, doc *model.Document) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Document, error)
	ListByJob(ctx context.Context, tx Tx, jobID string) ([]*model.Document, error)
	UpdateStatus(ctx context.Context, tx Tx, id string, status model.DocumentStatus) error
}
