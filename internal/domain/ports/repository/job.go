package repository

import (
	"context"

	"invoice-ai-extraction/internal/domain/model"
)

// JobRepository persists job records. All writes for one job id are issued by
// that job's controller goroutine; the repository itself does no locking.
type JobRepository interface {
	Save(ctx context.Context, tx Tx, job *model.Job) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Job, error)
	ListRecent(ctx context.Context, tx Tx, limit int) ([]*model.Job, error)
}
