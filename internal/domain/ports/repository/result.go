package repository

import (
	"context"

	"invoice-ai-extraction/internal/domain/model"
)

// ResultRepository persists finalized results. SaveBatch must insert the
// whole slice atomically and preserve its order; ListByJob returns results
// in insertion order.
type ResultRepository interface {
	SaveBatch(ctx context.Context, tx Tx, results []*model.Result) error
	ListByJob(ctx context.Context, tx Tx, jobID string) ([]*model.Result, error)
	CountByJob(ctx context.Context, tx Tx, jobID string) (int, error)
}
