package usecase

import (
	"context"
	crand "crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"invoice-ai-extraction/internal/domain"
	"invoice-ai-extraction/internal/domain/model"
	"invoice-ai-extraction/internal/domain/ports/repository"
	"invoice-ai-extraction/internal/infra/metrics"
	"invoice-ai-extraction/internal/infra/stream"
)

// ResultPublisher is the single write path for finalized results. It assigns
// monotonic ULIDs (so insertion order survives a round trip through the
// database), persists each per-document batch atomically, and broadcasts the
// batch to live stream subscribers in the same critical section.
type ResultPublisher struct {
	results repository.ResultRepository
	hub     *stream.Hub
	log     *zerolog.Logger

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewResultPublisher(results repository.ResultRepository, hub *stream.Hub, log *zerolog.Logger) *ResultPublisher {
	return &ResultPublisher{
		results: results,
		hub:     hub,
		log:     log,
		entropy: ulid.Monotonic(crand.Reader, 0),
	}
}

// PublishBatch finalizes one document's results: either every row is
// persisted and broadcast, or none are. Rows keep their slice order.
func (p *ResultPublisher) PublishBatch(ctx context.Context, jobID string, rows []*model.Result) error {
	if len(rows) == 0 {
		return nil
	}
	if err := p.assignIDs(rows); err != nil {
		return err
	}

	err := p.hub.Publish(jobID, func() error {
		return p.results.SaveBatch(ctx, nil, rows)
	}, rows)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	metrics.AddResultsPublished(len(rows))
	return nil
}

func (p *ResultPublisher) assignIDs(rows []*model.Result) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	for _, r := range rows {
		id, err := ulid.New(ulid.Timestamp(now), p.entropy)
		if err != nil {
			return fmt.Errorf("assign result id: %w", err)
		}
		r.ID = id.String()
		r.CreatedAt = now
	}
	return nil
}

// Subscribe returns everything published for the job so far plus a live
// subscription that picks up exactly where the snapshot ends.
func (p *ResultPublisher) Subscribe(ctx context.Context, jobID string) ([]*model.Result, *stream.Subscription, error) {
	return p.hub.Subscribe(jobID, func() ([]*model.Result, error) {
		rows, err := p.results.ListByJob(ctx, nil, jobID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
		}
		return rows, nil
	})
}

// List returns the job's results in publish order.
func (p *ResultPublisher) List(ctx context.Context, jobID string) ([]*model.Result, error) {
	rows, err := p.results.ListByJob(ctx, nil, jobID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	return rows, nil
}

// Count returns how many results the job has published.
func (p *ResultPublisher) Count(ctx context.Context, jobID string) (int, error) {
	n, err := p.results.CountByJob(ctx, nil, jobID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	return n, nil
}
