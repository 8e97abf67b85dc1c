package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"invoice-ai-extraction/internal/domain"
	"invoice-ai-extraction/internal/domain/model"
	"invoice-ai-extraction/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*jobRepo)(nil)

type jobRepo struct {
	pool *pgxpool.Pool
}

func NewJobRepo(pool *pgxpool.Pool) *jobRepo {
	return &jobRepo{pool: pool}
}

func (r *jobRepo) Save(ctx context.Context, qx repository.Tx, job *model.Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.UpdatedAt = time.Now()

	const q = `
INSERT INTO jobs (id, status, progress, documents_processed, total_records, message, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()), $8)
ON CONFLICT (id) DO UPDATE SET
  status = EXCLUDED.status,
  progress = EXCLUDED.progress,
  documents_processed = EXCLUDED.documents_processed,
  total_records = EXCLUDED.total_records,
  message = EXCLUDED.message,
  updated_at = EXCLUDED.updated_at;`

	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return err
	}
	_, err = ex.Exec(ctx, q,
		job.ID, string(job.Status), job.Progress, job.DocumentsProcessed,
		job.TotalRecords, job.Message, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save job: %w", err)
	}
	return nil
}

func (r *jobRepo) FindByID(ctx context.Context, qx repository.Tx, id string) (*model.Job, error) {
	const q = `
SELECT id, status, progress, documents_processed, total_records, message, created_at, updated_at
FROM jobs WHERE id = $1;`

	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return nil, err
	}
	var j model.Job
	var status string
	err = ex.QueryRow(ctx, q, id).Scan(
		&j.ID, &status, &j.Progress, &j.DocumentsProcessed,
		&j.TotalRecords, &j.Message, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find job: %w", err)
	}
	j.Status = model.JobStatus(status)
	return &j, nil
}

func (r *jobRepo) ListRecent(ctx context.Context, qx repository.Tx, limit int) ([]*model.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT id, status, progress, documents_processed, total_records, message, created_at, updated_at
FROM jobs ORDER BY created_at DESC LIMIT $1;`

	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []*model.Job
	for rows.Next() {
		var j model.Job
		var status string
		if err := rows.Scan(&j.ID, &status, &j.Progress, &j.DocumentsProcessed,
			&j.TotalRecords, &j.Message, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		j.Status = model.JobStatus(status)
		out = append(out, &j)
	}
	return out, rows.Err()
}
