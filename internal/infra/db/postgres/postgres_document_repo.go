package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"invoice-ai-extraction/internal/domain"
	"invoice-ai-extraction/internal/domain/model"
	"invoice-ai-extraction/internal/domain/ports/repository"
)

var _ repository.DocumentRepository = (*documentRepo)(nil)

type documentRepo struct {
	pool *pgxpool.Pool
}

func NewDocumentRepo(pool *pgxpool.Pool) *documentRepo {
	return &documentRepo{pool: pool}
}

func (r *documentRepo) Save(ctx context.Context, qx repository.Tx, doc *model.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	const q = `
INSERT INTO documents (id, job_id, name, file_path, file_size, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))
ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status;`

	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return err
	}
	_, err = ex.Exec(ctx, q, doc.ID, doc.JobID, doc.Name, doc.FilePath, doc.FileSize, string(doc.Status), doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

func (r *documentRepo) FindByID(ctx context.Context, qx repository.Tx, id string) (*model.Document, error) {
	const q = `
SELECT id, job_id, name, file_path, file_size, status, created_at
FROM documents WHERE id = $1;`

	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return nil, err
	}
	var d model.Document
	var status string
	err = ex.QueryRow(ctx, q, id).Scan(&d.ID, &d.JobID, &d.Name, &d.FilePath, &d.FileSize, &status, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find document: %w", err)
	}
	d.Status = model.DocumentStatus(status)
	return &d, nil
}

func (r *documentRepo) ListByJob(ctx context.Context, qx repository.Tx, jobID string) ([]*model.Document, error) {
	const q = `
SELECT id, job_id, name, file_path, file_size, status, created_at
FROM documents WHERE job_id = $1 ORDER BY created_at;`

	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, q, jobID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []*model.Document
	for rows.Next() {
		var d model.Document
		var status string
		if err := rows.Scan(&d.ID, &d.JobID, &d.Name, &d.FilePath, &d.FileSize, &status, &d.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		d.Status = model.DocumentStatus(status)
		out = append(out, &d)
	}
	return out, rows.Err()
}

func (r *documentRepo) UpdateStatus(ctx context.Context, qx repository.Tx, id string, status model.DocumentStatus) error {
	const q = `UPDATE documents SET status = $2 WHERE id = $1;`
	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return err
	}
	tag, err := ex.Exec(ctx, q, id, string(status))
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
