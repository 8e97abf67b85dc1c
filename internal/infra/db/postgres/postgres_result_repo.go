package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"invoice-ai-extraction/internal/domain"
	"invoice-ai-extraction/internal/domain/model"
	"invoice-ai-extraction/internal/domain/ports/repository"
)

var _ repository.ResultRepository = (*resultRepo)(nil)

type resultRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewResultRepo(pool *pgxpool.Pool, tm repository.TransactionManager) *resultRepo {
	return &resultRepo{pool: pool, tm: tm}
}

// SaveBatch inserts all rows in one transaction, preserving slice order.
// Result IDs are ULIDs assigned by the publisher, so ORDER BY id reproduces
// publish order on read.
func (r *resultRepo) SaveBatch(ctx context.Context, qx repository.Tx, results []*model.Result) error {
	if len(results) == 0 {
		return nil
	}
	const q = `
INSERT INTO results (id, job_id, doc_id, doc_name, page, original_term, canonical, value, confidence, evidence, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, COALESCE($11, NOW()));`

	insert := func(ctx context.Context, tx repository.Tx) error {
		ex, err := getExecutor(r.pool, tx)
		if err != nil {
			return err
		}
		for _, res := range results {
			if _, err := ex.Exec(ctx, q,
				res.ID, res.JobID, res.DocID, res.DocName, res.Page,
				res.OriginalTerm, res.Canonical, res.Value, res.Confidence,
				res.Evidence, res.CreatedAt); err != nil {
				return fmt.Errorf("insert result: %w", err)
			}
		}
		return nil
	}

	if qx != nil {
		return insert(ctx, qx)
	}
	return r.tm.WithTx(ctx, pgx.TxOptions{}, insert)
}

func (r *resultRepo) ListByJob(ctx context.Context, qx repository.Tx, jobID string) ([]*model.Result, error) {
	const q = `
SELECT id, job_id, doc_id, doc_name, page, original_term, canonical, value, confidence, evidence, created_at
FROM results WHERE job_id = $1 ORDER BY id;`

	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, q, jobID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var out []*model.Result
	for rows.Next() {
		var res model.Result
		if err := rows.Scan(&res.ID, &res.JobID, &res.DocID, &res.DocName, &res.Page,
			&res.OriginalTerm, &res.Canonical, &res.Value, &res.Confidence,
			&res.Evidence, &res.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, &res)
	}
	return out, rows.Err()
}

func (r *resultRepo) CountByJob(ctx context.Context, qx repository.Tx, jobID string) (int, error) {
	const q = `SELECT COUNT(*) FROM results WHERE job_id = $1;`
	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return 0, err
	}
	var n int
	if err := ex.QueryRow(ctx, q, jobID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count results: %w", err)
	}
	return n, nil
}
