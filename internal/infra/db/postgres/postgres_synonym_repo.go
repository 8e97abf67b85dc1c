package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"

	"invoice-ai-extraction/internal/domain"
	"invoice-ai-extraction/internal/domain/model"
	"invoice-ai-extraction/internal/domain/ports/repository"
)

var _ repository.SynonymRepository = (*synonymRepo)(nil)

type synonymRepo struct {
	pool *pgxpool.Pool
}

func NewSynonymRepo(pool *pgxpool.Pool) *synonymRepo {
	return &synonymRepo{pool: pool}
}

func (r *synonymRepo) Save(ctx context.Context, qx repository.Tx, s *model.Synonym) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	// term is unique; re-mapping an existing term updates its canonical.
	const q = `
INSERT INTO synonyms (id, term, canonical, created_at)
VALUES ($1, $2, $3, COALESCE($4, NOW()))
ON CONFLICT (term) DO UPDATE SET canonical = EXCLUDED.canonical;`

	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return err
	}
	if _, err := ex.Exec(ctx, q, s.ID, s.Term, s.Canonical, s.CreatedAt); err != nil {
		return fmt.Errorf("save synonym: %w", err)
	}
	return nil
}

func (r *synonymRepo) Delete(ctx context.Context, qx repository.Tx, id string) error {
	const q = `DELETE FROM synonyms WHERE id = $1;`
	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return err
	}
	tag, err := ex.Exec(ctx, q, id)
	if err != nil {
		return fmt.Errorf("delete synonym: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *synonymRepo) ListAll(ctx context.Context, qx repository.Tx) ([]*model.Synonym, error) {
	const q = `SELECT id, term, canonical, created_at FROM synonyms ORDER BY term;`
	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list synonyms: %w", err)
	}
	defer rows.Close()

	var out []*model.Synonym
	for rows.Next() {
		var s model.Synonym
		if err := rows.Scan(&s.ID, &s.Term, &s.Canonical, &s.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}
