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

var _ repository.ChatHistoryRepository = (*chatHistoryRepo)(nil)

type chatHistoryRepo struct {
	pool *pgxpool.Pool
}

func NewChatHistoryRepo(pool *pgxpool.Pool) *chatHistoryRepo {
	return &chatHistoryRepo{pool: pool}
}

func (r *chatHistoryRepo) Save(ctx context.Context, qx repository.Tx, ex *model.ChatExchange) error {
	if ex.ID == "" {
		ex.ID = uuid.NewString()
	}
	const q = `
INSERT INTO chat_history (id, job_id, question, answer, created_at)
VALUES ($1, $2, $3, $4, COALESCE($5, NOW()));`

	e, err := getExecutor(r.pool, qx)
	if err != nil {
		return err
	}
	if _, err := e.Exec(ctx, q, ex.ID, ex.JobID, ex.Question, ex.Answer, ex.CreatedAt); err != nil {
		return fmt.Errorf("save chat exchange: %w", err)
	}
	return nil
}

func (r *chatHistoryRepo) ListByJob(ctx context.Context, qx repository.Tx, jobID string) ([]*model.ChatExchange, error) {
	const q = `
SELECT id, job_id, question, answer, created_at
FROM chat_history WHERE job_id = $1 ORDER BY created_at;`

	e, err := getExecutor(r.pool, qx)
	if err != nil {
		return nil, err
	}
	rows, err := e.Query(ctx, q, jobID)
	if err != nil {
		return nil, fmt.Errorf("list chat history: %w", err)
	}
	defer rows.Close()

	var out []*model.ChatExchange
	for rows.Next() {
		var ex model.ChatExchange
		if err := rows.Scan(&ex.ID, &ex.JobID, &ex.Question, &ex.Answer, &ex.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, &ex)
	}
	return out, rows.Err()
}
