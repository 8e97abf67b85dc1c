package repository

import (
	"context"

	"invoice-ai-extraction/internal/domain/model"
)

type SynonymRepository interface {
	Save(ctx context.Context, tx Tx, s *model.Synonym) error
	Delete(ctx context.Context, tx Tx, id string) error
	ListAll(ctx context.Context, tx Tx) ([]*model.Synonym, error)
}
