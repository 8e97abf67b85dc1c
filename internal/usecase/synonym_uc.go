package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"invoice-ai-extraction/internal/domain"
	"invoice-ai-extraction/internal/domain/model"
	"invoice-ai-extraction/internal/domain/ports/repository"
	"invoice-ai-extraction/internal/infra/logging"
)

// dictionaryCache is the cached synonym snapshot. Optional; a nil cache means
// every snapshot hits the database.
type dictionaryCache interface {
	Get(ctx context.Context) ([]*model.Synonym, bool)
	Store(ctx context.Context, synonyms []*model.Synonym) error
	Invalidate(ctx context.Context) error
}

// SynonymUseCase manages the synonym dictionary and serves the per-job
// snapshots the pipeline canonicalizes against.
type SynonymUseCase struct {
	repo  repository.SynonymRepository
	cache dictionaryCache
	log   *zerolog.Logger
}

var _ DictionarySource = (*SynonymUseCase)(nil)

func NewSynonymUseCase(repo repository.SynonymRepository, cache dictionaryCache, log *zerolog.Logger) *SynonymUseCase {
	return &SynonymUseCase{repo: repo, cache: cache, log: log}
}

// Snapshot returns the current synonym table, served from cache when warm.
func (uc *SynonymUseCase) Snapshot(ctx context.Context) ([]*model.Synonym, error) {
	if uc.cache != nil {
		if synonyms, ok := uc.cache.Get(ctx); ok {
			return synonyms, nil
		}
	}
	synonyms, err := uc.repo.ListAll(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	if uc.cache != nil {
		if err := uc.cache.Store(ctx, synonyms); err != nil {
			logging.With(ctx, uc.log).Warn().Err(err).Msg("synonym cache not refreshed")
		}
	}
	return synonyms, nil
}

// Upsert creates a mapping or re-points an existing term at a new canonical
// name. Matching is case-insensitive at resolve time, so the term is stored
// as given.
func (uc *SynonymUseCase) Upsert(ctx context.Context, term, canonical string) (*model.Synonym, error) {
	term = strings.TrimSpace(term)
	canonical = strings.TrimSpace(canonical)
	if term == "" || canonical == "" {
		return nil, fmt.Errorf("%w: term and canonical are required", domain.ErrInvalidArgument)
	}
	s := &model.Synonym{Term: term, Canonical: canonical, CreatedAt: time.Now()}
	if err := uc.repo.Save(ctx, nil, s); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	uc.invalidate(ctx)
	return s, nil
}

// Update rewrites an existing mapping in place. The term stays the logical
// key; saving under a taken term re-points that term instead of duplicating.
func (uc *SynonymUseCase) Update(ctx context.Context, id, term, canonical string) (*model.Synonym, error) {
	term = strings.TrimSpace(term)
	canonical = strings.TrimSpace(canonical)
	if id == "" || term == "" || canonical == "" {
		return nil, fmt.Errorf("%w: id, term and canonical are required", domain.ErrInvalidArgument)
	}
	s := &model.Synonym{ID: id, Term: term, Canonical: canonical, CreatedAt: time.Now()}
	if err := uc.repo.Save(ctx, nil, s); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	uc.invalidate(ctx)
	return s, nil
}

func (uc *SynonymUseCase) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: synonym id is required", domain.ErrInvalidArgument)
	}
	if err := uc.repo.Delete(ctx, nil, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	uc.invalidate(ctx)
	return nil
}

// List returns all mappings sorted by term.
func (uc *SynonymUseCase) List(ctx context.Context) ([]*model.Synonym, error) {
	synonyms, err := uc.repo.ListAll(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	return synonyms, nil
}

func (uc *SynonymUseCase) invalidate(ctx context.Context) {
	if uc.cache == nil {
		return
	}
	if err := uc.cache.Invalidate(ctx); err != nil {
		logging.With(ctx, uc.log).Warn().Err(err).Msg("synonym cache not invalidated")
	}
}
