package usecase

import (
	"context"
	"errors"
	"testing"

	"invoice-ai-extraction/internal/domain"
	"invoice-ai-extraction/internal/domain/model"
)

func TestSynonym_Snapshot_CacheThrough(t *testing.T) {
	repo := newFakeSynonymRepo()
	_ = repo.Save(context.Background(), nil, &model.Synonym{Term: "vat", Canonical: "Value Added Tax"})
	cache := &fakeDictCache{}
	uc := NewSynonymUseCase(repo, cache, nopLogger())

	first, err := uc.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("expected 1 synonym, got %d", len(first))
	}
	if !cache.warm {
		t.Error("expected cache warmed after miss")
	}

	// Warm cache means the repo is not consulted again.
	repo.listErr = errBoom
	second, err := uc.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot from cache: %v", err)
	}
	if len(second) != 1 {
		t.Errorf("expected cached snapshot, got %d entries", len(second))
	}
}

func TestSynonym_Upsert_InvalidatesCache(t *testing.T) {
	repo := newFakeSynonymRepo()
	cache := &fakeDictCache{warm: true}
	uc := NewSynonymUseCase(repo, cache, nopLogger())

	syn, err := uc.Upsert(context.Background(), "  gst  ", "Goods and Services Tax")
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if syn.Term != "gst" {
		t.Errorf("expected trimmed term, got %q", syn.Term)
	}
	if cache.invalidated != 1 {
		t.Errorf("expected one cache invalidation, got %d", cache.invalidated)
	}

	if _, err := uc.Upsert(context.Background(), "", "x"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestSynonym_Delete(t *testing.T) {
	repo := newFakeSynonymRepo()
	s := &model.Synonym{Term: "cess", Canonical: "Cess"}
	_ = repo.Save(context.Background(), nil, s)
	cache := &fakeDictCache{warm: true}
	uc := NewSynonymUseCase(repo, cache, nopLogger())

	if err := uc.Delete(context.Background(), s.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if cache.invalidated != 1 {
		t.Errorf("expected cache invalidation on delete, got %d", cache.invalidated)
	}
	if err := uc.Delete(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSynonym_NilCacheWorks(t *testing.T) {
	repo := newFakeSynonymRepo()
	uc := NewSynonymUseCase(repo, nil, nopLogger())

	if _, err := uc.Upsert(context.Background(), "tax", "Tax"); err != nil {
		t.Fatalf("Upsert without cache: %v", err)
	}
	synonyms, err := uc.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot without cache: %v", err)
	}
	if len(synonyms) != 1 {
		t.Errorf("expected 1 synonym, got %d", len(synonyms))
	}
}
