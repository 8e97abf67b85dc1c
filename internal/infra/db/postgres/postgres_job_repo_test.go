//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"invoice-ai-extraction/internal/domain"
	"invoice-ai-extraction/internal/domain/model"

	"github.com/google/uuid"
)

func TestJobRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	repo := NewJobRepo(testPool)
	ctx := context.Background()

	t.Run("should perform full lifecycle cycle", func(t *testing.T) {
		cleanup(t)

		job := model.NewJob(uuid.NewString())
		job.Message = "Job queued"
		if err := repo.Save(ctx, nil, job); err != nil {
			t.Fatalf("Failed to save new job: %v", err)
		}

		found, err := repo.FindByID(ctx, nil, job.ID)
		if err != nil {
			t.Fatalf("Failed to find job: %v", err)
		}
		if found.Status != model.JobStatusQueued {
			t.Errorf("Expected status queued, got %s", found.Status)
		}

		found.Status = model.JobStatusRunning
		found.Progress = 30
		found.Message = "Extracting text from PDFs..."
		if err := repo.Save(ctx, nil, found); err != nil {
			t.Fatalf("Failed to update job: %v", err)
		}

		updated, err := repo.FindByID(ctx, nil, job.ID)
		if err != nil {
			t.Fatalf("Failed to re-find job: %v", err)
		}
		if updated.Progress != 30 || updated.Status != model.JobStatusRunning {
			t.Errorf("Update not persisted: status=%s progress=%d", updated.Status, updated.Progress)
		}
	})

	t.Run("should return ErrNotFound for unknown id", func(t *testing.T) {
		cleanup(t)

		_, err := repo.FindByID(ctx, nil, uuid.NewString())
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("should list recent jobs newest first", func(t *testing.T) {
		cleanup(t)

		first := model.NewJob(uuid.NewString())
		second := model.NewJob(uuid.NewString())
		second.CreatedAt = first.CreatedAt.Add(time.Millisecond)
		if err := repo.Save(ctx, nil, first); err != nil {
			t.Fatalf("save first: %v", err)
		}
		if err := repo.Save(ctx, nil, second); err != nil {
			t.Fatalf("save second: %v", err)
		}

		jobs, err := repo.ListRecent(ctx, nil, 10)
		if err != nil {
			t.Fatalf("ListRecent: %v", err)
		}
		if len(jobs) != 2 {
			t.Fatalf("Expected 2 jobs, got %d", len(jobs))
		}
		if jobs[0].ID != second.ID {
			t.Errorf("Expected newest job first, got %s", jobs[0].ID)
		}
	})
}
