package repositories

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/desertthunder/dlapi/internal/models"
	"github.com/desertthunder/dlapi/internal/shared"
	tu "github.com/desertthunder/dlapi/internal/testing"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func TestStore(t *testing.T) {
	tu.StoreContract(t, func(t *testing.T) models.Store { return NewStore(setupTestDB(t)) })
}

func TestStoreFileBacked(t *testing.T) {
	tu.StoreContract(t, func(t *testing.T) models.Store {
		db, err := shared.NewDatabase(filepath.Join(t.TempDir(), "dlapi.db"))
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		t.Cleanup(func() { db.Close() })
		shared.ConfigureDatabase(db, 4, 2)

		if _, err := shared.RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}
		return NewStore(db)
	})
}

func TestNextSequence(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	seq1, err := NextSequence(ctx, db, "jobs")
	if err != nil {
		t.Fatalf("failed to get first sequence: %v", err)
	}
	if seq1 != 1 {
		t.Errorf("expected first sequence to be 1, got %d", seq1)
	}

	seq2, err := NextSequence(ctx, db, "jobs")
	if err != nil {
		t.Fatalf("failed to get second sequence: %v", err)
	}
	if seq2 != 2 {
		t.Errorf("expected second sequence to be 2, got %d", seq2)
	}

	if _, err := NextSequence(ctx, db, "missing"); err == nil {
		t.Error("expected error for a table without a sequence")
	}
}

func TestJobRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("PersistsReferences", func(t *testing.T) {
		db := setupTestDB(t)
		store := NewStore(db)

		video, err := store.ResolveVideo(ctx, "v1", "https://example.com/v1", "First")
		if err != nil {
			t.Fatalf("failed to resolve video: %v", err)
		}
		job, _ := store.CreateJob(ctx)
		if _, err := store.UpdateJob(ctx, job.ID, models.JobUpdate{}.WithVideo(video.ID)); err != nil {
			t.Fatalf("failed to attach video: %v", err)
		}

		got, err := NewJobRepository(db).GetJob(ctx, job.ID)
		if err != nil {
			t.Fatalf("failed to get job: %v", err)
		}
		if got.VideoID == nil || *got.VideoID != video.ID {
			t.Errorf("expected video %d, got %v", video.ID, got.VideoID)
		}
		if got.ArtifactID != nil {
			t.Errorf("expected no artifact, got %d", *got.ArtifactID)
		}
	})

	t.Run("UnknownVideoReference", func(t *testing.T) {
		store := NewStore(setupTestDB(t))
		job, _ := store.CreateJob(ctx)

		_, err := store.UpdateJob(ctx, job.ID, models.JobUpdate{}.WithVideo(42))
		if !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ClosedDatabase", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewJobRepository(db)
		db.Close()

		if _, err := repo.CreateJob(ctx); err == nil {
			t.Error("expected error creating job on closed database")
		}
		if _, err := repo.ListJobs(ctx); err == nil {
			t.Error("expected error listing jobs on closed database")
		}
	})
}

func TestVideoRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("ValidationError", func(t *testing.T) {
		repo := NewVideoRepository(setupTestDB(t))
		if _, err := repo.ResolveVideo(ctx, "", "https://example.com", "x"); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestArtifactRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("EmptyPath", func(t *testing.T) {
		repo := NewArtifactRepository(setupTestDB(t))
		if _, err := repo.RecordArtifact(ctx, 1, ""); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}
