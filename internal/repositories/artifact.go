package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/dlapi/internal/models"
	"github.com/desertthunder/dlapi/internal/shared"
)

const selectArtifact = `SELECT id, path, created_at, video_id FROM artifacts`

// ArtifactRepository implements [models.ArtifactStore].
type ArtifactRepository struct {
	db *sql.DB
}

// NewArtifactRepository creates a new ArtifactRepository with the given database connection
func NewArtifactRepository(db *sql.DB) *ArtifactRepository {
	return &ArtifactRepository{db: db}
}

// GetArtifact retrieves an artifact by id
func (r *ArtifactRepository) GetArtifact(ctx context.Context, id int64) (*models.Artifact, error) {
	artifact, err := r.scanOne(r.db.QueryRowContext(ctx, selectArtifact+` WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: artifact %d", shared.ErrNotFound, id)
	}
	return artifact, err
}

// GetArtifactByVideo retrieves the artifact produced for a video
func (r *ArtifactRepository) GetArtifactByVideo(ctx context.Context, videoID int64) (*models.Artifact, error) {
	artifact, err := r.scanOne(r.db.QueryRowContext(ctx, selectArtifact+` WHERE video_id = ?`, videoID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: artifact for video %d", shared.ErrNotFound, videoID)
	}
	return artifact, err
}

// RecordArtifact inserts the video's artifact unless one exists. The UNIQUE video_id column is
// what decides the winner between concurrent callers. A path owned by another video is rejected
// with [shared.ErrPathConflict].
func (r *ArtifactRepository) RecordArtifact(ctx context.Context, videoID int64, path string) (*models.Artifact, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: artifact path is required", shared.ErrInvalidInput)
	}

	var (
		artifact *models.Artifact
		inserted bool
	)
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if ok, err := exists(ctx, tx, "videos", videoID); err != nil {
			return err
		} else if !ok {
			return fmt.Errorf("%w: video %d", shared.ErrNotFound, videoID)
		}

		var owner int64
		err := tx.QueryRowContext(ctx, `SELECT video_id FROM artifacts WHERE path = ?`, path).Scan(&owner)
		switch {
		case err == nil && owner != videoID:
			return fmt.Errorf("%w: %s belongs to video %d", shared.ErrPathConflict, path, owner)
		case err != nil && err != sql.ErrNoRows:
			return fmt.Errorf("failed to check artifact path: %w", err)
		}

		query := `
			INSERT INTO artifacts (path, created_at, video_id)
			VALUES (?, ?, ?)
			ON CONFLICT(video_id) DO NOTHING
		`
		result, err := tx.ExecContext(ctx, query, path, time.Now().UTC(), videoID)
		if err != nil {
			return fmt.Errorf("failed to insert artifact: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get affected rows: %w", err)
		}
		inserted = rows == 1

		artifact, err = r.scanOne(tx.QueryRowContext(ctx, selectArtifact+` WHERE video_id = ?`, videoID))
		return err
	})
	if err != nil {
		return nil, err
	}

	if !inserted {
		return artifact, &models.DuplicateArtifactError{Existing: artifact, Path: path}
	}
	return artifact, nil
}

// ListArtifacts returns every artifact ordered by id
func (r *ArtifactRepository) ListArtifacts(ctx context.Context) ([]*models.Artifact, error) {
	rows, err := r.db.QueryContext(ctx, selectArtifact+` ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query artifacts: %w", err)
	}
	defer rows.Close()

	artifacts := []*models.Artifact{}
	for rows.Next() {
		var a models.Artifact
		if err := rows.Scan(&a.ID, &a.Path, &a.CreatedAt, &a.VideoID); err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		artifacts = append(artifacts, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return artifacts, nil
}

// DeleteArtifact removes the record. Job references are cleared by ON DELETE SET NULL.
func (r *ArtifactRepository) DeleteArtifact(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM artifacts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete artifact: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: artifact %d", shared.ErrNotFound, id)
	}

	return nil
}

func (r *ArtifactRepository) scanOne(row *sql.Row) (*models.Artifact, error) {
	var a models.Artifact
	err := row.Scan(&a.ID, &a.Path, &a.CreatedAt, &a.VideoID)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan artifact: %w", err)
	}
	return &a, nil
}
