package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/dlapi/internal/models"
	"github.com/desertthunder/dlapi/internal/shared"
)

// VideoRepository implements [models.VideoStore].
type VideoRepository struct {
	db *sql.DB
}

// NewVideoRepository creates a new VideoRepository with the given database connection
func NewVideoRepository(db *sql.DB) *VideoRepository {
	return &VideoRepository{db: db}
}

// ResolveVideo inserts the video unless external_id is already known, then reads it back.
// The UNIQUE constraint on external_id makes concurrent first sightings converge on one row.
func (r *VideoRepository) ResolveVideo(ctx context.Context, externalID, url, title string) (*models.Video, error) {
	candidate := &models.Video{ExternalID: externalID, URL: url, Title: title}
	if err := candidate.Validate(); err != nil {
		return nil, err
	}

	var video *models.Video
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		query := `
			INSERT INTO videos (external_id, url, title, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(external_id) DO NOTHING
		`
		if _, err := tx.ExecContext(ctx, query, externalID, url, title, time.Now().UTC()); err != nil {
			return fmt.Errorf("failed to insert video: %w", err)
		}

		var err error
		video, err = r.scanOne(tx.QueryRowContext(ctx, selectVideo+` WHERE external_id = ?`, externalID))
		return err
	})
	if err != nil {
		return nil, err
	}
	return video, nil
}

const selectVideo = `SELECT id, external_id, url, title, created_at FROM videos`

// GetVideo retrieves a video by id
func (r *VideoRepository) GetVideo(ctx context.Context, id int64) (*models.Video, error) {
	video, err := r.scanOne(r.db.QueryRowContext(ctx, selectVideo+` WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: video %d", shared.ErrNotFound, id)
	}
	return video, err
}

// GetVideoByExternalID retrieves a video by the engine's id
func (r *VideoRepository) GetVideoByExternalID(ctx context.Context, externalID string) (*models.Video, error) {
	video, err := r.scanOne(r.db.QueryRowContext(ctx, selectVideo+` WHERE external_id = ?`, externalID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: video %q", shared.ErrNotFound, externalID)
	}
	return video, err
}

func (r *VideoRepository) scanOne(row *sql.Row) (*models.Video, error) {
	var v models.Video
	err := row.Scan(&v.ID, &v.ExternalID, &v.URL, &v.Title, &v.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan video: %w", err)
	}
	return &v, nil
}
