package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/dlapi/internal/models"
	"github.com/desertthunder/dlapi/internal/shared"
)

const jobColumns = `id, status, progress, started_at, video_id, artifact_id`

// JobRepository implements [models.JobStore].
type JobRepository struct {
	db *sql.DB
}

// NewJobRepository creates a new JobRepository with the given database connection
func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

// CreateJob inserts a STARTED job whose id is the next value of jobs_sequence.
func (r *JobRepository) CreateJob(ctx context.Context) (*models.Job, error) {
	var job *models.Job
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		id, err := NextSequence(ctx, tx, "jobs")
		if err != nil {
			return fmt.Errorf("failed to generate job id: %w", err)
		}

		job = models.NewJob(id, time.Now().UTC())
		query := `INSERT INTO jobs (id, status, progress, started_at) VALUES (?, ?, ?, ?)`
		if _, err := tx.ExecContext(ctx, query, job.ID, job.Status, job.Progress, job.StartedAt); err != nil {
			return fmt.Errorf("failed to insert job: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// GetJob retrieves a job by id
func (r *JobRepository) GetJob(ctx context.Context, id int64) (*models.Job, error) {
	return r.getJob(ctx, r.db, id)
}

func (r *JobRepository) getJob(ctx context.Context, q querier, id int64) (*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = ?`
	job, err := r.scanOne(q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: job %d", shared.ErrNotFound, id)
	}
	return job, err
}

// ListJobs returns all jobs ordered by id, which is insertion order.
func (r *JobRepository) ListJobs(ctx context.Context) ([]*models.Job, error) {
	return r.list(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY id ASC`)
}

// ListJobsByVideo returns the jobs referencing videoID.
func (r *JobRepository) ListJobsByVideo(ctx context.Context, videoID int64) ([]*models.Job, error) {
	return r.list(ctx, `SELECT `+jobColumns+` FROM jobs WHERE video_id = ? ORDER BY id ASC`, videoID)
}

// UpdateJob reads, validates and writes the job in one transaction.
func (r *JobRepository) UpdateJob(ctx context.Context, id int64, u models.JobUpdate) (*models.Job, error) {
	var job *models.Job
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		job, err = r.getJob(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := job.Apply(u); err != nil {
			return err
		}

		if u.VideoID != nil {
			if ok, err := exists(ctx, tx, "videos", *u.VideoID); err != nil {
				return err
			} else if !ok {
				return fmt.Errorf("%w: video %d", shared.ErrNotFound, *u.VideoID)
			}
		}
		if u.ArtifactID != nil {
			if ok, err := exists(ctx, tx, "artifacts", *u.ArtifactID); err != nil {
				return err
			} else if !ok {
				return fmt.Errorf("%w: artifact %d", shared.ErrNotFound, *u.ArtifactID)
			}
		}

		query := `
			UPDATE jobs
			SET status = ?, progress = ?, video_id = ?, artifact_id = ?
			WHERE id = ?
		`
		_, err = tx.ExecContext(ctx, query, job.Status, job.Progress, nullInt64(job.VideoID), nullInt64(job.ArtifactID), id)
		if err != nil {
			return fmt.Errorf("failed to update job: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// DeleteJob removes a job. Artifacts are left untouched.
func (r *JobRepository) DeleteJob(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: job %d", shared.ErrNotFound, id)
	}

	return nil
}

func (r *JobRepository) list(ctx context.Context, query string, args ...any) ([]*models.Job, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	jobs := []*models.Job{}
	for rows.Next() {
		job, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return jobs, nil
}

// scanOne scans a single job from a QueryRow result. sql.ErrNoRows is returned unwrapped.
func (r *JobRepository) scanOne(row *sql.Row) (*models.Job, error) {
	var (
		job        models.Job
		status     string
		videoID    sql.NullInt64
		artifactID sql.NullInt64
	)

	err := row.Scan(&job.ID, &status, &job.Progress, &job.StartedAt, &videoID, &artifactID)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}

	job.Status = models.JobStatus(status)
	job.VideoID = int64Ptr(videoID)
	job.ArtifactID = int64Ptr(artifactID)
	return &job, nil
}

// scanRow scans a job from a Rows iterator
func (r *JobRepository) scanRow(rows *sql.Rows) (*models.Job, error) {
	var (
		job        models.Job
		status     string
		videoID    sql.NullInt64
		artifactID sql.NullInt64
	)

	if err := rows.Scan(&job.ID, &status, &job.Progress, &job.StartedAt, &videoID, &artifactID); err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}

	job.Status = models.JobStatus(status)
	job.VideoID = int64Ptr(videoID)
	job.ArtifactID = int64Ptr(artifactID)
	return &job, nil
}
