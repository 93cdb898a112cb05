package models

import (
	"fmt"
	"time"

	"github.com/desertthunder/dlapi/internal/shared"
)

// JobStatus is the externally observable state of a [Job].
type JobStatus string

const (
	StatusStarted            JobStatus = "STARTED"
	StatusInProgress         JobStatus = "IN_PROGRESS"
	StatusDownloaded         JobStatus = "DOWNLOADED"
	StatusPostprocessing     JobStatus = "POSTPROCESSING"
	StatusPostprocessingDone JobStatus = "POSTPROCESSING_DONE"
	StatusFinished           JobStatus = "FINISHED"
	StatusError              JobStatus = "ERROR"
)

// rank orders the non-error statuses along the pipeline.
var rank = map[JobStatus]int{
	StatusStarted:            0,
	StatusInProgress:         1,
	StatusDownloaded:         2,
	StatusPostprocessing:     3,
	StatusPostprocessingDone: 4,
	StatusFinished:           5,
}

// ParseJobStatus converts s into a known [JobStatus].
func ParseJobStatus(s string) (JobStatus, error) {
	status := JobStatus(s)
	if !status.Valid() {
		return "", fmt.Errorf("%w: unknown job status %q", shared.ErrInvalidInput, s)
	}
	return status, nil
}

func (s JobStatus) String() string {
	return string(s)
}

// Valid reports whether s is a known status.
func (s JobStatus) Valid() bool {
	if s == StatusError {
		return true
	}
	_, ok := rank[s]
	return ok
}

// IsTerminal reports whether no further transitions are possible.
func (s JobStatus) IsTerminal() bool {
	return s == StatusFinished || s == StatusError
}

// CanTransition reports whether a job in status s may move to next.
//
// Re-applying the current status is always allowed. Otherwise s must be non-terminal and next
// must be ERROR or rank at or after s; intermediate stages may be skipped.
func (s JobStatus) CanTransition(next JobStatus) bool {
	if !next.Valid() {
		return false
	}
	if s == next {
		return true
	}
	if s.IsTerminal() {
		return false
	}
	if next == StatusError {
		return true
	}
	return rank[next] >= rank[s]
}

// Job is one client-visible download request.
type Job struct {
	ID         int64     `json:"id"`
	Status     JobStatus `json:"status"`
	Progress   int       `json:"progress"`
	StartedAt  time.Time `json:"started_at"`
	VideoID    *int64    `json:"video_id,omitempty"`
	ArtifactID *int64    `json:"artifact_id,omitempty"`
}

// NewJob returns a STARTED job with zero progress.
func NewJob(id int64, startedAt time.Time) *Job {
	return &Job{ID: id, Status: StatusStarted, StartedAt: startedAt}
}

// Clone returns a deep copy of j.
func (j *Job) Clone() *Job {
	c := *j
	if j.VideoID != nil {
		v := *j.VideoID
		c.VideoID = &v
	}
	if j.ArtifactID != nil {
		a := *j.ArtifactID
		c.ArtifactID = &a
	}
	return &c
}

// Validate checks the job's invariants.
func (j *Job) Validate() error {
	if !j.Status.Valid() {
		return fmt.Errorf("%w: unknown job status %q", shared.ErrInvalidInput, j.Status)
	}
	if j.Progress < 0 || j.Progress > 100 {
		return fmt.Errorf("%w: %d", shared.ErrInvalidProgress, j.Progress)
	}
	return nil
}

// Apply validates u against j and applies it in place. j is left untouched on error.
func (j *Job) Apply(u JobUpdate) error {
	next := j.Clone()

	if u.Status != nil {
		if !j.Status.CanTransition(*u.Status) {
			return fmt.Errorf("%w: job %d %s -> %s", shared.ErrInvalidTransition, j.ID, j.Status, *u.Status)
		}
		next.Status = *u.Status
	}
	if u.Progress != nil {
		if *u.Progress < 0 || *u.Progress > 100 {
			return fmt.Errorf("%w: %d", shared.ErrInvalidProgress, *u.Progress)
		}
		// Terminal jobs keep their final progress.
		if !j.Status.IsTerminal() {
			next.Progress = *u.Progress
		}
	}
	if u.VideoID != nil {
		v := *u.VideoID
		next.VideoID = &v
	}
	if u.ArtifactID != nil {
		a := *u.ArtifactID
		next.ArtifactID = &a
	}

	if err := next.Validate(); err != nil {
		return err
	}
	// A deleted artifact may later clear the reference of a finished job, so this is only
	// checked on entry.
	if next.Status == StatusFinished && j.Status != StatusFinished && next.ArtifactID == nil {
		return fmt.Errorf("%w: job %d cannot finish without an artifact", shared.ErrInvalidTransition, j.ID)
	}

	*j = *next
	return nil
}

// JobUpdate is a partial update; nil fields are left unchanged.
type JobUpdate struct {
	Status     *JobStatus
	Progress   *int
	VideoID    *int64
	ArtifactID *int64
}

// Empty reports whether u changes nothing.
func (u JobUpdate) Empty() bool {
	return u.Status == nil && u.Progress == nil && u.VideoID == nil && u.ArtifactID == nil
}

// WithStatus sets the status field.
func (u JobUpdate) WithStatus(s JobStatus) JobUpdate {
	u.Status = &s
	return u
}

// WithProgress sets the progress field.
func (u JobUpdate) WithProgress(p int) JobUpdate {
	u.Progress = &p
	return u
}

// WithVideo sets the video reference.
func (u JobUpdate) WithVideo(id int64) JobUpdate {
	u.VideoID = &id
	return u
}

// WithArtifact sets the artifact reference.
func (u JobUpdate) WithArtifact(id int64) JobUpdate {
	u.ArtifactID = &id
	return u
}
