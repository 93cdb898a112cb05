package models

import (
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/dlapi/internal/shared"
)

func TestJobStatus(t *testing.T) {
	t.Run("CanTransition", func(t *testing.T) {
		tests := []struct {
			name string
			from JobStatus
			to   JobStatus
			want bool
		}{
			{"started to in progress", StatusStarted, StatusInProgress, true},
			{"started to finished skips stages", StatusStarted, StatusFinished, true},
			{"in progress to downloaded", StatusInProgress, StatusDownloaded, true},
			{"downloaded to postprocessing", StatusDownloaded, StatusPostprocessing, true},
			{"postprocessing to done", StatusPostprocessing, StatusPostprocessingDone, true},
			{"done to finished", StatusPostprocessingDone, StatusFinished, true},
			{"same status", StatusInProgress, StatusInProgress, true},
			{"same terminal status", StatusFinished, StatusFinished, true},
			{"any to error", StatusPostprocessing, StatusError, true},
			{"backwards", StatusDownloaded, StatusInProgress, false},
			{"finished to error", StatusFinished, StatusError, false},
			{"error to started", StatusError, StatusStarted, false},
			{"unknown target", StatusStarted, JobStatus("PAUSED"), false},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if got := tt.from.CanTransition(tt.to); got != tt.want {
					t.Errorf("%s -> %s: expected %v, got %v", tt.from, tt.to, tt.want, got)
				}
			})
		}
	})

	t.Run("IsTerminal", func(t *testing.T) {
		for _, s := range []JobStatus{StatusFinished, StatusError} {
			if !s.IsTerminal() {
				t.Errorf("expected %s to be terminal", s)
			}
		}
		for _, s := range []JobStatus{StatusStarted, StatusInProgress, StatusDownloaded, StatusPostprocessing, StatusPostprocessingDone} {
			if s.IsTerminal() {
				t.Errorf("expected %s to be non-terminal", s)
			}
		}
	})

	t.Run("ParseJobStatus", func(t *testing.T) {
		s, err := ParseJobStatus("POSTPROCESSING_DONE")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s != StatusPostprocessingDone {
			t.Errorf("expected %s, got %s", StatusPostprocessingDone, s)
		}

		if _, err := ParseJobStatus("done"); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestJobApply(t *testing.T) {
	t.Run("Progress", func(t *testing.T) {
		job := NewJob(1, time.Now())
		if err := job.Apply(JobUpdate{}.WithStatus(StatusInProgress).WithProgress(42)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if job.Status != StatusInProgress || job.Progress != 42 {
			t.Errorf("expected IN_PROGRESS/42, got %s/%d", job.Status, job.Progress)
		}
	})

	t.Run("ProgressOutOfRange", func(t *testing.T) {
		for _, p := range []int{-1, 101} {
			job := NewJob(1, time.Now())
			err := job.Apply(JobUpdate{}.WithProgress(p))
			if !errors.Is(err, shared.ErrInvalidProgress) {
				t.Errorf("progress %d: expected ErrInvalidProgress, got %v", p, err)
			}
			if job.Progress != 0 {
				t.Errorf("progress %d: job should be unchanged, got %d", p, job.Progress)
			}
		}
	})

	t.Run("InvalidTransitionLeavesJobUntouched", func(t *testing.T) {
		job := NewJob(1, time.Now())
		if err := job.Apply(JobUpdate{}.WithStatus(StatusDownloaded).WithProgress(100)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		err := job.Apply(JobUpdate{}.WithStatus(StatusInProgress).WithProgress(10))
		if !errors.Is(err, shared.ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition, got %v", err)
		}
		if job.Status != StatusDownloaded || job.Progress != 100 {
			t.Errorf("expected DOWNLOADED/100, got %s/%d", job.Status, job.Progress)
		}
	})

	t.Run("FinishRequiresArtifact", func(t *testing.T) {
		job := NewJob(1, time.Now())
		err := job.Apply(JobUpdate{}.WithStatus(StatusFinished))
		if !errors.Is(err, shared.ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition, got %v", err)
		}

		if err := job.Apply(JobUpdate{}.WithStatus(StatusFinished).WithProgress(100).WithArtifact(7)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if job.ArtifactID == nil || *job.ArtifactID != 7 {
			t.Errorf("expected artifact 7, got %v", job.ArtifactID)
		}
	})

	t.Run("TerminalIdempotent", func(t *testing.T) {
		job := NewJob(1, time.Now())
		if err := job.Apply(JobUpdate{}.WithStatus(StatusError)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := job.Apply(JobUpdate{}.WithStatus(StatusError)); err != nil {
			t.Errorf("re-applying ERROR should be a no-op, got %v", err)
		}
	})

	t.Run("CloneIsDeep", func(t *testing.T) {
		job := NewJob(1, time.Now())
		if err := job.Apply(JobUpdate{}.WithVideo(3)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		c := job.Clone()
		*c.VideoID = 9
		if *job.VideoID != 3 {
			t.Errorf("clone shares video pointer with original")
		}
	})
}

func TestDuplicateArtifactError(t *testing.T) {
	existing := &Artifact{ID: 1, VideoID: 2, Path: "/downloads/a.mp3"}
	var err error = &DuplicateArtifactError{Existing: existing, Path: "/downloads/b.mp3"}

	if !errors.Is(err, shared.ErrDuplicateArtifact) {
		t.Errorf("expected error to wrap ErrDuplicateArtifact")
	}

	got, ok := AsDuplicateArtifact(err)
	if !ok || got.ID != existing.ID {
		t.Errorf("expected existing artifact, got %v", got)
	}

	if _, ok := AsDuplicateArtifact(shared.ErrNotFound); ok {
		t.Errorf("expected no match for unrelated error")
	}
}
