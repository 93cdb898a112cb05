package testing

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/desertthunder/dlapi/internal/models"
	"github.com/desertthunder/dlapi/internal/shared"
)

// StoreContract runs the behaviour shared by every [models.Store] implementation.
func StoreContract(t *testing.T, newStore func(t *testing.T) models.Store) {
	ctx := context.Background()

	t.Run("CreateJob", func(t *testing.T) {
		s := newStore(t)
		first, err := s.CreateJob(ctx)
		if err != nil {
			t.Fatalf("failed to create job: %v", err)
		}
		second, err := s.CreateJob(ctx)
		if err != nil {
			t.Fatalf("failed to create job: %v", err)
		}

		if first.Status != models.StatusStarted || first.Progress != 0 {
			t.Errorf("expected STARTED/0, got %s/%d", first.Status, first.Progress)
		}
		if second.ID <= first.ID {
			t.Errorf("expected increasing ids, got %d then %d", first.ID, second.ID)
		}
		if first.StartedAt.IsZero() {
			t.Error("started_at should be set")
		}
	})

	t.Run("IDsNeverReused", func(t *testing.T) {
		s := newStore(t)
		job, _ := s.CreateJob(ctx)
		if err := s.DeleteJob(ctx, job.ID); err != nil {
			t.Fatalf("failed to delete job: %v", err)
		}
		next, _ := s.CreateJob(ctx)
		if next.ID == job.ID {
			t.Errorf("id %d reused after delete", job.ID)
		}
	})

	t.Run("GetJobNotFound", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.GetJob(ctx, 999); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if _, err := s.UpdateJob(ctx, 999, models.JobUpdate{}.WithProgress(1)); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound on update, got %v", err)
		}
		if err := s.DeleteJob(ctx, 999); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound on delete, got %v", err)
		}
	})

	t.Run("ListJobsInsertionOrder", func(t *testing.T) {
		s := newStore(t)
		var ids []int64
		for range 3 {
			job, _ := s.CreateJob(ctx)
			ids = append(ids, job.ID)
		}

		jobs, err := s.ListJobs(ctx)
		if err != nil {
			t.Fatalf("failed to list jobs: %v", err)
		}
		if len(jobs) != len(ids) {
			t.Fatalf("expected %d jobs, got %d", len(ids), len(jobs))
		}
		for i, job := range jobs {
			if job.ID != ids[i] {
				t.Errorf("position %d: expected id %d, got %d", i, ids[i], job.ID)
			}
		}
	})

	t.Run("UpdateJob", func(t *testing.T) {
		s := newStore(t)
		job, _ := s.CreateJob(ctx)

		updated, err := s.UpdateJob(ctx, job.ID, models.JobUpdate{}.WithStatus(models.StatusInProgress).WithProgress(50))
		if err != nil {
			t.Fatalf("failed to update job: %v", err)
		}
		if updated.Status != models.StatusInProgress || updated.Progress != 50 {
			t.Errorf("expected IN_PROGRESS/50, got %s/%d", updated.Status, updated.Progress)
		}

		got, _ := s.GetJob(ctx, job.ID)
		if got.Progress != 50 {
			t.Errorf("expected stored progress 50, got %d", got.Progress)
		}
	})

	t.Run("UpdateJobRejectsInvalid", func(t *testing.T) {
		s := newStore(t)
		job, _ := s.CreateJob(ctx)
		if _, err := s.UpdateJob(ctx, job.ID, models.JobUpdate{}.WithStatus(models.StatusDownloaded).WithProgress(100)); err != nil {
			t.Fatalf("failed to update job: %v", err)
		}

		if _, err := s.UpdateJob(ctx, job.ID, models.JobUpdate{}.WithProgress(101)); !errors.Is(err, shared.ErrInvalidProgress) {
			t.Errorf("expected ErrInvalidProgress, got %v", err)
		}
		if _, err := s.UpdateJob(ctx, job.ID, models.JobUpdate{}.WithStatus(models.StatusStarted)); !errors.Is(err, shared.ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}

		got, _ := s.GetJob(ctx, job.ID)
		if got.Status != models.StatusDownloaded || got.Progress != 100 {
			t.Errorf("rejected updates must not apply, got %s/%d", got.Status, got.Progress)
		}
	})

	t.Run("SnapshotsAreCopies", func(t *testing.T) {
		s := newStore(t)
		job, _ := s.CreateJob(ctx)
		job.Progress = 77

		got, _ := s.GetJob(ctx, job.ID)
		if got.Progress != 0 {
			t.Errorf("mutating a snapshot changed the store: %d", got.Progress)
		}
	})

	t.Run("ResolveVideo", func(t *testing.T) {
		s := newStore(t)
		first, err := s.ResolveVideo(ctx, "v1", "https://example.com/v1", "First")
		if err != nil {
			t.Fatalf("failed to resolve video: %v", err)
		}
		again, err := s.ResolveVideo(ctx, "v1", "https://example.com/other", "Renamed")
		if err != nil {
			t.Fatalf("failed to resolve video: %v", err)
		}

		if again.ID != first.ID {
			t.Errorf("expected same id %d, got %d", first.ID, again.ID)
		}
		if again.Title != "First" || again.URL != "https://example.com/v1" {
			t.Errorf("existing video must not be updated, got %q %q", again.Title, again.URL)
		}

		byExt, err := s.GetVideoByExternalID(ctx, "v1")
		if err != nil || byExt.ID != first.ID {
			t.Errorf("expected lookup by external id, got %v %v", byExt, err)
		}
		if _, err := s.GetVideo(ctx, 999); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ResolveVideoConcurrent", func(t *testing.T) {
		s := newStore(t)
		var wg sync.WaitGroup
		ids := make([]int64, 8)
		for i := range ids {
			wg.Add(1)
			go func() {
				defer wg.Done()
				v, err := s.ResolveVideo(ctx, "same", "https://example.com/same", "Same")
				if err != nil {
					t.Errorf("failed to resolve video: %v", err)
					return
				}
				ids[i] = v.ID
			}()
		}
		wg.Wait()

		for _, id := range ids {
			if id != ids[0] {
				t.Fatalf("expected one video, got ids %v", ids)
			}
		}
	})

	t.Run("RecordArtifact", func(t *testing.T) {
		s := newStore(t)
		video, _ := s.ResolveVideo(ctx, "v1", "https://example.com/v1", "First")

		if _, err := s.GetArtifactByVideo(ctx, video.ID); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound before recording, got %v", err)
		}

		artifact, err := s.RecordArtifact(ctx, video.ID, "/tmp/v1.mp3")
		if err != nil {
			t.Fatalf("failed to record artifact: %v", err)
		}
		if artifact.Path != "/tmp/v1.mp3" || artifact.VideoID != video.ID {
			t.Errorf("unexpected artifact %+v", artifact)
		}

		dup, err := s.RecordArtifact(ctx, video.ID, "/tmp/v1 (1).mp3")
		if !errors.Is(err, shared.ErrDuplicateArtifact) {
			t.Fatalf("expected ErrDuplicateArtifact, got %v", err)
		}
		if dup == nil || dup.ID != artifact.ID {
			t.Errorf("expected existing artifact %d, got %v", artifact.ID, dup)
		}
		existing, ok := models.AsDuplicateArtifact(err)
		if !ok || existing.Path != "/tmp/v1.mp3" {
			t.Errorf("expected winner path in error, got %v", existing)
		}

		byVideo, err := s.GetArtifactByVideo(ctx, video.ID)
		if err != nil || byVideo.ID != artifact.ID {
			t.Errorf("expected artifact by video, got %v %v", byVideo, err)
		}
	})

	t.Run("RecordArtifactPathConflict", func(t *testing.T) {
		s := newStore(t)
		v1, _ := s.ResolveVideo(ctx, "v1", "https://example.com/v1", "Intro")
		v2, _ := s.ResolveVideo(ctx, "v2", "https://example.com/v2", "Intro")

		first, err := s.RecordArtifact(ctx, v1.ID, "/dl/Intro.mp3")
		if err != nil {
			t.Fatalf("failed to record artifact: %v", err)
		}

		_, err = s.RecordArtifact(ctx, v2.ID, "/dl/Intro.mp3")
		if !errors.Is(err, shared.ErrPathConflict) {
			t.Fatalf("expected ErrPathConflict, got %v", err)
		}
		if errors.Is(err, shared.ErrDuplicateArtifact) {
			t.Error("path collision across videos is not a duplicate artifact")
		}

		artifacts, _ := s.ListArtifacts(ctx)
		if len(artifacts) != 1 || artifacts[0].ID != first.ID {
			t.Errorf("expected only the first artifact, got %d", len(artifacts))
		}
		if _, err := s.GetArtifactByVideo(ctx, v2.ID); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected no artifact for second video, got %v", err)
		}

		if err := s.DeleteArtifact(ctx, first.ID); err != nil {
			t.Fatalf("DeleteArtifact failed: %v", err)
		}
		if _, err := s.RecordArtifact(ctx, v2.ID, "/dl/Intro.mp3"); err != nil {
			t.Errorf("expected path to be free after delete, got %v", err)
		}
	})

	t.Run("RecordArtifactConcurrent", func(t *testing.T) {
		s := newStore(t)
		video, _ := s.ResolveVideo(ctx, "v1", "https://example.com/v1", "First")

		var wg sync.WaitGroup
		var mu sync.Mutex
		winners := map[int64]bool{}
		for i := range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				path := "/tmp/v1-" + string(rune('a'+i)) + ".mp3"
				a, err := s.RecordArtifact(ctx, video.ID, path)
				if err != nil && !errors.Is(err, shared.ErrDuplicateArtifact) {
					t.Errorf("unexpected error: %v", err)
					return
				}
				mu.Lock()
				winners[a.ID] = true
				mu.Unlock()
			}()
		}
		wg.Wait()

		if len(winners) != 1 {
			t.Errorf("expected a single artifact, got %v", winners)
		}
	})

	t.Run("RecordArtifactUnknownVideo", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.RecordArtifact(ctx, 999, "/tmp/x.mp3"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ListJobsByVideo", func(t *testing.T) {
		s := newStore(t)
		video, _ := s.ResolveVideo(ctx, "v1", "https://example.com/v1", "First")
		a, _ := s.CreateJob(ctx)
		_, _ = s.CreateJob(ctx)
		c, _ := s.CreateJob(ctx)

		for _, id := range []int64{a.ID, c.ID} {
			if _, err := s.UpdateJob(ctx, id, models.JobUpdate{}.WithVideo(video.ID)); err != nil {
				t.Fatalf("failed to attach video: %v", err)
			}
		}

		jobs, err := s.ListJobsByVideo(ctx, video.ID)
		if err != nil {
			t.Fatalf("failed to list jobs: %v", err)
		}
		if len(jobs) != 2 || jobs[0].ID != a.ID || jobs[1].ID != c.ID {
			t.Errorf("expected jobs %d and %d, got %v", a.ID, c.ID, jobs)
		}
	})

	t.Run("DeleteJobKeepsArtifact", func(t *testing.T) {
		s := newStore(t)
		video, _ := s.ResolveVideo(ctx, "v1", "https://example.com/v1", "First")
		artifact, _ := s.RecordArtifact(ctx, video.ID, "/tmp/v1.mp3")
		job, _ := s.CreateJob(ctx)
		u := models.JobUpdate{}.WithVideo(video.ID).WithArtifact(artifact.ID).WithStatus(models.StatusFinished).WithProgress(100)
		if _, err := s.UpdateJob(ctx, job.ID, u); err != nil {
			t.Fatalf("failed to finish job: %v", err)
		}

		if err := s.DeleteJob(ctx, job.ID); err != nil {
			t.Fatalf("failed to delete job: %v", err)
		}
		if _, err := s.GetArtifact(ctx, artifact.ID); err != nil {
			t.Errorf("artifact should survive job deletion: %v", err)
		}
	})

	t.Run("DeleteArtifactClearsReferences", func(t *testing.T) {
		s := newStore(t)
		video, _ := s.ResolveVideo(ctx, "v1", "https://example.com/v1", "First")
		artifact, _ := s.RecordArtifact(ctx, video.ID, "/tmp/v1.mp3")
		job, _ := s.CreateJob(ctx)
		u := models.JobUpdate{}.WithVideo(video.ID).WithArtifact(artifact.ID).WithStatus(models.StatusFinished).WithProgress(100)
		if _, err := s.UpdateJob(ctx, job.ID, u); err != nil {
			t.Fatalf("failed to finish job: %v", err)
		}

		if err := s.DeleteArtifact(ctx, artifact.ID); err != nil {
			t.Fatalf("failed to delete artifact: %v", err)
		}

		got, _ := s.GetJob(ctx, job.ID)
		if got.ArtifactID != nil {
			t.Errorf("expected cleared artifact reference, got %d", *got.ArtifactID)
		}
		if got.Status != models.StatusFinished {
			t.Errorf("job status should be kept, got %s", got.Status)
		}
		if _, err := s.GetArtifactByVideo(ctx, video.ID); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if err := s.DeleteArtifact(ctx, artifact.ID); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound on second delete, got %v", err)
		}

		again, err := s.RecordArtifact(ctx, video.ID, "/tmp/v1.mp3")
		if err != nil {
			t.Fatalf("video should accept a new artifact: %v", err)
		}
		arts, _ := s.ListArtifacts(ctx)
		if len(arts) != 1 || arts[0].ID != again.ID {
			t.Errorf("expected only the new artifact, got %v", arts)
		}
	})
}
