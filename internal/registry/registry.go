// Package registry implements [models.Store] in memory.
//
// A single RWMutex guards jobs, videos and artifacts so that every operation, including
// the cross-table clean up done by [Registry.DeleteArtifact], is atomic. All returned values
// are copies.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/desertthunder/dlapi/internal/models"
	"github.com/desertthunder/dlapi/internal/shared"
)

// Registry is the in-memory [models.Store].
type Registry struct {
	mu sync.RWMutex

	jobs     map[int64]*models.Job
	jobOrder []int64
	nextJob  int64

	videos     map[int64]*models.Video
	byExternal map[string]int64
	nextVideo  int64

	artifacts     map[int64]*models.Artifact
	artifactOrder []int64
	byVideo       map[int64]int64
	byPath        map[string]int64
	nextArtifact  int64

	now func() time.Time
}

var _ models.Store = (*Registry)(nil)

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		jobs:       make(map[int64]*models.Job),
		videos:     make(map[int64]*models.Video),
		byExternal: make(map[string]int64),
		artifacts:  make(map[int64]*models.Artifact),
		byVideo:    make(map[int64]int64),
		byPath:     make(map[string]int64),
		now:        time.Now,
	}
}

// CreateJob allocates a STARTED job. Ids start at 1 and are never reused.
func (r *Registry) CreateJob(ctx context.Context) (*models.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextJob++
	job := models.NewJob(r.nextJob, r.now().UTC())
	r.jobs[job.ID] = job
	r.jobOrder = append(r.jobOrder, job.ID)
	return job.Clone(), nil
}

func (r *Registry) GetJob(ctx context.Context, id int64) (*models.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: job %d", shared.ErrNotFound, id)
	}
	return job.Clone(), nil
}

func (r *Registry) ListJobs(ctx context.Context) ([]*models.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	jobs := make([]*models.Job, 0, len(r.jobs))
	for _, id := range r.jobOrder {
		if job, ok := r.jobs[id]; ok {
			jobs = append(jobs, job.Clone())
		}
	}
	return jobs, nil
}

func (r *Registry) ListJobsByVideo(ctx context.Context, videoID int64) ([]*models.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var jobs []*models.Job
	for _, id := range r.jobOrder {
		job, ok := r.jobs[id]
		if ok && job.VideoID != nil && *job.VideoID == videoID {
			jobs = append(jobs, job.Clone())
		}
	}
	return jobs, nil
}

// UpdateJob applies u under the write lock. The stored job is replaced only when u is valid.
func (r *Registry) UpdateJob(ctx context.Context, id int64, u models.JobUpdate) (*models.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: job %d", shared.ErrNotFound, id)
	}

	next := job.Clone()
	if err := next.Apply(u); err != nil {
		return nil, err
	}
	if u.VideoID != nil {
		if _, ok := r.videos[*u.VideoID]; !ok {
			return nil, fmt.Errorf("%w: video %d", shared.ErrNotFound, *u.VideoID)
		}
	}
	if u.ArtifactID != nil {
		if _, ok := r.artifacts[*u.ArtifactID]; !ok {
			return nil, fmt.Errorf("%w: artifact %d", shared.ErrNotFound, *u.ArtifactID)
		}
	}

	r.jobs[id] = next
	return next.Clone(), nil
}

func (r *Registry) DeleteJob(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[id]; !ok {
		return fmt.Errorf("%w: job %d", shared.ErrNotFound, id)
	}
	delete(r.jobs, id)
	r.jobOrder = without(r.jobOrder, id)
	return nil
}

// ResolveVideo returns the existing video for externalID or creates one.
func (r *Registry) ResolveVideo(ctx context.Context, externalID, url, title string) (*models.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byExternal[externalID]; ok {
		v := *r.videos[id]
		return &v, nil
	}

	r.nextVideo++
	video := &models.Video{
		ID:         r.nextVideo,
		ExternalID: externalID,
		URL:        url,
		Title:      title,
		CreatedAt:  r.now().UTC(),
	}
	if err := video.Validate(); err != nil {
		r.nextVideo--
		return nil, err
	}

	r.videos[video.ID] = video
	r.byExternal[externalID] = video.ID
	v := *video
	return &v, nil
}

func (r *Registry) GetVideo(ctx context.Context, id int64) (*models.Video, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	video, ok := r.videos[id]
	if !ok {
		return nil, fmt.Errorf("%w: video %d", shared.ErrNotFound, id)
	}
	v := *video
	return &v, nil
}

func (r *Registry) GetVideoByExternalID(ctx context.Context, externalID string) (*models.Video, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byExternal[externalID]
	if !ok {
		return nil, fmt.Errorf("%w: video %q", shared.ErrNotFound, externalID)
	}
	v := *r.videos[id]
	return &v, nil
}

func (r *Registry) GetArtifact(ctx context.Context, id int64) (*models.Artifact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	artifact, ok := r.artifacts[id]
	if !ok {
		return nil, fmt.Errorf("%w: artifact %d", shared.ErrNotFound, id)
	}
	a := *artifact
	return &a, nil
}

func (r *Registry) GetArtifactByVideo(ctx context.Context, videoID int64) (*models.Artifact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byVideo[videoID]
	if !ok {
		return nil, fmt.Errorf("%w: artifact for video %d", shared.ErrNotFound, videoID)
	}
	a := *r.artifacts[id]
	return &a, nil
}

// RecordArtifact stores the first artifact of a video. Later calls return the winner
// and a [*models.DuplicateArtifactError]. A path already owned by another video is rejected
// with [shared.ErrPathConflict].
func (r *Registry) RecordArtifact(ctx context.Context, videoID int64, path string) (*models.Artifact, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: artifact path is required", shared.ErrInvalidInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.videos[videoID]; !ok {
		return nil, fmt.Errorf("%w: video %d", shared.ErrNotFound, videoID)
	}

	if id, ok := r.byPath[path]; ok && r.artifacts[id].VideoID != videoID {
		return nil, fmt.Errorf("%w: %s belongs to video %d", shared.ErrPathConflict, path, r.artifacts[id].VideoID)
	}
	if id, ok := r.byVideo[videoID]; ok {
		existing := *r.artifacts[id]
		return &existing, &models.DuplicateArtifactError{Existing: &existing, Path: path}
	}

	r.nextArtifact++
	artifact := &models.Artifact{
		ID:        r.nextArtifact,
		Path:      path,
		CreatedAt: r.now().UTC(),
		VideoID:   videoID,
	}
	r.artifacts[artifact.ID] = artifact
	r.artifactOrder = append(r.artifactOrder, artifact.ID)
	r.byVideo[videoID] = artifact.ID
	r.byPath[path] = artifact.ID

	a := *artifact
	return &a, nil
}

func (r *Registry) ListArtifacts(ctx context.Context) ([]*models.Artifact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	artifacts := make([]*models.Artifact, 0, len(r.artifacts))
	for _, id := range r.artifactOrder {
		if artifact, ok := r.artifacts[id]; ok {
			a := *artifact
			artifacts = append(artifacts, &a)
		}
	}
	return artifacts, nil
}

// DeleteArtifact removes the record and clears every job's reference to it.
func (r *Registry) DeleteArtifact(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	artifact, ok := r.artifacts[id]
	if !ok {
		return fmt.Errorf("%w: artifact %d", shared.ErrNotFound, id)
	}

	delete(r.artifacts, id)
	delete(r.byVideo, artifact.VideoID)
	delete(r.byPath, artifact.Path)
	r.artifactOrder = without(r.artifactOrder, id)

	for _, job := range r.jobs {
		if job.ArtifactID != nil && *job.ArtifactID == id {
			job.ArtifactID = nil
		}
	}
	return nil
}

func without(ids []int64, id int64) []int64 {
	for i, v := range ids {
		if v == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}
	return ids
}
