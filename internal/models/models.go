package models

import (
	"context"
)

// JobStore is the Job Registry: the client-visible map of job id to job record.
//
// Implementations return copies; callers never observe a partially applied update.
type JobStore interface {
	CreateJob(ctx context.Context) (*Job, error)                        // CreateJob allocates a STARTED job with a never-reused id
	GetJob(ctx context.Context, id int64) (*Job, error)                 // GetJob returns a snapshot or an error wrapping shared.ErrNotFound
	ListJobs(ctx context.Context) ([]*Job, error)                       // ListJobs returns all jobs in insertion order
	ListJobsByVideo(ctx context.Context, videoID int64) ([]*Job, error) // ListJobsByVideo returns the jobs referencing a video
	UpdateJob(ctx context.Context, id int64, u JobUpdate) (*Job, error) // UpdateJob atomically applies the supplied fields
	DeleteJob(ctx context.Context, id int64) error                      // DeleteJob removes a job; shared artifacts are kept
}

// VideoStore is the Video Identity Resolver.
type VideoStore interface {
	// ResolveVideo returns the video with externalID, creating it from url and title when unknown.
	// Existing records are never updated.
	ResolveVideo(ctx context.Context, externalID, url, title string) (*Video, error)
	GetVideo(ctx context.Context, id int64) (*Video, error)
	GetVideoByExternalID(ctx context.Context, externalID string) (*Video, error)
}

// ArtifactStore is the Artifact Registry.
type ArtifactStore interface {
	GetArtifact(ctx context.Context, id int64) (*Artifact, error)
	// GetArtifactByVideo returns the video's artifact or an error wrapping shared.ErrNotFound.
	GetArtifactByVideo(ctx context.Context, videoID int64) (*Artifact, error)
	// RecordArtifact stores the produced file of a video. It is the linearization point for
	// concurrent downloads of the same video: when an artifact already exists it returns that
	// record along with a [*DuplicateArtifactError].
	RecordArtifact(ctx context.Context, videoID int64, path string) (*Artifact, error)
	ListArtifacts(ctx context.Context) ([]*Artifact, error)
	// DeleteArtifact removes the record and clears job references to it. The file is left to the caller.
	DeleteArtifact(ctx context.Context, id int64) error
}

// Store combines the three registries.
type Store interface {
	JobStore
	VideoStore
	ArtifactStore
}
