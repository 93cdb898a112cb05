package models

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/desertthunder/dlapi/internal/shared"
)

// Video is the canonical record of a distinct source video.
type Video struct {
	ID         int64     `json:"id"`
	ExternalID string    `json:"external_id"`
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	CreatedAt  time.Time `json:"created_at"`
}

// Validate checks required fields.
func (v *Video) Validate() error {
	if v.ExternalID == "" {
		return fmt.Errorf("%w: video external id is required", shared.ErrInvalidInput)
	}
	if v.URL == "" {
		return fmt.Errorf("%w: video url is required", shared.ErrInvalidInput)
	}
	return nil
}

// Artifact is the produced output file of a [Video].
type Artifact struct {
	ID        int64     `json:"id"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
	VideoID   int64     `json:"video_id"`
}

// Filename returns the base name of the artifact's path.
func (a *Artifact) Filename() string {
	return filepath.Base(a.Path)
}

// DuplicateArtifactError is returned by [ArtifactStore.RecordArtifact] when the video already has
// an artifact. Existing holds the record that won.
type DuplicateArtifactError struct {
	Existing *Artifact
	Path     string
}

func (e *DuplicateArtifactError) Error() string {
	return fmt.Sprintf("%v: video %d already has %s (rejected %s)", shared.ErrDuplicateArtifact, e.Existing.VideoID, e.Existing.Path, e.Path)
}

func (e *DuplicateArtifactError) Unwrap() error {
	return shared.ErrDuplicateArtifact
}

// AsDuplicateArtifact extracts the winning artifact from err, if err is a [*DuplicateArtifactError].
func AsDuplicateArtifact(err error) (*Artifact, bool) {
	var dup *DuplicateArtifactError
	if errors.As(err, &dup) {
		return dup.Existing, true
	}
	return nil, false
}

// VideoInfo is what the download engine reports when probing a URL.
type VideoInfo struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"webpage_url"`
}
