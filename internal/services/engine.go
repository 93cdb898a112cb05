package services

import (
	"context"

	"github.com/desertthunder/dlapi/internal/models"
)

// Engine downloads remote media and reports progress as typed events.
type Engine interface {
	// Probe reads metadata for url without downloading it.
	Probe(ctx context.Context, url string) (*models.VideoInfo, error)

	// Download fetches url, sending events in the order the engine produced them.
	// It returns once the engine exits; the caller owns and closes events.
	Download(ctx context.Context, url string, events chan<- models.Event) error
}
