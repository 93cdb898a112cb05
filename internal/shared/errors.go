package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Authentication errors
	ErrUnauthorized = fmt.Errorf("unauthorized")

	// Registry errors
	ErrNotFound          = fmt.Errorf("not found")
	ErrInvalidTransition = fmt.Errorf("invalid status transition")
	ErrInvalidProgress   = fmt.Errorf("progress out of range")
	ErrDuplicateArtifact = fmt.Errorf("artifact already recorded")
	ErrPathConflict      = fmt.Errorf("artifact path belongs to another video")

	// Engine errors
	ErrProbeFailed    = fmt.Errorf("probe failed")
	ErrDownloadFailed = fmt.Errorf("download failed")
	ErrMalformedEvent = fmt.Errorf("malformed engine event")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
