// Package tasks turns download requests into tracked jobs.
//
// # Progress Dispatcher
//
// [Dispatcher] converts engine [models.Event] values into job updates. [Classify] maps the
// (stage, postprocessor, status) triple of an event to a [Transition] through a lookup table;
// combinations missing from the table are [TransitionMalformed] and surface as
// [shared.ErrMalformedEvent]. An event is applied to every job referencing the event's video.
// Jobs that are terminal, deleted or would move backwards are skipped.
//
// The MoveFiles finished transition records the artifact through [models.ArtifactStore.RecordArtifact].
// When another download already recorded one the existing record wins and a differing loser
// file is removed.
//
// # Submission Coordinator
//
// [Coordinator.Submit] creates a job and returns at once. A goroutine then probes the URL,
// resolves the video and either:
//  1. finishes the job from the existing artifact (skip path),
//  2. joins a download of the same video that is already running, or
//  3. runs the engine and feeds its events to the dispatcher.
//
// After a download returns, jobs of that video that are still running are reconciled to
// FINISHED when an artifact exists and to ERROR otherwise.
//
// Engine usage is bounded by a probe rate limiter and a maximum number of parallel downloads.
//
// # Status Notifications
//
// [Dispatcher.Notify] registers a channel that receives a [StatusChange] after every applied
// update. Sends never block; a full channel drops the notification.
package tasks
