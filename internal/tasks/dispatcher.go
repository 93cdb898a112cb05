package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/dlapi/internal/models"
	"github.com/desertthunder/dlapi/internal/shared"
)

// Transition is the effect an event has on the jobs of its video.
type Transition int

const (
	TransitionMalformed Transition = iota
	TransitionIgnore
	TransitionProgress
	TransitionDownloaded
	TransitionFailed
	TransitionPostprocessing
	TransitionPostprocessed
	TransitionFinish
)

func (t Transition) String() string {
	switch t {
	case TransitionIgnore:
		return "ignore"
	case TransitionProgress:
		return "progress"
	case TransitionDownloaded:
		return "downloaded"
	case TransitionFailed:
		return "failed"
	case TransitionPostprocessing:
		return "postprocessing"
	case TransitionPostprocessed:
		return "postprocessed"
	case TransitionFinish:
		return "finish"
	default:
		return "malformed"
	}
}

type eventKey struct {
	stage         models.Stage
	postprocessor string
	status        models.EventStatus
}

// fixupPostprocessors are container repairs yt-dlp runs on its own before audio extraction.
// They do not move a job between statuses.
var fixupPostprocessors = []string{
	"FixupM4a",
	"FixupM3u8",
	"FixupStretched",
	"FixupDuration",
	"FixupTimestamp",
	"FixupDuplicateMoov",
}

var transitions = withFixups(map[eventKey]Transition{
	{models.StageDownload, "", models.EventDownloading}: TransitionProgress,
	{models.StageDownload, "", models.EventFinished}:    TransitionDownloaded,
	{models.StageDownload, "", models.EventError}:       TransitionFailed,

	{models.StagePostprocessor, models.PostprocessorExtractAudio, models.EventStarted}:    TransitionPostprocessing,
	{models.StagePostprocessor, models.PostprocessorExtractAudio, models.EventProcessing}: TransitionPostprocessing,
	{models.StagePostprocessor, models.PostprocessorExtractAudio, models.EventFinished}:   TransitionPostprocessed,

	{models.StagePostprocessor, models.PostprocessorMoveFiles, models.EventStarted}:    TransitionIgnore,
	{models.StagePostprocessor, models.PostprocessorMoveFiles, models.EventProcessing}: TransitionIgnore,
	{models.StagePostprocessor, models.PostprocessorMoveFiles, models.EventFinished}:   TransitionFinish,
})

func withFixups(table map[eventKey]Transition) map[eventKey]Transition {
	for _, pp := range fixupPostprocessors {
		for _, status := range []models.EventStatus{models.EventStarted, models.EventProcessing, models.EventFinished} {
			table[eventKey{models.StagePostprocessor, pp, status}] = TransitionIgnore
		}
	}
	return table
}

// Classify looks up the transition for ev.
func Classify(ev models.Event) Transition {
	key := eventKey{stage: ev.Stage, status: ev.Status}
	if ev.Stage == models.StagePostprocessor {
		key.postprocessor = ev.Postprocessor
	}
	if t, ok := transitions[key]; ok {
		return t
	}
	return TransitionMalformed
}

// StatusChange is sent to a [Dispatcher.Notify] channel after a job update is applied.
type StatusChange struct {
	JobID    int64
	From     models.JobStatus
	To       models.JobStatus
	Progress int
}

// Dispatcher applies engine events to the job registry.
type Dispatcher struct {
	store   models.Store
	logger  *log.Logger
	updates chan<- StatusChange
}

// NewDispatcher creates a Dispatcher writing to store.
func NewDispatcher(store models.Store, logger *log.Logger) *Dispatcher {
	return &Dispatcher{store: store, logger: shared.WithLogger(logger, "component", "dispatcher")}
}

// Notify registers ch to receive a [StatusChange] for every applied update.
func (d *Dispatcher) Notify(ch chan<- StatusChange) {
	d.updates = ch
}

// sendUpdate sends a change without blocking.
func (d *Dispatcher) sendUpdate(change StatusChange) {
	if d.updates == nil {
		return
	}
	select {
	case d.updates <- change:
	default:
	}
}

// LogStatusChanges writes each change to logger at debug level until ctx is done or changes is closed.
func LogStatusChanges(ctx context.Context, logger *log.Logger, changes <-chan StatusChange) {
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-changes:
			if !ok {
				return
			}
			logger.Debug("job status", "job", c.JobID, "from", c.From, "to", c.To, "progress", c.Progress)
		}
	}
}

// Dispatch applies ev to every job referencing its video.
func (d *Dispatcher) Dispatch(ctx context.Context, ev models.Event) error {
	t := Classify(ev)
	switch t {
	case TransitionMalformed:
		return fmt.Errorf("%w: %s", shared.ErrMalformedEvent, ev)
	case TransitionIgnore:
		d.logger.Debug("event ignored", "event", ev)
		return nil
	}

	video, err := d.store.GetVideoByExternalID(ctx, ev.Info.ExternalVideoID)
	if err != nil {
		return fmt.Errorf("event for unknown video: %w", err)
	}

	var u models.JobUpdate
	switch t {
	case TransitionProgress:
		u = u.WithStatus(models.StatusInProgress)
		if ev.Info.TotalBytes > 0 {
			u = u.WithProgress(Percent(ev.Info.DownloadedBytes, ev.Info.TotalBytes))
		}
	case TransitionDownloaded:
		u = u.WithStatus(models.StatusDownloaded).WithProgress(100)
	case TransitionFailed:
		u = u.WithStatus(models.StatusError)
	case TransitionPostprocessing:
		u = u.WithStatus(models.StatusPostprocessing)
	case TransitionPostprocessed:
		u = u.WithStatus(models.StatusPostprocessingDone)
	case TransitionFinish:
		artifact, err := d.recordArtifact(ctx, video.ID, ev.Info.FinalPath)
		if err != nil {
			return err
		}
		u = finishUpdate(artifact)
	}

	return d.apply(ctx, video.ID, u)
}

// Consume dispatches events until the channel is closed.
//
// The first error is returned. After a malformed event the remaining events are drained without
// being applied so the engine never blocks on a full channel.
func (d *Dispatcher) Consume(ctx context.Context, events <-chan models.Event) error {
	var first error
	for ev := range events {
		if errors.Is(first, shared.ErrMalformedEvent) {
			continue
		}
		if err := d.Dispatch(ctx, ev); err != nil {
			d.logger.Error("failed to dispatch event", "event", ev, "error", err)
			if first == nil || errors.Is(err, shared.ErrMalformedEvent) {
				first = err
			}
		}
	}
	return first
}

// FailVideo moves every non-terminal job of videoID to ERROR.
func (d *Dispatcher) FailVideo(ctx context.Context, videoID int64) error {
	return d.apply(ctx, videoID, models.JobUpdate{}.WithStatus(models.StatusError))
}

// FinishVideo finishes every non-terminal job of video with an artifact that is already recorded.
// It never records one, so an artifact deleted since it was read yields [shared.ErrNotFound].
func (d *Dispatcher) FinishVideo(ctx context.Context, video *models.Video, artifact *models.Artifact) error {
	if _, err := d.store.GetArtifact(ctx, artifact.ID); err != nil {
		return fmt.Errorf("artifact %d of video %d: %w", artifact.ID, video.ID, err)
	}
	return d.apply(ctx, video.ID, finishUpdate(artifact))
}

func finishUpdate(artifact *models.Artifact) models.JobUpdate {
	return models.JobUpdate{}.WithStatus(models.StatusFinished).WithProgress(100).WithArtifact(artifact.ID)
}

// recordArtifact stores path as the video's artifact. When another download won, its record is
// used and path is removed unless it is the same file.
func (d *Dispatcher) recordArtifact(ctx context.Context, videoID int64, path string) (*models.Artifact, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: MoveFiles finished without a final path", shared.ErrMalformedEvent)
	}

	artifact, err := d.store.RecordArtifact(ctx, videoID, path)
	if err == nil {
		d.logger.Info("artifact recorded", "video", videoID, "artifact", artifact.ID, "path", artifact.Path)
		return artifact, nil
	}

	existing, ok := models.AsDuplicateArtifact(err)
	if !ok {
		return nil, err
	}

	if existing.Path != path {
		d.logger.Warn("duplicate download discarded", "video", videoID, "kept", existing.Path, "removed", path)
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			d.logger.Error("failed to remove duplicate file", "path", path, "error", err)
		}
	}
	return existing, nil
}

// apply fans u out to the video's jobs. Jobs that cannot take the update are skipped.
func (d *Dispatcher) apply(ctx context.Context, videoID int64, u models.JobUpdate) error {
	jobs, err := d.store.ListJobsByVideo(ctx, videoID)
	if err != nil {
		return err
	}

	for _, job := range jobs {
		if job.Status.IsTerminal() {
			continue
		}

		updated, err := d.store.UpdateJob(ctx, job.ID, u)
		switch {
		case errors.Is(err, shared.ErrInvalidTransition), errors.Is(err, shared.ErrNotFound):
			d.logger.Debug("job skipped", "job", job.ID, "reason", err)
			continue
		case err != nil:
			return fmt.Errorf("failed to update job %d: %w", job.ID, err)
		}

		if updated.Status != job.Status {
			d.logger.Info("job status changed", "job", job.ID, "from", job.Status, "to", updated.Status, "progress", updated.Progress)
		}
		d.sendUpdate(StatusChange{JobID: job.ID, From: job.Status, To: updated.Status, Progress: updated.Progress})
	}
	return nil
}

// Percent returns floor(done*100/total) clamped to [0,100].
func Percent(done, total int64) int {
	if total <= 0 || done <= 0 {
		return 0
	}
	if done >= total {
		return 100
	}
	return int(done * 100 / total)
}
