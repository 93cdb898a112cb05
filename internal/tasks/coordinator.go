package tasks

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/dlapi/internal/models"
	"github.com/desertthunder/dlapi/internal/services"
	"github.com/desertthunder/dlapi/internal/shared"
	"golang.org/x/time/rate"
)

// CoordinatorOpts bounds engine usage.
type CoordinatorOpts struct {
	MaxParallel int     // Concurrent downloads (default: 3)
	ProbeRate   float64 // Probes per second (default: 2)
	EventBuffer int     // Per-download event channel size (default: 64)
}

// Coordinator accepts submissions and drives each one to a terminal status in the background.
type Coordinator struct {
	ctx        context.Context
	store      models.Store
	engine     services.Engine
	dispatcher *Dispatcher
	logger     *log.Logger

	limiter     *rate.Limiter
	slots       chan struct{}
	eventBuffer int

	mu       sync.Mutex
	inflight map[int64]struct{} // video ids with a running download

	wg sync.WaitGroup
}

// NewCoordinator creates a Coordinator. Background work stops early when ctx is cancelled.
func NewCoordinator(ctx context.Context, store models.Store, engine services.Engine, dispatcher *Dispatcher, logger *log.Logger, opts CoordinatorOpts) *Coordinator {
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = 3
	}
	if opts.ProbeRate <= 0 {
		opts.ProbeRate = 2
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 64
	}

	return &Coordinator{
		ctx:         ctx,
		store:       store,
		engine:      engine,
		dispatcher:  dispatcher,
		logger:      shared.WithLogger(logger, "component", "coordinator"),
		limiter:     rate.NewLimiter(rate.Limit(opts.ProbeRate), 1),
		slots:       make(chan struct{}, opts.MaxParallel),
		eventBuffer: opts.EventBuffer,
		inflight:    make(map[int64]struct{}),
	}
}

// ValidateURL accepts absolute http and https URLs.
func ValidateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("%w: url is required", shared.ErrInvalidInput)
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: url must be an absolute http(s) url", shared.ErrInvalidInput)
	}
	return nil
}

// Submit creates a STARTED job for rawURL and processes it in the background.
func (c *Coordinator) Submit(ctx context.Context, rawURL string) (*models.Job, error) {
	if err := ValidateURL(rawURL); err != nil {
		return nil, err
	}

	job, err := c.store.CreateJob(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	c.logger.Info("job created", "job", job.ID, "url", rawURL)

	c.wg.Add(1)
	go c.process(job.ID, rawURL)

	return job, nil
}

// Wait blocks until every submitted job has been processed.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// DeleteJob removes a job record. A running download keeps going for the video's other jobs.
func (c *Coordinator) DeleteJob(ctx context.Context, id int64) error {
	if err := c.store.DeleteJob(ctx, id); err != nil {
		return err
	}
	c.logger.Info("job deleted", "job", id)
	return nil
}

// DeleteArtifact removes the artifact record and its file. It holds the coordinator lock so a
// skip path or reconcile never finishes jobs from an artifact being deleted.
func (c *Coordinator) DeleteArtifact(ctx context.Context, id int64) error {
	c.mu.Lock()
	artifact, err := c.store.GetArtifact(ctx, id)
	if err == nil {
		err = c.store.DeleteArtifact(ctx, id)
	}
	c.mu.Unlock()
	if err != nil {
		return err
	}
	if err := os.Remove(artifact.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("artifact %d deleted but file remains: %w", id, err)
	}
	c.logger.Info("artifact deleted", "artifact", id, "path", artifact.Path)
	return nil
}

func (c *Coordinator) process(jobID int64, rawURL string) {
	defer c.wg.Done()

	ctx := c.ctx
	logger := c.logger.With("job", jobID)

	if err := c.limiter.Wait(ctx); err != nil {
		c.failJob(jobID, err)
		return
	}

	info, err := c.engine.Probe(ctx, rawURL)
	if err != nil {
		logger.Warn("probe failed", "url", rawURL, "error", err)
		c.failJob(jobID, err)
		return
	}

	video, err := c.store.ResolveVideo(ctx, info.ID, rawURL, info.Title)
	if err != nil {
		logger.Error("failed to resolve video", "external_id", info.ID, "error", err)
		c.failJob(jobID, err)
		return
	}

	c.mu.Lock()
	if _, err := c.store.UpdateJob(ctx, jobID, models.JobUpdate{}.WithVideo(video.ID)); err != nil {
		c.mu.Unlock()
		if errors.Is(err, shared.ErrNotFound) {
			logger.Debug("job deleted before download started")
			return
		}
		logger.Error("failed to attach video", "video", video.ID, "error", err)
		c.failJob(jobID, err)
		return
	}

	artifact, err := c.store.GetArtifactByVideo(ctx, video.ID)
	switch {
	case err == nil:
		logger.Info("artifact exists, skipping download", "video", video.ID, "artifact", artifact.ID)
		err := c.dispatcher.FinishVideo(ctx, video, artifact)
		c.mu.Unlock()
		if err != nil {
			logger.Error("failed to finish from existing artifact", "error", err)
			c.failJob(jobID, err)
		}
		return
	case !errors.Is(err, shared.ErrNotFound):
		c.mu.Unlock()
		c.failJob(jobID, err)
		return
	}

	if _, running := c.inflight[video.ID]; running {
		c.mu.Unlock()
		logger.Info("joined in-flight download", "video", video.ID)
		return
	}
	c.inflight[video.ID] = struct{}{}
	c.mu.Unlock()

	c.download(ctx, video, rawURL)
}

// download runs the engine for video and reconciles the video's jobs afterwards.
func (c *Coordinator) download(ctx context.Context, video *models.Video, rawURL string) {
	logger := c.logger.With("video", video.ID, "external_id", video.ExternalID)

	var dlErr, consumeErr error
	defer func() { c.reconcile(video, errors.Join(dlErr, consumeErr)) }()

	select {
	case c.slots <- struct{}{}:
	case <-ctx.Done():
		dlErr = ctx.Err()
		return
	}
	defer func() { <-c.slots }()

	events := make(chan models.Event, c.eventBuffer)
	done := make(chan error, 1)
	go func() {
		done <- c.dispatcher.Consume(ctx, events)
	}()

	logger.Info("download started", "url", rawURL)
	dlErr = c.engine.Download(ctx, rawURL, events)
	close(events)
	consumeErr = <-done

	if dlErr != nil {
		logger.Error("download failed", "error", dlErr)
	} else {
		logger.Info("download finished")
	}
}

// reconcile clears the in-flight mark and settles every job of video the events left running.
// It holds the coordinator lock so a concurrent submission either joined before or sees the
// artifact after.
func (c *Coordinator) reconcile(video *models.Video, cause error) {
	ctx := context.WithoutCancel(c.ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, video.ID)

	var err error
	artifact, lookupErr := c.store.GetArtifactByVideo(ctx, video.ID)
	switch {
	case errors.Is(cause, shared.ErrMalformedEvent), lookupErr != nil:
		err = c.dispatcher.FailVideo(ctx, video.ID)
	default:
		err = c.dispatcher.FinishVideo(ctx, video, artifact)
	}
	if err != nil {
		c.logger.Error("failed to reconcile jobs", "video", video.ID, "error", err)
	}
}

func (c *Coordinator) failJob(jobID int64, cause error) {
	ctx := context.WithoutCancel(c.ctx)
	_, err := c.store.UpdateJob(ctx, jobID, models.JobUpdate{}.WithStatus(models.StatusError))
	switch {
	case err == nil:
		c.logger.Info("job failed", "job", jobID, "cause", cause)
	case errors.Is(err, shared.ErrNotFound), errors.Is(err, shared.ErrInvalidTransition):
		c.logger.Debug("job not failed", "job", jobID, "reason", err)
	default:
		c.logger.Error("failed to mark job as failed", "job", jobID, "error", err)
	}
}
