package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/desertthunder/dlapi/internal/formatter"
	"github.com/desertthunder/dlapi/internal/models"
	"github.com/desertthunder/dlapi/internal/shared"
	"github.com/urfave/cli/v3"
)

// parseID reads a positive numeric id argument.
func parseID(cmd *cli.Command, name string) (int64, error) {
	raw := cmd.StringArg(name)
	if raw == "" {
		return 0, fmt.Errorf("%w: %s", shared.ErrMissingArgument, name)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer, got %q", shared.ErrInvalidArgument, name, raw)
	}
	return id, nil
}

// JobSubmit submits a URL and prints the new job id, optionally waiting for completion.
func (r *Runner) JobSubmit(ctx context.Context, cmd *cli.Command) error {
	url := cmd.StringArg("url")
	if url == "" {
		return fmt.Errorf("%w: url", shared.ErrMissingArgument)
	}

	id, err := r.client().SubmitJob(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to submit job: %w", err)
	}
	r.logger.Info("job submitted", "id", id, "url", url)

	if !cmd.Bool("wait") {
		return r.writePlain("%d\n", id)
	}
	return r.wait(ctx, id, cmd)
}

// JobList prints every job known to the server.
func (r *Runner) JobList(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	jobs, err := r.client().ListJobs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}
	return formatter.WriteJobs(r.output, format, jobs)
}

// JobGet prints one job.
func (r *Runner) JobGet(ctx context.Context, cmd *cli.Command) error {
	id, err := parseID(cmd, "id")
	if err != nil {
		return err
	}

	job, err := r.client().GetJob(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get job %d: %w", id, err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(job, true)
	}
	return r.writePlain("%s\n", formatter.JobLine(job))
}

// JobWait polls a job until it reaches FINISHED or ERROR.
func (r *Runner) JobWait(ctx context.Context, cmd *cli.Command) error {
	id, err := parseID(cmd, "id")
	if err != nil {
		return err
	}

	if timeout := cmd.Duration("timeout"); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return r.wait(ctx, id, cmd)
}

func (r *Runner) wait(ctx context.Context, id int64, cmd *cli.Command) error {
	var last string
	job, err := r.client().WaitJob(ctx, id, cmd.Duration("interval"), func(job *models.Job) {
		if line := formatter.JobLine(job); line != last {
			last = line
			r.writePlain("%s\n", line)
		}
	})
	if err != nil {
		return fmt.Errorf("failed waiting for job %d: %w", id, err)
	}

	if job.Status == models.StatusError {
		return fmt.Errorf("job %d failed", id)
	}
	return nil
}

// JobDelete removes a job record. The downloaded file, if any, is kept.
func (r *Runner) JobDelete(ctx context.Context, cmd *cli.Command) error {
	id, err := parseID(cmd, "id")
	if err != nil {
		return err
	}

	if err := r.client().DeleteJob(ctx, id); err != nil {
		return fmt.Errorf("failed to delete job %d: %w", id, err)
	}
	r.logger.Info("job deleted", "id", id)
	return r.writePlain("deleted job %d\n", id)
}
