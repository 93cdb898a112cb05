package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/desertthunder/dlapi/internal/formatter"
	"github.com/desertthunder/dlapi/internal/shared"
	"github.com/urfave/cli/v3"
)

// FileList prints every downloaded file recorded by the server.
func (r *Runner) FileList(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	artifacts, err := r.client().ListArtifacts(ctx)
	if err != nil {
		return fmt.Errorf("failed to list files: %w", err)
	}
	return formatter.WriteArtifacts(r.output, format, artifacts)
}

// FileGet downloads a file from the server.
//
// The body is streamed into a temporary file next to the destination and renamed once complete.
func (r *Runner) FileGet(ctx context.Context, cmd *cli.Command) error {
	id, err := parseID(cmd, "id")
	if err != nil {
		return err
	}

	output := cmd.String("output")
	dir := "."
	if output != "" {
		dir = filepath.Dir(output)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp := filepath.Join(dir, ".dlapi-"+shared.GenerateID()+".part")
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp)

	filename, err := r.client().DownloadArtifact(ctx, id, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to download file %d: %w", id, err)
	}

	if output == "" {
		output = filepath.Join(dir, filepath.Base(filename))
	}
	if err := os.Rename(tmp, output); err != nil {
		return fmt.Errorf("failed to save file: %w", err)
	}

	r.logger.Info("file downloaded", "id", id, "path", output)
	return r.writePlain("%s\n", output)
}

// FileDelete removes a downloaded file and its record. Jobs that referenced it stay FINISHED.
func (r *Runner) FileDelete(ctx context.Context, cmd *cli.Command) error {
	id, err := parseID(cmd, "id")
	if err != nil {
		return err
	}

	if err := r.client().DeleteArtifact(ctx, id); err != nil {
		return fmt.Errorf("failed to delete file %d: %w", id, err)
	}
	r.logger.Info("file deleted", "id", id)
	return r.writePlain("deleted file %d\n", id)
}
