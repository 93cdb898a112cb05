package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/dlapi/internal/shared"
	"github.com/desertthunder/dlapi/internal/ui"
	"github.com/urfave/cli/v3"
)

// Watch launches the interactive job monitor against the configured server.
func (r *Runner) Watch(ctx context.Context, cmd *cli.Command) error {
	client := r.client()
	if err := client.Health(ctx); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(cmd.String("log-file"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	fileLogger.SetLevel(r.logger.GetLevel())

	model := ui.NewModel(ctx, client, fileLogger, cmd.Duration("interval"))
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
