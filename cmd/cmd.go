// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/urfave/cli/v3"
)

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: table, csv or json",
		Value:   "table",
	}
}

// setupCommand handles database and configuration setup.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize the database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent database migration",
				Action: r.SetupRollback,
			},
			{
				Name:   "config",
				Usage:  "Write a config file with default values",
				Action: r.SetupConfig,
			},
		},
	}
}

// serveCommand runs the HTTP API and the download coordinator.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the download API server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen host (overrides server.host)",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Listen port (overrides server.port)",
			},
			&cli.StringFlag{
				Name:  "backend",
				Usage: "Registry backend: sqlite or memory (overrides database.backend)",
			},
			&cli.DurationFlag{
				Name:  "shutdown-timeout",
				Usage: "Time allowed for in-flight requests on shutdown",
				Value: 10 * time.Second,
			},
		},
		Action: r.Serve,
	}
}

// jobCommand talks to a running server about download jobs.
func jobCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "job",
		Aliases: []string{"jobs"},
		Usage:   "Submit and inspect download jobs",
		Commands: []*cli.Command{
			{
				Name:  "submit",
				Usage: "Submit a media URL for download",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "url"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "wait",
						Aliases: []string{"w"},
						Usage:   "Wait until the job finishes",
					},
					&cli.DurationFlag{
						Name:  "interval",
						Usage: "Polling interval when waiting",
						Value: time.Second,
					},
				},
				Action: r.JobSubmit,
			},
			{
				Name:   "list",
				Usage:  "List all jobs",
				Flags:  []cli.Flag{formatFlag()},
				Action: r.JobList,
			},
			{
				Name:  "get",
				Usage: "Show one job",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.JobGet,
			},
			{
				Name:  "wait",
				Usage: "Poll a job until it finishes or fails",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "interval",
						Usage: "Polling interval",
						Value: time.Second,
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "Give up after this long (0 waits forever)",
					},
				},
				Action: r.JobWait,
			},
			{
				Name:  "delete",
				Usage: "Delete a job record (its file is kept)",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.JobDelete,
			},
		},
	}
}

// fileCommand manages downloaded files on a running server.
func fileCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "file",
		Aliases: []string{"files"},
		Usage:   "List, fetch and delete downloaded files",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List downloaded files",
				Flags:  []cli.Flag{formatFlag()},
				Action: r.FileList,
			},
			{
				Name:  "get",
				Usage: "Download a file from the server",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output path (defaults to the server's filename in the current directory)",
					},
				},
				Action: r.FileGet,
			},
			{
				Name:  "delete",
				Usage: "Delete a downloaded file and its record",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.FileDelete,
			},
		},
	}
}

// watchCommand returns the top-level TUI command for monitoring jobs.
func watchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "watch",
		Aliases: []string{"tui", "ui"},
		Usage:   "Launch an interactive job monitor",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "Refresh interval",
				Value: time.Second,
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where to write logs while the TUI is running",
				Value: "./tmp/dlapi-tui.log",
			},
		},
		Action: r.Watch,
	}
}
