package services

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/dlapi/internal/models"
	"github.com/desertthunder/dlapi/internal/shared"
)

// eventPrefix marks progress template lines on the engine's stdout.
const eventPrefix = "[dlapi] "

const (
	downloadTemplate = `download:` + eventPrefix + `{"stage":"downloading","status":%(progress.status)j,` +
		`"downloaded_bytes":%(progress.downloaded_bytes|0)s,"total_bytes":%(progress.total_bytes|0)s,` +
		`"total_bytes_estimate":%(progress.total_bytes_estimate|0)s,"id":%(info.id)j,"title":%(info.title)j}`

	postprocessTemplate = `postprocess:` + eventPrefix + `{"stage":"postprocessor","status":%(progress.status)j,` +
		`"postprocessor":%(progress.postprocessor)j,"id":%(info.id)j,"title":%(info.title)j,"filepath":%(info.filepath|)j}`
)

// naPlaceholder is what yt-dlp prints for missing template fields.
const naPlaceholder = "NA"

// postprocessorAliases maps yt-dlp's internal postprocessor keys to the names events use.
var postprocessorAliases = map[string]string{
	"MoveFilesAfterDownload": models.PostprocessorMoveFiles,
}

// YTDLP runs the yt-dlp binary.
type YTDLP struct {
	binaryPath     string
	directory      string
	audioFormat    string
	outputTemplate string
	logger         *log.Logger
}

var _ Engine = (*YTDLP)(nil)

// NewYTDLP creates an engine from the downloads config.
func NewYTDLP(cfg shared.DownloadsConfig, logger *log.Logger) *YTDLP {
	binary := cfg.Binary
	if binary == "" {
		binary = "yt-dlp"
	}
	format := cfg.AudioFormat
	if format == "" {
		format = "mp3"
	}
	tmpl := cfg.OutputTemplate
	if tmpl == "" {
		tmpl = "%(title)s.%(ext)s"
	}
	return &YTDLP{
		binaryPath:     binary,
		directory:      cfg.Directory,
		audioFormat:    format,
		outputTemplate: tmpl,
		logger:         shared.WithLogger(logger, "component", "ytdlp"),
	}
}

// Probe runs yt-dlp in simulate mode and decodes the single JSON document it prints.
func (y *YTDLP) Probe(ctx context.Context, url string) (*models.VideoInfo, error) {
	cmd := exec.CommandContext(ctx, y.binaryPath, "--dump-single-json", "--skip-download", "--no-playlist", "--no-warnings", url)

	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: %v: %s", shared.ErrProbeFailed, err, strings.TrimSpace(stderr.String()))
	}

	var info models.VideoInfo
	if err := json.Unmarshal(out.Bytes(), &info); err != nil {
		return nil, fmt.Errorf("%w: invalid metadata: %v", shared.ErrProbeFailed, err)
	}
	if info.ID == "" {
		return nil, fmt.Errorf("%w: metadata has no id", shared.ErrProbeFailed)
	}
	if info.URL == "" {
		info.URL = url
	}

	return &info, nil
}

// Download runs yt-dlp with audio extraction and forwards every template line as an event.
//
// A template line that does not parse stops the process and the returned error wraps
// [shared.ErrMalformedEvent].
func (y *YTDLP) Download(ctx context.Context, url string, events chan<- models.Event) error {
	if y.directory != "" {
		if err := os.MkdirAll(y.directory, 0o755); err != nil {
			return fmt.Errorf("%w: failed to create download directory: %v", shared.ErrDownloadFailed, err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, y.binaryPath, y.downloadArgs(url)...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrDownloadFailed, err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: failed to start %s: %v", shared.ErrDownloadFailed, y.binaryPath, err)
	}

	scanErr := y.forward(ctx, stdout, events)
	if scanErr != nil {
		cancel()
		// Drain so the process is not blocked on a full pipe.
		_, _ = io.Copy(io.Discard, stdout)
	}

	waitErr := cmd.Wait()
	switch {
	case errors.Is(scanErr, shared.ErrMalformedEvent):
		return scanErr
	case waitErr != nil:
		return fmt.Errorf("%w: %v: %s", shared.ErrDownloadFailed, waitErr, strings.TrimSpace(stderr.String()))
	}
	return scanErr
}

func (y *YTDLP) downloadArgs(url string) []string {
	return []string{
		"--newline",
		"--progress",
		"--no-warnings",
		"--no-playlist",
		"-x", "--audio-format", y.audioFormat,
		"-o", filepath.Join(y.directory, y.outputTemplate),
		"--progress-template", downloadTemplate,
		"--progress-template", postprocessTemplate,
		url,
	}
}

// forward scans r for template lines and sends the parsed events. Other output is logged at debug.
// It stops at the first template line that does not parse.
func (y *YTDLP) forward(ctx context.Context, r io.Reader, events chan<- models.Event) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		payload, ok := strings.CutPrefix(line, eventPrefix)
		if !ok {
			y.logger.Debug("engine output", "line", line)
			continue
		}

		ev, err := ParseEvent([]byte(payload))
		if err != nil {
			y.logger.Error("malformed progress line", "line", line, "error", err)
			return err
		}

		select {
		case events <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%w: reading engine output: %v", shared.ErrDownloadFailed, err)
	}
	return nil
}

// templateLine is the JSON produced by the progress templates.
type templateLine struct {
	Stage              models.Stage       `json:"stage"`
	Status             models.EventStatus `json:"status"`
	Postprocessor      string             `json:"postprocessor"`
	DownloadedBytes    float64            `json:"downloaded_bytes"`
	TotalBytes         float64            `json:"total_bytes"`
	TotalBytesEstimate float64            `json:"total_bytes_estimate"`
	ID                 string             `json:"id"`
	Title              string             `json:"title"`
	Filepath           string             `json:"filepath"`
}

// ParseEvent decodes one progress template payload into an [models.Event].
//
// The total falls back to yt-dlp's estimate when the exact size is unknown.
func ParseEvent(payload []byte) (models.Event, error) {
	var line templateLine
	if err := json.Unmarshal(payload, &line); err != nil {
		return models.Event{}, fmt.Errorf("%w: %v", shared.ErrMalformedEvent, err)
	}
	if line.ID == "" {
		return models.Event{}, fmt.Errorf("%w: missing video id", shared.ErrMalformedEvent)
	}

	total := line.TotalBytes
	if total <= 0 {
		total = line.TotalBytesEstimate
	}

	path := line.Filepath
	if path == naPlaceholder {
		path = ""
	}

	pp := line.Postprocessor
	if alias, ok := postprocessorAliases[pp]; ok {
		pp = alias
	}

	return models.Event{
		Stage:         line.Stage,
		Status:        line.Status,
		Postprocessor: pp,
		Info: models.EventInfo{
			ExternalVideoID: line.ID,
			Title:           line.Title,
			DownloadedBytes: int64(line.DownloadedBytes),
			TotalBytes:      int64(total),
			FinalPath:       path,
		},
	}, nil
}
