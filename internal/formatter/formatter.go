// package formatter renders jobs and artifacts for the CLI as tables, CSV or JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/desertthunder/dlapi/internal/models"
	"github.com/desertthunder/dlapi/internal/shared"
)

// Format selects an output encoding.
type Format string

const (
	FormatTable Format = "table"
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
)

// ParseFormat validates an output format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatTable, FormatCSV, FormatJSON:
		return f, nil
	case "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q (table, csv, json)", shared.ErrInvalidArgument, s)
	}
}

const timeLayout = time.RFC3339

func ref(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}

func jobRecord(job *models.Job) []string {
	return []string{
		strconv.FormatInt(job.ID, 10),
		job.Status.String(),
		strconv.Itoa(job.Progress),
		job.StartedAt.Format(timeLayout),
		ref(job.VideoID),
		ref(job.ArtifactID),
	}
}

var jobHeaders = []string{"ID", "Status", "Progress", "Started", "Video", "Artifact"}

// JobsToCSV converts jobs to CSV with columns: ID, Status, Progress, Started, Video, Artifact
func JobsToCSV(jobs []*models.Job) ([]byte, error) {
	records := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		records = append(records, jobRecord(job))
	}
	return toCSV(jobHeaders, records)
}

var artifactHeaders = []string{"ID", "Video", "File", "Created", "Path"}

func artifactRecord(a *models.Artifact) []string {
	return []string{
		strconv.FormatInt(a.ID, 10),
		strconv.FormatInt(a.VideoID, 10),
		filepath.Base(a.Path),
		a.CreatedAt.Format(timeLayout),
		a.Path,
	}
}

// ArtifactsToCSV converts artifacts to CSV with columns: ID, Video, File, Created, Path
func ArtifactsToCSV(artifacts []*models.Artifact) ([]byte, error) {
	records := make([][]string, 0, len(artifacts))
	for _, a := range artifacts {
		records = append(records, artifactRecord(a))
	}
	return toCSV(artifactHeaders, records)
}

func toCSV(headers []string, records [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	if err := writer.WriteAll(records); err != nil {
		return nil, fmt.Errorf("failed to write CSV record: %w", err)
	}

	return buf.Bytes(), nil
}

// WriteJobs writes jobs to w in the given format.
func WriteJobs(w io.Writer, format Format, jobs []*models.Job) error {
	switch format {
	case FormatCSV:
		data, err := JobsToCSV(jobs)
		return writeBytes(w, data, err)
	case FormatJSON:
		return writeJSON(w, jobs)
	default:
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, strings.Join(jobHeaders, "\t"))
		for _, job := range jobs {
			r := jobRecord(job)
			r[2] = ProgressBar(job.Progress, 20)
			fmt.Fprintln(tw, strings.Join(r, "\t"))
		}
		return tw.Flush()
	}
}

// WriteArtifacts writes artifacts to w in the given format.
func WriteArtifacts(w io.Writer, format Format, artifacts []*models.Artifact) error {
	switch format {
	case FormatCSV:
		data, err := ArtifactsToCSV(artifacts)
		return writeBytes(w, data, err)
	case FormatJSON:
		return writeJSON(w, artifacts)
	default:
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, strings.Join(artifactHeaders[:4], "\t"))
		for _, a := range artifacts {
			fmt.Fprintln(tw, strings.Join(artifactRecord(a)[:4], "\t"))
		}
		return tw.Flush()
	}
}

// JobLine is a one line summary of a job for progress output.
func JobLine(job *models.Job) string {
	line := fmt.Sprintf("job %d %-19s %s", job.ID, job.Status, ProgressBar(job.Progress, 20))
	if job.ArtifactID != nil {
		line += fmt.Sprintf(" artifact=%d", *job.ArtifactID)
	}
	return line
}

// ProgressBar renders progress (clamped to 0..100) as a fixed width text bar.
func ProgressBar(progress, width int) string {
	progress = min(max(progress, 0), 100)
	filled := progress * width / 100
	return fmt.Sprintf("[%s%s] %3d%%", strings.Repeat("#", filled), strings.Repeat(".", width-filled), progress)
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

func writeBytes(w io.Writer, data []byte, err error) error {
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
