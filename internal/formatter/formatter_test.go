package formatter

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/dlapi/internal/models"
	"github.com/desertthunder/dlapi/internal/shared"
	th "github.com/desertthunder/dlapi/internal/testing"
)

func sampleJobs() []*models.Job {
	started := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	video, artifact := int64(3), int64(9)
	return []*models.Job{
		{ID: 1, Status: models.StatusFinished, Progress: 100, StartedAt: started, VideoID: &video, ArtifactID: &artifact},
		{ID: 2, Status: models.StatusInProgress, Progress: 40, StartedAt: started, VideoID: &video},
		{ID: 3, Status: models.StatusError, StartedAt: started},
	}
}

func sampleArtifacts() []*models.Artifact {
	return []*models.Artifact{
		{ID: 9, VideoID: 3, Path: "/downloads/Song, Live.mp3", CreatedAt: time.Date(2025, 1, 2, 3, 5, 0, 0, time.UTC)},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"", FormatTable},
		{"table", FormatTable},
		{"CSV", FormatCSV},
		{"json", FormatJSON},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseFormat(%q): expected %s, got %s (%v)", tt.in, tt.want, got, err)
		}
	}

	if _, err := ParseFormat("xml"); !errors.Is(err, shared.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestJobs(t *testing.T) {
	t.Run("CSV", func(t *testing.T) {
		data, err := JobsToCSV(sampleJobs())
		if err != nil {
			t.Fatalf("JobsToCSV failed: %v", err)
		}
		output := string(data)

		if !strings.HasPrefix(output, "ID,Status,Progress,Started,Video,Artifact\n") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, "1,FINISHED,100,2025-01-02T03:04:05Z,3,9\n") {
			t.Errorf("CSV missing finished job, got: %s", output)
		}
		if !strings.Contains(output, "3,ERROR,0,2025-01-02T03:04:05Z,,\n") {
			t.Errorf("CSV should leave missing references empty, got: %s", output)
		}
	})

	t.Run("Table", func(t *testing.T) {
		var buf bytes.Buffer
		if err := WriteJobs(&buf, FormatTable, sampleJobs()); err != nil {
			t.Fatalf("WriteJobs failed: %v", err)
		}
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if len(lines) != 4 {
			t.Fatalf("expected header and 3 rows, got %d lines", len(lines))
		}
		if !strings.Contains(lines[2], "IN_PROGRESS") || !strings.Contains(lines[2], "40%") {
			t.Errorf("unexpected row %q", lines[2])
		}
	})

	t.Run("JSON", func(t *testing.T) {
		var buf bytes.Buffer
		if err := WriteJobs(&buf, FormatJSON, sampleJobs()); err != nil {
			t.Fatalf("WriteJobs failed: %v", err)
		}
		var decoded []map[string]any
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if _, ok := decoded[2]["artifact_id"]; ok {
			t.Error("artifact_id should be omitted when unset")
		}
	})

	t.Run("WriteError", func(t *testing.T) {
		if err := WriteJobs(&th.FWriter{}, FormatJSON, sampleJobs()); err == nil {
			t.Error("expected write error")
		}
		if err := WriteJobs(&th.FWriter{}, FormatCSV, sampleJobs()); err == nil {
			t.Error("expected write error")
		}
	})
}

func TestArtifacts(t *testing.T) {
	t.Run("CSV", func(t *testing.T) {
		data, err := ArtifactsToCSV(sampleArtifacts())
		if err != nil {
			t.Fatalf("ArtifactsToCSV failed: %v", err)
		}
		if !strings.Contains(string(data), `9,3,"Song, Live.mp3",2025-01-02T03:05:00Z,"/downloads/Song, Live.mp3"`) {
			t.Errorf("CSV should quote commas, got: %s", data)
		}
	})

	t.Run("Table", func(t *testing.T) {
		var buf bytes.Buffer
		if err := WriteArtifacts(&buf, FormatTable, sampleArtifacts()); err != nil {
			t.Fatalf("WriteArtifacts failed: %v", err)
		}
		if !strings.Contains(buf.String(), "Song, Live.mp3") {
			t.Errorf("expected filename in table, got %s", buf.String())
		}
	})
}

func TestProgressBar(t *testing.T) {
	tests := []struct {
		progress int
		want     string
	}{
		{0, "[..........]   0%"},
		{50, "[#####.....]  50%"},
		{100, "[##########] 100%"},
		{150, "[##########] 100%"},
		{-3, "[..........]   0%"},
	}
	for _, tt := range tests {
		if got := ProgressBar(tt.progress, 10); got != tt.want {
			t.Errorf("ProgressBar(%d): expected %q, got %q", tt.progress, tt.want, got)
		}
	}
}

func TestJobLine(t *testing.T) {
	line := JobLine(sampleJobs()[0])
	if !strings.Contains(line, "job 1") || !strings.Contains(line, "artifact=9") {
		t.Errorf("unexpected line %q", line)
	}
}
