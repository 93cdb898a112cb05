package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/desertthunder/dlapi/internal/models"
	"github.com/desertthunder/dlapi/internal/shared"
	tu "github.com/desertthunder/dlapi/internal/testing"
)

func TestAPIService(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		t.Run("With Empty BaseURL", func(t *testing.T) {
			srv := NewAPIService("", "", nil)
			if srv.baseURL != DefaultBaseURL {
				t.Errorf("expected default baseURL %s, got %s", DefaultBaseURL, srv.baseURL)
			}
		})

		t.Run("With Nil Client", func(t *testing.T) {
			srv := NewAPIService("http://example.com", "", nil)
			if srv.httpClient != http.DefaultClient {
				t.Error("expected http.DefaultClient to be used")
			}
		})

		t.Run("With Token", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if got := r.Header.Get("Authorization"); got != "Bearer secret" {
					t.Errorf("expected bearer token, got %q", got)
				}
				w.Write([]byte(`{"status":"ok"}`))
			}))
			defer server.Close()

			srv := NewAPIService(server.URL, "secret", nil)
			if err := srv.Health(context.Background()); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		})
	})

	t.Run("Do", func(t *testing.T) {
		t.Run("Failed HTTP Request", func(t *testing.T) {
			client := &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("connection failed"))}
			srv := NewAPIService("http://example.com", "", client)

			if _, err := srv.Do(context.Background(), http.MethodGet, "/health", nil); err == nil {
				t.Fatal("expected error")
			}
		})

		t.Run("Failed Response Body Read", func(t *testing.T) {
			client := &http.Client{Transport: tu.NewMockRoundTripper(&http.Response{
				StatusCode: http.StatusOK,
				Body:       &tu.FCloser{},
				Header:     make(http.Header),
			}, nil)}
			srv := NewAPIService("http://example.com", "", client)

			if _, err := srv.Do(context.Background(), http.MethodGet, "/health", nil); err == nil {
				t.Fatal("expected error")
			}
		})

		t.Run("Failed Request Creation", func(t *testing.T) {
			srv := NewAPIService("http://example.com", "", nil)
			if _, err := srv.Do(context.Background(), "BAD METHOD", "/health", nil); err == nil {
				t.Fatal("expected error for invalid method")
			}
		})

		t.Run("Status Mapping", func(t *testing.T) {
			tests := []struct {
				status int
				want   error
			}{
				{http.StatusNotFound, shared.ErrNotFound},
				{http.StatusUnauthorized, shared.ErrUnauthorized},
				{http.StatusBadRequest, shared.ErrAPIRequest},
				{http.StatusInternalServerError, shared.ErrAPIRequest},
			}

			for _, tt := range tests {
				t.Run(http.StatusText(tt.status), func(t *testing.T) {
					server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
						w.WriteHeader(tt.status)
						json.NewEncoder(w).Encode(map[string]string{"error": "nope"})
					}))
					defer server.Close()

					resp, err := NewAPIService(server.URL, "", nil).Do(context.Background(), http.MethodGet, "/x", nil)
					if !errors.Is(err, tt.want) {
						t.Errorf("expected %v, got %v", tt.want, err)
					}
					if resp == nil || resp.StatusCode != tt.status {
						t.Errorf("expected response with status %d", tt.status)
					}
				})
			}
		})
	})

	t.Run("SubmitJob", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/download_job" {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			if body["url"] != "https://example.com/v1" {
				t.Errorf("unexpected body %v", body)
			}
			w.WriteHeader(http.StatusAccepted)
			w.Write([]byte(`{"id":7}`))
		}))
		defer server.Close()

		id, err := NewAPIService(server.URL, "", nil).SubmitJob(context.Background(), "https://example.com/v1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if id != 7 {
			t.Errorf("expected id 7, got %d", id)
		}
	})

	t.Run("Jobs", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method + " " + r.URL.Path {
			case "GET /download_job":
				w.Write([]byte(`[{"id":1,"status":"FINISHED","progress":100,"started_at":"2025-01-01T00:00:00Z","artifact_id":3}]`))
			case "GET /download_job/1":
				w.Write([]byte(`{"id":1,"status":"IN_PROGRESS","progress":40,"started_at":"2025-01-01T00:00:00Z"}`))
			case "DELETE /download_job/1":
				w.WriteHeader(http.StatusNoContent)
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		}))
		defer server.Close()

		ctx := context.Background()
		srv := NewAPIService(server.URL, "", nil)

		jobs, err := srv.ListJobs(ctx)
		if err != nil {
			t.Fatalf("failed to list jobs: %v", err)
		}
		if len(jobs) != 1 || jobs[0].ArtifactID == nil || *jobs[0].ArtifactID != 3 {
			t.Errorf("unexpected jobs %v", jobs)
		}

		job, err := srv.GetJob(ctx, 1)
		if err != nil {
			t.Fatalf("failed to get job: %v", err)
		}
		if job.Status != models.StatusInProgress || job.Progress != 40 {
			t.Errorf("unexpected job %+v", job)
		}

		if err := srv.DeleteJob(ctx, 1); err != nil {
			t.Errorf("failed to delete job: %v", err)
		}
		if _, err := srv.GetJob(ctx, 2); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("WaitJob", func(t *testing.T) {
		calls := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			status := "IN_PROGRESS"
			if calls >= 3 {
				status = "ERROR"
			}
			json.NewEncoder(w).Encode(map[string]any{"id": 1, "status": status, "progress": 10})
		}))
		defer server.Close()

		var seen []models.JobStatus
		job, err := NewAPIService(server.URL, "", nil).WaitJob(context.Background(), 1, time.Millisecond, func(j *models.Job) {
			seen = append(seen, j.Status)
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if job.Status != models.StatusError {
			t.Errorf("expected ERROR, got %s", job.Status)
		}
		if len(seen) != 3 {
			t.Errorf("expected 3 updates, got %v", seen)
		}
	})

	t.Run("Artifacts", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method + " " + r.URL.Path {
			case "GET /downloaded_file":
				w.Write([]byte(`[{"id":3,"path":"/downloads/Song.mp3","created_at":"2025-01-01T00:00:00Z","video_id":1}]`))
			case "GET /downloaded_file/3":
				w.Header().Set("Content-Disposition", `attachment; filename="Song.mp3"`)
				w.Write([]byte("audio"))
			case "DELETE /downloaded_file/3":
				w.WriteHeader(http.StatusNoContent)
			default:
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte(`{"error":"artifact not found"}`))
			}
		}))
		defer server.Close()

		ctx := context.Background()
		srv := NewAPIService(server.URL, "", nil)

		artifacts, err := srv.ListArtifacts(ctx)
		if err != nil {
			t.Fatalf("failed to list artifacts: %v", err)
		}
		if len(artifacts) != 1 || artifacts[0].Path != "/downloads/Song.mp3" {
			t.Errorf("unexpected artifacts %v", artifacts)
		}

		var buf bytes.Buffer
		name, err := srv.DownloadArtifact(ctx, 3, &buf)
		if err != nil {
			t.Fatalf("failed to download artifact: %v", err)
		}
		if name != "Song.mp3" || buf.String() != "audio" {
			t.Errorf("unexpected download %q %q", name, buf.String())
		}

		if _, err := srv.DownloadArtifact(ctx, 4, io.Discard); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if err := srv.DeleteArtifact(ctx, 3); err != nil {
			t.Errorf("failed to delete artifact: %v", err)
		}
	})
}
