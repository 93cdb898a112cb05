package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/dlapi/internal/models"
	"github.com/desertthunder/dlapi/internal/registry"
	"github.com/desertthunder/dlapi/internal/shared"
	"github.com/desertthunder/dlapi/internal/tasks"
	tu "github.com/desertthunder/dlapi/internal/testing"
)

const videoURL = "https://example.com/watch?v=v1"

type fixture struct {
	server      *httptest.Server
	store       *registry.Registry
	engine      *tu.FakeEngine
	coordinator *tasks.Coordinator
}

func newFixture(t *testing.T, cfg shared.ServerConfig) *fixture {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	logger := shared.NewLogger(io.Discard)
	store := registry.New()
	engine := tu.NewFakeEngine(t.TempDir())
	coordinator := tasks.NewCoordinator(ctx, store, engine, tasks.NewDispatcher(store, logger), logger, tasks.CoordinatorOpts{ProbeRate: 1000})

	srv := httptest.NewServer(NewRouter(cfg, store, coordinator, logger))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		coordinator.Wait()
	})

	return &fixture{server: srv, store: store, engine: engine, coordinator: coordinator}
}

func (f *fixture) do(t *testing.T, method, path, body string, headers ...string) *http.Response {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.server.URL+path, r)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return v
}

func TestHealth(t *testing.T) {
	f := newFixture(t, shared.ServerConfig{})
	resp := f.do(t, http.MethodGet, "/health", "")

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := decode[map[string]string](t, resp); got["status"] != "ok" {
		t.Errorf("unexpected body %v", got)
	}
	if resp.Header.Get(RequestIDHeader) == "" {
		t.Error("expected request id header")
	}
}

func TestJobEndpoints(t *testing.T) {
	t.Run("SubmitAndPoll", func(t *testing.T) {
		f := newFixture(t, shared.ServerConfig{})
		f.engine.ScriptAudio(videoURL, "v1", "Song", "Song.mp3")

		resp := f.do(t, http.MethodPost, "/download_job", `{"url":"`+videoURL+`"}`)
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("expected 202, got %d", resp.StatusCode)
		}
		created := decode[map[string]int64](t, resp)
		if created["id"] != 1 {
			t.Errorf("expected id 1, got %v", created)
		}

		f.coordinator.Wait()

		job := decode[models.Job](t, f.do(t, http.MethodGet, "/download_job/1", ""))
		if job.Status != models.StatusFinished || job.Progress != 100 || job.ArtifactID == nil {
			t.Errorf("expected finished job with artifact, got %+v", job)
		}

		jobs := decode[[]models.Job](t, f.do(t, http.MethodGet, "/download_job", ""))
		if len(jobs) != 1 {
			t.Errorf("expected 1 job, got %d", len(jobs))
		}
	})

	t.Run("InvalidSubmissions", func(t *testing.T) {
		f := newFixture(t, shared.ServerConfig{})

		for _, body := range []string{`{"url":""}`, `{}`, `not json`, `{"url":"ftp://x"}`} {
			resp := f.do(t, http.MethodPost, "/download_job", body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("%s: expected 400, got %d", body, resp.StatusCode)
			}
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		f := newFixture(t, shared.ServerConfig{})

		resp := f.do(t, http.MethodGet, "/download_job/42", "")
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404, got %d", resp.StatusCode)
		}
		if body := decode[map[string]string](t, resp); body["error"] == "" {
			t.Error("expected error message")
		}
		if resp := f.do(t, http.MethodDelete, "/download_job/42", ""); resp.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404 on delete, got %d", resp.StatusCode)
		}
	})

	t.Run("BadID", func(t *testing.T) {
		f := newFixture(t, shared.ServerConfig{})
		if resp := f.do(t, http.MethodGet, "/download_job/abc", ""); resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("MethodNotAllowed", func(t *testing.T) {
		f := newFixture(t, shared.ServerConfig{})
		if resp := f.do(t, http.MethodPut, "/download_job/1", ""); resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", resp.StatusCode)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		f := newFixture(t, shared.ServerConfig{})
		f.engine.ScriptAudio(videoURL, "v1", "Song", "Song.mp3")
		f.do(t, http.MethodPost, "/download_job", `{"url":"`+videoURL+`"}`)
		f.coordinator.Wait()

		if resp := f.do(t, http.MethodDelete, "/download_job/1", ""); resp.StatusCode != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", resp.StatusCode)
		}
		if resp := f.do(t, http.MethodGet, "/download_job/1", ""); resp.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404 after delete, got %d", resp.StatusCode)
		}
		if resp := f.do(t, http.MethodGet, "/downloaded_file/1", ""); resp.StatusCode != http.StatusOK {
			t.Errorf("artifact should survive job deletion, got %d", resp.StatusCode)
		}
	})
}

func TestFileEndpoints(t *testing.T) {
	t.Run("ListDownloadDelete", func(t *testing.T) {
		f := newFixture(t, shared.ServerConfig{})
		f.engine.ScriptAudio(videoURL, "v1", "Song", "Song.mp3")
		f.do(t, http.MethodPost, "/download_job", `{"url":"`+videoURL+`"}`)
		f.coordinator.Wait()

		artifacts := decode[[]models.Artifact](t, f.do(t, http.MethodGet, "/downloaded_file", ""))
		if len(artifacts) != 1 {
			t.Fatalf("expected 1 artifact, got %d", len(artifacts))
		}

		resp := f.do(t, http.MethodGet, "/downloaded_file/1", "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		if got := resp.Header.Get("Content-Disposition"); got != `attachment; filename=Song.mp3` {
			t.Errorf("unexpected Content-Disposition %q", got)
		}
		body, _ := io.ReadAll(resp.Body)
		if string(body) != "audio" {
			t.Errorf("unexpected body %q", body)
		}

		if resp := f.do(t, http.MethodDelete, "/downloaded_file/1", ""); resp.StatusCode != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", resp.StatusCode)
		}
		tu.AssertFileMissing(t, artifacts[0].Path)
		if resp := f.do(t, http.MethodGet, "/downloaded_file/1", ""); resp.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404 after delete, got %d", resp.StatusCode)
		}

		job := decode[models.Job](t, f.do(t, http.MethodGet, "/download_job/1", ""))
		if job.ArtifactID != nil {
			t.Errorf("expected cleared artifact reference, got %d", *job.ArtifactID)
		}
	})

	t.Run("MissingFile", func(t *testing.T) {
		f := newFixture(t, shared.ServerConfig{})
		ctx := context.Background()
		video, _ := f.store.ResolveVideo(ctx, "v1", videoURL, "Song")
		artifact, _ := f.store.RecordArtifact(ctx, video.ID, "/nonexistent/Song.mp3")

		resp := f.do(t, http.MethodGet, "/downloaded_file/1", "")
		if artifact.ID != 1 || resp.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404 for missing file, got %d", resp.StatusCode)
		}
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("BearerAuth", func(t *testing.T) {
		f := newFixture(t, shared.ServerConfig{AuthToken: "secret"})

		if resp := f.do(t, http.MethodGet, "/download_job", ""); resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", resp.StatusCode)
		}
		if resp := f.do(t, http.MethodGet, "/download_job", "", "Authorization", "Bearer wrong"); resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("expected 401 for wrong token, got %d", resp.StatusCode)
		}
		if resp := f.do(t, http.MethodGet, "/download_job", "", "Authorization", "Bearer secret"); resp.StatusCode != http.StatusOK {
			t.Errorf("expected 200, got %d", resp.StatusCode)
		}
		if resp := f.do(t, http.MethodGet, "/health", ""); resp.StatusCode != http.StatusOK {
			t.Errorf("health should be public, got %d", resp.StatusCode)
		}
	})

	t.Run("CORS", func(t *testing.T) {
		f := newFixture(t, shared.ServerConfig{AllowedOrigins: []string{"*"}})

		resp := f.do(t, http.MethodOptions, "/download_job", "",
			"Origin", "http://localhost:3000",
			"Access-Control-Request-Method", "POST",
		)
		if resp.StatusCode != http.StatusNoContent {
			t.Errorf("expected 204 for preflight, got %d", resp.StatusCode)
		}
		if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
			t.Errorf("expected allow-origin *, got %q", got)
		}
		if got := resp.Header.Get("Access-Control-Expose-Headers"); !strings.Contains(got, "Content-Disposition") {
			t.Errorf("expected Content-Disposition exposed, got %q", got)
		}
	})

	t.Run("CORSRestricted", func(t *testing.T) {
		f := newFixture(t, shared.ServerConfig{AllowedOrigins: []string{"http://app.example.com"}})

		resp := f.do(t, http.MethodGet, "/health", "", "Origin", "http://evil.example.com")
		if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("unexpected allow-origin %q", got)
		}
		resp = f.do(t, http.MethodGet, "/health", "", "Origin", "http://app.example.com")
		if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://app.example.com" {
			t.Errorf("expected echoed origin, got %q", got)
		}
	})

	t.Run("RateLimit", func(t *testing.T) {
		f := newFixture(t, shared.ServerConfig{RateLimit: 0.001, RateBurst: 2})

		var codes []int
		for range 3 {
			codes = append(codes, f.do(t, http.MethodGet, "/health", "").StatusCode)
		}
		if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
			t.Errorf("expected 200, 200, 429, got %v", codes)
		}
	})

	t.Run("RequestIDPropagated", func(t *testing.T) {
		f := newFixture(t, shared.ServerConfig{})
		resp := f.do(t, http.MethodGet, "/health", "", RequestIDHeader, "abc-123")
		if got := resp.Header.Get(RequestIDHeader); got != "abc-123" {
			t.Errorf("expected client request id, got %q", got)
		}
	})

	t.Run("Recover", func(t *testing.T) {
		router := NewBasicRouter()
		router.Use(Recover(shared.NewLogger(io.Discard)))
		router.Handle(http.MethodGet, "/panic", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})
}
