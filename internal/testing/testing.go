// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/dlapi/internal/models"
	"github.com/desertthunder/dlapi/internal/shared"
)

// Script describes how [FakeEngine] answers for one URL.
type Script struct {
	Info     models.VideoInfo
	ProbeErr error
	Events   []models.Event
	Err      error
	// File is written (relative to the engine's Dir) right before a MoveFiles finished event.
	File string
	// Gate, when set, blocks Download until closed.
	Gate chan struct{}
}

// FakeEngine is a scripted [services.Engine].
type FakeEngine struct {
	Dir string

	mu        sync.Mutex
	scripts   map[string]*Script
	probes    map[string]int
	downloads map[string]int
}

func NewFakeEngine(dir string) *FakeEngine {
	return &FakeEngine{
		Dir:       dir,
		scripts:   make(map[string]*Script),
		probes:    make(map[string]int),
		downloads: make(map[string]int),
	}
}

// Script registers s for url.
func (f *FakeEngine) Script(url string, s *Script) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s.Info.URL == "" {
		s.Info.URL = url
	}
	f.scripts[url] = s
}

// ScriptAudio registers the usual download + ExtractAudio + MoveFiles sequence for url.
func (f *FakeEngine) ScriptAudio(url, externalID, title, file string) *Script {
	path := filepath.Join(f.Dir, file)
	s := &Script{
		Info: models.VideoInfo{ID: externalID, Title: title, URL: url},
		Events: []models.Event{
			models.DownloadProgressEvent(externalID, 0, 100),
			models.DownloadProgressEvent(externalID, 50, 100),
			models.DownloadProgressEvent(externalID, 100, 100),
			models.DownloadEvent(externalID, models.EventFinished),
			models.PostprocessorEvent(externalID, models.PostprocessorExtractAudio, models.EventStarted),
			models.PostprocessorEvent(externalID, models.PostprocessorExtractAudio, models.EventFinished),
			models.PostprocessorEvent(externalID, models.PostprocessorMoveFiles, models.EventStarted),
			models.MoveFinishedEvent(externalID, path),
		},
		File: file,
	}
	f.Script(url, s)
	return s
}

func (f *FakeEngine) lookup(url string) (*Script, error) {
	s, ok := f.scripts[url]
	if !ok {
		return nil, fmt.Errorf("%w: no script for %s", shared.ErrProbeFailed, url)
	}
	return s, nil
}

func (f *FakeEngine) Probe(ctx context.Context, url string) (*models.VideoInfo, error) {
	f.mu.Lock()
	f.probes[url]++
	s, err := f.lookup(url)
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if s.ProbeErr != nil {
		return nil, s.ProbeErr
	}
	info := s.Info
	return &info, nil
}

func (f *FakeEngine) Download(ctx context.Context, url string, events chan<- models.Event) error {
	f.mu.Lock()
	f.downloads[url]++
	s, err := f.lookup(url)
	f.mu.Unlock()
	if err != nil {
		return err
	}

	if s.Gate != nil {
		select {
		case <-s.Gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for _, ev := range s.Events {
		if s.File != "" && ev.Stage == models.StagePostprocessor &&
			ev.Postprocessor == models.PostprocessorMoveFiles && ev.Status == models.EventFinished {
			if err := os.WriteFile(ev.Info.FinalPath, []byte("audio"), 0o644); err != nil {
				return err
			}
		}
		select {
		case events <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.Err
}

// Probes returns how many times url was probed.
func (f *FakeEngine) Probes(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.probes[url]
}

// Downloads returns how many times url was downloaded.
func (f *FakeEngine) Downloads(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.downloads[url]
}

// WaitFor polls cond until it returns true or timeout elapses.
func WaitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

var _ io.ReadCloser = (*FCloser)(nil)

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertFileMissing(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("File should not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

func MustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
}
