// API client for a running dlapi server
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/desertthunder/dlapi/internal/models"
	"github.com/desertthunder/dlapi/internal/shared"
	"golang.org/x/oauth2"
)

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "http://127.0.0.1:8000"

// APIService provides typed methods over the server's HTTP API.
type APIService struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIService creates a client for the server at baseURL.
//
// When token is non-empty every request carries it as a bearer token.
func NewAPIService(baseURL, token string, client *http.Client) *APIService {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	if token != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, client)
		client = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))
	}

	return &APIService{
		baseURL:    baseURL,
		httpClient: client,
	}
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// errorBody is the JSON shape of server errors.
type errorBody struct {
	Error string `json:"error"`
}

// Do performs a request and returns the raw response. Non-2xx statuses are returned as errors
// wrapping [shared.ErrNotFound], [shared.ErrUnauthorized] or [shared.ErrAPIRequest].
func (a *APIService) Do(ctx context.Context, method, path string, data []byte) (*APIResponse, error) {
	var body io.Reader
	if data != nil {
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       respBody,
	}
	if err := statusError(apiResp); err != nil {
		return apiResp, err
	}
	return apiResp, nil
}

func statusError(resp *APIResponse) error {
	if resp.StatusCode < 400 {
		return nil
	}

	msg := http.StatusText(resp.StatusCode)
	var e errorBody
	if err := json.Unmarshal(resp.Body, &e); err == nil && e.Error != "" {
		msg = e.Error
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", shared.ErrNotFound, msg)
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", shared.ErrUnauthorized, msg)
	default:
		return fmt.Errorf("%w: %d %s", shared.ErrAPIRequest, resp.StatusCode, msg)
	}
}

func (a *APIService) getJSON(ctx context.Context, path string, v any) error {
	resp, err := a.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Health checks that the server is up.
func (a *APIService) Health(ctx context.Context) error {
	_, err := a.Do(ctx, http.MethodGet, "/health", nil)
	return err
}

// SubmitJob posts url and returns the new job id.
func (a *APIService) SubmitJob(ctx context.Context, url string) (int64, error) {
	data, err := json.Marshal(map[string]string{"url": url})
	if err != nil {
		return 0, fmt.Errorf("failed to encode request: %w", err)
	}

	resp, err := a.Do(ctx, http.MethodPost, "/download_job", data)
	if err != nil {
		return 0, err
	}

	var created struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(resp.Body, &created); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}
	return created.ID, nil
}

// ListJobs returns every job known to the server.
func (a *APIService) ListJobs(ctx context.Context) ([]*models.Job, error) {
	var jobs []*models.Job
	if err := a.getJSON(ctx, "/download_job", &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// GetJob returns one job.
func (a *APIService) GetJob(ctx context.Context, id int64) (*models.Job, error) {
	var job models.Job
	if err := a.getJSON(ctx, fmt.Sprintf("/download_job/%d", id), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// DeleteJob removes a job record.
func (a *APIService) DeleteJob(ctx context.Context, id int64) error {
	_, err := a.Do(ctx, http.MethodDelete, fmt.Sprintf("/download_job/%d", id), nil)
	return err
}

// WaitJob polls a job every interval until it reaches a terminal status or ctx ends.
func (a *APIService) WaitJob(ctx context.Context, id int64, interval time.Duration, onUpdate func(*models.Job)) (*models.Job, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		job, err := a.GetJob(ctx, id)
		if err != nil {
			return nil, err
		}
		if onUpdate != nil {
			onUpdate(job)
		}
		if job.Status.IsTerminal() {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}

// ListArtifacts returns every downloaded file record.
func (a *APIService) ListArtifacts(ctx context.Context) ([]*models.Artifact, error) {
	var artifacts []*models.Artifact
	if err := a.getJSON(ctx, "/downloaded_file", &artifacts); err != nil {
		return nil, err
	}
	return artifacts, nil
}

// DownloadArtifact streams the file of artifact id into w and returns the server's filename.
func (a *APIService) DownloadArtifact(ctx context.Context, id int64, w io.Writer) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/downloaded_file/%d", a.baseURL, id), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return "", statusError(&APIResponse{StatusCode: resp.StatusCode, Headers: resp.Header, Body: body})
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	filename := fmt.Sprintf("%d", id)
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		filename = params["filename"]
	}
	return filename, nil
}

// DeleteArtifact removes a downloaded file and its record.
func (a *APIService) DeleteArtifact(ctx context.Context, id int64) error {
	_, err := a.Do(ctx, http.MethodDelete, fmt.Sprintf("/downloaded_file/%d", id), nil)
	return err
}
