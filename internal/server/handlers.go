package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/dlapi/internal/models"
	"github.com/desertthunder/dlapi/internal/shared"
)

const maxBodyBytes = 1 << 20

// JobHandler serves /download_job.
type JobHandler struct {
	store  models.JobStore
	svc    JobService
	logger *log.Logger
	mux    *http.ServeMux
}

// NewJobHandler creates the job endpoints.
func NewJobHandler(store models.JobStore, svc JobService, logger *log.Logger) *JobHandler {
	h := &JobHandler{store: store, svc: svc, logger: logger, mux: http.NewServeMux()}
	h.mux.HandleFunc("POST /download_job", h.create)
	h.mux.HandleFunc("GET /download_job", h.list)
	h.mux.HandleFunc("GET /download_job/{id}", h.get)
	h.mux.HandleFunc("DELETE /download_job/{id}", h.delete)
	return h
}

func (h *JobHandler) Routes() []string {
	return []string{
		"POST /download_job",
		"GET /download_job",
		"GET /download_job/{id}",
		"DELETE /download_job/{id}",
	}
}

func (h *JobHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

type createJobRequest struct {
	URL string `json:"url"`
}

type createJobResponse struct {
	ID int64 `json:"id"`
}

func (h *JobHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid request body: %v", shared.ErrInvalidInput, err))
		return
	}

	job, err := h.svc.Submit(r.Context(), req.URL)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, createJobResponse{ID: job.ID})
}

func (h *JobHandler) list(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.store.ListJobs(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (h *JobHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	job, err := h.store.GetJob(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *JobHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.svc.DeleteJob(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *JobHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if statusFor(err) == http.StatusInternalServerError {
		h.logger.Error("request failed", "path", r.URL.Path, "error", err, "request_id", RequestIDFrom(r.Context()))
	}
	writeError(w, err)
}

// FileHandler serves /downloaded_file. Ids are artifact ids.
type FileHandler struct {
	store  models.ArtifactStore
	svc    JobService
	logger *log.Logger
	mux    *http.ServeMux
}

// NewFileHandler creates the artifact endpoints.
func NewFileHandler(store models.ArtifactStore, svc JobService, logger *log.Logger) *FileHandler {
	h := &FileHandler{store: store, svc: svc, logger: logger, mux: http.NewServeMux()}
	h.mux.HandleFunc("GET /downloaded_file", h.list)
	h.mux.HandleFunc("GET /downloaded_file/{id}", h.download)
	h.mux.HandleFunc("DELETE /downloaded_file/{id}", h.delete)
	return h
}

func (h *FileHandler) Routes() []string {
	return []string{
		"GET /downloaded_file",
		"GET /downloaded_file/{id}",
		"DELETE /downloaded_file/{id}",
	}
}

func (h *FileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *FileHandler) list(w http.ResponseWriter, r *http.Request) {
	artifacts, err := h.store.ListArtifacts(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, artifacts)
}

// download streams the artifact's file as an attachment.
func (h *FileHandler) download(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	artifact, err := h.store.GetArtifact(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	f, err := os.Open(artifact.Path)
	if errors.Is(err, os.ErrNotExist) {
		h.logger.Warn("artifact file missing", "artifact", id, "path", artifact.Path)
		writeError(w, fmt.Errorf("%w: file for artifact %d", shared.ErrNotFound, id))
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		h.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": artifact.Filename()}))
	http.ServeContent(w, r, artifact.Filename(), info.ModTime(), f)
}

func (h *FileHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.svc.DeleteArtifact(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *FileHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if statusFor(err) == http.StatusInternalServerError {
		h.logger.Error("request failed", "path", r.URL.Path, "error", err, "request_id", RequestIDFrom(r.Context()))
	}
	writeError(w, err)
}

func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: id %q", shared.ErrInvalidArgument, raw)
	}
	return id, nil
}
