package server

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/dlapi/internal/models"
	"github.com/desertthunder/dlapi/internal/shared"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
// Common middleware includes logging, authentication, CORS, rate limiting, etc.
type Middleware func(http.Handler) http.Handler

// Handler defines the interface for groups of endpoints.
// Routes are Go 1.22 [http.ServeMux] patterns including the method, e.g. "GET /download_job/{id}".
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// JobService is the write side of the tracker the handlers call into.
type JobService interface {
	Submit(ctx context.Context, url string) (*models.Job, error)
	DeleteJob(ctx context.Context, id int64) error
	DeleteArtifact(ctx context.Context, id int64) error
}

// NewRouter builds the API router with the full middleware stack.
func NewRouter(cfg shared.ServerConfig, store models.Store, svc JobService, logger *log.Logger) *BasicRouter {
	logger = shared.WithLogger(logger, "component", "http")

	router := NewBasicRouter()
	router.Use(
		Recover(logger),
		RequestID(),
		Logging(logger),
		CORS(cfg.AllowedOrigins),
		RateLimit(cfg.RateLimit, cfg.RateBurst),
		BearerAuth(cfg.AuthToken, "/health"),
	)

	router.Handle(http.MethodGet, "/health", http.HandlerFunc(health))
	router.Handler(NewJobHandler(store, svc, logger))
	router.Handler(NewFileHandler(store, svc, logger))
	return router
}

// NewServer creates the HTTP server listening on cfg.Addr().
func NewServer(cfg shared.ServerConfig, store models.Store, svc JobService, logger *log.Logger) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           NewRouter(cfg, store, svc, logger),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          logger.StandardLog(log.StandardLogOptions{ForceLevel: log.ErrorLevel}),
	}
}

func health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
