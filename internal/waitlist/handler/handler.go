// Package handler exposes the waitlist over HTTP. It owns the response
// envelope and status mapping; all sign-up semantics live in the service.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"waitlistd/internal/platform/metrics"
	"waitlistd/internal/platform/middleware"
	"waitlistd/internal/ratelimit"
	"waitlistd/internal/waitlist/models"
	"waitlistd/pkg/platform/httputil"
	"waitlistd/pkg/platform/middleware/metadata"
	"waitlistd/pkg/platform/middleware/requesttime"
	"waitlistd/pkg/requestcontext"
)

// Service defines the waitlist operations the HTTP layer depends on.
type Service interface {
	Submit(ctx context.Context, raw models.RawSubmission) (models.SubmitOutcome, error)
	Entries(ctx context.Context, limit int) ([]models.DecryptedEntry, error)
	Count(ctx context.Context) (int, error)
}

// HealthCheck probes one dependency for the health endpoint.
type HealthCheck func(ctx context.Context) error

const defaultEntriesLimit = 100

// Handler handles the public sign-up endpoint and the operator surface.
type Handler struct {
	logger  *slog.Logger
	service Service
	metrics *metrics.Metrics
	limiter *ratelimit.Middleware
	admin   *middleware.AdminValidator
	health  map[string]HealthCheck
}

type Option func(*Handler)

// WithRateLimiter throttles the public submit endpoint.
func WithRateLimiter(limiter *ratelimit.Middleware) Option {
	return func(h *Handler) { h.limiter = limiter }
}

// WithAdmin enables the operator endpoints behind bearer token auth. Without
// it the admin routes are not registered at all.
func WithAdmin(validator *middleware.AdminValidator) Option {
	return func(h *Handler) { h.admin = validator }
}

// WithHealthCheck adds a named dependency probe to /healthz.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(h *Handler) { h.health[name] = check }
}

func New(service Service, logger *slog.Logger, m *metrics.Metrics, opts ...Option) *Handler {
	h := &Handler{
		logger:  logger,
		service: service,
		metrics: m,
		health:  make(map[string]HealthCheck),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts all waitlist routes with the shared middleware chain.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(middleware.Recovery(h.logger))
	router.Use(middleware.RequestID)
	router.Use(requesttime.Middleware)
	router.Use(metadata.ClientMetadata)
	router.Use(middleware.Logger(h.logger))
	router.Use(middleware.Timeout(10 * time.Second))

	router.MethodNotAllowed(h.handleMethodNotAllowed)

	router.Route("/submit", func(r chi.Router) {
		r.Options("/", h.handlePreflight)
		post := r.With(middleware.Latency(h.metrics))
		if h.limiter != nil {
			post = post.With(h.limiter.Limit)
		}
		post.Post("/", h.handleSubmit)
	})

	router.Get("/healthz", h.handleHealth)

	if h.admin != nil {
		router.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(h.admin, h.logger))
			r.Get("/admin/entries", h.handleAdminEntries)
		})
	}

	r.Mount("/", router)
}

// handleSubmit processes one sign-up attempt. Every expected outcome arrives
// as a typed result from the service; only unexpected failures take the 500
// path, and those never leave partial state behind.
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var raw models.RawSubmission
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		h.logger.WarnContext(ctx, "undecodable submit body",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteJSON(w, http.StatusBadRequest, envelope{
			OK:   false,
			Code: models.CodeValidationError,
		})
		return
	}

	outcome, err := h.service.Submit(ctx, raw)
	if err != nil {
		h.logger.ErrorContext(ctx, "submit failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteJSON(w, http.StatusInternalServerError, envelope{
			OK:   false,
			Code: models.CodeInternalError,
		})
		return
	}

	if outcome.Status == http.StatusCreated {
		httputil.WriteJSON(w, http.StatusCreated, envelope{OK: true})
		return
	}
	httputil.WriteJSON(w, outcome.Status, envelope{
		OK:     false,
		Code:   outcome.Code,
		Errors: outcome.Errors,
	})
}

// handlePreflight answers CORS preflight with an empty 204.
func (h *Handler) handlePreflight(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusMethodNotAllowed, envelope{
		OK:   false,
		Code: models.CodeMethodNotAllowed,
	})
}

// handleHealth runs every registered dependency probe. Any failure turns the
// whole response into a 503 with per-dependency detail.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := http.StatusOK
	checks := make(map[string]string, len(h.health))
	for name, check := range h.health {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}
	httputil.WriteJSON(w, status, map[string]any{
		"status": http.StatusText(status),
		"checks": checks,
	})
}

func (h *Handler) handleAdminEntries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	entries, err := h.service.Entries(ctx, defaultEntriesLimit)
	if err != nil {
		h.logger.ErrorContext(ctx, "list entries failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	count, err := h.service.Count(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "count entries failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"total":   count,
		"entries": entries,
	})
}

// envelope is the wire shape shared by every submit response.
type envelope struct {
	OK     bool              `json:"ok"`
	Code   string            `json:"code,omitempty"`
	Errors map[string]string `json:"errors,omitempty"`
}
