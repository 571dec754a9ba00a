// Package ratelimit throttles sign-up attempts per client IP. Limits are
// advisory abuse protection, not a correctness mechanism, so the middleware
// fails open when the backing store is unreachable.
package ratelimit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"waitlistd/internal/platform/metrics"
	"waitlistd/internal/waitlist/models"
	"waitlistd/pkg/platform/httputil"
	"waitlistd/pkg/requestcontext"
)

// Result reports the outcome of a limit check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns the whole seconds until the window resets, at least 1.
func (r Result) RetryAfter(now time.Time) int {
	seconds := int(r.ResetAt.Sub(now).Seconds())
	if seconds < 1 {
		return 1
	}
	return seconds
}

// Store counts attempts per key within a window.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}

type Middleware struct {
	store   Store
	limit   int
	window  time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewMiddleware(store Store, limit int, window time.Duration, logger *slog.Logger, m *metrics.Metrics) *Middleware {
	return &Middleware{
		store:   store,
		limit:   limit,
		window:  window,
		logger:  logger,
		metrics: m,
	}
}

// Limit rejects requests over the per-IP budget with 429. Store errors are
// logged and the request passes through.
func (m *Middleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ip := requestcontext.ClientIP(ctx)

		result, err := m.store.Allow(ctx, "signup:"+ip, m.limit, m.window)
		if err != nil {
			m.logger.Error("rate limit check failed", "error", err)
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))

		if !result.Allowed {
			if m.metrics != nil {
				m.metrics.IncrementRateLimited()
			}
			w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter(requestcontext.Now(ctx))))
			httputil.WriteJSON(w, http.StatusTooManyRequests, map[string]any{
				"ok":   false,
				"code": models.CodeRateLimited,
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
