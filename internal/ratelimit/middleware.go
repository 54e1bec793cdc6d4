package ratelimit

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"confreg/internal/audit"
	"confreg/internal/observability/metrics"
)

// Middleware throttles requests per client IP.
type Middleware struct {
	store  Store
	limit  int
	window time.Duration
	logger *zap.Logger
	exempt map[string]struct{}
}

// NewMiddleware constructs a limiter allowing limit requests per window per IP.
func NewMiddleware(store Store, limit int, window time.Duration, logger *zap.Logger, exemptPaths ...string) *Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	exempt := make(map[string]struct{}, len(exemptPaths))
	for _, p := range exemptPaths {
		exempt[p] = struct{}{}
	}
	return &Middleware{store: store, limit: limit, window: window, logger: logger, exempt: exempt}
}

// Wrap applies the limiter to next.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	if m == nil || m.store == nil || m.limit <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := m.exempt[r.URL.Path]; ok {
			next.ServeHTTP(w, r)
			return
		}
		ip := audit.ClientIP(r)
		result, err := m.store.Allow(r.Context(), "ip:"+ip, m.limit, m.window)
		if err != nil {
			m.logger.Error("rate limit check failed", zap.Error(err), zap.String("ip", ip))
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			metrics.IncRateLimited(r.URL.Path)
			w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error":       "rate_limit_exceeded",
				"message":     "Too many requests from this IP, please try again later.",
				"retry_after": result.RetryAfter,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
