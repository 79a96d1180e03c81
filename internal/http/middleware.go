package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/example/able-marketplace/internal/application"
	"github.com/example/able-marketplace/internal/logging"
)

type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (application.Principal, error)
}

// RequireSession authenticates every request through the validator and
// attaches the resulting principal to the request context. Routes listed in
// public, given as "METHOD /path" pairs, pass through without a token; a
// valid token on a public route still attaches the principal so sign-up and
// administrator account creation can share one endpoint.
func RequireSession(validator SessionValidator, logger *slog.Logger, public ...string) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	open := make(map[string]struct{}, len(public))
	for _, route := range public {
		open[route] = struct{}{}
	}
	isOpen := func(r *http.Request) bool {
		_, ok := open[r.Method+" "+r.URL.Path]
		return ok
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractTokenFromRequest(r)
			if token == "" {
				if isOpen(r) {
					next.ServeHTTP(w, r)
					return
				}
				responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
				return
			}

			principal, err := validator.ValidateSession(r.Context(), token)
			if err != nil {
				if isOpen(r) {
					next.ServeHTTP(w, r)
					return
				}
				switch {
				case errors.Is(err, application.ErrSessionExpired),
					errors.Is(err, application.ErrSessionRevoked),
					errors.Is(err, application.ErrAccountDisabled):
					responder.handleServiceError(r.Context(), w, err)
				case errors.Is(err, application.ErrUnauthorized),
					errors.Is(err, application.ErrInvalidCredentials),
					errors.Is(err, application.ErrNotFound):
					responder.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{Message: "your session is invalid, sign in again"})
				default:
					responder.writeJSON(r.Context(), w, http.StatusInternalServerError, errorResponse{Message: "session validation failed"})
				}
				return
			}

			ctx := ContextWithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	var counter atomic.Uint64

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := counter.Add(1)
			logger := base.With(
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
			)

			ctx := logging.ContextWithLogger(r.Context(), logger)
			start := time.Now()
			logger.InfoContext(ctx, "request started")
			next.ServeHTTP(w, r.WithContext(ctx))
			logger.InfoContext(ctx, "request completed", "duration", time.Since(start))
		})
	}
}
