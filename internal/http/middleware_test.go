package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/able-marketplace/internal/application"
	"github.com/example/able-marketplace/internal/logging"
)

type fakeSessionValidator struct {
	principal application.Principal
	err       error
	seen      []string
}

func (f *fakeSessionValidator) ValidateSession(ctx context.Context, token string) (application.Principal, error) {
	f.seen = append(f.seen, token)
	return f.principal, f.err
}

func TestRequireSession(t *testing.T) {
	t.Parallel()

	t.Run("rejects requests without valid session tokens", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name           string
			cookieToken    *http.Cookie
			headerToken    string
			lookupError    error
			expectedStatus int
		}{
			{
				name:           "missing credentials",
				expectedStatus: http.StatusUnauthorized,
			},
			{
				name:           "unknown token",
				headerToken:    "Bearer malformed",
				lookupError:    application.ErrUnauthorized,
				expectedStatus: http.StatusUnauthorized,
			},
			{
				name:           "revoked session",
				cookieToken:    &http.Cookie{Name: "session_token", Value: "revoked-token"},
				lookupError:    application.ErrSessionRevoked,
				expectedStatus: http.StatusUnauthorized,
			},
			{
				name:           "expired session",
				headerToken:    "Bearer expired-token",
				lookupError:    application.ErrSessionExpired,
				expectedStatus: http.StatusUnauthorized,
			},
			{
				name:           "disabled account",
				headerToken:    "Bearer disabled-token",
				lookupError:    application.ErrAccountDisabled,
				expectedStatus: http.StatusForbidden,
			},
		}

		for _, tc := range tests {
			tc := tc
			t.Run(tc.name, func(t *testing.T) {
				t.Parallel()

				req := httptest.NewRequest(http.MethodGet, "/protected", nil)
				if tc.cookieToken != nil {
					req.AddCookie(tc.cookieToken)
				}
				if tc.headerToken != "" {
					req.Header.Set("Authorization", tc.headerToken)
				}

				recorder := httptest.NewRecorder()
				validator := &fakeSessionValidator{err: tc.lookupError}

				handler := RequireSession(validator, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					t.Fatal("next handler should not be called when authentication fails")
				}))
				handler.ServeHTTP(recorder, req)

				if recorder.Code != tc.expectedStatus {
					t.Fatalf("expected status %d, got %d: %s", tc.expectedStatus, recorder.Code, recorder.Body.String())
				}
			})
		}
	})

	t.Run("attaches the authenticated principal to the request context", func(t *testing.T) {
		t.Parallel()

		principal := application.Principal{UserID: "user-123", Role: application.RoleWorker, IsAdmin: true}

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.AddCookie(&http.Cookie{Name: "session_token", Value: "valid-token"})
		recorder := httptest.NewRecorder()

		validator := &fakeSessionValidator{principal: principal}

		handler := RequireSession(validator, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := PrincipalFromContext(r.Context())
			if !ok {
				t.Fatal("expected principal in request context")
			}
			if got != principal {
				t.Fatalf("expected %+v, got %+v", principal, got)
			}
			w.WriteHeader(http.StatusOK)
		}))
		handler.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", recorder.Code)
		}
		if len(validator.seen) != 1 || validator.seen[0] != "valid-token" {
			t.Fatalf("expected validator to see the cookie token, got %+v", validator.seen)
		}
	})

	t.Run("public routes pass without a token", func(t *testing.T) {
		t.Parallel()

		validator := &fakeSessionValidator{err: application.ErrUnauthorized}
		called := false

		handler := RequireSession(validator, nil, "POST /users")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			if _, ok := PrincipalFromContext(r.Context()); ok {
				t.Fatal("expected no principal on an anonymous public request")
			}
			w.WriteHeader(http.StatusCreated)
		}))

		req := httptest.NewRequest(http.MethodPost, "/users", nil)
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)

		if !called {
			t.Fatal("expected next handler to run on a public route")
		}
		if recorder.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", recorder.Code)
		}

		// The same route with a different method is still protected.
		req = httptest.NewRequest(http.MethodGet, "/users", nil)
		recorder = httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)
		if recorder.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 for protected method, got %d", recorder.Code)
		}
	})

	t.Run("public routes still attach a valid principal", func(t *testing.T) {
		t.Parallel()

		principal := application.Principal{UserID: "admin-1", IsAdmin: true}
		validator := &fakeSessionValidator{principal: principal}

		handler := RequireSession(validator, nil, "POST /users")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := PrincipalFromContext(r.Context())
			if !ok || !got.IsAdmin {
				t.Fatalf("expected admin principal, got %+v ok=%v", got, ok)
			}
			w.WriteHeader(http.StatusCreated)
		}))

		req := httptest.NewRequest(http.MethodPost, "/users", nil)
		req.Header.Set("Authorization", "Bearer admin-token")
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", recorder.Code)
		}
	})
}

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	seen := false
	handler := RequestLogger(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = true
		if logging.FromContext(r.Context()) == nil {
			t.Fatal("expected request scoped logger in context")
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if !seen {
		t.Fatal("expected next handler to run")
	}
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
}
