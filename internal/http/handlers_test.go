package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/able-marketplace/internal/application"
	"github.com/example/able-marketplace/internal/calendar"
	"github.com/example/able-marketplace/internal/recurrence"
)

func withPrincipal(principal application.Principal) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(target); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
}

type authServiceStub struct {
	authenticateFn func(ctx context.Context, params application.AuthenticateParams) (application.AuthenticateResult, error)
	revokeFn       func(ctx context.Context, token string) error
}

func (s *authServiceStub) Authenticate(ctx context.Context, params application.AuthenticateParams) (application.AuthenticateResult, error) {
	if s.authenticateFn == nil {
		return application.AuthenticateResult{}, nil
	}
	return s.authenticateFn(ctx, params)
}

func (s *authServiceStub) RevokeSession(ctx context.Context, token string) error {
	if s.revokeFn == nil {
		return nil
	}
	return s.revokeFn(ctx, token)
}

func TestAuthHandler_CreateSession(t *testing.T) {
	t.Parallel()

	t.Run("issues token via body, header and cookie", func(t *testing.T) {
		t.Parallel()

		expires := time.Date(2025, time.June, 3, 9, 0, 0, 0, time.UTC)
		service := &authServiceStub{
			authenticateFn: func(ctx context.Context, params application.AuthenticateParams) (application.AuthenticateResult, error) {
				if params.Email != "worker@example.com" {
					t.Fatalf("unexpected email %q", params.Email)
				}
				return application.AuthenticateResult{
					User:    application.User{ID: "user-1", Email: params.Email, Role: application.RoleWorker},
					Session: application.Session{ID: "session-1", UserID: "user-1", Token: "signed-token", ExpiresAt: expires},
				}, nil
			},
		}

		router := NewRouter(RouterConfig{Auth: NewAuthHandler(service, nil)})
		req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(`{"email":"Worker@Example.com","password":"correct horse"}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if got := rec.Header().Get("X-Session-Token"); got != "signed-token" {
			t.Fatalf("expected session token header, got %q", got)
		}
		if !strings.Contains(rec.Header().Get("Set-Cookie"), "session_token=signed-token") {
			t.Fatalf("expected session cookie, got %q", rec.Header().Get("Set-Cookie"))
		}

		var resp loginResponse
		decodeBody(t, rec, &resp)
		if resp.Token != "signed-token" {
			t.Fatalf("expected token in body, got %q", resp.Token)
		}
		if resp.User.ID != "user-1" {
			t.Fatalf("expected user payload, got %+v", resp.User)
		}
	})

	t.Run("maps invalid credentials to 401", func(t *testing.T) {
		t.Parallel()

		service := &authServiceStub{
			authenticateFn: func(ctx context.Context, params application.AuthenticateParams) (application.AuthenticateResult, error) {
				return application.AuthenticateResult{}, application.ErrInvalidCredentials
			},
		}

		router := NewRouter(RouterConfig{Auth: NewAuthHandler(service, nil)})
		req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(`{"email":"worker@example.com","password":"wrong"}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		var resp errorResponse
		decodeBody(t, rec, &resp)
		if resp.ErrorCode != "AUTH_INVALID_CREDENTIALS" {
			t.Fatalf("expected AUTH_INVALID_CREDENTIALS, got %q", resp.ErrorCode)
		}
	})

	t.Run("rejects malformed bodies and missing fields", func(t *testing.T) {
		t.Parallel()

		router := NewRouter(RouterConfig{Auth: NewAuthHandler(&authServiceStub{}, nil)})

		req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader("{"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for malformed JSON, got %d", rec.Code)
		}

		req = httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(`{"password":"secret"}`))
		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422 for missing email, got %d", rec.Code)
		}
		var resp errorResponse
		decodeBody(t, rec, &resp)
		if _, ok := resp.Errors["email"]; !ok {
			t.Fatalf("expected email field error, got %+v", resp.Errors)
		}
	})
}

type availabilityServiceStub struct {
	createFn    func(ctx context.Context, params application.CreateRuleParams) (recurrence.Rule, []application.ConflictWarning, error)
	updateFn    func(ctx context.Context, params application.UpdateRuleParams) (recurrence.Rule, []application.ConflictWarning, error)
	deleteFn    func(ctx context.Context, principal application.Principal, ruleID string) error
	clearFn     func(ctx context.Context, principal application.Principal, workerID string) error
	listFn      func(ctx context.Context, principal application.Principal, workerID string) ([]recurrence.Rule, []application.ConflictWarning, error)
	expandFn    func(ctx context.Context, principal application.Principal, workerID string, windowStart, windowEnd time.Time) ([]recurrence.Occurrence, error)
	monthViewFn func(ctx context.Context, params application.MonthViewParams) (application.MonthView, error)
}

func (s *availabilityServiceStub) CreateRule(ctx context.Context, params application.CreateRuleParams) (recurrence.Rule, []application.ConflictWarning, error) {
	if s.createFn == nil {
		return recurrence.Rule{}, nil, nil
	}
	return s.createFn(ctx, params)
}

func (s *availabilityServiceStub) UpdateRule(ctx context.Context, params application.UpdateRuleParams) (recurrence.Rule, []application.ConflictWarning, error) {
	if s.updateFn == nil {
		return recurrence.Rule{}, nil, nil
	}
	return s.updateFn(ctx, params)
}

func (s *availabilityServiceStub) DeleteRule(ctx context.Context, principal application.Principal, ruleID string) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, principal, ruleID)
}

func (s *availabilityServiceStub) ClearRules(ctx context.Context, principal application.Principal, workerID string) error {
	if s.clearFn == nil {
		return nil
	}
	return s.clearFn(ctx, principal, workerID)
}

func (s *availabilityServiceStub) ListRules(ctx context.Context, principal application.Principal, workerID string) ([]recurrence.Rule, []application.ConflictWarning, error) {
	if s.listFn == nil {
		return nil, nil, nil
	}
	return s.listFn(ctx, principal, workerID)
}

func (s *availabilityServiceStub) Expand(ctx context.Context, principal application.Principal, workerID string, windowStart, windowEnd time.Time) ([]recurrence.Occurrence, error) {
	if s.expandFn == nil {
		return nil, nil
	}
	return s.expandFn(ctx, principal, workerID, windowStart, windowEnd)
}

func (s *availabilityServiceStub) MonthView(ctx context.Context, params application.MonthViewParams) (application.MonthView, error) {
	if s.monthViewFn == nil {
		return application.MonthView{}, nil
	}
	return s.monthViewFn(ctx, params)
}

func availabilityRouter(service availabilityService, principal application.Principal) http.Handler {
	return NewRouter(RouterConfig{
		Availability: NewAvailabilityHandler(service, nil),
		Middleware:   []func(http.Handler) http.Handler{withPrincipal(principal)},
	})
}

func TestAvailabilityHandler_CreateForWorker(t *testing.T) {
	t.Parallel()

	t.Run("persists the rule and serializes warnings", func(t *testing.T) {
		t.Parallel()

		principal := application.Principal{UserID: "worker-1", Role: application.RoleWorker}
		service := &availabilityServiceStub{
			createFn: func(ctx context.Context, params application.CreateRuleParams) (recurrence.Rule, []application.ConflictWarning, error) {
				if params.WorkerID != "worker-1" {
					t.Fatalf("unexpected worker id %q", params.WorkerID)
				}
				if params.Input.StartTime != "09:00" || params.Input.Frequency != "weekly" {
					t.Fatalf("unexpected input %+v", params.Input)
				}
				rule := recurrence.Rule{
					ID:        "rule-1",
					WorkerID:  params.WorkerID,
					StartTime: params.Input.StartTime,
					EndTime:   params.Input.EndTime,
					Days:      params.Input.Days,
					Frequency: recurrence.FrequencyWeekly,
					Ends:      recurrence.EndsNever,
				}
				return rule, []application.ConflictWarning{{RuleID: "rule-0"}}, nil
			},
		}

		body := `{"start_time":"09:00","end_time":"17:00","days":["monday","friday"],"frequency":"weekly","ends":"never"}`
		req := httptest.NewRequest(http.MethodPost, "/workers/worker-1/availability", strings.NewReader(body))
		rec := httptest.NewRecorder()
		availabilityRouter(service, principal).ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}

		var resp ruleResponse
		decodeBody(t, rec, &resp)
		if resp.Rule.ID != "rule-1" {
			t.Fatalf("expected rule-1, got %q", resp.Rule.ID)
		}
		if resp.Rule.Summary == "" {
			t.Fatal("expected a human readable summary")
		}
		if !strings.Contains(resp.Rule.RRule, "FREQ=WEEKLY") {
			t.Fatalf("expected weekly rrule, got %q", resp.Rule.RRule)
		}
		if len(resp.Warnings) != 1 || resp.Warnings[0].RuleID != "rule-0" {
			t.Fatalf("expected warning for rule-0, got %+v", resp.Warnings)
		}
	})

	t.Run("rejects frequencies outside the vocabulary before the service runs", func(t *testing.T) {
		t.Parallel()

		service := &availabilityServiceStub{
			createFn: func(ctx context.Context, params application.CreateRuleParams) (recurrence.Rule, []application.ConflictWarning, error) {
				t.Fatal("service should not be called")
				return recurrence.Rule{}, nil, nil
			},
		}

		body := `{"start_time":"09:00","end_time":"17:00","frequency":"hourly"}`
		req := httptest.NewRequest(http.MethodPost, "/workers/worker-1/availability", strings.NewReader(body))
		rec := httptest.NewRecorder()
		availabilityRouter(service, application.Principal{UserID: "worker-1"}).ServeHTTP(rec, req)

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		var resp errorResponse
		decodeBody(t, rec, &resp)
		if _, ok := resp.Errors["frequency"]; !ok {
			t.Fatalf("expected frequency field error, got %+v", resp.Errors)
		}
	})

	t.Run("maps authorization failures to 403", func(t *testing.T) {
		t.Parallel()

		service := &availabilityServiceStub{
			createFn: func(ctx context.Context, params application.CreateRuleParams) (recurrence.Rule, []application.ConflictWarning, error) {
				return recurrence.Rule{}, nil, application.ErrUnauthorized
			},
		}

		body := `{"start_time":"09:00","end_time":"17:00"}`
		req := httptest.NewRequest(http.MethodPost, "/workers/worker-2/availability", strings.NewReader(body))
		rec := httptest.NewRecorder()
		availabilityRouter(service, application.Principal{UserID: "worker-1"}).ServeHTTP(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
		var resp errorResponse
		decodeBody(t, rec, &resp)
		if resp.ErrorCode != "AUTH_FORBIDDEN" {
			t.Fatalf("expected AUTH_FORBIDDEN, got %q", resp.ErrorCode)
		}
	})
}

func TestAvailabilityHandler_MonthGrid(t *testing.T) {
	t.Parallel()

	t.Run("passes the month through and serializes the grid", func(t *testing.T) {
		t.Parallel()

		loc := time.UTC
		service := &availabilityServiceStub{
			monthViewFn: func(ctx context.Context, params application.MonthViewParams) (application.MonthView, error) {
				if params.Year != 2025 || params.Month != time.June {
					t.Fatalf("unexpected month %d-%d", params.Year, params.Month)
				}
				if params.Selected == nil || params.Selected.Day() != 13 {
					t.Fatalf("expected selected 13th, got %v", params.Selected)
				}
				return application.MonthView{
					Grid: calendar.Grid{
						Year:  2025,
						Month: time.June,
						Cells: []calendar.Cell{
							{Date: time.Date(2025, time.June, 1, 0, 0, 0, 0, loc), InMonth: true, HasAvailability: true},
							{Date: time.Date(2025, time.June, 2, 0, 0, 0, 0, loc), InMonth: true, Gigs: []calendar.GigEvent{{ID: "gig-1", Title: "Shift"}}},
						},
					},
					Warnings: []application.ConflictWarning{{RuleID: "rule-2"}},
				}, nil
			},
		}

		req := httptest.NewRequest(http.MethodGet, "/workers/worker-1/calendar?month=2025-06&selected=2025-06-13", nil)
		rec := httptest.NewRecorder()
		availabilityRouter(service, application.Principal{UserID: "worker-1"}).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var resp monthViewResponse
		decodeBody(t, rec, &resp)
		if resp.Year != 2025 || resp.Month != 6 {
			t.Fatalf("unexpected month header %d-%d", resp.Year, resp.Month)
		}
		if len(resp.Cells) != 2 {
			t.Fatalf("expected 2 cells, got %d", len(resp.Cells))
		}
		if resp.Cells[0].Date != "2025-06-01" || !resp.Cells[0].HasAvailability {
			t.Fatalf("unexpected first cell %+v", resp.Cells[0])
		}
		if len(resp.Cells[1].Gigs) != 1 || resp.Cells[1].Gigs[0].ID != "gig-1" {
			t.Fatalf("expected gig on second cell, got %+v", resp.Cells[1])
		}
		if len(resp.Warnings) != 1 || resp.Warnings[0].RuleID != "rule-2" {
			t.Fatalf("expected warning, got %+v", resp.Warnings)
		}
	})

	t.Run("rejects malformed month parameters", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/workers/worker-1/calendar?month=June", nil)
		rec := httptest.NewRecorder()
		availabilityRouter(&availabilityServiceStub{}, application.Principal{UserID: "worker-1"}).ServeHTTP(rec, req)

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		var resp errorResponse
		decodeBody(t, rec, &resp)
		if _, ok := resp.Errors["month"]; !ok {
			t.Fatalf("expected month field error, got %+v", resp.Errors)
		}
	})
}

func TestAvailabilityHandler_ExportICS(t *testing.T) {
	t.Parallel()

	service := &availabilityServiceStub{
		expandFn: func(ctx context.Context, principal application.Principal, workerID string, windowStart, windowEnd time.Time) ([]recurrence.Occurrence, error) {
			if workerID != "worker-1" {
				t.Fatalf("unexpected worker id %q", workerID)
			}
			return []recurrence.Occurrence{
				{
					ID:    "rule-1-2025-06-02",
					Start: time.Date(2025, time.June, 2, 9, 0, 0, 0, time.UTC),
					End:   time.Date(2025, time.June, 2, 17, 0, 0, 0, time.UTC),
				},
				{
					ID:    "rule-1-2025-06-09",
					Start: time.Date(2025, time.June, 9, 9, 0, 0, 0, time.UTC),
					End:   time.Date(2025, time.June, 9, 17, 0, 0, 0, time.UTC),
				},
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/workers/worker-1/availability.ics", nil)
	rec := httptest.NewRecorder()
	availabilityRouter(service, application.Principal{UserID: "buyer-1"}).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/calendar") {
		t.Fatalf("expected text/calendar content type, got %q", got)
	}

	body := rec.Body.String()
	if !strings.Contains(body, "BEGIN:VCALENDAR") {
		t.Fatal("expected a VCALENDAR envelope")
	}
	if got := strings.Count(body, "BEGIN:VEVENT"); got != 2 {
		t.Fatalf("expected one VEVENT per occurrence, got %d", got)
	}
	if !strings.Contains(body, "rule-1-2025-06-02@able-marketplace") {
		t.Fatal("expected occurrence id in VEVENT UID")
	}
}

type gigServiceStub struct {
	createFn   func(ctx context.Context, params application.CreateGigParams) (application.Gig, error)
	acceptFn   func(ctx context.Context, principal application.Principal, gigID string) (application.Gig, error)
	completeFn func(ctx context.Context, principal application.Principal, gigID string) (application.Gig, error)
	cancelFn   func(ctx context.Context, principal application.Principal, gigID string) (application.Gig, error)
	getFn      func(ctx context.Context, principal application.Principal, gigID string) (application.Gig, error)
	listFn     func(ctx context.Context, params application.ListGigsParams) ([]application.Gig, error)
}

func (s *gigServiceStub) CreateGig(ctx context.Context, params application.CreateGigParams) (application.Gig, error) {
	if s.createFn == nil {
		return application.Gig{}, nil
	}
	return s.createFn(ctx, params)
}

func (s *gigServiceStub) AcceptGig(ctx context.Context, principal application.Principal, gigID string) (application.Gig, error) {
	if s.acceptFn == nil {
		return application.Gig{}, nil
	}
	return s.acceptFn(ctx, principal, gigID)
}

func (s *gigServiceStub) CompleteGig(ctx context.Context, principal application.Principal, gigID string) (application.Gig, error) {
	if s.completeFn == nil {
		return application.Gig{}, nil
	}
	return s.completeFn(ctx, principal, gigID)
}

func (s *gigServiceStub) CancelGig(ctx context.Context, principal application.Principal, gigID string) (application.Gig, error) {
	if s.cancelFn == nil {
		return application.Gig{}, nil
	}
	return s.cancelFn(ctx, principal, gigID)
}

func (s *gigServiceStub) GetGig(ctx context.Context, principal application.Principal, gigID string) (application.Gig, error) {
	if s.getFn == nil {
		return application.Gig{}, nil
	}
	return s.getFn(ctx, principal, gigID)
}

func (s *gigServiceStub) ListGigs(ctx context.Context, params application.ListGigsParams) ([]application.Gig, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, params)
}

func gigRouter(service gigService, principal application.Principal) http.Handler {
	return NewRouter(RouterConfig{
		Gigs:       NewGigHandler(service, nil),
		Middleware: []func(http.Handler) http.Handler{withPrincipal(principal)},
	})
}

func TestGigHandler_Transitions(t *testing.T) {
	t.Parallel()

	t.Run("accept resolves the gig id from the path", func(t *testing.T) {
		t.Parallel()

		service := &gigServiceStub{
			acceptFn: func(ctx context.Context, principal application.Principal, gigID string) (application.Gig, error) {
				if gigID != "gig-1" {
					t.Fatalf("unexpected gig id %q", gigID)
				}
				return application.Gig{ID: gigID, Status: application.GigStatusAccepted}, nil
			},
		}

		req := httptest.NewRequest(http.MethodPost, "/gigs/gig-1/accept", nil)
		rec := httptest.NewRecorder()
		gigRouter(service, application.Principal{UserID: "worker-1"}).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var resp gigResponse
		decodeBody(t, rec, &resp)
		if resp.Gig.Status != "accepted" {
			t.Fatalf("expected accepted, got %q", resp.Gig.Status)
		}
	})

	t.Run("maps lifecycle violations to 409", func(t *testing.T) {
		t.Parallel()

		service := &gigServiceStub{
			completeFn: func(ctx context.Context, principal application.Principal, gigID string) (application.Gig, error) {
				return application.Gig{}, fmt.Errorf("gig %s is offered: %w", gigID, application.ErrInvalidState)
			},
		}

		req := httptest.NewRequest(http.MethodPost, "/gigs/gig-1/complete", nil)
		rec := httptest.NewRecorder()
		gigRouter(service, application.Principal{UserID: "buyer-1"}).ServeHTTP(rec, req)

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		var resp errorResponse
		decodeBody(t, rec, &resp)
		if resp.ErrorCode != "GIG_INVALID_STATE" {
			t.Fatalf("expected GIG_INVALID_STATE, got %q", resp.ErrorCode)
		}
	})

	t.Run("maps payment failures to 502", func(t *testing.T) {
		t.Parallel()

		service := &gigServiceStub{
			acceptFn: func(ctx context.Context, principal application.Principal, gigID string) (application.Gig, error) {
				return application.Gig{}, application.ErrPaymentFailed
			},
		}

		req := httptest.NewRequest(http.MethodPost, "/gigs/gig-1/accept", nil)
		rec := httptest.NewRecorder()
		gigRouter(service, application.Principal{UserID: "worker-1"}).ServeHTTP(rec, req)

		if rec.Code != http.StatusBadGateway {
			t.Fatalf("expected 502, got %d", rec.Code)
		}
		var resp errorResponse
		decodeBody(t, rec, &resp)
		if resp.ErrorCode != "PAYMENT_FAILED" {
			t.Fatalf("expected PAYMENT_FAILED, got %q", resp.ErrorCode)
		}
	})
}

func TestGigHandler_List(t *testing.T) {
	t.Parallel()

	service := &gigServiceStub{
		listFn: func(ctx context.Context, params application.ListGigsParams) ([]application.Gig, error) {
			if params.WorkerID != "worker-1" {
				t.Fatalf("unexpected worker filter %q", params.WorkerID)
			}
			if len(params.Statuses) != 2 || params.Statuses[0] != application.GigStatusOffered || params.Statuses[1] != application.GigStatusAccepted {
				t.Fatalf("unexpected status filter %+v", params.Statuses)
			}
			if params.StartsAfter == nil || params.StartsAfter.Year() != 2025 {
				t.Fatalf("unexpected starts_after %+v", params.StartsAfter)
			}
			return []application.Gig{{ID: "gig-1", Status: application.GigStatusOffered}}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/gigs?worker_id=worker-1&status=offered,accepted&starts_after=2025-06-01T00:00:00Z", nil)
	rec := httptest.NewRecorder()
	gigRouter(service, application.Principal{UserID: "worker-1"}).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp listGigsResponse
	decodeBody(t, rec, &resp)
	if len(resp.Gigs) != 1 || resp.Gigs[0].ID != "gig-1" {
		t.Fatalf("unexpected gigs %+v", resp.Gigs)
	}
}

func TestGigHandler_CreateValidation(t *testing.T) {
	t.Parallel()

	service := &gigServiceStub{
		createFn: func(ctx context.Context, params application.CreateGigParams) (application.Gig, error) {
			t.Fatal("service should not be called")
			return application.Gig{}, nil
		},
	}

	body := `{"worker_id":"worker-1","title":"","start":"2025-06-13T09:00:00Z","end":"2025-06-13T17:00:00Z","amount_pence":0}`
	req := httptest.NewRequest(http.MethodPost, "/gigs", strings.NewReader(body))
	rec := httptest.NewRecorder()
	gigRouter(service, application.Principal{UserID: "buyer-1", Role: application.RoleBuyer}).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	var resp errorResponse
	decodeBody(t, rec, &resp)
	if _, ok := resp.Errors["title"]; !ok {
		t.Fatalf("expected title field error, got %+v", resp.Errors)
	}
	if _, ok := resp.Errors["amount_pence"]; !ok {
		t.Fatalf("expected amount_pence field error, got %+v", resp.Errors)
	}
}

type userServiceStub struct {
	registerFn func(ctx context.Context, input application.UserInput) (application.User, error)
	createFn   func(ctx context.Context, params application.CreateUserParams) (application.User, error)
	updateFn   func(ctx context.Context, params application.UpdateUserParams) (application.User, error)
	deleteFn   func(ctx context.Context, principal application.Principal, userID string) error
	getFn      func(ctx context.Context, principal application.Principal, userID string) (application.User, error)
	listFn     func(ctx context.Context, principal application.Principal) ([]application.User, error)
}

func (s *userServiceStub) RegisterUser(ctx context.Context, input application.UserInput) (application.User, error) {
	if s.registerFn == nil {
		return application.User{}, nil
	}
	return s.registerFn(ctx, input)
}

func (s *userServiceStub) CreateUser(ctx context.Context, params application.CreateUserParams) (application.User, error) {
	if s.createFn == nil {
		return application.User{}, nil
	}
	return s.createFn(ctx, params)
}

func (s *userServiceStub) UpdateUser(ctx context.Context, params application.UpdateUserParams) (application.User, error) {
	if s.updateFn == nil {
		return application.User{}, nil
	}
	return s.updateFn(ctx, params)
}

func (s *userServiceStub) DeleteUser(ctx context.Context, principal application.Principal, userID string) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, principal, userID)
}

func (s *userServiceStub) GetUser(ctx context.Context, principal application.Principal, userID string) (application.User, error) {
	if s.getFn == nil {
		return application.User{}, nil
	}
	return s.getFn(ctx, principal, userID)
}

func (s *userServiceStub) ListUsers(ctx context.Context, principal application.Principal) ([]application.User, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, principal)
}

func TestUserHandler_Create(t *testing.T) {
	t.Parallel()

	t.Run("unauthenticated callers register through sign-up", func(t *testing.T) {
		t.Parallel()

		registered := false
		service := &userServiceStub{
			registerFn: func(ctx context.Context, input application.UserInput) (application.User, error) {
				registered = true
				return application.User{ID: "user-1", Email: input.Email, Role: input.Role}, nil
			},
			createFn: func(ctx context.Context, params application.CreateUserParams) (application.User, error) {
				t.Fatal("admin creation should not run without a principal")
				return application.User{}, nil
			},
		}

		router := NewRouter(RouterConfig{Users: NewUserHandler(service, nil)})
		body := `{"email":"worker@example.com","display_name":"Worker","role":"worker","password":"correct horse"}`
		req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if !registered {
			t.Fatal("expected RegisterUser to be called")
		}
	})

	t.Run("administrators create accounts directly", func(t *testing.T) {
		t.Parallel()

		service := &userServiceStub{
			registerFn: func(ctx context.Context, input application.UserInput) (application.User, error) {
				t.Fatal("sign-up should not run for administrators")
				return application.User{}, nil
			},
			createFn: func(ctx context.Context, params application.CreateUserParams) (application.User, error) {
				if !params.Principal.IsAdmin {
					t.Fatal("expected admin principal")
				}
				return application.User{ID: "user-2", IsAdmin: params.Input.IsAdmin}, nil
			},
		}

		router := NewRouter(RouterConfig{
			Users:      NewUserHandler(service, nil),
			Middleware: []func(http.Handler) http.Handler{withPrincipal(application.Principal{UserID: "admin-1", IsAdmin: true})},
		})
		body := `{"email":"buyer@example.com","display_name":"Buyer","role":"buyer","password":"correct horse","is_admin":true}`
		req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		var resp userResponse
		decodeBody(t, rec, &resp)
		if !resp.User.IsAdmin {
			t.Fatal("expected admin flag to survive admin creation")
		}
	})

	t.Run("rejects invalid payloads", func(t *testing.T) {
		t.Parallel()

		router := NewRouter(RouterConfig{Users: NewUserHandler(&userServiceStub{}, nil)})
		body := `{"email":"not-an-email","display_name":"Worker","role":"driver","password":"short"}`
		req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		var resp errorResponse
		decodeBody(t, rec, &resp)
		for _, field := range []string{"email", "role", "password"} {
			if _, ok := resp.Errors[field]; !ok {
				t.Fatalf("expected %s field error, got %+v", field, resp.Errors)
			}
		}
	})
}

type suggestionServiceStub struct {
	suggestFn func(ctx context.Context, principal application.Principal, messages []application.Message) (string, error)
}

func (s *suggestionServiceStub) SuggestReply(ctx context.Context, principal application.Principal, messages []application.Message) (string, error) {
	if s.suggestFn == nil {
		return "", nil
	}
	return s.suggestFn(ctx, principal, messages)
}

func TestSuggestionHandler_Suggest(t *testing.T) {
	t.Parallel()

	t.Run("returns the generated suggestion", func(t *testing.T) {
		t.Parallel()

		service := &suggestionServiceStub{
			suggestFn: func(ctx context.Context, principal application.Principal, messages []application.Message) (string, error) {
				if len(messages) != 2 {
					t.Fatalf("expected 2 messages, got %d", len(messages))
				}
				return "Sounds good, see you Friday.", nil
			},
		}

		router := NewRouter(RouterConfig{
			Suggestions: NewSuggestionHandler(service, nil),
			Middleware:  []func(http.Handler) http.Handler{withPrincipal(application.Principal{UserID: "worker-1"})},
		})
		body := `{"messages":[{"role":"buyer","text":"Can you do Friday?"},{"role":"worker","text":"Let me check."}]}`
		req := httptest.NewRequest(http.MethodPost, "/suggestions", strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var resp suggestionResponse
		decodeBody(t, rec, &resp)
		if resp.Suggestion != "Sounds good, see you Friday." {
			t.Fatalf("unexpected suggestion %q", resp.Suggestion)
		}
	})

	t.Run("rejects empty transcripts", func(t *testing.T) {
		t.Parallel()

		router := NewRouter(RouterConfig{
			Suggestions: NewSuggestionHandler(&suggestionServiceStub{}, nil),
			Middleware:  []func(http.Handler) http.Handler{withPrincipal(application.Principal{UserID: "worker-1"})},
		})
		req := httptest.NewRequest(http.MethodPost, "/suggestions", strings.NewReader(`{"messages":[]}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
	})
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	router := NewRouter(RouterConfig{
		Gigs:       NewGigHandler(&gigServiceStub{}, nil),
		Middleware: []func(http.Handler) http.Handler{withPrincipal(application.Principal{UserID: "worker-1"})},
	})

	req := httptest.NewRequest(http.MethodDelete, "/gigs", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); !strings.Contains(allow, http.MethodPost) {
		t.Fatalf("expected Allow header to include POST, got %q", allow)
	}
}
