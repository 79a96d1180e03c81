package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/example/able-marketplace/internal/application"
	"github.com/example/able-marketplace/internal/recurrence"
)

type availabilityService interface {
	CreateRule(ctx context.Context, params application.CreateRuleParams) (recurrence.Rule, []application.ConflictWarning, error)
	UpdateRule(ctx context.Context, params application.UpdateRuleParams) (recurrence.Rule, []application.ConflictWarning, error)
	DeleteRule(ctx context.Context, principal application.Principal, ruleID string) error
	ClearRules(ctx context.Context, principal application.Principal, workerID string) error
	ListRules(ctx context.Context, principal application.Principal, workerID string) ([]recurrence.Rule, []application.ConflictWarning, error)
	Expand(ctx context.Context, principal application.Principal, workerID string, windowStart, windowEnd time.Time) ([]recurrence.Occurrence, error)
	MonthView(ctx context.Context, params application.MonthViewParams) (application.MonthView, error)
}

type AvailabilityHandler struct {
	service   availabilityService
	responder responder
	now       func() time.Time
}

func NewAvailabilityHandler(service availabilityService, logger *slog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{service: service, responder: newResponder(logger), now: time.Now}
}

func (h *AvailabilityHandler) CreateForWorker(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	workerID, ok := WorkerIDFromContext(r.Context())
	if !ok || strings.TrimSpace(workerID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidWorkerID)
		return
	}

	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	if err := validateRequest(req); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	rule, warnings, err := h.service.CreateRule(r.Context(), application.CreateRuleParams{
		Principal: principal,
		WorkerID:  workerID,
		Input:     req.toInput(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.renderRule(r.Context(), w, rule, warnings, http.StatusCreated)
}

func (h *AvailabilityHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	ruleID, ok := RuleIDFromContext(r.Context())
	if !ok || strings.TrimSpace(ruleID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRuleID)
		return
	}

	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	if err := validateRequest(req); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	rule, warnings, err := h.service.UpdateRule(r.Context(), application.UpdateRuleParams{
		Principal: principal,
		RuleID:    ruleID,
		Input:     req.toInput(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.renderRule(r.Context(), w, rule, warnings, http.StatusOK)
}

func (h *AvailabilityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	ruleID, ok := RuleIDFromContext(r.Context())
	if !ok || strings.TrimSpace(ruleID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRuleID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	if err := h.service.DeleteRule(r.Context(), principal, ruleID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *AvailabilityHandler) ClearForWorker(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	workerID, ok := WorkerIDFromContext(r.Context())
	if !ok || strings.TrimSpace(workerID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidWorkerID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	if err := h.service.ClearRules(r.Context(), principal, workerID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *AvailabilityHandler) ListForWorker(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	workerID, ok := WorkerIDFromContext(r.Context())
	if !ok || strings.TrimSpace(workerID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidWorkerID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	rules, warnings, err := h.service.ListRules(r.Context(), principal, workerID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listRulesResponse{
		Rules:    toRuleDTOs(rules),
		Warnings: toWarningDTOs(warnings),
	})
}

// MonthGrid renders the fixed 42-cell month projection for a worker. The
// month query parameter is required as YYYY-MM; selected is an optional
// YYYY-MM-DD highlight.
func (h *AvailabilityHandler) MonthGrid(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	workerID, ok := WorkerIDFromContext(r.Context())
	if !ok || strings.TrimSpace(workerID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidWorkerID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	params, err := buildMonthViewParams(r.URL.Query(), principal, workerID, h.clock())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	view, err := h.service.MonthView(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toMonthViewResponse(view))
}

// ExportICS streams the expanded occurrences of a worker as an iCalendar
// feed, one VEVENT per occurrence. The window defaults to the ninety days
// starting today and can be narrowed with from/to query parameters.
func (h *AvailabilityHandler) ExportICS(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	workerID, ok := WorkerIDFromContext(r.Context())
	if !ok || strings.TrimSpace(workerID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidWorkerID)
		return
	}

	now := h.clock()
	windowStart := now
	windowEnd := now.AddDate(0, 0, 90)
	if from := parseTime(r.URL.Query().Get("from")); !from.IsZero() {
		windowStart = from
		windowEnd = from.AddDate(0, 0, 90)
	}
	if to := parseTime(r.URL.Query().Get("to")); !to.IsZero() {
		windowEnd = to
	}

	principal, _ := PrincipalFromContext(r.Context())
	occurrences, err := h.service.Expand(r.Context(), principal, workerID, windowStart, windowEnd)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	for _, occurrence := range occurrences {
		event := cal.AddEvent(occurrence.ID + "@able-marketplace")
		event.SetDtStampTime(now.UTC())
		event.SetStartAt(occurrence.Start)
		event.SetEndAt(occurrence.End)
		event.SetSummary("Available")
		if rr := occurrence.Descriptor.RRule(); rr != "" {
			event.SetDescription(rr)
		}
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="availability.ics"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(cal.Serialize())); err != nil {
		h.responder.loggerFor(r.Context()).ErrorContext(r.Context(), "failed to write calendar feed", "error", err)
	}
}

func (h *AvailabilityHandler) clock() time.Time {
	if h != nil && h.now != nil {
		return h.now()
	}
	return time.Now()
}

func (h *AvailabilityHandler) renderRule(ctx context.Context, w http.ResponseWriter, rule recurrence.Rule, warnings []application.ConflictWarning, status int) {
	payload := ruleResponse{
		Rule:     toRuleDTO(rule),
		Warnings: toWarningDTOs(warnings),
	}
	h.responder.writeJSON(ctx, w, status, payload)
}

type ruleRequest struct {
	StartTime   string   `json:"start_time" validate:"required"`
	EndTime     string   `json:"end_time" validate:"required"`
	Days        []string `json:"days"`
	Frequency   string   `json:"frequency" validate:"omitempty,oneof=never weekly biweekly monthly"`
	Ends        string   `json:"ends" validate:"omitempty,oneof=never on_date after_occurrences"`
	EndDate     string   `json:"end_date"`
	Occurrences int      `json:"occurrences"`
	Notes       string   `json:"notes"`
}

func (r ruleRequest) toInput() application.RuleInput {
	return application.RuleInput{
		StartTime:   strings.TrimSpace(r.StartTime),
		EndTime:     strings.TrimSpace(r.EndTime),
		Days:        append([]string(nil), r.Days...),
		Frequency:   strings.TrimSpace(r.Frequency),
		Ends:        strings.TrimSpace(r.Ends),
		EndDate:     strings.TrimSpace(r.EndDate),
		Occurrences: r.Occurrences,
		Notes:       r.Notes,
	}
}

func parseTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts
	}
	if ts, err := time.Parse("2006-01-02", value); err == nil {
		return ts
	}
	return time.Time{}
}

type ruleResponse struct {
	Rule     ruleDTO              `json:"rule"`
	Warnings []conflictWarningDTO `json:"warnings,omitempty"`
}

type listRulesResponse struct {
	Rules    []ruleDTO            `json:"rules"`
	Warnings []conflictWarningDTO `json:"warnings,omitempty"`
}

type ruleDTO struct {
	ID          string                `json:"id"`
	WorkerID    string                `json:"worker_id"`
	StartTime   string                `json:"start_time"`
	EndTime     string                `json:"end_time"`
	Days        []string              `json:"days,omitempty"`
	Frequency   string                `json:"frequency"`
	Ends        string                `json:"ends,omitempty"`
	EndDate     string                `json:"end_date,omitempty"`
	Occurrences int                   `json:"occurrences,omitempty"`
	Notes       string                `json:"notes,omitempty"`
	Summary     string                `json:"summary"`
	Descriptor  recurrence.Descriptor `json:"descriptor"`
	RRule       string                `json:"rrule,omitempty"`
	CreatedAt   string                `json:"created_at"`
	UpdatedAt   string                `json:"updated_at"`
}

func toRuleDTO(rule recurrence.Rule) ruleDTO {
	descriptor := recurrence.DescribeMachine(rule)
	return ruleDTO{
		ID:          rule.ID,
		WorkerID:    rule.WorkerID,
		StartTime:   rule.StartTime,
		EndTime:     rule.EndTime,
		Days:        append([]string(nil), rule.Days...),
		Frequency:   string(rule.Frequency),
		Ends:        string(rule.Ends),
		EndDate:     rule.EndDate,
		Occurrences: rule.Occurrences,
		Notes:       rule.Notes,
		Summary:     recurrence.Describe(rule),
		Descriptor:  descriptor,
		RRule:       descriptor.RRule(),
		CreatedAt:   rule.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:   rule.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toRuleDTOs(rules []recurrence.Rule) []ruleDTO {
	if len(rules) == 0 {
		return nil
	}
	out := make([]ruleDTO, 0, len(rules))
	for _, rule := range rules {
		out = append(out, toRuleDTO(rule))
	}
	return out
}

type conflictWarningDTO struct {
	RuleID string `json:"rule_id"`
}

func toWarningDTOs(warnings []application.ConflictWarning) []conflictWarningDTO {
	if len(warnings) == 0 {
		return nil
	}

	out := make([]conflictWarningDTO, 0, len(warnings))
	for _, warning := range warnings {
		out = append(out, conflictWarningDTO{RuleID: warning.RuleID})
	}
	return out
}

type occurrenceDTO struct {
	ID          string `json:"id"`
	RuleID      string `json:"rule_id"`
	Start       string `json:"start"`
	End         string `json:"end"`
	IsRecurring bool   `json:"is_recurring"`
}

func toOccurrenceDTOs(occurrences []recurrence.Occurrence) []occurrenceDTO {
	if len(occurrences) == 0 {
		return nil
	}

	out := make([]occurrenceDTO, 0, len(occurrences))
	for _, occurrence := range occurrences {
		out = append(out, occurrenceDTO{
			ID:          occurrence.ID,
			RuleID:      occurrence.SourceRuleID,
			Start:       occurrence.Start.UTC().Format(time.RFC3339Nano),
			End:         occurrence.End.UTC().Format(time.RFC3339Nano),
			IsRecurring: occurrence.IsRecurring,
		})
	}
	return out
}

type monthViewResponse struct {
	Year        int                  `json:"year"`
	Month       int                  `json:"month"`
	Cells       []cellDTO            `json:"cells"`
	Occurrences []occurrenceDTO      `json:"occurrences,omitempty"`
	Warnings    []conflictWarningDTO `json:"warnings,omitempty"`
}

type cellDTO struct {
	Date            string        `json:"date"`
	InMonth         bool          `json:"in_month"`
	IsToday         bool          `json:"is_today"`
	IsSelected      bool          `json:"is_selected"`
	HasAvailability bool          `json:"has_availability"`
	Gigs            []gigEventDTO `json:"gigs,omitempty"`
}

type gigEventDTO struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Start string `json:"start"`
	End   string `json:"end"`
}

func toMonthViewResponse(view application.MonthView) monthViewResponse {
	cells := make([]cellDTO, 0, len(view.Grid.Cells))
	for _, cell := range view.Grid.Cells {
		dto := cellDTO{
			Date:            cell.Date.Format("2006-01-02"),
			InMonth:         cell.InMonth,
			IsToday:         cell.IsToday,
			IsSelected:      cell.IsSelected,
			HasAvailability: cell.HasAvailability,
		}
		for _, gig := range cell.Gigs {
			dto.Gigs = append(dto.Gigs, gigEventDTO{
				ID:    gig.ID,
				Title: gig.Title,
				Start: gig.Start.UTC().Format(time.RFC3339Nano),
				End:   gig.End.UTC().Format(time.RFC3339Nano),
			})
		}
		cells = append(cells, dto)
	}

	return monthViewResponse{
		Year:        view.Grid.Year,
		Month:       int(view.Grid.Month),
		Cells:       cells,
		Occurrences: toOccurrenceDTOs(view.Occurrences),
		Warnings:    toWarningDTOs(view.Warnings),
	}
}

func buildMonthViewParams(values url.Values, principal application.Principal, workerID string, now time.Time) (application.MonthViewParams, error) {
	params := application.MonthViewParams{
		Principal: principal,
		WorkerID:  workerID,
		Year:      now.Year(),
		Month:     now.Month(),
	}

	if month := strings.TrimSpace(values.Get("month")); month != "" {
		ts, err := time.Parse("2006-01", month)
		if err != nil {
			return params, &application.ValidationError{FieldErrors: map[string]string{
				"month": "month must be formatted as YYYY-MM",
			}}
		}
		params.Year = ts.Year()
		params.Month = ts.Month()
	}

	if selected := strings.TrimSpace(values.Get("selected")); selected != "" {
		ts, err := time.Parse("2006-01-02", selected)
		if err != nil {
			return params, &application.ValidationError{FieldErrors: map[string]string{
				"selected": "selected must be formatted as YYYY-MM-DD",
			}}
		}
		params.Selected = &ts
	}

	return params, nil
}
