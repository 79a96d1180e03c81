package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/able-marketplace/internal/calendar"
	"github.com/example/able-marketplace/internal/conflict"
	"github.com/example/able-marketplace/internal/persistence"
	"github.com/example/able-marketplace/internal/recurrence"
)

// RuleRepository captures the persistence interactions needed by the
// availability service.
type RuleRepository interface {
	CreateRule(ctx context.Context, rule persistence.AvailabilityRule) error
	UpdateRule(ctx context.Context, rule persistence.AvailabilityRule) error
	GetRule(ctx context.Context, id string) (persistence.AvailabilityRule, error)
	ListRulesForWorker(ctx context.Context, workerID string) ([]persistence.AvailabilityRule, error)
	DeleteRule(ctx context.Context, id string) error
	DeleteRulesForWorker(ctx context.Context, workerID string) error
}

// GigSource exposes the gig lookups the calendar projection needs.
type GigSource interface {
	ListGigs(ctx context.Context, filter persistence.GigFilter) ([]persistence.Gig, error)
}

// UserDirectory exposes user lookup operations.
type UserDirectory interface {
	GetUser(ctx context.Context, id string) (persistence.User, error)
}

// AvailabilityService orchestrates validation, recurrence expansion, conflict
// detection, and calendar projection for worker availability.
type AvailabilityService struct {
	rules       RuleRepository
	gigs        GigSource
	users       UserDirectory
	engine      *recurrence.Engine
	warnings    *warningCache
	logger      *slog.Logger
	idGenerator func() string
	now         func() time.Time
}

// NewAvailabilityService wires dependencies for availability operations.
func NewAvailabilityService(rules RuleRepository, gigs GigSource, users UserDirectory, engine *recurrence.Engine, logger *slog.Logger, idGenerator func() string, now func() time.Time) *AvailabilityService {
	if engine == nil {
		engine = recurrence.NewEngine(nil)
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &AvailabilityService{
		rules:       rules,
		gigs:        gigs,
		users:       users,
		engine:      engine,
		warnings:    newWarningCache(30*time.Second, 256, now),
		logger:      defaultLogger(logger),
		idGenerator: idGenerator,
		now:         now,
	}
}

// CreateRule validates and stores a new availability rule, returning the
// stored rule alongside conflict warnings against the worker's existing
// rules. Warnings never block the save.
func (s *AvailabilityService) CreateRule(ctx context.Context, params CreateRuleParams) (recurrence.Rule, []ConflictWarning, error) {
	if s == nil {
		return recurrence.Rule{}, nil, fmt.Errorf("AvailabilityService is nil")
	}
	if s.rules == nil {
		return recurrence.Rule{}, nil, fmt.Errorf("rule repository not configured")
	}
	logger := serviceLogger(ctx, s.logger, "availability", "create_rule", "worker_id", params.WorkerID)

	if !params.Principal.canActFor(params.WorkerID) {
		return recurrence.Rule{}, nil, ErrUnauthorized
	}

	if err := s.ensureWorkerExists(ctx, params.WorkerID); err != nil {
		return recurrence.Rule{}, nil, err
	}

	vErr := &ValidationError{}
	validateRuleInput(params.Input, vErr)
	if vErr.HasErrors() {
		return recurrence.Rule{}, nil, vErr
	}

	createdAt := s.now()
	rule := ruleFromInput(params.Input)
	rule.ID = s.idGenerator()
	rule.WorkerID = params.WorkerID
	rule.CreatedAt = createdAt
	rule.UpdatedAt = createdAt

	existing, err := s.loadRules(ctx, params.WorkerID)
	if err != nil {
		return recurrence.Rule{}, nil, err
	}

	warnings := toConflictWarnings(conflict.Detect(existing, rule))

	if err := s.rules.CreateRule(ctx, ruleRecord(rule)); err != nil {
		return recurrence.Rule{}, nil, mapRuleRepoError(err)
	}
	s.warnings.Invalidate(params.WorkerID)

	logger.InfoContext(ctx, "availability rule created", "rule_id", rule.ID, "warnings", len(warnings))
	return rule, warnings, nil
}

// UpdateRule applies validation and authorization before replacing a stored
// rule's fields.
func (s *AvailabilityService) UpdateRule(ctx context.Context, params UpdateRuleParams) (recurrence.Rule, []ConflictWarning, error) {
	if s == nil {
		return recurrence.Rule{}, nil, fmt.Errorf("AvailabilityService is nil")
	}
	if s.rules == nil {
		return recurrence.Rule{}, nil, fmt.Errorf("rule repository not configured")
	}
	logger := serviceLogger(ctx, s.logger, "availability", "update_rule", "rule_id", params.RuleID)

	stored, err := s.rules.GetRule(ctx, params.RuleID)
	if err != nil {
		return recurrence.Rule{}, nil, mapRuleRepoError(err)
	}

	if !params.Principal.canActFor(stored.WorkerID) {
		return recurrence.Rule{}, nil, ErrUnauthorized
	}

	vErr := &ValidationError{}
	validateRuleInput(params.Input, vErr)
	if vErr.HasErrors() {
		return recurrence.Rule{}, nil, vErr
	}

	updated := ruleFromInput(params.Input)
	updated.ID = stored.ID
	updated.WorkerID = stored.WorkerID
	updated.CreatedAt = stored.CreatedAt
	updated.UpdatedAt = s.now()

	existing, err := s.loadRules(ctx, stored.WorkerID)
	if err != nil {
		return recurrence.Rule{}, nil, err
	}

	warnings := toConflictWarnings(conflict.Detect(existing, updated))

	if err := s.rules.UpdateRule(ctx, ruleRecord(updated)); err != nil {
		return recurrence.Rule{}, nil, mapRuleRepoError(err)
	}
	s.warnings.Invalidate(stored.WorkerID)

	logger.InfoContext(ctx, "availability rule updated", "warnings", len(warnings))
	return updated, warnings, nil
}

// DeleteRule removes a single availability rule. Its occurrences disappear
// from any subsequent expansion immediately; nothing else is torn down.
func (s *AvailabilityService) DeleteRule(ctx context.Context, principal Principal, ruleID string) error {
	if s == nil {
		return fmt.Errorf("AvailabilityService is nil")
	}
	if s.rules == nil {
		return fmt.Errorf("rule repository not configured")
	}

	stored, err := s.rules.GetRule(ctx, ruleID)
	if err != nil {
		return mapRuleRepoError(err)
	}

	if !principal.canActFor(stored.WorkerID) {
		return ErrUnauthorized
	}

	if err := s.rules.DeleteRule(ctx, ruleID); err != nil {
		return mapRuleRepoError(err)
	}
	s.warnings.Invalidate(stored.WorkerID)
	return nil
}

// ClearRules removes every availability rule belonging to a worker in one
// operation.
func (s *AvailabilityService) ClearRules(ctx context.Context, principal Principal, workerID string) error {
	if s == nil {
		return fmt.Errorf("AvailabilityService is nil")
	}
	if s.rules == nil {
		return fmt.Errorf("rule repository not configured")
	}

	if !principal.canActFor(workerID) {
		return ErrUnauthorized
	}

	if err := s.rules.DeleteRulesForWorker(ctx, workerID); err != nil {
		return mapRuleRepoError(err)
	}
	s.warnings.Invalidate(workerID)
	return nil
}

// ListRules returns the worker's stored rules together with pairwise conflict
// warnings across the whole set.
func (s *AvailabilityService) ListRules(ctx context.Context, principal Principal, workerID string) ([]recurrence.Rule, []ConflictWarning, error) {
	if s == nil {
		return nil, nil, fmt.Errorf("AvailabilityService is nil")
	}
	if s.rules == nil {
		return nil, nil, fmt.Errorf("rule repository not configured")
	}

	if !principal.canActFor(workerID) {
		return nil, nil, ErrUnauthorized
	}

	rules, err := s.loadRules(ctx, workerID)
	if err != nil {
		return nil, nil, err
	}

	return rules, s.ruleSetWarnings(workerID, rules), nil
}

// Expand materializes the worker's occurrences within the requested window.
// Any authenticated principal may look; browsing availability is how buyers
// find workers.
func (s *AvailabilityService) Expand(ctx context.Context, principal Principal, workerID string, windowStart, windowEnd time.Time) ([]recurrence.Occurrence, error) {
	if s == nil {
		return nil, fmt.Errorf("AvailabilityService is nil")
	}
	if s.rules == nil {
		return nil, fmt.Errorf("rule repository not configured")
	}

	if principal.UserID == "" && !principal.IsAdmin {
		return nil, ErrUnauthorized
	}

	rules, err := s.loadRules(ctx, workerID)
	if err != nil {
		return nil, err
	}

	return s.engine.Expand(rules, windowStart, windowEnd, s.now()), nil
}

// MonthView projects one calendar month for a worker: the fixed 42-cell grid,
// the expanded occurrences for the visible window, and conflict warnings.
func (s *AvailabilityService) MonthView(ctx context.Context, params MonthViewParams) (MonthView, error) {
	if s == nil {
		return MonthView{}, fmt.Errorf("AvailabilityService is nil")
	}
	if s.rules == nil {
		return MonthView{}, fmt.Errorf("rule repository not configured")
	}

	if params.Principal.UserID == "" && !params.Principal.IsAdmin {
		return MonthView{}, ErrUnauthorized
	}
	if params.Year < 1 || params.Month < time.January || params.Month > time.December {
		vErr := &ValidationError{}
		vErr.add("month", "month must be a valid YYYY-MM value")
		return MonthView{}, vErr
	}

	loc := s.engine.Location()
	first := time.Date(params.Year, params.Month, 1, 0, 0, 0, 0, loc)

	projector := calendar.NewProjector(s.engine, first)
	if params.Selected != nil {
		projector.Select(*params.Selected)
	}

	gridStart := first.AddDate(0, 0, -int(first.Weekday()))
	gridEnd := gridStart.AddDate(0, 0, calendar.GridCells-1)

	rules, err := s.loadRules(ctx, params.WorkerID)
	if err != nil {
		return MonthView{}, err
	}

	gigs, err := s.loadGigEvents(ctx, params.WorkerID, gridStart, gridEnd.AddDate(0, 0, 1))
	if err != nil {
		return MonthView{}, err
	}

	now := s.now()
	return MonthView{
		Grid:        projector.Project(rules, gigs, now),
		Occurrences: s.engine.Expand(rules, gridStart, gridEnd, now),
		Warnings:    s.ruleSetWarnings(params.WorkerID, rules),
	}, nil
}

func (s *AvailabilityService) ensureWorkerExists(ctx context.Context, workerID string) error {
	if s.users == nil {
		return nil
	}
	user, err := s.users.GetUser(ctx, workerID)
	if err != nil {
		if isNotFoundError(err) {
			vErr := &ValidationError{}
			vErr.add("worker_id", "worker does not exist")
			return vErr
		}
		return err
	}
	if user.Role != string(RoleWorker) && !user.IsAdmin {
		vErr := &ValidationError{}
		vErr.add("worker_id", "user is not a worker")
		return vErr
	}
	return nil
}

func (s *AvailabilityService) loadRules(ctx context.Context, workerID string) ([]recurrence.Rule, error) {
	records, err := s.rules.ListRulesForWorker(ctx, workerID)
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil
		}
		return nil, err
	}
	rules := make([]recurrence.Rule, 0, len(records))
	for _, record := range records {
		rules = append(rules, ruleFromRecord(record))
	}
	return rules, nil
}

func (s *AvailabilityService) loadGigEvents(ctx context.Context, workerID string, startsAfter, endsBefore time.Time) ([]calendar.GigEvent, error) {
	if s.gigs == nil {
		return nil, nil
	}
	records, err := s.gigs.ListGigs(ctx, persistence.GigFilter{
		WorkerID:    workerID,
		Statuses:    []string{string(GigStatusAccepted), string(GigStatusCompleted)},
		StartsAfter: &startsAfter,
		EndsBefore:  &endsBefore,
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil
		}
		return nil, err
	}
	events := make([]calendar.GigEvent, 0, len(records))
	for _, record := range records {
		events = append(events, calendar.GigEvent{
			ID:    record.ID,
			Title: record.Title,
			Start: record.Start,
			End:   record.End,
		})
	}
	return events, nil
}

// ruleSetWarnings computes pairwise warnings across a rule set, consulting
// the per-worker cache first.
func (s *AvailabilityService) ruleSetWarnings(workerID string, rules []recurrence.Rule) []ConflictWarning {
	if cached, ok := s.warnings.Get(workerID); ok {
		return cached
	}

	warnings := make([]ConflictWarning, 0)
	for i := range rules {
		if i+1 >= len(rules) {
			break
		}
		warnings = append(warnings, toConflictWarnings(conflict.Detect(rules[i+1:], rules[i]))...)
	}
	if len(warnings) == 0 {
		warnings = nil
	}

	s.warnings.Store(workerID, warnings)
	return warnings
}

func toConflictWarnings(conflicts []conflict.Conflict) []ConflictWarning {
	if len(conflicts) == 0 {
		return nil
	}
	warnings := make([]ConflictWarning, 0, len(conflicts))
	for _, c := range conflicts {
		warnings = append(warnings, ConflictWarning{RuleID: c.WithRuleID})
	}
	return warnings
}

func validateRuleInput(input RuleInput, vErr *ValidationError) {
	start, startErr := recurrence.ParseClock(input.StartTime)
	if startErr != nil {
		vErr.add("start_time", "must be a valid HH:MM time")
	}
	end, endErr := recurrence.ParseClock(input.EndTime)
	if endErr != nil {
		vErr.add("end_time", "must be a valid HH:MM time")
	}
	if startErr == nil && endErr == nil && start.Minutes() >= end.Minutes() {
		vErr.add("time", "start_time must be before end_time")
	}

	frequency := recurrence.Frequency(input.Frequency)
	switch frequency {
	case "", recurrence.FrequencyNever, recurrence.FrequencyWeekly, recurrence.FrequencyBiweekly, recurrence.FrequencyMonthly:
	default:
		vErr.add("frequency", "must be one of never, weekly, biweekly, monthly")
	}

	recurring := frequency != "" && frequency != recurrence.FrequencyNever

	for _, name := range input.Days {
		if _, ok := recurrence.ParseWeekday(name); !ok {
			vErr.add("days", fmt.Sprintf("unknown day name %q", name))
		}
	}

	if !recurring {
		if _, ok := parseRuleDate(input.EndDate); !ok {
			vErr.add("end_date", "one-off rules require a YYYY-MM-DD date")
		}
		return
	}

	if len(input.Days) == 0 {
		vErr.add("days", "recurring rules require at least one day")
	}

	switch recurrence.Ends(input.Ends) {
	case "", recurrence.EndsNever:
	case recurrence.EndsOnDate:
		if _, ok := parseRuleDate(input.EndDate); !ok {
			vErr.add("end_date", "must be a YYYY-MM-DD date when ends is on_date")
		}
	case recurrence.EndsAfterOccurrences:
		if input.Occurrences < 1 {
			vErr.add("occurrences", "must be at least 1 when ends is after_occurrences")
		}
	default:
		vErr.add("ends", "must be one of never, on_date, after_occurrences")
	}
}

func parseRuleDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	ts, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

func ruleFromInput(input RuleInput) recurrence.Rule {
	frequency := recurrence.Frequency(input.Frequency)
	if frequency == "" {
		frequency = recurrence.FrequencyNever
	}
	ends := recurrence.Ends(input.Ends)
	if ends == "" {
		ends = recurrence.EndsNever
	}
	days := make([]string, 0, len(input.Days))
	for _, name := range input.Days {
		days = append(days, strings.ToLower(strings.TrimSpace(name)))
	}
	return recurrence.Rule{
		StartTime:   input.StartTime,
		EndTime:     input.EndTime,
		Days:        days,
		Frequency:   frequency,
		Ends:        ends,
		EndDate:     strings.TrimSpace(input.EndDate),
		Occurrences: input.Occurrences,
		Notes:       strings.TrimSpace(input.Notes),
	}
}

func ruleRecord(rule recurrence.Rule) persistence.AvailabilityRule {
	return persistence.AvailabilityRule{
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
		CreatedAt:   rule.CreatedAt,
		UpdatedAt:   rule.UpdatedAt,
	}
}

func ruleFromRecord(record persistence.AvailabilityRule) recurrence.Rule {
	return recurrence.Rule{
		ID:          record.ID,
		WorkerID:    record.WorkerID,
		StartTime:   record.StartTime,
		EndTime:     record.EndTime,
		Days:        append([]string(nil), record.Days...),
		Frequency:   recurrence.Frequency(record.Frequency),
		Ends:        recurrence.Ends(record.Ends),
		EndDate:     record.EndDate,
		Occurrences: record.Occurrences,
		Notes:       record.Notes,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
	}
}

func mapRuleRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		return ErrAlreadyExists
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		vErr := &ValidationError{}
		vErr.add("time", "start_time must be before end_time")
		return vErr
	}
	if errors.Is(err, persistence.ErrForeignKeyViolation) {
		vErr := &ValidationError{}
		vErr.add("worker_id", "worker does not exist")
		return vErr
	}
	return err
}

func isNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound)
}
