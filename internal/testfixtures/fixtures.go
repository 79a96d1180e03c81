package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/able-marketplace/internal/application"
	"github.com/example/able-marketplace/internal/calendar"
	"github.com/example/able-marketplace/internal/persistence"
	"github.com/example/able-marketplace/internal/recurrence"
)

var (
	userCounter    uint64
	ruleCounter    uint64
	gigCounter     uint64
	sessionCounter uint64
)

// Monday morning, so weekday oriented rule fixtures expand predictably.
var referenceTime = time.Date(2025, time.June, 2, 9, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- User fixtures -----------------------------

// UserFixture represents a deterministic marketplace account that can be
// materialised for application or persistence tests.
type UserFixture struct {
	ID           string
	Email        string
	DisplayName  string
	Role         application.Role
	IsAdmin      bool
	Disabled     bool
	Password     string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserOption configures the generated user fixture.
type UserOption func(*UserFixture)

// NewUserFixture returns a deterministic user fixture with optional overrides.
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := UserFixture{
		ID:           id,
		Email:        fmt.Sprintf("%s@example.com", id),
		DisplayName:  fmt.Sprintf("User %03d", idx),
		Role:         application.RoleWorker,
		Password:     "correct horse battery",
		PasswordHash: fmt.Sprintf("hash-%03d", idx),
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUserID overrides the generated user ID.
func WithUserID(id string) UserOption {
	return func(f *UserFixture) {
		f.ID = id
	}
}

// WithUserEmail overrides the generated email address.
func WithUserEmail(email string) UserOption {
	return func(f *UserFixture) {
		f.Email = email
	}
}

// WithUserRole sets the marketplace role on the fixture.
func WithUserRole(role application.Role) UserOption {
	return func(f *UserFixture) {
		f.Role = role
	}
}

// WithUserAdmin sets the admin flag on the generated fixture.
func WithUserAdmin(isAdmin bool) UserOption {
	return func(f *UserFixture) {
		f.IsAdmin = isAdmin
	}
}

// WithUserDisabled marks the account as disabled.
func WithUserDisabled() UserOption {
	return func(f *UserFixture) {
		f.Disabled = true
	}
}

// WithUserPassword sets the plain text password used by Input.
func WithUserPassword(password string) UserOption {
	return func(f *UserFixture) {
		f.Password = password
	}
}

// WithUserPasswordHash overrides the stored password hash.
func WithUserPasswordHash(hash string) UserOption {
	return func(f *UserFixture) {
		f.PasswordHash = hash
	}
}

// WithUserTimestamps sets both created and updated timestamps on the fixture.
func WithUserTimestamps(created, updated time.Time) UserOption {
	return func(f *UserFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Application returns the fixture as an application.User value.
func (f UserFixture) Application() application.User {
	return application.User{
		ID:          f.ID,
		Email:       f.Email,
		DisplayName: f.DisplayName,
		Role:        f.Role,
		IsAdmin:     f.IsAdmin,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// Principal returns an application.Principal derived from the fixture.
func (f UserFixture) Principal() application.Principal {
	return application.Principal{UserID: f.ID, Role: f.Role, IsAdmin: f.IsAdmin}
}

// Persistence returns the fixture as a persistence.User value.
func (f UserFixture) Persistence() persistence.User {
	return persistence.User{
		ID:           f.ID,
		Email:        f.Email,
		DisplayName:  f.DisplayName,
		Role:         string(f.Role),
		IsAdmin:      f.IsAdmin,
		Disabled:     f.Disabled,
		PasswordHash: f.PasswordHash,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// Input returns the fixture as an application.UserInput carrying the plain
// text password.
func (f UserFixture) Input() application.UserInput {
	return application.UserInput{
		Email:       f.Email,
		DisplayName: f.DisplayName,
		Role:        f.Role,
		IsAdmin:     f.IsAdmin,
		Password:    f.Password,
	}
}

// ------------------------ Availability rule fixtures ----------------------

// RuleFixture represents a deterministic availability rule.
type RuleFixture struct {
	ID          string
	WorkerID    string
	StartTime   string
	EndTime     string
	Days        []string
	Frequency   recurrence.Frequency
	Ends        recurrence.Ends
	EndDate     string
	Occurrences int
	Notes       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RuleOption configures the generated rule fixture.
type RuleOption func(*RuleFixture)

// NewRuleFixture returns a deterministic weekly Monday rule with optional
// overrides.
func NewRuleFixture(opts ...RuleOption) RuleFixture {
	idx := atomic.AddUint64(&ruleCounter, 1)
	fixture := RuleFixture{
		ID:        fmt.Sprintf("rule-%03d", idx),
		WorkerID:  fmt.Sprintf("user-%03d", idx),
		StartTime: "09:00",
		EndTime:   "17:00",
		Days:      []string{"monday"},
		Frequency: recurrence.FrequencyWeekly,
		Ends:      recurrence.EndsNever,
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithRuleID overrides the rule ID.
func WithRuleID(id string) RuleOption {
	return func(f *RuleFixture) {
		f.ID = id
	}
}

// WithRuleWorker sets the owning worker.
func WithRuleWorker(workerID string) RuleOption {
	return func(f *RuleFixture) {
		f.WorkerID = workerID
	}
}

// WithRuleWindow sets the wall clock window.
func WithRuleWindow(start, end string) RuleOption {
	return func(f *RuleFixture) {
		f.StartTime = start
		f.EndTime = end
	}
}

// WithRuleDays sets the weekday names.
func WithRuleDays(days ...string) RuleOption {
	return func(f *RuleFixture) {
		f.Days = append([]string(nil), days...)
	}
}

// WithRuleFrequency sets the repetition cadence.
func WithRuleFrequency(freq recurrence.Frequency) RuleOption {
	return func(f *RuleFixture) {
		f.Frequency = freq
	}
}

// WithRuleOneOff turns the fixture into a one-off rule on the given date.
func WithRuleOneOff(date string) RuleOption {
	return func(f *RuleFixture) {
		f.Frequency = recurrence.FrequencyNever
		f.Ends = recurrence.EndsNever
		f.Days = nil
		f.EndDate = date
	}
}

// WithRuleEndsOn terminates the recurring fixture on an inclusive date.
func WithRuleEndsOn(date string) RuleOption {
	return func(f *RuleFixture) {
		f.Ends = recurrence.EndsOnDate
		f.EndDate = date
	}
}

// WithRuleEndsAfter terminates the recurring fixture after a fixed number of
// occurrences.
func WithRuleEndsAfter(count int) RuleOption {
	return func(f *RuleFixture) {
		f.Ends = recurrence.EndsAfterOccurrences
		f.Occurrences = count
	}
}

// WithRuleNotes sets the free text notes.
func WithRuleNotes(notes string) RuleOption {
	return func(f *RuleFixture) {
		f.Notes = notes
	}
}

// WithRuleTimestamps sets both created and updated timestamps.
func WithRuleTimestamps(created, updated time.Time) RuleOption {
	return func(f *RuleFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Recurrence returns the fixture as a recurrence.Rule value.
func (f RuleFixture) Recurrence() recurrence.Rule {
	return recurrence.Rule{
		ID:          f.ID,
		WorkerID:    f.WorkerID,
		StartTime:   f.StartTime,
		EndTime:     f.EndTime,
		Days:        append([]string(nil), f.Days...),
		Frequency:   f.Frequency,
		Ends:        f.Ends,
		EndDate:     f.EndDate,
		Occurrences: f.Occurrences,
		Notes:       f.Notes,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.AvailabilityRule value.
func (f RuleFixture) Persistence() persistence.AvailabilityRule {
	return persistence.AvailabilityRule{
		ID:          f.ID,
		WorkerID:    f.WorkerID,
		StartTime:   f.StartTime,
		EndTime:     f.EndTime,
		Days:        append([]string(nil), f.Days...),
		Frequency:   string(f.Frequency),
		Ends:        string(f.Ends),
		EndDate:     f.EndDate,
		Occurrences: f.Occurrences,
		Notes:       f.Notes,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// Input returns the fixture as an application.RuleInput.
func (f RuleFixture) Input() application.RuleInput {
	return application.RuleInput{
		StartTime:   f.StartTime,
		EndTime:     f.EndTime,
		Days:        append([]string(nil), f.Days...),
		Frequency:   string(f.Frequency),
		Ends:        string(f.Ends),
		EndDate:     f.EndDate,
		Occurrences: f.Occurrences,
		Notes:       f.Notes,
	}
}

// ------------------------------ Gig fixtures ------------------------------

// GigFixture represents a deterministic gig record.
type GigFixture struct {
	ID          string
	BuyerID     string
	WorkerID    string
	Title       string
	Start       time.Time
	End         time.Time
	Status      application.GigStatus
	AmountPence int64
	PaymentRef  *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// GigOption configures the generated gig fixture.
type GigOption func(*GigFixture)

// NewGigFixture returns a deterministic offered gig with optional overrides.
func NewGigFixture(opts ...GigOption) GigFixture {
	idx := atomic.AddUint64(&gigCounter, 1)
	start := referenceTime.Add(time.Duration(idx) * 24 * time.Hour)
	fixture := GigFixture{
		ID:          fmt.Sprintf("gig-%03d", idx),
		BuyerID:     fmt.Sprintf("buyer-%03d", idx),
		WorkerID:    fmt.Sprintf("user-%03d", idx),
		Title:       fmt.Sprintf("Gig %03d", idx),
		Start:       start,
		End:         start.Add(4 * time.Hour),
		Status:      application.GigStatusOffered,
		AmountPence: 12000,
		CreatedAt:   referenceTime,
		UpdatedAt:   referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithGigID overrides the gig ID.
func WithGigID(id string) GigOption {
	return func(f *GigFixture) {
		f.ID = id
	}
}

// WithGigParties sets the buyer and worker.
func WithGigParties(buyerID, workerID string) GigOption {
	return func(f *GigFixture) {
		f.BuyerID = buyerID
		f.WorkerID = workerID
	}
}

// WithGigWindow sets the start and end times.
func WithGigWindow(start, end time.Time) GigOption {
	return func(f *GigFixture) {
		f.Start = start
		f.End = end
	}
}

// WithGigStatus sets the lifecycle status.
func WithGigStatus(status application.GigStatus) GigOption {
	return func(f *GigFixture) {
		f.Status = status
	}
}

// WithGigAmount sets the agreed amount in pence.
func WithGigAmount(amountPence int64) GigOption {
	return func(f *GigFixture) {
		f.AmountPence = amountPence
	}
}

// WithGigPaymentRef attaches a payment hold reference.
func WithGigPaymentRef(reference string) GigOption {
	return func(f *GigFixture) {
		ref := reference
		f.PaymentRef = &ref
	}
}

// WithGigTimestamps sets both created and updated timestamps.
func WithGigTimestamps(created, updated time.Time) GigOption {
	return func(f *GigFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Application returns the fixture as an application.Gig value.
func (f GigFixture) Application() application.Gig {
	return application.Gig{
		ID:          f.ID,
		BuyerID:     f.BuyerID,
		WorkerID:    f.WorkerID,
		Title:       f.Title,
		Start:       f.Start,
		End:         f.End,
		Status:      f.Status,
		AmountPence: f.AmountPence,
		PaymentRef:  copyStringPtr(f.PaymentRef),
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.Gig value.
func (f GigFixture) Persistence() persistence.Gig {
	return persistence.Gig{
		ID:          f.ID,
		BuyerID:     f.BuyerID,
		WorkerID:    f.WorkerID,
		Title:       f.Title,
		Start:       f.Start,
		End:         f.End,
		Status:      string(f.Status),
		AmountPence: f.AmountPence,
		PaymentRef:  copyStringPtr(f.PaymentRef),
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// Event returns the fixture as a calendar.GigEvent for grid projections.
func (f GigFixture) Event() calendar.GigEvent {
	return calendar.GigEvent{
		ID:    f.ID,
		Title: f.Title,
		Start: f.Start,
		End:   f.End,
	}
}

// ----------------------------- Session fixtures -------------------------

// SessionFixture represents a deterministic session row. Token holds the JWT
// ID, mirroring what the auth service persists.
type SessionFixture struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}

// SessionOption configures the generated session fixture.
type SessionOption func(*SessionFixture)

// NewSessionFixture returns a deterministic session fixture with optional overrides.
func NewSessionFixture(opts ...SessionOption) SessionFixture {
	idx := atomic.AddUint64(&sessionCounter, 1)
	fixture := SessionFixture{
		ID:        fmt.Sprintf("session-%03d", idx),
		UserID:    fmt.Sprintf("user-%03d", idx),
		Token:     fmt.Sprintf("jti-%03d", idx),
		ExpiresAt: referenceTime.Add(24 * time.Hour),
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSessionID overrides the session ID.
func WithSessionID(id string) SessionOption {
	return func(f *SessionFixture) {
		f.ID = id
	}
}

// WithSessionUserID sets the user ID.
func WithSessionUserID(id string) SessionOption {
	return func(f *SessionFixture) {
		f.UserID = id
	}
}

// WithSessionToken overrides the stored JWT ID.
func WithSessionToken(token string) SessionOption {
	return func(f *SessionFixture) {
		f.Token = token
	}
}

// WithSessionExpiresAt sets the expiration timestamp.
func WithSessionExpiresAt(t time.Time) SessionOption {
	return func(f *SessionFixture) {
		f.ExpiresAt = t
	}
}

// WithSessionRevokedAt sets the optional revoked timestamp.
func WithSessionRevokedAt(t time.Time) SessionOption {
	return func(f *SessionFixture) {
		revoked := t
		f.RevokedAt = &revoked
	}
}

// Persistence returns the fixture as a persistence.Session value.
func (f SessionFixture) Persistence() persistence.Session {
	var revoked *time.Time
	if f.RevokedAt != nil {
		t := *f.RevokedAt
		revoked = &t
	}
	return persistence.Session{
		ID:        f.ID,
		UserID:    f.UserID,
		Token:     f.Token,
		ExpiresAt: f.ExpiresAt,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
		RevokedAt: revoked,
	}
}

// helper to deep copy optional strings.
func copyStringPtr(src *string) *string {
	if src == nil {
		return nil
	}
	value := *src
	return &value
}
