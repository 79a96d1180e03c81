package application

import (
	"time"

	"github.com/example/able-marketplace/internal/calendar"
	"github.com/example/able-marketplace/internal/recurrence"
)

// Role identifies the marketplace-facing role of an account.
type Role string

const (
	// RoleWorker marks an account offering availability for gigs.
	RoleWorker Role = "worker"
	// RoleBuyer marks an account hiring workers.
	RoleBuyer Role = "buyer"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID  string
	Role    Role
	IsAdmin bool
}

// canActFor reports whether the principal may act on the given worker's data.
func (p Principal) canActFor(workerID string) bool {
	return p.IsAdmin || (p.UserID != "" && p.UserID == workerID)
}

// RuleInput captures caller provided availability rule fields.
type RuleInput struct {
	StartTime   string
	EndTime     string
	Days        []string
	Frequency   string
	Ends        string
	EndDate     string
	Occurrences int
	Notes       string
}

// ConflictWarning flags an existing rule that overlaps a candidate. Warnings
// never block a save.
type ConflictWarning struct {
	RuleID string
}

// CreateRuleParams wraps the data required to declare availability.
type CreateRuleParams struct {
	Principal Principal
	WorkerID  string
	Input     RuleInput
}

// UpdateRuleParams wraps the data required to edit an availability rule.
type UpdateRuleParams struct {
	Principal Principal
	RuleID    string
	Input     RuleInput
}

// MonthViewParams wraps the data required to project a worker's calendar
// month.
type MonthViewParams struct {
	Principal Principal
	WorkerID  string
	Year      int
	Month     time.Month
	Selected  *time.Time
}

// MonthView is a fully projected calendar month: the 42-cell grid, the
// expanded occurrences for the visible window, and conflict warnings across
// the worker's rule set.
type MonthView struct {
	Grid        calendar.Grid
	Occurrences []recurrence.Occurrence
	Warnings    []ConflictWarning
}

// GigStatus tracks the lifecycle of a gig between offer and settlement.
type GigStatus string

const (
	// GigStatusOffered is the initial state of a buyer's offer.
	GigStatusOffered GigStatus = "offered"
	// GigStatusAccepted means the worker accepted and a payment hold exists.
	GigStatusAccepted GigStatus = "accepted"
	// GigStatusCompleted means the work is done and the hold was captured.
	GigStatusCompleted GigStatus = "completed"
	// GigStatusCancelled means the gig was withdrawn and any hold released.
	GigStatusCancelled GigStatus = "cancelled"
)

// GigInput captures caller provided gig fields.
type GigInput struct {
	WorkerID    string
	Title       string
	Start       time.Time
	End         time.Time
	AmountPence int64
}

// Gig represents a unit of work between a buyer and a worker.
type Gig struct {
	ID          string
	BuyerID     string
	WorkerID    string
	Title       string
	Start       time.Time
	End         time.Time
	Status      GigStatus
	AmountPence int64
	PaymentRef  *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateGigParams wraps the data required to offer a gig.
type CreateGigParams struct {
	Principal Principal
	Input     GigInput
}

// ListGigsParams wraps the data required to list gigs.
type ListGigsParams struct {
	Principal   Principal
	WorkerID    string
	BuyerID     string
	Statuses    []GigStatus
	StartsAfter *time.Time
	EndsBefore  *time.Time
}

// UserInput captures caller provided user attributes.
type UserInput struct {
	Email       string
	DisplayName string
	Role        Role
	IsAdmin     bool
	Password    string
}

// User represents a marketplace account exposed by the application services.
type User struct {
	ID          string
	Email       string
	DisplayName string
	Role        Role
	IsAdmin     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateUserParams wraps the data required to create an account.
type CreateUserParams struct {
	Principal Principal
	Input     UserInput
}

// UpdateUserParams wraps the data required to update an account.
type UpdateUserParams struct {
	Principal Principal
	UserID    string
	Input     UserInput
}

// Session represents an authenticated session issued to a user. Token holds
// the signed JWT handed to the client.
type Session struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
}

// AuthenticateParams captures the data required to authenticate a user.
type AuthenticateParams struct {
	Email    string
	Password string
}

// AuthenticateResult captures the outcome of a successful authentication.
type AuthenticateResult struct {
	User    User
	Session Session
}

// Message is one turn of a buyer/worker chat transcript handed to the
// suggestion collaborator.
type Message struct {
	Role string
	Text string
}
