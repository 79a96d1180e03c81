package persistence

import (
	"context"
	"time"
)

// UserRepository exposes CRUD operations for marketplace accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	DeleteUser(ctx context.Context, id string) error
}

// AvailabilityRuleRepository stores workers' availability declarations. This
// is the record-store contract the recurrence core expands from; occurrences
// themselves are never written back.
type AvailabilityRuleRepository interface {
	CreateRule(ctx context.Context, rule AvailabilityRule) error
	UpdateRule(ctx context.Context, rule AvailabilityRule) error
	GetRule(ctx context.Context, id string) (AvailabilityRule, error)
	ListRulesForWorker(ctx context.Context, workerID string) ([]AvailabilityRule, error)
	DeleteRule(ctx context.Context, id string) error
	DeleteRulesForWorker(ctx context.Context, workerID string) error
}

// GigFilter narrows gig queries.
type GigFilter struct {
	WorkerID    string
	BuyerID     string
	Statuses    []string
	StartsAfter *time.Time
	EndsBefore  *time.Time
}

// GigRepository stores gig offers and bookings.
type GigRepository interface {
	CreateGig(ctx context.Context, gig Gig) error
	UpdateGig(ctx context.Context, gig Gig) error
	GetGig(ctx context.Context, id string) (Gig, error)
	ListGigs(ctx context.Context, filter GigFilter) ([]Gig, error)
}

// SessionRepository stores authentication session state.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}
