package persistence

import "time"

// User represents a marketplace account: a gig worker, a buyer, or both.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	Role         string
	IsAdmin      bool
	PasswordHash string
	Disabled     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AvailabilityRule is a worker's stored availability declaration. Dates are
// kept as YYYY-MM-DD strings and clocks as HH:MM strings, matching the wire
// contract; the recurrence engine parses them on read.
type AvailabilityRule struct {
	ID          string
	WorkerID    string
	StartTime   string
	EndTime     string
	Days        []string
	Frequency   string
	Ends        string
	EndDate     string
	Occurrences int
	Notes       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Gig is a booked or offered unit of work between a buyer and a worker.
type Gig struct {
	ID          string
	BuyerID     string
	WorkerID    string
	Title       string
	Start       time.Time
	End         time.Time
	Status      string
	AmountPence int64
	PaymentRef  *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Session represents an authentication session persisted for a user. Token
// holds the JWT ID (jti); the signed token itself is never stored.
type Session struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}
