package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/able-marketplace/internal/persistence"
)

type sessionStoreStub struct {
	sessions map[string]persistence.Session
	purged   int
	err      error
}

func newSessionStoreStub() *sessionStoreStub {
	return &sessionStoreStub{sessions: make(map[string]persistence.Session)}
}

func (s *sessionStoreStub) CreateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	if s.err != nil {
		return persistence.Session{}, s.err
	}
	s.sessions[session.Token] = session
	return session, nil
}

func (s *sessionStoreStub) GetSession(ctx context.Context, token string) (persistence.Session, error) {
	if s.err != nil {
		return persistence.Session{}, s.err
	}
	session, ok := s.sessions[token]
	if !ok {
		return persistence.Session{}, persistence.ErrNotFound
	}
	return session, nil
}

func (s *sessionStoreStub) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (persistence.Session, error) {
	if s.err != nil {
		return persistence.Session{}, s.err
	}
	session, ok := s.sessions[token]
	if !ok {
		return persistence.Session{}, persistence.ErrNotFound
	}
	session.RevokedAt = &revokedAt
	s.sessions[token] = session
	return session, nil
}

func (s *sessionStoreStub) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	if s.err != nil {
		return s.err
	}
	s.purged++
	for token, session := range s.sessions {
		if !session.ExpiresAt.After(reference) {
			delete(s.sessions, token)
		}
	}
	return nil
}

func authTestUser(t *testing.T) persistence.User {
	t.Helper()
	hash, err := HashPassword("correct horse", DefaultPasswordParams)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	return persistence.User{
		ID:           "worker-1",
		Email:        "sam@example.com",
		DisplayName:  "Sam",
		Role:         "worker",
		PasswordHash: hash,
	}
}

func newAuthService(t *testing.T, users *accountRepoStub, sessions *sessionStoreStub) *AuthService {
	t.Helper()
	counter := 0
	idGen := func() string {
		counter++
		return "token-" + string(rune('0'+counter))
	}
	return NewAuthService(users, sessions, []byte("test-signing-key"), nil, idGen, fixedNow, time.Hour, nil)
}

func TestAuthService_Authenticate_IssuesValidToken(t *testing.T) {
	t.Parallel()

	users := newAccountRepoStub(authTestUser(t))
	sessions := newSessionStoreStub()
	svc := newAuthService(t, users, sessions)

	result, err := svc.Authenticate(context.Background(), AuthenticateParams{
		Email:    "Sam@Example.com",
		Password: "correct horse",
	})
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if result.User.ID != "worker-1" {
		t.Fatalf("unexpected user: %+v", result.User)
	}
	if result.Session.Token == "" {
		t.Fatalf("expected a signed token")
	}
	if len(sessions.sessions) != 1 {
		t.Fatalf("expected one persisted session, got %d", len(sessions.sessions))
	}

	principal, err := svc.ValidateSession(context.Background(), result.Session.Token)
	if err != nil {
		t.Fatalf("ValidateSession returned error: %v", err)
	}
	if principal.UserID != "worker-1" || principal.Role != RoleWorker {
		t.Fatalf("unexpected principal: %+v", principal)
	}
}

func TestAuthService_Authenticate_RejectsBadCredentials(t *testing.T) {
	t.Parallel()

	users := newAccountRepoStub(authTestUser(t))
	svc := newAuthService(t, users, newSessionStoreStub())

	cases := []struct {
		name     string
		email    string
		password string
	}{
		{name: "wrong password", email: "sam@example.com", password: "wrong"},
		{name: "unknown email", email: "nobody@example.com", password: "correct horse"},
		{name: "empty password", email: "sam@example.com", password: ""},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := svc.Authenticate(context.Background(), AuthenticateParams{Email: tc.email, Password: tc.password})
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("expected ErrInvalidCredentials, got %v", err)
			}
		})
	}
}

func TestAuthService_Authenticate_RejectsDisabledAccount(t *testing.T) {
	t.Parallel()

	user := authTestUser(t)
	user.Disabled = true
	svc := newAuthService(t, newAccountRepoStub(user), newSessionStoreStub())

	_, err := svc.Authenticate(context.Background(), AuthenticateParams{
		Email:    "sam@example.com",
		Password: "correct horse",
	})
	if !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled, got %v", err)
	}
}

func TestAuthService_ValidateSession_RejectsRevokedToken(t *testing.T) {
	t.Parallel()

	users := newAccountRepoStub(authTestUser(t))
	sessions := newSessionStoreStub()
	svc := newAuthService(t, users, sessions)

	result, err := svc.Authenticate(context.Background(), AuthenticateParams{
		Email:    "sam@example.com",
		Password: "correct horse",
	})
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}

	if err := svc.RevokeSession(context.Background(), result.Session.Token); err != nil {
		t.Fatalf("RevokeSession returned error: %v", err)
	}

	if _, err := svc.ValidateSession(context.Background(), result.Session.Token); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("expected ErrSessionRevoked, got %v", err)
	}
}

func TestAuthService_ValidateSession_RejectsTamperedToken(t *testing.T) {
	t.Parallel()

	users := newAccountRepoStub(authTestUser(t))
	sessions := newSessionStoreStub()
	svc := newAuthService(t, users, sessions)

	result, err := svc.Authenticate(context.Background(), AuthenticateParams{
		Email:    "sam@example.com",
		Password: "correct horse",
	})
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}

	tampered := result.Session.Token + "x"
	if _, err := svc.ValidateSession(context.Background(), tampered); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for tampered token, got %v", err)
	}

	if _, err := svc.ValidateSession(context.Background(), ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for empty token, got %v", err)
	}
}

func TestAuthService_PurgeExpiredSessions(t *testing.T) {
	t.Parallel()

	sessions := newSessionStoreStub()
	sessions.sessions["stale"] = persistence.Session{
		ID: "s1", UserID: "worker-1", Token: "stale",
		ExpiresAt: fixedNow().Add(-time.Minute),
	}
	sessions.sessions["fresh"] = persistence.Session{
		ID: "s2", UserID: "worker-1", Token: "fresh",
		ExpiresAt: fixedNow().Add(time.Hour),
	}
	svc := newAuthService(t, newAccountRepoStub(authTestUser(t)), sessions)

	if err := svc.PurgeExpiredSessions(context.Background()); err != nil {
		t.Fatalf("PurgeExpiredSessions returned error: %v", err)
	}
	if _, ok := sessions.sessions["stale"]; ok {
		t.Fatalf("stale session survived purge")
	}
	if _, ok := sessions.sessions["fresh"]; !ok {
		t.Fatalf("fresh session was purged")
	}
}
