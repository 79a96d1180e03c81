package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/example/able-marketplace/internal/persistence"
)

// CredentialStore exposes the user lookups required by the auth service.
type CredentialStore interface {
	GetUserByEmail(ctx context.Context, email string) (persistence.User, error)
	GetUser(ctx context.Context, id string) (persistence.User, error)
}

// SessionStore captures the persistence interactions for issued sessions.
// Only the token ID (jti) is stored; the signed JWT never touches the
// database.
type SessionStore interface {
	CreateSession(ctx context.Context, session persistence.Session) (persistence.Session, error)
	GetSession(ctx context.Context, token string) (persistence.Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (persistence.Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}

// PasswordVerifier compares a stored hash with a candidate password.
type PasswordVerifier func(hashedPassword, password string) error

// AuthService coordinates login, logout, and bearer-token validation. Tokens
// are HS256 JWTs whose jti maps to a revocable session row.
type AuthService struct {
	credentials    CredentialStore
	sessions       SessionStore
	verifyPassword PasswordVerifier
	signingKey     []byte
	idGenerator    func() string
	now            func() time.Time
	sessionTTL     time.Duration
	logger         *slog.Logger
}

// NewAuthService constructs an AuthService with the provided dependencies.
func NewAuthService(credentials CredentialStore, sessions SessionStore, signingKey []byte, verify PasswordVerifier, idGenerator func() string, now func() time.Time, sessionTTL time.Duration, logger *slog.Logger) *AuthService {
	if verify == nil {
		verify = VerifyPassword
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	return &AuthService{
		credentials:    credentials,
		sessions:       sessions,
		verifyPassword: verify,
		signingKey:     signingKey,
		idGenerator:    idGenerator,
		now:            now,
		sessionTTL:     sessionTTL,
		logger:         defaultLogger(logger),
	}
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "auth", operation, attrs...)
}

// Authenticate validates credentials, persists a session, and issues a signed
// token.
func (s *AuthService) Authenticate(ctx context.Context, params AuthenticateParams) (result AuthenticateResult, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.credentials == nil {
		err = fmt.Errorf("credential store not configured")
		return
	}
	if s.sessions == nil {
		err = fmt.Errorf("session repository not configured")
		return
	}

	email := strings.TrimSpace(strings.ToLower(params.Email))
	password := params.Password

	logger := s.loggerWith(ctx, "authenticate", "email", email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "authentication failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"user_id", result.User.ID,
			"session_id", result.Session.ID,
		).InfoContext(ctx, "authentication succeeded")
	}()

	if email == "" || password == "" {
		err = ErrInvalidCredentials
		return
	}

	var record persistence.User
	record, err = s.credentials.GetUserByEmail(ctx, email)
	if err != nil {
		if isNotFoundError(err) {
			err = ErrInvalidCredentials
			return
		}
		return
	}

	if record.Disabled {
		err = ErrAccountDisabled
		return
	}

	if err = s.verifyPassword(record.PasswordHash, password); err != nil {
		err = ErrInvalidCredentials
		return
	}

	now := s.now()
	jti := s.idGenerator()
	expiresAt := now.Add(s.sessionTTL)

	var signed string
	signed, err = s.signToken(record.ID, jti, now, expiresAt)
	if err != nil {
		return
	}

	if err = s.sessions.DeleteExpiredSessions(ctx, now); err != nil {
		return
	}

	var persisted persistence.Session
	persisted, err = s.sessions.CreateSession(ctx, persistence.Session{
		ID:        s.idGenerator(),
		UserID:    record.ID,
		Token:     jti,
		ExpiresAt: expiresAt,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return
	}

	result = AuthenticateResult{
		User: userFromRecord(record),
		Session: Session{
			ID:        persisted.ID,
			UserID:    persisted.UserID,
			Token:     signed,
			ExpiresAt: persisted.ExpiresAt,
		},
	}
	return
}

// ValidateSession verifies a bearer token and returns its principal. The
// signature is checked first, then the session row: a structurally valid
// token whose session was revoked is still rejected.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (principal Principal, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.sessions == nil {
		err = fmt.Errorf("session repository not configured")
		return
	}
	if s.credentials == nil {
		err = fmt.Errorf("credential store not configured")
		return
	}

	logger := s.loggerWith(ctx, "validate_session")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "session validation failed", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	var claims *jwt.RegisteredClaims
	claims, err = s.parseToken(token)
	if err != nil {
		return
	}

	var session persistence.Session
	session, err = s.sessions.GetSession(ctx, claims.ID)
	if err != nil {
		if isNotFoundError(err) {
			err = ErrUnauthorized
		}
		return
	}

	now := s.now()
	if session.RevokedAt != nil && !session.RevokedAt.IsZero() {
		err = ErrSessionRevoked
		return
	}
	if !session.ExpiresAt.IsZero() && !session.ExpiresAt.After(now) {
		err = ErrSessionExpired
		return
	}
	if session.UserID != claims.Subject {
		err = ErrUnauthorized
		return
	}

	var user persistence.User
	user, err = s.credentials.GetUser(ctx, session.UserID)
	if err != nil {
		if isNotFoundError(err) {
			err = ErrUnauthorized
		}
		return
	}
	if user.Disabled {
		err = ErrAccountDisabled
		return
	}

	principal = Principal{UserID: user.ID, Role: Role(user.Role), IsAdmin: user.IsAdmin}
	return
}

// RevokeSession invalidates the session behind a bearer token. Expired tokens
// are still accepted here so logout always succeeds.
func (s *AuthService) RevokeSession(ctx context.Context, token string) error {
	if s == nil {
		return fmt.Errorf("AuthService is nil")
	}
	if s.sessions == nil {
		return fmt.Errorf("session repository not configured")
	}

	logger := s.loggerWith(ctx, "revoke_session")

	claims, err := s.parseToken(token)
	if err != nil && !errors.Is(err, ErrSessionExpired) {
		logger.ErrorContext(ctx, "failed to revoke session", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	if _, err := s.sessions.RevokeSession(ctx, claims.ID, s.now()); err != nil {
		if isNotFoundError(err) {
			logger.ErrorContext(ctx, "failed to revoke session", "error", ErrInvalidCredentials, "error_kind", ErrorKind(ErrInvalidCredentials))
			return ErrInvalidCredentials
		}
		logger.ErrorContext(ctx, "failed to revoke session", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	logger.InfoContext(ctx, "session revoked")
	return nil
}

// PurgeExpiredSessions deletes sessions past their expiry. Run periodically.
func (s *AuthService) PurgeExpiredSessions(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("AuthService is nil")
	}
	if s.sessions == nil {
		return fmt.Errorf("session repository not configured")
	}
	return s.sessions.DeleteExpiredSessions(ctx, s.now())
}

func (s *AuthService) signToken(userID, jti string, issuedAt, expiresAt time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ID:        jti,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
}

// parseToken verifies the signature and returns the claims. Expired tokens
// return both the claims and ErrSessionExpired so revocation can proceed.
func (s *AuthService) parseToken(token string) (*jwt.RegisteredClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidCredentials
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.signingKey, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return claims, ErrSessionExpired
		}
		return nil, ErrUnauthorized
	}
	if !parsed.Valid || claims.ID == "" {
		return nil, ErrUnauthorized
	}
	return claims, nil
}
