package application

import (
	"context"
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/example/able-marketplace/internal/persistence"
)

// AccountRepository captures the persistence operations needed by the user
// service.
type AccountRepository interface {
	CreateUser(ctx context.Context, user persistence.User) error
	UpdateUser(ctx context.Context, user persistence.User) error
	GetUser(ctx context.Context, id string) (persistence.User, error)
	ListUsers(ctx context.Context) ([]persistence.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// RuleCleanup removes a worker's availability rules when the account goes
// away.
type RuleCleanup interface {
	DeleteRulesForWorker(ctx context.Context, workerID string) error
}

// UserService orchestrates validation, authorization, and persistence for
// marketplace accounts.
type UserService struct {
	users       AccountRepository
	rules       RuleCleanup
	idGenerator func() string
	now         func() time.Time
}

// NewUserService wires dependencies for the user service.
func NewUserService(users AccountRepository, rules RuleCleanup, idGenerator func() string, now func() time.Time) *UserService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &UserService{users: users, rules: rules, idGenerator: idGenerator, now: now}
}

// RegisterUser handles open signup. Registrants choose worker or buyer; admin
// accounts are never created this way.
func (s *UserService) RegisterUser(ctx context.Context, input UserInput) (User, error) {
	if s == nil {
		return User{}, fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return User{}, fmt.Errorf("user repository not configured")
	}

	normalized := normalizeUserInput(input)
	normalized.IsAdmin = false

	vErr := validateUserInput(normalized, true)
	if vErr.HasErrors() {
		return User{}, vErr
	}

	return s.storeNewUser(ctx, normalized)
}

// CreateUser persists a new account on behalf of an administrator.
func (s *UserService) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	if s == nil {
		return User{}, fmt.Errorf("UserService is nil")
	}
	if !params.Principal.IsAdmin {
		return User{}, ErrUnauthorized
	}
	if s.users == nil {
		return User{}, fmt.Errorf("user repository not configured")
	}

	normalized := normalizeUserInput(params.Input)
	vErr := validateUserInput(normalized, true)
	if vErr.HasErrors() {
		return User{}, vErr
	}

	return s.storeNewUser(ctx, normalized)
}

// UpdateUser edits an existing account. Users may edit themselves; only
// administrators may edit others or grant admin.
func (s *UserService) UpdateUser(ctx context.Context, params UpdateUserParams) (User, error) {
	if s == nil {
		return User{}, fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return User{}, fmt.Errorf("user repository not configured")
	}
	if !params.Principal.IsAdmin && params.Principal.UserID != params.UserID {
		return User{}, ErrUnauthorized
	}

	existing, err := s.users.GetUser(ctx, params.UserID)
	if err != nil {
		return User{}, mapRuleRepoError(err)
	}

	normalized := normalizeUserInput(params.Input)
	vErr := validateUserInput(normalized, normalized.Password != "")
	if !params.Principal.IsAdmin && normalized.IsAdmin && !existing.IsAdmin {
		vErr.add("is_admin", "only administrators can grant admin")
	}
	if vErr.HasErrors() {
		return User{}, vErr
	}

	updated := existing
	updated.Email = normalized.Email
	updated.DisplayName = normalized.DisplayName
	updated.Role = string(normalized.Role)
	if params.Principal.IsAdmin {
		updated.IsAdmin = normalized.IsAdmin
	}
	if normalized.Password != "" {
		hash, err := HashPassword(normalized.Password, DefaultPasswordParams)
		if err != nil {
			return User{}, err
		}
		updated.PasswordHash = hash
	}
	updated.UpdatedAt = s.now()

	if err := s.users.UpdateUser(ctx, updated); err != nil {
		return User{}, mapRuleRepoError(err)
	}

	return userFromRecord(updated), nil
}

// DeleteUser removes an account and its availability rules.
func (s *UserService) DeleteUser(ctx context.Context, principal Principal, userID string) error {
	if s == nil {
		return fmt.Errorf("UserService is nil")
	}
	if !principal.IsAdmin {
		return ErrUnauthorized
	}
	if s.users == nil {
		return fmt.Errorf("user repository not configured")
	}

	if s.rules != nil {
		if err := s.rules.DeleteRulesForWorker(ctx, userID); err != nil && !isNotFoundError(err) {
			return err
		}
	}

	if err := s.users.DeleteUser(ctx, userID); err != nil {
		return mapRuleRepoError(err)
	}

	return nil
}

// GetUser fetches a single account. Any authenticated principal may look up
// any account; buyers browse worker profiles this way.
func (s *UserService) GetUser(ctx context.Context, principal Principal, userID string) (User, error) {
	if s == nil {
		return User{}, fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return User{}, fmt.Errorf("user repository not configured")
	}
	if principal.UserID == "" && !principal.IsAdmin {
		return User{}, ErrUnauthorized
	}

	record, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return User{}, mapRuleRepoError(err)
	}
	return userFromRecord(record), nil
}

// ListUsers returns all accounts for administrators, ordered by email.
func (s *UserService) ListUsers(ctx context.Context, principal Principal) ([]User, error) {
	if s == nil {
		return nil, fmt.Errorf("UserService is nil")
	}
	if !principal.IsAdmin {
		return nil, ErrUnauthorized
	}
	if s.users == nil {
		return nil, nil
	}

	records, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]User, 0, len(records))
	for _, record := range records {
		out = append(out, userFromRecord(record))
	}

	sort.Slice(out, func(i, j int) bool {
		if strings.EqualFold(out[i].Email, out[j].Email) {
			return out[i].ID < out[j].ID
		}
		return strings.ToLower(out[i].Email) < strings.ToLower(out[j].Email)
	})

	return out, nil
}

func (s *UserService) storeNewUser(ctx context.Context, input UserInput) (User, error) {
	hash, err := HashPassword(input.Password, DefaultPasswordParams)
	if err != nil {
		return User{}, err
	}

	createdAt := s.now()
	record := persistence.User{
		ID:           s.idGenerator(),
		Email:        input.Email,
		DisplayName:  input.DisplayName,
		Role:         string(input.Role),
		IsAdmin:      input.IsAdmin,
		PasswordHash: hash,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}

	if err := s.users.CreateUser(ctx, record); err != nil {
		return User{}, mapRuleRepoError(err)
	}

	return userFromRecord(record), nil
}

func userFromRecord(record persistence.User) User {
	return User{
		ID:          record.ID,
		Email:       record.Email,
		DisplayName: record.DisplayName,
		Role:        Role(record.Role),
		IsAdmin:     record.IsAdmin,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
	}
}

func normalizeUserInput(input UserInput) UserInput {
	return UserInput{
		Email:       strings.ToLower(strings.TrimSpace(input.Email)),
		DisplayName: strings.TrimSpace(input.DisplayName),
		Role:        Role(strings.ToLower(strings.TrimSpace(string(input.Role)))),
		IsAdmin:     input.IsAdmin,
		Password:    input.Password,
	}
}

func validateUserInput(input UserInput, requirePassword bool) *ValidationError {
	vErr := &ValidationError{}

	if input.Email == "" {
		vErr.add("email", "email is required")
	} else if _, err := mail.ParseAddress(input.Email); err != nil {
		vErr.add("email", "email is invalid")
	}

	if input.DisplayName == "" {
		vErr.add("display_name", "display name is required")
	}

	switch input.Role {
	case RoleWorker, RoleBuyer:
	default:
		vErr.add("role", "role must be worker or buyer")
	}

	if requirePassword {
		if len(input.Password) < 8 {
			vErr.add("password", "password must be at least 8 characters")
		}
	}

	return vErr
}
