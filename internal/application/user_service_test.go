package application

import (
	"context"
	"errors"
	"testing"

	"github.com/example/able-marketplace/internal/persistence"
)

type accountRepoStub struct {
	users   map[string]persistence.User
	created []persistence.User
	updated []persistence.User
	deleted []string
	err     error
}

func newAccountRepoStub(users ...persistence.User) *accountRepoStub {
	stub := &accountRepoStub{users: make(map[string]persistence.User)}
	for _, user := range users {
		stub.users[user.ID] = user
	}
	return stub
}

func (s *accountRepoStub) CreateUser(ctx context.Context, user persistence.User) error {
	if s.err != nil {
		return s.err
	}
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return persistence.ErrDuplicate
		}
	}
	s.created = append(s.created, user)
	s.users[user.ID] = user
	return nil
}

func (s *accountRepoStub) UpdateUser(ctx context.Context, user persistence.User) error {
	if s.err != nil {
		return s.err
	}
	if _, ok := s.users[user.ID]; !ok {
		return persistence.ErrNotFound
	}
	s.updated = append(s.updated, user)
	s.users[user.ID] = user
	return nil
}

func (s *accountRepoStub) GetUser(ctx context.Context, id string) (persistence.User, error) {
	if s.err != nil {
		return persistence.User{}, s.err
	}
	user, ok := s.users[id]
	if !ok {
		return persistence.User{}, persistence.ErrNotFound
	}
	return user, nil
}

func (s *accountRepoStub) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	if s.err != nil {
		return persistence.User{}, s.err
	}
	for _, user := range s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return persistence.User{}, persistence.ErrNotFound
}

func (s *accountRepoStub) ListUsers(ctx context.Context) ([]persistence.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]persistence.User, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	return out, nil
}

func (s *accountRepoStub) DeleteUser(ctx context.Context, id string) error {
	if s.err != nil {
		return s.err
	}
	if _, ok := s.users[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.users, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func newUserService(repo *accountRepoStub) (*UserService, *ruleRepoStub) {
	rules := newRuleRepoStub()
	return NewUserService(repo, rules, func() string { return "user-1" }, fixedNow), rules
}

func TestUserService_RegisterUser_HashesPassword(t *testing.T) {
	t.Parallel()

	repo := newAccountRepoStub()
	svc, _ := newUserService(repo)

	user, err := svc.RegisterUser(context.Background(), UserInput{
		Email:       "Worker@Example.COM",
		DisplayName: "Sam",
		Role:        "worker",
		Password:    "correct horse",
	})
	if err != nil {
		t.Fatalf("RegisterUser returned error: %v", err)
	}
	if user.Email != "worker@example.com" {
		t.Fatalf("email not normalized: %s", user.Email)
	}
	if user.IsAdmin {
		t.Fatalf("signup must never grant admin")
	}

	stored := repo.users["user-1"]
	if stored.PasswordHash == "" || stored.PasswordHash == "correct horse" {
		t.Fatalf("password not hashed: %q", stored.PasswordHash)
	}
	if err := VerifyPassword(stored.PasswordHash, "correct horse"); err != nil {
		t.Fatalf("stored hash does not verify: %v", err)
	}
	if err := VerifyPassword(stored.PasswordHash, "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
}

func TestUserService_RegisterUser_ValidatesInput(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		input UserInput
		field string
	}{
		{
			name:  "missing email",
			input: UserInput{DisplayName: "Sam", Role: "worker", Password: "long enough"},
			field: "email",
		},
		{
			name:  "invalid email",
			input: UserInput{Email: "not-an-email", DisplayName: "Sam", Role: "worker", Password: "long enough"},
			field: "email",
		},
		{
			name:  "bad role",
			input: UserInput{Email: "sam@example.com", DisplayName: "Sam", Role: "wizard", Password: "long enough"},
			field: "role",
		},
		{
			name:  "short password",
			input: UserInput{Email: "sam@example.com", DisplayName: "Sam", Role: "buyer", Password: "short"},
			field: "password",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc, _ := newUserService(newAccountRepoStub())
			_, err := svc.RegisterUser(context.Background(), tc.input)

			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if _, ok := vErr.FieldErrors[tc.field]; !ok {
				t.Fatalf("expected error on field %q, got %v", tc.field, vErr.FieldErrors)
			}
		})
	}
}

func TestUserService_RegisterUser_RejectsDuplicateEmail(t *testing.T) {
	t.Parallel()

	repo := newAccountRepoStub(persistence.User{ID: "existing", Email: "sam@example.com", Role: "worker"})
	svc, _ := newUserService(repo)

	_, err := svc.RegisterUser(context.Background(), UserInput{
		Email:       "sam@example.com",
		DisplayName: "Sam",
		Role:        "worker",
		Password:    "long enough",
	})
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestUserService_UpdateUser_SelfCannotGrantAdmin(t *testing.T) {
	t.Parallel()

	repo := newAccountRepoStub(persistence.User{ID: "user-1", Email: "sam@example.com", DisplayName: "Sam", Role: "worker"})
	svc, _ := newUserService(repo)

	_, err := svc.UpdateUser(context.Background(), UpdateUserParams{
		Principal: Principal{UserID: "user-1", Role: RoleWorker},
		UserID:    "user-1",
		Input:     UserInput{Email: "sam@example.com", DisplayName: "Sam", Role: "worker", IsAdmin: true},
	})

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := vErr.FieldErrors["is_admin"]; !ok {
		t.Fatalf("expected is_admin error, got %v", vErr.FieldErrors)
	}
}

func TestUserService_DeleteUser_CleansUpRules(t *testing.T) {
	t.Parallel()

	repo := newAccountRepoStub(persistence.User{ID: "worker-1", Email: "sam@example.com", Role: "worker"})
	svc, rules := newUserService(repo)

	if err := svc.DeleteUser(context.Background(), Principal{UserID: "admin", IsAdmin: true}, "worker-1"); err != nil {
		t.Fatalf("DeleteUser returned error: %v", err)
	}
	if len(rules.clearedBy) != 1 || rules.clearedBy[0] != "worker-1" {
		t.Fatalf("expected rule cleanup for worker-1, got %v", rules.clearedBy)
	}
	if len(repo.deleted) != 1 {
		t.Fatalf("expected account deleted, got %v", repo.deleted)
	}
}

func TestUserService_ListUsers_AdminOnly(t *testing.T) {
	t.Parallel()

	repo := newAccountRepoStub(
		persistence.User{ID: "u1", Email: "b@example.com", Role: "worker"},
		persistence.User{ID: "u2", Email: "a@example.com", Role: "buyer"},
	)
	svc, _ := newUserService(repo)

	if _, err := svc.ListUsers(context.Background(), Principal{UserID: "u1", Role: RoleWorker}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	users, err := svc.ListUsers(context.Background(), Principal{UserID: "admin", IsAdmin: true})
	if err != nil {
		t.Fatalf("ListUsers returned error: %v", err)
	}
	if len(users) != 2 || users[0].Email != "a@example.com" {
		t.Fatalf("expected users ordered by email, got %v", users)
	}
}
