// Package auth holds accounts, password hashing and server-side sessions for
// the reference todo application.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/aiman-zohra3/todo/internal/db"
)

// Errors. Their messages are shown to users as flash messages.
var (
	ErrUserNotFound      = errors.New("No user found")
	ErrPasswordIncorrect = errors.New("Password incorrect")
	ErrAccountExists     = errors.New("Email already registered")
	ErrMissingFields     = errors.New("Missing credentials")
)

// MinPasswordLength is the shortest password the registration form accepts.
const MinPasswordLength = 4

// Registration is the submitted sign-up form.
type Registration struct {
	Name      string
	Email     string
	Password  string
	Password2 string
}

// Validate returns the form's problems in display order; nil when valid.
func (r Registration) Validate() []string {
	var problems []string
	if strings.TrimSpace(r.Name) == "" {
		problems = append(problems, "Please add a name")
	}
	if strings.TrimSpace(r.Email) == "" {
		problems = append(problems, "Please add an email")
	}
	if r.Password != r.Password2 {
		problems = append(problems, "Passwords do not match")
	}
	if len(r.Password) < MinPasswordLength {
		problems = append(problems, fmt.Sprintf("Password must be at least %d characters", MinPasswordLength))
	}
	return problems
}

// UserService handles user management operations.
type UserService struct {
	store  *db.Store
	hasher PasswordHasher
	clock  Clock
}

// NewUserService creates a user service.
func NewUserService(store *db.Store, hasher PasswordHasher) *UserService {
	return &UserService{store: store, hasher: hasher, clock: realClock{}}
}

// SetClock replaces the time source.
func (s *UserService) SetClock(c Clock) { s.clock = c }

// Register creates an account from a form that already passed Validate.
// A taken email returns ErrAccountExists.
func (s *UserService) Register(ctx context.Context, r Registration) (*db.User, error) {
	hash, err := s.hasher.HashPassword(r.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := db.User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(r.Name),
		Email:        db.NormalizeEmail(r.Email),
		PasswordHash: hash,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return nil, ErrAccountExists
		}
		return nil, err
	}
	return &u, nil
}

// Authenticate checks an email and password pair.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*db.User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, ErrMissingFields
	}
	u, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if !s.hasher.VerifyPassword(password, u.PasswordHash) {
		return nil, ErrPasswordIncorrect
	}
	return &u, nil
}

// Get returns the account with id.
func (s *UserService) Get(ctx context.Context, id string) (*db.User, error) {
	u, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}
