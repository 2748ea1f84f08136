// Package todos is the todo list service of the reference application.
package todos

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aiman-zohra3/todo/internal/db"
)

// Errors. Their messages are shown to users as flash messages.
var (
	ErrNotFound = errors.New("Todo not found")
	ErrNotOwner = errors.New("Not authorized")
)

// Form is the submitted add or edit form.
type Form struct {
	Title   string
	Details string
	DueDate string
}

// Validate returns the form's problems in display order; nil when valid.
func (f Form) Validate() []string {
	var problems []string
	if strings.TrimSpace(f.Title) == "" {
		problems = append(problems, "Please add title")
	}
	if strings.TrimSpace(f.Details) == "" {
		problems = append(problems, "Please add some details")
	}
	return problems
}

// Service manages todos on behalf of their owners.
type Service struct {
	store *db.Store
	now   func() time.Time
}

// NewService creates a todo service.
func NewService(store *db.Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Create adds a todo for userID from a form that already passed Validate.
func (s *Service) Create(ctx context.Context, userID string, f Form) (*db.Todo, error) {
	now := s.now()
	t := db.Todo{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     strings.TrimSpace(f.Title),
		Details:   strings.TrimSpace(f.Details),
		DueDate:   strings.TrimSpace(f.DueDate),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateTodo(ctx, t); err != nil {
		return nil, err
	}
	return &t, nil
}

// List returns userID's todos, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]db.Todo, error) {
	return s.store.ListTodos(ctx, userID)
}

// Get returns the todo id if userID owns it.
func (s *Service) Get(ctx context.Context, userID, id string) (*db.Todo, error) {
	t, err := s.store.GetTodo(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if t.UserID != userID {
		return nil, ErrNotOwner
	}
	return &t, nil
}

// Update rewrites the todo id from a form that already passed Validate.
func (s *Service) Update(ctx context.Context, userID, id string, f Form) (*db.Todo, error) {
	t, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	t.Title = strings.TrimSpace(f.Title)
	t.Details = strings.TrimSpace(f.Details)
	t.DueDate = strings.TrimSpace(f.DueDate)
	t.UpdatedAt = s.now()
	if err := s.store.UpdateTodo(ctx, *t); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

// Delete removes the todo id if userID owns it.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	if err := s.store.DeleteTodo(ctx, id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}
