package todos

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/aiman-zohra3/todo/internal/db"
)

func newService(t *testing.T) *Service {
	t.Helper()
	ctx := context.Background()
	store, err := db.Open(ctx, filepath.Join(t.TempDir(), "todos.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	for _, id := range []string{"alice", "bob"} {
		require.NoError(t, store.CreateUser(ctx, db.User{
			ID: id, Name: id, Email: id + "@example.com", PasswordHash: "$fake$pw", CreatedAt: time.Now(),
		}))
	}

	s := NewService(store)
	tick := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	return s
}

func TestForm_Validate(t *testing.T) {
	t.Parallel()
	assert.Empty(t, Form{Title: "x", Details: "y"}.Validate())
	assert.Equal(t, []string{"Please add title", "Please add some details"}, Form{Title: "  ", DueDate: "2025-12-31"}.Validate())
	assert.Equal(t, []string{"Please add some details"}, Form{Title: "x", Details: "\n"}.Validate())
}

func TestValidate_BlankTitleAlwaysReportedFirst(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := Form{
			Title:   rapid.StringMatching(`[ \t\n]{0,3}`).Draw(t, "title"),
			Details: rapid.String().Draw(t, "details"),
		}
		problems := f.Validate()
		if len(problems) == 0 || problems[0] != "Please add title" {
			t.Fatalf("Validate(%+v) = %v, want title problem first", f, problems)
		}
	})
}

func TestService_CreateListNewestFirst(t *testing.T) {
	t.Parallel()
	s := newService(t)
	ctx := context.Background()

	first, err := s.Create(ctx, "alice", Form{Title: " Todo 1 ", Details: "Adding via test", DueDate: "2025-12-31"})
	require.NoError(t, err)
	assert.Equal(t, "Todo 1", first.Title)
	_, err = s.Create(ctx, "alice", Form{Title: "Todo 2", Details: "d"})
	require.NoError(t, err)
	_, err = s.Create(ctx, "bob", Form{Title: "Bob's", Details: "d"})
	require.NoError(t, err)

	list, err := s.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Todo 2", list[0].Title)
	assert.Equal(t, "2025-12-31", list[1].DueDate)
}

func TestService_OwnerChecks(t *testing.T) {
	t.Parallel()
	s := newService(t)
	ctx := context.Background()
	todo, err := s.Create(ctx, "alice", Form{Title: "mine", Details: "d"})
	require.NoError(t, err)

	_, err = s.Get(ctx, "bob", todo.ID)
	assert.ErrorIs(t, err, ErrNotOwner)
	_, err = s.Update(ctx, "bob", todo.ID, Form{Title: "stolen", Details: "d"})
	assert.ErrorIs(t, err, ErrNotOwner)
	assert.ErrorIs(t, s.Delete(ctx, "bob", todo.ID), ErrNotOwner)

	_, err = s.Get(ctx, "alice", "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	updated, err := s.Update(ctx, "alice", todo.ID, Form{Title: "renamed", Details: "new", DueDate: "2026-01-01"})
	require.NoError(t, err)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt))

	got, err := s.Get(ctx, "alice", todo.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Title)
	assert.Equal(t, "2026-01-01", got.DueDate)

	require.NoError(t, s.Delete(ctx, "alice", todo.ID))
	assert.ErrorIs(t, s.Delete(ctx, "alice", todo.ID), ErrNotFound)
}
