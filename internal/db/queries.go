package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// User is a registered account.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Session is a server-side login session.
type Session struct {
	SessionID string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Todo is one item on a user's list.
type Todo struct {
	ID        string
	UserID    string
	Title     string
	Details   string
	DueDate   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateUser inserts u. Its email is normalized first; an address already
// on file returns ErrDuplicate.
func (s *Store) CreateUser(ctx context.Context, u User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, created_at)
		 VALUES (?, ?, normalize_email(?), ?, ?)`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.CreatedAt.Unix(),
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUserByEmail looks up an account by email, case-insensitively.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return s.getUser(ctx, `SELECT id, name, email, password_hash, created_at FROM users WHERE email = normalize_email(?)`, email)
}

// GetUserByID looks up an account by id.
func (s *Store) GetUserByID(ctx context.Context, id string) (User, error) {
	return s.getUser(ctx, `SELECT id, name, email, password_hash, created_at FROM users WHERE id = ?`, id)
}

func (s *Store) getUser(ctx context.Context, query string, arg string) (User, error) {
	var u User
	var created int64
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	u.CreatedAt = time.Unix(created, 0).UTC()
	return u, nil
}

// UpsertSession stores or replaces a session.
func (s *Store) UpsertSession(ctx context.Context, sess Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET user_id = excluded.user_id, expires_at = excluded.expires_at`,
		sess.SessionID, sess.UserID, sess.ExpiresAt.Unix(), sess.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// GetValidSession returns the session if it exists and has not expired at now.
func (s *Store) GetValidSession(ctx context.Context, sessionID string, now time.Time) (Session, error) {
	var sess Session
	var expires, created int64
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, user_id, expires_at, created_at FROM sessions WHERE session_id = ? AND expires_at > ?`,
		sessionID, now.Unix(),
	).Scan(&sess.SessionID, &sess.UserID, &expires, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	sess.ExpiresAt = time.Unix(expires, 0).UTC()
	sess.CreatedAt = time.Unix(created, 0).UTC()
	return sess, nil
}

// DeleteSession removes one session. Deleting a missing session is not an error.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteSessionsByUserID removes every session of a user.
func (s *Store) DeleteSessionsByUserID(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete user sessions: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes sessions that expired at or before now and
// reports how many were removed.
func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}

// CreateTodo inserts t.
func (s *Store) CreateTodo(ctx context.Context, t Todo) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO todos (id, user_id, title, details, due_date, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Title, t.Details, t.DueDate, t.CreatedAt.UnixNano(), t.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert todo: %w", err)
	}
	return nil
}

// GetTodo returns a todo by id regardless of owner.
func (s *Store) GetTodo(ctx context.Context, id string) (Todo, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, details, due_date, created_at, updated_at FROM todos WHERE id = ?`, id)
	t, err := scanTodo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Todo{}, ErrNotFound
	}
	if err != nil {
		return Todo{}, fmt.Errorf("get todo: %w", err)
	}
	return t, nil
}

// ListTodos returns a user's todos, newest first.
func (s *Store) ListTodos(ctx context.Context, userID string) ([]Todo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, details, due_date, created_at, updated_at
		 FROM todos WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	defer rows.Close()

	var todos []Todo
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan todo: %w", err)
		}
		todos = append(todos, t)
	}
	return todos, rows.Err()
}

// UpdateTodo rewrites the editable fields of t.
func (s *Store) UpdateTodo(ctx context.Context, t Todo) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE todos SET title = ?, details = ?, due_date = ?, updated_at = ? WHERE id = ?`,
		t.Title, t.Details, t.DueDate, t.UpdatedAt.UnixNano(), t.ID,
	)
	if err != nil {
		return fmt.Errorf("update todo: %w", err)
	}
	return requireOneRow(res)
}

// DeleteTodo removes a todo by id.
func (s *Store) DeleteTodo(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM todos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}
	return requireOneRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTodo(row rowScanner) (Todo, error) {
	var t Todo
	var created, updated int64
	if err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Details, &t.DueDate, &created, &updated); err != nil {
		return Todo{}, err
	}
	t.CreatedAt = time.Unix(0, created).UTC()
	t.UpdatedAt = time.Unix(0, updated).UTC()
	return t, nil
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
