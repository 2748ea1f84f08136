package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aiman-zohra3/todo/internal/db"
)

// Session errors
var (
	ErrSessionNotFound = errors.New("session not found")
)

// Session configuration
const (
	DefaultSessionDuration = 24 * time.Hour
	SessionIDLength        = 32 // 256 bits
	SessionCookieName      = "session_id"
)

// SessionService handles session management.
type SessionService struct {
	store    *db.Store
	duration time.Duration
	clock    Clock
}

// NewSessionService creates a session service issuing sessions that last
// duration (DefaultSessionDuration when zero).
func NewSessionService(store *db.Store, duration time.Duration) *SessionService {
	if duration <= 0 {
		duration = DefaultSessionDuration
	}
	return &SessionService{store: store, duration: duration, clock: realClock{}}
}

// SetClock replaces the time source.
func (s *SessionService) SetClock(c Clock) { s.clock = c }

// Duration is how long new sessions stay valid.
func (s *SessionService) Duration() time.Duration { return s.duration }

// Create creates a new session for a user.
// Returns the session ID which should be stored in a cookie.
func (s *SessionService) Create(ctx context.Context, userID string) (string, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return "", fmt.Errorf("generate session ID: %w", err)
	}

	now := s.clock.Now()
	err = s.store.UpsertSession(ctx, db.Session{
		SessionID: sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(s.duration),
		CreatedAt: now,
	})
	if err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return sessionID, nil
}

// Validate checks if a session is valid and returns the user ID.
func (s *SessionService) Validate(ctx context.Context, sessionID string) (string, error) {
	session, err := s.store.GetValidSession(ctx, sessionID, s.clock.Now())
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return "", ErrSessionNotFound
		}
		return "", fmt.Errorf("get session: %w", err)
	}
	return session.UserID, nil
}

// Delete removes a session (logout).
func (s *SessionService) Delete(ctx context.Context, sessionID string) error {
	return s.store.DeleteSession(ctx, sessionID)
}

// DeleteByUserID removes all sessions for a user.
func (s *SessionService) DeleteByUserID(ctx context.Context, userID string) error {
	return s.store.DeleteSessionsByUserID(ctx, userID)
}

// Cleanup removes all expired sessions.
func (s *SessionService) Cleanup(ctx context.Context) (int64, error) {
	n, err := s.store.DeleteExpiredSessions(ctx, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("cleanup expired sessions: %w", err)
	}
	return n, nil
}

// RunCleanup calls Cleanup every interval until ctx is done.
func (s *SessionService) RunCleanup(ctx context.Context, interval time.Duration, onError func(error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Cleanup(ctx); err != nil && onError != nil {
				onError(err)
			}
		}
	}
}

// Cookie helpers

// SetCookie sets the session cookie on the response.
func SetCookie(w http.ResponseWriter, sessionID string, maxAge time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(maxAge.Seconds()),
	})
}

// ClearCookie removes the session cookie.
func ClearCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// GetFromRequest retrieves the session ID from the request cookie.
func GetFromRequest(r *http.Request) (string, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return "", ErrSessionNotFound
		}
		return "", err
	}
	if cookie.Value == "" {
		return "", ErrSessionNotFound
	}
	return cookie.Value, nil
}

func generateSessionID() (string, error) {
	bytes := make([]byte, SessionIDLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}
