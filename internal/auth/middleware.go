package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/aiman-zohra3/todo/internal/db"
	"github.com/aiman-zohra3/todo/internal/obs"
)

type contextKey string

const userKey contextKey = "user"

// Middleware provides authentication middleware for HTTP handlers.
type Middleware struct {
	sessions *SessionService
	users    *UserService
	// unauthorized answers requests without a valid session.
	unauthorized http.HandlerFunc
}

// NewMiddleware creates auth middleware. unauthorized handles requests to
// protected routes without a valid session; nil means a plain 401.
func NewMiddleware(sessions *SessionService, users *UserService, unauthorized http.HandlerFunc) *Middleware {
	if unauthorized == nil {
		unauthorized = func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
		}
	}
	return &Middleware{sessions: sessions, users: users, unauthorized: unauthorized}
}

// RequireAuth only lets requests with a valid session through.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := m.lookup(r)
		if user == nil {
			m.unauthorized(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// OptionalAuth adds the user to the context when a valid session is present.
func (m *Middleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user := m.lookup(r); user != nil {
			r = r.WithContext(WithUser(r.Context(), user))
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) lookup(r *http.Request) *db.User {
	sessionID, err := GetFromRequest(r)
	if err != nil {
		return nil
	}
	userID, err := m.sessions.Validate(r.Context(), sessionID)
	if err != nil {
		if !errors.Is(err, ErrSessionNotFound) {
			obs.From(r.Context()).Warn("session validation failed", "error", err)
		}
		return nil
	}
	user, err := m.users.Get(r.Context(), userID)
	if err != nil {
		return nil
	}
	return user
}

// WithUser attaches the signed-in user to ctx.
func WithUser(ctx context.Context, u *db.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// UserFromContext returns the signed-in user, or nil.
func UserFromContext(ctx context.Context) *db.User {
	u, _ := ctx.Value(userKey).(*db.User)
	return u
}
