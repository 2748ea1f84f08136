package web

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aiman-zohra3/todo/internal/auth"
	"github.com/aiman-zohra3/todo/internal/config"
	"github.com/aiman-zohra3/todo/internal/db"
	"github.com/aiman-zohra3/todo/internal/obs"
	"github.com/aiman-zohra3/todo/internal/ratelimit"
	"github.com/aiman-zohra3/todo/internal/todos"
)

// SessionCleanupInterval is how often expired sessions are purged.
const SessionCleanupInterval = 10 * time.Minute

// App is the assembled reference application.
type App struct {
	Store    *db.Store
	Users    *auth.UserService
	Sessions *auth.SessionService
	Todos    *todos.Service

	handler http.Handler
	limiter *ratelimit.RateLimiter
	tempDir string

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewApp opens storage and wires every route. In test mode the database
// lives in a fresh temporary directory and passwords use the fast fake
// hasher.
func NewApp(ctx context.Context, cfg *config.AppConfig) (*App, error) {
	logger := obs.Pkg("web")

	path := cfg.DatabasePath
	var tempDir string
	if cfg.TestMode {
		dir, err := os.MkdirTemp("", "todo-app-*")
		if err != nil {
			return nil, fmt.Errorf("create test data directory: %w", err)
		}
		tempDir = dir
		path = filepath.Join(dir, "todos.db")
	}

	key, err := db.DecodeKey(cfg.DatabaseKey)
	if err != nil {
		return nil, err
	}
	store, err := db.Open(ctx, path, key)
	if err != nil {
		if tempDir != "" {
			os.RemoveAll(tempDir)
		}
		return nil, err
	}

	var hasher auth.PasswordHasher = auth.BcryptHasher{}
	if cfg.TestMode {
		hasher = auth.FakeInsecureHasher{}
	}

	renderer, err := NewRenderer()
	if err != nil {
		store.Close()
		return nil, err
	}

	a := &App{
		Store:    store,
		Users:    auth.NewUserService(store, hasher),
		Sessions: auth.NewSessionService(store, cfg.SessionDuration),
		Todos:    todos.NewService(store),
		tempDir:  tempDir,
	}
	if cfg.LoginRPS > 0 {
		a.limiter = ratelimit.NewRateLimiter(ratelimit.Config{
			RPS:             cfg.LoginRPS,
			Burst:           cfg.LoginBurst,
			CleanupInterval: time.Hour,
		})
	}

	h := NewHandler(renderer, a.Users, a.Sessions, a.Todos, cfg.SecureCookies)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux, h.Middleware(), a.limiter)

	var handler http.Handler = MethodOverride(mux)
	handler = obs.AccessLogMiddleware("web", handler)
	a.handler = obs.RequestContextMiddleware(handler)

	cleanupCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.Sessions.RunCleanup(cleanupCtx, SessionCleanupInterval, func(err error) {
			logger.Warn("session cleanup failed", "error", err)
		})
	}()

	logger.Info("application ready", "database", path, "encrypted", len(key) > 0, "test_mode", cfg.TestMode)
	return a, nil
}

// Handler serves the whole application.
func (a *App) Handler() http.Handler { return a.handler }

// Close stops background work and closes storage. Test-mode data is removed.
func (a *App) Close() error {
	var err error
	a.once.Do(func() {
		a.cancel()
		a.wg.Wait()
		if a.limiter != nil {
			a.limiter.Stop()
		}
		err = a.Store.Close()
		if a.tempDir != "" {
			os.RemoveAll(a.tempDir)
		}
	})
	return err
}
