package browser

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"

	"github.com/aiman-zohra3/todo/internal/errs"
	"github.com/aiman-zohra3/todo/internal/obs"
)

// ManagerOptions configures the playwright driver.
type ManagerOptions struct {
	// InstallBrowsers downloads the driver and browsers before starting.
	InstallBrowsers bool
	// Browsers limits the install to these browser names.
	Browsers []string
	// Launch replaces the playwright launcher. When set, Start does not run
	// the driver.
	Launch LaunchFunc
}

// LaunchFunc opens a browser context on profileDir.
type LaunchFunc func(pw *playwright.Playwright, profileDir string, cfg LaunchConfig) (playwright.BrowserContext, error)

// Manager hands out isolated browser sessions.
type Manager struct {
	mu       sync.Mutex
	opts     ManagerOptions
	pw       *playwright.Playwright
	started  bool
	sessions map[string]*Session
	launch   LaunchFunc
	logger   *slog.Logger
}

// NewManager creates a manager. Start must be called before Acquire.
func NewManager(opts ManagerOptions) *Manager {
	m := &Manager{
		opts:     opts,
		sessions: make(map[string]*Session),
		launch:   launchPersistent,
		logger:   obs.Pkg("browser"),
	}
	if opts.Launch != nil {
		m.launch = opts.Launch
	}
	return m
}

// Start installs (optionally) and runs the playwright driver.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return nil
	}
	if m.opts.Launch != nil {
		m.started = true
		return nil
	}

	runOpts := &playwright.RunOptions{
		Browsers: m.opts.Browsers,
		Verbose:  false,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	}
	if m.opts.InstallBrowsers {
		if err := playwright.Install(runOpts); err != nil {
			return errs.Wrap(errs.Launch, "install playwright", err)
		}
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return errs.Wrap(errs.Launch, "start playwright driver", err)
	}
	m.pw = pw
	m.started = true
	m.logger.Info("playwright driver started")
	return nil
}

// Acquire launches a browser with a fresh profile and returns its session.
// Any failure is reported with code errs.Launch.
func (m *Manager) Acquire(ctx context.Context, cfg LaunchConfig) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(errs.Launch, "acquire session", err)
	}
	cfg = cfg.withDefaults()

	m.mu.Lock()
	started, pw, launch := m.started, m.pw, m.launch
	m.mu.Unlock()
	if !started {
		return nil, errs.New(errs.Launch, "browser manager not started")
	}

	profileDir, err := newProfileDir(cfg.ProfileRoot)
	if err != nil {
		return nil, errs.Wrap(errs.Launch, "prepare profile", err)
	}
	if cfg.Browser == "chromium" {
		if err := writeChromiumPreferences(profileDir, cfg); err != nil {
			_ = os.RemoveAll(profileDir)
			return nil, errs.Wrap(errs.Launch, "prepare profile", err)
		}
	}

	bctx, err := launch(pw, profileDir, cfg)
	if err != nil {
		_ = os.RemoveAll(profileDir)
		return nil, errs.Wrap(errs.Launch, fmt.Sprintf("launch %s", cfg.Browser), err)
	}

	page, err := firstPage(bctx)
	if err != nil {
		_ = bctx.Close()
		_ = os.RemoveAll(profileDir)
		return nil, errs.Wrap(errs.Launch, "open page", err)
	}

	timeoutMS := float64(cfg.DefaultTimeout.Milliseconds())
	bctx.SetDefaultTimeout(timeoutMS)
	bctx.SetDefaultNavigationTimeout(timeoutMS)

	id := uuid.NewString()
	// Servers using obs.RequestContextMiddleware log this id with each request.
	if err := bctx.SetExtraHTTPHeaders(map[string]string{obs.SessionHeader: id}); err != nil {
		_ = bctx.Close()
		_ = os.RemoveAll(profileDir)
		return nil, errs.Wrap(errs.Launch, "set session header", err)
	}

	s := &Session{
		ID:         id,
		Browser:    cfg.Browser,
		Context:    bctx,
		Page:       page,
		ProfileDir: profileDir,
		CreatedAt:  time.Now(),
		manager:    m,
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	obs.From(obs.WithSessionID(ctx, s.ID)).Debug("session acquired",
		"browser", cfg.Browser,
		"headless", cfg.Headless,
		"profile_dir", profileDir,
	)
	return s, nil
}

// Release closes the session and removes its profile. Safe to call more than once.
func (m *Manager) Release(s *Session) error {
	if s == nil {
		return nil
	}
	return s.Close()
}

func (m *Manager) forget(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// ActiveSessions returns ids of sessions that have not been released.
func (m *Manager) ActiveSessions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Shutdown releases leftover sessions and stops the driver.
// It returns the ids of sessions that were still active.
func (m *Manager) Shutdown() []string {
	leaked := m.ActiveSessions()

	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		if err := s.Close(); err != nil {
			m.logger.Warn("release leaked session", "session_id", s.ID, "error", err)
		}
	}

	m.mu.Lock()
	pw := m.pw
	m.pw = nil
	m.started = false
	m.mu.Unlock()

	if pw != nil {
		if err := pw.Stop(); err != nil {
			m.logger.Warn("stop playwright driver", "error", err)
		}
	}
	if len(leaked) > 0 {
		m.logger.Warn("sessions were not released by their tests", "count", len(leaked), "session_ids", leaked)
	}
	return leaked
}

func browserType(pw *playwright.Playwright, name string) (playwright.BrowserType, error) {
	switch name {
	case "chromium":
		return pw.Chromium, nil
	case "firefox":
		return pw.Firefox, nil
	case "webkit":
		return pw.WebKit, nil
	default:
		return nil, fmt.Errorf("unsupported browser %q", name)
	}
}

func persistentContextOptions(cfg LaunchConfig) playwright.BrowserTypeLaunchPersistentContextOptions {
	opts := playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless: playwright.Bool(cfg.Headless),
		Viewport: &playwright.Size{
			Width:  cfg.Viewport.Width,
			Height: cfg.Viewport.Height,
		},
		Timeout: playwright.Float(float64(cfg.DefaultTimeout.Milliseconds())),
	}
	if cfg.SlowMo > 0 {
		opts.SlowMo = playwright.Float(float64(cfg.SlowMo.Milliseconds()))
	}
	switch cfg.Browser {
	case "chromium":
		opts.Args = chromiumArgs(cfg)
		opts.ChromiumSandbox = playwright.Bool(!cfg.DisableSandbox)
	case "firefox":
		opts.FirefoxUserPrefs = firefoxPreferences(cfg)
		opts.Args = cfg.ExtraArgs
	default:
		opts.Args = cfg.ExtraArgs
	}
	return opts
}

func launchPersistent(pw *playwright.Playwright, profileDir string, cfg LaunchConfig) (playwright.BrowserContext, error) {
	if pw == nil {
		return nil, fmt.Errorf("playwright driver is not running")
	}
	bt, err := browserType(pw, cfg.Browser)
	if err != nil {
		return nil, err
	}
	bctx, err := bt.LaunchPersistentContext(profileDir, persistentContextOptions(cfg))
	if err != nil {
		return nil, err
	}
	// No permission is granted, so notification and geolocation requests are denied.
	if err := bctx.ClearPermissions(); err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("clear permissions: %w", err)
	}
	return bctx, nil
}

func firstPage(bctx playwright.BrowserContext) (playwright.Page, error) {
	if pages := bctx.Pages(); len(pages) > 0 {
		return pages[0], nil
	}
	return bctx.NewPage()
}
