// Package harness sequences acceptance scenarios: one fresh browser session
// per test, a shared fixture account created at most once per run, and
// failure reports that name the category of what went wrong.
package harness

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aiman-zohra3/todo/internal/artifacts"
	"github.com/aiman-zohra3/todo/internal/browser"
	"github.com/aiman-zohra3/todo/internal/config"
	"github.com/aiman-zohra3/todo/internal/errs"
	"github.com/aiman-zohra3/todo/internal/obs"
	"github.com/aiman-zohra3/todo/internal/outcome"
	"github.com/aiman-zohra3/todo/internal/pages"
	"github.com/aiman-zohra3/todo/internal/urlutil"
	"github.com/aiman-zohra3/todo/internal/wait"
)

// Suite owns the browser manager and shared state of one test run.
type Suite struct {
	baseURL  string
	manager  *browser.Manager
	sink     artifacts.Sink
	launch   browser.LaunchConfig
	waitOpts wait.Options
	strict   bool
	logger   *slog.Logger

	fixture     Credentials
	fixtureOnce sync.Once
	fixtureErr  error
	// ensureFixture registers the fixture account; replaced in tests.
	ensureFixture func(ctx context.Context, c Credentials) error

	// fixtureLock serializes tests that mutate the fixture account against
	// tests that rely on it.
	fixtureLock sync.RWMutex

	mu       sync.Mutex
	failures map[errs.Category]int
}

// New creates a suite for the application at baseURL. sink may be nil.
func New(cfg *config.Config, baseURL string, sink artifacts.Sink) *Suite {
	s := &Suite{
		baseURL: urlutil.NormalizeBase(baseURL),
		manager: browser.NewManager(browser.ManagerOptions{
			InstallBrowsers: cfg.InstallBrowsers,
			Browsers:        []string{cfg.Browser},
		}),
		sink:     sink,
		launch:   LaunchConfigFrom(cfg),
		waitOpts: WaitOptionsFrom(cfg),
		strict:   cfg.StrictOutcomes,
		logger:   obs.Pkg("harness"),
		fixture:  FromFixture(cfg.Fixture),
		failures: make(map[errs.Category]int),
	}
	s.ensureFixture = s.registerFixture
	return s
}

// LaunchConfigFrom maps harness configuration to session launch settings.
func LaunchConfigFrom(cfg *config.Config) browser.LaunchConfig {
	lc := browser.DefaultLaunchConfig()
	lc.Browser = cfg.Browser
	lc.Headless = cfg.Headless
	lc.DisableSandbox = cfg.DisableSandbox
	lc.ProfileRoot = cfg.ProfileRoot
	lc.SlowMo = cfg.SlowMo
	lc.DefaultTimeout = cfg.NavigationTimeout
	return lc
}

// WaitOptionsFrom maps harness configuration to wait bounds.
func WaitOptionsFrom(cfg *config.Config) wait.Options {
	return wait.Options{
		Timeout:     cfg.WaitTimeout,
		MinInterval: cfg.PollMin,
		MaxInterval: cfg.PollMax,
	}
}

// Start launches the playwright driver.
func (s *Suite) Start() error {
	return s.manager.Start()
}

// BaseURL is the application under test.
func (s *Suite) BaseURL() string { return s.baseURL }

// Manager exposes the session manager for tests that need raw sessions.
func (s *Suite) Manager() *browser.Manager { return s.manager }

// Checker returns a fresh outcome checker using the suite's policy.
func (s *Suite) Checker() *outcome.Checker {
	return outcome.NewChecker(s.strict)
}

// Run executes fn with a fresh browser session that is released when the
// test ends, whether it passed, failed or panicked. A failing test gets its
// screenshot and HTML saved to the artifact sink.
func (s *Suite) Run(t testing.TB, fn func(t testing.TB, sc *Scenario)) {
	t.Helper()

	ctx := obs.WithTest(context.Background(), t.Name(), "")
	sess, err := s.manager.Acquire(ctx, s.launch)
	if err != nil {
		s.recordFailure(err)
		t.Fatalf("[%s] acquire browser session: %v", errs.CategoryOf(err), err)
	}
	ctx = obs.WithSessionID(ctx, sess.ID)

	sc := &Scenario{
		App:     pages.New(sess, s.baseURL, s.waitOpts),
		Ctx:     ctx,
		Checker: s.Checker(),
		t:       t,
		suite:   s,
	}

	t.Cleanup(func() {
		if t.Failed() {
			s.saveArtifacts(ctx, t, sc)
		}
		if err := s.manager.Release(sess); err != nil {
			t.Logf("release session %s: %v", sess.ID, err)
		}
	})

	fn(t, sc)
}

func (s *Suite) saveArtifacts(ctx context.Context, t testing.TB, sc *Scenario) {
	if s.sink == nil {
		return
	}
	bundle, err := artifacts.Capture(ctx, sc.Session, t.Name(), sc.Session.ID, sc.failure)
	if err != nil {
		t.Logf("capture failure artifacts: %v", err)
		return
	}
	locations, err := s.sink.Save(ctx, bundle)
	if err != nil {
		t.Logf("save failure artifacts: %v", err)
	}
	for _, loc := range locations {
		t.Logf("artifact: %s", loc)
	}
}

func (s *Suite) recordFailure(err error) {
	s.mu.Lock()
	s.failures[errs.CategoryOf(err)]++
	s.mu.Unlock()
}

// Summary returns failure counts per category so far.
func (s *Suite) Summary() map[errs.Category]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[errs.Category]int, len(s.failures))
	for k, v := range s.failures {
		out[k] = v
	}
	return out
}

// FixtureUser returns the shared account, registering it on first use.
// Registration failures are logged and tolerated: the account usually
// already exists from an earlier run.
func (s *Suite) FixtureUser(t testing.TB) Credentials {
	t.Helper()
	s.fixtureOnce.Do(func() {
		ctx := obs.WithTest(context.Background(), "fixture", "register-fixture-user")
		s.fixtureErr = s.ensureFixture(ctx, s.fixture)
		if s.fixtureErr != nil {
			s.logger.Warn("fixture user setup failed, continuing (it may already exist)",
				"email", s.fixture.Email,
				"error", s.fixtureErr,
			)
		} else {
			s.logger.Info("fixture user registered", "email", s.fixture.Email)
		}
	})
	return s.fixture
}

func (s *Suite) registerFixture(ctx context.Context, c Credentials) error {
	return s.register(ctx, c)
}

// register signs c up in a short-lived session of its own.
func (s *Suite) register(ctx context.Context, c Credentials) error {
	sess, err := s.manager.Acquire(ctx, s.launch)
	if err != nil {
		return err
	}
	defer func() { _ = s.manager.Release(sess) }()

	app := pages.New(sess, s.baseURL, s.waitOpts)
	if err := app.Register(obs.WithSessionID(ctx, sess.ID), pages.RegisterForm{
		Name:      c.Name,
		Email:     c.Email,
		Password:  c.Password,
		Password2: c.Password,
	}); err != nil {
		return err
	}
	observation, err := outcome.Observe(sess)
	if err != nil {
		return err
	}
	return s.Checker().Check(observation, outcome.Expectation{Kind: outcome.Success, FormPath: pages.RegisterPath})
}

// Shared marks the calling test as relying on the fixture account. It runs
// concurrently with other readers but never alongside Exclusive holders.
func (s *Suite) Shared(t testing.TB) {
	s.fixtureLock.RLock()
	t.Cleanup(s.fixtureLock.RUnlock)
}

// Exclusive marks the calling test as mutating the fixture account.
func (s *Suite) Exclusive(t testing.TB) {
	s.fixtureLock.Lock()
	t.Cleanup(s.fixtureLock.Unlock)
}

// IsolatedUser registers a throwaway account for the calling test only.
// Unlike the fixture, a failed registration fails the test.
func (s *Suite) IsolatedUser(t testing.TB, prefix string) Credentials {
	t.Helper()
	c := NewCredentials(prefix)
	ctx := obs.WithTest(context.Background(), t.Name(), "register-isolated-user")
	if err := s.register(ctx, c); err != nil {
		s.recordFailure(err)
		t.Fatalf("[%s] register isolated user: %v", errs.CategoryOf(err), err)
	}
	return c
}

// Close stops the driver. Sessions a test forgot to release are closed and
// reported as an error.
func (s *Suite) Close() error {
	leaked := s.manager.Shutdown()

	summary := s.Summary()
	if len(summary) > 0 {
		categories := make([]string, 0, len(summary))
		for c, n := range summary {
			categories = append(categories, fmt.Sprintf("%s=%d", c, n))
		}
		sort.Strings(categories)
		s.logger.Info("failure summary", "categories", strings.Join(categories, " "))
	}

	if len(leaked) > 0 {
		return fmt.Errorf("%d browser session(s) were never released: %s", len(leaked), strings.Join(leaked, ", "))
	}
	return nil
}
