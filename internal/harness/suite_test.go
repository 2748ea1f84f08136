package harness

import (
	"fmt"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiman-zohra3/todo/internal/browser"
	"github.com/aiman-zohra3/todo/internal/browser/browsertest"
	"github.com/aiman-zohra3/todo/internal/errs"
	"github.com/aiman-zohra3/todo/internal/obs"
	"github.com/aiman-zohra3/todo/internal/outcome"
	"github.com/aiman-zohra3/todo/internal/pages"
	"github.com/aiman-zohra3/todo/internal/wait"
)

// recordingT stands in for the *testing.T a scenario runs under, so a
// failing scenario can be observed from a passing test.
type recordingT struct {
	testing.TB

	name     string
	mu       sync.Mutex
	failed   bool
	fatals   []string
	cleanups []func()
}

func (r *recordingT) Helper() {}
func (r *recordingT) Name() string { return r.name }
func (r *recordingT) Logf(string, ...any) {}
func (r *recordingT) Cleanup(fn func()) { r.cleanups = append(r.cleanups, fn) }
func (r *recordingT) Errorf(f string, a ...any) { r.record(fmt.Sprintf(f, a...)) }

func (r *recordingT) Fatalf(f string, a ...any) {
	r.record(fmt.Sprintf(f, a...))
	runtime.Goexit()
}

func (r *recordingT) FailNow() {
	r.record("")
	runtime.Goexit()
}

func (r *recordingT) Failed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failed
}

func (r *recordingT) record(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = true
	if msg != "" {
		r.fatals = append(r.fatals, msg)
	}
}

// run calls fn the way the testing package runs a test: on its own
// goroutine, with cleanups after it returns, fails or panics.
func (r *recordingT) run(fn func(t testing.TB)) (panicked any) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			panicked = recover()
			for i := len(r.cleanups) - 1; i >= 0; i-- {
				r.cleanups[i]()
			}
		}()
		fn(r)
	}()
	<-done
	return panicked
}

// fakeSuite returns a suite whose sessions all use bctx.
func fakeSuite(t *testing.T, bctx *browsertest.Context) *Suite {
	t.Helper()
	s := testSuite(t)
	s.manager = browser.NewManager(browser.ManagerOptions{
		Launch: func(*playwright.Playwright, string, browser.LaunchConfig) (playwright.BrowserContext, error) {
			return bctx, nil
		},
	})
	s.launch.ProfileRoot = t.TempDir()
	s.waitOpts = wait.Options{
		Timeout:     300 * time.Millisecond,
		MinInterval: 5 * time.Millisecond,
		MaxInterval: 20 * time.Millisecond,
	}
	require.NoError(t, s.Start())
	return s
}

const todosPage = `<html><body><h1>Todos</h1><p>List Todos</p></body></html>`

func TestRun_FailedScenarioReleasesSessionOnce(t *testing.T) {
	t.Parallel()
	bctx := browsertest.NewContext(browsertest.NewPage("http://localhost:5000/todos", todosPage))
	s := fakeSuite(t, bctx)

	rt := &recordingT{name: "failing"}
	reached := false
	panicked := rt.run(func(t testing.TB) {
		s.Run(t, func(t testing.TB, sc *Scenario) {
			assert.Equal(t, []string{bctx.Headers()[obs.SessionHeader]}, s.Manager().ActiveSessions())
			sc.Must(errs.New(errs.Assertion, "expected a todo in the list"))
			reached = true
		})
	})

	assert.Nil(t, panicked)
	assert.False(t, reached, "Must should stop the scenario")
	require.Len(t, rt.fatals, 1)
	assert.Contains(t, rt.fatals[0], "[regression]")
	assert.Equal(t, 1, bctx.Closes())
	assert.Empty(t, s.Manager().ActiveSessions())
	assert.Equal(t, 1, s.Summary()[errs.CategoryRegression])
	require.NoError(t, s.Close())
	assert.Equal(t, 1, bctx.Closes(), "shutdown must not close a released session again")
}

func TestRun_PanickingScenarioReleasesSession(t *testing.T) {
	t.Parallel()
	bctx := browsertest.NewContext(browsertest.NewPage("http://localhost:5000/todos", todosPage))
	s := fakeSuite(t, bctx)

	rt := &recordingT{name: "panicking"}
	panicked := rt.run(func(t testing.TB) {
		s.Run(t, func(testing.TB, *Scenario) {
			panic("scenario bug")
		})
	})

	assert.Equal(t, "scenario bug", panicked)
	assert.Equal(t, 1, bctx.Closes())
	assert.Empty(t, s.Manager().ActiveSessions())
	require.NoError(t, s.Close())
}

func TestRun_PassingScenarioReleasesSession(t *testing.T) {
	t.Parallel()
	bctx := browsertest.NewContext(browsertest.NewPage("http://localhost:5000/todos", todosPage))
	s := fakeSuite(t, bctx)

	rt := &recordingT{name: "passing"}
	rt.run(func(t testing.TB) {
		s.Run(t, func(t testing.TB, sc *Scenario) {
			got := sc.Observe()
			assert.Equal(t, pages.TodosPath, got.Path)
		})
	})

	assert.False(t, rt.Failed())
	assert.Equal(t, 1, bctx.Closes())
	assert.Empty(t, s.Manager().ActiveSessions())
	assert.Empty(t, s.Summary())
}

func TestRequire_WaitsForLateRedirect(t *testing.T) {
	t.Parallel()
	page := browsertest.NewPage("http://localhost:5000/todos", todosPage)
	page.OnRead(func(p *browsertest.Page, read int) {
		if read == 3 {
			// The redirect lands after two reads, and the first read of the
			// new document happens mid-navigation.
			p.Navigate("http://localhost:5000/users/login", `<html><body><form action="/users/login"></form></body></html>`, 1)
		}
	})
	s := fakeSuite(t, browsertest.NewContext(page))

	rt := &recordingT{name: "late-redirect"}
	var got outcome.Observation
	rt.run(func(t testing.TB) {
		s.Run(t, func(t testing.TB, sc *Scenario) {
			got = sc.Require(outcome.UnauthorizedRedirect, "")
		})
	})

	assert.False(t, rt.Failed(), "fatals: %v", rt.fatals)
	assert.Equal(t, pages.LoginPath, got.Path)
}

func TestRequire_NeverMatchingPageIsAssertionFailure(t *testing.T) {
	t.Parallel()
	bctx := browsertest.NewContext(browsertest.NewPage("http://localhost:5000/todos", todosPage))
	s := fakeSuite(t, bctx)

	rt := &recordingT{name: "no-redirect"}
	rt.run(func(t testing.TB) {
		s.Run(t, func(t testing.TB, sc *Scenario) {
			sc.Require(outcome.UnauthorizedRedirect, "")
		})
	})

	require.Len(t, rt.fatals, 1)
	assert.Contains(t, rt.fatals[0], "[regression]")
	assert.Contains(t, rt.fatals[0], "/todos")
	summary := s.Summary()
	assert.Equal(t, 1, summary[errs.CategoryRegression])
	assert.Zero(t, summary[errs.CategoryInfrastructure], "an unmet expectation is not a timing problem")
	assert.Equal(t, 1, bctx.Closes())
	assert.Empty(t, s.Manager().ActiveSessions())
}

func TestRequireText_MissingTextIsAssertionFailure(t *testing.T) {
	t.Parallel()
	bctx := browsertest.NewContext(browsertest.NewPage("http://localhost:5000/todos", todosPage))
	s := fakeSuite(t, bctx)

	rt := &recordingT{name: "missing-text"}
	rt.run(func(t testing.TB) {
		s.Run(t, func(t testing.TB, sc *Scenario) {
			sc.RequireText("Buy milk")
		})
	})

	require.Len(t, rt.fatals, 1)
	assert.Contains(t, rt.fatals[0], "[regression]")
	assert.Contains(t, rt.fatals[0], "Buy milk")
	assert.Equal(t, 1, bctx.Closes())
}
