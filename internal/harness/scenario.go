package harness

import (
	"context"
	"testing"

	"github.com/aiman-zohra3/todo/internal/errs"
	"github.com/aiman-zohra3/todo/internal/obs"
	"github.com/aiman-zohra3/todo/internal/outcome"
	"github.com/aiman-zohra3/todo/internal/pages"
	"github.com/aiman-zohra3/todo/internal/wait"
)

// Scenario is one test's view of its browser session.
type Scenario struct {
	*pages.App
	Ctx     context.Context
	Checker *outcome.Checker

	t       testing.TB
	suite   *Suite
	failure error
}

// Step tags later log lines with a scenario step name.
func (sc *Scenario) Step(name string) {
	sc.Ctx = obs.WithTest(sc.Ctx, "", name)
	obs.From(sc.Ctx).Info("step")
}

// Must fails the test when err is non-nil, reporting its category.
func (sc *Scenario) Must(err error) {
	sc.t.Helper()
	if err != nil {
		sc.fail(err)
	}
}

// Observe captures the current page.
func (sc *Scenario) Observe() outcome.Observation {
	sc.t.Helper()
	observation, err := outcome.Observe(sc.Session)
	if err != nil {
		sc.fail(err)
	}
	return observation
}

// Require waits, up to the suite's wait timeout, for the page to show kind
// after submitting the form at formPath. A page that never matches fails the
// test as an assertion failure with an explanation of what was seen.
func (sc *Scenario) Require(kind outcome.Kind, formPath string) outcome.Observation {
	sc.t.Helper()
	exp := outcome.Expectation{Kind: kind, FormPath: formPath}

	var last outcome.Observation
	cond := wait.Condition{
		Description: "page to show " + string(kind),
		Check: func() (bool, error) {
			observation, err := outcome.Observe(sc.Session)
			if err != nil {
				return false, err
			}
			last = observation
			return sc.Checker.Classify(observation, exp), nil
		},
	}
	err := wait.Until(sc.Ctx, cond, sc.Wait)
	switch {
	case err == nil:
		return last
	case errs.CodeOf(err) == errs.Timeout && last.URL != "":
		sc.fail(errs.Wrap(errs.Assertion, sc.Checker.Explain(last, exp), err))
	default:
		sc.fail(err)
	}
	return last
}

// RequireText waits for the rendered page to contain text.
func (sc *Scenario) RequireText(text string) {
	sc.t.Helper()
	err := wait.Until(sc.Ctx, wait.ContentContains(sc.Session, text), sc.Wait)
	if errs.CodeOf(err) == errs.Timeout {
		err = errs.Wrap(errs.Assertion, "page never showed "+text+" at "+sc.Session.URL(), err)
	}
	sc.Must(err)
}

func (sc *Scenario) fail(err error) {
	sc.t.Helper()
	if sc.failure == nil {
		sc.failure = err
	}
	sc.suite.recordFailure(err)
	category := errs.CategoryOf(err)
	obs.From(sc.Ctx).Error("scenario failed",
		"category", category,
		"code", errs.CodeOf(err),
		"url", sc.Session.URL(),
		"error", err,
	)
	sc.t.Fatalf("[%s] %v", category, err)
}
