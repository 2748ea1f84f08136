// Package wait replaces fixed sleeps with bounded condition polling.
//
// A Condition is checked repeatedly with exponential backoff between
// MinInterval and MaxInterval until it holds or Timeout elapses. Expiry is
// reported as errs.Timeout carrying the condition description, so flaky
// timing can be told apart from assertion failures.
package wait

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/playwright-community/playwright-go"

	"github.com/aiman-zohra3/todo/internal/errs"
	"github.com/aiman-zohra3/todo/internal/obs"
)

const (
	DefaultTimeout     = 10 * time.Second
	DefaultMinInterval = 100 * time.Millisecond
	DefaultMaxInterval = 500 * time.Millisecond
)

// errNotYet signals the backoff loop to try again.
var errNotYet = errors.New("condition not met yet")

// Condition is a predicate over browser state.
type Condition struct {
	Description string
	Check       func() (bool, error)
}

// Options bounds a wait.
type Options struct {
	Timeout     time.Duration
	MinInterval time.Duration
	MaxInterval time.Duration
}

// DefaultOptions returns the standard wait bounds.
func DefaultOptions() Options {
	return Options{
		Timeout:     DefaultTimeout,
		MinInterval: DefaultMinInterval,
		MaxInterval: DefaultMaxInterval,
	}
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MinInterval <= 0 {
		o.MinInterval = DefaultMinInterval
	}
	if o.MaxInterval < o.MinInterval {
		o.MaxInterval = o.MinInterval
	}
	return o
}

func newBackOff(o Options) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.MinInterval
	b.MaxInterval = o.MaxInterval
	b.Multiplier = 2
	b.RandomizationFactor = 0
	return b
}

// Until polls cond until it holds or the timeout elapses.
//
// Check errors are treated as transient (the page may be mid-navigation),
// including coded errors from session accessors, and remembered for the
// timeout message. Only a closed browser fails immediately.
func Until(ctx context.Context, cond Condition, opts Options) error {
	opts = opts.withDefaults()
	start := time.Now()
	checks := 0
	var lastErr error

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		checks++
		ok, err := cond.Check()
		if err != nil {
			if errors.Is(err, playwright.ErrTargetClosed) {
				return struct{}{}, backoff.Permanent(err)
			}
			lastErr = err
			return struct{}{}, errNotYet
		}
		if !ok {
			return struct{}{}, errNotYet
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(newBackOff(opts)),
		backoff.WithMaxElapsedTime(opts.Timeout),
	)

	elapsed := time.Since(start)
	if err == nil {
		obs.From(ctx).Debug("wait satisfied",
			"condition", cond.Description,
			"checks", checks,
			"elapsed_ms", elapsed.Milliseconds(),
		)
		return nil
	}

	switch {
	case errors.Is(err, errNotYet):
		msg := fmt.Sprintf("timed out after %s waiting for %s (%d checks)", elapsed.Round(time.Millisecond), cond.Description, checks)
		if lastErr != nil {
			return errs.Wrap(errs.Timeout, msg, lastErr)
		}
		return errs.New(errs.Timeout, msg)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return errs.Wrap(errs.Timeout, "wait for "+cond.Description+" interrupted", err)
	case errors.Is(err, playwright.ErrTargetClosed):
		return errs.Wrap(errs.Internal, "browser closed while waiting for "+cond.Description, err)
	default:
		return errs.Wrap(errs.Internal, "check "+cond.Description, err)
	}
}

// Any holds when at least one of conds holds.
func Any(conds ...Condition) Condition {
	descs := make([]string, len(conds))
	for i, c := range conds {
		descs[i] = c.Description
	}
	return Condition{
		Description: strings.Join(descs, " or "),
		Check: func() (bool, error) {
			var firstErr error
			for _, c := range conds {
				ok, err := c.Check()
				if err != nil {
					if firstErr == nil {
						firstErr = err
					}
					continue
				}
				if ok {
					return true, nil
				}
			}
			return false, firstErr
		},
	}
}
