package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"

	"github.com/aiman-zohra3/todo/internal/errs"
	"github.com/aiman-zohra3/todo/internal/obs"
)

// Session is one browser instance owned by one test.
type Session struct {
	ID         string
	Browser    string
	Context    playwright.BrowserContext
	Page       playwright.Page
	ProfileDir string
	CreatedAt  time.Time

	manager     *Manager
	releaseOnce sync.Once
	releaseErr  error
}

// Close releases the session. Only the first call does any work; later calls
// return the first call's result.
func (s *Session) Close() error {
	s.releaseOnce.Do(func() {
		var closeErr error
		if s.Context != nil {
			if err := s.Context.Close(); err != nil && !errors.Is(err, playwright.ErrTargetClosed) {
				closeErr = fmt.Errorf("close browser context: %w", err)
			}
		}
		if s.ProfileDir != "" {
			if err := os.RemoveAll(s.ProfileDir); err != nil && closeErr == nil {
				closeErr = fmt.Errorf("remove profile dir: %w", err)
			}
		}
		if s.manager != nil {
			s.manager.forget(s.ID)
		}
		s.releaseErr = closeErr
		obs.Pkg("browser").Debug("session released", "session_id", s.ID, "error", closeErr)
	})
	return s.releaseErr
}

// URL returns the current page location.
func (s *Session) URL() string {
	return s.Page.URL()
}

// Content returns the rendered HTML of the current page.
func (s *Session) Content() (string, error) {
	html, err := s.Page.Content()
	if err != nil {
		return "", errs.Wrap(errs.Internal, "read page content", err)
	}
	return html, nil
}

// Goto navigates to url and waits for DOMContentLoaded.
func (s *Session) Goto(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return errs.Wrap(errs.Timeout, "navigate to "+url, err)
	}
	obs.From(ctx).Debug("navigate", "url", url)
	_, err := s.Page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return classifyDriverError("navigate to "+url, err)
	}
	return nil
}

// Settle waits until the current document has finished loading its DOM.
func (s *Session) Settle(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errs.Wrap(errs.Timeout, "wait for page load", err)
	}
	err := s.Page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State: playwright.LoadStateDomcontentloaded,
	})
	if err != nil {
		return classifyDriverError("wait for page load", err)
	}
	return nil
}

// MarkDocument tags the current document with a fresh id and returns it.
// A later DocumentMark that differs means the browser has loaded a new
// document, even when the new one has the same URL.
func (s *Session) MarkDocument() (string, error) {
	mark := uuid.NewString()
	if _, err := s.Page.Evaluate(`m => { window.__todoHarnessMark = m }`, mark); err != nil {
		return "", classifyDriverError("mark document", err)
	}
	return mark, nil
}

// DocumentMark returns the id set by MarkDocument on the current document, or
// "" for a document that was never marked. Driver errors are returned as is:
// reading a page that is mid-navigation fails until the new document exists.
func (s *Session) DocumentMark() (string, error) {
	v, err := s.Page.Evaluate(`() => window.__todoHarnessMark || ""`)
	if err != nil {
		return "", err
	}
	mark, _ := v.(string)
	return mark, nil
}

// Locate returns a locator for the first element matching by.
func (s *Session) Locate(by By) playwright.Locator {
	return s.Page.Locator(by.Selector()).First()
}

// Screenshot captures the full page as PNG.
func (s *Session) Screenshot() ([]byte, error) {
	png, err := s.Page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(true),
	})
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "capture screenshot", err)
	}
	return png, nil
}

// classifyDriverError maps playwright failures to the harness taxonomy.
func classifyDriverError(action string, err error) error {
	if errors.Is(err, playwright.ErrTimeout) {
		return errs.Wrap(errs.Timeout, action, err)
	}
	return errs.Wrap(errs.Internal, action, err)
}
