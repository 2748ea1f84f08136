package wait

import (
	"context"
	"fmt"
	"strings"

	"github.com/playwright-community/playwright-go"

	"github.com/aiman-zohra3/todo/internal/browser"
	"github.com/aiman-zohra3/todo/internal/errs"
)

// Locator is the part of playwright.Locator the element predicates need.
type Locator interface {
	Count() (int, error)
	IsVisible(options ...playwright.LocatorIsVisibleOptions) (bool, error)
	IsEnabled(options ...playwright.LocatorIsEnabledOptions) (bool, error)
}

// Page is the part of a browser session the page predicates need.
type Page interface {
	URL() string
	Content() (string, error)
}

// State is the element state a wait targets.
type State string

const (
	StatePresent   State = "present"
	StateVisible   State = "visible"
	StateClickable State = "clickable"
	StateHidden    State = "hidden"
)

// Present holds once at least one element matches.
func Present(desc string, p Locator) Condition {
	return Condition{
		Description: desc + " to be present",
		Check: func() (bool, error) {
			n, err := p.Count()
			if err != nil {
				return false, err
			}
			return n > 0, nil
		},
	}
}

// Visible holds once a matching element is rendered with a non-empty box.
func Visible(desc string, p Locator) Condition {
	return Condition{
		Description: desc + " to be visible",
		Check: func() (bool, error) {
			return visible(p)
		},
	}
}

// Clickable holds once a matching element is visible and enabled.
func Clickable(desc string, p Locator) Condition {
	return Condition{
		Description: desc + " to be clickable",
		Check: func() (bool, error) {
			ok, err := visible(p)
			if err != nil || !ok {
				return false, err
			}
			return p.IsEnabled()
		},
	}
}

// Hidden holds once no matching element is visible.
func Hidden(desc string, p Locator) Condition {
	return Condition{
		Description: desc + " to be hidden",
		Check: func() (bool, error) {
			ok, err := visible(p)
			if err != nil {
				return false, err
			}
			return !ok, nil
		},
	}
}

func visible(p Locator) (bool, error) {
	n, err := p.Count()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	return p.IsVisible()
}

// URLContains holds once the current location contains fragment.
func URLContains(p Page, fragment string) Condition {
	return Condition{
		Description: fmt.Sprintf("location to contain %q", fragment),
		Check: func() (bool, error) {
			return strings.Contains(p.URL(), fragment), nil
		},
	}
}

// URLNotContains holds once the current location no longer contains fragment.
func URLNotContains(p Page, fragment string) Condition {
	return Condition{
		Description: fmt.Sprintf("location to leave %q", fragment),
		Check: func() (bool, error) {
			return !strings.Contains(p.URL(), fragment), nil
		},
	}
}

// ContentContains holds once the rendered HTML contains text, ignoring case.
func ContentContains(p Page, text string) Condition {
	needle := strings.ToLower(text)
	return Condition{
		Description: fmt.Sprintf("page content to contain %q", text),
		Check: func() (bool, error) {
			html, err := p.Content()
			if err != nil {
				return false, err
			}
			return strings.Contains(strings.ToLower(html), needle), nil
		},
	}
}

// Document is the part of a browser session that tells documents apart.
type Document interface {
	DocumentMark() (string, error)
}

// DocumentReplaced holds once the document tagged with mark has been replaced
// by a new one. A form re-rendered at the same URL counts.
func DocumentReplaced(d Document, mark string) Condition {
	return Condition{
		Description: "page to load the form response",
		Check: func() (bool, error) {
			current, err := d.DocumentMark()
			if err != nil {
				return false, err
			}
			return current != mark, nil
		},
	}
}

// ElementCondition builds the predicate for state over p.
func ElementCondition(desc string, p Locator, state State) Condition {
	switch state {
	case StateVisible:
		return Visible(desc, p)
	case StateClickable:
		return Clickable(desc, p)
	case StateHidden:
		return Hidden(desc, p)
	default:
		return Present(desc, p)
	}
}

// ForElement waits until the element located by by reaches state and returns it.
//
// An element that never appeared at all is reported as errs.ElementNotFound,
// since that usually means the markup changed. An element that exists but
// never reached state is reported as errs.Timeout.
func ForElement(ctx context.Context, s *browser.Session, by browser.By, state State, opts Options) (playwright.Locator, error) {
	loc := s.Locate(by)
	if err := waitFor(ctx, by.String(), loc, state, opts); err != nil {
		return nil, err
	}
	return loc, nil
}

func waitFor(ctx context.Context, desc string, p Locator, state State, opts Options) error {
	err := Until(ctx, ElementCondition(desc, p, state), opts)
	if err == nil || errs.CodeOf(err) != errs.Timeout || state == StateHidden {
		return err
	}
	if n, countErr := p.Count(); countErr == nil && n == 0 {
		return errs.Wrap(errs.ElementNotFound, "no element matches "+desc, err)
	}
	return err
}
