// Package outcome classifies what the browser shows after a UI action.
//
// Classification reads only the current location and the rendered page, never
// an API response. The default policy is permissive: one matching signal
// (location or content) is enough. Strict mode requires an explicit marker for
// failures and a clean page for success.
package outcome

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aiman-zohra3/todo/internal/errs"
	"github.com/aiman-zohra3/todo/internal/logutil"
	"github.com/aiman-zohra3/todo/internal/urlutil"
)

// Kind is an outcome category.
type Kind string

const (
	Success              Kind = "success"
	ValidationError      Kind = "validation_error"
	AuthError            Kind = "auth_error"
	UnauthorizedRedirect Kind = "unauthorized_redirect"
	// Unknown is only produced by Detect.
	Unknown Kind = "unknown"
)

// Source is what Observe reads from; browser sessions satisfy it.
type Source interface {
	URL() string
	Content() (string, error)
}

// Observation is the visible result of an action.
type Observation struct {
	URL     string
	Path    string
	Content string
	// Text is the page's visible text with whitespace collapsed.
	Text string
	// Alerts holds flash and validation messages shown on the page.
	Alerts []string
	// ErrorAlerts is the subset of Alerts styled as errors.
	ErrorAlerts []string
}

// Observe captures the current location and rendered content of src.
func Observe(src Source) (Observation, error) {
	html, err := src.Content()
	if err != nil {
		return Observation{}, err
	}
	return NewObservation(src.URL(), html)
}

// NewObservation builds an observation from a location and an HTML document.
func NewObservation(location, html string) (Observation, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Observation{}, errs.Wrap(errs.Internal, "parse page content", err)
	}
	doc.Find("script, style, noscript, template").Remove()

	obs := Observation{
		URL:     location,
		Path:    urlutil.PathOf(location),
		Content: html,
		Text:    collapse(doc.Find("body").Text()),
	}
	if obs.Text == "" {
		obs.Text = collapse(doc.Text())
	}
	doc.Find(".alert").Each(func(_ int, s *goquery.Selection) {
		if text := collapse(s.Text()); text != "" {
			obs.Alerts = append(obs.Alerts, text)
		}
	})
	doc.Find(".alert-danger, .invalid-feedback, .error").Each(func(_ int, s *goquery.Selection) {
		if text := collapse(s.Text()); text != "" {
			obs.ErrorAlerts = append(obs.ErrorAlerts, text)
		}
	})
	return obs, nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Markers are the case-insensitive phrases that signal an outcome in page text.
type Markers struct {
	Success      []string
	Error        []string
	Unauthorized []string
	// LoginPath is the location fragment of the login page.
	LoginPath string
}

// DefaultMarkers returns markers for the todo application.
func DefaultMarkers() Markers {
	return Markers{
		Success: []string{
			"success",
			"you are now registered",
			"todo added",
			"todo updated",
			"you are logged out",
		},
		Error: []string{
			"error",
			"invalid",
			"incorrect",
			"do not match",
			"already registered",
			"exist",
			"no user found",
			"must be at least",
			"please add",
			"missing",
			"too many",
		},
		Unauthorized: []string{
			"not authorized",
		},
		LoginPath: "/login",
	}
}

// Expectation is the outcome a test expects after submitting the form at FormPath.
type Expectation struct {
	Kind     Kind
	FormPath string
}

// Checker classifies observations against expectations.
type Checker struct {
	Strict  bool
	Markers Markers
}

// NewChecker returns a checker with the default markers.
func NewChecker(strict bool) *Checker {
	return &Checker{Strict: strict, Markers: DefaultMarkers()}
}

// Classify reports whether obs matches exp under the default permissive policy.
func Classify(obs Observation, exp Expectation) bool {
	return NewChecker(false).Classify(obs, exp)
}

// Classify reports whether obs matches exp.
func (c *Checker) Classify(obs Observation, exp Expectation) bool {
	onForm := exp.FormPath != "" && containsFold(obs.Path, exp.FormPath)
	onLogin := containsFold(obs.Path, c.loginPath())
	text := strings.ToLower(obs.Text)

	switch exp.Kind {
	case Success:
		if c.Strict {
			return !onForm && len(obs.ErrorAlerts) == 0
		}
		return !onForm || containsAny(text, c.Markers.Success)

	case ValidationError, AuthError:
		if c.Strict {
			return onForm && c.hasErrorMarker(obs)
		}
		return onForm || containsAny(text, c.Markers.Error)

	case UnauthorizedRedirect:
		if c.Strict {
			return onLogin
		}
		return onLogin || containsAny(text, c.Markers.Unauthorized)

	default:
		return false
	}
}

// hasErrorMarker reports an explicit error: an error-styled alert, or an
// error phrase inside any alert.
func (c *Checker) hasErrorMarker(obs Observation) bool {
	if len(obs.ErrorAlerts) > 0 {
		return true
	}
	for _, alert := range obs.Alerts {
		if containsAny(strings.ToLower(alert), c.Markers.Error) {
			return true
		}
	}
	return false
}

// Detect makes a best-effort guess at what obs shows, for failure reports.
func (c *Checker) Detect(obs Observation, formPath string) Kind {
	loginPath := c.loginPath()
	onLogin := containsFold(obs.Path, loginPath)
	onForm := formPath != "" && containsFold(obs.Path, formPath)
	formIsLogin := formPath != "" && containsFold(formPath, loginPath)

	switch {
	case c.hasErrorMarker(obs) && formIsLogin:
		return AuthError
	case c.hasErrorMarker(obs):
		return ValidationError
	case onLogin && !formIsLogin:
		return UnauthorizedRedirect
	case onForm:
		return ValidationError
	case formPath != "":
		return Success
	default:
		return Unknown
	}
}

// Check returns an errs.Assertion error when obs does not match exp.
func (c *Checker) Check(obs Observation, exp Expectation) error {
	if c.Classify(obs, exp) {
		return nil
	}
	return errs.New(errs.Assertion, c.Explain(obs, exp))
}

// Explain describes a mismatch between obs and exp.
func (c *Checker) Explain(obs Observation, exp Expectation) string {
	policy := "permissive"
	if c.Strict {
		policy = "strict"
	}
	msg := fmt.Sprintf("expected %s after %s (%s), observed %s at %s",
		exp.Kind, exp.FormPath, policy, c.Detect(obs, exp.FormPath), obs.URL)
	if len(obs.Alerts) > 0 {
		msg += fmt.Sprintf("; alerts: %q", obs.Alerts)
	} else {
		msg += "; text: " + logutil.TruncateForLog(obs.Text, 200)
	}
	return msg
}

func (c *Checker) loginPath() string {
	if c.Markers.LoginPath == "" {
		return "/login"
	}
	return c.Markers.LoginPath
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func containsAny(lowerText string, markers []string) bool {
	for _, m := range markers {
		if m != "" && strings.Contains(lowerText, strings.ToLower(m)) {
			return true
		}
	}
	return false
}
