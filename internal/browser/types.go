// Package browser owns browser process lifecycles for acceptance tests.
//
// A Manager starts one playwright driver per run and hands out isolated
// sessions, each backed by its own temporary profile directory. Every session
// is released exactly once, no matter how the test using it ended.
package browser

import (
	"fmt"
	"strconv"
	"time"
)

const (
	// DefaultViewportWidth is the default viewport width in pixels
	DefaultViewportWidth = 1280

	// DefaultViewportHeight is the default viewport height in pixels
	DefaultViewportHeight = 800

	// DefaultTimeout bounds a single playwright action
	DefaultTimeout = 10 * time.Second
)

// Viewport represents the browser viewport dimensions.
type Viewport struct {
	Width  int
	Height int
}

// LaunchConfig configures one browser session.
type LaunchConfig struct {
	// Browser is chromium, firefox or webkit. Empty means chromium.
	Browser string

	Headless       bool
	DisableSandbox bool

	// ProfileRoot is where per-session profile directories are created.
	// Empty means the system temp directory.
	ProfileRoot string

	DisableCredentialPrompts bool
	DisableNotifications     bool

	// SlowMo delays every playwright operation, useful when watching a headed run.
	SlowMo time.Duration

	// DefaultTimeout applies to actions and navigations in the session.
	DefaultTimeout time.Duration

	Viewport *Viewport

	// ExtraArgs are appended to the browser command line.
	ExtraArgs []string
}

// DefaultLaunchConfig returns the configuration used for acceptance tests.
func DefaultLaunchConfig() LaunchConfig {
	return LaunchConfig{
		Browser:                  "chromium",
		Headless:                 true,
		DisableSandbox:           true,
		DisableCredentialPrompts: true,
		DisableNotifications:     true,
		DefaultTimeout:           DefaultTimeout,
	}
}

func (c LaunchConfig) withDefaults() LaunchConfig {
	if c.Browser == "" {
		c.Browser = "chromium"
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = DefaultTimeout
	}
	if c.Viewport == nil {
		c.Viewport = &Viewport{Width: DefaultViewportWidth, Height: DefaultViewportHeight}
	}
	return c
}

// LocatorKind says how a By value is interpreted.
type LocatorKind string

const (
	KindName     LocatorKind = "name"
	KindID       LocatorKind = "id"
	KindLinkText LocatorKind = "link_text"
	KindCSS      LocatorKind = "css"
	KindText     LocatorKind = "text"
)

// By locates an element on the page.
type By struct {
	Kind  LocatorKind
	Value string
}

// ByName matches form controls by their name attribute.
func ByName(name string) By { return By{Kind: KindName, Value: name} }

// ByID matches an element by id.
func ByID(id string) By { return By{Kind: KindID, Value: id} }

// ByLinkText matches an anchor whose visible text is exactly text.
func ByLinkText(text string) By { return By{Kind: KindLinkText, Value: text} }

// ByCSS matches a raw CSS selector.
func ByCSS(selector string) By { return By{Kind: KindCSS, Value: selector} }

// ByText matches any element whose visible text is exactly text.
func ByText(text string) By { return By{Kind: KindText, Value: text} }

// Selector returns the playwright selector for b.
func (b By) Selector() string {
	switch b.Kind {
	case KindName:
		return fmt.Sprintf("[name=%s]", strconv.Quote(b.Value))
	case KindID:
		return fmt.Sprintf("[id=%s]", strconv.Quote(b.Value))
	case KindLinkText:
		return fmt.Sprintf("a:text-is(%s)", strconv.Quote(b.Value))
	case KindText:
		return "text=" + strconv.Quote(b.Value)
	default:
		return b.Value
	}
}

// String describes the locator for logs and timeout messages.
func (b By) String() string {
	return fmt.Sprintf("%s=%q", b.Kind, b.Value)
}
