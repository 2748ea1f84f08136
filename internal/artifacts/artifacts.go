// Package artifacts captures and stores evidence of failed acceptance tests:
// a full-page screenshot, the rendered HTML and a small JSON summary.
package artifacts

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aiman-zohra3/todo/internal/errs"
)

// Source is what Capture reads from; browser sessions satisfy it.
type Source interface {
	URL() string
	Content() (string, error)
	Screenshot() ([]byte, error)
}

// Bundle is the evidence for one failed test.
type Bundle struct {
	Test       string
	SessionID  string
	Category   errs.Category
	Code       errs.Code
	Failure    string
	URL        string
	CapturedAt time.Time
	Screenshot []byte
	HTML       string
}

// Summary is the JSON document stored next to the screenshot and HTML.
type Summary struct {
	Test       string        `json:"test"`
	SessionID  string        `json:"session_id,omitempty"`
	Category   errs.Category `json:"category"`
	Code       errs.Code     `json:"code"`
	Failure    string        `json:"failure"`
	URL        string        `json:"url"`
	CapturedAt time.Time     `json:"captured_at"`
}

// Sink stores bundles and returns the locations it wrote.
type Sink interface {
	Save(ctx context.Context, b Bundle) ([]string, error)
}

// Capture reads the screenshot and HTML of src concurrently.
// Partial captures are kept: a failed screenshot still yields the HTML.
func Capture(ctx context.Context, src Source, test, sessionID string, failure error) (Bundle, error) {
	b := Bundle{
		Test:       test,
		SessionID:  sessionID,
		Category:   errs.CategoryOf(failure),
		Code:       errs.CodeOf(failure),
		URL:        src.URL(),
		CapturedAt: time.Now().UTC(),
	}
	if failure != nil {
		b.Failure = failure.Error()
	} else {
		b.Failure = "test failed"
	}

	var g errgroup.Group
	var shotErr, htmlErr error
	g.Go(func() error {
		b.Screenshot, shotErr = src.Screenshot()
		return nil
	})
	g.Go(func() error {
		b.HTML, htmlErr = src.Content()
		return nil
	})
	_ = g.Wait()

	if shotErr != nil && htmlErr != nil {
		return b, fmt.Errorf("capture artifacts: screenshot: %v; html: %w", shotErr, htmlErr)
	}
	if err := ctx.Err(); err != nil {
		return b, err
	}
	return b, nil
}

// Summary returns the bundle's JSON summary.
func (b Bundle) Summary() Summary {
	return Summary{
		Test:       b.Test,
		SessionID:  b.SessionID,
		Category:   b.Category,
		Code:       b.Code,
		Failure:    b.Failure,
		URL:        b.URL,
		CapturedAt: b.CapturedAt,
	}
}

type object struct {
	name        string
	data        []byte
	contentType string
}

// objects lists what a bundle stores. Empty parts are skipped.
func (b Bundle) objects() ([]object, error) {
	summary, err := json.MarshalIndent(b.Summary(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal summary: %w", err)
	}
	objs := []object{{name: "summary.json", data: summary, contentType: "application/json"}}
	if len(b.Screenshot) > 0 {
		objs = append(objs, object{name: "screenshot.png", data: b.Screenshot, contentType: "image/png"})
	}
	if b.HTML != "" {
		objs = append(objs, object{name: "page.html", data: []byte(b.HTML), contentType: "text/html; charset=utf-8"})
	}
	return objs, nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Prefix is the directory or key prefix for a bundle: the sanitised test name
// plus a timestamp, so reruns never overwrite each other.
func (b Bundle) Prefix() string {
	name := unsafeChars.ReplaceAllString(b.Test, "_")
	name = strings.Trim(name, "_")
	if name == "" {
		name = "unnamed"
	}
	return name + "/" + b.CapturedAt.UTC().Format("20060102T150405.000Z")
}

// MultiSink saves to every sink concurrently and joins their locations.
type MultiSink []Sink

func (m MultiSink) Save(ctx context.Context, b Bundle) ([]string, error) {
	results := make([][]string, len(m))
	g, gctx := errgroup.WithContext(ctx)
	for i, sink := range m {
		g.Go(func() error {
			locs, err := sink.Save(gctx, b)
			results[i] = locs
			return err
		})
	}
	err := g.Wait()
	var all []string
	for _, locs := range results {
		all = append(all, locs...)
	}
	return all, err
}
