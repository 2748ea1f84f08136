// Package browsertest provides in-memory playwright pages and contexts so
// sessions can be driven without a browser. Methods not overridden here
// panic when called.
package browsertest

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/playwright-community/playwright-go"
)

// ErrNavigating is what a page returns while it is between documents.
var ErrNavigating = errors.New("Unable to retrieve content because the page is navigating and changing the content")

// Page is a page whose location and content tests control.
type Page struct {
	playwright.Page

	mu      sync.Mutex
	url     string
	content string
	mark    string
	// navigating counts the remaining reads that fail with ErrNavigating.
	navigating int
	reads      int
	// onRead runs before every content read, with the read number.
	onRead func(p *Page, read int)
}

// NewPage returns a page showing content at url.
func NewPage(url, content string) *Page {
	return &Page{url: url, content: content}
}

// OnRead registers fn to run before every content read. Reads start at 1.
func (p *Page) OnRead(fn func(p *Page, read int)) {
	p.mu.Lock()
	p.onRead = fn
	p.mu.Unlock()
}

// Navigate replaces the document. The next reads fail as mid-navigation
// when navigating is positive.
func (p *Page) Navigate(url, content string, navigating int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url, p.content, p.mark, p.navigating = url, content, "", navigating
}

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *Page) Content() (string, error) {
	p.mu.Lock()
	p.reads++
	read, onRead := p.reads, p.onRead
	p.mu.Unlock()
	if onRead != nil {
		onRead(p, read)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.navigating > 0 {
		p.navigating--
		return "", ErrNavigating
	}
	return p.content, nil
}

// Evaluate understands the two scripts sessions run: storing a document
// mark (one argument) and reading it back (no argument).
func (p *Page) Evaluate(expression string, arg ...interface{}) (interface{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(arg) == 1 {
		mark, _ := arg[0].(string)
		p.mark = mark
		return nil, nil
	}
	return p.mark, nil
}

func (p *Page) WaitForLoadState(...playwright.PageWaitForLoadStateOptions) error {
	return nil
}

// Context is a browser context holding one Page.
type Context struct {
	playwright.BrowserContext

	Page    *Page
	closes  atomic.Int32
	mu      sync.Mutex
	headers map[string]string
}

// NewContext returns a context whose only page is page.
func NewContext(page *Page) *Context {
	return &Context{Page: page}
}

func (c *Context) Pages() []playwright.Page { return []playwright.Page{c.Page} }

func (c *Context) SetDefaultTimeout(float64) {}

func (c *Context) SetDefaultNavigationTimeout(float64) {}

func (c *Context) SetExtraHTTPHeaders(headers map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.headers = headers
	return nil
}

// Headers returns the extra headers the context sends.
func (c *Context) Headers() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.headers
}

func (c *Context) Close(...playwright.BrowserContextCloseOptions) error {
	c.closes.Add(1)
	return nil
}

// Closes reports how many times Close was called.
func (c *Context) Closes() int { return int(c.closes.Load()) }
