package web

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

//go:embed templates
var templateFS embed.FS

// Renderer renders page templates inside the shared layout.
type Renderer struct {
	templates map[string]*template.Template
	funcMap   template.FuncMap
}

// NewRenderer parses the embedded templates: base.html is the layout and
// every other .html file is a page that fills its "content" block.
func NewRenderer() (*Renderer, error) {
	return newRenderer(templateFS, "templates")
}

func newRenderer(fsys fs.FS, root string) (*Renderer, error) {
	r := &Renderer{
		templates: make(map[string]*template.Template),
		funcMap:   createFuncMap(),
	}
	if err := r.parseTemplates(fsys, root); err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return r, nil
}

// Render executes the named template with the given data and writes the result to w.
// The templateName is relative to the templates directory (e.g., "users/login.html").
func (r *Renderer) Render(w http.ResponseWriter, templateName string, data any) error {
	return r.RenderStatus(w, http.StatusOK, templateName, data)
}

// RenderStatus is Render with an explicit status code.
func (r *Renderer) RenderStatus(w http.ResponseWriter, code int, templateName string, data any) error {
	tmpl, ok := r.templates[templateName]
	if !ok {
		return fmt.Errorf("template %q not found", templateName)
	}

	var buf strings.Builder
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		return fmt.Errorf("failed to execute template %q: %w", templateName, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	_, err := w.Write([]byte(buf.String()))
	return err
}

// RenderError renders an error page with the given HTTP status code and message.
func (r *Renderer) RenderError(w http.ResponseWriter, code int, data ErrorData) {
	data.ErrorCode = http.StatusText(code)
	if data.Title == "" {
		data.Title = data.ErrorCode
	}
	if err := r.RenderStatus(w, code, "error.html", data); err == nil {
		return
	}
	http.Error(w, fmt.Sprintf("Error %d: %s", code, data.Error), code)
}

func (r *Renderer) parseTemplates(fsys fs.FS, root string) error {
	baseContent, err := fs.ReadFile(fsys, path.Join(root, "base.html"))
	if err != nil {
		return fmt.Errorf("failed to read base template: %w", err)
	}

	err = fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, ".html") {
			return nil
		}
		name := strings.TrimPrefix(p, root+"/")
		if name == "base.html" {
			return nil
		}

		pageContent, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("failed to read template %s: %w", name, err)
		}

		tmpl, err := template.New("base").Funcs(r.funcMap).Parse(string(baseContent))
		if err != nil {
			return fmt.Errorf("failed to parse base template for %s: %w", name, err)
		}
		if tmpl, err = tmpl.Parse(string(pageContent)); err != nil {
			return fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		r.templates[name] = tmpl
		return nil
	})
	if err != nil {
		return err
	}

	if len(r.templates) == 0 {
		return fmt.Errorf("no templates found in %s", root)
	}
	return nil
}

func createFuncMap() template.FuncMap {
	return template.FuncMap{
		"formatTime": formatTime,
		"truncate":   truncate,
		"markdown":   renderMarkdown,
	}
}

// formatTime formats a time.Time as a human-readable date string.
// Example: "Jan 2, 2006"
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("Jan 2, 2006")
}

// truncate shortens s to n runes, ending in "..." when cut.
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}

var markdownPolicy = bluemonday.UGCPolicy()

// renderMarkdown converts markdown text to sanitized HTML.
func renderMarkdown(s string) template.HTML {
	extensions := parser.CommonExtensions | parser.AutoHeadingIDs | parser.NoEmptyLineBeforeBlock
	p := parser.NewWithExtensions(extensions)
	doc := p.Parse([]byte(s))

	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.HrefTargetBlank,
	})
	htmlContent := markdown.Render(doc, renderer)

	return template.HTML(markdownPolicy.SanitizeBytes(htmlContent))
}
