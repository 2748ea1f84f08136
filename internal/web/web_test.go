package web

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiman-zohra3/todo/internal/config"
)

type testServer struct {
	*httptest.Server
	app *App
}

func newTestServer(t *testing.T, mutate ...func(*config.AppConfig)) *testServer {
	t.Helper()
	cfg := &config.AppConfig{TestMode: true, SessionDuration: time.Hour}
	for _, m := range mutate {
		m(cfg)
	}
	app, err := NewApp(context.Background(), cfg)
	require.NoError(t, err)
	ts := httptest.NewServer(app.Handler())
	t.Cleanup(func() {
		ts.Close()
		require.NoError(t, app.Close())
	})
	return &testServer{Server: ts, app: app}
}

// browserClient keeps cookies across requests and follows redirects, the
// way a browser session does.
type browserClient struct {
	t    *testing.T
	base string
	http *http.Client
}

type page struct {
	Status int
	Path   string
	Doc    *goquery.Document
}

func (p page) alerts(selector string) []string {
	var out []string
	p.Doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		out = append(out, strings.TrimSpace(s.Text()))
	})
	return out
}

func (p page) text() string { return p.Doc.Find("body").Text() }

func (ts *testServer) client(t *testing.T) *browserClient {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browserClient{t: t, base: ts.URL, http: &http.Client{Jar: jar}}
}

func (c *browserClient) do(req *http.Request) page {
	c.t.Helper()
	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	require.NoError(c.t, err)
	return page{Status: resp.StatusCode, Path: resp.Request.URL.Path, Doc: doc}
}

func (c *browserClient) get(path string) page {
	c.t.Helper()
	req, err := http.NewRequest(http.MethodGet, c.base+path, nil)
	require.NoError(c.t, err)
	return c.do(req)
}

func (c *browserClient) post(path string, form url.Values) page {
	c.t.Helper()
	req, err := http.NewRequest(http.MethodPost, c.base+path, strings.NewReader(form.Encode()))
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func (c *browserClient) register(name, email, pw, pw2 string) page {
	return c.post("/users/register", url.Values{"name": {name}, "email": {email}, "password": {pw}, "password2": {pw2}})
}

func (c *browserClient) login(email, pw string) page {
	return c.post("/users/login", url.Values{"email": {email}, "password": {pw}})
}

func (c *browserClient) signUpAndLogin(email string) {
	c.t.Helper()
	require.Equal(c.t, "/users/login", c.register("Test User", email, "passrocky_123", "passrocky_123").Path)
	require.Equal(c.t, "/todos", c.login(email, "passrocky_123").Path)
}

func TestRegistration(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	c := ts.client(t)

	p := c.register("New Test User", "new@example.com", "testpass123", "testpass123")
	assert.Equal(t, "/users/login", p.Path)
	assert.Equal(t, []string{"You are now registered and can log in"}, p.alerts(".alert-success"))

	p = c.get("/users/login")
	assert.Empty(t, p.alerts(".alert"), "flash is shown once")

	p = c.register("Mismatch User", "mismatch@example.com", "password123", "differentpassword")
	assert.Equal(t, "/users/register", p.Path)
	assert.Equal(t, []string{"Passwords do not match"}, p.alerts(".alert-danger"))
	val, _ := p.Doc.Find(`input[name="email"]`).Attr("value")
	assert.Equal(t, "mismatch@example.com", val)

	p = c.register("Duplicate User", "NEW@example.com", "newpass123", "newpass123")
	assert.Equal(t, "/users/register", p.Path)
	assert.Equal(t, []string{"Email already registered"}, p.alerts(".alert-danger"))
}

func TestLoginFailures(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	c := ts.client(t)
	c.register("Test User", "fixture-user@example.com", "passrocky_123", "passrocky_123")

	for name, tc := range map[string]struct {
		email, pw, want string
	}{
		"unknown user":   {"wrong@example.com", "wrongpassword", "No user found"},
		"wrong password": {"fixture-user@example.com", "wrongpassword", "Password incorrect"},
		"empty fields":   {"", "", "Missing credentials"},
	} {
		p := c.login(tc.email, tc.pw)
		assert.Equal(t, "/users/login", p.Path, name)
		assert.Equal(t, []string{tc.want}, p.alerts(".alert-danger"), name)
	}
}

func TestLoginShowsManagementMenu(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	c := ts.client(t)

	anon := c.get("/")
	assert.Zero(t, anon.Doc.Find("#navbarDropdownMenulink").Length())

	c.signUpAndLogin("menu@example.com")
	p := c.get("/todos")
	assert.Equal(t, 1, p.Doc.Find("#navbarDropdownMenulink").Length())
	assert.Equal(t, "/todos/add", p.Doc.Find(`a:contains("Add a new Todo")`).AttrOr("href", ""))
	assert.Equal(t, "/todos", p.Doc.Find(`a:contains("List Todos")`).AttrOr("href", ""))
	assert.Contains(t, p.text(), "Test User")
}

func TestTodoLifecycle(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	c := ts.client(t)
	c.signUpAndLogin("todos@example.com")

	p := c.post("/todos", url.Values{"title": {""}, "details": {" "}, "duedate": {"2025-12-31"}})
	assert.Equal(t, "/todos", p.Path)
	assert.Equal(t, []string{"Please add title", "Please add some details"}, p.alerts(".alert-danger"))
	assert.Equal(t, "2025-12-31", p.Doc.Find(`input[name="duedate"]`).AttrOr("value", ""))

	p = c.post("/todos", url.Values{
		"title":   {"T-1767175200"},
		"details": {"Adding via **test** <script>alert(1)</script>"},
		"duedate": {"2025-12-31"},
	})
	assert.Equal(t, "/todos", p.Path)
	assert.Equal(t, []string{"Todo added"}, p.alerts(".alert-success"))
	card := p.Doc.Find(".todo")
	require.Equal(t, 1, card.Length())
	assert.Equal(t, "T-1767175200", strings.TrimSpace(card.Find("h4").Text()))
	assert.Equal(t, 1, card.Find(".details strong").Length())
	assert.Zero(t, card.Find(".details script").Length())
	assert.Contains(t, card.Text(), "Due: 2025-12-31")

	id := card.AttrOr("data-id", "")
	require.NotEmpty(t, id)

	p = c.get("/todos/edit/" + id)
	assert.Equal(t, "T-1767175200", p.Doc.Find(`input[name="title"]`).AttrOr("value", ""))

	p = c.post("/todos/"+id, url.Values{"_method": {"PUT"}, "title": {"renamed"}, "details": {"d"}})
	assert.Equal(t, []string{"Todo updated"}, p.alerts(".alert-success"))
	assert.Equal(t, "renamed", strings.TrimSpace(p.Doc.Find(".todo h4").Text()))

	p = c.post("/todos/"+id, url.Values{"_method": {"PUT"}, "title": {""}, "details": {"d"}})
	assert.Equal(t, []string{"Please add title"}, p.alerts(".alert-danger"))

	p = c.post("/todos/"+id, url.Values{"_method": {"DELETE"}})
	assert.Equal(t, []string{"Todo removed"}, p.alerts(".alert-success"))
	assert.Zero(t, p.Doc.Find(".todo").Length())

	p = c.get("/todos/edit/" + id)
	assert.Equal(t, "/todos", p.Path)
	assert.Equal(t, []string{"Todo not found"}, p.alerts(".alert-danger"))
}

func TestTodosAreOwnerOnly(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	alice := ts.client(t)
	alice.signUpAndLogin("alice@example.com")
	alice.post("/todos", url.Values{"title": {"private"}, "details": {"d"}})
	id := alice.get("/todos").Doc.Find(".todo").AttrOr("data-id", "")
	require.NotEmpty(t, id)

	bob := ts.client(t)
	bob.signUpAndLogin("bob@example.com")
	assert.Zero(t, bob.get("/todos").Doc.Find(".todo").Length())

	p := bob.get("/todos/edit/" + id)
	assert.Equal(t, []string{"Not authorized"}, p.alerts(".alert-danger"))
	p = bob.post("/todos/"+id, url.Values{"_method": {"PUT"}, "title": {"mine now"}, "details": {"d"}})
	assert.Equal(t, []string{"Not authorized"}, p.alerts(".alert-danger"))
	p = bob.post("/todos/"+id, url.Values{"_method": {"DELETE"}})
	assert.Equal(t, []string{"Todo not found or not authorized"}, p.alerts(".alert-danger"))

	assert.Equal(t, 1, alice.get("/todos").Doc.Find(".todo").Length())
}

func TestUnauthorizedAndLogout(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	c := ts.client(t)

	p := c.get("/todos")
	assert.Equal(t, "/users/login", p.Path)
	assert.Equal(t, []string{"Not Authorized"}, p.alerts(".alert-danger"))

	c.signUpAndLogin("logout@example.com")
	assert.Equal(t, "/todos", c.get("/todos").Path)

	p = c.get("/users/logout")
	assert.Equal(t, "/users/login", p.Path)
	assert.Equal(t, []string{"You are logged out"}, p.alerts(".alert-success"))

	assert.Equal(t, "/users/login", c.get("/todos").Path)
	assert.Equal(t, "/users/login", c.get("/todos/add").Path)
}

func TestLogoutInvalidatesServerSession(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	c := ts.client(t)
	c.signUpAndLogin("stolen@example.com")

	u, err := url.Parse(ts.URL)
	require.NoError(t, err)
	var sessionCookie *http.Cookie
	for _, ck := range c.http.Jar.Cookies(u) {
		if ck.Name == "session_id" {
			sessionCookie = ck
		}
	}
	require.NotNil(t, sessionCookie)

	c.get("/users/logout")

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/todos", nil)
	require.NoError(t, err)
	req.AddCookie(sessionCookie)
	noRedirect := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	resp, err := noRedirect.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/users/login", resp.Header.Get("Location"))
}

func TestLoginThrottled(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, func(cfg *config.AppConfig) {
		cfg.LoginRPS = 0.001
		cfg.LoginBurst = 2
	})
	c := ts.client(t)

	c.login("a@example.com", "x")
	c.login("a@example.com", "x")
	p := c.login("a@example.com", "x")
	assert.Equal(t, http.StatusTooManyRequests, p.Status)
	assert.Contains(t, p.alerts(".alert-danger")[0], "Too many login attempts")
}

func TestStaticPagesAndNotFound(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	c := ts.client(t)

	p := c.get("/")
	assert.Equal(t, http.StatusOK, p.Status)
	assert.Contains(t, p.text(), "Welcome")

	p = c.get("/about")
	assert.Equal(t, "About TodoApp", strings.TrimSpace(p.Doc.Find(".card h1").Text()))

	p = c.get("/nope")
	assert.Equal(t, http.StatusNotFound, p.Status)
}

func TestMethodOverride(t *testing.T) {
	t.Parallel()
	var seen string
	h := MethodOverride(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { seen = r.Method }))

	for override, want := range map[string]string{
		"DELETE": http.MethodDelete,
		"put":    http.MethodPut,
		"GET":    http.MethodPost,
		"":       http.MethodPost,
	} {
		req := httptest.NewRequest(http.MethodPost, "/todos/1", strings.NewReader(url.Values{"_method": {override}}.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		h.ServeHTTP(httptest.NewRecorder(), req)
		assert.Equal(t, want, seen, "override %q", override)
	}

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/todos?_method=DELETE", nil))
	assert.Equal(t, http.MethodGet, seen)
}

func TestFlash_MalformedCookieIgnored(t *testing.T) {
	t.Parallel()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: flashCookieName, Value: "%%%not-base64"})
	rec := httptest.NewRecorder()
	assert.Nil(t, popFlash(rec, req, false))
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "Max-Age=0")
}

func TestRenderMarkdownSanitizes(t *testing.T) {
	t.Parallel()
	out := string(renderMarkdown("# Hi\n\n[x](javascript:alert(1)) <img src=x onerror=alert(1)>"))
	assert.Contains(t, out, "<h1")
	assert.NotContains(t, out, "javascript:")
	assert.NotContains(t, out, "onerror")
	assert.Equal(t, "abcd...", truncate("abcdefghij", 7))
	assert.Equal(t, "", formatTime(time.Time{}))
}
