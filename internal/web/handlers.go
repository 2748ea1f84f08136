// Package web serves the HTML pages of the reference todo application.
package web

import (
	_ "embed"
	"errors"
	"html/template"
	"net/http"
	"strings"

	"github.com/aiman-zohra3/todo/internal/auth"
	"github.com/aiman-zohra3/todo/internal/db"
	"github.com/aiman-zohra3/todo/internal/obs"
	"github.com/aiman-zohra3/todo/internal/ratelimit"
	"github.com/aiman-zohra3/todo/internal/todos"
)

//go:embed about.md
var aboutMarkdown string

// Flash texts shared by several handlers.
const (
	msgNotAuthorizedRedirect = "Not Authorized"
	msgRegistered            = "You are now registered and can log in"
	msgLoggedOut             = "You are logged out"
	msgTooManyAttempts       = "Too many login attempts, please try again later"
)

// Handler provides HTTP handlers for the web UI.
type Handler struct {
	renderer      *Renderer
	users         *auth.UserService
	sessions      *auth.SessionService
	todos         *todos.Service
	secureCookies bool
}

// NewHandler creates a web handler.
func NewHandler(renderer *Renderer, users *auth.UserService, sessions *auth.SessionService, todoService *todos.Service, secureCookies bool) *Handler {
	return &Handler{
		renderer:      renderer,
		users:         users,
		sessions:      sessions,
		todos:         todoService,
		secureCookies: secureCookies,
	}
}

// PageData contains common data passed to all templates.
type PageData struct {
	Title   string
	User    *db.User
	Flashes []Flash
	Errors  []string
}

// ErrorData is passed to the error page.
type ErrorData struct {
	PageData
	Error     string
	ErrorCode string
}

// AboutData is passed to the about page.
type AboutData struct {
	PageData
	Content template.HTML
}

// RegisterData is passed to the registration form.
type RegisterData struct {
	PageData
	Form auth.Registration
}

// LoginData is passed to the login form.
type LoginData struct {
	PageData
	Email string
}

// TodosListData is passed to the todo list.
type TodosListData struct {
	PageData
	Todos []db.Todo
}

// TodoFormData is passed to the add and edit forms.
type TodoFormData struct {
	PageData
	ID   string
	Form todos.Form
}

// Middleware returns the auth middleware configured to send anonymous
// visitors of protected pages to the login form.
func (h *Handler) Middleware() *auth.Middleware {
	return auth.NewMiddleware(h.sessions, h.users, h.HandleUnauthorized)
}

// RegisterRoutes registers all web UI routes on the given mux. loginLimiter
// throttles login attempts per client IP; nil disables throttling.
func (h *Handler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, loginLimiter *ratelimit.RateLimiter) {
	optional := func(fn http.HandlerFunc) http.Handler { return authMiddleware.OptionalAuth(fn) }
	required := func(fn http.HandlerFunc) http.Handler { return authMiddleware.RequireAuth(fn) }

	mux.Handle("GET /{$}", optional(h.HandleIndex))
	mux.Handle("GET /about", optional(h.HandleAbout))

	mux.Handle("GET /users/register", optional(h.HandleRegisterPage))
	mux.Handle("POST /users/register", optional(h.HandleRegister))
	mux.Handle("GET /users/login", optional(h.HandleLoginPage))
	var login http.Handler = http.HandlerFunc(h.HandleLogin)
	if loginLimiter != nil {
		login = ratelimit.Middleware(loginLimiter, ratelimit.ClientIP, h.HandleTooManyRequests)(login)
	}
	mux.Handle("POST /users/login", login)
	mux.HandleFunc("GET /users/logout", h.HandleLogout)

	mux.Handle("GET /todos", required(h.HandleTodosList))
	mux.Handle("GET /todos/add", required(h.HandleAddTodoPage))
	mux.Handle("POST /todos", required(h.HandleCreateTodo))
	mux.Handle("GET /todos/edit/{id}", required(h.HandleEditTodoPage))
	mux.Handle("PUT /todos/{id}", required(h.HandleUpdateTodo))
	mux.Handle("DELETE /todos/{id}", required(h.HandleDeleteTodo))

	mux.Handle("/", optional(h.HandleNotFound))
}

// page builds the common template data, consuming pending flash messages.
func (h *Handler) page(w http.ResponseWriter, r *http.Request, title string) PageData {
	return PageData{
		Title:   title,
		User:    auth.UserFromContext(r.Context()),
		Flashes: popFlash(w, r, h.secureCookies),
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, to, kind, text string) {
	setFlash(w, h.secureCookies, Flash{Kind: kind, Text: text})
	http.Redirect(w, r, to, http.StatusFound)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	if err := h.renderer.Render(w, name, data); err != nil {
		obs.From(r.Context()).Error("render failed", "template", name, "error", err)
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	obs.From(r.Context()).Error(msg, "error", err)
	h.renderer.RenderError(w, http.StatusInternalServerError, ErrorData{
		PageData: PageData{User: auth.UserFromContext(r.Context())},
		Error:    msg,
	})
}

// HandleIndex handles GET /.
func (h *Handler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "index.html", h.page(w, r, "Welcome"))
}

// HandleAbout handles GET /about.
func (h *Handler) HandleAbout(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "about.html", AboutData{
		PageData: h.page(w, r, "About"),
		Content:  renderMarkdown(aboutMarkdown),
	})
}

// HandleNotFound answers unknown paths.
func (h *Handler) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	h.renderer.RenderError(w, http.StatusNotFound, ErrorData{
		PageData: h.page(w, r, "Not Found"),
		Error:    "Page not found",
	})
}

// HandleUnauthorized sends visitors without a session to the login form.
func (h *Handler) HandleUnauthorized(w http.ResponseWriter, r *http.Request) {
	h.redirectWithFlash(w, r, "/users/login", FlashDanger, msgNotAuthorizedRedirect)
}

// HandleTooManyRequests answers throttled login attempts.
func (h *Handler) HandleTooManyRequests(w http.ResponseWriter, r *http.Request) {
	obs.From(r.Context()).Warn("login throttled", "client_ip", ratelimit.ClientIP(r))
	h.renderer.RenderError(w, http.StatusTooManyRequests, ErrorData{
		PageData: PageData{Title: "Too Many Requests"},
		Error:    msgTooManyAttempts,
	})
}

// HandleRegisterPage handles GET /users/register.
func (h *Handler) HandleRegisterPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "users/register.html", RegisterData{PageData: h.page(w, r, "Register")})
}

// HandleRegister handles POST /users/register.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.RenderError(w, http.StatusBadRequest, ErrorData{Error: "Invalid form data"})
		return
	}
	form := auth.Registration{
		Name:      r.FormValue("name"),
		Email:     r.FormValue("email"),
		Password:  r.FormValue("password"),
		Password2: r.FormValue("password2"),
	}

	if problems := form.Validate(); len(problems) > 0 {
		data := RegisterData{PageData: h.page(w, r, "Register"), Form: form}
		data.Errors = problems
		data.Form.Password, data.Form.Password2 = "", ""
		h.render(w, r, "users/register.html", data)
		return
	}

	user, err := h.users.Register(r.Context(), form)
	if errors.Is(err, auth.ErrAccountExists) {
		h.redirectWithFlash(w, r, "/users/register", FlashDanger, err.Error())
		return
	}
	if err != nil {
		h.serverError(w, r, "Registration failed", err)
		return
	}

	obs.From(r.Context()).Info("user registered", "user_id", user.ID)
	h.redirectWithFlash(w, r, "/users/login", FlashSuccess, msgRegistered)
}

// HandleLoginPage handles GET /users/login.
func (h *Handler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "users/login.html", LoginData{PageData: h.page(w, r, "Login")})
}

// HandleLogin handles POST /users/login.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.RenderError(w, http.StatusBadRequest, ErrorData{Error: "Invalid form data"})
		return
	}

	user, err := h.users.Authenticate(r.Context(), r.FormValue("email"), r.FormValue("password"))
	switch {
	case errors.Is(err, auth.ErrMissingFields), errors.Is(err, auth.ErrUserNotFound), errors.Is(err, auth.ErrPasswordIncorrect):
		h.redirectWithFlash(w, r, "/users/login", FlashDanger, err.Error())
		return
	case err != nil:
		h.serverError(w, r, "Login failed", err)
		return
	}

	sessionID, err := h.sessions.Create(r.Context(), user.ID)
	if err != nil {
		h.serverError(w, r, "Login failed", err)
		return
	}
	auth.SetCookie(w, sessionID, h.sessions.Duration(), h.secureCookies)
	http.Redirect(w, r, "/todos", http.StatusFound)
}

// HandleLogout handles GET /users/logout.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if sessionID, err := auth.GetFromRequest(r); err == nil {
		if err := h.sessions.Delete(r.Context(), sessionID); err != nil {
			obs.From(r.Context()).Warn("delete session on logout", "error", err)
		}
	}
	auth.ClearCookie(w, h.secureCookies)
	h.redirectWithFlash(w, r, "/users/login", FlashSuccess, msgLoggedOut)
}

// HandleTodosList handles GET /todos.
func (h *Handler) HandleTodosList(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	list, err := h.todos.List(r.Context(), user.ID)
	if err != nil {
		obs.From(r.Context()).Error("list todos", "error", err)
		h.redirectWithFlash(w, r, "/", FlashDanger, "Error loading todos")
		return
	}
	h.render(w, r, "todos/index.html", TodosListData{PageData: h.page(w, r, "Todos"), Todos: list})
}

// HandleAddTodoPage handles GET /todos/add.
func (h *Handler) HandleAddTodoPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "todos/add.html", TodoFormData{PageData: h.page(w, r, "Add Todo")})
}

func todoForm(r *http.Request) todos.Form {
	return todos.Form{
		Title:   r.FormValue("title"),
		Details: r.FormValue("details"),
		DueDate: r.FormValue("duedate"),
	}
}

// HandleCreateTodo handles POST /todos.
func (h *Handler) HandleCreateTodo(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	form := todoForm(r)
	if problems := form.Validate(); len(problems) > 0 {
		data := TodoFormData{PageData: h.page(w, r, "Add Todo"), Form: form}
		data.Errors = problems
		h.render(w, r, "todos/add.html", data)
		return
	}

	if _, err := h.todos.Create(r.Context(), user.ID, form); err != nil {
		obs.From(r.Context()).Error("create todo", "error", err)
		h.redirectWithFlash(w, r, "/todos/add", FlashDanger, "Error saving todo")
		return
	}
	h.redirectWithFlash(w, r, "/todos", FlashSuccess, "Todo added")
}

// HandleEditTodoPage handles GET /todos/edit/{id}.
func (h *Handler) HandleEditTodoPage(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	todo, err := h.todos.Get(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		h.todoLookupFailed(w, r, err, "Error loading todo")
		return
	}
	h.render(w, r, "todos/edit.html", TodoFormData{
		PageData: h.page(w, r, "Edit Todo"),
		ID:       todo.ID,
		Form:     todos.Form{Title: todo.Title, Details: todo.Details, DueDate: todo.DueDate},
	})
}

// HandleUpdateTodo handles PUT /todos/{id}. Ownership is checked before the
// form is validated.
func (h *Handler) HandleUpdateTodo(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	id := r.PathValue("id")
	if _, err := h.todos.Get(r.Context(), user.ID, id); err != nil {
		h.todoLookupFailed(w, r, err, "Error updating todo")
		return
	}

	form := todoForm(r)
	if problems := form.Validate(); len(problems) > 0 {
		data := TodoFormData{PageData: h.page(w, r, "Edit Todo"), ID: id, Form: form}
		data.Errors = problems
		h.render(w, r, "todos/edit.html", data)
		return
	}

	if _, err := h.todos.Update(r.Context(), user.ID, id, form); err != nil {
		h.todoLookupFailed(w, r, err, "Error updating todo")
		return
	}
	h.redirectWithFlash(w, r, "/todos", FlashSuccess, "Todo updated")
}

// HandleDeleteTodo handles DELETE /todos/{id}.
func (h *Handler) HandleDeleteTodo(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	err := h.todos.Delete(r.Context(), user.ID, r.PathValue("id"))
	switch {
	case errors.Is(err, todos.ErrNotFound), errors.Is(err, todos.ErrNotOwner):
		h.redirectWithFlash(w, r, "/todos", FlashDanger, "Todo not found or not authorized")
	case err != nil:
		obs.From(r.Context()).Error("delete todo", "error", err)
		h.redirectWithFlash(w, r, "/todos", FlashDanger, "Error deleting todo")
	default:
		h.redirectWithFlash(w, r, "/todos", FlashSuccess, "Todo removed")
	}
}

func (h *Handler) todoLookupFailed(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, todos.ErrNotFound), errors.Is(err, todos.ErrNotOwner):
		h.redirectWithFlash(w, r, "/todos", FlashDanger, err.Error())
	default:
		obs.From(r.Context()).Error(strings.ToLower(fallback), "error", err)
		h.redirectWithFlash(w, r, "/todos", FlashDanger, fallback)
	}
}
