// Package pages drives the todo application's forms and menus.
//
// Helpers only drive the UI: each one submits its form and waits for the
// browser to settle on the resulting page. Judging the result is left to the
// outcome package.
package pages

import (
	"context"
	"errors"
	"log/slog"
	"net/url"

	"github.com/playwright-community/playwright-go"

	"github.com/aiman-zohra3/todo/internal/browser"
	"github.com/aiman-zohra3/todo/internal/errs"
	"github.com/aiman-zohra3/todo/internal/logutil"
	"github.com/aiman-zohra3/todo/internal/obs"
	"github.com/aiman-zohra3/todo/internal/urlutil"
	"github.com/aiman-zohra3/todo/internal/wait"
)

// Routes of the application under test.
const (
	RegisterPath = "/users/register"
	LoginPath    = "/users/login"
	LogoutPath   = "/users/logout"
	TodosPath    = "/todos"
	AddTodoPath  = "/todos/add"
)

// Element identifiers the application promises to keep stable.
var (
	FieldName      = browser.ByName("name")
	FieldEmail     = browser.ByName("email")
	FieldPassword  = browser.ByName("password")
	FieldPassword2 = browser.ByName("password2")
	FieldTitle     = browser.ByName("title")
	FieldDueDate   = browser.ByName("duedate")
	FieldDetails   = browser.ByName("details")
	SubmitButton   = browser.ByCSS("button[type='submit']")
	InvalidField   = browser.ByCSS("form :invalid")
	ManageMenu     = browser.ByID("navbarDropdownMenulink")
	AddTodoLink    = browser.ByLinkText("Add a new Todo")
	ListTodosLink  = browser.ByLinkText("List Todos")
)

// RegisterForm holds the registration fields.
type RegisterForm struct {
	Name      string
	Email     string
	Password  string
	Password2 string
}

// TodoForm holds the todo creation fields. DueDate is yyyy-mm-dd.
type TodoForm struct {
	Title   string
	DueDate string
	Details string
}

// App drives one browser session against the application at BaseURL.
type App struct {
	Session *browser.Session
	BaseURL string
	Wait    wait.Options
}

// New returns an App for s.
func New(s *browser.Session, baseURL string, opts wait.Options) *App {
	return &App{
		Session: s,
		BaseURL: urlutil.NormalizeBase(baseURL),
		Wait:    opts,
	}
}

func (a *App) logger(ctx context.Context) *slog.Logger {
	return obs.From(ctx).With("pkg", "pages")
}

// URL resolves path against the base URL.
func (a *App) URL(path string) string {
	return urlutil.BuildAbsolute(a.BaseURL, path)
}

// Visit navigates to path and waits for the DOM to load.
func (a *App) Visit(ctx context.Context, path string) error {
	return a.Session.Goto(ctx, a.URL(path))
}

// Register submits the registration form.
func (a *App) Register(ctx context.Context, form RegisterForm) error {
	if err := a.Visit(ctx, RegisterPath); err != nil {
		return err
	}
	fields := []fieldValue{
		{FieldName, form.Name},
		{FieldEmail, form.Email},
		{FieldPassword, form.Password},
		{FieldPassword2, form.Password2},
	}
	if err := a.fillAll(ctx, fields); err != nil {
		return err
	}
	a.logger(ctx).Info("submit registration", "form", formForLog(fields))
	return a.submit(ctx)
}

// Login submits the login form. Errors are returned, never swallowed, since
// later steps depend on the authenticated state.
func (a *App) Login(ctx context.Context, email, password string) error {
	err := a.login(ctx, email, password)
	if err != nil {
		a.logger(ctx).Error("login failed", "email", logutil.MaskEmail(email), "error", err)
	}
	return err
}

func (a *App) login(ctx context.Context, email, password string) error {
	if err := a.Visit(ctx, LoginPath); err != nil {
		return err
	}
	fields := []fieldValue{
		{FieldEmail, email},
		{FieldPassword, password},
	}
	if err := a.fillAll(ctx, fields); err != nil {
		return err
	}
	a.logger(ctx).Info("submit login", "form", formForLog(fields))
	return a.submit(ctx)
}

// SubmitEmpty clicks the submit button of the form at path without filling
// anything. A form the browser refuses to send because of required fields
// counts as settled: the page then stays as it is.
func (a *App) SubmitEmpty(ctx context.Context, path string) error {
	if err := a.Visit(ctx, path); err != nil {
		return err
	}
	return a.submitWith(ctx, func(mark string) wait.Condition {
		return wait.Any(
			wait.DocumentReplaced(a.Session, mark),
			wait.Present(InvalidField.String(), a.Session.Locate(InvalidField)),
		)
	})
}

// Logout ends the session through the logout route and waits until the
// management menu is gone.
func (a *App) Logout(ctx context.Context) error {
	if err := a.Visit(ctx, LogoutPath); err != nil {
		return err
	}
	_, err := wait.ForElement(ctx, a.Session, ManageMenu, wait.StateHidden, a.Wait)
	return err
}

// OpenManagementMenu expands the todo dropdown and waits until both of its
// links are visible, so callers never click into a collapsed or animating menu.
func (a *App) OpenManagementMenu(ctx context.Context) error {
	if err := a.click(ctx, ManageMenu); err != nil {
		return err
	}
	for _, link := range []browser.By{AddTodoLink, ListTodosLink} {
		if _, err := wait.ForElement(ctx, a.Session, link, wait.StateVisible, a.Wait); err != nil {
			return err
		}
	}
	return nil
}

// AddTodo opens the add form from the management menu and submits it.
func (a *App) AddTodo(ctx context.Context, form TodoForm) error {
	if err := a.OpenManagementMenu(ctx); err != nil {
		return err
	}
	if err := a.click(ctx, AddTodoLink); err != nil {
		return err
	}
	if err := wait.Until(ctx, wait.URLContains(a.Session, AddTodoPath), a.Wait); err != nil {
		return err
	}
	fields := []fieldValue{
		{FieldTitle, form.Title},
		{FieldDueDate, form.DueDate},
		{FieldDetails, form.Details},
	}
	if err := a.fillAll(ctx, fields); err != nil {
		return err
	}
	a.logger(ctx).Info("submit todo", "form", formForLog(fields))
	return a.submit(ctx)
}

// ListTodos opens the todo listing from the management menu.
func (a *App) ListTodos(ctx context.Context) error {
	if err := a.OpenManagementMenu(ctx); err != nil {
		return err
	}
	if err := a.click(ctx, ListTodosLink); err != nil {
		return err
	}
	if err := wait.Until(ctx, wait.URLContains(a.Session, TodosPath), a.Wait); err != nil {
		return err
	}
	return a.Session.Settle(ctx)
}

type fieldValue struct {
	by    browser.By
	value string
}

func formForLog(fields []fieldValue) string {
	form := url.Values{}
	for _, f := range fields {
		form.Set(f.by.Value, f.value)
	}
	return logutil.FormatFormForLog(form)
}

func (a *App) fillAll(ctx context.Context, fields []fieldValue) error {
	for _, f := range fields {
		if err := a.fill(ctx, f.by, f.value); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) fill(ctx context.Context, by browser.By, value string) error {
	loc, err := wait.ForElement(ctx, a.Session, by, wait.StateVisible, a.Wait)
	if err != nil {
		return err
	}
	if err := loc.Fill(value); err != nil {
		return actionError("fill "+by.String(), err)
	}
	return nil
}

func (a *App) click(ctx context.Context, by browser.By) error {
	loc, err := wait.ForElement(ctx, a.Session, by, wait.StateClickable, a.Wait)
	if err != nil {
		return err
	}
	if err := loc.Click(); err != nil {
		return actionError("click "+by.String(), err)
	}
	return nil
}

// submit clicks the form's submit button and waits until the browser has
// loaded the server's response.
func (a *App) submit(ctx context.Context) error {
	return a.submitWith(ctx, func(mark string) wait.Condition {
		return wait.DocumentReplaced(a.Session, mark)
	})
}

func (a *App) submitWith(ctx context.Context, settled func(mark string) wait.Condition) error {
	mark, err := a.Session.MarkDocument()
	if err != nil {
		return err
	}
	if err := a.click(ctx, SubmitButton); err != nil {
		return err
	}
	if err := wait.Until(ctx, settled(mark), a.Wait); err != nil {
		return err
	}
	return a.Session.Settle(ctx)
}

func actionError(action string, err error) error {
	if errors.Is(err, playwright.ErrTimeout) {
		return errs.Wrap(errs.Timeout, action, err)
	}
	return errs.Wrap(errs.ElementNotFound, action, err)
}
