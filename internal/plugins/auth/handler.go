package auth

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/edugate/internal/apperror"
	"github.com/keyxmakerx/edugate/internal/middleware"
	"github.com/keyxmakerx/edugate/internal/plugins/audit"
	"github.com/keyxmakerx/edugate/internal/plugins/session"
)

// LandingPath is where a successful login goes without a redirect target.
const LandingPath = "/dashboard"

// maxAuthBody caps auth request bodies.
const maxAuthBody = 64 << 10

// Handler serves the auth surfaces. All session work goes through the
// request's State; handlers only bind, call and render.
type Handler struct {
	recorder audit.Recorder
}

// NewHandler creates a new auth handler.
func NewHandler(recorder audit.Recorder) *Handler {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	return &Handler{recorder: recorder}
}

// --- JSON: /api/auth-proxy ---

// APILogin signs in and sets the session cookies (POST /api/auth-proxy/login).
func (h *Handler) APILogin(c echo.Context) error {
	state, err := requireState(c)
	if err != nil {
		return err
	}
	var creds Credentials
	if err := c.Bind(&creds); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	user, err := state.Login(c.Request().Context(), creds)
	if err != nil {
		h.recordFailure(c, creds.Email, err)
		return toAppError(err)
	}
	h.record(c, audit.ActionLogin, user, nil)
	return c.JSON(http.StatusOK, map[string]any{
		"user":            user,
		"isAuthenticated": state.IsAuthenticated(),
	})
}

// APIRegister creates an account and signs in (POST /api/auth-proxy/register).
func (h *Handler) APIRegister(c echo.Context) error {
	state, err := requireState(c)
	if err != nil {
		return err
	}
	in, err := decodeRegisterJSON(c)
	if err != nil {
		return err
	}

	user, err := state.Register(c.Request().Context(), in)
	if err != nil {
		return toAppError(err)
	}
	h.record(c, audit.ActionRegister, user, nil)
	return c.JSON(http.StatusCreated, map[string]any{
		"user":            user,
		"isAuthenticated": state.IsAuthenticated(),
	})
}

// APIRefresh renews the access token (POST /api/auth-proxy/refresh).
func (h *Handler) APIRefresh(c echo.Context) error {
	state, err := requireState(c)
	if err != nil {
		return err
	}
	access, err := state.Refresh(c.Request().Context())
	if err != nil {
		return toAppError(err)
	}
	h.record(c, audit.ActionRefresh, h.currentUser(c, state), nil)
	return c.JSON(http.StatusOK, map[string]string{"access": access})
}

// APILogout ends the session (POST /api/auth-proxy/logout).
func (h *Handler) APILogout(c echo.Context) error {
	state, err := requireState(c)
	if err != nil {
		return err
	}
	user := h.currentUser(c, state)
	if err := state.Logout(c.Request().Context()); err != nil {
		return err
	}
	h.record(c, audit.ActionLogout, user, nil)
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

// APIProfile returns the backend's profile for the session (GET /api/auth-proxy/profile).
func (h *Handler) APIProfile(c echo.Context) error {
	state, err := requireState(c)
	if err != nil {
		return err
	}
	user, err := state.Profile(c.Request().Context())
	if err != nil {
		return toAppError(err)
	}
	return c.JSON(http.StatusOK, user)
}

// APISession returns the hydrated state (GET /api/auth-proxy/session).
func (h *Handler) APISession(c echo.Context) error {
	state, err := requireState(c)
	if err != nil {
		return err
	}
	if err := state.Hydrate(c.Request().Context()); err != nil {
		return apperror.NewInternal(err)
	}
	return c.JSON(http.StatusOK, state.Snapshot())
}

// --- HTML forms ---

// LoginForm renders the login page (GET /login).
func (h *Handler) LoginForm(c echo.Context) error {
	redirectTo := SafeRedirect(c.QueryParam("redirect"), "")
	return middleware.Render(c, http.StatusOK, LoginPage(middleware.GetCSRFToken(c), "", "", redirectTo))
}

// Login processes the login form (POST /login).
func (h *Handler) Login(c echo.Context) error {
	state, err := requireState(c)
	if err != nil {
		return err
	}
	var creds Credentials
	if err := c.Bind(&creds); err != nil {
		return apperror.NewBadRequest("invalid request")
	}
	redirectTo := SafeRedirect(c.FormValue("redirect"), "")

	user, err := state.Login(c.Request().Context(), creds)
	if err != nil {
		h.recordFailure(c, creds.Email, err)
		csrf := middleware.GetCSRFToken(c)
		if middleware.IsHTMX(c) {
			return middleware.Render(c, http.StatusOK, LoginForm(csrf, creds.Email, formMessage(err), redirectTo))
		}
		return middleware.Render(c, http.StatusOK, LoginPage(csrf, creds.Email, formMessage(err), redirectTo))
	}

	h.record(c, audit.ActionLogin, user, map[string]any{"via": "form"})
	return redirect(c, SafeRedirect(redirectTo, LandingPath))
}

// RegisterForm renders the registration page (GET /register).
func (h *Handler) RegisterForm(c echo.Context) error {
	return middleware.Render(c, http.StatusOK, RegisterPage(middleware.GetCSRFToken(c), RegisterInput{}, ""))
}

// Register processes the registration form (POST /register).
func (h *Handler) Register(c echo.Context) error {
	state, err := requireState(c)
	if err != nil {
		return err
	}
	var in RegisterInput
	if err := c.Bind(&in); err != nil {
		return apperror.NewBadRequest("invalid request")
	}

	user, err := state.Register(c.Request().Context(), in)
	if err != nil {
		csrf := middleware.GetCSRFToken(c)
		if middleware.IsHTMX(c) {
			return middleware.Render(c, http.StatusOK, RegisterForm(csrf, in, formMessage(err)))
		}
		return middleware.Render(c, http.StatusOK, RegisterPage(csrf, in, formMessage(err)))
	}

	h.record(c, audit.ActionRegister, user, map[string]any{"via": "form"})
	return redirect(c, LandingPath)
}

// Logout ends the session and follows the State's navigation (POST /logout).
func (h *Handler) Logout(c echo.Context) error {
	state, err := requireState(c)
	if err != nil {
		return err
	}
	user := h.currentUser(c, state)
	if err := state.Logout(c.Request().Context()); err != nil {
		return err
	}
	h.record(c, audit.ActionLogout, user, map[string]any{"via": "form"})

	target := NavigatedTo(c)
	if target == "" {
		target = HomePath
	}
	return redirect(c, target)
}

// --- Helpers ---

func requireState(c echo.Context) (*State, error) {
	state := GetState(c)
	if state == nil {
		return nil, apperror.NewMissingContext()
	}
	return state, nil
}

// currentUser hydrates and returns the user, for audit attribution.
func (h *Handler) currentUser(c echo.Context, state *State) *session.User {
	_ = state.Hydrate(c.Request().Context())
	return state.User()
}

// registerKnownFields are the keys RegisterInput binds itself.
var registerKnownFields = map[string]bool{
	"email": true, "password": true, "password_confirm": true,
	"username": true, "first_name": true, "last_name": true,
}

// decodeRegisterJSON binds RegisterInput and keeps every other top-level
// field in Extra so the backend receives it.
func decodeRegisterJSON(c echo.Context) (RegisterInput, error) {
	data, err := io.ReadAll(io.LimitReader(c.Request().Body, maxAuthBody))
	if err != nil {
		return RegisterInput{}, apperror.NewBadRequest("invalid request body")
	}
	var in RegisterInput
	var raw map[string]any
	if err := json.Unmarshal(data, &in); err != nil {
		return RegisterInput{}, apperror.NewBadRequest("invalid request body")
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return RegisterInput{}, apperror.NewBadRequest("invalid request body")
	}
	for k, v := range raw {
		if registerKnownFields[k] {
			continue
		}
		if in.Extra == nil {
			in.Extra = make(map[string]any)
		}
		in.Extra[k] = v
	}
	return in, nil
}

// toAppError maps service errors onto the HTTP error taxonomy.
func toAppError(err error) error {
	var ae *AuthError
	if errors.As(err, &ae) {
		return apperror.NewUpstream(ae.Status, ae.Message, ae.Payload)
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		if ne.Timeout {
			return apperror.NewTimeout(ne)
		}
		return apperror.NewUpstreamUnreachable(ne)
	}
	return err
}

// formMessage is the text shown above a form after a failed submit.
func formMessage(err error) string {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Message
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return "The authentication service is unavailable. Please try again."
	}
	return apperror.SafeMessage(err)
}

func (h *Handler) record(c echo.Context, action string, user *session.User, details map[string]any) {
	e := audit.Event{
		Action:    action,
		IP:        c.RealIP(),
		UserAgent: c.Request().UserAgent(),
		Details:   details,
	}
	if user != nil {
		e.UserID = user.ID.String()
		e.Email = user.Email
	}
	h.recorder.Record(c.Request().Context(), e)
}

func (h *Handler) recordFailure(c echo.Context, email string, err error) {
	details := map[string]any{}
	var ae *AuthError
	if errors.As(err, &ae) {
		details["status"] = ae.Status
	} else {
		details["status"] = apperror.SafeCode(toAppError(err))
	}
	h.recorder.Record(c.Request().Context(), audit.Event{
		Action:    audit.ActionLoginFailed,
		Email:     email,
		IP:        c.RealIP(),
		UserAgent: c.Request().UserAgent(),
		Details:   details,
	})
}
