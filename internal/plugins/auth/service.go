package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/keyxmakerx/edugate/internal/apperror"
	"github.com/keyxmakerx/edugate/internal/backend"
	"github.com/keyxmakerx/edugate/internal/plugins/session"
)

// Backend auth endpoints, relative to the configured base URL.
const (
	pathLogin    = "/auth/login/"
	pathRegister = "/auth/register/"
	pathRefresh  = "/auth/refresh-token/"
	pathLogout   = "/auth/logout/"
	pathProfile  = "/auth/profile/"
)

// profileCacheSize bounds the per-token profile cache.
const profileCacheSize = 1024

// shared is the state every store-bound copy of a Service points at.
type shared struct {
	client   *backend.Client
	validate *validator.Validate
	profiles *expirable.LRU[string, *session.User]
	refresh  singleflight.Group
}

// Service wraps the backend's /auth/* endpoints. A Service bound to a
// store with WithStore persists sessions on login and register and clears
// them on logout. Each method makes at most one backend call and never
// retries.
type Service struct {
	*shared
	store session.Store
}

// NewService creates an unbound service. profileTTL of zero disables the
// profile cache.
func NewService(client *backend.Client, profileTTL time.Duration) *Service {
	s := &shared{
		client:   client,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	if profileTTL > 0 {
		s.profiles = expirable.NewLRU[string, *session.User](profileCacheSize, nil, profileTTL)
	}
	return &Service{shared: s}
}

// WithStore returns a copy bound to one client's store. The copy shares the
// profile cache and refresh coalescing with its parent.
func (s *Service) WithStore(store session.Store) *Service {
	return &Service{shared: s.shared, store: store}
}

// authResponse accepts both {tokens:{access,refresh}, user} and the flat
// {access, refresh, user} shape.
type authResponse struct {
	Tokens *struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	} `json:"tokens"`
	Access  string        `json:"access"`
	Refresh string        `json:"refresh"`
	User    *session.User `json:"user"`
}

func (r authResponse) session() session.Session {
	sess := session.Session{AccessToken: r.Access, RefreshToken: r.Refresh, User: r.User}
	if r.Tokens != nil {
		if r.Tokens.Access != "" {
			sess.AccessToken = r.Tokens.Access
		}
		if r.Tokens.Refresh != "" {
			sess.RefreshToken = r.Tokens.Refresh
		}
	}
	return sess
}

// Login exchanges credentials for a session and persists it.
func (s *Service) Login(ctx context.Context, creds Credentials) (*session.Session, error) {
	sess, err := s.login(ctx, creds)
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx, "auth.login", sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Register creates an account and persists the session the backend issues
// for it.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*session.Session, error) {
	sess, err := s.register(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx, "auth.register", sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// login calls the backend without touching the store.
func (s *Service) login(ctx context.Context, creds Credentials) (*session.Session, error) {
	creds.Email = strings.TrimSpace(creds.Email)
	if err := s.check(creds); err != nil {
		return nil, err
	}
	return s.exchange(ctx, "auth.login", pathLogin, map[string]any{
		"email":    creds.Email,
		"password": creds.Password,
	})
}

func (s *Service) register(ctx context.Context, in RegisterInput) (*session.Session, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := s.check(in); err != nil {
		return nil, err
	}
	return s.exchange(ctx, "auth.register", pathRegister, in.payload())
}

// exchange posts body to path and returns the session the backend issues.
func (s *Service) exchange(ctx context.Context, op, path string, body map[string]any) (*session.Session, error) {
	resp, err := s.client.Do(ctx, backend.Request{Name: op, Method: http.MethodPost, Path: path, Body: body})
	if err != nil {
		return nil, classify(op, err)
	}

	var out authResponse
	if err := resp.Decode(&out); err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	sess := out.session()
	if sess.AccessToken == "" {
		return nil, &NetworkError{Op: op, Err: errMalformedResponse}
	}

	// Some backends return tokens only; fetch the user so the session
	// invariant holds.
	if sess.User == nil {
		user, err := s.fetchProfile(ctx, sess.AccessToken)
		if err != nil {
			return nil, err
		}
		sess.User = user
	}
	return &sess, nil
}

// persist saves a freshly issued session in the bound store.
func (s *Service) persist(ctx context.Context, op string, sess *session.Session) error {
	if s.store != nil {
		if err := s.store.Save(ctx, *sess); err != nil {
			return apperror.NewInternal(fmt.Errorf("saving session: %w", err))
		}
	}
	slog.Info("session created",
		slog.String("op", op),
		slog.String("user_id", sess.User.ID.String()),
	)
	return nil
}

// refreshResult is the backend's POST /auth/refresh-token/ answer.
type refreshResult struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Refresh trades the stored refresh token for a new access token and
// saves it. Concurrent refreshes of the same token share one backend call.
func (s *Service) Refresh(ctx context.Context) (string, error) {
	sess, err := s.load(ctx)
	if err != nil {
		return "", err
	}
	if sess.RefreshToken == "" || sess.User == nil {
		return "", errNotAuthenticated
	}

	// The shared call must not die with whichever caller started it.
	callCtx := context.WithoutCancel(ctx)
	v, err, _ := s.refresh.Do(sess.RefreshToken, func() (any, error) {
		resp, err := s.client.Do(callCtx, backend.Request{
			Name:   "auth.refresh",
			Method: http.MethodPost,
			Path:   pathRefresh,
			Body:   map[string]string{"refresh": sess.RefreshToken},
		})
		if err != nil {
			return nil, classify("auth.refresh", err)
		}
		var out refreshResult
		if err := resp.Decode(&out); err != nil {
			return nil, &NetworkError{Op: "auth.refresh", Err: err}
		}
		if out.Access == "" {
			return nil, &NetworkError{Op: "auth.refresh", Err: errMalformedResponse}
		}
		return out, nil
	})
	if err != nil {
		return "", err
	}
	out := v.(refreshResult)

	s.forgetProfile(sess.AccessToken)
	sess.AccessToken = out.Access
	if out.Refresh != "" {
		sess.RefreshToken = out.Refresh
	}
	if s.store != nil {
		if err := s.store.Save(ctx, sess); err != nil {
			return "", apperror.NewInternal(fmt.Errorf("saving refreshed session: %w", err))
		}
	}
	return out.Access, nil
}

// Logout tells the backend to invalidate the tokens and clears the store.
// The backend call is best effort: the store is cleared even when it
// fails, and only a store failure is returned.
func (s *Service) Logout(ctx context.Context) error {
	sess, err := s.load(ctx)
	if err != nil {
		slog.Warn("loading session for logout", slog.Any("error", err))
	}

	if sess.AccessToken != "" {
		s.forgetProfile(sess.AccessToken)
		_, err := s.client.Do(ctx, backend.Request{
			Name:   "auth.logout",
			Method: http.MethodPost,
			Path:   pathLogout,
			Token:  sess.AccessToken,
			Body:   map[string]string{"refresh": sess.RefreshToken},
		})
		if err != nil {
			slog.Warn("backend logout failed", slog.Any("error", err))
		}
	}

	if s.store == nil {
		return nil
	}
	if err := s.store.Clear(ctx); err != nil {
		return apperror.NewInternal(fmt.Errorf("clearing session: %w", err))
	}
	return nil
}

// GetProfile returns the backend's current view of the signed-in user.
func (s *Service) GetProfile(ctx context.Context) (*session.User, error) {
	sess, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if sess.AccessToken == "" {
		return nil, errNotAuthenticated
	}
	return s.fetchProfile(ctx, sess.AccessToken)
}

// fetchProfile calls GET /auth/profile/ with token, through the cache.
func (s *Service) fetchProfile(ctx context.Context, token string) (*session.User, error) {
	if s.profiles != nil {
		if user, ok := s.profiles.Get(token); ok {
			return user, nil
		}
	}

	resp, err := s.client.Do(ctx, backend.Request{
		Name:   "auth.profile",
		Method: http.MethodGet,
		Path:   pathProfile,
		Token:  token,
	})
	if err != nil {
		return nil, classify("auth.profile", err)
	}

	// Some backends wrap the profile as {user: {...}}.
	var wrapped struct {
		User *session.User `json:"user"`
	}
	if err := resp.Decode(&wrapped); err == nil && wrapped.User != nil && wrapped.User.ID != "" {
		s.rememberProfile(token, wrapped.User)
		return wrapped.User, nil
	}
	var user session.User
	if err := resp.Decode(&user); err != nil {
		return nil, &NetworkError{Op: "auth.profile", Err: err}
	}
	s.rememberProfile(token, &user)
	return &user, nil
}

func (s *Service) rememberProfile(token string, user *session.User) {
	if s.profiles != nil {
		s.profiles.Add(token, user)
	}
}

func (s *Service) forgetProfile(token string) {
	if s.profiles != nil && token != "" {
		s.profiles.Remove(token)
	}
}

func (s *Service) load(ctx context.Context) (session.Session, error) {
	if s.store == nil {
		return session.Session{}, nil
	}
	sess, err := s.store.Load(ctx)
	if err != nil {
		return session.Session{}, apperror.NewInternal(fmt.Errorf("loading session: %w", err))
	}
	return sess, nil
}

// check validates a request DTO and reports the first failing field.
func (s *Service) check(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) || len(fields) == 0 {
		return apperror.NewValidation("invalid request")
	}
	return apperror.NewValidation(fieldMessage(fields[0]))
}

// fieldMessage renders a validation failure for the form.
func fieldMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return "email must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "eqfield":
		return "passwords do not match"
	default:
		return field + " is invalid"
	}
}

// classify turns a backend client error into AuthError or NetworkError.
func classify(op string, err error) error {
	var re *backend.ResponseError
	if errors.As(err, &re) {
		return &AuthError{Status: re.Status, Message: re.Message, Payload: re.Payload}
	}
	var te *backend.TransportError
	if errors.As(err, &te) {
		return &NetworkError{Op: op, Err: te.Err, Timeout: te.Timeout}
	}
	return &NetworkError{Op: op, Err: err}
}
