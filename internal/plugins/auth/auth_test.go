package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyxmakerx/edugate/internal/apperror"
	"github.com/keyxmakerx/edugate/internal/backend"
	"github.com/keyxmakerx/edugate/internal/plugins/session"
)

const testSecret = "test-secret-key-that-is-32-bytes!"

// --- Fake backend ---

// fakeBackend answers the /auth/* endpoints from per-path handlers and
// counts every call.
type fakeBackend struct {
	t      *testing.T
	srv    *httptest.Server
	calls  atomic.Int32
	mu     sync.Mutex
	routes map[string]http.HandlerFunc
	bodies map[string]map[string]any
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{t: t, routes: map[string]http.HandlerFunc{}, bodies: map[string]map[string]any{}}
	fb.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fb.calls.Add(1)
		data, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(data, &body)

		fb.mu.Lock()
		fb.bodies[r.URL.Path] = body
		h, ok := fb.routes[r.URL.Path]
		fb.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":"Not found."}`))
			return
		}
		h(w, r)
	}))
	t.Cleanup(fb.srv.Close)
	return fb
}

func (fb *fakeBackend) on(path string, status int, body string) {
	fb.onFunc(path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
}

func (fb *fakeBackend) onFunc(path string, h http.HandlerFunc) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.routes["/api"+path] = h
}

func (fb *fakeBackend) body(path string) map[string]any {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.bodies["/api"+path]
}

func (fb *fakeBackend) client() *backend.Client {
	return backend.New(fb.srv.URL+"/api", 2*time.Second, nil)
}

const loginOK = `{"tokens":{"access":"T1","refresh":"T2"},"user":{"id":7,"email":"a@b.com","role":"user"}}`

// --- In-memory cookie jar ---

// memJar implements session.CookieJar and replays written cookies the way
// a browser would on the next request.
type memJar struct {
	cookies map[string]string
}

func newMemJar() *memJar { return &memJar{cookies: map[string]string{}} }

func (j *memJar) Cookie(name string) (*http.Cookie, error) {
	v, ok := j.cookies[name]
	if !ok {
		return nil, http.ErrNoCookie
	}
	return &http.Cookie{Name: name, Value: v}, nil
}

func (j *memJar) SetCookie(c *http.Cookie) {
	if c.MaxAge < 0 {
		delete(j.cookies, c.Name)
		return
	}
	j.cookies[c.Name] = c.Value
}

func newCookieStore(jar session.CookieJar) session.Store {
	return session.NewCookieStore(jar, session.NewSignedCodec(testSecret, time.Hour), session.CookieOptions{TTL: time.Hour})
}

// failingStore fails every Load.
type failingStore struct{}

func (failingStore) Save(context.Context, session.Session) error { return errors.New("store down") }
func (failingStore) Load(context.Context) (session.Session, error) {
	return session.Session{}, errors.New("store down")
}
func (failingStore) Clear(context.Context) error { return errors.New("store down") }

// --- Service ---

func TestService_LoginPersistsSession(t *testing.T) {
	fb := newFakeBackend(t)
	fb.on("/auth/login/", http.StatusOK, loginOK)

	store := newCookieStore(newMemJar())
	svc := NewService(fb.client(), 0).WithStore(store)

	sess, err := svc.Login(context.Background(), Credentials{Email: " a@b.com ", Password: "x"})
	require.NoError(t, err)
	assert.Equal(t, "T1", sess.AccessToken)
	assert.Equal(t, "a@b.com", fb.body("/auth/login/")["email"])

	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "T1", loaded.AccessToken)
	assert.Equal(t, "T2", loaded.RefreshToken)
	assert.Equal(t, "7", loaded.User.ID.String())
}

func TestService_LoginFlatResponseFetchesProfile(t *testing.T) {
	fb := newFakeBackend(t)
	fb.on("/auth/login/", http.StatusOK, `{"access":"A","refresh":"R"}`)
	fb.onFunc("/auth/profile/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer A", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"id":"u-1","email":"a@b.com","role":"admin"}`))
	})

	sess, err := NewService(fb.client(), 0).Login(context.Background(), Credentials{Email: "a@b.com", Password: "x"})
	require.NoError(t, err)
	assert.True(t, sess.User.IsAdmin())
	assert.Equal(t, int32(2), fb.calls.Load())
}

func TestService_LoginErrors(t *testing.T) {
	t.Run("backend message verbatim", func(t *testing.T) {
		fb := newFakeBackend(t)
		fb.on("/auth/login/", http.StatusUnauthorized, `{"detail":"No active account found with the given credentials"}`)

		_, err := NewService(fb.client(), 0).Login(context.Background(), Credentials{Email: "a@b.com", Password: "x"})
		var ae *AuthError
		require.True(t, errors.As(err, &ae))
		assert.Equal(t, http.StatusUnauthorized, ae.Status)
		assert.Equal(t, "No active account found with the given credentials", ae.Message)
	})

	t.Run("validation before any call", func(t *testing.T) {
		fb := newFakeBackend(t)
		_, err := NewService(fb.client(), 0).Login(context.Background(), Credentials{Email: "a@b.com"})
		assert.Equal(t, http.StatusBadRequest, apperror.SafeCode(err))
		assert.Equal(t, "password is required", apperror.SafeMessage(err))
		assert.Zero(t, fb.calls.Load())
	})

	t.Run("unreachable is network error", func(t *testing.T) {
		fb := newFakeBackend(t)
		client := fb.client()
		fb.srv.Close()

		_, err := NewService(client, 0).Login(context.Background(), Credentials{Email: "a@b.com", Password: "x"})
		var ne *NetworkError
		require.True(t, errors.As(err, &ne))
		assert.False(t, ne.Timeout)
	})

	t.Run("missing tokens is network error", func(t *testing.T) {
		fb := newFakeBackend(t)
		fb.on("/auth/login/", http.StatusOK, `{"user":{"id":1}}`)
		_, err := NewService(fb.client(), 0).Login(context.Background(), Credentials{Email: "a@b.com", Password: "x"})
		assert.ErrorIs(t, err, errMalformedResponse)
	})
}

func TestService_RegisterSendsExtraFields(t *testing.T) {
	fb := newFakeBackend(t)
	fb.on("/auth/register/", http.StatusCreated, loginOK)

	in := RegisterInput{
		Email:           "a@b.com",
		Password:        "longenough",
		PasswordConfirm: "longenough",
		Username:        "ada",
		Extra:           map[string]any{"wallet_address": "0xabc"},
	}
	_, err := NewService(fb.client(), 0).Register(context.Background(), in)
	require.NoError(t, err)

	body := fb.body("/auth/register/")
	assert.Equal(t, "ada", body["username"])
	assert.Equal(t, "0xabc", body["wallet_address"])
	assert.NotContains(t, body, "first_name")
}

func TestService_RegisterPasswordMismatch(t *testing.T) {
	fb := newFakeBackend(t)
	in := RegisterInput{Email: "a@b.com", Password: "longenough", PasswordConfirm: "different"}
	_, err := NewService(fb.client(), 0).Register(context.Background(), in)
	assert.Equal(t, "passwords do not match", apperror.SafeMessage(err))
	assert.Zero(t, fb.calls.Load())
}

func TestService_RefreshReplacesAccessToken(t *testing.T) {
	fb := newFakeBackend(t)
	fb.on("/auth/login/", http.StatusOK, loginOK)
	fb.on("/auth/refresh-token/", http.StatusOK, `{"access":"T3"}`)

	store := newCookieStore(newMemJar())
	svc := NewService(fb.client(), 0).WithStore(store)
	_, err := svc.Login(context.Background(), Credentials{Email: "a@b.com", Password: "x"})
	require.NoError(t, err)

	access, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "T3", access)
	assert.Equal(t, "T2", fb.body("/auth/refresh-token/")["refresh"])

	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "T3", loaded.AccessToken)
	assert.Equal(t, "T2", loaded.RefreshToken, "refresh token kept when not rotated")
	assert.Equal(t, "7", loaded.User.ID.String())
}

func TestService_ConcurrentRefreshSharesOneCall(t *testing.T) {
	fb := newFakeBackend(t)
	fb.on("/auth/login/", http.StatusOK, loginOK)

	var hits atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	fb.onFunc("/auth/refresh-token/", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		once.Do(func() { close(started) })
		<-release
		_, _ = w.Write([]byte(`{"access":"T3"}`))
	})

	svc := NewService(fb.client(), 0)
	const clients = 6
	stores := make([]session.Store, clients)
	for i := range stores {
		stores[i] = newCookieStore(newMemJar())
		_, err := svc.WithStore(stores[i]).Login(context.Background(), Credentials{Email: "a@b.com", Password: "x"})
		require.NoError(t, err)
	}

	var ready, done sync.WaitGroup
	results := make([]string, clients)
	for i := range stores {
		ready.Add(1)
		done.Add(1)
		go func() {
			defer done.Done()
			ready.Done()
			access, err := svc.WithStore(stores[i]).Refresh(context.Background())
			assert.NoError(t, err)
			results[i] = access
		}()
	}
	ready.Wait()
	<-started
	// Let the remaining callers join the in-flight refresh.
	time.Sleep(50 * time.Millisecond)
	close(release)
	done.Wait()

	assert.Equal(t, int32(1), hits.Load())
	for i, access := range results {
		assert.Equal(t, "T3", access, "client %d", i)
	}
}

func TestService_RefreshWithoutSession(t *testing.T) {
	fb := newFakeBackend(t)
	_, err := NewService(fb.client(), 0).WithStore(newCookieStore(newMemJar())).Refresh(context.Background())
	var ae *AuthError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, http.StatusUnauthorized, ae.Status)
	assert.Zero(t, fb.calls.Load())
}

func TestService_LogoutClearsEvenWhenBackendFails(t *testing.T) {
	fb := newFakeBackend(t)
	fb.on("/auth/login/", http.StatusOK, loginOK)
	fb.on("/auth/logout/", http.StatusInternalServerError, `{"error":"boom"}`)

	store := newCookieStore(newMemJar())
	svc := NewService(fb.client(), 0).WithStore(store)
	_, err := svc.Login(context.Background(), Credentials{Email: "a@b.com", Password: "x"})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background()))
	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, loaded.IsZero())
}

func TestService_GetProfileIsCachedPerToken(t *testing.T) {
	fb := newFakeBackend(t)
	fb.on("/auth/login/", http.StatusOK, loginOK)
	fb.on("/auth/profile/", http.StatusOK, `{"user":{"id":7,"email":"a@b.com","role":"user","points":40}}`)
	fb.on("/auth/logout/", http.StatusOK, `{}`)

	svc := NewService(fb.client(), time.Minute).WithStore(newCookieStore(newMemJar()))
	_, err := svc.Login(context.Background(), Credentials{Email: "a@b.com", Password: "x"})
	require.NoError(t, err)

	for range 3 {
		user, err := svc.GetProfile(context.Background())
		require.NoError(t, err)
		assert.Contains(t, user.Profile, "points")
	}
	assert.Equal(t, int32(2), fb.calls.Load(), "one login plus one profile call")

	require.NoError(t, svc.Logout(context.Background()))
	_, ok := svc.profiles.Get("T1")
	assert.False(t, ok, "logout purges the cached profile")
}

// --- State ---

func TestState_HydrateTransitions(t *testing.T) {
	fb := newFakeBackend(t)
	ctx := context.Background()

	anon := NewState(NewService(fb.client(), 0), newCookieStore(newMemJar()), nil)
	assert.Equal(t, StatusUninitialized, anon.Snapshot().Status)

	var seen []Status
	unsubscribe := anon.Subscribe(func(s Snapshot) { seen = append(seen, s.Status) })
	require.NoError(t, anon.Hydrate(ctx))
	require.NoError(t, anon.Hydrate(ctx))
	unsubscribe()
	assert.Equal(t, []Status{StatusLoading, StatusAnonymous}, seen)
	assert.False(t, anon.IsAuthenticated())

	// A stored user hydrates as authenticated.
	jar := newMemJar()
	require.NoError(t, newCookieStore(jar).Save(ctx, session.Session{
		AccessToken: "T1", User: &session.User{ID: "7", Role: "user"},
	}))
	known := NewState(NewService(fb.client(), 0), newCookieStore(jar), nil)
	require.NoError(t, known.Hydrate(ctx))
	assert.True(t, known.IsAuthenticated())
	assert.Equal(t, "7", known.User().ID.String())
}

func TestState_HydrateFailureStaysLoading(t *testing.T) {
	fb := newFakeBackend(t)
	state := NewState(NewService(fb.client(), 0), failingStore{}, nil)

	require.Error(t, state.Hydrate(context.Background()))
	assert.Equal(t, StatusLoading, state.Snapshot().Status)
	assert.True(t, state.IsLoading())
}

func TestState_LoginFromAnyStateAndSurvivesCancel(t *testing.T) {
	fb := newFakeBackend(t)
	release := make(chan struct{})
	fb.onFunc("/auth/login/", func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write([]byte(loginOK))
	})

	jar := newMemJar()
	state := NewState(NewService(fb.client(), 0), newCookieStore(jar), nil)
	require.NoError(t, state.Hydrate(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := state.Login(ctx, Credentials{Email: "a@b.com", Password: "x"})
		done <- err
	}()

	require.Eventually(t, state.IsLoading, time.Second, 5*time.Millisecond)
	cancel()
	close(release)
	require.NoError(t, <-done)

	assert.False(t, state.IsLoading())
	assert.True(t, state.IsAuthenticated())
	assert.Equal(t, "T1", jar.cookies[session.AccessTokenCookie])
}

func TestState_OverlappingLoginsAgreeWithStore(t *testing.T) {
	fb := newFakeBackend(t)
	var next atomic.Int32
	fb.onFunc("/auth/login/", func(w http.ResponseWriter, r *http.Request) {
		id := next.Add(1)
		_, _ = fmt.Fprintf(w, `{"tokens":{"access":"A%d","refresh":"R%d"},"user":{"id":%d,"role":"user"}}`, id, id, id)
	})

	store := newCookieStore(newMemJar())
	state := NewState(NewService(fb.client(), 0), store, nil)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := state.Login(context.Background(), Credentials{Email: "a@b.com", Password: "x"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, loaded.User)
	assert.Equal(t, state.User().ID, loaded.User.ID, "store and state agree on the last login")
	assert.Equal(t, "A"+loaded.User.ID.String(), loaded.AccessToken)
	assert.False(t, state.IsLoading())
	assert.True(t, state.IsAuthenticated())
}

func TestState_LoginFailureKeepsStatus(t *testing.T) {
	fb := newFakeBackend(t)
	fb.on("/auth/login/", http.StatusBadRequest, `{"non_field_errors":["Unable to log in with provided credentials."]}`)

	state := NewState(NewService(fb.client(), 0), newCookieStore(newMemJar()), nil)
	require.NoError(t, state.Hydrate(context.Background()))

	_, err := state.Login(context.Background(), Credentials{Email: "a@b.com", Password: "x"})
	require.Error(t, err)
	assert.Equal(t, "Unable to log in with provided credentials.", formMessage(err))
	assert.Equal(t, StatusAnonymous, state.Snapshot().Status)
	assert.False(t, state.IsLoading())
}

func TestState_LogoutNavigatesHome(t *testing.T) {
	fb := newFakeBackend(t)
	fb.on("/auth/login/", http.StatusOK, loginOK)
	fb.on("/auth/logout/", http.StatusOK, `{}`)

	var navigated string
	jar := newMemJar()
	state := NewState(NewService(fb.client(), 0), newCookieStore(jar), func(p string) { navigated = p })
	_, err := state.Login(context.Background(), Credentials{Email: "a@b.com", Password: "x"})
	require.NoError(t, err)

	require.NoError(t, state.Logout(context.Background()))
	assert.Equal(t, StatusAnonymous, state.Snapshot().Status)
	assert.Equal(t, HomePath, navigated)
	assert.Empty(t, jar.cookies)

	loaded, err := newCookieStore(jar).Load(context.Background())
	require.NoError(t, err)
	assert.True(t, loaded.IsZero())
}

func TestState_UnsubscribedObserverNeverCalled(t *testing.T) {
	fb := newFakeBackend(t)
	state := NewState(NewService(fb.client(), 0), newCookieStore(newMemJar()), nil)

	calls := 0
	unsubscribe := state.Subscribe(func(Snapshot) { calls++ })
	unsubscribe()
	unsubscribe()
	require.NoError(t, state.Hydrate(context.Background()))
	assert.Zero(t, calls)
}

// --- Guard ---

func TestEvaluate(t *testing.T) {
	authed := Snapshot{Status: StatusAuthenticated, IsAuthenticated: true}
	anon := Snapshot{Status: StatusAnonymous}

	cases := []struct {
		name        string
		snap        Snapshot
		requireAuth bool
		want        Outcome
	}{
		{"uninitialized", Snapshot{}, true, OutcomeLoading},
		{"loading public", Snapshot{Status: StatusLoading}, false, OutcomeLoading},
		{"anonymous protected", anon, true, OutcomeDefer},
		{"anonymous public", anon, false, OutcomeRender},
		{"authenticated protected", authed, true, OutcomeRender},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Evaluate(tc.snap, tc.requireAuth))
		})
	}
}

func TestSafeRedirect(t *testing.T) {
	assert.Equal(t, "/courses/3?tab=1", SafeRedirect("/courses/3?tab=1", "/dashboard"))
	for _, bad := range []string{"", "https://evil.example", "//evil.example", `/\evil.example`, "dashboard"} {
		assert.Equal(t, "/dashboard", SafeRedirect(bad, "/dashboard"), bad)
	}
	assert.Equal(t, "/login?redirect=%2Fdashboard%3Ftab%3D1", LoginRedirect("/dashboard?tab=1"))
	assert.Equal(t, "/login", LoginRedirect("/"))
}

// newApp wires Provider, Guard and the auth routes on a fresh Echo.
func newApp(t *testing.T, fb *fakeBackend) *echo.Echo {
	t.Helper()
	e := echo.New()
	manager := session.NewManager(session.NewSignedCodec(testSecret, time.Hour), nil, session.CookieOptions{TTL: time.Hour})
	e.Use(NewProvider(manager, NewService(fb.client(), time.Minute)).Middleware())
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		var ae *apperror.AppError
		if errors.As(err, &ae) {
			_ = c.JSON(ae.Code, ae.Body())
			return
		}
		e.DefaultHTTPErrorHandler(err, c)
	}
	RegisterRoutes(e, NewHandler(nil))
	e.GET("/dashboard", func(c echo.Context) error {
		return c.String(http.StatusOK, "dashboard for "+GetUser(c).ID.String())
	}, Guard(true))
	e.GET("/api/admin/ping", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, RequireAdmin())
	return e
}

func serve(e *echo.Echo, req *http.Request, cookies []*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func TestAuthProxyLoginScenario(t *testing.T) {
	fb := newFakeBackend(t)
	fb.on("/auth/login/", http.StatusOK, loginOK)
	e := newApp(t, fb)

	rec := serve(e, jsonRequest(http.MethodPost, "/api/auth-proxy/login", `{"email":"a@b.com","password":"x"}`), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out struct {
		User            session.User `json:"user"`
		IsAuthenticated bool         `json:"isAuthenticated"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.True(t, out.IsAuthenticated)
	assert.Equal(t, "7", out.User.ID.String())

	cookies := rec.Result().Cookies()
	var access string
	for _, c := range cookies {
		if c.Name == session.AccessTokenCookie {
			access = c.Value
		}
	}
	assert.Equal(t, "T1", access)

	// The next request hydrates from the cookies.
	rec = serve(e, httptest.NewRequest(http.MethodGet, "/api/auth-proxy/session", nil), cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	var snap struct {
		Status          string       `json:"status"`
		User            session.User `json:"user"`
		IsAuthenticated bool         `json:"isAuthenticated"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, "authenticated", snap.Status)
	assert.True(t, snap.IsAuthenticated)
	assert.Equal(t, "7", snap.User.ID.String())

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/dashboard", nil), cookies)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dashboard for 7", rec.Body.String())
}

func TestAuthProxyLoginRelaysBackendError(t *testing.T) {
	fb := newFakeBackend(t)
	fb.on("/auth/login/", http.StatusUnauthorized, `{"detail":"Invalid credentials"}`)
	e := newApp(t, fb)

	rec := serve(e, jsonRequest(http.MethodPost, "/api/auth-proxy/login", `{"email":"a@b.com","password":"x"}`), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"detail":"Invalid credentials","error":"Invalid credentials"}`, rec.Body.String())
}

func TestAuthProxyLogout(t *testing.T) {
	fb := newFakeBackend(t)
	fb.on("/auth/login/", http.StatusOK, loginOK)
	fb.on("/auth/logout/", http.StatusOK, `{}`)
	e := newApp(t, fb)

	rec := serve(e, jsonRequest(http.MethodPost, "/api/auth-proxy/login", `{"email":"a@b.com","password":"x"}`), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(e, httptest.NewRequest(http.MethodPost, "/api/auth-proxy/logout", nil), rec.Result().Cookies())
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
	for _, c := range rec.Result().Cookies() {
		assert.Negative(t, c.MaxAge, c.Name)
	}
	assert.Equal(t, "T2", fb.body("/auth/logout/")["refresh"])
}

func TestGuard_DefersAnonymousToLogin(t *testing.T) {
	fb := newFakeBackend(t)
	e := newApp(t, fb)

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/dashboard?tab=1", nil), nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login?redirect=%2Fdashboard%3Ftab%3D1", rec.Header().Get("Location"))
	assert.Empty(t, rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Header.Set("HX-Request", "true")
	rec = serve(e, req, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "/login?redirect=%2Fdashboard", rec.Header().Get("HX-Redirect"))
}

func TestGuard_LoadingPlaceholderWhenStoreFails(t *testing.T) {
	fb := newFakeBackend(t)
	e := echo.New()
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(contextKeyState, NewState(NewService(fb.client(), 0), failingStore{}, nil))
			return next(c)
		}
	})
	e.GET("/dashboard", func(c echo.Context) error { return c.String(http.StatusOK, "secret") }, Guard(true))

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/dashboard", nil), nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "Loading")
	assert.NotContains(t, rec.Body.String(), "secret")
}

func TestRequireAdmin(t *testing.T) {
	fb := newFakeBackend(t)
	fb.on("/auth/login/", http.StatusOK, loginOK)
	e := newApp(t, fb)

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/api/admin/ping", nil), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	login := serve(e, jsonRequest(http.MethodPost, "/api/auth-proxy/login", `{"email":"a@b.com","password":"x"}`), nil)
	rec = serve(e, httptest.NewRequest(http.MethodGet, "/api/admin/ping", nil), login.Result().Cookies())
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLoginForm_RedirectsToSafeTarget(t *testing.T) {
	fb := newFakeBackend(t)
	fb.on("/auth/login/", http.StatusOK, loginOK)
	e := newApp(t, fb)

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("email=a%40b.com&password=x&redirect=%2Fcourses%2F3"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := serve(e, req, nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/courses/3", rec.Header().Get("Location"))

	req = httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("email=a%40b.com&password=x&redirect=https%3A%2F%2Fevil.example"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec = serve(e, req, nil)
	assert.Equal(t, LandingPath, rec.Header().Get("Location"))
}

func TestLoginForm_ShowsBackendMessage(t *testing.T) {
	fb := newFakeBackend(t)
	fb.on("/auth/login/", http.StatusUnauthorized, `{"detail":"Account <locked>"}`)
	e := newApp(t, fb)

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("email=a%40b.com&password=x"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := serve(e, req, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Account &lt;locked&gt;")
	assert.Contains(t, rec.Body.String(), `value="a@b.com"`)
}
