package session

import (
	"context"
	"net/http"
	"time"
)

// Cookie names shared with the edge gate and the proxy routes.
const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
	UserCookie         = "user"
)

// AuthCookies lists every cookie Clear removes.
var AuthCookies = []string{AccessTokenCookie, RefreshTokenCookie, UserCookie}

// Store persists the session of one client. Save writes tokens and user
// together, Load returns the last saved session or the zero session, and
// Clear removes every auth-related key.
type Store interface {
	Save(ctx context.Context, s Session) error
	Load(ctx context.Context) (Session, error)
	Clear(ctx context.Context) error
}

// CookieJar is the request/response pair a cookie-backed store works on.
// echo.Context satisfies it.
type CookieJar interface {
	Cookie(name string) (*http.Cookie, error)
	SetCookie(cookie *http.Cookie)
}

// CookieOptions holds the attributes written on every auth cookie.
type CookieOptions struct {
	TTL    time.Duration
	Secure bool
	Domain string
}

// Manager builds the per-request store for the configured backend.
type Manager struct {
	codec Codec
	redis *RedisStore
	opts  CookieOptions
}

// NewManager creates a manager. A nil RedisStore selects cookie-only sessions.
func NewManager(codec Codec, redis *RedisStore, opts CookieOptions) *Manager {
	return &Manager{codec: codec, redis: redis, opts: opts}
}

// Codec returns the user cookie codec, shared with the edge gate.
func (m *Manager) Codec() Codec {
	return m.codec
}

// ForRequest returns the store bound to one request's cookies.
func (m *Manager) ForRequest(jar CookieJar, secure bool) Store {
	opts := m.opts
	opts.Secure = opts.Secure || secure
	cookies := NewCookieStore(jar, m.codec, opts)
	if m.redis == nil {
		return cookies
	}
	return NewRequestStore(cookies, m.redis)
}
