package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
)

// CookieStore keeps the session in three cookies: the two tokens (HttpOnly)
// and the encoded user record the edge gate reads. Cookies written during a
// request are visible to Load on the same request. A CookieStore is safe
// for concurrent use; each Save, Load and Clear sees all three cookies
// from one write.
type CookieStore struct {
	jar   CookieJar
	codec Codec
	opts  CookieOptions

	mu      sync.Mutex
	written map[string]*http.Cookie
}

// NewCookieStore binds a cookie store to one request.
func NewCookieStore(jar CookieJar, codec Codec, opts CookieOptions) *CookieStore {
	return &CookieStore{
		jar:     jar,
		codec:   codec,
		opts:    opts,
		written: make(map[string]*http.Cookie),
	}
}

// Save writes the tokens and the encoded user.
func (s *CookieStore) Save(_ context.Context, sess Session) error {
	return s.save(sess, "")
}

// Load returns the session held in the cookies. An undecodable user cookie
// yields the zero session.
func (s *CookieStore) Load(_ context.Context) (Session, error) {
	sess, _ := s.load()
	return sess, nil
}

// Clear expires every auth cookie.
func (s *CookieStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
	return nil
}

func (s *CookieStore) clearLocked() {
	for _, name := range AuthCookies {
		s.expire(name)
	}
}

// save writes all three cookies, embedding sessionID in the user cookie.
func (s *CookieStore) save(sess Session, sessionID string) error {
	if err := sess.validate(); err != nil {
		return err
	}
	if sess.User == nil {
		return s.Clear(context.Background())
	}

	encoded, err := s.codec.Encode(sess.User, sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(AccessTokenCookie, sess.AccessToken, true)
	s.set(RefreshTokenCookie, sess.RefreshToken, true)
	// Readable by scripts so the UI can show the user without a round trip.
	s.set(UserCookie, encoded, false)
	return nil
}

// load decodes the user cookie and pairs it with the token cookies.
func (s *CookieStore) load() (Session, *Claims) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw := s.value(UserCookie)
	if raw == "" {
		return Session{}, nil
	}
	claims, err := s.codec.Decode(raw)
	if err != nil {
		if !errors.Is(err, ErrInvalidCookie) {
			slog.Warn("decoding user cookie", slog.Any("error", err))
		}
		return Session{}, nil
	}
	return Session{
		AccessToken:  s.value(AccessTokenCookie),
		RefreshToken: s.value(RefreshTokenCookie),
		User:         claims.User,
	}, claims
}

// value returns the cookie value, preferring what this request wrote.
// Callers hold mu, as do callers of set and expire.
func (s *CookieStore) value(name string) string {
	if c, ok := s.written[name]; ok {
		if c.MaxAge < 0 {
			return ""
		}
		return c.Value
	}
	c, err := s.jar.Cookie(name)
	if err != nil || c == nil {
		return ""
	}
	return c.Value
}

// set writes a cookie, or expires it when value is empty.
func (s *CookieStore) set(name, value string, httpOnly bool) {
	if value == "" {
		s.expire(name)
		return
	}
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   s.opts.Domain,
		HttpOnly: httpOnly,
		Secure:   s.opts.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.opts.TTL.Seconds()),
	}
	s.written[name] = c
	s.jar.SetCookie(c)
}

// expire removes a cookie by setting MaxAge to -1.
func (s *CookieStore) expire(name string) {
	c := &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   s.opts.Domain,
		HttpOnly: name != UserCookie,
		Secure:   s.opts.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	}
	s.written[name] = c
	s.jar.SetCookie(c)
}
