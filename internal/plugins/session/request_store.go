package session

import (
	"context"

	"github.com/google/uuid"
)

// RequestStore pairs the cookies of one request with the Redis record the
// signed user cookie points at. Redis is authoritative: a cookie whose
// record is gone loads as the zero session.
type RequestStore struct {
	cookies *CookieStore
	records *RedisStore
	newID   func() string
}

// NewRequestStore combines a request's cookie store with the record store.
func NewRequestStore(cookies *CookieStore, records *RedisStore) *RequestStore {
	return &RequestStore{
		cookies: cookies,
		records: records,
		newID:   func() string { return uuid.New().String() },
	}
}

// Save writes the record first, then the cookies that reference it. An
// existing session id is reused so refreshes keep the same record.
func (s *RequestStore) Save(ctx context.Context, sess Session) error {
	if err := sess.validate(); err != nil {
		return err
	}
	if sess.User == nil {
		return s.Clear(ctx)
	}

	id := s.currentID()
	if id == "" {
		id = s.newID()
	}
	if err := s.records.Put(ctx, id, sess); err != nil {
		return err
	}
	return s.cookies.save(sess, id)
}

// Load resolves the cookie's session id against Redis. A verified user
// cookie without a live record is expired on the spot, otherwise the edge
// gate would keep treating the client as signed in.
func (s *RequestStore) Load(ctx context.Context) (Session, error) {
	_, claims := s.cookies.load()
	if claims == nil {
		return Session{}, nil
	}
	if claims.SessionID == "" {
		return Session{}, s.cookies.Clear(ctx)
	}
	sess, found, err := s.records.Get(ctx, claims.SessionID)
	if err != nil {
		return Session{}, err
	}
	if !found {
		return Session{}, s.cookies.Clear(ctx)
	}
	return sess, nil
}

// Clear deletes the record and expires the cookies. Cookies are cleared even
// when Redis fails.
func (s *RequestStore) Clear(ctx context.Context) error {
	id := s.currentID()
	_ = s.cookies.Clear(ctx)
	if id == "" {
		return nil
	}
	return s.records.Delete(ctx, id)
}

// currentID returns the session id carried by a valid user cookie.
func (s *RequestStore) currentID() string {
	_, claims := s.cookies.load()
	if claims == nil {
		return ""
	}
	return claims.SessionID
}
