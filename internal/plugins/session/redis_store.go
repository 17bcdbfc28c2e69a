package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// sessionKeyPrefix is the Redis key prefix for session records.
const sessionKeyPrefix = "session:"

// record is the JSON value stored per session id. Tokens are sealed.
type record struct {
	AccessToken  string    `json:"access_token,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	User         *User     `json:"user,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RedisStore keeps session records keyed by session id. Each record is a
// single value written with one SET, so tokens and user never diverge.
type RedisStore struct {
	rdb    *redis.Client
	ttl    time.Duration
	sealer *sealer
}

// NewRedisStore creates a store whose records expire after ttl. secret keys
// the at-rest token sealing.
func NewRedisStore(rdb *redis.Client, secret string, ttl time.Duration) (*RedisStore, error) {
	s, err := newSealer(secret)
	if err != nil {
		return nil, err
	}
	return &RedisStore{rdb: rdb, ttl: ttl, sealer: s}, nil
}

// Put writes the whole record for sessionID.
func (s *RedisStore) Put(ctx context.Context, sessionID string, sess Session) error {
	if err := sess.validate(); err != nil {
		return err
	}
	access, err := s.sealer.seal(sess.AccessToken)
	if err != nil {
		return err
	}
	refresh, err := s.sealer.seal(sess.RefreshToken)
	if err != nil {
		return err
	}

	data, err := json.Marshal(record{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         sess.User,
		UpdatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}

	if err := s.rdb.Set(ctx, sessionKeyPrefix+sessionID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("storing session in Redis: %w", err)
	}
	return nil
}

// Get returns the record for sessionID. found is false when the record is
// missing or expired.
func (s *RedisStore) Get(ctx context.Context, sessionID string) (sess Session, found bool, err error) {
	data, err := s.rdb.Get(ctx, sessionKeyPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, fmt.Errorf("reading session from Redis: %w", err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Session{}, false, fmt.Errorf("unmarshaling session: %w", err)
	}
	access, err := s.sealer.open(rec.AccessToken)
	if err != nil {
		return Session{}, false, err
	}
	refresh, err := s.sealer.open(rec.RefreshToken)
	if err != nil {
		return Session{}, false, err
	}
	return Session{AccessToken: access, RefreshToken: refresh, User: rec.User}, true, nil
}

// Delete removes the record, revoking the session server-side.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.rdb.Del(ctx, sessionKeyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("deleting session from Redis: %w", err)
	}
	return nil
}
