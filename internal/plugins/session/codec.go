package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidCookie is returned when the user cookie cannot be decoded or
// fails verification. Callers treat it as "not logged in".
var ErrInvalidCookie = errors.New("session: invalid user cookie")

// Claims is what the user cookie carries.
type Claims struct {
	User *User

	// SessionID references the server-side record. Empty for cookie-only
	// sessions.
	SessionID string
}

// Codec turns a user record into the user cookie value and back.
type Codec interface {
	Encode(user *User, sessionID string) (string, error)
	Decode(value string) (*Claims, error)
}

// userClaims is the JWT payload of the signed user cookie.
type userClaims struct {
	User User `json:"user"`
	jwt.RegisteredClaims
}

// SignedCodec encodes the user cookie as an HS256 JWT so the edge gate can
// trust the role it reads from it.
type SignedCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedCodec creates a codec signing with secret. Cookies expire after ttl.
func NewSignedCodec(secret string, ttl time.Duration) *SignedCodec {
	return &SignedCodec{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Encode signs the user record together with the session id.
func (c *SignedCodec) Encode(user *User, sessionID string) (string, error) {
	if user == nil {
		return "", errors.New("session: cannot encode nil user")
	}
	now := c.now()
	claims := userClaims{
		User: *user,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("signing user cookie: %w", err)
	}
	return signed, nil
}

// Decode verifies the signature and expiry and returns the claims.
func (c *SignedCodec) Decode(value string) (*Claims, error) {
	if value == "" {
		return nil, ErrInvalidCookie
	}
	token, err := jwt.ParseWithClaims(value, &userClaims{}, func(*jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCookie, err)
	}
	claims, ok := token.Claims.(*userClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidCookie
	}
	user := claims.User
	return &Claims{User: &user, SessionID: claims.ID}, nil
}

// PlainCodec reads and writes the legacy URL-escaped JSON user cookie. The
// cookie is client-writable, so anything read from it is unverified. A
// session id rides along as an extra "sid" field; readers that only know
// the user record ignore it.
type PlainCodec struct{}

// plainSessionField is the user cookie field holding the session id.
const plainSessionField = "sid"

// Encode writes the user record, plus sessionID when set, as escaped JSON.
func (PlainCodec) Encode(user *User, sessionID string) (string, error) {
	if user == nil {
		return "", errors.New("session: cannot encode nil user")
	}
	record := *user
	if sessionID != "" {
		sid, err := json.Marshal(sessionID)
		if err != nil {
			return "", fmt.Errorf("marshaling session id: %w", err)
		}
		record.Profile = make(map[string]json.RawMessage, len(user.Profile)+1)
		for k, v := range user.Profile {
			record.Profile[k] = v
		}
		record.Profile[plainSessionField] = sid
	}
	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("marshaling user cookie: %w", err)
	}
	return url.QueryEscape(string(data)), nil
}

// Decode accepts raw or escaped JSON.
func (PlainCodec) Decode(value string) (*Claims, error) {
	if value == "" {
		return nil, ErrInvalidCookie
	}
	if !strings.HasPrefix(value, "{") {
		unescaped, err := url.QueryUnescape(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCookie, err)
		}
		value = unescaped
	}
	var user User
	if err := json.Unmarshal([]byte(value), &user); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCookie, err)
	}
	if user.ID == "" {
		return nil, fmt.Errorf("%w: user record without id", ErrInvalidCookie)
	}

	claims := &Claims{User: &user}
	if raw, ok := user.Profile[plainSessionField]; ok {
		if err := json.Unmarshal(raw, &claims.SessionID); err != nil {
			return nil, fmt.Errorf("%w: session id: %v", ErrInvalidCookie, err)
		}
		delete(user.Profile, plainSessionField)
		if len(user.Profile) == 0 {
			user.Profile = nil
		}
	}
	return claims, nil
}
