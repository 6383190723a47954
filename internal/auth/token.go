package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token kinds.
const (
	KindUser  = "user"
	KindAgent = "agent"
)

const issuer = "sitewatch"

// ErrInvalidToken is returned for tokens that fail signature, expiry or
// session checks.
var ErrInvalidToken = errors.New("invalid token")

// Claims are carried by every token. ID is the session (or agent token) ID
// and Subject is the user or agent ID.
type Claims struct {
	Kind  string `json:"kind"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 tokens.
type Issuer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewIssuer returns an Issuer signing with key. Tokens of KindUser expire
// after ttl; agent tokens do not expire.
func NewIssuer(key []byte, ttl time.Duration) *Issuer {
	return &Issuer{key: key, ttl: ttl, now: time.Now}
}

// Issue signs a new token for subject and returns it with its claims.
func (i *Issuer) Issue(kind, subject, email string) (string, *Claims, error) {
	if subject == "" {
		return "", nil, fmt.Errorf("subject required")
	}
	if len(i.key) == 0 {
		return "", nil, fmt.Errorf("empty signing key")
	}
	now := i.now().UTC().Truncate(time.Second)
	claims := &Claims{
		Kind:  kind,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.New().String(),
			Subject:  subject,
			Issuer:   issuer,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if kind == KindUser {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(i.ttl))
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return "", nil, err
	}
	return s, claims, nil
}

// Parse verifies the token's signature, issuer and expiry.
func (i *Issuer) Parse(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return i.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.ID == "" || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
