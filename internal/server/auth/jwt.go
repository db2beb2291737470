// Package auth implements the credential codec: signed, expiring JWTs that
// carry a subject and, for access tokens, an authorization snapshot.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/tokenauth/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Kind discriminates access tokens from refresh tokens. It travels in the
// "type" claim.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// PermissionClaim is one (resource, action) pair as serialized in a token.
type PermissionClaim struct {
	Resource string `json:"resource"`
	Action   string `json:"action"`
}

// Snapshot is the authorization state captured when an access token is
// minted. It is never refreshed in place; only a new token carries new state.
type Snapshot struct {
	Roles       []string
	Permissions []PermissionClaim
	IsSuperuser bool
}

// Claims is the JWT payload. Roles, Permissions and IsSuperuser are only
// ever set on access tokens.
type Claims struct {
	jwt.RegisteredClaims
	Type        Kind              `json:"type"`
	Roles       []string          `json:"roles,omitempty"`
	Permissions []PermissionClaim `json:"permissions,omitempty"`
	IsSuperuser bool              `json:"is_superuser,omitempty"`
}

// Credential is a decoded and verified token.
type Credential struct {
	Subject   string
	Kind      Kind
	IssuedAt  time.Time
	ExpiresAt time.Time
	// Snapshot is nil for refresh tokens.
	Snapshot *Snapshot
}

// Codec signs and verifies tokens with a single HS256 secret. It holds no
// mutable state and is safe for concurrent use.
type Codec struct {
	secret []byte
	now    func() time.Time
}

// Option customizes a Codec.
type Option func(*Codec)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// NewCodec builds a Codec. The secret is copied, so later changes to the
// caller's slice have no effect.
func NewCodec(secret []byte, opts ...Option) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: empty signing secret")
	}
	c := &Codec{
		secret: append([]byte(nil), secret...),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Issue mints a token of the given kind for subject, valid for ttl.
// The snapshot is embedded only into access tokens. Errors are
// configuration faults, never caused by the caller's input.
func (c *Codec) Issue(subject string, kind Kind, snapshot *Snapshot, ttl time.Duration) (string, error) {
	if kind != KindAccess && kind != KindRefresh {
		return "", fmt.Errorf("%w: unknown token kind %q", common.ErrSigning, kind)
	}

	now := c.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Type: kind,
	}
	if kind == KindAccess && snapshot != nil {
		claims.Roles = snapshot.Roles
		claims.Permissions = snapshot.Permissions
		claims.IsSuperuser = snapshot.IsSuperuser
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrSigning, err)
	}
	return tokenString, nil
}

// Decode verifies tokenString and returns its credential. Bad signature,
// malformed payload, expiry, wrong kind and missing subject all yield
// common.ErrInvalidToken and nothing else, so callers cannot tell them apart.
func (c *Codec) Decode(tokenString string, want Kind) (*Credential, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !token.Valid {
		return nil, common.ErrInvalidToken
	}
	if claims.Type != want || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}

	cred := &Credential{
		Subject:   claims.Subject,
		Kind:      claims.Type,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		cred.IssuedAt = claims.IssuedAt.Time
	}
	if want == KindAccess {
		cred.Snapshot = &Snapshot{
			Roles:       nonNil(claims.Roles),
			Permissions: nonNil(claims.Permissions),
			IsSuperuser: claims.IsSuperuser,
		}
	}
	return cred, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
