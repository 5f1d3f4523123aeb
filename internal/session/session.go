// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package session carries the authenticated user through service calls.
// Users are owned by an external auth provider; this package only verifies
// the bearer tokens it issues.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNotAuthenticated is returned by operations that need a logged-in user.
var ErrNotAuthenticated = errors.New("not authenticated")

// User identifies the caller.
type User struct {
	ID          string `json:"id" yaml:"id"`
	DisplayName string `json:"display_name" yaml:"display_name"`
	Email       string `json:"email,omitempty" yaml:"email,omitempty"`
}

// Session is the current-user view handed to services. The zero value is
// anonymous.
type Session struct {
	user *User
}

// Anonymous returns a session with no user.
func Anonymous() Session { return Session{} }

// ForUser returns a session for u. An empty ID yields an anonymous session.
func ForUser(u User) Session {
	if u.ID == "" {
		return Session{}
	}
	return Session{user: &u}
}

// CurrentUser returns the logged-in user, if any.
func (s Session) CurrentUser() (User, bool) {
	if s.user == nil {
		return User{}, false
	}
	return *s.user, true
}

// Require returns the logged-in user or ErrNotAuthenticated.
func (s Session) Require() (User, error) {
	u, ok := s.CurrentUser()
	if !ok {
		return User{}, ErrNotAuthenticated
	}
	return u, nil
}

type contextKey struct{}

// WithUser stores u in ctx.
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, contextKey{}, u)
}

// FromContext returns the session carried by ctx; anonymous when none.
func FromContext(ctx context.Context) Session {
	u, ok := ctx.Value(contextKey{}).(User)
	if !ok {
		return Anonymous()
	}
	return ForUser(u)
}

// Claims are the token claims issued by the auth provider.
type Claims struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 bearer tokens.
type Verifier struct {
	secret []byte
	issuer string
}

// NewVerifier returns a verifier for tokens signed with secret. A non-empty
// issuer must match the iss claim.
func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

// Verify parses token and returns its user. Expired, malformed or
// wrongly-signed tokens fail with an error wrapping ErrNotAuthenticated.
func (v *Verifier) Verify(token string) (User, error) {
	if len(v.secret) == 0 {
		return User{}, fmt.Errorf("no signing secret configured: %w", ErrNotAuthenticated)
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return User{}, fmt.Errorf("%w: %w", ErrNotAuthenticated, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return User{}, fmt.Errorf("invalid token: %w", ErrNotAuthenticated)
	}
	return User{ID: claims.Subject, DisplayName: claims.Name, Email: claims.Email}, nil
}

// Issue signs a token for u. Used by tests and the CLI's local tooling; in
// production tokens come from the auth provider.
func (v *Verifier) Issue(u User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Name:  u.DisplayName,
		Email: u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}
