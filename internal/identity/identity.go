// Package identity supplies the current user to the engine. The engine
// treats the user as opaque context: a stable id, a display name, and
// nothing else. Two providers exist: a static one configured directly, and
// a token provider that verifies an HS256 bearer token.
package identity

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// User is the identity attached to every mutation and notification.
type User struct {
	ID   string
	Name string
}

// Provider resolves the current user.
type Provider interface {
	CurrentUser() (User, error)
}

// ErrNoUser is returned when a provider cannot resolve any user.
var ErrNoUser = errors.New("no current user")

// Static is a provider with a fixed user, used by tests and by local
// configurations that skip token auth.
type Static struct {
	User User
}

// CurrentUser returns the configured user.
func (s Static) CurrentUser() (User, error) {
	if s.User.ID == "" {
		return User{}, ErrNoUser
	}
	return s.User, nil
}

// tokenClaims is the claim shape Slate tokens carry: registered subject plus
// a display name.
type tokenClaims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// TokenProvider verifies an HS256 token once and serves the user it names.
type TokenProvider struct {
	user User
}

// FromToken parses and verifies a bearer token with the given secret.
// The subject claim becomes the user id. Expired or malformed tokens fail.
func FromToken(token string, secret []byte) (*TokenProvider, error) {
	var claims tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}

	name := claims.Name
	if name == "" {
		name = claims.Subject
	}

	return &TokenProvider{user: User{ID: claims.Subject, Name: name}}, nil
}

// CurrentUser returns the user the verified token named.
func (p *TokenProvider) CurrentUser() (User, error) {
	return p.user, nil
}

// IssueToken signs an HS256 token for the given user. Used by `slate init`
// to mint local development tokens.
func IssueToken(user User, secret []byte) (string, error) {
	claims := tokenClaims{
		Name: user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: user.ID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
