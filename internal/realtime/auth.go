// Package realtime pushes scoped registration and call state to WebSocket
// clients, deduplicated by snapshot content hash.
package realtime

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v4"
)

// RoleSuperAdmin may subscribe to any profile and domain. Every other role
// is pinned to its own tenant's domain.
const RoleSuperAdmin = "super_admin"

// ErrScopeViolation is returned when a client requests a domain outside its
// token's scope.
var ErrScopeViolation = errors.New("requested domain is outside the token scope")

// Claims is the access-token payload.
type Claims struct {
	jwt.RegisteredClaims
	Role     string `json:"role"`
	TenantID int64  `json:"tenantId"`
	Domain   string `json:"domain"`
}

// Scope is a verified client's access scope.
type Scope struct {
	SuperAdmin bool
	TenantID   int64
	Domain     string
}

// RoomDomain resolves the domain a client's room is pinned to. Super-admin
// scopes take the requested domain as-is; everyone else is fixed to their
// own domain and may not request another.
func (s Scope) RoomDomain(requested string) (string, error) {
	if s.SuperAdmin {
		return requested, nil
	}
	if requested != "" && requested != s.Domain {
		return "", ErrScopeViolation
	}
	return s.Domain, nil
}

// Authenticator verifies access tokens.
type Authenticator struct {
	secret []byte
}

// NewAuthenticator creates an Authenticator over an HMAC secret.
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// Verify parses and validates a token and returns its scope.
func (a *Authenticator) Verify(token string) (Scope, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return Scope{}, fmt.Errorf("verifying token: %w", err)
	}
	return Scope{
		SuperAdmin: claims.Role == RoleSuperAdmin,
		TenantID:   claims.TenantID,
		Domain:     claims.Domain,
	}, nil
}

// IssueToken mints a signed token for the given claims. Used by the login
// path and by tests.
func (a *Authenticator) IssueToken(claims Claims) (string, error) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return token, nil
}
