// Package session keeps the signed-in user and token of each browser
// partition and drives the login/logout lifecycle.
package session

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/agrilink/storefront/internal/client"
)

// Roles known to the storefront.
const (
	RoleCustomer = "CUSTOMER"
	RoleFarmer   = "FARMER"
	RoleManager  = "MANAGER"
)

var (
	// ErrNotAuthenticated is returned by operations that need a signed-in user.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrInvalidCredentials is returned when the auth service rejects a login.
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// FieldError is a validation failure of a single form field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// User is the cached copy of the signed-in account.
type User struct {
	ID    string   `json:"id"`
	Email string   `json:"email"`
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
}

// HasRole reports whether the user carries role. Both "FARMER" and
// "ROLE_FARMER" spellings are accepted.
func (u *User) HasRole(role string) bool {
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		r = strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(r)), "ROLE_")
		if r == role {
			return true
		}
	}
	return false
}

func userFromClient(u client.User) *User {
	return &User{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.Name,
		Roles: append([]string(nil), u.Roles...),
	}
}

// Session is the authentication state of a browser partition. The zero value
// is a guest session.
type Session struct {
	Partition string
	Token     string
	User      *User
	// ExpiresAt is zero when the token carries no expiry.
	ExpiresAt time.Time
}

// IsAuthenticated reports whether the session has a user and token.
func (s Session) IsAuthenticated() bool {
	return s.Token != "" && s.User != nil
}

// Context returns ctx scoped to the session so upstream clients send its
// bearer token.
func (s Session) Context(ctx context.Context) context.Context {
	return client.WithSession(ctx, s.Partition, s.Token)
}
