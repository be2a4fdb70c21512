package session

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/agrilink/storefront/internal/client"
	"github.com/agrilink/storefront/internal/events"
	"github.com/agrilink/storefront/internal/storage/local"
)

// Logout reasons carried by events.LoggedOut.
const (
	ReasonUser         = "user"
	ReasonExpired      = "expired"
	ReasonUnauthorized = "unauthorized"
)

// Storage is the subset of the partitioned local store used for sessions.
type Storage interface {
	Get(ctx context.Context, partition, key string) ([]byte, error)
	Set(ctx context.Context, partition, key string, value []byte) error
	Delete(ctx context.Context, partition string, keys ...string) error
	GetJSON(ctx context.Context, partition, key string, v any) error
	SetJSON(ctx context.Context, partition, key string, v any) error
}

// Authenticator is the auth service.
type Authenticator interface {
	Login(ctx context.Context, req client.LoginRequest) (*client.AuthResponse, error)
	Register(ctx context.Context, req client.RegisterRequest) (*client.AuthResponse, error)
	Me(ctx context.Context) (*client.User, error)
}

// Manager owns the session of every browser partition.
type Manager struct {
	store Storage
	auth  Authenticator
	bus   *events.Bus
	lg    *zap.Logger
	now   func() time.Time
}

// NewManager creates a session Manager.
func NewManager(store Storage, auth Authenticator, bus *events.Bus, lg *zap.Logger) *Manager {
	return &Manager{
		store: store,
		auth:  auth,
		bus:   bus,
		lg:    lg,
		now:   time.Now,
	}
}

// Login authenticates against the auth service and persists the token and
// user in the partition.
func (m *Manager) Login(ctx context.Context, partition, email, password string) (Session, error) {
	email = strings.TrimSpace(email)
	if err := validateEmail(email); err != nil {
		return Session{}, err
	}
	if password == "" {
		return Session{}, &FieldError{Field: "password", Message: "is required"}
	}

	resp, err := m.auth.Login(ctx, client.LoginRequest{Email: email, Password: password})
	if err != nil {
		if errors.Is(err, client.ErrUnauthorized) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, errors.Wrap(err, "login")
	}
	return m.establish(ctx, partition, resp)
}

// RegisterRequest is a sign-up form.
type RegisterRequest struct {
	Name     string
	Email    string
	Password string
	Phone    string
	Role     string
}

// Register creates an account. When the auth service returns a token the
// partition is signed in immediately; otherwise a guest Session is returned.
func (m *Manager) Register(ctx context.Context, partition string, req RegisterRequest) (Session, error) {
	req.Email = strings.TrimSpace(req.Email)
	if strings.TrimSpace(req.Name) == "" {
		return Session{}, &FieldError{Field: "name", Message: "is required"}
	}
	if err := validateEmail(req.Email); err != nil {
		return Session{}, err
	}
	if len(req.Password) < 8 {
		return Session{}, &FieldError{Field: "password", Message: "must be at least 8 characters"}
	}
	role := strings.ToUpper(strings.TrimSpace(req.Role))
	switch role {
	case "":
		role = RoleCustomer
	case RoleCustomer, RoleFarmer:
	default:
		return Session{}, &FieldError{Field: "role", Message: "must be CUSTOMER or FARMER"}
	}

	resp, err := m.auth.Register(ctx, client.RegisterRequest{
		Name:     strings.TrimSpace(req.Name),
		Email:    req.Email,
		Password: req.Password,
		Phone:    strings.TrimSpace(req.Phone),
		Role:     role,
	})
	if err != nil {
		return Session{}, errors.Wrap(err, "register")
	}
	if resp.Token == "" {
		return Session{Partition: partition}, nil
	}
	return m.establish(ctx, partition, resp)
}

func validateEmail(email string) error {
	if email == "" {
		return &FieldError{Field: "email", Message: "is required"}
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return &FieldError{Field: "email", Message: "is not a valid address"}
	}
	return nil
}

func (m *Manager) establish(ctx context.Context, partition string, resp *client.AuthResponse) (Session, error) {
	if resp.Token == "" {
		return Session{}, errors.New("auth service returned no token")
	}
	user := userFromClient(resp.User)
	claims := parseClaims(resp.Token)
	if len(user.Roles) == 0 && claims != nil {
		user.Roles = claims.Roles
	}

	if err := m.store.Set(ctx, partition, local.KeyToken, []byte(resp.Token)); err != nil {
		return Session{}, errors.Wrap(err, "store token")
	}
	if err := m.store.SetJSON(ctx, partition, local.KeyUser, user); err != nil {
		return Session{}, errors.Wrap(err, "store user")
	}

	m.lg.Info("Session established",
		zap.String("partition", partition),
		zap.String("user_id", user.ID),
		zap.Strings("roles", user.Roles),
	)
	m.bus.Publish(events.LoggedIn{Partition: partition, UserID: user.ID})

	return Session{
		Partition: partition,
		Token:     resp.Token,
		User:      user,
		ExpiresAt: claims.expiry(),
	}, nil
}

// Current returns the session stored in the partition. A missing or expired
// token yields a guest Session; an expired token is also cleared.
func (m *Manager) Current(ctx context.Context, partition string) (Session, error) {
	guest := Session{Partition: partition}

	raw, err := m.store.Get(ctx, partition, local.KeyToken)
	if err != nil {
		if errors.Is(err, local.ErrNotFound) {
			return guest, nil
		}
		return guest, errors.Wrap(err, "load token")
	}
	token := string(raw)

	var user User
	if err := m.store.GetJSON(ctx, partition, local.KeyUser, &user); err != nil {
		if errors.Is(err, local.ErrNotFound) {
			return guest, nil
		}
		return guest, errors.Wrap(err, "load user")
	}

	claims := parseClaims(token)
	exp := claims.expiry()
	if !exp.IsZero() && !m.now().Before(exp) {
		if err := m.Logout(ctx, partition, ReasonExpired); err != nil {
			return guest, err
		}
		return guest, nil
	}
	if len(user.Roles) == 0 && claims != nil {
		user.Roles = claims.Roles
	}

	return Session{
		Partition: partition,
		Token:     token,
		User:      &user,
		ExpiresAt: exp,
	}, nil
}

// Refresh reloads the user from the auth service and publishes
// events.ProfileUpdated.
func (m *Manager) Refresh(ctx context.Context, partition string) (*User, error) {
	s, err := m.Current(ctx, partition)
	if err != nil {
		return nil, err
	}
	if !s.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}

	u, err := m.auth.Me(s.Context(ctx))
	if err != nil {
		return nil, errors.Wrap(err, "fetch current user")
	}
	user := userFromClient(*u)
	if len(user.Roles) == 0 {
		user.Roles = s.User.Roles
	}
	if err := m.store.SetJSON(ctx, partition, local.KeyUser, user); err != nil {
		return nil, errors.Wrap(err, "store user")
	}

	m.bus.Publish(events.ProfileUpdated{Partition: partition, UserID: user.ID})
	return user, nil
}

// Logout clears the token and user of the partition and publishes
// events.LoggedOut. Guest data such as the guest cart is kept.
func (m *Manager) Logout(ctx context.Context, partition, reason string) error {
	if err := m.store.Delete(ctx, partition, local.KeyToken, local.KeyUser); err != nil {
		return errors.Wrap(err, "clear session")
	}
	m.lg.Info("Session ended",
		zap.String("partition", partition),
		zap.String("reason", reason),
	)
	m.bus.Publish(events.LoggedOut{Partition: partition, Reason: reason})
	return nil
}

// Expire ends the partition's session after an upstream service rejected its
// token. Guest partitions are left alone.
func (m *Manager) Expire(ctx context.Context, partition string) error {
	if _, err := m.store.Get(ctx, partition, local.KeyToken); err != nil {
		if errors.Is(err, local.ErrNotFound) {
			return nil
		}
		return errors.Wrap(err, "load token")
	}
	return m.Logout(ctx, partition, ReasonUnauthorized)
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles"`
}

// parseClaims reads the claims of a JWT without verifying its signature; the
// issuing services verify tokens. Opaque tokens yield nil.
func parseClaims(token string) *tokenClaims {
	var c tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &c); err != nil {
		return nil
	}
	return &c
}

func (c *tokenClaims) expiry() time.Time {
	if c == nil || c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}
