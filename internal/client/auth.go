package client

import "context"

// User is the account record returned by the auth service.
type User struct {
	ID    string   `json:"id"`
	Email string   `json:"email"`
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
}

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest is the body of POST /register.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone,omitempty"`
	Role     string `json:"role"`
}

// AuthResponse is returned by login and registration.
type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// AuthClient talks to the auth service.
type AuthClient struct {
	c *Client
}

// NewAuthClient wraps c.
func NewAuthClient(c *Client) *AuthClient {
	return &AuthClient{c: c}
}

func (a *AuthClient) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := a.c.Post(ctx, "/login", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *AuthClient) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := a.c.Post(ctx, "/register", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Me returns the user owning the session token in ctx.
func (a *AuthClient) Me(ctx context.Context) (*User, error) {
	var u User
	if err := a.c.Get(ctx, "/users/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
