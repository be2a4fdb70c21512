package client

import (
	"context"
	"net/url"
)

// ProfileKind selects one of the role-specific profile resources.
type ProfileKind string

const (
	ProfileCustomer ProfileKind = "customer"
	ProfileFarmer   ProfileKind = "farmer"
	ProfileManager  ProfileKind = "manager"
)

// Verification statuses assigned by managers.
const (
	VerificationPending  = "PENDING"
	VerificationApproved = "APPROVED"
	VerificationRejected = "REJECTED"
)

// Profile is the onboarding profile of a user. Farm fields are only set for
// farmer profiles.
type Profile struct {
	ID                 string `json:"id,omitempty"`
	UserID             string `json:"userId,omitempty"`
	FullName           string `json:"fullName"`
	Phone              string `json:"phone"`
	FarmName           string `json:"farmName,omitempty"`
	FarmLocation       string `json:"farmLocation,omitempty"`
	Address            string `json:"address,omitempty"`
	Pincode            string `json:"pincode,omitempty"`
	AadhaarNumber      string `json:"aadhaarNumber,omitempty"`
	Department         string `json:"department,omitempty"`
	VerificationStatus string `json:"verificationStatus,omitempty"`
	RejectionReason    string `json:"rejectionReason,omitempty"`
}

// Address is a saved delivery address.
type Address struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Line1     string `json:"line1"`
	Line2     string `json:"line2,omitempty"`
	City      string `json:"city"`
	State     string `json:"state"`
	Pincode   string `json:"pincode"`
	IsDefault bool   `json:"isDefault"`
}

// UserClient talks to the user/profile service.
type UserClient struct {
	c *Client
}

// NewUserClient wraps c.
func NewUserClient(c *Client) *UserClient {
	return &UserClient{c: c}
}

func (u *UserClient) Profile(ctx context.Context, kind ProfileKind) (*Profile, error) {
	var p Profile
	if err := u.c.Get(ctx, "/profiles/"+string(kind), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (u *UserClient) UpdateProfile(ctx context.Context, kind ProfileKind, p Profile) (*Profile, error) {
	var out Profile
	if err := u.c.Put(ctx, "/profiles/"+string(kind), p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ApproveFarmer marks the farmer profile as verified. Manager only.
func (u *UserClient) ApproveFarmer(ctx context.Context, farmerID string) error {
	return u.c.Post(ctx, "/profiles/farmer/"+url.PathEscape(farmerID)+"/approve", nil, nil)
}

// IsFollowing reports whether the session user follows the farmer.
func (u *UserClient) IsFollowing(ctx context.Context, farmerID string) (bool, error) {
	var resp struct {
		Following bool `json:"following"`
	}
	if err := u.c.Get(ctx, "/farmers/"+url.PathEscape(farmerID)+"/follow", nil, &resp); err != nil {
		return false, err
	}
	return resp.Following, nil
}

func (u *UserClient) Follow(ctx context.Context, farmerID string) error {
	return u.c.Post(ctx, "/farmers/"+url.PathEscape(farmerID)+"/follow", nil, nil)
}

func (u *UserClient) Unfollow(ctx context.Context, farmerID string) error {
	return u.c.Delete(ctx, "/farmers/"+url.PathEscape(farmerID)+"/follow", nil)
}

func (u *UserClient) Addresses(ctx context.Context) ([]Address, error) {
	var out []Address
	if err := u.c.Get(ctx, "/addresses", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
