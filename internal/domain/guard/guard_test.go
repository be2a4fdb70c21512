package guard

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agrilink/storefront/internal/client"
	"github.com/agrilink/storefront/internal/domain/session"
)

type mockProfiles struct {
	profile *client.Profile
	err     error
	calls   int
	token   string
}

func (m *mockProfiles) Profile(ctx context.Context, _ client.ProfileKind) (*client.Profile, error) {
	m.calls++
	_, m.token = client.SessionFrom(ctx)
	return m.profile, m.err
}

func completeFarmer(status string) *client.Profile {
	return &client.Profile{
		FullName:           "Ravi Kumar",
		Phone:              "9876543210",
		FarmName:           "Green Acres",
		FarmLocation:       "Nashik",
		Pincode:            "422001",
		AadhaarNumber:      "1234-5678-9012",
		VerificationStatus: status,
	}
}

func signedIn(roles ...string) session.Session {
	return session.Session{
		Partition: "p1",
		Token:     "tok",
		User:      &session.User{ID: "u1", Roles: roles},
	}
}

func TestFarmerGuard_Chain(t *testing.T) {
	incomplete := completeFarmer(client.VerificationApproved)
	incomplete.FarmName = ""
	incomplete.AadhaarNumber = "  "

	addressOnly := completeFarmer(client.VerificationApproved)
	addressOnly.FarmLocation = ""
	addressOnly.Address = "Plot 7, Nashik"

	rejected := completeFarmer(client.VerificationRejected)
	rejected.RejectionReason = "Blurry ID."

	tests := []struct {
		name         string
		session      session.Session
		profile      *client.Profile
		profileErr   error
		wantAllowed  bool
		wantRedirect string
		wantReason   Reason
		wantMissing  []string
		wantFetch    bool
	}{
		{
			name:         "unauthenticated",
			session:      session.Session{Partition: "p1"},
			wantRedirect: PathLogin,
			wantReason:   ReasonUnauthenticated,
		},
		{
			name:         "not a farmer",
			session:      signedIn(session.RoleCustomer),
			wantRedirect: PathHome,
			wantReason:   ReasonNotFarmer,
		},
		{
			name:         "profile fetch fails",
			session:      signedIn(session.RoleFarmer),
			profileErr:   &client.APIError{Status: http.StatusBadGateway, Message: "down"},
			wantRedirect: PathOnboarding,
			wantReason:   ReasonProfileUnavailable,
			wantFetch:    true,
		},
		{
			name:         "token rejected while fetching profile",
			session:      signedIn(session.RoleFarmer),
			profileErr:   client.ErrUnauthorized,
			wantRedirect: PathLogin,
			wantReason:   ReasonUnauthenticated,
			wantFetch:    true,
		},
		{
			name:         "incomplete profile",
			session:      signedIn(session.RoleFarmer),
			profile:      incomplete,
			wantRedirect: PathOnboarding,
			wantReason:   ReasonIncompleteProfile,
			wantMissing:  []string{"farmName", "aadhaarNumber"},
			wantFetch:    true,
		},
		{
			name:         "pending verification",
			session:      signedIn(session.RoleFarmer),
			profile:      completeFarmer(client.VerificationPending),
			wantRedirect: PathOnboarding,
			wantReason:   ReasonPendingVerification,
			wantFetch:    true,
		},
		{
			name:         "rejected verification",
			session:      signedIn(session.RoleFarmer),
			profile:      rejected,
			wantRedirect: PathOnboarding,
			wantReason:   ReasonRejectedVerification,
			wantFetch:    true,
		},
		{
			name:        "approved",
			session:     signedIn("ROLE_FARMER"),
			profile:     completeFarmer(client.VerificationApproved),
			wantAllowed: true,
			wantFetch:   true,
		},
		{
			name:        "address satisfies farm location",
			session:     signedIn(session.RoleFarmer),
			profile:     addressOnly,
			wantAllowed: true,
			wantFetch:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profiles := &mockProfiles{profile: tt.profile, err: tt.profileErr}
			g := NewFarmerGuard(profiles, zap.NewNop())

			d := g.Check(context.Background(), Request{Path: "/farmer/dashboard", Session: tt.session})

			assert.Equal(t, tt.wantAllowed, d.Allowed)
			assert.Equal(t, tt.wantRedirect, d.Redirect)
			assert.Equal(t, tt.wantReason, d.Reason)
			assert.Equal(t, tt.wantMissing, d.Missing)
			if !tt.wantAllowed {
				assert.Equal(t, "/farmer/dashboard", d.From)
			}
			assert.Equal(t, tt.wantFetch, profiles.calls == 1)
			if tt.wantFetch {
				assert.Equal(t, "tok", profiles.token)
			}
		})
	}
}

func TestManagerGuard_SkipsCompleteness(t *testing.T) {
	profiles := &mockProfiles{profile: &client.Profile{VerificationStatus: client.VerificationApproved}}
	g := NewManagerGuard(profiles, zap.NewNop())

	d := g.Check(context.Background(), Request{Path: "/manager", Session: signedIn(session.RoleManager)})
	assert.True(t, d.Allowed)

	d = g.Check(context.Background(), Request{Path: "/manager", Session: signedIn(session.RoleFarmer)})
	assert.Equal(t, ReasonNotManager, d.Reason)
	assert.Equal(t, PathHome, d.Redirect)
}

func TestRoutes(t *testing.T) {
	farmer := NewFarmerGuard(&mockProfiles{profile: completeFarmer(client.VerificationApproved)}, zap.NewNop())
	manager := NewManagerGuard(&mockProfiles{}, zap.NewNop())
	routes := DefaultRoutes(farmer, manager)

	tests := []struct {
		path      string
		wantGuard Guard
	}{
		{"/", nil},
		{"/marketplace", nil},
		{"/farmers/42", nil},
		{"/farmer", farmer},
		{"/farmer/listings/new?draft=1", farmer},
		{"/manager/approvals", manager},
		{"/cart", nil},
		{"/cart/checkout", AuthGuard{}},
		{"/orders/o-1", AuthGuard{}},
		{"/profile/onboarding", AuthGuard{}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.wantGuard, routes.Match(tt.path))
		})
	}
}

func TestRoutes_UnauthenticatedFarmerRoutePreservesLocation(t *testing.T) {
	routes := DefaultRoutes(NewFarmerGuard(&mockProfiles{}, zap.NewNop()), nil)

	d := routes.Check(context.Background(), Request{Path: "/farmer/crops/7", Session: session.Session{}})
	require.False(t, d.Allowed)
	assert.Equal(t, PathLogin, d.Redirect)
	assert.Equal(t, "/farmer/crops/7", d.From)

	assert.True(t, routes.Check(context.Background(), Request{Path: "/listings/7"}).Allowed)
}

func TestMissingFields(t *testing.T) {
	assert.Equal(t,
		[]string{"fullName", "phone", "farmName", "farmLocation", "pincode", "aadhaarNumber"},
		MissingFields(client.ProfileFarmer, nil))
	assert.True(t, IsComplete(client.ProfileFarmer, completeFarmer("")))
	assert.Equal(t, []string{"phone"}, MissingFields(client.ProfileCustomer, &client.Profile{FullName: "A"}))
	assert.Nil(t, MissingFields(client.ProfileManager, &client.Profile{}))
}
