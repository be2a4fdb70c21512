// Package guard decides whether a browser session may enter a role-gated
// route and, if not, where to send it instead.
package guard

import (
	"context"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/agrilink/storefront/internal/client"
	"github.com/agrilink/storefront/internal/domain/session"
)

// Reason explains a redirect to the destination page.
type Reason string

const (
	ReasonUnauthenticated      Reason = "unauthenticated"
	ReasonNotFarmer            Reason = "not_farmer"
	ReasonNotManager           Reason = "not_manager"
	ReasonProfileUnavailable   Reason = "profile_unavailable"
	ReasonIncompleteProfile    Reason = "incomplete_profile"
	ReasonPendingVerification  Reason = "pending_verification"
	ReasonRejectedVerification Reason = "rejected_verification"
)

// Fallback routes.
const (
	PathLogin      = "/login"
	PathHome       = "/"
	PathOnboarding = "/profile/onboarding"
)

// Request is a navigation attempt.
type Request struct {
	Path    string
	Session session.Session
}

// Decision is the outcome of a guard. When Allowed is false the caller
// redirects to Redirect and hands Reason and From to the destination page.
type Decision struct {
	Allowed  bool     `json:"allowed"`
	Redirect string   `json:"redirect,omitempty"`
	Reason   Reason   `json:"reason,omitempty"`
	From     string   `json:"from,omitempty"`
	Missing  []string `json:"missing,omitempty"`
	Message  string   `json:"message,omitempty"`
}

// Allow is the permitting Decision.
var Allow = Decision{Allowed: true}

func redirect(path string, reason Reason, from, message string) Decision {
	return Decision{Redirect: path, Reason: reason, From: from, Message: message}
}

// Guard checks a navigation request.
type Guard interface {
	Check(ctx context.Context, req Request) Decision
}

// ProfileSource fetches the role profile of the user in ctx.
type ProfileSource interface {
	Profile(ctx context.Context, kind client.ProfileKind) (*client.Profile, error)
}

// AuthGuard only requires a signed-in user.
type AuthGuard struct{}

func (AuthGuard) Check(_ context.Context, req Request) Decision {
	if !req.Session.IsAuthenticated() {
		return redirect(PathLogin, ReasonUnauthenticated, req.Path, "Please sign in to continue.")
	}
	return Allow
}

// roleGuard runs the chain shared by farmer and manager routes: sign-in,
// role, profile fetch, optional completeness, verification.
type roleGuard struct {
	role          string
	kind          client.ProfileKind
	notRole       Reason
	checkComplete bool
	profiles      ProfileSource
	lg            *zap.Logger
}

func (g *roleGuard) Check(ctx context.Context, req Request) Decision {
	if d := (AuthGuard{}).Check(ctx, req); !d.Allowed {
		return d
	}
	if !req.Session.User.HasRole(g.role) {
		return redirect(PathHome, g.notRole, req.Path, "This area is restricted.")
	}

	profile, err := g.profiles.Profile(req.Session.Context(ctx), g.kind)
	if err != nil {
		if errors.Is(err, client.ErrUnauthorized) {
			return redirect(PathLogin, ReasonUnauthenticated, req.Path, "Your session has expired.")
		}
		g.lg.Warn("Profile fetch failed",
			zap.String("user_id", req.Session.User.ID),
			zap.String("kind", string(g.kind)),
			zap.Error(err),
		)
		return redirect(PathOnboarding, ReasonProfileUnavailable, req.Path, "We could not load your profile.")
	}

	if g.checkComplete {
		if missing := MissingFields(g.kind, profile); len(missing) > 0 {
			d := redirect(PathOnboarding, ReasonIncompleteProfile, req.Path, "Complete your profile to continue.")
			d.Missing = missing
			return d
		}
	}

	switch profile.VerificationStatus {
	case client.VerificationApproved:
		return Allow
	case client.VerificationRejected:
		msg := "Your profile verification was rejected."
		if profile.RejectionReason != "" {
			msg += " " + profile.RejectionReason
		}
		return redirect(PathOnboarding, ReasonRejectedVerification, req.Path, msg)
	default:
		return redirect(PathOnboarding, ReasonPendingVerification, req.Path, "Your profile is awaiting verification.")
	}
}

// NewFarmerGuard creates the guard of farmer-only routes.
func NewFarmerGuard(profiles ProfileSource, lg *zap.Logger) Guard {
	return &roleGuard{
		role:          session.RoleFarmer,
		kind:          client.ProfileFarmer,
		notRole:       ReasonNotFarmer,
		checkComplete: true,
		profiles:      profiles,
		lg:            lg,
	}
}

// NewManagerGuard creates the guard of manager-only routes. Manager profiles
// have no onboarding fields, so completeness is not checked.
func NewManagerGuard(profiles ProfileSource, lg *zap.Logger) Guard {
	return &roleGuard{
		role:     session.RoleManager,
		kind:     client.ProfileManager,
		notRole:  ReasonNotManager,
		profiles: profiles,
		lg:       lg,
	}
}
