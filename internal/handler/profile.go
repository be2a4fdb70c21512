package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"

	"github.com/agrilink/storefront/internal/client"
	"github.com/agrilink/storefront/internal/domain/guard"
	"github.com/agrilink/storefront/internal/domain/session"
)

func profileKind(r *http.Request) (client.ProfileKind, error) {
	switch k := client.ProfileKind(chi.URLParam(r, "kind")); k {
	case client.ProfileCustomer, client.ProfileFarmer, client.ProfileManager:
		return k, nil
	default:
		return "", errors.Wrapf(errBadRequest, "unknown profile kind %q", k)
	}
}

type profileResponse struct {
	*client.Profile
	Complete bool     `json:"complete"`
	Missing  []string `json:"missing,omitempty"`
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	kind, err := profileKind(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s, err := h.authenticated(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.Profiles.Profile(s.Context(r.Context()), kind)
	if err != nil {
		writeError(w, r, errors.Wrap(err, "get profile"))
		return
	}
	missing := guard.MissingFields(kind, p)
	writeJSON(w, http.StatusOK, profileResponse{Profile: p, Complete: len(missing) == 0, Missing: missing})
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	kind, err := profileKind(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s, err := h.authenticated(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var p client.Profile
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := h.Profiles.UpdateProfile(s.Context(r.Context()), kind, p)
	if err != nil {
		writeError(w, r, errors.Wrap(err, "update profile"))
		return
	}
	// Refresh the cached user so the name shown in the header follows.
	if _, err := h.Sessions.Refresh(r.Context(), s.Partition); err != nil {
		writeError(w, r, err)
		return
	}
	missing := guard.MissingFields(kind, updated)
	writeJSON(w, http.StatusOK, profileResponse{Profile: updated, Complete: len(missing) == 0, Missing: missing})
}

func (h *Handler) listAddresses(w http.ResponseWriter, r *http.Request) {
	s, err := h.authenticated(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	addrs, err := h.Profiles.Addresses(s.Context(r.Context()))
	if err != nil {
		writeError(w, r, errors.Wrap(err, "list addresses"))
		return
	}
	writeJSON(w, http.StatusOK, addrs)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	s, err := h.authenticated(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	orders, err := h.Orders.Orders(s.Context(r.Context()))
	if err != nil {
		writeError(w, r, errors.Wrap(err, "list orders"))
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) farmerDashboard(w http.ResponseWriter, r *http.Request) {
	s, err := h.withRole(r, session.RoleFarmer)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.Dashboard.FarmerStats(s.Context(r.Context()), s.User.ID))
}
