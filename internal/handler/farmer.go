package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"

	"github.com/agrilink/storefront/internal/client"
	"github.com/agrilink/storefront/internal/domain/session"
)

// Farms is the farm service as used by the farmer area.
type Farms interface {
	Farms(ctx context.Context) ([]client.Farm, error)
	CreateFarm(ctx context.Context, farm client.Farm) (*client.Farm, error)
	UpdateFarm(ctx context.Context, farm client.Farm) (*client.Farm, error)
	DeleteFarm(ctx context.Context, id string) error
	Crops(ctx context.Context, farmID string) ([]client.Crop, error)
	AddCrop(ctx context.Context, farmID string, crop client.Crop) (*client.Crop, error)
	HarvestGuidance(ctx context.Context, farmID string) ([]client.HarvestGuidance, error)
}

// Selling is the marketplace as used by farmers publishing produce.
type Selling interface {
	CreateListing(ctx context.Context, l client.Listing) (*client.Listing, error)
	PublishListing(ctx context.Context, id string) (*client.Listing, error)
}

// Farmers is the user service as used for following and approving farmers.
type Farmers interface {
	IsFollowing(ctx context.Context, farmerID string) (bool, error)
	Follow(ctx context.Context, farmerID string) error
	Unfollow(ctx context.Context, farmerID string) error
	ApproveFarmer(ctx context.Context, farmerID string) error
}

// withRole returns the session of an authenticated user holding role.
func (h *Handler) withRole(r *http.Request, role string) (session.Session, error) {
	s, err := h.authenticated(r)
	if err != nil {
		return s, err
	}
	if !s.User.HasRole(role) {
		return s, errors.Wrapf(errForbidden, "%s role required", role)
	}
	return s, nil
}

// farmerCtx authorizes a farmer request and returns the upstream context.
func (h *Handler) farmerCtx(w http.ResponseWriter, r *http.Request) (context.Context, bool) {
	s, err := h.withRole(r, session.RoleFarmer)
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return s.Context(r.Context()), true
}

func (h *Handler) listFarms(w http.ResponseWriter, r *http.Request) {
	ctx, ok := h.farmerCtx(w, r)
	if !ok {
		return
	}
	farms, err := h.Farms.Farms(ctx)
	if err != nil {
		writeError(w, r, errors.Wrap(err, "list farms"))
		return
	}
	if farms == nil {
		farms = []client.Farm{}
	}
	writeJSON(w, http.StatusOK, farms)
}

func (h *Handler) createFarm(w http.ResponseWriter, r *http.Request) {
	ctx, ok := h.farmerCtx(w, r)
	if !ok {
		return
	}
	var farm client.Farm
	if err := decodeJSON(r, &farm); err != nil {
		writeError(w, r, err)
		return
	}
	if farm.Name == "" {
		writeError(w, r, errors.Wrap(errBadRequest, "farm name is required"))
		return
	}
	created, err := h.Farms.CreateFarm(ctx, farm)
	if err != nil {
		writeError(w, r, errors.Wrap(err, "create farm"))
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) updateFarm(w http.ResponseWriter, r *http.Request) {
	ctx, ok := h.farmerCtx(w, r)
	if !ok {
		return
	}
	var farm client.Farm
	if err := decodeJSON(r, &farm); err != nil {
		writeError(w, r, err)
		return
	}
	farm.ID = chi.URLParam(r, "farmID")
	updated, err := h.Farms.UpdateFarm(ctx, farm)
	if err != nil {
		writeError(w, r, errors.Wrap(err, "update farm"))
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteFarm(w http.ResponseWriter, r *http.Request) {
	ctx, ok := h.farmerCtx(w, r)
	if !ok {
		return
	}
	if err := h.Farms.DeleteFarm(ctx, chi.URLParam(r, "farmID")); err != nil {
		writeError(w, r, errors.Wrap(err, "delete farm"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listCrops(w http.ResponseWriter, r *http.Request) {
	ctx, ok := h.farmerCtx(w, r)
	if !ok {
		return
	}
	crops, err := h.Farms.Crops(ctx, chi.URLParam(r, "farmID"))
	if err != nil {
		writeError(w, r, errors.Wrap(err, "list crops"))
		return
	}
	if crops == nil {
		crops = []client.Crop{}
	}
	writeJSON(w, http.StatusOK, crops)
}

func (h *Handler) addCrop(w http.ResponseWriter, r *http.Request) {
	ctx, ok := h.farmerCtx(w, r)
	if !ok {
		return
	}
	var crop client.Crop
	if err := decodeJSON(r, &crop); err != nil {
		writeError(w, r, err)
		return
	}
	if crop.Name == "" {
		writeError(w, r, errors.Wrap(errBadRequest, "crop name is required"))
		return
	}
	created, err := h.Farms.AddCrop(ctx, chi.URLParam(r, "farmID"), crop)
	if err != nil {
		writeError(w, r, errors.Wrap(err, "add crop"))
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) harvestGuidance(w http.ResponseWriter, r *http.Request) {
	ctx, ok := h.farmerCtx(w, r)
	if !ok {
		return
	}
	guidance, err := h.Farms.HarvestGuidance(ctx, chi.URLParam(r, "farmID"))
	if err != nil {
		writeError(w, r, errors.Wrap(err, "harvest guidance"))
		return
	}
	if guidance == nil {
		guidance = []client.HarvestGuidance{}
	}
	writeJSON(w, http.StatusOK, guidance)
}

func (h *Handler) createListing(w http.ResponseWriter, r *http.Request) {
	ctx, ok := h.farmerCtx(w, r)
	if !ok {
		return
	}
	var l client.Listing
	if err := decodeJSON(r, &l); err != nil {
		writeError(w, r, err)
		return
	}
	switch {
	case l.Title == "":
		writeError(w, r, errors.Wrap(errBadRequest, "title is required"))
		return
	case !l.Price.IsPositive():
		writeError(w, r, errors.Wrap(errBadRequest, "price must be positive"))
		return
	}
	created, err := h.Selling.CreateListing(ctx, l)
	if err != nil {
		writeError(w, r, errors.Wrap(err, "create listing"))
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) publishListing(w http.ResponseWriter, r *http.Request) {
	ctx, ok := h.farmerCtx(w, r)
	if !ok {
		return
	}
	l, err := h.Selling.PublishListing(ctx, chi.URLParam(r, "listingID"))
	if err != nil {
		writeError(w, r, errors.Wrap(err, "publish listing"))
		return
	}
	writeJSON(w, http.StatusOK, l)
}

type followResponse struct {
	Following bool `json:"following"`
}

func (h *Handler) getFollow(w http.ResponseWriter, r *http.Request) {
	s, err := h.authenticated(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	following, err := h.Farmers.IsFollowing(s.Context(r.Context()), chi.URLParam(r, "farmerID"))
	if err != nil {
		writeError(w, r, errors.Wrap(err, "follow status"))
		return
	}
	writeJSON(w, http.StatusOK, followResponse{Following: following})
}

func (h *Handler) setFollow(follow bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := h.authenticated(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		ctx, id := s.Context(r.Context()), chi.URLParam(r, "farmerID")
		if follow {
			err = h.Farmers.Follow(ctx, id)
		} else {
			err = h.Farmers.Unfollow(ctx, id)
		}
		if err != nil {
			writeError(w, r, errors.Wrap(err, "update follow"))
			return
		}
		writeJSON(w, http.StatusOK, followResponse{Following: follow})
	}
}

func (h *Handler) approveFarmer(w http.ResponseWriter, r *http.Request) {
	s, err := h.withRole(r, session.RoleManager)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Farmers.ApproveFarmer(s.Context(r.Context()), chi.URLParam(r, "farmerID")); err != nil {
		writeError(w, r, errors.Wrap(err, "approve farmer"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
