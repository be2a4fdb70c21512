package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"

	"github.com/agrilink/storefront/internal/client"
	"github.com/agrilink/storefront/internal/storage/local"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxPincodeLen   = 6
)

// pageParams reads page and size query parameters.
func pageParams(r *http.Request) (page, size int, err error) {
	q := r.URL.Query()
	size = defaultPageSize
	if v := q.Get("page"); v != "" {
		if page, err = strconv.Atoi(v); err != nil || page < 0 {
			return 0, 0, errors.Wrap(errBadRequest, "page must be a non-negative integer")
		}
	}
	if v := q.Get("size"); v != "" {
		if size, err = strconv.Atoi(v); err != nil || size < 1 {
			return 0, 0, errors.Wrap(errBadRequest, "size must be a positive integer")
		}
	}
	return page, min(size, maxPageSize), nil
}

func (h *Handler) listListings(w http.ResponseWriter, r *http.Request) {
	page, size, err := pageParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	res, err := h.Marketplace.Listings(r.Context(), client.ListingQuery{
		Category: q.Get("category"),
		SellerID: q.Get("sellerId"),
		Sort:     q.Get("sort"),
		Page:     page,
		Size:     size,
	})
	if err != nil {
		writeError(w, r, errors.Wrap(err, "list listings"))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) getListing(w http.ResponseWriter, r *http.Request) {
	l, err := h.Marketplace.Listing(r.Context(), chi.URLParam(r, "listingID"))
	if err != nil {
		writeError(w, r, errors.Wrap(err, "get listing"))
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.Marketplace.Categories(r.Context())
	if err != nil {
		writeError(w, r, errors.Wrap(err, "list categories"))
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	page, size, err := pageParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.Search.Submit(r.Context(), partitionFrom(r.Context()), r.URL.Query().Get("q"), page, size)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) recentSearches(w http.ResponseWriter, r *http.Request) {
	list, err := h.Search.Recent().List(r.Context(), partitionFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) clearRecentSearches(w http.ResponseWriter, r *http.Request) {
	if err := h.Search.Recent().Clear(r.Context(), partitionFrom(r.Context())); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type deliveryLocation struct {
	Location string `json:"location"`
	Pincode  string `json:"pincode"`
}

func (h *Handler) getDeliveryLocation(w http.ResponseWriter, r *http.Request) {
	partition := partitionFrom(r.Context())
	var loc deliveryLocation
	for key, dst := range map[string]*string{
		local.KeyDeliveryLocation: &loc.Location,
		local.KeyDeliveryPincode:  &loc.Pincode,
	} {
		v, err := h.Storage.Get(r.Context(), partition, key)
		if err != nil && !errors.Is(err, local.ErrNotFound) {
			writeError(w, r, err)
			return
		}
		*dst = string(v)
	}
	writeJSON(w, http.StatusOK, loc)
}

func (h *Handler) setDeliveryLocation(w http.ResponseWriter, r *http.Request) {
	var loc deliveryLocation
	if err := decodeJSON(r, &loc); err != nil {
		writeError(w, r, err)
		return
	}
	loc.Location = strings.TrimSpace(loc.Location)
	loc.Pincode = strings.TrimSpace(loc.Pincode)
	if !validPincode(loc.Pincode) {
		writeError(w, r, errors.Wrap(errBadRequest, "pincode must be 6 digits"))
		return
	}

	partition := partitionFrom(r.Context())
	if err := h.Storage.Set(r.Context(), partition, local.KeyDeliveryLocation, []byte(loc.Location)); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Storage.Set(r.Context(), partition, local.KeyDeliveryPincode, []byte(loc.Pincode)); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

func validPincode(s string) bool {
	if len(s) != maxPincodeLen || s[0] == '0' {
		return false
	}
	for i := range len(s) {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
