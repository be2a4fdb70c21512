package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type wishlistResponse struct {
	ListingIDs []string `json:"listingIds"`
	Count      int      `json:"count"`
}

func (h *Handler) writeWishlist(w http.ResponseWriter, r *http.Request, ids []string, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, wishlistResponse{ListingIDs: ids, Count: len(ids)})
}

func (h *Handler) getWishlist(w http.ResponseWriter, r *http.Request) {
	ids, err := h.Wishlist.IDs(r.Context(), partitionFrom(r.Context()))
	h.writeWishlist(w, r, ids, err)
}

func (h *Handler) addToWishlist(w http.ResponseWriter, r *http.Request) {
	ids, err := h.Wishlist.Add(r.Context(), partitionFrom(r.Context()), chi.URLParam(r, "listingID"))
	h.writeWishlist(w, r, ids, err)
}

func (h *Handler) removeFromWishlist(w http.ResponseWriter, r *http.Request) {
	ids, err := h.Wishlist.Remove(r.Context(), partitionFrom(r.Context()), chi.URLParam(r, "listingID"))
	h.writeWishlist(w, r, ids, err)
}

func (h *Handler) toggleWishlist(w http.ResponseWriter, r *http.Request) {
	saved, err := h.Wishlist.Toggle(r.Context(), partitionFrom(r.Context()), chi.URLParam(r, "listingID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"saved": saved})
}
