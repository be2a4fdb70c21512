package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"

	"github.com/agrilink/storefront/internal/client"
	"github.com/agrilink/storefront/internal/domain/cart"
)

type cartResponse struct {
	Items []cart.Item `json:"items"`
	Count int         `json:"count"`
}

func newCartResponse(c cart.Cart) cartResponse {
	items := c.Items
	if items == nil {
		items = []cart.Item{}
	}
	return cartResponse{Items: items, Count: c.Count()}
}

func (h *Handler) writeCart(w http.ResponseWriter, r *http.Request, c cart.Cart, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCartResponse(c))
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.Cart.Get(r.Context(), partitionFrom(r.Context()))
	h.writeCart(w, r, c, err)
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.Cart.Clear(r.Context(), partitionFrom(r.Context()))
	h.writeCart(w, r, c, err)
}

type addCartItemRequest struct {
	ListingID string `json:"listingId"`
	Quantity  int    `json:"quantity"`
}

// addCartItem prices the item from the marketplace listing; client supplied
// prices are never trusted.
func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req addCartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.ListingID == "" {
		writeError(w, r, cart.ErrMissingListing)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 1 {
		writeError(w, r, cart.ErrInvalidQuantity)
		return
	}

	listing, err := h.Marketplace.Listing(r.Context(), req.ListingID)
	if err != nil {
		if client.IsNotFound(err) {
			writeError(w, r, errors.Wrap(errBadRequest, "listing not found"))
			return
		}
		writeError(w, r, errors.Wrap(err, "fetch listing"))
		return
	}

	c, err := h.Cart.Add(r.Context(), partitionFrom(r.Context()), itemFromListing(listing, req.Quantity))
	h.writeCart(w, r, c, err)
}

func itemFromListing(l *client.Listing, quantity int) cart.Item {
	return cart.Item{
		ListingID:         l.ID,
		SellerID:          l.SellerID,
		Quantity:          quantity,
		UnitPrice:         l.Price,
		OriginalPrice:     l.OriginalPrice,
		Title:             l.Title,
		ImageURL:          l.ImageURL,
		Unit:              l.Unit,
		AvailableQuantity: l.AvailableQuantity,
	}
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	var req updateCartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.Cart.Update(r.Context(), partitionFrom(r.Context()), chi.URLParam(r, "listingID"), req.Quantity)
	h.writeCart(w, r, c, err)
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	c, err := h.Cart.Remove(r.Context(), partitionFrom(r.Context()), chi.URLParam(r, "listingID"))
	h.writeCart(w, r, c, err)
}

func (h *Handler) getSaved(w http.ResponseWriter, r *http.Request) {
	items, err := h.Cart.Saved(r.Context(), partitionFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []cart.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) saveForLater(w http.ResponseWriter, r *http.Request) {
	c, err := h.Cart.SaveForLater(r.Context(), partitionFrom(r.Context()), chi.URLParam(r, "listingID"))
	h.writeCart(w, r, c, err)
}

func (h *Handler) moveToCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.Cart.MoveToCart(r.Context(), partitionFrom(r.Context()), chi.URLParam(r, "listingID"))
	h.writeCart(w, r, c, err)
}
