package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/agrilink/storefront/internal/client"
	"github.com/agrilink/storefront/internal/domain/cart"
	"github.com/agrilink/storefront/internal/domain/checkout"
	"github.com/agrilink/storefront/internal/domain/coupon"
)

// quoteRequest selects cart lines and delivery options. A nil Selected
// selects every line.
type quoteRequest struct {
	Selected       []string         `json:"selected"`
	DeliveryOption string           `json:"deliveryOption,omitempty"`
	DeliveryPrice  *decimal.Decimal `json:"deliveryPrice,omitempty"`
	GiftWrap       bool             `json:"giftWrap"`
}

type totalsResponse struct {
	ItemCount      int             `json:"itemCount"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Savings        decimal.Decimal `json:"savings"`
	DeliveryCharge decimal.Decimal `json:"deliveryCharge"`
	GiftWrapCharge decimal.Decimal `json:"giftWrapCharge"`
	Tax            decimal.Decimal `json:"tax"`
	CouponCode     string          `json:"couponCode,omitempty"`
	CouponDiscount decimal.Decimal `json:"couponDiscount"`
	CouponRevoked  bool            `json:"couponRevoked,omitempty"`
	Total          decimal.Decimal `json:"total"`
}

func newTotalsResponse(t checkout.Totals) totalsResponse {
	return totalsResponse{
		ItemCount:      t.ItemCount,
		Subtotal:       t.Subtotal,
		Savings:        t.Savings,
		DeliveryCharge: t.DeliveryCharge,
		GiftWrapCharge: t.GiftWrapCharge,
		Tax:            t.Tax,
		CouponCode:     t.CouponCode,
		CouponDiscount: t.CouponDiscount,
		CouponRevoked:  t.CouponRevoked,
		Total:          t.Total,
	}
}

func (q quoteRequest) selection(lines []checkout.Line) checkout.Selection {
	if q.Selected == nil {
		return checkout.SelectAll(lines)
	}
	return checkout.Select(q.Selected...)
}

func (q quoteRequest) options() checkout.Options {
	return checkout.Options{DeliveryPrice: q.DeliveryPrice, GiftWrap: q.GiftWrap}
}

// priced loads the cart and prices the requested selection.
func (h *Handler) priced(r *http.Request, req quoteRequest) (cart.Cart, checkout.Selection, checkout.Totals, error) {
	partition := partitionFrom(r.Context())
	c, err := h.Cart.Get(r.Context(), partition)
	if err != nil {
		return c, nil, checkout.Totals{}, err
	}
	lines := c.Lines()
	selected := req.selection(lines)
	totals := h.Checkout.Quote(r.Context(), partition, lines, selected, req.options())
	return c, selected, totals, nil
}

func (h *Handler) quote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	_, _, totals, err := h.priced(r, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTotalsResponse(totals))
}

type applyCouponRequest struct {
	Code string `json:"code"`
	quoteRequest
}

type couponResponse struct {
	Code        string          `json:"code"`
	Type        string          `json:"type"`
	Value       decimal.Decimal `json:"value"`
	MinOrder    decimal.Decimal `json:"minOrder"`
	Description string          `json:"description,omitempty"`
	Totals      totalsResponse  `json:"totals"`
}

// applyCoupon validates the code against the subtotal of the current
// selection and returns the repriced totals.
func (h *Handler) applyCoupon(w http.ResponseWriter, r *http.Request) {
	var req applyCouponRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if coupon.NormalizeCode(req.Code) == "" {
		writeError(w, r, errors.Wrap(errBadRequest, "coupon code is required"))
		return
	}

	partition := partitionFrom(r.Context())
	c, err := h.Cart.Get(r.Context(), partition)
	if err != nil {
		writeError(w, r, err)
		return
	}
	lines := c.Lines()
	selected := req.selection(lines)

	rule, err := h.Checkout.ApplyCoupon(r.Context(), partition, req.Code, checkout.Subtotal(lines, selected))
	if err != nil {
		writeError(w, r, err)
		return
	}
	totals := h.Checkout.Quote(r.Context(), partition, lines, selected, req.options())
	writeJSON(w, http.StatusOK, couponResponse{
		Code:        rule.Code,
		Type:        string(rule.DiscountType),
		Value:       rule.Value,
		MinOrder:    rule.MinOrder,
		Description: rule.Description,
		Totals:      newTotalsResponse(totals),
	})
}

func (h *Handler) removeCoupon(w http.ResponseWriter, r *http.Request) {
	h.Checkout.RemoveCoupon(partitionFrom(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

type initializeCheckoutRequest struct {
	quoteRequest
	AddressID string `json:"addressId"`
}

type initializeCheckoutResponse struct {
	Session *client.CheckoutSession `json:"session"`
	Totals  totalsResponse          `json:"totals"`
}

// initializeCheckout creates the payment order for the selected lines. The
// applied coupon is redeemed once the order service accepted the order.
func (h *Handler) initializeCheckout(w http.ResponseWriter, r *http.Request) {
	s, err := h.authenticated(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req initializeCheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	c, selected, totals, err := h.priced(r, req.quoteRequest)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if totals.ItemCount == 0 {
		writeError(w, r, errors.Wrap(errBadRequest, "no items selected"))
		return
	}

	items := make([]client.CheckoutItem, 0, len(c.Items))
	for _, it := range c.Items {
		if selected.Has(it.ListingID) {
			items = append(items, client.CheckoutItem{ListingID: it.ListingID, Quantity: it.Quantity})
		}
	}

	ctx := s.Context(r.Context())
	cs, err := h.Orders.InitializeCheckout(ctx, client.CheckoutRequest{
		Items:          items,
		AddressID:      req.AddressID,
		DeliveryOption: req.DeliveryOption,
		GiftWrap:       req.GiftWrap,
		CouponCode:     totals.CouponCode,
		CouponDiscount: totals.CouponDiscount,
		Amount:         totals.Total,
	})
	if err != nil {
		writeError(w, r, errors.Wrap(err, "initialize checkout"))
		return
	}

	if cs.Tax != nil {
		opts := req.options()
		opts.ServerTax = cs.Tax
		totals = checkout.Calculate(h.Checkout.Pricing(), c.Lines(), selected, h.Checkout.Applied(s.Partition), opts)
	}
	if err := h.Checkout.Redeem(r.Context(), s.Partition); err != nil {
		// The order exists; the coupon use is lost rather than failing payment.
		zctx.From(r.Context()).Warn("Coupon redemption failed",
			zap.String("order_id", cs.OrderID),
			zap.Error(err),
		)
	}

	writeJSON(w, http.StatusOK, initializeCheckoutResponse{Session: cs, Totals: newTotalsResponse(totals)})
}

func (h *Handler) verifyPayment(w http.ResponseWriter, r *http.Request) {
	s, err := h.authenticated(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req client.PaymentVerification
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.OrderID == "" || req.PaymentID == "" {
		writeError(w, r, errors.Wrap(errBadRequest, "orderId and paymentId are required"))
		return
	}
	order, err := h.Orders.VerifyPayment(s.Context(r.Context()), req)
	if err != nil {
		writeError(w, r, errors.Wrap(err, "verify payment"))
		return
	}
	writeJSON(w, http.StatusOK, order)
}
