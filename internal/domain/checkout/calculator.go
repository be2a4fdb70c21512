// Package checkout computes cart and checkout totals and holds the coupon
// applied by each browser session.
package checkout

import (
	"github.com/shopspring/decimal"

	"github.com/agrilink/storefront/internal/domain/coupon"
)

// Pricing holds the store-wide charges used by Calculate.
type Pricing struct {
	DeliveryFee           decimal.Decimal
	FreeDeliveryThreshold decimal.Decimal
	GiftWrapFee           decimal.Decimal
	TaxRate               decimal.Decimal
}

// DefaultPricing returns ₹40 delivery waived from ₹500, ₹29 gift wrap and 5% GST.
func DefaultPricing() Pricing {
	return Pricing{
		DeliveryFee:           decimal.NewFromInt(40),
		FreeDeliveryThreshold: decimal.NewFromInt(500),
		GiftWrapFee:           decimal.NewFromInt(29),
		TaxRate:               decimal.RequireFromString("0.05"),
	}
}

// Line is a cart line item as seen by the calculator.
type Line struct {
	ListingID     string
	Quantity      int
	UnitPrice     decimal.Decimal
	OriginalPrice decimal.Decimal // zero when the listing is not discounted
}

// Selection is the set of listing IDs chosen for checkout.
type Selection map[string]struct{}

// Select builds a Selection from ids.
func Select(ids ...string) Selection {
	s := make(Selection, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// SelectAll selects every line.
func SelectAll(lines []Line) Selection {
	s := make(Selection, len(lines))
	for _, l := range lines {
		s[l.ListingID] = struct{}{}
	}
	return s
}

// Has reports whether id is selected.
func (s Selection) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Options are the per-checkout choices of the buyer.
type Options struct {
	// DeliveryPrice overrides Pricing.DeliveryFee for the chosen delivery option.
	DeliveryPrice *decimal.Decimal
	GiftWrap      bool
	// ServerTax is the authoritative tax computed by the order service. When
	// set it replaces the local estimate.
	ServerTax *decimal.Decimal
}

// Totals is the full price breakdown of a checkout.
type Totals struct {
	ItemCount      int
	Subtotal       decimal.Decimal
	Savings        decimal.Decimal
	DeliveryCharge decimal.Decimal
	GiftWrapCharge decimal.Decimal
	Tax            decimal.Decimal
	// CouponCode is empty unless the coupon applies to the current selection.
	CouponCode     string
	CouponDiscount decimal.Decimal
	// CouponRevoked is set when a coupon was given but the subtotal no longer
	// meets its minimum order.
	CouponRevoked bool
	Total         decimal.Decimal
}

// Subtotal returns Σ quantity × unit price over the selected lines.
func Subtotal(lines []Line, selected Selection) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		if !selected.Has(l.ListingID) {
			continue
		}
		sum = sum.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return sum
}

// Calculate computes the totals for the selected lines. It is a pure
// function: the same inputs always produce the same Totals.
func Calculate(p Pricing, lines []Line, selected Selection, rule *coupon.Rule, opts Options) Totals {
	var t Totals

	t.Subtotal = Subtotal(lines, selected)
	t.Savings = decimal.Zero
	for _, l := range lines {
		if !selected.Has(l.ListingID) {
			continue
		}
		t.ItemCount += l.Quantity
		if l.OriginalPrice.GreaterThan(l.UnitPrice) {
			diff := l.OriginalPrice.Sub(l.UnitPrice).Mul(decimal.NewFromInt(int64(l.Quantity)))
			t.Savings = t.Savings.Add(diff)
		}
	}

	t.CouponDiscount = decimal.Zero
	if rule != nil {
		if discount, err := coupon.Apply(rule, t.Subtotal); err == nil {
			t.CouponCode = rule.Code
			t.CouponDiscount = discount.Amount
		} else {
			t.CouponRevoked = true
		}
	}

	switch {
	case t.Subtotal.GreaterThanOrEqual(p.FreeDeliveryThreshold):
		t.DeliveryCharge = decimal.Zero
	case opts.DeliveryPrice != nil:
		t.DeliveryCharge = *opts.DeliveryPrice
	default:
		t.DeliveryCharge = p.DeliveryFee
	}

	t.GiftWrapCharge = decimal.Zero
	if opts.GiftWrap {
		t.GiftWrapCharge = p.GiftWrapFee
	}

	if opts.ServerTax != nil {
		t.Tax = *opts.ServerTax
	} else {
		t.Tax = t.Subtotal.Mul(p.TaxRate)
	}
	t.Tax = t.Tax.Round(2)

	total := t.Subtotal.
		Add(t.DeliveryCharge).
		Add(t.GiftWrapCharge).
		Add(t.Tax).
		Sub(t.CouponDiscount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	t.Total = total.Round(2)

	return t
}
