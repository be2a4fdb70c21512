package coupon

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType is how a coupon reduces the subtotal.
type DiscountType string

const (
	// DiscountPercentage takes Value percent, bounded by MaxDiscount when set.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFlat takes Value rupees, never more than the subtotal.
	DiscountFlat DiscountType = "flat"
)

var (
	ErrInvalidCoupon           = errors.New("invalid coupon code")
	ErrCouponExpired           = errors.New("coupon expired")
	ErrCouponUsageLimitReached = errors.New("coupon usage limit reached")
	// ErrMinOrderNotMet is wrapped by *MinOrderError.
	ErrMinOrderNotMet = errors.New("minimum order value not met")
)

// MinOrderError reports how far a subtotal is from a coupon's minimum order.
type MinOrderError struct {
	Code     string
	MinOrder decimal.Decimal
	Subtotal decimal.Decimal
}

func (e *MinOrderError) Error() string {
	return fmt.Sprintf("coupon %s requires a minimum order of ₹%s (add ₹%s more)",
		e.Code, e.MinOrder.StringFixed(2), e.MinOrder.Sub(e.Subtotal).StringFixed(2))
}

func (e *MinOrderError) Unwrap() error { return ErrMinOrderNotMet }

// Rule is a coupon as stored in the catalog or database.
type Rule struct {
	Code         string
	DiscountType DiscountType
	Value        decimal.Decimal
	MinOrder     decimal.Decimal
	MaxDiscount  decimal.Decimal
	Description  string
	ValidFrom    *time.Time
	ValidUntil   *time.Time
	MaxUses      int
	Uses         int
}

// Check reports why the rule cannot apply at now to subtotal, if anything.
func (r *Rule) Check(now time.Time, subtotal decimal.Decimal) error {
	if (r.ValidFrom != nil && now.Before(*r.ValidFrom)) || (r.ValidUntil != nil && now.After(*r.ValidUntil)) {
		return ErrCouponExpired
	}
	if r.MaxUses > 0 && r.Uses >= r.MaxUses {
		return ErrCouponUsageLimitReached
	}
	return CheckMinOrder(r, subtotal)
}

// Discount is the amount taken off a quote and the label shown for it.
type Discount struct {
	Amount      decimal.Decimal
	Description string
}

// Repository is where rules live: the YAML catalog or Postgres.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Rule, error)
	IncrementUses(ctx context.Context, code string) error
}

// CodeLister lists every active coupon code. Used to build lookup filters.
type CodeLister interface {
	ListCodes(ctx context.Context) ([]string, error)
}

// NormalizeCode canonicalizes user input: trimmed and upper-cased.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
