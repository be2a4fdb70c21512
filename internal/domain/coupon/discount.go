package coupon

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// CheckMinOrder returns a *MinOrderError when subtotal is below the rule's
// minimum order value.
func CheckMinOrder(rule *Rule, subtotal decimal.Decimal) error {
	if rule.MinOrder.GreaterThan(subtotal) {
		return &MinOrderError{Code: rule.Code, MinOrder: rule.MinOrder, Subtotal: subtotal}
	}
	return nil
}

// Apply calculates the discount of rule against subtotal. The result never
// exceeds the subtotal.
func Apply(rule *Rule, subtotal decimal.Decimal) (Discount, error) {
	if err := CheckMinOrder(rule, subtotal); err != nil {
		return Discount{}, err
	}

	var amount decimal.Decimal
	switch rule.DiscountType {
	case DiscountPercentage:
		amount = subtotal.Mul(rule.Value).Div(hundred)
	case DiscountFlat:
		amount = rule.Value
	default:
		return Discount{}, errors.Errorf("unsupported discount type: %q", rule.DiscountType)
	}

	if rule.MaxDiscount.IsPositive() {
		amount = decimal.Min(amount, rule.MaxDiscount)
	}
	amount = decimal.Min(amount, subtotal)
	if amount.IsNegative() {
		amount = decimal.Zero
	}

	return Discount{
		Amount:      amount.Round(2),
		Description: rule.Description,
	}, nil
}
