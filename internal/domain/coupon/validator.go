package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Validator decides whether a code applies to a subtotal and counts
// redemptions once an order goes through.
type Validator interface {
	Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*Rule, error)
	Redeem(ctx context.Context, code string) error
}

// Lookup is the Validator over a Repository.
type Lookup struct {
	repo  Repository
	clock func() time.Time
}

var _ Validator = (*Lookup)(nil)

func NewLookup(repo Repository) *Lookup {
	return &Lookup{repo: repo, clock: time.Now}
}

// Validate resolves code and checks it against subtotal. Uses are not
// consumed here.
func (l *Lookup) Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*Rule, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, ErrInvalidCoupon
	}
	rule, err := l.repo.FindByCode(ctx, code)
	switch {
	case errors.Is(err, ErrInvalidCoupon):
		return nil, ErrInvalidCoupon
	case err != nil:
		return nil, errors.Wrap(err, "lookup coupon")
	}
	if err := rule.Check(l.clock(), subtotal); err != nil {
		return nil, err
	}
	return rule, nil
}

func (l *Lookup) Redeem(ctx context.Context, code string) error {
	if err := l.repo.IncrementUses(ctx, NormalizeCode(code)); err != nil {
		return errors.Wrap(err, "increment coupon uses")
	}
	return nil
}
