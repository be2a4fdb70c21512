package checkout

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/agrilink/storefront/internal/domain/coupon"
)

// Service holds the coupon applied by each browser partition and prices
// checkouts against it.
type Service struct {
	pricing Pricing
	coupons coupon.Validator
	lg      *zap.Logger

	quotes         metric.Int64Counter
	couponOutcomes metric.Int64Counter

	mu      sync.Mutex
	applied map[string]*coupon.Rule
}

// NewService creates a checkout Service.
func NewService(pricing Pricing, coupons coupon.Validator, lg *zap.Logger, meter metric.Meter) (*Service, error) {
	quotes, err := meter.Int64Counter("checkout.quotes",
		metric.WithDescription("Number of checkout quotes computed"))
	if err != nil {
		return nil, errors.Wrap(err, "create quotes counter")
	}
	outcomes, err := meter.Int64Counter("checkout.coupon.outcomes",
		metric.WithDescription("Coupon application attempts by outcome"))
	if err != nil {
		return nil, errors.Wrap(err, "create coupon counter")
	}

	return &Service{
		pricing:        pricing,
		coupons:        coupons,
		lg:             lg,
		quotes:         quotes,
		couponOutcomes: outcomes,
		applied:        make(map[string]*coupon.Rule),
	}, nil
}

// Pricing returns the configured store charges.
func (s *Service) Pricing() Pricing {
	return s.pricing
}

// ApplyCoupon validates code against subtotal and, on success, stores it as
// the partition's applied coupon, replacing any previous one. On failure the
// previously applied coupon is kept.
func (s *Service) ApplyCoupon(ctx context.Context, partition, code string, subtotal decimal.Decimal) (*coupon.Rule, error) {
	rule, err := s.coupons.Validate(ctx, code, subtotal)
	if err != nil {
		s.couponOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome(err))))
		return nil, err
	}

	s.mu.Lock()
	s.applied[partition] = rule
	s.mu.Unlock()

	s.couponOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "applied")))
	s.lg.Debug("Coupon applied",
		zap.String("partition", partition),
		zap.String("code", rule.Code),
	)
	return rule, nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, coupon.ErrMinOrderNotMet):
		return "min_order_not_met"
	case errors.Is(err, coupon.ErrCouponExpired):
		return "expired"
	case errors.Is(err, coupon.ErrCouponUsageLimitReached):
		return "usage_limit"
	case errors.Is(err, coupon.ErrInvalidCoupon):
		return "invalid"
	default:
		return "error"
	}
}

// RemoveCoupon clears the partition's applied coupon.
func (s *Service) RemoveCoupon(partition string) {
	s.mu.Lock()
	delete(s.applied, partition)
	s.mu.Unlock()
}

// Reset tears down all checkout state of the partition.
func (s *Service) Reset(partition string) {
	s.RemoveCoupon(partition)
}

// Applied returns a copy of the partition's applied coupon, or nil.
func (s *Service) Applied(partition string) *coupon.Rule {
	s.mu.Lock()
	defer s.mu.Unlock()

	rule, ok := s.applied[partition]
	if !ok {
		return nil
	}
	cp := *rule
	return &cp
}

// Quote prices the selected lines with the partition's applied coupon. If the
// subtotal has dropped below the coupon's minimum order the coupon is revoked
// and Totals.CouponRevoked is set.
func (s *Service) Quote(ctx context.Context, partition string, lines []Line, selected Selection, opts Options) Totals {
	rule := s.Applied(partition)
	totals := Calculate(s.pricing, lines, selected, rule, opts)

	if totals.CouponRevoked {
		s.mu.Lock()
		// Only revoke if the coupon was not replaced concurrently.
		if cur, ok := s.applied[partition]; ok && cur.Code == rule.Code {
			delete(s.applied, partition)
		}
		s.mu.Unlock()

		s.couponOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "revoked")))
		s.lg.Info("Coupon revoked below minimum order",
			zap.String("partition", partition),
			zap.String("code", rule.Code),
			zap.String("subtotal", totals.Subtotal.StringFixed(2)),
		)
	}

	s.quotes.Add(ctx, 1)
	return totals
}

// Redeem consumes one use of the partition's applied coupon and clears it.
// It is a no-op when no coupon is applied.
func (s *Service) Redeem(ctx context.Context, partition string) error {
	rule := s.Applied(partition)
	if rule == nil {
		return nil
	}
	if err := s.coupons.Redeem(ctx, rule.Code); err != nil {
		return errors.Wrap(err, "redeem coupon")
	}
	s.RemoveCoupon(partition)
	return nil
}
