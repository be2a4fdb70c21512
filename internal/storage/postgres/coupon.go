package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/agrilink/storefront/internal/domain/coupon"
)

const (
	getCouponByCodeSQL = `SELECT code, discount_type, value, min_order, max_discount, description,
		valid_from, valid_until, max_uses, uses
		FROM coupons WHERE code = UPPER(TRIM($1)) AND active = TRUE`

	incrementCouponUsesSQL = `UPDATE coupons SET uses = uses + 1, updated_at = now()
		WHERE code = UPPER(TRIM($1)) AND active = TRUE
		AND (max_uses = 0 OR uses < max_uses)`

	listCouponCodesSQL = `SELECT code FROM coupons WHERE active = TRUE ORDER BY code`

	upsertCouponSQL = `INSERT INTO coupons (code, discount_type, value, min_order, max_discount,
		description, valid_from, valid_until, max_uses, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (code) DO UPDATE SET
			discount_type = EXCLUDED.discount_type,
			value = EXCLUDED.value,
			min_order = EXCLUDED.min_order,
			max_discount = EXCLUDED.max_discount,
			description = EXCLUDED.description,
			valid_from = EXCLUDED.valid_from,
			valid_until = EXCLUDED.valid_until,
			max_uses = EXCLUDED.max_uses,
			active = EXCLUDED.active,
			updated_at = now()`
)

var (
	_ coupon.Repository = (*CouponRepository)(nil)
	_ coupon.CodeLister = (*CouponRepository)(nil)
)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up an active coupon by its code (case-insensitive).
// Returns coupon.ErrInvalidCoupon when no matching active coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Rule, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, errors.Wrapf(err, "find coupon %q", code)
	}

	rule, err := pgx.CollectExactlyOneRow(rows, scanCouponRule)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrInvalidCoupon
		}
		return nil, errors.Wrapf(err, "find coupon %q", code)
	}
	return &rule, nil
}

// IncrementUses atomically increments the usage counter. A coupon that has
// exhausted its uses in the meantime yields coupon.ErrCouponUsageLimitReached.
func (r *CouponRepository) IncrementUses(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx, incrementCouponUsesSQL, code)
	if err != nil {
		return errors.Wrapf(err, "increment uses for coupon %q", code)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrCouponUsageLimitReached
	}
	return nil
}

// ListCodes returns every active coupon code.
func (r *CouponRepository) ListCodes(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, listCouponCodesSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list coupon codes")
	}
	codes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, errors.Wrap(err, "list coupon codes")
	}
	return codes, nil
}

// Upsert inserts or replaces a catalog entry. Usage counters of existing
// coupons are preserved.
func (r *CouponRepository) Upsert(ctx context.Context, e coupon.CatalogEntry) error {
	rule, err := e.Rule()
	if err != nil {
		return err
	}
	if _, err := r.pool.Exec(ctx, upsertCouponSQL,
		rule.Code, string(rule.DiscountType), rule.Value, rule.MinOrder, rule.MaxDiscount,
		rule.Description, rule.ValidFrom, rule.ValidUntil, rule.MaxUses, e.IsActive(),
	); err != nil {
		return errors.Wrapf(err, "upsert coupon %q", rule.Code)
	}
	return nil
}

func scanCouponRule(row pgx.CollectableRow) (coupon.Rule, error) {
	var (
		rule         coupon.Rule
		discountType string
		minOrder     decimal.Decimal
		maxDiscount  decimal.Decimal
		validFrom    *time.Time
		validUntil   *time.Time
		maxUses      int32
		uses         int32
	)
	err := row.Scan(
		&rule.Code, &discountType, &rule.Value, &minOrder, &maxDiscount, &rule.Description,
		&validFrom, &validUntil, &maxUses, &uses,
	)
	rule.DiscountType = coupon.DiscountType(discountType)
	rule.MinOrder = minOrder
	rule.MaxDiscount = maxDiscount
	rule.ValidFrom = validFrom
	rule.ValidUntil = validUntil
	rule.MaxUses = int(maxUses)
	rule.Uses = int(uses)
	return rule, err
}
