package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCouponRepo struct {
	rule          *Rule
	err           error
	incrementErr  error
	incrementCode string
	lookups       int
}

func (m *mockCouponRepo) FindByCode(_ context.Context, _ string) (*Rule, error) {
	m.lookups++
	return m.rule, m.err
}

func (m *mockCouponRepo) IncrementUses(_ context.Context, code string) error {
	m.incrementCode = code
	return m.incrementErr
}

func TestLookup_Validate(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	pastTime := fixedNow.Add(-24 * time.Hour)
	futureTime := fixedNow.Add(24 * time.Hour)

	tests := []struct {
		name     string
		repo     *mockCouponRepo
		code     string
		subtotal decimal.Decimal
		wantCode string
		wantErr  error
	}{
		{
			name: "valid code returns rule",
			repo: &mockCouponRepo{
				rule: &Rule{Code: "SAVE50", DiscountType: DiscountFlat, Value: d("50"), MinOrder: d("300")},
			},
			code:     "save50",
			subtotal: d("600"),
			wantCode: "SAVE50",
		},
		{
			name:     "empty code returns ErrInvalidCoupon",
			repo:     &mockCouponRepo{},
			code:     "   ",
			subtotal: d("100"),
			wantErr:  ErrInvalidCoupon,
		},
		{
			name:     "unknown code returns ErrInvalidCoupon",
			repo:     &mockCouponRepo{err: ErrInvalidCoupon},
			code:     "BOGUS",
			subtotal: d("100"),
			wantErr:  ErrInvalidCoupon,
		},
		{
			name: "subtotal below min order is rejected",
			repo: &mockCouponRepo{
				rule: &Rule{Code: "FRESH10", DiscountType: DiscountPercentage, Value: d("10"), MinOrder: d("500")},
			},
			code:     "FRESH10",
			subtotal: d("200"),
			wantErr:  ErrMinOrderNotMet,
		},
		{
			name: "subtotal equal to min order is accepted",
			repo: &mockCouponRepo{
				rule: &Rule{Code: "FRESH10", DiscountType: DiscountPercentage, Value: d("10"), MinOrder: d("500")},
			},
			code:     "FRESH10",
			subtotal: d("500"),
			wantCode: "FRESH10",
		},
		{
			name: "expired coupon (valid_until in past)",
			repo: &mockCouponRepo{
				rule: &Rule{Code: "OLD", DiscountType: DiscountPercentage, Value: d("10"), ValidUntil: &pastTime},
			},
			code:     "OLD",
			subtotal: d("100"),
			wantErr:  ErrCouponExpired,
		},
		{
			name: "coupon not yet valid (valid_from in future)",
			repo: &mockCouponRepo{
				rule: &Rule{Code: "FUTURE", DiscountType: DiscountPercentage, Value: d("10"), ValidFrom: &futureTime},
			},
			code:     "FUTURE",
			subtotal: d("100"),
			wantErr:  ErrCouponExpired,
		},
		{
			name: "coupon within valid window succeeds",
			repo: &mockCouponRepo{
				rule: &Rule{
					Code: "WINDOW", DiscountType: DiscountPercentage, Value: d("10"),
					ValidFrom: &pastTime, ValidUntil: &futureTime,
				},
			},
			code:     "WINDOW",
			subtotal: d("100"),
			wantCode: "WINDOW",
		},
		{
			name: "usage limit reached",
			repo: &mockCouponRepo{
				rule: &Rule{Code: "LIMITED", DiscountType: DiscountFlat, Value: d("10"), MaxUses: 100, Uses: 100},
			},
			code:     "LIMITED",
			subtotal: d("100"),
			wantErr:  ErrCouponUsageLimitReached,
		},
		{
			name: "unlimited uses (max_uses=0) always succeeds",
			repo: &mockCouponRepo{
				rule: &Rule{Code: "UNLIMITED", DiscountType: DiscountFlat, Value: d("5"), Uses: 9999},
			},
			code:     "UNLIMITED",
			subtotal: d("100"),
			wantCode: "UNLIMITED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewLookup(tt.repo)
			v.clock = func() time.Time { return fixedNow }

			got, err := v.Validate(context.Background(), tt.code, tt.subtotal)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantCode, got.Code)
		})
	}
}

func TestLookup_ValidateDoesNotConsumeUses(t *testing.T) {
	repo := &mockCouponRepo{rule: &Rule{Code: "INC", DiscountType: DiscountFlat, Value: d("5")}}

	v := NewLookup(repo)
	_, err := v.Validate(context.Background(), "INC", d("100"))

	require.NoError(t, err)
	assert.Empty(t, repo.incrementCode)
}

func TestLookup_Redeem(t *testing.T) {
	repo := &mockCouponRepo{}

	v := NewLookup(repo)
	require.NoError(t, v.Redeem(context.Background(), " inc "))
	assert.Equal(t, "INC", repo.incrementCode)
}

func TestLookup_RedeemError(t *testing.T) {
	repo := &mockCouponRepo{incrementErr: errors.New("db error")}

	v := NewLookup(repo)
	err := v.Redeem(context.Background(), "FAIL")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "increment coupon uses")
}

func TestLookup_LookupError(t *testing.T) {
	repo := &mockCouponRepo{err: errors.New("connection reset")}

	v := NewLookup(repo)
	_, err := v.Validate(context.Background(), "ANY", d("100"))

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCoupon)
	assert.Contains(t, err.Error(), "lookup coupon")
}

func TestRule_Check(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	later := now.Add(time.Hour)

	tests := []struct {
		name    string
		rule    Rule
		wantErr error
	}{
		{name: "Open", rule: Rule{Code: "A"}},
		{name: "NotStarted", rule: Rule{Code: "A", ValidFrom: &later}, wantErr: ErrCouponExpired},
		{name: "Exhausted", rule: Rule{Code: "A", MaxUses: 1, Uses: 1}, wantErr: ErrCouponUsageLimitReached},
		{name: "BelowMinimum", rule: Rule{Code: "A", MinOrder: d("300")}, wantErr: ErrMinOrderNotMet},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Check(now, d("200"))
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
