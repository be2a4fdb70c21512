package coupon

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticLister struct {
	codes []string
	err   error
}

func (l staticLister) ListCodes(context.Context) ([]string, error) {
	return l.codes, l.err
}

func TestFilteredRepository_RejectsUnknownWithoutLookup(t *testing.T) {
	repo := &mockCouponRepo{rule: &Rule{Code: "SAVE50", DiscountType: DiscountFlat, Value: d("50")}}
	f := NewFilteredRepository(repo, staticLister{codes: []string{"SAVE50", "FRESH10"}})

	n, err := f.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = f.FindByCode(context.Background(), "TYPO-CODE-123")
	require.ErrorIs(t, err, ErrInvalidCoupon)
	assert.Equal(t, 0, repo.lookups)

	rule, err := f.FindByCode(context.Background(), "save50")
	require.NoError(t, err)
	assert.Equal(t, "SAVE50", rule.Code)
	assert.Equal(t, 1, repo.lookups)
}

func TestFilteredRepository_PassThroughWithoutFilter(t *testing.T) {
	repo := &mockCouponRepo{rule: &Rule{Code: "ANY"}}
	f := NewFilteredRepository(repo, staticLister{})

	_, err := f.FindByCode(context.Background(), "ANY")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.lookups)
}

func TestFilteredRepository_RefreshError(t *testing.T) {
	f := NewFilteredRepository(&mockCouponRepo{}, staticLister{err: errors.New("db down")})

	_, err := f.Refresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list coupon codes")
}

func TestFilteredRepository_IncrementUses(t *testing.T) {
	repo := &mockCouponRepo{}
	f := NewFilteredRepository(repo, staticLister{})

	require.NoError(t, f.IncrementUses(context.Background(), "SAVE50"))
	assert.Equal(t, "SAVE50", repo.incrementCode)
}
