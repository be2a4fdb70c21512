package coupon

import (
	"context"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
)

const filterFPR = 0.001

// FilteredRepository rejects codes that are certainly unknown using a bloom
// filter of all active codes, so typos and brute-force guesses never reach the
// backing repository.
type FilteredRepository struct {
	repo   Repository
	lister CodeLister
	filter atomic.Pointer[bloom.BloomFilter]
}

var _ Repository = (*FilteredRepository)(nil)

// NewFilteredRepository wraps repo. Call Refresh before use.
func NewFilteredRepository(repo Repository, lister CodeLister) *FilteredRepository {
	return &FilteredRepository{repo: repo, lister: lister}
}

// Refresh rebuilds the filter from the current list of codes and returns the
// number of codes loaded.
func (r *FilteredRepository) Refresh(ctx context.Context) (int, error) {
	codes, err := r.lister.ListCodes(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "list coupon codes")
	}

	n := uint(len(codes))
	if n < 64 {
		n = 64
	}
	f := bloom.NewWithEstimates(n, filterFPR)
	for _, code := range codes {
		f.AddString(NormalizeCode(code))
	}
	r.filter.Store(f)
	return len(codes), nil
}

// FindByCode consults the filter before the backing repository. Without a
// filter every lookup is passed through.
func (r *FilteredRepository) FindByCode(ctx context.Context, code string) (*Rule, error) {
	code = NormalizeCode(code)
	if f := r.filter.Load(); f != nil && !f.TestString(code) {
		return nil, ErrInvalidCoupon
	}
	return r.repo.FindByCode(ctx, code)
}

// IncrementUses delegates to the backing repository.
func (r *FilteredRepository) IncrementUses(ctx context.Context, code string) error {
	return r.repo.IncrementUses(ctx, code)
}
