package search

import (
	"context"
	"slices"
	"strings"

	"github.com/go-faster/errors"

	"github.com/agrilink/storefront/internal/storage/local"
)

// MaxRecent is the number of recent searches kept per partition.
const MaxRecent = 10

// Storage is the subset of the partitioned local store used for history.
type Storage interface {
	local.Updater
	GetJSON(ctx context.Context, partition, key string, v any) error
	Delete(ctx context.Context, partition string, keys ...string) error
}

// Recent is the recent search history, most recent first.
type Recent struct {
	storage Storage
	limit   int
}

// NewRecent creates a history keeping MaxRecent entries.
func NewRecent(storage Storage) *Recent {
	return &Recent{storage: storage, limit: MaxRecent}
}

func (r *Recent) List(ctx context.Context, partition string) ([]string, error) {
	var list []string
	if err := r.storage.GetJSON(ctx, partition, local.KeyRecentSearches, &list); err != nil {
		if errors.Is(err, local.ErrNotFound) {
			return []string{}, nil
		}
		return nil, errors.Wrap(err, "load recent searches")
	}
	return list, nil
}

// Record moves query to the front of the history. Queries differing only in
// case or surrounding space are treated as the same entry. Blank queries are
// ignored.
func (r *Recent) Record(ctx context.Context, partition, query string) ([]string, error) {
	query = strings.Join(strings.Fields(query), " ")
	if query == "" {
		return r.List(ctx, partition)
	}

	var list []string
	err := local.UpdateJSON(ctx, r.storage, partition, local.KeyRecentSearches, func(cur *[]string) error {
		next := slices.DeleteFunc(*cur, func(q string) bool { return strings.EqualFold(q, query) })
		next = append([]string{query}, next...)
		if len(next) > r.limit {
			next = next[:r.limit]
		}
		*cur, list = next, next
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "store recent searches")
	}
	return list, nil
}

func (r *Recent) Clear(ctx context.Context, partition string) error {
	if err := r.storage.Delete(ctx, partition, local.KeyRecentSearches); err != nil {
		return errors.Wrap(err, "clear recent searches")
	}
	return nil
}
