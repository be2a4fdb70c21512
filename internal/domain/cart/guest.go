package cart

import (
	"context"
	"slices"

	"github.com/go-faster/errors"

	"github.com/agrilink/storefront/internal/storage/local"
)

// JSONStorage is the subset of the partitioned local store used by the
// guest-side stores.
type JSONStorage interface {
	local.Updater
	GetJSON(ctx context.Context, partition, key string, v any) error
	Delete(ctx context.Context, partition string, keys ...string) error
}

// GuestStore keeps the cart as a JSON array under a partition key.
type GuestStore struct {
	storage JSONStorage
	key     string
}

// NewGuestStore creates the guest cart store.
func NewGuestStore(storage JSONStorage) *GuestStore {
	return &GuestStore{storage: storage, key: local.KeyGuestCart}
}

func (g *GuestStore) load(ctx context.Context, partition string) ([]Item, error) {
	var items []Item
	if err := g.storage.GetJSON(ctx, partition, g.key, &items); err != nil {
		if errors.Is(err, local.ErrNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "load guest cart")
	}
	return items, nil
}

// update applies fn to the stored lines atomically.
func (g *GuestStore) update(ctx context.Context, partition string, fn func(items []Item) ([]Item, error)) error {
	err := local.UpdateJSON(ctx, g.storage, partition, g.key, func(items *[]Item) error {
		next, err := fn(*items)
		if err != nil {
			return err
		}
		if next == nil {
			next = []Item{}
		}
		*items = next
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "update guest cart")
	}
	return nil
}

func (g *GuestStore) Get(ctx context.Context, partition string) (Cart, error) {
	items, err := g.load(ctx, partition)
	if err != nil {
		return Cart{}, err
	}
	return Cart{Items: items}, nil
}

// Add merges item into the cart. An existing line gets the quantities
// summed; the stock limit of the incoming item wins.
func (g *GuestStore) Add(ctx context.Context, partition string, item Item) error {
	return g.update(ctx, partition, func(items []Item) ([]Item, error) {
		idx := slices.IndexFunc(items, func(it Item) bool { return it.ListingID == item.ListingID })
		if idx < 0 {
			return append(items, item.clamp()), nil
		}
		merged := item
		merged.Quantity = items[idx].Quantity + item.Quantity
		if merged.AvailableQuantity == 0 {
			merged.AvailableQuantity = items[idx].AvailableQuantity
		}
		items[idx] = merged.clamp()
		return items, nil
	})
}

func (g *GuestStore) Update(ctx context.Context, partition, listingID string, quantity int) error {
	return g.update(ctx, partition, func(items []Item) ([]Item, error) {
		idx := slices.IndexFunc(items, func(it Item) bool { return it.ListingID == listingID })
		if idx < 0 {
			return nil, ErrItemNotFound
		}
		items[idx].Quantity = quantity
		items[idx] = items[idx].clamp()
		return items, nil
	})
}

// Remove deletes the listing. Removing a missing listing is not an error.
func (g *GuestStore) Remove(ctx context.Context, partition, listingID string) error {
	return g.update(ctx, partition, func(items []Item) ([]Item, error) {
		return slices.DeleteFunc(items, func(it Item) bool { return it.ListingID == listingID }), nil
	})
}

func (g *GuestStore) Clear(ctx context.Context, partition string) error {
	if err := g.storage.Delete(ctx, partition, g.key); err != nil {
		return errors.Wrap(err, "clear guest cart")
	}
	return nil
}
