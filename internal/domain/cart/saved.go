package cart

import (
	"context"
	"slices"

	"github.com/go-faster/errors"

	"github.com/agrilink/storefront/internal/storage/local"
)

// Saved returns the items parked with SaveForLater. The list is kept in the
// browser partition for guests and signed-in users alike.
func (s *Service) Saved(ctx context.Context, partition string) ([]Item, error) {
	var items []Item
	if err := s.saved.GetJSON(ctx, partition, local.KeySavedForLater, &items); err != nil {
		if errors.Is(err, local.ErrNotFound) {
			return []Item{}, nil
		}
		return nil, errors.Wrap(err, "load saved items")
	}
	return items, nil
}

// updateSaved applies fn to the saved list atomically.
func (s *Service) updateSaved(ctx context.Context, partition string, fn func(items []Item) ([]Item, error)) error {
	err := local.UpdateJSON(ctx, s.saved, partition, local.KeySavedForLater, func(items *[]Item) error {
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
		return errors.Wrap(err, "update saved items")
	}
	return nil
}

// SaveForLater moves a line out of the cart into the saved list.
func (s *Service) SaveForLater(ctx context.Context, partition, listingID string) (Cart, error) {
	current, err := s.Get(ctx, partition)
	if err != nil {
		return Cart{}, err
	}
	item, ok := current.Find(listingID)
	if !ok {
		return Cart{}, ErrItemNotFound
	}

	c, err := s.Remove(ctx, partition, listingID)
	if err != nil {
		return Cart{}, err
	}

	if err := s.updateSaved(ctx, partition, func(saved []Item) ([]Item, error) {
		saved = slices.DeleteFunc(saved, func(it Item) bool { return it.ListingID == listingID })
		return append(saved, item), nil
	}); err != nil {
		// Put the line back so it is not lost.
		if _, rerr := s.Add(ctx, partition, item); rerr != nil {
			return Cart{}, errors.Wrapf(err, "restore cart line: %v", rerr)
		}
		return Cart{}, err
	}
	return c, nil
}

// MoveToCart moves a saved item back into the cart.
func (s *Service) MoveToCart(ctx context.Context, partition, listingID string) (Cart, error) {
	var item Item
	if err := s.updateSaved(ctx, partition, func(saved []Item) ([]Item, error) {
		idx := slices.IndexFunc(saved, func(it Item) bool { return it.ListingID == listingID })
		if idx < 0 {
			return nil, ErrItemNotFound
		}
		item = saved[idx]
		return slices.Delete(saved, idx, idx+1), nil
	}); err != nil {
		return Cart{}, err
	}
	if item.Quantity < 1 {
		item.Quantity = 1
	}

	c, err := s.Add(ctx, partition, item)
	if err != nil {
		// Park the item again so it is not lost.
		if rerr := s.updateSaved(ctx, partition, func(saved []Item) ([]Item, error) {
			return append(saved, item), nil
		}); rerr != nil {
			return Cart{}, errors.Wrapf(err, "restore saved item: %v", rerr)
		}
		return Cart{}, err
	}
	return c, nil
}
