package cart

import (
	"context"

	"github.com/agrilink/storefront/internal/client"
)

// OrderAPI is the cart part of the order service.
type OrderAPI interface {
	Cart(ctx context.Context) (*client.RemoteCart, error)
	AddCartItem(ctx context.Context, listingID string, quantity int) error
	UpdateCartItem(ctx context.Context, listingID string, quantity int) error
	RemoveCartItem(ctx context.Context, listingID string) error
	ClearCart(ctx context.Context) error
}

// RemoteStore mirrors the server-side cart of the user in ctx. Errors are
// returned as the client produced them.
type RemoteStore struct {
	api OrderAPI
}

// NewRemoteStore creates the authenticated cart store.
func NewRemoteStore(api OrderAPI) *RemoteStore {
	return &RemoteStore{api: api}
}

func (r *RemoteStore) Get(ctx context.Context, _ string) (Cart, error) {
	rc, err := r.api.Cart(ctx)
	if err != nil {
		return Cart{}, err
	}
	items := make([]Item, 0, len(rc.Items))
	for _, it := range rc.Items {
		items = append(items, Item{
			ListingID:         it.ListingID,
			SellerID:          it.SellerID,
			Quantity:          it.Quantity,
			UnitPrice:         it.UnitPrice,
			OriginalPrice:     it.OriginalPrice,
			Title:             it.Title,
			ImageURL:          it.ImageURL,
			Unit:              it.Unit,
			AvailableQuantity: it.AvailableQuantity,
		})
	}
	return Cart{Items: items}, nil
}

func (r *RemoteStore) Add(ctx context.Context, _ string, item Item) error {
	return r.api.AddCartItem(ctx, item.ListingID, item.Quantity)
}

func (r *RemoteStore) Update(ctx context.Context, _, listingID string, quantity int) error {
	if err := r.api.UpdateCartItem(ctx, listingID, quantity); err != nil {
		if client.IsNotFound(err) {
			return ErrItemNotFound
		}
		return err
	}
	return nil
}

func (r *RemoteStore) Remove(ctx context.Context, _, listingID string) error {
	return r.api.RemoveCartItem(ctx, listingID)
}

func (r *RemoteStore) Clear(ctx context.Context, _ string) error {
	return r.api.ClearCart(ctx)
}
