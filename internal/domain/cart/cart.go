// Package cart presents one cart interface to guests and signed-in users.
// Guest carts live in the browser partition; authenticated carts are owned by
// the order service.
package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/agrilink/storefront/internal/domain/checkout"
)

var (
	// ErrInvalidQuantity is returned for quantities below one.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	// ErrItemNotFound is returned when a listing is not in the cart.
	ErrItemNotFound = errors.New("item not in cart")
	// ErrMissingListing is returned when an item has no listing id.
	ErrMissingListing = errors.New("listing id is required")
)

// Item is a cart line. The JSON form is the guest cart storage format.
type Item struct {
	ListingID         string          `json:"listingId"`
	SellerID          string          `json:"sellerId"`
	Quantity          int             `json:"quantity"`
	UnitPrice         decimal.Decimal `json:"unitPrice"`
	OriginalPrice     decimal.Decimal `json:"originalPrice"`
	Title             string          `json:"title"`
	ImageURL          string          `json:"imageUrl,omitempty"`
	Unit              string          `json:"unit,omitempty"`
	AvailableQuantity int             `json:"availableQuantity,omitempty"`
}

// clamp limits the quantity to the known stock.
func (i Item) clamp() Item {
	if i.AvailableQuantity > 0 && i.Quantity > i.AvailableQuantity {
		i.Quantity = i.AvailableQuantity
	}
	return i
}

// Cart is an ordered list of items.
type Cart struct {
	Items []Item `json:"items"`
}

// Count returns the badge count: the total quantity of all items.
func (c Cart) Count() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// Find returns the item for listingID.
func (c Cart) Find(listingID string) (Item, bool) {
	for _, it := range c.Items {
		if it.ListingID == listingID {
			return it, true
		}
	}
	return Item{}, false
}

// Lines converts the cart for the checkout calculator.
func (c Cart) Lines() []checkout.Line {
	lines := make([]checkout.Line, 0, len(c.Items))
	for _, it := range c.Items {
		lines = append(lines, checkout.Line{
			ListingID:     it.ListingID,
			Quantity:      it.Quantity,
			UnitPrice:     it.UnitPrice,
			OriginalPrice: it.OriginalPrice,
		})
	}
	return lines
}

// Store is a cart backend. Partition identifies the browser; the
// authenticated backend takes the user from ctx instead.
type Store interface {
	Get(ctx context.Context, partition string) (Cart, error)
	Add(ctx context.Context, partition string, item Item) error
	Update(ctx context.Context, partition, listingID string, quantity int) error
	Remove(ctx context.Context, partition, listingID string) error
	Clear(ctx context.Context, partition string) error
}
