package cart

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrilink/storefront/internal/storage/local"
)

func TestGuestStore_AddClampsToStock(t *testing.T) {
	tests := []struct {
		name    string
		adds    []Item
		wantQty int
	}{
		{
			name:    "single add under stock",
			adds:    []Item{{ListingID: "x", Quantity: 2, AvailableQuantity: 5}},
			wantQty: 2,
		},
		{
			name:    "single add over stock",
			adds:    []Item{{ListingID: "x", Quantity: 9, AvailableQuantity: 5}},
			wantQty: 5,
		},
		{
			name: "merge over stock",
			adds: []Item{
				{ListingID: "x", Quantity: 3, AvailableQuantity: 5},
				{ListingID: "x", Quantity: 3},
			},
			wantQty: 5,
		},
		{
			name: "unknown stock",
			adds: []Item{
				{ListingID: "x", Quantity: 30},
				{ListingID: "x", Quantity: 30},
			},
			wantQty: 60,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := local.Open(context.Background(), ":memory:")
			require.NoError(t, err)
			defer store.Close()

			g := NewGuestStore(store)
			ctx := context.Background()
			for _, it := range tt.adds {
				require.NoError(t, g.Add(ctx, "p", it))
			}

			c, err := g.Get(ctx, "p")
			require.NoError(t, err)
			require.Len(t, c.Items, 1)
			assert.Equal(t, tt.wantQty, c.Items[0].Quantity)
		})
	}
}

func TestGuestStore_RemoveMissingAndClear(t *testing.T) {
	store, err := local.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	defer store.Close()

	g := NewGuestStore(store)
	ctx := context.Background()

	require.NoError(t, g.Remove(ctx, "p", "nothing"))
	require.NoError(t, g.Add(ctx, "p", Item{ListingID: "a", Quantity: 1}))
	require.NoError(t, g.Add(ctx, "p", Item{ListingID: "b", Quantity: 1}))
	require.NoError(t, g.Remove(ctx, "p", "a"))

	c, err := g.Get(ctx, "p")
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, "b", c.Items[0].ListingID)

	require.NoError(t, g.Clear(ctx, "p"))
	c, err = g.Get(ctx, "p")
	require.NoError(t, err)
	assert.Empty(t, c.Items)
}
