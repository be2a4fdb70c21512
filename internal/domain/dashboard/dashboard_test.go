package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/agrilink/storefront/internal/client"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type mockFarm struct {
	analytics *client.DashboardAnalytics
	farms     []client.Farm
	errA      error
	errF      error
}

func (m *mockFarm) Dashboard(context.Context) (*client.DashboardAnalytics, error) {
	return m.analytics, m.errA
}

func (m *mockFarm) Farms(context.Context) ([]client.Farm, error) {
	return m.farms, m.errF
}

type mockListings struct {
	total  int
	err    error
	seller string
}

func (m *mockListings) Listings(_ context.Context, q client.ListingQuery) (*client.ListingPage, error) {
	m.seller = q.SellerID
	if m.err != nil {
		return nil, m.err
	}
	return &client.ListingPage{TotalElements: m.total}, nil
}

type mockOrders struct {
	orders []client.Order
	err    error
}

func (m *mockOrders) Orders(context.Context) ([]client.Order, error) {
	return m.orders, m.err
}

func orderAt(id, status, total string, minutes int) client.Order {
	return client.Order{
		ID:        id,
		Status:    status,
		Total:     decimal.RequireFromString(total),
		CreatedAt: time.Date(2024, 1, 1, 0, minutes, 0, 0, time.UTC),
	}
}

func TestFarmerStats_AllSources(t *testing.T) {
	farm := &mockFarm{
		analytics: &client.DashboardAnalytics{
			TotalRevenue: decimal.NewFromInt(12500), TotalOrders: 40, PendingOrders: 3,
			ActiveListings: 7, TotalFarms: 1, ActiveCrops: 4,
		},
		farms: []client.Farm{{ID: "f1"}, {ID: "f2"}},
	}
	listings := &mockListings{total: 9}
	var orders []client.Order
	for i := range 7 {
		orders = append(orders, orderAt(string(rune('a'+i)), "DELIVERED", "100", i))
	}

	svc := NewService(farm, listings, &mockOrders{orders: orders}, zap.NewNop())
	st := svc.FarmerStats(context.Background(), "farmer-1")

	assert.Empty(t, st.Degraded)
	assert.True(t, decimal.NewFromInt(12500).Equal(st.TotalRevenue))
	assert.Equal(t, 40, st.TotalOrders)
	assert.Equal(t, 7, st.ActiveListings, "analytics wins over listing count")
	assert.Equal(t, 2, st.TotalFarms, "farm list wins over analytics")
	assert.Equal(t, "farmer-1", listings.seller)
	require.Len(t, st.RecentOrders, recentOrders)
	assert.Equal(t, "g", st.RecentOrders[0].ID, "newest first")
}

func TestFarmerStats_PartialFailureDegradesToZero(t *testing.T) {
	down := errors.New("service unavailable")
	farm := &mockFarm{errA: down, errF: down}
	orders := &mockOrders{orders: []client.Order{
		orderAt("o1", "PENDING", "250.50", 1),
		orderAt("o2", "DELIVERED", "100", 2),
		orderAt("o3", "CANCELLED", "999", 3),
	}}

	svc := NewService(farm, &mockListings{total: 3}, orders, zap.NewNop())
	st := svc.FarmerStats(context.Background(), "farmer-1")

	assert.Equal(t, []string{SourceAnalytics, SourceFarms}, st.Degraded)
	assert.Equal(t, 0, st.TotalFarms)
	assert.NotNil(t, st.Farms)
	assert.Equal(t, 3, st.ActiveListings)
	assert.Equal(t, 3, st.TotalOrders)
	assert.Equal(t, 1, st.PendingOrders)
	assert.True(t, decimal.RequireFromString("350.50").Equal(st.TotalRevenue))
}

func TestFarmerStats_EverythingDown(t *testing.T) {
	down := errors.New("down")
	svc := NewService(
		&mockFarm{errA: down, errF: down},
		&mockListings{err: down},
		&mockOrders{err: down},
		zap.NewNop(),
	)
	st := svc.FarmerStats(context.Background(), "f")

	assert.Equal(t, []string{SourceAnalytics, SourceFarms, SourceListings, SourceOrders}, st.Degraded)
	assert.True(t, st.TotalRevenue.IsZero())
	assert.Zero(t, st.TotalOrders)
	assert.Empty(t, st.RecentOrders)
}
