// Package dashboard assembles the farmer dashboard from several upstream
// services. A failing source degrades to zero values instead of failing the
// whole view.
package dashboard

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/agrilink/storefront/internal/client"
)

// Sources of dashboard data, reported in Stats.Degraded when unavailable.
const (
	SourceAnalytics = "analytics"
	SourceFarms     = "farms"
	SourceListings  = "listings"
	SourceOrders    = "orders"
)

// recentOrders is the number of orders shown on the dashboard.
const recentOrders = 5

// FarmAPI is the farm service.
type FarmAPI interface {
	Dashboard(ctx context.Context) (*client.DashboardAnalytics, error)
	Farms(ctx context.Context) ([]client.Farm, error)
}

// ListingAPI is the marketplace listing endpoint.
type ListingAPI interface {
	Listings(ctx context.Context, q client.ListingQuery) (*client.ListingPage, error)
}

// OrderAPI is the order listing endpoint.
type OrderAPI interface {
	Orders(ctx context.Context) ([]client.Order, error)
}

// Stats is the farmer dashboard.
type Stats struct {
	TotalRevenue   decimal.Decimal `json:"totalRevenue"`
	TotalOrders    int             `json:"totalOrders"`
	PendingOrders  int             `json:"pendingOrders"`
	ActiveListings int             `json:"activeListings"`
	TotalFarms     int             `json:"totalFarms"`
	ActiveCrops    int             `json:"activeCrops"`
	RecentOrders   []client.Order  `json:"recentOrders"`
	Farms          []client.Farm   `json:"farms"`
	// Degraded lists the sources that failed and were zeroed.
	Degraded []string `json:"degraded,omitempty"`
}

// Service builds dashboards.
type Service struct {
	farms    FarmAPI
	listings ListingAPI
	orders   OrderAPI
	lg       *zap.Logger
}

// NewService creates a dashboard Service.
func NewService(farms FarmAPI, listings ListingAPI, orders OrderAPI, lg *zap.Logger) *Service {
	return &Service{farms: farms, listings: listings, orders: orders, lg: lg}
}

// FarmerStats fetches all sources concurrently for the farmer in ctx. It
// never fails; unavailable sources are listed in Stats.Degraded.
func (s *Service) FarmerStats(ctx context.Context, farmerID string) Stats {
	var (
		mu        sync.Mutex
		degraded  []string
		analytics *client.DashboardAnalytics
		farms     []client.Farm
		listings  *client.ListingPage
		orders    []client.Order
	)
	fail := func(source string, err error) {
		s.lg.Warn("Dashboard source unavailable",
			zap.String("source", source),
			zap.String("farmer_id", farmerID),
			zap.Error(err),
		)
		mu.Lock()
		degraded = append(degraded, source)
		mu.Unlock()
	}

	// Every goroutine returns nil so one failure never cancels the others.
	var g errgroup.Group
	g.Go(func() error {
		v, err := s.farms.Dashboard(ctx)
		if err != nil {
			fail(SourceAnalytics, err)
			return nil
		}
		analytics = v
		return nil
	})
	g.Go(func() error {
		v, err := s.farms.Farms(ctx)
		if err != nil {
			fail(SourceFarms, err)
			return nil
		}
		farms = v
		return nil
	})
	g.Go(func() error {
		v, err := s.listings.Listings(ctx, client.ListingQuery{SellerID: farmerID, Size: 1})
		if err != nil {
			fail(SourceListings, err)
			return nil
		}
		listings = v
		return nil
	})
	g.Go(func() error {
		v, err := s.orders.Orders(ctx)
		if err != nil {
			fail(SourceOrders, err)
			return nil
		}
		orders = v
		return nil
	})
	_ = g.Wait()

	st := Stats{
		TotalRevenue: decimal.Zero,
		RecentOrders: []client.Order{},
		Farms:        []client.Farm{},
	}
	if analytics != nil {
		st.TotalRevenue = analytics.TotalRevenue
		st.TotalOrders = analytics.TotalOrders
		st.PendingOrders = analytics.PendingOrders
		st.ActiveListings = analytics.ActiveListings
		st.TotalFarms = analytics.TotalFarms
		st.ActiveCrops = analytics.ActiveCrops
	}
	if farms != nil {
		st.Farms = farms
		st.TotalFarms = len(farms)
	}
	if listings != nil && st.ActiveListings == 0 {
		st.ActiveListings = listings.TotalElements
	}
	if orders != nil {
		// Analytics may be missing; derive order counters from the orders.
		if analytics == nil {
			st.TotalOrders = len(orders)
			revenue := decimal.Zero
			for _, o := range orders {
				if strings.EqualFold(o.Status, "PENDING") {
					st.PendingOrders++
				}
				if !strings.EqualFold(o.Status, "CANCELLED") {
					revenue = revenue.Add(o.Total)
				}
			}
			st.TotalRevenue = revenue
		}
		sorted := slices.Clone(orders)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
		})
		if len(sorted) > recentOrders {
			sorted = sorted[:recentOrders]
		}
		st.RecentOrders = sorted
	}

	sort.Strings(degraded)
	st.Degraded = degraded
	return st
}
