// Package handler exposes the storefront gateway as a JSON API for the SPA.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/agrilink/storefront/internal/client"
	"github.com/agrilink/storefront/internal/domain/cart"
	"github.com/agrilink/storefront/internal/domain/checkout"
	"github.com/agrilink/storefront/internal/domain/dashboard"
	"github.com/agrilink/storefront/internal/domain/guard"
	"github.com/agrilink/storefront/internal/domain/search"
	"github.com/agrilink/storefront/internal/domain/session"
	"github.com/agrilink/storefront/internal/domain/wishlist"
	"github.com/agrilink/storefront/internal/events"
	"github.com/agrilink/storefront/pkg/httpmiddleware"
)

// Marketplace is the listing catalogue.
type Marketplace interface {
	Listings(ctx context.Context, q client.ListingQuery) (*client.ListingPage, error)
	Listing(ctx context.Context, id string) (*client.Listing, error)
	Categories(ctx context.Context) ([]client.Category, error)
}

// Orders is the order service.
type Orders interface {
	InitializeCheckout(ctx context.Context, req client.CheckoutRequest) (*client.CheckoutSession, error)
	VerifyPayment(ctx context.Context, req client.PaymentVerification) (*client.Order, error)
	Orders(ctx context.Context) ([]client.Order, error)
}

// Profiles is the user service.
type Profiles interface {
	Profile(ctx context.Context, kind client.ProfileKind) (*client.Profile, error)
	UpdateProfile(ctx context.Context, kind client.ProfileKind, p client.Profile) (*client.Profile, error)
	Addresses(ctx context.Context) ([]client.Address, error)
}

// Notifications is the notification service.
type Notifications interface {
	List(ctx context.Context) ([]client.Notification, error)
	MarkRead(ctx context.Context, id string) error
	Stream(ctx context.Context, fn func(client.Notification)) error
}

// Storage is the partitioned local store.
type Storage interface {
	Get(ctx context.Context, partition, key string) ([]byte, error)
	Set(ctx context.Context, partition, key string, value []byte) error
}

// Config holds non-dependency handler settings.
type Config struct {
	// CookieName names the browser partition cookie.
	CookieName   string
	CookieSecure bool
	CookieMaxAge time.Duration
	// AllowedOrigins are accepted on websocket upgrades; empty allows any.
	AllowedOrigins []string
	// SearchDelay debounces live search; zero uses search.DefaultDelay.
	SearchDelay time.Duration
}

// Deps are the services behind the API.
type Deps struct {
	Sessions      *session.Manager
	Cart          *cart.Service
	Wishlist      *wishlist.Service
	Checkout      *checkout.Service
	Routes        *guard.Routes
	Search        *search.Service
	Dashboard     *dashboard.Service
	Marketplace   Marketplace
	Orders        Orders
	Profiles      Profiles
	Notifications Notifications
	Farms         Farms
	Selling       Selling
	Farmers       Farmers
	Storage       Storage
	Bus           *events.Bus
}

// Handler serves the storefront API.
type Handler struct {
	Deps
	cfg      Config
	upgrader websocket.Upgrader

	// closing is cancelled by Close to end websocket sessions, which
	// http.Server.Shutdown does not track.
	closing context.Context
	stop    context.CancelFunc
}

// New creates a Handler.
func New(cfg Config, deps Deps) *Handler {
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	if cfg.CookieMaxAge == 0 {
		cfg.CookieMaxAge = 365 * 24 * time.Hour
	}
	h := &Handler{Deps: deps, cfg: cfg}
	h.closing, h.stop = context.WithCancel(context.Background())
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	return h
}

// Close ends every open websocket session.
func (h *Handler) Close() {
	h.stop()
}

// RoutePattern returns the chi route pattern that served r.
func RoutePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return ""
	}
	return rctx.RoutePattern()
}

// Router builds the API routes. Websocket routes skip instrument, which
// would hide the connection hijacker.
func (h *Handler) Router(instrument httpmiddleware.Middleware) chi.Router {
	r := chi.NewRouter()
	r.Use(h.partition)
	if instrument == nil {
		instrument = func(next http.Handler) http.Handler { return next }
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/search/live", h.liveSearch)
		r.Get("/events", h.eventStream)

		r.Group(func(r chi.Router) {
			r.Use(instrument)

			r.Route("/auth", func(r chi.Router) {
				r.Get("/session", h.getSession)
				r.Post("/login", h.login)
				r.Post("/register", h.register)
				r.Post("/logout", h.logout)
				r.Post("/refresh", h.refresh)
			})

			r.Get("/guard", h.checkGuard)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.getCart)
				r.Delete("/", h.clearCart)
				r.Post("/items", h.addCartItem)
				r.Put("/items/{listingID}", h.updateCartItem)
				r.Delete("/items/{listingID}", h.removeCartItem)
				r.Get("/saved", h.getSaved)
				r.Post("/saved/{listingID}", h.saveForLater)
				r.Post("/saved/{listingID}/move", h.moveToCart)
			})

			r.Route("/wishlist", func(r chi.Router) {
				r.Get("/", h.getWishlist)
				r.Post("/{listingID}", h.addToWishlist)
				r.Delete("/{listingID}", h.removeFromWishlist)
				r.Post("/{listingID}/toggle", h.toggleWishlist)
			})

			r.Route("/checkout", func(r chi.Router) {
				r.Post("/quote", h.quote)
				r.Post("/coupon", h.applyCoupon)
				r.Delete("/coupon", h.removeCoupon)
				r.Post("/initialize", h.initializeCheckout)
				r.Post("/verify", h.verifyPayment)
			})

			r.Get("/listings", h.listListings)
			r.Get("/listings/{listingID}", h.getListing)
			r.Get("/categories", h.listCategories)

			r.Get("/search", h.search)
			r.Get("/search/recent", h.recentSearches)
			r.Delete("/search/recent", h.clearRecentSearches)

			r.Get("/delivery-location", h.getDeliveryLocation)
			r.Put("/delivery-location", h.setDeliveryLocation)

			r.Get("/profile/{kind}", h.getProfile)
			r.Put("/profile/{kind}", h.updateProfile)
			r.Get("/addresses", h.listAddresses)
			r.Get("/orders", h.listOrders)
			r.Get("/dashboard", h.farmerDashboard)

			r.Get("/notifications", h.listNotifications)
			r.Post("/notifications/{id}/read", h.markNotificationRead)

			r.Route("/farmer", func(r chi.Router) {
				r.Get("/farms", h.listFarms)
				r.Post("/farms", h.createFarm)
				r.Put("/farms/{farmID}", h.updateFarm)
				r.Delete("/farms/{farmID}", h.deleteFarm)
				r.Get("/farms/{farmID}/crops", h.listCrops)
				r.Post("/farms/{farmID}/crops", h.addCrop)
				r.Get("/farms/{farmID}/harvest-guidance", h.harvestGuidance)
				r.Post("/listings", h.createListing)
				r.Post("/listings/{listingID}/publish", h.publishListing)
			})

			r.Get("/farmers/{farmerID}/follow", h.getFollow)
			r.Post("/farmers/{farmerID}/follow", h.setFollow(true))
			r.Delete("/farmers/{farmerID}/follow", h.setFollow(false))
			r.Post("/manager/farmers/{farmerID}/approve", h.approveFarmer)
		})
	})
	return r
}
