package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/agrilink/storefront/internal/client"
	"github.com/agrilink/storefront/internal/domain/cart"
	"github.com/agrilink/storefront/internal/domain/checkout"
	"github.com/agrilink/storefront/internal/domain/coupon"
	"github.com/agrilink/storefront/internal/domain/dashboard"
	"github.com/agrilink/storefront/internal/domain/guard"
	"github.com/agrilink/storefront/internal/domain/search"
	"github.com/agrilink/storefront/internal/domain/session"
	"github.com/agrilink/storefront/internal/domain/wishlist"
	"github.com/agrilink/storefront/internal/events"
	"github.com/agrilink/storefront/internal/handler"
	"github.com/agrilink/storefront/internal/storage/local"
	"github.com/agrilink/storefront/internal/storage/postgres"
	"github.com/agrilink/storefront/pkg/health"
	"github.com/agrilink/storefront/pkg/httpmiddleware"
)

const (
	serviceName          = "agrilink-storefront"
	couponRefreshEvery   = 5 * time.Minute
	upstreamCheckTimeout = 3 * time.Second
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	pricing, err := cfg.Pricing.Pricing()
	if err != nil {
		return errors.Wrap(err, "pricing")
	}

	store, err := local.Open(ctx, cfg.Local.Path)
	if err != nil {
		return errors.Wrap(err, "open local store")
	}
	defer func() { _ = store.Close() }()

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("local_store", 5*time.Second, health.PingCheck(store))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	coupons, err := openCoupons(ctx, lg, cfg, healthSvc)
	if err != nil {
		return err
	}
	defer coupons.close()

	// Upstream clients. A 401 from any service ends the caller's session.
	bus := events.NewBus()
	var sessions *session.Manager
	up, err := newUpstream(cfg.Upstream, client.Options{
		HTTPClient: &http.Client{Timeout: cfg.Upstream.Timeout},
		OnUnauthorized: func(ctx context.Context) {
			partition, _ := client.SessionFrom(ctx)
			if partition == "" {
				return
			}
			if err := sessions.Expire(context.WithoutCancel(ctx), partition); err != nil {
				zctx.From(ctx).Warn("Session expiry failed", zap.Error(err))
			}
		},
		TracerProvider: m.TracerProvider(),
		MeterProvider:  m.MeterProvider(),
	})
	if err != nil {
		return errors.Wrap(err, "create upstream clients")
	}
	probe := &http.Client{Timeout: upstreamCheckTimeout}
	for name, base := range up.bases {
		healthSvc.AddOptionalCheck("upstream_"+name, upstreamCheckTimeout,
			health.HTTPCheck(probe, base+cfg.Upstream.HealthPath))
	}

	// Domain services.
	meter := m.MeterProvider().Meter(serviceName)
	sessions = session.NewManager(store, up.auth, bus, lg.Named("session"))

	carts, err := cart.NewService(
		cart.NewGuestStore(store),
		cart.NewRemoteStore(up.order),
		store, sessions, bus, lg.Named("cart"), meter,
	)
	if err != nil {
		return errors.Wrap(err, "create cart service")
	}
	checkoutSvc, err := checkout.NewService(pricing, coupons.validator, lg.Named("checkout"), meter)
	if err != nil {
		return errors.Wrap(err, "create checkout service")
	}
	defer events.On(bus, func(e events.LoggedOut) {
		checkoutSvc.Reset(e.Partition)
	})()

	h := handler.New(handler.Config{
		CookieName:     cfg.Cookie.Name,
		CookieSecure:   cfg.Cookie.Secure,
		CookieMaxAge:   cfg.Cookie.MaxAge,
		AllowedOrigins: cfg.CORS.Origins,
		SearchDelay:    cfg.Search.Delay,
	}, handler.Deps{
		Sessions: sessions,
		Cart:     carts,
		Wishlist: wishlist.NewService(store, up.marketplace, sessions, bus, lg.Named("wishlist")),
		Checkout: checkoutSvc,
		Routes: guard.DefaultRoutes(
			guard.NewFarmerGuard(up.user, lg.Named("guard")),
			guard.NewManagerGuard(up.user, lg.Named("guard")),
		),
		Search:        search.NewService(up.marketplace, search.NewRecent(store), lg.Named("search")),
		Dashboard:     dashboard.NewService(up.farm, up.marketplace, up.order, lg.Named("dashboard")),
		Marketplace:   up.marketplace,
		Orders:        up.order,
		Profiles:      up.user,
		Notifications: up.notification,
		Farms:         up.farm,
		Selling:       up.marketplace,
		Farmers:       up.user,
		Storage:       store,
		Bus:           bus,
	})

	// Background maintenance.
	go every(ctx, cfg.Local.PurgeInterval, func(ctx context.Context) {
		n, err := store.PurgeBefore(ctx, time.Now().Add(-cfg.Local.Retention))
		if err != nil {
			lg.Warn("Partition purge failed", zap.Error(err))
			return
		}
		if n > 0 {
			lg.Info("Purged idle partitions", zap.Int64("entries", n))
		}
	})
	go every(ctx, couponRefreshEvery, func(ctx context.Context) {
		if _, err := coupons.filter.Refresh(ctx); err != nil {
			lg.Warn("Coupon filter refresh failed", zap.Error(err))
		}
	})

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Router: health endpoints + API. Request logging sits inside chi to see
	// the matched route.
	root := chi.NewRouter()
	root.Use(httpmiddleware.LogRequests(handler.RoutePattern))
	root.Get("/livez", healthSvc.LiveEndpoint)
	root.Get("/readyz", healthSvc.ReadyEndpoint)
	root.Mount("/", h.Router(httpmiddleware.Instrument(serviceName, handler.RoutePattern, m)))

	limiter := httpmiddleware.NewLimiter(cfg.RateLimit.Max, cfg.RateLimit.Window)
	go limiter.Run(ctx)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(root,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", httpmiddleware.HeaderRequestID},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimit(limiter, httpmiddleware.PartitionKey(cfg.Cookie.Name)),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		h.Close()
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// every runs fn each interval until ctx is done.
func every(ctx context.Context, interval time.Duration, fn func(ctx context.Context)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

// couponSource is the coupon backend picked from the configuration.
type couponSource struct {
	validator coupon.Validator
	filter    *coupon.FilteredRepository
	close     func()
}

// openCoupons reads coupons from Postgres when a database is configured and
// from the YAML catalog otherwise. Both go through the bloom pre-filter.
func openCoupons(ctx context.Context, lg *zap.Logger, cfg *Config, hs *health.Health) (*couponSource, error) {
	var (
		repo   coupon.Repository
		lister coupon.CodeLister
		source string
		closer = func() {}
	)
	if cfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, errors.Wrap(err, "run migrations")
		}
		hs.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
		pg := postgres.NewCouponRepository(pool)
		repo, lister, source, closer = pg, pg, "postgres", pool.Close
	} else {
		f, err := coupon.ReadCatalogFile(cfg.CouponCatalog)
		if err != nil {
			return nil, errors.Wrap(err, "read coupon catalog")
		}
		catalog, err := coupon.NewCatalog(f)
		if err != nil {
			return nil, errors.Wrap(err, "build coupon catalog")
		}
		repo, lister, source = catalog, catalog, cfg.CouponCatalog
	}

	filter := coupon.NewFilteredRepository(repo, lister)
	n, err := filter.Refresh(ctx)
	if err != nil {
		closer()
		return nil, errors.Wrap(err, "load coupon codes")
	}
	lg.Info("Coupons loaded", zap.String("source", source), zap.Int("codes", n))

	return &couponSource{
		validator: coupon.NewLookup(filter),
		filter:    filter,
		close:     closer,
	}, nil
}

// upstream bundles the REST clients of the AgriLink services.
type upstream struct {
	auth         *client.AuthClient
	user         *client.UserClient
	farm         *client.FarmClient
	marketplace  *client.MarketplaceClient
	order        *client.OrderClient
	notification *client.NotificationClient
	// bases maps service names to base URLs for health probes.
	bases map[string]string
}

func newUpstream(cfg UpstreamConfig, opts client.Options) (*upstream, error) {
	bases := map[string]string{
		"auth":         cfg.AuthURL,
		"user":         cfg.UserURL,
		"farm":         cfg.FarmURL,
		"marketplace":  cfg.MarketplaceURL,
		"order":        cfg.OrderURL,
		"notification": cfg.NotificationURL,
	}
	clients := make(map[string]*client.Client, len(bases))
	for name, base := range bases {
		c, err := client.New(base, opts)
		if err != nil {
			return nil, errors.Wrapf(err, "%s client", name)
		}
		clients[name] = c
		bases[name] = c.BaseURL().String()
	}
	return &upstream{
		auth:         client.NewAuthClient(clients["auth"]),
		user:         client.NewUserClient(clients["user"]),
		farm:         client.NewFarmClient(clients["farm"]),
		marketplace:  client.NewMarketplaceClient(clients["marketplace"]),
		order:        client.NewOrderClient(clients["order"]),
		notification: client.NewNotificationClient(clients["notification"]),
		bases:        bases,
	}, nil
}
