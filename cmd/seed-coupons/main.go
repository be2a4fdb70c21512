// Command seed-coupons loads a YAML coupon catalog into Postgres.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/agrilink/storefront/internal/domain/coupon"
	"github.com/agrilink/storefront/internal/storage/postgres"
)

func main() {
	_ = godotenv.Load()

	var (
		databaseURL string
		catalogPath string
		dryRun      bool
	)
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&catalogPath, "catalog", "coupons.yaml", "coupon catalog, optionally gzip-compressed (.gz)")
	flag.BoolVar(&dryRun, "dry-run", false, "validate the catalog without writing")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !dryRun {
		lg.Fatal("database URL is required: set --database-url or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, databaseURL, catalogPath, dryRun); err != nil {
		lg.Fatal("Coupon seed failed", zap.Error(err))
	}
	lg.Info("Coupon seed completed")
}

func run(ctx context.Context, lg *zap.Logger, databaseURL, catalogPath string, dryRun bool) error {
	lg.Info("Reading catalog", zap.String("path", catalogPath))

	f, err := coupon.ReadCatalogFile(catalogPath)
	if err != nil {
		return err
	}
	// NewCatalog validates every active entry and rejects duplicates.
	catalog, err := coupon.NewCatalog(f)
	if err != nil {
		return errors.Wrap(err, "validate catalog")
	}
	active, err := catalog.ListCodes(ctx)
	if err != nil {
		return err
	}
	lg.Info("Catalog valid",
		zap.Int("entries", len(f.Coupons)),
		zap.Int("active", len(active)),
	)
	if dryRun {
		return nil
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	repo := postgres.NewCouponRepository(pool)
	existing, err := repo.ListCodes(ctx)
	if err != nil {
		return err
	}
	known := make(map[string]struct{}, len(existing))
	for _, code := range existing {
		known[code] = struct{}{}
	}

	var created, updated int
	for _, e := range f.Coupons {
		if err := repo.Upsert(ctx, e); err != nil {
			return err
		}
		if _, ok := known[coupon.NormalizeCode(e.Code)]; ok {
			updated++
		} else {
			created++
		}
	}
	lg.Info("Coupons written", zap.Int("created", created), zap.Int("updated", updated))
	return nil
}
