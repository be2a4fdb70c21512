//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/agrilink/storefront/internal/domain/coupon"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:17-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "agrilink",
				"POSTGRES_PASSWORD": "agrilink",
				"POSTGRES_DB":       "agrilink",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(c) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	url := fmt.Sprintf("postgres://agrilink:agrilink@%s:%s/agrilink?sslmode=disable", host, port.Port())
	pool, err := NewPool(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	return pool
}

func TestCouponRepository(t *testing.T) {
	pool := startPostgres(t)
	repo := NewCouponRepository(pool)
	ctx := context.Background()
	inactive := false

	for _, e := range []coupon.CatalogEntry{
		{Code: "fresh10", Type: "percentage", Value: "10", MaxDiscount: "100", Description: "10% off"},
		{Code: "SAVE50", Type: "flat", Value: "50", MinOrder: "500", MaxUses: 1},
		{Code: "OLD", Type: "flat", Value: "20", Active: &inactive},
	} {
		require.NoError(t, repo.Upsert(ctx, e))
	}

	codes, err := repo.ListCodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"FRESH10", "SAVE50"}, codes)

	rule, err := repo.FindByCode(ctx, " fresh10 ")
	require.NoError(t, err)
	assert.Equal(t, coupon.DiscountPercentage, rule.DiscountType)
	assert.True(t, decimal.NewFromInt(100).Equal(rule.MaxDiscount))

	_, err = repo.FindByCode(ctx, "OLD")
	require.ErrorIs(t, err, coupon.ErrInvalidCoupon)

	require.NoError(t, repo.IncrementUses(ctx, "SAVE50"))
	require.ErrorIs(t, repo.IncrementUses(ctx, "SAVE50"), coupon.ErrCouponUsageLimitReached)

	rule, err = repo.FindByCode(ctx, "SAVE50")
	require.NoError(t, err)
	assert.Equal(t, 1, rule.Uses)

	// Re-seeding keeps usage counters.
	require.NoError(t, repo.Upsert(ctx, coupon.CatalogEntry{Code: "SAVE50", Type: "flat", Value: "60", MinOrder: "500", MaxUses: 1}))
	rule, err = repo.FindByCode(ctx, "SAVE50")
	require.NoError(t, err)
	assert.Equal(t, 1, rule.Uses)
	assert.True(t, decimal.NewFromInt(60).Equal(rule.Value))
}
