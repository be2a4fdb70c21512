package cart

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/agrilink/storefront/internal/domain/session"
	"github.com/agrilink/storefront/internal/events"
)

// Sessions resolves the session of a browser partition.
type Sessions interface {
	Current(ctx context.Context, partition string) (session.Session, error)
}

// Service routes cart operations to the guest or the authenticated store,
// depending on the session at the time of the call, and publishes the new
// badge count after every successful mutation.
type Service struct {
	guest     Store
	remote    Store
	saved     JSONStorage
	sessions  Sessions
	bus       *events.Bus
	lg        *zap.Logger
	mutations metric.Int64Counter
}

// NewService creates a cart Service. saved holds the saved-for-later list.
func NewService(guest, remote Store, saved JSONStorage, sessions Sessions, bus *events.Bus, lg *zap.Logger, meter metric.Meter) (*Service, error) {
	mutations, err := meter.Int64Counter("cart.mutations",
		metric.WithDescription("Cart mutations by operation, backend and outcome"))
	if err != nil {
		return nil, errors.Wrap(err, "create mutations counter")
	}
	return &Service{
		guest:     guest,
		remote:    remote,
		saved:     saved,
		sessions:  sessions,
		bus:       bus,
		lg:        lg,
		mutations: mutations,
	}, nil
}

// resolve picks the backend for the partition and scopes ctx to its session.
func (s *Service) resolve(ctx context.Context, partition string) (context.Context, Store, bool, error) {
	sess, err := s.sessions.Current(ctx, partition)
	if err != nil {
		return nil, nil, false, errors.Wrap(err, "resolve session")
	}
	if sess.IsAuthenticated() {
		return sess.Context(ctx), s.remote, true, nil
	}
	return ctx, s.guest, false, nil
}

// Get returns the cart of the partition.
func (s *Service) Get(ctx context.Context, partition string) (Cart, error) {
	ctx, store, _, err := s.resolve(ctx, partition)
	if err != nil {
		return Cart{}, err
	}
	return store.Get(ctx, partition)
}

// Add puts item into the cart, merging with an existing line.
func (s *Service) Add(ctx context.Context, partition string, item Item) (Cart, error) {
	item.ListingID = strings.TrimSpace(item.ListingID)
	if item.ListingID == "" {
		return Cart{}, ErrMissingListing
	}
	if item.Quantity < 1 {
		return Cart{}, ErrInvalidQuantity
	}
	return s.mutate(ctx, partition, "add", func(ctx context.Context, store Store) error {
		return store.Add(ctx, partition, item)
	})
}

// Update sets the quantity of a line.
func (s *Service) Update(ctx context.Context, partition, listingID string, quantity int) (Cart, error) {
	if quantity < 1 {
		return Cart{}, ErrInvalidQuantity
	}
	return s.mutate(ctx, partition, "update", func(ctx context.Context, store Store) error {
		return store.Update(ctx, partition, listingID, quantity)
	})
}

// Remove deletes a line.
func (s *Service) Remove(ctx context.Context, partition, listingID string) (Cart, error) {
	return s.mutate(ctx, partition, "remove", func(ctx context.Context, store Store) error {
		return store.Remove(ctx, partition, listingID)
	})
}

// Clear empties the cart.
func (s *Service) Clear(ctx context.Context, partition string) (Cart, error) {
	return s.mutate(ctx, partition, "clear", func(ctx context.Context, store Store) error {
		return store.Clear(ctx, partition)
	})
}

// mutate applies op and then re-reads the cart to publish its count. A
// failing op publishes nothing and leaves the previous state in place.
func (s *Service) mutate(ctx context.Context, partition, op string, fn func(context.Context, Store) error) (Cart, error) {
	ctx, store, authed, err := s.resolve(ctx, partition)
	if err != nil {
		return Cart{}, err
	}
	backend := "guest"
	if authed {
		backend = "remote"
	}
	attrs := []attribute.KeyValue{
		attribute.String("op", op),
		attribute.String("backend", backend),
	}

	if err := fn(ctx, store); err != nil {
		s.mutations.Add(ctx, 1, metric.WithAttributes(append(attrs, attribute.String("outcome", "error"))...))
		s.lg.Warn("Cart mutation failed",
			zap.String("partition", partition),
			zap.String("op", op),
			zap.String("backend", backend),
			zap.Error(err),
		)
		return Cart{}, err
	}

	c, err := store.Get(ctx, partition)
	if err != nil {
		return Cart{}, errors.Wrap(err, "refresh cart")
	}
	s.mutations.Add(ctx, 1, metric.WithAttributes(append(attrs, attribute.String("outcome", "ok"))...))

	if authed {
		s.bus.Publish(events.CartUpdated{Partition: partition, Count: c.Count()})
	} else {
		s.bus.Publish(events.GuestCartUpdated{Partition: partition, Count: c.Count()})
	}
	return c, nil
}
