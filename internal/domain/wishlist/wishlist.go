// Package wishlist keeps saved listings for guests in the browser partition
// and for signed-in users in the marketplace service.
package wishlist

import (
	"context"
	"slices"
	"strings"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/agrilink/storefront/internal/client"
	"github.com/agrilink/storefront/internal/domain/session"
	"github.com/agrilink/storefront/internal/events"
	"github.com/agrilink/storefront/internal/storage/local"
)

// ErrMissingListing is returned when no listing id is given.
var ErrMissingListing = errors.New("listing id is required")

// Storage is the subset of the partitioned local store used for guests.
type Storage interface {
	local.Updater
	GetJSON(ctx context.Context, partition, key string, v any) error
}

// MarketplaceAPI is the wishlist part of the marketplace service.
type MarketplaceAPI interface {
	Wishlist(ctx context.Context) ([]client.Listing, error)
	AddToWishlist(ctx context.Context, listingID string) error
	RemoveFromWishlist(ctx context.Context, listingID string) error
}

// Sessions resolves the session of a browser partition.
type Sessions interface {
	Current(ctx context.Context, partition string) (session.Session, error)
}

// Service routes wishlist operations by authentication state.
type Service struct {
	storage  Storage
	api      MarketplaceAPI
	sessions Sessions
	bus      *events.Bus
	lg       *zap.Logger
}

// NewService creates a wishlist Service.
func NewService(storage Storage, api MarketplaceAPI, sessions Sessions, bus *events.Bus, lg *zap.Logger) *Service {
	return &Service{
		storage:  storage,
		api:      api,
		sessions: sessions,
		bus:      bus,
		lg:       lg,
	}
}

func (s *Service) loadGuest(ctx context.Context, partition string) ([]string, error) {
	var ids []string
	if err := s.storage.GetJSON(ctx, partition, local.KeyGuestWishlist, &ids); err != nil {
		if errors.Is(err, local.ErrNotFound) {
			return []string{}, nil
		}
		return nil, errors.Wrap(err, "load guest wishlist")
	}
	return ids, nil
}

func (s *Service) remoteIDs(ctx context.Context) ([]string, error) {
	listings, err := s.api.Wishlist(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(listings))
	for _, l := range listings {
		ids = append(ids, l.ID)
	}
	return ids, nil
}

// IDs returns the listing ids on the partition's wishlist.
func (s *Service) IDs(ctx context.Context, partition string) ([]string, error) {
	sess, err := s.sessions.Current(ctx, partition)
	if err != nil {
		return nil, errors.Wrap(err, "resolve session")
	}
	if sess.IsAuthenticated() {
		return s.remoteIDs(sess.Context(ctx))
	}
	return s.loadGuest(ctx, partition)
}

// Contains reports whether listingID is on the wishlist.
func (s *Service) Contains(ctx context.Context, partition, listingID string) (bool, error) {
	ids, err := s.IDs(ctx, partition)
	if err != nil {
		return false, err
	}
	return slices.Contains(ids, listingID), nil
}

// Add saves a listing. Adding a saved listing is a no-op.
func (s *Service) Add(ctx context.Context, partition, listingID string) ([]string, error) {
	return s.mutate(ctx, partition, listingID, true)
}

// Remove unsaves a listing.
func (s *Service) Remove(ctx context.Context, partition, listingID string) ([]string, error) {
	return s.mutate(ctx, partition, listingID, false)
}

// Toggle flips the saved state of a listing and reports the new state.
func (s *Service) Toggle(ctx context.Context, partition, listingID string) (bool, error) {
	listingID = strings.TrimSpace(listingID)
	if listingID == "" {
		return false, ErrMissingListing
	}
	sess, err := s.sessions.Current(ctx, partition)
	if err != nil {
		return false, errors.Wrap(err, "resolve session")
	}
	if !sess.IsAuthenticated() {
		_, saved, err := s.updateGuest(ctx, partition, listingID, func(has bool) bool { return !has })
		return saved, err
	}

	saved, err := s.Contains(ctx, partition, listingID)
	if err != nil {
		return false, err
	}
	if _, err := s.mutate(ctx, partition, listingID, !saved); err != nil {
		return saved, err
	}
	return !saved, nil
}

func (s *Service) mutate(ctx context.Context, partition, listingID string, add bool) ([]string, error) {
	listingID = strings.TrimSpace(listingID)
	if listingID == "" {
		return nil, ErrMissingListing
	}
	sess, err := s.sessions.Current(ctx, partition)
	if err != nil {
		return nil, errors.Wrap(err, "resolve session")
	}

	if sess.IsAuthenticated() {
		ctx := sess.Context(ctx)
		if add {
			err = s.api.AddToWishlist(ctx, listingID)
		} else {
			err = s.api.RemoveFromWishlist(ctx, listingID)
		}
		if err != nil {
			s.lg.Warn("Wishlist mutation failed",
				zap.String("partition", partition),
				zap.String("listing_id", listingID),
				zap.Error(err),
			)
			return nil, err
		}
		ids, err := s.remoteIDs(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "refresh wishlist")
		}
		s.bus.Publish(events.WishlistUpdated{Partition: partition, Count: len(ids)})
		return ids, nil
	}

	ids, _, err := s.updateGuest(ctx, partition, listingID, func(bool) bool { return add })
	return ids, err
}

// updateGuest sets the presence of listingID in the guest wishlist to
// want(has) atomically and publishes the new count.
func (s *Service) updateGuest(ctx context.Context, partition, listingID string, want func(has bool) bool) ([]string, bool, error) {
	var (
		ids   []string
		saved bool
	)
	err := local.UpdateJSON(ctx, s.storage, partition, local.KeyGuestWishlist, func(cur *[]string) error {
		has := slices.Contains(*cur, listingID)
		saved = want(has)
		switch {
		case saved && !has:
			*cur = append(*cur, listingID)
		case !saved && has:
			*cur = slices.DeleteFunc(*cur, func(id string) bool { return id == listingID })
		}
		if *cur == nil {
			*cur = []string{}
		}
		ids = *cur
		return nil
	})
	if err != nil {
		return nil, false, errors.Wrap(err, "store guest wishlist")
	}
	s.bus.Publish(events.GuestWishlistUpdated{Partition: partition, Count: len(ids)})
	return ids, saved, nil
}
