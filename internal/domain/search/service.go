package search

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/agrilink/storefront/internal/client"
)

// ErrEmptyQuery is returned for blank search queries.
var ErrEmptyQuery = errors.New("search query is empty")

// MinLiveQuery is the shortest query run by live search.
const MinLiveQuery = 2

// Marketplace is the search endpoint of the marketplace service.
type Marketplace interface {
	Search(ctx context.Context, query string, page, size int) (*client.ListingPage, error)
}

// Service runs listing searches.
type Service struct {
	market Marketplace
	recent *Recent
	lg     *zap.Logger
}

// NewService creates a search Service.
func NewService(market Marketplace, recent *Recent, lg *zap.Logger) *Service {
	return &Service{market: market, recent: recent, lg: lg}
}

// Recent returns the search history store.
func (s *Service) Recent() *Recent {
	return s.recent
}

// Submit runs a search the user explicitly submitted and records it in the
// partition's history.
func (s *Service) Submit(ctx context.Context, partition, query string, page, size int) (*client.ListingPage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if _, err := s.recent.Record(ctx, partition, query); err != nil {
		// History is best effort.
		s.lg.Warn("Record recent search", zap.String("partition", partition), zap.Error(err))
	}
	res, err := s.market.Search(ctx, query, page, size)
	if err != nil {
		return nil, errors.Wrap(err, "search listings")
	}
	return res, nil
}

// Suggest runs a live, as-you-type search. Queries shorter than
// MinLiveQuery return an empty page without calling upstream.
func (s *Service) Suggest(ctx context.Context, query string, size int) (*client.ListingPage, error) {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < MinLiveQuery {
		return &client.ListingPage{Content: []client.Listing{}}, nil
	}
	res, err := s.market.Search(ctx, query, 0, size)
	if err != nil {
		return nil, errors.Wrap(err, "suggest listings")
	}
	return res, nil
}
