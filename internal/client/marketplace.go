package client

import (
	"context"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"
)

// Listing is a sellable product unit offered by a farmer.
type Listing struct {
	ID                string          `json:"id"`
	SellerID          string          `json:"sellerId"`
	Title             string          `json:"title"`
	Description       string          `json:"description,omitempty"`
	Category          string          `json:"category,omitempty"`
	Price             decimal.Decimal `json:"price"`
	OriginalPrice     decimal.Decimal `json:"originalPrice"`
	Unit              string          `json:"unit"`
	AvailableQuantity int             `json:"availableQuantity"`
	ImageURL          string          `json:"imageUrl,omitempty"`
	Status            string          `json:"status,omitempty"`
}

type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// ListingPage is one page of listings.
type ListingPage struct {
	Content       []Listing `json:"content"`
	Page          int       `json:"page"`
	Size          int       `json:"size"`
	TotalElements int       `json:"totalElements"`
}

// ListingQuery filters GET /listings.
type ListingQuery struct {
	Category string
	SellerID string
	Sort     string
	Page     int
	Size     int
}

func (q ListingQuery) values() url.Values {
	v := url.Values{}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	if q.SellerID != "" {
		v.Set("sellerId", q.SellerID)
	}
	if q.Sort != "" {
		v.Set("sort", q.Sort)
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Size > 0 {
		v.Set("size", strconv.Itoa(q.Size))
	}
	return v
}

// MarketplaceClient talks to the marketplace service.
type MarketplaceClient struct {
	c *Client
}

// NewMarketplaceClient wraps c.
func NewMarketplaceClient(c *Client) *MarketplaceClient {
	return &MarketplaceClient{c: c}
}

func (m *MarketplaceClient) Listings(ctx context.Context, q ListingQuery) (*ListingPage, error) {
	var out ListingPage
	if err := m.c.Get(ctx, "/listings", q.values(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (m *MarketplaceClient) Listing(ctx context.Context, id string) (*Listing, error) {
	var out Listing
	if err := m.c.Get(ctx, "/listings/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (m *MarketplaceClient) Categories(ctx context.Context) ([]Category, error) {
	var out []Category
	if err := m.c.Get(ctx, "/categories", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Search runs a full-text listing search.
func (m *MarketplaceClient) Search(ctx context.Context, query string, page, size int) (*ListingPage, error) {
	q := url.Values{}
	q.Set("q", query)
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if size > 0 {
		q.Set("size", strconv.Itoa(size))
	}
	var out ListingPage
	if err := m.c.Get(ctx, "/listings/search", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (m *MarketplaceClient) CreateListing(ctx context.Context, l Listing) (*Listing, error) {
	var out Listing
	if err := m.c.Post(ctx, "/listings", l, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (m *MarketplaceClient) PublishListing(ctx context.Context, id string) (*Listing, error) {
	var out Listing
	if err := m.c.Post(ctx, "/listings/"+url.PathEscape(id)+"/publish", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Wishlist returns the listings saved by the session user.
func (m *MarketplaceClient) Wishlist(ctx context.Context) ([]Listing, error) {
	var out []Listing
	if err := m.c.Get(ctx, "/wishlist", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *MarketplaceClient) AddToWishlist(ctx context.Context, listingID string) error {
	body := struct {
		ListingID string `json:"listingId"`
	}{ListingID: listingID}
	return m.c.Post(ctx, "/wishlist", body, nil)
}

func (m *MarketplaceClient) RemoveFromWishlist(ctx context.Context, listingID string) error {
	return m.c.Delete(ctx, "/wishlist/"+url.PathEscape(listingID), nil)
}
