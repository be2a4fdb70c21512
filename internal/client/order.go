package client

import (
	"context"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// CartItem is a line of the server-side cart.
type CartItem struct {
	ListingID         string          `json:"listingId"`
	SellerID          string          `json:"sellerId"`
	Quantity          int             `json:"quantity"`
	UnitPrice         decimal.Decimal `json:"unitPrice"`
	OriginalPrice     decimal.Decimal `json:"originalPrice"`
	Title             string          `json:"title"`
	ImageURL          string          `json:"imageUrl,omitempty"`
	Unit              string          `json:"unit,omitempty"`
	AvailableQuantity int             `json:"availableQuantity,omitempty"`
}

// RemoteCart is the authenticated cart owned by the order service.
type RemoteCart struct {
	Items      []CartItem `json:"items"`
	TotalItems int        `json:"totalItems"`
}

type CheckoutItem struct {
	ListingID string `json:"listingId"`
	Quantity  int    `json:"quantity"`
}

// CheckoutRequest is the body of POST /checkout/initialize.
type CheckoutRequest struct {
	Items          []CheckoutItem  `json:"items"`
	AddressID      string          `json:"addressId,omitempty"`
	DeliveryOption string          `json:"deliveryOption,omitempty"`
	GiftWrap       bool            `json:"giftWrap"`
	CouponCode     string          `json:"couponCode,omitempty"`
	CouponDiscount decimal.Decimal `json:"couponDiscount"`
	Amount         decimal.Decimal `json:"amount"`
}

// CheckoutSession is the payment order created by the order service.
// Tax is the authoritative tax when the service computes one.
type CheckoutSession struct {
	OrderID        string           `json:"orderId"`
	PaymentOrderID string           `json:"paymentOrderId"`
	PaymentKey     string           `json:"paymentKey,omitempty"`
	Amount         decimal.Decimal  `json:"amount"`
	Currency       string           `json:"currency"`
	Tax            *decimal.Decimal `json:"tax,omitempty"`
}

// PaymentVerification is the body of POST /checkout/verify-payment.
type PaymentVerification struct {
	OrderID        string `json:"orderId"`
	PaymentOrderID string `json:"paymentOrderId"`
	PaymentID      string `json:"paymentId"`
	Signature      string `json:"signature"`
}

type Order struct {
	ID        string          `json:"id"`
	Status    string          `json:"status"`
	Total     decimal.Decimal `json:"total"`
	Items     []CartItem      `json:"items,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// OrderClient talks to the order service.
type OrderClient struct {
	c *Client
}

// NewOrderClient wraps c.
func NewOrderClient(c *Client) *OrderClient {
	return &OrderClient{c: c}
}

func (o *OrderClient) Cart(ctx context.Context) (*RemoteCart, error) {
	var out RemoteCart
	if err := o.c.Get(ctx, "/cart", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (o *OrderClient) AddCartItem(ctx context.Context, listingID string, quantity int) error {
	body := CheckoutItem{ListingID: listingID, Quantity: quantity}
	return o.c.Post(ctx, "/cart/items", body, nil)
}

func (o *OrderClient) UpdateCartItem(ctx context.Context, listingID string, quantity int) error {
	body := struct {
		Quantity int `json:"quantity"`
	}{Quantity: quantity}
	return o.c.Put(ctx, "/cart/items/"+url.PathEscape(listingID), body, nil)
}

func (o *OrderClient) RemoveCartItem(ctx context.Context, listingID string) error {
	return o.c.Delete(ctx, "/cart/items/"+url.PathEscape(listingID), nil)
}

func (o *OrderClient) ClearCart(ctx context.Context) error {
	return o.c.Delete(ctx, "/cart", nil)
}

func (o *OrderClient) InitializeCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	var out CheckoutSession
	if err := o.c.Post(ctx, "/checkout/initialize", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (o *OrderClient) VerifyPayment(ctx context.Context, req PaymentVerification) (*Order, error) {
	var out Order
	if err := o.c.Post(ctx, "/checkout/verify-payment", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Orders lists the orders visible to the session user: purchases for buyers,
// received orders for farmers.
func (o *OrderClient) Orders(ctx context.Context) ([]Order, error) {
	var out []Order
	if err := o.c.Get(ctx, "/orders", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
