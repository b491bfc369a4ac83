package commerce

import (
	"context"
	"errors"
	"time"
)

// Closed error set for cart and checkout rules.
var (
	ErrProductUnavailable = errors.New("commerce.product_unavailable")
	ErrInsufficientStock  = errors.New("commerce.insufficient_stock")
	ErrCartNotFound       = errors.New("commerce.cart_not_found")
	ErrItemNotFound       = errors.New("commerce.item_not_found")
	ErrOrderNotFound      = errors.New("commerce.order_not_found")
	ErrEmptySelection     = errors.New("commerce.empty_selection")
	ErrZeroTotal          = errors.New("commerce.zero_total")
)

// Product is a catalog entry. Prices are integer cents.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PriceCents  int64     `json:"priceCents"`
	Currency    string    `json:"currency"`
	Stock       int       `json:"stock"`
	Active      bool      `json:"isActive"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CartItem snapshots a product at the moment it entered the cart.
type CartItem struct {
	ProductID  string `json:"productId"`
	Name       string `json:"name"`
	PriceCents int64  `json:"priceCents"`
	Currency   string `json:"currency"`
	Quantity   int    `json:"quantity"`
	ImageURL   string `json:"imageUrl,omitempty"`
}

// Cart holds one user's pending selection. One cart per user.
type Cart struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	Items     []CartItem `json:"items"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// OrderStatus is the order lifecycle state.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderPaid       OrderStatus = "paid"
	OrderShipped    OrderStatus = "shipped"
	OrderCancelled  OrderStatus = "cancelled"
)

// ValidOrderStatus reports whether the value is a known lifecycle state.
func ValidOrderStatus(status OrderStatus) bool {
	switch status {
	case OrderPending, OrderProcessing, OrderPaid, OrderShipped, OrderCancelled:
		return true
	default:
		return false
	}
}

// OrderItem is a priced line captured at checkout.
type OrderItem struct {
	ProductID  string `json:"productId"`
	Name       string `json:"name"`
	PriceCents int64  `json:"priceCents"`
	Currency   string `json:"currency"`
	Quantity   int    `json:"quantity"`
}

// Order is a placed purchase.
type Order struct {
	ID              string      `json:"id"`
	UserID          string      `json:"userId"`
	Items           []OrderItem `json:"items"`
	TotalCents      int64       `json:"totalCents"`
	Currency        string      `json:"currency"`
	Status          OrderStatus `json:"status"`
	PaymentIntentID string      `json:"paymentIntentId,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// ProductStore persists catalog entries.
type ProductStore interface {
	Create(ctx context.Context, product *Product) error
	List(ctx context.Context, activeOnly bool) ([]Product, error)
	FindByID(ctx context.Context, productID string) (*Product, error)
	Save(ctx context.Context, product *Product) error
	Delete(ctx context.Context, productID string) error
}

// CartStore persists carts keyed by user.
type CartStore interface {
	FindByUser(ctx context.Context, userID string) (*Cart, error)
	Save(ctx context.Context, cart *Cart) error
}

// OrderStore persists orders.
type OrderStore interface {
	Create(ctx context.Context, order *Order) error
	FindByID(ctx context.Context, orderID string) (*Order, error)
	FindByPaymentIntent(ctx context.Context, paymentIntentID string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	ListAll(ctx context.Context) ([]Order, error)
	Save(ctx context.Context, order *Order) error
}
