package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Order represents a placed customer order with its pricing breakdown.
type Order struct {
	ID             string
	CartID         string
	Items          []Item
	Subtotal       decimal.Decimal
	Discount       decimal.Decimal
	Shipping       decimal.Decimal
	Total          decimal.Decimal
	CouponCode     string
	ShippingOption string
	CreatedAt      time.Time
}

// Item is a single purchased variant with the unit price charged.
type Item struct {
	ProductID string
	Name      string
	Size      string
	Color     string
	UnitPrice decimal.Decimal
	Quantity  int
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, order *Order) error
}
