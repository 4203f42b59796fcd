package product

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase.
type Product struct {
	ID       string
	Name     string
	Brand    string
	Category string
	// Price is the list price.
	Price decimal.Decimal
	// SalePrice is the promotional price, if the product is on sale.
	SalePrice *decimal.Decimal
	ImageURL  string
	Variants  []Variant
}

// Variant is one size/color combination of a product with its stock level.
type Variant struct {
	Size  string
	Color string
	Stock int
}

// CurrentPrice returns the price a customer pays right now: the sale price
// when one is set below the list price, the list price otherwise.
func (p Product) CurrentPrice() decimal.Decimal {
	if p.OnSale() {
		return *p.SalePrice
	}
	return p.Price
}

// OnSale reports whether a sale price below the list price is in effect.
func (p Product) OnSale() bool {
	return p.SalePrice != nil && p.SalePrice.LessThan(p.Price)
}

// Variant returns the variant matching size and color.
func (p Product) Variant(size, color string) (Variant, error) {
	for _, v := range p.Variants {
		if v.Size == size && v.Color == color {
			return v, nil
		}
	}
	return Variant{}, &VariantNotFoundError{ProductID: p.ID, Size: size, Color: color}
}

// VariantNotFoundError indicates the product is not offered in the requested
// size/color combination.
type VariantNotFoundError struct {
	ProductID string
	Size      string
	Color     string
}

func (e *VariantNotFoundError) Error() string {
	return fmt.Sprintf("product %s has no variant size=%q color=%q", e.ProductID, e.Size, e.Color)
}

// OutOfStockError indicates that the requested quantity exceeds the stock of
// a variant.
type OutOfStockError struct {
	ProductID string
	Size      string
	Color     string
	Requested int
	Available int
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("product %s (%s/%s): requested %d, only %d in stock",
		e.ProductID, e.Size, e.Color, e.Requested, e.Available)
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}
