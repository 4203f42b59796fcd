package shipping

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrOptionNotFound is returned when a shipping option id is unknown.
var ErrOptionNotFound = errors.New("shipping option not found")

// Option is a delivery method the customer can pick at checkout.
type Option struct {
	ID            string
	Name          string
	Price         decimal.Decimal
	EstimatedDays int
	Description   string
}

// Catalog lists the available shipping options.
type Catalog interface {
	Options(ctx context.Context) ([]Option, error)
	Option(ctx context.Context, id string) (Option, error)
}

// DefaultOptions is the storefront's fixed shipping table.
func DefaultOptions() []Option {
	return []Option{
		{
			ID:            "pac",
			Name:          "PAC",
			Price:         decimal.RequireFromString("15.90"),
			EstimatedDays: 7,
			Description:   "Entrega econômica dos Correios",
		},
		{
			ID:            "sedex",
			Name:          "SEDEX",
			Price:         decimal.RequireFromString("29.90"),
			EstimatedDays: 2,
			Description:   "Entrega expressa dos Correios",
		},
		{
			ID:            "retirada",
			Name:          "Retirada na loja",
			Price:         decimal.Zero,
			EstimatedDays: 1,
			Description:   "Retire seu pedido em nossa loja",
		},
	}
}

var _ Catalog = StaticCatalog(nil)

// StaticCatalog serves a fixed list of options in display order.
type StaticCatalog []Option

// Options returns a copy of the catalog.
func (c StaticCatalog) Options(context.Context) ([]Option, error) {
	out := make([]Option, len(c))
	copy(out, c)
	return out, nil
}

// Option returns the option with the given id.
func (c StaticCatalog) Option(_ context.Context, id string) (Option, error) {
	for _, o := range c {
		if o.ID == id {
			return o, nil
		}
	}
	return Option{}, errors.Wrapf(ErrOptionNotFound, "option %q", id)
}
