// Package pricing derives cart totals from lines, the active coupon and the
// selected shipping option.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/sacola/internal/domain/coupon"
	"github.com/xenking/sacola/internal/domain/shipping"
	"github.com/xenking/sacola/internal/money"
)

var (
	hundred = decimal.NewFromInt(100)
	zero    = decimal.Zero
)

// Item is a priced quantity.
type Item struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// Snapshot holds the derived figures for one cart state. Values are exact;
// call Rounded before display.
type Snapshot struct {
	Subtotal     decimal.Decimal
	Discount     decimal.Decimal
	Shipping     decimal.Decimal
	Total        decimal.Decimal
	FreeShipping bool
	ItemCount    int
}

// Calculate prices items under discount (nil for no coupon) with the selected
// shipping option (nil when none is chosen). It has no side effects.
func Calculate(items []Item, discount coupon.Discount, ship *shipping.Option) Snapshot {
	subtotal := calcSubtotal(items)

	var (
		amount       = zero
		freeShipping bool
	)
	switch d := coupon.Deref(discount).(type) {
	case coupon.Percentage:
		amount = clamp(subtotal.Mul(d.Rate).Div(hundred), subtotal)
	case coupon.FixedAmount:
		amount = clamp(d.Amount, subtotal)
	case coupon.FreeShipping:
		freeShipping = true
	}

	shippingCost := zero
	if ship != nil && !freeShipping {
		shippingCost = ship.Price
	}

	return Snapshot{
		Subtotal:     subtotal,
		Discount:     amount,
		Shipping:     shippingCost,
		Total:        floorAtZero(subtotal.Sub(amount).Add(shippingCost)),
		FreeShipping: freeShipping,
		ItemCount:    totalQuantity(items),
	}
}

// Rounded returns s with every component rounded half-up to centavos. The
// total is recomputed from the rounded components so the displayed figures
// always add up.
func (s Snapshot) Rounded() Snapshot {
	r := s
	r.Subtotal = money.Round(s.Subtotal)
	r.Discount = money.Round(s.Discount)
	r.Shipping = money.Round(s.Shipping)
	r.Total = floorAtZero(r.Subtotal.Sub(r.Discount).Add(r.Shipping))
	return r
}

// Equal reports whether two snapshots carry the same values.
func (s Snapshot) Equal(o Snapshot) bool {
	return s.Subtotal.Equal(o.Subtotal) &&
		s.Discount.Equal(o.Discount) &&
		s.Shipping.Equal(o.Shipping) &&
		s.Total.Equal(o.Total) &&
		s.FreeShipping == o.FreeShipping &&
		s.ItemCount == o.ItemCount
}

// calcSubtotal returns the sum of price * quantity across all items.
func calcSubtotal(items []Item) decimal.Decimal {
	sum := zero
	for _, item := range items {
		sum = sum.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return sum
}

func totalQuantity(items []Item) int {
	total := 0
	for _, item := range items {
		total += item.Quantity
	}
	return total
}

// clamp bounds d to [0, limit].
func clamp(d, limit decimal.Decimal) decimal.Decimal {
	return floorAtZero(decimal.Min(d, limit))
}

// floorAtZero clamps negative values to zero.
func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return zero
	}
	return d
}
