package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/sacola/internal/domain/coupon"
	"github.com/xenking/sacola/internal/domain/shipping"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDec(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "%s: expected %s, got %s", field, want, got)
}

var pac = &shipping.Option{ID: "pac", Price: dec("15.90")}

func TestCalculate(t *testing.T) {
	twoAtHundred := []Item{{UnitPrice: dec("100.00"), Quantity: 2}}

	tests := []struct {
		name         string
		items        []Item
		discount     coupon.Discount
		ship         *shipping.Option
		wantSubtotal string
		wantDiscount string
		wantShipping string
		wantTotal    string
		wantFree     bool
	}{
		{
			name:         "empty cart",
			wantSubtotal: "0", wantDiscount: "0", wantShipping: "0", wantTotal: "0",
		},
		{
			name:         "no coupon no shipping",
			items:        twoAtHundred,
			wantSubtotal: "200", wantDiscount: "0", wantShipping: "0", wantTotal: "200",
		},
		{
			name:         "percentage coupon with pac",
			items:        twoAtHundred,
			discount:     coupon.Percentage{Rate: decimal.NewFromInt(10)},
			ship:         pac,
			wantSubtotal: "200", wantDiscount: "20", wantShipping: "15.90", wantTotal: "195.90",
		},
		{
			name:         "free shipping coupon zeroes selected shipping",
			items:        twoAtHundred,
			discount:     coupon.FreeShipping{},
			ship:         pac,
			wantSubtotal: "200", wantDiscount: "0", wantShipping: "0", wantTotal: "200",
			wantFree:     true,
		},
		{
			name:         "fixed amount below subtotal",
			items:        twoAtHundred,
			discount:     coupon.FixedAmount{Amount: dec("30")},
			ship:         pac,
			wantSubtotal: "200", wantDiscount: "30", wantShipping: "15.90", wantTotal: "185.90",
		},
		{
			name:         "fixed amount capped at subtotal",
			items:        []Item{{UnitPrice: dec("49.90"), Quantity: 1}},
			discount:     coupon.FixedAmount{Amount: dec("80")},
			ship:         pac,
			wantSubtotal: "49.90", wantDiscount: "49.90", wantShipping: "15.90", wantTotal: "15.90",
		},
		{
			name:         "hundred percent",
			items:        twoAtHundred,
			discount:     coupon.Percentage{Rate: decimal.NewFromInt(100)},
			wantSubtotal: "200", wantDiscount: "200", wantShipping: "0", wantTotal: "0",
		},
		{
			name: "multiple lines",
			items: []Item{
				{UnitPrice: dec("89.90"), Quantity: 3},
				{UnitPrice: dec("159.99"), Quantity: 1},
			},
			discount:     coupon.Percentage{Rate: decimal.NewFromInt(15)},
			wantSubtotal: "429.69", wantDiscount: "64.4535", wantShipping: "0", wantTotal: "365.2365",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Calculate(tt.items, tt.discount, tt.ship)

			assertDec(t, tt.wantSubtotal, got.Subtotal, "subtotal")
			assertDec(t, tt.wantDiscount, got.Discount, "discount")
			assertDec(t, tt.wantShipping, got.Shipping, "shipping")
			assertDec(t, tt.wantTotal, got.Total, "total")
			assert.Equal(t, tt.wantFree, got.FreeShipping)
		})
	}
}

func TestCalculate_ItemCount(t *testing.T) {
	got := Calculate([]Item{
		{UnitPrice: dec("10"), Quantity: 2},
		{UnitPrice: dec("5"), Quantity: 3},
	}, nil, nil)
	assert.Equal(t, 5, got.ItemCount)
}

func TestCalculate_Deterministic(t *testing.T) {
	items := []Item{
		{UnitPrice: dec("33.33"), Quantity: 3},
		{UnitPrice: dec("0.01"), Quantity: 7},
	}
	d := coupon.Percentage{Rate: dec("12.5")}

	first := Calculate(items, d, pac)
	for range 10 {
		require.True(t, first.Equal(Calculate(items, d, pac)))
	}
}

func TestCalculate_PointerDiscounts(t *testing.T) {
	items := []Item{{UnitPrice: dec("100.00"), Quantity: 2}}
	var nilRate *coupon.Percentage

	tests := []struct {
		name     string
		discount coupon.Discount
		value    coupon.Discount
	}{
		{name: "percentage", discount: &coupon.Percentage{Rate: dec("10")}, value: coupon.Percentage{Rate: dec("10")}},
		{name: "fixed amount", discount: &coupon.FixedAmount{Amount: dec("30")}, value: coupon.FixedAmount{Amount: dec("30")}},
		{name: "free shipping", discount: &coupon.FreeShipping{}, value: coupon.FreeShipping{}},
		{name: "nil pointer", discount: nilRate, value: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Snapshot
			require.NotPanics(t, func() { got = Calculate(items, tt.discount, pac) })
			assert.True(t, Calculate(items, tt.value, pac).Equal(got))
		})
	}
}

func TestCalculate_DiscountBounds(t *testing.T) {
	subtotals := []string{"0", "0.01", "1", "99.99", "200", "12345.67"}
	discounts := []coupon.Discount{
		nil,
		coupon.Percentage{Rate: dec("0")},
		coupon.Percentage{Rate: dec("33.3")},
		coupon.Percentage{Rate: dec("100")},
		coupon.FixedAmount{Amount: dec("0")},
		coupon.FixedAmount{Amount: dec("50")},
		coupon.FixedAmount{Amount: dec("100000")},
		coupon.FreeShipping{},
	}

	for _, sub := range subtotals {
		for _, d := range discounts {
			got := Calculate([]Item{{UnitPrice: dec(sub), Quantity: 1}}, d, pac)

			assert.False(t, got.Discount.IsNegative(), "discount negative for %s/%v", sub, d)
			assert.True(t, got.Discount.LessThanOrEqual(got.Subtotal), "discount above subtotal for %s/%v", sub, d)
			assert.False(t, got.Total.IsNegative(), "total negative for %s/%v", sub, d)
		}
	}
}

func TestSnapshot_Rounded(t *testing.T) {
	s := Snapshot{
		Subtotal: dec("429.69"),
		Discount: dec("64.4535"),
		Shipping: dec("15.90"),
		Total:    dec("381.1365"),
	}

	r := s.Rounded()

	assertDec(t, "429.69", r.Subtotal, "subtotal")
	assertDec(t, "64.45", r.Discount, "discount")
	assertDec(t, "15.90", r.Shipping, "shipping")
	assertDec(t, "381.14", r.Total, "total")
	assert.True(t, r.Subtotal.Sub(r.Discount).Add(r.Shipping).Equal(r.Total))
}

func TestSnapshot_RoundedHalfUp(t *testing.T) {
	r := Snapshot{Discount: dec("0.005"), Subtotal: dec("0.005")}.Rounded()
	assertDec(t, "0.01", r.Discount, "discount")
}
