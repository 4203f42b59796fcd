package main

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	products := defaultCatalog()
	require.NotEmpty(t, products)

	seen := make(map[string]bool)
	for _, p := range products {
		assert.False(t, seen[p.ID], "duplicate id %s", p.ID)
		seen[p.ID] = true
		assert.True(t, p.Price.IsPositive(), p.ID)
		assert.NotEmpty(t, p.Variants, p.ID)
		if p.SalePrice != nil {
			assert.True(t, p.OnSale(), p.ID)
		}
	}
}

func TestDecodeProducts(t *testing.T) {
	data := []byte(`[
		{
			"id": "saia-plissada",
			"name": "Saia Plissada",
			"brand": "Sacola",
			"category": "saias",
			"price": 129.9,
			"salePrice": "99.90",
			"imageUrl": "img/saia.jpg",
			"ignored": {"nested": [1, 2]},
			"variants": [
				{"size": "P", "color": "Rosa", "stock": 3},
				{"size": "M", "color": "Rosa", "stock": 0}
			]
		},
		{"id": "meia", "name": "Meia", "price": "19.90", "salePrice": null, "variants": []}
	]`)

	products, err := decodeProducts(data)
	require.NoError(t, err)
	require.Len(t, products, 2)

	saia := products[0]
	assert.Equal(t, "saia-plissada", saia.ID)
	assert.Equal(t, "saias", saia.Category)
	assert.True(t, saia.Price.Equal(decimal.RequireFromString("129.90")))
	require.NotNil(t, saia.SalePrice)
	assert.True(t, saia.CurrentPrice().Equal(decimal.RequireFromString("99.90")))
	require.Len(t, saia.Variants, 2)
	assert.Equal(t, "Rosa", saia.Variants[1].Color)
	assert.Equal(t, 0, saia.Variants[1].Stock)

	assert.Nil(t, products[1].SalePrice)
}

func TestDecodeProducts_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "not an array", data: `{"id":"x"}`},
		{name: "missing id", data: `[{"name":"x","price":"1.00"}]`},
		{name: "zero price", data: `[{"id":"x","price":"0"}]`},
		{name: "bad price", data: `[{"id":"x","price":"abc"}]`},
		{name: "bad stock", data: `[{"id":"x","price":"1","variants":[{"stock":"lots"}]}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeProducts([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}
