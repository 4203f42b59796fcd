package postgres

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/xenking/sacola/internal/domain/order"
)

func TestEncodeItems(t *testing.T) {
	got := encodeItems([]order.Item{
		{ProductID: "p1", Name: "Blusa \"Ciganinha\"", Size: "P", Color: "rosa", UnitPrice: decimal.RequireFromString("59.9"), Quantity: 2},
		{ProductID: "p2", Name: "Cinto", Size: "U", Color: "caramelo", UnitPrice: decimal.NewFromInt(40), Quantity: 1},
	})

	assert.JSONEq(t, `[
		{"product_id":"p1","name":"Blusa \"Ciganinha\"","size":"P","color":"rosa","unit_price":"59.90","quantity":2},
		{"product_id":"p2","name":"Cinto","size":"U","color":"caramelo","unit_price":"40.00","quantity":1}
	]`, string(got))
}

func TestEncodeItems_Empty(t *testing.T) {
	assert.Equal(t, "[]", string(encodeItems(nil)))
}
