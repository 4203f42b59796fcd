package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/jx"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/sacola/internal/domain/order"
)

const createOrderSQL = `INSERT INTO orders (id, cart_id, items, subtotal, discount, shipping, total,
	coupon_code, shipping_option, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. The order items are serialized to JSON for
// storage in the JSONB column.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	_, err := r.pool.Exec(ctx, createOrderSQL,
		o.ID, o.CartID, string(encodeItems(o.Items)),
		o.Subtotal, o.Discount, o.Shipping, o.Total,
		o.CouponCode, o.ShippingOption, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

func encodeItems(items []order.Item) []byte {
	var e jx.Encoder
	e.Arr(func(e *jx.Encoder) {
		for _, it := range items {
			e.Obj(func(e *jx.Encoder) {
				e.Field("product_id", func(e *jx.Encoder) { e.Str(it.ProductID) })
				e.Field("name", func(e *jx.Encoder) { e.Str(it.Name) })
				e.Field("size", func(e *jx.Encoder) { e.Str(it.Size) })
				e.Field("color", func(e *jx.Encoder) { e.Str(it.Color) })
				e.Field("unit_price", func(e *jx.Encoder) { e.Str(it.UnitPrice.StringFixed(2)) })
				e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
			})
		}
	})
	return e.Bytes()
}
