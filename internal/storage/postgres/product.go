package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/sacola/internal/domain/product"
)

const (
	productColumns = `id, name, brand, category, price, sale_price, image_url`

	listProductsSQL = `SELECT ` + productColumns + ` FROM products ORDER BY name, id`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	getProductsByIDsSQL = `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1) ORDER BY id`

	listVariantsSQL = `SELECT product_id, size, color, stock
		FROM product_variants WHERE product_id = ANY($1)
		ORDER BY product_id, size, color`

	upsertProductSQL = `INSERT INTO products (id, name, brand, category, price, sale_price, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			brand = EXCLUDED.brand,
			category = EXCLUDED.category,
			price = EXCLUDED.price,
			sale_price = EXCLUDED.sale_price,
			image_url = EXCLUDED.image_url`

	deleteVariantsSQL = `DELETE FROM product_variants WHERE product_id = $1`

	insertVariantSQL = `INSERT INTO product_variants (product_id, size, color, stock) VALUES ($1, $2, $3, $4)`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all products with their variants.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return products, r.attachVariants(ctx, products)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	products := []product.Product{p}
	if err := r.attachVariants(ctx, products); err != nil {
		return nil, err
	}
	return &products[0], nil
}

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return products, r.attachVariants(ctx, products)
}

// Upsert writes a product and replaces its variants.
func (r *ProductRepository) Upsert(ctx context.Context, p product.Product) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, upsertProductSQL,
			p.ID, p.Name, p.Brand, p.Category, p.Price, p.SalePrice, p.ImageURL,
		); err != nil {
			return fmt.Errorf("upserting product %q: %w", p.ID, err)
		}
		if _, err := tx.Exec(ctx, deleteVariantsSQL, p.ID); err != nil {
			return fmt.Errorf("clearing variants of %q: %w", p.ID, err)
		}

		batch := &pgx.Batch{}
		for _, v := range p.Variants {
			batch.Queue(insertVariantSQL, p.ID, v.Size, v.Color, v.Stock)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("inserting variants of %q: %w", p.ID, err)
		}
		return nil
	})
}

func (r *ProductRepository) attachVariants(ctx context.Context, products []product.Product) error {
	if len(products) == 0 {
		return nil
	}
	ids := make([]string, len(products))
	index := make(map[string]int, len(products))
	for i, p := range products {
		ids[i] = p.ID
		index[p.ID] = i
	}

	rows, err := r.pool.Query(ctx, listVariantsSQL, ids)
	if err != nil {
		return fmt.Errorf("listing variants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			productID string
			v         product.Variant
			stock     int32
		)
		if err := rows.Scan(&productID, &v.Size, &v.Color, &stock); err != nil {
			return fmt.Errorf("scanning variant: %w", err)
		}
		v.Stock = int(stock)
		if i, ok := index[productID]; ok {
			products[i].Variants = append(products[i].Variants, v)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("listing variants: %w", err)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p         product.Product
		price     decimal.Decimal
		salePrice decimal.NullDecimal
	)
	err := row.Scan(&p.ID, &p.Name, &p.Brand, &p.Category, &price, &salePrice, &p.ImageURL)
	p.Price = price
	if salePrice.Valid {
		sp := salePrice.Decimal
		p.SalePrice = &sp
	}
	return p, err
}
