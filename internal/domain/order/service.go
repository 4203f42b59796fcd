package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/sacola/internal/domain/cart"
	"github.com/xenking/sacola/internal/domain/coupon"
	"github.com/xenking/sacola/internal/domain/product"
	"github.com/xenking/sacola/internal/domain/shipping"
	"github.com/xenking/sacola/internal/pricing"
)

// ErrNoShipping is returned when no shipping option was chosen.
var ErrNoShipping = errors.New("shipping option required")

// ProductNotFoundError indicates a product in the cart no longer exists.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

func (e *ProductNotFoundError) Unwrap() error { return product.ErrNotFound }

// Option configures a Service.
type Option func(*Service)

// WithTracerProvider sets the tracer provider for checkout spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp.Tracer("github.com/xenking/sacola/internal/domain/order") }
}

// Service places orders from carts. Prices, stock and the coupon are
// checked again here regardless of what the cart showed.
type Service struct {
	products product.Repository
	coupons  coupon.Repository
	resolver coupon.Resolver
	shipping shipping.Catalog
	orders   Repository
	tracer   trace.Tracer
	now      func() time.Time
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	products product.Repository,
	coupons coupon.Repository,
	shippingCatalog shipping.Catalog,
	orders Repository,
	opts ...Option,
) *Service {
	s := &Service{
		products: products,
		coupons:  coupons,
		resolver: coupon.NewRepoResolver(coupons),
		shipping: shippingCatalog,
		orders:   orders,
		tracer:   noop.NewTracerProvider().Tracer(""),
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// PlaceOrder turns the contents of c into an order. shippingOptionID falls
// back to the option selected on the cart. On success the coupon use is
// recorded and the ordered items and coupon are removed from the cart.
func (s *Service) PlaceOrder(ctx context.Context, c *cart.Cart, shippingOptionID string) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.PlaceOrder",
		trace.WithAttributes(attribute.String("cart.id", c.ID())),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	lines := c.Lines()
	if len(lines) == 0 {
		return nil, cart.ErrEmptyCart
	}

	opt, err := s.shippingOption(ctx, c, shippingOptionID)
	if err != nil {
		return nil, err
	}

	if err := s.checkStock(ctx, lines); err != nil {
		return nil, err
	}

	items := make([]Item, len(lines))
	priced := make([]pricing.Item, len(lines))
	for i, l := range lines {
		items[i] = Item{
			ProductID: l.ProductID,
			Name:      l.Name,
			Size:      l.Size,
			Color:     l.Color,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
		}
		priced[i] = pricing.Item{UnitPrice: l.UnitPrice, Quantity: l.Quantity}
	}

	// Re-validate the active coupon against the repository.
	var (
		discount coupon.Discount
		code     string
	)
	if active := c.Coupon(); active != nil {
		base := pricing.Calculate(priced, nil, nil)
		rule, err := s.resolver.Resolve(ctx, active.Code, coupon.Order{
			Subtotal:  base.Subtotal,
			ItemCount: base.ItemCount,
		})
		if err != nil {
			return nil, errors.Wrap(err, "validate coupon")
		}
		cp, err := rule.Coupon()
		if err != nil {
			return nil, errors.Wrap(err, "validate coupon")
		}
		discount, code = cp.Discount, cp.Code
	}

	totals := pricing.Calculate(priced, discount, &opt).Rounded()

	o := &Order{
		ID:             uuid.New().String(),
		CartID:         c.ID(),
		Items:          items,
		Subtotal:       totals.Subtotal,
		Discount:       totals.Discount,
		Shipping:       totals.Shipping,
		Total:          totals.Total,
		CouponCode:     code,
		ShippingOption: opt.ID,
		CreatedAt:      s.now(),
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	span.SetAttributes(attribute.String("order.id", o.ID))

	if code != "" {
		if err := s.coupons.IncrementUses(ctx, code); err != nil {
			// The order stands; only the usage counter is off.
			zctx.From(ctx).Error("Failed to record coupon use",
				zap.String("order_id", o.ID),
				zap.String("coupon", code),
				zap.Error(err),
			)
		}
	}

	// Only what was ordered leaves the cart; anything added meanwhile stays.
	c.RemoveOrdered(ctx, lines, code)
	return o, nil
}

func (s *Service) shippingOption(ctx context.Context, c *cart.Cart, id string) (shipping.Option, error) {
	if id == "" {
		selected := c.Shipping()
		if selected == nil {
			return shipping.Option{}, ErrNoShipping
		}
		id = selected.ID
	}
	// Prices come from the catalog, not from the cart's copy.
	opt, err := s.shipping.Option(ctx, id)
	if err != nil {
		return shipping.Option{}, fmt.Errorf("get shipping option: %w", err)
	}
	return opt, nil
}

// checkStock fetches every product in one batch and verifies each line is
// still offered and in stock.
func (s *Service) checkStock(ctx context.Context, lines []cart.Line) error {
	ids := make([]string, 0, len(lines))
	seen := make(map[string]struct{}, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.ProductID]; !ok {
			seen[l.ProductID] = struct{}{}
			ids = append(ids, l.ProductID)
		}
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("get products: %w", err)
	}
	productMap := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		productMap[p.ID] = p
	}

	for _, l := range lines {
		p, ok := productMap[l.ProductID]
		if !ok {
			return &ProductNotFoundError{ProductID: l.ProductID}
		}
		v, err := p.Variant(l.Size, l.Color)
		if err != nil {
			return err
		}
		if l.Quantity > v.Stock {
			return &product.OutOfStockError{
				ProductID: l.ProductID,
				Size:      l.Size,
				Color:     l.Color,
				Requested: l.Quantity,
				Available: v.Stock,
			}
		}
	}
	return nil
}
