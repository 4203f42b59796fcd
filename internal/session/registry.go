// Package session keeps the live cart of every client and restores carts
// from persistent storage on first use.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xenking/sacola/internal/domain/cart"
	"github.com/xenking/sacola/internal/domain/coupon"
	"github.com/xenking/sacola/internal/domain/product"
	"github.com/xenking/sacola/internal/persist"
)

const instrumentationName = "github.com/xenking/sacola/internal/session"

// ErrInvalidCartID is returned for cart ids that are not UUIDs.
var ErrInvalidCartID = errors.New("invalid cart id")

// Store restores saved carts and observes live ones to save them.
type Store interface {
	cart.Observer
	Load(ctx context.Context, cartID string) (cart.State, error)
}

// Option configures a Registry.
type Option func(*Registry)

// WithMeterProvider sets the meter provider for coupon counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(r *Registry) { r.meterProvider = mp }
}

// DefaultLoadTimeout bounds restoring a saved cart.
const DefaultLoadTimeout = 5 * time.Second

// WithLoadTimeout sets how long restoring a saved cart may take.
func WithLoadTimeout(d time.Duration) Option {
	return func(r *Registry) { r.loadTimeout = d }
}

// WithTracerProvider sets the tracer provider for coupon spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(r *Registry) { r.tracerProvider = tp }
}

type entry struct {
	cart     *cart.Cart
	lastUsed time.Time
}

// Registry owns the live carts. Each cart is restored at most once; concurrent
// first requests for the same id share a single load.
type Registry struct {
	resolver coupon.Resolver
	products product.Repository
	store    Store
	lg       *zap.Logger
	now      func() time.Time

	loadTimeout time.Duration

	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	tracer         trace.Tracer
	couponResults  metric.Int64Counter

	mu    sync.Mutex
	carts map[string]*entry
	loads singleflight.Group
}

// NewRegistry creates a Registry.
func NewRegistry(
	resolver coupon.Resolver,
	products product.Repository,
	store Store,
	lg *zap.Logger,
	opts ...Option,
) (*Registry, error) {
	r := &Registry{
		resolver:       resolver,
		products:       products,
		store:          store,
		lg:             lg,
		now:            time.Now,
		loadTimeout:    DefaultLoadTimeout,
		meterProvider:  metricnoop.NewMeterProvider(),
		tracerProvider: tracenoop.NewTracerProvider(),
		carts:          make(map[string]*entry),
	}
	for _, o := range opts {
		o(r)
	}

	r.tracer = r.tracerProvider.Tracer(instrumentationName)
	var err error
	if r.couponResults, err = r.meterProvider.Meter(instrumentationName).Int64Counter(
		"sacola.cart.coupon.results",
		metric.WithDescription("Coupon applications by outcome"),
	); err != nil {
		return nil, errors.Wrap(err, "coupon results counter")
	}
	return r, nil
}

// NewID returns a fresh cart id.
func NewID() string { return uuid.NewString() }

// ValidID reports whether id is a well-formed cart id.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Get returns the live cart for id, restoring it from the store on first use.
// The cart is always usable; a non-nil error only reports that saved state
// could not be restored and the cart started empty.
//
// When the store could not be read at all, the empty cart is returned
// detached: it is neither kept nor saved, so the next request retries the
// load instead of overwriting the saved cart.
func (r *Registry) Get(ctx context.Context, id string) (*cart.Cart, error) {
	if !ValidID(id) {
		return nil, errors.Wrapf(ErrInvalidCartID, "%q", id)
	}
	if c := r.lookup(id); c != nil {
		return c, nil
	}

	type opened struct {
		cart   *cart.Cart
		notice error
	}
	v, _, _ := r.loads.Do(id, func() (any, error) {
		if c := r.lookup(id); c != nil {
			return opened{cart: c}, nil
		}

		// The load is shared by every waiting request; one caller going away
		// must not fail it for the others.
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.loadTimeout)
		defer cancel()
		state, notice := r.store.Load(loadCtx, id)

		c := cart.New(id, r.resolver)
		if notice != nil && !errors.Is(notice, persist.ErrReadCorrupt) {
			r.lg.Warn("Saved cart unavailable, serving detached empty cart",
				zap.String("cart_id", id),
				zap.Error(notice),
			)
			return opened{cart: c, notice: notice}, nil
		}

		c.Restore(ctx, state)
		c.Subscribe(r.store)

		r.mu.Lock()
		r.carts[id] = &entry{cart: c, lastUsed: r.now()}
		r.mu.Unlock()

		if notice != nil {
			r.lg.Info("Started empty cart after restore failure",
				zap.String("cart_id", id),
				zap.Error(notice),
			)
		}
		return opened{cart: c, notice: notice}, nil
	})
	o := v.(opened)
	return o.cart, o.notice
}

func (r *Registry) lookup(id string) *cart.Cart {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.carts[id]
	if !ok {
		return nil
	}
	e.lastUsed = r.now()
	return e.cart
}

// Len returns the number of live carts.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.carts)
}

// Sweep drops carts idle for longer than idle. Their state stays in the
// store and is restored on next use.
func (r *Registry) Sweep(idle time.Duration) int {
	cutoff := r.now().Add(-idle)

	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, e := range r.carts {
		if e.lastUsed.Before(cutoff) {
			delete(r.carts, id)
			n++
		}
	}
	return n
}

// Run sweeps idle carts every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval, idle time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := r.Sweep(idle); n > 0 {
				r.lg.Debug("Swept idle carts", zap.Int("count", n))
			}
		}
	}
}

// AddItem checks the catalog and stock for the variant and adds it to c.
// The quantity already in the cart counts against the available stock.
func (r *Registry) AddItem(ctx context.Context, c *cart.Cart, productID, size, color string, quantity int) (cart.Line, error) {
	if quantity < 1 {
		return cart.Line{}, cart.ErrInvalidQuantity
	}

	p, v, err := r.variant(ctx, productID, size, color)
	if err != nil {
		return cart.Line{}, err
	}

	want := c.Quantity(cart.NewLineID(productID, size, color)) + quantity
	if want > v.Stock {
		return cart.Line{}, &product.OutOfStockError{
			ProductID: productID,
			Size:      size,
			Color:     color,
			Requested: want,
			Available: v.Stock,
		}
	}
	return c.AddItem(ctx, *p, size, color, quantity)
}

// UpdateQuantity sets a line's quantity after checking stock. Lowering the
// quantity or removing the line needs no catalog access. Unknown lines are
// ignored.
func (r *Registry) UpdateQuantity(ctx context.Context, c *cart.Cart, id cart.LineID, quantity int) error {
	current := c.Quantity(id)
	if current == 0 {
		return nil
	}
	if quantity > current {
		line, ok := findLine(c.Lines(), id)
		if !ok {
			return nil
		}
		_, v, err := r.variant(ctx, line.ProductID, line.Size, line.Color)
		if err != nil {
			return err
		}
		if quantity > v.Stock {
			return &product.OutOfStockError{
				ProductID: line.ProductID,
				Size:      line.Size,
				Color:     line.Color,
				Requested: quantity,
				Available: v.Stock,
			}
		}
	}
	c.UpdateQuantity(ctx, id, quantity)
	return nil
}

// ApplyCoupon applies code to c, recording the outcome.
func (r *Registry) ApplyCoupon(ctx context.Context, c *cart.Cart, code string) (coupon.Coupon, error) {
	ctx, span := r.tracer.Start(ctx, "cart.ApplyCoupon",
		trace.WithAttributes(attribute.String("coupon.code", coupon.NormalizeCode(code))),
	)
	defer span.End()

	cp, err := c.ApplyCoupon(ctx, code)
	outcome := outcomeOf(err)
	r.couponResults.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	span.SetAttributes(attribute.String("coupon.outcome", outcome))

	if err != nil && outcome == "error" {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return cp, err
}

func outcomeOf(err error) string {
	if err == nil {
		return "applied"
	}
	if reason := coupon.Reason(err); reason != "" {
		return reason
	}
	switch {
	case errors.Is(err, cart.ErrCouponSuperseded):
		return "superseded"
	case errors.Is(err, cart.ErrEmptyCart):
		return "empty_cart"
	default:
		return "error"
	}
}

func (r *Registry) variant(ctx context.Context, productID, size, color string) (*product.Product, product.Variant, error) {
	p, err := r.products.GetByID(ctx, productID)
	if err != nil {
		return nil, product.Variant{}, err
	}
	v, err := p.Variant(size, color)
	if err != nil {
		return nil, product.Variant{}, err
	}
	return p, v, nil
}

func findLine(lines []cart.Line, id cart.LineID) (cart.Line, bool) {
	for _, l := range lines {
		if l.ID == id {
			return l, true
		}
	}
	return cart.Line{}, false
}
