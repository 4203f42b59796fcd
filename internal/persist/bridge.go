// Package persist saves and restores cart state through a key-value store.
package persist

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/xenking/sacola/internal/domain/cart"
)

var (
	// ErrWriteFailed marks a failed save. The in-memory cart stays
	// authoritative, so it is logged and never returned to callers.
	ErrWriteFailed = errors.New("cart persistence write failed")
	// ErrReadCorrupt marks saved data that could not be restored.
	ErrReadCorrupt = errors.New("saved cart is corrupt")
)

// KeyPrefix namespaces cart keys in the shared store.
const KeyPrefix = "sacola:cart:"

// Storage is a string key-value store.
type Storage interface {
	// Get returns the value for key; found is false when the key is absent.
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithMeterProvider sets the meter provider for persistence counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(b *Bridge) { b.meterProvider = mp }
}

// Bridge writes cart state to Storage after every durable change and reads
// it back when a cart is first opened.
type Bridge struct {
	storage       Storage
	lg            *zap.Logger
	meterProvider metric.MeterProvider

	writes   metric.Int64Counter
	failures metric.Int64Counter
}

var _ cart.Observer = (*Bridge)(nil)

// NewBridge creates a Bridge over storage.
func NewBridge(storage Storage, lg *zap.Logger, opts ...Option) (*Bridge, error) {
	b := &Bridge{
		storage:       storage,
		lg:            lg,
		meterProvider: noop.NewMeterProvider(),
	}
	for _, o := range opts {
		o(b)
	}

	meter := b.meterProvider.Meter("github.com/xenking/sacola/internal/persist")
	var err error
	if b.writes, err = meter.Int64Counter("sacola.cart.persist.writes",
		metric.WithDescription("Cart snapshots written"),
	); err != nil {
		return nil, errors.Wrap(err, "writes counter")
	}
	if b.failures, err = meter.Int64Counter("sacola.cart.persist.failures",
		metric.WithDescription("Cart persistence failures by operation"),
	); err != nil {
		return nil, errors.Wrap(err, "failures counter")
	}
	return b, nil
}

// Key returns the storage key of a cart.
func Key(cartID string) string { return KeyPrefix + cartID }

// Save writes s for cartID. Failures are logged and swallowed.
func (b *Bridge) Save(ctx context.Context, cartID string, s cart.State) {
	if err := b.save(ctx, cartID, s); err != nil {
		b.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("op", "write")))
		b.lg.Warn("Failed to persist cart",
			zap.String("cart_id", cartID),
			zap.Error(err),
		)
	}
}

func (b *Bridge) save(ctx context.Context, cartID string, s cart.State) error {
	if err := b.storage.Set(ctx, Key(cartID), string(Encode(s))); err != nil {
		return errors.Wrapf(ErrWriteFailed, "set: %v", err)
	}
	b.writes.Add(ctx, 1)
	return nil
}

// Load restores the saved state of cartID. It always returns a usable state:
// when nothing is stored, when the data is corrupt or when storage fails the
// state is empty. A non-nil error is informational and may be shown as a
// notice; the caller proceeds with the returned state either way.
func (b *Bridge) Load(ctx context.Context, cartID string) (cart.State, error) {
	raw, found, err := b.storage.Get(ctx, Key(cartID))
	if err != nil {
		b.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("op", "read")))
		b.lg.Warn("Failed to read saved cart",
			zap.String("cart_id", cartID),
			zap.Error(err),
		)
		return cart.State{}, errors.Wrap(err, "read cart")
	}
	if !found {
		return cart.State{}, nil
	}

	s, err := Decode([]byte(raw))
	if err != nil {
		b.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("op", "decode")))
		b.lg.Warn("Discarding corrupt saved cart",
			zap.String("cart_id", cartID),
			zap.Error(err),
		)
		return cart.State{}, err
	}
	return s, nil
}

// CartChanged saves the cart after every durable change. Shipping selection
// is transient and a restore writes back what was just read, so both are
// skipped.
func (b *Bridge) CartChanged(ctx context.Context, e cart.Event) {
	switch e.Kind {
	case cart.EventShippingSelected, cart.EventRestored:
		return
	}
	b.Save(ctx, e.CartID, e.State)
}
