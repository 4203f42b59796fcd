package cart

import (
	"context"

	"github.com/xenking/sacola/internal/domain/coupon"
	"github.com/xenking/sacola/internal/pricing"
)

// EventKind names the mutation that produced an Event.
type EventKind string

const (
	EventItemAdded        EventKind = "item_added"
	EventQuantityChanged  EventKind = "quantity_changed"
	EventItemRemoved      EventKind = "item_removed"
	EventCleared          EventKind = "cleared"
	EventCouponApplied    EventKind = "coupon_applied"
	EventCouponRemoved    EventKind = "coupon_removed"
	EventShippingSelected EventKind = "shipping_selected"
	EventRestored         EventKind = "restored"
)

// State is the durable part of a cart: its lines and active coupon.
// Shipping selection is transient and not included.
type State struct {
	Lines  []Line
	Coupon *coupon.Coupon
}

// Empty reports whether the state holds no lines.
func (s State) Empty() bool { return len(s.Lines) == 0 }

// Event describes a state change of a cart. State and Pricing reflect the
// cart after the mutation.
type Event struct {
	CartID  string
	Kind    EventKind
	State   State
	Pricing pricing.Snapshot
}

// Observer receives cart change events. CartChanged is called synchronously
// while the cart is locked and must not call back into the cart.
type Observer interface {
	CartChanged(ctx context.Context, e Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, e Event)

// CartChanged calls f.
func (f ObserverFunc) CartChanged(ctx context.Context, e Event) { f(ctx, e) }
