// Package cart holds a client's shopping cart: its lines, the active coupon
// and the selected shipping option, with pricing kept in step on every change.
package cart

import (
	"context"
	"sync"

	"github.com/go-faster/errors"

	"github.com/xenking/sacola/internal/domain/coupon"
	"github.com/xenking/sacola/internal/domain/product"
	"github.com/xenking/sacola/internal/domain/shipping"
	"github.com/xenking/sacola/internal/pricing"
)

var (
	// ErrInvalidQuantity is returned when adding a non-positive quantity.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	// ErrEmptyCart is returned when an operation needs at least one line.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrCouponSuperseded is returned to a coupon application whose result
	// was overtaken by a later coupon change or by the cart being emptied.
	ErrCouponSuperseded = errors.New("coupon application superseded")
)

// Cart is the state container for one client's cart. All methods are safe
// for concurrent use; mutations are serialized and observers see each change
// before the mutating call returns.
type Cart struct {
	id       string
	resolver coupon.Resolver

	mu        sync.Mutex
	store     Store
	coupon    *coupon.Coupon
	shipping  *shipping.Option
	snapshot  pricing.Snapshot
	couponSeq uint64
	observers []Observer
}

// New creates an empty cart that validates coupon codes with resolver.
func New(id string, resolver coupon.Resolver) *Cart {
	c := &Cart{id: id, resolver: resolver}
	c.recompute()
	return c
}

// ID returns the cart identifier.
func (c *Cart) ID() string { return c.id }

// Subscribe registers an observer for subsequent changes.
func (c *Cart) Subscribe(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, o)
}

// Restore replaces the cart contents with a previously saved state. A coupon
// without lines is dropped.
func (c *Cart) Restore(ctx context.Context, s State) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.store.Clear()
	for _, l := range s.Lines {
		c.store.lines = append(c.store.lines, l.clone())
	}
	c.coupon = nil
	if s.Coupon != nil && c.store.Len() > 0 {
		cp := *s.Coupon
		c.coupon = &cp
	}
	c.couponSeq++
	c.commit(ctx, EventRestored)
}

// AddItem adds quantity units of the product variant. Stock limits are not
// checked here.
func (c *Cart) AddItem(ctx context.Context, p product.Product, size, color string, quantity int) (Line, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	line, err := c.store.Add(p, size, color, quantity)
	if err != nil {
		return Line{}, err
	}
	c.commit(ctx, EventItemAdded)
	return line, nil
}

// UpdateQuantity sets a line's quantity exactly; quantity < 1 removes the
// line. Unknown lines are ignored.
func (c *Cart) UpdateQuantity(ctx context.Context, id LineID, quantity int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.store.UpdateQuantity(id, quantity) {
		return
	}
	kind := EventQuantityChanged
	if quantity < 1 {
		kind = EventItemRemoved
	}
	c.afterLinesChanged()
	c.commit(ctx, kind)
}

// RemoveItem removes a line. Unknown lines are ignored.
func (c *Cart) RemoveItem(ctx context.Context, id LineID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.store.Remove(id) {
		return
	}
	c.afterLinesChanged()
	c.commit(ctx, EventItemRemoved)
}

// Clear removes every line and the active coupon.
func (c *Cart) Clear(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.store.Clear()
	c.coupon = nil
	c.couponSeq++
	c.commit(ctx, EventCleared)
}

// RemoveOrdered takes the quantities of ordered out of the cart, dropping
// lines that reach zero, and clears the active coupon when its code is
// couponCode. Items added after ordered was read stay in the cart.
func (c *Cart) RemoveOrdered(ctx context.Context, ordered []Line, couponCode string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	changed := false
	for _, l := range ordered {
		left := c.store.Quantity(l.ID) - l.Quantity
		if c.store.UpdateQuantity(l.ID, left) {
			changed = true
		}
	}
	if couponCode != "" && c.coupon != nil && c.coupon.Code == couponCode {
		c.coupon = nil
		c.couponSeq++
		changed = true
	}
	if !changed {
		return
	}
	c.afterLinesChanged()
	kind := EventItemRemoved
	if c.store.Len() == 0 {
		kind = EventCleared
	}
	c.commit(ctx, kind)
}

// ApplyCoupon resolves code against the current cart contents and makes it
// the active coupon, replacing any other. The resolver runs without holding
// the cart lock; if another coupon change happens meanwhile the result is
// discarded with ErrCouponSuperseded. On failure the active coupon is left
// untouched.
func (c *Cart) ApplyCoupon(ctx context.Context, code string) (coupon.Coupon, error) {
	c.mu.Lock()
	if c.store.Len() == 0 {
		c.mu.Unlock()
		return coupon.Coupon{}, ErrEmptyCart
	}
	c.couponSeq++
	ticket := c.couponSeq
	order := c.orderLocked()
	c.mu.Unlock()

	rule, resolveErr := c.resolver.Resolve(ctx, code, order)

	c.mu.Lock()
	defer c.mu.Unlock()

	if ticket != c.couponSeq {
		return coupon.Coupon{}, ErrCouponSuperseded
	}
	if resolveErr != nil {
		return coupon.Coupon{}, resolveErr
	}
	// Lines may have changed while resolving.
	if err := rule.CheckMinimum(c.orderLocked()); err != nil {
		return coupon.Coupon{}, err
	}
	cp, err := rule.Coupon()
	if err != nil {
		return coupon.Coupon{}, errors.Wrap(err, "activate coupon")
	}

	c.coupon = &cp
	c.commit(ctx, EventCouponApplied)
	return cp, nil
}

// RemoveCoupon clears the active coupon. It also cancels any in-flight
// ApplyCoupon.
func (c *Cart) RemoveCoupon(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.couponSeq++
	if c.coupon == nil {
		return
	}
	c.coupon = nil
	c.commit(ctx, EventCouponRemoved)
}

// SelectShipping sets the shipping option used for pricing; nil deselects.
func (c *Cart) SelectShipping(ctx context.Context, opt *shipping.Option) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if opt != nil {
		o := *opt
		opt = &o
	}
	c.shipping = opt
	c.commit(ctx, EventShippingSelected)
}

// ItemCount returns the total number of units in the cart.
func (c *Cart) ItemCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.ItemCount()
}

// Quantity returns the quantity held for a line, zero when absent.
func (c *Cart) Quantity(id LineID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Quantity(id)
}

// Lines returns the cart lines in insertion order.
func (c *Cart) Lines() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Lines()
}

// Coupon returns the active coupon, if any.
func (c *Cart) Coupon() *coupon.Coupon {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.coupon == nil {
		return nil
	}
	cp := *c.coupon
	return &cp
}

// Shipping returns the selected shipping option, if any.
func (c *Cart) Shipping() *shipping.Option {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.shipping == nil {
		return nil
	}
	o := *c.shipping
	return &o
}

// Pricing returns the pricing snapshot for the current contents.
func (c *Cart) Pricing() pricing.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// State returns a copy of the durable cart state.
func (c *Cart) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// afterLinesChanged drops the coupon once the last line is gone.
func (c *Cart) afterLinesChanged() {
	if c.store.Len() > 0 {
		return
	}
	c.coupon = nil
	c.couponSeq++
}

func (c *Cart) orderLocked() coupon.Order {
	return coupon.Order{Subtotal: c.snapshot.Subtotal, ItemCount: c.snapshot.ItemCount}
}

func (c *Cart) stateLocked() State {
	s := State{Lines: c.store.Lines()}
	if c.coupon != nil {
		cp := *c.coupon
		s.Coupon = &cp
	}
	return s
}

func (c *Cart) calculate() pricing.Snapshot {
	var d coupon.Discount
	if c.coupon != nil {
		d = c.coupon.Discount
	}
	return pricing.Calculate(c.store.Items(), d, c.shipping)
}

func (c *Cart) recompute() {
	c.snapshot = c.calculate()
}

// commit recomputes pricing and notifies observers. Callers hold c.mu.
func (c *Cart) commit(ctx context.Context, kind EventKind) {
	c.recompute()
	if len(c.observers) == 0 {
		return
	}
	e := Event{
		CartID:  c.id,
		Kind:    kind,
		State:   c.stateLocked(),
		Pricing: c.snapshot,
	}
	for _, o := range c.observers {
		o.CartChanged(ctx, e)
	}
}
