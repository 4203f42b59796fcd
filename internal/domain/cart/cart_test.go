package cart

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/sacola/internal/domain/coupon"
	"github.com/xenking/sacola/internal/domain/product"
	"github.com/xenking/sacola/internal/domain/shipping"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var (
	vestido = product.Product{
		ID:       "vestido-midi",
		Name:     "Vestido Midi Floral",
		Brand:    "Farm",
		Price:    dec("100.00"),
		ImageURL: "https://cdn.example.com/vestido.jpg",
	}
	camisa = product.Product{
		ID:    "camisa-linho",
		Name:  "Camisa de Linho",
		Brand: "Reserva",
		Price: dec("50.00"),
	}
	bolsa = product.Product{
		ID:    "bolsa-couro",
		Name:  "Bolsa de Couro",
		Brand: "Arezzo",
		Price: dec("300.00"),
	}
	pac = shipping.Option{ID: "pac", Name: "PAC", Price: dec("15.90"), EstimatedDays: 7}
)

func testRules() []coupon.Rule {
	return append(coupon.DefaultRules(),
		coupon.Rule{Code: "MENOS30", Kind: coupon.KindFixedAmount, Value: dec("30")},
		coupon.Rule{Code: "MIN200", Kind: coupon.KindPercentage, Value: dec("20"), MinOrderValue: dec("200")},
	)
}

func newCart(t *testing.T) *Cart {
	t.Helper()
	return New("cart-1", coupon.NewRepoResolver(coupon.NewStaticRepository(testRules())))
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) CartChanged(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

func TestCart_AddItem(t *testing.T) {
	ctx := context.Background()

	t.Run("additive on same identity", func(t *testing.T) {
		a := newCart(t)
		_, err := a.AddItem(ctx, vestido, "M", "azul", 2)
		require.NoError(t, err)
		line, err := a.AddItem(ctx, vestido, "M", "azul", 3)
		require.NoError(t, err)
		assert.Equal(t, 5, line.Quantity)

		b := newCart(t)
		_, err = b.AddItem(ctx, vestido, "M", "azul", 5)
		require.NoError(t, err)

		assert.Equal(t, b.State(), a.State())
		require.Len(t, a.Lines(), 1)
	})

	t.Run("distinct variants are distinct lines in insertion order", func(t *testing.T) {
		c := newCart(t)
		_, err := c.AddItem(ctx, vestido, "M", "azul", 1)
		require.NoError(t, err)
		_, err = c.AddItem(ctx, vestido, "G", "azul", 1)
		require.NoError(t, err)
		_, err = c.AddItem(ctx, camisa, "M", "branca", 2)
		require.NoError(t, err)

		lines := c.Lines()
		require.Len(t, lines, 3)
		assert.Equal(t, NewLineID("vestido-midi", "M", "azul"), lines[0].ID)
		assert.Equal(t, NewLineID("vestido-midi", "G", "azul"), lines[1].ID)
		assert.Equal(t, NewLineID("camisa-linho", "M", "branca"), lines[2].ID)
		assert.Equal(t, 4, c.ItemCount())
	})

	t.Run("separator inside ids does not merge variants", func(t *testing.T) {
		piped := product.Product{ID: "a|b", Name: "A", Price: dec("10.00")}
		plain := product.Product{ID: "a", Name: "B", Price: dec("99.00")}

		c := newCart(t)
		_, err := c.AddItem(ctx, piped, "c", "d", 2)
		require.NoError(t, err)
		_, err = c.AddItem(ctx, plain, "b|c", "d", 1)
		require.NoError(t, err)

		require.Len(t, c.Lines(), 2)
		assert.NotEqual(t, NewLineID("a|b", "c", "d"), NewLineID("a", "b|c", "d"))
		assert.True(t, dec("119.00").Equal(c.Pricing().Subtotal), c.Pricing().Subtotal.String())
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		c := newCart(t)
		rec := &recorder{}
		c.Subscribe(rec)

		_, err := c.AddItem(ctx, vestido, "M", "azul", 0)
		require.ErrorIs(t, err, ErrInvalidQuantity)
		assert.Empty(t, c.Lines())
		assert.Empty(t, rec.kinds())
	})

	t.Run("snapshots sale price", func(t *testing.T) {
		sale := dec("79.90")
		p := vestido
		p.SalePrice = &sale

		c := newCart(t)
		line, err := c.AddItem(ctx, p, "P", "rosa", 1)
		require.NoError(t, err)
		assert.True(t, sale.Equal(line.UnitPrice))
		require.NotNil(t, line.OriginalPrice)
		assert.True(t, dec("100").Equal(*line.OriginalPrice))

		// Catalog price changes do not reach lines already in the cart.
		p.Price = dec("500")
		newSale := dec("400")
		p.SalePrice = &newSale
		line, err = c.AddItem(ctx, p, "P", "rosa", 1)
		require.NoError(t, err)
		assert.True(t, sale.Equal(line.UnitPrice))
		assert.True(t, dec("159.80").Equal(c.Pricing().Subtotal))
	})

	t.Run("full price line has no original price", func(t *testing.T) {
		c := newCart(t)
		line, err := c.AddItem(ctx, camisa, "M", "branca", 1)
		require.NoError(t, err)
		assert.Nil(t, line.OriginalPrice)
	})
}

func TestCart_UpdateQuantity(t *testing.T) {
	ctx := context.Background()
	id := NewLineID(vestido.ID, "M", "azul")

	t.Run("sets exactly", func(t *testing.T) {
		c := newCart(t)
		_, err := c.AddItem(ctx, vestido, "M", "azul", 2)
		require.NoError(t, err)

		c.UpdateQuantity(ctx, id, 7)
		assert.Equal(t, 7, c.Quantity(id))
		assert.True(t, dec("700").Equal(c.Pricing().Subtotal))
	})

	t.Run("zero is equivalent to remove", func(t *testing.T) {
		a := newCart(t)
		b := newCart(t)
		for _, c := range []*Cart{a, b} {
			_, err := c.AddItem(ctx, vestido, "M", "azul", 2)
			require.NoError(t, err)
			_, err = c.AddItem(ctx, camisa, "M", "branca", 1)
			require.NoError(t, err)
		}

		a.UpdateQuantity(ctx, id, 0)
		b.RemoveItem(ctx, id)

		assert.Equal(t, b.State(), a.State())
		assert.True(t, a.Pricing().Equal(b.Pricing()))
		assert.Equal(t, 0, a.Quantity(id))
	})

	t.Run("negative removes", func(t *testing.T) {
		c := newCart(t)
		_, err := c.AddItem(ctx, vestido, "M", "azul", 2)
		require.NoError(t, err)

		c.UpdateQuantity(ctx, id, -3)
		assert.Empty(t, c.Lines())
	})

	t.Run("missing line is a no-op", func(t *testing.T) {
		c := newCart(t)
		_, err := c.AddItem(ctx, vestido, "M", "azul", 2)
		require.NoError(t, err)
		rec := &recorder{}
		c.Subscribe(rec)
		before := c.State()

		c.UpdateQuantity(ctx, NewLineID("nope", "M", "azul"), 4)

		assert.Equal(t, before, c.State())
		assert.Empty(t, rec.kinds())
	})
}

func TestCart_RemoveItem_Idempotent(t *testing.T) {
	ctx := context.Background()
	c := newCart(t)
	_, err := c.AddItem(ctx, vestido, "M", "azul", 2)
	require.NoError(t, err)
	_, err = c.ApplyCoupon(ctx, "DESCONTO10")
	require.NoError(t, err)

	rec := &recorder{}
	c.Subscribe(rec)
	before := c.State()
	pricingBefore := c.Pricing()

	c.RemoveItem(ctx, NewLineID("vestido-midi", "GG", "azul"))
	c.RemoveItem(ctx, NewLineID("vestido-midi", "GG", "azul"))

	assert.Equal(t, before, c.State())
	assert.True(t, pricingBefore.Equal(c.Pricing()))
	assert.Empty(t, rec.kinds())
}

func TestCart_LastLineRemovedClearsCoupon(t *testing.T) {
	ctx := context.Background()
	c := newCart(t)
	_, err := c.AddItem(ctx, vestido, "M", "azul", 1)
	require.NoError(t, err)
	_, err = c.ApplyCoupon(ctx, "DESCONTO10")
	require.NoError(t, err)

	c.RemoveItem(ctx, NewLineID(vestido.ID, "M", "azul"))

	assert.Nil(t, c.Coupon())
	assert.True(t, c.State().Empty())
}

func TestCart_Clear(t *testing.T) {
	ctx := context.Background()
	c := newCart(t)
	_, err := c.AddItem(ctx, vestido, "M", "azul", 1)
	require.NoError(t, err)
	_, err = c.AddItem(ctx, camisa, "G", "branca", 2)
	require.NoError(t, err)
	_, err = c.AddItem(ctx, bolsa, "U", "preta", 1)
	require.NoError(t, err)
	_, err = c.ApplyCoupon(ctx, "PRIMEIRACOMPRA")
	require.NoError(t, err)

	rec := &recorder{}
	c.Subscribe(rec)
	c.Clear(ctx)

	assert.Empty(t, c.Lines())
	assert.Nil(t, c.Coupon())
	assert.Zero(t, c.ItemCount())
	assert.True(t, c.Pricing().Total.IsZero())
	assert.Equal(t, []EventKind{EventCleared}, rec.kinds())
}

func TestCart_RemoveOrdered(t *testing.T) {
	ctx := context.Background()

	t.Run("everything ordered empties the cart", func(t *testing.T) {
		c := newCart(t)
		_, err := c.AddItem(ctx, vestido, "M", "azul", 2)
		require.NoError(t, err)
		_, err = c.ApplyCoupon(ctx, "DESCONTO10")
		require.NoError(t, err)

		rec := &recorder{}
		c.Subscribe(rec)
		c.RemoveOrdered(ctx, c.Lines(), "DESCONTO10")

		assert.Empty(t, c.Lines())
		assert.Nil(t, c.Coupon())
		assert.Equal(t, []EventKind{EventCleared}, rec.kinds())
	})

	t.Run("later additions stay", func(t *testing.T) {
		c := newCart(t)
		_, err := c.AddItem(ctx, vestido, "M", "azul", 2)
		require.NoError(t, err)
		ordered := c.Lines()

		_, err = c.AddItem(ctx, vestido, "M", "azul", 1)
		require.NoError(t, err)
		_, err = c.AddItem(ctx, camisa, "G", "branca", 1)
		require.NoError(t, err)
		_, err = c.ApplyCoupon(ctx, "MENOS30")
		require.NoError(t, err)

		rec := &recorder{}
		c.Subscribe(rec)
		c.RemoveOrdered(ctx, ordered, "")

		lines := c.Lines()
		require.Len(t, lines, 2)
		assert.Equal(t, 1, lines[0].Quantity)
		assert.Equal(t, NewLineID("camisa-linho", "G", "branca"), lines[1].ID)
		require.NotNil(t, c.Coupon())
		assert.Equal(t, []EventKind{EventItemRemoved}, rec.kinds())
	})

	t.Run("lines removed meanwhile are ignored", func(t *testing.T) {
		c := newCart(t)
		_, err := c.AddItem(ctx, vestido, "M", "azul", 2)
		require.NoError(t, err)
		ordered := c.Lines()
		c.Clear(ctx)

		rec := &recorder{}
		c.Subscribe(rec)
		c.RemoveOrdered(ctx, ordered, "")

		assert.Empty(t, c.Lines())
		assert.Empty(t, rec.kinds())
	})
}

func TestCart_PricingScenarios(t *testing.T) {
	ctx := context.Background()

	t.Run("percentage coupon with shipping", func(t *testing.T) {
		c := newCart(t)
		_, err := c.AddItem(ctx, vestido, "M", "azul", 2)
		require.NoError(t, err)
		assert.True(t, dec("200").Equal(c.Pricing().Subtotal))

		_, err = c.ApplyCoupon(ctx, "desconto10")
		require.NoError(t, err)
		c.SelectShipping(ctx, &pac)

		p := c.Pricing()
		assert.True(t, dec("20").Equal(p.Discount), "discount %s", p.Discount)
		assert.True(t, dec("195.90").Equal(p.Total), "total %s", p.Total)
	})

	t.Run("free shipping coupon", func(t *testing.T) {
		c := newCart(t)
		_, err := c.AddItem(ctx, vestido, "M", "azul", 2)
		require.NoError(t, err)
		c.SelectShipping(ctx, &pac)

		_, err = c.ApplyCoupon(ctx, "FRETEGRATIS")
		require.NoError(t, err)

		p := c.Pricing()
		assert.True(t, p.Discount.IsZero())
		assert.True(t, p.Shipping.IsZero())
		assert.True(t, dec("200").Equal(p.Total), "total %s", p.Total)
	})

	t.Run("unknown code leaves cart unchanged", func(t *testing.T) {
		c := newCart(t)
		_, err := c.AddItem(ctx, vestido, "M", "azul", 2)
		require.NoError(t, err)
		_, err = c.ApplyCoupon(ctx, "MENOS30")
		require.NoError(t, err)
		c.SelectShipping(ctx, &pac)
		before := c.Pricing()
		rec := &recorder{}
		c.Subscribe(rec)

		_, err = c.ApplyCoupon(ctx, "FAKE123")
		require.ErrorIs(t, err, coupon.ErrCouponNotFound)

		assert.True(t, before.Equal(c.Pricing()))
		require.NotNil(t, c.Coupon())
		assert.Equal(t, "MENOS30", c.Coupon().Code)
		assert.Empty(t, rec.kinds())
	})
}

func TestCart_CouponExclusivity(t *testing.T) {
	ctx := context.Background()
	c := newCart(t)
	_, err := c.AddItem(ctx, vestido, "M", "azul", 2)
	require.NoError(t, err)

	_, err = c.ApplyCoupon(ctx, "DESCONTO10")
	require.NoError(t, err)
	_, err = c.ApplyCoupon(ctx, "MENOS30")
	require.NoError(t, err)

	got := c.Coupon()
	require.NotNil(t, got)
	assert.Equal(t, "MENOS30", got.Code)
	assert.True(t, dec("30").Equal(c.Pricing().Discount))
}

func TestCart_ApplyCoupon_EmptyCart(t *testing.T) {
	c := newCart(t)
	_, err := c.ApplyCoupon(context.Background(), "DESCONTO10")
	require.ErrorIs(t, err, ErrEmptyCart)
}

func TestCart_RemoveCoupon(t *testing.T) {
	ctx := context.Background()
	c := newCart(t)
	_, err := c.AddItem(ctx, vestido, "M", "azul", 2)
	require.NoError(t, err)
	_, err = c.ApplyCoupon(ctx, "DESCONTO10")
	require.NoError(t, err)

	c.RemoveCoupon(ctx)
	assert.Nil(t, c.Coupon())
	assert.True(t, c.Pricing().Discount.IsZero())

	// Removing again is fine.
	c.RemoveCoupon(ctx)
	assert.Nil(t, c.Coupon())
}

// gatedResolver blocks Resolve for codes that have a gate until the gate is
// closed.
type gatedResolver struct {
	inner   coupon.Resolver
	started chan string
	gates   map[string]chan struct{}
}

func newGatedResolver(codes ...string) *gatedResolver {
	r := &gatedResolver{
		inner:   coupon.NewRepoResolver(coupon.NewStaticRepository(testRules())),
		started: make(chan string, len(codes)),
		gates:   make(map[string]chan struct{}, len(codes)),
	}
	for _, code := range codes {
		r.gates[code] = make(chan struct{})
	}
	return r
}

func (r *gatedResolver) Resolve(ctx context.Context, code string, o coupon.Order) (*coupon.Rule, error) {
	if gate, ok := r.gates[code]; ok {
		r.started <- code
		<-gate
	}
	return r.inner.Resolve(ctx, code, o)
}

type applyResult struct {
	coupon coupon.Coupon
	err    error
}

func applyAsync(ctx context.Context, c *Cart, code string) <-chan applyResult {
	done := make(chan applyResult, 1)
	go func() {
		cp, err := c.ApplyCoupon(ctx, code)
		done <- applyResult{cp, err}
	}()
	return done
}

func TestCart_ApplyCoupon_Superseded(t *testing.T) {
	ctx := context.Background()

	t.Run("by newer apply", func(t *testing.T) {
		r := newGatedResolver("DESCONTO10")
		c := New("cart-1", r)
		_, err := c.AddItem(ctx, vestido, "M", "azul", 2)
		require.NoError(t, err)

		stale := applyAsync(ctx, c, "DESCONTO10")
		<-r.started

		_, err = c.ApplyCoupon(ctx, "FRETEGRATIS")
		require.NoError(t, err)

		close(r.gates["DESCONTO10"])
		res := <-stale
		require.ErrorIs(t, res.err, ErrCouponSuperseded)

		require.NotNil(t, c.Coupon())
		assert.Equal(t, "FRETEGRATIS", c.Coupon().Code)
	})

	t.Run("by remove", func(t *testing.T) {
		r := newGatedResolver("DESCONTO10")
		c := New("cart-1", r)
		_, err := c.AddItem(ctx, vestido, "M", "azul", 2)
		require.NoError(t, err)

		stale := applyAsync(ctx, c, "DESCONTO10")
		<-r.started
		c.RemoveCoupon(ctx)
		close(r.gates["DESCONTO10"])

		require.ErrorIs(t, (<-stale).err, ErrCouponSuperseded)
		assert.Nil(t, c.Coupon())
	})

	t.Run("by clear", func(t *testing.T) {
		r := newGatedResolver("DESCONTO10")
		c := New("cart-1", r)
		_, err := c.AddItem(ctx, vestido, "M", "azul", 2)
		require.NoError(t, err)

		stale := applyAsync(ctx, c, "DESCONTO10")
		<-r.started
		c.Clear(ctx)
		close(r.gates["DESCONTO10"])

		require.ErrorIs(t, (<-stale).err, ErrCouponSuperseded)
		assert.Nil(t, c.Coupon())
	})

	t.Run("minimum rechecked after lines change", func(t *testing.T) {
		r := newGatedResolver("MIN200")
		c := New("cart-1", r)
		_, err := c.AddItem(ctx, vestido, "M", "azul", 1)
		require.NoError(t, err)
		_, err = c.AddItem(ctx, camisa, "M", "branca", 2)
		require.NoError(t, err)

		pending := applyAsync(ctx, c, "MIN200")
		<-r.started
		c.UpdateQuantity(ctx, NewLineID(camisa.ID, "M", "branca"), 1)
		close(r.gates["MIN200"])

		res := <-pending
		require.ErrorIs(t, res.err, coupon.ErrCouponMinimumNotMet)
		assert.Nil(t, c.Coupon())
	})
}

func TestCart_ObserverSeesCommittedState(t *testing.T) {
	ctx := context.Background()
	c := newCart(t)

	var seen []Event
	c.Subscribe(ObserverFunc(func(_ context.Context, e Event) {
		// Pricing in the event matches what the cart reports afterwards.
		seen = append(seen, e)
	}))

	_, err := c.AddItem(ctx, vestido, "M", "azul", 2)
	require.NoError(t, err)
	_, err = c.ApplyCoupon(ctx, "DESCONTO10")
	require.NoError(t, err)
	c.SelectShipping(ctx, &pac)
	c.UpdateQuantity(ctx, NewLineID(vestido.ID, "M", "azul"), 3)
	c.RemoveCoupon(ctx)

	require.Len(t, seen, 5)
	assert.Equal(t, []EventKind{
		EventItemAdded, EventCouponApplied, EventShippingSelected, EventQuantityChanged, EventCouponRemoved,
	}, []EventKind{seen[0].Kind, seen[1].Kind, seen[2].Kind, seen[3].Kind, seen[4].Kind})

	assert.Equal(t, "cart-1", seen[1].CartID)
	require.NotNil(t, seen[1].State.Coupon)
	assert.Equal(t, "DESCONTO10", seen[1].State.Coupon.Code)
	assert.True(t, dec("20").Equal(seen[1].Pricing.Discount))

	assert.True(t, dec("300").Equal(seen[3].Pricing.Subtotal))
	assert.True(t, seen[4].Pricing.Equal(c.Pricing()))
}

func TestCart_Restore(t *testing.T) {
	ctx := context.Background()
	src := newCart(t)
	_, err := src.AddItem(ctx, vestido, "M", "azul", 2)
	require.NoError(t, err)
	_, err = src.ApplyCoupon(ctx, "DESCONTO10")
	require.NoError(t, err)

	dst := newCart(t)
	dst.Restore(ctx, src.State())

	assert.Equal(t, src.State(), dst.State())
	assert.True(t, src.Pricing().Equal(dst.Pricing()))

	t.Run("coupon without lines is dropped", func(t *testing.T) {
		c := newCart(t)
		c.Restore(ctx, State{Coupon: &coupon.Coupon{Code: "DESCONTO10", Discount: coupon.Percentage{Rate: dec("10")}}})
		assert.Nil(t, c.Coupon())
	})
}

func TestCart_ConcurrentMutations(t *testing.T) {
	ctx := context.Background()
	c := newCart(t)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.AddItem(ctx, vestido, "M", "azul", 1)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, c.ItemCount())
	assert.True(t, dec("5000").Equal(c.Pricing().Subtotal))
}
