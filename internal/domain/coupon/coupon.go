package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Kind enumerates the supported coupon discount strategies.
type Kind string

const (
	// KindPercentage takes a percentage off the subtotal.
	KindPercentage Kind = "percentage"
	// KindFixedAmount takes a fixed amount off the subtotal, capped at the subtotal.
	KindFixedAmount Kind = "fixed_amount"
	// KindFreeShipping zeroes the shipping cost and leaves the subtotal alone.
	KindFreeShipping Kind = "free_shipping"
)

var hundred = decimal.NewFromInt(100)

// ParseKind maps a stored or imported discount type name onto a Kind.
// The short aliases used by the admin promotion export are accepted.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "percentage", "percent":
		return KindPercentage, nil
	case "fixed_amount", "fixed", "flat":
		return KindFixedAmount, nil
	case "free_shipping", "freeshipping":
		return KindFreeShipping, nil
	default:
		return "", errors.Errorf("unsupported discount type: %q", s)
	}
}

// Discount is the effect of an active coupon: exactly one of Percentage,
// FixedAmount or FreeShipping.
type Discount interface {
	Kind() Kind
	sealed()
}

// Percentage takes Rate percent (0..100) off the subtotal.
type Percentage struct {
	Rate decimal.Decimal
}

// FixedAmount takes Amount off the subtotal.
type FixedAmount struct {
	Amount decimal.Decimal
}

// FreeShipping waives the selected shipping option's price.
type FreeShipping struct{}

func (Percentage) Kind() Kind   { return KindPercentage }
func (FixedAmount) Kind() Kind  { return KindFixedAmount }
func (FreeShipping) Kind() Kind { return KindFreeShipping }

func (Percentage) sealed()   {}
func (FixedAmount) sealed()  {}
func (FreeShipping) sealed() {}

// NewDiscount builds the Discount for kind with the given parameter.
// value is ignored for KindFreeShipping.
func NewDiscount(kind Kind, value decimal.Decimal) (Discount, error) {
	switch kind {
	case KindPercentage:
		if value.IsNegative() || value.GreaterThan(hundred) {
			return nil, errors.Errorf("percentage %s out of range [0, 100]", value)
		}
		return Percentage{Rate: value}, nil
	case KindFixedAmount:
		if value.IsNegative() {
			return nil, errors.Errorf("fixed amount %s is negative", value)
		}
		return FixedAmount{Amount: value}, nil
	case KindFreeShipping:
		return FreeShipping{}, nil
	default:
		return nil, errors.Errorf("unsupported discount type: %q", kind)
	}
}

// Deref returns the value form of d. Pointers to the discount types satisfy
// Discount too; a nil pointer yields nil.
func Deref(d Discount) Discount {
	switch p := d.(type) {
	case *Percentage:
		if p == nil {
			return nil
		}
		return *p
	case *FixedAmount:
		if p == nil {
			return nil
		}
		return *p
	case *FreeShipping:
		if p == nil {
			return nil
		}
		return *p
	default:
		return d
	}
}

// ValueOf returns the numeric parameter of d; zero for FreeShipping.
func ValueOf(d Discount) decimal.Decimal {
	switch d := Deref(d).(type) {
	case Percentage:
		return d.Rate
	case FixedAmount:
		return d.Amount
	default:
		return decimal.Zero
	}
}

// Coupon is a coupon that passed validation and is active on a cart.
type Coupon struct {
	Code        string
	Discount    Discount
	Description string
}

// Rule defines a coupon's discount behaviour and eligibility constraints.
// Zero values disable the corresponding constraint.
type Rule struct {
	Code          string
	Kind          Kind
	Value         decimal.Decimal
	Description   string
	MinOrderValue decimal.Decimal
	MinItems      int
	ValidFrom     *time.Time
	ValidUntil    *time.Time
	MaxUses       int
	Uses          int
}

// Order summarizes the cart contents a rule is checked against.
type Order struct {
	Subtotal  decimal.Decimal
	ItemCount int
}

// Coupon converts the rule into an activatable Coupon.
func (r *Rule) Coupon() (Coupon, error) {
	d, err := NewDiscount(r.Kind, r.Value)
	if err != nil {
		return Coupon{}, errors.Wrapf(err, "coupon %s", r.Code)
	}
	return Coupon{
		Code:        NormalizeCode(r.Code),
		Discount:    d,
		Description: r.Description,
	}, nil
}

// CheckWindow reports an *ExpiredError when now falls outside the rule's
// validity window.
func (r *Rule) CheckWindow(now time.Time) error {
	if (r.ValidFrom != nil && now.Before(*r.ValidFrom)) ||
		(r.ValidUntil != nil && now.After(*r.ValidUntil)) {
		return &ExpiredError{
			Code:       r.Code,
			ValidFrom:  r.ValidFrom,
			ValidUntil: r.ValidUntil,
			At:         now,
		}
	}
	return nil
}

// CheckUsage reports an *ExhaustedError when the rule has no uses left.
func (r *Rule) CheckUsage() error {
	if r.MaxUses > 0 && r.Uses >= r.MaxUses {
		return &ExhaustedError{Code: r.Code, MaxUses: r.MaxUses}
	}
	return nil
}

// CheckMinimum reports a *MinimumNotMetError when the order is below the
// rule's minimum value or item count.
func (r *Rule) CheckMinimum(o Order) error {
	belowValue := r.MinOrderValue.IsPositive() && o.Subtotal.LessThan(r.MinOrderValue)
	belowItems := r.MinItems > 0 && o.ItemCount < r.MinItems
	if belowValue || belowItems {
		return &MinimumNotMetError{
			Code:          r.Code,
			MinOrderValue: r.MinOrderValue,
			Subtotal:      o.Subtotal,
			MinItems:      r.MinItems,
			ItemCount:     o.ItemCount,
		}
	}
	return nil
}

// NormalizeCode trims surrounding whitespace and upper-cases a user-entered code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Repository provides lookup and mutation of coupon rules.
// FindByCode returns ErrCouponNotFound when no active rule matches.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Rule, error)
	IncrementUses(ctx context.Context, code string) error
}
