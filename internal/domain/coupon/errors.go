package coupon

import (
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/sacola/internal/money"
)

var (
	// ErrCouponNotFound is returned when no active coupon matches a code.
	ErrCouponNotFound = errors.New("coupon not found")
	// ErrCouponExpired is returned when a coupon is outside its validity window.
	ErrCouponExpired = errors.New("coupon expired")
	// ErrCouponExhausted is returned when a coupon has used up its allowed uses.
	ErrCouponExhausted = errors.New("coupon usage limit reached")
	// ErrCouponMinimumNotMet is returned when the cart is below a coupon's minimum.
	ErrCouponMinimumNotMet = errors.New("coupon minimum order not met")
)

const dateLayout = "02/01/2006"

// NotFoundError indicates an unknown or inactive coupon code.
type NotFoundError struct {
	Code string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("cupom %s não encontrado", e.Code)
}

func (e *NotFoundError) Unwrap() error { return ErrCouponNotFound }

// ExpiredError indicates the coupon is not valid at time At.
type ExpiredError struct {
	Code       string
	ValidFrom  *time.Time
	ValidUntil *time.Time
	At         time.Time
}

// NotYetValid reports whether the window has not opened yet, as opposed to
// having already closed.
func (e *ExpiredError) NotYetValid() bool {
	return e.ValidFrom != nil && e.At.Before(*e.ValidFrom)
}

func (e *ExpiredError) Error() string {
	if e.NotYetValid() {
		return fmt.Sprintf("cupom %s válido somente a partir de %s", e.Code, e.ValidFrom.Format(dateLayout))
	}
	if e.ValidUntil != nil {
		return fmt.Sprintf("cupom %s expirou em %s", e.Code, e.ValidUntil.Format(dateLayout))
	}
	return fmt.Sprintf("cupom %s expirado", e.Code)
}

func (e *ExpiredError) Unwrap() error { return ErrCouponExpired }

// ExhaustedError indicates the coupon reached its usage limit.
type ExhaustedError struct {
	Code    string
	MaxUses int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("cupom %s esgotado (limite de %d usos)", e.Code, e.MaxUses)
}

func (e *ExhaustedError) Unwrap() error { return ErrCouponExhausted }

// MinimumNotMetError indicates the cart is below the coupon's minimum order
// value or item count.
type MinimumNotMetError struct {
	Code          string
	MinOrderValue decimal.Decimal
	Subtotal      decimal.Decimal
	MinItems      int
	ItemCount     int
}

func (e *MinimumNotMetError) Error() string {
	if e.MinOrderValue.IsPositive() && e.Subtotal.LessThan(e.MinOrderValue) {
		return fmt.Sprintf("cupom %s exige pedido mínimo de %s (subtotal atual %s)",
			e.Code, money.Format(e.MinOrderValue), money.Format(e.Subtotal))
	}
	return fmt.Sprintf("cupom %s exige ao menos %d itens (carrinho tem %d)",
		e.Code, e.MinItems, e.ItemCount)
}

func (e *MinimumNotMetError) Unwrap() error { return ErrCouponMinimumNotMet }

// Reason returns a stable machine-readable code for a coupon failure, or ""
// when err is not one.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrCouponNotFound):
		return "not_found"
	case errors.Is(err, ErrCouponExpired):
		return "expired"
	case errors.Is(err, ErrCouponExhausted):
		return "exhausted"
	case errors.Is(err, ErrCouponMinimumNotMet):
		return "minimum_not_met"
	default:
		return ""
	}
}
