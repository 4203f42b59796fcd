package handler

import (
	"fmt"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/sacola/internal/domain/cart"
	"github.com/xenking/sacola/internal/domain/coupon"
	"github.com/xenking/sacola/internal/domain/order"
	"github.com/xenking/sacola/internal/domain/product"
	"github.com/xenking/sacola/internal/domain/shipping"
	"github.com/xenking/sacola/internal/session"
	"github.com/xenking/sacola/pkg/httpmiddleware"
)

// writeError maps domain errors onto HTTP responses. Anything unrecognized is
// logged and reported as 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if reason := coupon.Reason(err); reason != "" {
		writeCouponError(w, reason, couponMessage(err))
		return
	}

	var (
		variantErr *product.VariantNotFoundError
		stockErr   *product.OutOfStockError
		goneErr    *order.ProductNotFoundError
	)
	switch {
	case errors.Is(err, errBadRequest):
		httpmiddleware.WriteError(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, session.ErrInvalidCartID):
		httpmiddleware.WriteError(w, http.StatusBadRequest, "invalid_cart_id", "identificador de carrinho inválido")
	case errors.Is(err, cart.ErrInvalidQuantity):
		httpmiddleware.WriteError(w, http.StatusBadRequest, "invalid_quantity", "a quantidade deve ser maior que zero")
	case errors.As(err, &stockErr):
		writeStockError(w, stockErr)
	case errors.As(err, &variantErr):
		httpmiddleware.WriteError(w, http.StatusUnprocessableEntity, "variant_not_found",
			fmt.Sprintf("produto indisponível no tamanho %s e cor %s", variantErr.Size, variantErr.Color))
	case errors.As(err, &goneErr):
		httpmiddleware.WriteError(w, http.StatusUnprocessableEntity, "product_unavailable",
			fmt.Sprintf("o produto %s não está mais disponível", goneErr.ProductID))
	case errors.Is(err, product.ErrNotFound):
		httpmiddleware.WriteError(w, http.StatusNotFound, "product_not_found", "produto não encontrado")
	case errors.Is(err, cart.ErrEmptyCart):
		httpmiddleware.WriteError(w, http.StatusUnprocessableEntity, "empty_cart", "o carrinho está vazio")
	case errors.Is(err, cart.ErrCouponSuperseded):
		httpmiddleware.WriteError(w, http.StatusConflict, "coupon_superseded", "o carrinho mudou enquanto o cupom era validado")
	case errors.Is(err, shipping.ErrOptionNotFound):
		httpmiddleware.WriteError(w, http.StatusUnprocessableEntity, "shipping_option_not_found", "opção de frete inválida")
	case errors.Is(err, order.ErrNoShipping):
		httpmiddleware.WriteError(w, http.StatusUnprocessableEntity, "shipping_required", "selecione uma opção de frete")
	default:
		zctx.From(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		httpmiddleware.WriteError(w, http.StatusInternalServerError, "internal", "erro interno do servidor")
	}
}

func writeCouponError(w http.ResponseWriter, reason, message string) {
	writeJSON(w, http.StatusUnprocessableEntity, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Str("invalid_coupon") })
			e.Field("reason", func(e *jx.Encoder) { e.Str(reason) })
			e.Field("message", func(e *jx.Encoder) { e.Str(message) })
		})
	})
}

func writeStockError(w http.ResponseWriter, err *product.OutOfStockError) {
	writeJSON(w, http.StatusUnprocessableEntity, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Str("out_of_stock") })
			e.Field("message", func(e *jx.Encoder) {
				e.Str(fmt.Sprintf("estoque insuficiente: apenas %d disponível", err.Available))
			})
			e.Field("available", func(e *jx.Encoder) { e.Int(err.Available) })
		})
	})
}

// couponMessage returns the customer-facing text of a coupon failure without
// the wrapping added on the way up.
func couponMessage(err error) string {
	var (
		notFound  *coupon.NotFoundError
		expired   *coupon.ExpiredError
		exhausted *coupon.ExhaustedError
		minimum   *coupon.MinimumNotMetError
	)
	switch {
	case errors.As(err, &notFound):
		return notFound.Error()
	case errors.As(err, &expired):
		return expired.Error()
	case errors.As(err, &exhausted):
		return exhausted.Error()
	case errors.As(err, &minimum):
		return minimum.Error()
	default:
		return "cupom inválido"
	}
}
