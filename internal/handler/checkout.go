package handler

import (
	"net/http"

	"github.com/go-faster/jx"
)

// Checkout serves POST /api/checkout. The body may name a shipping option;
// otherwise the one selected on the cart is used.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var optionID string
	if err := decodeBody(w, r, func(d *jx.Decoder, key string) (err error) {
		if key == "optionId" && d.Next() == jx.String {
			optionID, err = d.Str()
			return err
		}
		return d.Skip()
	}); err != nil {
		writeError(w, r, err)
		return
	}

	c, ok := h.openCart(w, r)
	if !ok {
		return
	}
	o, err := h.orders.PlaceOrder(r.Context(), c, optionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeOrder(e, o) })
}
