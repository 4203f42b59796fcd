package handler

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/sacola/internal/domain/cart"
	"github.com/xenking/sacola/internal/session"
)

const (
	// CartIDHeader identifies the client's cart. A request without it starts
	// a new cart; every cart response echoes the id back.
	CartIDHeader = "X-Cart-ID"
	// CartNoticeHeader is set to "restore_failed" when the saved cart could
	// not be read and an empty cart was started instead.
	CartNoticeHeader = "X-Cart-Notice"
)

// openCart resolves the request's cart. On false the response is written.
func (h *Handler) openCart(w http.ResponseWriter, r *http.Request) (*cart.Cart, bool) {
	id := r.Header.Get(CartIDHeader)
	if id == "" {
		id = session.NewID()
	}

	c, notice := h.carts.Get(r.Context(), id)
	if c == nil {
		writeError(w, r, notice)
		return nil, false
	}

	w.Header().Set(CartIDHeader, id)
	if notice != nil {
		zctx.From(r.Context()).Warn("Saved cart not restored", zap.String("cart_id", id), zap.Error(notice))
		w.Header().Set(CartNoticeHeader, "restore_failed")
	}
	return c, true
}

func (h *Handler) writeCart(w http.ResponseWriter, c *cart.Cart) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeCart(e, c) })
}

// lineIDParam returns the decoded line id. chi matches on the raw path when
// the request carries one, and on the decoded path otherwise.
func lineIDParam(r *http.Request) cart.LineID {
	raw := chi.URLParam(r, "lineID")
	if r.URL.RawPath == "" {
		return cart.LineID(raw)
	}
	if s, err := url.PathUnescape(raw); err == nil {
		raw = s
	}
	return cart.LineID(raw)
}

// GetCart serves GET /api/cart.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	c, ok := h.openCart(w, r)
	if !ok {
		return
	}
	h.writeCart(w, c)
}

// ClearCart serves DELETE /api/cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	c, ok := h.openCart(w, r)
	if !ok {
		return
	}
	c.Clear(r.Context())
	h.writeCart(w, c)
}

// AddItem serves POST /api/cart/items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var (
		productID, size, color string
		quantity               = 1
	)
	if err := decodeBody(w, r, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "productId":
			productID, err = d.Str()
		case "size":
			size, err = d.Str()
		case "color":
			color, err = d.Str()
		case "quantity":
			quantity, err = d.Int()
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		writeError(w, r, err)
		return
	}
	if productID == "" {
		writeError(w, r, errors.Wrap(errBadRequest, "productId is required"))
		return
	}

	c, ok := h.openCart(w, r)
	if !ok {
		return
	}
	if _, err := h.carts.AddItem(r.Context(), c, productID, size, color, quantity); err != nil {
		writeError(w, r, err)
		return
	}
	h.writeCart(w, c)
}

// UpdateItem serves PATCH /api/cart/items/{lineID}. Quantity 0 removes the
// line.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	quantity := -1
	if err := decodeBody(w, r, func(d *jx.Decoder, key string) (err error) {
		if key == "quantity" {
			quantity, err = d.Int()
			return err
		}
		return d.Skip()
	}); err != nil {
		writeError(w, r, err)
		return
	}
	if quantity < 0 {
		writeError(w, r, errors.Wrap(errBadRequest, "quantity must be zero or positive"))
		return
	}

	c, ok := h.openCart(w, r)
	if !ok {
		return
	}
	if err := h.carts.UpdateQuantity(r.Context(), c, lineIDParam(r), quantity); err != nil {
		writeError(w, r, err)
		return
	}
	h.writeCart(w, c)
}

// RemoveItem serves DELETE /api/cart/items/{lineID}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	c, ok := h.openCart(w, r)
	if !ok {
		return
	}
	c.RemoveItem(r.Context(), lineIDParam(r))
	h.writeCart(w, c)
}

// ApplyCoupon serves POST /api/cart/coupon.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	var code string
	if err := decodeBody(w, r, func(d *jx.Decoder, key string) (err error) {
		if key == "code" {
			code, err = d.Str()
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
	if _, err := h.carts.ApplyCoupon(r.Context(), c, code); err != nil {
		writeError(w, r, err)
		return
	}
	h.writeCart(w, c)
}

// RemoveCoupon serves DELETE /api/cart/coupon.
func (h *Handler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	c, ok := h.openCart(w, r)
	if !ok {
		return
	}
	c.RemoveCoupon(r.Context())
	h.writeCart(w, c)
}

// SelectShipping serves PUT /api/cart/shipping. A missing or null optionId
// clears the selection.
func (h *Handler) SelectShipping(w http.ResponseWriter, r *http.Request) {
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
	if optionID == "" {
		c.SelectShipping(r.Context(), nil)
		h.writeCart(w, c)
		return
	}
	opt, err := h.shipping.Option(r.Context(), optionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	c.SelectShipping(r.Context(), &opt)
	h.writeCart(w, c)
}
