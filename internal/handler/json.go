package handler

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/sacola/internal/domain/cart"
	"github.com/xenking/sacola/internal/domain/coupon"
	"github.com/xenking/sacola/internal/domain/order"
	"github.com/xenking/sacola/internal/domain/product"
	"github.com/xenking/sacola/internal/domain/shipping"
	"github.com/xenking/sacola/internal/money"
	"github.com/xenking/sacola/internal/pricing"
)

const maxBodyBytes = 64 << 10

// errBadRequest marks malformed request bodies.
var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	var e jx.Encoder
	encode(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// decodeBody decodes a JSON object body field by field. Unknown fields must
// be skipped by fn. An empty body decodes as an empty object.
func decodeBody(w http.ResponseWriter, r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return errors.Wrapf(errBadRequest, "read body: %s", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	d := jx.DecodeBytes(data)
	if d.Next() != jx.Object {
		return errors.Wrap(errBadRequest, "body must be a JSON object")
	}
	if err := d.Obj(fn); err != nil {
		return errors.Wrapf(errBadRequest, "%s", err)
	}
	return nil
}

func moneyField(e *jx.Encoder, name string, d decimal.Decimal) {
	e.Field(name, func(e *jx.Encoder) { e.Str(money.Round(d).StringFixed(money.Places)) })
}

func (h *Handler) imageURL(path string) string {
	if h.imageBaseURL == "" || path == "" ||
		strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimRight(h.imageBaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

func (h *Handler) encodeProduct(e *jx.Encoder, p product.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("brand", func(e *jx.Encoder) { e.Str(p.Brand) })
		e.Field("category", func(e *jx.Encoder) { e.Str(p.Category) })
		moneyField(e, "price", p.Price)
		if p.OnSale() {
			moneyField(e, "salePrice", *p.SalePrice)
		}
		e.Field("onSale", func(e *jx.Encoder) { e.Bool(p.OnSale()) })
		e.Field("priceFormatted", func(e *jx.Encoder) { e.Str(money.Format(p.CurrentPrice())) })
		e.Field("imageUrl", func(e *jx.Encoder) { e.Str(h.imageURL(p.ImageURL)) })
		e.Field("variants", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, v := range p.Variants {
					e.Obj(func(e *jx.Encoder) {
						e.Field("size", func(e *jx.Encoder) { e.Str(v.Size) })
						e.Field("color", func(e *jx.Encoder) { e.Str(v.Color) })
						e.Field("stock", func(e *jx.Encoder) { e.Int(v.Stock) })
					})
				}
			})
		})
	})
}

func encodeShippingOption(e *jx.Encoder, o shipping.Option) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(o.Name) })
		moneyField(e, "price", o.Price)
		e.Field("priceFormatted", func(e *jx.Encoder) { e.Str(money.Format(o.Price)) })
		e.Field("estimatedDays", func(e *jx.Encoder) { e.Int(o.EstimatedDays) })
		if o.Description != "" {
			e.Field("description", func(e *jx.Encoder) { e.Str(o.Description) })
		}
	})
}

func encodeCoupon(e *jx.Encoder, c coupon.Coupon) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Str(c.Code) })
		e.Field("type", func(e *jx.Encoder) { e.Str(string(c.Discount.Kind())) })
		e.Field("value", func(e *jx.Encoder) { e.Str(coupon.ValueOf(c.Discount).String()) })
		if c.Description != "" {
			e.Field("description", func(e *jx.Encoder) { e.Str(c.Description) })
		}
	})
}

func encodePricing(e *jx.Encoder, p pricing.Snapshot) {
	p = p.Rounded()
	e.Obj(func(e *jx.Encoder) {
		moneyField(e, "subtotal", p.Subtotal)
		moneyField(e, "discount", p.Discount)
		moneyField(e, "shipping", p.Shipping)
		moneyField(e, "total", p.Total)
		e.Field("freeShipping", func(e *jx.Encoder) { e.Bool(p.FreeShipping) })
		e.Field("formatted", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("subtotal", func(e *jx.Encoder) { e.Str(money.Format(p.Subtotal)) })
				e.Field("discount", func(e *jx.Encoder) { e.Str(money.Format(p.Discount)) })
				e.Field("shipping", func(e *jx.Encoder) { e.Str(money.Format(p.Shipping)) })
				e.Field("total", func(e *jx.Encoder) { e.Str(money.Format(p.Total)) })
			})
		})
	})
}

func (h *Handler) encodeCart(e *jx.Encoder, c *cart.Cart) {
	lines := c.Lines()
	active := c.Coupon()
	selected := c.Shipping()
	snapshot := c.Pricing()

	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(c.ID()) })
		e.Field("lines", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, l := range lines {
					h.encodeLine(e, l)
				}
			})
		})
		e.Field("itemCount", func(e *jx.Encoder) { e.Int(snapshot.ItemCount) })
		e.Field("coupon", func(e *jx.Encoder) {
			if active == nil {
				e.Null()
				return
			}
			encodeCoupon(e, *active)
		})
		e.Field("shipping", func(e *jx.Encoder) {
			if selected == nil {
				e.Null()
				return
			}
			encodeShippingOption(e, *selected)
		})
		e.Field("pricing", func(e *jx.Encoder) { encodePricing(e, snapshot) })
	})
}

func (h *Handler) encodeLine(e *jx.Encoder, l cart.Line) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(string(l.ID)) })
		e.Field("productId", func(e *jx.Encoder) { e.Str(l.ProductID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(l.Name) })
		e.Field("brand", func(e *jx.Encoder) { e.Str(l.Brand) })
		e.Field("size", func(e *jx.Encoder) { e.Str(l.Size) })
		e.Field("color", func(e *jx.Encoder) { e.Str(l.Color) })
		moneyField(e, "unitPrice", l.UnitPrice)
		if l.OriginalPrice != nil {
			moneyField(e, "originalPrice", *l.OriginalPrice)
		}
		e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
		moneyField(e, "lineTotal", l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
		e.Field("imageUrl", func(e *jx.Encoder) { e.Str(h.imageURL(l.ImageURL)) })
	})
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range o.Items {
					e.Obj(func(e *jx.Encoder) {
						e.Field("productId", func(e *jx.Encoder) { e.Str(it.ProductID) })
						e.Field("name", func(e *jx.Encoder) { e.Str(it.Name) })
						e.Field("size", func(e *jx.Encoder) { e.Str(it.Size) })
						e.Field("color", func(e *jx.Encoder) { e.Str(it.Color) })
						moneyField(e, "unitPrice", it.UnitPrice)
						e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
					})
				}
			})
		})
		moneyField(e, "subtotal", o.Subtotal)
		moneyField(e, "discount", o.Discount)
		moneyField(e, "shipping", o.Shipping)
		moneyField(e, "total", o.Total)
		e.Field("totalFormatted", func(e *jx.Encoder) { e.Str(money.Format(o.Total)) })
		if o.CouponCode != "" {
			e.Field("couponCode", func(e *jx.Encoder) { e.Str(o.CouponCode) })
		}
		e.Field("shippingOption", func(e *jx.Encoder) { e.Str(o.ShippingOption) })
		e.Field("createdAt", func(e *jx.Encoder) { e.Str(o.CreatedAt.UTC().Format(time.RFC3339)) })
	})
}
