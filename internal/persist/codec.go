package persist

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/sacola/internal/domain/cart"
	"github.com/xenking/sacola/internal/domain/coupon"
)

// SchemaVersion is the version tag written into every saved cart.
const SchemaVersion = 1

// Encode serializes the durable cart state.
func Encode(s cart.State) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("version", func(e *jx.Encoder) { e.Int(SchemaVersion) })
		e.Field("lines", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, l := range s.Lines {
					encodeLine(e, l)
				}
			})
		})
		if s.Coupon != nil {
			e.Field("coupon", func(e *jx.Encoder) { encodeCoupon(e, *s.Coupon) })
		}
	})
	return e.Bytes()
}

func encodeLine(e *jx.Encoder, l cart.Line) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("productId", func(e *jx.Encoder) { e.Str(l.ProductID) })
		e.Field("size", func(e *jx.Encoder) { e.Str(l.Size) })
		e.Field("color", func(e *jx.Encoder) { e.Str(l.Color) })
		e.Field("name", func(e *jx.Encoder) { e.Str(l.Name) })
		e.Field("brand", func(e *jx.Encoder) { e.Str(l.Brand) })
		e.Field("unitPrice", func(e *jx.Encoder) { e.Str(l.UnitPrice.String()) })
		if l.OriginalPrice != nil {
			e.Field("originalPrice", func(e *jx.Encoder) { e.Str(l.OriginalPrice.String()) })
		}
		e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
		e.Field("imageUrl", func(e *jx.Encoder) { e.Str(l.ImageURL) })
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

// Decode parses a saved cart. Any malformed input, unknown schema version or
// state that breaks cart invariants yields an error wrapping ErrReadCorrupt.
func Decode(data []byte) (cart.State, error) {
	var (
		s       cart.State
		version int
		seen    bool
	)
	d := jx.DecodeBytes(data)
	if d.Next() != jx.Object {
		return cart.State{}, errors.Wrap(ErrReadCorrupt, "not an object")
	}
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "version":
			v, err := d.Int()
			if err != nil {
				return errors.Wrap(err, "version")
			}
			version, seen = v, true
		case "lines":
			return d.Arr(func(d *jx.Decoder) error {
				l, err := decodeLine(d)
				if err != nil {
					return errors.Wrapf(err, "line %d", len(s.Lines))
				}
				s.Lines = append(s.Lines, l)
				return nil
			})
		case "coupon":
			if d.Next() == jx.Null {
				return d.Null()
			}
			c, err := decodeCoupon(d)
			if err != nil {
				return errors.Wrap(err, "coupon")
			}
			s.Coupon = &c
		default:
			return d.Skip()
		}
		return nil
	}); err != nil {
		return cart.State{}, errors.Wrapf(ErrReadCorrupt, "decode: %v", err)
	}

	if !seen || version != SchemaVersion {
		return cart.State{}, errors.Wrapf(ErrReadCorrupt, "schema version %d", version)
	}
	if err := validate(s); err != nil {
		return cart.State{}, errors.Wrapf(ErrReadCorrupt, "invalid state: %v", err)
	}
	if len(s.Lines) == 0 {
		s.Coupon = nil
	}
	return s, nil
}

func decodeLine(d *jx.Decoder) (cart.Line, error) {
	var l cart.Line
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "productId":
			l.ProductID, err = d.Str()
		case "size":
			l.Size, err = d.Str()
		case "color":
			l.Color, err = d.Str()
		case "name":
			l.Name, err = d.Str()
		case "brand":
			l.Brand, err = d.Str()
		case "imageUrl":
			l.ImageURL, err = d.Str()
		case "quantity":
			l.Quantity, err = d.Int()
		case "unitPrice":
			l.UnitPrice, err = decodeDecimal(d)
		case "originalPrice":
			if d.Next() == jx.Null {
				return d.Null()
			}
			var op decimal.Decimal
			if op, err = decodeDecimal(d); err == nil {
				l.OriginalPrice = &op
			}
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	if err != nil {
		return cart.Line{}, err
	}
	l.ID = cart.NewLineID(l.ProductID, l.Size, l.Color)
	return l, nil
}

func decodeCoupon(d *jx.Decoder) (coupon.Coupon, error) {
	var (
		c     coupon.Coupon
		kind  string
		value = decimal.Zero
	)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			c.Code, err = d.Str()
		case "type":
			kind, err = d.Str()
		case "value":
			value, err = decodeDecimal(d)
		case "description":
			c.Description, err = d.Str()
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	if err != nil {
		return coupon.Coupon{}, err
	}
	if c.Code == "" {
		return coupon.Coupon{}, errors.New("empty code")
	}
	c.Code = coupon.NormalizeCode(c.Code)
	if c.Discount, err = coupon.NewDiscount(coupon.Kind(kind), value); err != nil {
		return coupon.Coupon{}, err
	}
	return c, nil
}

// decodeDecimal accepts a decimal string or a JSON number.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(s)
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(n.String())
	default:
		return decimal.Decimal{}, errors.Errorf("expected decimal, got %s", d.Next())
	}
}

func validate(s cart.State) error {
	ids := make(map[cart.LineID]struct{}, len(s.Lines))
	for i, l := range s.Lines {
		switch {
		case l.ProductID == "":
			return errors.Errorf("line %d: empty product id", i)
		case l.Quantity < 1:
			return errors.Errorf("line %d: quantity %d", i, l.Quantity)
		case l.UnitPrice.IsNegative():
			return errors.Errorf("line %d: negative price", i)
		}
		if _, dup := ids[l.ID]; dup {
			return errors.Errorf("line %d: duplicate %s", i, l.ID)
		}
		ids[l.ID] = struct{}{}
	}
	return nil
}
