package cart

import (
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/xenking/sacola/internal/domain/product"
	"github.com/xenking/sacola/internal/pricing"
)

const lineIDSep = "|"

// LineID identifies a cart line by product, size and color.
type LineID string

// NewLineID builds the identity of a product variant in the cart. Each part
// is path-escaped, so a separator inside a product id or variant name cannot
// make two variants share a line.
func NewLineID(productID, size, color string) LineID {
	return LineID(strings.Join([]string{
		url.PathEscape(productID),
		url.PathEscape(size),
		url.PathEscape(color),
	}, lineIDSep))
}

// Line is one product variant in the cart. Prices are captured when the line
// is first added and do not follow later catalog changes.
type Line struct {
	ID            LineID
	ProductID     string
	Size          string
	Color         string
	Name          string
	Brand         string
	UnitPrice     decimal.Decimal
	OriginalPrice *decimal.Decimal
	Quantity      int
	ImageURL      string
}

func (l Line) clone() Line {
	if l.OriginalPrice != nil {
		op := *l.OriginalPrice
		l.OriginalPrice = &op
	}
	return l
}

// Store is the ordered collection of cart lines. It is not safe for
// concurrent use; Cart serializes access to it.
type Store struct {
	lines []Line
}

// Add appends a new line for the variant or increments the quantity of the
// existing one.
func (s *Store) Add(p product.Product, size, color string, quantity int) (Line, error) {
	if quantity < 1 {
		return Line{}, ErrInvalidQuantity
	}

	id := NewLineID(p.ID, size, color)
	if i := s.index(id); i >= 0 {
		s.lines[i].Quantity += quantity
		return s.lines[i].clone(), nil
	}

	line := Line{
		ID:        id,
		ProductID: p.ID,
		Size:      size,
		Color:     color,
		Name:      p.Name,
		Brand:     p.Brand,
		UnitPrice: p.CurrentPrice(),
		Quantity:  quantity,
		ImageURL:  p.ImageURL,
	}
	if p.OnSale() {
		list := p.Price
		line.OriginalPrice = &list
	}
	s.lines = append(s.lines, line)
	return line.clone(), nil
}

// UpdateQuantity sets the quantity of a line, removing it when quantity < 1.
// It reports whether anything changed.
func (s *Store) UpdateQuantity(id LineID, quantity int) bool {
	i := s.index(id)
	if i < 0 {
		return false
	}
	if quantity < 1 {
		s.removeAt(i)
		return true
	}
	if s.lines[i].Quantity == quantity {
		return false
	}
	s.lines[i].Quantity = quantity
	return true
}

// Remove deletes a line and reports whether it was present.
func (s *Store) Remove(id LineID) bool {
	i := s.index(id)
	if i < 0 {
		return false
	}
	s.removeAt(i)
	return true
}

// Clear drops every line.
func (s *Store) Clear() {
	s.lines = nil
}

// Len returns the number of distinct lines.
func (s *Store) Len() int { return len(s.lines) }

// ItemCount returns the sum of quantities across lines.
func (s *Store) ItemCount() int {
	n := 0
	for _, l := range s.lines {
		n += l.Quantity
	}
	return n
}

// Quantity returns the quantity held for id, zero when absent.
func (s *Store) Quantity(id LineID) int {
	if i := s.index(id); i >= 0 {
		return s.lines[i].Quantity
	}
	return 0
}

// Lines returns a copy of the lines in insertion order.
func (s *Store) Lines() []Line {
	out := make([]Line, len(s.lines))
	for i, l := range s.lines {
		out[i] = l.clone()
	}
	return out
}

// Items projects the lines for the pricing calculator.
func (s *Store) Items() []pricing.Item {
	items := make([]pricing.Item, len(s.lines))
	for i, l := range s.lines {
		items[i] = pricing.Item{UnitPrice: l.UnitPrice, Quantity: l.Quantity}
	}
	return items
}

func (s *Store) index(id LineID) int {
	for i := range s.lines {
		if s.lines[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) removeAt(i int) {
	s.lines = append(s.lines[:i], s.lines[i+1:]...)
	if len(s.lines) == 0 {
		s.lines = nil
	}
}
