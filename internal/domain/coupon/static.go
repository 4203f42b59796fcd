package coupon

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

// DefaultRules is the storefront's built-in coupon table.
func DefaultRules() []Rule {
	return []Rule{
		{
			Code:        "DESCONTO10",
			Kind:        KindPercentage,
			Value:       decimal.NewFromInt(10),
			Description: "10% de desconto",
		},
		{
			Code:        "PRIMEIRACOMPRA",
			Kind:        KindPercentage,
			Value:       decimal.NewFromInt(15),
			Description: "15% de desconto na primeira compra",
		},
		{
			Code:        "FRETEGRATIS",
			Kind:        KindFreeShipping,
			Description: "Frete grátis",
		},
	}
}

var _ Repository = (*StaticRepository)(nil)

// StaticRepository serves a fixed, in-memory coupon table. Usage counters
// live only as long as the process.
type StaticRepository struct {
	mu    sync.Mutex
	rules map[string]Rule
}

// NewStaticRepository indexes rules by normalized code. Later duplicates win.
func NewStaticRepository(rules []Rule) *StaticRepository {
	m := make(map[string]Rule, len(rules))
	for _, r := range rules {
		m[NormalizeCode(r.Code)] = r
	}
	return &StaticRepository{rules: m}
}

// FindByCode returns a copy of the rule for code.
func (s *StaticRepository) FindByCode(_ context.Context, code string) (*Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rules[NormalizeCode(code)]
	if !ok {
		return nil, ErrCouponNotFound
	}
	return &r, nil
}

// IncrementUses bumps the usage counter of code. Unknown codes are ignored.
func (s *StaticRepository) IncrementUses(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := NormalizeCode(code)
	if r, ok := s.rules[key]; ok {
		r.Uses++
		s.rules[key] = r
	}
	return nil
}
