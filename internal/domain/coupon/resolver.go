package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Resolver validates a user-entered code against the rule set for the given
// order and returns the matching rule.
type Resolver interface {
	Resolve(ctx context.Context, code string, order Order) (*Rule, error)
}

// RepoResolver implements Resolver by looking up coupon rules from a
// Repository and checking validity window, usage limit and minimum order.
type RepoResolver struct {
	repo Repository
	now  func() time.Time
}

// NewRepoResolver creates a RepoResolver backed by the given Repository.
func NewRepoResolver(repo Repository) *RepoResolver {
	return &RepoResolver{repo: repo, now: time.Now}
}

// Resolve normalizes code, looks it up and validates it. Failures are one of
// *NotFoundError, *ExpiredError, *ExhaustedError or *MinimumNotMetError;
// anything else is an infrastructure error.
func (v *RepoResolver) Resolve(ctx context.Context, code string, order Order) (*Rule, error) {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return nil, &NotFoundError{Code: normalized}
	}

	rule, err := v.repo.FindByCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, ErrCouponNotFound) {
			return nil, &NotFoundError{Code: normalized}
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	if err := rule.CheckWindow(v.now()); err != nil {
		return nil, err
	}
	if err := rule.CheckUsage(); err != nil {
		return nil, err
	}
	if err := rule.CheckMinimum(order); err != nil {
		return nil, err
	}
	if _, err := rule.Coupon(); err != nil {
		return nil, errors.Wrap(err, "invalid coupon rule")
	}

	return rule, nil
}
