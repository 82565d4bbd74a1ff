package matcher

import (
	"context"
	"fmt"

	"cycle-discounts/internal/catalog"
)

// EligibilityOverride lets a caller veto or force the product-level
// eligibility decision. It receives the decision the stock checks
// produced and returns the final one.
type EligibilityOverride func(eligible bool, p *catalog.Product, mctx Context) bool

// ApplicabilityOverride does the same for a single rule decision.
type ApplicabilityOverride func(applicable bool, productID int64, r *Rule, mctx Context) bool

// Matcher decides whether a product may be discounted at all and which
// rule out of an ordered candidate list hits it. Pure decision logic;
// the only side effects are catalog lookups.
type Matcher struct {
	catalog      catalog.Catalog
	allowedTypes map[string]struct{}

	eligibilityOverride   EligibilityOverride
	applicabilityOverride ApplicabilityOverride
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithAllowedProductTypes replaces the default allow-list
// (simple, variable, variation, grouped).
func WithAllowedProductTypes(types []string) Option {
	return func(m *Matcher) {
		m.allowedTypes = make(map[string]struct{}, len(types))
		for _, t := range types {
			m.allowedTypes[t] = struct{}{}
		}
	}
}

// WithEligibilityOverride installs an eligibility override hook.
func WithEligibilityOverride(fn EligibilityOverride) Option {
	return func(m *Matcher) { m.eligibilityOverride = fn }
}

// WithApplicabilityOverride installs a rule-applicability override hook.
func WithApplicabilityOverride(fn ApplicabilityOverride) Option {
	return func(m *Matcher) { m.applicabilityOverride = fn }
}

func New(cat catalog.Catalog, opts ...Option) *Matcher {
	m := &Matcher{catalog: cat}
	WithAllowedProductTypes([]string{"simple", "variable", "variation", "grouped"})(m)
	for _, o := range opts {
		o(m)
	}
	return m
}

// IsProductEligible decides whether the product may be discounted at
// all: not opted out, allowed type, purchasable and in stock. The
// override hook, when installed, gets the last word.
func (m *Matcher) IsProductEligible(p *catalog.Product, mctx Context) bool {
	eligible := true
	switch {
	case p == nil:
		eligible = false
	case p.ExcludeFromDiscounts:
		eligible = false
	default:
		if _, ok := m.allowedTypes[p.Type]; !ok {
			eligible = false
		} else if !p.Purchasable || !p.InStock {
			eligible = false
		}
	}
	if m.eligibilityOverride != nil {
		eligible = m.eligibilityOverride(eligible, p, mctx)
	}
	return eligible
}

// FindApplicableRule returns the first rule in the given order that
// applies to the product, or nil when none does. Ordering is the
// caller's job; the matcher never re-sorts.
func (m *Matcher) FindApplicableRule(ctx context.Context, productID int64, rules []Rule, mctx Context) (*Rule, error) {
	for i := range rules {
		ok, err := m.IsRuleApplicable(ctx, productID, &rules[i], mctx)
		if err != nil {
			return nil, err
		}
		if ok {
			return &rules[i], nil
		}
	}
	return nil, nil
}

// IsRuleApplicable evaluates one rule's filters as a short-circuiting
// conjunction: product include, product exclude, categories, price
// window, quantity floor, then the override hook. Category and price
// lookups only happen when a filter actually needs them.
func (m *Matcher) IsRuleApplicable(ctx context.Context, productID int64, r *Rule, mctx Context) (bool, error) {
	applicable, err := m.ruleFilters(ctx, productID, r, mctx)
	if err != nil {
		return false, err
	}
	if m.applicabilityOverride != nil {
		applicable = m.applicabilityOverride(applicable, productID, r, mctx)
	}
	return applicable, nil
}

func (m *Matcher) ruleFilters(ctx context.Context, productID int64, r *Rule, mctx Context) (bool, error) {
	if len(r.IncludeProducts) > 0 && !contains(r.IncludeProducts, productID) {
		return false, nil
	}
	if len(r.ExcludeProducts) > 0 && contains(r.ExcludeProducts, productID) {
		return false, nil
	}

	if len(r.IncludeCategories) > 0 || len(r.ExcludeCategories) > 0 {
		cats, err := m.catalog.GetProductCategoryIDs(ctx, productID)
		if err != nil {
			return false, fmt.Errorf("category lookup for product %d: %w", productID, err)
		}
		if len(r.IncludeCategories) > 0 && !intersects(r.IncludeCategories, cats) {
			return false, nil
		}
		if len(r.ExcludeCategories) > 0 && intersects(r.ExcludeCategories, cats) {
			return false, nil
		}
	}

	if r.MinPrice != nil || r.MaxPrice != nil {
		p, err := m.catalog.GetProduct(ctx, productID)
		if err != nil {
			return false, fmt.Errorf("product lookup for %d: %w", productID, err)
		}
		if p == nil {
			return false, nil
		}
		if r.MinPrice != nil && p.Price.LessThan(*r.MinPrice) {
			return false, nil
		}
		if r.MaxPrice != nil && p.Price.GreaterThan(*r.MaxPrice) {
			return false, nil
		}
	}

	// Quantity floor only applies inside a cart context.
	if r.MinQuantity > 0 && mctx.Quantity > 0 && mctx.Quantity < r.MinQuantity {
		return false, nil
	}

	return true, nil
}
