package matcher

import (
	"github.com/shopspring/decimal"

	"cycle-discounts/internal/pricing"
)

// Rule is a targeting definition for one discount campaign. It says
// which products a discount may hit; the numbers behind the discount
// live in the embedded pricing config and are opaque to the matcher.
//
// Empty include/exclude sets mean "no restriction" for that filter.
// When a product shows up in both its include and exclude set the
// exclude check runs second and wins.
type Rule struct {
	ID         int64
	CampaignID int64
	Name       string

	IncludeProducts   []int64
	ExcludeProducts   []int64
	IncludeCategories []int64
	ExcludeCategories []int64

	MinPrice    *decimal.Decimal
	MaxPrice    *decimal.Decimal
	MinQuantity int // 0 = no quantity floor

	// Priority orders rules within a campaign; lower runs first.
	// Callers sort by it before handing rules to the matcher.
	Priority int

	Pricing pricing.Config
}

// Context carries the per-call situation a rule is evaluated in.
// Quantity 0 means the check runs outside a cart (catalog-level), so
// quantity filters are skipped rather than failed.
type Context struct {
	Quantity    int
	CartItemKey string
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func intersects(a, b []int64) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[int64]struct{}, len(a))
	for _, v := range a {
		set[v] = struct{}{}
	}
	for _, v := range b {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}
