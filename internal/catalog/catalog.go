package catalog

import (
	"context"

	"github.com/shopspring/decimal"
)

// Product is the slice of catalog data the discount layer needs.
// Price is the live (possibly already discounted) price; RegularPrice
// is the undiscounted base used for all discount math.
type Product struct {
	ID           int64
	Type         string // simple | variable | variation | grouped | ...
	RegularPrice decimal.Decimal
	Price        decimal.Decimal
	SalePrice    decimal.Decimal
	Purchasable  bool
	InStock      bool

	// ExcludeFromDiscounts is the per-product opt-out flag set by the
	// store owner.
	ExcludeFromDiscounts bool

	CategoryIDs []int64
}

// Catalog resolves products and their category memberships.
// Implementations return (nil, nil) for a product that does not exist.
type Catalog interface {
	GetProduct(ctx context.Context, id int64) (*Product, error)
	GetProductCategoryIDs(ctx context.Context, id int64) ([]int64, error)
}
