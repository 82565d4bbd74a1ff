package cart

import (
	"github.com/shopspring/decimal"

	"cycle-discounts/internal/catalog"
)

// Item is one cart line. Product is the live object whose Price the
// applicator mutates in place; the marker fields below it are filled
// on a successful application for downstream consumers (order line
// display and friends).
type Item struct {
	Key      string
	Product  *catalog.Product
	Quantity int

	DiscountApplied bool
	DiscountAmount  decimal.Decimal
	OriginalPrice   decimal.Decimal
}

// Cart is a plain ordered collection of lines. No persistence; it
// lives only as long as the request that built it.
type Cart struct {
	Items []*Item
}
