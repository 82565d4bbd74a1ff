package applicator

import (
	"time"

	"github.com/shopspring/decimal"

	"cycle-discounts/internal/pricing"
)

// Result is the outcome of one application attempt. Constructed fresh
// per call and never persisted; all failure paths land in Errors, the
// apply methods themselves do not return errors.
type Result struct {
	Success     bool   `json:"success"`
	ProductID   int64  `json:"product_id"`
	CartItemKey string `json:"cart_item_key,omitempty"`

	OriginalPrice   decimal.Decimal `json:"original_price"`
	DiscountedPrice decimal.Decimal `json:"discounted_price"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`

	Errors []string `json:"errors,omitempty"`
}

func (r *Result) fail(msg string) *Result {
	r.Errors = append(r.Errors, msg)
	return r
}

// AppliedDiscount is the cache record for the last successful
// application to a product. Last write wins, no history.
type AppliedDiscount struct {
	ProductID       int64
	RuleID          int64
	Config          pricing.Config
	OriginalPrice   decimal.Decimal
	DiscountedPrice decimal.Decimal
	DiscountAmount  decimal.Decimal
	AppliedAt       time.Time
}

// BulkResult aggregates a bulk_apply run. Built once per call, not
// retained.
type BulkResult struct {
	Successful          int               `json:"successful_applications"`
	Failed              int               `json:"failed_applications"`
	TotalDiscountAmount decimal.Decimal   `json:"total_discount_amount"`
	Results             map[int64]*Result `json:"results"`
	Errors              []string          `json:"errors,omitempty"`
}

// CartSummary aggregates one modify-cart-prices pass.
type CartSummary struct {
	ItemsProcessed   int             `json:"items_processed"`
	DiscountsApplied int             `json:"discounts_applied"`
	TotalDiscount    decimal.Decimal `json:"total_discount"`
	Errors           []string        `json:"errors,omitempty"`
}

// Statistics is recomputed from the live applied-discount cache on
// every call.
type Statistics struct {
	AppliedCount   int             `json:"applied_count"`
	TotalSavings   decimal.Decimal `json:"total_savings"`
	AverageSavings decimal.Decimal `json:"average_savings"`
}
