package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	TypePercentage = "percentage"
	TypeFixed      = "fixed"
)

// Config is the pricing side of a discount rule. The matcher never
// looks inside it; only an Engine does.
type Config struct {
	Type  string          `json:"type"`
	Value decimal.Decimal `json:"value"`

	// MaxDiscount caps the computed amount when positive.
	MaxDiscount decimal.Decimal `json:"max_discount"`
}

// Context is the merged call context handed to an engine alongside the
// config. Engines may ignore any of it.
type Context struct {
	ProductID   int64
	ProductType string
	Quantity    int
	CartItemKey string
}

// Result is what an engine reports back. Recoverable input problems
// surface as Valid=false plus Errors, never as a panic or an error
// return.
type Result struct {
	Valid           bool
	DiscountAmount  decimal.Decimal
	DiscountedPrice decimal.Decimal
	Errors          []string
}

// Engine computes the discount for one price. Implementations must be
// side-effect-free.
type Engine interface {
	Calculate(original decimal.Decimal, cfg Config, pctx Context) Result
}

// Calculator is the stock engine: flat percentage or fixed amount off
// the original price, optionally capped.
type Calculator struct{}

func NewCalculator() *Calculator { return &Calculator{} }

func (c *Calculator) Calculate(original decimal.Decimal, cfg Config, _ Context) Result {
	if original.LessThanOrEqual(decimal.Zero) {
		return invalid("original price must be positive")
	}
	if cfg.Value.LessThanOrEqual(decimal.Zero) {
		return invalid("discount value must be positive")
	}

	var amount decimal.Decimal
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case TypePercentage:
		if cfg.Value.GreaterThan(decimal.NewFromInt(100)) {
			return invalid("percentage discount cannot exceed 100")
		}
		amount = original.Mul(cfg.Value).Div(decimal.NewFromInt(100))
	case TypeFixed:
		amount = cfg.Value
	default:
		return invalid(fmt.Sprintf("unknown discount type %q", cfg.Type))
	}

	if cfg.MaxDiscount.GreaterThan(decimal.Zero) && amount.GreaterThan(cfg.MaxDiscount) {
		amount = cfg.MaxDiscount
	}
	if amount.GreaterThan(original) {
		amount = original
	}

	return Result{
		Valid:           true,
		DiscountAmount:  amount,
		DiscountedPrice: original.Sub(amount),
	}
}

func invalid(msg string) Result {
	return Result{Errors: []string{msg}}
}
