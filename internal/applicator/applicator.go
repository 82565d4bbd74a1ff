package applicator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"cycle-discounts/internal/cache"
	"cycle-discounts/internal/cart"
	"cycle-discounts/internal/catalog"
	"cycle-discounts/internal/matcher"
	"cycle-discounts/internal/observability"
	"cycle-discounts/internal/pricing"
)

// Result error messages surfaced to callers.
const (
	msgProductNotFound = "Product not found"
	msgNotEligible     = "Product is not eligible for discounts"
	msgNoValidPrice    = "Product has no valid price"
	msgCartItemMissing = "Cart item has no product"
	msgNoDiscount      = "No discount applied"
)

// AuthzChecks gate UpdateDisplayPrice. Both default to deny.
type AuthzChecks struct {
	CanEditProducts func() bool
	InPriceRecalc   func() bool
}

// Applicator drives discount application end to end: resolve product,
// check eligibility, delegate the math to the pricing engine, mutate
// the price, record the application. Public apply methods never return
// an error; everything lands in the Result.
type Applicator struct {
	catalog catalog.Catalog
	matcher *matcher.Matcher
	engine  pricing.Engine
	authz   AuthzChecks

	rules cache.Snapshot[[]matcher.Rule]

	mu      sync.RWMutex
	applied map[int64]AppliedDiscount
}

func New(cat catalog.Catalog, m *matcher.Matcher, eng pricing.Engine, authz AuthzChecks) *Applicator {
	if authz.CanEditProducts == nil {
		authz.CanEditProducts = func() bool { return false }
	}
	if authz.InPriceRecalc == nil {
		authz.InPriceRecalc = func() bool { return false }
	}
	return &Applicator{
		catalog: cat,
		matcher: m,
		engine:  eng,
		authz:   authz,
		applied: make(map[int64]AppliedDiscount),
	}
}

// SetRules swaps in the active, priority-ordered rule set.
func (a *Applicator) SetRules(rules []matcher.Rule) { a.rules.Store(rules) }

// Rules returns the current rule set (possibly nil before warmup).
func (a *Applicator) Rules() []matcher.Rule { return a.rules.Load() }

// ApplyToProduct attempts one discount application against a catalog
// product. It always returns a well-formed Result.
func (a *Applicator) ApplyToProduct(ctx context.Context, productID int64, cfg pricing.Config, mctx matcher.Context) *Result {
	res := &Result{ProductID: productID, CartItemKey: mctx.CartItemKey}

	p, err := a.catalog.GetProduct(ctx, productID)
	if err != nil {
		log.Error().Err(err).Int64("product_id", productID).Msg("product lookup failed")
		observability.ApplicationsTotal.WithLabelValues("error").Inc()
		return res.fail(fmt.Sprintf("product lookup failed: %v", err))
	}
	if p == nil {
		observability.ApplicationsTotal.WithLabelValues("not_found").Inc()
		return res.fail(msgProductNotFound)
	}

	if !a.matcher.IsProductEligible(p, mctx) {
		observability.ApplicationsTotal.WithLabelValues("ineligible").Inc()
		return res.fail(msgNotEligible)
	}

	if p.RegularPrice.LessThanOrEqual(decimal.Zero) {
		observability.ApplicationsTotal.WithLabelValues("invalid_price").Inc()
		return res.fail(msgNoValidPrice)
	}
	res.OriginalPrice = p.RegularPrice

	calc := a.engine.Calculate(p.RegularPrice, cfg, pricing.Context{
		ProductID:   p.ID,
		ProductType: p.Type,
		Quantity:    mctx.Quantity,
		CartItemKey: mctx.CartItemKey,
	})
	return a.finish(res, p, 0, cfg, calc)
}

// ApplyToCartItem applies an already-matched rule to one cart line.
// On success the product's live price is mutated in place and the
// line's marker fields are filled for downstream consumers.
func (a *Applicator) ApplyToCartItem(key string, it *cart.Item, r *matcher.Rule) *Result {
	res := &Result{CartItemKey: key}
	if it == nil || it.Product == nil {
		observability.ApplicationsTotal.WithLabelValues("not_found").Inc()
		return res.fail(msgCartItemMissing)
	}
	p := it.Product
	res.ProductID = p.ID

	mctx := matcher.Context{Quantity: it.Quantity, CartItemKey: key}
	if !a.matcher.IsProductEligible(p, mctx) {
		observability.ApplicationsTotal.WithLabelValues("ineligible").Inc()
		return res.fail(msgNotEligible)
	}
	if p.RegularPrice.LessThanOrEqual(decimal.Zero) {
		observability.ApplicationsTotal.WithLabelValues("invalid_price").Inc()
		return res.fail(msgNoValidPrice)
	}
	res.OriginalPrice = p.RegularPrice

	calc := a.engine.Calculate(p.RegularPrice, r.Pricing, pricing.Context{
		ProductID:   p.ID,
		ProductType: p.Type,
		Quantity:    it.Quantity,
		CartItemKey: key,
	})
	out := a.finish(res, p, r.ID, r.Pricing, calc)
	if out.Success {
		p.Price = out.DiscountedPrice
		it.DiscountApplied = true
		it.DiscountAmount = out.DiscountAmount
		it.OriginalPrice = out.OriginalPrice
	}
	return out
}

// finish folds an engine result into the application result, caching
// and logging on success.
func (a *Applicator) finish(res *Result, p *catalog.Product, ruleID int64, cfg pricing.Config, calc pricing.Result) *Result {
	if !calc.Valid || calc.DiscountAmount.LessThanOrEqual(decimal.Zero) {
		res.DiscountedPrice = res.OriginalPrice
		res.Errors = append(res.Errors, calc.Errors...)
		if len(calc.Errors) == 0 {
			res.Errors = append(res.Errors, msgNoDiscount)
		}
		observability.ApplicationsTotal.WithLabelValues("engine_rejected").Inc()
		return res
	}

	res.Success = true
	res.DiscountedPrice = calc.DiscountedPrice
	res.DiscountAmount = calc.DiscountAmount

	a.cacheApplied(AppliedDiscount{
		ProductID:       p.ID,
		RuleID:          ruleID,
		Config:          cfg,
		OriginalPrice:   res.OriginalPrice,
		DiscountedPrice: res.DiscountedPrice,
		DiscountAmount:  res.DiscountAmount,
		AppliedAt:       time.Now(),
	})

	amt, _ := res.DiscountAmount.Float64()
	observability.ApplicationsTotal.WithLabelValues("success").Inc()
	observability.AmountTotal.Add(amt)
	log.Info().
		Int64("product_id", p.ID).
		Str("original", res.OriginalPrice.String()).
		Str("discounted", res.DiscountedPrice.String()).
		Msg("discount applied")
	return res
}

// ModifyCartPrices walks every cart line, finds the first applicable
// rule and applies it. One bad line is recorded and skipped; it never
// aborts the rest of the cart.
func (a *Applicator) ModifyCartPrices(ctx context.Context, c *cart.Cart, rules []matcher.Rule) *CartSummary {
	sum := &CartSummary{TotalDiscount: decimal.Zero}
	if c == nil {
		return sum
	}
	for _, it := range c.Items {
		sum.ItemsProcessed++
		if it == nil || it.Product == nil {
			sum.Errors = append(sum.Errors, fmt.Sprintf("cart item %s: %s", keyOf(it), msgCartItemMissing))
			continue
		}
		mctx := matcher.Context{Quantity: it.Quantity, CartItemKey: it.Key}
		r, err := a.matcher.FindApplicableRule(ctx, it.Product.ID, rules, mctx)
		if err != nil {
			log.Error().Err(err).Str("cart_item", it.Key).Msg("rule matching failed")
			sum.Errors = append(sum.Errors, fmt.Sprintf("cart item %s: %v", it.Key, err))
			continue
		}
		if r == nil {
			continue
		}
		res := a.ApplyToCartItem(it.Key, it, r)
		if !res.Success {
			for _, e := range res.Errors {
				sum.Errors = append(sum.Errors, fmt.Sprintf("cart item %s: %s", it.Key, e))
			}
			continue
		}
		sum.DiscountsApplied++
		sum.TotalDiscount = sum.TotalDiscount.Add(res.DiscountAmount.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return sum
}

func keyOf(it *cart.Item) string {
	if it == nil {
		return "?"
	}
	return it.Key
}

// UpdateDisplayPrice overwrites a product's live and sale price with
// the discounted value. Only an edit-capable caller or the internal
// price-recalculation path may do this; anyone else gets a warning
// log and false.
func (a *Applicator) UpdateDisplayPrice(p *catalog.Product, cfg pricing.Config) bool {
	if !a.authz.CanEditProducts() && !a.authz.InPriceRecalc() {
		log.Warn().Msg("display price update denied")
		return false
	}
	if p == nil || p.RegularPrice.LessThanOrEqual(decimal.Zero) {
		return false
	}
	calc := a.engine.Calculate(p.RegularPrice, cfg, pricing.Context{ProductID: p.ID, ProductType: p.Type})
	if !calc.Valid || calc.DiscountAmount.LessThanOrEqual(decimal.Zero) {
		return false
	}
	p.Price = calc.DiscountedPrice
	p.SalePrice = calc.DiscountedPrice
	return true
}

// BulkApplyDiscounts runs ApplyToProduct for every id. Every id is
// attempted regardless of earlier failures.
func (a *Applicator) BulkApplyDiscounts(ctx context.Context, productIDs []int64, cfg pricing.Config, mctx matcher.Context) *BulkResult {
	out := &BulkResult{
		TotalDiscountAmount: decimal.Zero,
		Results:             make(map[int64]*Result, len(productIDs)),
	}
	for _, id := range productIDs {
		res := a.ApplyToProduct(ctx, id, cfg, mctx)
		out.Results[id] = res
		if res.Success {
			out.Successful++
			out.TotalDiscountAmount = out.TotalDiscountAmount.Add(res.DiscountAmount)
		} else {
			out.Failed++
			out.Errors = append(out.Errors, res.Errors...)
		}
	}
	return out
}

func (a *Applicator) cacheApplied(rec AppliedDiscount) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.applied[rec.ProductID] = rec
}

// GetAppliedDiscount returns the last successful application for the
// product, if any.
func (a *Applicator) GetAppliedDiscount(productID int64) (AppliedDiscount, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	rec, ok := a.applied[productID]
	return rec, ok
}

func (a *Applicator) HasAppliedDiscount(productID int64) bool {
	_, ok := a.GetAppliedDiscount(productID)
	return ok
}

// RemoveAppliedDiscount drops the cached record for the product and
// reports whether one existed.
func (a *Applicator) RemoveAppliedDiscount(productID int64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.applied[productID]; !ok {
		return false
	}
	delete(a.applied, productID)
	return true
}

// ClearAppliedDiscounts resets both the applied-discount cache and the
// rule snapshot.
func (a *Applicator) ClearAppliedDiscounts() {
	a.mu.Lock()
	a.applied = make(map[int64]AppliedDiscount)
	a.mu.Unlock()
	a.rules.Store(nil)
}

// GetStatistics recomputes counts and savings from the live cache.
// O(n) in cache size; the cache is process-local and modest.
func (a *Applicator) GetStatistics() Statistics {
	a.mu.RLock()
	defer a.mu.RUnlock()

	st := Statistics{TotalSavings: decimal.Zero, AverageSavings: decimal.Zero}
	for _, rec := range a.applied {
		st.AppliedCount++
		st.TotalSavings = st.TotalSavings.Add(rec.DiscountAmount)
	}
	if st.AppliedCount > 0 {
		st.AverageSavings = st.TotalSavings.Div(decimal.NewFromInt(int64(st.AppliedCount)))
	}
	return st
}
