package applicator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"cycle-discounts/internal/cart"
	"cycle-discounts/internal/catalog"
	"cycle-discounts/internal/matcher"
	"cycle-discounts/internal/pricing"
)

type mockCatalog struct {
	products map[int64]*catalog.Product
	failIDs  map[int64]bool
}

func (m *mockCatalog) GetProduct(_ context.Context, id int64) (*catalog.Product, error) {
	if m.failIDs[id] {
		return nil, errors.New("catalog unavailable")
	}
	return m.products[id], nil
}

func (m *mockCatalog) GetProductCategoryIDs(_ context.Context, id int64) ([]int64, error) {
	if m.failIDs[id] {
		return nil, errors.New("catalog unavailable")
	}
	if p, ok := m.products[id]; ok {
		return p.CategoryIDs, nil
	}
	return nil, nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newProduct(id int64, price string) *catalog.Product {
	return &catalog.Product{
		ID:           id,
		Type:         "simple",
		RegularPrice: dec(price),
		Price:        dec(price),
		Purchasable:  true,
		InStock:      true,
	}
}

func newTestApplicator(cat *mockCatalog, authz AuthzChecks) *Applicator {
	m := matcher.New(cat)
	return New(cat, m, pricing.NewCalculator(), authz)
}

func percentOff(v string) pricing.Config {
	return pricing.Config{Type: pricing.TypePercentage, Value: dec(v)}
}

func TestApplyToProduct_Success(t *testing.T) {
	cat := &mockCatalog{products: map[int64]*catalog.Product{10: newProduct(10, "100.00")}}
	app := newTestApplicator(cat, AuthzChecks{})

	res := app.ApplyToProduct(context.Background(), 10, percentOff("20"), matcher.Context{})

	assert.True(t, res.Success)
	assert.Empty(t, res.Errors)
	assert.True(t, res.OriginalPrice.Equal(dec("100")))
	assert.True(t, res.DiscountAmount.Equal(dec("20")))
	assert.True(t, res.DiscountedPrice.Equal(dec("80")))

	rec, ok := app.GetAppliedDiscount(10)
	if !ok {
		t.Fatal("expected cached applied discount")
	}
	assert.True(t, rec.DiscountAmount.Equal(res.DiscountAmount))
}

func TestApplyToProduct_NotFound(t *testing.T) {
	app := newTestApplicator(&mockCatalog{}, AuthzChecks{})

	res := app.ApplyToProduct(context.Background(), 999, percentOff("20"), matcher.Context{})

	assert.False(t, res.Success)
	assert.Contains(t, res.Errors, "Product not found")
	assert.False(t, app.HasAppliedDiscount(999), "cache must stay untouched")
}

func TestApplyToProduct_Failures(t *testing.T) {
	outOfStock := newProduct(11, "50.00")
	outOfStock.InStock = false

	cat := &mockCatalog{
		products: map[int64]*catalog.Product{
			11: outOfStock,
			12: newProduct(12, "0"),
			13: newProduct(13, "50.00"),
		},
		failIDs: map[int64]bool{14: true},
	}
	app := newTestApplicator(cat, AuthzChecks{})

	tests := []struct {
		name      string
		productID int64
		cfg       pricing.Config
		wantErr   string
	}{
		{"ineligible product", 11, percentOff("20"), "Product is not eligible for discounts"},
		{"no valid price", 12, percentOff("20"), "Product has no valid price"},
		{"engine rejects config", 13, pricing.Config{Type: "bogo", Value: dec("1")}, "unknown discount type"},
		{"lookup failure", 14, percentOff("20"), "product lookup failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := app.ApplyToProduct(context.Background(), tt.productID, tt.cfg, matcher.Context{})
			assert.False(t, res.Success)
			found := false
			for _, e := range res.Errors {
				if strings.Contains(e, tt.wantErr) {
					found = true
				}
			}
			assert.True(t, found, "errors %v should mention %q", res.Errors, tt.wantErr)
			assert.False(t, app.HasAppliedDiscount(tt.productID))
		})
	}
}

func TestApplyToProduct_EngineRejectedKeepsOriginalPrice(t *testing.T) {
	cat := &mockCatalog{products: map[int64]*catalog.Product{10: newProduct(10, "100.00")}}
	app := newTestApplicator(cat, AuthzChecks{})

	res := app.ApplyToProduct(context.Background(), 10, pricing.Config{Type: "bogo", Value: dec("1")}, matcher.Context{})

	assert.False(t, res.Success)
	assert.True(t, res.DiscountedPrice.Equal(res.OriginalPrice))
}

func TestApplyToCartItem_MutatesLine(t *testing.T) {
	p := newProduct(10, "40.00")
	app := newTestApplicator(&mockCatalog{products: map[int64]*catalog.Product{10: p}}, AuthzChecks{})

	it := &cart.Item{Key: "line-1", Product: p, Quantity: 2}
	r := &matcher.Rule{ID: 7, Pricing: percentOff("25")}

	res := app.ApplyToCartItem("line-1", it, r)

	assert.True(t, res.Success)
	assert.True(t, p.Price.Equal(dec("30")), "live price should be mutated, got %s", p.Price)
	assert.True(t, it.DiscountApplied)
	assert.True(t, it.DiscountAmount.Equal(dec("10")))
	assert.True(t, it.OriginalPrice.Equal(dec("40")))

	rec, ok := app.GetAppliedDiscount(10)
	if !ok {
		t.Fatal("expected cached applied discount")
	}
	assert.Equal(t, int64(7), rec.RuleID)
}

func TestApplyToCartItem_MissingProduct(t *testing.T) {
	app := newTestApplicator(&mockCatalog{}, AuthzChecks{})

	res := app.ApplyToCartItem("line-1", &cart.Item{Key: "line-1"}, &matcher.Rule{Pricing: percentOff("10")})
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Errors)
}

func TestModifyCartPrices_PartialFailure(t *testing.T) {
	p1 := newProduct(10, "100.00")
	p2 := newProduct(20, "50.00")
	p3 := newProduct(30, "80.00")

	// category lookup for product 20 fails, so matching its line errors
	cat := &mockCatalog{
		products: map[int64]*catalog.Product{10: p1, 20: p2, 30: p3},
		failIDs:  map[int64]bool{20: true},
	}
	app := newTestApplicator(cat, AuthzChecks{})

	c := &cart.Cart{Items: []*cart.Item{
		{Key: "a", Product: p1, Quantity: 1},
		{Key: "b", Product: p2, Quantity: 1},
		{Key: "c", Product: p3, Quantity: 2},
	}}
	rules := []matcher.Rule{{ID: 1, IncludeCategories: []int64{3}, Pricing: percentOff("10")}, {ID: 2, Pricing: percentOff("10")}}
	p1.CategoryIDs = []int64{3}
	p3.CategoryIDs = []int64{3}

	sum := app.ModifyCartPrices(context.Background(), c, rules)

	assert.Equal(t, 3, sum.ItemsProcessed)
	assert.Equal(t, 2, sum.DiscountsApplied)

	found := false
	for _, e := range sum.Errors {
		if strings.Contains(e, "cart item b") {
			found = true
		}
	}
	assert.True(t, found, "errors %v should name the failing cart key", sum.Errors)

	// 10% off 100 * qty1 + 10% off 80 * qty2
	assert.True(t, sum.TotalDiscount.Equal(dec("26")), "got %s", sum.TotalDiscount)
}

func TestModifyCartPrices_NoMatchingRule(t *testing.T) {
	p := newProduct(10, "100.00")
	app := newTestApplicator(&mockCatalog{products: map[int64]*catalog.Product{10: p}}, AuthzChecks{})

	c := &cart.Cart{Items: []*cart.Item{{Key: "a", Product: p, Quantity: 1}}}
	sum := app.ModifyCartPrices(context.Background(), c, []matcher.Rule{{IncludeProducts: []int64{99}, Pricing: percentOff("10")}})

	assert.Equal(t, 1, sum.ItemsProcessed)
	assert.Equal(t, 0, sum.DiscountsApplied)
	assert.Empty(t, sum.Errors)
	assert.True(t, p.Price.Equal(dec("100")))
}

func TestBulkApplyDiscounts_Counts(t *testing.T) {
	cat := &mockCatalog{products: map[int64]*catalog.Product{
		10: newProduct(10, "100.00"),
		20: newProduct(20, "50.00"),
	}}
	app := newTestApplicator(cat, AuthzChecks{})

	out := app.BulkApplyDiscounts(context.Background(), []int64{10, 999, 20}, percentOff("10"), matcher.Context{})

	assert.Equal(t, 2, out.Successful)
	assert.Equal(t, 1, out.Failed)
	assert.Len(t, out.Results, 3)
	assert.True(t, out.TotalDiscountAmount.Equal(dec("15")), "got %s", out.TotalDiscountAmount)
	assert.Contains(t, out.Errors, "Product not found")
}

func TestRemoveAppliedDiscount(t *testing.T) {
	cat := &mockCatalog{products: map[int64]*catalog.Product{10: newProduct(10, "100.00")}}
	app := newTestApplicator(cat, AuthzChecks{})

	assert.False(t, app.RemoveAppliedDiscount(10), "nothing cached yet")

	app.ApplyToProduct(context.Background(), 10, percentOff("10"), matcher.Context{})
	assert.True(t, app.HasAppliedDiscount(10))

	assert.True(t, app.RemoveAppliedDiscount(10))
	assert.False(t, app.HasAppliedDiscount(10))
}

func TestClearAppliedDiscounts_ResetsBothCaches(t *testing.T) {
	cat := &mockCatalog{products: map[int64]*catalog.Product{10: newProduct(10, "100.00")}}
	app := newTestApplicator(cat, AuthzChecks{})
	app.SetRules([]matcher.Rule{{ID: 1}})
	app.ApplyToProduct(context.Background(), 10, percentOff("10"), matcher.Context{})

	app.ClearAppliedDiscounts()

	assert.False(t, app.HasAppliedDiscount(10))
	assert.Empty(t, app.Rules())
	assert.Equal(t, 0, app.GetStatistics().AppliedCount)
}

func TestGetStatistics(t *testing.T) {
	cat := &mockCatalog{products: map[int64]*catalog.Product{
		10: newProduct(10, "100.00"),
		20: newProduct(20, "50.00"),
	}}
	app := newTestApplicator(cat, AuthzChecks{})

	app.ApplyToProduct(context.Background(), 10, percentOff("10"), matcher.Context{}) // saves 10
	app.ApplyToProduct(context.Background(), 20, percentOff("10"), matcher.Context{}) // saves 5

	st := app.GetStatistics()
	assert.Equal(t, 2, st.AppliedCount)
	assert.True(t, st.TotalSavings.Equal(dec("15")), "got %s", st.TotalSavings)
	assert.True(t, st.AverageSavings.Equal(dec("7.5")), "got %s", st.AverageSavings)
}

func TestUpdateDisplayPrice(t *testing.T) {
	tests := []struct {
		name  string
		authz AuthzChecks
		want  bool
	}{
		{"denied by default", AuthzChecks{}, false},
		{"edit capability allows", AuthzChecks{CanEditProducts: func() bool { return true }}, true},
		{"recalc context allows", AuthzChecks{InPriceRecalc: func() bool { return true }}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProduct(10, "100.00")
			app := newTestApplicator(&mockCatalog{products: map[int64]*catalog.Product{10: p}}, tt.authz)

			got := app.UpdateDisplayPrice(p, percentOff("10"))
			assert.Equal(t, tt.want, got)
			if tt.want {
				assert.True(t, p.Price.Equal(dec("90")))
				assert.True(t, p.SalePrice.Equal(dec("90")))
			} else {
				assert.True(t, p.Price.Equal(dec("100")), "price must not change when denied")
			}
		})
	}
}

func TestUpdateDisplayPrice_NoPositiveDiscount(t *testing.T) {
	p := newProduct(10, "100.00")
	app := newTestApplicator(&mockCatalog{products: map[int64]*catalog.Product{10: p}},
		AuthzChecks{CanEditProducts: func() bool { return true }})

	assert.False(t, app.UpdateDisplayPrice(p, pricing.Config{Type: "bogo", Value: dec("1")}))
	assert.True(t, p.Price.Equal(dec("100")))
}
