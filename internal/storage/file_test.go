package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

const testRulesYAML = `
rules:
  - id: 1
    campaign_id: 1
    name: clearance
    priority: 10
    include_categories: [3]
    min_price: "10.00"
    max_price: "500.00"
    pricing:
      type: percentage
      value: "15"
  - id: 2
    campaign_id: 2
    name: bulk
    priority: 20
    min_quantity: 3
    pricing:
      type: fixed
      value: "5.00"
      max_discount: "20.00"

products:
  - id: 101
    type: simple
    regular_price: "49.90"
    purchasable: true
    in_stock: true
    category_ids: [3]
`

func writeTempRules(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFileSource_LoadActiveRules(t *testing.T) {
	fs := NewFileSource(writeTempRules(t, testRulesYAML))

	rules, err := fs.LoadActiveRules(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rules))
	}

	r := rules[0]
	assert.Equal(t, int64(1), r.ID)
	assert.Equal(t, []int64{3}, r.IncludeCategories)
	if r.MinPrice == nil || !r.MinPrice.Equal(decimal.RequireFromString("10")) {
		t.Fatalf("min_price parsed wrong: %v", r.MinPrice)
	}
	assert.Equal(t, "percentage", r.Pricing.Type)
	assert.True(t, r.Pricing.Value.Equal(decimal.RequireFromString("15")))

	assert.Equal(t, 3, rules[1].MinQuantity)
	assert.True(t, rules[1].Pricing.MaxDiscount.Equal(decimal.RequireFromString("20")))
}

func TestFileSource_ProductCatalog(t *testing.T) {
	fs := NewFileSource(writeTempRules(t, testRulesYAML))
	if _, err := fs.LoadActiveRules(context.Background()); err != nil {
		t.Fatal(err)
	}

	p, err := fs.GetProduct(context.Background(), 101)
	assert.NoError(t, err)
	if p == nil {
		t.Fatal("expected product 101")
	}
	assert.True(t, p.RegularPrice.Equal(decimal.RequireFromString("49.90")))
	assert.True(t, p.Price.Equal(p.RegularPrice), "price defaults to regular price")

	cats, err := fs.GetProductCategoryIDs(context.Background(), 101)
	assert.NoError(t, err)
	assert.Equal(t, []int64{3}, cats)

	missing, err := fs.GetProduct(context.Background(), 999)
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestFileSource_Errors(t *testing.T) {
	_, err := NewFileSource("does/not/exist.yaml").LoadActiveRules(context.Background())
	assert.Error(t, err)

	fs := NewFileSource(writeTempRules(t, "rules:\n  - id: 1\n    min_price: \"abc\"\n"))
	_, err = fs.LoadActiveRules(context.Background())
	assert.Error(t, err)
}
