package storage

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"cycle-discounts/internal/catalog"
	"cycle-discounts/internal/matcher"
	"cycle-discounts/internal/pricing"
)

// FileSource reads the rule set (and a small product catalog) from a
// YAML file. Meant for dev and standalone runs where no Postgres is
// configured; the file is re-read on every rule load so edits show up
// on the next refresh.
type FileSource struct {
	Path string

	mu       sync.RWMutex
	products map[int64]catalog.Product
}

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path, products: map[int64]catalog.Product{}}
}

type fileRule struct {
	ID                int64   `yaml:"id"`
	CampaignID        int64   `yaml:"campaign_id"`
	Name              string  `yaml:"name"`
	Priority          int     `yaml:"priority"`
	IncludeProducts   []int64 `yaml:"include_products"`
	ExcludeProducts   []int64 `yaml:"exclude_products"`
	IncludeCategories []int64 `yaml:"include_categories"`
	ExcludeCategories []int64 `yaml:"exclude_categories"`
	MinPrice          string  `yaml:"min_price"`
	MaxPrice          string  `yaml:"max_price"`
	MinQuantity       int     `yaml:"min_quantity"`
	Pricing           struct {
		Type        string `yaml:"type"`
		Value       string `yaml:"value"`
		MaxDiscount string `yaml:"max_discount"`
	} `yaml:"pricing"`
}

type fileProduct struct {
	ID                   int64   `yaml:"id"`
	Type                 string  `yaml:"type"`
	RegularPrice         string  `yaml:"regular_price"`
	Price                string  `yaml:"price"`
	SalePrice            string  `yaml:"sale_price"`
	Purchasable          bool    `yaml:"purchasable"`
	InStock              bool    `yaml:"in_stock"`
	ExcludeFromDiscounts bool    `yaml:"exclude_from_discounts"`
	CategoryIDs          []int64 `yaml:"category_ids"`
}

type ruleFile struct {
	Rules    []fileRule    `yaml:"rules"`
	Products []fileProduct `yaml:"products"`
}

func (f *FileSource) LoadActiveRules(_ context.Context) ([]matcher.Rule, error) {
	raw, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read rules file %s: %w", f.Path, err)
	}
	var doc ruleFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode rules file %s: %w", f.Path, err)
	}

	out := make([]matcher.Rule, 0, len(doc.Rules))
	for _, fr := range doc.Rules {
		r := matcher.Rule{
			ID:                fr.ID,
			CampaignID:        fr.CampaignID,
			Name:              fr.Name,
			Priority:          fr.Priority,
			IncludeProducts:   fr.IncludeProducts,
			ExcludeProducts:   fr.ExcludeProducts,
			IncludeCategories: fr.IncludeCategories,
			ExcludeCategories: fr.ExcludeCategories,
			MinQuantity:       fr.MinQuantity,
			Pricing:           pricing.Config{Type: fr.Pricing.Type},
		}
		if r.MinPrice, err = optDecimalFromString(fr.MinPrice); err != nil {
			return nil, fmt.Errorf("rule %d min_price: %w", fr.ID, err)
		}
		if r.MaxPrice, err = optDecimalFromString(fr.MaxPrice); err != nil {
			return nil, fmt.Errorf("rule %d max_price: %w", fr.ID, err)
		}
		if fr.Pricing.Value != "" {
			if r.Pricing.Value, err = decimal.NewFromString(fr.Pricing.Value); err != nil {
				return nil, fmt.Errorf("rule %d pricing value: %w", fr.ID, err)
			}
		}
		if fr.Pricing.MaxDiscount != "" {
			if r.Pricing.MaxDiscount, err = decimal.NewFromString(fr.Pricing.MaxDiscount); err != nil {
				return nil, fmt.Errorf("rule %d pricing max_discount: %w", fr.ID, err)
			}
		}
		out = append(out, r)
	}

	if err := f.loadProducts(doc.Products); err != nil {
		return nil, err
	}
	return out, nil
}

func (f *FileSource) loadProducts(in []fileProduct) error {
	products := make(map[int64]catalog.Product, len(in))
	for _, fp := range in {
		p := catalog.Product{
			ID:                   fp.ID,
			Type:                 fp.Type,
			Purchasable:          fp.Purchasable,
			InStock:              fp.InStock,
			ExcludeFromDiscounts: fp.ExcludeFromDiscounts,
			CategoryIDs:          fp.CategoryIDs,
		}
		var err error
		if p.RegularPrice, err = decimalOrZero(fp.RegularPrice); err != nil {
			return fmt.Errorf("product %d regular_price: %w", fp.ID, err)
		}
		if p.Price, err = decimalOrZero(fp.Price); err != nil {
			return fmt.Errorf("product %d price: %w", fp.ID, err)
		}
		if p.Price.IsZero() {
			p.Price = p.RegularPrice
		}
		if p.SalePrice, err = decimalOrZero(fp.SalePrice); err != nil {
			return fmt.Errorf("product %d sale_price: %w", fp.ID, err)
		}
		products[p.ID] = p
	}
	f.mu.Lock()
	f.products = products
	f.mu.Unlock()
	return nil
}

// GetProduct returns a copy so callers may mutate prices freely.
func (f *FileSource) GetProduct(_ context.Context, id int64) (*catalog.Product, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (f *FileSource) GetProductCategoryIDs(_ context.Context, id int64) ([]int64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.products[id]
	if !ok {
		return nil, nil
	}
	return p.CategoryIDs, nil
}

func decimalOrZero(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func optDecimalFromString(s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

var _ RuleSource = (*FileSource)(nil)
var _ catalog.Catalog = (*FileSource)(nil)
