package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"cycle-discounts/internal/catalog"
	"cycle-discounts/internal/config"
	"cycle-discounts/internal/matcher"
)

// RuleSource is anything that can produce the active, priority-ordered
// rule set. Satisfied by Store (Postgres) and FileSource (YAML).
type RuleSource interface {
	LoadActiveRules(ctx context.Context) ([]matcher.Rule, error)
}

// Store backs the rule set and the product catalog with Postgres.
type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, cfg config.Config) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres DSN: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Postgres.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.Postgres.MaxIdleConns)
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// LoadActiveRules loads the rules of all active campaigns, ordered by
// campaign priority then rule id. That order is the order the matcher
// evaluates them in.
func (s *Store) LoadActiveRules(ctx context.Context) ([]matcher.Rule, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
		SELECT r.id, r.campaign_id, c.name, c.priority,
		       r.include_products, r.exclude_products,
		       r.include_categories, r.exclude_categories,
		       r.min_price::text, r.max_price::text, r.min_quantity,
		       r.discount_type, r.discount_value::text, r.max_discount::text
		FROM discount_rules r
		JOIN discount_campaigns c ON c.id = r.campaign_id
		WHERE c.status = 'ACTIVE'
		ORDER BY c.priority, r.id
	`)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	var out []matcher.Rule
	for rows.Next() {
		var (
			r                          matcher.Rule
			minPrice, maxPrice         *string
			discountValue, maxDiscount *string
		)
		if err := rows.Scan(
			&r.ID, &r.CampaignID, &r.Name, &r.Priority,
			&r.IncludeProducts, &r.ExcludeProducts,
			&r.IncludeCategories, &r.ExcludeCategories,
			&minPrice, &maxPrice, &r.MinQuantity,
			&r.Pricing.Type, &discountValue, &maxDiscount,
		); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		if r.MinPrice, err = parseOptDecimal(minPrice); err != nil {
			return nil, fmt.Errorf("rule %d min_price: %w", r.ID, err)
		}
		if r.MaxPrice, err = parseOptDecimal(maxPrice); err != nil {
			return nil, fmt.Errorf("rule %d max_price: %w", r.ID, err)
		}
		if r.Pricing.Value, err = parseDecimal(discountValue); err != nil {
			return nil, fmt.Errorf("rule %d discount_value: %w", r.ID, err)
		}
		if r.Pricing.MaxDiscount, err = parseDecimal(maxDiscount); err != nil {
			return nil, fmt.Errorf("rule %d max_discount: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetProduct returns (nil, nil) when the product does not exist.
func (s *Store) GetProduct(ctx context.Context, id int64) (*catalog.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var (
		p                    catalog.Product
		regular, price, sale string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, product_type, regular_price::text, price::text, sale_price::text,
		       purchasable, in_stock, exclude_from_discounts
		FROM products WHERE id = $1
	`, id).Scan(&p.ID, &p.Type, &regular, &price, &sale,
		&p.Purchasable, &p.InStock, &p.ExcludeFromDiscounts)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product %d: %w", id, err)
	}
	if p.RegularPrice, err = decimal.NewFromString(regular); err != nil {
		return nil, fmt.Errorf("product %d regular_price: %w", id, err)
	}
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("product %d price: %w", id, err)
	}
	if p.SalePrice, err = decimal.NewFromString(sale); err != nil {
		return nil, fmt.Errorf("product %d sale_price: %w", id, err)
	}
	return &p, nil
}

func (s *Store) GetProductCategoryIDs(ctx context.Context, id int64) ([]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT category_id FROM product_categories WHERE product_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("query categories for product %d: %w", id, err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var cid int64
		if err := rows.Scan(&cid); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, cid)
	}
	return out, rows.Err()
}

func (s *Store) PgxPool() *pgxpool.Pool {
	if s.pool == nil {
		panic(errors.New("pgx pool is nil"))
	}
	return s.pool
}

func parseOptDecimal(v *string) (*decimal.Decimal, error) {
	if v == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*v)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func parseDecimal(v *string) (decimal.Decimal, error) {
	if v == nil {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(*v)
}

var _ catalog.Catalog = (*Store)(nil)
