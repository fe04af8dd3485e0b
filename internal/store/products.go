package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"coffee-shop/internal/models"
)

const productSelect = `
	SELECT cp.product_id, cp.name, cp.description, cp.price, cp.roast_type, cp.origin,
		cp.weight, cp.rating, cp.review_count, cp.in_stock, cp.is_featured,
		string_agg(DISTINCT pt.tag_name, ',') AS tags
	FROM coffee_products cp
	LEFT JOIN product_tags pt ON pt.product_id = cp.product_id`

// GetProductByID retrieves a product by ID. Returns ErrNotFound when absent.
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product,
		productSelect+" WHERE cp.product_id = $1 GROUP BY cp.product_id", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ListProducts returns the catalog, featured products first, then by name.
func (s *Store) ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	var (
		conditions []string
		args       []interface{}
	)

	if filter.Roast != "" && filter.Roast != "all" {
		args = append(args, filter.Roast)
		conditions = append(conditions, fmt.Sprintf("cp.roast_type = $%d", len(args)))
	}
	if filter.Origin != "" && filter.Origin != "all" {
		args = append(args, filter.Origin)
		conditions = append(conditions, fmt.Sprintf("cp.origin = $%d", len(args)))
	}
	if filter.FeaturedOnly {
		conditions = append(conditions, "cp.is_featured = TRUE")
	}

	query := productSelect
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " GROUP BY cp.product_id ORDER BY cp.is_featured DESC, cp.name ASC"

	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products, query, args...)
	return products, err
}

// ListFeaturedProducts returns the best-rated featured products.
func (s *Store) ListFeaturedProducts(ctx context.Context, limit int) ([]models.Product, error) {
	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products,
		productSelect+" WHERE cp.is_featured = TRUE GROUP BY cp.product_id ORDER BY cp.rating DESC, cp.product_id LIMIT $1",
		limit)
	return products, err
}
