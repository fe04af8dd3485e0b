package service

import (
	"context"
	"errors"
	"strings"

	"coffee-shop/internal/apperr"
	"coffee-shop/internal/models"
	"coffee-shop/internal/store"
	"coffee-shop/internal/util"

	"go.uber.org/zap"
)

const (
	featuredProductLimit = 3
	defaultWeight        = "250g"
)

// ProductView is the storefront representation of a product.
type ProductView struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	Roast       string   `json:"roast"`
	Origin      string   `json:"origin"`
	Weight      string   `json:"weight"`
	Tags        []string `json:"tags"`
	Rating      float64  `json:"rating"`
	Reviews     int      `json:"reviews"`
	InStock     bool     `json:"inStock"`
	IsFeatured  bool     `json:"isFeatured"`
}

func newProductView(p models.Product) ProductView {
	view := ProductView{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.InexactFloat64(),
		Roast:       p.RoastType,
		Origin:      p.Origin,
		Weight:      defaultWeight,
		Tags:        []string{},
		Rating:      p.Rating.InexactFloat64(),
		Reviews:     p.ReviewCount,
		InStock:     p.InStock,
		IsFeatured:  p.IsFeatured,
	}
	if p.Weight.Valid && p.Weight.String != "" {
		view.Weight = p.Weight.String
	}
	if p.Tags.Valid && p.Tags.String != "" {
		view.Tags = strings.Split(p.Tags.String, ",")
	}
	return view
}

// CatalogService serves read-only catalog queries
type CatalogService struct {
	store  CatalogStore
	logger *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(store CatalogStore) *CatalogService {
	return &CatalogService{store: store, logger: util.GetLogger()}
}

// GetProduct returns one product.
func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*ProductView, error) {
	if id <= 0 {
		return nil, apperr.Validation("Product ID must be a positive integer")
	}

	product, err := s.store.GetProductByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("Product")
	}
	if err != nil {
		s.logger.Error("Failed to fetch product", zap.Int64("product_id", id), zap.Error(err))
		return nil, apperr.Internal("Failed to fetch products", err)
	}

	view := newProductView(*product)
	return &view, nil
}

// ListProducts returns the filtered catalog.
func (s *CatalogService) ListProducts(ctx context.Context, filter models.ProductFilter) ([]ProductView, error) {
	products, err := s.store.ListProducts(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to fetch products", zap.Error(err))
		return nil, apperr.Internal("Failed to fetch products", err)
	}
	return toViews(products), nil
}

// FeaturedProducts returns the best-rated featured products.
func (s *CatalogService) FeaturedProducts(ctx context.Context) ([]ProductView, error) {
	products, err := s.store.ListFeaturedProducts(ctx, featuredProductLimit)
	if err != nil {
		s.logger.Error("Failed to fetch featured products", zap.Error(err))
		return nil, apperr.Internal("Failed to fetch featured products", err)
	}
	return toViews(products), nil
}

func toViews(products []models.Product) []ProductView {
	views := make([]ProductView, 0, len(products))
	for _, p := range products {
		views = append(views, newProductView(p))
	}
	return views
}
