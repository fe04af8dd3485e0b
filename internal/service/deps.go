package service

import (
	"context"
	"time"

	"coffee-shop/internal/models"
)

// ProductReader looks up catalog products.
type ProductReader interface {
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
}

// OrderStore persists orders.
type OrderStore interface {
	ProductReader
	CreateOrderWithItems(ctx context.Context, order *models.Order, items []models.OrderItem) error
	GetOrdersWithItemsByUserID(ctx context.Context, userID int64) ([]models.OrderWithItems, error)
}

// PurchaseStore answers the purchase-fact predicate.
type PurchaseStore interface {
	HasPurchased(ctx context.Context, userID, productID int64) (bool, error)
}

// ReviewStore persists reviews and the product rating aggregate.
type ReviewStore interface {
	GetReviewByUserAndProduct(ctx context.Context, userID, productID int64) (*models.Review, error)
	CreateReviewAndRefreshRating(ctx context.Context, review *models.Review) (*models.ProductRating, error)
	GetReviewsByProductID(ctx context.Context, productID int64) ([]models.ReviewWithUser, error)
	GetRecentReviews(ctx context.Context, limit int) ([]models.FeaturedReview, error)
}

// CatalogStore reads the product catalog.
type CatalogStore interface {
	ProductReader
	ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, error)
	ListFeaturedProducts(ctx context.Context, limit int) ([]models.Product, error)
}

// FavoriteStore persists favorites.
type FavoriteStore interface {
	GetFavoritesByUserID(ctx context.Context, userID int64) ([]models.Favorite, error)
	FavoriteExists(ctx context.Context, userID, productID int64) (bool, error)
	AddFavorite(ctx context.Context, userID, productID int64) error
	RemoveFavorite(ctx context.Context, userID, productID int64) error
}

// EventPublisher emits domain events after commit.
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishReviewSubmitted(ctx context.Context, event *models.ReviewSubmittedEvent) error
}

// PurchaseCache holds positive purchase facts only.
type PurchaseCache interface {
	IsPurchased(ctx context.Context, userID, productID int64) (bool, error)
	MarkPurchased(ctx context.Context, userID, productID int64, ttl time.Duration) error
}

// IdempotencyStore reserves client idempotency keys per user before an
// order is written and remembers the order created under them.
type IdempotencyStore interface {
	ReserveOrderKey(ctx context.Context, userID int64, key, fingerprint string, ttl time.Duration) (models.OrderReservation, bool, error)
	CompleteOrderKey(ctx context.Context, userID int64, key, fingerprint string, orderID int64, ttl time.Duration) error
	ReleaseOrderKey(ctx context.Context, userID int64, key string) error
}

// ReviewCache caches per-product review lists by generation.
type ReviewCache interface {
	ReviewsVersion(ctx context.Context, productID int64) (int64, error)
	GetCachedReviews(ctx context.Context, productID, version int64, dest interface{}) (bool, error)
	SetCachedReviews(ctx context.Context, productID, version int64, reviews interface{}, ttl time.Duration) error
	InvalidateReviews(ctx context.Context, productID int64) error
}
