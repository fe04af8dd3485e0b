package worker

import (
	"context"
	"time"

	"coffee-shop/internal/broker"
	"coffee-shop/internal/models"
	"coffee-shop/internal/util"

	"go.uber.org/zap"
)

// PurchaseCache is the subset of the Redis client the cache worker writes to.
type PurchaseCache interface {
	MarkPurchased(ctx context.Context, userID, productID int64, ttl time.Duration) error
	InvalidateReviews(ctx context.Context, productID int64) error
}

// CacheWorker keeps Redis in step with committed orders and reviews. It
// consumes the order-events topic: ORDER_PLACED warms the purchase cache
// and REVIEW_SUBMITTED drops the product's cached review list. Events that
// fail are dropped; the purchase cache falls back to the database and the
// review list expires on its own TTL.
type CacheWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	cache        PurchaseCache
	purchaseTTL  time.Duration
	logger       *zap.Logger
}

// NewCacheWorker creates a new cache worker
func NewCacheWorker(consumer *broker.Consumer, cache PurchaseCache, purchaseTTL time.Duration) *CacheWorker {
	w := &CacheWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		cache:        cache,
		purchaseTTL:  purchaseTTL,
		logger:       util.GetLogger(),
	}

	w.eventHandler.OnOrderPlaced(w.handleOrderPlaced)
	w.eventHandler.OnReviewSubmitted(w.handleReviewSubmitted)

	return w
}

// Start consumes until ctx is cancelled
func (w *CacheWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting cache worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop closes the underlying consumer
func (w *CacheWorker) Stop() error {
	w.logger.Info("Stopping cache worker")
	return w.consumer.Close()
}

func (w *CacheWorker) handleOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	if event.Status != models.OrderStatusCompleted {
		return nil
	}

	for _, item := range event.Items {
		if err := w.cache.MarkPurchased(ctx, event.UserID, item.ProductID, w.purchaseTTL); err != nil {
			return err
		}
	}

	w.logger.Debug("Warmed purchase cache",
		zap.Int64("order_id", event.OrderID),
		zap.Int("items", len(event.Items)))
	return nil
}

func (w *CacheWorker) handleReviewSubmitted(ctx context.Context, event *models.ReviewSubmittedEvent) error {
	return w.cache.InvalidateReviews(ctx, event.ProductID)
}
