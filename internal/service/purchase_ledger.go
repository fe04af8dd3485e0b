package service

import (
	"context"
	"strconv"
	"time"

	"coffee-shop/internal/apperr"
	"coffee-shop/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// PurchaseLedger is the single verified-purchase gate. The HTTP route and
// the review flow both call HasPurchased so they can never disagree.
type PurchaseLedger struct {
	store    PurchaseStore
	cache    PurchaseCache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewPurchaseLedger creates a purchase ledger. cache may be nil.
func NewPurchaseLedger(store PurchaseStore, cache PurchaseCache, cacheTTL time.Duration) *PurchaseLedger {
	return &PurchaseLedger{
		store:    store,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   util.GetLogger(),
	}
}

// HasPurchased reports whether userID has a completed order containing productID.
// Cached positives short-circuit; a cache miss or cache failure always
// falls through to the database.
func (l *PurchaseLedger) HasPurchased(ctx context.Context, userID, productID int64) (bool, error) {
	ctx, span := util.StartSpan(ctx, "PurchaseLedger.HasPurchased",
		attribute.Int64("user_id", userID),
		attribute.Int64("product_id", productID))
	defer span.End()

	if userID <= 0 || productID <= 0 {
		return false, apperr.Validation("User ID and Product ID are required")
	}

	if l.cache != nil {
		cached, err := l.cache.IsPurchased(ctx, userID, productID)
		if err != nil {
			l.logger.Warn("Purchase cache lookup failed",
				zap.Int64("user_id", userID),
				zap.Int64("product_id", productID),
				zap.Error(err))
		} else if cached {
			util.PurchaseChecksTotal.WithLabelValues("true", "cache").Inc()
			return true, nil
		}
	}

	purchased, err := l.store.HasPurchased(ctx, userID, productID)
	if err != nil {
		util.RecordSpanError(span, err)
		l.logger.Error("Purchase check failed",
			zap.Int64("user_id", userID),
			zap.Int64("product_id", productID),
			zap.Error(err))
		return false, apperr.Internal("Failed to check purchase status", err)
	}

	util.PurchaseChecksTotal.WithLabelValues(strconv.FormatBool(purchased), "store").Inc()

	if purchased && l.cache != nil {
		if err := l.cache.MarkPurchased(ctx, userID, productID, l.cacheTTL); err != nil {
			l.logger.Warn("Failed to cache purchase fact", zap.Error(err))
		}
	}
	return purchased, nil
}

