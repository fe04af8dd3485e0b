package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"coffee-shop/internal/apperr"
	"coffee-shop/internal/models"
	"coffee-shop/internal/store"
	"coffee-shop/internal/util"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	msgSubmitReviewFailed = "Failed to submit review"

	minRating = 1
	maxRating = 5

	defaultFeaturedReviews = 3
	maxFeaturedReviews     = 50
)

// ReviewService handles verified-purchase reviews
type ReviewService struct {
	store    ReviewStore
	ledger   *PurchaseLedger
	cache    ReviewCache
	events   EventPublisher
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewReviewService creates a new review service. cache and events may be nil.
func NewReviewService(
	store ReviewStore,
	ledger *PurchaseLedger,
	cache ReviewCache,
	events EventPublisher,
	cacheTTL time.Duration,
) *ReviewService {
	return &ReviewService{
		store:    store,
		ledger:   ledger,
		cache:    cache,
		events:   events,
		cacheTTL: cacheTTL,
		logger:   util.GetLogger(),
	}
}

// SubmitReviewRequest represents a review submission
type SubmitReviewRequest struct {
	UserID    int64   `json:"user_id"`
	ProductID int64   `json:"product_id"`
	Rating    int     `json:"rating"`
	Comment   *string `json:"comment"`
}

func (r *SubmitReviewRequest) validate() error {
	if r.UserID <= 0 || r.ProductID <= 0 || r.Rating == 0 {
		return apperr.Validation("User ID, Product ID, and Rating are required")
	}
	if r.Rating < minRating || r.Rating > maxRating {
		return apperr.Validation("Rating must be between 1 and 5")
	}
	if r.Comment != nil {
		trimmed := strings.TrimSpace(*r.Comment)
		if trimmed == "" {
			r.Comment = nil
		} else {
			r.Comment = &trimmed
		}
	}
	return nil
}

// SubmitReview runs validate, duplicate check, purchase gate, then the
// atomic insert-and-recompute. The checks run in that order so a repeat
// reviewer always sees ALREADY_REVIEWED.
func (s *ReviewService) SubmitReview(ctx context.Context, req *SubmitReviewRequest) (*models.ProductRating, error) {
	ctx, span := util.StartSpan(ctx, "ReviewService.SubmitReview",
		attribute.Int64("user_id", req.UserID),
		attribute.Int64("product_id", req.ProductID))
	defer span.End()

	if err := req.validate(); err != nil {
		util.ReviewsRejectedTotal.WithLabelValues("validation").Inc()
		return nil, err
	}

	existing, err := s.store.GetReviewByUserAndProduct(ctx, req.UserID, req.ProductID)
	if err != nil {
		util.RecordSpanError(span, err)
		s.logger.Error("Duplicate review check failed", zap.Error(err))
		return nil, apperr.Internal(msgSubmitReviewFailed, err)
	}
	if existing != nil {
		util.ReviewsRejectedTotal.WithLabelValues("already_reviewed").Inc()
		return nil, apperr.AlreadyReviewed()
	}

	purchased, err := s.ledger.HasPurchased(ctx, req.UserID, req.ProductID)
	if err != nil {
		util.RecordSpanError(span, err)
		return nil, apperr.Internal(msgSubmitReviewFailed, err)
	}
	if !purchased {
		util.ReviewsRejectedTotal.WithLabelValues("purchase_required").Inc()
		s.logger.Info("Review rejected, no completed purchase",
			zap.Int64("user_id", req.UserID),
			zap.Int64("product_id", req.ProductID))
		return nil, apperr.PurchaseRequired()
	}

	review := &models.Review{
		UserID:    req.UserID,
		ProductID: req.ProductID,
		Rating:    req.Rating,
		Comment:   req.Comment,
	}

	rating, err := s.store.CreateReviewAndRefreshRating(ctx, review)
	if errors.Is(err, store.ErrDuplicate) {
		util.ReviewsRejectedTotal.WithLabelValues("already_reviewed").Inc()
		return nil, apperr.AlreadyReviewed()
	}
	if err != nil {
		util.RecordSpanError(span, err)
		util.ReviewsRejectedTotal.WithLabelValues("transaction").Inc()
		s.logger.Error("Review transaction failed",
			zap.Int64("user_id", req.UserID),
			zap.Int64("product_id", req.ProductID),
			zap.Error(err))
		return nil, apperr.Transaction(msgSubmitReviewFailed, err)
	}

	util.ReviewsSubmittedTotal.Inc()
	s.logger.Info("Review submitted",
		zap.Int64("review_id", review.ID),
		zap.Int64("product_id", review.ProductID),
		zap.String("rating", rating.Rating.String()),
		zap.Int("review_count", rating.ReviewCount))

	if s.cache != nil {
		if err := s.cache.InvalidateReviews(ctx, review.ProductID); err != nil {
			s.logger.Warn("Failed to invalidate review cache", zap.Error(err))
		}
	}
	s.publishReviewSubmitted(ctx, review, rating)

	return rating, nil
}

func (s *ReviewService) publishReviewSubmitted(ctx context.Context, review *models.Review, rating *models.ProductRating) {
	if s.events == nil {
		return
	}

	event := &models.ReviewSubmittedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeReviewSubmitted,
			Timestamp: time.Now(),
		},
		ReviewID:    review.ID,
		UserID:      review.UserID,
		ProductID:   review.ProductID,
		Rating:      review.Rating,
		AvgRating:   rating.Rating,
		ReviewCount: rating.ReviewCount,
	}

	if err := s.events.PublishReviewSubmitted(ctx, event); err != nil {
		s.logger.Error("Failed to publish ReviewSubmitted event", zap.Int64("review_id", review.ID), zap.Error(err))
	}
}

// ListReviews returns a product's reviews newest first.
func (s *ReviewService) ListReviews(ctx context.Context, productID int64) ([]models.ReviewWithUser, error) {
	ctx, span := util.StartSpan(ctx, "ReviewService.ListReviews", attribute.Int64("product_id", productID))
	defer span.End()

	if productID <= 0 {
		return nil, apperr.Validation("Product ID is required")
	}

	// The generation is read before the store so a list fetched across an
	// invalidation lands under a generation no reader asks for again.
	version, cacheable := int64(0), s.cache != nil
	if cacheable {
		var err error
		version, err = s.cache.ReviewsVersion(ctx, productID)
		if err != nil {
			s.logger.Warn("Review cache read failed", zap.Int64("product_id", productID), zap.Error(err))
			cacheable = false
		}
	}

	if cacheable {
		var cached []models.ReviewWithUser
		hit, err := s.cache.GetCachedReviews(ctx, productID, version, &cached)
		if err != nil {
			s.logger.Warn("Review cache read failed", zap.Int64("product_id", productID), zap.Error(err))
		} else if hit {
			return cached, nil
		}
	}

	reviews, err := s.store.GetReviewsByProductID(ctx, productID)
	if err != nil {
		util.RecordSpanError(span, err)
		s.logger.Error("Failed to fetch reviews", zap.Int64("product_id", productID), zap.Error(err))
		return nil, apperr.Internal("Failed to fetch reviews", err)
	}

	if cacheable {
		if err := s.cache.SetCachedReviews(ctx, productID, version, reviews, s.cacheTTL); err != nil {
			s.logger.Warn("Review cache write failed", zap.Int64("product_id", productID), zap.Error(err))
		}
	}
	return reviews, nil
}

// FeaturedReviews returns the newest reviews across the catalog.
func (s *ReviewService) FeaturedReviews(ctx context.Context, limit int) ([]models.FeaturedReview, error) {
	ctx, span := util.StartSpan(ctx, "ReviewService.FeaturedReviews")
	defer span.End()

	if limit <= 0 {
		limit = defaultFeaturedReviews
	}
	if limit > maxFeaturedReviews {
		limit = maxFeaturedReviews
	}

	reviews, err := s.store.GetRecentReviews(ctx, limit)
	if err != nil {
		util.RecordSpanError(span, err)
		s.logger.Error("Failed to fetch featured reviews", zap.Error(err))
		return nil, apperr.Internal("Failed to fetch reviews", err)
	}

	for i := range reviews {
		reviews[i].UserName = displayName(reviews[i].UserEmail)
	}
	return reviews, nil
}

// displayName is the local part of an email address.
func displayName(email string) string {
	if at := strings.IndexByte(email, '@'); at >= 0 {
		return email[:at]
	}
	return email
}
