package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"coffee-shop/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// ratingPlaces is the precision of the stored product rating.
const ratingPlaces = 1

// GetReviewByUserAndProduct returns the user's review of a product, or nil if none exists.
func (s *Store) GetReviewByUserAndProduct(ctx context.Context, userID, productID int64) (*models.Review, error) {
	var review models.Review
	err := s.db.GetContext(ctx, &review, `
		SELECT review_id, user_id, product_id, rating, comment, review_date
		FROM reviews
		WHERE user_id = $1 AND product_id = $2`, userID, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &review, nil
}

// CreateReviewAndRefreshRating inserts review and rewrites the product's
// rating and review_count from the full review set, all in one transaction.
// A second review for the same (user, product) yields ErrDuplicate.
func (s *Store) CreateReviewAndRefreshRating(ctx context.Context, review *models.Review) (*models.ProductRating, error) {
	rating := &models.ProductRating{ProductID: review.ProductID}

	err := s.withTx(ctx, "create_review", func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, review, `
			INSERT INTO reviews (user_id, product_id, rating, comment)
			VALUES ($1, $2, $3, $4)
			RETURNING review_id, review_date`,
			review.UserID, review.ProductID, review.Rating, review.Comment)
		if isUniqueViolation(err) {
			return fmt.Errorf("review by user %d for product %d: %w", review.UserID, review.ProductID, ErrDuplicate)
		}
		if err != nil {
			return fmt.Errorf("insert review: %w", err)
		}

		var agg struct {
			AvgRating   decimal.Decimal `db:"avg_rating"`
			ReviewCount int             `db:"review_count"`
		}
		if err := tx.GetContext(ctx, &agg, `
			SELECT AVG(rating) AS avg_rating, COUNT(*) AS review_count
			FROM reviews
			WHERE product_id = $1`, review.ProductID); err != nil {
			return fmt.Errorf("aggregate reviews: %w", err)
		}

		rating.Rating = agg.AvgRating.Round(ratingPlaces)
		rating.ReviewCount = agg.ReviewCount

		res, err := tx.ExecContext(ctx, `
			UPDATE coffee_products
			SET rating = $1, review_count = $2
			WHERE product_id = $3`,
			rating.Rating, rating.ReviewCount, review.ProductID)
		if err != nil {
			return fmt.Errorf("update product rating: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("product %d: %w", review.ProductID, ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rating, nil
}

// GetReviewsByProductID returns a product's reviews newest first with reviewer identity.
func (s *Store) GetReviewsByProductID(ctx context.Context, productID int64) ([]models.ReviewWithUser, error) {
	reviews := []models.ReviewWithUser{}
	err := s.db.SelectContext(ctx, &reviews, `
		SELECT r.review_id, r.user_id, r.product_id, r.rating, r.comment, r.review_date,
			u.email AS user_email, u.profile_picture
		FROM reviews r
		JOIN users u ON u.user_id = r.user_id
		WHERE r.product_id = $1
		ORDER BY r.review_date DESC, r.review_id DESC`, productID)
	return reviews, err
}

// GetRecentReviews returns the newest reviews across the catalog.
func (s *Store) GetRecentReviews(ctx context.Context, limit int) ([]models.FeaturedReview, error) {
	reviews := []models.FeaturedReview{}
	err := s.db.SelectContext(ctx, &reviews, `
		SELECT r.review_id, r.user_id, r.product_id, r.rating, r.comment, r.review_date,
			u.email AS user_email, u.profile_picture, cp.name AS product_name
		FROM reviews r
		JOIN users u ON u.user_id = r.user_id
		JOIN coffee_products cp ON cp.product_id = r.product_id
		ORDER BY r.review_date DESC, r.review_id DESC
		LIMIT $1`, limit)
	return reviews, err
}

// ReconcileProductRatings rewrites every product aggregate that disagrees
// with the review table and returns how many rows were corrected.
func (s *Store) ReconcileProductRatings(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE coffee_products cp
		SET rating = agg.avg_rating, review_count = agg.review_count
		FROM (
			SELECT p.product_id,
				COALESCE(ROUND(AVG(r.rating), 1), 0) AS avg_rating,
				COUNT(r.review_id) AS review_count
			FROM coffee_products p
			LEFT JOIN reviews r ON r.product_id = p.product_id
			GROUP BY p.product_id
		) agg
		WHERE cp.product_id = agg.product_id
			AND (cp.rating <> agg.avg_rating OR cp.review_count <> agg.review_count)`)
	if err != nil {
		return 0, fmt.Errorf("reconcile ratings: %w", err)
	}
	return res.RowsAffected()
}
