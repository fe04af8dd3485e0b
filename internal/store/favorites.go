package store

import (
	"context"
	"fmt"

	"coffee-shop/internal/models"
)

// GetFavoritesByUserID lists a user's favorites newest first.
func (s *Store) GetFavoritesByUserID(ctx context.Context, userID int64) ([]models.Favorite, error) {
	favorites := []models.Favorite{}
	err := s.db.SelectContext(ctx, &favorites, `
		SELECT f.favorite_id, f.user_id, f.product_id, f.created_at,
			cp.name AS product_name, cp.description, cp.price, cp.roast_type, cp.origin
		FROM favorites f
		JOIN coffee_products cp ON cp.product_id = f.product_id
		WHERE f.user_id = $1
		ORDER BY f.created_at DESC, f.favorite_id DESC`, userID)
	return favorites, err
}

// FavoriteExists reports whether the product is already in the user's favorites.
func (s *Store) FavoriteExists(ctx context.Context, userID, productID int64) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM favorites WHERE user_id = $1 AND product_id = $2)",
		userID, productID)
	return exists, err
}

// AddFavorite saves a product to the user's favorites.
func (s *Store) AddFavorite(ctx context.Context, userID, productID int64) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO favorites (user_id, product_id) VALUES ($1, $2)",
		userID, productID)
	if isUniqueViolation(err) {
		return fmt.Errorf("favorite by user %d for product %d: %w", userID, productID, ErrDuplicate)
	}
	return err
}

// RemoveFavorite deletes a favorite. Removing a missing favorite is not an error.
func (s *Store) RemoveFavorite(ctx context.Context, userID, productID int64) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM favorites WHERE user_id = $1 AND product_id = $2",
		userID, productID)
	return err
}
