package service

import (
	"context"
	"errors"

	"coffee-shop/internal/apperr"
	"coffee-shop/internal/models"
	"coffee-shop/internal/store"
	"coffee-shop/internal/util"

	"go.uber.org/zap"
)

// FavoriteService manages a user's saved products
type FavoriteService struct {
	store  FavoriteStore
	logger *zap.Logger
}

// NewFavoriteService creates a new favorite service
func NewFavoriteService(store FavoriteStore) *FavoriteService {
	return &FavoriteService{store: store, logger: util.GetLogger()}
}

func validatePair(userID, productID int64) error {
	if userID <= 0 || productID <= 0 {
		return apperr.Validation("User ID and Product ID are required")
	}
	return nil
}

// List returns the user's favorites newest first.
func (s *FavoriteService) List(ctx context.Context, userID int64) ([]models.Favorite, error) {
	if userID <= 0 {
		return nil, apperr.Validation("User ID is required")
	}

	favorites, err := s.store.GetFavoritesByUserID(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to fetch favorites", zap.Int64("user_id", userID), zap.Error(err))
		return nil, apperr.Internal("Failed to fetch favorites", err)
	}
	return favorites, nil
}

// Add saves a product to the user's favorites.
func (s *FavoriteService) Add(ctx context.Context, userID, productID int64) error {
	if err := validatePair(userID, productID); err != nil {
		return err
	}

	exists, err := s.store.FavoriteExists(ctx, userID, productID)
	if err != nil {
		s.logger.Error("Favorite lookup failed", zap.Error(err))
		return apperr.Internal("Failed to add to favorites", err)
	}
	if exists {
		return apperr.AlreadyFavorited()
	}

	err = s.store.AddFavorite(ctx, userID, productID)
	if errors.Is(err, store.ErrDuplicate) {
		return apperr.AlreadyFavorited()
	}
	if err != nil {
		s.logger.Error("Failed to add favorite",
			zap.Int64("user_id", userID),
			zap.Int64("product_id", productID),
			zap.Error(err))
		return apperr.Internal("Failed to add to favorites", err)
	}
	return nil
}

// Remove deletes a product from the user's favorites.
func (s *FavoriteService) Remove(ctx context.Context, userID, productID int64) error {
	if err := validatePair(userID, productID); err != nil {
		return err
	}

	if err := s.store.RemoveFavorite(ctx, userID, productID); err != nil {
		s.logger.Error("Failed to remove favorite", zap.Error(err))
		return apperr.Internal("Failed to remove from favorites", err)
	}
	return nil
}
