package api

import (
	"net/http"
	"strconv"

	"coffee-shop/internal/apperr"
	"coffee-shop/internal/models"

	"github.com/gin-gonic/gin"
)

// listProducts returns one product when id is given, the filtered catalog otherwise
func (h *Handler) listProducts(c *gin.Context) {
	ctx := c.Request.Context()

	if raw, ok := c.GetQuery("id"); ok {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respondError(c, apperr.Validation("Product ID must be a positive integer"), "")
			return
		}
		product, err := h.svc.Catalog.GetProduct(ctx, id)
		if err != nil {
			respondError(c, err, "Failed to fetch products")
			return
		}
		respondData(c, http.StatusOK, product)
		return
	}

	featured, _ := strconv.ParseBool(c.Query("featured"))
	products, err := h.svc.Catalog.ListProducts(ctx, models.ProductFilter{
		Roast:        c.Query("roast"),
		Origin:       c.Query("origin"),
		FeaturedOnly: featured,
	})
	if err != nil {
		respondError(c, err, "Failed to fetch products")
		return
	}

	respondData(c, http.StatusOK, products)
}

func (h *Handler) featuredProducts(c *gin.Context) {
	products, err := h.svc.Catalog.FeaturedProducts(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to fetch featured products")
		return
	}

	respondData(c, http.StatusOK, products)
}

type favoriteRequest struct {
	UserID    int64 `json:"user_id"`
	ProductID int64 `json:"product_id"`
}

func (h *Handler) listFavorites(c *gin.Context) {
	favorites, err := h.svc.Favorites.List(c.Request.Context(), queryID(c, "user_id"))
	if err != nil {
		respondError(c, err, "Failed to fetch favorites")
		return
	}

	respondData(c, http.StatusOK, favorites)
}

func (h *Handler) addFavorite(c *gin.Context) {
	var req favoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Validation("Invalid request body"), "")
		return
	}

	if err := h.svc.Favorites.Add(c.Request.Context(), req.UserID, req.ProductID); err != nil {
		respondError(c, err, "Failed to add to favorites")
		return
	}

	respondCreated(c, "Added to favorites", nil)
}

func (h *Handler) removeFavorite(c *gin.Context) {
	err := h.svc.Favorites.Remove(c.Request.Context(), queryID(c, "user_id"), queryID(c, "product_id"))
	if err != nil {
		respondError(c, err, "Failed to remove from favorites")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Removed from favorites",
	})
}
