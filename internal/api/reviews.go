package api

import (
	"net/http"
	"strconv"

	"coffee-shop/internal/apperr"
	"coffee-shop/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) submitReview(c *gin.Context) {
	var req service.SubmitReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Validation("Invalid request body"), "")
		return
	}

	rating, err := h.svc.Reviews.SubmitReview(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, "Failed to submit review")
		return
	}

	respondCreated(c, "Review submitted successfully", gin.H{
		"rating":       rating.Rating.InexactFloat64(),
		"review_count": rating.ReviewCount,
	})
}

func (h *Handler) listReviews(c *gin.Context) {
	reviews, err := h.svc.Reviews.ListReviews(c.Request.Context(), queryID(c, "product_id"))
	if err != nil {
		respondError(c, err, "Failed to fetch reviews")
		return
	}

	respondData(c, http.StatusOK, reviews)
}

func (h *Handler) featuredReviews(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	reviews, err := h.svc.Reviews.FeaturedReviews(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err, "Failed to fetch reviews")
		return
	}

	respondData(c, http.StatusOK, reviews)
}
