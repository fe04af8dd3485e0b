package api

import (
	"net/http"

	"coffee-shop/internal/apperr"
	"coffee-shop/internal/service"

	"github.com/gin-gonic/gin"
)

// placeOrder handles "buy now" checkout
func (h *Handler) placeOrder(c *gin.Context) {
	var req service.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Validation("Invalid request body"), "")
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	resp, err := h.svc.Orders.PlaceOrder(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, "Failed to create order")
		return
	}

	respondCreated(c, "Order created successfully", resp)
}

// listOrders returns the user's order history
func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.svc.Orders.ListOrders(c.Request.Context(), queryID(c, "user_id"))
	if err != nil {
		respondError(c, err, "Failed to fetch orders")
		return
	}

	respondData(c, http.StatusOK, orders)
}

// hasPurchased answers the verified-purchase question for the review form
func (h *Handler) hasPurchased(c *gin.Context) {
	purchased, err := h.svc.Ledger.HasPurchased(c.Request.Context(), queryID(c, "user_id"), queryID(c, "product_id"))
	if err != nil {
		respondError(c, err, "Failed to check purchase status")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"hasPurchased": purchased,
	})
}
