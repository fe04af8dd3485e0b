package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
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
	msgPlaceOrderFailed = "Failed to create order"

	maxOrderQuantity = 1000
)

// OrderOptions configures the order engine.
type OrderOptions struct {
	DefaultPaymentMethod string
	IdempotencyTTL       time.Duration
}

// OrderService handles order business logic
type OrderService struct {
	store       OrderStore
	idempotency IdempotencyStore
	events      EventPublisher
	opts        OrderOptions
	logger      *zap.Logger
}

// NewOrderService creates a new order service. idempotency and events may be nil.
func NewOrderService(
	store OrderStore,
	idempotency IdempotencyStore,
	events EventPublisher,
	opts OrderOptions,
) *OrderService {
	if opts.DefaultPaymentMethod == "" {
		opts.DefaultPaymentMethod = "GCash"
	}
	return &OrderService{
		store:       store,
		idempotency: idempotency,
		events:      events,
		opts:        opts,
		logger:      util.GetLogger(),
	}
}

// PlaceOrderRequest is a "buy now" request for a single product. It has no
// price field: the catalog price is the only one ever used.
type PlaceOrderRequest struct {
	UserID          int64  `json:"user_id"`
	ProductID       int64  `json:"product_id"`
	Quantity        int    `json:"quantity"`
	ShippingAddress string `json:"shipping_address"`
	PaymentMethod   string `json:"payment_method"`
	IdempotencyKey  string `json:"idempotency_key,omitempty"`
}

// PlaceOrderResponse represents the response after placing an order
type PlaceOrderResponse struct {
	OrderID int64 `json:"order_id"`
}

func (r *PlaceOrderRequest) normalize(defaultPaymentMethod string) error {
	if r.UserID <= 0 || r.ProductID <= 0 {
		return apperr.Validation("User ID and Product ID are required")
	}
	if r.Quantity == 0 {
		r.Quantity = 1
	}
	if r.Quantity < 1 || r.Quantity > maxOrderQuantity {
		return apperr.Validation(fmt.Sprintf("Quantity must be between 1 and %d", maxOrderQuantity))
	}
	r.PaymentMethod = strings.TrimSpace(r.PaymentMethod)
	if r.PaymentMethod == "" {
		r.PaymentMethod = defaultPaymentMethod
	}
	r.IdempotencyKey = strings.TrimSpace(r.IdempotencyKey)
	return nil
}

// fingerprint identifies the order a request asks for, so a reused
// idempotency key can be told apart from a genuine retry.
func (r *PlaceOrderRequest) fingerprint() string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d|%d|%s|%s",
		r.ProductID, r.Quantity, r.PaymentMethod, r.ShippingAddress)))
	return hex.EncodeToString(sum[:])
}

// PlaceOrder prices the product from the catalog and persists the order and
// its single line atomically. The order is settled immediately, so it is
// created as completed.
func (s *OrderService) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*PlaceOrderResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.PlaceOrder",
		attribute.Int64("user_id", req.UserID),
		attribute.Int64("product_id", req.ProductID))
	defer span.End()

	if err := req.normalize(s.opts.DefaultPaymentMethod); err != nil {
		util.OrdersFailedTotal.WithLabelValues("validation").Inc()
		return nil, err
	}

	claimed, replayedID, err := s.reserve(ctx, req)
	if err != nil {
		return nil, err
	}
	if replayedID != 0 {
		return &PlaceOrderResponse{OrderID: replayedID}, nil
	}

	order, items, err := s.createOrder(ctx, req)
	if err != nil {
		util.RecordSpanError(span, err)
		if claimed {
			s.release(ctx, req)
		}
		return nil, err
	}

	util.OrdersPlacedTotal.Inc()
	util.OrderAmount.Observe(order.TotalAmount.InexactFloat64())
	s.logger.Info("Order placed",
		zap.Int64("order_id", order.ID),
		zap.Int64("user_id", order.UserID),
		zap.String("total_amount", order.TotalAmount.StringFixed(2)))

	if claimed {
		if err := s.idempotency.CompleteOrderKey(ctx, req.UserID, req.IdempotencyKey, req.fingerprint(), order.ID, s.opts.IdempotencyTTL); err != nil {
			s.logger.Warn("Failed to record order on idempotency key", zap.Error(err))
		}
	}

	s.publishOrderPlaced(ctx, order, items)

	return &PlaceOrderResponse{OrderID: order.ID}, nil
}

func (s *OrderService) createOrder(ctx context.Context, req *PlaceOrderRequest) (*models.Order, []models.OrderItem, error) {
	product, err := s.store.GetProductByID(ctx, req.ProductID)
	if errors.Is(err, store.ErrNotFound) {
		util.OrdersFailedTotal.WithLabelValues("product_not_found").Inc()
		return nil, nil, apperr.NotFound("Product")
	}
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		s.logger.Error("Product lookup failed", zap.Int64("product_id", req.ProductID), zap.Error(err))
		return nil, nil, apperr.Internal(msgPlaceOrderFailed, err)
	}

	items := []models.OrderItem{{
		ProductID: product.ID,
		Quantity:  req.Quantity,
		UnitPrice: product.Price,
	}}
	order := &models.Order{
		UserID:          req.UserID,
		TotalAmount:     items[0].Subtotal(),
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		Status:          models.OrderStatusCompleted,
	}

	if err := s.store.CreateOrderWithItems(ctx, order, items); err != nil {
		util.OrdersFailedTotal.WithLabelValues("transaction").Inc()
		s.logger.Error("Order transaction failed",
			zap.Int64("user_id", req.UserID),
			zap.Int64("product_id", req.ProductID),
			zap.Error(err))
		return nil, nil, apperr.Transaction(msgPlaceOrderFailed, err)
	}
	return order, items, nil
}

// reserve claims the request's idempotency key before anything is written.
// It reports whether this request now holds the key, or the id of the order
// an earlier identical request already created. Only the user who created
// the key can replay it, since keys are scoped per user. When Redis is
// unavailable the order proceeds unprotected.
func (s *OrderService) reserve(ctx context.Context, req *PlaceOrderRequest) (bool, int64, error) {
	if req.IdempotencyKey == "" || s.idempotency == nil {
		return false, 0, nil
	}

	fingerprint := req.fingerprint()
	existing, reserved, err := s.idempotency.ReserveOrderKey(ctx, req.UserID, req.IdempotencyKey, fingerprint, s.opts.IdempotencyTTL)
	if err != nil {
		s.logger.Warn("Idempotency reservation failed", zap.String("idempotency_key", req.IdempotencyKey), zap.Error(err))
		return false, 0, nil
	}
	if reserved {
		return true, 0, nil
	}

	if existing.Fingerprint != fingerprint {
		util.OrdersFailedTotal.WithLabelValues("idempotency_mismatch").Inc()
		return false, 0, apperr.Conflict("Idempotency key was already used for a different order")
	}
	if existing.Pending() {
		util.OrdersFailedTotal.WithLabelValues("idempotency_in_progress").Inc()
		return false, 0, apperr.Conflict("An order with this idempotency key is still being processed")
	}

	util.OrderReplaysTotal.Inc()
	s.logger.Info("Duplicate order request detected",
		zap.String("idempotency_key", req.IdempotencyKey),
		zap.Int64("order_id", existing.OrderID))
	return false, existing.OrderID, nil
}

func (s *OrderService) release(ctx context.Context, req *PlaceOrderRequest) {
	if err := s.idempotency.ReleaseOrderKey(ctx, req.UserID, req.IdempotencyKey); err != nil {
		s.logger.Warn("Failed to release idempotency key", zap.String("idempotency_key", req.IdempotencyKey), zap.Error(err))
	}
}

func (s *OrderService) publishOrderPlaced(ctx context.Context, order *models.Order, items []models.OrderItem) {
	if s.events == nil {
		return
	}

	data := make([]models.OrderItemData, 0, len(items))
	for _, item := range items {
		data = append(data, models.OrderItemData{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	event := &models.OrderPlacedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderPlaced,
			Timestamp: time.Now(),
		},
		OrderID:     order.ID,
		UserID:      order.UserID,
		TotalAmount: order.TotalAmount,
		Status:      order.Status,
		Items:       data,
	}

	if err := s.events.PublishOrderPlaced(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderPlaced event", zap.Int64("order_id", order.ID), zap.Error(err))
	}
}

// ListOrders returns the user's orders newest first with embedded items.
func (s *OrderService) ListOrders(ctx context.Context, userID int64) ([]models.OrderWithItems, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListOrders", attribute.Int64("user_id", userID))
	defer span.End()

	if userID <= 0 {
		return nil, apperr.Validation("User ID is required")
	}

	orders, err := s.store.GetOrdersWithItemsByUserID(ctx, userID)
	if err != nil {
		util.RecordSpanError(span, err)
		s.logger.Error("Failed to fetch orders", zap.Int64("user_id", userID), zap.Error(err))
		return nil, apperr.Internal("Failed to fetch orders", err)
	}
	return orders, nil
}
