package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderPlaced     = "ORDER_PLACED"
	EventTypeReviewSubmitted = "REVIEW_SUBMITTED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderPlacedEvent published after an order commits
type OrderPlacedEvent struct {
	BaseEvent
	OrderID     int64           `json:"order_id"`
	UserID      int64           `json:"user_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Status      OrderStatus     `json:"status"`
	Items       []OrderItemData `json:"items"`
}

// ReviewSubmittedEvent published after a review and its aggregate commit
type ReviewSubmittedEvent struct {
	BaseEvent
	ReviewID    int64           `json:"review_id"`
	UserID      int64           `json:"user_id"`
	ProductID   int64           `json:"product_id"`
	Rating      int             `json:"rating"`
	AvgRating   decimal.Decimal `json:"avg_rating"`
	ReviewCount int             `json:"review_count"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}
