package models

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// Product is a row of coffee_products. The catalog owns it; the order and
// review flows only read its price and write its rating aggregate.
type Product struct {
	ID          int64           `db:"product_id" json:"product_id"`
	Name        string          `db:"name" json:"name"`
	Description string          `db:"description" json:"description"`
	Price       decimal.Decimal `db:"price" json:"price"`
	RoastType   string          `db:"roast_type" json:"roast_type"`
	Origin      string          `db:"origin" json:"origin"`
	Weight      sql.NullString  `db:"weight" json:"-"`
	Rating      decimal.Decimal `db:"rating" json:"rating"`
	ReviewCount int             `db:"review_count" json:"review_count"`
	InStock     bool            `db:"in_stock" json:"in_stock"`
	IsFeatured  bool            `db:"is_featured" json:"is_featured"`
	Tags        sql.NullString  `db:"tags" json:"-"`
}

// ProductRating is the aggregate recomputed after every review insert.
type ProductRating struct {
	ProductID   int64           `db:"product_id" json:"product_id"`
	Rating      decimal.Decimal `db:"rating" json:"rating"`
	ReviewCount int             `db:"review_count" json:"review_count"`
}

// OrderStatus is stored as text so new states can be introduced without a
// schema change.
type OrderStatus string

// Order statuses
const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// Order represents a customer order
type Order struct {
	ID              int64           `db:"order_id" json:"order_id"`
	UserID          int64           `db:"user_id" json:"user_id"`
	OrderDate       time.Time       `db:"order_date" json:"order_date"`
	TotalAmount     decimal.Decimal `db:"total_amount" json:"total_amount"`
	ShippingAddress string          `db:"shipping_address" json:"shipping_address"`
	PaymentMethod   string          `db:"payment_method" json:"payment_method"`
	Status          OrderStatus     `db:"status" json:"status"`
}

// OrderItem represents items in an order. UnitPrice is the product price at
// purchase time and never follows later price changes.
type OrderItem struct {
	ID        int64           `db:"order_item_id" json:"order_item_id"`
	OrderID   int64           `db:"order_id" json:"order_id"`
	ProductID int64           `db:"product_id" json:"product_id"`
	Quantity  int             `db:"quantity" json:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`
}

// Subtotal returns quantity × unit price.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// OrderLine is an order item joined with its product name for order history.
type OrderLine struct {
	OrderID     int64           `db:"order_id" json:"-"`
	ProductID   int64           `db:"product_id" json:"product_id"`
	ProductName string          `db:"product_name" json:"product_name"`
	Quantity    int             `db:"quantity" json:"quantity"`
	UnitPrice   decimal.Decimal `db:"unit_price" json:"unit_price"`
}

// OrderWithItems is one entry of a user's order history.
type OrderWithItems struct {
	Order
	ItemCount int         `json:"item_count"`
	Items     []OrderLine `json:"items"`
}

// Review is a verified-purchase product review. At most one exists per
// (user, product).
type Review struct {
	ID         int64     `db:"review_id" json:"review_id"`
	UserID     int64     `db:"user_id" json:"user_id"`
	ProductID  int64     `db:"product_id" json:"product_id"`
	Rating     int       `db:"rating" json:"rating"`
	Comment    *string   `db:"comment" json:"comment"`
	ReviewDate time.Time `db:"review_date" json:"review_date"`
}

// ReviewWithUser is a review joined with the reviewer's public identity.
type ReviewWithUser struct {
	Review
	UserEmail      string  `db:"user_email" json:"user_email"`
	ProfilePicture *string `db:"profile_picture" json:"profile_picture"`
}

// FeaturedReview is a recent review shown on the landing page.
type FeaturedReview struct {
	ReviewWithUser
	ProductName string `db:"product_name" json:"product_name"`
	UserName    string `db:"-" json:"user_name"`
}

// Favorite is a saved product joined with its catalog fields.
type Favorite struct {
	ID          int64           `db:"favorite_id" json:"favorite_id"`
	UserID      int64           `db:"user_id" json:"user_id"`
	ProductID   int64           `db:"product_id" json:"product_id"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	ProductName string          `db:"product_name" json:"product_name"`
	Description string          `db:"description" json:"description"`
	Price       decimal.Decimal `db:"price" json:"price"`
	RoastType   string          `db:"roast_type" json:"roast_type"`
	Origin      string          `db:"origin" json:"origin"`
}

// ProductFilter narrows a catalog listing. Empty fields and "all" match everything.
type ProductFilter struct {
	Roast        string
	Origin       string
	FeaturedOnly bool
}

// OrderReservation is what an idempotency key points at. OrderID is zero
// while the first request holding the key is still running.
type OrderReservation struct {
	OrderID     int64  `json:"order_id"`
	Fingerprint string `json:"fingerprint"`
}

// Pending reports whether the reserving request has not committed yet.
func (r OrderReservation) Pending() bool {
	return r.OrderID == 0
}
