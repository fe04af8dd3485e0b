package store

import (
	"context"
	"fmt"

	"coffee-shop/internal/models"

	"github.com/jmoiron/sqlx"
)

// CreateOrderWithItems inserts the order header and its items in a single
// transaction. On success order and items carry their generated ids.
func (s *Store) CreateOrderWithItems(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	return s.withTx(ctx, "create_order", func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO orders (user_id, total_amount, shipping_address, payment_method, status)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING order_id, order_date`

		if err := tx.GetContext(ctx, order, query,
			order.UserID, order.TotalAmount, order.ShippingAddress, order.PaymentMethod, order.Status); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for i := range items {
			items[i].OrderID = order.ID
			if err := tx.GetContext(ctx, &items[i].ID, `
				INSERT INTO order_items (order_id, product_id, quantity, unit_price)
				VALUES ($1, $2, $3, $4)
				RETURNING order_item_id`,
				items[i].OrderID, items[i].ProductID, items[i].Quantity, items[i].UnitPrice); err != nil {
				return fmt.Errorf("insert order item for product %d: %w", items[i].ProductID, err)
			}
		}
		return nil
	})
}

// GetOrdersWithItemsByUserID returns the user's orders newest first, each
// with its lines and product names.
func (s *Store) GetOrdersWithItemsByUserID(ctx context.Context, userID int64) ([]models.OrderWithItems, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders, `
		SELECT order_id, user_id, order_date, total_amount, shipping_address, payment_method, status
		FROM orders
		WHERE user_id = $1
		ORDER BY order_date DESC, order_id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}

	result := make([]models.OrderWithItems, 0, len(orders))
	if len(orders) == 0 {
		return result, nil
	}

	orderIDs := make([]int64, len(orders))
	for i, o := range orders {
		orderIDs[i] = o.ID
	}

	query, args, err := sqlx.In(`
		SELECT oi.order_id, oi.product_id, COALESCE(cp.name, '') AS product_name, oi.quantity, oi.unit_price
		FROM order_items oi
		LEFT JOIN coffee_products cp ON cp.product_id = oi.product_id
		WHERE oi.order_id IN (?)
		ORDER BY oi.order_item_id`, orderIDs)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var lines []models.OrderLine
	if err := s.db.SelectContext(ctx, &lines, query, args...); err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}

	byOrder := make(map[int64][]models.OrderLine, len(orders))
	for _, line := range lines {
		byOrder[line.OrderID] = append(byOrder[line.OrderID], line)
	}

	for _, o := range orders {
		items := byOrder[o.ID]
		if items == nil {
			items = []models.OrderLine{}
		}
		result = append(result, models.OrderWithItems{Order: o, ItemCount: len(items), Items: items})
	}
	return result, nil
}

// HasPurchased reports whether userID owns a completed order containing productID.
func (s *Store) HasPurchased(ctx context.Context, userID, productID int64) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1
			FROM order_items oi
			JOIN orders o ON o.order_id = oi.order_id
			WHERE o.user_id = $1 AND oi.product_id = $2 AND o.status = $3
		)`, userID, productID, models.OrderStatusCompleted)
	return exists, err
}
