package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"coffee-shop/internal/apperr"
	"coffee-shop/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceOrder_CreatesCompletedOrderAtCatalogPrice(t *testing.T) {
	f := newFixture(t)

	resp, err := f.orders.PlaceOrder(context.Background(), &PlaceOrderRequest{
		UserID:          alice,
		ProductID:       yirgacheffe,
		Quantity:        2,
		ShippingAddress: "12 Roastery Lane",
	})
	require.NoError(t, err)
	assert.NotZero(t, resp.OrderID)

	orders := f.mem.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, resp.OrderID, orders[0].ID)
	assert.Equal(t, models.OrderStatusCompleted, orders[0].Status)
	assert.Equal(t, "GCash", orders[0].PaymentMethod)
	assert.Equal(t, "25", orders[0].TotalAmount.String())

	items := f.mem.Items()
	require.Len(t, items, 1)
	assert.Equal(t, resp.OrderID, items[0].OrderID)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, "12.5", items[0].UnitPrice.String())
}

func TestPlaceOrder_DefaultsQuantityAndKeepsPaymentMethod(t *testing.T) {
	f := newFixture(t)

	_, err := f.orders.PlaceOrder(context.Background(), &PlaceOrderRequest{
		UserID:        alice,
		ProductID:     sumatra,
		PaymentMethod: "Credit Card",
	})
	require.NoError(t, err)

	orders := f.mem.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, "Credit Card", orders[0].PaymentMethod)
	assert.Equal(t, "18", orders[0].TotalAmount.String())
	assert.Equal(t, 1, f.mem.Items()[0].Quantity)
}

func TestPlaceOrder_UnitPriceIsFrozenAtPurchase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orders.PlaceOrder(ctx, &PlaceOrderRequest{UserID: alice, ProductID: colombia})
	require.NoError(t, err)

	p := f.mem.Product(colombia)
	p.Price = decimal.RequireFromString("99.99")
	f.mem.AddProduct(*p)

	history, err := f.orders.ListOrders(ctx, alice)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Len(t, history[0].Items, 1)
	assert.Equal(t, "15.25", history[0].Items[0].UnitPrice.String())
	assert.Equal(t, "Colombia Huila", history[0].Items[0].ProductName)
	assert.Equal(t, 1, history[0].ItemCount)
}

func TestPlaceOrder_Validation(t *testing.T) {
	f := newFixture(t)

	cases := map[string]*PlaceOrderRequest{
		"missing user":      {ProductID: yirgacheffe},
		"missing product":   {UserID: alice},
		"negative quantity": {UserID: alice, ProductID: yirgacheffe, Quantity: -1},
		"quantity too large": {UserID: alice, ProductID: yirgacheffe, Quantity: maxOrderQuantity + 1},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.orders.PlaceOrder(context.Background(), req)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
	assert.Empty(t, f.mem.Orders())
}

func TestPlaceOrder_UnknownProduct(t *testing.T) {
	f := newFixture(t)

	_, err := f.orders.PlaceOrder(context.Background(), &PlaceOrderRequest{UserID: alice, ProductID: 999})
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Equal(t, "Product not found", apperr.PublicMessage(err, ""))
	assert.Empty(t, f.mem.Orders())
}

func TestPlaceOrder_ItemFailureLeavesNoOrder(t *testing.T) {
	f := newFixture(t)
	f.mem.FailOrderItemInsert = true

	_, err := f.orders.PlaceOrder(context.Background(), &PlaceOrderRequest{UserID: alice, ProductID: yirgacheffe})
	require.Error(t, err)
	assert.Equal(t, apperr.KindTransaction, apperr.KindOf(err))
	assert.Equal(t, "Failed to create order", apperr.PublicMessage(err, ""))

	assert.Empty(t, f.mem.Orders())
	assert.Empty(t, f.mem.Items())
	assert.Empty(t, f.events.OrdersPlaced)

	purchased, err := f.ledger.HasPurchased(context.Background(), alice, yirgacheffe)
	require.NoError(t, err)
	assert.False(t, purchased)
}

func TestPlaceOrder_IdempotencyKeyReplaysFirstOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.orders.PlaceOrder(ctx, &PlaceOrderRequest{UserID: alice, ProductID: sumatra, IdempotencyKey: "req-1"})
	require.NoError(t, err)
	second, err := f.orders.PlaceOrder(ctx, &PlaceOrderRequest{UserID: alice, ProductID: sumatra, IdempotencyKey: "req-1"})
	require.NoError(t, err)

	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Len(t, f.mem.Orders(), 1)
	assert.Len(t, f.events.OrdersPlaced, 1)

	third, err := f.orders.PlaceOrder(ctx, &PlaceOrderRequest{UserID: alice, ProductID: sumatra})
	require.NoError(t, err)
	assert.NotEqual(t, first.OrderID, third.OrderID)
}

func TestPlaceOrder_QuantityUpperBound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orders.PlaceOrder(ctx, &PlaceOrderRequest{UserID: alice, ProductID: colombia, Quantity: 1_000_000})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, "Quantity must be between 1 and 1000", apperr.PublicMessage(err, ""))
	assert.Empty(t, f.mem.Orders())

	_, err = f.orders.PlaceOrder(ctx, &PlaceOrderRequest{UserID: alice, ProductID: colombia, Quantity: maxOrderQuantity})
	require.NoError(t, err)
	assert.Equal(t, "15250", f.mem.Orders()[0].TotalAmount.String())
}

func TestPlaceOrder_IdempotencyKeyIsScopedPerUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.orders.PlaceOrder(ctx, &PlaceOrderRequest{UserID: alice, ProductID: sumatra, IdempotencyKey: "checkout"})
	require.NoError(t, err)
	second, err := f.orders.PlaceOrder(ctx, &PlaceOrderRequest{UserID: bob, ProductID: colombia, IdempotencyKey: "checkout"})
	require.NoError(t, err)

	assert.NotEqual(t, first.OrderID, second.OrderID)
	orders := f.mem.Orders()
	require.Len(t, orders, 2)
	assert.Equal(t, alice, orders[0].UserID)
	assert.Equal(t, bob, orders[1].UserID)

	purchased, err := f.ledger.HasPurchased(ctx, bob, colombia)
	require.NoError(t, err)
	assert.True(t, purchased)
}

func TestPlaceOrder_IdempotencyKeyReusedForDifferentOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orders.PlaceOrder(ctx, &PlaceOrderRequest{UserID: alice, ProductID: sumatra, IdempotencyKey: "req-1"})
	require.NoError(t, err)

	_, err = f.orders.PlaceOrder(ctx, &PlaceOrderRequest{UserID: alice, ProductID: colombia, IdempotencyKey: "req-1"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Equal(t, "Idempotency key was already used for a different order", apperr.PublicMessage(err, ""))

	_, err = f.orders.PlaceOrder(ctx, &PlaceOrderRequest{UserID: alice, ProductID: sumatra, Quantity: 2, IdempotencyKey: "req-1"})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	assert.Len(t, f.mem.Orders(), 1)
}

func TestPlaceOrder_ConcurrentRetriesCreateOneOrder(t *testing.T) {
	f := newFixture(t)
	const attempts = 8

	var wg sync.WaitGroup
	ids := make([]int64, attempts)
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := f.orders.PlaceOrder(context.Background(), &PlaceOrderRequest{
				UserID:         alice,
				ProductID:      sumatra,
				IdempotencyKey: "double-click",
			})
			errs[i] = err
			if err == nil {
				ids[i] = resp.OrderID
			}
		}(i)
	}
	wg.Wait()

	orders := f.mem.Orders()
	require.Len(t, orders, 1)
	assert.Len(t, f.events.OrdersPlaced, 1)

	for i := 0; i < attempts; i++ {
		if errs[i] != nil {
			assert.Equal(t, apperr.KindConflict, apperr.KindOf(errs[i]))
			continue
		}
		assert.Equal(t, orders[0].ID, ids[i])
	}
}

func TestPlaceOrder_PendingKeyIsConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := &PlaceOrderRequest{UserID: alice, ProductID: sumatra, IdempotencyKey: "in-flight"}
	require.NoError(t, req.normalize("GCash"))
	_, reserved, err := f.cache.ReserveOrderKey(ctx, alice, "in-flight", req.fingerprint(), time.Hour)
	require.NoError(t, err)
	require.True(t, reserved)

	_, err = f.orders.PlaceOrder(ctx, &PlaceOrderRequest{UserID: alice, ProductID: sumatra, IdempotencyKey: "in-flight"})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Equal(t, "An order with this idempotency key is still being processed", apperr.PublicMessage(err, ""))
	assert.Empty(t, f.mem.Orders())
}

func TestPlaceOrder_FailedOrderReleasesIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mem.FailOrderItemInsert = true

	req := func() *PlaceOrderRequest {
		return &PlaceOrderRequest{UserID: alice, ProductID: yirgacheffe, IdempotencyKey: "retry-me"}
	}
	_, err := f.orders.PlaceOrder(ctx, req())
	assert.Equal(t, apperr.KindTransaction, apperr.KindOf(err))
	assert.False(t, f.mr.Exists("idempotency:order:1:retry-me"))

	f.mem.FailOrderItemInsert = false
	resp, err := f.orders.PlaceOrder(ctx, req())
	require.NoError(t, err)
	require.Len(t, f.mem.Orders(), 1)
	assert.Equal(t, resp.OrderID, f.mem.Orders()[0].ID)
	assert.True(t, f.mr.Exists("idempotency:order:1:retry-me"))
}

func TestPlaceOrder_PublishesOrderPlaced(t *testing.T) {
	f := newFixture(t)

	resp, err := f.orders.PlaceOrder(context.Background(), &PlaceOrderRequest{UserID: bob, ProductID: colombia, Quantity: 3})
	require.NoError(t, err)

	require.Len(t, f.events.OrdersPlaced, 1)
	event := f.events.OrdersPlaced[0]
	assert.Equal(t, models.EventTypeOrderPlaced, event.EventType)
	assert.Equal(t, resp.OrderID, event.OrderID)
	assert.Equal(t, bob, event.UserID)
	assert.Equal(t, "45.75", event.TotalAmount.String())
	require.Len(t, event.Items, 1)
	assert.Equal(t, colombia, event.Items[0].ProductID)
}

func TestPlaceOrder_SucceedsWhenRedisIsDown(t *testing.T) {
	f := newFixture(t)
	f.mr.Close()

	resp, err := f.orders.PlaceOrder(context.Background(), &PlaceOrderRequest{UserID: alice, ProductID: sumatra, IdempotencyKey: "k"})
	require.NoError(t, err)
	assert.NotZero(t, resp.OrderID)
}

func TestListOrders_NewestFirstAndScopedToUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.orders.PlaceOrder(ctx, &PlaceOrderRequest{UserID: alice, ProductID: yirgacheffe})
	require.NoError(t, err)
	second, err := f.orders.PlaceOrder(ctx, &PlaceOrderRequest{UserID: alice, ProductID: sumatra})
	require.NoError(t, err)
	_, err = f.orders.PlaceOrder(ctx, &PlaceOrderRequest{UserID: bob, ProductID: sumatra})
	require.NoError(t, err)

	history, err := f.orders.ListOrders(ctx, alice)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second.OrderID, history[0].ID)
	assert.Equal(t, first.OrderID, history[1].ID)

	empty, err := f.orders.ListOrders(ctx, 77)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, err = f.orders.ListOrders(ctx, 0)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
