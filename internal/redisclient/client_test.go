package redisclient

import (
	"context"
	"testing"
	"time"

	"coffee-shop/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewClientWithRedis(rdb), mr
}

func TestKeyLayout(t *testing.T) {
	assert.Equal(t, "purchase:1:5", purchaseKey(1, 5))
	assert.Equal(t, "idempotency:order:7:abc-123", idempotencyKey(7, "abc-123"))
	assert.Equal(t, "reviews:product:5:version", reviewsVersionKey(5))
	assert.Equal(t, "reviews:product:5:v3", reviewsKey(5, 3))
}

func TestPurchaseFacts(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()

	ok, err := c.IsPurchased(ctx, 1, 5)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.MarkPurchased(ctx, 1, 5, time.Minute))

	ok, err = c.IsPurchased(ctx, 1, 5)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, time.Minute, mr.TTL("purchase:1:5"))

	mr.FastForward(2 * time.Minute)
	ok, err = c.IsPurchased(ctx, 1, 5)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReserveOrderKey_FirstCallerHoldsKey(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()

	got, reserved, err := c.ReserveOrderKey(ctx, 7, "k1", "fp-a", time.Hour)
	require.NoError(t, err)
	assert.True(t, reserved)
	assert.True(t, got.Pending())
	assert.Equal(t, time.Hour, mr.TTL("idempotency:order:7:k1"))

	got, reserved, err = c.ReserveOrderKey(ctx, 7, "k1", "fp-b", time.Hour)
	require.NoError(t, err)
	assert.False(t, reserved)
	assert.True(t, got.Pending())
	assert.Equal(t, "fp-a", got.Fingerprint)
}

func TestReserveOrderKey_ScopedPerUser(t *testing.T) {
	c, _ := setupTestRedis(t)
	ctx := context.Background()

	_, reserved, err := c.ReserveOrderKey(ctx, 1, "shared", "fp", time.Hour)
	require.NoError(t, err)
	assert.True(t, reserved)

	_, reserved, err = c.ReserveOrderKey(ctx, 2, "shared", "fp", time.Hour)
	require.NoError(t, err)
	assert.True(t, reserved)
}

func TestCompleteOrderKey_ReplaysOrderID(t *testing.T) {
	c, _ := setupTestRedis(t)
	ctx := context.Background()

	_, _, err := c.ReserveOrderKey(ctx, 7, "k1", "fp", time.Hour)
	require.NoError(t, err)
	require.NoError(t, c.CompleteOrderKey(ctx, 7, "k1", "fp", 42, time.Hour))

	got, reserved, err := c.ReserveOrderKey(ctx, 7, "k1", "fp", time.Hour)
	require.NoError(t, err)
	assert.False(t, reserved)
	assert.False(t, got.Pending())
	assert.Equal(t, models.OrderReservation{OrderID: 42, Fingerprint: "fp"}, got)
}

func TestReleaseOrderKey_AllowsRetry(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()

	_, _, err := c.ReserveOrderKey(ctx, 7, "k1", "fp", time.Hour)
	require.NoError(t, err)
	require.NoError(t, c.ReleaseOrderKey(ctx, 7, "k1"))
	assert.False(t, mr.Exists("idempotency:order:7:k1"))

	_, reserved, err := c.ReserveOrderKey(ctx, 7, "k1", "fp", time.Hour)
	require.NoError(t, err)
	assert.True(t, reserved)
}

func TestReserveOrderKey_CorruptValue(t *testing.T) {
	c, mr := setupTestRedis(t)
	require.NoError(t, mr.Set("idempotency:order:7:bad", "not-json"))

	_, _, err := c.ReserveOrderKey(context.Background(), 7, "bad", "fp", time.Hour)
	assert.Error(t, err)
}

func TestReviewCacheRoundTripAndInvalidate(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()

	type entry struct {
		Rating int `json:"rating"`
	}
	version, err := c.ReviewsVersion(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(0), version)

	require.NoError(t, c.SetCachedReviews(ctx, 5, version, []entry{{Rating: 4}}, time.Minute))
	assert.True(t, mr.Exists("reviews:product:5:v0"))

	var got []entry
	hit, err := c.GetCachedReviews(ctx, 5, version, &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []entry{{Rating: 4}}, got)

	require.NoError(t, c.InvalidateReviews(ctx, 5))
	version, err = c.ReviewsVersion(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	hit, err = c.GetCachedReviews(ctx, 5, version, &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestReviewCache_WriteUnderOldVersionIsNotServed(t *testing.T) {
	c, _ := setupTestRedis(t)
	ctx := context.Background()

	type entry struct {
		Rating int `json:"rating"`
	}
	readAt, err := c.ReviewsVersion(ctx, 5)
	require.NoError(t, err)

	// a review lands while the stale list is still in flight
	require.NoError(t, c.InvalidateReviews(ctx, 5))
	require.NoError(t, c.SetCachedReviews(ctx, 5, readAt, []entry{{Rating: 1}}, time.Minute))

	current, err := c.ReviewsVersion(ctx, 5)
	require.NoError(t, err)
	var got []entry
	hit, err := c.GetCachedReviews(ctx, 5, current, &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestPingFailsWhenServerDown(t *testing.T) {
	c, mr := setupTestRedis(t)
	require.NoError(t, c.Ping(context.Background()))

	mr.Close()
	assert.Error(t, c.Ping(context.Background()))
}
