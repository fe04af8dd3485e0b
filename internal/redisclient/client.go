package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"coffee-shop/internal/models"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client and verifies the connection
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// NewClientWithRedis wraps an existing go-redis client.
func NewClientWithRedis(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks that Redis is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func purchaseKey(userID, productID int64) string {
	return fmt.Sprintf("purchase:%d:%d", userID, productID)
}

func idempotencyKey(userID int64, key string) string {
	return fmt.Sprintf("idempotency:order:%d:%s", userID, key)
}

func reviewsVersionKey(productID int64) string {
	return fmt.Sprintf("reviews:product:%d:version", productID)
}

func reviewsKey(productID, version int64) string {
	return fmt.Sprintf("reviews:product:%d:v%d", productID, version)
}

// IsPurchased reports whether a purchase fact is cached for the pair.
// Only positive facts are ever cached, so false means "ask the database".
func (c *Client) IsPurchased(ctx context.Context, userID, productID int64) (bool, error) {
	n, err := c.rdb.Exists(ctx, purchaseKey(userID, productID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkPurchased caches a positive purchase fact.
func (c *Client) MarkPurchased(ctx context.Context, userID, productID int64, ttl time.Duration) error {
	return c.rdb.Set(ctx, purchaseKey(userID, productID), "1", ttl).Err()
}

// ReserveOrderKey claims an idempotency key for userID before the order is
// written. When the key is already held, the existing reservation is
// returned with reserved=false.
func (c *Client) ReserveOrderKey(ctx context.Context, userID int64, key, fingerprint string, ttl time.Duration) (models.OrderReservation, bool, error) {
	placeholder, err := json.Marshal(models.OrderReservation{Fingerprint: fingerprint})
	if err != nil {
		return models.OrderReservation{}, false, err
	}

	redisKey := idempotencyKey(userID, key)
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := c.rdb.SetNX(ctx, redisKey, placeholder, ttl).Result()
		if err != nil {
			return models.OrderReservation{}, false, err
		}
		if ok {
			return models.OrderReservation{Fingerprint: fingerprint}, true, nil
		}

		data, err := c.rdb.Get(ctx, redisKey).Bytes()
		if errors.Is(err, redis.Nil) {
			// expired between SETNX and GET
			continue
		}
		if err != nil {
			return models.OrderReservation{}, false, err
		}

		var existing models.OrderReservation
		if err := json.Unmarshal(data, &existing); err != nil {
			return models.OrderReservation{}, false, fmt.Errorf("corrupt idempotency value %q: %w", data, err)
		}
		return existing, false, nil
	}
	return models.OrderReservation{}, false, fmt.Errorf("idempotency key %q kept expiring", key)
}

// CompleteOrderKey records the committed order id on a reserved key.
func (c *Client) CompleteOrderKey(ctx context.Context, userID int64, key, fingerprint string, orderID int64, ttl time.Duration) error {
	data, err := json.Marshal(models.OrderReservation{OrderID: orderID, Fingerprint: fingerprint})
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, idempotencyKey(userID, key), data, ttl).Err()
}

// ReleaseOrderKey frees a reservation whose order was never written so the
// client can retry with the same key.
func (c *Client) ReleaseOrderKey(ctx context.Context, userID int64, key string) error {
	return c.rdb.Del(ctx, idempotencyKey(userID, key)).Err()
}

// ReviewsVersion returns the current generation of a product's review list.
// Cached lists are stored per generation, so a list read before an
// invalidation can never be served after it.
func (c *Client) ReviewsVersion(ctx context.Context, productID int64) (int64, error) {
	version, err := c.rdb.Get(ctx, reviewsVersionKey(productID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return version, err
}

// GetCachedReviews decodes the cached review list of a product into dest.
func (c *Client) GetCachedReviews(ctx context.Context, productID, version int64, dest interface{}) (bool, error) {
	data, err := c.rdb.Get(ctx, reviewsKey(productID, version)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("decode cached reviews: %w", err)
	}
	return true, nil
}

// SetCachedReviews stores a product's review list under the generation it was read at.
func (c *Client) SetCachedReviews(ctx context.Context, productID, version int64, reviews interface{}, ttl time.Duration) error {
	data, err := json.Marshal(reviews)
	if err != nil {
		return fmt.Errorf("encode reviews: %w", err)
	}
	return c.rdb.Set(ctx, reviewsKey(productID, version), data, ttl).Err()
}

// InvalidateReviews moves the product to a new generation. Lists cached under
// older generations are left to expire.
func (c *Client) InvalidateReviews(ctx context.Context, productID int64) error {
	return c.rdb.Incr(ctx, reviewsVersionKey(productID)).Err()
}
