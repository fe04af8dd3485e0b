package service

import (
	"database/sql"
	"testing"
	"time"

	"coffee-shop/internal/models"
	"coffee-shop/internal/redisclient"
	"coffee-shop/internal/store/storetest"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
)

const (
	alice int64 = 1
	bob   int64 = 2

	yirgacheffe int64 = 10
	sumatra     int64 = 11
	colombia    int64 = 12
)

type fixture struct {
	mem    *storetest.Memory
	mr     *miniredis.Miniredis
	cache  *redisclient.Client
	events *storetest.Recorder

	ledger   *PurchaseLedger
	orders   *OrderService
	reviews  *ReviewService
	catalog  *CatalogService
	favorite *FavoriteService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { rdb.Close() })
	cache := redisclient.NewClientWithRedis(rdb)

	mem := storetest.NewMemory()
	mem.AddUser(alice, "alice@example.com")
	mem.AddUser(bob, "bob.brews@example.com")
	mem.AddProduct(models.Product{
		ID:          yirgacheffe,
		Name:        "Ethiopian Yirgacheffe",
		Description: "Floral and bright",
		Price:       decimal.RequireFromString("12.50"),
		RoastType:   "light",
		Origin:      "Ethiopia",
		Weight:      sql.NullString{String: "340g", Valid: true},
		Rating:      decimal.Zero,
		InStock:     true,
		IsFeatured:  true,
		Tags:        sql.NullString{String: "floral,citrus", Valid: true},
	})
	mem.AddProduct(models.Product{
		ID:          sumatra,
		Name:        "Sumatra Mandheling",
		Description: "Earthy and full bodied",
		Price:       decimal.RequireFromString("18.00"),
		RoastType:   "dark",
		Origin:      "Indonesia",
		Rating:      decimal.RequireFromString("4.8"),
		ReviewCount: 12,
		InStock:     true,
		IsFeatured:  true,
	})
	mem.AddProduct(models.Product{
		ID:          colombia,
		Name:        "Colombia Huila",
		Description: "Caramel sweetness",
		Price:       decimal.RequireFromString("15.25"),
		RoastType:   "medium",
		Origin:      "Colombia",
		InStock:     true,
	})

	events := &storetest.Recorder{}
	ledger := NewPurchaseLedger(mem, cache, time.Hour)

	return &fixture{
		mem:    mem,
		mr:     mr,
		cache:  cache,
		events: events,
		ledger: ledger,
		orders: NewOrderService(mem, cache, events, OrderOptions{
			DefaultPaymentMethod: "GCash",
			IdempotencyTTL:       time.Hour,
		}),
		reviews:  NewReviewService(mem, ledger, cache, events, time.Minute),
		catalog:  NewCatalogService(mem),
		favorite: NewFavoriteService(mem),
	}
}

func strPtr(s string) *string {
	return &s
}
