package api

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"time"

	"coffee-shop/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger is a dependency the readiness probe checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services groups the business services the handlers call.
type Services struct {
	Orders    *service.OrderService
	Ledger    *service.PurchaseLedger
	Reviews   *service.ReviewService
	Catalog   *service.CatalogService
	Favorites *service.FavoriteService
}

// Handler contains HTTP handlers
type Handler struct {
	svc     Services
	limiter *RateLimiter
	checks  map[string]Pinger
}

// NewHandler creates a new HTTP handler. limiter may be nil.
func NewHandler(svc Services, limiter *RateLimiter) *Handler {
	return &Handler{
		svc:     svc,
		limiter: limiter,
		checks:  make(map[string]Pinger),
	}
}

// AddReadinessCheck registers a dependency for /ready.
func (h *Handler) AddReadinessCheck(name string, p Pinger) {
	h.checks[name] = p
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	limited := h.limiter.Middleware()

	api := router.Group("/api")
	{
		api.POST("/orders", limited, h.placeOrder)
		api.GET("/orders", h.listOrders)
		api.GET("/orders/has-purchased", h.hasPurchased)

		api.POST("/reviews", limited, h.submitReview)
		api.GET("/reviews", h.listReviews)
		api.GET("/reviews/featured", h.featuredReviews)

		api.GET("/products", h.listProducts)
		api.GET("/products/featured", h.featuredProducts)

		api.GET("/favorites", h.listFavorites)
		api.POST("/favorites", limited, h.addFavorite)
		api.DELETE("/favorites", limited, h.removeFavorite)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every registered dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	ready := true
	results := gin.H{}
	for _, name := range names {
		if err := h.checks[name].Ping(ctx); err != nil {
			ready = false
			results[name] = err.Error()
			continue
		}
		results[name] = "ok"
	}

	status, label := http.StatusOK, "ready"
	if !ready {
		status, label = http.StatusServiceUnavailable, "not ready"
	}
	c.JSON(status, gin.H{
		"status": label,
		"checks": results,
		"time":   time.Now().Unix(),
	})
}

// queryID parses a positive integer query parameter. Missing or malformed
// values come back as 0 so the service reports them as required.
func queryID(c *gin.Context, name string) int64 {
	id, err := strconv.ParseInt(c.Query(name), 10, 64)
	if err != nil || id < 0 {
		return 0
	}
	return id
}
