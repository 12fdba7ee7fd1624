// Package httpapi exposes the storefront and operator-facing HTTP surface:
// order creation/retrieval, the aggregate inventory view, the payment
// webhook ingress, and admin-gated cancellation, mounted directly on this
// system's own repositories.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"example.com/orderfulfillment/internal/session"
	"example.com/orderfulfillment/internal/webhook"
	"example.com/orderfulfillment/pkg/metrics"
	"example.com/orderfulfillment/pkg/middleware"
)

// ReadinessChecker reports whether the service's dependencies are reachable.
type ReadinessChecker func(ctx context.Context) error

// RouterConfig bundles every handler and middleware dependency the router
// needs to wire.
type RouterConfig struct {
	Orders        *OrdersHandler
	Inventory     *InventoryHandler
	Admin         *AdminHandler
	Webhook       *webhook.Handler
	Sessions      *session.Store
	RateLimit     *middleware.RateLimitMiddleware
	ReadinessCheck ReadinessChecker
	Debug         bool
}

// NewRouter builds the gin engine with the full middleware chain and every
// route group.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(middleware.Recovery())
	engine.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	engine.Use(middleware.TraceContext())
	engine.Use(otelgin.Middleware("orderfulfillment"))
	engine.Use(metrics.GinMetricsMiddleware("orderfulfillment"))
	engine.Use(middleware.RequestLogging())

	engine.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "alive"}) })
	engine.GET("/readyz", func(c *gin.Context) { readinessHandler(c, cfg.ReadinessCheck) })

	v1 := engine.Group("/api/v1")
	if cfg.RateLimit != nil {
		v1.Use(cfg.RateLimit.Handle())
	}

	orders := v1.Group("/orders")
	{
		orders.POST("", cfg.Orders.CreateOrder)
		orders.GET("/:orderId", cfg.Orders.GetOrder)
	}

	v1.GET("/inventory/:productId", cfg.Inventory.GetInventory)

	v1.POST("/webhooks/payment", cfg.Webhook.Handle)

	admin := v1.Group("/admin")
	admin.Use(AdminAuth(cfg.Sessions))
	{
		admin.POST("/orders/:orderId/cancel", cfg.Admin.CancelOrder)
	}

	return engine
}

func readinessHandler(c *gin.Context, check ReadinessChecker) {
	if check == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := check(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
