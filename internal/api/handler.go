package api

import (
	"context"
	"net/http"
	"time"

	"storefront/internal/service"
	"storefront/internal/util"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Pinger is a dependency checked by the readiness probe
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services bundles the application services the handlers call
type Services struct {
	Auth        *service.AuthService
	Users       *service.UserService
	Catalog     *service.CatalogService
	Carts       *service.CartService
	Checkouts   *service.CheckoutService
	Orders      *service.OrderService
	Subscribers *service.SubscriberService
}

// Options tunes the router
type Options struct {
	CORSOrigin    string
	AuthPerMinute int
	AuthBurst     int
	// Dependencies reported by /ready, keyed by name
	Dependencies  map[string]Pinger
}

// Handler contains HTTP handlers
type Handler struct {
	auth        *service.AuthService
	users       *service.UserService
	catalog     *service.CatalogService
	carts       *service.CartService
	checkouts   *service.CheckoutService
	orders      *service.OrderService
	subscribers *service.SubscriberService

	opts        Options
	authLimiter *RateLimiter
	logger      *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(svc Services, opts Options) *Handler {
	return &Handler{
		auth:        svc.Auth,
		users:       svc.Users,
		catalog:     svc.Catalog,
		carts:       svc.Carts,
		checkouts:   svc.Checkouts,
		orders:      svc.Orders,
		subscribers: svc.Subscribers,
		opts:        opts,
		authLimiter: NewRateLimiter(opts.AuthPerMinute, opts.AuthBurst),
		logger:      util.GetLogger(),
	}
}

// Close stops background work owned by the handler
func (h *Handler) Close() {
	h.authLimiter.Stop()
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(accessLog(h.logger))
	router.Use(cors.New(h.corsConfig()))

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	base := router.Group("/api")
	auth := h.AuthRequired()

	users := base.Group("/users")
	{
		users.POST("/register", h.authLimiter.Middleware(), h.register)
		users.POST("/login", h.authLimiter.Middleware(), h.login)
		users.POST("/refresh", h.refresh)
		users.POST("/logout", auth, h.logout)
		users.GET("/profile", auth, h.profile)
	}

	products := base.Group("/products")
	{
		products.GET("", h.listProducts)
		products.GET("/best-seller", h.bestSellers)
		products.GET("/new-arrivals", h.newArrivals)
		products.GET("/similar/:id", h.similarProducts)
		products.GET("/:id", h.getProduct)
	}

	cart := base.Group("/cart", h.OptionalAuth())
	{
		cart.GET("", h.getCart)
		cart.POST("", h.addToCart)
		cart.PUT("", h.updateCartItem)
		cart.DELETE("", h.removeFromCart)
		cart.POST("/merge", auth, h.mergeCart)
	}

	checkout := base.Group("/checkout", auth)
	{
		checkout.POST("", h.createCheckout)
		checkout.GET("/:id", h.getCheckout)
		checkout.PUT("/:id/pay", h.payCheckout)
		checkout.POST("/:id/finalize", h.finalizeCheckout)
	}

	orders := base.Group("/orders", auth)
	{
		orders.POST("", h.createOrder)
		orders.GET("/my-orders", h.myOrders)
		orders.GET("/:id", h.getOrder)
	}

	base.POST("/subscribe", h.subscribe)

	h.setupAdminRoutes(base.Group("/admin", auth))
}

func (h *Handler) corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	if h.opts.CORSOrigin == "" || h.opts.CORSOrigin == "*" {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = []string{h.opts.CORSOrigin}
		cfg.AllowCredentials = true
	}
	cfg.AddAllowHeaders("Authorization", "Idempotency-Key")
	return cfg
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every dependency and reports 503 if any is down
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := gin.H{}
	for name, dep := range h.opts.Dependencies {
		if err := dep.Ping(ctx); err != nil {
			h.logger.Warn("Readiness check failed", zap.String("dependency", name), zap.Error(err))
			checks[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "up"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not ready"
	}
	c.JSON(status, gin.H{
		"status": state,
		"checks": checks,
		"time":   time.Now().Unix(),
	})
}
