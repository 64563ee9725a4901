package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"furniture-backoffice/internal/auth"
	"furniture-backoffice/internal/barcode"
	"furniture-backoffice/internal/checkout"
	"furniture-backoffice/internal/ledger"
	"furniture-backoffice/internal/pos"
	"furniture-backoffice/internal/service"
	"furniture-backoffice/internal/store"
	"furniture-backoffice/internal/tabular"
	"furniture-backoffice/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// HealthCheck reports whether a dependency is reachable
type HealthCheck func(ctx context.Context) error

// Deps are the collaborators served over HTTP
type Deps struct {
	Ledger   *ledger.Ledger
	Barcodes *barcode.Directory
	Sales    *service.SaleService
	Orders   *service.OrderService
	Catalog  *service.CatalogService
	Users    *auth.Directory
	Tokens   *auth.JWTManager
	Checks   map[string]HealthCheck
}

// Handler contains HTTP handlers
type Handler struct {
	Deps
	logger *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(deps Deps) *Handler {
	return &Handler{
		Deps:   deps,
		logger: util.Component("api"),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/auth/login", h.login)

		v1.GET("/products", h.listProducts)
		v1.GET("/products/:id", h.getProduct)

		carts := v1.Group("/carts/:cartID")
		carts.GET("", h.getStoreCart)
		carts.DELETE("", h.clearStoreCart)
		carts.POST("/items", h.addStoreItem)
		carts.PUT("/items/:productID", h.setStoreQuantity)
		carts.DELETE("/items/:productID", h.removeStoreItem)
		carts.GET("/quote", h.quoteStoreCart)

		v1.POST("/orders", h.placeOrder)
		v1.GET("/orders/:id", h.getOrder)
	}

	secured := v1.Group("", auth.Middleware(h.Tokens))

	admin := secured.Group("/admin/inventory", auth.RequireRole(auth.RoleAdmin))
	{
		admin.GET("/products", h.listInventory)
		admin.POST("/products", h.upsertProduct)
		admin.GET("/products/:id", h.getInventoryProduct)
		admin.GET("/products/:id/movements", h.productMovements)
		admin.POST("/products/:id/stock", h.updateStock)
		admin.PUT("/products/:id/threshold", h.updateThreshold)
		admin.POST("/products/:id/barcode", h.assignBarcode)
		admin.GET("/barcodes/:code", h.lookupBarcode)
		admin.POST("/bulk-adjust", h.bulkAdjust)
		admin.GET("/movements", h.listMovements)
		admin.GET("/valuation", h.valuation)
		admin.GET("/export", h.exportCatalog)
		admin.POST("/import", h.importCatalog)
	}

	register := secured.Group("/pos", auth.RequireRole(auth.RoleAdmin, auth.RoleCashier))
	{
		cart := register.Group("/registers/:registerID/cart")
		cart.GET("", h.getRegisterCart)
		cart.DELETE("", h.clearRegisterCart)
		cart.POST("/items", h.addRegisterItem)
		cart.POST("/scan", h.scanRegisterItem)
		cart.PUT("/items/:productID", h.updateRegisterQuantity)
		cart.DELETE("/items/:productID", h.removeRegisterItem)
		cart.PUT("/discount", h.setRegisterDiscount)
		cart.POST("/checkout", h.checkoutRegister)

		register.GET("/sales/:id", h.getSale)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck runs every registered dependency check
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, check := range h.Checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"failed": failed,
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrProductNotFound),
		errors.Is(err, service.ErrProductNotFound),
		errors.Is(err, service.ErrItemNotInCart),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrBarcodeTaken),
		errors.Is(err, barcode.ErrNoFreeBarcode),
		errors.Is(err, service.ErrCheckoutInProgress),
		errors.Is(err, service.ErrInsufficientStock):
		return http.StatusConflict
	case errors.Is(err, pos.ErrInsufficientPayment),
		errors.Is(err, service.ErrPaymentDeclined),
		errors.Is(err, service.ErrPaymentMismatch):
		return http.StatusPaymentRequired
	case errors.Is(err, ledger.ErrInvalidKind),
		errors.Is(err, ledger.ErrNegativeQuantity),
		errors.Is(err, ledger.ErrNegativeThreshold),
		errors.Is(err, ledger.ErrInvalidBulkMode),
		errors.Is(err, ledger.ErrFractionalBulk),
		errors.Is(err, ledger.ErrEmptyBarcode),
		errors.Is(err, ledger.ErrInvalidProduct),
		errors.Is(err, pos.ErrInvalidDiscount),
		errors.Is(err, pos.ErrEmptyCart),
		errors.Is(err, pos.ErrUnknownPaymentMethod),
		errors.Is(err, pos.ErrMissingConfirmation),
		errors.Is(err, service.ErrEmptyCart),
		errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, checkout.ErrInvalidQuantity),
		errors.Is(err, tabular.ErrUnsupportedFormat),
		errors.Is(err, tabular.ErrNoHeader):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, message string, err error) {
	body := gin.H{"error": message}
	if err != nil {
		body["details"] = err.Error()
	}
	c.JSON(http.StatusBadRequest, body)
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
