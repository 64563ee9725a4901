package api

import (
	"net/http"

	"furniture-backoffice/internal/auth"
	"furniture-backoffice/internal/models"
	"furniture-backoffice/internal/money"
	"furniture-backoffice/internal/pos"
	"furniture-backoffice/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// receipt holds the sale amounts formatted for printing
type receipt struct {
	Subtotal string `json:"subtotal"`
	Discount string `json:"discount"`
	Tax      string `json:"tax"`
	Total    string `json:"total"`
	Received string `json:"received"`
	Change   string `json:"change"`
}

type saleResponse struct {
	*models.Sale
	Receipt receipt `json:"receipt"`
}

func newSaleResponse(sale *models.Sale) saleResponse {
	return saleResponse{
		Sale: sale,
		Receipt: receipt{
			Subtotal: money.Format(sale.Subtotal, sale.Currency),
			Discount: money.Format(sale.DiscountAmount, sale.Currency),
			Tax:      money.Format(sale.Tax, sale.Currency),
			Total:    money.Format(sale.Total, sale.Currency),
			Received: money.Format(sale.Payment.Received, sale.Currency),
			Change:   money.Format(sale.Payment.Change, sale.Currency),
		},
	}
}

type itemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity"`
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

type scanRequest struct {
	Code string `json:"code" binding:"required"`
}

type discountRequest struct {
	Type  pos.DiscountType `json:"type" binding:"required"`
	Value decimal.Decimal  `json:"value"`
}

func registerCart(c *gin.Context, cart *pos.Cart) {
	c.JSON(http.StatusOK, gin.H{
		"cart":   cart,
		"totals": cart.Totals(),
	})
}

func (h *Handler) getRegisterCart(c *gin.Context) {
	cart, err := h.Sales.GetCart(c.Request.Context(), c.Param("registerID"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	registerCart(c, cart)
}

func (h *Handler) clearRegisterCart(c *gin.Context) {
	cart, err := h.Sales.ClearCart(c.Request.Context(), c.Param("registerID"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	registerCart(c, cart)
}

func (h *Handler) addRegisterItem(c *gin.Context) {
	var req itemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	cart, err := h.Sales.AddItem(c.Request.Context(), c.Param("registerID"), req.ProductID, req.Quantity)
	if err != nil {
		h.respondError(c, err)
		return
	}
	registerCart(c, cart)
}

func (h *Handler) scanRegisterItem(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	cart, p, err := h.Sales.Scan(c.Request.Context(), c.Param("registerID"), req.Code)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"scanned": p,
		"cart":    cart,
		"totals":  cart.Totals(),
	})
}

func (h *Handler) updateRegisterQuantity(c *gin.Context) {
	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	cart, err := h.Sales.UpdateQuantity(c.Request.Context(), c.Param("registerID"), c.Param("productID"), req.Quantity)
	if err != nil {
		h.respondError(c, err)
		return
	}
	registerCart(c, cart)
}

func (h *Handler) removeRegisterItem(c *gin.Context) {
	cart, err := h.Sales.RemoveItem(c.Request.Context(), c.Param("registerID"), c.Param("productID"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	registerCart(c, cart)
}

func (h *Handler) setRegisterDiscount(c *gin.Context) {
	var req discountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	cart, err := h.Sales.SetDiscount(c.Request.Context(), c.Param("registerID"), req.Type, req.Value)
	if err != nil {
		h.respondError(c, err)
		return
	}
	registerCart(c, cart)
}

// checkoutRegister settles the cart; the Idempotency-Key header makes retries safe
func (h *Handler) checkoutRegister(c *gin.Context) {
	var req service.SaleCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	sale, err := h.Sales.Checkout(c.Request.Context(), c.Param("registerID"), req,
		auth.Username(c), c.GetHeader("Idempotency-Key"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newSaleResponse(sale))
}

func (h *Handler) getSale(c *gin.Context) {
	sale, err := h.Sales.GetSale(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSaleResponse(sale))
}
