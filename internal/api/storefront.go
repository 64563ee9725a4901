package api

import (
	"net/http"

	"furniture-backoffice/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) getStoreCart(c *gin.Context) {
	view, err := h.Orders.GetCart(c.Request.Context(), c.Param("cartID"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) clearStoreCart(c *gin.Context) {
	if err := h.Orders.ClearCart(c.Request.Context(), c.Param("cartID")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) addStoreItem(c *gin.Context) {
	var req itemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	view, err := h.Orders.AddItem(c.Request.Context(), c.Param("cartID"), req.ProductID, req.Quantity)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) setStoreQuantity(c *gin.Context) {
	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	view, err := h.Orders.SetQuantity(c.Request.Context(), c.Param("cartID"), c.Param("productID"), req.Quantity)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) removeStoreItem(c *gin.Context) {
	view, err := h.Orders.RemoveItem(c.Request.Context(), c.Param("cartID"), c.Param("productID"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) quoteStoreCart(c *gin.Context) {
	view, err := h.Orders.GetCart(c.Request.Context(), c.Param("cartID"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view.Quote)
}

// placeOrder handles order creation
func (h *Handler) placeOrder(c *gin.Context) {
	var req service.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	order, err := h.Orders.PlaceOrder(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	order, items, err := h.Orders.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order": order,
		"items": items,
	})
}
