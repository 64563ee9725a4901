package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"furniture-backoffice/internal/auth"
	"furniture-backoffice/internal/ledger"
	"furniture-backoffice/internal/models"
	"furniture-backoffice/internal/tabular"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type stockRequest struct {
	Kind     models.MovementKind `json:"kind" binding:"required"`
	Quantity *int                `json:"quantity" binding:"required"`
	Reason   string              `json:"reason"`
}

type thresholdRequest struct {
	Threshold *int `json:"threshold" binding:"required"`
}

type barcodeRequest struct {
	Code string `json:"code"`
}

type bulkRequest struct {
	ProductIDs []string        `json:"product_ids" binding:"required,min=1"`
	Mode       ledger.BulkMode `json:"mode" binding:"required"`
	Value      decimal.Decimal `json:"value"`
	Reason     string          `json:"reason"`
}

type productRequest struct {
	ID                string          `json:"id" binding:"required"`
	Name              string          `json:"name" binding:"required"`
	Price             decimal.Decimal `json:"price"`
	Category          string          `json:"category"`
	Subcategory       string          `json:"subcategory"`
	LowStockThreshold int             `json:"low_stock_threshold"`
}

// listProducts is the public catalog
func (h *Handler) listProducts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"products": h.Ledger.Products()})
}

func (h *Handler) getProduct(c *gin.Context) {
	p, ok := h.Ledger.Product(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}
	c.JSON(http.StatusOK, p)
}

// listInventory filters by status=low|out, all products otherwise
func (h *Handler) listInventory(c *gin.Context) {
	var products []models.Product
	switch c.Query("status") {
	case "low":
		products = h.Ledger.LowStockProducts()
	case "out":
		products = h.Ledger.OutOfStockProducts()
	case "":
		products = h.Ledger.Products()
	default:
		badRequest(c, "status must be low or out", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products, "count": len(products)})
}

func (h *Handler) getInventoryProduct(c *gin.Context) {
	p, ok := h.Ledger.Product(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"product":     p,
		"signal":      models.SignalFor(p),
		"stock_value": p.StockValue(),
	})
}

func (h *Handler) upsertProduct(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	p, created, err := h.Ledger.UpsertProduct(c.Request.Context(), models.Product{
		ID:                strings.TrimSpace(req.ID),
		Name:              strings.TrimSpace(req.Name),
		Price:             req.Price,
		Category:          req.Category,
		Subcategory:       req.Subcategory,
		LowStockThreshold: req.LowStockThreshold,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, p)
}

func (h *Handler) productMovements(c *gin.Context) {
	id := c.Param("id")
	if _, ok := h.Ledger.Product(id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"movements": h.Ledger.ProductMovements(id)})
}

// updateStock records one movement. A reason is required and the quantity
// must be positive, except that an adjustment may set stock to zero.
func (h *Handler) updateStock(c *gin.Context) {
	var req stockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Reason) == "" {
		badRequest(c, "reason is required", nil)
		return
	}
	if !req.Kind.Valid() {
		badRequest(c, fmt.Sprintf("unknown movement kind %q", req.Kind), nil)
		return
	}
	quantity := *req.Quantity
	if quantity < 0 || (quantity == 0 && req.Kind != models.MovementAdjustment) {
		badRequest(c, "quantity must be positive", nil)
		return
	}

	res, err := h.Ledger.UpdateStock(c.Request.Context(), c.Param("id"), quantity, req.Kind,
		strings.TrimSpace(req.Reason), auth.Username(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !res.Found {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) updateThreshold(c *gin.Context) {
	var req thresholdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	found, err := h.Ledger.UpdateLowStockThreshold(c.Request.Context(), c.Param("id"), *req.Threshold)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}
	p, _ := h.Ledger.Product(c.Param("id"))
	c.JSON(http.StatusOK, p)
}

// assignBarcode stores the given code, or generates one when none is sent
func (h *Handler) assignBarcode(c *gin.Context) {
	var req barcodeRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "Invalid request body", err)
		return
	}

	var (
		p   models.Product
		err error
	)
	if strings.TrimSpace(req.Code) == "" {
		p, err = h.Barcodes.GenerateAndAssign(c.Request.Context(), c.Param("id"))
	} else {
		p, err = h.Barcodes.Assign(c.Request.Context(), c.Param("id"), req.Code)
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) lookupBarcode(c *gin.Context) {
	p, mode, ok := h.Barcodes.Lookup(c.Param("code"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no product for code"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": p, "mode": mode})
}

func (h *Handler) bulkAdjust(c *gin.Context) {
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Reason) == "" {
		badRequest(c, "reason is required", nil)
		return
	}

	res, err := h.Ledger.BulkAdjust(c.Request.Context(), req.ProductIDs, req.Mode, req.Value,
		strings.TrimSpace(req.Reason), auth.Username(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// listMovements pages the movement log, newest first
func (h *Handler) listMovements(c *gin.Context) {
	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		badRequest(c, "invalid limit", err)
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		badRequest(c, "invalid offset", err)
		return
	}

	kind := models.MovementKind(c.Query("kind"))
	if kind != "" && !kind.Valid() {
		badRequest(c, fmt.Sprintf("unknown movement kind %q", kind), nil)
		return
	}

	movements, total := h.Ledger.Movements(ledger.MovementFilter{
		ProductID: c.Query("product_id"),
		Kind:      kind,
		Limit:     limit,
		Offset:    offset,
	})
	c.JSON(http.StatusOK, gin.H{
		"movements": movements,
		"total":     total,
		"limit":     limit,
		"offset":    offset,
	})
}

func (h *Handler) valuation(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"total":         h.Ledger.TotalInventoryValue(),
		"by_category":   h.Ledger.InventoryValueByCategory(),
		"low_stock":     len(h.Ledger.LowStockProducts()),
		"out_of_stock":  len(h.Ledger.OutOfStockProducts()),
		"product_count": len(h.Ledger.Products()),
	})
}

func (h *Handler) exportCatalog(c *gin.Context) {
	format, err := tabular.ParseFormat(c.DefaultQuery("format", "csv"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := h.Catalog.Export(c.Request.Context(), &buf, format); err != nil {
		h.respondError(c, err)
		return
	}

	filename := fmt.Sprintf("products-%s.%s", time.Now().Format("20060102"), format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}

// importCatalog reads a multipart "file"; the format comes from the query or the file extension
func (h *Handler) importCatalog(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "file is required", err)
		return
	}

	name := c.Query("format")
	if name == "" {
		name = strings.TrimPrefix(filepath.Ext(fh.Filename), ".")
	}
	format, err := tabular.ParseFormat(name)
	if err != nil {
		h.respondError(c, err)
		return
	}

	f, err := fh.Open()
	if err != nil {
		badRequest(c, "cannot read file", err)
		return
	}
	defer f.Close()

	report, err := h.Catalog.Import(c.Request.Context(), f, format, auth.Username(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return n, nil
}
