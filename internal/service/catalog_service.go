package service

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"furniture-backoffice/internal/models"
	"furniture-backoffice/internal/money"
	"furniture-backoffice/internal/tabular"
	"furniture-backoffice/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ImportReason is recorded on adjustment movements created by an import
const ImportReason = "Catalog import"

// CatalogColumns is the export header mapping; import reverses it
var CatalogColumns = []tabular.Column{
	{Key: "id", Header: "Product ID"},
	{Key: "name", Header: "Name"},
	{Key: "price", Header: "Price"},
	{Key: "category", Header: "Category"},
	{Key: "subcategory", Header: "Subcategory"},
	{Key: "stock", Header: "Stock"},
	{Key: "low_stock_threshold", Header: "Low Stock Threshold"},
	{Key: "barcode", Header: "Barcode"},
}

// RowError is an import row that could not be applied. Row counts data rows from 1.
type RowError struct {
	Row       int    `json:"row"`
	ProductID string `json:"product_id,omitempty"`
	Message   string `json:"message"`
}

// ImportReport summarises a catalog import
type ImportReport struct {
	Created  int        `json:"created"`
	Updated  int        `json:"updated"`
	Adjusted int        `json:"adjusted"`
	Errors   []RowError `json:"errors"`
}

// CatalogService exports the catalog and imports edits back into the ledger
type CatalogService struct {
	ledger StockLedger
	logger *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(ledger StockLedger) *CatalogService {
	return &CatalogService{
		ledger: ledger,
		logger: util.Component("catalog"),
	}
}

// Export writes every product in catalog order
func (cs *CatalogService) Export(ctx context.Context, w io.Writer, format tabular.Format) error {
	_, span := util.StartSpan(ctx, "CatalogService.Export", attribute.String("format", string(format)))
	defer span.End()

	products := cs.ledger.Products()
	rows := make([]tabular.Row, 0, len(products))
	for _, p := range products {
		rows = append(rows, tabular.Row{
			"id":                  p.ID,
			"name":                p.Name,
			"price":               p.Price.StringFixed(2),
			"category":            p.Category,
			"subcategory":         p.Subcategory,
			"stock":               strconv.Itoa(p.Stock),
			"low_stock_threshold": strconv.Itoa(p.LowStockThreshold),
			"barcode":             p.BarcodeValue(),
		})
	}

	var err error
	switch format {
	case tabular.FormatCSV:
		err = tabular.WriteCSV(w, CatalogColumns, rows)
	case tabular.FormatXLSX:
		err = tabular.WriteXLSX(w, "Products", CatalogColumns, rows)
	default:
		err = tabular.ErrUnsupportedFormat
	}
	if err != nil {
		util.SpanError(span, err)
		return fmt.Errorf("failed to export catalog: %w", err)
	}
	return nil
}

// Import applies each row: catalog attributes are upserted, a differing stock
// value is recorded as an adjustment and a new barcode is assigned.
// Rows that fail coercion or validation are reported and skipped.
func (cs *CatalogService) Import(ctx context.Context, r io.Reader, format tabular.Format, performedBy string) (*ImportReport, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Import", attribute.String("format", string(format)))
	defer span.End()

	mapping := tabular.ReverseMapping(CatalogColumns)
	var (
		rows []tabular.Row
		err  error
	)
	switch format {
	case tabular.FormatCSV:
		rows, err = tabular.ReadCSV(r, mapping)
	case tabular.FormatXLSX:
		rows, err = tabular.ReadXLSX(r, mapping)
	default:
		err = tabular.ErrUnsupportedFormat
	}
	if err != nil {
		util.SpanError(span, err)
		return nil, fmt.Errorf("failed to read import file: %w", err)
	}

	report := &ImportReport{Errors: []RowError{}}
	for i, row := range rows {
		if err := cs.importRow(ctx, row, performedBy, report); err != nil {
			report.Errors = append(report.Errors, RowError{
				Row:       i + 1,
				ProductID: strings.TrimSpace(row["id"]),
				Message:   err.Error(),
			})
		}
	}

	cs.logger.Info("Catalog imported",
		zap.Int("rows", len(rows)),
		zap.Int("created", report.Created),
		zap.Int("updated", report.Updated),
		zap.Int("adjusted", report.Adjusted),
		zap.Int("errors", len(report.Errors)))
	return report, nil
}

func (cs *CatalogService) importRow(ctx context.Context, row tabular.Row, performedBy string, report *ImportReport) error {
	id := strings.TrimSpace(row["id"])
	if id == "" {
		return fmt.Errorf("missing product id")
	}
	current, exists := cs.ledger.Product(id)

	p := models.Product{
		ID:                id,
		Name:              strings.TrimSpace(row["name"]),
		Category:          strings.TrimSpace(row["category"]),
		Subcategory:       strings.TrimSpace(row["subcategory"]),
		Price:             current.Price,
		LowStockThreshold: current.LowStockThreshold,
	}
	if p.Name == "" && exists {
		p.Name = current.Name
	}
	if v := strings.TrimSpace(row["price"]); v != "" {
		price, err := money.Parse(v)
		if err != nil {
			return err
		}
		p.Price = price
	}
	if v := strings.TrimSpace(row["low_stock_threshold"]); v != "" {
		threshold, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid low stock threshold %q", v)
		}
		p.LowStockThreshold = threshold
	}
	stock := -1
	if v := strings.TrimSpace(row["stock"]); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid stock %q", v)
		}
		stock = n
	}

	saved, created, err := cs.ledger.UpsertProduct(ctx, p)
	if err != nil {
		return err
	}
	if created {
		report.Created++
	} else {
		report.Updated++
	}

	if stock >= 0 && stock != saved.Stock {
		if _, err := cs.ledger.UpdateStock(ctx, id, stock, models.MovementAdjustment, ImportReason, performedBy); err != nil {
			return fmt.Errorf("failed to adjust stock: %w", err)
		}
		report.Adjusted++
	}

	if code := strings.TrimSpace(row["barcode"]); code != "" && code != saved.BarcodeValue() {
		if _, err := cs.ledger.AssignBarcode(ctx, id, code); err != nil {
			return err
		}
	}
	return nil
}
