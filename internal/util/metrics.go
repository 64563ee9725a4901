package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StockMovementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_movements_total",
		Help: "Total number of stock movements recorded",
	}, []string{"kind"})

	StockSignalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_signals_total",
		Help: "Total number of low-stock and out-of-stock signals emitted",
	}, []string{"signal"})

	StockMutationsIgnored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_mutations_ignored_total",
		Help: "Total number of stock mutations addressed to unknown products",
	})

	LedgerCommitFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_commit_failures_total",
		Help: "Total number of ledger persistence failures",
	})

	LowStockProducts = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "low_stock_products",
		Help: "Number of products at or below their low-stock threshold",
	})

	OutOfStockProducts = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "out_of_stock_products",
		Help: "Number of products with zero stock",
	})

	InventoryValue = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "inventory_value",
		Help: "Total inventory value (price x stock) in store currency",
	})

	BarcodeLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "barcode_lookups_total",
		Help: "Total number of barcode lookups by match mode",
	}, []string{"result"})

	SalesCompletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_sales_completed_total",
		Help: "Total number of completed POS sales",
	}, []string{"method"})

	SaleAmount = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pos_sale_amount",
		Help:    "Distribution of POS sale totals",
		Buckets: prometheus.ExponentialBuckets(10, 2, 12),
	})

	CheckoutRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_rejected_total",
		Help: "Total number of rejected checkouts",
	}, []string{"reason"})

	PaymentAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_attempts_total",
		Help: "Total number of payment confirmations received",
	})

	PaymentSuccessTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_success_total",
		Help: "Total number of accepted payments",
	})

	PaymentFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_failed_total",
		Help: "Total number of failed or rejected payments",
	}, []string{"reason"})

	OrdersPlacedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Total number of storefront orders placed",
	})

	OrdersFulfilledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_fulfilled_total",
		Help: "Total number of storefront orders whose stock was consumed",
	})

	FulfillmentLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fulfillment_latency_seconds",
		Help:    "Latency of applying sale/order consumption to the ledger",
		Buckets: prometheus.DefBuckets,
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
