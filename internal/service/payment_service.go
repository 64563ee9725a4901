package service

import (
	"context"
	"fmt"
	"strings"

	"furniture-backoffice/internal/models"
	"furniture-backoffice/internal/util"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var successStatuses = map[string]bool{
	"COMPLETED": true,
	"SUCCEEDED": true,
	"SUCCESS":   true,
	"APPROVED":  true,
	"PAID":      true,
}

// PaymentOutcome is what a payment collaborator reported back:
// a confirmation from its success callback, or the message from its error callback
type PaymentOutcome struct {
	Confirmation *models.PaymentConfirmation `json:"confirmation,omitempty"`
	Error        string                      `json:"error,omitempty"`
}

// PaymentService checks payment collaborator callbacks against the amount due
type PaymentService struct {
	logger *zap.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService() *PaymentService {
	return &PaymentService{logger: util.GetLogger()}
}

// Verify accepts outcome only if it carries a successful confirmation for
// exactly amount in currency. The error callback maps to ErrPaymentDeclined.
func (ps *PaymentService) Verify(ctx context.Context, reference string, amount decimal.Decimal, currency string, outcome PaymentOutcome) (*models.PaymentConfirmation, error) {
	_, span := util.StartSpan(ctx, "PaymentService.Verify", attribute.String("reference", reference))
	defer span.End()

	util.PaymentAttemptsTotal.Inc()

	if outcome.Error != "" {
		util.PaymentFailedTotal.WithLabelValues("declined").Inc()
		ps.logger.Warn("Payment failed", zap.String("reference", reference), zap.String("message", outcome.Error))
		return nil, fmt.Errorf("%w: %s", ErrPaymentDeclined, outcome.Error)
	}

	conf := outcome.Confirmation
	if conf == nil || conf.ID == "" {
		util.PaymentFailedTotal.WithLabelValues("missing_confirmation").Inc()
		return nil, fmt.Errorf("%w: no confirmation received", ErrPaymentDeclined)
	}
	if !successStatuses[strings.ToUpper(conf.Status)] {
		util.PaymentFailedTotal.WithLabelValues("status").Inc()
		return nil, fmt.Errorf("%w: status %s", ErrPaymentDeclined, conf.Status)
	}
	if !strings.EqualFold(conf.Currency, currency) || !conf.Amount.Round(2).Equal(amount.Round(2)) {
		util.PaymentFailedTotal.WithLabelValues("mismatch").Inc()
		ps.logger.Warn("Payment confirmation mismatch",
			zap.String("reference", reference),
			zap.String("expected", amount.StringFixed(2)+" "+currency),
			zap.String("confirmed", conf.Amount.StringFixed(2)+" "+conf.Currency))
		return nil, fmt.Errorf("%w: expected %s %s, got %s %s",
			ErrPaymentMismatch, amount.StringFixed(2), currency, conf.Amount.StringFixed(2), conf.Currency)
	}

	util.PaymentSuccessTotal.Inc()
	ps.logger.Info("Payment confirmed",
		zap.String("reference", reference),
		zap.String("payment_id", conf.ID))
	return conf, nil
}
