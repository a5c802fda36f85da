package callback

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/kevin07696/checkout-callback-service/internal/domain"
	"github.com/kevin07696/checkout-callback-service/internal/domain/ports"
	"go.uber.org/zap"
)

// DefaultInstrumentPrefix identifies payment instruments owned by the gateway
const DefaultInstrumentPrefix = "VALITOR_"

// InstrumentUpdater writes gateway payment metadata onto the order's payment instrument
type InstrumentUpdater struct {
	orders ports.OrderRepository
	prefix string
	logger *zap.Logger
}

// NewInstrumentUpdater creates an updater for instruments whose method ID starts with prefix
func NewInstrumentUpdater(orders ports.OrderRepository, prefix string, logger *zap.Logger) *InstrumentUpdater {
	if prefix == "" {
		prefix = DefaultInstrumentPrefix
	}
	return &InstrumentUpdater{
		orders: orders,
		prefix: prefix,
		logger: logger,
	}
}

// Update writes masked card number, scheme, transaction id, payment id,
// expiry and the last reconciliation identifier. Runs inside the caller's
// transaction. Returns domain.ErrInstrumentNotFound if the order has no
// gateway instrument.
func (u *InstrumentUpdater) Update(ctx context.Context, tx ports.DBTX, order *domain.Order, tr domain.TransactionResult) error {
	pi := order.InstrumentByMethodPrefix(u.prefix)
	if pi == nil {
		return domain.ErrInstrumentNotFound.
			WithDetail("order_no", order.OrderNo).
			WithDetail("method_prefix", u.prefix)
	}

	if card := tr.Card(); card != nil {
		pi.MaskedCardNumber = card.MaskedNumber
		pi.CardType = card.SchemeName
		if m, err := strconv.Atoi(card.ExpiryMonth); err == nil {
			pi.ExpirationMonth = m
		}
		if y, ok := twoDigitYear(card.ExpiryYear); ok {
			pi.ExpirationYear = y
		}
	}
	pi.TransactionID = tr.TransactionID()
	pi.PaymentID = tr.PaymentID()
	if rid := tr.LastReconciliationID(); rid != "" {
		pi.ReconciliationIdentifier = rid
	}

	if err := u.orders.UpdatePaymentInstrument(ctx, tx, pi); err != nil {
		return fmt.Errorf("update payment instrument: %w", err)
	}

	u.logger.Debug("Payment instrument updated",
		zap.String("order_no", order.OrderNo),
		zap.String("payment_method_id", pi.PaymentMethodID),
		zap.String("transaction_id", pi.TransactionID))

	return nil
}

// twoDigitYear keeps the last two digits of a four-digit year
func twoDigitYear(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if len(s) == 4 {
		s = s[2:]
	}
	y, err := strconv.Atoi(s)
	if err != nil || y < 0 || y > 99 {
		return 0, false
	}
	return y, true
}
