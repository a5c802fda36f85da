package order

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kevin07696/checkout-callback-service/internal/domain"
	"github.com/kevin07696/checkout-callback-service/internal/domain/ports"
	"go.uber.org/zap"
)

// BasketRecoverer rebuilds a shopper's basket from a failed or cancelled order
// so checkout can be retried.
type BasketRecoverer struct {
	baskets ports.BasketRepository
	logger  *zap.Logger
}

// NewBasketRecoverer creates a new basket recoverer
func NewBasketRecoverer(baskets ports.BasketRepository, logger *zap.Logger) *BasketRecoverer {
	return &BasketRecoverer{baskets: baskets, logger: logger}
}

// RecoverBasketFromOrder copies line items, coupons, addresses and the
// shipping method into a new basket. Repeated calls return the same basket.
func (b *BasketRecoverer) RecoverBasketFromOrder(ctx context.Context, tx ports.DBTX, order *domain.Order) (*domain.Basket, error) {
	basket := &domain.Basket{
		ID:               uuid.New(),
		SourceOrderNo:    order.OrderNo,
		CustomerID:       order.CustomerID,
		Currency:         order.Currency,
		LineItems:        append([]domain.LineItem(nil), order.LineItems...),
		CouponCodes:      append([]string(nil), order.CouponCodes...),
		ShippingMethodID: order.ShippingMethodID,
		CreatedAt:        time.Now().UTC(),
	}
	if order.BillingAddress != nil {
		a := *order.BillingAddress
		basket.BillingAddress = &a
	}
	if order.ShippingAddress != nil {
		a := *order.ShippingAddress
		basket.ShippingAddress = &a
	}

	stored, err := b.baskets.CreateFromOrder(ctx, tx, basket)
	if err != nil {
		return nil, fmt.Errorf("recover basket from order %s: %w", order.OrderNo, err)
	}

	b.logger.Info("Basket recovered from order",
		zap.String("order_no", order.OrderNo),
		zap.String("basket_id", stored.ID.String()),
		zap.Int("line_items", len(stored.LineItems)))
	return stored, nil
}
