package fixtures

import (
	"time"

	"github.com/google/uuid"
	"github.com/kevin07696/checkout-callback-service/internal/domain"
	"github.com/shopspring/decimal"
)

// Defaults used by NewOrder
const (
	DefaultOrderNo    = "00001001"
	DefaultOrderToken = "6f1c2a77-token"
	DefaultCurrency   = "EUR"
	DefaultTotal      = "100.00"
	GatewayMethodID   = "VALITOR_CREDIT"
)

// OrderBuilder provides fluent API for building test orders.
type OrderBuilder struct {
	order *domain.Order
}

// NewOrder creates an order in status Created with one gateway payment
// instrument for the full total.
func NewOrder() *OrderBuilder {
	now := time.Now().UTC()
	total := decimal.RequireFromString(DefaultTotal)
	return &OrderBuilder{
		order: &domain.Order{
			ID:                 uuid.New(),
			OrderNo:            DefaultOrderNo,
			CustomerID:         "cust-42",
			Status:             domain.OrderStatusCreated,
			ConfirmationStatus: domain.ConfirmationStatusNotConfirmed,
			ExportStatus:       domain.ExportStatusNotReady,
			OrderToken:         DefaultOrderToken,
			Currency:           DefaultCurrency,
			TotalGross:         total,
			PaymentMethodID:    GatewayMethodID,
			PaymentInstruments: []domain.PaymentInstrument{{
				ID:              uuid.New(),
				PaymentMethodID: GatewayMethodID,
				Amount:          total,
			}},
			LineItems: []domain.LineItem{
				{ProductID: "sku-1", Quantity: 2, UnitPrice: decimal.RequireFromString("30.00")},
				{ProductID: "sku-2", Quantity: 1, UnitPrice: decimal.RequireFromString("40.00")},
			},
			CouponCodes: []string{"WELCOME10"},
			BillingAddress: &domain.Address{
				FirstName: "Jane", LastName: "Doe", Address1: "Main St 1",
				City: "Reykjavik", PostalCode: "101", CountryCode: "IS",
			},
			ShippingMethodID: "standard",
			Version:          1,
			CreatedAt:        now,
			UpdatedAt:        now,
		},
	}
}

func (b *OrderBuilder) WithOrderNo(orderNo string) *OrderBuilder {
	b.order.OrderNo = orderNo
	return b
}

func (b *OrderBuilder) WithToken(token string) *OrderBuilder {
	b.order.OrderToken = token
	return b
}

func (b *OrderBuilder) WithStatus(status domain.OrderStatus) *OrderBuilder {
	b.order.Status = status
	return b
}

func (b *OrderBuilder) Confirmed() *OrderBuilder {
	b.order.ConfirmationStatus = domain.ConfirmationStatusConfirmed
	b.order.ExportStatus = domain.ExportStatusReady
	return b
}

func (b *OrderBuilder) WithTotal(total string) *OrderBuilder {
	b.order.TotalGross = decimal.RequireFromString(total)
	for i := range b.order.PaymentInstruments {
		b.order.PaymentInstruments[i].Amount = b.order.TotalGross
	}
	return b
}

func (b *OrderBuilder) WithCurrency(currency string) *OrderBuilder {
	b.order.Currency = currency
	return b
}

// WithoutGatewayInstrument replaces the gateway instrument with a gift certificate
func (b *OrderBuilder) WithoutGatewayInstrument() *OrderBuilder {
	b.order.PaymentMethodID = "GIFT_CERTIFICATE"
	b.order.PaymentInstruments = []domain.PaymentInstrument{{
		ID:              uuid.New(),
		PaymentMethodID: "GIFT_CERTIFICATE",
		Amount:          b.order.TotalGross,
	}}
	return b
}

func (b *OrderBuilder) Build() *domain.Order {
	return b.order.Clone()
}
