package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus represents the platform-level lifecycle of an order
type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "created"
	OrderStatusNew       OrderStatus = "new"
	OrderStatusFailed    OrderStatus = "failed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// ConfirmationStatus tracks whether the payment for an order has been confirmed
type ConfirmationStatus string

const (
	ConfirmationStatusNotConfirmed ConfirmationStatus = "not_confirmed"
	ConfirmationStatusConfirmed    ConfirmationStatus = "confirmed"
)

// ExportStatus tracks whether the order may be exported to fulfilment
type ExportStatus string

const (
	ExportStatusNotReady ExportStatus = "not_ready"
	ExportStatusReady    ExportStatus = "ready"
)

// GatewayAttributes are the gateway-owned fields written back onto an order
type GatewayAttributes struct {
	TransactionStatus            string
	TransactionID                string
	PaymentID                    string
	ErrorCode                    string
	ErrorMessage                 string
	CardHolderMessageMustBeShown bool
}

// PaymentInstrument is a payment line on an order
type PaymentInstrument struct {
	ID                       uuid.UUID
	PaymentMethodID          string
	Amount                   decimal.Decimal
	MaskedCardNumber         string
	CardType                 string
	ExpirationMonth          int
	ExpirationYear           int
	TransactionID            string
	PaymentID                string
	ReconciliationIdentifier string
}

// LineItem is a product line on an order
type LineItem struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Address is a billing or shipping address
type Address struct {
	FirstName   string
	LastName    string
	Address1    string
	Address2    string
	City        string
	PostalCode  string
	CountryCode string
	Phone       string
}

// Order is the subset of a commerce order this service reconciles
type Order struct {
	ID                 uuid.UUID
	OrderNo            string
	CustomerID         string
	Status             OrderStatus
	ConfirmationStatus ConfirmationStatus
	ExportStatus       ExportStatus
	OrderToken         string
	Currency           string
	TotalGross         decimal.Decimal
	PaymentMethodID    string
	Gateway            GatewayAttributes
	PaymentInstruments []PaymentInstrument
	LineItems          []LineItem
	CouponCodes        []string
	BillingAddress     *Address
	ShippingAddress    *Address
	ShippingMethodID   string
	Version            int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// IsTerminal reports whether no further gateway callback may change the order
func (o *Order) IsTerminal() bool {
	return o.Status.IsTerminal()
}

// IsConfirmed reports whether the payment was already confirmed
func (o *Order) IsConfirmed() bool {
	return o.ConfirmationStatus == ConfirmationStatusConfirmed
}

// InstrumentByMethodPrefix returns the first payment instrument whose method ID
// starts with prefix, or nil.
func (o *Order) InstrumentByMethodPrefix(prefix string) *PaymentInstrument {
	for i := range o.PaymentInstruments {
		if strings.HasPrefix(o.PaymentInstruments[i].PaymentMethodID, prefix) {
			return &o.PaymentInstruments[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the order
func (o *Order) Clone() *Order {
	c := *o
	c.PaymentInstruments = append([]PaymentInstrument(nil), o.PaymentInstruments...)
	c.LineItems = append([]LineItem(nil), o.LineItems...)
	c.CouponCodes = append([]string(nil), o.CouponCodes...)
	if o.BillingAddress != nil {
		a := *o.BillingAddress
		c.BillingAddress = &a
	}
	if o.ShippingAddress != nil {
		a := *o.ShippingAddress
		c.ShippingAddress = &a
	}
	return &c
}

// IsTerminal reports whether the status is Failed or Cancelled
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusFailed || s == OrderStatusCancelled
}

// CanTransitionTo validates the order lifecycle.
// Created -> New -> {Failed, Cancelled}; Created -> {Failed, Cancelled}.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch s {
	case OrderStatusCreated:
		return next == OrderStatusNew || next == OrderStatusFailed || next == OrderStatusCancelled
	case OrderStatusNew:
		return next == OrderStatusFailed || next == OrderStatusCancelled
	default:
		return false
	}
}

// OrderNote is an audit note appended to an order on every transition
type OrderNote struct {
	OrderID   uuid.UUID
	Subject   string
	Text      string
	CreatedAt time.Time
}

// Basket is a shopping basket rebuilt from a failed or cancelled order
type Basket struct {
	ID               uuid.UUID
	SourceOrderNo    string
	CustomerID       string
	Currency         string
	LineItems        []LineItem
	CouponCodes      []string
	BillingAddress   *Address
	ShippingAddress  *Address
	ShippingMethodID string
	CreatedAt        time.Time
}
