package ports

import (
	"context"

	"github.com/shopspring/decimal"
)

// PaymentRequest is the input to the gateway's createPaymentRequest call
type PaymentRequest struct {
	Terminal     string
	ShopOrderID  string
	Amount       decimal.Decimal
	Currency     string
	Language     string
	Type         string // payment | paymentAndCapture
	OrderToken   string
	TokenKey     string
	CallbackURLs CallbackURLs
	CustomerInfo map[string]string
}

// CallbackURLs are the endpoints the gateway calls back
type CallbackURLs struct {
	Form         string
	Success      string
	Open         string
	Fail         string
	Notification string
}

// PaymentRequestResult is the gateway's answer to createPaymentRequest
type PaymentRequestResult struct {
	PaymentRequestID string
	RedirectURL      string
	Result           string
}

// ReleaseResult is the gateway's answer to releaseReservation
type ReleaseResult struct {
	Result       string
	ErrorCode    string
	ErrorMessage string
}

// GatewayAPI is the outbound merchant API of the payment gateway
type GatewayAPI interface {
	// CreatePaymentRequest registers a payment and returns the hosted page URL
	CreatePaymentRequest(ctx context.Context, req *PaymentRequest) (*PaymentRequestResult, error)

	// ReleaseReservation releases funds held for a payment that will not be captured
	ReleaseReservation(ctx context.Context, transactionID string) (*ReleaseResult, error)
}
