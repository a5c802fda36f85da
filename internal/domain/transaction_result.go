package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ResultCode is the normalized gateway result
type ResultCode string

const (
	ResultCodeUnknown   ResultCode = ""
	ResultCodeSuccess   ResultCode = "Success"
	ResultCodeSucceeded ResultCode = "Succeeded"
	ResultCodeFailed    ResultCode = "Failed"
	ResultCodeError     ResultCode = "Error"
	ResultCodeCancelled ResultCode = "Cancelled"
	ResultCodeOpen      ResultCode = "Open"
)

// resultCodes maps lower-cased gateway values to the internal enum.
// The gateway mixes casing ("Succeeded" and "succeeded"), so lookups are
// done only through ParseResultCode.
var resultCodes = map[string]ResultCode{
	"success":   ResultCodeSuccess,
	"succeeded": ResultCodeSucceeded,
	"failed":    ResultCodeFailed,
	"fail":      ResultCodeFailed,
	"error":     ResultCodeError,
	"cancelled": ResultCodeCancelled,
	"canceled":  ResultCodeCancelled,
	"open":      ResultCodeOpen,
}

// ParseResultCode normalizes a raw gateway result string
func ParseResultCode(raw string) ResultCode {
	if rc, ok := resultCodes[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return rc
	}
	return ResultCodeUnknown
}

// IsSuccess reports Success or Succeeded
func (r ResultCode) IsSuccess() bool {
	return r == ResultCodeSuccess || r == ResultCodeSucceeded
}

// AuthType is the gateway authorization mode
type AuthType string

const (
	AuthTypeNone              AuthType = ""
	AuthTypePaymentAndCapture AuthType = "paymentAndCapture"
	AuthTypePayment           AuthType = "payment"
	AuthTypePaymentOnly       AuthType = "paymentOnly"
)

// Gateway transaction statuses the reconciler reacts to
const (
	TxnStatusPreauth              = "preauth"
	TxnStatusCaptured             = "captured"
	TxnStatusEpaymentCancelled    = "epayment_cancelled"
	TxnStatusPreauthError         = "preauth_error"
	TxnStatusBankPaymentFinalized = "bank_payment_finalized"
	TxnStatusInvoiceInitialized   = "invoice_initialized"
)

// Fraud recommendations that block confirmation
const (
	FraudRecommendationDeny      = "Deny"
	FraudRecommendationChallenge = "Challenge"
)

// CardMetadata is the card information echoed by the gateway
type CardMetadata struct {
	MaskedNumber string
	SchemeName   string
	ExpiryMonth  string
	ExpiryYear   string
}

// TransactionResultFields is the mutable input used to build a TransactionResult
type TransactionResultFields struct {
	RawResultCode                string
	TransactionStatus            string
	AuthType                     AuthType
	ReservedAmount               decimal.Decimal
	CapturedAmount               decimal.Decimal
	ShopOrderID                  string
	OrderToken                   string
	TransactionID                string
	PaymentID                    string
	Card                         *CardMetadata
	ErrorCode                    string
	ErrorMessage                 string
	CardHolderErrorMessage       string
	MerchantErrorMessage         string
	CardHolderMessageMustBeShown bool
	ReconciliationIDs            []string
	FraudRecommendation          string
	PaymentInfos                 map[string]string
}

// TransactionResult is the parsed outcome of a gateway callback.
// It is immutable; the zero value is the NoResult sentinel.
type TransactionResult struct {
	present bool
	code    ResultCode
	f       TransactionResultFields
}

// NoTransactionResult is returned whenever no payload could be read
var NoTransactionResult = TransactionResult{}

// NewTransactionResult freezes the given fields
func NewTransactionResult(f TransactionResultFields) TransactionResult {
	f.ReconciliationIDs = append([]string(nil), f.ReconciliationIDs...)
	if f.Card != nil {
		card := *f.Card
		f.Card = &card
	}
	infos := make(map[string]string, len(f.PaymentInfos))
	for k, v := range f.PaymentInfos {
		infos[k] = v
	}
	f.PaymentInfos = infos
	return TransactionResult{
		present: true,
		code:    ParseResultCode(f.RawResultCode),
		f:       f,
	}
}

func (t TransactionResult) Present() bool { return t.present }
func (t TransactionResult) ResultCode() ResultCode { return t.code }
func (t TransactionResult) RawResultCode() string { return t.f.RawResultCode }
func (t TransactionResult) TransactionStatus() string { return t.f.TransactionStatus }
func (t TransactionResult) AuthType() AuthType { return t.f.AuthType }
func (t TransactionResult) ReservedAmount() decimal.Decimal { return t.f.ReservedAmount }
func (t TransactionResult) CapturedAmount() decimal.Decimal { return t.f.CapturedAmount }
func (t TransactionResult) ShopOrderID() string { return t.f.ShopOrderID }
func (t TransactionResult) OrderToken() string { return t.f.OrderToken }
func (t TransactionResult) TransactionID() string { return t.f.TransactionID }
func (t TransactionResult) PaymentID() string { return t.f.PaymentID }
func (t TransactionResult) ErrorCode() string { return t.f.ErrorCode }
func (t TransactionResult) ErrorMessage() string { return t.f.ErrorMessage }
func (t TransactionResult) CardHolderErrorMessage() string { return t.f.CardHolderErrorMessage }
func (t TransactionResult) MerchantErrorMessage() string { return t.f.MerchantErrorMessage }
func (t TransactionResult) CardHolderMessageMustBeShown() bool { return t.f.CardHolderMessageMustBeShown }
func (t TransactionResult) FraudRecommendation() string { return t.f.FraudRecommendation }

// Card returns a copy of the card metadata, or nil
func (t TransactionResult) Card() *CardMetadata {
	if t.f.Card == nil {
		return nil
	}
	c := *t.f.Card
	return &c
}

// ReconciliationIDs returns a copy of the identifiers in document order
func (t TransactionResult) ReconciliationIDs() []string {
	return append([]string(nil), t.f.ReconciliationIDs...)
}

// LastReconciliationID returns the last identifier the gateway sent, since
// later entries supersede earlier ones.
func (t TransactionResult) LastReconciliationID() string {
	if len(t.f.ReconciliationIDs) == 0 {
		return ""
	}
	return t.f.ReconciliationIDs[len(t.f.ReconciliationIDs)-1]
}

// PaymentInfo returns a named PaymentInfo entry
func (t TransactionResult) PaymentInfo(name string) (string, bool) {
	v, ok := t.f.PaymentInfos[name]
	return v, ok
}

// CallbackFallbacks are form fields posted next to the document. They only
// fill values the document itself left empty.
type CallbackFallbacks struct {
	ShopOrderID          string
	OrderToken           string
	FraudRecommendation  string
	MerchantErrorMessage string
}

// WithFallbacks returns a copy with empty fields taken from fb. A NoResult
// stays NoResult; it only gains correlation data.
func (t TransactionResult) WithFallbacks(fb CallbackFallbacks) TransactionResult {
	f := t.f
	if f.ShopOrderID == "" {
		f.ShopOrderID = fb.ShopOrderID
	}
	if f.OrderToken == "" {
		f.OrderToken = fb.OrderToken
	}
	if f.FraudRecommendation == "" {
		f.FraudRecommendation = fb.FraudRecommendation
	}
	if f.MerchantErrorMessage == "" {
		f.MerchantErrorMessage = fb.MerchantErrorMessage
	}
	return TransactionResult{present: t.present, code: t.code, f: f}
}
