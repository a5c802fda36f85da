package callback

import (
	"testing"

	"github.com/kevin07696/checkout-callback-service/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func txResult(code, status, reserved string) domain.TransactionResult {
	return domain.NewTransactionResult(domain.TransactionResultFields{
		RawResultCode:     code,
		TransactionStatus: status,
		AuthType:          domain.AuthTypePayment,
		ReservedAmount:    decimal.RequireFromString(reserved),
	})
}

func TestClassify(t *testing.T) {
	expected := decimal.RequireFromString("100.00")

	tests := []struct {
		name       string
		tr         domain.TransactionResult
		wantKind   domain.DecisionKind
		wantStatus string
	}{
		{name: "success preauth matching amount", tr: txResult("Success", "preauth", "100.00"), wantKind: domain.DecisionConfirm, wantStatus: "PREAUTH"},
		{name: "succeeded lower-case", tr: txResult("succeeded", "preauth", "100"), wantKind: domain.DecisionConfirm, wantStatus: "PREAUTH"},
		{name: "bank payment finalized", tr: txResult("Success", "bank_payment_finalized", "100.00"), wantKind: domain.DecisionConfirm, wantStatus: "PREAUTH"},
		{name: "invoice initialized", tr: txResult("Success", "invoice_initialized", "100.00"), wantKind: domain.DecisionConfirm, wantStatus: "PREAUTH"},
		{name: "amount mismatch", tr: txResult("Success", "preauth", "99.99"), wantKind: domain.DecisionNoResult},
		{name: "amount above total", tr: txResult("Success", "preauth", "100.01"), wantKind: domain.DecisionNoResult},
		{name: "success unknown status", tr: txResult("Success", "captured", "100.00"), wantKind: domain.DecisionNoResult},
		{name: "success empty status", tr: txResult("Success", "", "100.00"), wantKind: domain.DecisionNoResult},
		{name: "error cancelled", tr: txResult("Error", "epayment_cancelled", "0"), wantKind: domain.DecisionCancel},
		{name: "error other status", tr: txResult("Error", "preauth_error", "0"), wantKind: domain.DecisionNoResult},
		{name: "failed preauth error", tr: txResult("Failed", "preauth_error", "0"), wantKind: domain.DecisionFail},
		{name: "failed other status", tr: txResult("Failed", "epayment_declined", "0"), wantKind: domain.DecisionCancel},
		{name: "failed empty status", tr: txResult("Failed", "", "0"), wantKind: domain.DecisionCancel},
		{name: "open", tr: txResult("Open", "preauth", "100.00"), wantKind: domain.DecisionNoResult},
		{name: "unknown result", tr: txResult("Pending", "preauth", "100.00"), wantKind: domain.DecisionNoResult},
		{name: "no payload", tr: domain.NoTransactionResult, wantKind: domain.DecisionNoResult},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.tr, expected)
			assert.Equal(t, tt.wantKind, got.Kind)
			if tt.wantKind == domain.DecisionConfirm {
				assert.True(t, got.ReservedAmount.Equal(expected))
				assert.Equal(t, tt.wantStatus, got.TransactionStatus)
			}
		})
	}
}

func TestClassify_IsPure(t *testing.T) {
	tr := txResult("Success", "preauth", "100.00")
	expected := decimal.RequireFromString("100.00")

	first := Classify(tr, expected)
	second := Classify(tr, expected)
	assert.Equal(t, first.Kind, second.Kind)
	assert.Equal(t, first.TransactionStatus, second.TransactionStatus)
}

func TestConfirmedTransactionStatus(t *testing.T) {
	tests := []struct {
		name     string
		authType domain.AuthType
		status   string
		want     string
	}{
		{name: "capture finalized", authType: domain.AuthTypePaymentAndCapture, status: "bank_payment_finalized", want: "CAPTURED"},
		{name: "capture preauth", authType: domain.AuthTypePaymentAndCapture, status: "preauth", want: "PREAUTH"},
		{name: "payment finalized", authType: domain.AuthTypePayment, status: "bank_payment_finalized", want: "PREAUTH"},
		{name: "capture invoice", authType: domain.AuthTypePaymentAndCapture, status: "invoice_initialized", want: "PREAUTH"},
		{name: "payment invoice", authType: domain.AuthTypePayment, status: "invoice_initialized", want: "PREAUTH"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := domain.NewTransactionResult(domain.TransactionResultFields{
				RawResultCode:     "Success",
				AuthType:          tt.authType,
				TransactionStatus: tt.status,
			})
			assert.Equal(t, tt.want, ConfirmedTransactionStatus(tr))
		})
	}
}
