package callback

import (
	"strings"

	"github.com/kevin07696/checkout-callback-service/internal/domain"
	"github.com/shopspring/decimal"
)

// confirmableStatuses are the gateway statuses that may confirm an order
var confirmableStatuses = map[string]bool{
	domain.TxnStatusPreauth:              true,
	domain.TxnStatusBankPaymentFinalized: true,
	domain.TxnStatusInvoiceInitialized:   true,
}

// Classify maps a transaction result to an order outcome.
// Rules are evaluated top to bottom and the first match wins:
//
//	Success|Succeeded + confirmable status + reserved == expected -> Confirm
//	Success|Succeeded otherwise                                  -> NoResult
//	Error + epayment_cancelled                                   -> Cancel
//	Failed + preauth_error                                       -> Fail
//	Failed otherwise                                             -> Cancel
//	anything else, including an empty payload                    -> NoResult
//
// Amounts are compared exactly.
func Classify(tr domain.TransactionResult, expectedTotal decimal.Decimal) domain.Decision {
	if !tr.Present() {
		return domain.NoResult()
	}

	status := tr.TransactionStatus()

	switch rc := tr.ResultCode(); {
	case rc.IsSuccess():
		if confirmableStatuses[status] && tr.ReservedAmount().Equal(expectedTotal) {
			return domain.Confirm(tr.ReservedAmount(), ConfirmedTransactionStatus(tr))
		}
		return domain.NoResult()

	case rc == domain.ResultCodeError:
		if status == domain.TxnStatusEpaymentCancelled {
			return domain.Cancel()
		}
		return domain.NoResult()

	case rc == domain.ResultCodeFailed:
		if status == domain.TxnStatusPreauthError {
			return domain.Fail()
		}
		return domain.Cancel()
	}

	return domain.NoResult()
}

// ConfirmedTransactionStatus is the status written on the order for a
// confirmed payment: CAPTURED when a paymentAndCapture transaction reached
// bank_payment_finalized, PREAUTH for every other confirmable status.
func ConfirmedTransactionStatus(tr domain.TransactionResult) string {
	if tr.AuthType() == domain.AuthTypePaymentAndCapture && tr.TransactionStatus() == domain.TxnStatusBankPaymentFinalized {
		return strings.ToUpper(domain.TxnStatusCaptured)
	}
	return strings.ToUpper(domain.TxnStatusPreauth)
}
