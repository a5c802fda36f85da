package callback

import (
	"strings"

	"github.com/kevin07696/checkout-callback-service/internal/domain"
)

// Shopper-facing messages
const (
	MessageCancelledByUser = "The payment was cancelled."
	MessagePaymentOpen     = "Your payment is being processed. You will receive a confirmation once it has been approved."
	MessagePaymentError    = "We could not process your payment. Please try again or choose another payment method."
)

// PaymentError is the error recorded on an order for an unsuccessful payment
type PaymentError struct {
	Code           string
	Message        string
	PrivateMessage string
}

// DerivePaymentError returns the order error for a failed callback, or nil
// when the gateway reported neither a header error nor a non-success result.
//
// The code is Header.ErrorCode when set; otherwise the cardholder message
// with spaces removed and lower-cased; otherwise "cancelled" for a cancelled
// result and "internalerror" for anything else.
func DerivePaymentError(tr domain.TransactionResult) *PaymentError {
	if !tr.Present() {
		return nil
	}

	headerCode := strings.TrimSpace(tr.ErrorCode())
	headerFailed := headerCode != "" && headerCode != "0"
	if !headerFailed && tr.ResultCode() == domain.ResultCodeSuccess {
		return nil
	}

	if headerFailed {
		return &PaymentError{
			Code:           headerCode,
			Message:        tr.ErrorMessage(),
			PrivateMessage: tr.ErrorMessage(),
		}
	}

	pe := &PaymentError{
		Code:    strings.ToLower(strings.ReplaceAll(tr.CardHolderErrorMessage(), " ", "")),
		Message: tr.CardHolderErrorMessage(),
	}
	if pe.Code == "" {
		if tr.ResultCode() == domain.ResultCodeCancelled {
			pe.Code = "cancelled"
		} else {
			pe.Code = "internalerror"
		}
	}

	var private []string
	if m := tr.CardHolderErrorMessage(); m != "" {
		private = append(private, "CardHolderErrorMessage: "+m)
	}
	if m := tr.MerchantErrorMessage(); m != "" {
		private = append(private, "MerchantErrorMessage: "+m)
	}
	if s := tr.TransactionStatus(); s != "" {
		private = append(private, "TransactionStatus: "+s)
	}
	pe.PrivateMessage = strings.Join(private, "\n")

	return pe
}

// FailureDetails is what the shopper and support see for a failed payment
type FailureDetails struct {
	ErrorMessage            string
	MerchantErrorMessage    string
	ErrorMessageMustBeShown bool
	CancelledByUser         bool
	TransactionID           string
	TransactionStatus       string
	PaymentID               string
}

// DescribeFailure extracts failure details from a callback. A cancelled or
// epayment_cancelled status is reported as a cancellation by the shopper.
func DescribeFailure(tr domain.TransactionResult) FailureDetails {
	d := FailureDetails{TransactionStatus: "NONE"}
	if !tr.Present() {
		return d
	}

	d.MerchantErrorMessage = tr.MerchantErrorMessage()
	d.ErrorMessage = tr.CardHolderErrorMessage()
	d.ErrorMessageMustBeShown = tr.CardHolderMessageMustBeShown()
	d.TransactionID = tr.TransactionID()
	d.TransactionStatus = tr.TransactionStatus()
	d.PaymentID = tr.PaymentID()

	switch tr.TransactionStatus() {
	case domain.TxnStatusEpaymentCancelled, "cancelled":
		d.ErrorMessage = MessageCancelledByUser
		d.CancelledByUser = true
	}
	return d
}

// ShopperMessage is the message rendered on the acknowledgement page
func (d FailureDetails) ShopperMessage() string {
	if d.CancelledByUser || (d.ErrorMessageMustBeShown && d.ErrorMessage != "") {
		return d.ErrorMessage
	}
	return MessagePaymentError
}
