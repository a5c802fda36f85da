package callback

import (
	"testing"

	"github.com/kevin07696/checkout-callback-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerivePaymentError(t *testing.T) {
	tests := []struct {
		name     string
		fields   *domain.TransactionResultFields
		wantNil  bool
		wantCode string
	}{
		{name: "no payload", wantNil: true},
		{name: "success without header error", fields: &domain.TransactionResultFields{RawResultCode: "Success"}, wantNil: true},
		{
			name:     "header error code wins",
			fields:   &domain.TransactionResultFields{RawResultCode: "Success", ErrorCode: "17", ErrorMessage: "Terminal locked", CardHolderErrorMessage: "Card declined"},
			wantCode: "17",
		},
		{
			name:     "header code zero is not an error",
			fields:   &domain.TransactionResultFields{RawResultCode: "Failed", ErrorCode: "0", CardHolderErrorMessage: "Card Declined By Bank"},
			wantCode: "carddeclinedbybank",
		},
		{
			name:     "cancelled without message",
			fields:   &domain.TransactionResultFields{RawResultCode: "Cancelled"},
			wantCode: "cancelled",
		},
		{
			name:     "failed without message",
			fields:   &domain.TransactionResultFields{RawResultCode: "Failed", TransactionStatus: "preauth_error"},
			wantCode: "internalerror",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := domain.NoTransactionResult
			if tt.fields != nil {
				tr = domain.NewTransactionResult(*tt.fields)
			}
			pe := DerivePaymentError(tr)
			if tt.wantNil {
				assert.Nil(t, pe)
				return
			}
			require.NotNil(t, pe)
			assert.Equal(t, tt.wantCode, pe.Code)
		})
	}
}

func TestDerivePaymentError_PrivateMessage(t *testing.T) {
	tr := domain.NewTransactionResult(domain.TransactionResultFields{
		RawResultCode:          "Failed",
		TransactionStatus:      "preauth_error",
		CardHolderErrorMessage: "Insufficient funds",
		MerchantErrorMessage:   "51 - NSF",
	})

	pe := DerivePaymentError(tr)
	require.NotNil(t, pe)
	assert.Equal(t, "CardHolderErrorMessage: Insufficient funds\nMerchantErrorMessage: 51 - NSF\nTransactionStatus: preauth_error", pe.PrivateMessage)
}

func TestDescribeFailure(t *testing.T) {
	tests := []struct {
		name          string
		tr            domain.TransactionResult
		wantCancelled bool
		wantStatus    string
		wantMessage   string
	}{
		{name: "no payload", tr: domain.NoTransactionResult, wantStatus: "NONE", wantMessage: MessagePaymentError},
		{
			name:          "cancelled by shopper",
			tr:            domain.NewTransactionResult(domain.TransactionResultFields{RawResultCode: "Error", TransactionStatus: "epayment_cancelled"}),
			wantCancelled: true,
			wantStatus:    "epayment_cancelled",
			wantMessage:   MessageCancelledByUser,
		},
		{
			name: "cardholder message shown when flagged",
			tr: domain.NewTransactionResult(domain.TransactionResultFields{
				RawResultCode: "Failed", TransactionStatus: "preauth_error",
				CardHolderErrorMessage: "Card expired", CardHolderMessageMustBeShown: true,
			}),
			wantStatus:  "preauth_error",
			wantMessage: "Card expired",
		},
		{
			name: "cardholder message hidden when not flagged",
			tr: domain.NewTransactionResult(domain.TransactionResultFields{
				RawResultCode: "Failed", TransactionStatus: "preauth_error", CardHolderErrorMessage: "Card expired",
			}),
			wantStatus:  "preauth_error",
			wantMessage: MessagePaymentError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := DescribeFailure(tt.tr)
			assert.Equal(t, tt.wantCancelled, d.CancelledByUser)
			assert.Equal(t, tt.wantStatus, d.TransactionStatus)
			assert.Equal(t, tt.wantMessage, d.ShopperMessage())
		})
	}
}
