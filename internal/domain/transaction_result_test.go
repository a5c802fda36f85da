package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResultCode(t *testing.T) {
	tests := []struct {
		raw  string
		want ResultCode
	}{
		{"Success", ResultCodeSuccess},
		{"success", ResultCodeSuccess},
		{"Succeeded", ResultCodeSucceeded},
		{"succeeded", ResultCodeSucceeded},
		{" Failed ", ResultCodeFailed},
		{"Error", ResultCodeError},
		{"Cancelled", ResultCodeCancelled},
		{"Open", ResultCodeOpen},
		{"Pending", ResultCodeUnknown},
		{"", ResultCodeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseResultCode(tt.raw))
		})
	}
	assert.True(t, ResultCodeSucceeded.IsSuccess())
	assert.False(t, ResultCodeOpen.IsSuccess())
}

func TestTransactionResult_IsImmutable(t *testing.T) {
	ids := []string{"rec-1"}
	card := &CardMetadata{MaskedNumber: "4111"}
	infos := map[string]string{"order_token": "t"}

	tr := NewTransactionResult(TransactionResultFields{
		RawResultCode:     "Success",
		ReconciliationIDs: ids,
		Card:              card,
		PaymentInfos:      infos,
	})

	ids[0] = "changed"
	card.MaskedNumber = "changed"
	infos["order_token"] = "changed"

	assert.Equal(t, []string{"rec-1"}, tr.ReconciliationIDs())
	assert.Equal(t, "4111", tr.Card().MaskedNumber)
	v, ok := tr.PaymentInfo("order_token")
	require.True(t, ok)
	assert.Equal(t, "t", v)

	tr.Card().MaskedNumber = "changed"
	tr.ReconciliationIDs()[0] = "changed"
	assert.Equal(t, "4111", tr.Card().MaskedNumber)
	assert.Equal(t, "rec-1", tr.LastReconciliationID())
}

func TestTransactionResult_NoResultSentinel(t *testing.T) {
	tr := NoTransactionResult
	assert.False(t, tr.Present())
	assert.Equal(t, ResultCodeUnknown, tr.ResultCode())
	assert.Nil(t, tr.Card())
	assert.Empty(t, tr.LastReconciliationID())
}

func TestTransactionResult_WithFallbacks(t *testing.T) {
	doc := NewTransactionResult(TransactionResultFields{
		RawResultCode: "Success",
		ShopOrderID:   "from-doc",
	})

	got := doc.WithFallbacks(CallbackFallbacks{ShopOrderID: "from-form", OrderToken: "tok", FraudRecommendation: "Deny"})
	assert.Equal(t, "from-doc", got.ShopOrderID())
	assert.Equal(t, "tok", got.OrderToken())
	assert.Equal(t, "Deny", got.FraudRecommendation())
	assert.True(t, got.Present())
	assert.Empty(t, doc.OrderToken())

	none := NoTransactionResult.WithFallbacks(CallbackFallbacks{ShopOrderID: "from-form"})
	assert.False(t, none.Present())
	assert.Equal(t, "from-form", none.ShopOrderID())
}

func TestParseCallbackOutcome(t *testing.T) {
	for _, s := range []string{"success", "open", "fail", "notification"} {
		o, ok := ParseCallbackOutcome(s)
		assert.True(t, ok, s)
		assert.Equal(t, CallbackOutcome(s), o)
	}
	_, ok := ParseCallbackOutcome("SUCCESS")
	assert.False(t, ok)
	_, ok = ParseCallbackOutcome("")
	assert.False(t, ok)
}
