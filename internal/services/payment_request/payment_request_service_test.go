package payment_request

import (
	"context"
	"testing"

	adapterports "github.com/kevin07696/checkout-callback-service/internal/adapters/ports"
	"github.com/kevin07696/checkout-callback-service/internal/config"
	"github.com/kevin07696/checkout-callback-service/internal/domain"
	"github.com/kevin07696/checkout-callback-service/internal/services/order"
	"github.com/kevin07696/checkout-callback-service/internal/testutil/fixtures"
	"github.com/kevin07696/checkout-callback-service/internal/testutil/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestService(t *testing.T, orders ...*domain.Order) (*Service, *mocks.MockGatewayAPI) {
	t.Helper()
	log := zaptest.NewLogger(t)
	terminals, err := config.ParseTerminals([]byte(`
terminals:
  VALITOR_CREDIT_EUR: "Shop CC EUR"
  ISK: "Shop ISK"
`))
	require.NoError(t, err)

	gw := &mocks.MockGatewayAPI{}
	t.Cleanup(func() { gw.AssertExpectations(t) })

	svc := NewService(order.NewService(mocks.NewOrderStore(orders...), log), terminals, gw, Config{
		CallbackBaseURL: "https://shop.example.com/",
		Language:        "en",
		PaymentType:     "payment",
	}, log)
	return svc, gw
}

func TestCreatePaymentRequest(t *testing.T) {
	o := fixtures.NewOrder().Build()
	svc, gw := newTestService(t, o)

	gw.On("CreatePaymentRequest", mock.Anything, mock.MatchedBy(func(req *adapterports.PaymentRequest) bool {
		return req.Terminal == "Shop CC EUR" &&
			req.ShopOrderID == o.OrderNo &&
			req.Amount.Equal(o.TotalGross) &&
			req.OrderToken == o.OrderToken &&
			req.CallbackURLs.Success == "https://shop.example.com/api/v1/gateway/callbacks/success" &&
			req.CallbackURLs.Notification == "https://shop.example.com/api/v1/gateway/callbacks/notification" &&
			req.CallbackURLs.Form == "https://shop.example.com/api/v1/gateway/callbacks/form" &&
			req.CustomerInfo["billing_city"] == "Reykjavik" &&
			req.CustomerInfo["billing_address"] == "Main St 1"
	})).Return(&adapterports.PaymentRequestResult{
		PaymentRequestID: "pr-1",
		RedirectURL:      "https://gateway.example.com/pay/pr-1",
	}, nil).Once()

	res, err := svc.CreatePaymentRequest(context.Background(), o.OrderNo)
	require.NoError(t, err)
	assert.Equal(t, "pr-1", res.PaymentRequestID)
	assert.Equal(t, "https://gateway.example.com/pay/pr-1", res.RedirectURL)
	assert.Equal(t, "Shop CC EUR", res.Terminal)
}

func TestCreatePaymentRequest_CurrencyFallbackTerminal(t *testing.T) {
	o := fixtures.NewOrder().WithCurrency("ISK").Build()
	svc, gw := newTestService(t, o)

	gw.On("CreatePaymentRequest", mock.Anything, mock.MatchedBy(func(req *adapterports.PaymentRequest) bool {
		return req.Terminal == "Shop ISK"
	})).Return(&adapterports.PaymentRequestResult{PaymentRequestID: "pr-2", RedirectURL: "u"}, nil).Once()

	res, err := svc.CreatePaymentRequest(context.Background(), o.OrderNo)
	require.NoError(t, err)
	assert.Equal(t, "Shop ISK", res.Terminal)
}

func TestCreatePaymentRequest_Rejected(t *testing.T) {
	tests := []struct {
		name    string
		order   *domain.Order
		orderNo string
		wantErr error
	}{
		{name: "missing order number", order: fixtures.NewOrder().Build(), orderNo: "", wantErr: domain.ErrValidationMissingField},
		{name: "unknown order", order: fixtures.NewOrder().Build(), orderNo: "404", wantErr: domain.ErrOrderNotFound},
		{name: "already confirmed", order: fixtures.NewOrder().WithStatus(domain.OrderStatusNew).Confirmed().Build(), orderNo: fixtures.DefaultOrderNo, wantErr: domain.ErrOrderInvalidTransition},
		{name: "cancelled", order: fixtures.NewOrder().WithStatus(domain.OrderStatusCancelled).Build(), orderNo: fixtures.DefaultOrderNo, wantErr: domain.ErrOrderInvalidTransition},
		{name: "no terminal for currency", order: fixtures.NewOrder().WithCurrency("USD").Build(), orderNo: fixtures.DefaultOrderNo, wantErr: domain.ErrTerminalNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, gw := newTestService(t, tt.order)

			_, err := svc.CreatePaymentRequest(context.Background(), tt.orderNo)
			assert.ErrorIs(t, err, tt.wantErr)
			gw.AssertNotCalled(t, "CreatePaymentRequest", mock.Anything, mock.Anything)
		})
	}
}

func TestCreatePaymentRequest_GatewayError(t *testing.T) {
	o := fixtures.NewOrder().Build()
	svc, gw := newTestService(t, o)
	gw.On("CreatePaymentRequest", mock.Anything, mock.Anything).
		Return(nil, domain.ErrGatewayError.WithDetail("error_code", "7")).Once()

	_, err := svc.CreatePaymentRequest(context.Background(), o.OrderNo)
	assert.ErrorIs(t, err, domain.ErrGatewayError)
	assert.ErrorContains(t, err, o.OrderNo)
}
