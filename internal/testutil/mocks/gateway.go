package mocks

import (
	"context"

	"github.com/kevin07696/checkout-callback-service/internal/adapters/ports"
	"github.com/stretchr/testify/mock"
)

// MockGatewayAPI mocks the gateway merchant API
type MockGatewayAPI struct {
	mock.Mock
}

func (m *MockGatewayAPI) CreatePaymentRequest(ctx context.Context, req *ports.PaymentRequest) (*ports.PaymentRequestResult, error) {
	args := m.Called(ctx, req)
	if res := args.Get(0); res != nil {
		return res.(*ports.PaymentRequestResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockGatewayAPI) ReleaseReservation(ctx context.Context, transactionID string) (*ports.ReleaseResult, error) {
	args := m.Called(ctx, transactionID)
	if res := args.Get(0); res != nil {
		return res.(*ports.ReleaseResult), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockEventPublisher mocks the order outcome publisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishOrderOutcome(ctx context.Context, event *ports.OrderOutcomeEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventPublisher) Close() error {
	return m.Called().Error(0)
}
