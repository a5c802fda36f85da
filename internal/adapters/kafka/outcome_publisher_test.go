package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/kevin07696/checkout-callback-service/internal/adapters/ports"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type MockMessageWriter struct {
	mock.Mock
}

func (m *MockMessageWriter) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *MockMessageWriter) Close() error {
	return m.Called().Error(0)
}

func TestOutcomePublisher_PublishOrderOutcome(t *testing.T) {
	event := &ports.OrderOutcomeEvent{
		EventID:            "evt-1",
		OrderNo:            "00001234",
		Decision:           "confirm",
		OrderStatus:        "new",
		ConfirmationStatus: "confirmed",
		TransactionID:      "txn-1",
		Amount:             "100.00",
		Currency:           "EUR",
		OccurredAt:         time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	t.Run("writes json keyed by order number", func(t *testing.T) {
		writer := new(MockMessageWriter)
		var written []kafkago.Message
		writer.On("WriteMessages", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) { written = args.Get(1).([]kafkago.Message) }).
			Return(nil)

		pub := NewOutcomePublisher(writer, zaptest.NewLogger(t))
		require.NoError(t, pub.PublishOrderOutcome(context.Background(), event))

		require.Len(t, written, 1)
		assert.Equal(t, "00001234", string(written[0].Key))
		assert.Equal(t, event.OccurredAt, written[0].Time)
		assert.Contains(t, written[0].Headers, kafkago.Header{Key: "event_type", Value: []byte("order.confirm")})

		var decoded ports.OrderOutcomeEvent
		require.NoError(t, json.Unmarshal(written[0].Value, &decoded))
		assert.Equal(t, *event, decoded)
	})

	t.Run("wraps writer errors", func(t *testing.T) {
		writer := new(MockMessageWriter)
		writer.On("WriteMessages", mock.Anything, mock.Anything).Return(errors.New("broker down"))

		pub := NewOutcomePublisher(writer, zaptest.NewLogger(t))
		err := pub.PublishOrderOutcome(context.Background(), event)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "broker down")
	})
}

func TestNewWriter(t *testing.T) {
	w := NewWriter([]string{"k1:9092", "k2:9092"}, "order-outcomes")
	defer w.Close()

	assert.Equal(t, "order-outcomes", w.Topic)
	assert.Equal(t, kafkago.RequireAll, w.RequiredAcks)
	assert.IsType(t, &kafkago.Hash{}, w.Balancer)
}
