package ports

import (
	"context"

	"github.com/kevin07696/checkout-callback-service/internal/domain"
)

// OrderRepository defines order persistence.
// Every method accepts an optional DBTX; nil means the pool.
type OrderRepository interface {
	// Create inserts a new order in status Created
	Create(ctx context.Context, tx DBTX, order *domain.Order) error

	// GetByOrderNo loads an order with its instruments and line items.
	// Returns domain.ErrOrderNotFound when missing.
	GetByOrderNo(ctx context.Context, db DBTX, orderNo string) (*domain.Order, error)

	// GetByOrderNoForUpdate is GetByOrderNo with a row lock held until tx ends
	GetByOrderNoForUpdate(ctx context.Context, tx DBTX, orderNo string) (*domain.Order, error)

	// Update persists status, confirmation, export and gateway attributes.
	// The write only succeeds if the stored version equals order.Version;
	// otherwise domain.ErrOrderConcurrentUpdate. order.Version is bumped on success.
	Update(ctx context.Context, tx DBTX, order *domain.Order) error

	// UpdatePaymentInstrument persists gateway fields of one payment instrument
	UpdatePaymentInstrument(ctx context.Context, tx DBTX, instrument *domain.PaymentInstrument) error

	// AddNote appends an audit note to the order
	AddNote(ctx context.Context, tx DBTX, note domain.OrderNote) error
}

// BasketRepository rebuilds shopping baskets from orders
type BasketRepository interface {
	// CreateFromOrder stores a basket built from the order. Calling it twice
	// for the same order returns the first basket.
	CreateFromOrder(ctx context.Context, tx DBTX, basket *domain.Basket) (*domain.Basket, error)
}

// CallbackRecord is one processed gateway callback kept for audit
type CallbackRecord struct {
	OrderNo           string
	Outcome           domain.CallbackOutcome
	CallerIP          string
	ResultCode        string
	TransactionStatus string
	TransactionID     string
	Decision          domain.DecisionKind
	Error             string
}

// CallbackHistoryRepository stores processed callbacks
type CallbackHistoryRepository interface {
	Record(ctx context.Context, db DBTX, rec CallbackRecord) error
}
