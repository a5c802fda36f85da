package ports

import (
	"context"

	"github.com/kevin07696/checkout-callback-service/internal/domain"
)

// OrderService is the order-management surface the reconciler drives.
// Mutating calls take the caller's transaction so several of them can be
// committed as one unit.
type OrderService interface {
	GetOrder(ctx context.Context, db DBTX, orderNo string) (*domain.Order, error)
	LockOrder(ctx context.Context, tx DBTX, orderNo string) (*domain.Order, error)
	CreateOrder(ctx context.Context, tx DBTX, order *domain.Order) error
	PlaceOrder(ctx context.Context, tx DBTX, order *domain.Order) error
	FailOrder(ctx context.Context, tx DBTX, order *domain.Order, reason string) error
	CancelOrder(ctx context.Context, tx DBTX, order *domain.Order, reason string) error
	SaveOrder(ctx context.Context, tx DBTX, order *domain.Order) error
	AddNote(ctx context.Context, tx DBTX, order *domain.Order, subject, text string) error
}

// BasketRecoverer restores the shopper's basket from a failed or cancelled order
type BasketRecoverer interface {
	RecoverBasketFromOrder(ctx context.Context, tx DBTX, order *domain.Order) (*domain.Basket, error)
}

// OrderLocker serializes callback processing per order.
// Lock blocks until the lock is held or ctx is done; the returned func releases it.
type OrderLocker interface {
	Lock(ctx context.Context, orderNo string) (unlock func(), err error)
}
