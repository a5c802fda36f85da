package order

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kevin07696/checkout-callback-service/internal/domain"
	"github.com/kevin07696/checkout-callback-service/internal/domain/ports"
	"go.uber.org/zap"
)

// Service implements ports.OrderService on top of an OrderRepository.
// It validates lifecycle transitions; persistence runs on the caller's tx.
type Service struct {
	repo   ports.OrderRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a new order service
func NewService(repo ports.OrderRepository, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// GetOrder loads an order without locking it
func (s *Service) GetOrder(ctx context.Context, db ports.DBTX, orderNo string) (*domain.Order, error) {
	return s.repo.GetByOrderNo(ctx, db, orderNo)
}

// LockOrder loads an order and holds its row lock until tx ends
func (s *Service) LockOrder(ctx context.Context, tx ports.DBTX, orderNo string) (*domain.Order, error) {
	return s.repo.GetByOrderNoForUpdate(ctx, tx, orderNo)
}

// CreateOrder stores a new order in status Created with a fresh order token
func (s *Service) CreateOrder(ctx context.Context, tx ports.DBTX, order *domain.Order) error {
	if order.OrderNo == "" {
		return domain.ErrValidationMissingField.WithDetail("field", "order_no")
	}
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.OrderToken == "" {
		order.OrderToken = uuid.NewString()
	}
	now := s.now().UTC()
	order.Status = domain.OrderStatusCreated
	order.ConfirmationStatus = domain.ConfirmationStatusNotConfirmed
	order.ExportStatus = domain.ExportStatusNotReady
	order.CreatedAt = now
	order.UpdatedAt = now

	if err := s.repo.Create(ctx, tx, order); err != nil {
		return fmt.Errorf("create order: %w", err)
	}

	s.logger.Info("Order created",
		zap.String("order_no", order.OrderNo),
		zap.String("total", order.TotalGross.String()),
		zap.String("currency", order.Currency))
	return nil
}

// PlaceOrder moves a Created order to New and persists every pending change.
// Placement happens once; a New order cannot be placed again.
func (s *Service) PlaceOrder(ctx context.Context, tx ports.DBTX, order *domain.Order) error {
	if err := s.transition(order, domain.OrderStatusNew); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, tx, order); err != nil {
		return fmt.Errorf("place order: %w", err)
	}
	s.logger.Info("Order placed",
		zap.String("order_no", order.OrderNo),
		zap.String("confirmation_status", string(order.ConfirmationStatus)))
	return nil
}

// FailOrder moves the order to Failed
func (s *Service) FailOrder(ctx context.Context, tx ports.DBTX, order *domain.Order, reason string) error {
	return s.close(ctx, tx, order, domain.OrderStatusFailed, "Order failed", reason)
}

// CancelOrder moves the order to Cancelled
func (s *Service) CancelOrder(ctx context.Context, tx ports.DBTX, order *domain.Order, reason string) error {
	return s.close(ctx, tx, order, domain.OrderStatusCancelled, "Order cancelled", reason)
}

// SaveOrder persists attribute changes without a status change
func (s *Service) SaveOrder(ctx context.Context, tx ports.DBTX, order *domain.Order) error {
	order.UpdatedAt = s.now().UTC()
	return s.repo.Update(ctx, tx, order)
}

// AddNote appends an audit note to the order
func (s *Service) AddNote(ctx context.Context, tx ports.DBTX, order *domain.Order, subject, text string) error {
	return s.repo.AddNote(ctx, tx, domain.OrderNote{
		OrderID:   order.ID,
		Subject:   subject,
		Text:      text,
		CreatedAt: s.now().UTC(),
	})
}

func (s *Service) close(ctx context.Context, tx ports.DBTX, order *domain.Order, status domain.OrderStatus, subject, reason string) error {
	if err := s.transition(order, status); err != nil {
		return err
	}
	order.ConfirmationStatus = domain.ConfirmationStatusNotConfirmed
	order.ExportStatus = domain.ExportStatusNotReady

	if err := s.repo.Update(ctx, tx, order); err != nil {
		return fmt.Errorf("%s: %w", subject, err)
	}
	if reason != "" {
		if err := s.AddNote(ctx, tx, order, subject, reason); err != nil {
			return fmt.Errorf("add note: %w", err)
		}
	}

	s.logger.Info(subject,
		zap.String("order_no", order.OrderNo),
		zap.String("reason", reason))
	return nil
}

func (s *Service) transition(order *domain.Order, next domain.OrderStatus) error {
	if !order.Status.CanTransitionTo(next) {
		return domain.ErrOrderInvalidTransition.
			WithDetail("order_no", order.OrderNo).
			WithDetail("from", string(order.Status)).
			WithDetail("to", string(next))
	}
	order.Status = next
	order.UpdatedAt = s.now().UTC()
	return nil
}
