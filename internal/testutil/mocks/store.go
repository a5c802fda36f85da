// Package mocks provides shared fakes and mocks for testing.
package mocks

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kevin07696/checkout-callback-service/internal/domain"
	"github.com/kevin07696/checkout-callback-service/internal/domain/ports"
)

// OrderStore is an in-memory order database. It implements the transaction
// manager and every repository the callback flow uses. A transaction that
// returns an error rolls back all order, note and basket writes made inside it.
type OrderStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	orders    map[string]*domain.Order
	notes     []domain.OrderNote
	baskets   map[string]*domain.Basket
	callbacks []ports.CallbackRecord

	failures map[string][]error
	commits  int
}

var (
	_ ports.TransactionManager        = (*OrderStore)(nil)
	_ ports.OrderRepository           = (*OrderStore)(nil)
	_ ports.BasketRepository          = (*OrderStore)(nil)
	_ ports.CallbackHistoryRepository = (*OrderStore)(nil)
)

// NewOrderStore returns a store seeded with the given orders
func NewOrderStore(orders ...*domain.Order) *OrderStore {
	s := &OrderStore{
		orders:   make(map[string]*domain.Order),
		baskets:  make(map[string]*domain.Basket),
		failures: make(map[string][]error),
	}
	for _, o := range orders {
		s.orders[o.OrderNo] = o.Clone()
	}
	return s
}

// FailNext makes the next call to op return err. Ops are the repository
// method names, e.g. "Update" or "CreateFromOrder".
func (s *OrderStore) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = append(s.failures[op], err)
}

func (s *OrderStore) injected(op string) error {
	if errs := s.failures[op]; len(errs) > 0 {
		s.failures[op] = errs[1:]
		return errs[0]
	}
	return nil
}

type snapshot struct {
	orders  map[string]*domain.Order
	notes   int
	baskets map[string]*domain.Basket
}

func (s *OrderStore) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := snapshot{
		orders:  make(map[string]*domain.Order, len(s.orders)),
		notes:   len(s.notes),
		baskets: make(map[string]*domain.Basket, len(s.baskets)),
	}
	for k, o := range s.orders {
		snap.orders[k] = o.Clone()
	}
	for k, b := range s.baskets {
		snap.baskets[k] = b
	}
	return snap
}

func (s *OrderStore) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = snap.orders
	s.notes = s.notes[:snap.notes]
	s.baskets = snap.baskets
}

// WithTransaction runs fn serialized with other transactions
func (s *OrderStore) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	err := s.injected("WithTransaction")
	s.mu.Unlock()
	if err != nil {
		return err
	}

	snap := s.snapshot()
	if err := fn(ctx, nil); err != nil {
		s.restore(snap)
		return err
	}

	s.mu.Lock()
	s.commits++
	s.mu.Unlock()
	return nil
}

// WithReadOnlyTransaction runs fn and discards any writes
func (s *OrderStore) WithReadOnlyTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	err := s.injected("WithReadOnlyTransaction")
	s.mu.Unlock()
	if err != nil {
		return err
	}

	snap := s.snapshot()
	defer s.restore(snap)
	return fn(ctx, nil)
}

func (s *OrderStore) Create(_ context.Context, _ ports.DBTX, order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("Create"); err != nil {
		return err
	}
	if _, ok := s.orders[order.OrderNo]; ok {
		return domain.NewDomainError(domain.ErrorCodeDatabaseError, "duplicate order_no")
	}
	order.Version = 1
	s.orders[order.OrderNo] = order.Clone()
	return nil
}

func (s *OrderStore) GetByOrderNo(_ context.Context, _ ports.DBTX, orderNo string) (*domain.Order, error) {
	return s.get("GetByOrderNo", orderNo)
}

func (s *OrderStore) GetByOrderNoForUpdate(_ context.Context, _ ports.DBTX, orderNo string) (*domain.Order, error) {
	return s.get("GetByOrderNoForUpdate", orderNo)
}

func (s *OrderStore) get(op, orderNo string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(op); err != nil {
		return nil, err
	}
	o, ok := s.orders[orderNo]
	if !ok {
		return nil, domain.ErrOrderNotFound.WithDetail("order_no", orderNo)
	}
	return o.Clone(), nil
}

func (s *OrderStore) Update(_ context.Context, _ ports.DBTX, order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("Update"); err != nil {
		return err
	}
	stored, ok := s.orders[order.OrderNo]
	if !ok {
		return domain.ErrOrderNotFound.WithDetail("order_no", order.OrderNo)
	}
	if stored.Version != order.Version {
		return domain.ErrOrderConcurrentUpdate.WithDetail("order_no", order.OrderNo)
	}
	order.Version++
	updated := order.Clone()
	// instruments are written through UpdatePaymentInstrument only
	updated.PaymentInstruments = stored.PaymentInstruments
	s.orders[order.OrderNo] = updated
	return nil
}

func (s *OrderStore) UpdatePaymentInstrument(_ context.Context, _ ports.DBTX, instrument *domain.PaymentInstrument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("UpdatePaymentInstrument"); err != nil {
		return err
	}
	for _, o := range s.orders {
		for i := range o.PaymentInstruments {
			if o.PaymentInstruments[i].ID == instrument.ID {
				o.PaymentInstruments[i] = *instrument
				return nil
			}
		}
	}
	return domain.ErrInstrumentNotFound.WithDetail("instrument_id", instrument.ID.String())
}

func (s *OrderStore) AddNote(_ context.Context, _ ports.DBTX, note domain.OrderNote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("AddNote"); err != nil {
		return err
	}
	s.notes = append(s.notes, note)
	return nil
}

func (s *OrderStore) CreateFromOrder(_ context.Context, _ ports.DBTX, basket *domain.Basket) (*domain.Basket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("CreateFromOrder"); err != nil {
		return nil, err
	}
	if existing, ok := s.baskets[basket.SourceOrderNo]; ok {
		return existing, nil
	}
	if basket.ID == uuid.Nil {
		basket.ID = uuid.New()
	}
	stored := *basket
	s.baskets[basket.SourceOrderNo] = &stored
	return &stored, nil
}

func (s *OrderStore) Record(_ context.Context, _ ports.DBTX, rec ports.CallbackRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("Record"); err != nil {
		return err
	}
	s.callbacks = append(s.callbacks, rec)
	return nil
}

// Order returns a copy of the stored order, or nil
func (s *OrderStore) Order(orderNo string) *domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.orders[orderNo]; ok {
		return o.Clone()
	}
	return nil
}

// Notes returns the notes written for an order
func (s *OrderStore) Notes(orderID uuid.UUID) []domain.OrderNote {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.OrderNote
	for _, n := range s.notes {
		if n.OrderID == orderID {
			out = append(out, n)
		}
	}
	return out
}

// Basket returns the basket recovered from an order, or nil
func (s *OrderStore) Basket(orderNo string) *domain.Basket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baskets[orderNo]
}

// BasketCount returns the number of recovered baskets
func (s *OrderStore) BasketCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.baskets)
}

// Callbacks returns the recorded callback history
func (s *OrderStore) Callbacks() []ports.CallbackRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.CallbackRecord(nil), s.callbacks...)
}

// Commits returns the number of committed transactions
func (s *OrderStore) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}
