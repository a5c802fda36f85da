package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kevin07696/checkout-callback-service/internal/domain"
	"github.com/kevin07696/checkout-callback-service/internal/domain/ports"
)

const orderColumns = `
	id, order_no, customer_id, status, confirmation_status, export_status,
	order_token, currency, total_gross, payment_method_id,
	gateway_transaction_status, gateway_transaction_id, gateway_payment_id,
	gateway_error_code, gateway_error_message, gateway_cardholder_message_shown,
	coupon_codes, billing_address, shipping_address, shipping_method_id,
	version, created_at, updated_at`

const (
	insertOrderSQL = `
INSERT INTO orders (
	id, order_no, customer_id, status, confirmation_status, export_status,
	order_token, currency, total_gross, payment_method_id,
	coupon_codes, billing_address, shipping_address, shipping_method_id,
	version, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, 0, $15, $16)`

	insertInstrumentSQL = `
INSERT INTO order_payment_instruments (
	id, order_id, position, payment_method_id, amount
) VALUES ($1, $2, $3, $4, $5)`

	insertLineItemSQL = `
INSERT INTO order_line_items (order_id, position, product_id, quantity, unit_price)
VALUES ($1, $2, $3, $4, $5)`

	selectOrderByNoSQL          = `SELECT ` + orderColumns + ` FROM orders WHERE order_no = $1`
	selectOrderByNoForUpdateSQL = selectOrderByNoSQL + ` FOR UPDATE`

	selectInstrumentsSQL = `
SELECT id, payment_method_id, amount, masked_card_number, card_type,
	expiration_month, expiration_year, transaction_id, payment_id, reconciliation_identifier
FROM order_payment_instruments
WHERE order_id = $1
ORDER BY position`

	selectLineItemsSQL = `
SELECT product_id, quantity, unit_price
FROM order_line_items
WHERE order_id = $1
ORDER BY position`

	// Optimistic check: the write only lands if nobody bumped the version since the read.
	updateOrderSQL = `
UPDATE orders SET
	status = $3,
	confirmation_status = $4,
	export_status = $5,
	gateway_transaction_status = $6,
	gateway_transaction_id = $7,
	gateway_payment_id = $8,
	gateway_error_code = $9,
	gateway_error_message = $10,
	gateway_cardholder_message_shown = $11,
	version = version + 1,
	updated_at = NOW()
WHERE id = $1 AND version = $2`

	updateInstrumentSQL = `
UPDATE order_payment_instruments SET
	masked_card_number = $2,
	card_type = $3,
	expiration_month = $4,
	expiration_year = $5,
	transaction_id = $6,
	payment_id = $7,
	reconciliation_identifier = $8
WHERE id = $1`

	insertNoteSQL = `
INSERT INTO order_notes (order_id, subject, text, created_at)
VALUES ($1, $2, $3, $4)`
)

// OrderRepository implements ports.OrderRepository using pgx
type OrderRepository struct {
	db ports.DBTX
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db ports.DBPort) *OrderRepository {
	return &OrderRepository{db: db.GetDB()}
}

// Create inserts an order with its payment instruments and line items
func (r *OrderRepository) Create(ctx context.Context, tx ports.DBTX, order *domain.Order) error {
	q := executor(tx, r.db)

	total, err := decimalToPgNumeric(order.TotalGross)
	if err != nil {
		return fmt.Errorf("convert total: %w", err)
	}
	billing, err := addressJSON(order.BillingAddress)
	if err != nil {
		return fmt.Errorf("marshal billing address: %w", err)
	}
	shipping, err := addressJSON(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshal shipping address: %w", err)
	}
	coupons := order.CouponCodes
	if coupons == nil {
		coupons = []string{}
	}

	_, err = q.Exec(ctx, insertOrderSQL,
		order.ID,
		order.OrderNo,
		nullText(order.CustomerID),
		string(order.Status),
		string(order.ConfirmationStatus),
		string(order.ExportStatus),
		order.OrderToken,
		order.Currency,
		total,
		nullText(order.PaymentMethodID),
		coupons,
		billing,
		shipping,
		nullText(order.ShippingMethodID),
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i := range order.PaymentInstruments {
		pi := &order.PaymentInstruments[i]
		if pi.ID == uuid.Nil {
			pi.ID = uuid.New()
		}
		amount, err := decimalToPgNumeric(pi.Amount)
		if err != nil {
			return fmt.Errorf("convert instrument amount: %w", err)
		}
		if _, err := q.Exec(ctx, insertInstrumentSQL, pi.ID, order.ID, i, pi.PaymentMethodID, amount); err != nil {
			return fmt.Errorf("insert payment instrument: %w", err)
		}
	}

	for i, li := range order.LineItems {
		price, err := decimalToPgNumeric(li.UnitPrice)
		if err != nil {
			return fmt.Errorf("convert unit price: %w", err)
		}
		if _, err := q.Exec(ctx, insertLineItemSQL, order.ID, i, li.ProductID, li.Quantity, price); err != nil {
			return fmt.Errorf("insert line item: %w", err)
		}
	}

	order.Version = 0
	return nil
}

// GetByOrderNo retrieves an order by its order number
func (r *OrderRepository) GetByOrderNo(ctx context.Context, db ports.DBTX, orderNo string) (*domain.Order, error) {
	return r.get(ctx, executor(db, r.db), selectOrderByNoSQL, orderNo)
}

// GetByOrderNoForUpdate retrieves an order and locks its row for the rest of tx
func (r *OrderRepository) GetByOrderNoForUpdate(ctx context.Context, tx ports.DBTX, orderNo string) (*domain.Order, error) {
	if tx == nil {
		return nil, fmt.Errorf("lock order %s: transaction required", orderNo)
	}
	return r.get(ctx, tx, selectOrderByNoForUpdateSQL, orderNo)
}

func (r *OrderRepository) get(ctx context.Context, q ports.DBTX, query, orderNo string) (*domain.Order, error) {
	order, err := scanOrder(q.QueryRow(ctx, query, orderNo))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOrderNotFound.WithDetail("order_no", orderNo)
		}
		return nil, fmt.Errorf("get order %s: %w", orderNo, err)
	}

	if order.PaymentInstruments, err = r.instruments(ctx, q, order.ID); err != nil {
		return nil, err
	}
	if order.LineItems, err = r.lineItems(ctx, q, order.ID); err != nil {
		return nil, err
	}
	return order, nil
}

// Update persists lifecycle and gateway fields guarded by the order version
func (r *OrderRepository) Update(ctx context.Context, tx ports.DBTX, order *domain.Order) error {
	q := executor(tx, r.db)

	tag, err := q.Exec(ctx, updateOrderSQL,
		order.ID,
		order.Version,
		string(order.Status),
		string(order.ConfirmationStatus),
		string(order.ExportStatus),
		nullText(order.Gateway.TransactionStatus),
		nullText(order.Gateway.TransactionID),
		nullText(order.Gateway.PaymentID),
		nullText(order.Gateway.ErrorCode),
		nullText(order.Gateway.ErrorMessage),
		order.Gateway.CardHolderMessageMustBeShown,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderConcurrentUpdate.
			WithDetail("order_no", order.OrderNo).
			WithDetail("version", order.Version)
	}

	order.Version++
	return nil
}

// UpdatePaymentInstrument persists the gateway fields of a payment instrument
func (r *OrderRepository) UpdatePaymentInstrument(ctx context.Context, tx ports.DBTX, pi *domain.PaymentInstrument) error {
	q := executor(tx, r.db)

	tag, err := q.Exec(ctx, updateInstrumentSQL,
		pi.ID,
		nullText(pi.MaskedCardNumber),
		nullText(pi.CardType),
		nullInt4(pi.ExpirationMonth),
		nullInt4(pi.ExpirationYear),
		nullText(pi.TransactionID),
		nullText(pi.PaymentID),
		nullText(pi.ReconciliationIdentifier),
	)
	if err != nil {
		return fmt.Errorf("update payment instrument: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInstrumentNotFound.WithDetail("instrument_id", pi.ID.String())
	}
	return nil
}

// AddNote appends an order note
func (r *OrderRepository) AddNote(ctx context.Context, tx ports.DBTX, note domain.OrderNote) error {
	q := executor(tx, r.db)
	if _, err := q.Exec(ctx, insertNoteSQL, note.OrderID, note.Subject, note.Text, note.CreatedAt); err != nil {
		return fmt.Errorf("insert order note: %w", err)
	}
	return nil
}

func (r *OrderRepository) instruments(ctx context.Context, q ports.DBTX, orderID uuid.UUID) ([]domain.PaymentInstrument, error) {
	rows, err := q.Query(ctx, selectInstrumentsSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("query payment instruments: %w", err)
	}
	defer rows.Close()

	var out []domain.PaymentInstrument
	for rows.Next() {
		var (
			pi                                 domain.PaymentInstrument
			amount                             pgtype.Numeric
			masked, cardType, txnID, paymentID pgtype.Text
			reconciliationID                   pgtype.Text
			month, year                        pgtype.Int4
		)
		if err := rows.Scan(&pi.ID, &pi.PaymentMethodID, &amount, &masked, &cardType,
			&month, &year, &txnID, &paymentID, &reconciliationID); err != nil {
			return nil, fmt.Errorf("scan payment instrument: %w", err)
		}
		if pi.Amount, err = pgNumericToDecimal(amount); err != nil {
			return nil, fmt.Errorf("convert instrument amount: %w", err)
		}
		pi.MaskedCardNumber = masked.String
		pi.CardType = cardType.String
		pi.ExpirationMonth = int(month.Int32)
		pi.ExpirationYear = int(year.Int32)
		pi.TransactionID = txnID.String
		pi.PaymentID = paymentID.String
		pi.ReconciliationIdentifier = reconciliationID.String
		out = append(out, pi)
	}
	return out, rows.Err()
}

func (r *OrderRepository) lineItems(ctx context.Context, q ports.DBTX, orderID uuid.UUID) ([]domain.LineItem, error) {
	rows, err := q.Query(ctx, selectLineItemsSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("query line items: %w", err)
	}
	defer rows.Close()

	var out []domain.LineItem
	for rows.Next() {
		var (
			li    domain.LineItem
			price pgtype.Numeric
		)
		if err := rows.Scan(&li.ProductID, &li.Quantity, &price); err != nil {
			return nil, fmt.Errorf("scan line item: %w", err)
		}
		if li.UnitPrice, err = pgNumericToDecimal(price); err != nil {
			return nil, fmt.Errorf("convert unit price: %w", err)
		}
		out = append(out, li)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o                                           domain.Order
		status, confirmation, export                string
		total                                       pgtype.Numeric
		customerID, paymentMethodID, shippingMethod pgtype.Text
		gwStatus, gwTxnID, gwPaymentID              pgtype.Text
		gwErrorCode, gwErrorMessage                 pgtype.Text
		billing, shipping                           []byte
	)
	err := row.Scan(
		&o.ID, &o.OrderNo, &customerID, &status, &confirmation, &export,
		&o.OrderToken, &o.Currency, &total, &paymentMethodID,
		&gwStatus, &gwTxnID, &gwPaymentID,
		&gwErrorCode, &gwErrorMessage, &o.Gateway.CardHolderMessageMustBeShown,
		&o.CouponCodes, &billing, &shipping, &shippingMethod,
		&o.Version, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if o.TotalGross, err = pgNumericToDecimal(total); err != nil {
		return nil, fmt.Errorf("convert total: %w", err)
	}
	if o.BillingAddress, err = parseAddress(billing); err != nil {
		return nil, err
	}
	if o.ShippingAddress, err = parseAddress(shipping); err != nil {
		return nil, err
	}

	o.Status = domain.OrderStatus(status)
	o.ConfirmationStatus = domain.ConfirmationStatus(confirmation)
	o.ExportStatus = domain.ExportStatus(export)
	o.CustomerID = customerID.String
	o.PaymentMethodID = paymentMethodID.String
	o.ShippingMethodID = shippingMethod.String
	o.Gateway.TransactionStatus = gwStatus.String
	o.Gateway.TransactionID = gwTxnID.String
	o.Gateway.PaymentID = gwPaymentID.String
	o.Gateway.ErrorCode = gwErrorCode.String
	o.Gateway.ErrorMessage = gwErrorMessage.String
	return &o, nil
}
