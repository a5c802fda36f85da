package postgres

import (
	"context"
	"fmt"

	"github.com/kevin07696/checkout-callback-service/internal/domain/ports"
)

const insertCallbackSQL = `
INSERT INTO gateway_callbacks (
	order_no, outcome, caller_ip, result_code, transaction_status,
	transaction_id, decision, error
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

// CallbackHistoryRepository implements ports.CallbackHistoryRepository using pgx
type CallbackHistoryRepository struct {
	db ports.DBTX
}

// NewCallbackHistoryRepository creates a new callback history repository
func NewCallbackHistoryRepository(db ports.DBPort) *CallbackHistoryRepository {
	return &CallbackHistoryRepository{db: db.GetDB()}
}

// Record stores one processed callback
func (r *CallbackHistoryRepository) Record(ctx context.Context, db ports.DBTX, rec ports.CallbackRecord) error {
	q := executor(db, r.db)
	_, err := q.Exec(ctx, insertCallbackSQL,
		rec.OrderNo,
		string(rec.Outcome),
		rec.CallerIP,
		nullText(rec.ResultCode),
		nullText(rec.TransactionStatus),
		nullText(rec.TransactionID),
		string(rec.Decision),
		nullText(rec.Error),
	)
	if err != nil {
		return fmt.Errorf("insert callback record: %w", err)
	}
	return nil
}
