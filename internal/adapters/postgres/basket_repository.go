package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kevin07696/checkout-callback-service/internal/domain"
	"github.com/kevin07696/checkout-callback-service/internal/domain/ports"
)

const (
	// ON CONFLICT keeps the first basket when recovery runs twice for one order.
	insertBasketSQL = `
INSERT INTO baskets (
	id, source_order_no, customer_id, currency, line_items, coupon_codes,
	billing_address, shipping_address, shipping_method_id, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (source_order_no) DO NOTHING`

	selectBasketBySourceSQL = `
SELECT id, source_order_no, customer_id, currency, line_items, coupon_codes,
	billing_address, shipping_address, shipping_method_id, created_at
FROM baskets
WHERE source_order_no = $1`
)

// basketLineItem is the JSONB shape of a recovered line item
type basketLineItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
}

// BasketRepository implements ports.BasketRepository using pgx
type BasketRepository struct {
	db ports.DBTX
}

// NewBasketRepository creates a new basket repository
func NewBasketRepository(db ports.DBPort) *BasketRepository {
	return &BasketRepository{db: db.GetDB()}
}

// CreateFromOrder stores the basket unless one was already recovered for the
// same order, and returns whichever basket is stored.
func (r *BasketRepository) CreateFromOrder(ctx context.Context, tx ports.DBTX, basket *domain.Basket) (*domain.Basket, error) {
	q := executor(tx, r.db)

	items := make([]basketLineItem, 0, len(basket.LineItems))
	for _, li := range basket.LineItems {
		items = append(items, basketLineItem{
			ProductID: li.ProductID,
			Quantity:  li.Quantity,
			UnitPrice: li.UnitPrice.String(),
		})
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("marshal line items: %w", err)
	}
	billing, err := addressJSON(basket.BillingAddress)
	if err != nil {
		return nil, fmt.Errorf("marshal billing address: %w", err)
	}
	shipping, err := addressJSON(basket.ShippingAddress)
	if err != nil {
		return nil, fmt.Errorf("marshal shipping address: %w", err)
	}
	coupons := basket.CouponCodes
	if coupons == nil {
		coupons = []string{}
	}

	_, err = q.Exec(ctx, insertBasketSQL,
		basket.ID,
		basket.SourceOrderNo,
		nullText(basket.CustomerID),
		basket.Currency,
		itemsJSON,
		coupons,
		billing,
		shipping,
		nullText(basket.ShippingMethodID),
		basket.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert basket: %w", err)
	}

	return r.getBySourceOrder(ctx, q, basket.SourceOrderNo)
}

func (r *BasketRepository) getBySourceOrder(ctx context.Context, q ports.DBTX, orderNo string) (*domain.Basket, error) {
	var (
		b                              domain.Basket
		customerID, shippingMethod     pgtype.Text
		itemsJSON, billing, shippingJS []byte
	)
	err := q.QueryRow(ctx, selectBasketBySourceSQL, orderNo).Scan(
		&b.ID, &b.SourceOrderNo, &customerID, &b.Currency, &itemsJSON, &b.CouponCodes,
		&billing, &shippingJS, &shippingMethod, &b.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("get basket for order %s: %w", orderNo, err)
	}

	var items []basketLineItem
	if err := json.Unmarshal(itemsJSON, &items); err != nil {
		return nil, fmt.Errorf("unmarshal line items: %w", err)
	}
	for _, it := range items {
		li := domain.LineItem{ProductID: it.ProductID, Quantity: it.Quantity}
		if err := li.UnitPrice.UnmarshalText([]byte(it.UnitPrice)); err != nil {
			return nil, fmt.Errorf("parse unit price: %w", err)
		}
		b.LineItems = append(b.LineItems, li)
	}
	if b.BillingAddress, err = parseAddress(billing); err != nil {
		return nil, err
	}
	if b.ShippingAddress, err = parseAddress(shippingJS); err != nil {
		return nil, err
	}
	b.CustomerID = customerID.String
	b.ShippingMethodID = shippingMethod.String
	return &b, nil
}
