package payment_request

import (
	"context"
	"fmt"
	"strings"

	adapterports "github.com/kevin07696/checkout-callback-service/internal/adapters/ports"
	"github.com/kevin07696/checkout-callback-service/internal/domain"
	"github.com/kevin07696/checkout-callback-service/internal/domain/ports"
	"go.uber.org/zap"
)

// TerminalResolver picks the gateway terminal for a payment method and currency
type TerminalResolver interface {
	Resolve(paymentMethod, currency string) (string, error)
}

// Config holds payment request settings
type Config struct {
	// CallbackBaseURL is the public base URL of this service, without trailing slash
	CallbackBaseURL string
	Language        string
	PaymentType     string
	TokenKey        string
}

// Result is what the storefront needs to send the shopper to the gateway
type Result struct {
	OrderNo          string `json:"order_no"`
	PaymentRequestID string `json:"payment_request_id"`
	RedirectURL      string `json:"redirect_url"`
	Terminal         string `json:"terminal"`
	Currency         string `json:"currency"`
}

// Service registers orders with the payment gateway
type Service struct {
	orders    ports.OrderService
	terminals TerminalResolver
	gateway   adapterports.GatewayAPI
	cfg       Config
	logger    *zap.Logger
}

// NewService creates a new payment request service
func NewService(
	orders ports.OrderService,
	terminals TerminalResolver,
	gateway adapterports.GatewayAPI,
	cfg Config,
	logger *zap.Logger,
) *Service {
	cfg.CallbackBaseURL = strings.TrimRight(cfg.CallbackBaseURL, "/")
	return &Service{
		orders:    orders,
		terminals: terminals,
		gateway:   gateway,
		cfg:       cfg,
		logger:    logger,
	}
}

// CreatePaymentRequest creates a hosted payment page for an order that has
// not been paid yet and returns its URL.
func (s *Service) CreatePaymentRequest(ctx context.Context, orderNo string) (*Result, error) {
	if orderNo == "" {
		return nil, domain.ErrValidationMissingField.WithDetail("field", "order_no")
	}

	order, err := s.orders.GetOrder(ctx, nil, orderNo)
	if err != nil {
		return nil, err
	}
	if order.IsTerminal() || order.IsConfirmed() {
		return nil, domain.ErrOrderInvalidTransition.
			WithDetail("order_no", orderNo).
			WithDetail("status", string(order.Status)).
			WithDetail("confirmation_status", string(order.ConfirmationStatus))
	}

	terminal, err := s.terminals.Resolve(order.PaymentMethodID, order.Currency)
	if err != nil {
		return nil, err
	}

	req := &adapterports.PaymentRequest{
		Terminal:     terminal,
		ShopOrderID:  order.OrderNo,
		Amount:       order.TotalGross,
		Currency:     order.Currency,
		Language:     s.cfg.Language,
		Type:         s.cfg.PaymentType,
		OrderToken:   order.OrderToken,
		TokenKey:     s.cfg.TokenKey,
		CallbackURLs: s.callbackURLs(),
		CustomerInfo: customerInfo(order),
	}

	res, err := s.gateway.CreatePaymentRequest(ctx, req)
	if err != nil {
		s.logger.Error("Failed to create payment request",
			zap.String("order_no", orderNo),
			zap.String("terminal", terminal),
			zap.Error(err))
		return nil, fmt.Errorf("create payment request for order %s: %w", orderNo, err)
	}

	s.logger.Info("Payment request created",
		zap.String("order_no", orderNo),
		zap.String("terminal", terminal),
		zap.String("payment_request_id", res.PaymentRequestID))

	return &Result{
		OrderNo:          orderNo,
		PaymentRequestID: res.PaymentRequestID,
		RedirectURL:      res.RedirectURL,
		Terminal:         terminal,
		Currency:         order.Currency,
	}, nil
}

func (s *Service) callbackURLs() adapterports.CallbackURLs {
	base := s.cfg.CallbackBaseURL
	return adapterports.CallbackURLs{
		Form:         base + domain.CallbackFormPath,
		Success:      base + domain.CallbackOutcomeSuccess.Path(),
		Open:         base + domain.CallbackOutcomeOpen.Path(),
		Fail:         base + domain.CallbackOutcomeFail.Path(),
		Notification: base + domain.CallbackOutcomeNotification.Path(),
	}
}

// customerInfo maps the billing address to the gateway's customer_info fields
func customerInfo(order *domain.Order) map[string]string {
	info := map[string]string{}
	set := func(k, v string) {
		if v != "" {
			info[k] = v
		}
	}
	set("customer_id", order.CustomerID)
	if a := order.BillingAddress; a != nil {
		set("billing_firstname", a.FirstName)
		set("billing_lastname", a.LastName)
		set("billing_address", strings.TrimSpace(a.Address1+" "+a.Address2))
		set("billing_city", a.City)
		set("billing_postal", a.PostalCode)
		set("billing_country", a.CountryCode)
		set("customer_phone", a.Phone)
	}
	if a := order.ShippingAddress; a != nil {
		set("shipping_firstname", a.FirstName)
		set("shipping_lastname", a.LastName)
		set("shipping_address", strings.TrimSpace(a.Address1+" "+a.Address2))
		set("shipping_city", a.City)
		set("shipping_postal", a.PostalCode)
		set("shipping_country", a.CountryCode)
	}
	return info
}
