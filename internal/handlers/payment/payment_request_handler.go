package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kevin07696/checkout-callback-service/internal/domain"
	"github.com/kevin07696/checkout-callback-service/internal/services/payment_request"
	"github.com/kevin07696/checkout-callback-service/pkg/observability"
	"go.uber.org/zap"
)

// PaymentRequestPath is the route pattern for payment request creation
const PaymentRequestPath = "/api/v1/orders/{order_no}/payment-request"

// PaymentRequestService creates hosted payment pages for orders
type PaymentRequestService interface {
	CreatePaymentRequest(ctx context.Context, orderNo string) (*payment_request.Result, error)
}

// PaymentRequestHandler exposes payment request creation to the storefront
type PaymentRequestHandler struct {
	service PaymentRequestService
	logger  *zap.Logger
}

// NewPaymentRequestHandler creates a new payment request handler
func NewPaymentRequestHandler(service PaymentRequestService, logger *zap.Logger) *PaymentRequestHandler {
	return &PaymentRequestHandler{
		service: service,
		logger:  logger,
	}
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// HandleCreate serves POST /api/v1/orders/{order_no}/payment-request
func (h *PaymentRequestHandler) HandleCreate(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	orderNo := pathParams["order_no"]
	res, err := h.service.CreatePaymentRequest(r.Context(), orderNo)
	if err != nil {
		status := statusFor(err)
		label := "failed"
		if status < http.StatusInternalServerError {
			label = "rejected"
		}
		observability.RecordPaymentRequest("", label)

		h.logger.Warn("Payment request not created",
			zap.String("order_no", orderNo),
			zap.Int("status", status),
			zap.Error(err))
		h.writeError(w, status, err)
		return
	}

	observability.RecordPaymentRequest(res.Currency, "created")
	h.writeJSON(w, http.StatusCreated, res)
}

// statusFor maps domain error codes to HTTP status codes
func statusFor(err error) int {
	switch domain.GetErrorCode(err) {
	case domain.ErrorCodeValidationMissingField:
		return http.StatusBadRequest
	case domain.ErrorCodeOrderNotFound:
		return http.StatusNotFound
	case domain.ErrorCodeOrderInvalidTransition:
		return http.StatusConflict
	case domain.ErrorCodeTerminalNotFound:
		return http.StatusUnprocessableEntity
	case domain.ErrorCodeGatewayTimeout:
		return http.StatusGatewayTimeout
	case domain.ErrorCodeGatewayError:
		return http.StatusBadGateway
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (h *PaymentRequestHandler) writeError(w http.ResponseWriter, status int, err error) {
	var body errorBody
	body.Error.Code = string(domain.GetErrorCode(err))
	if body.Error.Code == "" {
		body.Error.Code = string(domain.ErrorCodeInternalError)
	}

	var de *domain.DomainError
	if status < http.StatusInternalServerError && errors.As(err, &de) {
		body.Error.Message = de.Message
	} else {
		body.Error.Message = http.StatusText(status)
	}
	h.writeJSON(w, status, body)
}

func (h *PaymentRequestHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}
