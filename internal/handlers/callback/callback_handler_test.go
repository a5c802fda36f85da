package callback

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/kevin07696/checkout-callback-service/internal/domain"
	"github.com/kevin07696/checkout-callback-service/internal/middleware"
	callbacksvc "github.com/kevin07696/checkout-callback-service/internal/services/callback"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type mockReconciler struct {
	mock.Mock
}

func (m *mockReconciler) Reconcile(ctx context.Context, req callbacksvc.Request) (callbacksvc.Ack, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(callbacksvc.Ack), args.Error(1)
}

func (m *mockReconciler) AuthorizeForm(ctx context.Context, callerIP string, form url.Values) (*domain.Order, error) {
	args := m.Called(ctx, callerIP, form)
	order, _ := args.Get(0).(*domain.Order)
	return order, args.Error(1)
}

func postForm(target string, form url.Values, remoteIP string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = remoteIP + ":443"
	return req
}

func TestHandleCallback(t *testing.T) {
	tests := []struct {
		name       string
		ack        callbacksvc.Ack
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "confirmed",
			ack:        callbacksvc.Ack{Template: callbacksvc.AckFeedback, OrderNo: "00001234", Decision: domain.DecisionConfirm, Confirmed: true},
			wantStatus: http.StatusOK,
			wantBody:   `data-decision="confirm"`,
		},
		{
			name:       "cancelled shows shopper message",
			ack:        callbacksvc.Ack{Template: callbacksvc.AckFeedback, OrderNo: "00001234", Decision: domain.DecisionCancel, Message: "Card <declined>"},
			wantStatus: http.StatusOK,
			wantBody:   "Card &lt;declined&gt;",
		},
		{
			name:       "untrusted caller",
			ack:        callbacksvc.Ack{Template: callbacksvc.AckOrderNotFound, OrderNo: "00001234"},
			err:        domain.ErrUntrustedIP,
			wantStatus: http.StatusOK,
			wantBody:   "Order not found",
		},
		{
			name:       "unknown order",
			ack:        callbacksvc.Ack{Template: callbacksvc.AckOrderNotFound, OrderNo: "00001234"},
			err:        domain.ErrOrderNotFound,
			wantStatus: http.StatusOK,
			wantBody:   "Order not found",
		},
		{
			name:       "processing error still acknowledged",
			ack:        callbacksvc.Ack{Template: callbacksvc.AckFeedback, OrderNo: "00001234", Decision: domain.DecisionNoResult},
			err:        domain.WrapError(domain.ErrorCodeReconciliationFailed, "confirm order", errors.New("constraint violation")),
			wantStatus: http.StatusOK,
			wantBody:   `data-decision="no_result"`,
		},
		{
			name:       "transient failure asks for retry",
			ack:        callbacksvc.Ack{Template: callbacksvc.AckFeedback, OrderNo: "00001234"},
			err:        domain.WrapError(domain.ErrorCodeReconciliationTransient, "acquire order lock", context.DeadlineExceeded),
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := new(mockReconciler)
			rec.On("Reconcile", mock.Anything, mock.MatchedBy(func(req callbacksvc.Request) bool {
				return req.Outcome == domain.CallbackOutcomeNotification &&
					req.CallerIP == "10.0.0.1" &&
					req.Form.Get("shop_orderid") == "00001234"
			})).Return(tt.ack, tt.err)

			h := NewHandler(rec, zaptest.NewLogger(t))
			w := httptest.NewRecorder()
			form := url.Values{"shop_orderid": {"00001234"}, "status": {"succeeded"}}
			h.HandleCallback(w, postForm(domain.CallbackOutcomeNotification.Path(), form, "10.0.0.1"),
				map[string]string{"outcome": "notification"})

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusServiceUnavailable {
				assert.Equal(t, "5", w.Header().Get("Retry-After"))
			} else {
				assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
				assert.Contains(t, w.Body.String(), tt.wantBody)
			}
			rec.AssertExpectations(t)
		})
	}
}

func TestHandleCallback_UsesResolvedClientIP(t *testing.T) {
	rec := new(mockReconciler)
	rec.On("Reconcile", mock.Anything, mock.MatchedBy(func(req callbacksvc.Request) bool {
		return req.CallerIP == "203.0.113.10"
	})).Return(callbacksvc.Ack{Template: callbacksvc.AckFeedback}, nil)

	h := NewHandler(rec, zaptest.NewLogger(t))
	req := postForm(domain.CallbackOutcomeSuccess.Path(), url.Values{}, "10.0.0.1")
	req = req.WithContext(middleware.WithClientIP(req.Context(), "203.0.113.10"))
	w := httptest.NewRecorder()

	h.HandleCallback(w, req, map[string]string{"outcome": "success"})

	assert.Equal(t, http.StatusOK, w.Code)
	rec.AssertExpectations(t)
}

func TestHandleCallback_RejectsBadRequests(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		outcome    string
		wantStatus int
	}{
		{name: "get", method: http.MethodGet, outcome: "success", wantStatus: http.StatusMethodNotAllowed},
		{name: "unknown outcome", method: http.MethodPost, outcome: "refund", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := new(mockReconciler)
			h := NewHandler(rec, zaptest.NewLogger(t))
			req := httptest.NewRequest(tt.method, domain.CallbackRoutePrefix+"/"+tt.outcome, nil)
			w := httptest.NewRecorder()

			h.HandleCallback(w, req, map[string]string{"outcome": tt.outcome})

			assert.Equal(t, tt.wantStatus, w.Code)
			rec.AssertNotCalled(t, "Reconcile", mock.Anything, mock.Anything)
		})
	}
}

func TestHandleForm(t *testing.T) {
	order := &domain.Order{
		OrderNo:    "00001234",
		Currency:   "EUR",
		TotalGross: decimal.RequireFromString("49.9"),
		LineItems:  []domain.LineItem{{ProductID: "sku-1", Quantity: 1}},
	}

	t.Run("renders wrapper", func(t *testing.T) {
		rec := new(mockReconciler)
		rec.On("AuthorizeForm", mock.Anything, "10.0.0.1", mock.MatchedBy(func(f url.Values) bool {
			return f.Get("shop_orderid") == "00001234"
		})).Return(order, nil)

		h := NewHandler(rec, zaptest.NewLogger(t))
		w := httptest.NewRecorder()
		h.HandleForm(w, postForm(domain.CallbackFormPath, url.Values{"shop_orderid": {"00001234"}}, "10.0.0.1"), nil)

		require.Equal(t, http.StatusOK, w.Code)
		body := w.Body.String()
		assert.Contains(t, body, `id="PensioPaymentForm"`)
		assert.Contains(t, body, "49.90 EUR")
		assert.Contains(t, body, "Order 00001234")
	})

	t.Run("refused caller gets not found page", func(t *testing.T) {
		rec := new(mockReconciler)
		rec.On("AuthorizeForm", mock.Anything, mock.Anything, mock.Anything).Return(nil, domain.ErrTokenMismatch)

		h := NewHandler(rec, zaptest.NewLogger(t))
		w := httptest.NewRecorder()
		h.HandleForm(w, postForm(domain.CallbackFormPath, url.Values{}, "10.0.0.1"), nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Order not found")
		assert.NotContains(t, w.Body.String(), "PensioPaymentForm")
	})

	t.Run("transient failure", func(t *testing.T) {
		rec := new(mockReconciler)
		rec.On("AuthorizeForm", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, domain.WrapError(domain.ErrorCodeReconciliationTransient, "load order", context.DeadlineExceeded))

		h := NewHandler(rec, zaptest.NewLogger(t))
		w := httptest.NewRecorder()
		h.HandleForm(w, httptest.NewRequest(http.MethodGet, domain.CallbackFormPath+"?shop_orderid=1", nil), nil)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}
