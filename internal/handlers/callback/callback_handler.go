package callback

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"time"

	"github.com/kevin07696/checkout-callback-service/internal/domain"
	"github.com/kevin07696/checkout-callback-service/internal/middleware"
	callbacksvc "github.com/kevin07696/checkout-callback-service/internal/services/callback"
	"github.com/kevin07696/checkout-callback-service/pkg/observability"
	"go.uber.org/zap"
)

const maxCallbackBodyBytes = 1 << 20

// Reconciler is the callback processing surface the handler drives
type Reconciler interface {
	Reconcile(ctx context.Context, req callbacksvc.Request) (callbacksvc.Ack, error)
	AuthorizeForm(ctx context.Context, callerIP string, form url.Values) (*domain.Order, error)
}

// Handler serves the gateway callback endpoints.
// Business outcomes are always answered with 200 and a feedback page; only
// transient failures answer 503 so the gateway retries the notification.
type Handler struct {
	reconciler Reconciler
	logger     *zap.Logger
	pages      *template.Template
}

// NewHandler creates a new callback handler
func NewHandler(reconciler Reconciler, logger *zap.Logger) *Handler {
	pages := template.Must(template.New(string(callbacksvc.AckFeedback)).Parse(feedbackTemplate))
	template.Must(pages.New(string(callbacksvc.AckOrderNotFound)).Parse(orderNotFoundTemplate))
	template.Must(pages.New(formTemplateName).Parse(callbackFormTemplate))

	return &Handler{
		reconciler: reconciler,
		logger:     logger,
		pages:      pages,
	}
}

// HandleCallback serves POST /api/v1/gateway/callbacks/{outcome}.
// The signature matches runtime.HandlerFunc so it can be mounted with HandlePath.
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	start := time.Now()

	if r.Method != http.MethodPost {
		h.logger.Warn("Gateway callback received non-POST request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	outcome, ok := domain.ParseCallbackOutcome(pathParams["outcome"])
	if !ok {
		http.NotFound(w, r)
		return
	}

	form := h.readForm(w, r)
	callerIP := middleware.ClientIPFromRequest(r)

	h.logger.Info("Received gateway callback",
		zap.String("outcome", string(outcome)),
		zap.String("caller_ip", callerIP),
		zap.Int("form_values", len(form)))

	ack, err := h.reconciler.Reconcile(r.Context(), callbacksvc.Request{
		Outcome:  outcome,
		CallerIP: callerIP,
		Form:     form,
	})

	result := resultLabel(err)
	observability.RecordCallback(string(outcome), string(ack.Decision), result, time.Since(start).Seconds())

	switch result {
	case "transient":
		w.Header().Set("Retry-After", "5")
		http.Error(w, "Service temporarily unavailable", http.StatusServiceUnavailable)
		return
	case "rejected":
		h.logger.Warn("Gateway callback rejected",
			zap.String("outcome", string(outcome)),
			zap.String("caller_ip", callerIP),
			zap.String("order_no", ack.OrderNo),
			zap.String("error_code", string(domain.GetErrorCode(err))))
	case "error":
		h.logger.Error("Gateway callback processing failed",
			zap.String("outcome", string(outcome)),
			zap.String("order_no", ack.OrderNo),
			zap.Error(err))
	}

	h.render(w, string(ack.Template), ack)
}

// HandleForm serves GET|POST /api/v1/gateway/callbacks/form, the wrapper page
// the gateway renders its hosted payment form into.
func (h *Handler) HandleForm(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	form := h.readForm(w, r)
	callerIP := middleware.ClientIPFromRequest(r)

	order, err := h.reconciler.AuthorizeForm(r.Context(), callerIP, form)
	if err != nil {
		result := resultLabel(err)
		observability.RecordCallbackForm(result)
		if result == "transient" {
			w.Header().Set("Retry-After", "5")
			http.Error(w, "Service temporarily unavailable", http.StatusServiceUnavailable)
			return
		}
		h.logger.Warn("Payment form request refused",
			zap.String("caller_ip", callerIP),
			zap.String("error_code", string(domain.GetErrorCode(err))),
			zap.Error(err))
		h.render(w, string(callbacksvc.AckOrderNotFound), callbacksvc.Ack{})
		return
	}

	observability.RecordCallbackForm("rendered")
	h.render(w, formTemplateName, formView{
		OrderNo:  order.OrderNo,
		Amount:   order.TotalGross.StringFixed(2),
		Currency: order.Currency,
		Items:    len(order.LineItems),
	})
}

func (h *Handler) readForm(w http.ResponseWriter, r *http.Request) url.Values {
	if r.Body != nil {
		r.Body = http.MaxBytesReader(w, r.Body, maxCallbackBodyBytes)
	}
	if err := r.ParseForm(); err != nil {
		h.logger.Warn("Failed to parse callback form data",
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	if r.Form == nil {
		return url.Values{}
	}
	return r.Form
}

// render writes a page with status 200; the gateway only retries on 5xx
func (h *Handler) render(w http.ResponseWriter, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	if err := h.pages.ExecuteTemplate(w, name, data); err != nil {
		h.logger.Error("Failed to render callback template",
			zap.String("template", name),
			zap.Error(err))
	}
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case domain.IsTransientError(err):
		return "transient"
	case domain.IsAuthError(err):
		return "rejected"
	case errors.Is(err, domain.ErrOrderNotFound):
		return "not_found"
	default:
		return "error"
	}
}

type formView struct {
	OrderNo  string
	Amount   string
	Currency string
	Items    int
}

const formTemplateName = "callback_form"
