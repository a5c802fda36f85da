package callback

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	adapterports "github.com/kevin07696/checkout-callback-service/internal/adapters/ports"
	"github.com/kevin07696/checkout-callback-service/internal/domain"
	"github.com/kevin07696/checkout-callback-service/internal/domain/ports"
	"go.uber.org/zap"
)

// AckTemplate names the acknowledgement page returned to the gateway
type AckTemplate string

const (
	AckFeedback      AckTemplate = "feedback"
	AckOrderNotFound AckTemplate = "order_not_found"
)

// Ack is the result of reconciling one callback
type Ack struct {
	Template  AckTemplate
	OrderNo   string
	Decision  domain.DecisionKind
	Confirmed bool
	Message   string
}

// Request is one inbound gateway callback
type Request struct {
	Outcome  domain.CallbackOutcome
	CallerIP string
	Form     url.Values
}

// FormParser decodes a callback form into a transaction result
type FormParser interface {
	ParseForm(form url.Values) (domain.TransactionResult, error)
}

// Dependencies are the collaborators of the Reconciler.
// Gateway, Publisher and History are optional.
type Dependencies struct {
	DB        ports.TransactionManager
	Orders    ports.OrderService
	Baskets   ports.BasketRecoverer
	Updater   *InstrumentUpdater
	Parser    FormParser
	Auth      *Authenticator
	Locker    ports.OrderLocker
	Gateway   adapterports.GatewayAPI
	Publisher adapterports.EventPublisher
	History   ports.CallbackHistoryRepository
}

// Config holds reconciler settings
type Config struct {
	AllowedIPs []string
	// Timeout bounds lock acquisition plus all downstream calls for one callback
	Timeout time.Duration
	// SideEffectTimeout bounds post-commit calls (events, history, reservation release)
	SideEffectTimeout time.Duration
}

// Reconciler turns authenticated gateway callbacks into order transitions
type Reconciler struct {
	deps   Dependencies
	cfg    Config
	logger *zap.Logger
}

// NewReconciler creates a new callback reconciler
func NewReconciler(deps Dependencies, cfg Config, logger *zap.Logger) *Reconciler {
	if cfg.SideEffectTimeout <= 0 {
		cfg.SideEffectTimeout = 5 * time.Second
	}
	if deps.Locker == nil {
		deps.Locker = NewKeyedLocker()
	}
	return &Reconciler{
		deps:   deps,
		cfg:    cfg,
		logger: logger,
	}
}

// Reconcile processes one callback.
// The returned Ack is always usable. A non-nil error is for logging and
// metrics, except that domain.IsTransientError(err) means the gateway
// should be asked to retry.
func (r *Reconciler) Reconcile(ctx context.Context, req Request) (Ack, error) {
	tr, parseErr := r.deps.Parser.ParseForm(req.Form)
	if parseErr != nil {
		r.logger.Warn("Unreadable callback payload, treating as no result",
			zap.String("outcome", string(req.Outcome)),
			zap.String("caller_ip", req.CallerIP),
			zap.Error(parseErr))
	}

	if err := r.deps.Auth.CheckCaller(req.CallerIP, r.cfg.AllowedIPs); err != nil {
		return Ack{Template: AckOrderNotFound, OrderNo: tr.ShopOrderID(), Decision: domain.DecisionNoResult}, err
	}

	orderNo := tr.ShopOrderID()
	if orderNo == "" {
		r.logger.Warn("Callback without shop order id",
			zap.String("outcome", string(req.Outcome)),
			zap.String("caller_ip", req.CallerIP))
		return Ack{Template: AckOrderNotFound, Decision: domain.DecisionNoResult}, domain.ErrOrderNotFound
	}

	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	unlock, err := r.deps.Locker.Lock(ctx, orderNo)
	if err != nil {
		r.logger.Warn("Could not acquire order lock",
			zap.String("order_no", orderNo),
			zap.Error(err))
		return Ack{Template: AckFeedback, OrderNo: orderNo, Decision: domain.DecisionNoResult},
			domain.WrapError(domain.ErrorCodeReconciliationTransient, "acquire order lock", err)
	}
	defer unlock()

	ack, decision, err := r.reconcileLocked(ctx, req, tr, orderNo)
	r.recordHistory(ctx, req, tr, orderNo, decision, err)
	return ack, err
}

func (r *Reconciler) reconcileLocked(ctx context.Context, req Request, tr domain.TransactionResult, orderNo string) (Ack, domain.DecisionKind, error) {
	notFound := Ack{Template: AckOrderNotFound, OrderNo: orderNo, Decision: domain.DecisionNoResult}
	noop := Ack{Template: AckFeedback, OrderNo: orderNo, Decision: domain.DecisionNoResult}

	order, err := r.loadOrder(ctx, orderNo)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			r.logger.Warn("Callback for unknown order",
				zap.String("order_no", orderNo),
				zap.String("outcome", string(req.Outcome)))
			r.releaseReservation(ctx, tr, orderNo)
			return notFound, domain.DecisionNoResult, err
		}
		return noop, domain.DecisionNoResult, r.downstreamError("load order", orderNo, err)
	}

	if err := r.deps.Auth.VerifyToken(req.CallerIP, tr, order); err != nil {
		return notFound, domain.DecisionNoResult, err
	}

	if order.IsTerminal() {
		r.logger.Info("Callback for order in terminal state ignored",
			zap.String("order_no", orderNo),
			zap.String("status", string(order.Status)),
			zap.String("outcome", string(req.Outcome)))
		if tr.ResultCode().IsSuccess() {
			r.releaseReservation(ctx, tr, orderNo)
		}
		noop.Message = DescribeFailure(tr).ShopperMessage()
		return noop, domain.DecisionNoResult, nil
	}

	decision := r.decide(req.Outcome, tr, order)

	r.logger.Info("Callback classified",
		zap.String("order_no", orderNo),
		zap.String("outcome", string(req.Outcome)),
		zap.String("result", tr.RawResultCode()),
		zap.String("transaction_status", tr.TransactionStatus()),
		zap.String("decision", string(decision.Kind)))

	switch decision.Kind {
	case domain.DecisionConfirm:
		ack, err := r.confirm(ctx, tr, decision, orderNo)
		return ack, ack.Decision, err
	case domain.DecisionCancel, domain.DecisionFail:
		ack, err := r.terminate(ctx, tr, decision.Kind, orderNo, "")
		return ack, ack.Decision, err
	default:
		if req.Outcome == domain.CallbackOutcomeOpen && tr.Present() {
			ack, err := r.open(ctx, tr, orderNo)
			return ack, domain.DecisionNoResult, err
		}
		noop.Confirmed = order.IsConfirmed()
		return noop, domain.DecisionNoResult, nil
	}
}

// loadOrder reads the order outside the write transaction. The result is
// only used for authentication and classification; writes re-read it under
// FOR UPDATE.
func (r *Reconciler) loadOrder(ctx context.Context, orderNo string) (*domain.Order, error) {
	var order *domain.Order
	err := r.deps.DB.WithReadOnlyTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		order, err = r.deps.Orders.GetOrder(ctx, tx, orderNo)
		return err
	})
	return order, err
}

// decide applies the endpoint-specific rules around Classify: a fraud
// recommendation of Deny or Challenge fails a successful payment or an
// open-endpoint placement, and a non-success result on the fail endpoint
// that the table leaves open is cancelled so the shopper gets the basket back.
func (r *Reconciler) decide(outcome domain.CallbackOutcome, tr domain.TransactionResult, order *domain.Order) domain.Decision {
	decision := Classify(tr, order.TotalGross)

	fraudChecked := decision.Kind == domain.DecisionConfirm ||
		(decision.Kind == domain.DecisionNoResult && outcome == domain.CallbackOutcomeOpen && tr.Present())
	if fraudChecked {
		switch tr.FraudRecommendation() {
		case domain.FraudRecommendationDeny, domain.FraudRecommendationChallenge:
			r.logger.Warn("Fraud check rejected payment",
				zap.String("order_no", order.OrderNo),
				zap.String("fraud_recommendation", tr.FraudRecommendation()))
			return domain.Fail()
		}
	}

	if decision.Kind == domain.DecisionNoResult && outcome == domain.CallbackOutcomeFail &&
		tr.Present() && !tr.ResultCode().IsSuccess() {
		return domain.Cancel()
	}

	return decision
}

func (r *Reconciler) confirm(ctx context.Context, tr domain.TransactionResult, decision domain.Decision, orderNo string) (Ack, error) {
	ack := Ack{Template: AckFeedback, OrderNo: orderNo, Decision: domain.DecisionConfirm, Confirmed: true}
	var confirmed *domain.Order

	err := r.deps.DB.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		order, err := r.deps.Orders.LockOrder(ctx, tx, orderNo)
		if err != nil {
			return fmt.Errorf("lock order: %w", err)
		}
		if order.IsTerminal() || order.IsConfirmed() {
			ack.Decision = domain.DecisionNoResult
			ack.Confirmed = order.IsConfirmed()
			return nil
		}

		order.ConfirmationStatus = domain.ConfirmationStatusConfirmed
		order.ExportStatus = domain.ExportStatusReady
		order.Gateway.TransactionStatus = decision.TransactionStatus
		order.Gateway.TransactionID = tr.TransactionID()
		order.Gateway.PaymentID = tr.PaymentID()
		order.Gateway.ErrorCode = ""
		order.Gateway.ErrorMessage = ""

		if err := r.deps.Updater.Update(ctx, tx, order, tr); err != nil {
			if !errors.Is(err, domain.ErrInstrumentNotFound) {
				return err
			}
			r.logger.Error("Confirmed order has no gateway payment instrument",
				zap.String("order_no", orderNo),
				zap.Error(err))
		}

		if order.Status != domain.OrderStatusNew {
			if err := r.deps.Orders.PlaceOrder(ctx, tx, order); err != nil {
				return domain.WrapError(domain.ErrorCodeOrderPlacementFailed, "place order", err)
			}
		} else if err := r.deps.Orders.SaveOrder(ctx, tx, order); err != nil {
			return fmt.Errorf("save order: %w", err)
		}

		note := fmt.Sprintf("Payment confirmed. Reserved %s %s, transaction %s (%s).",
			decision.ReservedAmount.StringFixed(2), order.Currency, tr.TransactionID(), decision.TransactionStatus)
		if err := r.deps.Orders.AddNote(ctx, tx, order, "Payment confirmed", note); err != nil {
			return fmt.Errorf("add order note: %w", err)
		}

		confirmed = order
		return nil
	})

	if err != nil {
		if domain.IsDomainError(err, domain.ErrorCodeOrderPlacementFailed) && !isTransient(err) {
			r.logger.Error("Order placement failed, failing order",
				zap.String("order_no", orderNo),
				zap.Error(err))
			failAck, failErr := r.terminate(ctx, tr, domain.DecisionFail, orderNo, "Order placement failed: "+err.Error())
			if failErr != nil {
				return failAck, failErr
			}
			r.releaseReservation(ctx, tr, orderNo)
			return failAck, err
		}
		return Ack{Template: AckFeedback, OrderNo: orderNo, Decision: domain.DecisionNoResult},
			r.downstreamError("confirm order", orderNo, err)
	}

	if confirmed != nil {
		r.logger.Info("Order confirmed",
			zap.String("order_no", orderNo),
			zap.String("transaction_id", tr.TransactionID()),
			zap.String("reserved_amount", decision.ReservedAmount.String()))
		r.publish(ctx, confirmed, domain.DecisionConfirm)
	}
	return ack, nil
}

// terminate runs the Cancel and Fail paths: gateway attributes, status change
// and basket recovery commit together.
func (r *Reconciler) terminate(ctx context.Context, tr domain.TransactionResult, kind domain.DecisionKind, orderNo, reason string) (Ack, error) {
	details := DescribeFailure(tr)
	ack := Ack{Template: AckFeedback, OrderNo: orderNo, Decision: kind, Message: details.ShopperMessage()}
	var terminated *domain.Order

	err := r.deps.DB.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		order, err := r.deps.Orders.LockOrder(ctx, tx, orderNo)
		if err != nil {
			return fmt.Errorf("lock order: %w", err)
		}
		if order.IsTerminal() {
			ack.Decision = domain.DecisionNoResult
			return nil
		}

		order.Gateway.TransactionStatus = strings.ToUpper(details.TransactionStatus)
		order.Gateway.TransactionID = details.TransactionID
		order.Gateway.PaymentID = details.PaymentID
		order.Gateway.ErrorMessage = details.MerchantErrorMessage
		order.Gateway.CardHolderMessageMustBeShown = details.ErrorMessageMustBeShown
		if pe := DerivePaymentError(tr); pe != nil {
			order.Gateway.ErrorCode = pe.Code
		}

		if reason == "" {
			reason = failureReason(kind, details, tr)
		}

		if kind == domain.DecisionCancel {
			err = r.deps.Orders.CancelOrder(ctx, tx, order, reason)
		} else {
			err = r.deps.Orders.FailOrder(ctx, tx, order, reason)
		}
		if err != nil {
			return fmt.Errorf("%s order: %w", kind, err)
		}

		if _, err := r.deps.Baskets.RecoverBasketFromOrder(ctx, tx, order); err != nil {
			return fmt.Errorf("recover basket: %w", err)
		}

		terminated = order
		return nil
	})
	if err != nil {
		r.logger.Error("Could not apply callback outcome",
			zap.String("order_no", orderNo),
			zap.String("decision", string(kind)),
			zap.Error(err))
		return Ack{Template: AckFeedback, OrderNo: orderNo, Decision: domain.DecisionNoResult, Message: MessagePaymentError},
			r.downstreamError(string(kind)+" order", orderNo, err)
	}

	if terminated != nil {
		r.logger.Info("Order closed by gateway callback",
			zap.String("order_no", orderNo),
			zap.String("decision", string(kind)),
			zap.String("status", string(terminated.Status)),
			zap.Bool("cancelled_by_user", details.CancelledByUser))
		r.publish(ctx, terminated, kind)
	}
	return ack, nil
}

// open places an order whose payment is still pending at the gateway. The
// order stays NotConfirmed and is confirmed by a later notification.
func (r *Reconciler) open(ctx context.Context, tr domain.TransactionResult, orderNo string) (Ack, error) {
	ack := Ack{Template: AckFeedback, OrderNo: orderNo, Decision: domain.DecisionNoResult, Message: MessagePaymentOpen}

	err := r.deps.DB.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		order, err := r.deps.Orders.LockOrder(ctx, tx, orderNo)
		if err != nil {
			return fmt.Errorf("lock order: %w", err)
		}
		if order.IsTerminal() || order.Status == domain.OrderStatusNew {
			ack.Confirmed = order.IsConfirmed()
			if ack.Confirmed {
				ack.Message = ""
			}
			return nil
		}

		order.Gateway.TransactionStatus = strings.ToUpper(tr.TransactionStatus())
		order.Gateway.TransactionID = tr.TransactionID()
		order.Gateway.PaymentID = tr.PaymentID()

		if err := r.deps.Updater.Update(ctx, tx, order, tr); err != nil {
			if !errors.Is(err, domain.ErrInstrumentNotFound) {
				return err
			}
			r.logger.Error("Open order has no gateway payment instrument",
				zap.String("order_no", orderNo),
				zap.Error(err))
		}

		if err := r.deps.Orders.PlaceOrder(ctx, tx, order); err != nil {
			return fmt.Errorf("place order: %w", err)
		}
		return r.deps.Orders.AddNote(ctx, tx, order, "Payment open", MessagePaymentOpen)
	})
	if err != nil {
		return Ack{Template: AckFeedback, OrderNo: orderNo, Decision: domain.DecisionNoResult},
			r.downstreamError("place open order", orderNo, err)
	}
	return ack, nil
}

func failureReason(kind domain.DecisionKind, d FailureDetails, tr domain.TransactionResult) string {
	if d.CancelledByUser {
		return "Payment cancelled by shopper"
	}
	reason := fmt.Sprintf("Gateway result %s, status %s", tr.RawResultCode(), tr.TransactionStatus())
	if pe := DerivePaymentError(tr); pe != nil && pe.PrivateMessage != "" {
		reason += "\n" + pe.PrivateMessage
	}
	if kind == domain.DecisionFail && tr.FraudRecommendation() != "" {
		reason += "\nFraud recommendation: " + tr.FraudRecommendation()
	}
	return reason
}

// downstreamError classifies a failure of the order store or its collaborators
func (r *Reconciler) downstreamError(op, orderNo string, err error) error {
	if isTransient(err) {
		r.logger.Warn("Transient failure during reconciliation, gateway will retry",
			zap.String("operation", op),
			zap.String("order_no", orderNo),
			zap.Error(err))
		return domain.WrapError(domain.ErrorCodeReconciliationTransient, op, err)
	}
	r.logger.Error("Reconciliation failed",
		zap.String("operation", op),
		zap.String("order_no", orderNo),
		zap.Error(err))
	return domain.WrapError(domain.ErrorCodeReconciliationFailed, op, err)
}

func isTransient(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, domain.ErrOrderConcurrentUpdate) ||
		pgconn.Timeout(err) ||
		pgconn.SafeToRetry(err)
}

// releaseReservation asks the gateway to release held funds for an order that
// will not be captured. Failures are logged only.
func (r *Reconciler) releaseReservation(ctx context.Context, tr domain.TransactionResult, orderNo string) {
	if r.deps.Gateway == nil || tr.TransactionID() == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.SideEffectTimeout)
	defer cancel()

	res, err := r.deps.Gateway.ReleaseReservation(ctx, tr.TransactionID())
	if err != nil {
		r.logger.Error("Failed to release payment reservation",
			zap.String("order_no", orderNo),
			zap.String("transaction_id", tr.TransactionID()),
			zap.Error(err))
		return
	}
	r.logger.Info("Payment reservation released",
		zap.String("order_no", orderNo),
		zap.String("transaction_id", tr.TransactionID()),
		zap.String("result", res.Result))
}

func (r *Reconciler) publish(ctx context.Context, order *domain.Order, kind domain.DecisionKind) {
	if r.deps.Publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.SideEffectTimeout)
	defer cancel()

	event := &adapterports.OrderOutcomeEvent{
		EventID:            uuid.New().String(),
		OrderNo:            order.OrderNo,
		CustomerID:         order.CustomerID,
		Decision:           string(kind),
		OrderStatus:        string(order.Status),
		ConfirmationStatus: string(order.ConfirmationStatus),
		TransactionID:      order.Gateway.TransactionID,
		TransactionStatus:  order.Gateway.TransactionStatus,
		Amount:             order.TotalGross.StringFixed(2),
		Currency:           order.Currency,
		OccurredAt:         time.Now().UTC(),
	}
	if err := r.deps.Publisher.PublishOrderOutcome(ctx, event); err != nil {
		r.logger.Error("Failed to publish order outcome event",
			zap.String("order_no", order.OrderNo),
			zap.String("decision", string(kind)),
			zap.Error(err))
	}
}

func (r *Reconciler) recordHistory(ctx context.Context, req Request, tr domain.TransactionResult, orderNo string, decision domain.DecisionKind, procErr error) {
	if r.deps.History == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.SideEffectTimeout)
	defer cancel()

	rec := ports.CallbackRecord{
		OrderNo:           orderNo,
		Outcome:           req.Outcome,
		CallerIP:          req.CallerIP,
		ResultCode:        tr.RawResultCode(),
		TransactionStatus: tr.TransactionStatus(),
		TransactionID:     tr.TransactionID(),
		Decision:          decision,
	}
	if procErr != nil {
		rec.Error = procErr.Error()
	}
	if err := r.deps.History.Record(ctx, nil, rec); err != nil {
		r.logger.Warn("Failed to record callback history",
			zap.String("order_no", orderNo),
			zap.Error(err))
	}
}

// AuthorizeForm loads the order behind a hosted payment form request and
// checks that the caller is the gateway holding the order token.
func (r *Reconciler) AuthorizeForm(ctx context.Context, callerIP string, form url.Values) (*domain.Order, error) {
	if err := r.deps.Auth.CheckCaller(callerIP, r.cfg.AllowedIPs); err != nil {
		return nil, err
	}
	tr, err := r.deps.Parser.ParseForm(form)
	if err != nil {
		r.logger.Debug("Callback form carries no readable payload", zap.Error(err))
	}
	orderNo := tr.ShopOrderID()
	if orderNo == "" {
		return nil, domain.ErrOrderNotFound
	}

	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	order, err := r.loadOrder(ctx, orderNo)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return nil, err
		}
		return nil, r.downstreamError("load order", orderNo, err)
	}
	if err := r.deps.Auth.VerifyToken(callerIP, tr, order); err != nil {
		return nil, err
	}
	return order, nil
}
