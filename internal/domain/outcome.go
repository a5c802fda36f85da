package domain

import (
	"github.com/shopspring/decimal"
)

// DecisionKind enumerates the order outcomes a callback can produce
type DecisionKind string

const (
	DecisionNoResult DecisionKind = "no_result"
	DecisionConfirm  DecisionKind = "confirm"
	DecisionCancel   DecisionKind = "cancel"
	DecisionFail     DecisionKind = "fail"
)

// Decision is the classified outcome of a transaction result.
// ReservedAmount and TransactionStatus are only set for DecisionConfirm.
type Decision struct {
	Kind              DecisionKind
	ReservedAmount    decimal.Decimal
	TransactionStatus string
}

func NoResult() Decision { return Decision{Kind: DecisionNoResult} }
func Cancel() Decision { return Decision{Kind: DecisionCancel} }
func Fail() Decision { return Decision{Kind: DecisionFail} }

// Confirm builds a confirm decision
func Confirm(reserved decimal.Decimal, transactionStatus string) Decision {
	return Decision{
		Kind:              DecisionConfirm,
		ReservedAmount:    reserved,
		TransactionStatus: transactionStatus,
	}
}

// Mutates reports whether applying the decision changes the order
func (d Decision) Mutates() bool {
	return d.Kind != DecisionNoResult
}

// CallbackOutcome is the gateway endpoint a callback arrived on
type CallbackOutcome string

const (
	CallbackOutcomeSuccess      CallbackOutcome = "success"
	CallbackOutcomeOpen         CallbackOutcome = "open"
	CallbackOutcomeFail         CallbackOutcome = "fail"
	CallbackOutcomeNotification CallbackOutcome = "notification"
)

// ParseCallbackOutcome validates the endpoint path segment
func ParseCallbackOutcome(s string) (CallbackOutcome, bool) {
	switch o := CallbackOutcome(s); o {
	case CallbackOutcomeSuccess, CallbackOutcomeOpen, CallbackOutcomeFail, CallbackOutcomeNotification:
		return o, true
	}
	return "", false
}

// CallbackRoutePrefix is where the gateway posts callbacks
const CallbackRoutePrefix = "/api/v1/gateway/callbacks"

// CallbackFormPath is the hosted payment form wrapper page
const CallbackFormPath = CallbackRoutePrefix + "/form"

// Path returns the route of the outcome endpoint
func (o CallbackOutcome) Path() string {
	return CallbackRoutePrefix + "/" + string(o)
}
