package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a machine-readable error code
type ErrorCode string

const (
	// Callback authentication errors (AUTH_*)
	ErrorCodeAuthEmptyAllowList ErrorCode = "AUTH_EMPTY_ALLOW_LIST"
	ErrorCodeAuthUntrustedIP    ErrorCode = "AUTH_UNTRUSTED_IP"
	ErrorCodeAuthTokenMismatch  ErrorCode = "AUTH_TOKEN_MISMATCH"

	// Payload errors (PARSE_*)
	ErrorCodeParseMalformedPayload ErrorCode = "PARSE_MALFORMED_PAYLOAD"
	ErrorCodeParseUnsupportedType  ErrorCode = "PARSE_UNSUPPORTED_CONTENT"

	// Order errors (ORDER_*)
	ErrorCodeOrderNotFound          ErrorCode = "ORDER_NOT_FOUND"
	ErrorCodeOrderInvalidTransition ErrorCode = "ORDER_INVALID_TRANSITION"
	ErrorCodeOrderConcurrentUpdate  ErrorCode = "ORDER_CONCURRENT_UPDATE"
	ErrorCodeOrderPlacementFailed   ErrorCode = "ORDER_PLACEMENT_FAILED"

	// Reconciliation errors (RECONCILIATION_*)
	ErrorCodeReconciliationFailed    ErrorCode = "RECONCILIATION_FAILED"
	ErrorCodeReconciliationTransient ErrorCode = "RECONCILIATION_TRANSIENT"

	// Payment instrument errors (UPDATE_*)
	ErrorCodeInstrumentNotFound ErrorCode = "UPDATE_INSTRUMENT_NOT_FOUND"

	// Terminal mapping errors (TERMINAL_*)
	ErrorCodeTerminalNotFound ErrorCode = "TERMINAL_NOT_FOUND"

	// Payment Gateway Errors (GATEWAY_*)
	ErrorCodeGatewayError   ErrorCode = "GATEWAY_ERROR"
	ErrorCodeGatewayTimeout ErrorCode = "GATEWAY_TIMEOUT"

	// Validation Errors (VALIDATION_*)
	ErrorCodeValidationMissingField ErrorCode = "VALIDATION_MISSING_FIELD"

	// Internal Errors (INTERNAL_*)
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
	ErrorCodeDatabaseError ErrorCode = "INTERNAL_DATABASE_ERROR"
)

// DomainError represents a structured domain error with error code and context
type DomainError struct {
	Err     error
	Details map[string]interface{}
	Code    ErrorCode
	Message string
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches another DomainError by code so sentinel values work with errors.Is
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// WithDetail returns a copy of the error carrying an additional detail field.
// Sentinels are shared, so they are never mutated in place.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &DomainError{
		Err:     e.Err,
		Details: details,
		Code:    e.Code,
		Message: e.Message,
	}
}

// NewDomainError creates a new domain error
func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with a domain error code
func WrapError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Err:     err,
	}
}

// IsDomainError checks if an error is a DomainError with the given code
func IsDomainError(err error, code ErrorCode) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error, returns empty string if not a DomainError
func GetErrorCode(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// IsAuthError checks if an error is a callback authentication failure
func IsAuthError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeAuthEmptyAllowList ||
		code == ErrorCodeAuthUntrustedIP ||
		code == ErrorCodeAuthTokenMismatch
}

// IsNotFoundError checks if an error represents a "not found" condition
func IsNotFoundError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeOrderNotFound ||
		code == ErrorCodeInstrumentNotFound ||
		code == ErrorCodeTerminalNotFound
}

// IsTransientError reports whether the gateway should retry the callback
func IsTransientError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeReconciliationTransient ||
		code == ErrorCodeGatewayTimeout
}

var (
	ErrEmptyAllowList = NewDomainError(ErrorCodeAuthEmptyAllowList, "callback IP allow-list is empty")
	ErrUntrustedIP    = NewDomainError(ErrorCodeAuthUntrustedIP, "caller IP is not allow-listed")
	ErrTokenMismatch  = NewDomainError(ErrorCodeAuthTokenMismatch, "order token does not match")

	ErrMalformedPayload = NewDomainError(ErrorCodeParseMalformedPayload, "malformed callback payload")

	ErrOrderNotFound          = NewDomainError(ErrorCodeOrderNotFound, "order not found")
	ErrOrderInvalidTransition = NewDomainError(ErrorCodeOrderInvalidTransition, "order status transition not allowed")
	ErrOrderConcurrentUpdate  = NewDomainError(ErrorCodeOrderConcurrentUpdate, "order was modified concurrently")
	ErrOrderPlacementFailed   = NewDomainError(ErrorCodeOrderPlacementFailed, "order placement failed")

	ErrReconciliationFailed    = NewDomainError(ErrorCodeReconciliationFailed, "callback reconciliation failed")
	ErrReconciliationTransient = NewDomainError(ErrorCodeReconciliationTransient, "downstream dependency unavailable")

	ErrInstrumentNotFound = NewDomainError(ErrorCodeInstrumentNotFound, "gateway payment instrument not found on order")

	ErrTerminalNotFound = NewDomainError(ErrorCodeTerminalNotFound, "no terminal configured for payment method")

	ErrGatewayError    = NewDomainError(ErrorCodeGatewayError, "payment gateway error")
	ErrGatewayTimedOut = NewDomainError(ErrorCodeGatewayTimeout, "payment gateway timeout")

	ErrValidationMissingField = NewDomainError(ErrorCodeValidationMissingField, "required field missing")

	ErrInternalError = NewDomainError(ErrorCodeInternalError, "internal server error")
	ErrDatabaseError = NewDomainError(ErrorCodeDatabaseError, "database error")
)
