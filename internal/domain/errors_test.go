package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// TestDomainErrors_Codes checks that every sentinel carries its code and message
func TestDomainErrors_Codes(t *testing.T) {
	tests := []struct {
		name     string
		err      *DomainError
		code     ErrorCode
		contains string
	}{
		{name: "empty_allow_list", err: ErrEmptyAllowList, code: ErrorCodeAuthEmptyAllowList, contains: "allow-list is empty"},
		{name: "untrusted_ip", err: ErrUntrustedIP, code: ErrorCodeAuthUntrustedIP, contains: "not allow-listed"},
		{name: "token_mismatch", err: ErrTokenMismatch, code: ErrorCodeAuthTokenMismatch, contains: "token does not match"},
		{name: "malformed_payload", err: ErrMalformedPayload, code: ErrorCodeParseMalformedPayload, contains: "malformed"},
		{name: "order_not_found", err: ErrOrderNotFound, code: ErrorCodeOrderNotFound, contains: "order not found"},
		{name: "invalid_transition", err: ErrOrderInvalidTransition, code: ErrorCodeOrderInvalidTransition, contains: "transition not allowed"},
		{name: "concurrent_update", err: ErrOrderConcurrentUpdate, code: ErrorCodeOrderConcurrentUpdate, contains: "modified concurrently"},
		{name: "instrument_not_found", err: ErrInstrumentNotFound, code: ErrorCodeInstrumentNotFound, contains: "instrument not found"},
		{name: "terminal_not_found", err: ErrTerminalNotFound, code: ErrorCodeTerminalNotFound, contains: "no terminal"},
		{name: "gateway_timeout", err: ErrGatewayTimedOut, code: ErrorCodeGatewayTimeout, contains: "timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("code = %s, want %s", tt.err.Code, tt.code)
			}
			if !strings.HasPrefix(tt.err.Error(), string(tt.code)+": ") {
				t.Errorf("error message %q does not start with code %s", tt.err.Error(), tt.code)
			}
			if !strings.Contains(tt.err.Error(), tt.contains) {
				t.Errorf("error message %q does not contain %q", tt.err.Error(), tt.contains)
			}
		})
	}
}

// TestDomainErrors_WithDetail verifies details never leak into the shared sentinel
func TestDomainErrors_WithDetail(t *testing.T) {
	withOrder := ErrOrderNotFound.WithDetail("order_no", "00001001")
	withBoth := withOrder.WithDetail("caller_ip", "10.0.0.1")

	if len(ErrOrderNotFound.Details) != 0 {
		t.Errorf("sentinel was mutated: %v", ErrOrderNotFound.Details)
	}
	if len(withOrder.Details) != 1 {
		t.Errorf("expected 1 detail, got %v", withOrder.Details)
	}
	if withBoth.Details["order_no"] != "00001001" || withBoth.Details["caller_ip"] != "10.0.0.1" {
		t.Errorf("details not carried over: %v", withBoth.Details)
	}
	if !errors.Is(withBoth, ErrOrderNotFound) {
		t.Error("errors.Is should match the sentinel by code")
	}
}

// TestDomainErrors_Wrapping tests that wrapped causes stay reachable
func TestDomainErrors_Wrapping(t *testing.T) {
	cause := errors.New("connection refused")
	wrapped := WrapError(ErrorCodeReconciliationTransient, "load order", cause)
	outer := fmt.Errorf("reconcile: %w", wrapped)

	if !errors.Is(outer, cause) {
		t.Error("cause should be reachable through the domain error")
	}
	if got := GetErrorCode(outer); got != ErrorCodeReconciliationTransient {
		t.Errorf("GetErrorCode = %s, want %s", got, ErrorCodeReconciliationTransient)
	}
	if !strings.Contains(outer.Error(), "connection refused") {
		t.Errorf("error message %q should contain the cause", outer.Error())
	}
	if GetErrorCode(cause) != "" {
		t.Error("plain errors have no code")
	}
}

// TestDomainErrors_IsComparison tests that errors.Is() matches by code only
func TestDomainErrors_IsComparison(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		shouldNot error
	}{
		{
			name:      "sentinel_matches_itself",
			err:       ErrTokenMismatch,
			target:    ErrTokenMismatch,
			shouldNot: ErrUntrustedIP,
		},
		{
			name:      "wrapped_sentinel_matches",
			err:       fmt.Errorf("context: %w", ErrOrderNotFound),
			target:    ErrOrderNotFound,
			shouldNot: ErrInstrumentNotFound,
		},
		{
			name:      "fresh_error_with_same_code_matches",
			err:       NewDomainError(ErrorCodeOrderConcurrentUpdate, "version 3 is stale"),
			target:    ErrOrderConcurrentUpdate,
			shouldNot: ErrOrderInvalidTransition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.target) {
				t.Errorf("errors.Is(%v, %v) = false, want true", tt.err, tt.target)
			}
			if errors.Is(tt.err, tt.shouldNot) {
				t.Errorf("errors.Is(%v, %v) = true, want false", tt.err, tt.shouldNot)
			}
		})
	}
}

// TestDomainErrors_Categories covers the helper predicates used by handlers
func TestDomainErrors_Categories(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		auth      bool
		notFound  bool
		transient bool
	}{
		{name: "untrusted_ip", err: ErrUntrustedIP, auth: true},
		{name: "empty_allow_list", err: ErrEmptyAllowList.WithDetail("k", "v"), auth: true},
		{name: "order_not_found", err: ErrOrderNotFound, notFound: true},
		{name: "terminal_not_found", err: ErrTerminalNotFound, notFound: true},
		{name: "transient", err: WrapError(ErrorCodeReconciliationTransient, "lock", errors.New("timeout")), transient: true},
		{name: "gateway_timeout", err: ErrGatewayTimedOut, transient: true},
		{name: "reconciliation_failed", err: ErrReconciliationFailed},
		{name: "plain_error", err: errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAuthError(tt.err); got != tt.auth {
				t.Errorf("IsAuthError = %v, want %v", got, tt.auth)
			}
			if got := IsNotFoundError(tt.err); got != tt.notFound {
				t.Errorf("IsNotFoundError = %v, want %v", got, tt.notFound)
			}
			if got := IsTransientError(tt.err); got != tt.transient {
				t.Errorf("IsTransientError = %v, want %v", got, tt.transient)
			}
		})
	}
}
