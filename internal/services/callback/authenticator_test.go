package callback

import (
	"testing"

	"github.com/kevin07696/checkout-callback-service/internal/domain"
	"github.com/kevin07696/checkout-callback-service/internal/testutil/fixtures"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func withToken(token string) domain.TransactionResult {
	return domain.NewTransactionResult(domain.TransactionResultFields{
		RawResultCode: "Success",
		ShopOrderID:   fixtures.DefaultOrderNo,
		OrderToken:    token,
	})
}

func TestAuthenticator_Authenticate(t *testing.T) {
	order := fixtures.NewOrder().Build()
	allow := []string{"203.0.113.10", "198.51.100.0/24"}

	tests := []struct {
		name      string
		callerIP  string
		token     string
		allowList []string
		order     *domain.Order
		wantErr   error
	}{
		{name: "allowed ip and matching token", callerIP: "203.0.113.10", token: order.OrderToken, allowList: allow, order: order},
		{name: "cidr entry", callerIP: "198.51.100.77", token: order.OrderToken, allowList: allow, order: order},
		{name: "ipv4-mapped ipv6 caller", callerIP: "::ffff:203.0.113.10", token: order.OrderToken, allowList: allow, order: order},
		{name: "empty allow-list wins over everything", callerIP: "203.0.113.10", token: "wrong", allowList: nil, order: order, wantErr: domain.ErrEmptyAllowList},
		{name: "untrusted ip checked before token", callerIP: "192.0.2.1", token: "wrong", allowList: allow, order: order, wantErr: domain.ErrUntrustedIP},
		{name: "unparseable ip", callerIP: "not-an-ip", token: order.OrderToken, allowList: allow, order: order, wantErr: domain.ErrUntrustedIP},
		{name: "token mismatch", callerIP: "203.0.113.10", token: "other-token", allowList: allow, order: order, wantErr: domain.ErrTokenMismatch},
		{name: "empty token never matches", callerIP: "203.0.113.10", token: "", allowList: allow, order: fixtures.NewOrder().WithToken("").Build(), wantErr: domain.ErrTokenMismatch},
		{name: "nil order", callerIP: "203.0.113.10", token: order.OrderToken, allowList: allow, order: nil, wantErr: domain.ErrTokenMismatch},
	}

	auth := NewAuthenticator(zaptest.NewLogger(t))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := auth.Authenticate(tt.callerIP, withToken(tt.token), tt.order, tt.allowList)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, domain.IsAuthError(err))
		})
	}
}

func TestAuthenticator_CheckCallerIgnoresBlankEntries(t *testing.T) {
	auth := NewAuthenticator(zaptest.NewLogger(t))

	assert.NoError(t, auth.CheckCaller("10.0.0.5", []string{" ", "bogus/99", " 10.0.0.5 "}))
	assert.ErrorIs(t, auth.CheckCaller("10.0.0.6", []string{" ", "bogus/99", "10.0.0.5"}), domain.ErrUntrustedIP)
}

func TestAuthenticator_VerifyTokenSkipsAllowList(t *testing.T) {
	order := fixtures.NewOrder().Build()
	auth := NewAuthenticator(zaptest.NewLogger(t))

	assert.NoError(t, auth.VerifyToken("192.0.2.1", withToken(order.OrderToken), order))
	assert.ErrorIs(t, auth.VerifyToken("192.0.2.1", withToken("other"), order), domain.ErrTokenMismatch)
	assert.ErrorIs(t, auth.VerifyToken("192.0.2.1", withToken(order.OrderToken), nil), domain.ErrTokenMismatch)
}
