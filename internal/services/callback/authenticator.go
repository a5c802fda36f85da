package callback

import (
	"crypto/subtle"
	"net/netip"
	"strings"

	"github.com/kevin07696/checkout-callback-service/internal/domain"
	"go.uber.org/zap"
)

// Authenticator verifies that a callback comes from the payment gateway
type Authenticator struct {
	logger *zap.Logger
}

// NewAuthenticator creates a new callback authenticator
func NewAuthenticator(logger *zap.Logger) *Authenticator {
	return &Authenticator{logger: logger}
}

// Authenticate checks, in order: the allow-list is not empty, the caller IP
// is on it, and the order token echoed by the gateway matches the order.
// Allow-list entries are single addresses or CIDR prefixes. It has no side
// effects besides logging.
func (a *Authenticator) Authenticate(callerIP string, tr domain.TransactionResult, order *domain.Order, allowList []string) error {
	if err := a.CheckCaller(callerIP, allowList); err != nil {
		return err
	}
	return a.VerifyToken(callerIP, tr, order)
}

// VerifyToken runs the order-token part of Authenticate, for callers that
// already passed CheckCaller.
func (a *Authenticator) VerifyToken(callerIP string, tr domain.TransactionResult, order *domain.Order) error {
	if order == nil || !tokensEqual(tr.OrderToken(), order.OrderToken) {
		a.logger.Warn("Callback rejected: order token mismatch",
			zap.String("caller_ip", callerIP),
			zap.String("shop_order_id", tr.ShopOrderID()))
		return domain.ErrTokenMismatch
	}

	return nil
}

// CheckCaller runs the allow-list part of Authenticate. It lets callers
// reject untrusted traffic before touching the order store.
func (a *Authenticator) CheckCaller(callerIP string, allowList []string) error {
	if len(allowList) == 0 {
		a.logger.Error("Callback rejected: IP allow-list is empty",
			zap.String("caller_ip", callerIP))
		return domain.ErrEmptyAllowList
	}

	if !ipAllowed(callerIP, allowList) {
		a.logger.Warn("Callback rejected: untrusted caller IP",
			zap.String("caller_ip", callerIP))
		return domain.ErrUntrustedIP.WithDetail("caller_ip", callerIP)
	}

	return nil
}

func ipAllowed(callerIP string, allowList []string) bool {
	addr, err := netip.ParseAddr(strings.TrimSpace(callerIP))
	if err != nil {
		return false
	}
	addr = addr.Unmap()

	for _, entry := range allowList {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err == nil && prefix.Contains(addr) {
				return true
			}
			continue
		}
		allowed, err := netip.ParseAddr(entry)
		if err == nil && allowed.Unmap() == addr {
			return true
		}
	}
	return false
}

// tokensEqual compares in constant time; empty tokens never match
func tokensEqual(got, want string) bool {
	if got == "" || want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
