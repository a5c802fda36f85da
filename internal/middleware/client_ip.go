package middleware

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"go.uber.org/zap"
)

type contextKey string

const clientIPKey contextKey = "client_ip"

// ClientIP resolves the caller address used for the gateway allow-list.
// Forwarding headers are honoured only when the direct peer is a trusted proxy.
type ClientIP struct {
	trusted []netip.Prefix
	logger  *zap.Logger
}

// NewClientIP creates the middleware. Entries are single addresses or CIDR
// ranges; invalid entries are logged and skipped.
func NewClientIP(trustedProxies []string, logger *zap.Logger) *ClientIP {
	c := &ClientIP{logger: logger}
	for _, entry := range trustedProxies {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "/") {
			addr, err := netip.ParseAddr(entry)
			if err != nil {
				logger.Warn("Ignoring invalid trusted proxy", zap.String("entry", entry))
				continue
			}
			addr = addr.Unmap()
			c.trusted = append(c.trusted, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		prefix, err := netip.ParsePrefix(entry)
		if err != nil {
			logger.Warn("Ignoring invalid trusted proxy", zap.String("entry", entry))
			continue
		}
		c.trusted = append(c.trusted, prefix.Masked())
	}
	return c
}

// Middleware stores the resolved client IP in the request context
func (c *ClientIP) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := c.Resolve(r)
		next.ServeHTTP(w, r.WithContext(WithClientIP(r.Context(), ip)))
	})
}

// Resolve returns the client IP of r
func (c *ClientIP) Resolve(r *http.Request) string {
	peer := remoteHost(r.RemoteAddr)
	if !c.isTrusted(peer) {
		return peer
	}

	// X-Forwarded-For can contain multiple IPs, take the first one
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return peer
}

func (c *ClientIP) isTrusted(ip string) bool {
	if len(c.trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range c.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func remoteHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		// RemoteAddr might not have a port
		return remoteAddr
	}
	return host
}

// WithClientIP returns a context carrying ip
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIPFromRequest returns the IP stored by the middleware, falling back
// to the request's remote address.
func ClientIPFromRequest(r *http.Request) string {
	if ip, ok := r.Context().Value(clientIPKey).(string); ok && ip != "" {
		return ip
	}
	return remoteHost(r.RemoteAddr)
}
