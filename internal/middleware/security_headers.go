package middleware

import (
	"net/http"

	"github.com/kevin07696/checkout-callback-service/internal/domain"
)

// SecurityHeaders adds security-related HTTP headers to responses.
// Callback pages are fetched by the gateway and may embed inline styles only.
type SecurityHeaders struct {
	isDevelopment bool
}

// NewSecurityHeaders creates a new security headers middleware
func NewSecurityHeaders(isDevelopment bool) *SecurityHeaders {
	return &SecurityHeaders{
		isDevelopment: isDevelopment,
	}
}

// Middleware wraps an HTTP handler with security headers
func (sh *SecurityHeaders) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("X-Permitted-Cross-Domain-Policies", "none")

		// The hosted payment form wrapper is rendered inside the gateway's page
		if r.URL.Path != domain.CallbackFormPath {
			h.Set("X-Frame-Options", "DENY")
		}

		if !sh.isDevelopment {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		csp := "default-src 'none'; style-src 'unsafe-inline'; base-uri 'none'; form-action 'self'"
		if r.URL.Path != domain.CallbackFormPath {
			csp += "; frame-ancestors 'none'"
		}
		h.Set("Content-Security-Policy", csp)

		next.ServeHTTP(w, r)
	})
}
