package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestClientIP_Resolve(t *testing.T) {
	c := NewClientIP([]string{"10.0.0.0/8", "192.168.1.5", "not-an-ip", ""}, zaptest.NewLogger(t))

	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "direct peer",
			remoteAddr: "203.0.113.9:4431",
			want:       "203.0.113.9",
		},
		{
			name:       "untrusted peer cannot spoof forwarded for",
			remoteAddr: "203.0.113.9:4431",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.1"},
			want:       "203.0.113.9",
		},
		{
			name:       "trusted range uses first forwarded entry",
			remoteAddr: "10.1.2.3:5000",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.1, 10.1.2.3"},
			want:       "198.51.100.1",
		},
		{
			name:       "trusted single address uses real ip",
			remoteAddr: "192.168.1.5:5000",
			headers:    map[string]string{"X-Real-IP": "198.51.100.2"},
			want:       "198.51.100.2",
		},
		{
			name:       "trusted peer without headers",
			remoteAddr: "10.9.9.9:5000",
			want:       "10.9.9.9",
		},
		{
			name:       "remote addr without port",
			remoteAddr: "198.51.100.7",
			want:       "198.51.100.7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, c.Resolve(r))
		})
	}
}

func TestClientIP_MiddlewareStoresAddress(t *testing.T) {
	c := NewClientIP([]string{"10.0.0.1"}, zaptest.NewLogger(t))

	var got string
	h := c.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ClientIPFromRequest(r)
	}))

	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	r.Header.Set("X-Forwarded-For", "198.51.100.4")
	h.ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, "198.51.100.4", got)
}

func TestClientIPFromRequest_FallsBackToRemoteAddr(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.RemoteAddr = "198.51.100.8:999"
	assert.Equal(t, "198.51.100.8", ClientIPFromRequest(r))
}
