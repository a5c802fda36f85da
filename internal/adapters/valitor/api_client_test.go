package valitor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kevin07696/checkout-callback-service/internal/adapters/ports"
	"github.com/kevin07696/checkout-callback-service/internal/domain"
	"github.com/kevin07696/checkout-callback-service/pkg/resilience"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type staticSecrets struct {
	value string
	err   error
	calls int32
}

func (s *staticSecrets) GetSecret(_ context.Context, _ string) (*ports.Secret, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.err != nil {
		return nil, s.err
	}
	return &ports.Secret{Value: s.value}, nil
}

const (
	createOK = `<?xml version="1.0"?>
<APIResponse version="20170228">
  <Header><ErrorCode>0</ErrorCode><ErrorMessage/></Header>
  <Body>
    <Result>Success</Result>
    <PaymentRequestId>pr-77</PaymentRequestId>
    <Url>https://gateway.example.com/pay/pr-77</Url>
  </Body>
</APIResponse>`

	releaseOK = `<APIResponse><Header><ErrorCode>0</ErrorCode></Header><Body><Result>Success</Result></Body></APIResponse>`
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*APIClient, *staticSecrets) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultClientConfig(srv.URL)
	cfg.Timeout = 2 * time.Second
	secrets := &staticSecrets{value: `{"username":"shop","password":"s3cret"}`}

	client := NewAPIClient(cfg, srv.Client(), secrets, nil, zaptest.NewLogger(t))
	client.backoff = &resilience.FixedBackoff{Delay: time.Millisecond}
	return client, secrets
}

func samplePaymentRequest() *ports.PaymentRequest {
	return &ports.PaymentRequest{
		Terminal:    "Shop CC EUR",
		ShopOrderID: "00001234",
		Amount:      decimal.RequireFromString("49.9"),
		Currency:    "EUR",
		Language:    "en",
		OrderToken:  "tok-1",
		CallbackURLs: ports.CallbackURLs{
			Success: "https://shop.example.com/api/v1/gateway/callbacks/success",
			Fail:    "https://shop.example.com/api/v1/gateway/callbacks/fail",
		},
		CustomerInfo: map[string]string{"email": "jane@example.com"},
	}
}

func TestCreatePaymentRequest_Success(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathCreatePaymentRequest, r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "shop", user)
		assert.Equal(t, "s3cret", pass)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "Shop CC EUR", r.PostForm.Get("terminal"))
		assert.Equal(t, "00001234", r.PostForm.Get("shop_orderid"))
		assert.Equal(t, "49.90", r.PostForm.Get("amount"))
		assert.Equal(t, "payment", r.PostForm.Get("type"))
		assert.Equal(t, "tok-1", r.PostForm.Get("transaction_info[order_token]"))
		assert.Equal(t, "https://shop.example.com/api/v1/gateway/callbacks/success", r.PostForm.Get("config[callback_ok]"))
		assert.Empty(t, r.PostForm.Get("config[callback_open]"))
		assert.Equal(t, "jane@example.com", r.PostForm.Get("customer_info[email]"))

		_, _ = w.Write([]byte(createOK))
	})

	res, err := client.CreatePaymentRequest(context.Background(), samplePaymentRequest())
	require.NoError(t, err)
	assert.Equal(t, "pr-77", res.PaymentRequestID)
	assert.Equal(t, "https://gateway.example.com/pay/pr-77", res.RedirectURL)
}

func TestCreatePaymentRequest_GatewayError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<APIResponse><Header><ErrorCode>7</ErrorCode><ErrorMessage>Unknown terminal</ErrorMessage></Header><Body/></APIResponse>`))
	})

	_, err := client.CreatePaymentRequest(context.Background(), samplePaymentRequest())
	require.Error(t, err)
	assert.Equal(t, domain.ErrorCodeGatewayError, domain.GetErrorCode(err))
	assert.Equal(t, BreakerClosed, client.breaker.State())
}

func TestCreatePaymentRequest_MissingFields(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("gateway must not be called")
	})

	req := samplePaymentRequest()
	req.Terminal = ""
	_, err := client.CreatePaymentRequest(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrValidationMissingField)
}

func TestReleaseReservation(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		status   int
		wantErr  bool
		wantCode domain.ErrorCode
	}{
		{name: "released", body: releaseOK, status: http.StatusOK},
		{
			name:     "gateway refuses",
			body:     `<APIResponse><Header><ErrorCode>0</ErrorCode></Header><Body><Result>Failed</Result><MerchantErrorMessage>already captured</MerchantErrorMessage></Body></APIResponse>`,
			status:   http.StatusOK,
			wantErr:  true,
			wantCode: domain.ErrorCodeGatewayError,
		},
		{name: "bad request", body: "", status: http.StatusBadRequest, wantErr: true, wantCode: domain.ErrorCodeGatewayError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, PathReleaseReservation, r.URL.Path)
				require.NoError(t, r.ParseForm())
				assert.Equal(t, "txn-9", r.PostForm.Get("transaction_id"))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			res, err := client.ReleaseReservation(context.Background(), "txn-9")
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, domain.GetErrorCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Success", res.Result)
		})
	}
}

func TestPost_RetriesServerErrors(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(releaseOK))
	})

	_, err := client.ReleaseReservation(context.Background(), "txn-9")
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestPost_OpensBreakerAfterOutage(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	client.cfg.MaxRetries = 0
	client.breaker = NewCircuitBreaker(BreakerConfig{FailureThreshold: 2, CoolDown: time.Minute})

	for i := 0; i < 2; i++ {
		_, err := client.ReleaseReservation(context.Background(), "txn-9")
		require.Error(t, err)
	}
	_, err := client.ReleaseReservation(context.Background(), "txn-9")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBreakerOpen)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestPost_UnauthorizedReloadsCredentials(t *testing.T) {
	var calls int32
	client, secrets := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(releaseOK))
	})

	_, err := client.ReleaseReservation(context.Background(), "txn-9")
	require.Error(t, err)
	_, err = client.ReleaseReservation(context.Background(), "txn-9")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&secrets.calls))
}

func TestPost_CredentialsUnavailable(t *testing.T) {
	client, secrets := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("gateway must not be called")
	})
	secrets.err = errors.New("vault sealed")

	_, err := client.ReleaseReservation(context.Background(), "txn-9")
	require.Error(t, err)
	assert.Equal(t, domain.ErrorCodeGatewayError, domain.GetErrorCode(err))
}

func TestParseCredentials(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    apiCredentials
		wantErr bool
	}{
		{name: "json", value: `{"username":"u","password":"p"}`, want: apiCredentials{Username: "u", Password: "p"}},
		{name: "colon pair", value: "u:p:with:colons", want: apiCredentials{Username: "u", Password: "p:with:colons"}},
		{name: "missing password", value: "u:", wantErr: true},
		{name: "garbage", value: "nope", wantErr: true},
		{name: "bad json", value: "{", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCredentials(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}
