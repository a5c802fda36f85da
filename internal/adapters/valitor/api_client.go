package valitor

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/kevin07696/checkout-callback-service/internal/adapters/ports"
	"github.com/kevin07696/checkout-callback-service/internal/domain"
	"github.com/kevin07696/checkout-callback-service/pkg/resilience"
	"go.uber.org/zap"
)

// Merchant API endpoints, relative to the gateway base URL
const (
	PathCreatePaymentRequest = "/merchant/API/createPaymentRequest"
	PathReleaseReservation   = "/merchant/API/releaseReservation"
)

// ClientConfig configures the merchant API client
type ClientConfig struct {
	// BaseURL is the gateway host, e.g. https://gateway.example.com
	BaseURL string

	// CredentialsPath is the secret holding the API user and password
	CredentialsPath string

	Timeout            time.Duration
	MaxRetries         int
	InsecureSkipVerify bool
}

// DefaultClientConfig returns client defaults for the given base URL
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL:         strings.TrimRight(baseURL, "/"),
		CredentialsPath: "checkout-callback-service/gateway/api",
		Timeout:         30 * time.Second,
		MaxRetries:      2,
	}
}

// NewHTTPClient builds the pooled HTTP client used for gateway calls
func NewHTTPClient(cfg ClientConfig) *http.Client {
	return &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			TLSClientConfig:     &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify}, //nolint:gosec // sandbox only
			MaxIdleConns:        50,
			MaxIdleConnsPerHost: 50,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// apiCredentials is the JSON document stored in the secret manager
type apiCredentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// merchantResponse is the envelope every merchant API call answers with
type merchantResponse struct {
	Header struct {
		ErrorCode    string `xml:"ErrorCode"`
		ErrorMessage string `xml:"ErrorMessage"`
	} `xml:"Header"`
	Body struct {
		Result               string `xml:"Result"`
		PaymentRequestID     string `xml:"PaymentRequestId"`
		URL                  string `xml:"Url"`
		MerchantErrorMessage string `xml:"MerchantErrorMessage"`
	} `xml:"Body"`
}

// errRetryable marks failures worth another attempt
type errRetryable struct{ err error }

func (e *errRetryable) Error() string { return e.err.Error() }
func (e *errRetryable) Unwrap() error { return e.err }

// APIClient talks to the gateway's merchant API over HTTPS form posts
type APIClient struct {
	cfg     ClientConfig
	http    ports.HTTPClient
	secrets ports.SecretManagerAdapter
	breaker *CircuitBreaker
	backoff resilience.BackoffStrategy
	logger  *zap.Logger

	credMu sync.Mutex
	creds  *apiCredentials
}

var _ ports.GatewayAPI = (*APIClient)(nil)

// NewAPIClient creates a merchant API client
func NewAPIClient(cfg ClientConfig, httpClient ports.HTTPClient, secrets ports.SecretManagerAdapter, breaker *CircuitBreaker, logger *zap.Logger) *APIClient {
	if breaker == nil {
		breaker = NewCircuitBreaker(DefaultBreakerConfig())
	}
	return &APIClient{
		cfg:     cfg,
		http:    httpClient,
		secrets: secrets,
		breaker: breaker,
		backoff: resilience.DefaultExponentialBackoff(),
		logger:  logger,
	}
}

// CreatePaymentRequest registers a payment and returns the hosted payment page URL
func (c *APIClient) CreatePaymentRequest(ctx context.Context, req *ports.PaymentRequest) (*ports.PaymentRequestResult, error) {
	if req.Terminal == "" || req.ShopOrderID == "" || req.Currency == "" {
		return nil, domain.ErrValidationMissingField.
			WithDetail("terminal", req.Terminal).
			WithDetail("shop_orderid", req.ShopOrderID)
	}

	resp, err := c.post(ctx, PathCreatePaymentRequest, paymentRequestForm(req))
	if err != nil {
		return nil, err
	}

	if resp.Header.ErrorCode != "" && resp.Header.ErrorCode != "0" {
		if strings.Contains(strings.ToLower(resp.Header.ErrorMessage), "terminal") {
			c.logger.Error("Gateway rejected terminal",
				zap.String("terminal", req.Terminal),
				zap.String("error_message", resp.Header.ErrorMessage))
		}
		return nil, domain.NewDomainError(domain.ErrorCodeGatewayError, resp.Header.ErrorMessage).
			WithDetail("gateway_error_code", resp.Header.ErrorCode)
	}
	if resp.Body.URL == "" {
		return nil, domain.NewDomainError(domain.ErrorCodeGatewayError, "payment request has no redirect url").
			WithDetail("result", resp.Body.Result)
	}

	c.logger.Info("Payment request created",
		zap.String("shop_orderid", req.ShopOrderID),
		zap.String("payment_request_id", resp.Body.PaymentRequestID),
		zap.String("result", resp.Body.Result))

	return &ports.PaymentRequestResult{
		PaymentRequestID: resp.Body.PaymentRequestID,
		RedirectURL:      resp.Body.URL,
		Result:           resp.Body.Result,
	}, nil
}

// ReleaseReservation releases the funds held for a gateway transaction
func (c *APIClient) ReleaseReservation(ctx context.Context, transactionID string) (*ports.ReleaseResult, error) {
	if transactionID == "" {
		return nil, domain.ErrValidationMissingField.WithDetail("field", "transaction_id")
	}

	resp, err := c.post(ctx, PathReleaseReservation, url.Values{"transaction_id": {transactionID}})
	if err != nil {
		return nil, err
	}

	result := &ports.ReleaseResult{
		Result:       resp.Body.Result,
		ErrorCode:    resp.Header.ErrorCode,
		ErrorMessage: resp.Header.ErrorMessage,
	}
	if !strings.EqualFold(resp.Body.Result, "Success") {
		return result, domain.NewDomainError(domain.ErrorCodeGatewayError, "reservation not released").
			WithDetail("transaction_id", transactionID).
			WithDetail("result", resp.Body.Result).
			WithDetail("merchant_error_message", resp.Body.MerchantErrorMessage)
	}
	return result, nil
}

func (c *APIClient) post(ctx context.Context, path string, form url.Values) (*merchantResponse, error) {
	creds, err := c.credentials(ctx)
	if err != nil {
		return nil, err
	}

	var parsed *merchantResponse
	err = c.breaker.Execute(func() error {
		var lastErr error
		for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
			if attempt > 0 {
				c.logger.Info("Retrying gateway request",
					zap.String("path", path),
					zap.Int("attempt", attempt))
				if err := resilience.Wait(ctx, c.backoff, attempt-1); err != nil {
					return fmt.Errorf("retry cancelled: %w", err)
				}
			}

			parsed, lastErr = c.do(ctx, path, form, creds)
			var retryable *errRetryable
			if lastErr == nil || !errors.As(lastErr, &retryable) {
				return lastErr
			}
			c.logger.Warn("Gateway request failed",
				zap.String("path", path),
				zap.Int("attempt", attempt),
				zap.Error(lastErr))
		}
		return fmt.Errorf("failed after %d retries: %w", c.cfg.MaxRetries, lastErr)
	}, isOutage)

	switch {
	case err == nil:
		return parsed, nil
	case errors.Is(err, ErrBreakerOpen), errors.Is(err, ErrProbeLimit):
		c.logger.Warn("Gateway circuit breaker rejected request",
			zap.String("path", path),
			zap.String("state", c.breaker.State().String()))
		return nil, domain.WrapError(domain.ErrorCodeGatewayError, "gateway unavailable", err)
	case isTimeout(err):
		return nil, domain.WrapError(domain.ErrorCodeGatewayTimeout, "gateway request timed out", err)
	default:
		var de *domain.DomainError
		if errors.As(err, &de) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrorCodeGatewayError, "gateway request failed", err)
	}
}

func (c *APIClient) do(ctx context.Context, path string, form url.Values, creds *apiCredentials) (*merchantResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.SetBasicAuth(creds.Username, creds.Password)

	start := time.Now()
	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, &errRetryable{err: err}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, &errRetryable{err: fmt.Errorf("failed to read response: %w", err)}
	}

	c.logger.Debug("Gateway response received",
		zap.String("path", path),
		zap.Int("status_code", httpResp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("body_length", len(body)))

	switch {
	case httpResp.StatusCode >= 500:
		return nil, &errRetryable{err: fmt.Errorf("gateway returned status %d", httpResp.StatusCode)}
	case httpResp.StatusCode == http.StatusUnauthorized, httpResp.StatusCode == http.StatusForbidden:
		c.resetCredentials()
		return nil, domain.NewDomainError(domain.ErrorCodeGatewayError, "gateway rejected api credentials").
			WithDetail("status_code", httpResp.StatusCode)
	case httpResp.StatusCode >= 400:
		return nil, domain.NewDomainError(domain.ErrorCodeGatewayError, "gateway rejected request").
			WithDetail("status_code", httpResp.StatusCode)
	}

	var parsed merchantResponse
	if err := xml.Unmarshal(body, &parsed); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeGatewayError, "invalid gateway response", err)
	}
	return &parsed, nil
}

func (c *APIClient) credentials(ctx context.Context) (*apiCredentials, error) {
	c.credMu.Lock()
	defer c.credMu.Unlock()
	if c.creds != nil {
		return c.creds, nil
	}

	secret, err := c.secrets.GetSecret(ctx, c.cfg.CredentialsPath)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeGatewayError, "load gateway credentials", err)
	}
	creds, err := parseCredentials(secret.Value)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeGatewayError, "parse gateway credentials", err)
	}
	c.creds = creds
	return creds, nil
}

func (c *APIClient) resetCredentials() {
	c.credMu.Lock()
	c.creds = nil
	c.credMu.Unlock()
}

// parseCredentials accepts {"username":..,"password":..} or user:password
func parseCredentials(value string) (*apiCredentials, error) {
	value = strings.TrimSpace(value)
	var creds apiCredentials
	if strings.HasPrefix(value, "{") {
		if err := json.Unmarshal([]byte(value), &creds); err != nil {
			return nil, err
		}
	} else if user, pass, ok := strings.Cut(value, ":"); ok {
		creds = apiCredentials{Username: user, Password: pass}
	}
	if creds.Username == "" || creds.Password == "" {
		return nil, errors.New("username and password are required")
	}
	return &creds, nil
}

func paymentRequestForm(req *ports.PaymentRequest) url.Values {
	form := url.Values{}
	form.Set("terminal", req.Terminal)
	form.Set("shop_orderid", req.ShopOrderID)
	form.Set("amount", req.Amount.StringFixed(2))
	form.Set("currency", req.Currency)
	if req.Language != "" {
		form.Set("language", req.Language)
	}
	paymentType := req.Type
	if paymentType == "" {
		paymentType = string(domain.AuthTypePayment)
	}
	form.Set("type", paymentType)

	if req.OrderToken != "" {
		key := req.TokenKey
		if key == "" {
			key = DefaultOrderTokenKey
		}
		form.Set(transactionInfoField(key), req.OrderToken)
	}

	setIf := func(key, value string) {
		if value != "" {
			form.Set(key, value)
		}
	}
	setIf("config[callback_form]", req.CallbackURLs.Form)
	setIf("config[callback_ok]", req.CallbackURLs.Success)
	setIf("config[callback_open]", req.CallbackURLs.Open)
	setIf("config[callback_fail]", req.CallbackURLs.Fail)
	setIf("config[callback_notification]", req.CallbackURLs.Notification)

	for k, v := range req.CustomerInfo {
		setIf("customer_info["+k+"]", v)
	}
	return form
}

// isOutage reports whether err says something about gateway availability
func isOutage(err error) bool {
	var retryable *errRetryable
	return errors.As(err, &retryable) || isTimeout(err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
