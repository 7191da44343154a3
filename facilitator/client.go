// Package facilitator implements the HTTP client for the remote payment
// facilitator: a verify/settle two-phase handshake plus informational
// health and network endpoints. The client performs no retries; replaying
// either phase with a single-use authorization is the caller's decision.
package facilitator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	lenspay "github.com/openxr-labs/lenspay"
)

// DefaultURL is the hosted facilitator service.
const DefaultURL = "https://fluentx402.replit.app"

// Config configures the facilitator client.
type Config struct {
	// URL is the base URL of the facilitator service.
	URL string

	// HTTPClient is the HTTP client to use (optional).
	HTTPClient *http.Client

	// Timeout for requests (optional, defaults to 30s). Ignored when
	// HTTPClient is provided.
	Timeout time.Duration
}

// Client talks to a remote facilitator over HTTP.
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient creates a facilitator client.
func NewClient(config *Config) *Client {
	if config == nil {
		config = &Config{}
	}

	url := config.URL
	if url == "" {
		url = DefaultURL
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{url: url, httpClient: httpClient}
}

type verifyRequest struct {
	PaymentPayload string                 `json:"paymentPayload"`
	PaymentDetails lenspay.PaymentDetails `json:"paymentDetails"`
}

type settleRequest struct {
	PaymentPayload string                 `json:"paymentPayload"`
	PaymentDetails lenspay.PaymentDetails `json:"paymentDetails"`
	TransactionID  string                 `json:"transactionId,omitempty"`
}

// Verify asks the facilitator to confirm the payload is well-formed and
// matches the declared payment details before committing to settlement.
// valid=false and non-2xx responses are hard failures.
func (c *Client) Verify(ctx context.Context, paymentPayload string, details lenspay.PaymentDetails) (*lenspay.VerifyResponse, error) {
	if err := details.Validate(); err != nil {
		return nil, fmt.Errorf("invalid payment details: %w", err)
	}

	body, status, err := c.post(ctx, "/api/verify", verifyRequest{
		PaymentPayload: paymentPayload,
		PaymentDetails: details,
	})
	if err != nil {
		return nil, err
	}

	// A non-2xx reply is a hard rejection even when the body is empty or
	// not JSON (plain-text errors, proxy pages); the message is best effort.
	if status != http.StatusOK {
		var verifyResponse lenspay.VerifyResponse
		_ = json.Unmarshal(body, &verifyResponse)
		return nil, lenspay.NewPaymentError(
			lenspay.ErrCodeVerificationFailed,
			messageOr(verifyResponse.Message, fmt.Sprintf("facilitator verify failed (%d)", status)),
			map[string]interface{}{"status": status},
		)
	}

	var verifyResponse lenspay.VerifyResponse
	if err := json.Unmarshal(body, &verifyResponse); err != nil {
		return nil, lenspay.NewPaymentError(
			lenspay.ErrCodeTransportFailure,
			fmt.Sprintf("failed to decode verify response: %s", err.Error()),
			nil,
		)
	}

	if !verifyResponse.Valid {
		return nil, lenspay.NewPaymentError(
			lenspay.ErrCodeVerificationFailed,
			messageOr(verifyResponse.Message, "payment verification failed"),
			nil,
		)
	}

	return &verifyResponse, nil
}

// Settle asks the facilitator to broadcast the payment; the facilitator
// pays gas. success=false and non-2xx responses are hard failures.
func (c *Client) Settle(ctx context.Context, paymentPayload string, details lenspay.PaymentDetails, transactionID string) (*lenspay.SettleResponse, error) {
	if err := details.Validate(); err != nil {
		return nil, fmt.Errorf("invalid payment details: %w", err)
	}

	body, status, err := c.post(ctx, "/api/settle", settleRequest{
		PaymentPayload: paymentPayload,
		PaymentDetails: details,
		TransactionID:  transactionID,
	})
	if err != nil {
		return nil, err
	}

	if status != http.StatusOK {
		var settleResponse lenspay.SettleResponse
		_ = json.Unmarshal(body, &settleResponse)
		return nil, lenspay.NewPaymentError(
			lenspay.ErrCodeSettlementFailed,
			messageOr(settleResponse.Message, fmt.Sprintf("facilitator settle failed (%d)", status)),
			map[string]interface{}{"status": status},
		)
	}

	var settleResponse lenspay.SettleResponse
	if err := json.Unmarshal(body, &settleResponse); err != nil {
		return nil, lenspay.NewPaymentError(
			lenspay.ErrCodeTransportFailure,
			fmt.Sprintf("failed to decode settle response: %s", err.Error()),
			nil,
		)
	}

	if !settleResponse.Success {
		return nil, lenspay.NewPaymentError(
			lenspay.ErrCodeSettlementFailed,
			messageOr(settleResponse.Message, "payment settlement failed"),
			nil,
		)
	}

	return &settleResponse, nil
}

// Health checks the facilitator's health endpoint. Informational only.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.url+"/api/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return lenspay.NewPaymentError(lenspay.ErrCodeTransportFailure, err.Error(), nil)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("facilitator health check failed (%d)", resp.StatusCode)
	}
	return nil
}

// Network fetches the facilitator's settlement network configuration.
// Informational only; never required for correctness.
func (c *Client) Network(ctx context.Context) (*lenspay.NetworkConfig, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.url+"/api/network", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create network request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, lenspay.NewPaymentError(lenspay.ErrCodeTransportFailure, err.Error(), nil)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("facilitator network request failed (%d): %s", resp.StatusCode, string(responseBody))
	}

	var networkConfig lenspay.NetworkConfig
	if err := json.Unmarshal(responseBody, &networkConfig); err != nil {
		return nil, fmt.Errorf("failed to decode network response: %w", err)
	}
	return &networkConfig, nil
}

// post sends a JSON request and returns the raw body and status code.
// Transport-level failures are typed as retryable.
func (c *Client) post(ctx context.Context, path string, payload interface{}) ([]byte, int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.url+path, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, lenspay.NewPaymentError(lenspay.ErrCodeTransportFailure, err.Error(), nil)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, lenspay.NewPaymentError(lenspay.ErrCodeTransportFailure, err.Error(), nil)
	}

	return responseBody, resp.StatusCode, nil
}

func messageOr(msg, fallback string) string {
	if msg != "" {
		return msg
	}
	return fallback
}
