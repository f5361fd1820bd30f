// Package orderapi is a thin REST wrapper around the marketplace order
// service: create checkout, confirm payment, read order status.
package orderapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// APIError is a non-2xx response from the order service.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("order service returned %d: %s", e.StatusCode, e.Body)
}

// Client calls the order service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient constructs a Client for the given base URL. A nil httpClient gets
// a default client with an instrumented transport.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// CreateCheckout starts a checkout and returns the payment attempt plus
// gateway linkage.
func (c *Client) CreateCheckout(ctx context.Context, req CreateCheckoutRequest) (CreateCheckoutResponse, error) {
	var resp CreateCheckoutResponse
	if len(req.Items) == 0 {
		return resp, fmt.Errorf("create checkout: at least one item is required")
	}
	err := c.doJSON(ctx, http.MethodPost, "/api/v1/orders/checkout", req, &resp)
	return resp, err
}

// ConfirmPayment relays the widget success payload to the backend.
func (c *Client) ConfirmPayment(ctx context.Context, req ConfirmPaymentRequest) (ConfirmPaymentResponse, error) {
	var resp ConfirmPaymentResponse
	if req.PaymentAttemptID == "" {
		return resp, fmt.Errorf("confirm payment: payment attempt id is required")
	}
	err := c.doJSON(ctx, http.MethodPost, "/api/v1/payments/confirm", req, &resp)
	return resp, err
}

// GetOrder reads the current order status.
func (c *Client) GetOrder(ctx context.Context, orderID string) (GetOrderResponse, error) {
	var resp GetOrderResponse
	if orderID == "" {
		return resp, fmt.Errorf("get order: order id is required")
	}
	err := c.doJSON(ctx, http.MethodGet, "/api/v1/orders/"+url.PathEscape(orderID), nil, &resp)
	return resp, err
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("order service request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
