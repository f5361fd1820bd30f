package orderapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_CreateCheckout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/orders/checkout" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req CreateCheckoutRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Items) != 1 || req.Items[0].DatasetID != "ds_1" {
			t.Errorf("unexpected items: %+v", req.Items)
		}
		json.NewEncoder(w).Encode(CreateCheckoutResponse{
			OrderID:          "ord_1",
			OrderNumber:      "TG-2025-0001",
			Currency:         "INR",
			Amount:           499,
			AmountPaise:      49900,
			PaymentAttemptID: "attempt_1",
			Gateway:          GatewayLinkage{KeyID: "key_test", OrderID: "prov_ord_1"},
		})
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL, srv.Client())
	resp, err := client.CreateCheckout(context.Background(), CreateCheckoutRequest{
		Items: []CheckoutItem{{DatasetID: "ds_1"}},
	})
	if err != nil {
		t.Fatalf("create checkout: %v", err)
	}
	if resp.OrderID != "ord_1" || resp.PaymentAttemptID != "attempt_1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Gateway.KeyID != "key_test" || resp.Gateway.OrderID != "prov_ord_1" {
		t.Fatalf("unexpected gateway linkage: %+v", resp.Gateway)
	}
}

func TestClient_CreateCheckoutRequiresItems(t *testing.T) {
	t.Parallel()

	client := NewClient("http://localhost:0", nil)
	if _, err := client.CreateCheckout(context.Background(), CreateCheckoutRequest{}); err == nil {
		t.Fatalf("expected an error for an empty item list")
	}
}

func TestClient_ConfirmPayment(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/payments/confirm" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req ConfirmPaymentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.ProviderSignature != "sig_1" {
			t.Errorf("signature not relayed verbatim: %+v", req)
		}
		json.NewEncoder(w).Encode(ConfirmPaymentResponse{
			OK:    true,
			Order: OrderRef{ID: "ord_1", Status: OrderStatusPending},
		})
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL, srv.Client())
	resp, err := client.ConfirmPayment(context.Background(), ConfirmPaymentRequest{
		PaymentAttemptID:  "attempt_1",
		ProviderOrderID:   "prov_ord_1",
		ProviderPaymentID: "prov_pay_1",
		ProviderSignature: "sig_1",
	})
	if err != nil {
		t.Fatalf("confirm payment: %v", err)
	}
	if !resp.OK || resp.Order.ID != "ord_1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestClient_ConfirmPaymentRequiresAttemptID(t *testing.T) {
	t.Parallel()

	client := NewClient("http://localhost:0", nil)
	if _, err := client.ConfirmPayment(context.Background(), ConfirmPaymentRequest{}); err == nil {
		t.Fatalf("expected an error for a missing payment attempt id")
	}
}

func TestClient_GetOrder(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/v1/orders/ord_1" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(GetOrderResponse{
			Order: OrderRef{ID: "ord_1", Status: OrderStatusCompleted},
		})
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL, srv.Client())
	resp, err := client.GetOrder(context.Background(), "ord_1")
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if resp.Order.Status != OrderStatusCompleted {
		t.Fatalf("unexpected status %q", resp.Order.Status)
	}
}

func TestClient_NonSuccessIsAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"order not found"}`, http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL, srv.Client())
	_, err := client.GetOrder(context.Background(), "ghost")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("unexpected status %d", apiErr.StatusCode)
	}
	if apiErr.Body == "" {
		t.Fatalf("expected the body to be captured")
	}
}

func TestClient_TrimsTrailingSlash(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/orders/ord_1" {
			t.Errorf("double slash in path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(GetOrderResponse{Order: OrderRef{ID: "ord_1", Status: OrderStatusPending}})
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL+"/", srv.Client())
	if _, err := client.GetOrder(context.Background(), "ord_1"); err != nil {
		t.Fatalf("get order: %v", err)
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	t.Parallel()

	for _, s := range []OrderStatus{OrderStatusCompleted, OrderStatusFailed, OrderStatusRefunded} {
		if !s.Terminal() {
			t.Errorf("expected %q to be terminal", s)
		}
	}
	if OrderStatusPending.Terminal() {
		t.Errorf("PENDING must not be terminal")
	}
}
