package paystack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/adirebymkz/shop-backend/internal/model"
)

func TestInitialize_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/transaction/initialize" {
			t.Fatalf("path = %s, want /transaction/initialize", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk_test" {
			t.Fatalf("authorization = %q, want Bearer sk_test", got)
		}

		var req initializeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Amount != 15000 {
			t.Fatalf("amount = %d, want 15000", req.Amount)
		}
		if req.Metadata.OrderID != "order-1" {
			t.Fatalf("metadata.orderId = %q, want order-1", req.Metadata.OrderID)
		}

		resp := initializeResponse{Status: true, Message: "Authorization URL created"}
		resp.Data.AuthorizationURL = "https://checkout.paystack.com/abc"
		resp.Data.Reference = "ref-123"

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "sk_test", "https://shop.example/callback")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	intent, err := client.Initialize(ctx, "user@example.com", 15000, "NGN", "order-1")
	if err != nil {
		t.Fatalf("Initialize error: %v", err)
	}
	if intent.Reference != "ref-123" {
		t.Fatalf("reference = %q, want ref-123", intent.Reference)
	}
	if intent.AuthorizationURL != "https://checkout.paystack.com/abc" {
		t.Fatalf("authorization url = %q", intent.AuthorizationURL)
	}
}

func TestInitialize_RejectedByProvider(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := initializeResponse{Status: false, Message: "Invalid amount"}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "sk_test", "")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := client.Initialize(ctx, "user@example.com", 0, "NGN", "order-1"); err == nil {
		t.Fatalf("expected error when provider rejects initialize")
	}
}

func TestVerify_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transaction/verify/ref-123" {
			t.Fatalf("path = %s, want /transaction/verify/ref-123", r.URL.Path)
		}

		resp := verifyResponse{Status: true, Message: "Verification successful"}
		resp.Data.Status = model.ProviderStatusSuccess
		resp.Data.Reference = "ref-123"
		resp.Data.Amount = 15000
		resp.Data.Metadata.OrderID = "order-1"

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "sk_test", "")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res, err := client.Verify(ctx, "ref-123")
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if !res.Succeeded() {
		t.Fatalf("status = %q, want success", res.Status)
	}
	if res.OrderID != "order-1" {
		t.Fatalf("order id = %q, want order-1", res.OrderID)
	}
}

func TestVerify_PendingIsNotSuccess(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := verifyResponse{Status: true}
		resp.Data.Status = model.ProviderStatusPending
		resp.Data.Reference = "ref-123"
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "sk_test", "")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res, err := client.Verify(ctx, "ref-123")
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if res.Succeeded() {
		t.Fatalf("pending status must not be success")
	}
}

func TestVerify_NotConfigured(t *testing.T) {
	var client *Client

	if _, err := client.Verify(context.Background(), "ref"); err == nil {
		t.Fatalf("expected error for unconfigured client")
	}
}
