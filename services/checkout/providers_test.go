package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinorUnits(t *testing.T) {
	cases := []struct {
		amount float64
		want   int64
	}{
		{49.99, 4999},
		{149.97, 14997},
		{1000, 100000}, // zero-decimal amount still multiplied where minor units are expected
		{0.01, 1},
		{0, 0},
	}

	for _, c := range cases {
		if got := minorUnits(c.amount); got != c.want {
			t.Errorf("minorUnits(%v) = %d, want %d", c.amount, got, c.want)
		}
	}
}

func TestBuildCallbackURL(t *testing.T) {
	got := buildCallbackURL("https://shop.example.com/return", ProviderPaystack, "ORD-ABC123")
	want := "https://shop.example.com/return?payment=success&provider=paystack&ref=ORD-ABC123"
	if got != want {
		t.Errorf("buildCallbackURL = %q, want %q", got, want)
	}
}

// --- Paystack ---

func TestPaystackAdapter_InitializeSession(t *testing.T) {
	var got paystackInitRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/initialize", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_abc", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":true,"message":"Authorization URL created","data":{"authorization_url":"https://checkout.paystack.com/abc","access_code":"abc","reference":%q}}`, got.Reference)
	}))
	defer srv.Close()

	adapter := NewPaystackAdapter(srv.URL, "sk_test_abc", time.Second)
	result, err := adapter.InitializeSession(context.Background(), "ORD-TEST1", testCheckoutRequest())

	require.NoError(t, err)
	assert.Equal(t, "https://checkout.paystack.com/abc", result.RedirectURL)
	assert.Equal(t, "ORD-TEST1", result.ProviderReference)

	// 149.97 GHS travels as 14997 pesewas
	assert.Equal(t, int64(14997), got.Amount)
	assert.Equal(t, "GHS", got.Currency)
	assert.Equal(t, "ORD-TEST1", got.Reference)
	assert.Equal(t, "ama@example.com", got.Email)
	assert.Equal(t, "https://shop.example.com/return?payment=success&provider=paystack&ref=ORD-TEST1", got.CallbackURL)
	assert.Equal(t, "ORD-TEST1", got.Metadata.OrderID)
}

func TestPaystackAdapter_UnsupportedCurrency(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer srv.Close()

	adapter := NewPaystackAdapter(srv.URL, "sk_test_abc", time.Second)
	req := testCheckoutRequest()
	req.Currency = "USD"

	_, err := adapter.InitializeSession(context.Background(), "ORD-TEST1", req)

	assert.ErrorIs(t, err, ErrUnsupportedCurrency)
	assert.Equal(t, 0, hits, "a hard-rejected currency must not reach the wire")
}

func TestPaystackAdapter_RemoteRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"status":false,"message":"Invalid key"}`)
	}))
	defer srv.Close()

	adapter := NewPaystackAdapter(srv.URL, "sk_bad", time.Second)
	_, err := adapter.InitializeSession(context.Background(), "ORD-TEST1", testCheckoutRequest())

	var rejected *RemoteRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, ProviderPaystack, rejected.Provider)
	assert.Equal(t, http.StatusUnauthorized, rejected.StatusCode)
	assert.Equal(t, "Invalid key", rejected.Message)
}

func TestPaystackAdapter_NetworkFailure(t *testing.T) {
	// Nothing listens here
	adapter := NewPaystackAdapter("http://127.0.0.1:1", "sk_test_abc", 200*time.Millisecond)
	_, err := adapter.InitializeSession(context.Background(), "ORD-TEST1", testCheckoutRequest())

	var network *NetworkError
	require.ErrorAs(t, err, &network)
	assert.Equal(t, ProviderPaystack, network.Provider)
}

func TestPaystackAdapter_ReferenceMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":true,"message":"ok","data":{"authorization_url":"https://checkout.paystack.com/abc","reference":"ORD-TRUNCATED"}}`)
	}))
	defer srv.Close()

	adapter := NewPaystackAdapter(srv.URL, "sk_test_abc", time.Second)
	_, err := adapter.InitializeSession(context.Background(), "ORD-TEST1", testCheckoutRequest())

	assert.ErrorIs(t, err, ErrReferenceMismatch)
}

// --- Stripe ---

func TestStripeAdapter_InitializeSession(t *testing.T) {
	var form url.Values
	var idempotencyKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_stripe", r.Header.Get("Authorization"))
		idempotencyKey = r.Header.Get("Idempotency-Key")
		assert.NoError(t, r.ParseForm())
		form = r.PostForm

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"cs_test_123","url":"https://checkout.stripe.com/c/pay/cs_test_123"}`)
	}))
	defer srv.Close()

	req := testCheckoutRequest()
	req.Currency = "USD"
	req.Cart = CartSnapshot{{ProductID: "1", UnitPrice: 49.99, Quantity: 1}}
	req.TotalAmount = 49.99
	req.Provider = ProviderStripe

	adapter := NewStripeAdapter(srv.URL, "sk_test_stripe", time.Second)
	result, err := adapter.InitializeSession(context.Background(), "ORD-TEST2", req)

	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_123", result.RedirectURL)
	assert.Equal(t, "cs_test_123", result.ProviderReference)
	assert.NotEmpty(t, idempotencyKey)

	// 49.99 USD travels as 4999 cents
	assert.Equal(t, "4999", form.Get("line_items[0][price_data][unit_amount]"))
	assert.Equal(t, "usd", form.Get("line_items[0][price_data][currency]"))
	assert.Equal(t, "payment", form.Get("mode"))
	assert.Equal(t, "https://shop.example.com/return?payment=success&provider=stripe&ref=ORD-TEST2", form.Get("success_url"))
	// No cancel url given: falls back to the success url
	assert.Equal(t, "https://shop.example.com/return", form.Get("cancel_url"))
	assert.Equal(t, "ORD-TEST2", form.Get("metadata[order_id]"))
}

func TestStripeAdapter_RemoteRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		fmt.Fprint(w, `{"error":{"type":"card_error","message":"Your card was declined."}}`)
	}))
	defer srv.Close()

	adapter := NewStripeAdapter(srv.URL, "sk_test_stripe", time.Second)
	req := testCheckoutRequest()
	req.Currency = "USD"
	req.Provider = ProviderStripe

	_, err := adapter.InitializeSession(context.Background(), "ORD-TEST2", req)

	var rejected *RemoteRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, ProviderStripe, rejected.Provider)
	assert.Equal(t, "Your card was declined.", rejected.Message)
}

// --- Flutterwave ---

func TestFlutterwaveAdapter_InitializeSession(t *testing.T) {
	var got flutterwavePaymentRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/payments", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_flw", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"success","message":"Hosted Link","data":{"link":"https://checkout.flutterwave.com/v3/hosted/pay/xyz"}}`)
	}))
	defer srv.Close()

	adapter := NewFlutterwaveAdapter(srv.URL, "sk_test_flw", time.Second)
	result, err := adapter.InitializeSession(context.Background(), "ORD-TEST3", testCheckoutRequest())

	require.NoError(t, err)
	assert.Equal(t, "https://checkout.flutterwave.com/v3/hosted/pay/xyz", result.RedirectURL)
	// tx_ref is the order id by construction
	assert.Equal(t, "ORD-TEST3", result.ProviderReference)

	// Flutterwave bills in major units: 149.97, not 14997
	assert.Equal(t, 149.97, got.Amount)
	assert.Equal(t, "GHS", got.Currency)
	assert.Equal(t, "ORD-TEST3", got.TxRef)
	assert.Equal(t, "+233201234567", got.Customer.PhoneNumber)
	assert.Equal(t, "https://shop.example.com/return?payment=success&provider=flutterwave&ref=ORD-TEST3", got.RedirectURL)
}

func TestFlutterwaveAdapter_MajorUnitsUnmultiplied(t *testing.T) {
	var got flutterwavePaymentRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"success","message":"ok","data":{"link":"https://checkout.flutterwave.com/x"}}`)
	}))
	defer srv.Close()

	req := testCheckoutRequest()
	req.Currency = "UGX"
	req.Cart = CartSnapshot{{ProductID: "1", UnitPrice: 1000, Quantity: 1}}
	req.TotalAmount = 1000
	req.Provider = ProviderFlutterwave

	adapter := NewFlutterwaveAdapter(srv.URL, "sk_test_flw", time.Second)
	_, err := adapter.InitializeSession(context.Background(), "ORD-TEST4", req)

	require.NoError(t, err)
	assert.Equal(t, float64(1000), got.Amount)
}

func TestFlutterwaveAdapter_RemoteRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"error","message":"Currency not supported for merchant"}`)
	}))
	defer srv.Close()

	adapter := NewFlutterwaveAdapter(srv.URL, "sk_test_flw", time.Second)
	_, err := adapter.InitializeSession(context.Background(), "ORD-TEST3", testCheckoutRequest())

	var rejected *RemoteRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, ProviderFlutterwave, rejected.Provider)
	assert.Equal(t, "Currency not supported for merchant", rejected.Message)
}

func TestAdapterRegistryLookup(t *testing.T) {
	registry := AdapterRegistry{
		ProviderPaystack: NewPaystackAdapter("http://localhost", "k", time.Second),
	}

	adapter, ok := registry.Lookup(ProviderPaystack)
	require.True(t, ok)
	assert.Equal(t, ProviderPaystack, adapter.ID())

	_, ok = registry.Lookup(ProviderStripe)
	assert.False(t, ok)

	if errors.Is(ErrReferenceMismatch, ErrUnsupportedCurrency) {
		t.Error("error kinds must stay distinct")
	}
}
