package main

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// ProviderID identifies one of the three payment providers.
type ProviderID string

const (
	ProviderPaystack    ProviderID = "paystack"
	ProviderStripe      ProviderID = "stripe"
	ProviderFlutterwave ProviderID = "flutterwave"
)

// Valid reports whether the id names a known provider.
func (p ProviderID) Valid() bool {
	switch p {
	case ProviderPaystack, ProviderStripe, ProviderFlutterwave:
		return true
	}
	return false
}

// ProviderAdapter turns a checkout request into one provider-specific remote
// call and normalizes the response. Adapters are stateless and never retry;
// a failed call means the whole checkout attempt failed and the customer
// starts over with a fresh order id.
type ProviderAdapter interface {
	ID() ProviderID
	InitializeSession(ctx context.Context, orderID string, req CheckoutRequest) (*PaymentSessionResult, error)
}

// AdapterRegistry maps provider ids to their adapters. Adding a fourth
// provider is a new entry here plus a Providers slot in the currency table.
type AdapterRegistry map[ProviderID]ProviderAdapter

// Lookup returns the adapter for a provider id.
func (r AdapterRegistry) Lookup(id ProviderID) (ProviderAdapter, bool) {
	adapter, ok := r[id]
	return adapter, ok
}

// ErrReferenceMismatch means the provider echoed back a different reference
// than the order id we sent. The reference is the only correlation between
// the redirect callback and the order, so checkout must stop here rather
// than commit an order the callback can never find.
var ErrReferenceMismatch = errors.New("provider altered the order reference")

// RemoteRejectedError: the provider answered and said no. The message is
// kept for display but never drives control flow. Not retryable with the
// same request.
type RemoteRejectedError struct {
	Provider   ProviderID
	StatusCode int
	Message    string
}

func (e *RemoteRejectedError) Error() string {
	return fmt.Sprintf("%s rejected the payment session (HTTP %d): %s", e.Provider, e.StatusCode, e.Message)
}

// NetworkError: no usable response from the provider, timeouts included.
// Distinguished from a rejection because the caller may reasonably try
// again (as a fresh checkout attempt).
type NetworkError struct {
	Provider ProviderID
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s unreachable: %v", e.Provider, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// minorUnits converts a major-unit amount to the smallest currency unit,
// e.g. 49.99 -> 4999. Paystack and Stripe bill in minor units; Flutterwave
// takes the major amount as-is.
func minorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// buildCallbackURL produces the exact redirect shape the reconciler parses:
// {base}?payment=success&provider={id}&ref={orderID}. Provider dashboards
// and the callback handler both depend on this literal layout.
func buildCallbackURL(base string, provider ProviderID, orderID string) string {
	return fmt.Sprintf("%s?payment=success&provider=%s&ref=%s", base, provider, orderID)
}
