package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// StripeAdapter creates Checkout Sessions against the Stripe API. Stripe's
// API is form-encoded rather than JSON, and the order id travels in the
// success_url query string plus metadata instead of a reference field.
// Amounts are sent in minor units.
type StripeAdapter struct {
	client    *resty.Client
	secretKey string
}

func NewStripeAdapter(baseURL, secretKey string, timeout time.Duration) *StripeAdapter {
	return &StripeAdapter{
		client:    resty.New().SetBaseURL(baseURL).SetTimeout(timeout),
		secretKey: secretKey,
	}
}

func (a *StripeAdapter) ID() ProviderID { return ProviderStripe }

type stripeSessionResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type stripeErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (a *StripeAdapter) InitializeSession(ctx context.Context, orderID string, req CheckoutRequest) (*PaymentSessionResult, error) {
	cancelURL := req.Return.CancelURL
	if cancelURL == "" {
		cancelURL = req.Return.SuccessURL
	}

	form := map[string]string{
		"mode":                    "payment",
		"payment_method_types[0]": "card",
		"customer_email":          req.Customer.Email,
		"line_items[0][price_data][currency]":                      strings.ToLower(req.Currency),
		"line_items[0][price_data][unit_amount]":                   strconv.FormatInt(minorUnits(req.TotalAmount), 10),
		"line_items[0][price_data][product_data][name]":            fmt.Sprintf("Order %s", orderID),
		"line_items[0][price_data][product_data][description]":     fmt.Sprintf("%d item(s)", len(req.Cart)),
		"line_items[0][quantity]": "1",
		"metadata[order_id]":      orderID,
		"metadata[customer_name]": req.Customer.Name,
		"success_url":             buildCallbackURL(req.Return.SuccessURL, ProviderStripe, orderID),
		"cancel_url":              cancelURL,
	}

	var out stripeSessionResponse
	var apiErr stripeErrorResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetAuthToken(a.secretKey).
		// Stripe deduplicates on this key if the same request is replayed.
		SetHeader("Idempotency-Key", uuid.New().String()).
		SetFormData(form).
		SetResult(&out).
		SetError(&apiErr).
		Post("/v1/checkout/sessions")
	if err != nil {
		return nil, &NetworkError{Provider: ProviderStripe, Err: err}
	}
	if resp.IsError() {
		return nil, &RemoteRejectedError{Provider: ProviderStripe, StatusCode: resp.StatusCode(), Message: apiErr.Error.Message}
	}
	if out.URL == "" {
		return nil, &RemoteRejectedError{Provider: ProviderStripe, StatusCode: resp.StatusCode(), Message: "session created without a redirect url"}
	}

	return &PaymentSessionResult{
		RedirectURL:       out.URL,
		ProviderReference: out.ID,
	}, nil
}
