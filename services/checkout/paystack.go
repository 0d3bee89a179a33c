package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Currencies Paystack will accept at all. This is the only provider with a
// hard allow-list; the other two take broader ranges and reject remotely.
var paystackCurrencies = map[string]bool{
	"NGN": true, "GHS": true, "ZAR": true, "KES": true,
}

// PaystackAdapter initializes transactions against the Paystack API.
// Amounts are sent in minor units (kobo, pesewas, cents).
type PaystackAdapter struct {
	client    *resty.Client
	secretKey string
}

func NewPaystackAdapter(baseURL, secretKey string, timeout time.Duration) *PaystackAdapter {
	return &PaystackAdapter{
		client:    resty.New().SetBaseURL(baseURL).SetTimeout(timeout),
		secretKey: secretKey,
	}
}

func (a *PaystackAdapter) ID() ProviderID { return ProviderPaystack }

type paystackInitRequest struct {
	Email       string           `json:"email"`
	Amount      int64            `json:"amount"`
	Currency    string           `json:"currency"`
	Reference   string           `json:"reference"`
	CallbackURL string           `json:"callback_url"`
	Metadata    paystackMetadata `json:"metadata"`
}

type paystackMetadata struct {
	OrderID      string `json:"orderId"`
	CustomerName string `json:"customerName"`
	CartItems    string `json:"cartItems"`
}

type paystackInitResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

func (a *PaystackAdapter) InitializeSession(ctx context.Context, orderID string, req CheckoutRequest) (*PaymentSessionResult, error) {
	currency := strings.ToUpper(req.Currency)
	if !paystackCurrencies[currency] {
		return nil, fmt.Errorf("%w: paystack does not support %s (supported: NGN, GHS, ZAR, KES)", ErrUnsupportedCurrency, currency)
	}

	cartJSON, err := json.Marshal(req.Cart)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cart metadata: %w", err)
	}

	body := paystackInitRequest{
		Email:       req.Customer.Email,
		Amount:      minorUnits(req.TotalAmount),
		Currency:    currency,
		Reference:   orderID,
		CallbackURL: buildCallbackURL(req.Return.SuccessURL, ProviderPaystack, orderID),
		Metadata: paystackMetadata{
			OrderID:      orderID,
			CustomerName: req.Customer.Name,
			CartItems:    string(cartJSON),
		},
	}

	var out paystackInitResponse
	var apiErr paystackInitResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetAuthToken(a.secretKey).
		SetBody(body).
		SetResult(&out).
		SetError(&apiErr).
		Post("/transaction/initialize")
	if err != nil {
		return nil, &NetworkError{Provider: ProviderPaystack, Err: err}
	}
	if resp.IsError() {
		return nil, &RemoteRejectedError{Provider: ProviderPaystack, StatusCode: resp.StatusCode(), Message: apiErr.Message}
	}
	if !out.Status {
		return nil, &RemoteRejectedError{Provider: ProviderPaystack, StatusCode: resp.StatusCode(), Message: out.Message}
	}

	// Paystack echoes the reference back; a mismatch would orphan the order
	// at reconciliation time.
	if out.Data.Reference != orderID {
		return nil, fmt.Errorf("%w: sent %q, got %q", ErrReferenceMismatch, orderID, out.Data.Reference)
	}

	return &PaymentSessionResult{
		RedirectURL:       out.Data.AuthorizationURL,
		ProviderReference: out.Data.Reference,
	}, nil
}
