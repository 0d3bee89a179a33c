package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// FlutterwaveAdapter initializes payments against the Flutterwave v3 API.
// Unlike the other two providers, Flutterwave bills in MAJOR units: a 149.97
// GHS cart is sent as 149.97, not 14997.
type FlutterwaveAdapter struct {
	client    *resty.Client
	secretKey string
}

func NewFlutterwaveAdapter(baseURL, secretKey string, timeout time.Duration) *FlutterwaveAdapter {
	return &FlutterwaveAdapter{
		client:    resty.New().SetBaseURL(baseURL).SetTimeout(timeout),
		secretKey: secretKey,
	}
}

func (a *FlutterwaveAdapter) ID() ProviderID { return ProviderFlutterwave }

type flutterwavePaymentRequest struct {
	TxRef          string                    `json:"tx_ref"`
	Amount         float64                   `json:"amount"`
	Currency       string                    `json:"currency"`
	RedirectURL    string                    `json:"redirect_url"`
	Customer       flutterwaveCustomer       `json:"customer"`
	Customizations flutterwaveCustomizations `json:"customizations"`
	Meta           flutterwaveMeta           `json:"meta"`
}

type flutterwaveCustomer struct {
	Email       string `json:"email"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phonenumber,omitempty"`
}

type flutterwaveCustomizations struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type flutterwaveMeta struct {
	OrderID   string `json:"orderId"`
	CartItems string `json:"cartItems"`
}

type flutterwavePaymentResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Link string `json:"link"`
	} `json:"data"`
}

func (a *FlutterwaveAdapter) InitializeSession(ctx context.Context, orderID string, req CheckoutRequest) (*PaymentSessionResult, error) {
	cartJSON, err := json.Marshal(req.Cart)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cart metadata: %w", err)
	}

	body := flutterwavePaymentRequest{
		TxRef:       orderID,
		Amount:      req.TotalAmount,
		Currency:    strings.ToUpper(req.Currency),
		RedirectURL: buildCallbackURL(req.Return.SuccessURL, ProviderFlutterwave, orderID),
		Customer: flutterwaveCustomer{
			Email:       req.Customer.Email,
			Name:        req.Customer.Name,
			PhoneNumber: req.Customer.Phone,
		},
		Customizations: flutterwaveCustomizations{
			Title:       "Checkout",
			Description: fmt.Sprintf("Order %s", orderID),
		},
		Meta: flutterwaveMeta{
			OrderID:   orderID,
			CartItems: string(cartJSON),
		},
	}

	var out flutterwavePaymentResponse
	var apiErr flutterwavePaymentResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetAuthToken(a.secretKey).
		SetBody(body).
		SetResult(&out).
		SetError(&apiErr).
		Post("/v3/payments")
	if err != nil {
		return nil, &NetworkError{Provider: ProviderFlutterwave, Err: err}
	}
	if resp.IsError() {
		return nil, &RemoteRejectedError{Provider: ProviderFlutterwave, StatusCode: resp.StatusCode(), Message: apiErr.Message}
	}
	if out.Status != "success" {
		return nil, &RemoteRejectedError{Provider: ProviderFlutterwave, StatusCode: resp.StatusCode(), Message: out.Message}
	}

	// The tx_ref is not echoed back; it IS the order id by construction, so
	// it serves as the provider reference directly.
	return &PaymentSessionResult{
		RedirectURL:       out.Data.Link,
		ProviderReference: orderID,
	}, nil
}
