package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// CheckoutInitiator is the orchestrator as the HTTP layer sees it.
type CheckoutInitiator interface {
	Checkout(ctx context.Context, req CheckoutRequest) (*PaymentSessionResult, error)
}

// CallbackReconciler applies a redirect callback to an order.
type CallbackReconciler interface {
	Reconcile(ctx context.Context, event CallbackEvent) error
}

// OrderAdmin is the back-office order surface.
type OrderAdmin interface {
	ListOrders(ctx context.Context) ([]*Order, error)
	GetOrder(ctx context.Context, orderID string) (*Order, error)
	UpdateStatus(ctx context.Context, orderID, next string) error
}

// CheckoutHandler wires the three use cases into gin.
type CheckoutHandler struct {
	checkout   CheckoutInitiator
	reconciler CallbackReconciler
	admin      OrderAdmin
	tracer     trace.Tracer
}

func NewCheckoutHandler(checkout CheckoutInitiator, reconciler CallbackReconciler, admin OrderAdmin, tracer trace.Tracer) *CheckoutHandler {
	return &CheckoutHandler{
		checkout:   checkout,
		reconciler: reconciler,
		admin:      admin,
		tracer:     tracer,
	}
}

type cartItemPayload struct {
	ProductID string  `json:"product_id" binding:"required"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price" binding:"required,gt=0"`
	Quantity  int     `json:"quantity" binding:"required,gte=1"`
}

type checkoutPayload struct {
	CustomerName  string            `json:"customer_name" binding:"required"`
	CustomerEmail string            `json:"customer_email" binding:"required,email"`
	CustomerPhone string            `json:"customer_phone"`
	Currency      string            `json:"currency" binding:"required"`
	Provider      string            `json:"provider" binding:"required"`
	SessionID     string            `json:"session_id"`
	TotalAmount   float64           `json:"total_amount" binding:"required,gt=0"`
	SuccessURL    string            `json:"success_url" binding:"required,url"`
	CancelURL     string            `json:"cancel_url"`
	Cart          []cartItemPayload `json:"cart" binding:"required,min=1,dive"`
}

func (p checkoutPayload) toRequest() CheckoutRequest {
	cart := make(CartSnapshot, len(p.Cart))
	for i, item := range p.Cart {
		cart[i] = CartItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		}
	}
	return CheckoutRequest{
		Customer: Customer{
			Name:  p.CustomerName,
			Email: p.CustomerEmail,
			Phone: p.CustomerPhone,
		},
		Currency:    p.Currency,
		Cart:        cart,
		TotalAmount: p.TotalAmount,
		Provider:    ProviderID(p.Provider),
		SessionID:   p.SessionID,
		Return: ReturnTargets{
			SuccessURL: p.SuccessURL,
			CancelURL:  p.CancelURL,
		},
	}
}

// InitiateCheckout handles POST /api/checkout.
func (h *CheckoutHandler) InitiateCheckout(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "checkout")
	defer span.End()

	var payload checkoutPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		span.RecordError(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "invalid_request"})
		return
	}

	span.SetAttributes(
		attribute.String("checkout.currency", payload.Currency),
		attribute.String("checkout.provider", payload.Provider),
		attribute.Float64("checkout.total_amount", payload.TotalAmount),
	)

	session, err := h.checkout.Checkout(ctx, payload.toRequest())
	if err != nil {
		span.RecordError(err)
		status, body := checkoutErrorResponse(err)
		c.JSON(status, body)
		return
	}

	span.SetAttributes(attribute.String("checkout.provider_reference", session.ProviderReference))
	c.JSON(http.StatusOK, gin.H{
		"redirect_url":       session.RedirectURL,
		"provider_reference": session.ProviderReference,
		"provider":           payload.Provider,
	})
}

// checkoutErrorResponse maps the error taxonomy onto HTTP so the UI can
// render a specific message per kind.
func checkoutErrorResponse(err error) (int, gin.H) {
	var invalid *InvalidRequestError
	if errors.As(err, &invalid) {
		return http.StatusBadRequest, gin.H{"error": invalid.Error(), "kind": "invalid_request"}
	}
	if errors.Is(err, ErrUnsupportedCurrency) {
		return http.StatusBadRequest, gin.H{
			"error":                err.Error(),
			"kind":                 "unsupported_currency",
			"supported_currencies": SupportedCurrencyCodes(),
		}
	}
	var rejected *RemoteRejectedError
	if errors.As(err, &rejected) {
		return http.StatusBadGateway, gin.H{
			"error":     rejected.Error(),
			"kind":      "remote_rejected",
			"provider":  string(rejected.Provider),
			"retryable": false,
		}
	}
	var network *NetworkError
	if errors.As(err, &network) {
		return http.StatusServiceUnavailable, gin.H{
			"error":     network.Error(),
			"kind":      "network_failure",
			"provider":  string(network.Provider),
			"retryable": true,
		}
	}
	return http.StatusInternalServerError, gin.H{"error": err.Error(), "kind": "internal"}
}

// PaymentCallback handles GET /payment/callback, the browser landing back
// from a provider with ?payment=...&provider=...&ref=... . Reconciliation
// problems are logged inside the use case and absorbed here: whatever
// happened, the customer already paid from their point of view, so the page
// always renders success-shaped.
func (h *CheckoutHandler) PaymentCallback(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "payment_callback")
	defer span.End()

	event := CallbackEvent{
		OrderID:  c.Query("ref"),
		Provider: ProviderID(c.Query("provider")),
		Outcome:  c.Query("payment"),
	}
	span.SetAttributes(
		attribute.String("callback.order_id", event.OrderID),
		attribute.String("callback.provider", string(event.Provider)),
		attribute.String("callback.outcome", event.Outcome),
	)

	err := h.reconciler.Reconcile(ctx, event)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "ok", "order_id": event.OrderID, "outcome": event.Outcome})
	case errors.Is(err, ErrUnknownOrder), errors.Is(err, ErrAlreadyReconciled), errors.Is(err, ErrProviderMismatch):
		c.JSON(http.StatusOK, gin.H{"status": "ok", "order_id": event.OrderID})
	default:
		span.RecordError(err)
		c.JSON(http.StatusOK, gin.H{"status": "ok", "order_id": event.OrderID})
	}
}

// ListOrders handles GET /api/orders.
func (h *CheckoutHandler) ListOrders(c *gin.Context) {
	orders, err := h.admin.ListOrders(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// GetOrder handles GET /api/orders/:id.
func (h *CheckoutHandler) GetOrder(c *gin.Context) {
	order, err := h.admin.GetOrder(c.Request.Context(), c.Param("id"))
	if errors.Is(err, ErrOrderNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, order)
}

type statusUpdatePayload struct {
	Status string `json:"status" binding:"required,oneof=shipped delivered"`
}

// UpdateOrderStatus handles PATCH /api/orders/:id/status, the admin
// dashboard advancing fulfillment.
func (h *CheckoutHandler) UpdateOrderStatus(c *gin.Context) {
	var payload statusUpdatePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.admin.UpdateStatus(c.Request.Context(), c.Param("id"), payload.Status)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"result": "success"})
	case errors.Is(err, ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrIllegalTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// HealthCheck reports service liveness.
func (h *CheckoutHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "checkout-service",
	})
}
