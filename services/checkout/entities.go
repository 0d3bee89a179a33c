package main

import (
	"strconv"
	"strings"
	"time"
)

// Order lifecycle statuses. A checkout commits the order as "pending"; the
// callback reconciler moves it to "paid" or "failed"; shipping transitions
// are an admin concern.
const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusFailed    = "failed"
	OrderStatusShipped   = "shipped"
	OrderStatusDelivered = "delivered"
)

var statusTransitions = map[string][]string{
	OrderStatusPending: {OrderStatusPaid, OrderStatusFailed},
	OrderStatusPaid:    {OrderStatusShipped},
	OrderStatusShipped: {OrderStatusDelivered},
}

// canTransition reports whether an order may move from one status to another.
func canTransition(from, to string) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CartItem is a single cart line captured at checkout time. Prices are copied
// out of the catalog, not referenced, so a mid-checkout price change cannot
// alter what the customer agreed to pay.
type CartItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
}

// CartSnapshot is the immutable copy of the cart an order is created from.
type CartSnapshot []CartItem

// Total sums unit price × quantity over all lines.
func (c CartSnapshot) Total() float64 {
	var total float64
	for _, item := range c {
		total += item.UnitPrice * float64(item.Quantity)
	}
	return total
}

// ProductIDs returns the distinct product ids in the snapshot.
func (c CartSnapshot) ProductIDs() []string {
	seen := make(map[string]bool, len(c))
	ids := make([]string, 0, len(c))
	for _, item := range c {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}
	return ids
}

// Customer identifies who is paying. Phone is only required by Flutterwave.
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// ReturnTargets are the browser destinations after the provider finishes.
type ReturnTargets struct {
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url,omitempty"`
}

// CheckoutRequest carries everything a single checkout attempt needs. It is
// passed by value through the whole chain; the orchestrator never reads
// shared state.
type CheckoutRequest struct {
	Customer    Customer
	Currency    string
	Cart        CartSnapshot
	TotalAmount float64
	Provider    ProviderID
	SessionID   string
	Return      ReturnTargets
}

// Order is the durable record of one checkout attempt.
type Order struct {
	ID            string       `json:"id"`
	Cart          CartSnapshot `json:"cart"`
	TotalAmount   float64      `json:"total_amount"`
	Currency      string       `json:"currency"`
	Status        string       `json:"status"`
	Provider      ProviderID   `json:"provider"`
	CustomerName  string       `json:"customer_name"`
	CustomerEmail string       `json:"customer_email"`
	CustomerPhone string       `json:"customer_phone,omitempty"`
	SessionID     string       `json:"session_id,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// NewOrder builds a pending order from a checkout request.
func NewOrder(id string, req CheckoutRequest) *Order {
	now := time.Now()
	return &Order{
		ID:            id,
		Cart:          req.Cart,
		TotalAmount:   req.TotalAmount,
		Currency:      strings.ToUpper(req.Currency),
		Status:        OrderStatusPending,
		Provider:      req.Provider,
		CustomerName:  req.Customer.Name,
		CustomerEmail: req.Customer.Email,
		CustomerPhone: req.Customer.Phone,
		SessionID:     req.SessionID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// NewOrderID returns a short, shareable order id derived from a
// high-resolution timestamp, e.g. ORD-1B2M4XK9PQRS. It doubles as the
// provider reference, so it only uses characters every provider accepts.
// Uniqueness here is best-effort; the reconciler's compare-and-set is the
// actual duplicate guard.
func NewOrderID() string {
	return "ORD-" + strings.ToUpper(strconv.FormatInt(time.Now().UnixNano(), 36))
}

// PaymentSessionResult is the normalized output of every provider adapter.
type PaymentSessionResult struct {
	RedirectURL       string `json:"redirect_url"`
	ProviderReference string `json:"provider_reference"`
}

// Callback outcomes as they appear in the redirect query string.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)

// CallbackEvent is what a provider redirect tells us: which order, via which
// provider, with which outcome. Parsed straight from the three query
// parameters and consumed once.
type CallbackEvent struct {
	OrderID  string
	Provider ProviderID
	Outcome  string
}
