package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"slices"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// InvalidRequestError: the checkout request itself is wrong. User-correctable,
// no remote call is made, no order is created.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return "invalid checkout request: " + e.Reason
}

// Reconciler outcomes that end as no-ops. All are logged and
// absorbed; a customer landing on the redirect page never sees them.
var (
	ErrUnknownOrder      = errors.New("callback referenced an unknown order")
	ErrAlreadyReconciled = errors.New("order already reconciled")
	ErrProviderMismatch  = errors.New("callback provider does not match the order")
)

// Two-decimal money compared through float64: anything beyond half a minor
// unit apart is a real mismatch, not rounding noise.
const amountTolerance = 0.005

// CheckoutUseCase drives a single checkout attempt through
// validate -> initialize -> commit. The order is persisted only after the
// provider session exists, so the store never holds orphan drafts.
type CheckoutUseCase struct {
	repository      Repository
	products        ProductStore
	adapters        AdapterRegistry
	checkoutCounter metric.Int64Counter
}

func NewCheckoutUseCase(repository Repository, products ProductStore, adapters AdapterRegistry) *CheckoutUseCase {
	counter, err := otel.Meter("checkout-service").Int64Counter("checkout_attempts_total")
	if err != nil {
		log.Printf("⚠️ Failed to create checkout counter: %v", err)
	}
	return &CheckoutUseCase{
		repository:      repository,
		products:        products,
		adapters:        adapters,
		checkoutCounter: counter,
	}
}

// Checkout validates the request, initializes a provider session with a
// fresh order id embedded as the provider reference, and commits the
// pending order. Any failure before commit leaves no trace in the store;
// the customer simply starts a new attempt.
func (uc *CheckoutUseCase) Checkout(ctx context.Context, req CheckoutRequest) (*PaymentSessionResult, error) {
	// 1. Validate; nothing remote happens until the request holds up
	if err := uc.validate(ctx, req); err != nil {
		uc.count(ctx, req.Provider, "rejected")
		return nil, err
	}

	// 2. Generate the order id; it is both the idempotency key and the
	// provider correlation reference
	orderID := NewOrderID()
	log.Printf("➡️ [CHECKOUT] OrderID: %s | Provider: %s | %s", orderID, req.Provider, FormatAmount(req.TotalAmount, req.Currency))

	// 3. Initialize the provider session
	adapter, ok := uc.adapters.Lookup(req.Provider)
	if !ok {
		uc.count(ctx, req.Provider, "rejected")
		return nil, &InvalidRequestError{Reason: fmt.Sprintf("unknown provider %q", req.Provider)}
	}
	session, err := adapter.InitializeSession(ctx, orderID, req)
	if err != nil {
		// No order is persisted on this path
		log.Printf("❌ [CHECKOUT] Provider init failed | OrderID=%s | %v", orderID, err)
		uc.count(ctx, req.Provider, "failed")
		return nil, err
	}

	// 4. Commit the pending order; only then is the redirect returned
	order := NewOrder(orderID, req)
	if err := uc.repository.CreateOrder(ctx, order); err != nil {
		log.Printf("❌ [CHECKOUT] Commit failed | OrderID=%s | %v", orderID, err)
		uc.count(ctx, req.Provider, "failed")
		return nil, fmt.Errorf("failed to persist order %s: %w", orderID, err)
	}

	log.Printf("✅ [CHECKOUT] Pending order committed: %s -> %s", orderID, session.RedirectURL)
	uc.count(ctx, req.Provider, "committed")
	return session, nil
}

func (uc *CheckoutUseCase) validate(ctx context.Context, req CheckoutRequest) error {
	if req.Customer.Name == "" || req.Customer.Email == "" {
		return &InvalidRequestError{Reason: "customer name and email are required"}
	}
	if len(req.Cart) == 0 {
		return &InvalidRequestError{Reason: "cart is empty, nothing to checkout"}
	}
	// The callback parameters are appended to this URL with a fresh "?";
	// an existing query string would make the redirect unparseable
	if strings.Contains(req.Return.SuccessURL, "?") {
		return &InvalidRequestError{Reason: "success_url must not contain a query string"}
	}
	for _, item := range req.Cart {
		if item.ProductID == "" {
			return &InvalidRequestError{Reason: "cart line is missing a product id"}
		}
		if item.Quantity < 1 {
			return &InvalidRequestError{Reason: fmt.Sprintf("quantity for product %s must be at least 1", item.ProductID)}
		}
	}

	providers, err := ProvidersFor(req.Currency)
	if err != nil {
		return err
	}
	if !slices.Contains(providers, req.Provider) {
		return &InvalidRequestError{Reason: fmt.Sprintf("provider %s does not support %s (available: %v)", req.Provider, req.Currency, providers)}
	}

	// Total conservation: the claimed total must equal the cart sum
	if math.Abs(req.Cart.Total()-req.TotalAmount) > amountTolerance {
		return &InvalidRequestError{Reason: fmt.Sprintf("total %.2f does not match cart sum %.2f", req.TotalAmount, req.Cart.Total())}
	}

	// Unit prices in the snapshot must match the catalog; the browser's
	// word is not enough
	prices, err := uc.products.Prices(ctx, req.Cart.ProductIDs())
	if err != nil {
		return fmt.Errorf("failed to verify cart prices: %w", err)
	}
	for _, item := range req.Cart {
		price, ok := prices[item.ProductID]
		if !ok {
			return &InvalidRequestError{Reason: fmt.Sprintf("unknown product %s", item.ProductID)}
		}
		if math.Abs(price-item.UnitPrice) > amountTolerance {
			return &InvalidRequestError{Reason: fmt.Sprintf("price for product %s has changed, refresh your cart", item.ProductID)}
		}
	}
	return nil
}

func (uc *CheckoutUseCase) count(ctx context.Context, provider ProviderID, result string) {
	if uc.checkoutCounter == nil {
		return
	}
	uc.checkoutCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", string(provider)),
			attribute.String("result", result),
		))
}

// ReconcileUseCase applies a payment-outcome callback to an order exactly
// once. The compare-and-set on status is the idempotency guard: replayed or
// racing callbacks lose the swap and trigger no second round of side effects.
type ReconcileUseCase struct {
	repository Repository
	carts      CartStore
	events     OrderEventPublisher
}

func NewReconcileUseCase(repository Repository, carts CartStore, events OrderEventPublisher) *ReconcileUseCase {
	return &ReconcileUseCase{
		repository: repository,
		carts:      carts,
		events:     events,
	}
}

func (uc *ReconcileUseCase) Reconcile(ctx context.Context, event CallbackEvent) error {
	log.Printf("➡️ [RECONCILE] OrderID: %s | Provider: %s | Outcome: %s", event.OrderID, event.Provider, event.Outcome)

	// 1. The callback must name an existing order; never create one from it
	order, err := uc.repository.GetOrder(ctx, event.OrderID)
	if errors.Is(err, ErrOrderNotFound) {
		log.Printf("ℹ️ [RECONCILE] Unknown order %s, ignoring callback", event.OrderID)
		return ErrUnknownOrder
	}
	if err != nil {
		return fmt.Errorf("failed to load order %s: %w", event.OrderID, err)
	}

	// 2. The order already knows which provider it went out through; a
	// redirect naming another one is malformed or spoofed
	if event.Provider != order.Provider {
		log.Printf("⚠️ [RECONCILE] Order %s went through %s but callback claims %s, ignoring", order.ID, order.Provider, event.Provider)
		return ErrProviderMismatch
	}

	// 3. Fast path for replays; the CAS below still guards the race
	if order.Status != OrderStatusPending {
		log.Printf("ℹ️ [RECONCILE] Order %s already %s, ignoring callback", order.ID, order.Status)
		return ErrAlreadyReconciled
	}

	next := OrderStatusPaid
	if event.Outcome != OutcomeSuccess {
		next = OrderStatusFailed
	}

	// 4. Atomic pending -> paid/failed; exactly one caller wins
	swapped, err := uc.repository.CompareAndSetStatus(ctx, order.ID, OrderStatusPending, next)
	if err != nil {
		return fmt.Errorf("failed to transition order %s: %w", order.ID, err)
	}
	if !swapped {
		log.Printf("ℹ️ [RECONCILE] Lost the swap for order %s, another callback won", order.ID)
		return ErrAlreadyReconciled
	}

	// 5. One-time side effects; failures here are logged, never surfaced,
	// because the customer has already paid from their point of view
	if next == OrderStatusPaid {
		if order.SessionID != "" {
			if err := uc.carts.Clear(ctx, order.SessionID); err != nil {
				log.Printf("❌ [RECONCILE] Failed to clear cart for session %s: %v", order.SessionID, err)
			}
		}
		if err := uc.events.PublishOrderPaid(ctx, order); err != nil {
			log.Printf("❌ [RECONCILE] Failed to publish paid event for order %s: %v", order.ID, err)
		}
	} else {
		if err := uc.events.PublishOrderFailed(ctx, order); err != nil {
			log.Printf("❌ [RECONCILE] Failed to publish failed event for order %s: %v", order.ID, err)
		}
	}

	log.Printf("✅ [RECONCILE] Order %s: pending -> %s", order.ID, next)
	return nil
}

// ErrIllegalTransition guards the fulfillment state machine against
// out-of-order admin updates.
var ErrIllegalTransition = errors.New("illegal order status transition")

// OrderAdminUseCase is the small back-office surface: list, inspect, and
// advance orders through fulfillment.
type OrderAdminUseCase struct {
	repository Repository
}

func NewOrderAdminUseCase(repository Repository) *OrderAdminUseCase {
	return &OrderAdminUseCase{repository: repository}
}

func (uc *OrderAdminUseCase) ListOrders(ctx context.Context) ([]*Order, error) {
	return uc.repository.ListOrders(ctx)
}

func (uc *OrderAdminUseCase) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	return uc.repository.GetOrder(ctx, orderID)
}

// UpdateStatus moves an order along paid -> shipped -> delivered. The same
// compare-and-set used by the reconciler keeps concurrent admin clicks from
// double-applying a transition.
func (uc *OrderAdminUseCase) UpdateStatus(ctx context.Context, orderID, next string) error {
	order, err := uc.repository.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if !canTransition(order.Status, next) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, order.Status, next)
	}
	swapped, err := uc.repository.CompareAndSetStatus(ctx, orderID, order.Status, next)
	if err != nil {
		return err
	}
	if !swapped {
		return fmt.Errorf("%w: order %s changed concurrently", ErrIllegalTransition, orderID)
	}
	log.Printf("✅ [ADMIN] Order %s: %s -> %s", orderID, order.Status, next)
	return nil
}
