package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/shopfront/client-go/internal/cart"
	"github.com/shopfront/client-go/internal/orders"
	pkgerrors "github.com/shopfront/client-go/pkg/errors"
	"github.com/shopfront/client-go/pkg/logger"
)

// State is the checkout progression. A checkout moves strictly forward
// through shipping collection and payment approval; only a verified payment
// reaches StateSucceeded.
type State string

const (
	StateCollectingShipping State = "collecting_shipping"
	StateAwaitingPayment    State = "awaiting_payment"
	StateSucceeded          State = "succeeded"
	StateFailed             State = "failed"
)

// PaymentMethodPayPal is the only payment method the backend accepts today.
const PaymentMethodPayPal = "paypal"

// ErrEmptyCart rejects an order attempt over a cart with no line items.
var ErrEmptyCart = errors.New("cart is empty")

type basket interface {
	Items() []cart.LineItem
	Total() decimal.Decimal
	Clear(ctx context.Context) error
}

type orderAPI interface {
	Create(ctx context.Context, input orders.CreateInput) (*orders.Pending, error)
	VerifyPayment(ctx context.Context, orderID, paymentID string) (string, error)
}

// Approver resolves a pending order into an external payment identifier,
// typically by walking the shopper through the provider's approval flow.
type Approver interface {
	Approve(ctx context.Context, pending orders.Pending) (paymentID string, err error)
}

// Orchestrator drives a single checkout attempt over the shopper's cart.
// It is not safe to reuse across carts; build a fresh one per attempt.
type Orchestrator struct {
	cart     basket
	orders   orderAPI
	log      *logger.Logger
	validate *validator.Validate
	currency string

	state    State
	shipping orders.ShippingAddress
	pending  *orders.Pending
}

func NewOrchestrator(basket basket, api orderAPI, currency string, log *logger.Logger) (*Orchestrator, error) {
	if basket == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if api == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if currency == "" {
		currency = "USD"
	}
	if log == nil {
		log = logger.New(logger.Options{ServiceName: "checkout"})
	}
	return &Orchestrator{
		cart:     basket,
		orders:   api,
		log:      log,
		validate: validator.New(),
		currency: currency,
		state:    StateCollectingShipping,
	}, nil
}

// State reports the current checkout phase.
func (o *Orchestrator) State() State {
	return o.state
}

// Shipping returns the collected address. Zero value until SubmitShipping
// has accepted one.
func (o *Orchestrator) Shipping() orders.ShippingAddress {
	return o.shipping
}

// Pending returns the created order awaiting payment, or nil before
// CreateOrder has succeeded.
func (o *Orchestrator) Pending() *orders.Pending {
	if o.pending == nil {
		return nil
	}
	copied := *o.pending
	return &copied
}

// SubmitShipping validates and stores the destination address, advancing the
// checkout to the payment phase. Every field is required; a rejected address
// leaves the checkout collecting shipping.
func (o *Orchestrator) SubmitShipping(address orders.ShippingAddress) error {
	if o.state == StateSucceeded || o.state == StateFailed {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "checkout already finished")
	}
	if err := o.validate.Struct(address); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "all shipping fields are required")
	}
	o.shipping = address
	o.state = StateAwaitingPayment
	return nil
}

// CreateOrder snapshots the cart and registers a pending order with the
// backend. The cart is left untouched; it only empties once the payment is
// verified. A backend rejection keeps the checkout awaiting payment so the
// shopper can retry.
func (o *Orchestrator) CreateOrder(ctx context.Context) (*orders.Pending, error) {
	if o.state != StateAwaitingPayment {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "shipping address not submitted")
	}

	items := o.cart.Items()
	if len(items) == 0 {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStateConflict, ErrEmptyCart, "cart is empty")
	}

	input := orders.CreateInput{
		Items:           make([]orders.ItemInput, 0, len(items)),
		Total:           o.cart.Total().StringFixed(2),
		ShippingAddress: o.shipping,
		PaymentMethod:   PaymentMethodPayPal,
		Currency:        o.currency,
	}
	for _, item := range items {
		input.Items = append(input.Items, orders.ItemInput{
			Product:  item.Product.ID,
			Quantity: item.Quantity,
			Price:    item.Product.Price.StringFixed(2),
		})
	}

	pending, err := o.orders.Create(ctx, input)
	if err != nil {
		o.log.Error(ctx, "order creation rejected", err)
		return nil, err
	}

	o.pending = pending
	o.log.Info(o.log.WithOrderID(ctx, pending.ID), "order created, awaiting payment approval")
	return o.Pending(), nil
}

// OnApprove verifies an approved payment against the backend. Only a
// confirmed payment clears the cart and completes the checkout; any other
// verification outcome leaves both the cart and the checkout untouched.
func (o *Orchestrator) OnApprove(ctx context.Context, paymentID string) error {
	if o.state != StateAwaitingPayment || o.pending == nil {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "no order awaiting payment")
	}
	if paymentID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}

	ctx = o.log.WithOrderID(ctx, o.pending.ID)
	status, err := o.orders.VerifyPayment(ctx, o.pending.ID, paymentID)
	if err != nil {
		o.log.Error(ctx, "payment verification failed", err)
		return err
	}
	if status != orders.PaymentStatusPaid {
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("payment not confirmed, backend reported %q", status))
	}

	if err := o.cart.Clear(ctx); err != nil {
		// The order is paid; a cart persistence failure must not undo that.
		o.log.Error(ctx, "clearing cart after payment", err)
	}
	o.state = StateSucceeded
	o.log.Info(ctx, "checkout complete")
	return nil
}

// Fail marks the checkout as abandoned. Only the caller decides to abandon;
// declines and cancellations on their own keep the checkout retryable. The
// cart is preserved.
func (o *Orchestrator) Fail(ctx context.Context, reason string) {
	if o.state == StateSucceeded {
		return
	}
	o.state = StateFailed
	o.log.Info(ctx, fmt.Sprintf("checkout failed: %s", reason))
}

// Run drives a full checkout pass once shipping is collected: create the
// order, hand it to the approver, then verify the resulting payment.
func (o *Orchestrator) Run(ctx context.Context, approver Approver) error {
	if approver == nil {
		return fmt.Errorf("approver required")
	}

	pending, err := o.CreateOrder(ctx)
	if err != nil {
		return err
	}

	paymentID, err := approver.Approve(ctx, *pending)
	if err != nil {
		// The order stays unpaid and the checkout stays open for another try.
		return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "payment was not approved")
	}

	return o.OnApprove(ctx, paymentID)
}
