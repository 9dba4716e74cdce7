// Package checkout drives the checkout wizard of one session: shipping
// details, payment details, then order creation, payment and confirmation.
package checkout

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/qorikusi/storefront/internal/domain/auth"
	"github.com/qorikusi/storefront/internal/domain/cart"
	"github.com/qorikusi/storefront/internal/domain/form"
	"github.com/qorikusi/storefront/internal/domain/order"
	"github.com/qorikusi/storefront/internal/domain/payment"
)

// ReturnPath is where a login started from checkout sends the user back to.
const ReturnPath = "/checkout"

var (
	ErrValidationFailed     = form.ErrInvalid
	ErrNotAuthenticated     = errors.New("not authenticated")
	ErrEmptyCart            = errors.New("cart is empty")
	ErrOrderCreationFailed  = errors.New("order creation failed")
	ErrPaymentDeclined      = errors.New("payment declined")
	ErrSubmissionInProgress = errors.New("submission in progress")
	// ErrWrongStep is returned when an action does not apply to the current
	// step.
	ErrWrongStep = errors.New("action not allowed at this step")
)

// NotAuthenticatedError asks the caller to log in and come back to
// ReturnPath.
type NotAuthenticatedError struct {
	ReturnPath string
}

func (e *NotAuthenticatedError) Error() string {
	return "login required, return to " + e.ReturnPath
}

// Is makes every NotAuthenticatedError match ErrNotAuthenticated.
func (e *NotAuthenticatedError) Is(target error) bool {
	return target == ErrNotAuthenticated
}

// SubmitError reports which submission phase failed and why. It matches both
// the phase sentinel and the cause.
type SubmitError struct {
	Phase error
	Err   error
}

func (e *SubmitError) Error() string {
	return e.Phase.Error() + ": " + e.Err.Error()
}

func (e *SubmitError) Unwrap() []error {
	return []error{e.Phase, e.Err}
}

// Step is a checkout wizard state.
type Step string

const (
	StepNone         Step = ""
	StepShipping     Step = "shipping_info"
	StepPayment      Step = "payment_info"
	StepConfirmation Step = "confirmation"
)

// Authenticator reports the session's login state.
type Authenticator interface {
	Authenticated(ctx context.Context) bool
	User(ctx context.Context) (*auth.User, error)
}

// Cart is the part of the cart store checkout reads and finally clears.
type Cart interface {
	Snapshot() cart.Cart
	Clear(ctx context.Context) error
	Pricing() cart.Pricing
}

// Deps are the collaborators of an Orchestrator. Archive and Telemetry are
// optional.
type Deps struct {
	Auth      Authenticator
	Cart      Cart
	Orders    order.Backend
	Payments  payment.Backend
	Archive   payment.Archive
	Telemetry *Telemetry
	Logger    *zap.Logger
}

// Summary is the state shown on every checkout page.
type Summary struct {
	Step        Step             `json:"step"`
	Items       []cart.Item      `json:"items"`
	Subtotal    decimal.Decimal  `json:"subtotal"`
	ShippingFee decimal.Decimal  `json:"shippingFee"`
	Total       decimal.Decimal  `json:"total"`
	Shipping    *ShippingForm    `json:"shipping,omitempty"`
	Order       *order.Order     `json:"order,omitempty"`
	Receipt     *payment.Receipt `json:"receipt,omitempty"`
}

// pendingOrder is an order created for a payment that did not complete.
type pendingOrder struct {
	order       *order.Order
	fingerprint string
}

// Orchestrator owns the transient order, payment and receipt state of one
// checkout. Phases run strictly in order: no payment without an order, no
// cart clearing without a completed payment.
type Orchestrator struct {
	auth     Authenticator
	cart     Cart
	orders   order.Backend
	payments payment.Backend
	archive  payment.Archive
	tel      *Telemetry
	lg       *zap.Logger
	fee      decimal.Decimal

	busy atomic.Bool

	mu        sync.Mutex
	step      Step
	draft     ShippingForm
	shipping  *ShippingForm
	pending   *pendingOrder
	order     *order.Order
	receipt   *payment.Receipt
	purchased cart.Cart
}

// New creates an Orchestrator charging shippingFee below the cart's
// free-shipping threshold.
func New(d Deps, shippingFee decimal.Decimal) *Orchestrator {
	tel := d.Telemetry
	if tel == nil {
		tel = NopTelemetry()
	}
	lg := d.Logger
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Orchestrator{
		auth:     d.Auth,
		cart:     d.Cart,
		orders:   d.Orders,
		payments: d.Payments,
		archive:  d.Archive,
		tel:      tel,
		lg:       lg,
		fee:      shippingFee,
	}
}

// Step returns the current step.
func (o *Orchestrator) Step() Step {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.step
}

// Begin enters the shipping step. The user must be logged in and the cart
// must not be empty.
func (o *Orchestrator) Begin(ctx context.Context) error {
	if o.busy.Load() {
		return ErrSubmissionInProgress
	}
	if err := o.precheck(ctx); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.step == StepConfirmation {
		o.draft = ShippingForm{}
	}
	o.step = StepShipping
	o.shipping = nil
	o.order = nil
	o.receipt = nil
	o.purchased = cart.Cart{}
	return nil
}

// SubmitShipping validates the shipping form and moves to the payment step.
// On failure the form is kept as a draft and the step does not change.
func (o *Orchestrator) SubmitShipping(ctx context.Context, form ShippingForm) error {
	if o.busy.Load() {
		return ErrSubmissionInProgress
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.step != StepShipping {
		return ErrWrongStep
	}
	o.draft = form
	if err := form.Validate(); err != nil {
		return err
	}
	o.shipping = &form
	o.step = StepPayment
	o.lg.Debug("Shipping details accepted", zap.String("receipt_type", string(form.ReceiptType)))
	return nil
}

// ChangeReceiptType switches the receipt type of the shipping draft and
// re-validates its tax id right away.
func (o *Orchestrator) ChangeReceiptType(t payment.ReceiptType) error {
	if !t.Valid() {
		return &ValidationError{Fields: map[string]string{"receiptType": "is required"}}
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.step != StepShipping {
		return ErrWrongStep
	}
	o.draft.ReceiptType = t
	if err := ValidateTaxID(t, o.draft.TaxID); err != nil {
		return &ValidationError{Fields: map[string]string{"taxId": err.Error()}}
	}
	return nil
}

// Back returns from the payment step to the shipping step without
// validation.
func (o *Orchestrator) Back() error {
	if o.busy.Load() {
		return ErrSubmissionInProgress
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.step != StepPayment {
		return ErrWrongStep
	}
	if o.shipping != nil {
		o.draft = *o.shipping
	}
	o.step = StepShipping
	return nil
}

// SubmitPayment validates the payment form, then creates the order,
// processes the payment and clears the cart. Any failure leaves the
// orchestrator in the payment step.
//
// A declined payment keeps its order pending. A retry with an unchanged
// cart pays that same order; a changed cart gets a new order.
func (o *Orchestrator) SubmitPayment(ctx context.Context, form PaymentForm) error {
	if !o.busy.CompareAndSwap(false, true) {
		return ErrSubmissionInProgress
	}
	defer o.busy.Store(false)

	o.mu.Lock()
	step, shipping, pending := o.step, o.shipping, o.pending
	o.mu.Unlock()
	if step != StepPayment || shipping == nil {
		return ErrWrongStep
	}
	if err := form.Validate(); err != nil {
		return err
	}
	if err := o.precheck(ctx); err != nil {
		return err
	}
	c := o.cart.Snapshot()

	ctx, span := o.tel.tracer.Start(ctx, "checkout.SubmitPayment",
		trace.WithAttributes(
			attribute.String("cart.id", c.ID),
			attribute.String("payment.method", string(form.Method)),
		),
	)
	defer span.End()

	ord, err := o.placeOrder(ctx, c, pending)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create order")
		return err
	}

	receipt, err := o.pay(ctx, ord, form.Method, shipping)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "process payment")
		return err
	}

	// The order is paid from here on; nothing below may fail the checkout.
	if err := o.cart.Clear(ctx); err != nil {
		o.lg.Warn("Cannot clear cart after payment",
			zap.String("order_id", ord.ID),
			zap.Error(err),
		)
	}
	o.archiveReceipt(ctx, *receipt)

	o.mu.Lock()
	o.step = StepConfirmation
	o.order = ord
	o.receipt = receipt
	o.purchased = c
	o.pending = nil
	o.mu.Unlock()

	o.tel.completed.Add(ctx, 1)
	o.lg.Info("Checkout completed",
		zap.String("order_id", ord.ID),
		zap.String("order_code", ord.Code),
		zap.String("receipt_id", receipt.ID),
	)
	return nil
}

func (o *Orchestrator) placeOrder(ctx context.Context, c cart.Cart, pending *pendingOrder) (*order.Order, error) {
	fp := c.Fingerprint()
	if pending != nil {
		if pending.fingerprint == fp {
			o.lg.Info("Retrying payment for pending order", zap.String("order_id", pending.order.ID))
			return pending.order, nil
		}
		o.lg.Warn("Cart changed since payment was declined, abandoning pending order",
			zap.String("order_id", pending.order.ID),
			zap.String("order_code", pending.order.Code),
		)
	}

	ctx, span := o.tel.tracer.Start(ctx, "checkout.CreateOrder")
	defer span.End()

	ord, err := o.orders.Create(ctx, c.ID, order.ShippingStandard)
	if err != nil {
		return nil, &SubmitError{Phase: ErrOrderCreationFailed, Err: err}
	}
	span.SetAttributes(attribute.String("order.id", ord.ID))
	o.tel.ordersCreated.Add(ctx, 1)

	o.mu.Lock()
	o.pending = &pendingOrder{order: ord, fingerprint: fp}
	o.mu.Unlock()
	return ord, nil
}

func (o *Orchestrator) pay(ctx context.Context, ord *order.Order, method payment.Method, shipping *ShippingForm) (*payment.Receipt, error) {
	ctx, span := o.tel.tracer.Start(ctx, "checkout.ProcessPayment",
		trace.WithAttributes(attribute.String("order.id", ord.ID)),
	)
	defer span.End()

	receipt, err := o.payments.Process(ctx, payment.Request{
		OrderID:      ord.ID,
		Amount:       ord.Total,
		Method:       method,
		ReceiptType:  shipping.ReceiptType,
		CustomerID:   shipping.TaxID,
		CustomerName: shipping.CustomerName(),
	})
	switch {
	case errors.Is(err, payment.ErrDeclined):
		o.tel.declined.Add(ctx, 1, metric.WithAttributes(attribute.String("payment.method", string(method))))
		return nil, &SubmitError{Phase: ErrPaymentDeclined, Err: err}
	case err != nil:
		return nil, errors.Wrap(err, "process payment")
	}

	if status := receipt.Payment.Status; status != payment.StatusCompleted {
		o.tel.declined.Add(ctx, 1, metric.WithAttributes(attribute.String("payment.method", string(method))))
		o.lg.Info("Payment not completed",
			zap.String("order_id", ord.ID),
			zap.String("status", string(status)),
		)
		return nil, &SubmitError{Phase: ErrPaymentDeclined, Err: errors.Errorf("payment status %q", status)}
	}
	return receipt, nil
}

func (o *Orchestrator) archiveReceipt(ctx context.Context, r payment.Receipt) {
	if o.archive == nil {
		return
	}
	u, err := o.auth.User(ctx)
	if err != nil {
		o.lg.Warn("Cannot archive receipt without user", zap.String("receipt_id", r.ID), zap.Error(err))
		return
	}
	if err := o.archive.Append(ctx, u.Login, r); err != nil {
		o.lg.Warn("Cannot archive receipt", zap.String("receipt_id", r.ID), zap.Error(err))
	}
}

// precheck enforces the entry conditions of the shipping step.
func (o *Orchestrator) precheck(ctx context.Context) error {
	if !o.auth.Authenticated(ctx) {
		return &NotAuthenticatedError{ReturnPath: ReturnPath}
	}
	if o.cart.Snapshot().Empty() {
		return ErrEmptyCart
	}
	return nil
}

// Summary returns the current checkout state. After confirmation the items
// and totals are those of the purchased cart.
func (o *Orchestrator) Summary() Summary {
	o.mu.Lock()
	defer o.mu.Unlock()

	c := o.purchased
	if o.step != StepConfirmation {
		c = o.cart.Snapshot()
	}
	pricing := o.cart.Pricing()
	subtotal := c.Subtotal()

	s := Summary{
		Step:        o.step,
		Items:       c.Items,
		Subtotal:    subtotal,
		ShippingFee: pricing.ShippingFee(subtotal, o.fee),
		Total:       pricing.Total(subtotal, o.fee),
		Order:       o.order,
		Receipt:     o.receipt,
	}
	if o.shipping != nil {
		shipping := *o.shipping
		s.Shipping = &shipping
	}
	return s
}

// Abandon discards the transient order, payment and receipt state.
func (o *Orchestrator) Abandon() error {
	if o.busy.Load() {
		return ErrSubmissionInProgress
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pending != nil {
		o.lg.Warn("Checkout abandoned with pending order",
			zap.String("order_id", o.pending.order.ID),
			zap.String("order_code", o.pending.order.Code),
		)
	}
	o.step = StepNone
	o.draft = ShippingForm{}
	o.shipping = nil
	o.pending = nil
	o.order = nil
	o.receipt = nil
	o.purchased = cart.Cart{}
	return nil
}
