// Package checkout drives the storefront side of a payment: it turns the
// cart into an order, opens the gateway's checkout widget and settles the
// result with the backend.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/fameuxarte/fameuxarte-api/models"
	"github.com/fameuxarte/fameuxarte-api/orderrequest"
	"github.com/fameuxarte/fameuxarte-api/razorpay"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

const DefaultVerifyTimeout = 30 * time.Second

var (
	ErrCheckoutInProgress  = errors.New("checkout already in progress")
	ErrEmptyCart           = errors.New("cart is empty")
	ErrNotAuthenticated    = errors.New("not signed in")
	ErrInvalidGatewayOrder = errors.New("invalid gateway order")
	ErrVerificationFailed  = errors.New("payment verification failed")
	ErrVerificationPending = errors.New("payment verification did not finish")
)

type CartStore interface {
	Lines(ctx context.Context) ([]orderrequest.CartLine, error)
	Remove(ctx context.Context, lineID string) error
}

// Backend is the storefront API the orchestrator talks to.
type Backend interface {
	PlaceOrder(ctx context.Context, payload orderrequest.Payload) (PlacedOrder, error)
	CreateGatewayOrder(ctx context.Context, payload orderrequest.Payload) (GatewayOrder, error)
	VerifyPayment(ctx context.Context, result PaymentResult) (Verification, error)
	OrderStatus(ctx context.Context, orderID string) (models.OrderStatus, error)
	CancelOrder(ctx context.Context, orderID string) error
}

type Session interface {
	UserID() string
	Email() string
	AccessToken() string
}

type View string

const (
	ViewLogin         View = "/auth"
	ViewOrderSuccess  View = "/order-success"
	ViewPaymentFailed View = "/payment-failed"
	ViewOrderStatus   View = "/orders"
)

type Navigator interface {
	Navigate(view View, orderID string)
}

type NoticeKind string

const (
	NoticeInfo    NoticeKind = "info"
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

type Notice struct {
	Kind    NoticeKind
	Title   string
	Message string
}

type Notifier interface {
	Notify(n Notice)
}

// PlacedOrder is the pending order the backend stored for this attempt.
type PlacedOrder struct {
	ID          string             `json:"id"`
	Status      models.OrderStatus `json:"status"`
	TotalAmount decimal.Decimal    `json:"totalAmount"`
	Currency    string             `json:"currency"`
}

// GatewayOrder is the create-order response. KeyID is the public key the
// widget is opened with.
type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	KeyID    string `json:"key_id"`
}

type Verification struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	PaymentID string `json:"payment_id,omitempty"`
	OrderID   string `json:"order_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Result is how an attempt ended.
type Result struct {
	State     State
	OrderID   string
	PaymentID string
	Err       error
}

type Config struct {
	Cart      CartStore
	Backend   Backend
	Script    ScriptLoader
	Session   Session
	Navigator Navigator
	Notifier  Notifier
	Logger    *slog.Logger

	// RequireAuth refuses to start an attempt without a signed-in user.
	RequireAuth bool
	// Mode is the key environment the storefront expects to be handed.
	Mode          razorpay.Mode
	MerchantName  string
	VerifyTimeout time.Duration
	// OnTransition, if set, is called after every state change. It runs
	// outside the orchestrator lock and may call State.
	OnTransition func(from, to State)
}

// Orchestrator runs checkout attempts one at a time.
type Orchestrator struct {
	cfg Config

	mu    sync.Mutex
	state State
}

func New(cfg Config) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.VerifyTimeout <= 0 {
		cfg.VerifyTimeout = DefaultVerifyTimeout
	}
	if cfg.MerchantName == "" {
		cfg.MerchantName = "Fameux Arte"
	}
	return &Orchestrator{cfg: cfg}
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Pay runs one checkout attempt to completion. Calling it while another
// attempt is active returns ErrCheckoutInProgress without side effects.
func (o *Orchestrator) Pay(ctx context.Context) Result {
	if err := o.begin(); err != nil {
		return Result{State: o.State(), Err: err}
	}
	a := &attempt{Orchestrator: o, log: o.cfg.Logger}
	return a.run(ctx)
}

type transition struct{ from, to State }

func (o *Orchestrator) begin() error {
	o.mu.Lock()
	if o.state.Active() {
		o.mu.Unlock()
		return ErrCheckoutInProgress
	}
	var changes []transition
	if o.state.IsTerminal() {
		changes = append(changes, o.setLocked(Idle))
	}
	changes = append(changes, o.setLocked(Validating))
	o.mu.Unlock()

	o.announce(changes...)
	return nil
}

func (o *Orchestrator) set(to State) {
	o.mu.Lock()
	change := o.setLocked(to)
	o.mu.Unlock()
	o.announce(change)
}

func (o *Orchestrator) setLocked(to State) transition {
	from := o.state
	if !CanTransition(from, to) {
		o.cfg.Logger.Error("Illegal checkout transition", "from", from, "to", to)
	}
	o.state = to
	return transition{from: from, to: to}
}

// announce runs OnTransition without holding mu so the callback may read
// the orchestrator.
func (o *Orchestrator) announce(changes ...transition) {
	if o.cfg.OnTransition == nil {
		return
	}
	for _, c := range changes {
		o.cfg.OnTransition(c.from, c.to)
	}
}

func (o *Orchestrator) notify(kind NoticeKind, title, message string) {
	if o.cfg.Notifier != nil {
		o.cfg.Notifier.Notify(Notice{Kind: kind, Title: title, Message: message})
	}
}

func (o *Orchestrator) navigate(view View, orderID string) {
	if o.cfg.Navigator != nil {
		o.cfg.Navigator.Navigate(view, orderID)
	}
}

type attempt struct {
	*Orchestrator
	log *slog.Logger

	lines   []orderrequest.CartLine
	order   PlacedOrder
	payment PaymentResult
	// rejected is set when the backend refused the payment outright, as
	// opposed to the call failing in transit.
	rejected bool
}

func (a *attempt) run(ctx context.Context) Result {
	req, res, ok := a.validate(ctx)
	if !ok {
		return res
	}

	a.set(CreatingOrder)
	gw, err := a.createOrder(ctx, req)
	if err != nil {
		a.log.Error("Order creation failed", "orderId", a.order.ID, "error", err)
		a.notify(NoticeError, "Payment Failed", "Unable to process your payment. Please try again.")
		return a.fail(ViewPaymentFailed, err)
	}

	a.set(AwaitingGatewayScript)
	widget, err := a.cfg.Script.Ensure(ctx)
	if err != nil {
		a.log.Error("Checkout script unavailable", "orderId", a.order.ID, "error", err)
		a.notify(NoticeError, "Payment Failed", "Payment service error. Please try again.")
		return a.fail(ViewPaymentFailed, err)
	}

	a.set(WidgetOpen)
	payment, dismissed, err := openWidget(ctx, widget, a.widgetOptions(gw))
	switch {
	case err != nil:
		a.log.Error("Checkout widget failed", "orderId", a.order.ID, "error", err)
		a.notify(NoticeError, "Payment Failed", "Payment service error. Please try again.")
		return a.fail(ViewPaymentFailed, err)
	case dismissed:
		return a.cancel(ctx)
	}
	a.payment = payment

	a.set(VerifyingPayment)
	if err := a.verify(ctx); err != nil {
		if errors.Is(err, ErrVerificationPending) {
			a.notify(NoticeInfo, "Payment Processing",
				"We couldn't confirm your payment yet. Please check your order status shortly.")
			return a.fail(ViewOrderStatus, err)
		}
		if a.rejected {
			a.abandon(ctx)
		}
		a.notify(NoticeError, "Payment Verification Failed", "Unable to verify your payment. Please try again.")
		return a.fail(ViewPaymentFailed, err)
	}

	return a.succeed(ctx)
}

// validate checks the attempt's preconditions and builds the order request.
// On failure the attempt returns to Idle.
func (a *attempt) validate(ctx context.Context) (orderrequest.Request, Result, bool) {
	abort := func(err error) (orderrequest.Request, Result, bool) {
		a.set(Idle)
		return orderrequest.Request{}, Result{State: Idle, Err: err}, false
	}

	if a.cfg.RequireAuth && (a.cfg.Session == nil || a.cfg.Session.UserID() == "") {
		a.notify(NoticeError, "Sign in required", "Please sign in to complete your purchase.")
		a.navigate(ViewLogin, "")
		return abort(ErrNotAuthenticated)
	}

	lines, err := a.cfg.Cart.Lines(ctx)
	if err != nil {
		a.log.Error("Failed to load cart", "error", err)
		a.notify(NoticeError, "Error", "Couldn't load your cart. Please try again.")
		return abort(fmt.Errorf("load cart: %w", err))
	}
	if len(lines) == 0 {
		a.notify(NoticeError, "Empty cart", "Your cart is empty.")
		return abort(ErrEmptyCart)
	}

	req, err := orderrequest.Build(lines)
	if err != nil {
		a.log.Warn("Cart failed validation", "error", err)
		a.notify(NoticeError, "Error", orderrequest.UserMessage(err))
		return abort(err)
	}

	a.lines = lines
	return req, Result{}, true
}

func (a *attempt) createOrder(ctx context.Context, req orderrequest.Request) (GatewayOrder, error) {
	placed, err := a.cfg.Backend.PlaceOrder(ctx, req.Payload(""))
	if err != nil {
		return GatewayOrder{}, fmt.Errorf("place order: %w", err)
	}
	a.order = placed

	gw, err := a.cfg.Backend.CreateGatewayOrder(ctx, req.Payload(placed.ID))
	if err != nil {
		return GatewayOrder{}, fmt.Errorf("create gateway order: %w", err)
	}
	if err := a.checkGatewayOrder(gw, req); err != nil {
		return GatewayOrder{}, err
	}
	return gw, nil
}

// checkGatewayOrder rejects a create-order response the widget could not be
// opened with.
func (a *attempt) checkGatewayOrder(gw GatewayOrder, req orderrequest.Request) error {
	switch {
	case strings.TrimSpace(gw.ID) == "":
		return fmt.Errorf("%w: missing order id", ErrInvalidGatewayOrder)
	case strings.TrimSpace(gw.KeyID) == "":
		return fmt.Errorf("%w: missing key", ErrInvalidGatewayOrder)
	case gw.Amount <= 0:
		return fmt.Errorf("%w: amount %d", ErrInvalidGatewayOrder, gw.Amount)
	}
	if _, err := currency.ParseISO(gw.Currency); err != nil {
		return fmt.Errorf("%w: currency %q", ErrInvalidGatewayOrder, gw.Currency)
	}
	if want := razorpay.ToMinorUnits(req.TotalAmount); gw.Amount != want {
		return fmt.Errorf("%w: amount %d, expected %d", ErrInvalidGatewayOrder, gw.Amount, want)
	}

	if a.cfg.Mode != "" && razorpay.ModeOf(gw.KeyID) != a.cfg.Mode {
		a.log.Warn("Payment key environment does not match",
			"expected", a.cfg.Mode, "key_mode", razorpay.ModeOf(gw.KeyID))
	}
	return nil
}

func (a *attempt) widgetOptions(gw GatewayOrder) WidgetOptions {
	opts := WidgetOptions{
		Key:         gw.KeyID,
		Amount:      gw.Amount,
		Currency:    gw.Currency,
		OrderID:     gw.ID,
		Name:        a.cfg.MerchantName,
		Description: "Art Purchase",
	}
	if a.cfg.Session != nil {
		opts.Email = a.cfg.Session.Email()
	}
	return opts
}

// cancel handles a dismissed widget. The pending order is failed on a best
// effort basis; the cart is left alone.
func (a *attempt) cancel(ctx context.Context) Result {
	if err := a.cfg.Backend.CancelOrder(ctx, a.order.ID); err != nil {
		a.log.Warn("Failed to cancel order after dismissal", "orderId", a.order.ID, "error", err)
	}

	a.set(Cancelled)
	a.notify(NoticeInfo, "Payment Cancelled", "You cancelled the payment process.")
	return Result{State: Cancelled, OrderID: a.order.ID}
}

// abandon fails the pending order after the backend rejected the payment.
// The attempt fails either way.
func (a *attempt) abandon(ctx context.Context) {
	if err := a.cfg.Backend.CancelOrder(context.WithoutCancel(ctx), a.order.ID); err != nil {
		a.log.Warn("Failed to mark order failed after rejected payment", "orderId", a.order.ID, "error", err)
	}
}

// verify settles the payment with the backend. If the call runs past the
// verify timeout the order status is checked once instead.
func (a *attempt) verify(ctx context.Context) error {
	vctx, cancel := context.WithTimeout(ctx, a.cfg.VerifyTimeout)
	defer cancel()

	v, err := a.cfg.Backend.VerifyPayment(vctx, a.payment)
	if err == nil && v.Success {
		return nil
	}
	if err == nil {
		a.log.Error("Payment verification rejected", "orderId", a.order.ID, "paymentId", a.payment.PaymentID, "error", v.Error)
		a.rejected = true
		return fmt.Errorf("%w: %s", ErrVerificationFailed, v.Error)
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest {
		a.log.Error("Payment verification rejected", "orderId", a.order.ID, "paymentId", a.payment.PaymentID, "error", err)
		a.rejected = true
		return fmt.Errorf("%w: %w", ErrVerificationFailed, err)
	}
	if !errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		a.log.Error("Payment verification failed", "orderId", a.order.ID, "paymentId", a.payment.PaymentID, "error", err)
		return fmt.Errorf("%w: %w", ErrVerificationFailed, err)
	}

	status, serr := a.cfg.Backend.OrderStatus(ctx, a.order.ID)
	if serr == nil && status == models.OrderStatusCompleted {
		a.log.Info("Payment confirmed by order status after slow verification", "orderId", a.order.ID)
		return nil
	}
	a.log.Warn("Payment verification timed out", "orderId", a.order.ID, "paymentId", a.payment.PaymentID,
		"status", status, "error", serr)
	return ErrVerificationPending
}

// succeed clears the purchased lines and finishes the attempt. Cart errors
// are logged only; the payment has already gone through.
func (a *attempt) succeed(ctx context.Context) Result {
	for _, line := range a.lines {
		if err := a.cfg.Cart.Remove(ctx, line.LineID); err != nil {
			a.log.Warn("Failed to remove cart line", "lineId", line.LineID, "error", err)
		}
	}

	a.set(Succeeded)
	a.notify(NoticeSuccess, "Payment Successful", "Your order has been placed successfully!")
	a.navigate(ViewOrderSuccess, a.order.ID)
	return Result{State: Succeeded, OrderID: a.order.ID, PaymentID: a.payment.PaymentID}
}

func (a *attempt) fail(view View, err error) Result {
	a.set(Failed)
	a.navigate(view, a.order.ID)
	return Result{State: Failed, OrderID: a.order.ID, PaymentID: a.payment.PaymentID, Err: err}
}
