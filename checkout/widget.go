package checkout

import (
	"context"
	"sync"
)

// PaymentResult is what the widget hands back after a successful payment.
// The three fields only mean something together.
type PaymentResult struct {
	GatewayOrderID string `json:"razorpay_order_id"`
	PaymentID      string `json:"razorpay_payment_id"`
	Signature      string `json:"razorpay_signature"`
}

// WidgetOptions configure one checkout session. The widget calls exactly
// one of Handler or OnDismiss.
type WidgetOptions struct {
	Key         string
	Amount      int64
	Currency    string
	OrderID     string
	Name        string
	Description string
	Email       string
	Handler     func(PaymentResult)
	OnDismiss   func()
}

// Widget is the gateway's embeddable checkout, available once its script
// has loaded.
type Widget interface {
	Open(ctx context.Context, opts WidgetOptions) error
}

// outcome is the single resolution of one opened widget session. Whichever
// callback fires first wins; later calls are ignored.
type outcome struct {
	once      sync.Once
	done      chan struct{}
	payment   PaymentResult
	dismissed bool
}

func newOutcome() *outcome {
	return &outcome{done: make(chan struct{})}
}

func (o *outcome) pay(result PaymentResult) {
	o.once.Do(func() {
		o.payment = result
		close(o.done)
	})
}

func (o *outcome) dismiss() {
	o.once.Do(func() {
		o.dismissed = true
		close(o.done)
	})
}

// wait blocks until the session resolves or ctx ends.
func (o *outcome) wait(ctx context.Context) (PaymentResult, bool, error) {
	select {
	case <-o.done:
		return o.payment, o.dismissed, nil
	case <-ctx.Done():
		return PaymentResult{}, false, ctx.Err()
	}
}

// openWidget opens a session and waits for its outcome.
func openWidget(ctx context.Context, w Widget, opts WidgetOptions) (PaymentResult, bool, error) {
	out := newOutcome()
	opts.Handler = out.pay
	opts.OnDismiss = out.dismiss

	if err := w.Open(ctx, opts); err != nil {
		return PaymentResult{}, false, err
	}
	return out.wait(ctx)
}
