package checkout_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/fameuxarte/fameuxarte-api/checkout"
	"github.com/fameuxarte/fameuxarte-api/models"
	"github.com/fameuxarte/fameuxarte-api/orderrequest"
	"github.com/fameuxarte/fameuxarte-api/razorpay"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func cartLine(t *testing.T, lineID string, item map[string]any) orderrequest.CartLine {
	t.Helper()
	item["id"] = lineID
	data, err := json.Marshal(item)
	require.NoError(t, err)
	var line orderrequest.CartLine
	require.NoError(t, json.Unmarshal(data, &line))
	return line
}

type fakeCart struct {
	mu         sync.Mutex
	lines      []orderrequest.CartLine
	err        error
	failRemove map[string]bool
	removed    []string
}

func (c *fakeCart) Lines(context.Context) ([]orderrequest.CartLine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lines, c.err
}

func (c *fakeCart) Remove(_ context.Context, lineID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failRemove[lineID] {
		return errors.New("network down")
	}
	c.removed = append(c.removed, lineID)
	return nil
}

type fakeBackend struct {
	mu sync.Mutex

	placed        []orderrequest.Payload
	gatewayCalls  []orderrequest.Payload
	verified      []checkout.PaymentResult
	cancelled     []string
	statusQueries int

	placeErr     error
	gatewayErr   error
	gatewayOrder func(orderrequest.Payload) checkout.GatewayOrder
	verifyErr    error
	verifyHangs  bool
	status       models.OrderStatus
}

func (b *fakeBackend) PlaceOrder(_ context.Context, p orderrequest.Payload) (checkout.PlacedOrder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.placed = append(b.placed, p)
	if b.placeErr != nil {
		return checkout.PlacedOrder{}, b.placeErr
	}
	return checkout.PlacedOrder{ID: "ord-1", Status: models.OrderStatusPending, Currency: "INR"}, nil
}

func (b *fakeBackend) CreateGatewayOrder(_ context.Context, p orderrequest.Payload) (checkout.GatewayOrder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gatewayCalls = append(b.gatewayCalls, p)
	if b.gatewayErr != nil {
		return checkout.GatewayOrder{}, b.gatewayErr
	}
	if b.gatewayOrder != nil {
		return b.gatewayOrder(p), nil
	}
	return checkout.GatewayOrder{
		ID:       "order_gw1",
		Amount:   razorpay.ToMinorUnits(decimal.NewFromFloat(p.TotalAmount)),
		Currency: "INR",
		Receipt:  "order_" + p.OrderID,
		KeyID:    "rzp_test_key",
	}, nil
}

func (b *fakeBackend) VerifyPayment(ctx context.Context, r checkout.PaymentResult) (checkout.Verification, error) {
	b.mu.Lock()
	b.verified = append(b.verified, r)
	hangs, err := b.verifyHangs, b.verifyErr
	b.mu.Unlock()

	if hangs {
		<-ctx.Done()
		return checkout.Verification{}, ctx.Err()
	}
	if err != nil {
		return checkout.Verification{Error: "Invalid payment signature"}, err
	}
	return checkout.Verification{Success: true, PaymentID: r.PaymentID, OrderID: r.GatewayOrderID}, nil
}

func (b *fakeBackend) OrderStatus(context.Context, string) (models.OrderStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statusQueries++
	return b.status, nil
}

func (b *fakeBackend) CancelOrder(_ context.Context, orderID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancelled = append(b.cancelled, orderID)
	return nil
}

// fakeWidget answers every opened session through act, on its own
// goroutine like the real widget does.
type fakeWidget struct {
	mu     sync.Mutex
	opened []checkout.WidgetOptions
	act    func(checkout.WidgetOptions)
}

func (w *fakeWidget) Open(_ context.Context, opts checkout.WidgetOptions) error {
	w.mu.Lock()
	w.opened = append(w.opened, opts)
	w.mu.Unlock()
	go w.act(opts)
	return nil
}

func paysWith(signature string) func(checkout.WidgetOptions) {
	return func(opts checkout.WidgetOptions) {
		opts.Handler(checkout.PaymentResult{GatewayOrderID: opts.OrderID, PaymentID: "pay_1", Signature: signature})
	}
}

func dismisses(opts checkout.WidgetOptions) {
	opts.OnDismiss()
}

type fakeScript struct {
	widget checkout.Widget
	err    error
}

func (s fakeScript) Ensure(context.Context) (checkout.Widget, error) {
	return s.widget, s.err
}

type fakeSession struct{ user string }

func (s fakeSession) UserID() string      { return s.user }
func (s fakeSession) Email() string       { return s.user + "@example.com" }
func (s fakeSession) AccessToken() string { return "token-" + s.user }

type visit struct {
	View    checkout.View
	OrderID string
}

type recorder struct {
	mu          sync.Mutex
	visits      []visit
	notices     []checkout.Notice
	transitions [][2]checkout.State
}

func (r *recorder) Navigate(view checkout.View, orderID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.visits = append(r.visits, visit{view, orderID})
}

func (r *recorder) Notify(n checkout.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *recorder) lastNotice() checkout.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return checkout.Notice{}
	}
	return r.notices[len(r.notices)-1]
}

type fixture struct {
	cart    *fakeCart
	backend *fakeBackend
	widget  *fakeWidget
	rec     *recorder
	cfg     checkout.Config
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		cart: &fakeCart{lines: []orderrequest.CartLine{
			cartLine(t, "line-1", map[string]any{"artworkId": "a1", "quantity": 2, "price": 150.00}),
		}},
		backend: &fakeBackend{},
		widget:  &fakeWidget{act: paysWith("good")},
		rec:     &recorder{},
	}
	f.cfg = checkout.Config{
		Cart:        f.cart,
		Backend:     f.backend,
		Script:      fakeScript{widget: f.widget},
		Session:     fakeSession{user: "user-1"},
		Navigator:   f.rec,
		Notifier:    f.rec,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		RequireAuth: true,
		Mode:        razorpay.ModeTest,
		OnTransition: func(from, to checkout.State) {
			f.rec.mu.Lock()
			f.rec.transitions = append(f.rec.transitions, [2]checkout.State{from, to})
			f.rec.mu.Unlock()
		},
	}
	return f
}

func (f *fixture) assertLegalTransitions(t *testing.T) {
	t.Helper()
	f.rec.mu.Lock()
	defer f.rec.mu.Unlock()
	for _, tr := range f.rec.transitions {
		assert.True(t, checkout.CanTransition(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}
}

func TestPaySucceeds(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	f := newFixture(t)
	f.cart.lines = append(f.cart.lines,
		cartLine(t, "line-2", map[string]any{"artwork": map[string]any{"id": "a2", "title": "Dawn", "price": "99.50"}, "quantity": "1"}))

	res := checkout.New(f.cfg).Pay(context.Background())

	require.NoError(t, res.Err)
	assert.Equal(t, checkout.Succeeded, res.State)
	assert.Equal(t, "ord-1", res.OrderID)
	assert.Equal(t, "pay_1", res.PaymentID)

	require.Len(t, f.backend.placed, 1)
	assert.Equal(t, 399.5, f.backend.placed[0].TotalAmount)
	assert.Empty(t, f.backend.placed[0].OrderID)
	require.Len(t, f.backend.gatewayCalls, 1)
	assert.Equal(t, "ord-1", f.backend.gatewayCalls[0].OrderID)

	require.Len(t, f.widget.opened, 1)
	opened := f.widget.opened[0]
	assert.Equal(t, int64(39950), opened.Amount)
	assert.Equal(t, "order_gw1", opened.OrderID)
	assert.Equal(t, "rzp_test_key", opened.Key)
	assert.Equal(t, "user-1@example.com", opened.Email)

	assert.Equal(t, []checkout.PaymentResult{{GatewayOrderID: "order_gw1", PaymentID: "pay_1", Signature: "good"}}, f.backend.verified)
	assert.ElementsMatch(t, []string{"line-1", "line-2"}, f.cart.removed)
	assert.Equal(t, []visit{{checkout.ViewOrderSuccess, "ord-1"}}, f.rec.visits)
	assert.Equal(t, checkout.NoticeSuccess, f.rec.lastNotice().Kind)
	f.assertLegalTransitions(t)
}

func TestPayAmountIsConvertedOnce(t *testing.T) {
	f := newFixture(t)

	res := checkout.New(f.cfg).Pay(context.Background())
	require.Equal(t, checkout.Succeeded, res.State)

	assert.Equal(t, 300.0, f.backend.placed[0].TotalAmount)
	assert.Equal(t, int64(30000), f.widget.opened[0].Amount)
}

func TestPayInvalidCartMakesNoCalls(t *testing.T) {
	f := newFixture(t)
	f.cart.lines = []orderrequest.CartLine{
		cartLine(t, "line-1", map[string]any{"artworkId": "a1", "quantity": 1, "price": "abc"}),
	}

	res := checkout.New(f.cfg).Pay(context.Background())

	assert.Equal(t, checkout.Idle, res.State)
	require.ErrorIs(t, res.Err, orderrequest.ErrInvalidType)
	var ve *orderrequest.ValidationError
	require.ErrorAs(t, res.Err, &ve)
	assert.Equal(t, 0, ve.Index)
	assert.Equal(t, []string{"price"}, ve.Fields)

	assert.Empty(t, f.backend.placed)
	assert.Empty(t, f.widget.opened)
	assert.Equal(t, orderrequest.UserMessage(res.Err), f.rec.lastNotice().Message)
	f.assertLegalTransitions(t)
}

func TestPayGuards(t *testing.T) {
	t.Run("empty cart", func(t *testing.T) {
		f := newFixture(t)
		f.cart.lines = nil

		res := checkout.New(f.cfg).Pay(context.Background())
		assert.Equal(t, checkout.Idle, res.State)
		assert.ErrorIs(t, res.Err, checkout.ErrEmptyCart)
		assert.Empty(t, f.backend.placed)
	})

	t.Run("signed out", func(t *testing.T) {
		f := newFixture(t)
		f.cfg.Session = fakeSession{}

		res := checkout.New(f.cfg).Pay(context.Background())
		assert.Equal(t, checkout.Idle, res.State)
		assert.ErrorIs(t, res.Err, checkout.ErrNotAuthenticated)
		assert.Equal(t, []visit{{checkout.ViewLogin, ""}}, f.rec.visits)
		assert.Empty(t, f.backend.placed)
	})

	t.Run("cart unavailable", func(t *testing.T) {
		f := newFixture(t)
		f.cart.err = errors.New("timeout")

		res := checkout.New(f.cfg).Pay(context.Background())
		assert.Equal(t, checkout.Idle, res.State)
		assert.Error(t, res.Err)
	})
}

func TestPayDismissed(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	f := newFixture(t)
	f.widget.act = dismisses

	res := checkout.New(f.cfg).Pay(context.Background())

	assert.Equal(t, checkout.Cancelled, res.State)
	assert.NoError(t, res.Err)
	assert.Empty(t, f.backend.verified)
	assert.Equal(t, []string{"ord-1"}, f.backend.cancelled)
	assert.Empty(t, f.cart.removed, "cart is untouched")
	assert.Empty(t, f.rec.visits)
	assert.Equal(t, "Payment Cancelled", f.rec.lastNotice().Title)
	f.assertLegalTransitions(t)
}

func TestPayTamperedSignature(t *testing.T) {
	f := newFixture(t)
	f.widget.act = paysWith("tampered")
	f.backend.verifyErr = &checkout.APIError{StatusCode: 400, Message: "Invalid payment signature"}

	res := checkout.New(f.cfg).Pay(context.Background())

	assert.Equal(t, checkout.Failed, res.State)
	assert.ErrorIs(t, res.Err, checkout.ErrVerificationFailed)
	assert.Empty(t, f.cart.removed, "cart is untouched")
	assert.Equal(t, []visit{{checkout.ViewPaymentFailed, "ord-1"}}, f.rec.visits)
	assert.Equal(t, "Payment Verification Failed", f.rec.lastNotice().Title)
	assert.Equal(t, []string{"ord-1"}, f.backend.cancelled, "rejected payment fails the order")
	f.assertLegalTransitions(t)
}

func TestPayVerificationTransportErrorKeepsOrder(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "connection refused", err: errors.New("dial tcp: connection refused")},
		{name: "server error", err: &checkout.APIError{StatusCode: 503, Message: "Service Unavailable"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.backend.verifyErr = tt.err

			res := checkout.New(f.cfg).Pay(context.Background())

			assert.Equal(t, checkout.Failed, res.State)
			assert.ErrorIs(t, res.Err, checkout.ErrVerificationFailed)
			assert.Empty(t, f.backend.cancelled, "the payment may still have gone through")
		})
	}
}

func TestPayTransitionCallbackCanReadState(t *testing.T) {
	f := newFixture(t)
	var o *checkout.Orchestrator
	var seen []checkout.State
	f.cfg.OnTransition = func(_, to checkout.State) {
		seen = append(seen, o.State())
	}
	o = checkout.New(f.cfg)

	done := make(chan checkout.Result, 1)
	go func() { done <- o.Pay(context.Background()) }()

	select {
	case res := <-done:
		require.Equal(t, checkout.Succeeded, res.State)
	case <-time.After(2 * time.Second):
		t.Fatal("Pay did not return; OnTransition blocked on the orchestrator")
	}
	assert.Equal(t, []checkout.State{
		checkout.Validating, checkout.CreatingOrder, checkout.AwaitingGatewayScript,
		checkout.WidgetOpen, checkout.VerifyingPayment, checkout.Succeeded,
	}, seen)
}

func TestPayCartCleanupIsBestEffort(t *testing.T) {
	f := newFixture(t)
	f.cart.lines = append(f.cart.lines,
		cartLine(t, "line-2", map[string]any{"artworkId": "a2", "quantity": 1, "price": 99.5}))
	f.cart.failRemove = map[string]bool{"line-1": true}

	res := checkout.New(f.cfg).Pay(context.Background())

	assert.Equal(t, checkout.Succeeded, res.State)
	assert.Equal(t, []string{"line-2"}, f.cart.removed)
	assert.Equal(t, []visit{{checkout.ViewOrderSuccess, "ord-1"}}, f.rec.visits)
}

func TestPayOrderCreationFails(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*fixture)
		want  error
	}{
		{
			name:  "place order rejected",
			setup: func(f *fixture) { f.backend.placeErr = &checkout.APIError{StatusCode: 409, Message: "price changed"} },
		},
		{
			name:  "gateway error",
			setup: func(f *fixture) { f.backend.gatewayErr = &checkout.APIError{StatusCode: 502, Message: "Payment service error"} },
		},
		{
			name: "amount drift",
			setup: func(f *fixture) {
				f.backend.gatewayOrder = func(orderrequest.Payload) checkout.GatewayOrder {
					return checkout.GatewayOrder{ID: "order_gw1", Amount: 29999, Currency: "INR", KeyID: "rzp_test_key"}
				}
			},
			want: checkout.ErrInvalidGatewayOrder,
		},
		{
			name: "unknown currency",
			setup: func(f *fixture) {
				f.backend.gatewayOrder = func(orderrequest.Payload) checkout.GatewayOrder {
					return checkout.GatewayOrder{ID: "order_gw1", Amount: 30000, Currency: "rupees", KeyID: "rzp_test_key"}
				}
			},
			want: checkout.ErrInvalidGatewayOrder,
		},
		{
			name: "no key",
			setup: func(f *fixture) {
				f.backend.gatewayOrder = func(orderrequest.Payload) checkout.GatewayOrder {
					return checkout.GatewayOrder{ID: "order_gw1", Amount: 30000, Currency: "INR"}
				}
			},
			want: checkout.ErrInvalidGatewayOrder,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setup(f)

			res := checkout.New(f.cfg).Pay(context.Background())

			assert.Equal(t, checkout.Failed, res.State)
			require.Error(t, res.Err)
			if tt.want != nil {
				assert.ErrorIs(t, res.Err, tt.want)
			}
			assert.Empty(t, f.widget.opened)
			assert.Equal(t, checkout.ViewPaymentFailed, f.rec.visits[0].View)
			f.assertLegalTransitions(t)
		})
	}
}

func TestPayScriptUnavailable(t *testing.T) {
	f := newFixture(t)
	f.cfg.Script = fakeScript{err: checkout.ErrScriptTimeout}

	res := checkout.New(f.cfg).Pay(context.Background())

	assert.Equal(t, checkout.Failed, res.State)
	assert.ErrorIs(t, res.Err, checkout.ErrScriptTimeout)
	assert.Empty(t, f.backend.verified)
}

func TestPayVerificationTimeout(t *testing.T) {
	t.Run("order turns out completed", func(t *testing.T) {
		defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
		f := newFixture(t)
		f.cfg.VerifyTimeout = 20 * time.Millisecond
		f.backend.verifyHangs = true
		f.backend.status = models.OrderStatusCompleted

		res := checkout.New(f.cfg).Pay(context.Background())

		assert.Equal(t, checkout.Succeeded, res.State)
		assert.Equal(t, 1, f.backend.statusQueries)
		assert.Equal(t, []string{"line-1"}, f.cart.removed)
	})

	t.Run("order still pending", func(t *testing.T) {
		f := newFixture(t)
		f.cfg.VerifyTimeout = 20 * time.Millisecond
		f.backend.verifyHangs = true
		f.backend.status = models.OrderStatusPending

		res := checkout.New(f.cfg).Pay(context.Background())

		assert.Equal(t, checkout.Failed, res.State)
		assert.ErrorIs(t, res.Err, checkout.ErrVerificationPending)
		assert.Empty(t, f.cart.removed)
		assert.Equal(t, []visit{{checkout.ViewOrderStatus, "ord-1"}}, f.rec.visits)
		assert.Equal(t, checkout.NoticeInfo, f.rec.lastNotice().Kind)
	})
}

func TestPayRejectsConcurrentAttempt(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	f := newFixture(t)

	opened := make(chan struct{})
	release := make(chan struct{})
	f.widget.act = func(opts checkout.WidgetOptions) {
		close(opened)
		<-release
		opts.OnDismiss()
	}
	o := checkout.New(f.cfg)

	first := make(chan checkout.Result, 1)
	go func() { first <- o.Pay(context.Background()) }()
	<-opened

	assert.Equal(t, checkout.WidgetOpen, o.State())
	res := o.Pay(context.Background())
	assert.ErrorIs(t, res.Err, checkout.ErrCheckoutInProgress)
	assert.Equal(t, checkout.WidgetOpen, res.State)

	close(release)
	assert.Equal(t, checkout.Cancelled, (<-first).State)

	f.widget.act = paysWith("good")
	assert.Equal(t, checkout.Succeeded, o.Pay(context.Background()).State, "a new attempt starts over")
	assert.Len(t, f.backend.placed, 2)
	f.assertLegalTransitions(t)
}

func TestPayCancelledContextWhileWidgetOpen(t *testing.T) {
	f := newFixture(t)
	f.widget.act = func(checkout.WidgetOptions) {}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res := checkout.New(f.cfg).Pay(ctx)
	assert.Equal(t, checkout.Failed, res.State)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
}
