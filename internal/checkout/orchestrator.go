// Package checkout owns the checkout session state machine. It sequences
// checkout creation, the gateway widget, payment confirmation, and the
// bounded polling window into a single user-visible outcome, and never treats
// any client-side signal as proof of entitlement: only an order read of
// COMPLETED completes a session.
package checkout

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"tollgate/internal/gateway"
	"tollgate/internal/ledger"
	"tollgate/internal/orderapi"
)

// ErrSessionActive signals a start attempt while another session is mid-flight.
var ErrSessionActive = errors.New("another checkout session is still in progress")

// ErrProcessing signals a voluntary close attempt while the session is busy.
var ErrProcessing = errors.New("checkout is processing, please wait")

// ErrNotRetryable signals a retry request from a step that does not allow it.
var ErrNotRetryable = errors.New("session is not in a retryable step")

// OrderService is the slice of the order service the orchestrator calls.
type OrderService interface {
	CreateCheckout(ctx context.Context, req orderapi.CreateCheckoutRequest) (orderapi.CreateCheckoutResponse, error)
	ConfirmPayment(ctx context.Context, req orderapi.ConfirmPaymentRequest) (orderapi.ConfirmPaymentResponse, error)
	GetOrder(ctx context.Context, orderID string) (orderapi.GetOrderResponse, error)
}

// TransitionSink observes session step changes (journal, realtime stream,
// metrics). Called outside the orchestrator lock with an immutable snapshot.
type TransitionSink interface {
	StepChanged(ctx context.Context, snap Snapshot, from Step, detail string)
}

// Config controls the polling window and close behavior.
type Config struct {
	// PollInterval is the fixed poll cadence. Default 2.5s.
	PollInterval time.Duration
	// PollDeadline is the overall polling budget after confirm. Default 45s.
	PollDeadline time.Duration
	// CloseGrace delays session discard on a forced close. Default 400ms.
	CloseGrace time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 2500 * time.Millisecond
	}
	if c.PollDeadline <= 0 {
		c.PollDeadline = 45 * time.Second
	}
	if c.CloseGrace < 0 {
		c.CloseGrace = 0
	} else if c.CloseGrace == 0 {
		c.CloseGrace = 400 * time.Millisecond
	}
	return c
}

// Orchestrator drives one checkout session at a time through the state
// machine. All step transitions happen under the mutex; network calls do not.
// The epoch counter invalidates in-flight work (widget hooks, poll loops)
// whenever a session is discarded or replaced.
type Orchestrator struct {
	orders     OrderService
	widget     gateway.Widget
	history    ledger.Appender
	sinks      []TransitionSink
	onComplete func(Snapshot)
	logf       func(format string, args ...any)
	cfg        Config

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
	after func(time.Duration) <-chan time.Time

	mu    sync.Mutex
	sess  *session
	epoch uint64
}

// NewOrchestrator constructs an Orchestrator. A nil history appender falls
// back to an in-memory ledger.
func NewOrchestrator(orders OrderService, widget gateway.Widget, history ledger.Appender, cfg Config) *Orchestrator {
	if orders == nil {
		panic("checkout: order service is required")
	}
	if widget == nil {
		panic("checkout: widget is required")
	}
	if history == nil {
		history = ledger.NewMemoryLedger()
	}
	return &Orchestrator{
		orders:  orders,
		widget:  widget,
		history: history,
		logf:    log.Printf,
		cfg:     cfg.withDefaults(),
		now:     time.Now,
		sleep:   sleepWithContext,
		after:   time.After,
	}
}

// OnComplete registers the completion callback. It fires at most once per
// session, only after an order read of COMPLETED.
func (o *Orchestrator) OnComplete(fn func(Snapshot)) {
	o.onComplete = fn
}

// AddSink registers a transition observer.
func (o *Orchestrator) AddSink(s TransitionSink) {
	if s != nil {
		o.sinks = append(o.sinks, s)
	}
}

// SetLogf overrides the logger.
func (o *Orchestrator) SetLogf(logf func(format string, args ...any)) {
	if logf != nil {
		o.logf = logf
	}
}

// Snapshot returns the current session view; Step is idle when no session
// exists.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sess == nil {
		return Snapshot{Step: StepIdle}
	}
	return o.sess.snapshot()
}

// Start begins a fresh checkout session: create the backend checkout, then
// open the gateway widget. Rejected while another session is busy; a session
// left in a resolved step is discarded and replaced.
func (o *Orchestrator) Start(ctx context.Context, p Purchase) (Snapshot, error) {
	o.mu.Lock()
	if o.sess != nil && o.sess.step.Busy() {
		snap := o.sess.snapshot()
		o.mu.Unlock()
		return snap, ErrSessionActive
	}
	o.epoch++
	epoch := o.epoch
	sess := newSession(p)
	sess.step = StepCreating
	o.sess = sess
	snap := sess.snapshot()
	o.mu.Unlock()
	o.emit(ctx, snap, StepIdle, "checkout requested")

	created, err := o.orders.CreateCheckout(ctx, orderapi.CreateCheckoutRequest{
		Items: []orderapi.CheckoutItem{{DatasetID: p.DatasetID}},
	})
	if err != nil {
		o.logf("checkout create failed for dataset %s: %v", p.DatasetID, err)
		return o.fail(ctx, epoch, StepCreating, FailureSetup, ""), nil
	}

	o.mu.Lock()
	if o.epoch != epoch || o.sess == nil || o.sess.step != StepCreating {
		snap := o.snapshotLocked()
		o.mu.Unlock()
		return snap, nil
	}
	sess.paymentAttemptID = created.PaymentAttemptID
	sess.providerOrderID = created.Gateway.OrderID
	sess.providerKeyID = created.Gateway.KeyID
	sess.orderID = created.OrderID
	sess.orderNumber = created.OrderNumber
	sess.amountPaise = created.AmountPaise
	if created.Amount > 0 {
		sess.purchase.Amount = created.Amount
	}
	if created.Currency != "" {
		sess.purchase.Currency = created.Currency
	}
	sess.step = StepPaying
	open := gateway.OpenRequest{
		SessionID:       sess.id,
		KeyID:           sess.providerKeyID,
		ProviderOrderID: sess.providerOrderID,
		AmountPaise:     sess.amountPaise,
		Currency:        sess.purchase.Currency,
		DatasetTitle:    sess.purchase.DatasetTitle,
	}
	snap = sess.snapshot()
	o.mu.Unlock()
	o.emit(ctx, snap, StepCreating, "gateway widget opening")

	hooks := gateway.Hooks{
		OnSuccess: func(ctx context.Context, payload gateway.SuccessPayload) {
			o.widgetSuccess(ctx, epoch, payload)
		},
		OnFailure: func(ctx context.Context, reason string) {
			o.widgetFailure(ctx, epoch, reason)
		},
		OnDismiss: func(ctx context.Context) {
			o.widgetDismiss(ctx, epoch)
		},
	}
	if err := o.widget.Open(ctx, open, hooks); err != nil {
		o.logf("gateway widget open failed for session %s: %v", sess.id, err)
		return o.fail(ctx, epoch, StepPaying, FailureSetup, ""), nil
	}

	return snap, nil
}

// RequestClose closes the dialog. Voluntary close is rejected while the
// session is busy; a forced close discards the session after the grace delay.
func (o *Orchestrator) RequestClose(ctx context.Context, force bool) error {
	o.mu.Lock()
	if o.sess == nil {
		o.mu.Unlock()
		return nil
	}
	if o.sess.step.Busy() && !force {
		o.mu.Unlock()
		return ErrProcessing
	}
	from := o.sess.step
	o.mu.Unlock()

	if force && o.cfg.CloseGrace > 0 {
		_ = o.sleep(ctx, o.cfg.CloseGrace)
	}
	o.discard(ctx, from, "dialog closed")
	return nil
}

// Retry discards a resolved session so a fresh one can start. The failed
// attempt is never resumed; Start mints new identifiers.
func (o *Orchestrator) Retry(ctx context.Context) error {
	o.mu.Lock()
	if o.sess == nil {
		o.mu.Unlock()
		return nil
	}
	if !o.sess.step.Terminal() {
		from := o.sess.step
		o.mu.Unlock()
		if from.Busy() {
			return ErrProcessing
		}
		return ErrNotRetryable
	}
	from := o.sess.step
	o.mu.Unlock()
	o.discard(ctx, from, "retry requested")
	return nil
}

func (o *Orchestrator) widgetSuccess(ctx context.Context, epoch uint64, payload gateway.SuccessPayload) {
	o.mu.Lock()
	if o.epoch != epoch || o.sess == nil || o.sess.step != StepPaying {
		o.mu.Unlock()
		o.logf("ignoring stale widget success (epoch %d)", epoch)
		return
	}
	sess := o.sess
	sess.step = StepConfirming
	confirm := orderapi.ConfirmPaymentRequest{
		PaymentAttemptID:  sess.paymentAttemptID,
		ProviderOrderID:   payload.ProviderOrderID,
		ProviderPaymentID: payload.ProviderPaymentID,
		ProviderSignature: payload.ProviderSignature,
	}
	snap := sess.snapshot()
	o.mu.Unlock()
	o.emit(ctx, snap, StepPaying, "gateway reported success")

	// The widget has reported success, so funds may already be captured. The
	// confirm call must not die with the browser connection that delivered
	// the callback.
	confirmCtx := context.WithoutCancel(ctx)
	resp, err := o.orders.ConfirmPayment(confirmCtx, confirm)
	if err != nil || !resp.OK {
		if err != nil {
			o.logf("payment confirm failed for attempt %s: %v", confirm.PaymentAttemptID, err)
		} else {
			o.logf("payment confirm rejected for attempt %s", confirm.PaymentAttemptID)
		}
		o.fail(ctx, epoch, StepConfirming, FailureConfirmUncertain, "")
		return
	}

	o.mu.Lock()
	if o.epoch != epoch || o.sess == nil || o.sess.step != StepConfirming {
		o.mu.Unlock()
		return
	}
	sess.step = StepPolling
	sess.pollDeadline = o.now().Add(o.cfg.PollDeadline)
	orderID := sess.orderID
	deadline := sess.pollDeadline
	snap = sess.snapshot()
	o.mu.Unlock()
	o.emit(ctx, snap, StepConfirming, "payment confirmed, awaiting order")

	go o.pollLoop(epoch, orderID, deadline)
	go o.deadlineWatch(epoch, deadline)
}

func (o *Orchestrator) widgetFailure(ctx context.Context, epoch uint64, reason string) {
	o.mu.Lock()
	if o.epoch != epoch || o.sess == nil || o.sess.step != StepPaying {
		o.mu.Unlock()
		o.logf("ignoring stale widget failure (epoch %d)", epoch)
		return
	}
	o.mu.Unlock()
	o.fail(ctx, epoch, StepPaying, FailureGateway, reason)
}

func (o *Orchestrator) widgetDismiss(ctx context.Context, epoch uint64) {
	o.mu.Lock()
	if o.epoch != epoch || o.sess == nil || o.sess.step != StepPaying {
		o.mu.Unlock()
		return
	}
	o.mu.Unlock()
	// No error, no backend calls: the session simply goes away and a new one
	// may start.
	o.discard(ctx, StepPaying, "widget dismissed by user")
}

// fail moves the session to the failed step if it is still the expected one.
func (o *Orchestrator) fail(ctx context.Context, epoch uint64, from Step, class FailureClass, message string) Snapshot {
	o.mu.Lock()
	if o.epoch != epoch || o.sess == nil || o.sess.step != from {
		snap := o.snapshotLocked()
		o.mu.Unlock()
		return snap
	}
	if message == "" {
		message = class.message()
	}
	o.sess.step = StepFailed
	o.sess.failureClass = class
	o.sess.errorMessage = message
	snap := o.sess.snapshot()
	o.mu.Unlock()
	o.emit(ctx, snap, from, message)
	return snap
}

// discard drops the session and bumps the epoch so in-flight hooks and poll
// loops become no-ops. Any widget still parked for the session is withdrawn,
// so a later browser event resolves to "no open widget" instead of invoking a
// dead hook.
func (o *Orchestrator) discard(ctx context.Context, from Step, detail string) {
	o.mu.Lock()
	o.epoch++
	var sessionID string
	if o.sess != nil {
		sessionID = o.sess.id
	}
	o.sess = nil
	o.mu.Unlock()
	if sessionID != "" {
		o.widget.Cancel(sessionID)
	}
	o.emit(ctx, Snapshot{Step: StepIdle}, from, detail)
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	if o.sess == nil {
		return Snapshot{Step: StepIdle}
	}
	return o.sess.snapshot()
}

func (o *Orchestrator) emit(ctx context.Context, snap Snapshot, from Step, detail string) {
	for _, sink := range o.sinks {
		sink.StepChanged(ctx, snap, from, detail)
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
