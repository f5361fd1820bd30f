package checkout

import (
	"context"
	"time"

	"tollgate/internal/orderapi"
)

// pollLoop reads the order at a fixed cadence until a terminal status or the
// deadline. The deadline always wins: a poll response that arrives after the
// deadline has elapsed is discarded without touching the session.
func (o *Orchestrator) pollLoop(epoch uint64, orderID string, deadline time.Time) {
	ctx := context.Background()
	for {
		if !o.now().Before(deadline) {
			o.applyTimeout(ctx, epoch)
			return
		}

		read, err := o.orders.GetOrder(ctx, orderID)
		if o.applyPollResult(ctx, epoch, deadline, read, err) {
			return
		}

		if err := o.sleep(ctx, o.cfg.PollInterval); err != nil {
			return
		}
	}
}

// deadlineWatch fires the timeout at the wall deadline even while an order
// read is still in flight, so a slow read cannot stretch the polling window.
// The epoch and step guards in applyTimeout make it a no-op once the session
// resolved or was discarded.
func (o *Orchestrator) deadlineWatch(epoch uint64, deadline time.Time) {
	if d := deadline.Sub(o.now()); d > 0 {
		<-o.after(d)
	}
	o.applyTimeout(context.Background(), epoch)
}

// applyPollResult folds one poll answer into the session. Returns true when
// polling must stop. Transient read errors are not failures: the webhook may
// still land, so the loop keeps polling until the deadline.
func (o *Orchestrator) applyPollResult(ctx context.Context, epoch uint64, deadline time.Time, read orderapi.GetOrderResponse, readErr error) bool {
	o.mu.Lock()
	if o.epoch != epoch || o.sess == nil || o.sess.step != StepPolling {
		o.mu.Unlock()
		return true
	}
	if !o.now().Before(deadline) {
		o.timeoutLocked(ctx)
		return true
	}
	if readErr != nil {
		o.mu.Unlock()
		o.logf("order poll failed, will retry until deadline: %v", readErr)
		return false
	}

	switch read.Order.Status {
	case orderapi.OrderStatusCompleted:
		sess := o.sess
		if sess.completionFired {
			o.mu.Unlock()
			return true
		}
		sess.completionFired = true
		sess.step = StepCompleted
		orderID := sess.orderID
		snap := sess.snapshot()
		o.mu.Unlock()

		o.emit(ctx, snap, StepPolling, "order completed")
		if err := o.history.Append(ctx, orderID); err != nil {
			o.logf("order history append failed for %s: %v", orderID, err)
		}
		if o.onComplete != nil {
			o.onComplete(snap)
		}
		return true

	case orderapi.OrderStatusFailed:
		o.mu.Unlock()
		o.fail(ctx, epoch, StepPolling, FailureBackendTerminal, msgOrderFailed)
		return true

	case orderapi.OrderStatusRefunded:
		o.mu.Unlock()
		o.fail(ctx, epoch, StepPolling, FailureBackendTerminal, msgOrderRefunded)
		return true
	}

	o.mu.Unlock()
	return false
}

// applyTimeout moves a still-polling session to timeout. Not a failure: funds
// may be captured and the webhook may still arrive, so the buyer keeps the
// order reference and is pointed at the order-status surface.
func (o *Orchestrator) applyTimeout(ctx context.Context, epoch uint64) {
	o.mu.Lock()
	if o.epoch != epoch || o.sess == nil || o.sess.step != StepPolling {
		o.mu.Unlock()
		return
	}
	o.timeoutLocked(ctx)
}

// timeoutLocked finishes the timeout transition. Called with o.mu held;
// unlocks it.
func (o *Orchestrator) timeoutLocked(ctx context.Context) {
	o.sess.step = StepTimeout
	snap := o.sess.snapshot()
	o.mu.Unlock()
	o.emit(ctx, snap, StepPolling, MsgTimeout)
}
