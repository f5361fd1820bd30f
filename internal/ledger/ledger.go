// Package ledger persists the buyer's order history: an append-only list of
// completed order ids. Appends are idempotent per order id.
package ledger

import (
	"context"
	"errors"
	"sync"
)

// Appender records a completed order id.
type Appender interface {
	Append(ctx context.Context, orderID string) error
}

var ErrEmptyOrderID = errors.New("order id is required")

// NewMemoryLedger constructs an in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{seen: make(map[string]struct{})}
}

// MemoryLedger keeps order ids in memory, preserving append order.
type MemoryLedger struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	order []string
}

func (l *MemoryLedger) Append(ctx context.Context, orderID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if orderID == "" {
		return ErrEmptyOrderID
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.seen[orderID]; ok {
		return nil
	}
	l.seen[orderID] = struct{}{}
	l.order = append(l.order, orderID)
	return nil
}

// Orders returns the recorded order ids in append order (for inspection).
func (l *MemoryLedger) Orders() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.order))
	copy(out, l.order)
	return out
}

// MultiLedger appends to multiple ledgers in order.
type MultiLedger struct {
	ledgers []Appender
}

// NewMultiLedger constructs an Appender that writes to each ledger in sequence.
func NewMultiLedger(ledgers ...Appender) *MultiLedger {
	return &MultiLedger{ledgers: ledgers}
}

// Append forwards the order id to each ledger, collecting errors so every
// ledger gets a chance to write.
func (m *MultiLedger) Append(ctx context.Context, orderID string) error {
	var errs []error
	for _, l := range m.ledgers {
		if err := l.Append(ctx, orderID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
