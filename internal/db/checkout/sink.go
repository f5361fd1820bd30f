package checkoutdb

import (
	"context"
	"log"

	"tollgate/internal/checkout"
)

// Sink adapts the Journal to the orchestrator's transition observer. Journal
// write failures are logged, never surfaced: the audit trail must not break a
// live checkout.
type Sink struct {
	journal *Journal
	logf    func(format string, args ...any)
}

// NewSink constructs a Sink around the journal.
func NewSink(journal *Journal, logf func(format string, args ...any)) *Sink {
	if logf == nil {
		logf = log.Printf
	}
	return &Sink{journal: journal, logf: logf}
}

func (s *Sink) StepChanged(ctx context.Context, snap checkout.Snapshot, from checkout.Step, detail string) {
	err := s.journal.RecordTransition(ctx,
		snap.SessionID,
		snap.DatasetID,
		snap.PaymentAttemptID,
		snap.OrderID,
		from.String(),
		snap.Step.String(),
		detail,
	)
	if err != nil {
		s.logf("checkout journal write failed for session %s: %v", snap.SessionID, err)
	}
}
