package observability

import (
	"context"

	"tollgate/internal/checkout"
)

// OutcomeSink counts resolved sessions. Implements the orchestrator's
// transition observer.
type OutcomeSink struct {
	metrics *Metrics
}

// NewOutcomeSink constructs an OutcomeSink.
func NewOutcomeSink(metrics *Metrics) *OutcomeSink {
	return &OutcomeSink{metrics: metrics}
}

func (s *OutcomeSink) StepChanged(ctx context.Context, snap checkout.Snapshot, from checkout.Step, detail string) {
	switch snap.Step {
	case checkout.StepCompleted, checkout.StepFailed, checkout.StepTimeout:
		s.metrics.MarkSessionOutcome(snap.Step.String())
	}
}
