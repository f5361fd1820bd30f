package observability

import (
	"context"
	"testing"

	"tollgate/internal/checkout"
)

func TestOutcomeSinkCountsResolvedSteps(t *testing.T) {
	metrics := NewMetrics()
	sink := NewOutcomeSink(metrics)

	changes := []struct {
		step checkout.Step
		from checkout.Step
	}{
		{checkout.StepCreating, checkout.StepIdle},
		{checkout.StepPaying, checkout.StepCreating},
		{checkout.StepConfirming, checkout.StepPaying},
		{checkout.StepPolling, checkout.StepConfirming},
		{checkout.StepCompleted, checkout.StepPolling},
		{checkout.StepFailed, checkout.StepPaying},
		{checkout.StepTimeout, checkout.StepPolling},
		{checkout.StepIdle, checkout.StepFailed},
	}
	for _, c := range changes {
		sink.StepChanged(context.Background(), checkout.Snapshot{Step: c.step}, c.from, "")
	}

	snap := metrics.Snapshot()
	if snap.Sessions["completed"] != 1 || snap.Sessions["failed"] != 1 || snap.Sessions["timeout"] != 1 {
		t.Fatalf("unexpected outcome counts: %v", snap.Sessions)
	}
	if len(snap.Sessions) != 3 {
		t.Fatalf("intermediate steps must not be counted: %v", snap.Sessions)
	}
}
