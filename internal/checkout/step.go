package checkout

// Step identifies a state of the checkout session state machine.
type Step string

const (
	StepIdle       Step = "idle"
	StepCreating   Step = "creating"
	StepPaying     Step = "paying"
	StepConfirming Step = "confirming"
	StepPolling    Step = "polling"
	StepTimeout    Step = "timeout"
	StepCompleted  Step = "completed"
	StepFailed     Step = "failed"
)

// transitions lists the valid target steps for each step. Forced close is
// handled separately: any step may be discarded back to idle.
var transitions = map[Step][]Step{
	StepIdle:       {StepCreating},
	StepCreating:   {StepPaying, StepFailed},
	StepPaying:     {StepConfirming, StepFailed, StepIdle},
	StepConfirming: {StepPolling, StepFailed},
	StepPolling:    {StepCompleted, StepFailed, StepTimeout},
	StepTimeout:    {},
	StepCompleted:  {StepIdle},
	StepFailed:     {StepIdle},
}

// CanTransition reports whether moving from one step to another is valid.
func CanTransition(from, to Step) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Busy reports whether the session is mid-flight: voluntary close and new
// session starts are rejected while busy.
func (s Step) Busy() bool {
	switch s {
	case StepCreating, StepPaying, StepConfirming, StepPolling:
		return true
	}
	return false
}

// Terminal reports whether the session has resolved. Timeout is
// quasi-terminal: the session will not transition further, but the purchase
// itself is handed off to the out-of-band order-status surface.
func (s Step) Terminal() bool {
	return s == StepCompleted || s == StepFailed
}

func (s Step) String() string {
	return string(s)
}
