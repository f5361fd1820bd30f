package checkout

import (
	"time"

	"github.com/google/uuid"
)

// Purchase describes what the buyer is paying for. Supplied by the caller at
// session start; the amount is display-only until the backend quotes the
// authoritative one at checkout creation.
type Purchase struct {
	DatasetID    string
	DatasetTitle string
	Amount       float64
	Currency     string
}

// session is one end-to-end purchase attempt. Owned exclusively by the
// orchestrator; ids are assigned once and never reassigned. A retry mints a
// brand-new session.
type session struct {
	id       string
	purchase Purchase

	step Step

	paymentAttemptID string
	providerOrderID  string
	providerKeyID    string
	orderID          string
	orderNumber      string
	amountPaise      int64

	failureClass FailureClass
	errorMessage string

	pollDeadline time.Time

	// completionFired latches the completion callback and ledger append so
	// they happen at most once even if a terminal read repeats.
	completionFired bool
}

func newSession(p Purchase) *session {
	return &session{
		id:       uuid.NewString(),
		purchase: p,
		step:     StepIdle,
	}
}

// Snapshot is an immutable, UI-facing view of the session.
type Snapshot struct {
	SessionID        string       `json:"sessionId"`
	Step             Step         `json:"step"`
	DatasetID        string       `json:"datasetId"`
	DatasetTitle     string       `json:"datasetTitle"`
	Amount           float64      `json:"amount"`
	Currency         string       `json:"currency"`
	PaymentAttemptID string       `json:"paymentAttemptId,omitempty"`
	OrderID          string       `json:"orderId,omitempty"`
	OrderNumber      string       `json:"orderNumber,omitempty"`
	FailureClass     FailureClass `json:"failureClass,omitempty"`
	ErrorMessage     string       `json:"errorMessage,omitempty"`

	// DialogHidden is true while the gateway widget renders its own modal
	// surface; the checkout dialog reappears once a widget event fires.
	DialogHidden bool `json:"dialogHidden"`
}

func (s *session) snapshot() Snapshot {
	return Snapshot{
		SessionID:        s.id,
		Step:             s.step,
		DatasetID:        s.purchase.DatasetID,
		DatasetTitle:     s.purchase.DatasetTitle,
		Amount:           s.purchase.Amount,
		Currency:         s.purchase.Currency,
		PaymentAttemptID: s.paymentAttemptID,
		OrderID:          s.orderID,
		OrderNumber:      s.orderNumber,
		FailureClass:     s.failureClass,
		ErrorMessage:     s.errorMessage,
		DialogHidden:     s.step == StepPaying,
	}
}
