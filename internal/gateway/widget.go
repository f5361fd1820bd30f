// Package gateway drives the third-party payment widget. The widget runtime
// is opaque: tollgate loads it once, opens it with order linkage, and reacts
// to its success, failure, and dismiss events.
package gateway

import "context"

// OpenRequest carries everything the widget needs to collect a payment.
type OpenRequest struct {
	SessionID       string
	KeyID           string
	ProviderOrderID string
	AmountPaise     int64
	Currency        string
	DatasetTitle    string
}

// SuccessPayload is the widget's signed success callback. The signature is
// relayed verbatim to the order service and never inspected here.
type SuccessPayload struct {
	ProviderOrderID   string `json:"providerOrderId"`
	ProviderPaymentID string `json:"providerPaymentId"`
	ProviderSignature string `json:"providerSignature"`
}

// Hooks are the event handlers registered when the widget opens. The provider
// may report failure on a channel separate from the success callback's
// absence, so a failure hook must always be registered alongside success.
type Hooks struct {
	OnSuccess func(ctx context.Context, payload SuccessPayload)
	OnFailure func(ctx context.Context, reason string)
	OnDismiss func(ctx context.Context)
}

// Widget is the opaque payment collection surface. Cancel withdraws a widget
// whose session was discarded before the browser reported anything back.
type Widget interface {
	Open(ctx context.Context, req OpenRequest, hooks Hooks) error
	Cancel(sessionID string)
}
