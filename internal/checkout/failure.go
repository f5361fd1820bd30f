package checkout

// FailureClass distinguishes why a session ended in the failed step. The
// class decides the user-facing message, in particular whether the buyer can
// simply retry or must be warned that funds may have left their account.
type FailureClass string

const (
	FailureNone FailureClass = ""

	// FailureSetup: widget runtime failed to load or checkout creation was
	// rejected. No funds at risk; retry immediately.
	FailureSetup FailureClass = "setup"

	// FailureGateway: the widget reported a payment failure. Funds were not
	// captured; retry is safe.
	FailureGateway FailureClass = "gateway"

	// FailureConfirmUncertain: confirm-payment errored after the widget
	// reported success. Funds may have been captured without backend
	// acknowledgment.
	FailureConfirmUncertain FailureClass = "confirmation_uncertain"

	// FailureBackendTerminal: the order read resolved to FAILED or REFUNDED.
	// Authoritative; surfaced as-is.
	FailureBackendTerminal FailureClass = "backend_terminal"
)

const (
	msgSetupFailed = "We couldn't start the payment. Nothing was charged, please try again."

	msgGatewayFailed = "The payment didn't go through. You have not been charged, please try again."

	msgConfirmUncertain = "We couldn't verify your payment. If money was deducted it will be " +
		"refunded within 5-7 business days, or contact support with your order number."

	msgOrderFailed = "The payment could not be completed for this order."

	msgOrderRefunded = "This payment was refunded. Please start a new purchase if you still want the dataset."

	// MsgProcessing is returned when a voluntary close is rejected mid-flight.
	MsgProcessing = "Payment is processing, please wait."

	// MsgTimeout accompanies the quasi-terminal timeout step: not a failure.
	MsgTimeout = "Your payment is still being confirmed. Track it on the order status page using your order number."
)

// message returns the default user-facing text for a failure class.
func (c FailureClass) message() string {
	switch c {
	case FailureSetup:
		return msgSetupFailed
	case FailureGateway:
		return msgGatewayFailed
	case FailureConfirmUncertain:
		return msgConfirmUncertain
	case FailureBackendTerminal:
		return msgOrderFailed
	}
	return ""
}
