package orderapi

// OrderStatus is the backend order lifecycle status. The order read is the
// only signal the rest of the system may treat as proof of entitlement.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusFailed    OrderStatus = "FAILED"
	OrderStatusRefunded  OrderStatus = "REFUNDED"
)

// Terminal reports whether the status will no longer change.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusFailed || s == OrderStatusRefunded
}

func (s OrderStatus) String() string {
	return string(s)
}

// CheckoutItem identifies one dataset being purchased.
type CheckoutItem struct {
	DatasetID string `json:"datasetId"`
}

// CreateCheckoutRequest starts a checkout for the listed datasets.
type CreateCheckoutRequest struct {
	Items []CheckoutItem `json:"items"`
}

// GatewayLinkage carries the provider-side identifiers needed to open the
// payment widget.
type GatewayLinkage struct {
	KeyID   string `json:"keyId"`
	OrderID string `json:"orderId"`
}

// CreateCheckoutResponse is the backend's answer to a checkout creation.
type CreateCheckoutResponse struct {
	OrderID          string         `json:"orderId"`
	OrderNumber      string         `json:"orderNumber"`
	Currency         string         `json:"currency"`
	Amount           float64        `json:"amount"`
	AmountPaise      int64          `json:"amountPaise"`
	PaymentAttemptID string         `json:"paymentAttemptId"`
	Gateway          GatewayLinkage `json:"gateway"`
}

// ConfirmPaymentRequest relays the widget's signed success payload. The
// signature is passed through verbatim; the client never inspects it.
type ConfirmPaymentRequest struct {
	PaymentAttemptID  string `json:"paymentAttemptId"`
	ProviderOrderID   string `json:"providerOrderId"`
	ProviderPaymentID string `json:"providerPaymentId"`
	ProviderSignature string `json:"providerSignature"`
}

// OrderRef is the order identity and status as reported by the backend.
type OrderRef struct {
	ID     string      `json:"id"`
	Status OrderStatus `json:"status"`
}

// ConfirmPaymentResponse is the backend's answer to a payment confirmation.
type ConfirmPaymentResponse struct {
	OK    bool     `json:"ok"`
	Order OrderRef `json:"order"`
}

// GetOrderResponse is the polling read of an order.
type GetOrderResponse struct {
	Order OrderRef `json:"order"`
}
