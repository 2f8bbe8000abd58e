package domain

import "time"

// PaymentEventKind names a state change published to downstream consumers.
type PaymentEventKind string

const (
	EventCheckoutStarted    PaymentEventKind = "checkout_started"
	EventPaymentAuthorized  PaymentEventKind = "payment_authorized"
	EventPaymentCaptured    PaymentEventKind = "payment_captured"
	EventPaymentRefunded    PaymentEventKind = "payment_refunded"
	EventPaymentVoided      PaymentEventKind = "payment_voided"
	EventPaymentFailed      PaymentEventKind = "payment_failed"
	EventOrderStateChanged  PaymentEventKind = "order_state_changed"
)

// PaymentEvent is the message emitted on the payments topic after an order or
// transaction state change. NotifyCustomer mirrors the method's
// payment_confirmation_email_enabled flag so the mailer consumer can decide
// whether to send a confirmation.
type PaymentEvent struct {
	Kind           PaymentEventKind `json:"kind"`
	OrderID        string           `json:"order_id"`
	IncrementID    string           `json:"increment_id"`
	MethodCode     string           `json:"method_code"`
	TransactionID  string           `json:"transaction_id,omitempty"`
	UniqueID       string           `json:"unique_id,omitempty"`
	Status         string           `json:"status,omitempty"`
	OrderState     string           `json:"order_state,omitempty"`
	Amount         string           `json:"amount,omitempty"`
	Currency       string           `json:"currency,omitempty"`
	Message        string           `json:"message,omitempty"`
	NotifyCustomer bool             `json:"notify_customer"`
	OccurredAt     time.Time        `json:"occurred_at"`
}
