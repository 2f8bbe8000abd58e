package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderState is the coarse order lifecycle state driven by gateway statuses.
type OrderState string

const (
	OrderStateNew            OrderState = "new"
	OrderStateProcessing     OrderState = "processing"
	OrderStatePendingPayment OrderState = "pending_payment"
	OrderStateCanceled       OrderState = "canceled"
	OrderStateClosed         OrderState = "closed"
)

// Order is a merchant order this service settles payments for. Monetary
// fields exist in both the order currency and the store base currency so the
// settlement resolver can pick either side.
type Order struct {
	ID             string
	IncrementID    string
	MethodCode     string
	State          OrderState
	Status         string
	GrandTotal     decimal.Decimal // order currency
	BaseGrandTotal decimal.Decimal // store base currency
	TotalDue       decimal.Decimal // base currency, unpaid remainder
	TotalPaid      decimal.Decimal
	TotalRefunded  decimal.Decimal
	OrderCurrency  string
	BaseCurrency   string
	CustomerEmail  string
	RemoteIP       string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// StatusHistoryEntry is a comment appended to the order's status history.
type StatusHistoryEntry struct {
	OrderID   string
	Status    string
	Comment   string
	Notify    bool
	CreatedAt time.Time
}

// SetState moves the order to the given state and mirrors it into the
// user-visible status.
func (o *Order) SetState(state OrderState) {
	o.State = state
	o.Status = string(state)
}

// Cancel closes out the order after a declined, errored or voided payment.
// Open invoice amounts are released by zeroing the outstanding due.
func (o *Order) Cancel(state OrderState) {
	o.SetState(state)
	o.TotalDue = decimal.Zero
}

// RegisterPaid records a settled capture amount in base currency.
func (o *Order) RegisterPaid(amount decimal.Decimal) {
	o.TotalPaid = o.TotalPaid.Add(amount)
	o.TotalDue = o.TotalDue.Sub(amount)
	if o.TotalDue.IsNegative() {
		o.TotalDue = decimal.Zero
	}
}

// CanCreditmemo reports whether a refund can still be credited against the
// order: something has been paid and not everything has been refunded yet.
func (o *Order) CanCreditmemo() bool {
	return o.TotalPaid.IsPositive() && o.TotalRefunded.LessThan(o.TotalPaid)
}

// RegisterRefund records a refunded amount and closes the order once it is
// fully refunded.
func (o *Order) RegisterRefund(amount decimal.Decimal) {
	o.TotalRefunded = o.TotalRefunded.Add(amount)
	if o.TotalRefunded.GreaterThanOrEqual(o.TotalPaid) {
		o.SetState(OrderStateClosed)
	}
}
