package reconcile

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/openpayments/genesis-payment-service/internal/domain"
)

// outcome describes what a gateway status did to the order.
type outcome struct {
	// changed is false when the status is unmapped and the order was left
	// untouched.
	changed bool
	// eventKind is the payment event to publish, empty when none applies.
	eventKind domain.PaymentEventKind
	// comment is appended to the order status history when non-empty.
	comment string
	// notify mirrors the method's confirmation email setting into the event.
	notify bool
}

// applyStatus moves the order according to the reconciled transaction state.
// Approved payments register either an authorization or a settled capture,
// depending on the transaction type and the merchant's selected types. Any
// status outside the mapped set logs a warning and leaves the order unchanged.
func applyStatus(order *domain.Order, rec *domain.Reconciliation, selectedTypes []string, emailEnabled bool, logger *zap.Logger) outcome {
	switch rec.Status {
	case domain.StatusApproved:
		order.SetState(domain.OrderStateProcessing)
		baseAmount := order.ResolveBaseAmount(rec.Amount, rec.Currency)

		if domain.RegistersAuthorization(rec.TransactionType, selectedTypes) {
			return outcome{
				changed:   true,
				eventKind: domain.EventPaymentAuthorized,
				comment:   fmt.Sprintf("Authorized amount of %s %s", rec.Amount.String(), rec.Currency),
				notify:    emailEnabled,
			}
		}

		order.RegisterPaid(baseAmount)
		return outcome{
			changed:   true,
			eventKind: domain.EventPaymentCaptured,
			comment:   fmt.Sprintf("Captured amount of %s %s", rec.Amount.String(), rec.Currency),
			notify:    emailEnabled,
		}

	case domain.StatusNew, domain.StatusPending, domain.StatusPendingAsync:
		order.SetState(domain.OrderStatePendingPayment)
		return outcome{changed: true, eventKind: domain.EventOrderStateChanged}

	case domain.StatusError, domain.StatusDeclined:
		order.Cancel(domain.OrderStateClosed)
		return outcome{
			changed:   true,
			eventKind: domain.EventPaymentFailed,
			comment:   failureComment(rec),
		}

	case domain.StatusVoided, domain.StatusTimeout:
		order.Cancel(domain.OrderStateCanceled)
		return outcome{
			changed:   true,
			eventKind: domain.EventPaymentVoided,
			comment:   failureComment(rec),
		}

	case domain.StatusRefunded:
		if !order.CanCreditmemo() {
			logger.Warn("Refund notification for order without refundable payments",
				zap.String("increment_id", order.IncrementID),
				zap.String("unique_id", rec.UniqueID),
			)
			return outcome{}
		}
		order.RegisterRefund(order.ResolveBaseAmount(rec.Amount, rec.Currency))
		return outcome{
			changed:   true,
			eventKind: domain.EventPaymentRefunded,
			comment:   fmt.Sprintf("Refunded amount of %s %s", rec.Amount.String(), rec.Currency),
		}
	}

	logger.Warn("Unmapped gateway status, order left unchanged",
		zap.String("increment_id", order.IncrementID),
		zap.String("status", string(rec.Status)),
		zap.String("unique_id", rec.UniqueID),
	)
	return outcome{}
}

func failureComment(rec *domain.Reconciliation) string {
	msg := rec.Message
	if msg == "" {
		msg = rec.TechnicalMsg
	}
	if msg == "" {
		return fmt.Sprintf("Payment %s", rec.Status)
	}
	return fmt.Sprintf("Payment %s: %s", rec.Status, msg)
}
