package reconcile

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/openpayments/genesis-payment-service/internal/config"
	"github.com/openpayments/genesis-payment-service/internal/domain"
	"github.com/openpayments/genesis-payment-service/internal/domain/ports"
)

// Service handles gateway notifications: it authenticates them, fetches the
// trusted transaction state back from the gateway and applies it to the order
// inside one database transaction.
type Service struct {
	cfg     *config.Config
	db      ports.DBPort
	orders  ports.OrderRepository
	txns    ports.TransactionRepository
	gateway ports.GatewayClient
	events  ports.EventPublisher
	logger  *zap.Logger
}

// NewService creates a reconciliation service.
func NewService(
	cfg *config.Config,
	db ports.DBPort,
	orders ports.OrderRepository,
	txns ports.TransactionRepository,
	gateway ports.GatewayClient,
	events ports.EventPublisher,
	logger *zap.Logger,
) *Service {
	return &Service{
		cfg:     cfg,
		db:      db,
		orders:  orders,
		txns:    txns,
		gateway: gateway,
		events:  events,
		logger:  logger,
	}
}

// HandleNotification processes one IPN for the given payment method. The
// notification's own parameters are never trusted beyond the signed id; the
// applied state always comes from a fresh reconcile call. On success it
// returns the echo body the gateway expects.
func (s *Service) HandleNotification(ctx context.Context, methodCode string, n *domain.Notification) (*domain.NotificationEcho, error) {
	method := s.cfg.Method(methodCode)
	if !method.IsAPIAvailable() {
		return nil, domain.ErrMethodUnavailable
	}

	if !n.IsAuthentic(method.Password) {
		s.logger.Warn("Rejected notification with bad signature",
			zap.String("method", methodCode),
			zap.String("signed_id", n.SignedID()),
		)
		return nil, domain.ErrForgedNotification
	}

	creds := method.Credentials()
	var (
		rec *domain.Reconciliation
		err error
	)
	if n.IsCheckout() {
		rec, err = s.gateway.ReconcileWPF(ctx, creds, n.WPFUniqueID)
	} else {
		rec, err = s.gateway.Reconcile(ctx, creds, n.UniqueID)
	}
	if err != nil {
		return nil, err
	}
	if rec.UniqueID == "" {
		return nil, domain.ErrMissingUniqueID
	}

	incrementID, err := domain.OrderIncrementID(rec.TransactionID)
	if err != nil {
		return nil, err
	}

	var event *domain.PaymentEvent
	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		order, err := s.orders.GetByIncrementID(ctx, tx, incrementID)
		if err != nil {
			return err
		}

		txn, err := s.recordTransaction(ctx, tx, order, rec, method.TransactionTypes)
		if err != nil {
			return err
		}

		out := applyStatus(order, rec, method.TransactionTypes, method.PaymentConfirmationEmail, s.logger)
		if !out.changed {
			return nil
		}

		if err := s.orders.Update(ctx, tx, order); err != nil {
			return err
		}
		if out.comment != "" {
			entry := &domain.StatusHistoryEntry{
				OrderID: order.ID,
				Status:  order.Status,
				Comment: out.comment,
				Notify:  out.notify,
			}
			if err := s.orders.AddStatusHistory(ctx, tx, entry); err != nil {
				return err
			}
		}

		if out.eventKind != "" {
			event = &domain.PaymentEvent{
				Kind:           out.eventKind,
				OrderID:        order.ID,
				IncrementID:    order.IncrementID,
				MethodCode:     order.MethodCode,
				TransactionID:  txn.TxnID,
				UniqueID:       txn.UniqueID,
				Status:         string(rec.Status),
				OrderState:     string(order.State),
				Amount:         rec.Amount.String(),
				Currency:       rec.Currency,
				Message:        rec.Message,
				NotifyCustomer: out.notify,
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if event != nil {
		if pubErr := s.events.Publish(ctx, *event); pubErr != nil {
			s.logger.Error("Failed to publish payment event after reconciliation",
				zap.Error(pubErr),
				zap.String("increment_id", incrementID),
			)
		}
	}

	s.logger.Info("Notification reconciled",
		zap.String("method", methodCode),
		zap.String("increment_id", incrementID),
		zap.String("unique_id", rec.UniqueID),
		zap.String("status", string(rec.Status)),
	)

	echo := &domain.NotificationEcho{}
	if n.IsCheckout() {
		echo.WPFUniqueID = n.WPFUniqueID
	} else {
		echo.UniqueID = n.UniqueID
	}
	return echo, nil
}

// recordTransaction upserts the payment transaction the reconciliation
// describes. Repeated notifications for the same gateway unique id update the
// existing row instead of inserting duplicates.
func (s *Service) recordTransaction(ctx context.Context, tx pgx.Tx, order *domain.Order, rec *domain.Reconciliation, selectedTypes []string) (*domain.PaymentTransaction, error) {
	pending := rec.Status.ShouldBePending()
	closed := rec.Status == domain.StatusApproved &&
		domain.ShouldCloseTransaction(rec.TransactionType, selectedTypes)

	txn, err := s.txns.GetByUniqueID(ctx, tx, rec.UniqueID)
	if err == nil {
		// Checkout rows are created before the gateway reports a type;
		// backfill it so reference lookups can find the settled transaction.
		if rec.TransactionType != "" {
			txn.Type = rec.TransactionType
		}
		txn.Status = rec.Status
		txn.Amount = rec.Amount
		txn.Currency = rec.Currency
		txn.TerminalToken = rec.TerminalToken
		txn.RedirectURL = rec.RedirectURL
		txn.Message = rec.Message
		txn.TechnicalMsg = rec.TechnicalMsg
		txn.Pending = pending
		txn.Closed = closed
		return txn, s.txns.Update(ctx, tx, txn)
	}
	if !domain.IsDomainError(err, domain.ErrorCodeTxnNotFound) {
		return nil, err
	}

	txn = &domain.PaymentTransaction{
		ID:            uuid.New().String(),
		OrderID:       order.ID,
		TxnID:         rec.TransactionID,
		UniqueID:      rec.UniqueID,
		Type:          rec.TransactionType,
		Status:        rec.Status,
		Amount:        rec.Amount,
		Currency:      rec.Currency,
		TerminalToken: rec.TerminalToken,
		RedirectURL:   rec.RedirectURL,
		Message:       rec.Message,
		TechnicalMsg:  rec.TechnicalMsg,
		Pending:       pending,
		Closed:        closed,
	}
	return txn, s.txns.Create(ctx, tx, txn)
}
