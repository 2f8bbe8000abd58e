package payment

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/openpayments/genesis-payment-service/internal/config"
	"github.com/openpayments/genesis-payment-service/internal/domain"
	"github.com/openpayments/genesis-payment-service/internal/domain/ports"
)

// Service drives checkout sessions and merchant-initiated reference
// transactions (capture, refund, void) against the gateway.
type Service struct {
	cfg     *config.Config
	db      ports.DBPort
	orders  ports.OrderRepository
	txns    ports.TransactionRepository
	gateway ports.GatewayClient
	events  ports.EventPublisher
	logger  *zap.Logger
}

// NewService creates a payment service.
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

// GetOrder loads an order by its increment id.
func (s *Service) GetOrder(ctx context.Context, incrementID string) (*domain.Order, error) {
	return s.orders.GetByIncrementID(ctx, nil, incrementID)
}

// ReferenceResult reports the outcome of a capture, refund or void.
type ReferenceResult struct {
	TransactionID string
	UniqueID      string
	Status        domain.GatewayStatus
	Amount        decimal.Decimal
	Currency      string
	Message       string
}

// captureReferenceTypes are the transaction types a capture can reference.
var captureReferenceTypes = []domain.TransactionType{
	domain.TransactionTypeAuthorize,
	domain.TransactionTypeAuthorize3D,
	domain.TransactionTypeGooglePay,
	domain.TransactionTypePayPal,
	domain.TransactionTypeApplePay,
}

// refundReferenceTypes are the transaction types a refund can reference.
var refundReferenceTypes = []domain.TransactionType{
	domain.TransactionTypeCapture,
	domain.TransactionTypeSale,
	domain.TransactionTypeSale3D,
	domain.TransactionTypeInitRecurringSale,
	domain.TransactionTypeGooglePay,
	domain.TransactionTypePayPal,
	domain.TransactionTypeApplePay,
}

// voidReferenceTypes are the transaction types a void can reference.
var voidReferenceTypes = []domain.TransactionType{
	domain.TransactionTypeAuthorize,
	domain.TransactionTypeAuthorize3D,
	domain.TransactionTypeCapture,
	domain.TransactionTypeGooglePay,
	domain.TransactionTypePayPal,
	domain.TransactionTypeApplePay,
}

// Capture settles a previously authorized amount. The reference is the
// newest open authorization of the order; wallet authorizations qualify only
// when the merchant selected the wallet's authorize subtype.
func (s *Service) Capture(ctx context.Context, incrementID string, amount decimal.Decimal) (*ReferenceResult, error) {
	return s.reference(ctx, incrementID, domain.TransactionTypeCapture, amount)
}

// Refund credits a settled amount back to the customer.
func (s *Service) Refund(ctx context.Context, incrementID string, amount decimal.Decimal) (*ReferenceResult, error) {
	return s.reference(ctx, incrementID, domain.TransactionTypeRefund, amount)
}

// Void releases an open authorization or an unsettled capture. Voids carry no
// amount; the gateway releases the full reference.
func (s *Service) Void(ctx context.Context, incrementID string) (*ReferenceResult, error) {
	return s.reference(ctx, incrementID, domain.TransactionTypeVoid, decimal.Zero)
}

func (s *Service) reference(ctx context.Context, incrementID string, refType domain.TransactionType, amount decimal.Decimal) (*ReferenceResult, error) {
	order, err := s.orders.GetByIncrementID(ctx, nil, incrementID)
	if err != nil {
		return nil, err
	}

	method := s.cfg.Method(order.MethodCode)
	if !method.IsAPIAvailable() {
		return nil, domain.ErrMethodUnavailable
	}

	ref, err := s.findReference(ctx, order, method, refType)
	if err != nil {
		return nil, err
	}

	if refType == domain.TransactionTypeRefund && !order.CanCreditmemo() {
		return nil, domain.NewDomainError(domain.ErrorCodeTxnNotRefundable,
			"order has no refundable payments").WithDetail("increment_id", incrementID)
	}
	if refType != domain.TransactionTypeVoid && !amount.IsPositive() {
		return nil, domain.NewDomainError(domain.ErrorCodeValidationAmountInvalid,
			"amount must be positive")
	}

	txnID, err := domain.GenerateTransactionID(order.IncrementID, domain.TransactionIDLength)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeInternalError, "generate transaction id", err)
	}

	// The terminal that processed the original transaction handles its
	// references. A capture without a token inherits the token of the
	// authorization it settled; the method token is the last resort.
	creds := method.Credentials()
	switch {
	case ref.TerminalToken != "":
		creds.Token = ref.TerminalToken
	case refType == domain.TransactionTypeRefund && ref.ParentTxnID != "":
		if parent, perr := s.txns.GetByTxnID(ctx, nil, ref.ParentTxnID); perr == nil && parent.TerminalToken != "" {
			creds.Token = parent.TerminalToken
		}
	}

	resp, err := s.gateway.Process(ctx, creds, &ports.ReferenceRequest{
		Type:          refType,
		TransactionID: txnID,
		ReferenceID:   ref.UniqueID,
		Amount:        amount,
		Currency:      ref.Currency,
		RemoteIP:      order.RemoteIP,
		Usage:         "Merchant initiated " + string(refType),
	})
	if err != nil {
		return nil, err
	}

	if !resp.IsApproved() {
		s.logger.Warn("Reference transaction not approved",
			zap.String("type", string(refType)),
			zap.String("increment_id", incrementID),
			zap.String("status", string(resp.Status)),
			zap.String("message", resp.Message),
		)
		return nil, domain.NewAPIError(
			maskedMessage(resp.Message, refType), http.StatusUnprocessableEntity,
			domain.NewDomainError(domain.ErrorCodeGatewayDeclined, resp.Message),
		)
	}

	var event *domain.PaymentEvent
	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		txn := &domain.PaymentTransaction{
			ID:            uuid.New().String(),
			OrderID:       order.ID,
			TxnID:         txnID,
			ParentTxnID:   ref.TxnID,
			UniqueID:      resp.UniqueID,
			Type:          refType,
			Status:        resp.Status,
			Amount:        resp.Amount,
			Currency:      resp.Currency,
			TerminalToken: creds.Token,
			Message:       resp.Message,
			TechnicalMsg:  resp.TechnicalMsg,
			Closed:        refType != domain.TransactionTypeCapture,
		}
		if err := s.txns.Create(ctx, tx, txn); err != nil {
			return err
		}

		// The consumed reference stays closed so the next lookup skips it.
		ref.Closed = true
		if err := s.txns.Update(ctx, tx, ref); err != nil {
			return err
		}

		event = s.applyReference(order, refType, resp, method)
		if err := s.orders.Update(ctx, tx, order); err != nil {
			return err
		}
		return s.orders.AddStatusHistory(ctx, tx, &domain.StatusHistoryEntry{
			OrderID: order.ID,
			Status:  order.Status,
			Comment: referenceComment(refType, resp),
			Notify:  method.PaymentConfirmationEmail,
		})
	})
	if err != nil {
		return nil, err
	}

	if event != nil {
		if pubErr := s.events.Publish(ctx, *event); pubErr != nil {
			s.logger.Error("Failed to publish payment event", zap.Error(pubErr),
				zap.String("increment_id", incrementID))
		}
	}

	return &ReferenceResult{
		TransactionID: txnID,
		UniqueID:      resp.UniqueID,
		Status:        resp.Status,
		Amount:        resp.Amount,
		Currency:      resp.Currency,
		Message:       resp.Message,
	}, nil
}

// findReference picks the transaction a capture, refund or void will run
// against and validates its type supports the operation.
func (s *Service) findReference(ctx context.Context, order *domain.Order, method *config.MethodConfig, refType domain.TransactionType) (*domain.PaymentTransaction, error) {
	var (
		types    []domain.TransactionType
		notFound *domain.DomainError
	)
	switch refType {
	case domain.TransactionTypeCapture:
		types, notFound = captureReferenceTypes, domain.ErrNoAuthorization
	case domain.TransactionTypeRefund:
		types, notFound = refundReferenceTypes, domain.ErrNoCapture
	case domain.TransactionTypeVoid:
		types, notFound = voidReferenceTypes, domain.ErrNoReference
	default:
		return nil, domain.NewDomainError(domain.ErrorCodeTxnInvalidReference,
			"unsupported reference transaction type").WithDetail("type", string(refType))
	}

	ref, err := s.txns.LastByOrderAndTypes(ctx, nil, order.ID, types...)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrorCodeTxnNotFound) {
			return nil, notFound
		}
		return nil, err
	}

	// Wallet transactions act as authorizations only when their authorize
	// subtype was selected; otherwise they settled immediately and cannot be
	// captured or voided.
	if ref.Type.IsWallet() && refType != domain.TransactionTypeRefund &&
		!domain.WalletPaymentTypeSelected(ref.Type, domain.PaymentTypeAuthorize, method.TransactionTypes) {
		return nil, notFound
	}

	switch refType {
	case domain.TransactionTypeCapture:
		if !ref.Type.CanCapture() {
			return nil, domain.ErrNoAuthorization
		}
	case domain.TransactionTypeRefund:
		if !ref.Type.CanRefund() {
			return nil, domain.ErrNotRefundable
		}
	case domain.TransactionTypeVoid:
		if !ref.Type.CanVoid() {
			return nil, domain.ErrNoReference
		}
	}
	return ref, nil
}

// applyReference moves the order after an approved reference transaction and
// builds the matching payment event.
func (s *Service) applyReference(order *domain.Order, refType domain.TransactionType, resp *ports.GatewayResponse, method *config.MethodConfig) *domain.PaymentEvent {
	var kind domain.PaymentEventKind
	switch refType {
	case domain.TransactionTypeCapture:
		order.SetState(domain.OrderStateProcessing)
		order.RegisterPaid(order.ResolveBaseAmount(resp.Amount, resp.Currency))
		kind = domain.EventPaymentCaptured
	case domain.TransactionTypeRefund:
		order.RegisterRefund(order.ResolveBaseAmount(resp.Amount, resp.Currency))
		kind = domain.EventPaymentRefunded
	case domain.TransactionTypeVoid:
		order.Cancel(domain.OrderStateCanceled)
		kind = domain.EventPaymentVoided
	}

	return &domain.PaymentEvent{
		Kind:           kind,
		OrderID:        order.ID,
		IncrementID:    order.IncrementID,
		MethodCode:     order.MethodCode,
		UniqueID:       resp.UniqueID,
		Status:         string(resp.Status),
		OrderState:     string(order.State),
		Amount:         resp.Amount.String(),
		Currency:       resp.Currency,
		Message:        resp.Message,
		NotifyCustomer: method.PaymentConfirmationEmail,
	}
}

func referenceComment(refType domain.TransactionType, resp *ports.GatewayResponse) string {
	switch refType {
	case domain.TransactionTypeCapture:
		return "Captured amount of " + resp.Amount.String() + " " + resp.Currency
	case domain.TransactionTypeRefund:
		return "Refunded amount of " + resp.Amount.String() + " " + resp.Currency
	default:
		return "Voided authorization"
	}
}

// maskedMessage keeps merchant-facing errors free of raw gateway detail while
// still naming the operation that failed.
func maskedMessage(gatewayMsg string, refType domain.TransactionType) string {
	if gatewayMsg != "" {
		return gatewayMsg
	}
	return string(refType) + " was declined by the payment gateway"
}
