package payment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/openpayments/genesis-payment-service/internal/domain"
	"github.com/openpayments/genesis-payment-service/internal/domain/ports"
)

// CheckoutRequest starts a hosted payment for a merchant order.
type CheckoutRequest struct {
	IncrementID   string
	MethodCode    string
	Amount        decimal.Decimal // order currency total
	Currency      string
	BaseAmount    decimal.Decimal // store base currency total
	BaseCurrency  string
	CustomerEmail string
	RemoteIP      string
	Description   string
}

// CheckoutResult carries the session the customer is redirected to.
type CheckoutResult struct {
	OrderID       string
	TransactionID string
	UniqueID      string
	RedirectURL   string
}

// Checkout records the order and opens a Web Payment Form session for it.
// The returned redirect URL sends the customer to the gateway's hosted page;
// the final state arrives later through the notification flow.
func (s *Service) Checkout(ctx context.Context, req *CheckoutRequest) (*CheckoutResult, error) {
	if req.IncrementID == "" {
		return nil, domain.NewDomainError(domain.ErrorCodeValidationFailed, "increment id is required")
	}
	if !req.Amount.IsPositive() {
		return nil, domain.NewDomainError(domain.ErrorCodeValidationAmountInvalid, "amount must be positive")
	}

	method := s.cfg.Method(req.MethodCode)
	if !method.IsAPIAvailable() {
		return nil, domain.ErrMethodUnavailable
	}

	if req.BaseCurrency == "" {
		req.BaseCurrency = req.Currency
	}
	if req.BaseAmount.IsZero() {
		req.BaseAmount = req.Amount
	}

	order := &domain.Order{
		ID:             uuid.New().String(),
		IncrementID:    req.IncrementID,
		MethodCode:     req.MethodCode,
		GrandTotal:     req.Amount,
		BaseGrandTotal: req.BaseAmount,
		TotalDue:       req.BaseAmount,
		OrderCurrency:  req.Currency,
		BaseCurrency:   req.BaseCurrency,
		CustomerEmail:  req.CustomerEmail,
		RemoteIP:       req.RemoteIP,
	}
	order.SetState(domain.OrderStateNew)

	amount, currency := order.SettlementAmount(method.MultiCurrencyProcessing)
	if !s.cfg.IsCurrencyAllowed(req.MethodCode, currency) {
		return nil, domain.ErrCurrencyNotAllowed
	}

	txnID, err := domain.GenerateTransactionID(req.IncrementID, domain.TransactionIDLength)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeInternalError, "generate transaction id", err)
	}

	resp, err := s.gateway.CreateWPFSession(ctx, method.Credentials(), &ports.WPFRequest{
		TransactionID:      txnID,
		Amount:             amount,
		Currency:           currency,
		Usage:              fmt.Sprintf("Payment for order %s", req.IncrementID),
		Description:        req.Description,
		CustomerEmail:      req.CustomerEmail,
		RemoteIP:           req.RemoteIP,
		NotificationURL:    s.notificationURL(req.MethodCode),
		ReturnSuccessURL:   s.redirectURL(req.MethodCode, "success"),
		ReturnCancelURL:    s.redirectURL(req.MethodCode, "cancel"),
		ReturnFailureURL:   s.redirectURL(req.MethodCode, "failure"),
		TransactionTypes:   method.TransactionTypes,
		Tokenization:       method.Tokenization,
		ThreeDSAllowed:     method.ThreedsAllowed,
		ChallengeIndicator: method.ThreedsChallengeIndicator,
		ScaExemption:       method.ScaExemption,
		ScaExemptionAmount: method.ScaExemptionDecimal(),
		BankCodes:          method.BankCodes,
	})
	if err != nil {
		return nil, err
	}

	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.orders.Create(ctx, tx, order); err != nil {
			return err
		}

		txn := &domain.PaymentTransaction{
			ID:          uuid.New().String(),
			OrderID:     order.ID,
			TxnID:       txnID,
			UniqueID:    resp.UniqueID,
			Status:      resp.Status,
			Amount:      amount,
			Currency:    currency,
			RedirectURL: resp.RedirectURL,
			Pending:     true,
		}
		if err := s.txns.Create(ctx, tx, txn); err != nil {
			return err
		}

		return s.orders.AddStatusHistory(ctx, tx, &domain.StatusHistoryEntry{
			OrderID: order.ID,
			Status:  order.Status,
			Comment: "Checkout session created",
		})
	})
	if err != nil {
		return nil, err
	}

	if pubErr := s.events.Publish(ctx, domain.PaymentEvent{
		Kind:          domain.EventCheckoutStarted,
		OrderID:       order.ID,
		IncrementID:   order.IncrementID,
		MethodCode:    order.MethodCode,
		TransactionID: txnID,
		UniqueID:      resp.UniqueID,
		Status:        string(resp.Status),
		OrderState:    string(order.State),
		Amount:        amount.String(),
		Currency:      currency,
	}); pubErr != nil {
		s.logger.Error("Failed to publish checkout event", zap.Error(pubErr),
			zap.String("increment_id", order.IncrementID))
	}

	s.logger.Info("Checkout session opened",
		zap.String("increment_id", order.IncrementID),
		zap.String("method", order.MethodCode),
		zap.String("transaction_id", txnID),
		zap.String("unique_id", resp.UniqueID),
	)

	return &CheckoutResult{
		OrderID:       order.ID,
		TransactionID: txnID,
		UniqueID:      resp.UniqueID,
		RedirectURL:   resp.RedirectURL,
	}, nil
}

func (s *Service) notificationURL(methodCode string) string {
	return fmt.Sprintf("%s/ipn/%s", s.cfg.PublicBaseURL, methodCode)
}

func (s *Service) redirectURL(methodCode, action string) string {
	return fmt.Sprintf("%s/redirect/%s?action=%s", s.cfg.PublicBaseURL, methodCode, action)
}
