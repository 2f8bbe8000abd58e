package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/openpayments/genesis-payment-service/internal/domain"
	"github.com/openpayments/genesis-payment-service/internal/services/payment"
	"github.com/openpayments/genesis-payment-service/pkg/observability"
)

// Handler exposes the merchant REST surface: checkout session creation, order
// lookup and the capture/refund/void operations.
type Handler struct {
	payments *payment.Service
	logger   *zap.Logger
}

// NewHandler creates the REST handler.
func NewHandler(payments *payment.Service, logger *zap.Logger) *Handler {
	return &Handler{payments: payments, logger: logger}
}

type checkoutRequest struct {
	IncrementID   string          `json:"increment_id"`
	MethodCode    string          `json:"method_code"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	BaseAmount    decimal.Decimal `json:"base_amount"`
	BaseCurrency  string          `json:"base_currency"`
	CustomerEmail string          `json:"customer_email"`
	Description   string          `json:"description"`
}

type checkoutResponse struct {
	OrderID       string `json:"order_id"`
	TransactionID string `json:"transaction_id"`
	UniqueID      string `json:"unique_id"`
	RedirectURL   string `json:"redirect_url"`
}

// Checkout handles POST /api/v1/checkout.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.NewDomainError(domain.ErrorCodeValidationFailed, "invalid request body"))
		return
	}

	result, err := h.payments.Checkout(r.Context(), &payment.CheckoutRequest{
		IncrementID:   req.IncrementID,
		MethodCode:    req.MethodCode,
		Amount:        req.Amount,
		Currency:      req.Currency,
		BaseAmount:    req.BaseAmount,
		BaseCurrency:  req.BaseCurrency,
		CustomerEmail: req.CustomerEmail,
		RemoteIP:      clientIP(r),
		Description:   req.Description,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, checkoutResponse{
		OrderID:       result.OrderID,
		TransactionID: result.TransactionID,
		UniqueID:      result.UniqueID,
		RedirectURL:   result.RedirectURL,
	})
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type referenceResponse struct {
	TransactionID string `json:"transaction_id"`
	UniqueID      string `json:"unique_id"`
	Status        string `json:"status"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	Message       string `json:"message,omitempty"`
}

// Capture handles POST /api/v1/orders/{incrementID}/capture.
func (h *Handler) Capture(w http.ResponseWriter, r *http.Request) {
	h.referenceOp(w, r, "capture", func(incrementID string, amount decimal.Decimal) (*payment.ReferenceResult, error) {
		return h.payments.Capture(r.Context(), incrementID, amount)
	})
}

// Refund handles POST /api/v1/orders/{incrementID}/refund.
func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	h.referenceOp(w, r, "refund", func(incrementID string, amount decimal.Decimal) (*payment.ReferenceResult, error) {
		return h.payments.Refund(r.Context(), incrementID, amount)
	})
}

// Void handles POST /api/v1/orders/{incrementID}/void.
func (h *Handler) Void(w http.ResponseWriter, r *http.Request) {
	incrementID := chi.URLParam(r, "incrementID")

	result, err := h.payments.Void(r.Context(), incrementID)
	if err != nil {
		observability.RecordReferenceTransaction("void", "failed")
		h.writeError(w, err)
		return
	}

	observability.RecordReferenceTransaction("void", "approved")
	h.writeJSON(w, http.StatusOK, toReferenceResponse(result))
}

func (h *Handler) referenceOp(w http.ResponseWriter, r *http.Request, opName string, op func(string, decimal.Decimal) (*payment.ReferenceResult, error)) {
	incrementID := chi.URLParam(r, "incrementID")

	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.NewDomainError(domain.ErrorCodeValidationFailed, "invalid request body"))
		return
	}

	result, err := op(incrementID, req.Amount)
	if err != nil {
		outcome := "failed"
		if domain.IsDomainError(err, domain.ErrorCodeGatewayDeclined) {
			outcome = "declined"
		}
		observability.RecordReferenceTransaction(opName, outcome)
		h.writeError(w, err)
		return
	}

	observability.RecordReferenceTransaction(opName, "approved")
	h.writeJSON(w, http.StatusOK, toReferenceResponse(result))
}

type orderResponse struct {
	IncrementID   string `json:"increment_id"`
	MethodCode    string `json:"method_code"`
	State         string `json:"state"`
	Status        string `json:"status"`
	GrandTotal    string `json:"grand_total"`
	TotalPaid     string `json:"total_paid"`
	TotalRefunded string `json:"total_refunded"`
	TotalDue      string `json:"total_due"`
	OrderCurrency string `json:"order_currency"`
	BaseCurrency  string `json:"base_currency"`
}

// GetOrder handles GET /api/v1/orders/{incrementID}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	incrementID := chi.URLParam(r, "incrementID")

	order, err := h.payments.GetOrder(r.Context(), incrementID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, orderResponse{
		IncrementID:   order.IncrementID,
		MethodCode:    order.MethodCode,
		State:         string(order.State),
		Status:        order.Status,
		GrandTotal:    order.GrandTotal.String(),
		TotalPaid:     order.TotalPaid.String(),
		TotalRefunded: order.TotalRefunded.String(),
		TotalDue:      order.TotalDue.String(),
		OrderCurrency: order.OrderCurrency,
		BaseCurrency:  order.BaseCurrency,
	})
}

func toReferenceResponse(result *payment.ReferenceResult) referenceResponse {
	return referenceResponse{
		TransactionID: result.TransactionID,
		UniqueID:      result.UniqueID,
		Status:        string(result.Status),
		Amount:        result.Amount.String(),
		Currency:      result.Currency,
		Message:       result.Message,
	}
}

// clientIP resolves the caller's address. The router's RealIP middleware
// already rewrites RemoteAddr from the forwarding headers; the header check
// only covers handlers mounted without it, taking the first hop of the list.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.Index(fwd, ","); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	return r.RemoteAddr
}
