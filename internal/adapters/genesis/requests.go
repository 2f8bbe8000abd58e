package genesis

import (
	"encoding/xml"

	"github.com/openpayments/genesis-payment-service/internal/domain"
	"github.com/openpayments/genesis-payment-service/internal/domain/ports"
)

// wpfPaymentRequest is the XML body for creating a Web Payment Form session.
// Amounts are sent in minor units for the currency.
type wpfPaymentRequest struct {
	XMLName            xml.Name             `xml:"wpf_payment"`
	TransactionID      string               `xml:"transaction_id"`
	Usage              string               `xml:"usage,omitempty"`
	Description        string               `xml:"description,omitempty"`
	NotificationURL    string               `xml:"notification_url"`
	ReturnSuccessURL   string               `xml:"return_success_url"`
	ReturnCancelURL    string               `xml:"return_cancel_url"`
	ReturnFailureURL   string               `xml:"return_failure_url"`
	Amount             int64                `xml:"amount"`
	Currency           string               `xml:"currency"`
	CustomerEmail      string               `xml:"customer_email,omitempty"`
	RemoteIP           string               `xml:"remote_ip,omitempty"`
	TransactionTypes   wpfTransactionTypes  `xml:"transaction_types"`
	RememberCard       bool                 `xml:"remember_card,omitempty"`
	ThreedsV2Params    *threedsV2Params     `xml:"threeds_v2_params,omitempty"`
	ScaParams          *scaParams           `xml:"sca_params,omitempty"`
}

type wpfTransactionTypes struct {
	Types []wpfTransactionType `xml:"transaction_type"`
}

type wpfTransactionType struct {
	Name      string   `xml:"name,attr"`
	BankCodes []string `xml:"bank_codes>bank_code,omitempty"`
}

type threedsV2Params struct {
	ChallengeIndicator string `xml:"control>challenge_indicator,omitempty"`
}

type scaParams struct {
	Exemption string `xml:"exemption,omitempty"`
}

// paymentTransactionRequest is the XML body for a reference transaction
// (capture, refund or void) issued against a terminal.
type paymentTransactionRequest struct {
	XMLName       xml.Name `xml:"payment_transaction"`
	Type          string   `xml:"transaction_type"`
	TransactionID string   `xml:"transaction_id"`
	Usage         string   `xml:"usage,omitempty"`
	RemoteIP      string   `xml:"remote_ip,omitempty"`
	ReferenceID   string   `xml:"reference_id"`
	Amount        *int64   `xml:"amount,omitempty"`
	Currency      string   `xml:"currency,omitempty"`
}

// reconcileRequest is the XML body for both reconcile endpoints.
type reconcileRequest struct {
	XMLName  xml.Name `xml:"reconcile"`
	UniqueID string   `xml:"unique_id"`
}

type wpfReconcileRequest struct {
	XMLName  xml.Name `xml:"wpf_reconcile"`
	UniqueID string   `xml:"unique_id"`
}

// paymentResponse is the gateway reply for reference transactions and direct
// reconciliation.
type paymentResponse struct {
	XMLName         xml.Name `xml:"payment_response"`
	TransactionType string   `xml:"transaction_type"`
	Status          string   `xml:"status"`
	UniqueID        string   `xml:"unique_id"`
	TransactionID   string   `xml:"transaction_id"`
	Code            string   `xml:"code"`
	TerminalToken   string   `xml:"terminal_token"`
	Amount          int64    `xml:"amount"`
	Currency        string   `xml:"currency"`
	RedirectURL     string   `xml:"redirect_url"`
	Message         string   `xml:"message"`
	TechnicalMsg    string   `xml:"technical_message"`
}

// wpfResponse is the gateway reply for WPF session creation and WPF
// reconciliation. A reconciled session nests the settled payment transaction.
type wpfResponse struct {
	XMLName            xml.Name           `xml:"wpf_payment"`
	Status             string             `xml:"status"`
	UniqueID           string             `xml:"unique_id"`
	TransactionID      string             `xml:"transaction_id"`
	Amount             int64              `xml:"amount"`
	Currency           string             `xml:"currency"`
	RedirectURL        string             `xml:"redirect_url"`
	Message            string             `xml:"message"`
	TechnicalMsg       string             `xml:"technical_message"`
	PaymentTransaction *wpfNestedPayment  `xml:"payment_transaction"`
}

type wpfNestedPayment struct {
	TransactionType string `xml:"transaction_type"`
	Status          string `xml:"status"`
	UniqueID        string `xml:"unique_id"`
	TransactionID   string `xml:"transaction_id"`
	TerminalToken   string `xml:"terminal_token"`
	Amount          int64  `xml:"amount"`
	Currency        string `xml:"currency"`
	Message         string `xml:"message"`
	TechnicalMsg    string `xml:"technical_message"`
}

// errorResponse is the gateway's error envelope on non-2xx replies.
type errorResponse struct {
	XMLName      xml.Name `xml:"error"`
	Code         string   `xml:"code"`
	Status       string   `xml:"status"`
	Message      string   `xml:"message"`
	TechnicalMsg string   `xml:"technical_message"`
}

func buildWPFRequest(req *ports.WPFRequest) *wpfPaymentRequest {
	out := &wpfPaymentRequest{
		TransactionID:    req.TransactionID,
		Usage:            req.Usage,
		Description:      req.Description,
		NotificationURL:  req.NotificationURL,
		ReturnSuccessURL: req.ReturnSuccessURL,
		ReturnCancelURL:  req.ReturnCancelURL,
		ReturnFailureURL: req.ReturnFailureURL,
		Amount:           domain.ToMinorUnits(req.Amount, req.Currency),
		Currency:         req.Currency,
		CustomerEmail:    req.CustomerEmail,
		RemoteIP:         req.RemoteIP,
		RememberCard:     req.Tokenization,
	}

	for _, name := range req.TransactionTypes {
		out.TransactionTypes.Types = append(out.TransactionTypes.Types, wpfTransactionType{
			Name:      name,
			BankCodes: req.BankCodes,
		})
	}

	if req.ThreeDSAllowed && req.ChallengeIndicator != "" {
		out.ThreedsV2Params = &threedsV2Params{ChallengeIndicator: req.ChallengeIndicator}
	}
	if req.ScaExemption != "" && req.ScaExemptionAmount.IsPositive() &&
		req.Amount.LessThanOrEqual(req.ScaExemptionAmount) {
		out.ScaParams = &scaParams{Exemption: req.ScaExemption}
	}

	return out
}

func buildReferenceRequest(req *ports.ReferenceRequest) *paymentTransactionRequest {
	out := &paymentTransactionRequest{
		Type:          string(req.Type),
		TransactionID: req.TransactionID,
		Usage:         req.Usage,
		RemoteIP:      req.RemoteIP,
		ReferenceID:   req.ReferenceID,
	}

	// Voids release the full authorization; the gateway rejects a void that
	// carries an amount.
	if req.Type != domain.TransactionTypeVoid {
		minor := domain.ToMinorUnits(req.Amount, req.Currency)
		out.Amount = &minor
		out.Currency = req.Currency
	}

	return out
}

func (r *paymentResponse) toGatewayResponse() *ports.GatewayResponse {
	return &ports.GatewayResponse{
		UniqueID:      r.UniqueID,
		TransactionID: r.TransactionID,
		Type:          domain.TransactionType(r.TransactionType),
		Status:        domain.GatewayStatus(r.Status),
		Amount:        domain.FromMinorUnits(r.Amount, r.Currency),
		Currency:      r.Currency,
		RedirectURL:   r.RedirectURL,
		Message:       r.Message,
		TechnicalMsg:  r.TechnicalMsg,
	}
}

func (r *wpfResponse) toGatewayResponse() *ports.GatewayResponse {
	return &ports.GatewayResponse{
		UniqueID:      r.UniqueID,
		TransactionID: r.TransactionID,
		Status:        domain.GatewayStatus(r.Status),
		Amount:        domain.FromMinorUnits(r.Amount, r.Currency),
		Currency:      r.Currency,
		RedirectURL:   r.RedirectURL,
		Message:       r.Message,
		TechnicalMsg:  r.TechnicalMsg,
	}
}

func (r *paymentResponse) toReconciliation() *domain.Reconciliation {
	return &domain.Reconciliation{
		UniqueID:        r.UniqueID,
		TransactionID:   r.TransactionID,
		TransactionType: domain.TransactionType(r.TransactionType),
		Status:          domain.GatewayStatus(r.Status),
		Amount:          domain.FromMinorUnits(r.Amount, r.Currency),
		Currency:        r.Currency,
		TerminalToken:   r.TerminalToken,
		RedirectURL:     r.RedirectURL,
		Message:         r.Message,
		TechnicalMsg:    r.TechnicalMsg,
	}
}

// toReconciliation flattens a reconciled WPF session. The nested payment
// transaction supplies the transaction type and terminal token; the session
// status stays authoritative for the overall outcome.
func (r *wpfResponse) toReconciliation() *domain.Reconciliation {
	rec := &domain.Reconciliation{
		UniqueID:      r.UniqueID,
		TransactionID: r.TransactionID,
		Status:        domain.GatewayStatus(r.Status),
		Amount:        domain.FromMinorUnits(r.Amount, r.Currency),
		Currency:      r.Currency,
		RedirectURL:   r.RedirectURL,
		Message:       r.Message,
		TechnicalMsg:  r.TechnicalMsg,
	}

	if p := r.PaymentTransaction; p != nil {
		rec.TransactionType = domain.TransactionType(p.TransactionType)
		rec.TerminalToken = p.TerminalToken
		if p.TransactionID != "" {
			rec.TransactionID = p.TransactionID
		}
		if p.UniqueID != "" && rec.Status == domain.StatusApproved {
			rec.Amount = domain.FromMinorUnits(p.Amount, p.Currency)
			rec.Currency = p.Currency
		}
		if rec.Message == "" {
			rec.Message = p.Message
		}
		if rec.TechnicalMsg == "" {
			rec.TechnicalMsg = p.TechnicalMsg
		}
	}

	return rec
}
