package ports

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/openpayments/genesis-payment-service/internal/domain"
)

// Credentials carries the gateway credentials for a single call. They are
// resolved from method configuration per request; no client-level credential
// state exists.
type Credentials struct {
	Username string
	Password string
	Token    string // terminal token, overridable per reference transaction
	TestMode bool
}

// WPFRequest describes a Web Payment Form session to create for an order.
type WPFRequest struct {
	TransactionID      string // composite "{incrementID}-{hash}" id
	Amount             decimal.Decimal
	Currency           string
	Usage              string
	Description        string
	CustomerEmail      string
	RemoteIP           string
	NotificationURL    string
	ReturnSuccessURL   string
	ReturnCancelURL    string
	ReturnFailureURL   string
	TransactionTypes   []string
	Tokenization       bool
	ThreeDSAllowed     bool
	ChallengeIndicator string
	ScaExemption       string
	ScaExemptionAmount decimal.Decimal
	BankCodes          []string
}

// ReferenceRequest describes a capture, refund or void issued against a prior
// transaction.
type ReferenceRequest struct {
	Type          domain.TransactionType
	TransactionID string // new composite id for this reference transaction
	ReferenceID   string // gateway unique_id of the prior transaction
	Amount        decimal.Decimal
	Currency      string
	RemoteIP      string
	Usage         string
}

// GatewayResponse is the subset of the gateway reply the service consumes.
type GatewayResponse struct {
	UniqueID        string
	TransactionID   string
	Type            domain.TransactionType
	Status          domain.GatewayStatus
	Amount          decimal.Decimal
	Currency        string
	RedirectURL     string
	Message         string
	TechnicalMsg    string
}

// IsApproved reports whether the gateway approved the request.
func (r *GatewayResponse) IsApproved() bool {
	return r.Status == domain.StatusApproved
}

// GatewayClient talks to the Genesis gateway. Implementations take the
// credentials with every call.
type GatewayClient interface {
	// CreateWPFSession starts a hosted checkout session and returns its
	// redirect URL.
	CreateWPFSession(ctx context.Context, creds Credentials, req *WPFRequest) (*GatewayResponse, error)

	// Process executes a reference transaction (capture/refund/void) on the
	// terminal identified by creds.Token.
	Process(ctx context.Context, creds Credentials, req *ReferenceRequest) (*GatewayResponse, error)

	// ReconcileWPF fetches the trusted state of a WPF session.
	ReconcileWPF(ctx context.Context, creds Credentials, uniqueID string) (*domain.Reconciliation, error)

	// Reconcile fetches the trusted state of a direct transaction.
	Reconcile(ctx context.Context, creds Credentials, uniqueID string) (*domain.Reconciliation, error)
}
