package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the Genesis transaction type reported by the gateway
// or requested by the service.
type TransactionType string

const (
	TransactionTypeAuthorize   TransactionType = "authorize"
	TransactionTypeAuthorize3D TransactionType = "authorize3d"
	TransactionTypeSale        TransactionType = "sale"
	TransactionTypeSale3D      TransactionType = "sale3d"
	TransactionTypeCapture     TransactionType = "capture"
	TransactionTypeRefund      TransactionType = "refund"
	TransactionTypeVoid        TransactionType = "void"

	// Wallet types behave as authorize or sale depending on which payment
	// subtype the merchant selected (e.g. "google_pay_authorize").
	TransactionTypeGooglePay TransactionType = "google_pay"
	TransactionTypePayPal    TransactionType = "pay_pal"
	TransactionTypeApplePay  TransactionType = "apple_pay"

	TransactionTypeInitRecurringSale TransactionType = "init_recurring_sale"
)

// Payment subtype suffixes used in the merchant's selected transaction types
// to disambiguate wallet behavior.
const (
	PaymentTypeAuthorize = "authorize"
	PaymentTypeSale      = "sale"
)

// walletPrefixes maps wallet transaction types to the prefix their payment
// subtypes carry in method configuration.
var walletPrefixes = map[TransactionType]string{
	TransactionTypeGooglePay: "google_pay_",
	TransactionTypePayPal:    "pay_pal_",
	TransactionTypeApplePay:  "apple_pay_",
}

// IsWallet reports whether the type is one of the wallet types whose
// authorize/sale behavior depends on merchant configuration.
func (t TransactionType) IsWallet() bool {
	_, ok := walletPrefixes[t]
	return ok
}

// IsAuthorize reports whether the type is a pure authorization.
func (t TransactionType) IsAuthorize() bool {
	return t == TransactionTypeAuthorize || t == TransactionTypeAuthorize3D
}

// CanCapture reports whether a transaction of this type can serve as the
// reference for a capture.
func (t TransactionType) CanCapture() bool {
	return t.IsAuthorize() || t.IsWallet()
}

// CanRefund reports whether a transaction of this type can serve as the
// reference for a refund.
func (t TransactionType) CanRefund() bool {
	switch t {
	case TransactionTypeCapture, TransactionTypeSale, TransactionTypeSale3D,
		TransactionTypeInitRecurringSale,
		TransactionTypeGooglePay, TransactionTypePayPal, TransactionTypeApplePay:
		return true
	}
	return false
}

// CanVoid reports whether a transaction of this type can serve as the
// reference for a void.
func (t TransactionType) CanVoid() bool {
	return t.IsAuthorize() || t == TransactionTypeCapture || t.IsWallet()
}

// WalletPaymentTypeSelected reports whether the merchant selected the given
// payment subtype for a wallet transaction type, e.g. whether
// "google_pay_authorize" appears in the selected transaction types.
func WalletPaymentTypeSelected(t TransactionType, paymentType string, selectedTypes []string) bool {
	prefix, ok := walletPrefixes[t]
	if !ok {
		return false
	}
	want := prefix + paymentType
	for _, s := range selectedTypes {
		if strings.EqualFold(s, want) {
			return true
		}
	}
	return false
}

// RegistersAuthorization decides whether a gateway notification for the given
// transaction type registers an authorization (as opposed to a capture).
// Authorize-class types always do; wallet types do when the merchant selected
// their authorize subtype; everything else registers a capture.
func RegistersAuthorization(t TransactionType, selectedTypes []string) bool {
	if t.IsAuthorize() {
		return true
	}
	if t.IsWallet() {
		return WalletPaymentTypeSelected(t, PaymentTypeAuthorize, selectedTypes)
	}
	return false
}

// ShouldCloseTransaction decides whether the transaction created for a
// notification (and its parent) should be closed. Voidable types stay open so
// a later capture or void can reference them; wallets stay open only when the
// merchant selected their authorize subtype.
func ShouldCloseTransaction(t TransactionType, selectedTypes []string) bool {
	if t.IsWallet() {
		return !WalletPaymentTypeSelected(t, PaymentTypeAuthorize, selectedTypes)
	}
	switch t {
	case TransactionTypeAuthorize, TransactionTypeAuthorize3D:
		return false
	}
	return true
}

// PaymentTransaction is a gateway transaction recorded against an order.
// Every transaction the service creates carries its type and gateway status;
// reference lookups for capture/refund/void filter on them.
type PaymentTransaction struct {
	ID            string
	OrderID       string
	TxnID         string // composite merchant id: "{incrementID}-{hash}"
	ParentTxnID   string
	UniqueID      string // gateway-side id
	Type          TransactionType
	Status        GatewayStatus
	Amount        decimal.Decimal
	Currency      string
	TerminalToken string
	RedirectURL   string
	Message       string
	TechnicalMsg  string
	Pending       bool
	Closed        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsApproved reports whether the gateway approved the transaction.
func (t *PaymentTransaction) IsApproved() bool {
	return t.Status == StatusApproved
}
