package domain

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/xml"
	"net/url"

	"github.com/shopspring/decimal"
)

// Notification is the raw IPN payload the gateway POSTs to the service. For
// WPF (checkout) notifications the session id arrives as wpf_unique_id and
// the payment transaction id as payment_transaction_unique_id; direct
// notifications carry unique_id only.
type Notification struct {
	UniqueID        string
	WPFUniqueID     string
	PaymentUniqueID string
	Signature       string
	Status          GatewayStatus
	RawParams       url.Values
}

// ParseNotification builds a Notification from form-encoded POST data.
func ParseNotification(params url.Values) *Notification {
	n := &Notification{
		UniqueID:        params.Get("unique_id"),
		WPFUniqueID:     params.Get("wpf_unique_id"),
		PaymentUniqueID: params.Get("payment_transaction_unique_id"),
		Signature:       params.Get("signature"),
		RawParams:       params,
	}
	if n.WPFUniqueID != "" {
		n.Status = GatewayStatus(params.Get("wpf_status"))
	} else {
		n.Status = GatewayStatus(params.Get("status"))
	}
	return n
}

// IsCheckout reports whether this is a WPF (checkout) notification.
func (n *Notification) IsCheckout() bool {
	return n.WPFUniqueID != ""
}

// SignedID returns the identifier the gateway signed: the WPF session id for
// checkout notifications, the transaction unique id otherwise.
func (n *Notification) SignedID() string {
	if n.IsCheckout() {
		return n.WPFUniqueID
	}
	return n.UniqueID
}

// IsAuthentic verifies the notification signature. The gateway signs
// hex(hash(signed_id + api_password)); the hash function is selected by the
// signature length (SHA-1, SHA-256 or SHA-512).
func (n *Notification) IsAuthentic(apiPassword string) bool {
	id := n.SignedID()
	if id == "" || n.Signature == "" {
		return false
	}

	var sum []byte
	switch len(n.Signature) {
	case 40:
		h := sha1.Sum([]byte(id + apiPassword))
		sum = h[:]
	case 64:
		h := sha256.Sum256([]byte(id + apiPassword))
		sum = h[:]
	case 128:
		h := sha512.Sum512([]byte(id + apiPassword))
		sum = h[:]
	default:
		return false
	}

	expected := hex.EncodeToString(sum)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(n.Signature)) == 1
}

// Reconciliation is the trusted transaction state fetched back from the
// gateway after a notification authenticates. Handling aborts when UniqueID
// is empty; TransactionID must be the composite "{incrementID}-{hash}" id the
// service generated at checkout time.
type Reconciliation struct {
	UniqueID        string
	TransactionID   string
	TransactionType TransactionType
	Status          GatewayStatus
	Amount          decimal.Decimal
	Currency        string
	TerminalToken   string
	RedirectURL     string
	Message         string
	TechnicalMsg    string
}

// NotificationEcho is the XML body the gateway expects back on a handled
// notification. Exactly one of the two ids is set.
type NotificationEcho struct {
	XMLName     xml.Name `xml:"notification_echo"`
	WPFUniqueID string   `xml:"wpf_unique_id,omitempty"`
	UniqueID    string   `xml:"unique_id,omitempty"`
}

// Render serializes the echo with an XML declaration.
func (e *NotificationEcho) Render() ([]byte, error) {
	body, err := xml.Marshal(e)
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}
