package domain

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// TransactionIDLength is the default length of generated composite ids. The
// gateway caps transaction ids at 255 characters; 30 keeps them readable in
// merchant tooling.
const TransactionIDLength = 30

// GenerateTransactionID builds the composite merchant transaction id
// "{incrementID}-{hash}" sent to the gateway at checkout. The random suffix
// makes consecutive ids for the same order distinct; the result never exceeds
// maxLength.
func GenerateTransactionID(incrementID string, maxLength int) (string, error) {
	prefix := incrementID + "-"
	if maxLength <= len(prefix) {
		return "", fmt.Errorf("transaction id length %d cannot fit order %q", maxLength, incrementID)
	}

	suffixLen := maxLength - len(prefix)
	buf := make([]byte, (suffixLen+1)/2)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate transaction id: %w", err)
	}

	id := prefix + hex.EncodeToString(buf)
	if len(id) > maxLength {
		id = id[:maxLength]
	}
	return id, nil
}

// OrderIncrementID extracts the order increment id from a composite
// transaction id.
func OrderIncrementID(transactionID string) (string, error) {
	idx := strings.LastIndex(transactionID, "-")
	if idx <= 0 {
		return "", NewDomainError(ErrorCodeNotificationInvalid,
			"transaction id is not in {order}-{hash} form").WithDetail("transaction_id", transactionID)
	}
	return transactionID[:idx], nil
}
