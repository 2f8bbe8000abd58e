package domain

// GatewayStatus is the transaction status reported by the Genesis gateway.
type GatewayStatus string

const (
	StatusNew          GatewayStatus = "new"
	StatusApproved     GatewayStatus = "approved"
	StatusDeclined     GatewayStatus = "declined"
	StatusPending      GatewayStatus = "pending"
	StatusPendingAsync GatewayStatus = "pending_async" // 3-D Secure redirect in flight
	StatusError        GatewayStatus = "error"
	StatusVoided       GatewayStatus = "voided"
	StatusTimeout      GatewayStatus = "timeout"
	StatusRefunded     GatewayStatus = "refunded"
)

// ShouldBePending reports whether a transaction carrying this status must be
// recorded as pending. Only a final approval clears the pending flag.
func (s GatewayStatus) ShouldBePending() bool {
	return s != StatusApproved
}

// IsKnown reports whether the status is part of the mapped status set.
// Unmapped statuses leave the order untouched and are logged by the caller.
func (s GatewayStatus) IsKnown() bool {
	switch s {
	case StatusNew, StatusApproved, StatusDeclined, StatusPending,
		StatusPendingAsync, StatusError, StatusVoided, StatusTimeout, StatusRefunded:
		return true
	}
	return false
}
