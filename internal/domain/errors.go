package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a machine-readable error code
type ErrorCode string

const (
	// Configuration errors (CONFIG_*)
	ErrorCodeConfigMethodUnavailable  ErrorCode = "CONFIG_METHOD_UNAVAILABLE"
	ErrorCodeConfigCurrencyNotAllowed ErrorCode = "CONFIG_CURRENCY_NOT_ALLOWED"

	// Order errors (ORDER_*)
	ErrorCodeOrderNotFound     ErrorCode = "ORDER_NOT_FOUND"
	ErrorCodeOrderInvalidState ErrorCode = "ORDER_INVALID_STATE"

	// Transaction errors (TXN_*)
	ErrorCodeTxnNotFound         ErrorCode = "TXN_NOT_FOUND"
	ErrorCodeTxnNotCapturable    ErrorCode = "TXN_NOT_CAPTURABLE"
	ErrorCodeTxnNotRefundable    ErrorCode = "TXN_NOT_REFUNDABLE"
	ErrorCodeTxnNotVoidable      ErrorCode = "TXN_NOT_VOIDABLE"
	ErrorCodeTxnInvalidReference ErrorCode = "TXN_INVALID_REFERENCE"

	// Reconciliation errors (IPN_*)
	ErrorCodeNotificationInvalid    ErrorCode = "IPN_NOTIFICATION_INVALID"
	ErrorCodeNotificationForged     ErrorCode = "IPN_SIGNATURE_MISMATCH"
	ErrorCodeReconciliationRejected ErrorCode = "IPN_RECONCILIATION_REJECTED"

	// Gateway errors (GATEWAY_*)
	ErrorCodeGatewayError    ErrorCode = "GATEWAY_ERROR"
	ErrorCodeGatewayDeclined ErrorCode = "GATEWAY_DECLINED"

	// Validation errors (VALIDATION_*)
	ErrorCodeValidationFailed        ErrorCode = "VALIDATION_FAILED"
	ErrorCodeValidationAmountInvalid ErrorCode = "VALIDATION_AMOUNT_INVALID"

	// Internal errors (INTERNAL_*)
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
	ErrorCodeDatabaseError ErrorCode = "INTERNAL_DATABASE_ERROR"
)

// DomainError represents a structured domain error with error code and context
type DomainError struct {
	Err     error
	Details map[string]interface{}
	Code    ErrorCode
	Message string
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// WithDetail adds a detail field to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with a domain error code
func WrapError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Err:     err,
	}
}

// IsDomainError checks if an error is a DomainError with the given code
func IsDomainError(err error, code ErrorCode) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error, returns empty string if not a DomainError
func GetErrorCode(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// APIError masks a gateway or internal failure for the HTTP surface. The
// status code is always forced into the 400-599 range so callers never echo a
// success code for a failed operation.
type APIError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (status %d): %v", e.Message, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// NewAPIError wraps err with a user-facing message. Codes outside 400-599
// collapse to 500.
func NewAPIError(message string, statusCode int, err error) *APIError {
	if statusCode < 400 || statusCode > 599 {
		statusCode = 500
	}
	return &APIError{
		Message:    message,
		StatusCode: statusCode,
		Err:        err,
	}
}

// Sentinel errors used where no structured context is needed.
var (
	ErrOrderNotFound       = NewDomainError(ErrorCodeOrderNotFound, "order not found")
	ErrTransactionNotFound = NewDomainError(ErrorCodeTxnNotFound, "transaction not found")
	ErrNoAuthorization     = NewDomainError(ErrorCodeTxnNotCapturable, "no authorize transaction exists for this order")
	ErrNoCapture           = NewDomainError(ErrorCodeTxnNotRefundable, "no capture transaction exists for this order")
	ErrNoReference         = NewDomainError(ErrorCodeTxnNotVoidable, "no voidable reference transaction exists for this order")
	ErrNotRefundable       = NewDomainError(ErrorCodeTxnNotRefundable, "transaction type does not support refunds")
	ErrMissingUniqueID     = NewDomainError(ErrorCodeReconciliationRejected, "reconciliation object has no unique_id")
	ErrForgedNotification  = NewDomainError(ErrorCodeNotificationForged, "notification signature verification failed")
	ErrMethodUnavailable   = NewDomainError(ErrorCodeConfigMethodUnavailable, "payment method is not configured")
	ErrCurrencyNotAllowed  = NewDomainError(ErrorCodeConfigCurrencyNotAllowed, "currency is not allowed for this payment method")
)
