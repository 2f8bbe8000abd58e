package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/openpayments/genesis-payment-service/internal/domain"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// writeError maps service errors onto HTTP statuses. APIError already carries
// its status; domain errors map by code. Raw internal detail never reaches
// the caller.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var apiErr *domain.APIError
	if errors.As(err, &apiErr) {
		h.writeJSON(w, apiErr.StatusCode, errorResponse{
			Code:    string(domain.GetErrorCode(apiErr.Err)),
			Message: apiErr.Message,
		})
		return
	}

	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		h.writeJSON(w, statusFor(domainErr.Code), errorResponse{
			Code:    string(domainErr.Code),
			Message: domainErr.Message,
		})
		return
	}

	h.logger.Error("Unhandled error on REST surface", zap.Error(err))
	h.writeJSON(w, http.StatusInternalServerError, errorResponse{
		Code:    string(domain.ErrorCodeInternalError),
		Message: "internal error",
	})
}

func statusFor(code domain.ErrorCode) int {
	switch code {
	case domain.ErrorCodeOrderNotFound, domain.ErrorCodeTxnNotFound:
		return http.StatusNotFound
	case domain.ErrorCodeValidationFailed, domain.ErrorCodeValidationAmountInvalid:
		return http.StatusBadRequest
	case domain.ErrorCodeConfigMethodUnavailable:
		return http.StatusServiceUnavailable
	case domain.ErrorCodeConfigCurrencyNotAllowed,
		domain.ErrorCodeTxnNotCapturable,
		domain.ErrorCodeTxnNotRefundable,
		domain.ErrorCodeTxnNotVoidable,
		domain.ErrorCodeTxnInvalidReference,
		domain.ErrorCodeOrderInvalidState,
		domain.ErrorCodeGatewayDeclined:
		return http.StatusUnprocessableEntity
	case domain.ErrorCodeGatewayError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
