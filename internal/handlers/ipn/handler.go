package ipn

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/openpayments/genesis-payment-service/internal/domain"
	"github.com/openpayments/genesis-payment-service/pkg/observability"
)

// Reconciler processes an authenticated notification and returns the echo
// body the gateway expects.
type Reconciler interface {
	HandleNotification(ctx context.Context, methodCode string, n *domain.Notification) (*domain.NotificationEcho, error)
}

// Handler receives gateway notifications. The gateway retries until it gets
// the echo back with a 200, so every failure path must pick its status with
// care: 403 tells the gateway the notification was rejected for good, 500
// asks it to retry.
type Handler struct {
	reconciler Reconciler
	logger     *zap.Logger
}

// NewHandler creates a notification handler.
func NewHandler(reconciler Reconciler, logger *zap.Logger) *Handler {
	return &Handler{reconciler: reconciler, logger: logger}
}

// ServeNotification handles POST /ipn/{method}.
func (h *Handler) ServeNotification(w http.ResponseWriter, r *http.Request) {
	methodCode := chi.URLParam(r, "method")

	if err := r.ParseForm(); err != nil {
		h.logger.Warn("Malformed notification body", zap.String("method", methodCode), zap.Error(err))
		observability.RecordNotification(methodCode, "rejected")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	n := domain.ParseNotification(r.PostForm)
	echo, err := h.reconciler.HandleNotification(r.Context(), methodCode, n)
	if err != nil {
		h.writeError(w, methodCode, n, err)
		return
	}

	body, err := echo.Render()
	if err != nil {
		h.logger.Error("Failed to render notification echo", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	observability.RecordNotification(methodCode, "reconciled")
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (h *Handler) writeError(w http.ResponseWriter, methodCode string, n *domain.Notification, err error) {
	switch domain.GetErrorCode(err) {
	case domain.ErrorCodeNotificationForged, domain.ErrorCodeConfigMethodUnavailable:
		observability.RecordNotification(methodCode, "forged")
		w.WriteHeader(http.StatusForbidden)
	case domain.ErrorCodeReconciliationRejected:
		// The gateway returned no transaction for the signed id; a retry
		// of the same notification can never succeed.
		observability.RecordNotification(methodCode, "rejected")
		w.WriteHeader(http.StatusForbidden)
	default:
		h.logger.Error("Notification processing failed",
			zap.String("method", methodCode),
			zap.String("signed_id", n.SignedID()),
			zap.Error(err),
		)
		observability.RecordNotification(methodCode, "failed")
		w.WriteHeader(http.StatusInternalServerError)
	}
}
