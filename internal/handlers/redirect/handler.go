package redirect

import (
	"fmt"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/openpayments/genesis-payment-service/internal/config"
)

// breakoutPage escapes an iframe by retargeting the top window. Methods that
// render the payment form inside an iframe land here after the gateway
// redirects the frame, not the page.
var breakoutPage = template.Must(template.New("breakout").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body>
<script>
if (window.top !== window.self) {
	window.top.location.href = {{.}};
} else {
	window.location.href = {{.}};
}
</script>
</body>
</html>
`))

// Handler sends customers back to the storefront after the gateway returns
// them from the hosted payment page.
type Handler struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewHandler creates a redirect handler.
func NewHandler(cfg *config.Config, logger *zap.Logger) *Handler {
	return &Handler{cfg: cfg, logger: logger}
}

// ServeRedirect handles GET /redirect/{method}?action=success|cancel|failure.
func (h *Handler) ServeRedirect(w http.ResponseWriter, r *http.Request) {
	methodCode := chi.URLParam(r, "method")
	action := r.URL.Query().Get("action")

	var target string
	switch action {
	case "success":
		target = h.cfg.Redirect.SuccessURL
	case "cancel":
		target = h.cfg.Redirect.CancelURL
	case "failure":
		target = h.cfg.Redirect.FailureURL
	default:
		h.logger.Warn("Redirect with unsupported action",
			zap.String("method", methodCode),
			zap.String("action", action),
		)
		http.Error(w, fmt.Sprintf("unsupported redirect action %q", action), http.StatusBadRequest)
		return
	}

	h.logger.Info("Customer returned from gateway",
		zap.String("method", methodCode),
		zap.String("action", action),
	)

	method := h.cfg.Method(methodCode)
	if method != nil && method.IframeProcessingEnabled {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := breakoutPage.Execute(w, target); err != nil {
			h.logger.Error("Failed to render iframe breakout page", zap.Error(err))
		}
		return
	}

	http.Redirect(w, r, target, http.StatusFound)
}
