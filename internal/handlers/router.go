package handlers

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/openpayments/genesis-payment-service/internal/config"
	"github.com/openpayments/genesis-payment-service/internal/handlers/api"
	"github.com/openpayments/genesis-payment-service/internal/handlers/ipn"
	"github.com/openpayments/genesis-payment-service/internal/handlers/redirect"
	"github.com/openpayments/genesis-payment-service/internal/services/payment"
	"github.com/openpayments/genesis-payment-service/internal/services/reconcile"
	"github.com/openpayments/genesis-payment-service/pkg/middleware"
	"github.com/openpayments/genesis-payment-service/pkg/observability"
)

// NewRouter wires the payment surface: the gateway-facing notification and
// redirect endpoints and the API-key-protected merchant REST API.
func NewRouter(
	cfg *config.Config,
	payments *payment.Service,
	reconciler *reconcile.Service,
	rateLimiter *middleware.RateLimiter,
	logger *zap.Logger,
) chi.Router {
	router := chi.NewRouter()
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.Timeout(60 * time.Second))
	router.Use(observability.HTTPMetrics)

	ipnHandler := ipn.NewHandler(reconciler, logger)
	redirectHandler := redirect.NewHandler(cfg, logger)
	apiHandler := api.NewHandler(payments, logger)

	// Gateway-facing endpoints. Rate limited, no API key: the gateway
	// authenticates through the notification signature instead.
	router.Group(func(r chi.Router) {
		r.Use(rateLimiter.Middleware)
		r.Post("/ipn/{method}", ipnHandler.ServeNotification)
		r.Get("/redirect/{method}", redirectHandler.ServeRedirect)
		r.Post("/redirect/{method}", redirectHandler.ServeRedirect)
	})

	// Merchant REST surface.
	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.AdminAPIKey))
		r.Post("/checkout", apiHandler.Checkout)
		r.Route("/orders/{incrementID}", func(r chi.Router) {
			r.Get("/", apiHandler.GetOrder)
			r.Post("/capture", apiHandler.Capture)
			r.Post("/refund", apiHandler.Refund)
			r.Post("/void", apiHandler.Void)
		})
	})

	return router
}
