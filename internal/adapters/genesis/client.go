package genesis

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/openpayments/genesis-payment-service/internal/config"
	"github.com/openpayments/genesis-payment-service/internal/domain"
	"github.com/openpayments/genesis-payment-service/internal/domain/ports"
)

// Client implements ports.GatewayClient against the Genesis XML API.
// Credentials arrive with every call; the client holds only endpoints and the
// HTTP transport.
type Client struct {
	config     config.GatewayConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a gateway client.
func NewClient(cfg config.GatewayConfig, logger *zap.Logger) *Client {
	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		logger: logger,
	}
}

func (c *Client) gatewayURL(creds ports.Credentials) string {
	if creds.TestMode {
		return c.config.StagingGatewayURL
	}
	return c.config.GatewayURL
}

func (c *Client) wpfURL(creds ports.Credentials) string {
	if creds.TestMode {
		return c.config.StagingWPFURL
	}
	return c.config.WPFURL
}

// CreateWPFSession starts a hosted checkout session.
func (c *Client) CreateWPFSession(ctx context.Context, creds ports.Credentials, req *ports.WPFRequest) (*ports.GatewayResponse, error) {
	endpoint := c.wpfURL(creds) + "/wpf"

	var resp wpfResponse
	if err := c.post(ctx, creds, endpoint, buildWPFRequest(req), &resp); err != nil {
		return nil, err
	}

	c.logger.Info("WPF session created",
		zap.String("transaction_id", req.TransactionID),
		zap.String("unique_id", resp.UniqueID),
		zap.String("status", resp.Status),
	)
	return resp.toGatewayResponse(), nil
}

// Process executes a reference transaction on the terminal in creds.Token.
func (c *Client) Process(ctx context.Context, creds ports.Credentials, req *ports.ReferenceRequest) (*ports.GatewayResponse, error) {
	if creds.Token == "" {
		return nil, domain.NewDomainError(domain.ErrorCodeConfigMethodUnavailable,
			"no terminal token configured for reference transactions")
	}
	if req.ReferenceID == "" {
		return nil, domain.NewDomainError(domain.ErrorCodeTxnInvalidReference,
			"reference transaction requires the unique id of a prior transaction")
	}

	endpoint := fmt.Sprintf("%s/process/%s", c.gatewayURL(creds), creds.Token)

	var resp paymentResponse
	if err := c.post(ctx, creds, endpoint, buildReferenceRequest(req), &resp); err != nil {
		return nil, err
	}

	c.logger.Info("Reference transaction processed",
		zap.String("type", string(req.Type)),
		zap.String("transaction_id", req.TransactionID),
		zap.String("reference_id", req.ReferenceID),
		zap.String("status", resp.Status),
	)
	return resp.toGatewayResponse(), nil
}

// Reconcile fetches the trusted state of a direct transaction.
func (c *Client) Reconcile(ctx context.Context, creds ports.Credentials, uniqueID string) (*domain.Reconciliation, error) {
	endpoint := c.gatewayURL(creds) + "/reconcile/"
	if creds.Token != "" {
		endpoint = fmt.Sprintf("%s/reconcile/%s", c.gatewayURL(creds), creds.Token)
	}

	var resp paymentResponse
	if err := c.post(ctx, creds, endpoint, &reconcileRequest{UniqueID: uniqueID}, &resp); err != nil {
		return nil, err
	}
	return resp.toReconciliation(), nil
}

// ReconcileWPF fetches the trusted state of a WPF session.
func (c *Client) ReconcileWPF(ctx context.Context, creds ports.Credentials, uniqueID string) (*domain.Reconciliation, error) {
	endpoint := c.wpfURL(creds) + "/wpf/reconcile"

	var resp wpfResponse
	if err := c.post(ctx, creds, endpoint, &wpfReconcileRequest{UniqueID: uniqueID}, &resp); err != nil {
		return nil, err
	}
	return resp.toReconciliation(), nil
}

// post marshals body, sends it with basic auth and decodes the reply into
// out. Gateway-side failures come back as APIError so callers never leak raw
// gateway detail to merchants.
func (c *Client) post(ctx context.Context, creds ports.Credentials, endpoint string, body, out any) error {
	payload, err := xml.Marshal(body)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeInternalError, "marshal gateway request", err)
	}
	payload = append([]byte(xml.Header), payload...)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return domain.WrapError(domain.ErrorCodeInternalError, "build gateway request", err)
	}
	req.Header.Set("Content-Type", "application/xml")
	req.SetBasicAuth(creds.Username, creds.Password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Gateway unreachable", zap.String("endpoint", endpoint), zap.Error(err))
		return domain.NewAPIError("payment gateway is unreachable", http.StatusBadGateway, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.NewAPIError("failed to read gateway response", http.StatusBadGateway, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var gwErr errorResponse
		message := "gateway rejected the request"
		if xml.Unmarshal(raw, &gwErr) == nil && gwErr.TechnicalMsg != "" {
			message = gwErr.TechnicalMsg
		}
		c.logger.Warn("Gateway returned an error",
			zap.String("endpoint", endpoint),
			zap.Int("http_status", resp.StatusCode),
			zap.String("code", gwErr.Code),
			zap.String("message", message),
		)
		return domain.NewAPIError(message, resp.StatusCode,
			domain.NewDomainError(domain.ErrorCodeGatewayError, message).WithDetail("code", gwErr.Code))
	}

	if err := xml.Unmarshal(raw, out); err != nil {
		return domain.NewAPIError("failed to decode gateway response", http.StatusBadGateway, err)
	}
	return nil
}
