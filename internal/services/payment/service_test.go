package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openpayments/genesis-payment-service/internal/config"
	"github.com/openpayments/genesis-payment-service/internal/domain"
	"github.com/openpayments/genesis-payment-service/internal/domain/ports"
)

type fakeDB struct{}

func (fakeDB) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return fn(ctx, nil)
}

type fakeOrderRepo struct {
	orders  map[string]*domain.Order
	history []*domain.StatusHistoryEntry
}

func newFakeOrderRepo(orders ...*domain.Order) *fakeOrderRepo {
	r := &fakeOrderRepo{orders: make(map[string]*domain.Order)}
	for _, o := range orders {
		r.orders[o.IncrementID] = o
	}
	return r
}

func (r *fakeOrderRepo) GetByIncrementID(ctx context.Context, tx pgx.Tx, incrementID string) (*domain.Order, error) {
	o, ok := r.orders[incrementID]
	if !ok {
		return nil, domain.NewDomainError(domain.ErrorCodeOrderNotFound, "order not found")
	}
	return o, nil
}

func (r *fakeOrderRepo) Create(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	r.orders[order.IncrementID] = order
	return nil
}

func (r *fakeOrderRepo) Update(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	return nil
}

func (r *fakeOrderRepo) AddStatusHistory(ctx context.Context, tx pgx.Tx, entry *domain.StatusHistoryEntry) error {
	r.history = append(r.history, entry)
	return nil
}

type fakeTxnRepo struct {
	txns    []*domain.PaymentTransaction
	created []*domain.PaymentTransaction
}

func (r *fakeTxnRepo) Create(ctx context.Context, tx pgx.Tx, txn *domain.PaymentTransaction) error {
	r.created = append(r.created, txn)
	r.txns = append(r.txns, txn)
	return nil
}

func (r *fakeTxnRepo) Update(ctx context.Context, tx pgx.Tx, txn *domain.PaymentTransaction) error {
	return nil
}

func (r *fakeTxnRepo) GetByTxnID(ctx context.Context, tx pgx.Tx, txnID string) (*domain.PaymentTransaction, error) {
	for _, t := range r.txns {
		if t.TxnID == txnID {
			return t, nil
		}
	}
	return nil, domain.NewDomainError(domain.ErrorCodeTxnNotFound, "transaction not found")
}

func (r *fakeTxnRepo) GetByUniqueID(ctx context.Context, tx pgx.Tx, uniqueID string) (*domain.PaymentTransaction, error) {
	for _, t := range r.txns {
		if t.UniqueID == uniqueID {
			return t, nil
		}
	}
	return nil, domain.NewDomainError(domain.ErrorCodeTxnNotFound, "transaction not found")
}

func (r *fakeTxnRepo) LastByOrderAndTypes(ctx context.Context, tx pgx.Tx, orderID string, types ...domain.TransactionType) (*domain.PaymentTransaction, error) {
	for i := len(r.txns) - 1; i >= 0; i-- {
		t := r.txns[i]
		if t.OrderID != orderID || t.Closed {
			continue
		}
		for _, typ := range types {
			if t.Type == typ {
				return t, nil
			}
		}
	}
	return nil, domain.NewDomainError(domain.ErrorCodeTxnNotFound, "transaction not found")
}

type fakeGateway struct {
	wpfResp     *ports.GatewayResponse
	processResp *ports.GatewayResponse
	processErr  error
	lastWPF     *ports.WPFRequest
	lastProcess *ports.ReferenceRequest
	lastCreds   ports.Credentials
}

func (g *fakeGateway) CreateWPFSession(ctx context.Context, creds ports.Credentials, req *ports.WPFRequest) (*ports.GatewayResponse, error) {
	g.lastCreds = creds
	g.lastWPF = req
	return g.wpfResp, nil
}

func (g *fakeGateway) Process(ctx context.Context, creds ports.Credentials, req *ports.ReferenceRequest) (*ports.GatewayResponse, error) {
	g.lastCreds = creds
	g.lastProcess = req
	return g.processResp, g.processErr
}

func (g *fakeGateway) Reconcile(ctx context.Context, creds ports.Credentials, uniqueID string) (*domain.Reconciliation, error) {
	panic("not used")
}

func (g *fakeGateway) ReconcileWPF(ctx context.Context, creds ports.Credentials, uniqueID string) (*domain.Reconciliation, error) {
	panic("not used")
}

type fakePublisher struct {
	events []domain.PaymentEvent
}

func (p *fakePublisher) Publish(ctx context.Context, event domain.PaymentEvent) error {
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

const testMethod = "emp_checkout"

func testConfig() *config.Config {
	cfg := &config.Config{
		AllowedCurrencies: []string{"USD", "EUR"},
		PublicBaseURL:     "https://pay.example.com",
	}
	cfg.SetMethod(&config.MethodConfig{
		Code:             testMethod,
		Active:           true,
		Username:         "login",
		Password:         "secret",
		Token:            "method-terminal",
		TransactionTypes: []string{"authorize3d", "sale3d", "google_pay_authorize"},
	})
	return cfg
}

type fixture struct {
	svc     *Service
	orders  *fakeOrderRepo
	txns    *fakeTxnRepo
	gateway *fakeGateway
	events  *fakePublisher
}

func newFixture(orders ...*domain.Order) *fixture {
	f := &fixture{
		orders:  newFakeOrderRepo(orders...),
		txns:    &fakeTxnRepo{},
		gateway: &fakeGateway{},
		events:  &fakePublisher{},
	}
	f.svc = NewService(testConfig(), fakeDB{}, f.orders, f.txns, f.gateway, f.events, zap.NewNop())
	return f
}

func processingOrder(incrementID string) *domain.Order {
	o := &domain.Order{
		ID:             "order-1",
		IncrementID:    incrementID,
		MethodCode:     testMethod,
		GrandTotal:     decimal.RequireFromString("100.00"),
		BaseGrandTotal: decimal.RequireFromString("100.00"),
		TotalDue:       decimal.RequireFromString("100.00"),
		OrderCurrency:  "USD",
		BaseCurrency:   "USD",
	}
	o.SetState(domain.OrderStateProcessing)
	return o
}

func openAuthorization(orderID string) *domain.PaymentTransaction {
	return &domain.PaymentTransaction{
		ID:            "txn-auth",
		OrderID:       orderID,
		TxnID:         "100000123-aabbcc",
		UniqueID:      "gw-auth-1",
		Type:          domain.TransactionTypeAuthorize3D,
		Status:        domain.StatusApproved,
		Amount:        decimal.RequireFromString("100.00"),
		Currency:      "USD",
		TerminalToken: "terminal-from-txn",
	}
}

func approvedResponse(refType domain.TransactionType, amount string) *ports.GatewayResponse {
	return &ports.GatewayResponse{
		UniqueID: "gw-ref-1",
		Type:     refType,
		Status:   domain.StatusApproved,
		Amount:   decimal.RequireFromString(amount),
		Currency: "USD",
	}
}

func TestCheckout(t *testing.T) {
	f := newFixture()
	f.gateway.wpfResp = &ports.GatewayResponse{
		UniqueID:    "wpf-1",
		Status:      domain.StatusNew,
		RedirectURL: "https://wpf.example/redirect",
	}

	result, err := f.svc.Checkout(context.Background(), &CheckoutRequest{
		IncrementID:   "100000123",
		MethodCode:    testMethod,
		Amount:        decimal.RequireFromString("100.00"),
		Currency:      "USD",
		CustomerEmail: "customer@example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://wpf.example/redirect", result.RedirectURL)
	assert.Equal(t, "wpf-1", result.UniqueID)

	order := f.orders.orders["100000123"]
	require.NotNil(t, order)
	assert.Equal(t, domain.OrderStateNew, order.State)

	require.NotNil(t, f.gateway.lastWPF)
	assert.Equal(t, "https://pay.example.com/ipn/emp_checkout", f.gateway.lastWPF.NotificationURL)
	assert.Contains(t, f.gateway.lastWPF.ReturnSuccessURL, "action=success")
	assert.Equal(t, []string{"authorize3d", "sale3d", "google_pay_authorize"}, f.gateway.lastWPF.TransactionTypes)

	require.Len(t, f.txns.created, 1)
	assert.True(t, f.txns.created[0].Pending)

	require.Len(t, f.events.events, 1)
	assert.Equal(t, domain.EventCheckoutStarted, f.events.events[0].Kind)
}

func TestCheckoutMethodUnavailable(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Checkout(context.Background(), &CheckoutRequest{
		IncrementID: "100000123",
		MethodCode:  "missing",
		Amount:      decimal.RequireFromString("100.00"),
		Currency:    "USD",
	})
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeConfigMethodUnavailable))
}

func TestCheckoutCurrencyNotAllowed(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Checkout(context.Background(), &CheckoutRequest{
		IncrementID: "100000123",
		MethodCode:  testMethod,
		Amount:      decimal.RequireFromString("100.00"),
		Currency:    "JPY",
	})
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeConfigCurrencyNotAllowed))
}

func TestCaptureRequiresAuthorization(t *testing.T) {
	order := processingOrder("100000123")
	f := newFixture(order)

	// A settled sale is not a capturable reference.
	f.txns.txns = append(f.txns.txns, &domain.PaymentTransaction{
		ID:      "txn-sale",
		OrderID: order.ID,
		Type:    domain.TransactionTypeSale3D,
		Status:  domain.StatusApproved,
	})

	_, err := f.svc.Capture(context.Background(), "100000123", decimal.RequireFromString("100.00"))
	assert.True(t, errors.Is(err, domain.ErrNoAuthorization))
}

func TestCaptureSettlesAuthorization(t *testing.T) {
	order := processingOrder("100000123")
	f := newFixture(order)
	auth := openAuthorization(order.ID)
	f.txns.txns = append(f.txns.txns, auth)
	f.gateway.processResp = approvedResponse(domain.TransactionTypeCapture, "100.00")

	result, err := f.svc.Capture(context.Background(), "100000123", decimal.RequireFromString("100.00"))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusApproved, result.Status)
	assert.True(t, order.TotalPaid.Equal(decimal.RequireFromString("100.00")))
	assert.True(t, auth.Closed)

	// The terminal that authorized handles the capture.
	assert.Equal(t, "terminal-from-txn", f.gateway.lastCreds.Token)
	assert.Equal(t, "gw-auth-1", f.gateway.lastProcess.ReferenceID)

	require.Len(t, f.txns.created, 1)
	assert.Equal(t, domain.TransactionTypeCapture, f.txns.created[0].Type)
	assert.Equal(t, auth.TxnID, f.txns.created[0].ParentTxnID)

	require.Len(t, f.events.events, 1)
	assert.Equal(t, domain.EventPaymentCaptured, f.events.events[0].Kind)
}

func TestCaptureWalletWithoutAuthorizeSubtype(t *testing.T) {
	order := processingOrder("100000123")
	f := newFixture(order)
	f.txns.txns = append(f.txns.txns, &domain.PaymentTransaction{
		ID:       "txn-wallet",
		OrderID:  order.ID,
		UniqueID: "gw-wallet-1",
		Type:     domain.TransactionTypePayPal,
		Status:   domain.StatusApproved,
	})

	// pay_pal_authorize is not among the selected types, so the wallet
	// transaction settled immediately and cannot be captured.
	_, err := f.svc.Capture(context.Background(), "100000123", decimal.RequireFromString("100.00"))
	assert.True(t, errors.Is(err, domain.ErrNoAuthorization))
}

func TestRefundRequiresSettledPayment(t *testing.T) {
	order := processingOrder("100000123")
	f := newFixture(order)
	f.txns.txns = append(f.txns.txns, &domain.PaymentTransaction{
		ID:       "txn-capture",
		OrderID:  order.ID,
		UniqueID: "gw-cap-1",
		Type:     domain.TransactionTypeCapture,
		Status:   domain.StatusApproved,
		Currency: "USD",
	})

	// Nothing paid yet, so nothing can be credited back.
	_, err := f.svc.Refund(context.Background(), "100000123", decimal.RequireFromString("50.00"))
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeTxnNotRefundable))
}

func TestRefund(t *testing.T) {
	order := processingOrder("100000123")
	order.RegisterPaid(decimal.RequireFromString("100.00"))
	f := newFixture(order)
	f.txns.txns = append(f.txns.txns, &domain.PaymentTransaction{
		ID:       "txn-capture",
		OrderID:  order.ID,
		TxnID:    "100000123-ccddee",
		UniqueID: "gw-cap-1",
		Type:     domain.TransactionTypeCapture,
		Status:   domain.StatusApproved,
		Currency: "USD",
	})
	f.gateway.processResp = approvedResponse(domain.TransactionTypeRefund, "100.00")

	result, err := f.svc.Refund(context.Background(), "100000123", decimal.RequireFromString("100.00"))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusApproved, result.Status)
	assert.True(t, order.TotalRefunded.Equal(decimal.RequireFromString("100.00")))
	assert.Equal(t, domain.OrderStateClosed, order.State)

	require.Len(t, f.events.events, 1)
	assert.Equal(t, domain.EventPaymentRefunded, f.events.events[0].Kind)
}

func TestRefundFallsBackToAuthorizeToken(t *testing.T) {
	order := processingOrder("100000123")
	order.RegisterPaid(decimal.RequireFromString("100.00"))
	f := newFixture(order)

	// The consumed authorization still carries the terminal token the
	// capture row never recorded.
	auth := openAuthorization(order.ID)
	auth.Closed = true
	f.txns.txns = append(f.txns.txns, auth, &domain.PaymentTransaction{
		ID:          "txn-capture",
		OrderID:     order.ID,
		TxnID:       "100000123-ccddee",
		ParentTxnID: auth.TxnID,
		UniqueID:    "gw-cap-1",
		Type:        domain.TransactionTypeCapture,
		Status:      domain.StatusApproved,
		Currency:    "USD",
	})
	f.gateway.processResp = approvedResponse(domain.TransactionTypeRefund, "100.00")

	_, err := f.svc.Refund(context.Background(), "100000123", decimal.RequireFromString("100.00"))
	require.NoError(t, err)

	assert.Equal(t, "terminal-from-txn", f.gateway.lastCreds.Token)
}

func TestVoidWithoutReference(t *testing.T) {
	order := processingOrder("100000123")
	f := newFixture(order)

	_, err := f.svc.Void(context.Background(), "100000123")
	assert.True(t, errors.Is(err, domain.ErrNoReference))
}

func TestVoidCancelsOrder(t *testing.T) {
	order := processingOrder("100000123")
	f := newFixture(order)
	f.txns.txns = append(f.txns.txns, openAuthorization(order.ID))
	f.gateway.processResp = approvedResponse(domain.TransactionTypeVoid, "0")

	result, err := f.svc.Void(context.Background(), "100000123")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusApproved, result.Status)
	assert.Equal(t, domain.OrderStateCanceled, order.State)
	assert.True(t, order.TotalDue.IsZero())

	// The void request carries no amount.
	assert.Equal(t, domain.TransactionTypeVoid, f.gateway.lastProcess.Type)
}

func TestReferenceDeclinedIsMaskedAPIError(t *testing.T) {
	order := processingOrder("100000123")
	f := newFixture(order)
	f.txns.txns = append(f.txns.txns, openAuthorization(order.ID))
	f.gateway.processResp = &ports.GatewayResponse{
		UniqueID: "gw-ref-2",
		Status:   domain.StatusDeclined,
		Message:  "Insufficient funds",
	}

	_, err := f.svc.Capture(context.Background(), "100000123", decimal.RequireFromString("100.00"))
	require.Error(t, err)

	var apiErr *domain.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 422, apiErr.StatusCode)
	assert.Equal(t, domain.ErrorCodeGatewayDeclined, domain.GetErrorCode(err))

	// A declined reference leaves the order untouched.
	assert.True(t, order.TotalPaid.IsZero())
	assert.Empty(t, f.txns.created)
}

func TestOrderNotFound(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Capture(context.Background(), "999999999", decimal.RequireFromString("1.00"))
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeOrderNotFound))
}
