package reconcile

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
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
	updates int
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
	r.updates++
	return nil
}

func (r *fakeOrderRepo) AddStatusHistory(ctx context.Context, tx pgx.Tx, entry *domain.StatusHistoryEntry) error {
	r.history = append(r.history, entry)
	return nil
}

type fakeTxnRepo struct {
	byUnique map[string]*domain.PaymentTransaction
	created  []*domain.PaymentTransaction
	updated  []*domain.PaymentTransaction
}

func newFakeTxnRepo() *fakeTxnRepo {
	return &fakeTxnRepo{byUnique: make(map[string]*domain.PaymentTransaction)}
}

func (r *fakeTxnRepo) Create(ctx context.Context, tx pgx.Tx, txn *domain.PaymentTransaction) error {
	r.created = append(r.created, txn)
	r.byUnique[txn.UniqueID] = txn
	return nil
}

func (r *fakeTxnRepo) Update(ctx context.Context, tx pgx.Tx, txn *domain.PaymentTransaction) error {
	r.updated = append(r.updated, txn)
	r.byUnique[txn.UniqueID] = txn
	return nil
}

func (r *fakeTxnRepo) GetByTxnID(ctx context.Context, tx pgx.Tx, txnID string) (*domain.PaymentTransaction, error) {
	for _, t := range r.byUnique {
		if t.TxnID == txnID {
			return t, nil
		}
	}
	return nil, domain.NewDomainError(domain.ErrorCodeTxnNotFound, "transaction not found")
}

func (r *fakeTxnRepo) GetByUniqueID(ctx context.Context, tx pgx.Tx, uniqueID string) (*domain.PaymentTransaction, error) {
	if t, ok := r.byUnique[uniqueID]; ok {
		return t, nil
	}
	return nil, domain.NewDomainError(domain.ErrorCodeTxnNotFound, "transaction not found")
}

func (r *fakeTxnRepo) LastByOrderAndTypes(ctx context.Context, tx pgx.Tx, orderID string, types ...domain.TransactionType) (*domain.PaymentTransaction, error) {
	return nil, domain.NewDomainError(domain.ErrorCodeTxnNotFound, "transaction not found")
}

type fakeGateway struct {
	rec           *domain.Reconciliation
	err           error
	wpfCalls      int
	directCalls   int
	lastUniqueID  string
	lastCredsUser string
}

func (g *fakeGateway) CreateWPFSession(ctx context.Context, creds ports.Credentials, req *ports.WPFRequest) (*ports.GatewayResponse, error) {
	panic("not used")
}

func (g *fakeGateway) Process(ctx context.Context, creds ports.Credentials, req *ports.ReferenceRequest) (*ports.GatewayResponse, error) {
	panic("not used")
}

func (g *fakeGateway) Reconcile(ctx context.Context, creds ports.Credentials, uniqueID string) (*domain.Reconciliation, error) {
	g.directCalls++
	g.lastUniqueID = uniqueID
	g.lastCredsUser = creds.Username
	return g.rec, g.err
}

func (g *fakeGateway) ReconcileWPF(ctx context.Context, creds ports.Credentials, uniqueID string) (*domain.Reconciliation, error) {
	g.wpfCalls++
	g.lastUniqueID = uniqueID
	g.lastCredsUser = creds.Username
	return g.rec, g.err
}

type fakePublisher struct {
	events []domain.PaymentEvent
}

func (p *fakePublisher) Publish(ctx context.Context, event domain.PaymentEvent) error {
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

const (
	testMethod   = "emp_checkout"
	testPassword = "50fd87e65eb415f42fb5af4c9cf497662e00b785"
)

func testConfig() *config.Config {
	cfg := &config.Config{AllowedCurrencies: []string{"USD", "EUR"}}
	cfg.SetMethod(&config.MethodConfig{
		Code:                     testMethod,
		Active:                   true,
		Username:                 "login",
		Password:                 testPassword,
		TransactionTypes:         []string{"authorize3d", "sale3d", "google_pay_authorize"},
		PaymentConfirmationEmail: true,
	})
	return cfg
}

func sign(id string) string {
	sum := sha256.Sum256([]byte(id + testPassword))
	return hex.EncodeToString(sum[:])
}

func signedNotification(uniqueID string) *domain.Notification {
	params := url.Values{}
	params.Set("unique_id", uniqueID)
	params.Set("signature", sign(uniqueID))
	params.Set("status", "approved")
	return domain.ParseNotification(params)
}

func paidOrder(incrementID string) *domain.Order {
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
	o.SetState(domain.OrderStateNew)
	return o
}

type fixture struct {
	svc     *Service
	orders  *fakeOrderRepo
	txns    *fakeTxnRepo
	gateway *fakeGateway
	events  *fakePublisher
}

func newFixture(order *domain.Order, rec *domain.Reconciliation) *fixture {
	f := &fixture{
		orders:  newFakeOrderRepo(),
		txns:    newFakeTxnRepo(),
		gateway: &fakeGateway{rec: rec},
		events:  &fakePublisher{},
	}
	if order != nil {
		f.orders.orders[order.IncrementID] = order
	}
	f.svc = NewService(testConfig(), fakeDB{}, f.orders, f.txns, f.gateway, f.events, zap.NewNop())
	return f
}

func TestHandleNotificationForgedSignature(t *testing.T) {
	f := newFixture(nil, nil)

	params := url.Values{}
	params.Set("unique_id", "abc123")
	params.Set("signature", sign("something-else"))
	n := domain.ParseNotification(params)

	_, err := f.svc.HandleNotification(context.Background(), testMethod, n)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeNotificationForged))
	assert.Zero(t, f.gateway.directCalls)
}

func TestHandleNotificationUnknownMethod(t *testing.T) {
	f := newFixture(nil, nil)

	_, err := f.svc.HandleNotification(context.Background(), "missing", signedNotification("abc123"))
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeConfigMethodUnavailable))
}

func TestHandleNotificationMissingUniqueID(t *testing.T) {
	order := paidOrder("100000123")
	f := newFixture(order, &domain.Reconciliation{
		TransactionID: "100000123-aabbcc",
		Status:        domain.StatusApproved,
	})

	_, err := f.svc.HandleNotification(context.Background(), testMethod, signedNotification("abc123"))
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeReconciliationRejected))
	assert.Equal(t, domain.OrderStateNew, order.State)
	assert.Zero(t, f.orders.updates)
}

func TestHandleNotificationApprovedSale(t *testing.T) {
	order := paidOrder("100000123")
	f := newFixture(order, &domain.Reconciliation{
		UniqueID:        "gw-unique-1",
		TransactionID:   "100000123-aabbcc",
		TransactionType: domain.TransactionTypeSale3D,
		Status:          domain.StatusApproved,
		Amount:          decimal.RequireFromString("100.00"),
		Currency:        "USD",
		TerminalToken:   "terminal-1",
	})

	echo, err := f.svc.HandleNotification(context.Background(), testMethod, signedNotification("gw-unique-1"))
	require.NoError(t, err)

	assert.Equal(t, "gw-unique-1", echo.UniqueID)
	assert.Empty(t, echo.WPFUniqueID)

	assert.Equal(t, domain.OrderStateProcessing, order.State)
	assert.True(t, order.TotalPaid.Equal(decimal.RequireFromString("100.00")))
	assert.True(t, order.TotalDue.IsZero())

	require.Len(t, f.txns.created, 1)
	txn := f.txns.created[0]
	assert.Equal(t, domain.TransactionTypeSale3D, txn.Type)
	assert.False(t, txn.Pending)
	assert.True(t, txn.Closed)

	require.Len(t, f.events.events, 1)
	assert.Equal(t, domain.EventPaymentCaptured, f.events.events[0].Kind)
	assert.True(t, f.events.events[0].NotifyCustomer)

	require.Len(t, f.orders.history, 1)
	assert.Contains(t, f.orders.history[0].Comment, "Captured amount of 100 USD")
}

func TestHandleNotificationApprovedAuthorize(t *testing.T) {
	order := paidOrder("100000123")
	f := newFixture(order, &domain.Reconciliation{
		UniqueID:        "gw-unique-2",
		TransactionID:   "100000123-ddeeff",
		TransactionType: domain.TransactionTypeAuthorize3D,
		Status:          domain.StatusApproved,
		Amount:          decimal.RequireFromString("100.00"),
		Currency:        "USD",
	})

	_, err := f.svc.HandleNotification(context.Background(), testMethod, signedNotification("gw-unique-2"))
	require.NoError(t, err)

	// Authorizations do not settle anything yet.
	assert.Equal(t, domain.OrderStateProcessing, order.State)
	assert.True(t, order.TotalPaid.IsZero())

	require.Len(t, f.txns.created, 1)
	assert.False(t, f.txns.created[0].Closed)

	require.Len(t, f.events.events, 1)
	assert.Equal(t, domain.EventPaymentAuthorized, f.events.events[0].Kind)
}

func TestHandleNotificationCheckoutUsesWPFReconcile(t *testing.T) {
	order := paidOrder("100000123")
	f := newFixture(order, &domain.Reconciliation{
		UniqueID:        "wpf-session-1",
		TransactionID:   "100000123-aabbcc",
		TransactionType: domain.TransactionTypeSale3D,
		Status:          domain.StatusApproved,
		Amount:          decimal.RequireFromString("100.00"),
		Currency:        "USD",
	})

	params := url.Values{}
	params.Set("wpf_unique_id", "wpf-session-1")
	params.Set("signature", sign("wpf-session-1"))
	params.Set("wpf_status", "approved")
	n := domain.ParseNotification(params)

	echo, err := f.svc.HandleNotification(context.Background(), testMethod, n)
	require.NoError(t, err)

	assert.Equal(t, 1, f.gateway.wpfCalls)
	assert.Zero(t, f.gateway.directCalls)
	assert.Equal(t, "wpf-session-1", echo.WPFUniqueID)
	assert.Empty(t, echo.UniqueID)
}

func TestHandleNotificationUnmappedStatusLeavesOrderUntouched(t *testing.T) {
	order := paidOrder("100000123")
	order.SetState(domain.OrderStateProcessing)

	f := newFixture(order, &domain.Reconciliation{
		UniqueID:        "gw-unique-3",
		TransactionID:   "100000123-aabbcc",
		TransactionType: domain.TransactionTypeSale3D,
		Status:          domain.GatewayStatus("chargebacked"),
		Amount:          decimal.RequireFromString("100.00"),
		Currency:        "USD",
	})

	echo, err := f.svc.HandleNotification(context.Background(), testMethod, signedNotification("gw-unique-3"))
	require.NoError(t, err)
	require.NotNil(t, echo)

	assert.Equal(t, domain.OrderStateProcessing, order.State)
	assert.Zero(t, f.orders.updates)
	assert.Empty(t, f.events.events)

	// The transaction itself is still recorded for audit.
	assert.Len(t, f.txns.created, 1)
}

func TestHandleNotificationRepeatedUpdatesExistingTransaction(t *testing.T) {
	order := paidOrder("100000123")
	rec := &domain.Reconciliation{
		UniqueID:        "gw-unique-4",
		TransactionID:   "100000123-aabbcc",
		TransactionType: domain.TransactionTypeSale3D,
		Status:          domain.StatusApproved,
		Amount:          decimal.RequireFromString("100.00"),
		Currency:        "USD",
	}
	f := newFixture(order, rec)

	_, err := f.svc.HandleNotification(context.Background(), testMethod, signedNotification("gw-unique-4"))
	require.NoError(t, err)
	_, err = f.svc.HandleNotification(context.Background(), testMethod, signedNotification("gw-unique-4"))
	require.NoError(t, err)

	assert.Len(t, f.txns.created, 1)
	assert.Len(t, f.txns.updated, 1)
}

func TestHandleNotificationBackfillsTransactionType(t *testing.T) {
	order := paidOrder("100000123")
	f := newFixture(order, &domain.Reconciliation{
		UniqueID:        "wpf-session-6",
		TransactionID:   "100000123-aabbcc",
		TransactionType: domain.TransactionTypeSale3D,
		Status:          domain.StatusApproved,
		Amount:          decimal.RequireFromString("100.00"),
		Currency:        "USD",
		TerminalToken:   "terminal-1",
	})

	// Checkout records the WPF session before the gateway knows which
	// transaction type will settle it, so the row starts without one.
	f.txns.byUnique["wpf-session-6"] = &domain.PaymentTransaction{
		ID:       "txn-wpf",
		OrderID:  order.ID,
		TxnID:    "100000123-aabbcc",
		UniqueID: "wpf-session-6",
		Status:   domain.StatusNew,
		Pending:  true,
	}

	_, err := f.svc.HandleNotification(context.Background(), testMethod, signedNotification("wpf-session-6"))
	require.NoError(t, err)

	assert.Empty(t, f.txns.created)
	require.Len(t, f.txns.updated, 1)
	txn := f.txns.updated[0]
	assert.Equal(t, domain.TransactionTypeSale3D, txn.Type)
	assert.Equal(t, "terminal-1", txn.TerminalToken)
	assert.False(t, txn.Pending)
	assert.True(t, txn.Closed)
}

func TestHandleNotificationOrderLookupFromTransactionID(t *testing.T) {
	order := paidOrder("200000777")
	f := newFixture(order, &domain.Reconciliation{
		UniqueID:        "gw-unique-5",
		TransactionID:   "200000777-0f9e8d7c6b5a4321fedcba98",
		TransactionType: domain.TransactionTypeSale3D,
		Status:          domain.StatusApproved,
		Amount:          decimal.RequireFromString("100.00"),
		Currency:        "USD",
	})

	_, err := f.svc.HandleNotification(context.Background(), testMethod, signedNotification("gw-unique-5"))
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStateProcessing, order.State)
}
