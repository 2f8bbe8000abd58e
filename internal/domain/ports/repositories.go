package ports

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/openpayments/genesis-payment-service/internal/domain"
)

// DBPort owns the connection pool and database transaction boundaries.
type DBPort interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error
}

// OrderRepository loads and saves orders. A nil tx runs against the pool.
type OrderRepository interface {
	GetByIncrementID(ctx context.Context, tx pgx.Tx, incrementID string) (*domain.Order, error)
	Create(ctx context.Context, tx pgx.Tx, order *domain.Order) error
	Update(ctx context.Context, tx pgx.Tx, order *domain.Order) error
	AddStatusHistory(ctx context.Context, tx pgx.Tx, entry *domain.StatusHistoryEntry) error
}

// TransactionRepository persists gateway payment transactions.
type TransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, txn *domain.PaymentTransaction) error
	Update(ctx context.Context, tx pgx.Tx, txn *domain.PaymentTransaction) error
	GetByTxnID(ctx context.Context, tx pgx.Tx, txnID string) (*domain.PaymentTransaction, error)
	GetByUniqueID(ctx context.Context, tx pgx.Tx, uniqueID string) (*domain.PaymentTransaction, error)

	// LastByOrderAndTypes returns the newest open transaction for the order
	// whose type is in types. Used for reference-transaction lookups.
	LastByOrderAndTypes(ctx context.Context, tx pgx.Tx, orderID string, types ...domain.TransactionType) (*domain.PaymentTransaction, error)
}

// EventPublisher emits payment events for downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.PaymentEvent) error
	Close() error
}
