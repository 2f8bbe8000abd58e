package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/openpayments/genesis-payment-service/internal/domain"
)

// TransactionRepository implements ports.TransactionRepository on PostgreSQL.
type TransactionRepository struct {
	db *DB
}

// NewTransactionRepository creates a new transaction repository.
func NewTransactionRepository(db *DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const txnColumns = `
	id, order_id, txn_id, parent_txn_id, unique_id, type, status,
	amount::text, currency, terminal_token, redirect_url,
	message, technical_message, pending, closed, created_at, updated_at`

// Create inserts a payment transaction.
func (r *TransactionRepository) Create(ctx context.Context, tx pgx.Tx, txn *domain.PaymentTransaction) error {
	now := time.Now().UTC()
	txn.CreatedAt = now
	txn.UpdatedAt = now

	_, err := pick(r.db.Pool(), tx).Exec(ctx, `
		INSERT INTO payment_transactions (
			id, order_id, txn_id, parent_txn_id, unique_id, type, status,
			amount, currency, terminal_token, redirect_url,
			message, technical_message, pending, closed, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8::numeric,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		txn.ID, txn.OrderID, txn.TxnID, txn.ParentTxnID, txn.UniqueID,
		string(txn.Type), string(txn.Status),
		txn.Amount.String(), txn.Currency, txn.TerminalToken, txn.RedirectURL,
		txn.Message, txn.TechnicalMsg, txn.Pending, txn.Closed,
		txn.CreatedAt, txn.UpdatedAt,
	)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "create payment transaction", err)
	}
	return nil
}

// Update saves the mutable fields of a payment transaction.
func (r *TransactionRepository) Update(ctx context.Context, tx pgx.Tx, txn *domain.PaymentTransaction) error {
	txn.UpdatedAt = time.Now().UTC()

	tag, err := pick(r.db.Pool(), tx).Exec(ctx, `
		UPDATE payment_transactions SET
			type = $2, status = $3, unique_id = $4, terminal_token = $5,
			redirect_url = $6, message = $7, technical_message = $8,
			pending = $9, closed = $10, amount = $11::numeric, updated_at = $12
		WHERE id = $1`,
		txn.ID, string(txn.Type), string(txn.Status), txn.UniqueID, txn.TerminalToken,
		txn.RedirectURL, txn.Message, txn.TechnicalMsg, txn.Pending, txn.Closed,
		txn.Amount.String(), txn.UpdatedAt,
	)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "update payment transaction", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewDomainError(domain.ErrorCodeTxnNotFound, "transaction not found").WithDetail("id", txn.ID)
	}
	return nil
}

// GetByTxnID loads a transaction by the composite merchant id.
func (r *TransactionRepository) GetByTxnID(ctx context.Context, tx pgx.Tx, txnID string) (*domain.PaymentTransaction, error) {
	row := pick(r.db.Pool(), tx).QueryRow(ctx,
		`SELECT`+txnColumns+` FROM payment_transactions WHERE txn_id = $1`, txnID)
	return r.scanOne(row, "txn_id", txnID)
}

// GetByUniqueID loads a transaction by the gateway-side unique id.
func (r *TransactionRepository) GetByUniqueID(ctx context.Context, tx pgx.Tx, uniqueID string) (*domain.PaymentTransaction, error) {
	row := pick(r.db.Pool(), tx).QueryRow(ctx,
		`SELECT`+txnColumns+` FROM payment_transactions WHERE unique_id = $1`, uniqueID)
	return r.scanOne(row, "unique_id", uniqueID)
}

// LastByOrderAndTypes returns the newest open transaction of any of the given
// types for the order. Reference lookups for capture/refund/void go through
// here; closed transactions are skipped.
func (r *TransactionRepository) LastByOrderAndTypes(ctx context.Context, tx pgx.Tx, orderID string, types ...domain.TransactionType) (*domain.PaymentTransaction, error) {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}

	row := pick(r.db.Pool(), tx).QueryRow(ctx,
		`SELECT`+txnColumns+` FROM payment_transactions
		 WHERE order_id = $1 AND type = ANY($2) AND NOT closed
		 ORDER BY created_at DESC LIMIT 1`, orderID, names)
	return r.scanOne(row, "order_id", orderID)
}

func (r *TransactionRepository) scanOne(row pgx.Row, key, value string) (*domain.PaymentTransaction, error) {
	var (
		t            domain.PaymentTransaction
		typ, status  string
		amount       string
	)
	err := row.Scan(
		&t.ID, &t.OrderID, &t.TxnID, &t.ParentTxnID, &t.UniqueID, &typ, &status,
		&amount, &t.Currency, &t.TerminalToken, &t.RedirectURL,
		&t.Message, &t.TechnicalMsg, &t.Pending, &t.Closed,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewDomainError(domain.ErrorCodeTxnNotFound, "transaction not found").WithDetail(key, value)
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "scan payment transaction", err)
	}

	t.Type = domain.TransactionType(typ)
	t.Status = domain.GatewayStatus(status)
	t.Amount = parseDecimal(amount)
	return &t, nil
}
