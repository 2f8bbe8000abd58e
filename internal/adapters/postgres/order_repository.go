package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/openpayments/genesis-payment-service/internal/domain"
)

// OrderRepository implements ports.OrderRepository on PostgreSQL.
type OrderRepository struct {
	db *DB
}

// NewOrderRepository creates a new order repository.
func NewOrderRepository(db *DB) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `
	id, increment_id, method_code, state, status,
	grand_total::text, base_grand_total::text, total_due::text,
	total_paid::text, total_refunded::text,
	order_currency, base_currency, customer_email, remote_ip,
	created_at, updated_at`

// GetByIncrementID loads an order by its merchant-facing increment id.
func (r *OrderRepository) GetByIncrementID(ctx context.Context, tx pgx.Tx, incrementID string) (*domain.Order, error) {
	row := pick(r.db.Pool(), tx).QueryRow(ctx,
		`SELECT`+orderColumns+` FROM orders WHERE increment_id = $1`, incrementID)

	order, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewDomainError(domain.ErrorCodeOrderNotFound, "order not found").WithDetail("increment_id", incrementID)
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "get order by increment id", err)
	}
	return order, nil
}

// Create inserts an order.
func (r *OrderRepository) Create(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	now := time.Now().UTC()
	order.CreatedAt = now
	order.UpdatedAt = now

	_, err := pick(r.db.Pool(), tx).Exec(ctx, `
		INSERT INTO orders (
			id, increment_id, method_code, state, status,
			grand_total, base_grand_total, total_due, total_paid, total_refunded,
			order_currency, base_currency, customer_email, remote_ip,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6::numeric,$7::numeric,$8::numeric,$9::numeric,$10::numeric,$11,$12,$13,$14,$15,$16)`,
		order.ID, order.IncrementID, order.MethodCode, string(order.State), order.Status,
		order.GrandTotal.String(), order.BaseGrandTotal.String(), order.TotalDue.String(),
		order.TotalPaid.String(), order.TotalRefunded.String(),
		order.OrderCurrency, order.BaseCurrency, order.CustomerEmail, order.RemoteIP,
		order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "create order", err)
	}
	return nil
}

// Update saves mutable order fields.
func (r *OrderRepository) Update(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	order.UpdatedAt = time.Now().UTC()

	tag, err := pick(r.db.Pool(), tx).Exec(ctx, `
		UPDATE orders SET
			state = $2, status = $3,
			total_due = $4::numeric, total_paid = $5::numeric, total_refunded = $6::numeric,
			updated_at = $7
		WHERE id = $1`,
		order.ID, string(order.State), order.Status,
		order.TotalDue.String(), order.TotalPaid.String(), order.TotalRefunded.String(),
		order.UpdatedAt,
	)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "update order", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewDomainError(domain.ErrorCodeOrderNotFound, "order not found").WithDetail("order_id", order.ID)
	}
	return nil
}

// AddStatusHistory appends a status history comment to the order.
func (r *OrderRepository) AddStatusHistory(ctx context.Context, tx pgx.Tx, entry *domain.StatusHistoryEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := pick(r.db.Pool(), tx).Exec(ctx, `
		INSERT INTO order_status_history (order_id, status, comment, notify, created_at)
		VALUES ($1,$2,$3,$4,$5)`,
		entry.OrderID, entry.Status, entry.Comment, entry.Notify, entry.CreatedAt,
	)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "add status history", err)
	}
	return nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o                                     domain.Order
		state                                 string
		grand, baseGrand, due, paid, refunded string
	)
	err := row.Scan(
		&o.ID, &o.IncrementID, &o.MethodCode, &state, &o.Status,
		&grand, &baseGrand, &due, &paid, &refunded,
		&o.OrderCurrency, &o.BaseCurrency, &o.CustomerEmail, &o.RemoteIP,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.State = domain.OrderState(state)
	o.GrandTotal = parseDecimal(grand)
	o.BaseGrandTotal = parseDecimal(baseGrand)
	o.TotalDue = parseDecimal(due)
	o.TotalPaid = parseDecimal(paid)
	o.TotalRefunded = parseDecimal(refunded)
	return &o, nil
}
