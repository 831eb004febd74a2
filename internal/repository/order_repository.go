package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"alphaflex/internal/domain"
)

// OrderRepositoryImpl implements the OrderRepository interface
type OrderRepositoryImpl struct {
	db *pgxpool.Pool
}

// NewOrderRepository creates a new OrderRepository
func NewOrderRepository(db *pgxpool.Pool) domain.OrderRepository {
	return &OrderRepositoryImpl{db: db}
}

const orderColumns = `
	order_id, email, side, symbol, quantity, amount, status, retry_count,
	parent_order_id, retry_order_id, fill_price, filled_quantity, filled_at,
	fail_reason, last_error, holdings_applied, details, last_checked_at,
	created_at, updated_at
`

// Save creates a new order record
func (r *OrderRepositoryImpl) Save(ctx context.Context, order *domain.Order) error {
	query := `
		INSERT INTO orders (
			order_id, email, side, symbol, quantity, amount, status,
			retry_count, parent_order_id, holdings_applied, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
	`

	_, err := r.db.Exec(ctx, query,
		order.OrderID,
		order.Email,
		order.Side,
		order.Symbol,
		order.Quantity,
		order.Amount,
		order.Status,
		order.RetryCount,
		order.ParentOrderID,
		order.HoldingsApplied,
		order.CreatedAt,
		order.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}

	return nil
}

// GetByID retrieves one order owned by email
func (r *OrderRepositoryImpl) GetByID(ctx context.Context, email, orderID string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE email = $1 AND order_id = $2`

	order, err := scanOrder(r.db.QueryRow(ctx, query, email, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get order by ID: %w", err)
	}

	return order, nil
}

// GetByUser retrieves all orders for a user, most recent first
func (r *OrderRepositoryImpl) GetByUser(ctx context.Context, email string) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE email = $1 ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, email)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders by user: %w", err)
	}
	defer rows.Close()

	return collectOrders(rows)
}

// GetUnresolved retrieves orders left in a non-terminal status across all
// users. "error" counts as unresolved: a poll-cycle failure never terminates
// monitoring, so such orders still need a task after a restart.
func (r *OrderRepositoryImpl) GetUnresolved(ctx context.Context) ([]*domain.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE status IN ('pending', 'partially_filled', 'error')
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query unresolved orders: %w", err)
	}
	defer rows.Close()

	return collectOrders(rows)
}

// Update persists the current state of an order record
func (r *OrderRepositoryImpl) Update(ctx context.Context, order *domain.Order) error {
	query := `
		UPDATE orders
		SET status = $1,
		    retry_count = $2,
		    retry_order_id = $3,
		    fill_price = $4,
		    filled_quantity = $5,
		    filled_at = $6,
		    fail_reason = $7,
		    last_error = $8,
		    holdings_applied = $9,
		    details = $10,
		    last_checked_at = $11,
		    updated_at = $12
		WHERE order_id = $13
	`

	order.UpdatedAt = time.Now()

	_, err := r.db.Exec(ctx, query,
		order.Status,
		order.RetryCount,
		order.RetryOrderID,
		order.FillPrice,
		order.FilledQuantity,
		order.FilledAt,
		order.FailReason,
		order.LastError,
		order.HoldingsApplied,
		detailsParam(order.Details),
		order.LastCheckedAt,
		order.UpdatedAt,
		order.OrderID,
	)

	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}

	return nil
}

func detailsParam(details json.RawMessage) *string {
	if len(details) == 0 {
		return nil
	}
	s := string(details)
	return &s
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	order := &domain.Order{}
	var details *string

	err := row.Scan(
		&order.OrderID,
		&order.Email,
		&order.Side,
		&order.Symbol,
		&order.Quantity,
		&order.Amount,
		&order.Status,
		&order.RetryCount,
		&order.ParentOrderID,
		&order.RetryOrderID,
		&order.FillPrice,
		&order.FilledQuantity,
		&order.FilledAt,
		&order.FailReason,
		&order.LastError,
		&order.HoldingsApplied,
		&details,
		&order.LastCheckedAt,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if details != nil {
		order.Details = json.RawMessage(*details)
	}
	return order, nil
}

func collectOrders(rows pgx.Rows) ([]*domain.Order, error) {
	var orders []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, nil
}
