package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"alphaflex/internal/domain"
)

// UserRepositoryImpl implements the UserRepository interface
type UserRepositoryImpl struct {
	db *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *pgxpool.Pool) domain.UserRepository {
	return &UserRepositoryImpl{db: db}
}

const userColumns = `
	email, password_hash, holdings, total_invested, available_balance,
	is_invested, is_sold_out, orders, created_at, updated_at
`

// Create creates a new user record
func (r *UserRepositoryImpl) Create(ctx context.Context, user *domain.User) error {
	holdings, orders, err := encodeUserLists(user)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO users (
			email, password_hash, holdings, total_invested, available_balance,
			is_invested, is_sold_out, orders, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
	`

	_, err = r.db.Exec(ctx, query,
		user.Email,
		user.PasswordHash,
		holdings,
		user.TotalInvested,
		user.AvailableBalance,
		user.IsInvested,
		user.IsSoldOut,
		orders,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByEmail retrieves a user by email identity
func (r *UserRepositoryImpl) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := scanUser(r.db.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return user, nil
}

// Update persists the current state of a user record
func (r *UserRepositoryImpl) Update(ctx context.Context, user *domain.User) error {
	user.UpdatedAt = time.Now()
	if err := execUserUpdate(ctx, r.db, user); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// UpdateWithLock runs fn against the user's record inside a per-user
// critical section. The read-modify-write happens in a transaction holding
// pg_advisory_xact_lock on the email, so two monitoring tasks finishing
// orders for the same user in close succession cannot lose updates.
func (r *UserRepositoryImpl) UpdateWithLock(ctx context.Context, email string, fn func(*domain.User) error) (*domain.User, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin user update: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, email); err != nil {
		return nil, fmt.Errorf("failed to acquire user lock: %w", err)
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	user, err := scanUser(tx.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load user for update: %w", err)
	}

	if err := fn(user); err != nil {
		return nil, err
	}

	user.UpdatedAt = time.Now()
	if err := execUserUpdate(ctx, tx, user); err != nil {
		return nil, fmt.Errorf("failed to write user update: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit user update: %w", err)
	}

	return user, nil
}

// execer covers both the pool and an open transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func execUserUpdate(ctx context.Context, db execer, user *domain.User) error {
	holdings, orders, err := encodeUserLists(user)
	if err != nil {
		return err
	}

	query := `
		UPDATE users
		SET holdings = $1,
		    total_invested = $2,
		    available_balance = $3,
		    is_invested = $4,
		    is_sold_out = $5,
		    orders = $6,
		    updated_at = $7
		WHERE email = $8
	`

	_, err = db.Exec(ctx, query,
		holdings,
		user.TotalInvested,
		user.AvailableBalance,
		user.IsInvested,
		user.IsSoldOut,
		orders,
		user.UpdatedAt,
		user.Email,
	)
	return err
}

func encodeUserLists(user *domain.User) (holdings string, orders string, err error) {
	h := user.Holdings
	if h == nil {
		h = []domain.Holding{}
	}
	hb, err := json.Marshal(h)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode holdings: %w", err)
	}

	o := user.Orders
	if o == nil {
		o = []string{}
	}
	ob, err := json.Marshal(o)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode order list: %w", err)
	}

	return string(hb), string(ob), nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	user := &domain.User{}
	var holdings, orders string

	err := row.Scan(
		&user.Email,
		&user.PasswordHash,
		&holdings,
		&user.TotalInvested,
		&user.AvailableBalance,
		&user.IsInvested,
		&user.IsSoldOut,
		&orders,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(holdings), &user.Holdings); err != nil {
		return nil, fmt.Errorf("failed to decode holdings: %w", err)
	}
	if err := json.Unmarshal([]byte(orders), &user.Orders); err != nil {
		return nil, fmt.Errorf("failed to decode order list: %w", err)
	}

	return user, nil
}
