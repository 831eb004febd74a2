package domain

import (
	"context"
	"errors"
)

// ErrNotFound is returned by repositories when a record does not exist.
var ErrNotFound = errors.New("record not found")

// OrderRepository defines the durability interface for order records.
type OrderRepository interface {
	// Save creates a new order record
	Save(ctx context.Context, order *Order) error

	// GetByID retrieves one order owned by email
	GetByID(ctx context.Context, email, orderID string) (*Order, error)

	// GetByUser retrieves all orders for a user, most recent first
	GetByUser(ctx context.Context, email string) ([]*Order, error)

	// Update persists the current state of an order record
	Update(ctx context.Context, order *Order) error

	// GetUnresolved retrieves orders left in a non-terminal status across
	// all users, for the startup/periodic reconciliation sweep
	GetUnresolved(ctx context.Context) ([]*Order, error)
}

// UserRepository defines the durability interface for user records.
type UserRepository interface {
	// Create creates a new user record
	Create(ctx context.Context, user *User) error

	// GetByEmail retrieves a user by email identity
	GetByEmail(ctx context.Context, email string) (*User, error)

	// Update persists the current state of a user record
	Update(ctx context.Context, user *User) error

	// UpdateWithLock runs fn against the user's record inside a per-user
	// critical section, so concurrent read-modify-write cycles from
	// different order monitors cannot lose updates. The mutated record is
	// persisted and returned.
	UpdateWithLock(ctx context.Context, email string, fn func(*User) error) (*User, error)
}
