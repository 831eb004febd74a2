package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Order statuses. The brokerage reports states in arbitrary case, so every
// comparison goes through NormalizeStatus first.
const (
	StatusPending         = "pending"
	StatusPartiallyFilled = "partially_filled"
	StatusFilled          = "filled"
	StatusCancelled       = "cancelled"
	StatusFailed          = "failed"
	StatusRetrying        = "retrying"
	StatusTimeout         = "timeout"
	StatusError           = "error"
)

// Order sides
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// MaxRetries is the resubmission budget for a rejected order chain.
const MaxRetries = 3

// Order represents one brokerage transaction. Rows are never deleted; the
// latest record for an order id is authoritative. While a monitoring task is
// active for an order, the tracker has exclusive write access to its status.
type Order struct {
	OrderID         string          `json:"order_id"`
	Email           string          `json:"email"`
	Side            string          `json:"side"`
	Symbol          string          `json:"symbol"`
	Quantity        float64         `json:"quantity"`         // requested shares
	Amount          float64         `json:"amount,omitempty"` // dollar-based orders
	Status          string          `json:"status"`
	RetryCount      int             `json:"retry_count"`
	ParentOrderID   *string         `json:"parent_order_id,omitempty"` // set when created by a retry
	RetryOrderID    *string         `json:"retry_order_id,omitempty"`  // successor id recorded on the closed-out original
	FillPrice       *float64        `json:"fill_price,omitempty"`
	FilledQuantity  *float64        `json:"filled_quantity,omitempty"`
	FilledAt        *time.Time      `json:"filled_at,omitempty"`
	FailReason      *string         `json:"fail_reason,omitempty"`
	LastError       *string         `json:"last_error,omitempty"`
	HoldingsApplied bool            `json:"holdings_applied"`
	Details         json.RawMessage `json:"details,omitempty"` // latest raw broker payload, advisory only
	LastCheckedAt   *time.Time      `json:"last_checked_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// NewOrderID returns a collision-resistant order identifier. Sell orders keep
// the legacy "sell_" prefix so order history stays readable.
func NewOrderID(side string) string {
	if side == SideSell {
		return fmt.Sprintf("sell_%s", uuid.NewString())
	}
	return fmt.Sprintf("order_%s", uuid.NewString())
}

// NormalizeStatus lowercases and trims a broker-reported state.
func NormalizeStatus(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// IsTerminal reports whether no further monitoring happens after status.
// Cancelled and failed broker states are not terminal by themselves: the
// tracker retries them until the budget is exhausted and records "failed".
func IsTerminal(status string) bool {
	switch NormalizeStatus(status) {
	case StatusFilled, StatusFailed, StatusTimeout:
		return true
	}
	return false
}

// CanRetry reports whether the order still has retry budget left.
func (o *Order) CanRetry() bool {
	return o.RetryCount < MaxRetries
}

// Spec returns the submission parameters needed to place an equivalent order.
func (o *Order) Spec() OrderSpec {
	return OrderSpec{
		Symbol:   o.Symbol,
		Quantity: o.Quantity,
		Amount:   o.Amount,
	}
}
