package domain

import "context"

// OrderStatusPayload is the brokerage's view of an order at poll time.
// Only State drives control flow; the rest is recorded on the order record
// for display.
type OrderStatusPayload struct {
	State          string  `json:"state"`
	AveragePrice   float64 `json:"average_price"`
	FilledQuantity float64 `json:"filled_quantity"` // cumulative, not incremental
	Symbol         string  `json:"symbol"`
	Side           string  `json:"side"`
	RejectReason   string  `json:"reject_reason,omitempty"`
}

// OrderSpec holds the parameters for submitting an order. Either Quantity
// (share-based) or Amount (dollar-based) is set.
type OrderSpec struct {
	Symbol   string  `json:"symbol"`
	Quantity float64 `json:"quantity,omitempty"`
	Amount   float64 `json:"amount,omitempty"`
}

// SubmitResult is the brokerage's answer to an order submission.
type SubmitResult struct {
	Success bool   `json:"success"`
	OrderID string `json:"orderId,omitempty"`
	Error   string `json:"error,omitempty"`
}

// BrokerGateway abstracts the brokerage's order operations. Implementations
// own their transport (spawned scripts in production); callers treat any
// failure as recoverable and never let it crash a monitoring task.
type BrokerGateway interface {
	// QueryOrder fetches the current status of an order.
	QueryOrder(ctx context.Context, orderID string) (*OrderStatusPayload, error)

	// SubmitOrder places a new order, used for initial placement and retries.
	SubmitOrder(ctx context.Context, side string, spec OrderSpec) (*SubmitResult, error)
}
