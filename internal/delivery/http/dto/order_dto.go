package dto

import "time"

// PlaceOrderRequest is the body for buy and sell order endpoints
type PlaceOrderRequest struct {
	Symbol   string  `json:"symbol"`
	Quantity float64 `json:"quantity"`
	Amount   float64 `json:"amount"`
}

// OrderResponse is the API view of an order
type OrderResponse struct {
	OrderID        string     `json:"orderId"`
	Side           string     `json:"side"`
	Symbol         string     `json:"symbol"`
	Quantity       float64    `json:"quantity"`
	Amount         float64    `json:"amount"`
	Status         string     `json:"status"`
	RetryCount     int        `json:"retryCount"`
	RetryOrderID   *string    `json:"retryOrderId,omitempty"`
	FillPrice      *float64   `json:"fillPrice,omitempty"`
	FilledQuantity *float64   `json:"filledQuantity,omitempty"`
	FilledAt       *time.Time `json:"filledAt,omitempty"`
	FailReason     *string    `json:"failReason,omitempty"`
	Monitoring     bool       `json:"monitoring"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// PortfolioResponse is the API view of a user's holdings and balances
type PortfolioResponse struct {
	Email            string            `json:"email"`
	Holdings         []HoldingResponse `json:"holdings"`
	TotalInvested    float64           `json:"totalInvested"`
	AvailableBalance float64           `json:"availableBalance"`
	IsInvested       bool              `json:"isInvested"`
	IsSoldOut        bool              `json:"isSoldOut"`
}

type HoldingResponse struct {
	Symbol   string  `json:"symbol"`
	Quantity float64 `json:"quantity"`
}
