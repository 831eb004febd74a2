package domain

import (
	"time"
)

// Holding is one position in a user's ledger, unique by symbol.
type Holding struct {
	Symbol   string  `json:"symbol"`
	Quantity float64 `json:"quantity"`
}

// User aggregates an investor's standing. Mutated by the order tracker only
// at terminal order states; concurrent updates are serialized by the store
// (see UserRepository.UpdateWithLock).
type User struct {
	Email            string    `json:"email"`
	PasswordHash     string    `json:"-"` // Never expose password hash in JSON
	Holdings         []Holding `json:"holdings"`
	TotalInvested    float64   `json:"total_invested"`
	AvailableBalance float64   `json:"available_balance"`
	IsInvested       bool      `json:"is_invested"`
	IsSoldOut        bool      `json:"is_sold_out"`
	Orders           []string  `json:"orders"` // order ids, most recent first
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// HoldingQuantity returns the held quantity for symbol, 0 if not held.
func (u *User) HoldingQuantity(symbol string) float64 {
	for _, h := range u.Holdings {
		if h.Symbol == symbol {
			return h.Quantity
		}
	}
	return 0
}

// AddOrderID prepends an order id to the user's history (most recent first).
func (u *User) AddOrderID(orderID string) {
	u.Orders = append([]string{orderID}, u.Orders...)
}
