package service

import (
	"alphaflex/internal/domain"
)

// ApplyFill merges a filled (or partially filled) order into the user's
// ledger. It is a pure merge over the current snapshot of the user record:
// callers must serialize concurrent updates to the same user, and the order
// tracker is responsible for persisting the result.
//
// FilledQuantity on the order is cumulative, so a partial fill followed by a
// full fill must be applied exactly once, with the final cumulative quantity.
func ApplyFill(user *domain.User, order *domain.Order) {
	var qty, price float64
	if order.FilledQuantity != nil {
		qty = *order.FilledQuantity
	}
	if order.FillPrice != nil {
		price = *order.FillPrice
	}

	if order.Side == domain.SideSell {
		// Full liquidation path: proceeds go back to buying power, the
		// ledger is cleared.
		user.AvailableBalance += qty * price
		user.Holdings = nil
		user.TotalInvested = 0
		user.IsSoldOut = true
		user.IsInvested = false
		return
	}

	if qty <= 0 {
		return
	}

	merged := false
	for i := range user.Holdings {
		if user.Holdings[i].Symbol == order.Symbol {
			user.Holdings[i].Quantity += qty
			merged = true
			break
		}
	}
	if !merged {
		user.Holdings = append(user.Holdings, domain.Holding{
			Symbol:   order.Symbol,
			Quantity: qty,
		})
	}

	cost := qty * price
	user.TotalInvested += cost
	user.AvailableBalance -= cost
	user.IsInvested = true
	user.IsSoldOut = false
}
