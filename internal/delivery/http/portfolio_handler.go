package http

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"alphaflex/internal/delivery/http/dto"
	"alphaflex/internal/domain"
	"alphaflex/internal/middleware"
)

// PortfolioHandler exposes the user's holdings and balances
type PortfolioHandler struct {
	users domain.UserRepository
}

// NewPortfolioHandler creates a PortfolioHandler
func NewPortfolioHandler(users domain.UserRepository) *PortfolioHandler {
	return &PortfolioHandler{users: users}
}

// GetPortfolio returns the user's holdings and balances
func (h *PortfolioHandler) GetPortfolio(c echo.Context) error {
	email := middleware.GetEmail(c)

	user, err := h.users.GetByEmail(c.Request().Context(), email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return NotFoundResponse(c, "user not found")
		}
		log.Printf("ERROR: failed to load portfolio for %s: %v", email, err)
		return InternalErrorResponse(c, "failed to load portfolio")
	}

	holdings := make([]dto.HoldingResponse, 0, len(user.Holdings))
	for _, holding := range user.Holdings {
		holdings = append(holdings, dto.HoldingResponse{
			Symbol:   holding.Symbol,
			Quantity: holding.Quantity,
		})
	}

	return SuccessResponse(c, http.StatusOK, "", &dto.PortfolioResponse{
		Email:            user.Email,
		Holdings:         holdings,
		TotalInvested:    user.TotalInvested,
		AvailableBalance: user.AvailableBalance,
		IsInvested:       user.IsInvested,
		IsSoldOut:        user.IsSoldOut,
	})
}
