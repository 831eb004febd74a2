package http

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"alphaflex/internal/delivery/http/dto"
	"alphaflex/internal/domain"
	"alphaflex/internal/middleware"
	"alphaflex/internal/service"
)

// OrderHandler handles order placement and lookup
type OrderHandler struct {
	orders  domain.OrderRepository
	users   domain.UserRepository
	broker  domain.BrokerGateway
	monitor *service.OrderMonitor
}

// NewOrderHandler creates an OrderHandler
func NewOrderHandler(orders domain.OrderRepository, users domain.UserRepository, broker domain.BrokerGateway, monitor *service.OrderMonitor) *OrderHandler {
	return &OrderHandler{
		orders:  orders,
		users:   users,
		broker:  broker,
		monitor: monitor,
	}
}

// PlaceBuyOrder submits a buy order and starts monitoring it
func (h *OrderHandler) PlaceBuyOrder(c echo.Context) error {
	return h.placeOrder(c, domain.SideBuy)
}

// PlaceSellOrder submits a sell order and starts monitoring it
func (h *OrderHandler) PlaceSellOrder(c echo.Context) error {
	return h.placeOrder(c, domain.SideSell)
}

func (h *OrderHandler) placeOrder(c echo.Context, side string) error {
	email := middleware.GetEmail(c)

	req := &dto.PlaceOrderRequest{}
	if err := c.Bind(req); err != nil {
		return BadRequestResponse(c, "invalid request body")
	}
	if req.Symbol == "" {
		return BadRequestResponse(c, "symbol is required")
	}
	if req.Quantity <= 0 && req.Amount <= 0 {
		return BadRequestResponse(c, "quantity or amount is required")
	}

	spec := domain.OrderSpec{
		Symbol:   req.Symbol,
		Quantity: req.Quantity,
		Amount:   req.Amount,
	}

	res, err := h.broker.SubmitOrder(c.Request().Context(), side, spec)
	if err != nil {
		log.Printf("ERROR: %s order submission failed for %s: %v", side, email, err)
		return ErrorResponse(c, http.StatusBadGateway, "order submission failed")
	}
	if !res.Success {
		return ErrorResponse(c, http.StatusBadGateway, res.Error)
	}

	orderID := res.OrderID
	if orderID == "" {
		orderID = domain.NewOrderID(side)
	}

	now := time.Now()
	order := &domain.Order{
		OrderID:   orderID,
		Email:     email,
		Side:      side,
		Symbol:    req.Symbol,
		Quantity:  req.Quantity,
		Amount:    req.Amount,
		Status:    domain.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.orders.Save(c.Request().Context(), order); err != nil {
		log.Printf("ERROR: failed to save order %s: %v", orderID, err)
		return InternalErrorResponse(c, "failed to record order")
	}

	if _, err := h.users.UpdateWithLock(c.Request().Context(), email, func(u *domain.User) error {
		u.AddOrderID(orderID)
		return nil
	}); err != nil {
		log.Printf("[WARN] failed to attach order %s to user %s: %v", orderID, email, err)
	}

	h.monitor.StartMonitoring(email, orderID, side)

	return SuccessResponse(c, http.StatusCreated, "order placed", toOrderResponse(order, true))
}

// ListOrders returns the user's orders, most recent first
func (h *OrderHandler) ListOrders(c echo.Context) error {
	email := middleware.GetEmail(c)

	orders, err := h.orders.GetByUser(c.Request().Context(), email)
	if err != nil {
		log.Printf("ERROR: failed to list orders for %s: %v", email, err)
		return InternalErrorResponse(c, "failed to list orders")
	}

	out := make([]*dto.OrderResponse, 0, len(orders))
	for _, order := range orders {
		out = append(out, toOrderResponse(order, h.monitor.IsMonitoring(order.OrderID)))
	}

	return SuccessResponse(c, http.StatusOK, "", out)
}

// GetOrder returns one of the user's orders
func (h *OrderHandler) GetOrder(c echo.Context) error {
	email := middleware.GetEmail(c)
	orderID := c.Param("id")

	order, err := h.orders.GetByID(c.Request().Context(), email, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return NotFoundResponse(c, "order not found")
		}
		log.Printf("ERROR: failed to get order %s: %v", orderID, err)
		return InternalErrorResponse(c, "failed to get order")
	}

	return SuccessResponse(c, http.StatusOK, "", toOrderResponse(order, h.monitor.IsMonitoring(order.OrderID)))
}

// StopMonitoring cancels the live monitoring task for one of the user's
// orders. The order record keeps its last persisted status.
func (h *OrderHandler) StopMonitoring(c echo.Context) error {
	email := middleware.GetEmail(c)
	orderID := c.Param("id")

	if _, err := h.orders.GetByID(c.Request().Context(), email, orderID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return NotFoundResponse(c, "order not found")
		}
		log.Printf("ERROR: failed to get order %s: %v", orderID, err)
		return InternalErrorResponse(c, "failed to get order")
	}

	h.monitor.StopMonitoring(orderID)
	return SuccessResponse(c, http.StatusOK, "monitoring stopped", nil)
}

func toOrderResponse(order *domain.Order, monitoring bool) *dto.OrderResponse {
	return &dto.OrderResponse{
		OrderID:        order.OrderID,
		Side:           order.Side,
		Symbol:         order.Symbol,
		Quantity:       order.Quantity,
		Amount:         order.Amount,
		Status:         order.Status,
		RetryCount:     order.RetryCount,
		RetryOrderID:   order.RetryOrderID,
		FillPrice:      order.FillPrice,
		FilledQuantity: order.FilledQuantity,
		FilledAt:       order.FilledAt,
		FailReason:     order.FailReason,
		Monitoring:     monitoring,
		CreatedAt:      order.CreatedAt,
		UpdatedAt:      order.UpdatedAt,
	}
}
