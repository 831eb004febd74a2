package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"alphaflex/internal/middleware"
)

// Handlers bundles everything the router needs
type Handlers struct {
	Auth      *AuthHandler
	Order     *OrderHandler
	Portfolio *PortfolioHandler
	JWTSecret string
}

// SetupRoutes wires all routes and middleware onto the echo instance
func SetupRoutes(e *echo.Echo, h *Handlers) {
	e.Use(echomw.LoggerWithConfig(echomw.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/health"
		},
	}))
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.CORS())
	e.Use(echomw.Secure())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})

	api := e.Group("/api")

	auth := api.Group("/auth")
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)
	auth.POST("/logout", h.Auth.Logout)

	protected := api.Group("", middleware.AuthMiddleware(h.JWTSecret))

	orders := protected.Group("/orders")
	orders.POST("/buy", h.Order.PlaceBuyOrder)
	orders.POST("/sell", h.Order.PlaceSellOrder)
	orders.GET("", h.Order.ListOrders)
	orders.GET("/:id", h.Order.GetOrder)
	orders.DELETE("/:id/monitoring", h.Order.StopMonitoring)

	protected.GET("/portfolio", h.Portfolio.GetPortfolio)
}
