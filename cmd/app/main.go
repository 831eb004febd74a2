package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"alphaflex/configs"
	"alphaflex/internal/adapter"
	"alphaflex/internal/database"
	deliveryhttp "alphaflex/internal/delivery/http"
	"alphaflex/internal/infra"
	"alphaflex/internal/repository"
	"alphaflex/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("[WARN] No .env file found, using environment variables")
	}

	cfg := configs.Load()
	ctx := context.Background()

	db, err := infra.NewDatabase(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}
	defer db.Close()

	if err := database.RunMigrations(ctx, db); err != nil {
		log.Fatalf("ERROR: %v", err)
	}

	orderRepo := repository.NewOrderRepository(db)
	userRepo := repository.NewUserRepository(db)

	broker := adapter.NewScriptBroker(cfg.Broker.Python, cfg.Broker.OrderScript)

	monitorCfg := service.DefaultMonitorConfig()
	monitorCfg.CheckInterval = cfg.Monitor.CheckInterval
	monitorCfg.MaxRetries = cfg.Monitor.MaxRetries
	monitorCfg.MaxMonitoringTime = cfg.Monitor.MaxMonitoringTime
	monitorCfg.BrokerTimeout = cfg.Broker.Timeout

	monitor := service.NewOrderMonitor(orderRepo, userRepo, broker, monitorCfg, nil)
	recovery := service.NewRecoveryService(orderRepo, monitor)

	// Pick up orders stranded by the previous run before serving traffic.
	if err := recovery.Resume(ctx); err != nil {
		log.Printf("ERROR: startup recovery failed: %v", err)
	}

	scheduler := infra.NewScheduler(recovery)
	if err := scheduler.Start(cfg.Monitor.RecoverySpec); err != nil {
		log.Fatalf("ERROR: %v", err)
	}

	e := echo.New()
	e.HideBanner = true

	deliveryhttp.SetupRoutes(e, &deliveryhttp.Handlers{
		Auth:      deliveryhttp.NewAuthHandler(userRepo, cfg.JWT.Secret, cfg.JWT.TTL),
		Order:     deliveryhttp.NewOrderHandler(orderRepo, userRepo, broker, monitor),
		Portfolio: deliveryhttp.NewPortfolioHandler(userRepo),
		JWTSecret: cfg.JWT.Secret,
	})

	go func() {
		log.Printf("[OK] Server starting on port %s (%s)", cfg.Server.Port, cfg.Server.Env)
		if err := e.Start(":" + cfg.Server.Port); err != nil {
			log.Printf("Server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: server shutdown: %v", err)
	}

	scheduler.Stop()
	monitor.StopAll()

	log.Println("[OK] Shutdown complete")
}
