package service

import (
	"context"
	"fmt"
	"log"

	"alphaflex/internal/domain"
)

// RecoveryService rescans persisted non-terminal orders and resumes
// monitoring for any order left orphaned by a process restart. Monitoring
// state lives only in memory, so without this sweep a restart would strand
// every open order in "pending" forever.
type RecoveryService struct {
	orders  domain.OrderRepository
	monitor *OrderMonitor
}

// NewRecoveryService creates a RecoveryService.
func NewRecoveryService(orders domain.OrderRepository, monitor *OrderMonitor) *RecoveryService {
	return &RecoveryService{
		orders:  orders,
		monitor: monitor,
	}
}

// Resume scans for unresolved orders and starts monitoring for each one that
// has no live task. An order already being monitored is left alone, so a
// periodic sweep never resets a running task's timeout clock.
func (s *RecoveryService) Resume(ctx context.Context) error {
	unresolved, err := s.orders.GetUnresolved(ctx)
	if err != nil {
		return fmt.Errorf("scan unresolved orders: %w", err)
	}

	resumed := 0
	for _, order := range unresolved {
		if s.monitor.IsMonitoring(order.OrderID) {
			continue
		}
		s.monitor.StartMonitoring(order.Email, order.OrderID, order.Side)
		resumed++
	}

	if resumed > 0 {
		log.Printf("[OK] Recovery: resumed monitoring for %d order(s)", resumed)
	}
	return nil
}
