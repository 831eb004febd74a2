package infra

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"alphaflex/internal/service"
)

// Scheduler runs the periodic recovery sweep. The sweep catches orders whose
// monitoring task died without reaching a terminal status, for example after
// a panic recovered by the HTTP layer or an operator restart.
type Scheduler struct {
	cron     *cron.Cron
	recovery *service.RecoveryService
}

// NewScheduler creates a Scheduler
func NewScheduler(recovery *service.RecoveryService) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		recovery: recovery,
	}
}

// Start registers the recovery sweep under the given cron spec and starts the
// scheduler
func (s *Scheduler) Start(spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := s.recovery.Resume(ctx); err != nil {
			log.Printf("ERROR: recovery sweep failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule recovery sweep: %w", err)
	}

	s.cron.Start()
	log.Printf("[OK] Recovery sweep scheduled (%s)", spec)
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
