package main

import (
	"fmt"
	"log"

	"library-sync/internal/infrastructure/queue"
	"library-sync/pkg/container"
)

// asynqScheduler wraps queue.Scheduler with additional functionality
type asynqScheduler struct {
	*queue.Scheduler
}

// setupScheduler registers the reconcile cron. An empty RECONCILE_CRON
// disables it and yields a scheduler whose Shutdown is a no-op.
func setupScheduler(c *container.Container) (*asynqScheduler, error) {
	cron := c.Config.Sync.ReconcileCron
	if cron == "" {
		log.Println("[Scheduler] Disabled (RECONCILE_CRON is empty)")
		return &asynqScheduler{}, nil
	}

	scheduler := queue.NewScheduler(c.RedisOpt())
	if err := scheduler.RegisterReconcileJob(cron); err != nil {
		return nil, fmt.Errorf("register reconcile job: %w", err)
	}

	log.Println("[Scheduler] Starting...")
	if err := scheduler.Start(); err != nil {
		return nil, fmt.Errorf("start scheduler: %w", err)
	}

	return &asynqScheduler{Scheduler: scheduler}, nil
}

// Shutdown gracefully shuts down the scheduler
func (s *asynqScheduler) Shutdown() {
	if s.Scheduler == nil {
		return
	}
	log.Println("[Scheduler] Shutting down...")
	s.Scheduler.Shutdown()
	log.Println("[Scheduler] ✓ Stopped")
}
