package queue

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"library-sync/internal/shared"
	"library-sync/pkg/logger"
)

type Scheduler struct {
	scheduler *asynq.Scheduler
}

func NewScheduler(redisOpt asynq.RedisClientOpt) *Scheduler {
	scheduler := asynq.NewScheduler(
		redisOpt,
		&asynq.SchedulerOpts{
			Location: time.UTC,
			LogLevel: asynq.InfoLevel,
		},
	)

	return &Scheduler{scheduler: scheduler}
}

// ================================================
// Reconcile pass (RECONCILE_CRON, default daily at 03:30 UTC)
// ================================================
// Walks every book and copy and repairs embedded snapshots that drifted from
// their canonical documents. MaxRetry stays at 1: the next run repairs
// whatever this one could not.
func (s *Scheduler) RegisterReconcileJob(cronspec string) error {
	payload, err := json.Marshal(shared.ReconcilePayload{})
	if err != nil {
		return err
	}

	task := asynq.NewTask(shared.TypeReconcile, payload)

	_, err = s.scheduler.Register(
		cronspec,
		task,
		asynq.Queue(shared.QueueSync),
		asynq.MaxRetry(1),
		asynq.Timeout(30*time.Minute),
		asynq.Unique(time.Hour),
	)

	if err != nil {
		logger.Error("Failed to register Reconcile job", err)
		return err
	}

	logger.Info("✓ Registered Reconcile", map[string]interface{}{"cron": cronspec})
	return nil
}

// Start runs the scheduler in the background. Signal handling stays with the caller.
func (s *Scheduler) Start() error {
	return s.scheduler.Start()
}

func (s *Scheduler) Shutdown() {
	s.scheduler.Shutdown()
}
