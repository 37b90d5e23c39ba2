package main

import (
	"context"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"library-sync/internal/shared"
	"library-sync/pkg/container"
	"library-sync/pkg/logger"
)

// asynqServer wraps asynq.Server with additional functionality
type asynqServer struct {
	*asynq.Server
}

// setupAsynqServer starts the server for the sync queue. One worker only:
// retried events and reconcile runs must not interleave with each other.
func setupAsynqServer(c *container.Container, handlers *HandlerRegistry) (*asynqServer, error) {
	mux := asynq.NewServeMux()
	handlers.RegisterHandlers(mux)

	srv := asynq.NewServer(
		c.RedisOpt(),
		asynq.Config{
			Queues: map[string]int{
				shared.QueueSync: 1,
			},
			Concurrency: 1,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logger.Warn("Task failed", map[string]interface{}{
					"type":      task.Type(),
					"retry":     retried,
					"max_retry": maxRetry,
					"error":     err.Error(),
				})
			}),
		},
	)

	log.Println("[Worker] Starting...")
	if err := srv.Start(mux); err != nil {
		return nil, fmt.Errorf("start asynq server: %w", err)
	}

	return &asynqServer{Server: srv}, nil
}

// Shutdown waits for the in-flight task, up to asynq's ShutdownTimeout.
func (s *asynqServer) Shutdown() {
	log.Println("[Worker] Shutting down...")
	s.Server.Shutdown()
	log.Println("[Worker] ✓ Gracefully stopped")
}
