package main

import (
	"github.com/hibiken/asynq"

	"library-sync/internal/shared"
	"library-sync/internal/syncer/job"
	"library-sync/pkg/container"
)

// HandlerRegistry holds all job handlers
type HandlerRegistry struct {
	retryEvent *job.RetryEventHandler
	reconcile  *job.ReconcileHandler
}

// initializeHandlers creates all job handlers with their dependencies
func initializeHandlers(c *container.Container) *HandlerRegistry {
	return &HandlerRegistry{
		retryEvent: job.NewRetryEventHandler(c.Synchronizer),
		reconcile:  job.NewReconcileHandler(c.Synchronizer, c.Cache),
	}
}

// RegisterHandlers registers all handlers with the mux
func (h *HandlerRegistry) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(shared.TypeRetryEvent, h.retryEvent.ProcessTask)
	mux.HandleFunc(shared.TypeReconcile, h.reconcile.ProcessTask)
}
