// cmd/worker/startup.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"library-sync/internal/shared/middleware"
	"library-sync/internal/syncer/job"
	"library-sync/pkg/container"
)

// consumerState tracks whether the stream consumer loop is alive.
type consumerState struct {
	running atomic.Bool
}

func (s *consumerState) check(context.Context) error {
	if !s.running.Load() {
		return errors.New("consumer loop is not running")
	}
	return nil
}

// healthCheck is one named dependency check.
type healthCheck struct {
	name string
	fn   func(ctx context.Context) error
}

// HealthChecker performs startup and readiness checks
type HealthChecker struct {
	checks []healthCheck
}

// checkAll runs all health checks and stops at the first failure
func (h *HealthChecker) checkAll(ctx context.Context) error {
	for _, check := range h.checks {
		log.Printf("⏳ Checking %s...\n", check.name)
		if err := check.fn(ctx); err != nil {
			log.Printf("❌ %s: %v\n", check.name, err)
			return fmt.Errorf("%s failed: %w", check.name, err)
		}
		log.Printf("✓ %s: OK\n", check.name)
	}
	return nil
}

// status runs every check and reports each result.
func (h *HealthChecker) status(ctx context.Context) (map[string]string, bool) {
	results := make(map[string]string, len(h.checks))
	ok := true
	for _, check := range h.checks {
		if err := check.fn(ctx); err != nil {
			results[check.name] = err.Error()
			ok = false
			continue
		}
		results[check.name] = "ok"
	}
	return results, ok
}

// dependencyChecks lists the backing services the worker needs. The pool
// check only exists for the postgres projection backend.
func dependencyChecks(c *container.Container) []healthCheck {
	checks := []healthCheck{{"Redis Connection", c.Redis.HealthCheck}}
	if c.DB != nil {
		checks = append(checks, healthCheck{"PostgreSQL Pool", c.DB.HealthCheck})
	}
	return append(checks, healthCheck{"Projection Store", c.Store.Ping})
}

// workerStats serves event counters, the last reconcile pass and, on
// postgres, the pool stats.
func workerStats(c *container.Container) func(ctx context.Context) gin.H {
	return func(ctx context.Context) gin.H {
		stats := gin.H{"events": c.Metrics.Stats()}
		if c.DB != nil {
			stats["db_pool"] = c.DB.Stats()
		}

		rec, found, err := job.LoadReconcileRecord(ctx, c.Cache)
		switch {
		case err != nil:
			stats["last_reconcile"] = gin.H{"error": err.Error()}
		case found:
			stats["last_reconcile"] = rec
		}
		return stats
	}
}

type healthServer struct {
	*http.Server
}

// startServices performs startup checks and starts the health endpoint.
func startServices(c *container.Container, state *consumerState) (*healthServer, error) {
	log.Println("============================================")
	log.Printf("🚀 %s worker starting...", c.Config.App.Name)
	log.Println("============================================")

	startup := &HealthChecker{checks: dependencyChecks(c)}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := startup.checkAll(ctx); err != nil {
		return nil, err
	}

	readiness := &HealthChecker{checks: append(startup.checks, healthCheck{"Stream Consumer", state.check})}
	router := newHealthRouter(c.Config.App.Name, readiness, workerStats(c))

	srv := &http.Server{
		Addr:              c.Config.App.HealthAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("[Health] Starting health check server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[Health] Failed to start: %v\n", err)
		}
	}()

	return &healthServer{Server: srv}, nil
}

func (s *healthServer) Shutdown(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.Server.Shutdown(ctx); err != nil {
		log.Printf("[Health] Shutdown: %v", err)
	}
}

// newHealthRouter serves /health (liveness), /ready (dependency checks)
// and /stats.
func newHealthRouter(service string, checker *HealthChecker, stats func(ctx context.Context) gin.H) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Logger(), middleware.Recovery())

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "UP", "service": service})
	})

	r.GET("/ready", func(ctx *gin.Context) {
		checkCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
		defer cancel()

		results, ok := checker.status(checkCtx)
		if !ok {
			ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "NOT_READY", "checks": results})
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"status": "READY", "checks": results})
	})

	r.GET("/stats", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, stats(ctx.Request.Context()))
	})

	return r
}
