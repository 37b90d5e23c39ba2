// cmd/worker/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"library-sync/internal/syncer/job"
	"library-sync/pkg/container"
	"library-sync/pkg/logger"
)

func main() {
	reconcileOnce := flag.Bool("reconcile", false, "run one reconciliation pass and exit")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, using system environment variables")
	}

	env := getEnv("APP_ENV", "development")
	logger.Init(env, getEnv("LOG_LEVEL", "info"))
	if env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(*reconcileOnce); err != nil {
		log.Fatalf("[Worker] %v", err)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func run(reconcileOnce bool) error {
	c, err := container.NewContainer()
	if err != nil {
		return err
	}
	defer c.Cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if reconcileOnce {
		return runReconcile(ctx, c)
	}

	if err := c.Source.Setup(ctx); err != nil {
		return err
	}

	handlers := initializeHandlers(c)
	srv, err := setupAsynqServer(c, handlers)
	if err != nil {
		return err
	}

	scheduler, err := setupScheduler(c)
	if err != nil {
		srv.Shutdown()
		return err
	}

	state := &consumerState{}
	health, err := startServices(c, state)
	if err != nil {
		scheduler.Shutdown()
		srv.Shutdown()
		return err
	}

	done := make(chan error, 1)
	go func() {
		state.running.Store(true)
		defer state.running.Store(false)
		done <- c.Consumer.Run(ctx)
	}()

	return waitForShutdown(ctx, done, srv, scheduler, health)
}

// waitForShutdown blocks until a signal arrives or the consumer halts, then
// stops everything in reverse start order. A halted consumer is returned as
// the exit error.
func waitForShutdown(ctx context.Context, done <-chan error, srv *asynqServer, scheduler *asynqScheduler, health *healthServer) error {
	var halted error
	select {
	case <-ctx.Done():
		log.Println("[Shutdown] Signal received, gracefully stopping...")
		if err := <-done; err != nil {
			halted = err
		}
	case err := <-done:
		if err != nil {
			halted = errors.Join(errors.New("consumer halted"), err)
		}
		log.Printf("[Shutdown] Consumer stopped: %v", err)
	}

	health.Shutdown(5 * time.Second)
	scheduler.Shutdown()
	srv.Shutdown()
	log.Println("[Shutdown] ✓ Stopped")
	return halted
}

func runReconcile(ctx context.Context, c *container.Container) error {
	start := time.Now()
	rep, err := c.Synchronizer.Reconcile(ctx)
	if err != nil {
		return err
	}

	logger.Info("Reconcile pass finished", map[string]interface{}{
		"books_scanned":        rep.BooksScanned,
		"books_repaired":       rep.BooksRepaired,
		"orphans_kept":         rep.OrphansKept,
		"snapshots_refreshed":  rep.SnapshotsRefreshed,
		"duplicates_collapsed": rep.DuplicatesCollapsed,
		"copies_scanned":       rep.CopiesScanned,
		"copies_refreshed":     rep.CopiesRefreshed,
		"took":                 time.Since(start).String(),
	})

	return job.SaveReconcileRecord(ctx, c.Cache, job.ReconcileRecord{
		FinishedAt: time.Now().UTC(),
		Took:       time.Since(start).String(),
		Report:     rep,
	})
}
