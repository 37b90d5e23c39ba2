package container

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"
	surrealdb "github.com/surrealdb/surrealdb.go"

	"library-sync/internal/config"
	"library-sync/internal/consumer"
	infraCache "library-sync/internal/infrastructure/cache"
	"library-sync/internal/infrastructure/database"
	"library-sync/internal/infrastructure/queue"
	"library-sync/internal/infrastructure/stream"
	"library-sync/internal/infrastructure/surreal"
	"library-sync/internal/infrastructure/telemetry"
	"library-sync/internal/projection"
	"library-sync/internal/projection/memstore"
	"library-sync/internal/projection/pgstore"
	"library-sync/internal/projection/surrealstore"
	"library-sync/internal/syncer"
	"library-sync/pkg/cache"
)

// ========================================
// CONTAINER STRUCT
// ========================================

// Container holds every dependency of the sync worker.
type Container struct {
	// ========================================
	// INFRASTRUCTURE LAYER
	// ========================================

	Config  *config.Config
	DB      *database.PostgresDB // set when PROJECTION_BACKEND=postgres
	Surreal *surrealdb.DB        // set when PROJECTION_BACKEND=surrealdb
	Redis   *infraCache.RedisClient
	Cache   cache.Cache

	AsynqClient   *asynq.Client
	MeterProvider *telemetry.MeterProvider

	// ========================================
	// PROJECTION + SYNC
	// ========================================

	Store        projection.Store
	Synchronizer *syncer.Synchronizer
	Metrics      *telemetry.SyncMetrics

	// ========================================
	// EVENT INTAKE
	// ========================================

	Source   *stream.Source
	Retrier  *queue.Retrier
	Consumer *consumer.Consumer
}

// ========================================
// CONSTRUCTOR: BUILD CONTAINER
// ========================================

// NewContainer builds the dependency graph in order:
// 1. Config
// 2. Infrastructure (Redis, projection backend, telemetry)
// 3. Synchronizer
// 4. Event intake (stream source, ledger, retrier, consumer)
func NewContainer() (*Container, error) {
	log.Println("🔧 Initializing DI Container...")

	c := &Container{}

	// ========================================
	// STEP 1: LOAD CONFIGURATION
	// ========================================
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	c.Config = cfg
	log.Printf("✅ Config loaded (Environment: %s, Backend: %s)", cfg.App.Environment, cfg.App.ProjectionBackend)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// ========================================
	// STEP 2: INITIALIZE REDIS
	// ========================================
	// Redis is not optional here: it carries the streams, the ledger and the retry queue
	log.Println("🔴 Connecting to Redis...")

	c.Redis = infraCache.NewRedisClient(cfg.Redis.Host, cfg.Redis.Password, cfg.Redis.DB)
	if err := c.Redis.Connect(ctx); err != nil {
		c.Cleanup()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	c.Cache = infraCache.NewRedisCache(c.Redis.Client, "")
	c.AsynqClient = asynq.NewClient(c.RedisOpt())
	log.Println("✅ Redis connected")

	// ========================================
	// STEP 3: INITIALIZE PROJECTION STORE
	// ========================================
	log.Printf("🗄️  Opening projection store (%s)...", cfg.App.ProjectionBackend)

	if err := c.initStore(ctx); err != nil {
		c.Cleanup()
		return nil, fmt.Errorf("failed to init projection store: %w", err)
	}
	log.Println("✅ Projection store ready")

	// ========================================
	// STEP 4: INITIALIZE TELEMETRY
	// ========================================
	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.ExportInterval,
		ServiceName:       cfg.App.Name,
		Insecure:          cfg.Telemetry.Insecure,
	})
	if err != nil {
		c.Cleanup()
		return nil, fmt.Errorf("failed to init telemetry: %w", err)
	}
	c.MeterProvider = mp

	c.Metrics, err = telemetry.NewSyncMetrics(mp.Meter(cfg.App.Name))
	if err != nil {
		c.Cleanup()
		return nil, err
	}

	// ========================================
	// STEP 5: INITIALIZE SYNCHRONIZER
	// ========================================
	registry := syncer.NewDefaultRegistry(c.Store)
	c.Synchronizer = syncer.NewSynchronizer(registry, syncer.NewReconciler(c.Store))
	log.Printf("✅ Synchronizer ready (topics: %v)", registry.Topics())

	// ========================================
	// STEP 6: INITIALIZE EVENT INTAKE
	// ========================================
	if err := c.initConsumer(); err != nil {
		c.Cleanup()
		return nil, fmt.Errorf("failed to init consumer: %w", err)
	}

	log.Println("🎉 DI Container initialized successfully")
	return c, nil
}

// ========================================
// PRIVATE INITIALIZATION METHODS
// ========================================

func (c *Container) initStore(ctx context.Context) error {
	switch c.Config.App.ProjectionBackend {
	case config.BackendPostgres:
		dbConfig, err := config.LoadDatabaseConfig()
		if err != nil {
			return fmt.Errorf("failed to load database config: %w", err)
		}

		db := database.NewPostgresDB(dbConfig)
		if err := db.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		c.DB = db

		store := pgstore.New(db.Pool)
		if err := store.Migrate(ctx); err != nil {
			return err
		}
		c.Store = store

	case config.BackendSurreal:
		db, err := surreal.Connect(ctx, surreal.Config{
			URL:       c.Config.Surreal.URL,
			Namespace: c.Config.Surreal.Namespace,
			Database:  c.Config.Surreal.Database,
			Username:  c.Config.Surreal.Username,
			Password:  c.Config.Surreal.Password,
		})
		if err != nil {
			return err
		}
		c.Surreal = db
		c.Store = surrealstore.New(db)

	case config.BackendMemory:
		log.Println("⚠️  In-memory projection: documents are lost on restart")
		c.Store = memstore.New()

	default:
		return fmt.Errorf("unknown projection backend %q", c.Config.App.ProjectionBackend)
	}

	return c.Store.Ping(ctx)
}

func (c *Container) initConsumer() error {
	policy, err := consumer.ParsePolicy(c.Config.Sync.FailurePolicy)
	if err != nil {
		return err
	}

	c.Source = stream.NewSource(c.Redis.Client, stream.Config{
		Prefix:   c.Config.Stream.Prefix,
		Group:    c.Config.Stream.Group,
		Consumer: c.Config.Stream.Consumer,
		Block:    c.Config.Stream.Block,
	}, c.Synchronizer.Registry().Topics())

	c.Retrier = queue.NewRetrier(c.AsynqClient, c.Config.Sync.RetryMax)

	c.Consumer = consumer.New(c.Source, c.Synchronizer,
		consumer.WithPolicy(policy),
		consumer.WithLedger(consumer.NewCacheLedger(c.Cache, c.Config.Sync.LedgerTTL)),
		consumer.WithRetrier(c.Retrier),
		consumer.WithInlineRetry(c.Config.Sync.InlineRetries, c.Config.Sync.InlineBackoff),
		consumer.WithRecorder(c.Metrics),
	)
	return nil
}

// RedisOpt returns the asynq connection options for the configured Redis.
func (c *Container) RedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     c.Config.Redis.Host,
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
	}
}

// Cleanup releases every resource that was opened. Safe on a partly built container.
func (c *Container) Cleanup() {
	log.Println("🧹 Cleaning up container resources...")

	if c.MeterProvider != nil {
		if err := c.MeterProvider.Shutdown(context.Background()); err != nil {
			log.Printf("⚠️  Failed to flush metrics: %v", err)
		}
	}

	if c.AsynqClient != nil {
		if err := c.AsynqClient.Close(); err != nil {
			log.Printf("⚠️  Failed to close asynq client: %v", err)
		}
	}

	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			log.Printf("⚠️  Failed to close database: %v", err)
		} else {
			log.Println("✅ Database connections closed")
		}
	}

	if c.Surreal != nil {
		if err := surreal.Close(c.Surreal); err != nil {
			log.Printf("⚠️  Failed to close SurrealDB: %v", err)
		}
	}

	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			log.Printf("⚠️  Failed to close Redis: %v", err)
		} else {
			log.Println("✅ Redis connections closed")
		}
	}

	log.Println("✅ Container cleanup completed")
}
