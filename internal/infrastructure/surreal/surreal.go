package surreal

import (
	"context"
	"fmt"
	"log"
	"time"

	surrealdb "github.com/surrealdb/surrealdb.go"
)

// Config is the SurrealDB connection configuration.
type Config struct {
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string
}

// Connect opens the connection, signs in when credentials are set and selects
// the namespace and database.
func Connect(ctx context.Context, cfg Config) (*surrealdb.DB, error) {
	log.Printf("[SURREALDB] Connecting to %s (ns=%s db=%s)", cfg.URL, cfg.Namespace, cfg.Database)

	db, err := surrealdb.FromEndpointURLString(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if cfg.Username != "" && cfg.Password != "" {
		if _, err := db.SignIn(ctx, map[string]any{
			"user": cfg.Username,
			"pass": cfg.Password,
		}); err != nil {
			_ = db.Close(ctx)
			return nil, fmt.Errorf("failed to authenticate: %w", err)
		}
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		_ = db.Close(ctx)
		return nil, fmt.Errorf("failed to use namespace/database: %w", err)
	}

	log.Println("[SURREALDB] Connection established")
	return db, nil
}

// Close closes the connection with a short deadline.
func Close(db *surrealdb.DB) error {
	if db == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return db.Close(ctx)
}
