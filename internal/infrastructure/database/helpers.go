package database

import (
	"log"
	"time"
)

// Close closes every connection in the pool. Safe to call more than once.
func (db *PostgresDB) Close() error {
	if db.Pool == nil {
		log.Println("[DATABASE] Pool is already closed or was never initialized")
		return nil
	}

	log.Println("[DATABASE] Closing database connection pool...")
	db.Pool.Close()
	db.Pool = nil
	log.Println("[DATABASE] Connection pool closed successfully")

	return nil
}

// PoolStats is a snapshot of pool counters used by the /stats endpoint.
type PoolStats struct {
	AcquiredConns   int32         `json:"acquired_conns"`
	IdleConns       int32         `json:"idle_conns"`
	TotalConns      int32         `json:"total_conns"`
	MaxConns        int32         `json:"max_conns"`
	AcquireCount    int64         `json:"acquire_count"`
	AvgAcquireTime  time.Duration `json:"avg_acquire_time_ns"`
	NewConnsCount   int64         `json:"new_conns_count"`
	CanceledAcquire int64         `json:"canceled_acquire_count"`
}

// Stats returns the pool counters, or nil if the pool is not open.
func (db *PostgresDB) Stats() *PoolStats {
	if db.Pool == nil {
		return nil
	}
	raw := db.Pool.Stat()
	return &PoolStats{
		AcquiredConns:   raw.AcquiredConns(),
		IdleConns:       raw.IdleConns(),
		TotalConns:      raw.TotalConns(),
		MaxConns:        raw.MaxConns(),
		AcquireCount:    raw.AcquireCount(),
		AvgAcquireTime:  calculateAvgDuration(raw.AcquireDuration(), raw.AcquireCount()),
		NewConnsCount:   raw.NewConnsCount(),
		CanceledAcquire: raw.CanceledAcquireCount(),
	}
}

func calculateAvgDuration(totalDuration time.Duration, count int64) time.Duration {
	if count == 0 {
		return 0
	}
	return totalDuration / time.Duration(count)
}
