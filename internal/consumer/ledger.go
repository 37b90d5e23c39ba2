package consumer

import (
	"context"
	"time"

	"library-sync/internal/shared"
	"library-sync/pkg/cache"
)

// CacheLedger keeps idempotency markers in the shared cache (Redis).
type CacheLedger struct {
	cache cache.Cache
	ttl   time.Duration
}

func NewCacheLedger(c cache.Cache, ttl time.Duration) *CacheLedger {
	return &CacheLedger{cache: c, ttl: ttl}
}

func (l *CacheLedger) IsProcessed(ctx context.Context, stream, id string) (bool, error) {
	return l.cache.Exists(ctx, shared.LedgerKey(stream, id))
}

// MarkProcessed sets the marker only if absent; an existing marker keeps its
// original timestamp and TTL.
func (l *CacheLedger) MarkProcessed(ctx context.Context, stream, id string) error {
	_, err := l.cache.SetNX(ctx, shared.LedgerKey(stream, id), time.Now().Unix(), l.ttl)
	return err
}
