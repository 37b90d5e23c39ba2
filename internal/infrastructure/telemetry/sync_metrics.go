package telemetry

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel/metric"

	"library-sync/internal/consumer"
)

// Stats is a point-in-time copy of the worker counters, served on /stats.
type Stats struct {
	Processed  int64 `json:"processed"`
	Affected   int64 `json:"affected"`
	Failed     int64 `json:"failed"`
	Skipped    int64 `json:"skipped"`
	Retried    int64 `json:"retried"`
	Unroutable int64 `json:"unroutable"`
	Duplicates int64 `json:"duplicates"`
}

// SyncMetrics records consumer outcomes as OTel counters and keeps local
// totals for the stats endpoint.
type SyncMetrics struct {
	processed  *Counter
	affected   *Counter
	failed     *Counter
	skipped    *Counter
	retried    *Counter
	unroutable *Counter
	duplicates *Counter

	totals struct {
		processed, affected, failed, skipped, retried, unroutable, duplicates atomic.Int64
	}
}

var _ consumer.Recorder = (*SyncMetrics)(nil)

func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	m := &SyncMetrics{}
	counters := []struct {
		dst         **Counter
		name, descr string
		unit        string
	}{
		{&m.processed, "sync_events_processed_total", "Events applied to the projection", "{event}"},
		{&m.affected, "sync_documents_affected_total", "Embedding documents rewritten by cascades", "{document}"},
		{&m.failed, "sync_events_failed_total", "Events whose apply returned an error", "{event}"},
		{&m.skipped, "sync_events_skipped_total", "Failed events dropped under the skip policy", "{event}"},
		{&m.retried, "sync_events_retried_total", "Failed events handed to the retry queue", "{event}"},
		{&m.unroutable, "sync_events_unroutable_total", "Events with an unknown topic", "{event}"},
		{&m.duplicates, "sync_events_duplicate_total", "Redelivered events already processed", "{event}"},
	}
	for _, c := range counters {
		counter, err := NewCounter(meter, c.name, c.descr, c.unit)
		if err != nil {
			return nil, fmt.Errorf("sync metrics: %w", err)
		}
		*c.dst = counter
	}
	return m, nil
}

func (m *SyncMetrics) RecordProcessed(ctx context.Context, topic, op string, affected int) {
	m.totals.processed.Add(1)
	m.totals.affected.Add(int64(affected))
	m.processed.Inc(ctx, AttrTopic.String(topic), AttrOperation.String(op))
	if affected > 0 {
		m.affected.Add(ctx, int64(affected), AttrTopic.String(topic), AttrOperation.String(op))
	}
}

func (m *SyncMetrics) RecordFailed(ctx context.Context, topic string, permanent bool) {
	m.totals.failed.Add(1)
	m.failed.Inc(ctx, AttrTopic.String(topic), AttrPermanent.Bool(permanent))
}

func (m *SyncMetrics) RecordSkipped(ctx context.Context, topic string) {
	m.totals.skipped.Add(1)
	m.skipped.Inc(ctx, AttrTopic.String(topic))
}

func (m *SyncMetrics) RecordRetried(ctx context.Context, topic string) {
	m.totals.retried.Add(1)
	m.retried.Inc(ctx, AttrTopic.String(topic))
}

func (m *SyncMetrics) RecordUnroutable(ctx context.Context, topic string) {
	m.totals.unroutable.Add(1)
	m.unroutable.Inc(ctx, AttrTopic.String(topic))
}

func (m *SyncMetrics) RecordDuplicate(ctx context.Context, topic string) {
	m.totals.duplicates.Add(1)
	m.duplicates.Inc(ctx, AttrTopic.String(topic))
}

func (m *SyncMetrics) Stats() Stats {
	return Stats{
		Processed:  m.totals.processed.Load(),
		Affected:   m.totals.affected.Load(),
		Failed:     m.totals.failed.Load(),
		Skipped:    m.totals.skipped.Load(),
		Retried:    m.totals.retried.Load(),
		Unroutable: m.totals.unroutable.Load(),
		Duplicates: m.totals.duplicates.Load(),
	}
}
