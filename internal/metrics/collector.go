// Package metrics provides in-memory runtime statistics collection and an
// OpenTelemetry sink for task outcomes and operation timings.
package metrics

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/raphaelgruber/wallharvest/internal/models"
)

// Sink receives fire-and-forget measurements from the pipeline.
type Sink interface {
	RecordTaskOutcome(ctx context.Context, status models.TaskStatus)
	RecordTiming(op string, duration time.Duration)
}

// OperationMetrics holds aggregated metrics for a single operation type.
type OperationMetrics struct {
	Count     int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Count       int64
	TotalTimeMs int64
	AvgTimeMs   float64
	MinTimeMs   int64
	MaxTimeMs   int64
}

// Snapshot represents the collected statistics at a point in time.
type Snapshot struct {
	UptimeSeconds float64
	Group         *OperationSnapshot
	SyncOwn       *OperationSnapshot
	SyncParent    *OperationSnapshot
	Outcomes      map[models.TaskStatus]int64
}

// Operation names for the collector.
const (
	OpGroup      = "group"
	OpSyncOwn    = "sync_own"
	OpSyncParent = "sync_parent"
)

// Collector aggregates in-memory runtime statistics.
// All methods are thread-safe.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*OperationMetrics
	outcomes  map[models.TaskStatus]int64
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*OperationMetrics),
		outcomes:  make(map[models.TaskStatus]int64),
	}
}

// getOrCreate returns existing metrics or creates new ones for an operation.
// Caller must hold write lock.
func (c *Collector) getOrCreate(op string) *OperationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{MinTime: time.Duration(math.MaxInt64)}
		c.ops[op] = m
	}
	return m
}

// RecordTiming records timing for an operation.
func (c *Collector) RecordTiming(op string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.Count++
	m.TotalTime += duration

	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}
}

// RecordTaskOutcome counts a task reaching a terminal status.
func (c *Collector) RecordTaskOutcome(_ context.Context, status models.TaskStatus) {
	c.mu.Lock()
	c.outcomes[status]++
	c.mu.Unlock()
}

// snapshotOp creates a snapshot for an operation, returning nil if no data.
func snapshotOp(m *OperationMetrics) *OperationSnapshot {
	if m == nil || m.Count == 0 {
		return nil
	}
	return &OperationSnapshot{
		Count:       m.Count,
		TotalTimeMs: m.TotalTime.Milliseconds(),
		AvgTimeMs:   float64(m.TotalTime.Milliseconds()) / float64(m.Count),
		MinTimeMs:   m.MinTime.Milliseconds(),
		MaxTimeMs:   m.MaxTime.Milliseconds(),
	}
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	outcomes := make(map[models.TaskStatus]int64, len(c.outcomes))
	for k, v := range c.outcomes {
		outcomes[k] = v
	}

	return Snapshot{
		UptimeSeconds: time.Since(c.startTime).Seconds(),
		Group:         snapshotOp(c.ops[OpGroup]),
		SyncOwn:       snapshotOp(c.ops[OpSyncOwn]),
		SyncParent:    snapshotOp(c.ops[OpSyncParent]),
		Outcomes:      outcomes,
	}
}

// Multi forwards every measurement to each sink.
type Multi []Sink

// RecordTaskOutcome implements Sink.
func (m Multi) RecordTaskOutcome(ctx context.Context, status models.TaskStatus) {
	for _, s := range m {
		s.RecordTaskOutcome(ctx, status)
	}
}

// RecordTiming implements Sink.
func (m Multi) RecordTiming(op string, duration time.Duration) {
	for _, s := range m {
		s.RecordTiming(op, duration)
	}
}
