// Package metrics provides in-memory per-stage runtime statistics.
package metrics

import (
	"math"
	"sync"
	"time"
)

// StageMetrics holds aggregated timing for a single pipeline stage.
type StageMetrics struct {
	Count     int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration
}

// StageSnapshot provides computed stats from raw metrics.
type StageSnapshot struct {
	Stage       string  `json:"stage"`
	Count       int64   `json:"count"`
	TotalTimeMs int64   `json:"total_time_ms"`
	AvgTimeMs   float64 `json:"avg_time_ms"`
	MinTimeMs   int64   `json:"min_time_ms"`
	MaxTimeMs   int64   `json:"max_time_ms"`
}

// Snapshot represents the full run statistics at a point in time.
type Snapshot struct {
	UptimeSeconds float64         `json:"uptime_seconds"`
	Stages        []StageSnapshot `json:"stages"`
}

// Collector aggregates per-record processing times by stage.
// All methods are thread-safe.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	stages    map[string]*StageMetrics
	order     []string
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		stages:    make(map[string]*StageMetrics),
	}
}

// getOrCreate returns existing metrics or creates new ones for a stage.
// Caller must hold write lock.
func (c *Collector) getOrCreate(stage string) *StageMetrics {
	m, ok := c.stages[stage]
	if !ok {
		m = &StageMetrics{MinTime: time.Duration(math.MaxInt64)}
		c.stages[stage] = m
		c.order = append(c.order, stage)
	}
	return m
}

// RecordTiming records the processing time of one record in a stage.
func (c *Collector) RecordTiming(stage string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(stage)
	m.Count++
	m.TotalTime += duration

	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}
}

// Snapshot returns the current statistics. Stages appear in the order
// they first recorded a timing.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := Snapshot{
		UptimeSeconds: time.Since(c.startTime).Seconds(),
	}
	for _, stage := range c.order {
		m := c.stages[stage]
		s := StageSnapshot{
			Stage:       stage,
			Count:       m.Count,
			TotalTimeMs: m.TotalTime.Milliseconds(),
			MaxTimeMs:   m.MaxTime.Milliseconds(),
		}
		if m.Count > 0 {
			s.AvgTimeMs = float64(m.TotalTime.Milliseconds()) / float64(m.Count)
			s.MinTimeMs = m.MinTime.Milliseconds()
		}
		snap.Stages = append(snap.Stages, s)
	}
	return snap
}
