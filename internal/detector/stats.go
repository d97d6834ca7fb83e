// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package detector

import (
	"sync"
	"time"
)

// processingTimeWindow is a rolling sample buffer of the last N
// processing-time observations, per spec.md §4.4's "rolling window of the
// last 1,000 processing-time samples". Grounded on the teacher's
// sentinel.Tracker circular-buffer pattern (deleted this session, reused
// in spirit).
type processingTimeWindow struct {
	mu      sync.Mutex
	samples []time.Duration
	next    int
	filled  bool
	cap     int
}

func newProcessingTimeWindow(capacity int) *processingTimeWindow {
	if capacity <= 0 {
		capacity = 1000
	}
	return &processingTimeWindow{samples: make([]time.Duration, capacity), cap: capacity}
}

func (w *processingTimeWindow) Record(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.samples[w.next] = d
	w.next = (w.next + 1) % w.cap
	if w.next == 0 {
		w.filled = true
	}
}

// Mean returns the rolling mean of all recorded samples, or 0 if none.
func (w *processingTimeWindow) Mean() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := w.next
	if w.filled {
		n = w.cap
	}
	if n == 0 {
		return 0
	}
	var sum time.Duration
	for i := 0; i < n; i++ {
		sum += w.samples[i]
	}
	return sum / time.Duration(n)
}

// Counters tracks lifetime detector activity, exposed to internal/metrics
// and the status API.
type Counters struct {
	mu              sync.Mutex
	FlowsAnalyzed   uint64
	AttacksDetected uint64
	Benign          uint64
	FalsePositives  uint64
	AttackTypes     map[string]uint64
}

func newCounters() *Counters {
	return &Counters{AttackTypes: make(map[string]uint64)}
}

func (c *Counters) recordBenign() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Benign++
}

func (c *Counters) recordAttack(attackType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.AttacksDetected++
	c.AttackTypes[attackType]++
}

func (c *Counters) recordFalsePositive() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.FalsePositives++
}

func (c *Counters) recordAnalyzed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.FlowsAnalyzed++
}

// Snapshot is a point-in-time copy of Counters safe to read without
// holding the lock.
type Snapshot struct {
	FlowsAnalyzed   uint64
	AttacksDetected uint64
	Benign          uint64
	FalsePositives  uint64
	AttackTypes     map[string]uint64
}

func (c *Counters) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	types := make(map[string]uint64, len(c.AttackTypes))
	for k, v := range c.AttackTypes {
		types[k] = v
	}
	return Snapshot{
		FlowsAnalyzed:   c.FlowsAnalyzed,
		AttacksDetected: c.AttacksDetected,
		Benign:          c.Benign,
		FalsePositives:  c.FalsePositives,
		AttackTypes:     types,
	}
}
