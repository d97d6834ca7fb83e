// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package detector

import (
	"context"
	"sync"
	"time"

	"ddosd/internal/clock"
	"ddosd/internal/flowtable"
	"ddosd/internal/logging"
	"ddosd/internal/whitelist"
)

// Config controls drain batching, scoring concurrency, and the
// false-positive guard, mirroring spec.md §6's detection section.
type Config struct {
	BatchSize             int
	MinPacketsForAnalysis int
	AsyncAnalysis         bool
	MaxAnalysisThreads    int
	CheckInterval         time.Duration
	DetectionThreshold    float64
	FalsePositiveThreshold float64
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.MaxAnalysisThreads <= 0 {
		c.MaxAnalysisThreads = 4
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = time.Second
	}
	if c.FalsePositiveThreshold <= c.DetectionThreshold {
		c.FalsePositiveThreshold = c.DetectionThreshold + 0.1
	}
	return c
}

// Loop is the detector loop (C4): it drains flows emitted by the flow
// table, scores them against an Ensemble, applies the false-positive
// legitimacy guard, and forwards confirmed attacks to an AttackSink.
type Loop struct {
	cfg   Config
	clock clock.Clock
	log   *logging.Logger

	ensemble Ensemble
	oracle   LegitimacyOracle
	sink     AttackSink

	intake   chan *flowtable.Flow
	counters *Counters
	latency  *processingTimeWindow

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New constructs a Loop. intake is the channel the flow table (or its
// pipeline wrapper) pushes emitted flows onto.
func New(cfg Config, ensemble Ensemble, oracle LegitimacyOracle, sink AttackSink, intake chan *flowtable.Flow, clk clock.Clock, log *logging.Logger) *Loop {
	if clk == nil {
		clk = clock.System
	}
	if log == nil {
		log = logging.Default()
	}
	return &Loop{
		cfg:      cfg.withDefaults(),
		clock:    clk,
		log:      log.WithComponent("detector"),
		ensemble: ensemble,
		oracle:   oracle,
		sink:     sink,
		intake:   intake,
		counters: newCounters(),
		latency:  newProcessingTimeWindow(1000),
	}
}

// Counters returns the loop's lifetime activity counters.
func (l *Loop) Counters() Snapshot { return l.counters.Snapshot() }

// MeanProcessingTime returns the rolling mean flow-scoring latency.
func (l *Loop) MeanProcessingTime() time.Duration { return l.latency.Mean() }

// Start runs the drain-score-emit cycle until ctx is cancelled. It blocks;
// callers typically run it in a goroutine.
func (l *Loop) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel

	ticker := time.NewTicker(l.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.drainAndScore(ctx)
		}
	}
}

// Stop cancels the running loop. Safe to call before Start returns.
func (l *Loop) Stop() {
	if l.cancel != nil {
		l.cancel()
	}
}

// drainAndScore performs one non-blocking drain of up to BatchSize flows,
// deduplicating by flow key within the batch, per spec.md §4.4.
func (l *Loop) drainAndScore(ctx context.Context) {
	batch := l.drain()
	if len(batch) == 0 {
		return
	}

	if l.cfg.AsyncAnalysis {
		l.scoreAsync(batch)
	} else {
		for _, f := range batch {
			l.scoreOne(f)
		}
	}
}

func (l *Loop) drain() []*flowtable.Flow {
	seen := make(map[string]bool)
	var batch []*flowtable.Flow

	for len(batch) < l.cfg.BatchSize {
		select {
		case f, ok := <-l.intake:
			if !ok {
				return batch
			}
			if f == nil {
				continue
			}
			if int(f.TotalPackets) < l.cfg.MinPacketsForAnalysis {
				continue
			}
			if seen[f.Key] {
				continue
			}
			seen[f.Key] = true
			batch = append(batch, f)
		default:
			return batch
		}
	}
	return batch
}

// scoreAsync fans a batch out to a bounded worker pool of size
// MaxAnalysisThreads, per spec.md §4.4's async_analysis mode.
func (l *Loop) scoreAsync(batch []*flowtable.Flow) {
	sem := make(chan struct{}, l.cfg.MaxAnalysisThreads)
	var wg sync.WaitGroup
	for _, f := range batch {
		f := f
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			l.scoreOne(f)
		}()
	}
	wg.Wait()
}

func (l *Loop) scoreOne(f *flowtable.Flow) {
	start := l.clock.Now()
	verdict := l.ensemble.Evaluate(f)
	l.latency.Record(l.clock.Now().Sub(start))
	l.counters.recordAnalyzed()

	isAttack := verdict.IsAttack
	confidence := verdict.Confidence

	if isAttack && confidence >= l.cfg.DetectionThreshold && confidence < l.cfg.FalsePositiveThreshold && l.oracle != nil {
		sig := whitelist.SignatureFromFlow(f)
		legit, reason := l.oracle.IsLegitimate(f.Forward.Addr, f.Backward.Addr, f.Forward.Port, f.Backward.Port, sig)
		if legit {
			l.log.WithFields(map[string]any{
				"flow_key": f.Key, "confidence": confidence, "reason": reason,
			}).Debug("false-positive guard suppressed verdict")
			l.counters.recordFalsePositive()
			isAttack = false
		}
	}

	if isAttack && confidence >= l.cfg.DetectionThreshold {
		l.counters.recordAttack(verdict.AttackType)
		if l.sink != nil {
			l.sink.Handle(f, verdict)
		}
		return
	}

	l.counters.recordBenign()
}
