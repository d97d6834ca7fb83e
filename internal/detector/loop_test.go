// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package detector

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ddosd/internal/classify"
	"ddosd/internal/clock"
	"ddosd/internal/flowtable"
	"ddosd/internal/whitelist"
)

type fakeEnsemble struct {
	verdict classify.Verdict
}

func (f fakeEnsemble) Evaluate(*flowtable.Flow) classify.Verdict { return f.verdict }

type fakeOracle struct {
	legit bool
}

func (o fakeOracle) IsLegitimate(string, string, uint16, uint16, whitelist.AttackSignature) (bool, string) {
	return o.legit, "test"
}

type fakeSink struct {
	mu    sync.Mutex
	calls int
}

func (s *fakeSink) Handle(*flowtable.Flow, classify.Verdict) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func testFlow(key string, packets uint64) *flowtable.Flow {
	return &flowtable.Flow{
		Key:          key,
		Protocol:     "tcp",
		Forward:      flowtable.Endpoint{Addr: "203.0.113.9", Port: 4000},
		Backward:     flowtable.Endpoint{Addr: "198.51.100.7", Port: 80},
		TotalPackets: packets,
	}
}

func TestDrain_DeduplicatesByFlowKeyWithinBatch(t *testing.T) {
	intake := make(chan *flowtable.Flow, 10)
	intake <- testFlow("k1", 10)
	intake <- testFlow("k1", 10)
	intake <- testFlow("k2", 10)

	sink := &fakeSink{}
	l := New(Config{BatchSize: 10, DetectionThreshold: 0.5}, fakeEnsemble{verdict: classify.Verdict{IsAttack: false}}, nil, sink, intake, clock.NewMock(time.Now()), nil)

	batch := l.drain()
	assert.Len(t, batch, 2)
}

func TestDrain_SkipsBelowMinPacketsForAnalysis(t *testing.T) {
	intake := make(chan *flowtable.Flow, 10)
	intake <- testFlow("k1", 2)

	l := New(Config{BatchSize: 10, MinPacketsForAnalysis: 5}, fakeEnsemble{}, nil, nil, intake, nil, nil)
	batch := l.drain()
	assert.Empty(t, batch)
}

func TestScoreOne_ConfirmedAttackForwardsToSink(t *testing.T) {
	intake := make(chan *flowtable.Flow, 1)
	sink := &fakeSink{}
	verdict := classify.Verdict{IsAttack: true, Confidence: 0.99, AttackType: "SYN Flood"}
	l := New(Config{BatchSize: 10, DetectionThreshold: 0.7, FalsePositiveThreshold: 0.85}, fakeEnsemble{verdict: verdict}, fakeOracle{legit: false}, sink, intake, nil, nil)

	l.scoreOne(testFlow("k1", 50))

	assert.Equal(t, 1, sink.count())
	snap := l.Counters()
	assert.Equal(t, uint64(1), snap.AttacksDetected)
	assert.Equal(t, uint64(1), snap.AttackTypes["SYN Flood"])
}

func TestScoreOne_FalsePositiveGuardSuppressesBorderlineVerdict(t *testing.T) {
	intake := make(chan *flowtable.Flow, 1)
	sink := &fakeSink{}
	// confidence sits inside [detection_threshold, false_positive_threshold)
	verdict := classify.Verdict{IsAttack: true, Confidence: 0.8, AttackType: "UDP Flood"}
	l := New(Config{BatchSize: 10, DetectionThreshold: 0.7, FalsePositiveThreshold: 0.9}, fakeEnsemble{verdict: verdict}, fakeOracle{legit: true}, sink, intake, nil, nil)

	l.scoreOne(testFlow("k1", 50))

	assert.Equal(t, 0, sink.count(), "legitimacy oracle must suppress the borderline verdict")
	snap := l.Counters()
	assert.Equal(t, uint64(1), snap.FalsePositives)
	assert.Equal(t, uint64(1), snap.Benign)
}

func TestScoreOne_HighConfidenceAttackBypassesGuard(t *testing.T) {
	intake := make(chan *flowtable.Flow, 1)
	sink := &fakeSink{}
	// confidence above false_positive_threshold: guard never consulted
	verdict := classify.Verdict{IsAttack: true, Confidence: 0.95, AttackType: "UDP Flood"}
	l := New(Config{BatchSize: 10, DetectionThreshold: 0.7, FalsePositiveThreshold: 0.9}, fakeEnsemble{verdict: verdict}, fakeOracle{legit: true}, sink, intake, nil, nil)

	l.scoreOne(testFlow("k1", 50))

	assert.Equal(t, 1, sink.count())
}

func TestStart_ScoresDrainedFlowsOnTickerAndStopsOnCancel(t *testing.T) {
	intake := make(chan *flowtable.Flow, 1)
	sink := &fakeSink{}
	verdict := classify.Verdict{IsAttack: true, Confidence: 0.99, AttackType: "SYN Flood"}
	l := New(Config{BatchSize: 10, DetectionThreshold: 0.5, CheckInterval: 5 * time.Millisecond}, fakeEnsemble{verdict: verdict}, nil, sink, intake, nil, nil)

	intake <- testFlow("k1", 50)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop after cancel")
	}
}
