// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package attack

import (
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

type fakeBlocklist struct {
	mu      sync.Mutex
	blocked map[string]string
}

func newFakeBlocklist() *fakeBlocklist { return &fakeBlocklist{blocked: make(map[string]string)} }

func (b *fakeBlocklist) Add(addr, attackType string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blocked[addr] = attackType
	return nil
}
func (b *fakeBlocklist) IsBlocked(addr string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.blocked[addr]
	return ok
}

func testFlow() *flowtable.Flow {
	return &flowtable.Flow{
		Protocol: "tcp",
		Forward:  flowtable.Endpoint{Addr: "203.0.113.9", Port: 4000},
		Backward: flowtable.Endpoint{Addr: "198.51.100.7", Port: 80},
	}
}

func TestHandle_AutoBlockAppliesWhenThresholdAndTypeMatch(t *testing.T) {
	bl := newFakeBlocklist()
	cfg := Config{AutoBlock: true, BlockConfidenceThreshold: 0.8, CooldownPeriod: time.Minute}
	h := New(cfg, bl, nil, nil, nil, clock.NewMock(time.Now()), nil)

	h.Handle(testFlow(), classify.Verdict{IsAttack: true, Confidence: 0.95, AttackType: "SYN Flood"})

	assert.True(t, bl.IsBlocked("203.0.113.9"))
	assert.Equal(t, uint64(1), h.LifetimeCount())
	assert.Equal(t, uint64(1), h.CountsByType()["SYN Flood"])
}

func TestHandle_InvokesAttackCallbackWithComposedInfo(t *testing.T) {
	bl := newFakeBlocklist()
	cfg := Config{AutoBlock: true, BlockConfidenceThreshold: 0.8, CooldownPeriod: time.Minute}
	h := New(cfg, bl, nil, nil, nil, clock.NewMock(time.Now()), nil)

	var got Info
	h.SetAttackCallback(func(info Info) { got = info })

	h.Handle(testFlow(), classify.Verdict{IsAttack: true, Confidence: 0.95, AttackType: "SYN Flood"})

	assert.Equal(t, "203.0.113.9", got.SrcAddr)
	assert.Equal(t, "SYN Flood", got.AttackType)
	assert.True(t, got.Blocked)
}

func TestHandle_BelowConfidenceThresholdDoesNotBlock(t *testing.T) {
	bl := newFakeBlocklist()
	cfg := Config{AutoBlock: true, BlockConfidenceThreshold: 0.9}
	h := New(cfg, bl, nil, nil, nil, nil, nil)

	h.Handle(testFlow(), classify.Verdict{IsAttack: true, Confidence: 0.5, AttackType: "SYN Flood"})
	assert.False(t, bl.IsBlocked("203.0.113.9"))
}

func TestHandle_RestrictedAttackTypeListExcludesOthers(t *testing.T) {
	bl := newFakeBlocklist()
	cfg := Config{AutoBlock: true, BlockConfidenceThreshold: 0.5, AutoBlockAttackTypes: map[string]bool{"UDP Flood": true}}
	h := New(cfg, bl, nil, nil, nil, nil, nil)

	h.Handle(testFlow(), classify.Verdict{IsAttack: true, Confidence: 0.9, AttackType: "SYN Flood"})
	assert.False(t, bl.IsBlocked("203.0.113.9"))
}

func TestHandle_WhitelistedSourceNeverBlocked(t *testing.T) {
	bl := newFakeBlocklist()
	oracle := whitelist.NewOracle(whitelist.Build([]string{"203.0.113.9"}, nil, nil))
	cfg := Config{AutoBlock: true, BlockConfidenceThreshold: 0.1}
	h := New(cfg, bl, oracle, nil, nil, nil, nil)

	h.Handle(testFlow(), classify.Verdict{IsAttack: true, Confidence: 0.99, AttackType: "SYN Flood"})
	assert.False(t, bl.IsBlocked("203.0.113.9"))
}

func TestNotify_DedupedWithinCooldownPeriod(t *testing.T) {
	bl := newFakeBlocklist()
	clk := clock.NewMock(time.Now())
	cfg := Config{CooldownPeriod: time.Minute}
	h := New(cfg, bl, nil, nil, nil, clk, nil)

	key := "SYN Flood|203.0.113.9"
	h.notify(Info{SrcAddr: "203.0.113.9", AttackType: "SYN Flood", Timestamp: clk.Now()})
	first := h.lastNotify[key]

	clk.Advance(30 * time.Second)
	h.notify(Info{SrcAddr: "203.0.113.9", AttackType: "SYN Flood", Timestamp: clk.Now()})
	require.Equal(t, first, h.lastNotify[key], "notification within cooldown must not reset the dedup window")

	clk.Advance(31 * time.Second)
	h.notify(Info{SrcAddr: "203.0.113.9", AttackType: "SYN Flood", Timestamp: clk.Now()})
	assert.NotEqual(t, first, h.lastNotify[key])
}
