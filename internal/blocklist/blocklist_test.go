// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package blocklist

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ddosd/internal/clock"
)

// fakeEffector is a platform-independent in-memory Effector for tests,
// mirroring effector_sim.go's semantics without the !linux build tag.
type fakeEffector struct {
	mu             sync.Mutex
	blocked        map[string]bool
	failNext       bool
	failUnblockFor map[string]int
}

func newFakeEffector() *fakeEffector {
	return &fakeEffector{blocked: make(map[string]bool), failUnblockFor: make(map[string]int)}
}

func (f *fakeEffector) Block(addr string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return assertErr{}
	}
	f.blocked[addr] = true
	return nil
}
func (f *fakeEffector) Unblock(addr string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n := f.failUnblockFor[addr]; n > 0 {
		f.failUnblockFor[addr] = n - 1
		return assertErr{}
	}
	delete(f.blocked, addr)
	return nil
}
func (f *fakeEffector) IsBlocked(addr string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blocked[addr]
}
func (f *fakeEffector) Close() error { return nil }

type assertErr struct{}

func (assertErr) Error() string { return "effector failure" }

func TestAdd_BlocksAndExpiresAfterDuration(t *testing.T) {
	eff := newFakeEffector()
	clk := clock.NewMock(time.Now())
	bl := New(Config{BlockDuration: 10 * time.Minute}, eff, clk)

	require.NoError(t, bl.Add("203.0.113.9", "SYN Flood"))
	assert.True(t, bl.IsBlocked("203.0.113.9"))
	assert.True(t, eff.IsBlocked("203.0.113.9"))

	clk.Advance(9 * time.Minute)
	assert.Empty(t, bl.Sweep())
	assert.True(t, bl.IsBlocked("203.0.113.9"))

	clk.Advance(2 * time.Minute)
	removed := bl.Sweep()
	assert.Equal(t, []string{"203.0.113.9"}, removed)
	assert.False(t, bl.IsBlocked("203.0.113.9"))
	assert.False(t, eff.IsBlocked("203.0.113.9"))
}

func TestAdd_ZeroDurationSweptOnNextTick(t *testing.T) {
	eff := newFakeEffector()
	clk := clock.NewMock(time.Now())
	bl := New(Config{BlockDuration: 0}, eff, clk)

	require.NoError(t, bl.Add("203.0.113.9", "UDP Flood"))
	clk.Advance(time.Nanosecond)
	removed := bl.Sweep()
	assert.Equal(t, []string{"203.0.113.9"}, removed)
}

func TestAdd_ReblockEscalatesCountAndExtendsTTL(t *testing.T) {
	eff := newFakeEffector()
	clk := clock.NewMock(time.Now())
	bl := New(Config{BlockDuration: time.Minute}, eff, clk)

	require.NoError(t, bl.Add("203.0.113.9", "SYN Flood"))
	clk.Advance(30 * time.Second)
	require.NoError(t, bl.Add("203.0.113.9", "SYN Flood")) // re-block before expiry

	entries := bl.List()
	require.Len(t, entries, 1)
	assert.Equal(t, 2, entries[0].BlockCount)

	clk.Advance(30 * time.Second) // would have expired w/o extension
	assert.Empty(t, bl.Sweep())
	assert.True(t, bl.IsBlocked("203.0.113.9"))
}

func TestAdd_EscalationDoublesDurationUpToCap(t *testing.T) {
	eff := newFakeEffector()
	clk := clock.NewMock(time.Now())
	bl := New(Config{BlockDuration: time.Minute, MaxEscalationMultiplier: 4}, eff, clk)

	require.NoError(t, bl.Add("203.0.113.9", "SYN Flood")) // 1x = 1m
	require.NoError(t, bl.Add("203.0.113.9", "SYN Flood")) // 2x = 2m
	require.NoError(t, bl.Add("203.0.113.9", "SYN Flood")) // 4x = 4m
	require.NoError(t, bl.Add("203.0.113.9", "SYN Flood")) // capped at 4x = 4m

	entries := bl.List()
	require.Len(t, entries, 1)
	assert.Equal(t, 4, entries[0].BlockCount)

	clk.Advance(3*time.Minute + 59*time.Second)
	assert.Empty(t, bl.Sweep())
	clk.Advance(2 * time.Second)
	assert.Equal(t, []string{"203.0.113.9"}, bl.Sweep())
}

func TestSweep_RetriesFailedUnblockAndCountsEffectorError(t *testing.T) {
	eff := newFakeEffector()
	clk := clock.NewMock(time.Now())
	bl := New(Config{BlockDuration: time.Minute}, eff, clk)

	require.NoError(t, bl.Add("203.0.113.9", "SYN Flood"))
	eff.failUnblockFor["203.0.113.9"] = 1

	clk.Advance(time.Minute + time.Second)
	assert.Empty(t, bl.Sweep()) // first attempt fails, address stays blocked
	assert.True(t, bl.IsBlocked("203.0.113.9"))
	assert.Equal(t, uint64(1), bl.EffectorErrors())

	clk.Advance(effectorRetryBackoff + time.Second)
	removed := bl.Sweep() // retry succeeds
	assert.Equal(t, []string{"203.0.113.9"}, removed)
	assert.False(t, bl.IsBlocked("203.0.113.9"))
}

func TestRemove_UnblocksImmediately(t *testing.T) {
	eff := newFakeEffector()
	bl := New(Config{BlockDuration: time.Hour}, eff, nil)

	require.NoError(t, bl.Add("203.0.113.9", "SYN Flood"))
	require.NoError(t, bl.Remove("203.0.113.9"))
	assert.False(t, bl.IsBlocked("203.0.113.9"))
}

func TestSweep_MultipleEntriesOrderedByExpiry(t *testing.T) {
	eff := newFakeEffector()
	clk := clock.NewMock(time.Now())
	bl := New(Config{BlockDuration: time.Minute}, eff, clk)

	require.NoError(t, bl.Add("a", "x"))
	clk.Advance(10 * time.Second)
	require.NoError(t, bl.Add("b", "x"))

	clk.Advance(51 * time.Second) // a expires (60s), b doesn't yet (70s mark)
	removed := bl.Sweep()
	assert.Equal(t, []string{"a"}, removed)
	assert.True(t, bl.IsBlocked("b"))
}
