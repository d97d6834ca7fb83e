// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package blocklist

import (
	"container/heap"
	"sync"
	"sync/atomic"
	"time"

	"ddosd/internal/clock"
)

// effectorRetryBackoff is how far a failed unblock is pushed out before the
// sweeper retries it, per spec.md §7: effector failures are retried on the
// sweeper's next tick rather than synchronously, instead of being dropped.
const effectorRetryBackoff = 5 * time.Second

// Entry is one blocked address's bookkeeping record.
type Entry struct {
	Addr       string
	AttackType string
	BlockedAt  time.Time
	ExpiresAt  time.Time
	BlockCount int
}

// expiryItem backs the TTL min-heap, mirroring internal/flowtable's
// expiry-index design: the heap index lives on the item itself so
// heap.Fix/heap.Remove stay O(log n) without a parallel index map lookup
// race.
type expiryItem struct {
	addr      string
	expiresAt time.Time
	index     int
}

type expiryHeap []*expiryItem

func (h expiryHeap) Len() int            { return len(h) }
func (h expiryHeap) Less(i, j int) bool  { return h[i].expiresAt.Before(h[j].expiresAt) }
func (h expiryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *expiryHeap) Push(x any) {
	item := x.(*expiryItem)
	item.index = len(*h)
	*h = append(*h, item)
}
func (h *expiryHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

// Blocklist is the blocklist (C6): a TTL-indexed set of blocked source
// addresses, escalating the TTL on repeated blocks, backed by a pluggable
// Effector that performs the actual firewall mutation.
type Blocklist struct {
	cfg      Config
	effector Effector
	clock    clock.Clock

	mu      sync.Mutex
	entries map[string]*Entry
	items   map[string]*expiryItem
	heap    expiryHeap

	effectorErrors atomic.Uint64
}

// Config controls block duration and escalation.
type Config struct {
	BlockDuration time.Duration // prevention.block_duration

	// MaxEscalationMultiplier caps how many times BlockDuration gets
	// doubled for a repeat offender re-blocked while still active,
	// carried from the Python original's prevention_engine.py escalation
	// policy. 0 disables escalation (every block uses BlockDuration).
	MaxEscalationMultiplier int
}

// New constructs a Blocklist over the given Effector.
func New(cfg Config, effector Effector, clk clock.Clock) *Blocklist {
	if clk == nil {
		clk = clock.System
	}
	return &Blocklist{
		cfg:      cfg,
		effector: effector,
		clock:    clk,
		entries:  make(map[string]*Entry),
		items:    make(map[string]*expiryItem),
		heap:     make(expiryHeap, 0),
	}
}

// Add blocks addr for the configured duration, per spec.md §4.6. A
// block_duration of 0 is swept on the very next tick. Re-blocking an
// already-blocked address extends its TTL from now, increments its block
// count, and doubles the effective duration (escalation), capped at
// MaxEscalationMultiplier, rather than stacking durations.
func (b *Blocklist) Add(addr, attackType string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock.Now()

	entry, exists := b.entries[addr]
	if !exists {
		entry = &Entry{Addr: addr, BlockedAt: now}
		b.entries[addr] = entry
		if err := b.effector.Block(addr); err != nil {
			delete(b.entries, addr)
			b.effectorErrors.Add(1)
			return err
		}
	}
	entry.AttackType = attackType
	entry.BlockCount++
	expiresAt := now.Add(b.escalatedDuration(entry.BlockCount))
	entry.ExpiresAt = expiresAt

	if item, ok := b.items[addr]; ok {
		item.expiresAt = expiresAt
		heap.Fix(&b.heap, item.index)
	} else {
		item := &expiryItem{addr: addr, expiresAt: expiresAt}
		heap.Push(&b.heap, item)
		b.items[addr] = item
	}
	return nil
}

// escalatedDuration returns BlockDuration doubled (blockCount-1) times,
// capped at MaxEscalationMultiplier. blockCount is 1 on first block.
func (b *Blocklist) escalatedDuration(blockCount int) time.Duration {
	if b.cfg.MaxEscalationMultiplier <= 0 || blockCount <= 1 {
		return b.cfg.BlockDuration
	}
	multiplier := 1 << uint(blockCount-1)
	if multiplier > b.cfg.MaxEscalationMultiplier {
		multiplier = b.cfg.MaxEscalationMultiplier
	}
	return b.cfg.BlockDuration * time.Duration(multiplier)
}

// Remove unblocks addr immediately, regardless of TTL.
func (b *Blocklist) Remove(addr string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.removeLocked(addr)
}

// removeLocked unblocks addr at the effector first and only then drops the
// bookkeeping, so a failed Unblock leaves addr exactly as blocked as it was
// before the call (the firewall still has it; we must not forget it).
func (b *Blocklist) removeLocked(addr string) error {
	if _, ok := b.entries[addr]; !ok {
		return nil
	}
	if err := b.effector.Unblock(addr); err != nil {
		return err
	}
	delete(b.entries, addr)
	if item, ok := b.items[addr]; ok {
		heap.Remove(&b.heap, item.index)
		delete(b.items, addr)
	}
	return nil
}

// EffectorErrors returns the cumulative count of failed effector calls
// (Block or Unblock), sampled by cmd/ddosd's metrics loop into
// blocklist_effector_errors_total.
func (b *Blocklist) EffectorErrors() uint64 {
	return b.effectorErrors.Load()
}

// IsBlocked reports whether addr is currently blocked.
func (b *Blocklist) IsBlocked(addr string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.entries[addr]
	return ok
}

// List returns a snapshot of all currently blocked entries.
func (b *Blocklist) List() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Entry, 0, len(b.entries))
	for _, e := range b.entries {
		out = append(out, *e)
	}
	return out
}

// Sweep removes every entry whose TTL has elapsed, returning the addresses
// unblocked. Safe to call on a ticker. An address whose effector Unblock
// fails stays blocked (both at the firewall and in this bookkeeping) and is
// retried after effectorRetryBackoff rather than being forgotten.
func (b *Blocklist) Sweep() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock.Now()
	var removed []string
	for b.heap.Len() > 0 {
		oldest := b.heap[0]
		if now.Before(oldest.expiresAt) {
			break
		}
		addr := oldest.addr
		if err := b.removeLocked(addr); err != nil {
			b.effectorErrors.Add(1)
			oldest.expiresAt = now.Add(effectorRetryBackoff)
			heap.Fix(&b.heap, oldest.index)
			continue
		}
		removed = append(removed, addr)
	}
	return removed
}
