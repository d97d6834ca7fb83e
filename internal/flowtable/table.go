// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package flowtable

import (
	"container/heap"
	"sync"
	"time"

	"ddosd/internal/clock"
)

// Config controls Table sizing and emission triggers (mirrors spec.md §6's
// Network section).
type Config struct {
	BufferSize        int // buffer_size: max live flows before LRU eviction
	MaxPacketsPerFlow int // max_packets_per_flow: size emission trigger
	FlowIdleTimeout   time.Duration
}

// Stats is a point-in-time snapshot of table activity.
type Stats struct {
	Current       int
	TotalObserved uint64
	TotalExpired  uint64
	TotalEvicted  uint64
	DroppedPackets uint64
}

// Table is the flow table (C1): bidirectional 5-tuple flow tracking with
// bounded memory and TTL/size-based emission, grounded on the teacher's
// engine.MemoryTrafficStore (bounded store, trim-oldest-on-overflow,
// ticker-based cleanup).
type Table struct {
	cfg   Config
	clock clock.Clock

	mu     sync.RWMutex
	flows  map[string]*Flow
	expiry expiryIndex
	itemOf map[string]*expiryItem

	stats Stats
}

// New creates an empty Table.
func New(cfg Config, clk clock.Clock) *Table {
	if clk == nil {
		clk = clock.System
	}
	if cfg.MaxPacketsPerFlow <= 0 {
		cfg.MaxPacketsPerFlow = 20
	}
	if cfg.FlowIdleTimeout <= 0 {
		cfg.FlowIdleTimeout = 60 * time.Second
	}
	return &Table{
		cfg:    cfg,
		clock:  clk,
		flows:  make(map[string]*Flow),
		expiry: make(expiryIndex, 0),
		itemOf: make(map[string]*expiryItem),
	}
}

// Observe ingests one decoded packet. It fails only on malformed packets
// (empty protocol/addresses), which are dropped silently per spec.md §4.1.
// It returns a non-nil *Flow when the packet triggered a size emission, in
// which case the flow has already been removed from the live table. Flows
// evicted under capacity pressure are dropped and not returned.
func (t *Table) Observe(pkt PacketInfo) (emitted *Flow) {
	if pkt.Protocol == "" || pkt.SrcAddr == "" || pkt.DstAddr == "" {
		t.mu.Lock()
		t.stats.DroppedPackets++
		t.mu.Unlock()
		return nil
	}
	if pkt.Timestamp.IsZero() {
		pkt.Timestamp = t.clock.Now()
	}

	key, fwd := flowKey(pkt)

	t.mu.Lock()
	defer t.mu.Unlock()

	f, ok := t.flows[key]
	if !ok {
		f = newFlow(key, pkt.Protocol, pkt.IPv6, t.cfg.MaxPacketsPerFlow)
		f.Forward = Endpoint{pkt.SrcAddr, pkt.SrcPort}
		f.Backward = Endpoint{pkt.DstAddr, pkt.DstPort}
		if fwd == dirBackward {
			f.Forward, f.Backward = f.Backward, f.Forward
		}
		f.StartTime = pkt.Timestamp
		t.flows[key] = f
		t.pushExpiry(key, pkt.Timestamp)
		t.stats.TotalObserved++

		if len(t.flows) > t.cfg.BufferSize && t.cfg.BufferSize > 0 {
			t.evictOldestLocked()
		}
	}

	t.applyPacketLocked(f, pkt, fwd)
	t.updateExpiryLocked(key, pkt.Timestamp)

	if f.TotalPackets == uint64(t.cfg.MaxPacketsPerFlow) && !f.Analyzed {
		f.Analyzed = true
		emitted = f
		t.removeLocked(key)
	}

	return emitted
}

func (t *Table) applyPacketLocked(f *Flow, pkt PacketInfo, fwd direction) {
	if len(f.PacketTimes) > 0 {
		last := f.PacketTimes[len(f.PacketTimes)-1]
		f.InterArrivalTimes = append(f.InterArrivalTimes, pkt.Timestamp.Sub(last))
	}
	f.PacketTimes = append(f.PacketTimes, pkt.Timestamp)
	f.AllPacketLengths = append(f.AllPacketLengths, pkt.Length)

	f.TotalPackets++
	f.TotalBytes += uint64(pkt.Length)

	if fwd == dirForward {
		f.ForwardPackets++
		f.ForwardBytes += uint64(pkt.Length)
		f.ForwardLengths = append(f.ForwardLengths, pkt.Length)
		if !f.sawForwardWindow && pkt.Protocol == "tcp" {
			f.InitialForwardWindow = pkt.TCPWindow
			f.sawForwardWindow = true
		}
	} else {
		f.BackwardPackets++
		f.BackwardBytes += uint64(pkt.Length)
		f.BackwardLengths = append(f.BackwardLengths, pkt.Length)
		if !f.sawBackwardWindow && pkt.Protocol == "tcp" {
			f.InitialBackwardWindow = pkt.TCPWindow
			f.sawBackwardWindow = true
		}
	}

	f.Flags.SYN += pkt.TCPFlags.SYN
	f.Flags.ACK += pkt.TCPFlags.ACK
	f.Flags.FIN += pkt.TCPFlags.FIN
	f.Flags.RST += pkt.TCPFlags.RST
	f.Flags.PSH += pkt.TCPFlags.PSH
	f.Flags.URG += pkt.TCPFlags.URG

	f.LastPacketTime = pkt.Timestamp
}

// ExpirySweep returns flows idle longer than FlowIdleTimeout, removing them
// from the live table. Idempotent: flows already removed are simply absent
// from the next call's result.
func (t *Table) ExpirySweep() []*Flow {
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	var out []*Flow
	for t.expiry.Len() > 0 {
		oldest := t.expiry[0]
		if now.Sub(oldest.lastSeen) <= t.cfg.FlowIdleTimeout {
			break
		}
		f, ok := t.flows[oldest.key]
		if !ok {
			heap.Pop(&t.expiry)
			delete(t.itemOf, oldest.key)
			continue
		}
		if !f.Analyzed {
			f.Analyzed = true
			out = append(out, f)
		}
		t.removeLocked(oldest.key)
		t.stats.TotalExpired++
	}
	return out
}

// evictOldestLocked drops the single flow with the oldest LastPacketTime
// when the table exceeds BufferSize. Evicted flows are NOT scored, per
// spec.md §4.1's liveness-over-coverage design decision.
func (t *Table) evictOldestLocked() {
	if t.expiry.Len() == 0 {
		return
	}
	oldest := heap.Pop(&t.expiry).(*expiryItem)
	delete(t.itemOf, oldest.key)
	delete(t.flows, oldest.key)
	t.stats.TotalEvicted++
}

func (t *Table) removeLocked(key string) {
	delete(t.flows, key)
	if item, ok := t.itemOf[key]; ok {
		heap.Remove(&t.expiry, item.index)
		delete(t.itemOf, key)
	}
}

func (t *Table) pushExpiry(key string, ts time.Time) {
	item := &expiryItem{key: key, lastSeen: ts}
	heap.Push(&t.expiry, item)
	t.itemOf[key] = item
}

func (t *Table) updateExpiryLocked(key string, ts time.Time) {
	item, ok := t.itemOf[key]
	if !ok {
		return
	}
	item.lastSeen = ts
	heap.Fix(&t.expiry, item.index)
}

// Stats returns a snapshot of table activity.
func (t *Table) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s := t.stats
	s.Current = len(t.flows)
	return s
}

// Get returns a copy-by-reference live flow for inspection (tests/debug
// only; callers must not mutate sequence slices concurrently with the
// table).
func (t *Table) Get(key string) (*Flow, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	f, ok := t.flows[key]
	return f, ok
}
