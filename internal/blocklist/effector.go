// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package blocklist implements the blocklist (C6): a TTL-indexed map of
// blocked source addresses backed by a pluggable firewall Effector.
// Grounded on the teacher's internal/kernel.LinuxKernel (AddBlock,
// RemoveBlock, IsBlocked against a google/nftables "blocked_ips" set) and
// internal/flowtable's container/heap expiry-index pattern for O(log n)
// TTL sweeping.
package blocklist

// Effector applies and removes firewall blocks for an address. Linux
// systems get a real nftables-backed effector (effector_linux.go); other
// platforms use the in-memory simulator (effector_sim.go).
type Effector interface {
	Block(addr string) error
	Unblock(addr string) error
	IsBlocked(addr string) bool
	Close() error
}
