// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package flowtable tracks bidirectional flows keyed by a canonical 5-tuple
// and emits them to the detector once a size, idle, or pressure trigger
// fires. Adapted from the traffic-store shape in the teacher's
// internal/engine package (MemoryTrafficStore's trim-and-cleanup loop) and
// the packet-decode path in its internal/kernel simulator.
package flowtable

import "time"

// Endpoint is one side of a flow: an address and, for TCP/UDP, a port.
type Endpoint struct {
	Addr string
	Port uint16
}

// TCPFlags counts observed TCP control bits on a flow.
type TCPFlags struct {
	SYN, ACK, FIN, RST, PSH, URG uint64
}

// Flow is an aggregated, bidirectional record of packets sharing a
// canonical 5-tuple. Field names mirror spec.md §3's data model directly.
type Flow struct {
	Key      string
	Protocol string // "tcp", "udp", "icmp", or the degenerate case
	IPv6     bool

	Forward  Endpoint
	Backward Endpoint

	StartTime      time.Time
	LastPacketTime time.Time

	TotalPackets    uint64
	TotalBytes      uint64
	ForwardPackets  uint64
	ForwardBytes    uint64
	BackwardPackets uint64
	BackwardBytes   uint64

	ForwardLengths    []int
	BackwardLengths   []int
	PacketTimes       []time.Time
	InterArrivalTimes []time.Duration
	AllPacketLengths  []int

	Flags TCPFlags

	InitialForwardWindow  uint16
	InitialBackwardWindow uint16
	sawForwardWindow      bool
	sawBackwardWindow     bool

	Analyzed bool
}

// newFlow preallocates sequence capacity to maxPacketsPerFlow, following
// spec.md §9's arena-style slice guidance to avoid per-packet allocation.
func newFlow(key, protocol string, ipv6 bool, maxPacketsPerFlow int) *Flow {
	if maxPacketsPerFlow <= 0 {
		maxPacketsPerFlow = 1
	}
	return &Flow{
		Key:               key,
		Protocol:          protocol,
		IPv6:              ipv6,
		ForwardLengths:    make([]int, 0, maxPacketsPerFlow),
		BackwardLengths:   make([]int, 0, maxPacketsPerFlow),
		PacketTimes:       make([]time.Time, 0, maxPacketsPerFlow),
		InterArrivalTimes: make([]time.Duration, 0, maxPacketsPerFlow),
		AllPacketLengths:  make([]int, 0, maxPacketsPerFlow),
	}
}

// PacketRate returns packets/sec over the flow's observed lifetime.
func (f *Flow) PacketRate() float64 {
	d := f.LastPacketTime.Sub(f.StartTime).Seconds()
	if d <= 0 {
		return float64(f.TotalPackets)
	}
	return float64(f.TotalPackets) / d
}

// ByteRate returns bytes/sec over the flow's observed lifetime.
func (f *Flow) ByteRate() float64 {
	d := f.LastPacketTime.Sub(f.StartTime).Seconds()
	if d <= 0 {
		return float64(f.TotalBytes)
	}
	return float64(f.TotalBytes) / d
}

// SYNRate returns the fraction of packets carrying the SYN flag.
func (f *Flow) SYNRate() float64 {
	if f.TotalPackets == 0 {
		return 0
	}
	return float64(f.Flags.SYN) / float64(f.TotalPackets)
}

// ACKRate returns the fraction of packets carrying the ACK flag.
func (f *Flow) ACKRate() float64 {
	if f.TotalPackets == 0 {
		return 0
	}
	return float64(f.Flags.ACK) / float64(f.TotalPackets)
}
