// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package flowtable

import "time"

// PacketInfo is the decoded subset of a packet the flow table needs. The
// capture package is responsible for turning wire bytes (via gopacket) into
// this shape; the flow table itself never touches gopacket types, so it can
// be driven identically by live capture, PCAP replay, or tests.
type PacketInfo struct {
	Timestamp time.Time
	Protocol  string // "tcp", "udp", "icmp"
	IPv6      bool

	SrcAddr string
	DstAddr string
	SrcPort uint16 // 0 for ICMP
	DstPort uint16 // 0 for ICMP

	ICMPType uint8
	ICMPCode uint8

	Length int

	TCPFlags  TCPFlags // flags set on THIS packet only
	TCPWindow uint16
}

// direction reports whether pkt is addressed from the flow's forward
// endpoint, once the canonical key has been computed.
type direction bool

const (
	dirForward  direction = true
	dirBackward direction = false
)
