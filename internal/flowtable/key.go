// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package flowtable

import "fmt"

// endpointTuple orders two (addr, port) pairs so the smaller one is always
// the "forward" side, per spec.md §3/§4.1's keying rule.
type endpointTuple struct {
	addr string
	port uint16
}

func (e endpointTuple) less(o endpointTuple) bool {
	if e.addr != o.addr {
		return e.addr < o.addr
	}
	return e.port < o.port
}

// flowKey computes the canonical key and direction for pkt.
//
// TCP/UDP: key = min(A,a)-max(B,b)-PROTO; forward iff src equals the min
// endpoint.
// ICMP: key = src-dst-PROTO-type-code (unidirectional; always forward).
// Anything else: degenerate src-dst-PROTO key (always forward).
func flowKey(pkt PacketInfo) (key string, fwd direction) {
	switch pkt.Protocol {
	case "tcp", "udp":
		a := endpointTuple{pkt.SrcAddr, pkt.SrcPort}
		b := endpointTuple{pkt.DstAddr, pkt.DstPort}
		if a.less(b) {
			return fmt.Sprintf("%s:%d-%s:%d-%s", a.addr, a.port, b.addr, b.port, pkt.Protocol), dirForward
		}
		if b.less(a) {
			return fmt.Sprintf("%s:%d-%s:%d-%s", b.addr, b.port, a.addr, a.port, pkt.Protocol), dirBackward
		}
		// identical endpoints on both sides (loopback to self): stable
		// ordering falls through to forward.
		return fmt.Sprintf("%s:%d-%s:%d-%s", a.addr, a.port, b.addr, b.port, pkt.Protocol), dirForward
	case "icmp":
		return fmt.Sprintf("%s-%s-%s-%d-%d", pkt.SrcAddr, pkt.DstAddr, pkt.Protocol, pkt.ICMPType, pkt.ICMPCode), dirForward
	default:
		return fmt.Sprintf("%s-%s-%s", pkt.SrcAddr, pkt.DstAddr, pkt.Protocol), dirForward
	}
}
