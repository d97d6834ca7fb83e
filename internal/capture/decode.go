// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package capture turns raw link-layer frames into flowtable.PacketInfo
// records, either from a live AF_PACKET socket (capture_linux.go) or a
// replayed/simulated source (capture_sim.go). Decode logic is grounded on
// the tzsp_server example's decoder.Decoder.Decode (gopacket layer walk:
// Ethernet -> IPv4/IPv6 -> TCP/UDP/ICMP).
package capture

import (
	"time"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"

	"ddosd/internal/flowtable"
)

// Decode parses one raw frame captured at ts into a flowtable.PacketInfo.
// Frames without a recognized IP layer decode to a zero-value PacketInfo
// (flowtable.Observe drops it as malformed).
func Decode(data []byte, ts time.Time) flowtable.PacketInfo {
	packet := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.DecodeOptions{Lazy: true, NoCopy: true})

	info := flowtable.PacketInfo{
		Timestamp: ts,
		Length:    len(data),
	}

	if ipLayer := packet.Layer(layers.LayerTypeIPv4); ipLayer != nil {
		ip := ipLayer.(*layers.IPv4)
		info.SrcAddr = ip.SrcIP.String()
		info.DstAddr = ip.DstIP.String()
		info.Protocol = protocolName(ip.Protocol)
	} else if ipLayer := packet.Layer(layers.LayerTypeIPv6); ipLayer != nil {
		ip := ipLayer.(*layers.IPv6)
		info.SrcAddr = ip.SrcIP.String()
		info.DstAddr = ip.DstIP.String()
		info.Protocol = protocolNameV6(ip.NextHeader)
		info.IPv6 = true
	} else {
		return flowtable.PacketInfo{}
	}

	if tcpLayer := packet.Layer(layers.LayerTypeTCP); tcpLayer != nil {
		tcp := tcpLayer.(*layers.TCP)
		info.SrcPort = uint16(tcp.SrcPort)
		info.DstPort = uint16(tcp.DstPort)
		info.Protocol = "tcp"
		info.TCPWindow = tcp.Window
		info.TCPFlags = flowtable.TCPFlags{
			SYN: boolToU64(tcp.SYN), ACK: boolToU64(tcp.ACK), FIN: boolToU64(tcp.FIN),
			RST: boolToU64(tcp.RST), PSH: boolToU64(tcp.PSH), URG: boolToU64(tcp.URG),
		}
	} else if udpLayer := packet.Layer(layers.LayerTypeUDP); udpLayer != nil {
		udp := udpLayer.(*layers.UDP)
		info.SrcPort = uint16(udp.SrcPort)
		info.DstPort = uint16(udp.DstPort)
		info.Protocol = "udp"
	} else if icmpLayer := packet.Layer(layers.LayerTypeICMPv4); icmpLayer != nil {
		icmp := icmpLayer.(*layers.ICMPv4)
		info.Protocol = "icmp"
		info.ICMPType = icmp.TypeCode.Type()
		info.ICMPCode = icmp.TypeCode.Code()
	} else if icmpLayer := packet.Layer(layers.LayerTypeICMPv6); icmpLayer != nil {
		icmp := icmpLayer.(*layers.ICMPv6)
		info.Protocol = "icmp"
		info.ICMPType = icmp.TypeCode.Type()
		info.ICMPCode = icmp.TypeCode.Code()
	}

	return info
}

func boolToU64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func protocolName(p layers.IPProtocol) string {
	switch p {
	case layers.IPProtocolTCP:
		return "tcp"
	case layers.IPProtocolUDP:
		return "udp"
	case layers.IPProtocolICMPv4:
		return "icmp"
	default:
		return p.String()
	}
}

func protocolNameV6(p layers.IPProtocol) string {
	if p == layers.IPProtocolICMPv6 {
		return "icmp"
	}
	return protocolName(p)
}
