// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package features

import "ddosd/internal/flowtable"

// extractSuricata derives Schema B's 20 features per spec.md §4.2.
// Forward maps to "toserver", backward to "toclient".
func extractSuricata(flow *flowtable.Flow) FeatureMap {
	if flow == nil {
		return FeatureMap{}
	}

	totalBytes := float64(flow.TotalBytes)
	totalPkts := float64(flow.TotalPackets)

	avgBytesPerPkt := totalBytes / max1(totalPkts)

	byteRatio := float64(flow.ForwardBytes)
	if flow.BackwardBytes > 0 {
		byteRatio = float64(flow.ForwardBytes) / max1(float64(flow.BackwardBytes))
	}
	packetRatio := float64(flow.ForwardPackets)
	if flow.BackwardPackets > 0 {
		packetRatio = float64(flow.ForwardPackets) / max1(float64(flow.BackwardPackets))
	}

	m := FeatureMap{
		"src_port":         float64(flow.Forward.Port),
		"dest_port":        float64(flow.Backward.Port),
		"toserver_bytes":   float64(flow.ForwardBytes),
		"toserver_pkts":    float64(flow.ForwardPackets),
		"toclient_bytes":   float64(flow.BackwardBytes),
		"toclient_pkts":    float64(flow.BackwardPackets),
		"total_bytes":      totalBytes,
		"total_pkts":       totalPkts,
		"avg_bytes_per_pkt": avgBytesPerPkt,
		"byte_ratio":       byteRatio,
		"packet_ratio":     packetRatio,
		"well_known_port":  boolToFloat(isWellKnownPort(flow.Forward.Port, flow.Backward.Port)),
	}

	for _, name := range []string{"proto_tcp", "proto_TCP", "proto_udp", "proto_UDP", "proto_icmp", "proto_ICMP", "proto_ipv6-icmp", "proto_IPV6-ICMP"} {
		m[name] = 0
	}
	switch flow.Protocol {
	case "tcp":
		m["proto_tcp"], m["proto_TCP"] = 1, 1
	case "udp":
		m["proto_udp"], m["proto_UDP"] = 1, 1
	case "icmp":
		if flow.IPv6 {
			m["proto_ipv6-icmp"], m["proto_IPV6-ICMP"] = 1, 1
		} else {
			m["proto_icmp"], m["proto_ICMP"] = 1, 1
		}
	}

	return m
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// max1 returns max(1, v), matching spec.md §4.2's
// "ratio = numerator itself when denominator is zero" rule (division by
// the clamped denominator of 1 leaves the numerator unchanged).
func max1(v float64) float64 {
	if v < 1 {
		return 1
	}
	return v
}
