// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package features

import "ddosd/internal/flowtable"

// extractCICDDoS derives Schema A's 8 features per spec.md §4.2.
func extractCICDDoS(flow *flowtable.Flow) FeatureMap {
	if flow == nil {
		return FeatureMap{}
	}
	return FeatureMap{
		"ACK Flag Count":          float64(flow.Flags.ACK),
		"URG Flag Count":          float64(flow.Flags.URG),
		"Protocol":                protocolNumber(flow.Protocol, flow.IPv6),
		"Fwd Packet Length Min":   minInt(flow.ForwardLengths),
		"Fwd Packet Length Max":   maxInt(flow.ForwardLengths),
		"Fwd Packet Length Std":   stdDev(flow.ForwardLengths),
		"Init_Win_bytes_forward":  float64(flow.InitialForwardWindow),
		"Bwd Packet Length Max":   maxInt(flow.BackwardLengths),
	}
}
