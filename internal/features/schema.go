// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package features

import "ddosd/internal/flowtable"

// Schema identifies a closed set of feature-vector layouts. Model
// differences are represented as a tagged sum with per-variant derivation
// routines per spec.md §9, rather than duck-typed polymorphism.
type Schema int

const (
	SchemaCICDDoS Schema = iota
	SchemaSuricata
)

func (s Schema) String() string {
	if s == SchemaSuricata {
		return "suricata"
	}
	return "cicddos"
}

// ParseSchema maps a config string to a Schema.
func ParseSchema(s string) Schema {
	if s == "suricata" {
		return SchemaSuricata
	}
	return SchemaCICDDoS
}

// CICDDoSFeatureNames is Schema A's 8 canonical feature names, in order.
var CICDDoSFeatureNames = []string{
	"ACK Flag Count",
	"URG Flag Count",
	"Protocol",
	"Fwd Packet Length Min",
	"Fwd Packet Length Max",
	"Fwd Packet Length Std",
	"Init_Win_bytes_forward",
	"Bwd Packet Length Max",
}

// SuricataFeatureNames is Schema B's 20 feature names, in order.
var SuricataFeatureNames = []string{
	"src_port", "dest_port",
	"toserver_bytes", "toserver_pkts", "toclient_bytes", "toclient_pkts",
	"total_bytes", "total_pkts", "avg_bytes_per_pkt",
	"byte_ratio", "packet_ratio", "well_known_port",
	"proto_tcp", "proto_TCP", "proto_udp", "proto_UDP",
	"proto_icmp", "proto_ICMP", "proto_ipv6-icmp", "proto_IPV6-ICMP",
}

// FeatureNames returns the ordered feature-name list for s.
func FeatureNames(s Schema) []string {
	if s == SchemaSuricata {
		return SuricataFeatureNames
	}
	return CICDDoSFeatureNames
}

// protocolNumber maps a protocol string to CIC-DDoS's numeric encoding:
// TCP=6, UDP=17, ICMP=1, IPv6-ICMP mapped to 1. Unknown protocols fall
// back to 6 per spec.md §3's "Any field missing... 6 for protocol" default.
func protocolNumber(protocol string, ipv6 bool) float64 {
	switch protocol {
	case "tcp":
		return 6
	case "udp":
		return 17
	case "icmp":
		return 1
	default:
		return 6
	}
}

// wellKnownPorts is the fixed well-known-port set from spec.md §4.2.
var wellKnownPorts = map[uint16]bool{
	20: true, 21: true, 22: true, 23: true, 25: true, 53: true, 80: true,
	110: true, 143: true, 443: true, 465: true, 587: true, 993: true,
	995: true, 3306: true, 3389: true, 5432: true, 8080: true, 8443: true,
}

// isWellKnownPort reports whether either port is in the well-known set.
func isWellKnownPort(a, b uint16) bool {
	return wellKnownPorts[a] || wellKnownPorts[b]
}

// FeatureMap is the intermediate, name-keyed representation Extract
// produces before Materialize fills defaults and orders it into a Vector.
type FeatureMap map[string]float64

// Vector is a fixed-length ordered sequence of floats aligned with a
// model's declared feature-name list.
type Vector []float64

// Extract derives the named feature map for flow under schema.
func Extract(flow *flowtable.Flow, schema Schema) FeatureMap {
	if schema == SchemaSuricata {
		return extractSuricata(flow)
	}
	return extractCICDDoS(flow)
}

// Materialize fills in schema-specific defaults for any name absent from m
// and emits values in featureNames order, per spec.md §4.2's contract.
func Materialize(m FeatureMap, featureNames []string) (Vector, []string) {
	vec := make(Vector, len(featureNames))
	var missing []string
	for i, name := range featureNames {
		v, ok := m[name]
		if !ok {
			missing = append(missing, name)
			v = defaultFor(name)
		}
		vec[i] = v
	}
	return vec, missing
}

// defaultFor returns the schema-agnostic default for a missing feature
// name: 0 for counters, 1.0 for ratios, 6 for protocol.
func defaultFor(name string) float64 {
	switch name {
	case "Protocol":
		return 6
	case "byte_ratio", "packet_ratio":
		return 1.0
	default:
		return 0
	}
}
