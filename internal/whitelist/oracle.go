// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package whitelist implements the legitimacy oracle (C7): a read-mostly,
// atomically-swappable predicate used to suppress false positives for
// known-good traffic. Grounded on the teacher's glacic-derived
// privateNetworks/bogonNetworks literal CIDR tables (other_examples'
// internal-firewall-protection.go.go) and on internal/firewall's style of
// small, pure, allocation-free predicates.
package whitelist

import (
	"net"
	"strings"
	"sync/atomic"

	"ddosd/internal/firewall"
	"ddosd/internal/flowtable"
)

// rfc1918AndLoopback are the private/loopback ranges spec.md §4.7 always
// treats as legitimate.
var rfc1918AndLoopback = mustParseCIDRs([]string{
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
})

// commonWebStreamingPorts is the fixed destination-port allow set from
// spec.md §4.7.
var commonWebStreamingPorts = map[uint16]bool{
	80: true, 443: true, 8080: true, 1935: true, 33000: true, 33001: true,
}

func mustParseCIDRs(cidrs []string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic("whitelist: invalid literal CIDR " + c + ": " + err.Error())
		}
		out = append(out, n)
	}
	return out
}

// GeoIPLookup is the optional ASN/organization lookup consulted as a
// secondary CDN signal. Implemented in geoip.go on top of
// oschwald/geoip2-golang; nil when no database is configured.
type GeoIPLookup interface {
	IsKnownCDNOrg(addr net.IP) bool
}

// Snapshot is an immutable whitelist build: exact IPs, exact ports, IPv4
// CIDR prefixes, and the CDN/streaming prefix list, per spec.md §3.
type Snapshot struct {
	exactIPs    map[string]bool
	exactPorts  map[uint16]bool
	cidrs       []*net.IPNet
	cdnPrefixes []string
	geo         GeoIPLookup
	rawEntries  []string
}

// Build constructs a Snapshot from the comma-style whitelist config entries
// (spec.md §6's prevention.whitelist) and the CDN prefix list. entries is
// deduplicated first since a config reload can merge several sources
// (static config, CLI overrides) with overlapping addresses.
func Build(entries []string, cdnPrefixes []string, geo GeoIPLookup) *Snapshot {
	deduped := firewall.DeduplicateIPs(entries)
	s := &Snapshot{
		exactIPs:    make(map[string]bool),
		exactPorts:  make(map[uint16]bool),
		cdnPrefixes: firewall.DeduplicateIPs(cdnPrefixes),
		geo:         geo,
		rawEntries:  deduped,
	}
	for _, e := range deduped {
		if strings.Contains(e, "/") {
			if _, n, err := net.ParseCIDR(e); err == nil {
				s.cidrs = append(s.cidrs, n)
				continue
			}
		}
		if ip := net.ParseIP(e); ip != nil {
			s.exactIPs[ip.String()] = true
			continue
		}
	}
	return s
}

// Oracle holds a read-mostly, atomically swappable Snapshot, satisfying
// spec.md §5's "Whitelist: read-mostly; built at startup; may be
// atomically swapped on config reload."
type Oracle struct {
	snapshot atomic.Pointer[Snapshot]
}

// NewOracle constructs an Oracle with an initial Snapshot.
func NewOracle(initial *Snapshot) *Oracle {
	o := &Oracle{}
	o.snapshot.Store(initial)
	return o
}

// Swap atomically replaces the active Snapshot.
func (o *Oracle) Swap(s *Snapshot) {
	o.snapshot.Store(s)
}

// Entries returns the raw whitelist entries the active Snapshot was built
// from, for the control-plane API's GET /api/v1/whitelist.
func (o *Oracle) Entries() []string {
	s := o.snapshot.Load()
	if s == nil {
		return nil
	}
	out := make([]string, len(s.rawEntries))
	copy(out, s.rawEntries)
	return out
}

// IsWhitelistedAddr reports whether addr is in the exact-IP or CIDR sets.
func (o *Oracle) IsWhitelistedAddr(addr string) bool {
	s := o.snapshot.Load()
	if s == nil {
		return false
	}
	if s.exactIPs[addr] {
		return true
	}
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	for _, n := range s.cidrs {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func (s *Snapshot) containsAddr(addr string) bool {
	if s.exactIPs[addr] {
		return true
	}
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	for _, n := range s.cidrs {
		if n.Contains(ip) {
			return true
		}
	}
	for _, n := range rfc1918AndLoopback {
		if n.Contains(ip) {
			return true
		}
	}
	if s.geo != nil && s.geo.IsKnownCDNOrg(ip) {
		return true
	}
	return false
}

// AttackSignature holds the flow-level indicators that override
// port-based whitelisting, per spec.md §4.7.
type AttackSignature struct {
	SYNRate       float64
	ACKRate       float64
	UDPFloodFlag  bool
	ACKFloodFlag  bool
}

// HasOverridingSignature reports whether sig describes an explicit attack
// pattern that must override port-based legitimacy allowance.
func (sig AttackSignature) HasOverridingSignature() bool {
	if sig.SYNRate > 0.8 && sig.ACKRate < 0.2 {
		return true
	}
	return sig.UDPFloodFlag || sig.ACKFloodFlag
}

// IsLegitimate implements spec.md §4.7's pure predicate.
func (o *Oracle) IsLegitimate(srcAddr, dstAddr string, srcPort, dstPort uint16, sig AttackSignature) (bool, string) {
	s := o.snapshot.Load()
	if s == nil {
		return false, "no whitelist loaded"
	}

	if s.containsAddr(srcAddr) {
		return true, "source address whitelisted"
	}
	if s.containsAddr(dstAddr) {
		return true, "destination address whitelisted"
	}

	if !sig.HasOverridingSignature() {
		if s.exactPorts[srcPort] || s.exactPorts[dstPort] {
			return true, "whitelisted port"
		}
	}

	for _, prefix := range s.cdnPrefixes {
		if strings.HasPrefix(dstAddr, prefix) {
			return true, "known CDN/streaming prefix"
		}
	}

	if !sig.HasOverridingSignature() && commonWebStreamingPorts[dstPort] {
		return true, "common web/streaming destination port"
	}

	return false, ""
}

// SignatureFromFlow derives an AttackSignature from a live flow's observed
// flag rates.
func SignatureFromFlow(f *flowtable.Flow) AttackSignature {
	if f == nil {
		return AttackSignature{}
	}
	return AttackSignature{SYNRate: f.SYNRate(), ACKRate: f.ACKRate()}
}
