// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package whitelist

import (
	"net"
	"strings"

	"github.com/oschwald/geoip2-golang"
)

// knownCDNOrgSubstrings matches GeoIP2 ASN/ISP organization names against
// the handful of large CDN/cloud operators spec.md §4.7 treats as a
// secondary legitimacy signal, on top of the static prefix list.
var knownCDNOrgSubstrings = []string{
	"cloudflare", "akamai", "fastly", "amazon", "google", "microsoft azure",
}

// GeoIPDatabase wraps an MMDB-backed ASN lookup (oschwald/geoip2-golang)
// as a GeoIPLookup. Grounded on the teacher's policy of treating all
// optional external data sources (GeoIP database path may be unset) as
// nil-safe collaborators rather than hard dependencies.
type GeoIPDatabase struct {
	reader *geoip2.Reader
}

// OpenGeoIPDatabase opens the MMDB file at path. An empty path returns a
// nil *GeoIPDatabase (nil-safe: IsKnownCDNOrg on a nil receiver always
// returns false).
func OpenGeoIPDatabase(path string) (*GeoIPDatabase, error) {
	if path == "" {
		return nil, nil
	}
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	return &GeoIPDatabase{reader: reader}, nil
}

// IsKnownCDNOrg reports whether addr's ASN organization matches one of
// the well-known CDN/cloud operators.
func (g *GeoIPDatabase) IsKnownCDNOrg(addr net.IP) bool {
	if g == nil || g.reader == nil {
		return false
	}
	record, err := g.reader.ASN(addr)
	if err != nil {
		return false
	}
	org := strings.ToLower(record.AutonomousSystemOrganization)
	for _, substr := range knownCDNOrgSubstrings {
		if strings.Contains(org, substr) {
			return true
		}
	}
	return false
}

// Close releases the underlying MMDB file handle.
func (g *GeoIPDatabase) Close() error {
	if g == nil || g.reader == nil {
		return nil
	}
	return g.reader.Close()
}
