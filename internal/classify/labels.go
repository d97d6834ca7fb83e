// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package classify

// displayNames is the canonical raw-label -> display-name translation from
// spec.md §4.3. Idempotent by construction: applying it to a name already
// in its value set (e.g. "Normal") leaves the name unchanged, satisfying
// spec.md §8's law L3.
var displayNames = map[string]string{
	"Benign":  "Normal",
	"LDAP":    "LDAP Amplification",
	"MSSQL":   "MSSQL Amplification",
	"NetBIOS": "NetBIOS Amplification",
	"Syn":     "SYN Flood",
	"UDP":     "UDP Flood",
	"UDPLag":  "UDP Lag",
	"DDoS":    "Generic DDoS",
}

// displayName translates a raw model label to its canonical display name.
// Unrecognized labels, and names already in canonical form, pass through
// unchanged.
func displayName(raw string) string {
	if mapped, ok := displayNames[raw]; ok {
		return mapped
	}
	return raw
}
