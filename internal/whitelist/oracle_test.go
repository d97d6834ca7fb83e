// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package whitelist

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsLegitimate_PrivateSourceAlwaysWhitelisted(t *testing.T) {
	o := NewOracle(Build(nil, nil, nil))
	ok, reason := o.IsLegitimate("10.0.0.5", "93.184.216.34", 55555, 443, AttackSignature{})
	assert.True(t, ok)
	assert.NotEmpty(t, reason)
}

func TestIsLegitimate_PortOverriddenBySYNFloodSignature(t *testing.T) {
	s := Build(nil, nil, nil)
	s.exactPorts[443] = true
	o := NewOracle(s)

	sig := AttackSignature{SYNRate: 0.95, ACKRate: 0.02}
	ok, _ := o.IsLegitimate("203.0.113.9", "198.51.100.7", 40000, 443, sig)
	assert.False(t, ok, "overriding SYN-flood signature must defeat port-based allowance")
}

func TestIsLegitimate_CommonStreamingPortAllowedAbsentSignature(t *testing.T) {
	o := NewOracle(Build(nil, nil, nil))
	ok, reason := o.IsLegitimate("203.0.113.9", "198.51.100.7", 40000, 1935, AttackSignature{})
	assert.True(t, ok)
	assert.Contains(t, reason, "streaming")
}

func TestIsLegitimate_CDNPrefixMatch(t *testing.T) {
	o := NewOracle(Build(nil, []string{"104.16."}, nil))
	ok, reason := o.IsLegitimate("203.0.113.9", "104.16.132.229", 40000, 9999, AttackSignature{})
	assert.True(t, ok)
	assert.Contains(t, reason, "CDN")
}

func TestIsLegitimate_UnknownAddrAndPortNotWhitelisted(t *testing.T) {
	o := NewOracle(Build(nil, nil, nil))
	ok, _ := o.IsLegitimate("203.0.113.9", "198.51.100.7", 40000, 9999, AttackSignature{})
	assert.False(t, ok)
}

func TestSwap_ReplacesSnapshotAtomically(t *testing.T) {
	o := NewOracle(Build(nil, nil, nil))
	assert.False(t, o.IsWhitelistedAddr("198.51.100.1"))

	o.Swap(Build([]string{"198.51.100.1"}, nil, nil))
	assert.True(t, o.IsWhitelistedAddr("198.51.100.1"))
}

func TestHasOverridingSignature(t *testing.T) {
	assert.True(t, AttackSignature{SYNRate: 0.9, ACKRate: 0.1}.HasOverridingSignature())
	assert.True(t, AttackSignature{UDPFloodFlag: true}.HasOverridingSignature())
	assert.False(t, AttackSignature{SYNRate: 0.5, ACKRate: 0.5}.HasOverridingSignature())
}
