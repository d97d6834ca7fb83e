// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package features

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ddosd/internal/flowtable"
)

func synFloodFlow() *flowtable.Flow {
	tbl := flowtable.New(flowtable.Config{BufferSize: 10, MaxPacketsPerFlow: 1000, FlowIdleTimeout: time.Minute}, nil)
	var emitted *flowtable.Flow
	base := time.Now()
	for i := 0; i < 30; i++ {
		f := tbl.Observe(flowtable.PacketInfo{
			Timestamp: base.Add(time.Duration(i) * time.Millisecond),
			Protocol:  "tcp",
			SrcAddr:   "10.0.0.5", SrcPort: 40000,
			DstAddr: "203.0.113.9", DstPort: 80,
			Length:   60,
			TCPFlags: flowtable.TCPFlags{SYN: 1},
		})
		if f != nil {
			emitted = f
		}
	}
	if emitted == nil {
		key := "10.0.0.5:40000-203.0.113.9:80-tcp"
		emitted, _ = tbl.Get(key)
	}
	return emitted
}

func TestExtractCICDDoS_VectorLengthMatchesFeatureNames(t *testing.T) {
	flow := synFloodFlow()
	require.NotNil(t, flow)

	m := Extract(flow, SchemaCICDDoS)
	vec, missing := Materialize(m, FeatureNames(SchemaCICDDoS))

	assert.Len(t, vec, len(CICDDoSFeatureNames))
	assert.Empty(t, missing)
}

func TestExtractSuricata_VectorLengthMatchesFeatureNames(t *testing.T) {
	flow := synFloodFlow()
	require.NotNil(t, flow)

	m := Extract(flow, SchemaSuricata)
	vec, missing := Materialize(m, FeatureNames(SchemaSuricata))

	assert.Len(t, vec, len(SuricataFeatureNames))
	assert.Empty(t, missing)
}

func TestStdDev_SingleSampleIsZero(t *testing.T) {
	assert.Equal(t, 0.0, stdDev([]int{42}))
	assert.Equal(t, 0.0, stdDev(nil))
}

func TestMaterialize_MissingNameGetsDefault(t *testing.T) {
	vec, missing := Materialize(FeatureMap{}, []string{"Protocol", "byte_ratio", "Fwd Packet Length Min"})
	require.Len(t, vec, 3)
	assert.Equal(t, 6.0, vec[0])
	assert.Equal(t, 1.0, vec[1])
	assert.Equal(t, 0.0, vec[2])
	assert.ElementsMatch(t, missing, []string{"Protocol", "byte_ratio", "Fwd Packet Length Min"})
}

func TestSuricataRatios_ZeroDenominatorFallsBackToNumerator(t *testing.T) {
	flow := &flowtable.Flow{
		Protocol:       "udp",
		ForwardBytes:   500,
		ForwardPackets: 5,
	}
	m := extractSuricata(flow)
	assert.Equal(t, 500.0, m["byte_ratio"])
	assert.Equal(t, 5.0, m["packet_ratio"])
}
