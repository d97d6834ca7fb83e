// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ddosd/internal/features"
	"ddosd/internal/flowtable"
)

// fakeModel is a test double for ModelHandle; model artifact loading is an
// external collaborator per spec.md §6.
type fakeModel struct {
	kind     ModelKind
	weight   float64
	labels   map[int]string
	probs    []float64
	err      error
	scaler   Scaler
}

func (m *fakeModel) Scaler() Scaler             { return m.scaler }
func (m *fakeModel) LabelMap() map[int]string   { return m.labels }
func (m *fakeModel) Kind() ModelKind            { return m.kind }
func (m *fakeModel) Weight() float64            { return m.weight }
func (m *fakeModel) PredictProba(features.Vector) ([]float64, error) {
	return m.probs, m.err
}

func TestFuseMaxConfidence_SingleModelEqualsOwnVerdict(t *testing.T) {
	flow := &flowtable.Flow{Protocol: "tcp"}

	model := &fakeModel{
		kind: KindCICDDoS, weight: 1.0,
		labels: map[int]string{0: "Benign", 1: "Syn"},
		probs:  []float64{0.05, 0.95},
	}

	e := New([]Handle{{Model: model, Schema: features.SchemaCICDDoS}}, FusionMaxConfidence, 0.7)
	v := e.Evaluate(flow)

	require.Len(t, v.PerModelResults, 1)
	assert.Equal(t, v.PerModelResults[0].IsAttack, v.IsAttack)
	assert.Equal(t, v.PerModelResults[0].Confidence, v.Confidence)
	assert.Equal(t, "SYN Flood", v.AttackType)
}

func TestFuseWeighted_ModelDisagreement(t *testing.T) {
	flow := &flowtable.Flow{Protocol: "udp"}

	modelA := &fakeModel{ // CICDDoS, weight 0.6, attack "UDP" conf 0.8
		kind: KindCICDDoS, weight: 0.6,
		labels: map[int]string{0: "Benign", 1: "UDP"},
		probs:  []float64{0.2, 0.8},
	}
	modelB := &fakeModel{ // Suricata, weight 0.4, conf 0.9 but below threshold -> not attack
		kind: KindSuricata, weight: 0.4,
		labels: map[int]string{0: "Benign", 1: "DDoS"},
		probs:  []float64{0.9, 0.1},
	}

	e := New([]Handle{
		{Model: modelA, Schema: features.SchemaCICDDoS},
		{Model: modelB, Schema: features.SchemaSuricata},
	}, FusionWeighted, 0.95) // threshold high so Suricata model's top confidence (0.9) is not-attack
	v := e.Evaluate(flow)

	assert.True(t, v.IsAttack)
	assert.InDelta(t, 0.12, v.Confidence, 0.01)
	assert.Equal(t, "UDP Flood", v.AttackType)
}

func TestDisplayName_Idempotent(t *testing.T) {
	once := displayName("Syn")
	twice := displayName(once)
	assert.Equal(t, once, twice)
	assert.Equal(t, "SYN Flood", once)
}

func TestNormalizeWeights_ZeroSumIsUniform(t *testing.T) {
	handles := []Handle{
		{Model: &fakeModel{weight: 0}},
		{Model: &fakeModel{weight: 0}},
	}
	w := normalizeWeights(handles)
	assert.InDelta(t, 0.5, w[0], 1e-9)
	assert.InDelta(t, 0.5, w[1], 1e-9)
}

func TestScoreOne_ModelExecutionFailureYieldsUnknown(t *testing.T) {
	flow := &flowtable.Flow{Protocol: "tcp"}
	model := &fakeModel{kind: KindCICDDoS, weight: 1, err: assertError{}}
	e := New([]Handle{{Model: model, Schema: features.SchemaCICDDoS}}, FusionMaxConfidence, 0.7)
	v := e.Evaluate(flow)
	assert.False(t, v.IsAttack)
	assert.Equal(t, "Unknown", v.PerModelResults[0].Label)
}

type assertError struct{}

func (assertError) Error() string { return "model execution failed" }
