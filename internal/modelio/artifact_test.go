// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package modelio

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ddosd/internal/classify"
	"ddosd/internal/features"
)

func twoClassArtifact() Artifact {
	return Artifact{
		Kind:   "cicddos",
		Weight: 0.6,
		Labels: map[string]string{"0": "BENIGN", "1": "UDP"},
		Weights: [][]float64{
			{0, 0},
			{10, 10},
		},
		Bias: []float64{0, 0},
	}
}

func TestFromArtifact_ValidatesShape(t *testing.T) {
	a := twoClassArtifact()
	a.Bias = []float64{0}

	_, err := FromArtifact(a)
	assert.Error(t, err)
}

func TestFromArtifact_RejectsNonNumericLabelIndex(t *testing.T) {
	a := twoClassArtifact()
	a.Labels = map[string]string{"x": "BENIGN"}

	_, err := FromArtifact(a)
	assert.Error(t, err)
}

func TestModel_PredictProba_FavorsDominantClass(t *testing.T) {
	m, err := FromArtifact(twoClassArtifact())
	require.NoError(t, err)

	probs, err := m.PredictProba(features.Vector{1, 1})
	require.NoError(t, err)
	require.Len(t, probs, 2)
	assert.Greater(t, probs[1], probs[0])
	assert.Equal(t, classify.KindCICDDoS, m.Kind())
	assert.InDelta(t, 0.6, m.Weight(), 1e-9)
	assert.Equal(t, "UDP", m.LabelMap()[1])
}

func TestModel_PredictProba_RejectsWrongWidth(t *testing.T) {
	m, err := FromArtifact(twoClassArtifact())
	require.NoError(t, err)

	_, err = m.PredictProba(features.Vector{1, 1, 1})
	assert.Error(t, err)
}

func TestModel_Scaler_TransformsAndHandlesZeroStd(t *testing.T) {
	a := twoClassArtifact()
	a.Scaler = &ScalerArtifact{Mean: []float64{1, 1}, Std: []float64{2, 0}}

	m, err := FromArtifact(a)
	require.NoError(t, err)
	require.NotNil(t, m.Scaler())

	out, err := m.Scaler().Transform(features.Vector{3, 5})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, out[0], 1e-9)
	assert.Equal(t, 0.0, out[1])
}

func TestModel_NoScaler_ReturnsNilInterface(t *testing.T) {
	m, err := FromArtifact(twoClassArtifact())
	require.NoError(t, err)
	assert.Nil(t, m.Scaler())
}

func TestModel_WithWeight_OverridesWithoutMutatingOriginal(t *testing.T) {
	m, err := FromArtifact(twoClassArtifact())
	require.NoError(t, err)

	overridden := m.WithWeight(0.25)
	assert.InDelta(t, 0.25, overridden.Weight(), 1e-9)
	assert.InDelta(t, 0.6, m.Weight(), 1e-9)
}

func TestLoad_ReadsJSONFromDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.json")

	data, err := json.Marshal(twoClassArtifact())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, classify.KindCICDDoS, m.Kind())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/model.json")
	assert.Error(t, err)
}
