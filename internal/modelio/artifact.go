// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package modelio loads classifier model artifacts from disk and adapts
// them to classify.ModelHandle. The original training pipeline
// (original_source/) persists scikit-learn estimators via joblib/pickle,
// which Go cannot load; this package defines a JSON-native artifact
// format instead — a per-class linear (softmax) weight matrix plus an
// optional StandardScaler-equivalent (mean/std) — and is the one
// concrete ModelHandle implementation this daemon ships, matching
// spec.md §6's "the core never parses model files itself" by keeping
// this entirely outside the classify/detector/attack packages.
package modelio

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"ddosd/internal/classify"
	"ddosd/internal/features"
)

// Artifact is the on-disk JSON shape for one trained model.
type Artifact struct {
	Kind    string             `json:"kind"` // "cicddos" | "suricata"
	Weight  float64            `json:"weight"`
	Labels  map[string]string  `json:"labels"`  // class index (as string) -> raw label
	Weights [][]float64        `json:"weights"` // [numClasses][numFeatures]
	Bias    []float64          `json:"bias"`    // [numClasses]
	Scaler  *ScalerArtifact     `json:"scaler,omitempty"`
}

// ScalerArtifact mirrors a fitted StandardScaler: per-feature mean/std.
type ScalerArtifact struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// Model adapts a loaded Artifact to classify.ModelHandle.
type Model struct {
	kind    classify.ModelKind
	weight  float64
	labels  map[int]string
	weights [][]float64
	bias    []float64
	scaler  *scaler
}

type scaler struct {
	mean []float64
	std  []float64
}

func (s *scaler) ExpectedFeatureCount() int { return len(s.mean) }

func (s *scaler) Transform(vec features.Vector) (features.Vector, error) {
	if len(vec) != len(s.mean) {
		return nil, fmt.Errorf("modelio: vector length %d does not match scaler width %d", len(vec), len(s.mean))
	}
	out := make(features.Vector, len(vec))
	for i, v := range vec {
		std := s.std[i]
		if std == 0 {
			out[i] = 0
			continue
		}
		out[i] = (v - s.mean[i]) / std
	}
	return out, nil
}

// Load reads and validates a model artifact from path.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("modelio: read %q: %w", path, err)
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("modelio: parse %q: %w", path, err)
	}
	return FromArtifact(a)
}

// FromArtifact constructs a Model from an already-decoded Artifact,
// validating shape consistency.
func FromArtifact(a Artifact) (*Model, error) {
	if len(a.Weights) == 0 {
		return nil, fmt.Errorf("modelio: artifact has no weight rows")
	}
	if len(a.Bias) != len(a.Weights) {
		return nil, fmt.Errorf("modelio: bias length %d does not match class count %d", len(a.Bias), len(a.Weights))
	}

	var kind classify.ModelKind
	switch a.Kind {
	case "suricata":
		kind = classify.KindSuricata
	default:
		kind = classify.KindCICDDoS
	}

	labels := make(map[int]string, len(a.Labels))
	for k, v := range a.Labels {
		var idx int
		if _, err := fmt.Sscanf(k, "%d", &idx); err != nil {
			return nil, fmt.Errorf("modelio: non-numeric label index %q", k)
		}
		labels[idx] = v
	}

	m := &Model{
		kind: kind, weight: a.Weight, labels: labels,
		weights: a.Weights, bias: a.Bias,
	}
	if a.Scaler != nil {
		if len(a.Scaler.Mean) != len(a.Scaler.Std) {
			return nil, fmt.Errorf("modelio: scaler mean/std length mismatch")
		}
		m.scaler = &scaler{mean: a.Scaler.Mean, std: a.Scaler.Std}
	}
	return m, nil
}

// WithWeight returns a shallow copy of m with its fusion weight overridden,
// for the config's detection.model_weights override (spec.md §6).
func (m *Model) WithWeight(w float64) *Model {
	cp := *m
	cp.weight = w
	return &cp
}

func (m *Model) Kind() classify.ModelKind          { return m.kind }
func (m *Model) Weight() float64                   { return m.weight }
func (m *Model) LabelMap() map[int]string          { return m.labels }
func (m *Model) Scaler() classify.Scaler {
	if m.scaler == nil {
		return nil
	}
	return m.scaler
}

// PredictProba scores vec against the linear weight matrix and applies a
// softmax, giving a probability distribution over classes.
func (m *Model) PredictProba(vec features.Vector) ([]float64, error) {
	numFeatures := len(m.weights[0])
	if len(vec) != numFeatures {
		return nil, fmt.Errorf("modelio: vector length %d does not match model width %d", len(vec), numFeatures)
	}

	logits := make([]float64, len(m.weights))
	for c, row := range m.weights {
		sum := m.bias[c]
		for i, w := range row {
			sum += w * vec[i]
		}
		logits[c] = sum
	}
	return softmax(logits), nil
}

func softmax(logits []float64) []float64 {
	max := logits[0]
	for _, v := range logits[1:] {
		if v > max {
			max = v
		}
	}
	sum := 0.0
	out := make([]float64, len(logits))
	for i, v := range logits {
		out[i] = math.Exp(v - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
