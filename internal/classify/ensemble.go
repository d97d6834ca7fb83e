// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package classify

import (
	"ddosd/internal/errors"
	"ddosd/internal/features"
	"ddosd/internal/flowtable"
	"ddosd/internal/logging"
)

// FusionPolicy selects how per-model verdicts are combined.
type FusionPolicy string

const (
	FusionMaxConfidence FusionPolicy = "max_confidence"
	FusionWeighted      FusionPolicy = "weighted"
	FusionVoting        FusionPolicy = "voting"
)

// ModelResult is one model's contribution to a Verdict.
type ModelResult struct {
	Kind       ModelKind
	Label      string
	IsAttack   bool
	Confidence float64
	Weight     float64
}

// Verdict is the ensemble's fused output, per spec.md §3.
type Verdict struct {
	IsAttack         bool
	Confidence       float64
	AttackType       string
	PerModelResults  []ModelResult
	MissingFeatures  []string
}

// Ensemble fuses a fixed set of (ModelHandle, Schema) pairs under a
// FusionPolicy, per spec.md §4.3.
type Ensemble struct {
	Handles           []Handle
	Policy            FusionPolicy
	DetectionThreshold float64
}

// New constructs an Ensemble. Weights are read from each handle; if the
// caller wants config-driven overrides, the model_weights config key's
// values should be applied to the handles before constructing Ensemble.
func New(handles []Handle, policy FusionPolicy, detectionThreshold float64) *Ensemble {
	return &Ensemble{Handles: handles, Policy: policy, DetectionThreshold: detectionThreshold}
}

// Evaluate scores flow against every handle and fuses the results.
func (e *Ensemble) Evaluate(flow *flowtable.Flow) Verdict {
	weights := normalizeWeights(e.Handles)

	results := make([]ModelResult, len(e.Handles))
	var missing []string
	for i, h := range e.Handles {
		r, miss := e.scoreOne(h, flow)
		r.Weight = weights[i]
		results[i] = r
		missing = append(missing, miss...)
	}

	var v Verdict
	switch e.Policy {
	case FusionWeighted:
		v = fuseWeighted(results)
	case FusionVoting:
		v = fuseVoting(results)
	default:
		v = fuseMaxConfidence(results)
	}
	v.PerModelResults = results
	v.MissingFeatures = missing
	return v
}

// scoreOne runs one model against flow per spec.md §4.3's per-model steps.
func (e *Ensemble) scoreOne(h Handle, flow *flowtable.Flow) (ModelResult, []string) {
	names := features.FeatureNames(h.Schema)
	fm := features.Extract(flow, h.Schema)
	vec, missing := features.Materialize(fm, names)

	if scaler := h.Model.Scaler(); scaler != nil && scaler.ExpectedFeatureCount() == len(vec) {
		if scaled, err := scaler.Transform(vec); err == nil {
			vec = scaled
		}
	}

	probs, err := h.Model.PredictProba(vec)
	if err != nil || len(probs) == 0 {
		// ModelExecutionFailure: treat as benign/unknown, ensemble
		// continues with remaining models (spec.md §7) — this flow's
		// classification is skipped, not the whole loop.
		if err != nil {
			wrapped := errors.Wrapf(err, errors.KindClassification, "model %v predict", h.Model.Kind())
			logging.Default().WithError(wrapped).Warn("model prediction failed, treating as benign")
		}
		return ModelResult{Kind: h.Model.Kind(), Label: "Unknown", IsAttack: false, Confidence: 0}, missing
	}

	idx, confidence := argmax(probs)
	raw := h.Model.LabelMap()[idx]
	label := displayName(raw)
	isAttack := label != "Normal"

	if h.Model.Kind() == KindSuricata {
		isAttack = confidence >= e.DetectionThreshold
		if isAttack {
			label = "Generic DDoS"
		} else {
			label = "Normal"
		}
	}

	return ModelResult{
		Kind:       h.Model.Kind(),
		Label:      label,
		IsAttack:   isAttack,
		Confidence: confidence,
	}, missing
}

func argmax(probs []float64) (int, float64) {
	best, bestVal := 0, probs[0]
	for i, p := range probs[1:] {
		if p > bestVal {
			best, bestVal = i+1, p
		}
	}
	return best, bestVal
}

// normalizeWeights applies spec.md §4.3's weight-normalization rule to the
// per-handle weights: they are scaled to sum to 1; if the sum is zero,
// uniform weights apply. A configured weight list shorter than the model
// list is padded with its last value before the handles are built (see
// applyWeightOverride in cmd/ddosd).
func normalizeWeights(handles []Handle) []float64 {
	n := len(handles)
	raw := make([]float64, n)
	for i, h := range handles {
		raw[i] = h.Model.Weight()
	}

	sum := 0.0
	for _, w := range raw {
		sum += w
	}
	if sum == 0 {
		uniform := 1.0 / float64(n)
		for i := range raw {
			raw[i] = uniform
		}
		return raw
	}
	out := make([]float64, n)
	for i, w := range raw {
		out[i] = w / sum
	}
	return out
}

func firstCICDDoSAttack(results []ModelResult) (ModelResult, bool) {
	for _, r := range results {
		if r.Kind == KindCICDDoS && r.IsAttack {
			return r, true
		}
	}
	return ModelResult{}, false
}

// fuseMaxConfidence implements spec.md §4.3's default policy.
func fuseMaxConfidence(results []ModelResult) Verdict {
	best, bestScore := -1, -1.0
	for i, r := range results {
		score := r.Confidence * r.Weight
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	winner := results[best]

	attackType := winner.Label
	if winner.Kind == KindSuricata && winner.IsAttack {
		if cic, ok := firstCICDDoSAttack(results); ok {
			attackType = cic.Label
		}
	}

	return Verdict{
		IsAttack:   winner.IsAttack,
		Confidence: winner.Confidence,
		AttackType: attackType,
	}
}

// fuseWeighted implements spec.md §4.3's "weighted" policy.
func fuseWeighted(results []ModelResult) Verdict {
	sum := 0.0
	for _, r := range results {
		adj := r.Confidence
		if !r.IsAttack {
			adj = -r.Confidence
		}
		sum += adj * r.Weight
	}

	isAttack := sum > 0
	confidence := sum
	if confidence < 0 {
		confidence = -confidence
	}
	if confidence > 1 {
		confidence = 1
	}

	attackType := "Normal"
	if isAttack {
		if cic, ok := firstCICDDoSAttack(results); ok {
			attackType = cic.Label
		} else if best, ok := bestAttacking(results); ok {
			attackType = best.Label
		} else {
			attackType = "Generic DDoS"
		}
	}

	return Verdict{IsAttack: isAttack, Confidence: confidence, AttackType: attackType}
}

func bestAttacking(results []ModelResult) (ModelResult, bool) {
	best, bestScore, found := ModelResult{}, -1.0, false
	for _, r := range results {
		if !r.IsAttack {
			continue
		}
		score := r.Confidence * r.Weight
		if score > bestScore {
			best, bestScore, found = r, score, true
		}
	}
	return best, found
}

// fuseVoting implements spec.md §4.3's "voting" policy.
func fuseVoting(results []ModelResult) Verdict {
	voteSum := 0.0
	confSum := 0.0
	typeScores := make(map[string]float64)
	var typeOrder []string

	for _, r := range results {
		if r.IsAttack {
			voteSum += r.Weight
		}
		confSum += r.Weight * r.Confidence
		if _, seen := typeScores[r.Label]; !seen {
			typeOrder = append(typeOrder, r.Label)
		}
		typeScores[r.Label] += r.Weight
	}

	isAttack := voteSum > 0.5

	attackType := "Normal"
	bestScore := -1.0
	for _, name := range typeOrder {
		if typeScores[name] > bestScore {
			bestScore = typeScores[name]
			attackType = name
		}
	}
	if !isAttack {
		attackType = "Normal"
	}

	return Verdict{IsAttack: isAttack, Confidence: confSum, AttackType: attackType}
}
