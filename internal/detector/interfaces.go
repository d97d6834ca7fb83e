// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package detector implements the detector loop (C4): batch drain from the
// flow table's emission channel, ensemble scoring (sync or worker-pool
// async), the false-positive legitimacy guard, and forwarding confirmed
// attacks to the attack handler. Grounded on the teacher's (now-removed)
// sentinel.Service analysis loop: a ticker-driven drain-and-score cycle
// with a bounded worker pool and rolling latency stats.
package detector

import (
	"ddosd/internal/classify"
	"ddosd/internal/flowtable"
	"ddosd/internal/whitelist"
)

// Ensemble is the subset of classify.Ensemble the loop depends on.
type Ensemble interface {
	Evaluate(flow *flowtable.Flow) classify.Verdict
}

// LegitimacyOracle is the subset of whitelist.Oracle the false-positive
// guard depends on.
type LegitimacyOracle interface {
	IsLegitimate(srcAddr, dstAddr string, srcPort, dstPort uint16, sig whitelist.AttackSignature) (bool, string)
}

// AttackSink receives confirmed-attack verdicts, implemented by
// internal/attack.Handler.
type AttackSink interface {
	Handle(flow *flowtable.Flow, verdict classify.Verdict)
}
