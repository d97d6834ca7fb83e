// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package audit

import (
	"time"

	"ddosd/internal/logging"
)

// EventType identifies a category of security event this daemon emits.
type EventType string

const (
	EventAttackDetected   EventType = "attack_detected"
	EventAttackSuppressed EventType = "attack_suppressed" // false-positive guard
	EventBlockApplied     EventType = "block_applied"
	EventBlockRemoved     EventType = "block_removed"
	EventSystemStart      EventType = "system_start"
	EventSystemStop       EventType = "system_stop"
)

// Severity mirrors the structured logger's levels.
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// Event is one structured security/audit log entry.
type Event struct {
	Timestamp  time.Time
	Type       EventType
	Severity   Severity
	SrcAddr    string
	DstAddr    string
	AttackType string
	Confidence float64
	Message    string
}

// Logger writes structured security events to the process logger and, for
// attack/block events, persists them to the CSV Store.
type Logger struct {
	store  *Store
	logger *logging.Logger
}

// NewLogger constructs a Logger. store may be nil, in which case events
// are only emitted to the structured logger.
func NewLogger(store *Store, logger *logging.Logger) *Logger {
	if logger == nil {
		logger = logging.Default()
	}
	return &Logger{store: store, logger: logger.WithComponent("audit")}
}

// LogEvent records ev to the structured logger and, where applicable, the
// CSV store.
func (l *Logger) LogEvent(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	fields := []any{
		"event_type", string(ev.Type),
		"src", ev.SrcAddr,
		"dst", ev.DstAddr,
		"attack_type", ev.AttackType,
		"confidence", ev.Confidence,
	}
	switch ev.Severity {
	case SeverityWarn:
		l.logger.Warn(ev.Message, fields...)
	case SeverityError:
		l.logger.Error(ev.Message, fields...)
	default:
		l.logger.Info(ev.Message, fields...)
	}

	if l.store == nil {
		return
	}
	switch ev.Type {
	case EventAttackDetected, EventAttackSuppressed:
		l.store.WriteAttack(AttackRecord{
			Timestamp:  ev.Timestamp,
			SrcAddr:    ev.SrcAddr,
			DstAddr:    ev.DstAddr,
			AttackType: ev.AttackType,
			Confidence: ev.Confidence,
			Blocked:    ev.Type == EventAttackDetected,
		})
	case EventBlockApplied:
		l.store.MarkBlocked(ev.SrcAddr, true)
	case EventBlockRemoved:
		l.store.MarkBlocked(ev.SrcAddr, false)
	}
}

// LogAttackDetected records a confirmed attack verdict.
func (l *Logger) LogAttackDetected(srcAddr, dstAddr, attackType string, confidence float64) {
	l.LogEvent(Event{
		Type: EventAttackDetected, Severity: SeverityWarn,
		SrcAddr: srcAddr, DstAddr: dstAddr, AttackType: attackType, Confidence: confidence,
		Message: "attack detected",
	})
}

// LogFalsePositiveSuppressed records a borderline verdict the legitimacy
// oracle suppressed.
func (l *Logger) LogFalsePositiveSuppressed(srcAddr, dstAddr, attackType string, confidence float64) {
	l.LogEvent(Event{
		Type: EventAttackSuppressed, Severity: SeverityInfo,
		SrcAddr: srcAddr, DstAddr: dstAddr, AttackType: attackType, Confidence: confidence,
		Message: "false-positive guard suppressed verdict",
	})
}

// LogBlockApplied records a new firewall block.
func (l *Logger) LogBlockApplied(addr, attackType string) {
	l.LogEvent(Event{Type: EventBlockApplied, Severity: SeverityWarn, SrcAddr: addr, AttackType: attackType, Message: "block applied"})
}

// LogBlockRemoved records a block's expiry or manual removal.
func (l *Logger) LogBlockRemoved(addr string) {
	l.LogEvent(Event{Type: EventBlockRemoved, Severity: SeverityInfo, SrcAddr: addr, Message: "block removed"})
}
