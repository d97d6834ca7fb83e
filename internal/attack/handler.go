// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package attack implements the attack handler (C5): it receives
// confirmed verdicts from the detector loop, maintains lifetime
// attack-type counters, persists an audit trail, applies the blocking
// decision, and dedupes notifications. Grounded on the teacher's
// notification.Dispatcher.isRateLimited cooldown-map pattern, generalized
// from per-channel-and-title keys to per-(attack_type, src_addr) keys.
package attack

import (
	"sync"
	"time"

	"ddosd/internal/audit"
	"ddosd/internal/classify"
	"ddosd/internal/clock"
	"ddosd/internal/flowtable"
	"ddosd/internal/logging"
	"ddosd/internal/notification"
	"ddosd/internal/whitelist"
)

// Blocklist is the subset of blocklist.Blocklist the handler depends on.
type Blocklist interface {
	Add(addr, attackType string) error
	IsBlocked(addr string) bool
}

// Config controls the auto-block and notification-dedup policy, mirroring
// spec.md §6's prevention/notifications sections.
type Config struct {
	AutoBlock                bool
	AutoBlockAttackTypes     map[string]bool // empty/nil means "all attack types"
	BlockConfidenceThreshold float64
	CooldownPeriod           time.Duration
}

// Info is the composed record the handler builds for every confirmed
// attack, passed to notifications and exposed to the status API.
type Info struct {
	SrcAddr    string
	DstAddr    string
	SrcPort    uint16
	DstPort    uint16
	Protocol   string
	AttackType string
	Confidence float64
	Blocked    bool
	Timestamp  time.Time
}

// Handler implements detector.AttackSink.
type Handler struct {
	cfg       Config
	clock     clock.Clock
	log       *logging.Logger
	blocklist Blocklist
	whitelist *whitelist.Oracle
	dispatch  *notification.Dispatcher
	auditLog  *audit.Logger

	mu         sync.Mutex
	lifetime   uint64
	byType     map[string]uint64
	lastNotify map[string]time.Time

	onAttack func(Info)
}

// New constructs a Handler.
func New(cfg Config, blocklist Blocklist, oracle *whitelist.Oracle, dispatch *notification.Dispatcher, auditLog *audit.Logger, clk clock.Clock, log *logging.Logger) *Handler {
	if clk == nil {
		clk = clock.System
	}
	if log == nil {
		log = logging.Default()
	}
	return &Handler{
		cfg:        cfg,
		clock:      clk,
		log:        log.WithComponent("attack"),
		blocklist:  blocklist,
		whitelist:  oracle,
		dispatch:   dispatch,
		auditLog:   auditLog,
		byType:     make(map[string]uint64),
		lastNotify: make(map[string]time.Time),
	}
}

// Handle implements detector.AttackSink: it composes an Info from the
// flow and verdict, audits it, decides whether to block, and dedupes the
// resulting notification.
func (h *Handler) Handle(flow *flowtable.Flow, verdict classify.Verdict) {
	now := h.clock.Now()

	info := Info{
		SrcAddr:    flow.Forward.Addr,
		DstAddr:    flow.Backward.Addr,
		SrcPort:    flow.Forward.Port,
		DstPort:    flow.Backward.Port,
		Protocol:   flow.Protocol,
		AttackType: verdict.AttackType,
		Confidence: verdict.Confidence,
		Timestamp:  now,
	}

	h.mu.Lock()
	h.lifetime++
	h.byType[info.AttackType]++
	h.mu.Unlock()

	if h.shouldBlock(info) {
		if err := h.blocklist.Add(info.SrcAddr, info.AttackType); err != nil {
			h.log.WithError(err).Error("failed to apply block", "addr", info.SrcAddr)
		} else {
			info.Blocked = true
		}
	}

	if h.auditLog != nil {
		h.auditLog.LogAttackDetected(info.SrcAddr, info.DstAddr, info.AttackType, info.Confidence)
	}

	h.notify(info)

	h.mu.Lock()
	cb := h.onAttack
	h.mu.Unlock()
	if cb != nil {
		cb(info)
	}
}

// shouldBlock implements spec.md §4.5's blocking decision: auto_block
// must be enabled, the attack type must be in auto_block_attack_types (or
// that list must be empty, meaning "all"), confidence must clear
// block_confidence_threshold, and the source must not be whitelisted.
func (h *Handler) shouldBlock(info Info) bool {
	if !h.cfg.AutoBlock {
		return false
	}
	if len(h.cfg.AutoBlockAttackTypes) > 0 && !h.cfg.AutoBlockAttackTypes[info.AttackType] {
		return false
	}
	if info.Confidence < h.cfg.BlockConfidenceThreshold {
		return false
	}
	if h.whitelist != nil && h.whitelist.IsWhitelistedAddr(info.SrcAddr) {
		return false
	}
	return true
}

// notify dispatches a notification for info unless an identical
// (attack_type, src_addr) pair already fired within CooldownPeriod.
func (h *Handler) notify(info Info) {
	key := info.AttackType + "|" + info.SrcAddr

	h.mu.Lock()
	last, seen := h.lastNotify[key]
	if seen && info.Timestamp.Sub(last) < h.cfg.CooldownPeriod {
		h.mu.Unlock()
		return
	}
	h.lastNotify[key] = info.Timestamp
	h.mu.Unlock()

	if h.dispatch == nil {
		return
	}

	level := notification.LevelWarning
	if info.Blocked {
		level = notification.LevelCritical
	}

	h.dispatch.Send(notification.Notification{
		Title:     "DDoS attack detected: " + info.AttackType,
		Message:   infoMessage(info),
		Level:     level,
		Timestamp: info.Timestamp,
		Data: map[string]interface{}{
			"src_addr":   info.SrcAddr,
			"dst_addr":   info.DstAddr,
			"confidence": info.Confidence,
			"blocked":    info.Blocked,
		},
	})
}

func infoMessage(info Info) string {
	status := "not blocked"
	if info.Blocked {
		status = "blocked"
	}
	return info.SrcAddr + " -> " + info.DstAddr + " (" + status + ")"
}

// SetAttackCallback registers fn to be called with every confirmed
// attack's Info, after blocking/auditing/notification. Used to feed the
// control-plane API's /api/v1/stream websocket (spec.md §6).
func (h *Handler) SetAttackCallback(fn func(Info)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onAttack = fn
}

// LifetimeCount returns the total number of confirmed attacks handled.
func (h *Handler) LifetimeCount() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lifetime
}

// CountsByType returns a snapshot of the attack-type histogram.
func (h *Handler) CountsByType() map[string]uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]uint64, len(h.byType))
	for k, v := range h.byType {
		out[k] = v
	}
	return out
}
