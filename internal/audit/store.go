// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package audit persists attack and per-source-IP activity to CSV logs,
// adapted from the original Python daemon's utils/ddos_logger.py (a
// csv.writer-based attack log plus a rewritten-in-full IP summary file)
// and the teacher's audit.Logger structured-event wrapping style.
package audit

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"
)

// AttackRecord is one row of the attack log, matching the original
// daemon's CSV column order exactly.
type AttackRecord struct {
	Timestamp  time.Time
	SrcAddr    string
	DstAddr    string
	SrcPort    uint16
	DstPort    uint16
	Protocol   string
	AttackType string
	Confidence float64
	Blocked    bool
}

var attackHeader = []string{"timestamp", "src_ip", "dst_ip", "src_port", "dst_port", "protocol", "attack_type", "confidence", "blocked"}

// IPSummary is one row of the IP summary log: cumulative activity for a
// single source address.
type IPSummary struct {
	Addr        string
	FirstSeen   time.Time
	LastSeen    time.Time
	AttackTypes map[string]bool
	BlockCount  int
	IsBlocked   bool
}

var ipSummaryHeader = []string{"ip", "first_seen", "last_seen", "attack_types", "block_count", "is_blocked"}

const timeLayout = "2006-01-02 15:04:05"

// Store persists AttackRecords to an append-only CSV file and maintains a
// per-IP summary CSV rewritten in full on each update, mirroring the
// original daemon's on-disk format so operators' existing tooling against
// ddos_attacks.log-shaped files keeps working.
type Store struct {
	mu sync.Mutex

	attackLogPath string
	ipSummaryPath string

	summaries map[string]*IPSummary
}

// NewStore opens (or creates) the attack and IP-summary logs at the given
// paths, loading any existing IP summaries into memory.
func NewStore(attackLogPath, ipSummaryPath string) (*Store, error) {
	s := &Store{
		attackLogPath: attackLogPath,
		ipSummaryPath: ipSummaryPath,
		summaries:     make(map[string]*IPSummary),
	}
	if attackLogPath != "" {
		if err := s.ensureHeader(attackLogPath, attackHeader); err != nil {
			return nil, fmt.Errorf("audit: initialize attack log: %w", err)
		}
	}
	if ipSummaryPath != "" {
		if err := s.ensureHeader(ipSummaryPath, ipSummaryHeader); err != nil {
			return nil, fmt.Errorf("audit: initialize ip summary log: %w", err)
		}
		if err := s.loadSummaries(); err != nil {
			return nil, fmt.Errorf("audit: load ip summaries: %w", err)
		}
	}
	return s, nil
}

func (s *Store) ensureHeader(path string, header []string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func (s *Store) loadSummaries() error {
	f, err := os.Open(s.ipSummaryPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil || len(rows) == 0 {
		return err
	}
	for _, row := range rows[1:] {
		if len(row) < 6 {
			continue
		}
		sum := &IPSummary{Addr: row[0], AttackTypes: make(map[string]bool)}
		sum.FirstSeen, _ = time.Parse(timeLayout, row[1])
		sum.LastSeen, _ = time.Parse(timeLayout, row[2])
		for _, t := range splitNonEmpty(row[3]) {
			sum.AttackTypes[t] = true
		}
		sum.BlockCount, _ = strconv.Atoi(row[4])
		sum.IsBlocked = row[5] == "true" || row[5] == "True"
		s.summaries[sum.Addr] = sum
	}
	return nil
}

// WriteAttack appends rec to the attack log and folds it into the source
// address's running IPSummary.
func (s *Store) WriteAttack(rec AttackRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	if s.attackLogPath != "" {
		if err := s.appendAttackRow(rec); err != nil {
			return err
		}
	}

	if s.ipSummaryPath != "" {
		s.foldSummaryLocked(rec)
		if err := s.flushSummariesLocked(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) appendAttackRow(rec AttackRecord) error {
	f, err := os.OpenFile(s.attackLogPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	row := []string{
		rec.Timestamp.Format(timeLayout),
		rec.SrcAddr,
		rec.DstAddr,
		strconv.Itoa(int(rec.SrcPort)),
		strconv.Itoa(int(rec.DstPort)),
		rec.Protocol,
		rec.AttackType,
		strconv.FormatFloat(rec.Confidence, 'f', 4, 64),
		strconv.FormatBool(rec.Blocked),
	}
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func (s *Store) foldSummaryLocked(rec AttackRecord) {
	sum, ok := s.summaries[rec.SrcAddr]
	if !ok {
		sum = &IPSummary{Addr: rec.SrcAddr, FirstSeen: rec.Timestamp, AttackTypes: make(map[string]bool)}
		s.summaries[rec.SrcAddr] = sum
	}
	sum.LastSeen = rec.Timestamp
	sum.AttackTypes[rec.AttackType] = true
	if rec.Blocked {
		sum.IsBlocked = true
	}
}

// MarkBlocked updates the IP summary when the blocklist blocks or unblocks
// an address, incrementing the block counter on a new block.
func (s *Store) MarkBlocked(addr string, blocked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum, ok := s.summaries[addr]
	if !ok {
		sum = &IPSummary{Addr: addr, FirstSeen: time.Now(), AttackTypes: make(map[string]bool)}
		s.summaries[addr] = sum
	}
	if blocked && !sum.IsBlocked {
		sum.BlockCount++
	}
	sum.IsBlocked = blocked
	sum.LastSeen = time.Now()

	if s.ipSummaryPath == "" {
		return nil
	}
	return s.flushSummariesLocked()
}

func (s *Store) flushSummariesLocked() error {
	f, err := os.Create(s.ipSummaryPath)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(ipSummaryHeader); err != nil {
		return err
	}

	addrs := make([]string, 0, len(s.summaries))
	for addr := range s.summaries {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)

	for _, addr := range addrs {
		sum := s.summaries[addr]
		types := make([]string, 0, len(sum.AttackTypes))
		for t := range sum.AttackTypes {
			types = append(types, t)
		}
		sort.Strings(types)
		row := []string{
			sum.Addr,
			sum.FirstSeen.Format(timeLayout),
			sum.LastSeen.Format(timeLayout),
			joinNonEmpty(types),
			strconv.Itoa(sum.BlockCount),
			strconv.FormatBool(sum.IsBlocked),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// Summary returns a copy of the in-memory summary for addr, if known.
func (s *Store) Summary(addr string) (IPSummary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum, ok := s.summaries[addr]
	if !ok {
		return IPSummary{}, false
	}
	cp := *sum
	cp.AttackTypes = make(map[string]bool, len(sum.AttackTypes))
	for k, v := range sum.AttackTypes {
		cp.AttackTypes[k] = v
	}
	return cp, true
}

func splitNonEmpty(s string) []string {
	var out []string
	cur := ""
	for _, r := range s {
		if r == ',' {
			if cur != "" {
				out = append(out, cur)
			}
			cur = ""
			continue
		}
		cur += string(r)
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}

func joinNonEmpty(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ","
		}
		out += p
	}
	return out
}
