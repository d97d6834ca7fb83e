// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command ddosd runs the real-time DDoS detection and mitigation daemon:
// packet capture feeds the flow table, the detector loop classifies
// drained flows against the model ensemble, and confirmed attacks are
// blocked, logged, and notified.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"ddosd/internal/api"
	"ddosd/internal/attack"
	"ddosd/internal/audit"
	"ddosd/internal/blocklist"
	"ddosd/internal/capture"
	"ddosd/internal/classify"
	"ddosd/internal/clock"
	"ddosd/internal/config"
	"ddosd/internal/detector"
	"ddosd/internal/features"
	"ddosd/internal/firewall"
	"ddosd/internal/flowtable"
	"ddosd/internal/logging"
	"ddosd/internal/metrics"
	"ddosd/internal/modelio"
	"ddosd/internal/notification"
	"ddosd/internal/whitelist"
)

func main() {
	configPath := flag.String("config", "/etc/ddosd/config.yaml", "Path to YAML config file")
	listenAddr := flag.String("listen", ":8099", "Control-plane API listen address")
	extraWhitelist := flag.String("extra-whitelist", "", "Comma-separated IPs/CIDRs merged into the configured whitelist")
	extraRuleset := flag.String("apply-extra-ruleset", "", "Path to a supplemental nft script dry-run-checked then applied atomically before startup")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ddosd: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(logging.Config{Level: cfg.Logging.Level, JSON: cfg.Logging.JSON, ReportTime: true})
	logging.SetDefault(log)

	if *extraWhitelist != "" {
		cfg.Prevention.Whitelist = firewall.MergeIPLists(cfg.Prevention.Whitelist, strings.Split(*extraWhitelist, ","))
	}

	if *extraRuleset != "" {
		if err := applyExtraRuleset(*extraRuleset); err != nil {
			log.WithError(err).Error("ddosd exited with error")
			os.Exit(1)
		}
	}

	if err := run(cfg, log, *listenAddr); err != nil {
		log.WithError(err).Error("ddosd exited with error")
		os.Exit(1)
	}
}

// applyExtraRuleset lets an operator layer supplemental nft rules (custom
// rate limits, extra drop rules) alongside the generated blocklist chain.
// The script is dry-run-checked before it is applied atomically, so a typo
// in the supplemental ruleset fails loudly instead of leaving a partial
// ruleset on the host.
func applyExtraRuleset(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading extra ruleset: %w", err)
	}
	script := string(data)
	if err := firewall.DryRun(script); err != nil {
		return fmt.Errorf("extra ruleset failed validation: %w", err)
	}
	if err := firewall.AtomicRulesetUpdate(script); err != nil {
		return fmt.Errorf("applying extra ruleset: %w", err)
	}
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		return nil, fmt.Errorf("invalid config: %v", errs)
	}
	return cfg, nil
}

func run(cfg *config.Config, log *logging.Logger, listenAddr string) error {
	clk := clock.System
	reg := prometheus.NewRegistry()
	met := metrics.NewRegistry(reg)

	// 1. Whitelist snapshot loads first, so the first classified flow
	// always has a legitimacy gate available.
	geo, err := whitelist.OpenGeoIPDatabase(cfg.Prevention.GeoIPDatabasePath)
	if err != nil {
		return fmt.Errorf("opening geoip database: %w", err)
	}
	if geo != nil {
		defer geo.Close()
	}
	snapshot := whitelist.Build(cfg.Prevention.Whitelist, cfg.Prevention.CDNPrefixes, geo)
	oracle := whitelist.NewOracle(snapshot)

	// 2. Blocklist effector bootstraps the nftables chain next.
	effector, err := newEffector(cfg)
	if err != nil {
		return fmt.Errorf("constructing firewall effector: %w", err)
	}
	defer effector.Close()

	bl := blocklist.New(blocklist.Config{
		BlockDuration:           time.Duration(cfg.Prevention.BlockDuration) * time.Second,
		MaxEscalationMultiplier: cfg.Prevention.MaxBlockEscalation,
	}, effector, clk)

	auditStore, err := audit.NewStore(cfg.Audit.AttackLogPath, cfg.Audit.IPSummaryPath)
	if err != nil {
		return fmt.Errorf("opening audit store: %w", err)
	}
	auditLog := audit.NewLogger(auditStore, log)

	dispatch := notification.NewDispatcher(&cfg.Notifications, log)

	attackHandler := attack.New(attack.Config{
		AutoBlock:                cfg.Prevention.AutoBlock,
		AutoBlockAttackTypes:     toAttackTypeSet(cfg.Prevention.AutoBlockAttackTypes),
		BlockConfidenceThreshold: cfg.Prevention.BlockConfidenceThreshold,
		CooldownPeriod:           time.Duration(cfg.Prevention.CooldownPeriod) * time.Second,
	}, bl, oracle, dispatch, auditLog, clk, log)

	// 3. The detector loop, fed by an ensemble built from the configured
	// model artifacts, comes up last.
	ensemble, err := buildEnsemble(cfg)
	if err != nil {
		return fmt.Errorf("building classifier ensemble: %w", err)
	}

	intake := make(chan *flowtable.Flow, cfg.Network.BufferSize)
	loop := detector.New(detector.Config{
		BatchSize:              cfg.Detection.BatchSize,
		MinPacketsForAnalysis:  cfg.Advanced.MinPacketsForAnalysis,
		AsyncAnalysis:          cfg.Advanced.AsyncAnalysis,
		MaxAnalysisThreads:     cfg.Advanced.MaxAnalysisThreads,
		CheckInterval:          time.Duration(cfg.Detection.CheckInterval * float64(time.Second)),
		DetectionThreshold:     cfg.Detection.DetectionThreshold,
		FalsePositiveThreshold: cfg.Detection.FalsePositiveThreshold,
	}, ensemble, oracle, attackHandler, intake, clk, log)

	table := flowtable.New(flowtable.Config{
		BufferSize:        cfg.Network.BufferSize,
		MaxPacketsPerFlow: cfg.Network.MaxPacketsPerFlow,
		FlowIdleTimeout:   time.Duration(cfg.Network.FlowIdleTimeout) * time.Second,
	}, clk)

	src, err := capture.New(cfg.Network.Interface)
	if err != nil {
		return fmt.Errorf("opening capture source: %w", err)
	}
	defer src.Close()

	srv := api.NewServer(api.DefaultServerConfig(), statusAdapter{table, loop, attackHandler, bl}, blocklistAdapter{bl}, whitelistAdapter{oracle, cfg.Prevention.CDNPrefixes, geo}, log)
	attackHandler.SetAttackCallback(func(info attack.Info) { srv.Broadcast(info) })

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	packets := make(chan flowtable.PacketInfo, cfg.Network.BufferSize)

	go runCaptureLoop(ctx, src, packets, log)
	go runFlowLoop(ctx, table, packets, intake, met, log)
	go runBlocklistSweeper(ctx, bl, met, auditLog)
	go runMetricsSampler(ctx, table, bl, loop, met)

	go loop.Start(ctx)
	defer loop.Stop()

	log.Info("ddosd listening", "addr", listenAddr, "interface", cfg.Network.Interface)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(listenAddr) }()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.WithError(err).Error("control-plane API stopped")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// runCaptureLoop pulls decoded packets from src and forwards them to the
// flow table, never blocking on a full channel (spec.md §5).
func runCaptureLoop(ctx context.Context, src capture.Source, out chan<- flowtable.PacketInfo, log *logging.Logger) {
	if err := src.Run(ctx, out); err != nil && ctx.Err() == nil {
		log.WithError(err).Error("capture source stopped unexpectedly")
	}
}

// runFlowLoop observes packets into the flow table and forwards emitted
// flows (size-trigger or idle-timeout) into the detector intake queue,
// dropping on a full queue rather than blocking capture.
func runFlowLoop(ctx context.Context, table *flowtable.Table, packets <-chan flowtable.PacketInfo, intake chan<- *flowtable.Flow, met *metrics.Registry, log *logging.Logger) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case pkt, ok := <-packets:
			if !ok {
				return
			}
			met.PacketsProcessed.Inc()
			if flow := table.Observe(pkt); flow != nil {
				forward(intake, flow, met, log)
			}
		case <-ticker.C:
			for _, flow := range table.ExpirySweep() {
				forward(intake, flow, met, log)
			}
		}
	}
}

func forward(intake chan<- *flowtable.Flow, flow *flowtable.Flow, met *metrics.Registry, log *logging.Logger) {
	select {
	case intake <- flow:
	default:
		met.FlowsEvicted.Inc()
		log.Warn("detector intake full, dropping flow", "key", flow.Key)
	}
}

// runBlocklistSweeper expires blocked addresses on a ticker.
func runBlocklistSweeper(ctx context.Context, bl *blocklist.Blocklist, met *metrics.Registry, auditLog *audit.Logger) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, addr := range bl.Sweep() {
				met.BlocksExpired.Inc()
				auditLog.LogBlockRemoved(addr)
			}
		}
	}
}

// runMetricsSampler periodically syncs metrics from component snapshots:
// gauges are set directly, and the FlowsObserved, FalsePositives and
// EffectorErrors counters are advanced by the delta since the last tick.
func runMetricsSampler(ctx context.Context, table *flowtable.Table, bl *blocklist.Blocklist, loop *detector.Loop, met *metrics.Registry) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	var lastObserved, lastFalsePositives, lastEffectorErrors uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := table.Stats()
			met.FlowsActive.Set(float64(stats.Current))
			met.FlowsObserved.Add(float64(stats.TotalObserved - lastObserved))
			lastObserved = stats.TotalObserved

			counters := loop.Counters()
			met.FalsePositives.Add(float64(counters.FalsePositives - lastFalsePositives))
			lastFalsePositives = counters.FalsePositives

			met.BlocksActive.Set(float64(len(bl.List())))

			effectorErrors := bl.EffectorErrors()
			met.EffectorErrors.Add(float64(effectorErrors - lastEffectorErrors))
			lastEffectorErrors = effectorErrors
		}
	}
}

func toAttackTypeSet(types []string) map[string]bool {
	if len(types) == 0 {
		return nil
	}
	set := make(map[string]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return set
}

func buildEnsemble(cfg *config.Config) (*classify.Ensemble, error) {
	var handles []classify.Handle

	if cfg.Detection.CICDDoSModelPath != "" {
		m, err := modelio.Load(cfg.Detection.CICDDoSModelPath)
		if err != nil {
			return nil, fmt.Errorf("loading cicddos model: %w", err)
		}
		handles = append(handles, classify.Handle{Model: applyWeightOverride(m, cfg.Detection.ModelWeights, 0), Schema: features.SchemaCICDDoS})
	}
	if cfg.Detection.SuricataModelPath != "" {
		m, err := modelio.Load(cfg.Detection.SuricataModelPath)
		if err != nil {
			return nil, fmt.Errorf("loading suricata model: %w", err)
		}
		handles = append(handles, classify.Handle{Model: applyWeightOverride(m, cfg.Detection.ModelWeights, 1), Schema: features.SchemaSuricata})
	}
	if len(handles) == 0 {
		return nil, fmt.Errorf("no model artifacts configured: set detection.cicddos_model_path and/or detection.suricata_model_path")
	}

	var policy classify.FusionPolicy
	switch cfg.Detection.CombinationMethod {
	case "weighted":
		policy = classify.FusionWeighted
	case "voting":
		policy = classify.FusionVoting
	default:
		policy = classify.FusionMaxConfidence
	}

	return classify.New(handles, policy, cfg.Detection.DetectionThreshold), nil
}

// applyWeightOverride applies detection.model_weights[idx] to m; when the
// list is shorter than the model list, its last weight is repeated. An empty
// list leaves the artifact's own weight in place.
func applyWeightOverride(m *modelio.Model, weights []float64, idx int) *modelio.Model {
	if len(weights) == 0 {
		return m
	}
	if idx >= len(weights) {
		idx = len(weights) - 1
	}
	return m.WithWeight(weights[idx])
}

// statusAdapter composes the daemon's live components into api.StatusResponse.
type statusAdapter struct {
	table   *flowtable.Table
	loop    *detector.Loop
	handler *attack.Handler
	bl      *blocklist.Blocklist
}

func (a statusAdapter) Status() api.StatusResponse {
	tstats := a.table.Stats()
	counters := a.loop.Counters()
	return api.StatusResponse{
		FlowsActive:     tstats.Current,
		FlowsObserved:   tstats.TotalObserved,
		AttacksDetected: a.handler.LifetimeCount(),
		AttacksByType:   a.handler.CountsByType(),
		BlocksActive:    len(a.bl.List()),
		FalsePositives:  counters.FalsePositives,
	}
}

type blocklistAdapter struct {
	bl *blocklist.Blocklist
}

func (a blocklistAdapter) ListBlocked() []api.BlockedEntry {
	entries := a.bl.List()
	out := make([]api.BlockedEntry, len(entries))
	for i, e := range entries {
		out[i] = api.BlockedEntry{
			Addr:       e.Addr,
			AttackType: e.AttackType,
			BlockedAt:  e.BlockedAt,
			ExpiresAt:  e.ExpiresAt,
			BlockCount: e.BlockCount,
		}
	}
	return out
}

// Block satisfies api.BlocklistProvider for the POST /api/v1/blocklist
// manual-block endpoint (an operator forcing a block outside the normal
// detection pipeline).
func (a blocklistAdapter) Block(addr, attackType string) error {
	if attackType == "" {
		attackType = "manual"
	}
	return a.bl.Add(addr, attackType)
}

// Unblock satisfies api.BlocklistProvider for the DELETE
// /api/v1/blocklist/{addr} endpoint.
func (a blocklistAdapter) Unblock(addr string) error {
	return a.bl.Remove(addr)
}

// whitelistAdapter satisfies api.WhitelistProvider, rebuilding and
// atomically swapping the whitelist.Oracle's Snapshot on PUT.
type whitelistAdapter struct {
	oracle      *whitelist.Oracle
	cdnPrefixes []string
	geo         whitelist.GeoIPLookup
}

func (a whitelistAdapter) ListWhitelist() []string {
	return a.oracle.Entries()
}

func (a whitelistAdapter) SetWhitelist(entries []string) error {
	a.oracle.Swap(whitelist.Build(entries, a.cdnPrefixes, a.geo))
	return nil
}

// newEffector constructs the platform nftables effector, falling back to
// the in-memory simulator where the non-Linux build tag applies (see
// internal/blocklist/effector_sim.go).
func newEffector(cfg *config.Config) (blocklist.Effector, error) {
	return blocklist.NewEffector(cfg.Prevention.FirewallTable, cfg.Prevention.FirewallChain)
}
