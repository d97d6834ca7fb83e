// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import "fmt"

// Validate checks cfg against every constraint spec.md's configuration
// table implies, collecting every violation rather than stopping at the
// first (per spec.md §7's "never silently drop fields" policy).
func Validate(cfg *Config) []error {
	var errs []error

	if cfg.Detection.DetectionThreshold < 0 || cfg.Detection.DetectionThreshold > 1 {
		errs = append(errs, fmt.Errorf("detection.detection_threshold must be in [0,1], got %v", cfg.Detection.DetectionThreshold))
	}
	if cfg.Detection.FalsePositiveThreshold < cfg.Detection.DetectionThreshold {
		errs = append(errs, fmt.Errorf("detection.false_positive_threshold (%v) must be >= detection_threshold (%v)",
			cfg.Detection.FalsePositiveThreshold, cfg.Detection.DetectionThreshold))
	}
	switch cfg.Detection.CombinationMethod {
	case "max_confidence", "weighted", "voting":
	default:
		errs = append(errs, fmt.Errorf("detection.combination_method must be one of max_confidence|weighted|voting, got %q", cfg.Detection.CombinationMethod))
	}
	switch cfg.Detection.Schema {
	case "cicddos", "suricata":
	default:
		errs = append(errs, fmt.Errorf("detection.schema must be cicddos|suricata, got %q", cfg.Detection.Schema))
	}
	if cfg.Detection.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("detection.batch_size must be > 0"))
	}
	if cfg.Detection.CheckInterval <= 0 {
		errs = append(errs, fmt.Errorf("detection.check_interval must be > 0"))
	}

	if cfg.Network.Interface == "" {
		errs = append(errs, fmt.Errorf("network.interface must be set"))
	}
	if cfg.Network.BufferSize <= 0 {
		errs = append(errs, fmt.Errorf("network.buffer_size must be > 0"))
	}
	if cfg.Network.MaxPacketsPerFlow <= 0 {
		errs = append(errs, fmt.Errorf("network.max_packets_per_flow must be > 0"))
	}
	if cfg.Network.FlowIdleTimeout <= 0 {
		errs = append(errs, fmt.Errorf("network.flow_idle_timeout must be > 0"))
	}

	if cfg.Prevention.BlockConfidenceThreshold < cfg.Detection.DetectionThreshold {
		errs = append(errs, fmt.Errorf("prevention.block_confidence_threshold (%v) must be >= detection_threshold (%v)",
			cfg.Prevention.BlockConfidenceThreshold, cfg.Detection.DetectionThreshold))
	}
	if cfg.Prevention.BlockDuration < 0 {
		errs = append(errs, fmt.Errorf("prevention.block_duration must be >= 0"))
	}
	if cfg.Prevention.CooldownPeriod < 0 {
		errs = append(errs, fmt.Errorf("prevention.cooldown_period must be >= 0"))
	}
	if cfg.Prevention.FirewallChain == "" {
		errs = append(errs, fmt.Errorf("prevention.firewall_chain must be set"))
	}

	if cfg.Advanced.AsyncAnalysis && cfg.Advanced.MaxAnalysisThreads <= 0 {
		errs = append(errs, fmt.Errorf("advanced.max_analysis_threads must be > 0 when async_analysis is enabled"))
	}
	if cfg.Advanced.MinPacketsForAnalysis < 0 {
		errs = append(errs, fmt.Errorf("advanced.min_packets_for_analysis must be >= 0"))
	}

	for i, ch := range cfg.Notifications.Channels {
		if ch.Name == "" {
			errs = append(errs, fmt.Errorf("notifications.channels[%d].name must be set", i))
		}
	}

	return errs
}

// RequiresRestart reports whether changing from old to new requires the
// clean stop->start sequence documented in spec.md §5, rather than an
// in-place apply under the component mutex.
func RequiresRestart(old, new *Config) bool {
	if old == nil || new == nil {
		return true
	}
	if old.Network.Interface != new.Network.Interface {
		return true
	}
	if old.Advanced.MaxAnalysisThreads != new.Advanced.MaxAnalysisThreads {
		return true
	}
	if old.Network.BufferSize != new.Network.BufferSize {
		return true
	}
	return false
}
