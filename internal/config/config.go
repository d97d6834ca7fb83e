// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package config loads and validates the daemon's YAML configuration
// document.
package config

// Default returns the daemon's out-of-the-box configuration. Every
// recognized key from spec.md §6 has a default, except the model artifact
// paths, which default to empty: the daemon refuses to start until at least
// one of detection.cicddos_model_path or detection.suricata_model_path is set.
func Default() *Config {
	return &Config{
		Detection: DetectionConfig{
			DetectionThreshold:     0.7,
			CheckInterval:          1.0,
			BatchSize:              50,
			CombinationMethod:      "max_confidence",
			ModelWeights:           nil,
			AttackTypeMapping:      map[string]string{},
			FalsePositiveThreshold: 0.85,
			Schema:                 "cicddos",
		},
		Network: NetworkConfig{
			Interface:         "eth0",
			CaptureFilter:     "ip",
			BufferSize:        4096,
			MaxPacketsPerFlow: 20,
			FlowIdleTimeout:   60,
		},
		Prevention: PreventionConfig{
			BlockDuration:            3600,
			Whitelist:                nil,
			AutoBlock:                true,
			AutoBlockAttackTypes:     nil,
			BlockConfidenceThreshold: 0.8,
			CooldownPeriod:           60,
			FirewallChain:            "DDOS_PROTECTION",
			FirewallTable:            "ddosd",
			CDNPrefixes:              defaultCDNPrefixes(),
			MaxBlockEscalation:       8,
		},
		Advanced: AdvancedConfig{
			AsyncAnalysis:         true,
			MaxAnalysisThreads:    4,
			MinPacketsForAnalysis: 5,
		},
		Notifications: NotificationsConfig{Enabled: false},
		Audit: AuditConfig{
			AttackLogPath: "/var/log/ddosd/attacks.csv",
			IPSummaryPath: "/var/log/ddosd/ip_summary.csv",
		},
		Logging: LoggingConfig{
			Level: "info",
			Syslog: SyslogSectionConfig{
				Enabled:  false,
				Port:     514,
				Protocol: "udp",
				Tag:      "ddosd",
			},
		},
	}
}

// defaultCDNPrefixes is the hard-coded list of stable announced /16-style
// prefixes for major CDN/streaming operators, per spec.md §4.7.
func defaultCDNPrefixes() []string {
	return []string{
		"74.125.",  // Google
		"172.217.", // Google
		"142.250.", // Google
		"8.8.",     // Google public DNS
		"45.57.",   // Netflix
		"198.38.",  // Netflix
		"157.240.", // Facebook/Meta
		"31.13.",   // Facebook/Meta
		"1.1.1.",   // Cloudflare public DNS
		"104.16.",  // Cloudflare
		"151.101.", // Fastly
	}
}
