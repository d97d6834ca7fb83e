// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

// SecureString is a string that hides its value in String()/JSON output.
// Used for SMTP passwords, webhook tokens, and similar secrets.
type SecureString string

func (s SecureString) String() string {
	if s == "" {
		return ""
	}
	return "(hidden)"
}

func (s SecureString) GoString() string {
	return "(hidden)"
}

// MarshalJSON masks the value in API responses.
func (s SecureString) MarshalJSON() ([]byte, error) {
	if s == "" {
		return []byte(`""`), nil
	}
	return []byte(`"(hidden)"`), nil
}

// UnmarshalText enables YAML/text decoding of the raw value.
func (s *SecureString) UnmarshalText(text []byte) error {
	*s = SecureString(string(text))
	return nil
}

// Config is the complete daemon configuration, grouped the way spec.md §6
// groups its recognized keys.
type Config struct {
	Detection     DetectionConfig     `yaml:"detection"`
	Network       NetworkConfig       `yaml:"network"`
	Prevention    PreventionConfig    `yaml:"prevention"`
	Advanced      AdvancedConfig      `yaml:"advanced"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Audit         AuditConfig         `yaml:"audit"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// DetectionConfig groups the "Detection" section keys.
type DetectionConfig struct {
	DetectionThreshold      float64           `yaml:"detection_threshold"`
	CheckInterval           float64           `yaml:"check_interval"`
	BatchSize               int               `yaml:"batch_size"`
	CombinationMethod       string            `yaml:"combination_method"`
	ModelWeights            []float64         `yaml:"model_weights"`
	AttackTypeMapping       map[string]string `yaml:"attack_type_mapping"`
	FalsePositiveThreshold  float64           `yaml:"false_positive_threshold"`
	Schema                  string            `yaml:"schema"` // cicddos | suricata

	// CICDDoSModelPath and SuricataModelPath point at JSON model artifacts
	// (internal/modelio) for the two fused model families. Either may be
	// empty to run with only the other model in the ensemble.
	CICDDoSModelPath  string `yaml:"cicddos_model_path"`
	SuricataModelPath string `yaml:"suricata_model_path"`
}

// NetworkConfig groups the "Network" section keys.
type NetworkConfig struct {
	Interface         string `yaml:"interface"`
	CaptureFilter     string `yaml:"capture_filter"`
	BufferSize        int    `yaml:"buffer_size"`
	MaxPacketsPerFlow int    `yaml:"max_packets_per_flow"`
	FlowIdleTimeout   int    `yaml:"flow_idle_timeout"`
}

// PreventionConfig groups the "Prevention" section keys.
type PreventionConfig struct {
	BlockDuration             int      `yaml:"block_duration"`
	Whitelist                 []string `yaml:"whitelist"`
	AutoBlock                 bool     `yaml:"auto_block"`
	AutoBlockAttackTypes      []string `yaml:"auto_block_attack_types"`
	BlockConfidenceThreshold  float64  `yaml:"block_confidence_threshold"`
	CooldownPeriod            int      `yaml:"cooldown_period"`
	FirewallChain             string   `yaml:"firewall_chain"`
	FirewallTable             string   `yaml:"firewall_table"`
	GeoIPDatabasePath         string   `yaml:"geoip_database_path"`
	CDNPrefixes               []string `yaml:"cdn_prefixes"`
	MaxBlockEscalation        int      `yaml:"max_block_escalation"`
}

// AdvancedConfig groups the "Advanced" section keys.
type AdvancedConfig struct {
	AsyncAnalysis         bool `yaml:"async_analysis"`
	MaxAnalysisThreads    int  `yaml:"max_analysis_threads"`
	MinPacketsForAnalysis int  `yaml:"min_packets_for_analysis"`
}

// NotificationsConfig configures the notification dispatcher.
type NotificationsConfig struct {
	Enabled  bool                 `yaml:"enabled"`
	Channels []NotificationChannel `yaml:"channels"`
}

// NotificationChannel configures a single notification transport.
type NotificationChannel struct {
	Name     string            `yaml:"name"`
	Type     string            `yaml:"type"` // webhook, slack, discord, ntfy, pushover, email
	Enabled  bool              `yaml:"enabled"`
	Level    string            `yaml:"level"`

	WebhookURL string            `yaml:"webhook_url"`
	Headers    map[string]string `yaml:"headers"`

	Server   string `yaml:"server"`
	Topic    string `yaml:"topic"`
	Username string `yaml:"username"`
	Password SecureString `yaml:"password"`

	APIToken string `yaml:"api_token"`
	UserKey  string `yaml:"user_key"`
	Sound    string `yaml:"sound"`
	Priority int    `yaml:"priority"`

	SMTPHost     string       `yaml:"smtp_host"`
	SMTPPort     int          `yaml:"smtp_port"`
	SMTPUser     string       `yaml:"smtp_user"`
	SMTPPassword SecureString `yaml:"smtp_password"`
	From         string       `yaml:"from"`
	To           []string     `yaml:"to"`
}

// AuditConfig configures the persisted attack/IP-summary logs.
type AuditConfig struct {
	AttackLogPath  string `yaml:"attack_log_path"`
	IPSummaryPath  string `yaml:"ip_summary_path"`
}

// LoggingConfig configures the daemon's logger.
type LoggingConfig struct {
	Level  string              `yaml:"level"`
	JSON   bool                `yaml:"json"`
	Syslog SyslogSectionConfig `yaml:"syslog"`
}

// SyslogSectionConfig mirrors logging.SyslogConfig for YAML decoding.
type SyslogSectionConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Protocol string `yaml:"protocol"`
	Tag      string `yaml:"tag"`
	Facility int    `yaml:"facility"`
}
