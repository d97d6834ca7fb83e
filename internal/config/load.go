// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"os"

	"gopkg.in/yaml.v3"

	ddosderrors "ddosd/internal/errors"
)

// Load reads and decodes a YAML config file at path, layering it over
// Default() so every unspecified key keeps its default value.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ddosderrors.Wrapf(err, ddosderrors.KindUnavailable, "config: read %s", path)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, ddosderrors.Wrapf(err, ddosderrors.KindValidation, "config: parse %s", path)
	}

	if errs := Validate(cfg); len(errs) > 0 {
		return nil, ddosderrors.Attr(
			ddosderrors.Wrapf(errs[0], ddosderrors.KindValidation, "config: invalid"),
			"all_errors", errs,
		)
	}

	return cfg, nil
}

// Clone returns a deep-enough copy of cfg suitable for a hot-reload
// comparison (slices/maps are copied; nested structs are value types).
func Clone(cfg *Config) *Config {
	if cfg == nil {
		return nil
	}
	c := *cfg
	c.Detection.ModelWeights = append([]float64(nil), cfg.Detection.ModelWeights...)
	c.Detection.AttackTypeMapping = cloneStringMap(cfg.Detection.AttackTypeMapping)
	c.Prevention.Whitelist = append([]string(nil), cfg.Prevention.Whitelist...)
	c.Prevention.AutoBlockAttackTypes = append([]string(nil), cfg.Prevention.AutoBlockAttackTypes...)
	c.Prevention.CDNPrefixes = append([]string(nil), cfg.Prevention.CDNPrefixes...)
	c.Notifications.Channels = append([]NotificationChannel(nil), cfg.Notifications.Channels...)
	return &c
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
