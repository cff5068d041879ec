package apilint

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the per-repo override file the CLI looks for next to
// the spec and in its parent directories.
const ConfigFileName = ".apilint.yaml"

// Config holds per-rule severity overrides.
type Config struct {
	Rules map[string]string `yaml:"rules"` // rule id -> "off", "error", "warning" or "info"
}

// LoadConfig reads and validates an override file. Unknown severities are
// rejected here so a typo turns into a CLI error instead of a silently
// ignored rule.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from a CLI flag or FindConfig
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	for id, override := range cfg.Rules {
		if override == "off" {
			continue
		}
		if _, err := ParseSeverity(override); err != nil {
			return nil, fmt.Errorf("config %s: rule %q: %w", path, id, err)
		}
	}
	return &cfg, nil
}

// FindConfig walks from startDir up to the filesystem root looking for a
// ConfigFileName. It returns "" when none exists.
func FindConfig(startDir string) string {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		} else if !errors.Is(err, os.ErrNotExist) {
			return ""
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// effectiveSeverity returns the severity a rule runs at under cfg, or ""
// when the rule is turned off.
func effectiveSeverity(cfg *Config, r Rule) Severity {
	if cfg != nil && cfg.Rules != nil {
		if override, ok := cfg.Rules[r.ID()]; ok {
			if override == "off" {
				return ""
			}
			return Severity(override)
		}
	}
	return r.DefaultSeverity()
}
