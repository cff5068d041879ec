package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	configDirName  = ".scout"
	configFileName = "config.yaml"
	defaultProfile = "default"
)

// Profile holds the per-environment connection settings. Every field is
// optional; unset fields fall back to environment variables and built-in
// defaults at resolution time.
type Profile struct {
	Host      string `yaml:"host,omitempty"`
	Token     string `yaml:"token,omitempty"`
	ClientKey string `yaml:"client-key,omitempty"`
	Output    string `yaml:"output,omitempty"`
}

// UserConfig is the on-disk shape of ~/.scout/config.yaml.
type UserConfig struct {
	CurrentProfile string              `yaml:"current-profile,omitempty"`
	Profiles       map[string]*Profile `yaml:"profiles,omitempty"`
}

func configFilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, configDirName, configFileName), nil
}

// loadUserConfig reads the config file, returning an empty config when the
// file does not exist yet.
func loadUserConfig() (*UserConfig, error) {
	cfg := &UserConfig{
		CurrentProfile: defaultProfile,
		Profiles:       map[string]*Profile{},
	}

	path, err := configFilePath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.CurrentProfile == "" {
		cfg.CurrentProfile = defaultProfile
	}
	if cfg.Profiles == nil {
		cfg.Profiles = map[string]*Profile{}
	}
	return cfg, nil
}

// saveUserConfig writes the config file with owner-only permissions, since
// profiles carry bearer tokens.
func saveUserConfig(cfg *UserConfig) error {
	path, err := configFilePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// profile returns the named profile, creating an empty one if absent.
func (c *UserConfig) profile(name string) *Profile {
	if c.Profiles == nil {
		c.Profiles = map[string]*Profile{}
	}
	p := c.Profiles[name]
	if p == nil {
		p = &Profile{}
		c.Profiles[name] = p
	}
	return p
}
