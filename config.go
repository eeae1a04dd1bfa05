package policy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the deployment-time configuration for the engine and its memory
// stores: which components are switched on, who holds what, and how results
// are cached. Production deployments back permissions with SQL or Redis and
// leave Grants empty.
type Config struct {
	AdminPermission string `json:"admin_permission" yaml:"admin_permission"`
	CacheTTLMillis  int64  `json:"cache_ttl_ms" yaml:"cache_ttl_ms"`

	// Components maps component IDs to their enabled state.
	Components map[string]bool `json:"components" yaml:"components"`

	Grants []PermissionGrant `json:"grants" yaml:"grants"`
	Links  []UserLink        `json:"links" yaml:"links"`

	Ristretto RistrettoConfig `json:"ristretto" yaml:"ristretto"`
}

// PermissionGrant assigns one permission key (wildcards allowed, e.g.
// "workers.*") to a user.
type PermissionGrant struct {
	UserID     string `json:"user_id" yaml:"user_id"`
	Permission string `json:"permission" yaml:"permission"`
}

// UserLink ties a user account to its contact and/or worker records.
type UserLink struct {
	UserID    string `json:"user_id" yaml:"user_id"`
	ContactID string `json:"contact_id,omitempty" yaml:"contact_id,omitempty"`
	WorkerID  string `json:"worker_id,omitempty" yaml:"worker_id,omitempty"`
}

// RistrettoConfig sizes the optional shared result cache; all-zero means the
// default mutex-map cache is used.
type RistrettoConfig struct {
	NumCounters int64 `json:"num_counters" yaml:"num_counters"`
	MaxCost     int64 `json:"max_cost" yaml:"max_cost"`
	BufferItems int64 `json:"buffer_items" yaml:"buffer_items"`
}

// Options translates the configuration into engine options.
func (c *Config) Options() []EngineOption {
	opts := make([]EngineOption, 0, 3)
	if c.AdminPermission != "" {
		opts = append(opts, WithAdminPermission(c.AdminPermission))
	}
	if c.CacheTTLMillis != 0 {
		opts = append(opts, WithCacheTTL(time.Duration(c.CacheTTLMillis)*time.Millisecond))
	}
	if c.Ristretto.NumCounters > 0 {
		opts = append(opts, WithRistrettoCache(c.Ristretto.NumCounters, c.Ristretto.MaxCost, c.Ristretto.BufferItems))
	}
	return opts
}

// ConfigLoader reads configuration from YAML or JSON.
type ConfigLoader struct{}

func NewConfigLoader() *ConfigLoader { return &ConfigLoader{} }

func (l *ConfigLoader) LoadYAML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *ConfigLoader) LoadJSON(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile dispatches on extension.
func (l *ConfigLoader) LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return l.LoadYAML(data)
	case ".json":
		return l.LoadJSON(data)
	}
	return nil, fmt.Errorf("unsupported config format: %s", path)
}

// ToYAML exports the configuration.
func (c *Config) ToYAML() ([]byte, error) { return yaml.Marshal(c) }

// ToJSON exports the configuration.
func (c *Config) ToJSON() ([]byte, error) { return json.MarshalIndent(c, "", "  ") }
