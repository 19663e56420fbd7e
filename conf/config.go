// Package conf loads the conductor's configuration file (spec §6): a small
// TOML document with the invoker listen address and the problem-data root.
package conf

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config is the top-level shape of conductor.toml.
type Config struct {
	Listen ListenConfig `toml:"listen"`
	Data   DataConfig   `toml:"data"`
	Relay  RelayConfig  `toml:"relay"`
}

// ListenConfig holds the invoker-facing bind address.
type ListenConfig struct {
	// Invokers is the address the websocket server binds for invoker
	// connections (e.g. "0.0.0.0:9000").
	Invokers string `toml:"invokers"`
}

// DataConfig holds filesystem roots.
type DataConfig struct {
	// Problems is the filesystem path under which problem packages are
	// found. Published revisions are held in memory, not stored here.
	Problems string `toml:"problems"`
}

// RelayConfig configures the optional submission-completion notification
// sink. Absent or empty Type disables relay entirely (relay.NoopSink).
type RelayConfig struct {
	Type    string            `toml:"type"` // "", "webhook", "redis"
	URL     string            `toml:"url"`
	Channel string            `toml:"channel,omitempty"`
	Headers map[string]string `toml:"headers,omitempty"`
}

// DefaultListenAddr is used when listen.invokers is left empty.
const DefaultListenAddr = "0.0.0.0:9000"

// Load reads and parses a TOML configuration file at path, applying
// defaults for fields left unset.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("conf: failed to load %s: %w", path, err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Listen.Invokers == "" {
		cfg.Listen.Invokers = DefaultListenAddr
	}
}
