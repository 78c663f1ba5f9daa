// Package config loads station configuration from YAML with environment
// overrides. The passphrase protecting private keys is deliberately not a
// file setting; it only ever arrives via environment or prompt.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	envDataDir         = "MEDIRELAY_DATA_DIR"
	envReplayWindow    = "MEDIRELAY_REPLAY_WINDOW"
	envFutureSkew      = "MEDIRELAY_FUTURE_SKEW"
	envPruneMultiplier = "MEDIRELAY_PRUNE_MULTIPLIER"

	// EnvPassphrase names the variable carrying the key passphrase.
	EnvPassphrase = "MEDIRELAY_KEY_PASSPHRASE"
)

type Config struct {
	Station  StationConfig  `yaml:"station"`
	Exchange ExchangeConfig `yaml:"exchange"`
}

type StationConfig struct {
	DataDir string `yaml:"dataDir"`
}

type ExchangeConfig struct {
	// ReplayWindow is how far in the past an envelope timestamp may lie.
	ReplayWindow time.Duration `yaml:"replayWindow"`
	// FutureSkew is the tolerated clock drift into the future.
	FutureSkew time.Duration `yaml:"futureSkew"`
	// PruneMultiplier times ReplayWindow is the ledger retention period.
	PruneMultiplier int `yaml:"pruneMultiplier"`
}

func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Config{
		Station: StationConfig{
			DataDir: filepath.Join(home, ".medirelay"),
		},
		Exchange: ExchangeConfig{
			ReplayWindow:    7 * 24 * time.Hour,
			FutureSkew:      time.Hour,
			PruneMultiplier: 4,
		},
	}
}

// Load reads configPath when given, otherwise tries the default locations,
// and applies environment overrides last. A missing file is not an error;
// a present but unparsable file is.
func Load(configPath string) (Config, error) {
	cfg := Default()

	candidates := make([]string, 0, 2)
	if configPath != "" {
		candidates = append(candidates, configPath)
	} else {
		candidates = append(candidates,
			filepath.Join(cfg.Station.DataDir, "config.yaml"),
			"config.yaml",
		)
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			if configPath != "" {
				return Config{}, err
			}
			continue
		}
		var parsed Config
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
		merge(&cfg, parsed)
		break
	}

	applyEnvOverrides(&cfg)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func merge(dst *Config, src Config) {
	if src.Station.DataDir != "" {
		dst.Station.DataDir = src.Station.DataDir
	}
	if src.Exchange.ReplayWindow > 0 {
		dst.Exchange.ReplayWindow = src.Exchange.ReplayWindow
	}
	if src.Exchange.FutureSkew > 0 {
		dst.Exchange.FutureSkew = src.Exchange.FutureSkew
	}
	if src.Exchange.PruneMultiplier > 0 {
		dst.Exchange.PruneMultiplier = src.Exchange.PruneMultiplier
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(envDataDir); v != "" {
		cfg.Station.DataDir = v
	}
	if v := os.Getenv(envReplayWindow); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Exchange.ReplayWindow = d
		}
	}
	if v := os.Getenv(envFutureSkew); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Exchange.FutureSkew = d
		}
	}
	if v := os.Getenv(envPruneMultiplier); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Exchange.PruneMultiplier = n
		}
	}
}

func (c Config) validate() error {
	if c.Station.DataDir == "" {
		return fmt.Errorf("station.dataDir must not be empty")
	}
	if c.Exchange.ReplayWindow <= 0 {
		return fmt.Errorf("exchange.replayWindow must be positive")
	}
	if c.Exchange.PruneMultiplier < 1 {
		return fmt.Errorf("exchange.pruneMultiplier must be at least 1")
	}
	return nil
}

// LedgerDir is where the replay ledger lives inside the data directory.
func (c Config) LedgerDir() string {
	return filepath.Join(c.Station.DataDir, "ledger")
}

// RetentionCutoff is the point before which ledger records may be pruned.
func (c Config) RetentionCutoff(now time.Time) time.Time {
	return now.Add(-time.Duration(c.Exchange.PruneMultiplier) * c.Exchange.ReplayWindow)
}
