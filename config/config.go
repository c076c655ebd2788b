// Copyright (c) 2025 The Helios developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package config loads and validates the node configuration file.
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/helios-stake/helios/helios"
)

// Duration decodes from strings like "12h" or "90s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return errors.Wrapf(err, "duration %q", raw)
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the wrapped value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Policy names accepted in vault configs.
const (
	PolicyPublic    = "public"
	PolicyWhitelist = "whitelist"
	PolicyBlocklist = "blocklist"
)

// Config is the top-level node configuration.
type Config struct {
	DataDir string       `yaml:"dataDir"`
	CacheMB int          `yaml:"cacheMB"`
	API     API          `yaml:"api"`
	Oracles Oracles      `yaml:"oracles"`
	Vaults  []VaultEntry `yaml:"vaults"`
}

// API configures the HTTP API server.
type API struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"corsOrigins"`
	Timeout     Duration `yaml:"timeout"`
	Metrics     bool     `yaml:"metrics"`
}

// Oracles configures the rewards oracle set.
type Oracles struct {
	Members   []string `yaml:"members"`
	Threshold int      `yaml:"threshold"`
}

// Addresses parses the configured member addresses.
func (o *Oracles) Addresses() ([]helios.Address, error) {
	addrs := make([]helios.Address, 0, len(o.Members))
	for _, member := range o.Members {
		addr, err := helios.ParseAddress(member)
		if err != nil {
			return nil, errors.Wrapf(err, "oracle %q", member)
		}
		addrs = append(addrs, *addr)
	}
	return addrs, nil
}

// VaultEntry configures one hosted vault.
type VaultEntry struct {
	Address        string   `yaml:"address"`
	DepositAddress string   `yaml:"depositAddress"`
	Policy         string   `yaml:"policy"`
	Token          string   `yaml:"token"`
	ClaimDelay     Duration `yaml:"claimDelay"`
}

// Default returns a config with sane defaults.
func Default() *Config {
	return &Config{
		DataDir: ".helios",
		CacheMB: 512,
		API: API{
			Addr:    "localhost:8669",
			Timeout: Duration(10 * time.Second),
			Metrics: true,
		},
	}
}

// Load reads and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes and validates config bytes.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the config for consistency.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("dataDir required")
	}
	if len(c.Oracles.Members) == 0 {
		return errors.New("at least one oracle required")
	}
	if len(c.Oracles.Members) > helios.MaxOracles {
		return errors.Errorf("at most %d oracles allowed", helios.MaxOracles)
	}
	if c.Oracles.Threshold < 1 || c.Oracles.Threshold > len(c.Oracles.Members) {
		return errors.New("oracle threshold out of range")
	}
	if _, err := c.Oracles.Addresses(); err != nil {
		return err
	}
	if len(c.Vaults) == 0 {
		return errors.New("at least one vault required")
	}
	seen := make(map[string]bool, len(c.Vaults))
	for i := range c.Vaults {
		entry := &c.Vaults[i]
		if _, err := helios.ParseAddress(entry.Address); err != nil {
			return errors.Wrapf(err, "vault %d address", i)
		}
		if seen[entry.Address] {
			return errors.Errorf("duplicate vault address %s", entry.Address)
		}
		seen[entry.Address] = true
		if _, err := helios.ParseAddress(entry.DepositAddress); err != nil {
			return errors.Wrapf(err, "vault %d depositAddress", i)
		}
		switch entry.Policy {
		case "", PolicyPublic, PolicyWhitelist, PolicyBlocklist:
		default:
			return errors.Errorf("vault %d: unknown policy %q", i, entry.Policy)
		}
		if entry.Token != "" {
			if _, err := helios.ParseAddress(entry.Token); err != nil {
				return errors.Wrapf(err, "vault %d token", i)
			}
		}
		if entry.ClaimDelay < 0 {
			return errors.Errorf("vault %d: negative claimDelay", i)
		}
	}
	return nil
}
