// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package config provides configuration management for the mediator.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the mediator's single configuration document (spec §6).
type Config struct {
	Environment string `yaml:"environment" json:"environment"`

	Mediator MediatorIdentity `yaml:"mediator" json:"mediator"`
	Admins   []string         `yaml:"admins" json:"admins"`

	Store   StoreConfig   `yaml:"store" json:"store"`
	ACL     ACLConfig     `yaml:"acl" json:"acl"`
	Limits  LimitsConfig  `yaml:"limits" json:"limits"`
	Sweeper SweeperConfig `yaml:"sweeper" json:"sweeper"`

	Logging LoggingConfig `yaml:"logging" json:"logging"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	ListenAddr string     `yaml:"listen_addr" json:"listen_addr"`
	TLS        *TLSConfig `yaml:"tls,omitempty" json:"tls,omitempty"`
}

// MediatorIdentity carries the mediator's own DID and where its
// signing/encryption secrets live (spec §6: "mediator DID + secrets file").
type MediatorIdentity struct {
	DID         string `yaml:"did" json:"did"`
	SecretsFile string `yaml:"secrets_file" json:"secrets_file"`
}

// StoreConfig selects and configures the C4 Store backend.
type StoreConfig struct {
	Backend     string        `yaml:"backend" json:"backend"` // "memory" | "postgres"
	DSN         string        `yaml:"dsn" json:"dsn"`
	PoolSize    int           `yaml:"pool_size" json:"pool_size"`
	RPCTimeout  time.Duration `yaml:"rpc_timeout" json:"rpc_timeout"`
}

// ACLConfig carries the process-wide ACL mode and default ruleset (spec §4.2).
type ACLConfig struct {
	Mode       string `yaml:"mode" json:"mode"` // "explicit_allow" | "explicit_deny"
	DefaultSet string `yaml:"default_set" json:"default_set"`
}

// LimitsConfig carries the backpressure limits from spec §5/§7.
type LimitsConfig struct {
	ListedMessages  int           `yaml:"listed_messages" json:"listed_messages"`
	DeletedMessages int           `yaml:"deleted_messages" json:"deleted_messages"`
	OOBInviteTTL    time.Duration `yaml:"oob_invite_ttl" json:"oob_invite_ttl"`
	InboxQuota      int           `yaml:"inbox_quota" json:"inbox_quota"`
}

// SweeperConfig configures the C9 expiry sweeper.
type SweeperConfig struct {
	Enabled  bool          `yaml:"enabled" json:"enabled"`
	Interval time.Duration `yaml:"interval" json:"interval"`
}

// LoggingConfig configures the ambient structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output" json:"output"`
}

// MetricsConfig configures the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
	Path    string `yaml:"path" json:"path"`
}

// TLSConfig optionally terminates TLS at the mediator itself; spec's
// Non-goals delegate transport security to the host runtime by default,
// so this is nil unless explicitly configured.
type TLSConfig struct {
	CertFile string `yaml:"cert_file" json:"cert_file"`
	KeyFile  string `yaml:"key_file" json:"key_file"`
}

// LoadFromFile reads cfg from path, trying YAML then JSON, and fills in defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return nil, fmt.Errorf("failed to parse config file (tried YAML and JSON): %w", err)
		}
	}

	setDefaults(cfg)
	return cfg, nil
}

// SaveToFile writes cfg to path, choosing format by file extension.
func SaveToFile(cfg *Config, path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".json") {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func setDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "memory"
	}
	if cfg.Store.PoolSize == 0 {
		cfg.Store.PoolSize = 10
	}
	if cfg.Store.RPCTimeout == 0 {
		cfg.Store.RPCTimeout = 5 * time.Second
	}
	if cfg.ACL.Mode == "" {
		cfg.ACL.Mode = "explicit_deny"
	}
	if cfg.Limits.ListedMessages == 0 {
		cfg.Limits.ListedMessages = 100
	}
	if cfg.Limits.DeletedMessages == 0 {
		cfg.Limits.DeletedMessages = 100
	}
	if cfg.Limits.OOBInviteTTL == 0 {
		cfg.Limits.OOBInviteTTL = 24 * time.Hour
	}
	if cfg.Limits.InboxQuota == 0 {
		cfg.Limits.InboxQuota = 1000
	}
	if cfg.Sweeper.Interval == 0 {
		cfg.Sweeper.Interval = time.Second
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9090"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
}
