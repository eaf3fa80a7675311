// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the aggregator's layered configuration: compiled-in
// defaults, an optional .env file, an optional YAML file, environment
// variables, and CLI flags, each layer deep-merging over the last.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	flag "github.com/spf13/pflag"
)

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	DrainTimeout    time.Duration `koanf:"drain_timeout"`
}

// LoggingConfig controls internal/logging.New.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// KVStoreConfig selects and configures C1's backend.
type KVStoreConfig struct {
	Backend   string `koanf:"backend"`    // "mock", "bunt", or "redis"
	BuntPath  string `koanf:"bunt_path"`  // used when backend == "bunt"
	RedisAddr string `koanf:"redis_addr"` // used when backend == "redis"
}

// RateLimitConfig seeds C2's per-domain AIMD bucket defaults.
type RateLimitConfig struct {
	InitialRate float64       `koanf:"initial_rate"`
	MinRate     float64       `koanf:"min_rate"`
	MaxRate     float64       `koanf:"max_rate"`
	IdleEvict   time.Duration `koanf:"idle_evict"`
	SweepEvery  time.Duration `koanf:"sweep_every"`
}

// ConcurrencyConfig controls C3's pool sizing. When Autotune is true
// (the default), FastHTTPSlots/HeadlessSlots are computed at startup by
// internal/autotune instead of read from here.
type ConcurrencyConfig struct {
	Autotune      bool `koanf:"autotune"`
	FastHTTPSlots int  `koanf:"fast_http_slots"`
	HeadlessSlots int  `koanf:"headless_slots"`
}

// RegistryConfig controls C5 plugin discovery.
type RegistryConfig struct {
	PluginDir string `koanf:"plugin_dir"`
}

// HostersConfig points at C8's per-hoster XFS resolver manifest.
type HostersConfig struct {
	ConfigPath string `koanf:"config_path"`
}

// ProberConfig controls C7's background health scheduler.
type ProberConfig struct {
	Interval time.Duration `koanf:"interval"`
	Jitter   time.Duration `koanf:"jitter"`
}

// IndexerConfig controls C9's cache and URL-validation behavior.
type IndexerConfig struct {
	CacheTTL         time.Duration `koanf:"cache_ttl"`
	MaxValidateInFly int           `koanf:"max_validate_in_flight"`
	DefaultLimit     int           `koanf:"default_limit"`
}

// StreamConfig controls C10's plugin timeout and resolve fan-out sizing.
type StreamConfig struct {
	PluginTimeout          time.Duration `koanf:"plugin_timeout"`
	ResolveTargetCount     int           `koanf:"resolve_target_count"`
	MaxProbeCount          int           `koanf:"max_probe_count"`
	ScoringEnabled         bool          `koanf:"scoring_enabled"`
	ExplorationProbability float64       `koanf:"exploration_probability"`
}

// MetricsConfig controls Prometheus exposition.
type MetricsConfig struct {
	Addr string `koanf:"addr"` // empty disables the metrics listener
}

// Config is the aggregator's full typed configuration tree.
type Config struct {
	Environment string            `koanf:"environment"` // "prod", "dev", or "test"
	Server      ServerConfig      `koanf:"server"`
	Logging     LoggingConfig     `koanf:"logging"`
	KVStore     KVStoreConfig     `koanf:"kvstore"`
	RateLimit   RateLimitConfig   `koanf:"ratelimit"`
	Concurrency ConcurrencyConfig `koanf:"concurrency"`
	Registry    RegistryConfig    `koanf:"registry"`
	Hosters     HostersConfig     `koanf:"hosters"`
	Prober      ProberConfig      `koanf:"prober"`
	Indexer     IndexerConfig     `koanf:"indexer"`
	Stream      StreamConfig      `koanf:"stream"`
	Metrics     MetricsConfig     `koanf:"metrics"`
}

// IsProd reports whether error responses should degrade to empty
// feeds/200s (spec §7) rather than surfacing status codes and detail.
func (c Config) IsProd() bool {
	return c.Environment == "" || c.Environment == "prod"
}

func defaults() Config {
	return Config{
		Environment: "prod",
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 5 * time.Second,
			DrainTimeout:    10 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		KVStore: KVStoreConfig{Backend: "bunt", BuntPath: "./data/aggregator.db"},
		RateLimit: RateLimitConfig{
			InitialRate: 5,
			MinRate:     0.5,
			MaxRate:     50,
			IdleEvict:   10 * time.Minute,
			SweepEvery:  time.Minute,
		},
		Concurrency: ConcurrencyConfig{Autotune: true},
		Registry:    RegistryConfig{PluginDir: "./plugins"},
		Hosters:     HostersConfig{ConfigPath: "./hosters.yaml"},
		Prober:      ProberConfig{Interval: 15 * time.Minute, Jitter: 2 * time.Minute},
		Indexer: IndexerConfig{
			CacheTTL:         20 * time.Minute,
			MaxValidateInFly: 8,
			DefaultLimit:     100,
		},
		Stream: StreamConfig{
			PluginTimeout:          15 * time.Second,
			ResolveTargetCount:     15,
			MaxProbeCount:          30,
			ScoringEnabled:         true,
			ExplorationProbability: 0.15,
		},
		Metrics: MetricsConfig{Addr: ""},
	}
}

// Options bundles the inputs that vary per process invocation: the CLI
// flag set (already parsed) and an explicit config file path override.
type Options struct {
	Flags      *flag.FlagSet
	ConfigPath string // overrides MERIDIAN_CONFIG / ./config.yaml when non-empty
}

// Load builds the layered Config: struct defaults, optional .env, optional
// YAML file, MERIDIAN_-prefixed environment variables, then CLI flags —
// each layer deep-merging over the previous one by section.
func Load(opts Options) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if _, err := os.Stat(".env"); err == nil {
		if err := k.Load(file.Provider(".env"), dotenv.Parser()); err != nil {
			return nil, fmt.Errorf("config: load .env: %w", err)
		}
	}

	yamlPath := opts.ConfigPath
	if yamlPath == "" {
		yamlPath = os.Getenv("MERIDIAN_CONFIG")
	}
	if yamlPath == "" {
		yamlPath = "./config.yaml"
	}
	if _, err := os.Stat(yamlPath); err == nil {
		if err := k.Load(file.Provider(yamlPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", yamlPath, err)
		}
	}

	envProvider := env.ProviderWithValue("MERIDIAN_", ".", func(key, value string) (string, interface{}) {
		path := envKeyToPath(key)
		return path, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}

	if opts.Flags != nil {
		if err := k.Load(posflag.Provider(opts.Flags, ".", k), nil); err != nil {
			return nil, fmt.Errorf("config: load flags: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf", FlatPaths: false}); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := validate(k, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
