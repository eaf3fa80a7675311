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

// Package main is the aggregator's composition root: it loads
// configuration, builds every component C1 through C11, wires them
// together through internal/lifecycle, and serves the internal/httpapi
// surface until an OS signal asks it to stop. It generalizes
// cmd/ratelimiter-api/main.go's flag-parse/construct/start/serve/
// signal-wait/stop/shutdown shape from three components to eleven.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/meridian-idx/aggregator/internal/autotune"
	"github.com/meridian-idx/aggregator/internal/breaker"
	"github.com/meridian-idx/aggregator/internal/concurrency"
	"github.com/meridian-idx/aggregator/internal/config"
	"github.com/meridian-idx/aggregator/internal/httpapi"
	"github.com/meridian-idx/aggregator/internal/indexer"
	"github.com/meridian-idx/aggregator/internal/kvstore"
	"github.com/meridian-idx/aggregator/internal/lifecycle"
	"github.com/meridian-idx/aggregator/internal/logging"
	"github.com/meridian-idx/aggregator/internal/metrics"
	"github.com/meridian-idx/aggregator/internal/prober"
	"github.com/meridian-idx/aggregator/internal/ratelimit"
	"github.com/meridian-idx/aggregator/internal/registry"
	"github.com/meridian-idx/aggregator/internal/resolver"
	"github.com/meridian-idx/aggregator/internal/scoring"
	"github.com/meridian-idx/aggregator/internal/stream"
)

// defineFlags registers the subset of config.Config's dotted koanf paths
// an operator is most likely to override from the command line; anything
// else is reachable via config.yaml or MERIDIAN_ environment variables.
func defineFlags() *flag.FlagSet {
	fs := flag.NewFlagSet("aggregator", flag.ExitOnError)
	fs.String("environment", "", "prod, dev, or test")
	fs.String("server.addr", "", "HTTP listen address")
	fs.String("logging.level", "", "log level (debug, info, warn, error)")
	fs.String("logging.format", "", "log format (json or console)")
	fs.String("kvstore.backend", "", "mock, bunt, or redis")
	fs.String("kvstore.bunt_path", "", "buntdb file path")
	fs.String("kvstore.redis_addr", "", "redis address")
	fs.String("registry.plugin_dir", "", "plugin manifest root directory")
	fs.String("hosters.config_path", "", "hoster resolver manifest YAML path")
	fs.String("metrics.addr", "", "Prometheus listen address, empty disables it")
	fs.String("config", "", "path to config.yaml")
	return fs
}

func main() {
	fs := defineFlags()
	_ = fs.Parse(os.Args[1:])
	configPath, _ := fs.GetString("config")

	cfg, err := config.Load(config.Options{Flags: fs, ConfigPath: configPath})
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	app := lifecycle.New(log, cfg.Server.DrainTimeout)

	// C1: KV store.
	kv, err := buildKVStore(cfg.KVStore)
	if err != nil {
		log.Fatal().Err(err).Msg("build kv store")
	}

	// C2: per-domain AIMD rate limiting, wrapping the outbound transport
	// every other component's *http.Client shares.
	rlRegistry := ratelimit.NewRegistry(ratelimit.BucketConfig{
		InitialRate: cfg.RateLimit.InitialRate,
		MinRate:     cfg.RateLimit.MinRate,
		MaxRate:     cfg.RateLimit.MaxRate,
	})
	sweeper := ratelimit.NewSweeper(rlRegistry, cfg.RateLimit.IdleEvict, cfg.RateLimit.SweepEvery, logging.Component(log, "ratelimit"))
	httpClient := &http.Client{Transport: ratelimit.NewTransport(http.DefaultTransport, rlRegistry)}
	app.Register("ratelimit-sweeper",
		func(ctx context.Context) error { sweeper.Start(); return nil },
		func(ctx context.Context) error { sweeper.Stop(); return nil },
	)

	// C3: fair-share concurrency pool, sized by autotune unless pinned.
	slots := autotune.Compute(autotune.Detect())
	fastHTTPSlots, headlessSlots := slots.FastHTTP, slots.Headless
	if !cfg.Concurrency.Autotune {
		fastHTTPSlots, headlessSlots = cfg.Concurrency.FastHTTPSlots, cfg.Concurrency.HeadlessSlots
	}
	pool := concurrency.NewPool(fastHTTPSlots, headlessSlots)

	// C4: per-plugin circuit breakers, created lazily by name.
	breakers := breaker.NewRegistry()

	// C5: plugin registry, populated by a directory walk over plugin.yaml
	// manifests. Loading the concrete plugin code (NewPlugin() inside each
	// plugin's shared object) is deferred to first use.
	descriptors, err := registry.Discover(cfg.Registry.PluginDir)
	if err != nil {
		log.Fatal().Err(err).Msg("discover plugins")
	}
	reg := registry.New(descriptors, registry.SharedObjectLoader())
	log.Info().Int("count", len(descriptors)).Msg("discovered plugins")

	// C6 + C7: EWMA plugin scoring store, fed by the background prober.
	scores := scoring.NewStore(kv)

	// C8: hoster resolver registry, seeded from the configured hoster
	// manifest (if any).
	resolverClient := &http.Client{Transport: ratelimit.NewTransport(http.DefaultTransport, rlRegistry)}
	resolverReg := resolver.NewRegistry(resolverClient)
	hosterEntries, err := resolver.LoadHosterConfigs(cfg.Hosters.ConfigPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load hoster config")
	}
	resolver.RegisterHosters(resolverReg, resolverClient, hosterEntries, logging.Component(log, "resolver"))
	app.Register("resolver-registry",
		func(ctx context.Context) error { resolverReg.Start(); return nil },
		func(ctx context.Context) error { resolverReg.Stop(); return nil },
	)

	probeScheduler := prober.NewScheduler(reg, scores, httpClient, resolverReg.Supported, nil, logging.Component(log, "prober"))
	app.Register("prober-scheduler",
		func(ctx context.Context) error { probeScheduler.Start(); return nil },
		func(ctx context.Context) error { probeScheduler.Stop(); return nil },
	)

	// C9: indexer/Torznab orchestrator.
	validator := indexer.NewURLValidator(httpClient, cfg.Indexer.MaxValidateInFly)
	idx := indexer.NewOrchestrator(reg, pool, breakers, kv, validator)

	// C10: stream/Stremio orchestrator. Title lookups default to a static,
	// empty table — wiring a real catalog (TMDB/IMDb) client is out of
	// this module's scope per its external-collaborators boundary, but
	// the caching decorator around it is exercised regardless.
	titles := stream.NewCachingResolver(stream.StaticTitleResolver{}, 24*time.Hour)
	strm := stream.NewOrchestrator(titles, reg, pool, breakers, resolverReg, scores, nil)

	if cfg.Metrics.Addr != "" {
		metricsServer := &http.Server{Addr: cfg.Metrics.Addr, Handler: metrics.Handler()}
		app.Register("metrics-listener",
			func(ctx context.Context) error {
				go func() {
					if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						log.Error().Err(err).Msg("metrics listener failed")
					}
				}()
				return nil
			},
			func(ctx context.Context) error { return metricsServer.Shutdown(ctx) },
		)
	}

	srv := httpapi.NewServer(app, idx, strm, reg, breakers, pool, scores, kv, cfg.IsProd(), log)
	srv.HTTPClient = httpClient

	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	httpServer := &http.Server{Addr: cfg.Server.Addr, Handler: mux}

	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("start components")
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("aggregator listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info().Msg("shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := app.Stop(stopCtx); err != nil {
		log.Error().Err(err).Msg("component shutdown reported errors")
	}
	if err := httpServer.Shutdown(stopCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown failed")
	}
	log.Info().Msg("stopped")
}

// buildKVStore selects C1's backend per cfg.Backend.
func buildKVStore(cfg config.KVStoreConfig) (kvstore.Store, error) {
	switch cfg.Backend {
	case "redis":
		return kvstore.NewRedis(cfg.RedisAddr), nil
	case "mock":
		return kvstore.NewMock(), nil
	default:
		return kvstore.NewBunt(cfg.BuntPath)
	}
}
