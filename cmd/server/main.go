/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/carverauto/beacon/pkg/config"
	"github.com/carverauto/beacon/pkg/db"
	"github.com/carverauto/beacon/pkg/dnssync"
	"github.com/carverauto/beacon/pkg/iptracker"
	"github.com/carverauto/beacon/pkg/logger"
	"github.com/carverauto/beacon/pkg/models"
	"github.com/carverauto/beacon/pkg/monitor"
	"github.com/carverauto/beacon/pkg/registration"
	"github.com/carverauto/beacon/pkg/response"
	"github.com/carverauto/beacon/pkg/server"
)

const shutdownGrace = 30 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/beacon/server.json", "Path to server config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cfg models.ServerConfig

	cfgLoader := config.NewConfig(nil)
	if err := cfgLoader.LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logConfig := cfg.Logging
	if logConfig == nil {
		logConfig = &logger.Config{
			Level:  "info",
			Output: "stdout",
		}
	}

	mainLogger, err := logger.NewComponent("beacon", logConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	store, err := newStore(ctx, &cfg, mainLogger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	syncer, err := newSyncer(ctx, &cfg, mainLogger)
	if err != nil {
		return err
	}
	defer func() { _ = syncer.Close() }()

	tracker := iptracker.NewTracker(cfg.Tracker, store, mainLogger)
	manager := registration.NewManager(store, syncer, tracker, mainLogger)
	builder := response.NewBuilder(cfg.Response, mainLogger)
	engine := monitor.NewEngine(cfg.Heartbeat, manager, mainLogger)
	srv := server.NewServer(cfg.ListenAddr, cfg.Limits, manager, builder, mainLogger)

	errCh := make(chan error, 2)

	go func() {
		if err := engine.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("heartbeat engine: %w", err)
			return
		}

		errCh <- nil
	}()

	go func() {
		if err := srv.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("connection server: %w", err)
			return
		}

		errCh <- nil
	}()

	var runErr error

	select {
	case <-ctx.Done():
		mainLogger.Info().Msg("Shutdown signal received")
	case runErr = <-errCh:
	}

	// Stop the listener first so no new work arrives, then the sweep loops,
	// then let the deferred closes tear down storage and NATS.
	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := srv.Stop(stopCtx); err != nil {
		mainLogger.Error().Err(err).Msg("Connection server shutdown incomplete")
	}

	if err := engine.Stop(); err != nil {
		mainLogger.Error().Err(err).Msg("Heartbeat engine shutdown failed")
	}

	stats := engine.Stats()
	mainLogger.Info().
		Int64("total_sweeps", stats.TotalSweeps).
		Int64("total_timeouts", stats.TotalTimeouts).
		Msg("Server stopped")

	return runErr
}

func newStore(ctx context.Context, cfg *models.ServerConfig, log logger.Logger) (db.Service, error) {
	if !cfg.Database.Enabled {
		log.Info().Msg("Database disabled, using in-memory host store")
		return db.NewInMemoryStore(), nil
	}

	store, err := db.NewPostgresStore(ctx, &cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return store, nil
}

func newSyncer(ctx context.Context, cfg *models.ServerConfig, log logger.Logger) (dnssync.Syncer, error) {
	if !cfg.NATS.Enabled {
		log.Info().Msg("NATS disabled, DNS records will not be synced")
		return dnssync.NewNoopSyncer(), nil
	}

	syncer, err := dnssync.NewNATSSyncer(ctx, &cfg.NATS, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return syncer, nil
}
