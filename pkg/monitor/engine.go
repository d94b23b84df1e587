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

// Package monitor runs the heartbeat timeout engine: a periodic sweep that
// finds online hosts whose last_seen fell behind the timeout threshold and
// transitions them offline, plus a slower cleanup loop that deletes
// long-offline hosts.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/carverauto/beacon/pkg/logger"
	"github.com/carverauto/beacon/pkg/models"
)

// sweepDurationSamples bounds the rolling average window.
const sweepDurationSamples = 100

const sweepTimeout = time.Minute

// HostManager is the slice of the registration manager the engine needs.
type HostManager interface {
	ListHostsByStatus(ctx context.Context, status models.HostStatus, limit int) ([]*models.Host, error)
	MarkHostOffline(ctx context.Context, hostname string) error
	CleanupOfflineHosts(ctx context.Context, olderThanDays int) ([]string, error)
}

// Engine drives the sweep and cleanup loops. One Engine runs per process.
type Engine struct {
	config models.HeartbeatConfig
	hosts  HostManager
	logger logger.Logger

	done     chan struct{}
	stopOnce sync.Once

	mu            sync.Mutex
	totalSweeps   int64
	totalTimeouts int64
	durations     []time.Duration
	lastSweep     time.Time
}

// NewEngine creates a stopped engine. Call Start to run the loops, or
// RunSweep to trigger a single sweep by hand.
func NewEngine(config models.HeartbeatConfig, hosts HostManager, log logger.Logger) *Engine {
	return &Engine{
		config: config,
		hosts:  hosts,
		logger: log,
		done:   make(chan struct{}),
	}
}

// TimeoutThreshold is heartbeat_interval * timeout_multiplier + grace_period.
func (e *Engine) TimeoutThreshold() time.Duration {
	return time.Duration(e.config.HeartbeatInterval)*time.Duration(e.config.TimeoutMultiplier) +
		time.Duration(e.config.GracePeriod)
}

// CheckTimeouts retrieves up to max_hosts_per_check online hosts and reports
// those whose last_seen lies before now minus the timeout threshold.
// Timestamps are normalized to UTC before comparison.
func (e *Engine) CheckTimeouts(ctx context.Context) (*models.TimeoutResult, error) {
	start := time.Now()
	cutoff := start.UTC().Add(-e.TimeoutThreshold())

	hosts, err := e.hosts.ListHostsByStatus(ctx, models.HostStatusOnline, e.config.MaxHostsPerCheck)
	if err != nil {
		return nil, fmt.Errorf("list online hosts: %w", err)
	}

	result := &models.TimeoutResult{
		HostsChecked:  len(hosts),
		TimedOutHosts: []string{},
	}

	for _, host := range hosts {
		if host.LastSeen.UTC().Before(cutoff) {
			result.TimedOutHosts = append(result.TimedOutHosts, host.Hostname)
		}
	}

	result.HostsTimedOut = len(result.TimedOutHosts)
	result.CheckDuration = time.Since(start)

	e.recordSweep(result)

	return result, nil
}

// MarkTimedOutHosts transitions exactly the given hostnames to offline.
// A failing hostname is reported in FailedHosts and retried on the next
// sweep; it never aborts the batch.
func (e *Engine) MarkTimedOutHosts(ctx context.Context, timedOut *models.TimeoutResult) *models.StatusChangeResult {
	result := &models.StatusChangeResult{
		TimeoutResult: *timedOut,
		Success:       true,
	}

	for _, hostname := range timedOut.TimedOutHosts {
		if err := e.hosts.MarkHostOffline(ctx, hostname); err != nil {
			e.logger.Error().Err(err).Str("hostname", hostname).Msg("Failed to mark host offline")

			result.FailedHosts = append(result.FailedHosts, hostname)
			result.Success = false

			continue
		}

		result.HostsMarkedOffline++
	}

	return result
}

// RunSweep performs one complete sweep: timeout check plus offline
// transitions. Exposed so tests and operators can trigger a sweep without
// waiting for the ticker.
func (e *Engine) RunSweep(ctx context.Context) (*models.StatusChangeResult, error) {
	timedOut, err := e.CheckTimeouts(ctx)
	if err != nil {
		return nil, err
	}

	result := e.MarkTimedOutHosts(ctx, timedOut)

	if result.HostsTimedOut > 0 {
		e.logger.Info().
			Int("hosts_checked", result.HostsChecked).
			Int("hosts_timed_out", result.HostsTimedOut).
			Int("hosts_marked_offline", result.HostsMarkedOffline).
			Strs("failed_hosts", result.FailedHosts).
			Msg("Heartbeat sweep transitioned hosts offline")
	}

	return result, nil
}

// Start runs the sweep loop and the cleanup loop until ctx is canceled or
// Stop is called. A failing iteration is logged and the loop continues after
// the normal interval.
func (e *Engine) Start(ctx context.Context) error {
	e.logger.Info().
		Dur("check_interval", time.Duration(e.config.CheckInterval)).
		Dur("timeout_threshold", e.TimeoutThreshold()).
		Msg("Starting heartbeat timeout engine")

	ticker := time.NewTicker(time.Duration(e.config.CheckInterval))
	defer ticker.Stop()

	cleanupTicker := time.NewTicker(time.Duration(e.config.CleanupInterval))
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info().Msg("Context canceled, stopping heartbeat engine")
			return ctx.Err()
		case <-e.done:
			e.logger.Info().Msg("Received done signal, stopping heartbeat engine")
			return nil
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, sweepTimeout)

			if _, err := e.RunSweep(sweepCtx); err != nil {
				e.logger.Error().Err(err).Msg("Heartbeat sweep failed")
			}

			cancel()
		case <-cleanupTicker.C:
			cleanupCtx, cancel := context.WithTimeout(ctx, sweepTimeout)

			deleted, err := e.hosts.CleanupOfflineHosts(cleanupCtx, e.config.CleanupOfflineAfterDays)
			if err != nil {
				e.logger.Error().Err(err).Msg("Offline host cleanup failed")
			} else if len(deleted) > 0 {
				e.logger.Info().Strs("hostnames", deleted).Msg("Cleanup deleted long-offline hosts")
			}

			cancel()
		}
	}
}

// Stop signals the loops to exit. Safe to call more than once.
func (e *Engine) Stop() error {
	e.stopOnce.Do(func() {
		close(e.done)
	})

	return nil
}

// Stats returns a snapshot of the engine's running counters.
func (e *Engine) Stats() models.MonitorStats {
	e.mu.Lock()
	defer e.mu.Unlock()

	var avg time.Duration

	if len(e.durations) > 0 {
		var total time.Duration
		for _, d := range e.durations {
			total += d
		}

		avg = total / time.Duration(len(e.durations))
	}

	return models.MonitorStats{
		TotalSweeps:          e.totalSweeps,
		TotalTimeouts:        e.totalTimeouts,
		AverageSweepDuration: avg,
		LastSweep:            e.lastSweep,
	}
}

func (e *Engine) recordSweep(result *models.TimeoutResult) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.totalSweeps++
	e.totalTimeouts += int64(result.HostsTimedOut)
	e.lastSweep = time.Now().UTC()

	e.durations = append(e.durations, result.CheckDuration)
	if len(e.durations) > sweepDurationSamples {
		e.durations = e.durations[len(e.durations)-sweepDurationSamples:]
	}
}
