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

package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/beacon/pkg/logger"
	"github.com/carverauto/beacon/pkg/models"
)

// fakeHostManager lets tests control last_seen directly.
type fakeHostManager struct {
	mu          sync.Mutex
	hosts       map[string]*models.Host
	failOffline map[string]error
	cleanups    int
}

func newFakeHostManager() *fakeHostManager {
	return &fakeHostManager{
		hosts:       make(map[string]*models.Host),
		failOffline: make(map[string]error),
	}
}

func (f *fakeHostManager) addOnline(hostname string, lastSeenAgo time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.hosts[hostname] = &models.Host{
		Hostname:  hostname,
		CurrentIP: "10.0.0.1",
		Status:    models.HostStatusOnline,
		LastSeen:  time.Now().UTC().Add(-lastSeenAgo),
	}
}

func (f *fakeHostManager) ListHostsByStatus(_ context.Context, status models.HostStatus, limit int) ([]*models.Host, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*models.Host

	for _, h := range f.hosts {
		if h.Status != status {
			continue
		}

		c := *h
		out = append(out, &c)

		if limit > 0 && len(out) == limit {
			break
		}
	}

	return out, nil
}

func (f *fakeHostManager) MarkHostOffline(_ context.Context, hostname string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.failOffline[hostname]; ok {
		return err
	}

	host, ok := f.hosts[hostname]
	if !ok {
		return errors.New("host not found")
	}

	host.Status = models.HostStatusOffline

	return nil
}

func (f *fakeHostManager) CleanupOfflineHosts(_ context.Context, _ int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.cleanups++

	return nil, nil
}

func (f *fakeHostManager) status(hostname string) models.HostStatus {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.hosts[hostname].Status
}

func (f *fakeHostManager) cleanupCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.cleanups
}

func testConfig() models.HeartbeatConfig {
	return models.HeartbeatConfig{
		CheckInterval:           models.Duration(30 * time.Second),
		HeartbeatInterval:       models.Duration(60 * time.Second),
		TimeoutMultiplier:       2,
		GracePeriod:             models.Duration(30 * time.Second),
		MaxHostsPerCheck:        500,
		CleanupInterval:         models.Duration(24 * time.Hour),
		CleanupOfflineAfterDays: 30,
	}
}

func TestTimeoutThreshold(t *testing.T) {
	engine := NewEngine(testConfig(), newFakeHostManager(), logger.NewTestLogger())

	assert.Equal(t, 150*time.Second, engine.TimeoutThreshold())
}

func TestCheckTimeoutsBoundary(t *testing.T) {
	hosts := newFakeHostManager()
	// Threshold is 150s: 151s ago is timed out, 149s ago is not.
	hosts.addOnline("stale", 151*time.Second)
	hosts.addOnline("fresh", 149*time.Second)

	engine := NewEngine(testConfig(), hosts, logger.NewTestLogger())

	result, err := engine.CheckTimeouts(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.HostsChecked)
	assert.Equal(t, 1, result.HostsTimedOut)
	assert.Equal(t, []string{"stale"}, result.TimedOutHosts)
	assert.Greater(t, result.CheckDuration, time.Duration(0))
}

func TestCheckTimeoutsRespectsHostLimit(t *testing.T) {
	hosts := newFakeHostManager()
	for _, name := range []string{"a", "b", "c"} {
		hosts.addOnline(name, time.Hour)
	}

	cfg := testConfig()
	cfg.MaxHostsPerCheck = 2

	engine := NewEngine(cfg, hosts, logger.NewTestLogger())

	result, err := engine.CheckTimeouts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.HostsChecked)
}

func TestMarkTimedOutHostsPartialFailure(t *testing.T) {
	hosts := newFakeHostManager()
	hosts.addOnline("good1", time.Hour)
	hosts.addOnline("bad", time.Hour)
	hosts.addOnline("good2", time.Hour)
	hosts.failOffline["bad"] = errors.New("row lock timeout")

	engine := NewEngine(testConfig(), hosts, logger.NewTestLogger())

	timedOut, err := engine.CheckTimeouts(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, timedOut.HostsTimedOut)

	result := engine.MarkTimedOutHosts(context.Background(), timedOut)

	assert.False(t, result.Success)
	assert.Equal(t, 2, result.HostsMarkedOffline)
	assert.Equal(t, []string{"bad"}, result.FailedHosts)

	// The batch was not aborted by the failure.
	assert.Equal(t, models.HostStatusOffline, hosts.status("good1"))
	assert.Equal(t, models.HostStatusOffline, hosts.status("good2"))
	assert.Equal(t, models.HostStatusOnline, hosts.status("bad"))
}

func TestRunSweepTransitionsAndSettles(t *testing.T) {
	hosts := newFakeHostManager()
	hosts.addOnline("stale", time.Hour)
	hosts.addOnline("fresh", time.Second)

	engine := NewEngine(testConfig(), hosts, logger.NewTestLogger())

	result, err := engine.RunSweep(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.HostsMarkedOffline)
	assert.Equal(t, models.HostStatusOffline, hosts.status("stale"))

	// Offline hosts are no longer swept; a second sweep finds nothing.
	result, err = engine.RunSweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.HostsTimedOut)
}

func TestStats(t *testing.T) {
	hosts := newFakeHostManager()
	hosts.addOnline("stale", time.Hour)

	engine := NewEngine(testConfig(), hosts, logger.NewTestLogger())

	_, err := engine.RunSweep(context.Background())
	require.NoError(t, err)
	_, err = engine.RunSweep(context.Background())
	require.NoError(t, err)

	stats := engine.Stats()
	assert.Equal(t, int64(2), stats.TotalSweeps)
	assert.Equal(t, int64(1), stats.TotalTimeouts)
	assert.Greater(t, stats.AverageSweepDuration, time.Duration(0))
	assert.False(t, stats.LastSweep.IsZero())
}

func TestStartRunsSweepsUntilStopped(t *testing.T) {
	hosts := newFakeHostManager()
	hosts.addOnline("stale", time.Hour)

	cfg := testConfig()
	cfg.CheckInterval = models.Duration(10 * time.Millisecond)
	cfg.CleanupInterval = models.Duration(25 * time.Millisecond)

	engine := NewEngine(cfg, hosts, logger.NewTestLogger())

	done := make(chan error, 1)

	go func() {
		done <- engine.Start(context.Background())
	}()

	require.Eventually(t, func() bool {
		return engine.Stats().TotalSweeps >= 2 && hosts.cleanupCount() >= 1
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, engine.Stop())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("engine did not stop promptly")
	}

	// Stop is idempotent.
	assert.NoError(t, engine.Stop())
}

func TestStartHonorsContextCancel(t *testing.T) {
	cfg := testConfig()
	cfg.CheckInterval = models.Duration(10 * time.Millisecond)

	engine := NewEngine(cfg, newFakeHostManager(), logger.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)

	go func() {
		done <- engine.Start(ctx)
	}()

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("engine did not honor cancellation")
	}
}
