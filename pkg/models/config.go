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

package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/carverauto/beacon/pkg/logger"
)

var errInvalidDuration = errors.New("invalid duration")

// Duration wraps time.Duration so JSON configs can use "30s" style strings.
// Numeric values are parsed as nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		dur, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}

		*d = Duration(dur)

		return nil
	default:
		return errInvalidDuration
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// HeartbeatConfig drives the heartbeat timeout engine.
type HeartbeatConfig struct {
	CheckInterval           Duration `json:"check_interval"`
	HeartbeatInterval       Duration `json:"heartbeat_interval"`
	TimeoutMultiplier       int      `json:"timeout_multiplier"`
	GracePeriod             Duration `json:"grace_period"`
	MaxHostsPerCheck        int      `json:"max_hosts_per_check"`
	CleanupInterval         Duration `json:"cleanup_interval"`
	CleanupOfflineAfterDays int      `json:"cleanup_offline_after_days"`
}

// TrackerConfig bounds the IP change tracker's in-memory history.
type TrackerConfig struct {
	MaxHistoryEntries int  `json:"max_history_entries"`
	RejectPrivateIPs  bool `json:"reject_private_ips"`
}

// ResponseConfig controls response verbosity.
type ResponseConfig struct {
	Verbosity  string `json:"verbosity"` // minimal, detailed or full
	ServerName string `json:"server_name"`
}

// RateLimitConfig is the optional per-client registration rate limit.
type RateLimitConfig struct {
	Enabled    bool     `json:"enabled"`
	Burst      int      `json:"burst"`
	PerSeconds Duration `json:"per_seconds"`
}

// LimitsConfig bounds per-connection resource usage.
type LimitsConfig struct {
	MaxFrameBytes int             `json:"max_frame_bytes"`
	IdleTimeout   Duration        `json:"idle_timeout"`
	RateLimit     RateLimitConfig `json:"rate_limit"`
}

// DatabaseConfig configures the Postgres-backed host store. When Enabled is
// false the server runs against the in-memory store.
type DatabaseConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	Username string `json:"username"`
	Password string `json:"password"`
	SSLMode  string `json:"sslmode"`
	MaxConns int32  `json:"max_conns"`
}

// NATSConfig configures the DNS-sync event publisher.
type NATSConfig struct {
	Enabled       bool   `json:"enabled"`
	URL           string `json:"url"`
	Stream        string `json:"stream"`
	SubjectPrefix string `json:"subject_prefix"`
}

// ServerConfig is the single immutable configuration for the beacon server,
// populated once at startup.
type ServerConfig struct {
	ListenAddr string          `json:"listen_addr"`
	Heartbeat  HeartbeatConfig `json:"heartbeat"`
	Tracker    TrackerConfig   `json:"tracker"`
	Response   ResponseConfig  `json:"response"`
	Limits     LimitsConfig    `json:"limits"`
	Database   DatabaseConfig  `json:"database"`
	NATS       NATSConfig      `json:"nats"`
	Logging    *logger.Config  `json:"logging,omitempty"`
}

const (
	defaultListenAddr        = ":9090"
	defaultCheckInterval     = 30 * time.Second
	defaultHeartbeatInterval = 60 * time.Second
	defaultTimeoutMultiplier = 2
	defaultGracePeriod       = 30 * time.Second
	defaultMaxHostsPerCheck  = 500
	defaultCleanupInterval   = 24 * time.Hour
	defaultCleanupAfterDays  = 30
	defaultMaxHistoryEntries = 1000
	defaultMaxFrameBytes     = 64 * 1024
	defaultIdleTimeout       = 10 * time.Minute
)

// ApplyDefaults fills in zero-valued knobs.
func (c *ServerConfig) ApplyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = defaultListenAddr
	}

	if c.Heartbeat.CheckInterval == 0 {
		c.Heartbeat.CheckInterval = Duration(defaultCheckInterval)
	}

	if c.Heartbeat.HeartbeatInterval == 0 {
		c.Heartbeat.HeartbeatInterval = Duration(defaultHeartbeatInterval)
	}

	if c.Heartbeat.TimeoutMultiplier == 0 {
		c.Heartbeat.TimeoutMultiplier = defaultTimeoutMultiplier
	}

	if c.Heartbeat.GracePeriod == 0 {
		c.Heartbeat.GracePeriod = Duration(defaultGracePeriod)
	}

	if c.Heartbeat.MaxHostsPerCheck == 0 {
		c.Heartbeat.MaxHostsPerCheck = defaultMaxHostsPerCheck
	}

	if c.Heartbeat.CleanupInterval == 0 {
		c.Heartbeat.CleanupInterval = Duration(defaultCleanupInterval)
	}

	if c.Heartbeat.CleanupOfflineAfterDays == 0 {
		c.Heartbeat.CleanupOfflineAfterDays = defaultCleanupAfterDays
	}

	if c.Tracker.MaxHistoryEntries == 0 {
		c.Tracker.MaxHistoryEntries = defaultMaxHistoryEntries
	}

	if c.Response.Verbosity == "" {
		c.Response.Verbosity = "detailed"
	}

	if c.Limits.MaxFrameBytes == 0 {
		c.Limits.MaxFrameBytes = defaultMaxFrameBytes
	}

	if c.Limits.IdleTimeout == 0 {
		c.Limits.IdleTimeout = Duration(defaultIdleTimeout)
	}
}

// Validate rejects configurations the server cannot run with.
func (c *ServerConfig) Validate() error {
	if c.Heartbeat.TimeoutMultiplier < 1 {
		return fmt.Errorf("%w: timeout_multiplier must be >= 1", errInvalidConfig)
	}

	if c.Tracker.MaxHistoryEntries < 1 {
		return fmt.Errorf("%w: max_history_entries must be >= 1", errInvalidConfig)
	}

	switch c.Response.Verbosity {
	case "minimal", "detailed", "full":
	default:
		return fmt.Errorf("%w: unknown response verbosity %q", errInvalidConfig, c.Response.Verbosity)
	}

	if c.Database.Enabled && c.Database.Host == "" {
		return fmt.Errorf("%w: database.host is required when database is enabled", errInvalidConfig)
	}

	if c.NATS.Enabled && c.NATS.URL == "" {
		return fmt.Errorf("%w: nats.url is required when nats is enabled", errInvalidConfig)
	}

	return nil
}

var errInvalidConfig = errors.New("invalid configuration")

// OverrideFromEnv applies deployment-endpoint overrides from the
// environment. lookup is os.LookupEnv in production.
func (c *ServerConfig) OverrideFromEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("BEACON_LISTEN_ADDR"); ok {
		c.ListenAddr = v
	}

	if v, ok := lookup("BEACON_DB_HOST"); ok {
		c.Database.Host = v
	}

	if v, ok := lookup("BEACON_DB_PASSWORD"); ok {
		c.Database.Password = v
	}

	if v, ok := lookup("BEACON_NATS_URL"); ok {
		c.NATS.URL = v
	}
}
