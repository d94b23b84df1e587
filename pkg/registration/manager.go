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

// Package registration implements the host lifecycle state machine.
//
// Per hostname the states are absent, online and offline. An accepted
// registration or heartbeat always lands the host in online; which action is
// reported depends on the prior state and whether the IP changed:
//
//	absent            -> created
//	online, same IP   -> updated_timestamp
//	online, new IP    -> updated_ip        (IP-change event logged)
//	offline, same IP  -> reactivated
//	offline, new IP   -> reactivated       (IP-change event logged)
//
// Reactivation and in-place IP change end in the same state but stay
// separate code paths: only reactivation reports previous_status.
package registration

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/carverauto/beacon/pkg/db"
	"github.com/carverauto/beacon/pkg/dnssync"
	"github.com/carverauto/beacon/pkg/iptracker"
	"github.com/carverauto/beacon/pkg/logger"
	"github.com/carverauto/beacon/pkg/models"
)

var (
	// ErrValidation covers client-supplied hostname/IP format failures.
	ErrValidation = errors.New("validation error")

	ErrInvalidHostname = fmt.Errorf("%w: invalid hostname", ErrValidation)
	ErrInvalidIP       = fmt.Errorf("%w: invalid IP address", ErrValidation)
)

// RFC 1123 labels joined by dots, 253 chars max overall.
var hostnamePattern = regexp.MustCompile(
	`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

const maxHostnameLen = 253

// Manager orchestrates storage, DNS-sync and IP tracking for each inbound
// registration or heartbeat. Safe for concurrent use; per-hostname
// serialization is the storage collaborator's job.
type Manager struct {
	store   db.Service
	dns     dnssync.Syncer
	tracker *iptracker.Tracker
	logger  logger.Logger
}

// NewManager wires the state machine to its collaborators.
func NewManager(store db.Service, dns dnssync.Syncer, tracker *iptracker.Tracker, log logger.Logger) *Manager {
	return &Manager{
		store:   store,
		dns:     dns,
		tracker: tracker,
		logger:  log,
	}
}

// RegisterHost runs the transition table for one registration or heartbeat
// carrying ip. A validation failure returns a wrapped ErrValidation; storage
// failures are reported in the result (action=error, success=false) with no
// partial state change.
func (m *Manager) RegisterHost(ctx context.Context, hostname, ip string, msgType models.MessageType) (*models.HostRegistrationResult, error) {
	if !ValidHostname(hostname) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHostname, hostname)
	}

	if !m.tracker.ValidateIP(ip) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidIP, ip)
	}

	host, err := m.store.GetHostByHostname(ctx, hostname)

	switch {
	case err == nil:
		return m.updateExisting(ctx, host, ip, msgType), nil
	case errors.Is(err, db.ErrHostNotFound):
		return m.createNew(ctx, hostname, ip), nil
	default:
		m.logger.Error().Err(err).Str("hostname", hostname).Msg("Storage lookup failed")
		return errorResult(hostname, ip, "storage lookup failed"), nil
	}
}

func (m *Manager) createNew(ctx context.Context, hostname, ip string) *models.HostRegistrationResult {
	host, err := m.store.CreateHost(ctx, hostname, ip)
	if err != nil {
		if errors.Is(err, db.ErrDuplicateHost) {
			// Lost a create race; the record exists now, treat this message
			// as an update of it.
			existing, getErr := m.store.GetHostByHostname(ctx, hostname)
			if getErr == nil {
				return m.updateExisting(ctx, existing, ip, models.MessageTypeRegistration)
			}

			err = getErr
		}

		m.logger.Error().Err(err).Str("hostname", hostname).Msg("Host create failed")

		return errorResult(hostname, ip, "storage create failed")
	}

	m.logger.Info().Str("hostname", hostname).Str("ip", ip).Msg("Registered new host")
	m.syncDNS(ctx, hostname, ip)

	return &models.HostRegistrationResult{
		Success:   true,
		Action:    models.ActionCreated,
		Hostname:  hostname,
		IPAddress: ip,
		Message:   fmt.Sprintf("New host '%s' registered with IP %s", hostname, ip),
		Timestamp: host.LastSeen,
	}
}

func (m *Manager) updateExisting(ctx context.Context, host *models.Host, ip string, msgType models.MessageType) *models.HostRegistrationResult {
	if host.CurrentIP == ip {
		return m.refreshSameIP(ctx, host, ip)
	}

	return m.updateNewIP(ctx, host, ip, msgType)
}

// refreshSameIP handles the two same-IP rows of the transition table:
// updated_timestamp while online, reactivated from offline.
func (m *Manager) refreshSameIP(ctx context.Context, host *models.Host, ip string) *models.HostRegistrationResult {
	if err := m.store.TouchLastSeen(ctx, host.Hostname); err != nil {
		m.logger.Error().Err(err).Str("hostname", host.Hostname).Msg("last_seen refresh failed")
		return errorResult(host.Hostname, ip, "storage update failed")
	}

	now := time.Now().UTC()

	if host.Status == models.HostStatusOffline {
		m.logger.Info().Str("hostname", host.Hostname).Str("ip", ip).Msg("Host reactivated")
		m.syncDNS(ctx, host.Hostname, ip)

		return &models.HostRegistrationResult{
			Success:        true,
			Action:         models.ActionReactivated,
			Hostname:       host.Hostname,
			IPAddress:      ip,
			PreviousStatus: models.HostStatusOffline,
			Message:        fmt.Sprintf("Host '%s' reconnected with IP %s", host.Hostname, ip),
			Timestamp:      now,
		}
	}

	return &models.HostRegistrationResult{
		Success:   true,
		Action:    models.ActionUpdatedTimestamp,
		Hostname:  host.Hostname,
		IPAddress: ip,
		Message:   fmt.Sprintf("Heartbeat received from '%s'", host.Hostname),
		Timestamp: now,
	}
}

// updateNewIP handles the two IP-change rows. The offline variant is kept as
// its own branch rather than merged with the online one: it reports
// previous_status and a reconnection message.
func (m *Manager) updateNewIP(ctx context.Context, host *models.Host, ip string, msgType models.MessageType) *models.HostRegistrationResult {
	previousIP := host.CurrentIP

	if err := m.store.UpdateHostIP(ctx, host.Hostname, ip); err != nil {
		m.logger.Error().Err(err).Str("hostname", host.Hostname).Msg("IP update failed")
		return errorResult(host.Hostname, ip, "storage update failed")
	}

	m.tracker.LogChange(host.Hostname, previousIP, ip, reasonFor(msgType))
	m.syncDNS(ctx, host.Hostname, ip)

	now := time.Now().UTC()

	if host.Status == models.HostStatusOffline {
		m.logger.Info().
			Str("hostname", host.Hostname).
			Str("previous_ip", previousIP).
			Str("ip", ip).
			Msg("Host reactivated with new IP")

		return &models.HostRegistrationResult{
			Success:        true,
			Action:         models.ActionReactivated,
			Hostname:       host.Hostname,
			IPAddress:      ip,
			PreviousIP:     previousIP,
			PreviousStatus: models.HostStatusOffline,
			Message:        fmt.Sprintf("Host '%s' reconnected with IP %s", host.Hostname, ip),
			Timestamp:      now,
		}
	}

	m.logger.Info().
		Str("hostname", host.Hostname).
		Str("previous_ip", previousIP).
		Str("ip", ip).
		Msg("Host IP changed")

	return &models.HostRegistrationResult{
		Success:    true,
		Action:     models.ActionUpdatedIP,
		Hostname:   host.Hostname,
		IPAddress:  ip,
		PreviousIP: previousIP,
		Message:    fmt.Sprintf("Host '%s' IP changed from %s to %s", host.Hostname, previousIP, ip),
		Timestamp:  now,
	}
}

// syncDNS signals the DNS authority. Failures are logged, never surfaced to
// the registering client.
func (m *Manager) syncDNS(ctx context.Context, hostname, ip string) {
	if err := m.dns.UpsertRecord(ctx, hostname, ip); err != nil {
		m.logger.Warn().Err(err).Str("hostname", hostname).Str("ip", ip).Msg("DNS record upsert failed")
	}
}

// MarkHostOffline transitions a host to offline. Idempotent: re-marking an
// already-offline host succeeds and changes nothing.
func (m *Manager) MarkHostOffline(ctx context.Context, hostname string) error {
	if err := m.store.MarkHostOffline(ctx, hostname); err != nil {
		return fmt.Errorf("mark %q offline: %w", hostname, err)
	}

	return nil
}

// GetHost returns the record for hostname.
func (m *Manager) GetHost(ctx context.Context, hostname string) (*models.Host, error) {
	return m.store.GetHostByHostname(ctx, hostname)
}

// ListHostsByStatus returns up to limit hosts in the given status.
func (m *Manager) ListHostsByStatus(ctx context.Context, status models.HostStatus, limit int) ([]*models.Host, error) {
	return m.store.ListHostsByStatus(ctx, status, limit)
}

// CountHostsByStatus returns the number of hosts in the given status.
func (m *Manager) CountHostsByStatus(ctx context.Context, status models.HostStatus) (int, error) {
	return m.store.CountHostsByStatus(ctx, status)
}

// HostExists reports whether a record exists for hostname.
func (m *Manager) HostExists(ctx context.Context, hostname string) (bool, error) {
	_, err := m.store.GetHostByHostname(ctx, hostname)
	if err != nil {
		if errors.Is(err, db.ErrHostNotFound) {
			return false, nil
		}

		return false, err
	}

	return true, nil
}

// DeleteHost removes a host record. Destructive and irreversible.
func (m *Manager) DeleteHost(ctx context.Context, hostname string) error {
	return m.store.DeleteHost(ctx, hostname)
}

// CleanupOfflineHosts deletes hosts that have been offline longer than
// olderThanDays. Returns the hostnames deleted. Per-host failures are logged
// and skipped so one bad row cannot stall the cleanup.
func (m *Manager) CleanupOfflineHosts(ctx context.Context, olderThanDays int) ([]string, error) {
	hosts, err := m.store.ListHostsByStatus(ctx, models.HostStatusOffline, 0)
	if err != nil {
		return nil, fmt.Errorf("list offline hosts: %w", err)
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays)

	var deleted []string

	for _, host := range hosts {
		if !host.LastSeen.UTC().Before(cutoff) {
			continue
		}

		if err := m.store.DeleteHost(ctx, host.Hostname); err != nil {
			m.logger.Error().Err(err).Str("hostname", host.Hostname).Msg("Offline host cleanup delete failed")
			continue
		}

		m.logger.Info().
			Str("hostname", host.Hostname).
			Time("last_seen", host.LastSeen).
			Msg("Deleted long-offline host")

		deleted = append(deleted, host.Hostname)
	}

	return deleted, nil
}

// ValidHostname reports whether hostname is an RFC 1123 name.
func ValidHostname(hostname string) bool {
	if hostname == "" || len(hostname) > maxHostnameLen {
		return false
	}

	return hostnamePattern.MatchString(hostname)
}

func reasonFor(msgType models.MessageType) string {
	if msgType == models.MessageTypeHeartbeat {
		return iptracker.ReasonHeartbeat
	}

	return iptracker.ReasonRegistration
}

func errorResult(hostname, ip, message string) *models.HostRegistrationResult {
	return &models.HostRegistrationResult{
		Success:   false,
		Action:    models.ActionError,
		Hostname:  hostname,
		IPAddress: ip,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}
