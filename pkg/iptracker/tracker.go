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

// Package iptracker detects and records per-hostname IP transitions in a
// bounded in-memory history. The history is lost on restart; that is a
// documented limitation, not a bug.
package iptracker

import (
	"context"
	"errors"
	"net/netip"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/beacon/pkg/db"
	"github.com/carverauto/beacon/pkg/logger"
	"github.com/carverauto/beacon/pkg/models"
)

// Change reasons.
const (
	ReasonRegistration = "registration"
	ReasonHeartbeat    = "heartbeat"
)

// DetectionMethodComparison marks changes found by comparing a reported IP
// against the stored record.
const DetectionMethodComparison = "storage_comparison"

const defaultMaxEntries = 1000

// Tracker holds the shared IP-change history. Every connection worker reads
// and writes it concurrently, so all access goes through the mutex.
type Tracker struct {
	mu            sync.RWMutex
	events        []models.IPChangeEvent
	maxEntries    int
	rejectPrivate bool
	store         db.Service
	logger        logger.Logger
}

// NewTracker creates a tracker bounded by cfg.MaxHistoryEntries. store is
// consulted by DetectChange for the host's current IP.
func NewTracker(cfg models.TrackerConfig, store db.Service, log logger.Logger) *Tracker {
	maxEntries := cfg.MaxHistoryEntries
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}

	return &Tracker{
		events:        make([]models.IPChangeEvent, 0, maxEntries),
		maxEntries:    maxEntries,
		rejectPrivate: cfg.RejectPrivateIPs,
		store:         store,
		logger:        log,
	}
}

// DetectChange compares newIP against the stored record for hostname.
// Returns nil for an unknown hostname or an unchanged IP.
func (t *Tracker) DetectChange(ctx context.Context, hostname, newIP string) (*models.ChangeDetection, error) {
	host, err := t.store.GetHostByHostname(ctx, hostname)
	if err != nil {
		if errors.Is(err, db.ErrHostNotFound) {
			return nil, nil
		}

		return nil, err
	}

	if host.CurrentIP == newIP {
		return nil, nil
	}

	return &models.ChangeDetection{
		Hostname:   hostname,
		PreviousIP: host.CurrentIP,
		NewIP:      newIP,
	}, nil
}

// LogChange appends an IP-change event, evicting the oldest entry once the
// history cap is exceeded.
func (t *Tracker) LogChange(hostname, previousIP, newIP, reason string) models.IPChangeEvent {
	event := models.IPChangeEvent{
		ID:              uuid.New().String(),
		Hostname:        hostname,
		PreviousIP:      previousIP,
		NewIP:           newIP,
		ChangeTime:      time.Now().UTC(),
		ChangeReason:    reason,
		DetectionMethod: DetectionMethodComparison,
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.events = append(t.events, event)
	if len(t.events) > t.maxEntries {
		// FIFO eviction, oldest first.
		t.events = t.events[len(t.events)-t.maxEntries:]
	}

	t.logger.Debug().
		Str("hostname", hostname).
		Str("previous_ip", previousIP).
		Str("new_ip", newIP).
		Str("reason", reason).
		Msg("Logged IP change")

	return event
}

// HistoryForHost returns the host's changes, most recent first. limit <= 0
// means all.
func (t *Tracker) HistoryForHost(hostname string, limit int) []models.IPChangeEvent {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []models.IPChangeEvent

	for i := len(t.events) - 1; i >= 0; i-- {
		if t.events[i].Hostname != hostname {
			continue
		}

		out = append(out, t.events[i])

		if limit > 0 && len(out) == limit {
			break
		}
	}

	return out
}

// RecentChanges returns the latest changes across all hosts, most recent
// first. limit <= 0 means all.
func (t *Tracker) RecentChanges(limit int) []models.IPChangeEvent {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := len(t.events)
	if limit > 0 && limit < n {
		n = limit
	}

	out := make([]models.IPChangeEvent, 0, n)

	for i := len(t.events) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, t.events[i])
	}

	return out
}

// Stats aggregates the current history.
func (t *Tracker) Stats() models.IPChangeStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stats := models.IPChangeStats{
		TotalChanges:    len(t.events),
		ChangesByReason: make(map[string]int),
	}

	hosts := make(map[string]struct{})
	now := time.Now().UTC()

	for i := range t.events {
		event := &t.events[i]
		hosts[event.Hostname] = struct{}{}
		stats.ChangesByReason[event.ChangeReason]++

		if addr, err := netip.ParseAddr(event.NewIP); err == nil {
			if addr.Is4() || addr.Is4In6() {
				stats.IPv4Changes++
			} else {
				stats.IPv6Changes++
			}

			if isPrivate(addr) {
				stats.PrivateIPs++
			} else {
				stats.PublicIPs++
			}
		}

		age := now.Sub(event.ChangeTime)
		if age <= time.Hour {
			stats.ChangesLastHour++
		}

		if age <= 24*time.Hour {
			stats.ChangesLastDay++
		}
	}

	stats.UniqueHosts = len(hosts)

	return stats
}

// ValidateIP accepts syntactically valid IPv4/IPv6 addresses. When the
// tracker is configured to reject private addresses, a private address fails
// validation even if syntactically valid.
func (t *Tracker) ValidateIP(s string) bool {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return false
	}

	if t.rejectPrivate && isPrivate(addr) {
		return false
	}

	return true
}

func isPrivate(addr netip.Addr) bool {
	return addr.IsPrivate() ||
		addr.IsLoopback() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsUnspecified()
}
