/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package db is the host-record storage collaborator: a transactional
// key-value-by-hostname store with exactly one record per hostname.
package db

import (
	"context"

	"github.com/carverauto/beacon/pkg/models"
)

//go:generate mockgen -destination=mock_db.go -package=db github.com/carverauto/beacon/pkg/db Service

// Service represents all host storage operations. Implementations must make
// each per-hostname mutation atomic so that concurrent writers for the same
// hostname never produce a torn record.
type Service interface {
	Close() error

	// CreateHost inserts a new online host record. Returns ErrDuplicateHost
	// if the hostname already exists.
	CreateHost(ctx context.Context, hostname, ip string) (*models.Host, error)

	// GetHostByHostname returns the record for hostname, or ErrHostNotFound.
	GetHostByHostname(ctx context.Context, hostname string) (*models.Host, error)

	// UpdateHostIP sets the host's IP, marks it online and refreshes
	// last_seen in one atomic update.
	UpdateHostIP(ctx context.Context, hostname, ip string) error

	// TouchLastSeen marks the host online and refreshes last_seen.
	TouchLastSeen(ctx context.Context, hostname string) error

	// MarkHostOffline transitions the host to offline. Marking an
	// already-offline host is a no-op, not an error.
	MarkHostOffline(ctx context.Context, hostname string) error

	// ListHostsByStatus returns up to limit hosts with the given status,
	// least recently seen first. limit <= 0 means no limit.
	ListHostsByStatus(ctx context.Context, status models.HostStatus, limit int) ([]*models.Host, error)

	// DeleteHost removes the record for hostname. Destructive and
	// irreversible; returns ErrHostNotFound if absent.
	DeleteHost(ctx context.Context, hostname string) error

	// CountHostsByStatus returns the number of hosts with the given status.
	CountHostsByStatus(ctx context.Context, status models.HostStatus) (int, error)
}
