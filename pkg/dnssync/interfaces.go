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

// Package dnssync keeps the downstream DNS authority pointed at each host's
// current IP. The core treats it as fire-and-forget: failures are logged by
// the caller, never surfaced to the registering client.
package dnssync

import "context"

//go:generate mockgen -destination=mock_dnssync.go -package=dnssync github.com/carverauto/beacon/pkg/dnssync Syncer

// Syncer is the DNS-zone synchronization collaborator.
type Syncer interface {
	// UpsertRecord points hostname's A/AAAA record at ip. Retry semantics
	// belong to the implementation.
	UpsertRecord(ctx context.Context, hostname, ip string) error

	Close() error
}
