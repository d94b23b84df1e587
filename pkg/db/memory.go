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

package db

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/carverauto/beacon/pkg/models"
)

// InMemoryStore implements Service against a mutex-guarded map. It is used by
// tests and by standalone deployments that run without Postgres. All
// mutations happen under one lock, which gives the per-hostname atomicity the
// interface requires.
type InMemoryStore struct {
	mu    sync.RWMutex
	hosts map[string]*models.Host
}

var _ Service = (*InMemoryStore)(nil)

// NewInMemoryStore creates an empty in-memory host store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		hosts: make(map[string]*models.Host),
	}
}

func (*InMemoryStore) Close() error { return nil }

func (s *InMemoryStore) CreateHost(_ context.Context, hostname, ip string) (*models.Host, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.hosts[hostname]; ok {
		return nil, ErrDuplicateHost
	}

	now := time.Now().UTC()
	host := &models.Host{
		Hostname:  hostname,
		CurrentIP: ip,
		Status:    models.HostStatusOnline,
		FirstSeen: now,
		LastSeen:  now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.hosts[hostname] = host

	return copyHost(host), nil
}

func (s *InMemoryStore) GetHostByHostname(_ context.Context, hostname string) (*models.Host, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	host, ok := s.hosts[hostname]
	if !ok {
		return nil, ErrHostNotFound
	}

	return copyHost(host), nil
}

func (s *InMemoryStore) UpdateHostIP(_ context.Context, hostname, ip string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	host, ok := s.hosts[hostname]
	if !ok {
		return ErrHostNotFound
	}

	now := time.Now().UTC()
	host.CurrentIP = ip
	host.Status = models.HostStatusOnline
	host.LastSeen = now
	host.UpdatedAt = now

	return nil
}

func (s *InMemoryStore) TouchLastSeen(_ context.Context, hostname string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	host, ok := s.hosts[hostname]
	if !ok {
		return ErrHostNotFound
	}

	now := time.Now().UTC()
	host.Status = models.HostStatusOnline
	host.LastSeen = now
	host.UpdatedAt = now

	return nil
}

func (s *InMemoryStore) MarkHostOffline(_ context.Context, hostname string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	host, ok := s.hosts[hostname]
	if !ok {
		return ErrHostNotFound
	}

	if host.Status == models.HostStatusOffline {
		return nil
	}

	host.Status = models.HostStatusOffline
	host.UpdatedAt = time.Now().UTC()

	return nil
}

func (s *InMemoryStore) ListHostsByStatus(_ context.Context, status models.HostStatus, limit int) ([]*models.Host, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*models.Host, 0, len(s.hosts))

	for _, host := range s.hosts {
		if host.Status == status {
			matched = append(matched, copyHost(host))
		}
	}

	// Least recently seen first, so a bounded sweep always sees the hosts
	// most likely to have timed out.
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].LastSeen.Before(matched[j].LastSeen)
	})

	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	return matched, nil
}

func (s *InMemoryStore) DeleteHost(_ context.Context, hostname string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.hosts[hostname]; !ok {
		return ErrHostNotFound
	}

	delete(s.hosts, hostname)

	return nil
}

func (s *InMemoryStore) CountHostsByStatus(_ context.Context, status models.HostStatus) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0

	for _, host := range s.hosts {
		if host.Status == status {
			count++
		}
	}

	return count, nil
}

func copyHost(h *models.Host) *models.Host {
	c := *h
	return &c
}
