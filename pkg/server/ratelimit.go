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

package server

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/carverauto/beacon/pkg/models"
)

// maxTrackedClients bounds the limiter map; beyond it, buckets idle for
// longer than pruneIdleAfter are evicted on the next lookup.
const (
	maxTrackedClients = 4096
	pruneIdleAfter    = 10 * time.Minute
)

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiter applies a token bucket per client IP. Nil receivers allow
// everything, so the server can hold an unconfigured limiter without
// branching at every message.
type clientLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	clients map[string]*clientBucket
}

func newClientLimiter(cfg models.RateLimitConfig) *clientLimiter {
	if !cfg.Enabled || cfg.Burst <= 0 || cfg.PerSeconds <= 0 {
		return nil
	}

	return &clientLimiter{
		limit:   rate.Every(time.Duration(cfg.PerSeconds)),
		burst:   cfg.Burst,
		clients: make(map[string]*clientBucket),
	}
}

// Allow reports whether clientIP may send another message now. When denied it
// also returns the number of whole seconds until a token becomes available,
// suitable for the retry_after response field.
func (l *clientLimiter) Allow(clientIP string) (allowed bool, retryAfter int) {
	if l == nil {
		return true, 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()

	bucket, ok := l.clients[clientIP]
	if !ok {
		if len(l.clients) >= maxTrackedClients {
			l.pruneLocked(now)
		}

		bucket = &clientBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[clientIP] = bucket
	}

	bucket.lastSeen = now

	res := bucket.limiter.Reserve()
	if delay := res.Delay(); delay > 0 {
		res.Cancel()

		return false, int(math.Ceil(delay.Seconds()))
	}

	return true, 0
}

func (l *clientLimiter) pruneLocked(now time.Time) {
	for ip, bucket := range l.clients {
		if now.Sub(bucket.lastSeen) > pruneIdleAfter {
			delete(l.clients, ip)
		}
	}
}
