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

package dnssync

import "context"

// NoopSyncer discards record upserts. Used when no DNS authority is
// configured.
type NoopSyncer struct{}

var _ Syncer = (*NoopSyncer)(nil)

func NewNoopSyncer() *NoopSyncer { return &NoopSyncer{} }

func (*NoopSyncer) UpsertRecord(_ context.Context, _, _ string) error { return nil }

func (*NoopSyncer) Close() error { return nil }
