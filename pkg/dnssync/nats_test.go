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

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecordEvent(t *testing.T) {
	event := newRecordEvent("dns.record", "host1", "203.0.113.5")

	assert.Equal(t, "1.0", event.SpecVersion)
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, "dns.record.upsert", event.Subject)
	assert.Equal(t, "host1", event.Data.Hostname)
	assert.Equal(t, "203.0.113.5", event.Data.IPAddress)
	assert.Equal(t, "A", event.Data.RecordType)
	assert.False(t, event.Time.IsZero())

	// Events are unique per publish.
	other := newRecordEvent("dns.record", "host1", "203.0.113.5")
	assert.NotEqual(t, event.ID, other.ID)
}

func TestRecordTypeFor(t *testing.T) {
	tests := []struct {
		ip   string
		want string
	}{
		{"203.0.113.5", "A"},
		{"10.0.0.1", "A"},
		{"2001:db8::1", "AAAA"},
		{"::ffff:10.0.0.1", "A"}, // 4-in-6 mapped stays an A record
		{"not-an-ip", "A"},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			assert.Equal(t, tt.want, recordTypeFor(tt.ip))
		})
	}
}

func TestRecordEventJSONShape(t *testing.T) {
	event := newRecordEvent("dns.record", "host1", "2001:db8::1")

	payload, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &decoded))

	assert.Equal(t, "application/json", decoded["datacontenttype"])

	data, ok := decoded["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "AAAA", data["record_type"])
}
