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

import "time"

// RegistrationAction describes what the registration state machine did with
// an inbound registration or heartbeat.
type RegistrationAction string

const (
	ActionCreated          RegistrationAction = "created"
	ActionUpdatedIP        RegistrationAction = "updated_ip"
	ActionUpdatedTimestamp RegistrationAction = "updated_timestamp"
	ActionReactivated      RegistrationAction = "reactivated"
	ActionError            RegistrationAction = "error"
)

// HostRegistrationResult is the per-message outcome of the registration state
// machine.
type HostRegistrationResult struct {
	Success   bool               `json:"success"`
	Action    RegistrationAction `json:"action"`
	Hostname  string             `json:"hostname"`
	IPAddress string             `json:"ip_address"`
	// PreviousIP is set when the accepted message changed the host's IP.
	PreviousIP string `json:"previous_ip,omitempty"`
	// PreviousStatus is set only when the host was reactivated from offline.
	PreviousStatus HostStatus `json:"previous_status,omitempty"`
	Message        string     `json:"message"`
	Timestamp      time.Time  `json:"timestamp"`
}

// TimeoutResult reports one heartbeat timeout sweep.
type TimeoutResult struct {
	HostsChecked  int           `json:"hosts_checked"`
	HostsTimedOut int           `json:"hosts_timed_out"`
	TimedOutHosts []string      `json:"timed_out_hosts"`
	CheckDuration time.Duration `json:"check_duration"`
}

// StatusChangeResult reports the offline-transition step that follows a sweep.
type StatusChangeResult struct {
	TimeoutResult

	HostsMarkedOffline int      `json:"hosts_marked_offline"`
	FailedHosts        []string `json:"failed_hosts,omitempty"`
	Success            bool     `json:"success"`
}

// IPChangeStats aggregates the tracker's in-memory history.
type IPChangeStats struct {
	TotalChanges    int            `json:"total_changes"`
	UniqueHosts     int            `json:"unique_hosts"`
	IPv4Changes     int            `json:"ipv4_changes"`
	IPv6Changes     int            `json:"ipv6_changes"`
	PrivateIPs      int            `json:"private_ips"`
	PublicIPs       int            `json:"public_ips"`
	ChangesByReason map[string]int `json:"changes_by_reason"`
	ChangesLastHour int            `json:"changes_last_hour"`
	ChangesLastDay  int            `json:"changes_last_day"`
}

// MonitorStats is a snapshot of the heartbeat timeout engine's counters.
type MonitorStats struct {
	TotalSweeps          int64         `json:"total_sweeps"`
	TotalTimeouts        int64         `json:"total_timeouts"`
	AverageSweepDuration time.Duration `json:"average_sweep_duration"`
	LastSweep            time.Time     `json:"last_sweep"`
}
