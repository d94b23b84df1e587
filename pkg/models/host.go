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

// Package models contains the shared data types for the beacon service.
package models

import "time"

// HostStatus is the liveness state of a registered host.
type HostStatus string

const (
	HostStatusOnline  HostStatus = "online"
	HostStatusOffline HostStatus = "offline"
)

// Host is a registered host record. Exactly one record exists per hostname;
// while Status is online, LastSeen reflects the most recent accepted
// registration or heartbeat.
type Host struct {
	Hostname  string     `json:"hostname"`
	CurrentIP string     `json:"current_ip"`
	Status    HostStatus `json:"status"`
	FirstSeen time.Time  `json:"first_seen"`
	LastSeen  time.Time  `json:"last_seen"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// IPChangeEvent records one observed IP transition for a hostname. Events are
// held in a bounded in-memory history and are lost on restart.
type IPChangeEvent struct {
	ID              string    `json:"id"`
	Hostname        string    `json:"hostname"`
	PreviousIP      string    `json:"previous_ip"`
	NewIP           string    `json:"new_ip"`
	ChangeTime      time.Time `json:"change_time"`
	ChangeReason    string    `json:"change_reason"`
	DetectionMethod string    `json:"detection_method"`
}

// ChangeDetection is the outcome of comparing a host's stored IP against a
// newly reported one.
type ChangeDetection struct {
	Hostname   string `json:"hostname"`
	PreviousIP string `json:"previous_ip"`
	NewIP      string `json:"new_ip"`
}
