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

// ProtocolVersion is the wire protocol version spoken by this server.
const ProtocolVersion = "1.0"

// MessageType tags an inbound wire message.
type MessageType string

const (
	MessageTypeRegistration MessageType = "registration"
	MessageTypeHeartbeat    MessageType = "heartbeat"
	MessageTypeResponse     MessageType = "response"
)

// ResponseStatus is the outcome carried on a wire response.
type ResponseStatus string

const (
	ResponseStatusSuccess ResponseStatus = "success"
	ResponseStatusError   ResponseStatus = "error"
)

// Message is one decoded wire message from a client. Timestamp is
// informational; the server uses its own clock for last_seen.
type Message struct {
	Version   string      `json:"version"`
	Type      MessageType `json:"type"`
	Hostname  string      `json:"hostname"`
	Timestamp string      `json:"timestamp"`
}

// ServerInfo is an optional block attached to full-verbosity responses.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Response is one outbound wire message. Version, Type, Status, Message and
// Timestamp are always present; the remaining fields depend on the configured
// verbosity and on whether the response reports success or an error.
type Response struct {
	Version    string         `json:"version"`
	Type       MessageType    `json:"type"`
	Status     ResponseStatus `json:"status"`
	Message    string         `json:"message"`
	Timestamp  string         `json:"timestamp"`
	ResultType string         `json:"result_type,omitempty"`
	ErrorType  string         `json:"error_type,omitempty"`
	Hostname   string         `json:"hostname,omitempty"`
	IPAddress  string         `json:"ip_address,omitempty"`
	PreviousIP string         `json:"previous_ip,omitempty"`
	// PreviousStatus is populated only when a host is reactivated from
	// offline; consumers use its presence to distinguish reactivation from
	// an in-place IP change.
	PreviousStatus string      `json:"previous_status,omitempty"`
	RetryAfter     int         `json:"retry_after,omitempty"`
	ServerInfo     *ServerInfo `json:"server_info,omitempty"`
}
