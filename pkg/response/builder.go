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

// Package response constructs validated wire responses. Every response is
// checked against a success or error template before it is handed to the
// connection layer; a template violation is an internal bug and falls back
// to a minimal well-formed response instead of failing the send.
package response

import (
	"errors"
	"fmt"
	"time"

	"github.com/carverauto/beacon/pkg/logger"
	"github.com/carverauto/beacon/pkg/models"
	"github.com/carverauto/beacon/pkg/version"
)

// Result types for success responses.
const (
	ResultNewRegistration = "new_registration"
	ResultIPChange        = "ip_change"
	ResultHeartbeatUpdate = "heartbeat_update"
	ResultReconnection    = "reconnection"
)

// Error types for error responses.
const (
	ErrorValidation = "validation_error"
	ErrorDatabase   = "database_error"
	ErrorRateLimit  = "rate_limit_error"
	ErrorProtocol   = "protocol_error"
	ErrorInternal   = "internal_error"
)

// Verbosity levels.
const (
	VerbosityMinimal  = "minimal"
	VerbosityDetailed = "detailed"
	VerbosityFull     = "full"
)

var (
	errMissingRequiredField = errors.New("response missing required field")
	errTemplateMismatch     = errors.New("response does not match template")
)

// Extra carries the optional success-response fields.
type Extra struct {
	PreviousIP     string
	PreviousStatus models.HostStatus
}

// Builder constructs wire responses at a configured verbosity. It is
// stateless apart from configuration and safe for concurrent use.
type Builder struct {
	verbosity  string
	serverInfo *models.ServerInfo
	logger     logger.Logger
}

// NewBuilder creates a Builder from the response configuration.
func NewBuilder(cfg models.ResponseConfig, log logger.Logger) *Builder {
	verbosity := cfg.Verbosity
	if verbosity == "" {
		verbosity = VerbosityDetailed
	}

	var info *models.ServerInfo
	if cfg.ServerName != "" {
		info = &models.ServerInfo{Name: cfg.ServerName, Version: version.GetVersion()}
	}

	return &Builder{
		verbosity:  verbosity,
		serverInfo: info,
		logger:     log,
	}
}

// BuildSuccess constructs a success response for resultType. extra may be nil.
func (b *Builder) BuildSuccess(resultType, hostname, ip, message string, extra *Extra) *models.Response {
	resp := &models.Response{
		Version:   models.ProtocolVersion,
		Type:      models.MessageTypeResponse,
		Status:    models.ResponseStatusSuccess,
		Message:   message,
		Timestamp: timestamp(),
	}

	if b.verbosity != VerbosityMinimal {
		resp.ResultType = resultType
		resp.Hostname = hostname
		resp.IPAddress = ip

		if extra != nil {
			resp.PreviousIP = extra.PreviousIP
			resp.PreviousStatus = string(extra.PreviousStatus)
		}
	}

	if b.verbosity == VerbosityFull {
		resp.ServerInfo = b.serverInfo
	}

	return b.validated(resp)
}

// BuildError constructs an error response for errorType. hostname may be
// empty when the failure occurred before a hostname was known; retryAfter is
// seconds and only attached when positive.
func (b *Builder) BuildError(errorType, message, hostname string, retryAfter int) *models.Response {
	resp := &models.Response{
		Version:   models.ProtocolVersion,
		Type:      models.MessageTypeResponse,
		Status:    models.ResponseStatusError,
		Message:   message,
		Timestamp: timestamp(),
	}

	if b.verbosity != VerbosityMinimal {
		resp.ErrorType = errorType
		resp.Hostname = hostname

		if retryAfter > 0 {
			resp.RetryAfter = retryAfter
		}
	}

	if b.verbosity == VerbosityFull {
		resp.ServerInfo = b.serverInfo
	}

	return b.validated(resp)
}

// NewRegistration builds the canonical created-host response.
func (b *Builder) NewRegistration(hostname, ip string) *models.Response {
	msg := fmt.Sprintf("New host '%s' registered with IP %s", hostname, ip)
	return b.BuildSuccess(ResultNewRegistration, hostname, ip, msg, nil)
}

// IPChange builds the response for an online host that changed IP.
func (b *Builder) IPChange(hostname, ip, previousIP string) *models.Response {
	msg := fmt.Sprintf("Host '%s' IP changed from %s to %s", hostname, previousIP, ip)
	return b.BuildSuccess(ResultIPChange, hostname, ip, msg, &Extra{PreviousIP: previousIP})
}

// HeartbeatUpdate builds the response for a same-IP refresh.
func (b *Builder) HeartbeatUpdate(hostname, ip string) *models.Response {
	msg := fmt.Sprintf("Heartbeat received from '%s'", hostname)
	return b.BuildSuccess(ResultHeartbeatUpdate, hostname, ip, msg, nil)
}

// Reconnection builds the response for an offline host coming back, with or
// without a new IP. previousIP is empty when the IP did not change.
func (b *Builder) Reconnection(hostname, ip, previousIP string, previousStatus models.HostStatus) *models.Response {
	msg := fmt.Sprintf("Host '%s' reconnected with IP %s", hostname, ip)
	return b.BuildSuccess(ResultReconnection, hostname, ip, msg, &Extra{
		PreviousIP:     previousIP,
		PreviousStatus: previousStatus,
	})
}

// ValidationError builds the response for a malformed hostname or IP.
func (b *Builder) ValidationError(message, hostname string) *models.Response {
	return b.BuildError(ErrorValidation, message, hostname, 0)
}

// DatabaseError builds the response for a storage collaborator failure. The
// underlying error is logged by the caller, never exposed on the wire.
func (b *Builder) DatabaseError(hostname string) *models.Response {
	return b.BuildError(ErrorDatabase, "Internal storage error, please retry", hostname, 0)
}

// RateLimitError builds the response for an over-limit client.
func (b *Builder) RateLimitError(hostname string, retryAfter int) *models.Response {
	return b.BuildError(ErrorRateLimit, "Rate limit exceeded", hostname, retryAfter)
}

// FromResult maps a registration state-machine result onto the canonical
// response for its action.
func (b *Builder) FromResult(res *models.HostRegistrationResult) *models.Response {
	switch res.Action {
	case models.ActionCreated:
		return b.NewRegistration(res.Hostname, res.IPAddress)
	case models.ActionUpdatedIP:
		return b.IPChange(res.Hostname, res.IPAddress, res.PreviousIP)
	case models.ActionUpdatedTimestamp:
		return b.HeartbeatUpdate(res.Hostname, res.IPAddress)
	case models.ActionReactivated:
		return b.Reconnection(res.Hostname, res.IPAddress, res.PreviousIP, res.PreviousStatus)
	case models.ActionError:
		return b.DatabaseError(res.Hostname)
	default:
		return b.BuildError(ErrorInternal, "Unknown registration action", res.Hostname, 0)
	}
}

// Validate checks resp against the success or error template.
func (b *Builder) Validate(resp *models.Response) error {
	if resp.Version != models.ProtocolVersion {
		return fmt.Errorf("%w: version", errMissingRequiredField)
	}

	if resp.Type != models.MessageTypeResponse {
		return fmt.Errorf("%w: type", errMissingRequiredField)
	}

	if resp.Message == "" {
		return fmt.Errorf("%w: message", errMissingRequiredField)
	}

	if resp.Timestamp == "" {
		return fmt.Errorf("%w: timestamp", errMissingRequiredField)
	}

	switch resp.Status {
	case models.ResponseStatusSuccess:
		if resp.ErrorType != "" || resp.RetryAfter != 0 {
			return fmt.Errorf("%w: success response carries error fields", errTemplateMismatch)
		}
	case models.ResponseStatusError:
		if resp.ResultType != "" {
			return fmt.Errorf("%w: error response carries result_type", errTemplateMismatch)
		}
	default:
		return fmt.Errorf("%w: status %q", errTemplateMismatch, resp.Status)
	}

	return nil
}

// validated returns resp if it passes template validation, otherwise a
// minimal fallback so the connection layer always has something to send.
func (b *Builder) validated(resp *models.Response) *models.Response {
	if err := b.Validate(resp); err != nil {
		b.logger.Error().Err(err).Msg("Built response failed template validation, falling back to minimal response")

		status := resp.Status
		if status != models.ResponseStatusSuccess {
			status = models.ResponseStatusError
		}

		message := resp.Message
		if message == "" {
			message = "Internal server error"
		}

		return &models.Response{
			Version:   models.ProtocolVersion,
			Type:      models.MessageTypeResponse,
			Status:    status,
			Message:   message,
			Timestamp: timestamp(),
		}
	}

	return resp
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
