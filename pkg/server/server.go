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

// Package server accepts TCP connections carrying length-prefixed JSON
// messages and dispatches registrations and heartbeats to the registration
// manager. One goroutine runs per connection; a connection carries any number
// of messages, so heartbeat clients can hold a single connection open for
// their whole lifetime.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/carverauto/beacon/pkg/logger"
	"github.com/carverauto/beacon/pkg/models"
	"github.com/carverauto/beacon/pkg/protocol"
	"github.com/carverauto/beacon/pkg/response"
)

const writeTimeout = 30 * time.Second

// Registrar is the slice of the registration manager the server dispatches to.
type Registrar interface {
	RegisterHost(ctx context.Context, hostname, ip string, msgType models.MessageType) (*models.HostRegistrationResult, error)
}

// Server owns the listener and the per-connection goroutines.
type Server struct {
	listenAddr string
	limits     models.LimitsConfig
	codec      *protocol.Codec
	registry   Registrar
	builder    *response.Builder
	limiter    *clientLimiter
	logger     logger.Logger

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
	done     chan struct{}
	stopOnce sync.Once
}

// NewServer wires the connection layer. The limiter is nil unless rate
// limiting is enabled in limits.
func NewServer(listenAddr string, limits models.LimitsConfig, registry Registrar, builder *response.Builder, log logger.Logger) *Server {
	return &Server{
		listenAddr: listenAddr,
		limits:     limits,
		codec:      protocol.NewCodec(limits.MaxFrameBytes),
		registry:   registry,
		builder:    builder,
		limiter:    newClientLimiter(limits.RateLimit),
		logger:     log,
		done:       make(chan struct{}),
	}
}

// Start listens on the configured address and accepts connections until ctx
// is canceled or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.listenAddr, err)
	}

	s.mu.Lock()
	s.listener = lis
	s.mu.Unlock()

	s.logger.Info().Str("addr", lis.Addr().String()).Msg("Listening for registrations")

	// Closing the listener is the only way to unblock Accept.
	go func() {
		select {
		case <-ctx.Done():
		case <-s.done:
		}

		s.closeListener()
	}()

	for {
		conn, err := lis.Accept()
		if err != nil {
			select {
			case <-s.done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			if errors.Is(err, net.ErrClosed) {
				return nil
			}

			s.logger.Error().Err(err).Msg("Accept failed")

			continue
		}

		s.wg.Add(1)

		go s.handleConnection(ctx, conn)
	}
}

// Stop closes the listener and waits for in-flight connection handlers, up to
// ctx's deadline.
func (s *Server) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		close(s.done)
	})

	s.closeListener()

	finished := make(chan struct{})

	go func() {
		s.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for connections: %w", ctx.Err())
	}
}

// Addr returns the bound listen address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}

	return s.listener.Addr()
}

func (s *Server) closeListener() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		_ = s.listener.Close()
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer func() { _ = conn.Close() }()

	clientIP := clientIPFor(conn)

	s.logger.Debug().Str("client_ip", clientIP).Msg("Connection accepted")

	for {
		if idle := time.Duration(s.limits.IdleTimeout); idle > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(idle))
		}

		msg, err := s.codec.ReadMessage(conn)

		// Schema errors consume the whole frame, so the stream is still
		// in sync and the connection stays usable.
		if errors.Is(err, protocol.ErrSchema) {
			resp := s.builder.BuildError(response.ErrorProtocol, err.Error(), "", 0)
			if werr := s.writeResponse(conn, resp); werr != nil {
				return
			}

			continue
		}

		if err != nil {
			s.handleReadError(conn, clientIP, err)
			return
		}

		resp := s.dispatch(ctx, msg, clientIP)

		if err := s.writeResponse(conn, resp); err != nil {
			s.logger.Debug().Err(err).Str("client_ip", clientIP).Msg("Write failed, dropping connection")
			return
		}
	}
}

// handleReadError sends a best-effort error response where the protocol
// allows one; the connection is closed in every case here.
func (s *Server) handleReadError(conn net.Conn, clientIP string, err error) {
	switch {
	case errors.Is(err, io.EOF):
		s.logger.Debug().Str("client_ip", clientIP).Msg("Connection closed by peer")
	case isTimeout(err):
		s.logger.Debug().Str("client_ip", clientIP).Msg("Idle timeout, closing connection")
	case errors.Is(err, protocol.ErrFraming):
		s.logger.Debug().Err(err).Str("client_ip", clientIP).Msg("Framing error, closing connection")
		_ = s.writeResponse(conn, s.builder.BuildError(response.ErrorProtocol, "malformed frame", "", 0))
	default:
		s.logger.Debug().Err(err).Str("client_ip", clientIP).Msg("Read failed, closing connection")
	}
}

func (s *Server) dispatch(ctx context.Context, msg *models.Message, clientIP string) *models.Response {
	switch msg.Type {
	case models.MessageTypeRegistration, models.MessageTypeHeartbeat:
	default:
		return s.builder.ValidationError(
			fmt.Sprintf("unsupported message type %q", msg.Type), msg.Hostname)
	}

	if allowed, retryAfter := s.limiter.Allow(clientIP); !allowed {
		s.logger.Debug().
			Str("client_ip", clientIP).
			Str("hostname", msg.Hostname).
			Int("retry_after", retryAfter).
			Msg("Rate limit exceeded")

		return s.builder.RateLimitError(msg.Hostname, retryAfter)
	}

	result, err := s.registry.RegisterHost(ctx, msg.Hostname, clientIP, msg.Type)
	if err != nil {
		// Only validation failures surface as errors; storage trouble
		// comes back inside the result.
		return s.builder.ValidationError(err.Error(), msg.Hostname)
	}

	return s.builder.FromResult(result)
}

func (s *Server) writeResponse(conn net.Conn, resp *models.Response) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))

	return s.codec.WriteMessage(conn, resp)
}

// clientIPFor derives the registering IP from the connection itself; the wire
// messages deliberately carry no address field.
func clientIPFor(conn net.Conn) string {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return conn.RemoteAddr().String()
	}

	return host
}

func isTimeout(err error) bool {
	var netErr net.Error

	return errors.As(err, &netErr) && netErr.Timeout()
}
