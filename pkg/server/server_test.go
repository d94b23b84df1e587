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
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/beacon/pkg/db"
	"github.com/carverauto/beacon/pkg/dnssync"
	"github.com/carverauto/beacon/pkg/iptracker"
	"github.com/carverauto/beacon/pkg/logger"
	"github.com/carverauto/beacon/pkg/models"
	"github.com/carverauto/beacon/pkg/protocol"
	"github.com/carverauto/beacon/pkg/registration"
	"github.com/carverauto/beacon/pkg/response"
)

func defaultLimits() models.LimitsConfig {
	return models.LimitsConfig{
		MaxFrameBytes: 65536,
		IdleTimeout:   models.Duration(time.Minute),
	}
}

type testServer struct {
	server *Server
	store  *db.InMemoryStore
	done   chan error
}

func startTestServer(t *testing.T, limits models.LimitsConfig) *testServer {
	t.Helper()

	log := logger.NewTestLogger()
	store := db.NewInMemoryStore()
	tracker := iptracker.NewTracker(models.TrackerConfig{MaxHistoryEntries: 100}, store, log)
	manager := registration.NewManager(store, dnssync.NewNoopSyncer(), tracker, log)
	builder := response.NewBuilder(models.ResponseConfig{Verbosity: response.VerbosityDetailed}, log)

	srv := NewServer("127.0.0.1:0", limits, manager, builder, log)

	done := make(chan error, 1)

	go func() {
		done <- srv.Start(context.Background())
	}()

	require.Eventually(t, func() bool {
		return srv.Addr() != nil
	}, 2*time.Second, 5*time.Millisecond)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		require.NoError(t, srv.Stop(ctx))

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("server did not stop")
		}
	})

	return &testServer{server: srv, store: store, done: done}
}

func dialServer(t *testing.T, srv *Server) net.Conn {
	t.Helper()

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)

	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func sendMessage(t *testing.T, conn net.Conn, msgType models.MessageType, hostname string) {
	t.Helper()

	codec := protocol.NewCodec(65536)
	msg := &models.Message{
		Version:   models.ProtocolVersion,
		Type:      msgType,
		Hostname:  hostname,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	require.NoError(t, codec.WriteMessage(conn, msg))
}

// readResponse reads one raw frame and decodes the response payload.
func readResponse(t *testing.T, conn net.Conn) *models.Response {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var prefix [4]byte

	_, err := io.ReadFull(conn, prefix[:])
	require.NoError(t, err)

	payload := make([]byte, binary.BigEndian.Uint32(prefix[:]))
	_, err = io.ReadFull(conn, payload)
	require.NoError(t, err)

	var resp models.Response

	require.NoError(t, json.Unmarshal(payload, &resp))

	return &resp
}

func writeRawFrame(t *testing.T, conn net.Conn, declaredLen uint32, payload []byte) {
	t.Helper()

	var prefix [4]byte

	binary.BigEndian.PutUint32(prefix[:], declaredLen)

	_, err := conn.Write(append(prefix[:], payload...))
	require.NoError(t, err)
}

func TestRegisterAndHeartbeatOverOneConnection(t *testing.T) {
	ts := startTestServer(t, defaultLimits())
	conn := dialServer(t, ts.server)

	sendMessage(t, conn, models.MessageTypeRegistration, "workstation-1")
	resp := readResponse(t, conn)

	assert.Equal(t, models.ResponseStatusSuccess, resp.Status)
	assert.Equal(t, response.ResultNewRegistration, resp.ResultType)
	assert.Equal(t, "workstation-1", resp.Hostname)
	assert.Equal(t, "127.0.0.1", resp.IPAddress)

	// Heartbeats reuse the connection; same IP means a timestamp refresh.
	sendMessage(t, conn, models.MessageTypeHeartbeat, "workstation-1")
	resp = readResponse(t, conn)

	assert.Equal(t, models.ResponseStatusSuccess, resp.Status)
	assert.Equal(t, response.ResultHeartbeatUpdate, resp.ResultType)

	host, err := ts.store.GetHostByHostname(context.Background(), "workstation-1")
	require.NoError(t, err)
	assert.Equal(t, models.HostStatusOnline, host.Status)
	assert.Equal(t, "127.0.0.1", host.CurrentIP)
}

func TestNewConnectionPerMessage(t *testing.T) {
	ts := startTestServer(t, defaultLimits())

	conn := dialServer(t, ts.server)
	sendMessage(t, conn, models.MessageTypeRegistration, "roamer")
	resp := readResponse(t, conn)
	require.Equal(t, response.ResultNewRegistration, resp.ResultType)
	require.NoError(t, conn.Close())

	conn = dialServer(t, ts.server)
	sendMessage(t, conn, models.MessageTypeHeartbeat, "roamer")
	resp = readResponse(t, conn)
	assert.Equal(t, response.ResultHeartbeatUpdate, resp.ResultType)
}

func TestValidationErrorKeepsConnectionOpen(t *testing.T) {
	ts := startTestServer(t, defaultLimits())
	conn := dialServer(t, ts.server)

	sendMessage(t, conn, models.MessageTypeRegistration, "bad host!")
	resp := readResponse(t, conn)

	assert.Equal(t, models.ResponseStatusError, resp.Status)
	assert.Equal(t, response.ErrorValidation, resp.ErrorType)

	sendMessage(t, conn, models.MessageTypeRegistration, "good-host")
	resp = readResponse(t, conn)
	assert.Equal(t, models.ResponseStatusSuccess, resp.Status)
}

func TestUnknownMessageTypeKeepsConnectionOpen(t *testing.T) {
	ts := startTestServer(t, defaultLimits())
	conn := dialServer(t, ts.server)

	sendMessage(t, conn, models.MessageType("subscription"), "host-a")
	resp := readResponse(t, conn)

	assert.Equal(t, models.ResponseStatusError, resp.Status)
	assert.Equal(t, response.ErrorValidation, resp.ErrorType)

	sendMessage(t, conn, models.MessageTypeRegistration, "host-a")
	resp = readResponse(t, conn)
	assert.Equal(t, models.ResponseStatusSuccess, resp.Status)
}

func TestSchemaErrorKeepsConnectionOpen(t *testing.T) {
	ts := startTestServer(t, defaultLimits())
	conn := dialServer(t, ts.server)

	payload := []byte(`{"version":"1.0","type":"registration"}`) // missing hostname+timestamp
	writeRawFrame(t, conn, uint32(len(payload)), payload)

	resp := readResponse(t, conn)
	assert.Equal(t, models.ResponseStatusError, resp.Status)
	assert.Equal(t, response.ErrorProtocol, resp.ErrorType)

	sendMessage(t, conn, models.MessageTypeRegistration, "host-b")
	resp = readResponse(t, conn)
	assert.Equal(t, models.ResponseStatusSuccess, resp.Status)
}

func TestFramingErrorClosesConnection(t *testing.T) {
	ts := startTestServer(t, defaultLimits())
	conn := dialServer(t, ts.server)

	// Declared length far beyond the frame cap.
	writeRawFrame(t, conn, 1<<30, nil)

	resp := readResponse(t, conn)
	assert.Equal(t, models.ResponseStatusError, resp.Status)
	assert.Equal(t, response.ErrorProtocol, resp.ErrorType)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var buf [1]byte

	_, err := conn.Read(buf[:])
	assert.ErrorIs(t, err, io.EOF)
}

func TestRateLimit(t *testing.T) {
	limits := defaultLimits()
	limits.RateLimit = models.RateLimitConfig{
		Enabled:    true,
		Burst:      1,
		PerSeconds: models.Duration(time.Hour),
	}

	ts := startTestServer(t, limits)
	conn := dialServer(t, ts.server)

	sendMessage(t, conn, models.MessageTypeRegistration, "limited-host")
	resp := readResponse(t, conn)
	require.Equal(t, models.ResponseStatusSuccess, resp.Status)

	sendMessage(t, conn, models.MessageTypeHeartbeat, "limited-host")
	resp = readResponse(t, conn)

	assert.Equal(t, models.ResponseStatusError, resp.Status)
	assert.Equal(t, response.ErrorRateLimit, resp.ErrorType)
	assert.Greater(t, resp.RetryAfter, 0)
}

func TestConcurrentClients(t *testing.T) {
	ts := startTestServer(t, defaultLimits())

	const clients = 20

	errCh := make(chan error, clients)

	for i := 0; i < clients; i++ {
		hostname := "client-" + string(rune('a'+i))

		go func() {
			conn, err := net.Dial("tcp", ts.server.Addr().String())
			if err != nil {
				errCh <- err
				return
			}
			defer func() { _ = conn.Close() }()

			codec := protocol.NewCodec(65536)
			msg := &models.Message{
				Version:   models.ProtocolVersion,
				Type:      models.MessageTypeRegistration,
				Hostname:  hostname,
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			}

			if err := codec.WriteMessage(conn, msg); err != nil {
				errCh <- err
				return
			}

			_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

			var prefix [4]byte
			if _, err := io.ReadFull(conn, prefix[:]); err != nil {
				errCh <- err
				return
			}

			payload := make([]byte, binary.BigEndian.Uint32(prefix[:]))
			_, err = io.ReadFull(conn, payload)
			errCh <- err
		}()
	}

	for i := 0; i < clients; i++ {
		require.NoError(t, <-errCh)
	}

	count, err := ts.store.CountHostsByStatus(context.Background(), models.HostStatusOnline)
	require.NoError(t, err)
	assert.Equal(t, clients, count)
}

func TestStopUnblocksStart(t *testing.T) {
	log := logger.NewTestLogger()
	store := db.NewInMemoryStore()
	tracker := iptracker.NewTracker(models.TrackerConfig{MaxHistoryEntries: 10}, store, log)
	manager := registration.NewManager(store, dnssync.NewNoopSyncer(), tracker, log)
	builder := response.NewBuilder(models.ResponseConfig{Verbosity: response.VerbosityMinimal}, log)

	srv := NewServer("127.0.0.1:0", defaultLimits(), manager, builder, log)

	done := make(chan error, 1)

	go func() {
		done <- srv.Start(context.Background())
	}()

	require.Eventually(t, func() bool { return srv.Addr() != nil }, 2*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, srv.Stop(ctx))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
}

func TestClientLimiterDisabled(t *testing.T) {
	limiter := newClientLimiter(models.RateLimitConfig{})
	require.Nil(t, limiter)

	allowed, retryAfter := limiter.Allow("192.0.2.1")
	assert.True(t, allowed)
	assert.Zero(t, retryAfter)
}

func TestClientLimiterPerClientBuckets(t *testing.T) {
	limiter := newClientLimiter(models.RateLimitConfig{
		Enabled:    true,
		Burst:      2,
		PerSeconds: models.Duration(time.Hour),
	})
	require.NotNil(t, limiter)

	for i := 0; i < 2; i++ {
		allowed, _ := limiter.Allow("192.0.2.1")
		assert.True(t, allowed)
	}

	allowed, retryAfter := limiter.Allow("192.0.2.1")
	assert.False(t, allowed)
	assert.Greater(t, retryAfter, 0)

	// A different client has its own bucket.
	allowed, _ = limiter.Allow("192.0.2.2")
	assert.True(t, allowed)
}
