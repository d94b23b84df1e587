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

package protocol

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/beacon/pkg/models"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	codec := NewCodec(64 * 1024)

	msg := &models.Message{
		Version:   models.ProtocolVersion,
		Type:      models.MessageTypeRegistration,
		Hostname:  "host1",
		Timestamp: "2025-01-01T00:00:00Z",
	}

	frame, err := codec.Encode(msg)
	require.NoError(t, err)

	decoded, consumed, err := codec.Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, len(frame), consumed)
	assert.Equal(t, msg, decoded)
}

func TestDecodeShortBuffer(t *testing.T) {
	codec := NewCodec(64 * 1024)

	msg := &models.Message{
		Version:   models.ProtocolVersion,
		Type:      models.MessageTypeHeartbeat,
		Hostname:  "host1",
		Timestamp: "2025-01-01T00:00:00Z",
	}

	frame, err := codec.Encode(msg)
	require.NoError(t, err)

	tests := []struct {
		name string
		buf  []byte
	}{
		{"empty", nil},
		{"partial prefix", frame[:3]},
		{"prefix only", frame[:4]},
		{"partial payload", frame[:len(frame)-1]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, consumed, err := codec.Decode(tt.buf)
			require.ErrorIs(t, err, ErrShortFrame)
			assert.ErrorIs(t, err, ErrFraming)
			assert.Zero(t, consumed)
		})
	}
}

func TestDecodeOversizedFrame(t *testing.T) {
	codec := NewCodec(16)

	var buf [8]byte

	binary.BigEndian.PutUint32(buf[:], 1<<20)

	_, _, err := codec.Decode(buf[:])
	require.ErrorIs(t, err, ErrFrameTooLarge)
	assert.ErrorIs(t, err, ErrFraming)
}

func TestDecodeSchemaErrors(t *testing.T) {
	codec := NewCodec(64 * 1024)

	frameFor := func(payload string) []byte {
		out := make([]byte, 4+len(payload))
		binary.BigEndian.PutUint32(out, uint32(len(payload)))
		copy(out[4:], payload)

		return out
	}

	tests := []struct {
		name    string
		payload string
	}{
		{"malformed json", `{"version":`},
		{"missing type", `{"version":"1.0","hostname":"a","timestamp":"t"}`},
		{"missing version", `{"type":"registration","hostname":"a","timestamp":"t"}`},
		{"missing hostname", `{"version":"1.0","type":"heartbeat","timestamp":"t"}`},
		{"missing timestamp", `{"version":"1.0","type":"registration","hostname":"a"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := frameFor(tt.payload)

			_, consumed, err := codec.Decode(frame)
			require.ErrorIs(t, err, ErrSchema)
			// A schema error still consumes the whole frame so the stream
			// stays aligned.
			assert.Equal(t, len(frame), consumed)
		})
	}
}

func TestDecodeUnknownTypePassesThrough(t *testing.T) {
	codec := NewCodec(64 * 1024)
	payload := `{"version":"1.0","type":"status","hostname":"a","timestamp":"t"}`

	out := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(out, uint32(len(payload)))
	copy(out[4:], payload)

	msg, _, err := codec.Decode(out)
	require.NoError(t, err)
	assert.Equal(t, models.MessageType("status"), msg.Type)
}

func TestReadMessage(t *testing.T) {
	codec := NewCodec(64 * 1024)

	msg := &models.Message{
		Version:   models.ProtocolVersion,
		Type:      models.MessageTypeRegistration,
		Hostname:  "host1",
		Timestamp: "2025-01-01T00:00:00Z",
	}

	var stream bytes.Buffer

	require.NoError(t, codec.WriteMessage(&stream, msg))
	require.NoError(t, codec.WriteMessage(&stream, msg))

	first, err := codec.ReadMessage(&stream)
	require.NoError(t, err)
	assert.Equal(t, msg, first)

	second, err := codec.ReadMessage(&stream)
	require.NoError(t, err)
	assert.Equal(t, msg, second)

	_, err = codec.ReadMessage(&stream)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadMessageCutMidFrame(t *testing.T) {
	codec := NewCodec(64 * 1024)

	msg := &models.Message{
		Version:   models.ProtocolVersion,
		Type:      models.MessageTypeHeartbeat,
		Hostname:  "host1",
		Timestamp: "2025-01-01T00:00:00Z",
	}

	frame, err := codec.Encode(msg)
	require.NoError(t, err)

	_, err = codec.ReadMessage(bytes.NewReader(frame[:len(frame)-2]))
	require.ErrorIs(t, err, ErrShortFrame)
}

func TestEncodeResponsePayload(t *testing.T) {
	codec := NewCodec(64 * 1024)

	resp := &models.Response{
		Version:   models.ProtocolVersion,
		Type:      models.MessageTypeResponse,
		Status:    models.ResponseStatusSuccess,
		Message:   "ok",
		Timestamp: "2025-01-01T00:00:00Z",
	}

	frame, err := codec.Encode(resp)
	require.NoError(t, err)
	assert.Equal(t, uint32(len(frame)-4), binary.BigEndian.Uint32(frame))
}
