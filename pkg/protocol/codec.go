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

// Package protocol implements the length-prefixed JSON wire format: a 4-byte
// big-endian unsigned length followed by that many bytes of UTF-8 JSON.
package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/carverauto/beacon/pkg/models"
)

const lengthPrefixSize = 4

var (
	// ErrFraming covers malformed or incomplete frames. Connections are
	// closed after a best-effort error response.
	ErrFraming = errors.New("framing error")

	// ErrShortFrame reports that the buffer holds less than one complete
	// frame; the caller must keep reading. It is a framing error.
	ErrShortFrame = fmt.Errorf("%w: incomplete frame", ErrFraming)

	// ErrFrameTooLarge reports a length prefix above the configured cap.
	ErrFrameTooLarge = fmt.Errorf("%w: frame exceeds maximum size", ErrFraming)

	// ErrSchema covers syntactically valid frames whose JSON payload is
	// malformed or missing required fields. The connection stays open.
	ErrSchema = errors.New("schema error")
)

// Codec encodes and decodes framed wire messages. It has no state beyond the
// frame size cap and is safe for concurrent use.
type Codec struct {
	maxFrameBytes int
}

// NewCodec creates a codec enforcing the given payload size cap. A cap of
// zero or less disables the check.
func NewCodec(maxFrameBytes int) *Codec {
	return &Codec{maxFrameBytes: maxFrameBytes}
}

// Encode frames v as a length-prefixed JSON payload.
func (c *Codec) Encode(v interface{}) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSchema, err)
	}

	if c.maxFrameBytes > 0 && len(payload) > c.maxFrameBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}

	out := make([]byte, lengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(out, uint32(len(payload)))
	copy(out[lengthPrefixSize:], payload)

	return out, nil
}

// Decode parses one framed message from the front of buf, returning the
// message and the number of bytes consumed. ErrShortFrame means buf does not
// yet hold a complete frame and the caller should read more bytes.
func (c *Codec) Decode(buf []byte) (*models.Message, int, error) {
	if len(buf) < lengthPrefixSize {
		return nil, 0, ErrShortFrame
	}

	payloadLen := int(binary.BigEndian.Uint32(buf))
	if c.maxFrameBytes > 0 && payloadLen > c.maxFrameBytes {
		return nil, 0, fmt.Errorf("%w: declared %d bytes", ErrFrameTooLarge, payloadLen)
	}

	if len(buf) < lengthPrefixSize+payloadLen {
		return nil, 0, ErrShortFrame
	}

	msg, err := c.parseMessage(buf[lengthPrefixSize : lengthPrefixSize+payloadLen])
	if err != nil {
		return nil, lengthPrefixSize + payloadLen, err
	}

	return msg, lengthPrefixSize + payloadLen, nil
}

// ReadMessage reads exactly one framed message from r. A clean EOF before any
// bytes of a frame is returned as io.EOF; a connection cut mid-frame is a
// framing error.
func (c *Codec) ReadMessage(r io.Reader) (*models.Message, error) {
	var prefix [lengthPrefixSize]byte

	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}

		return nil, fmt.Errorf("%w: %w", ErrShortFrame, err)
	}

	payloadLen := int(binary.BigEndian.Uint32(prefix[:]))
	if c.maxFrameBytes > 0 && payloadLen > c.maxFrameBytes {
		return nil, fmt.Errorf("%w: declared %d bytes", ErrFrameTooLarge, payloadLen)
	}

	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrShortFrame, err)
	}

	return c.parseMessage(payload)
}

// WriteMessage frames v and writes it to w.
func (c *Codec) WriteMessage(w io.Writer, v interface{}) error {
	frame, err := c.Encode(v)
	if err != nil {
		return err
	}

	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}

	return nil
}

func (*Codec) parseMessage(payload []byte) (*models.Message, error) {
	var msg models.Message

	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSchema, err)
	}

	switch msg.Type {
	case models.MessageTypeRegistration, models.MessageTypeHeartbeat:
		if err := validateRequired(&msg); err != nil {
			return nil, err
		}
	case "":
		return nil, fmt.Errorf("%w: missing field 'type'", ErrSchema)
	default:
		// Unknown types pass decoding; the dispatcher rejects them with a
		// validation error so the connection stays open.
	}

	return &msg, nil
}

func validateRequired(msg *models.Message) error {
	if msg.Version == "" {
		return fmt.Errorf("%w: missing field 'version'", ErrSchema)
	}

	if msg.Hostname == "" {
		return fmt.Errorf("%w: missing field 'hostname'", ErrSchema)
	}

	if msg.Timestamp == "" {
		return fmt.Errorf("%w: missing field 'timestamp'", ErrSchema)
	}

	return nil
}
