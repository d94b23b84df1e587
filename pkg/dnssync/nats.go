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
	"context"
	"encoding/json"
	"fmt"
	"net/netip"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/beacon/pkg/logger"
	"github.com/carverauto/beacon/pkg/models"
)

const (
	defaultStream        = "dns-sync"
	defaultSubjectPrefix = "dns.record"
	eventSource          = "beacon/registration"
	eventTypeUpsert      = "com.carverauto.beacon.dns.record.upsert"
)

// RecordEvent is the CloudEvent published for each DNS record upsert. The DNS
// authority consumes these from JetStream and applies them with its own retry
// policy.
type RecordEvent struct {
	SpecVersion     string          `json:"specversion"`
	ID              string          `json:"id"`
	Source          string          `json:"source"`
	Type            string          `json:"type"`
	DataContentType string          `json:"datacontenttype"`
	Subject         string          `json:"subject"`
	Time            time.Time       `json:"time"`
	Data            RecordEventData `json:"data"`
}

// RecordEventData is the payload of a RecordEvent.
type RecordEventData struct {
	Hostname   string `json:"hostname"`
	IPAddress  string `json:"ip_address"`
	RecordType string `json:"record_type"` // A or AAAA
}

// NATSSyncer publishes DNS record upserts to a JetStream stream.
type NATSSyncer struct {
	conn          *nats.Conn
	js            jetstream.JetStream
	subjectPrefix string
	logger        logger.Logger
}

var _ Syncer = (*NATSSyncer)(nil)

// NewNATSSyncer connects to NATS and ensures the DNS-sync stream exists.
func NewNATSSyncer(ctx context.Context, cfg *models.NATSConfig, log logger.Logger) (*NATSSyncer, error) {
	conn, err := nats.Connect(cfg.URL, nats.Name("beacon-dnssync"))
	if err != nil {
		return nil, fmt.Errorf("dnssync: failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("dnssync: failed to create JetStream context: %w", err)
	}

	stream := cfg.Stream
	if stream == "" {
		stream = defaultStream
	}

	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = defaultSubjectPrefix
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     stream,
		Subjects: []string{prefix + ".>"},
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("dnssync: failed to ensure stream %q: %w", stream, err)
	}

	log.Info().Str("stream", stream).Str("subject_prefix", prefix).Msg("Connected DNS-sync publisher to JetStream")

	return &NATSSyncer{
		conn:          conn,
		js:            js,
		subjectPrefix: prefix,
		logger:        log,
	}, nil
}

// UpsertRecord publishes an upsert event for hostname -> ip.
func (s *NATSSyncer) UpsertRecord(ctx context.Context, hostname, ip string) error {
	event := newRecordEvent(s.subjectPrefix, hostname, ip)

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("dnssync: failed to marshal record event: %w", err)
	}

	ack, err := s.js.Publish(ctx, event.Subject, payload)
	if err != nil {
		return fmt.Errorf("dnssync: failed to publish record event: %w", err)
	}

	s.logger.Debug().
		Str("hostname", hostname).
		Str("ip", ip).
		Uint64("seq", ack.Sequence).
		Msg("Published DNS record upsert")

	return nil
}

func (s *NATSSyncer) Close() error {
	s.conn.Close()
	return nil
}

func newRecordEvent(subjectPrefix, hostname, ip string) *RecordEvent {
	return &RecordEvent{
		SpecVersion:     "1.0",
		ID:              uuid.New().String(),
		Source:          eventSource,
		Type:            eventTypeUpsert,
		DataContentType: "application/json",
		Subject:         subjectPrefix + ".upsert",
		Time:            time.Now().UTC(),
		Data: RecordEventData{
			Hostname:   hostname,
			IPAddress:  ip,
			RecordType: recordTypeFor(ip),
		},
	}
}

func recordTypeFor(ip string) string {
	addr, err := netip.ParseAddr(ip)
	if err == nil && addr.Is6() && !addr.Is4In6() {
		return "AAAA"
	}

	return "A"
}
