package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"agrosense/internal/ingest"
)

// DefaultTopicPrefix is where devices publish telemetry; the serial code is
// the topic suffix: agrosense/telemetry/<serial>.
const DefaultTopicPrefix = "agrosense/telemetry/"

var ErrNotATelemetryTopic = errors.New("not a telemetry topic")

// Consumer feeds MQTT telemetry into the same ingestion pipeline the HTTP
// endpoint uses.
type Consumer struct {
	Client      *Client
	Ingest      *ingest.Service
	TopicPrefix string
}

func (c *Consumer) Start(ctx context.Context) error {
	prefix := c.TopicPrefix
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return c.Client.Subscribe(prefix+"#", func(m Message) {
		c.handleMessage(ctx, prefix, m)
	})
}

func (c *Consumer) handleMessage(ctx context.Context, prefix string, m Message) {
	serial, err := ParseSerial(prefix, m.Topic())
	if err != nil {
		if !errors.Is(err, ErrNotATelemetryTopic) {
			slog.Warn("mqtt topic parse failed", "topic", m.Topic(), "error", err)
		}
		return
	}

	var p ingest.Payload
	if err := json.Unmarshal(m.Payload(), &p); err != nil {
		slog.Warn("mqtt telemetry invalid json", "topic", m.Topic(), "serial", serial)
		return
	}
	// The topic is authoritative for the serial.
	p.Serial = serial

	if _, err := c.Ingest.Ingest(ctx, p); err != nil {
		slog.Warn("mqtt telemetry rejected", "serial", serial, "error", err)
	}
}

func ParseSerial(prefix, topic string) (string, error) {
	if !strings.HasPrefix(topic, prefix) {
		return "", ErrNotATelemetryTopic
	}
	serial := strings.Trim(strings.TrimPrefix(topic, prefix), "/")
	if serial == "" {
		return "", errors.New("empty serial")
	}
	return serial, nil
}
