package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/itohio/envmon/pkg/broker"
)

// Alert is the MQTT alert payload.
type Alert struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// MQTT publishes alerts to a broker topic.
type MQTT struct {
	pub   broker.Publisher
	topic string
	now   func() time.Time
}

// NewMQTT creates an MQTT sender.
func NewMQTT(pub broker.Publisher, topic string) *MQTT {
	return &MQTT{pub: pub, topic: topic, now: time.Now}
}

// Send publishes msg and waits for the broker acknowledgement.
func (m *MQTT) Send(ctx context.Context, msg string) error {
	payload, err := json.Marshal(Alert{Message: msg, Timestamp: m.now().UTC()})
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}
	return m.pub.Publish(ctx, m.topic, payload)
}
