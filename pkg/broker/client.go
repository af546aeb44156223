// Package broker wraps the MQTT client shared by alerts, telemetry and the
// desktop panel.
package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/itohio/envmon/pkg/config"
	"github.com/itohio/envmon/pkg/logging"
)

// ErrNoBroker is returned when MQTT is not configured.
var ErrNoBroker = errors.New("mqtt broker not configured")

const (
	connectTimeout    = 10 * time.Second
	disconnectQuiesce = 250 // ms
)

// MessageHandler handles one received message.
type MessageHandler func(topic string, payload []byte) error

// Publisher publishes one payload.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Client is a connected MQTT client.
type Client struct {
	client mqtt.Client
	qos    byte
	logger *zap.Logger
}

var _ Publisher = (*Client)(nil)

// New connects to cfg.Broker.
func New(cfg *config.MQTTConfig, logger *zap.Logger) (*Client, error) {
	if cfg.Broker == "" {
		return nil, ErrNoBroker
	}
	logger = logging.OrNop(logger).Named("mqtt")

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("connection lost", zap.Error(err))
	})
	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Info("connected", zap.String("broker", cfg.Broker))
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connect to %s: timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.Broker, err)
	}

	return newClient(client, cfg.QoS, logger), nil
}

func newClient(client mqtt.Client, qos byte, logger *zap.Logger) *Client {
	return &Client{
		client: client,
		qos:    qos,
		logger: logging.OrNop(logger),
	}
}

// Publish sends payload and waits for the broker acknowledgement or ctx.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte) error {
	token := c.client.Publish(topic, c.qos, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publish to %s: %w", topic, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe registers handler for topic. Handler errors are logged.
func (c *Client) Subscribe(ctx context.Context, topic string, handler MessageHandler) error {
	token := c.client.Subscribe(topic, c.qos, func(_ mqtt.Client, msg mqtt.Message) {
		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			c.logger.Warn("message handler failed", zap.String("topic", msg.Topic()), zap.Error(err))
		}
	})
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("subscribe to %s: %w", topic, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, err)
	}
	return nil
}

// IsConnected reports the connection state.
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// Close disconnects.
func (c *Client) Close() {
	c.client.Disconnect(disconnectQuiesce)
}
