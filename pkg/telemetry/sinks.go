package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/itohio/envmon/pkg/broker"
	"github.com/itohio/envmon/pkg/config"
	"github.com/itohio/envmon/pkg/monitor"
)

// MQTTSink publishes each export as JSON.
type MQTTSink struct {
	pub   broker.Publisher
	topic string
}

// NewMQTTSink creates an MQTT sink.
func NewMQTTSink(pub broker.Publisher, topic string) *MQTTSink {
	return &MQTTSink{pub: pub, topic: topic}
}

// Name implements Sink.
func (s *MQTTSink) Name() string { return "mqtt" }

// Write implements Sink.
func (s *MQTTSink) Write(ctx context.Context, d monitor.Data) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode telemetry: %w", err)
	}
	return s.pub.Publish(ctx, s.topic, payload)
}

// RedisSink keeps the latest export under a key and appends every export
// to a capped stream.
type RedisSink struct {
	client *redis.Client
	key    string
	stream string
	maxLen int64
	ttl    time.Duration
}

// NewRedisClient creates a client for cfg.
func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// NewRedisSink creates a Redis sink.
func NewRedisSink(client *redis.Client, cfg *config.RedisConfig) *RedisSink {
	return &RedisSink{
		client: client,
		key:    cfg.LatestKey,
		stream: cfg.Stream,
		maxLen: cfg.MaxLen,
		ttl:    cfg.TTL,
	}
}

// Name implements Sink.
func (s *RedisSink) Name() string { return "redis" }

// Write implements Sink.
func (s *RedisSink) Write(ctx context.Context, d monitor.Data) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode telemetry: %w", err)
	}

	if s.key != "" {
		if err := s.client.Set(ctx, s.key, payload, s.ttl).Err(); err != nil {
			return fmt.Errorf("set %s: %w", s.key, err)
		}
	}

	if s.stream != "" {
		err := s.client.XAdd(ctx, &redis.XAddArgs{
			Stream: s.stream,
			MaxLen: s.maxLen,
			Values: map[string]interface{}{
				"data":      string(payload),
				"timestamp": d.Timestamp.Unix(),
			},
		}).Err()
		if err != nil {
			return fmt.Errorf("xadd %s: %w", s.stream, err)
		}
	}
	return nil
}

// Ping checks the connection.
func (s *RedisSink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
