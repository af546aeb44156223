package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/envmon/pkg/config"
	"github.com/itohio/envmon/pkg/monitor"
)

type recordingSink struct {
	mu   sync.Mutex
	name string
	got  []monitor.Data
	err  error
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Write(ctx context.Context, d monitor.Data) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, d)
	return s.err
}

func (s *recordingSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func TestPublisher_FansOut(t *testing.T) {
	a := &recordingSink{name: "a"}
	b := &recordingSink{name: "b", err: errors.New("down")}
	p := NewPublisher([]Sink{a, b}, 4, time.Second, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.True(t, p.Enqueue(monitor.Data{GasPct: 1}))
	require.True(t, p.Enqueue(monitor.Data{GasPct: 2}))

	assert.Eventually(t, func() bool {
		return a.Len() == 2 && b.Len() == 2 && p.Failed() == 2
	}, 5*time.Second, 5*time.Millisecond, "failing sink does not stop the others")
	assert.Equal(t, 2, a.got[1].GasPct)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return within timeout")
	}
}

func TestPublisher_DropsWhenFull(t *testing.T) {
	p := NewPublisher(nil, 2, 0, nil)

	assert.True(t, p.Enqueue(monitor.Data{}))
	assert.True(t, p.Enqueue(monitor.Data{}))

	start := time.Now()
	assert.False(t, p.Enqueue(monitor.Data{}))
	assert.Less(t, time.Since(start), time.Second, "enqueue never blocks")
	assert.Equal(t, uint64(1), p.Dropped())
}

func TestPublisher_Defaults(t *testing.T) {
	p := NewPublisher(nil, 0, 0, nil)
	assert.Equal(t, DefaultQueueSize, cap(p.queue))
	assert.Equal(t, DefaultWriteTimeout, p.timeout)
}

type fakePublisher struct {
	topic   string
	payload []byte
}

func (f *fakePublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	f.topic = topic
	f.payload = payload
	return nil
}

func TestMQTTSink(t *testing.T) {
	pub := &fakePublisher{}
	s := NewMQTTSink(pub, "envmon/telemetry")

	require.NoError(t, s.Write(context.Background(), monitor.Data{GasPct: 42, Time: "01:02:03"}))
	assert.Equal(t, "mqtt", s.Name())
	assert.Equal(t, "envmon/telemetry", pub.topic)

	var got map[string]any
	require.NoError(t, json.Unmarshal(pub.payload, &got))
	assert.Equal(t, 42.0, got["gasPct"])
	assert.Equal(t, "01:02:03", got["time"])
}

func setupRedis(t *testing.T, cfg *config.RedisConfig) (*miniredis.Miniredis, *redis.Client, *RedisSink) {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg.Addr = mr.Addr()
	client := NewRedisClient(cfg)
	t.Cleanup(func() { _ = client.Close() })
	return mr, client, NewRedisSink(client, cfg)
}

func TestRedisSink_LatestAndStream(t *testing.T) {
	cfg := &config.RedisConfig{LatestKey: "envmon:latest", Stream: "envmon:telemetry", MaxLen: 100, TTL: time.Minute}
	mr, client, sink := setupRedis(t, cfg)
	ctx := context.Background()

	require.NoError(t, sink.Ping(ctx))
	assert.Equal(t, "redis", sink.Name())

	ts := time.Unix(1700000000, 0)
	require.NoError(t, sink.Write(ctx, monitor.Data{GasPct: 10, Timestamp: ts}))
	require.NoError(t, sink.Write(ctx, monitor.Data{GasPct: 20, Timestamp: ts}))

	raw, err := client.Get(ctx, "envmon:latest").Result()
	require.NoError(t, err)
	var latest monitor.Data
	require.NoError(t, json.Unmarshal([]byte(raw), &latest))
	assert.Equal(t, 20, latest.GasPct)
	assert.Equal(t, time.Minute, mr.TTL("envmon:latest"))

	msgs, err := client.XRange(ctx, "envmon:telemetry", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "1700000000", msgs[0].Values["timestamp"])

	var first monitor.Data
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Values["data"].(string)), &first))
	assert.Equal(t, 10, first.GasPct)
}

func TestRedisSink_StreamCapped(t *testing.T) {
	cfg := &config.RedisConfig{Stream: "envmon:telemetry", MaxLen: 3}
	_, client, sink := setupRedis(t, cfg)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, sink.Write(ctx, monitor.Data{GasPct: i}))
	}

	n, err := client.XLen(ctx, "envmon:telemetry").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	exists, err := client.Exists(ctx, "envmon:latest").Result()
	require.NoError(t, err)
	assert.Zero(t, exists, "latest key disabled when empty")
}

func TestRedisSink_Unreachable(t *testing.T) {
	cfg := &config.RedisConfig{LatestKey: "k"}
	mr, _, sink := setupRedis(t, cfg)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.Error(t, sink.Write(ctx, monitor.Data{}))
}
