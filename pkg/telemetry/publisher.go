// Package telemetry ships periodic exports to MQTT and Redis without ever
// blocking the sampling cycle.
package telemetry

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/itohio/envmon/pkg/logging"
	"github.com/itohio/envmon/pkg/monitor"
)

const (
	// DefaultQueueSize is the number of exports buffered before dropping.
	DefaultQueueSize = 16
	// DefaultWriteTimeout bounds one sink write.
	DefaultWriteTimeout = 2 * time.Second
)

// Sink stores or forwards one export.
type Sink interface {
	Name() string
	Write(ctx context.Context, d monitor.Data) error
}

// Publisher fans exports out to sinks on its own goroutine.
type Publisher struct {
	sinks   []Sink
	queue   chan monitor.Data
	timeout time.Duration
	logger  *zap.Logger

	dropped atomic.Uint64
	failed  atomic.Uint64
}

// NewPublisher creates a publisher. Zero size or timeout selects the defaults.
func NewPublisher(sinks []Sink, size int, timeout time.Duration, logger *zap.Logger) *Publisher {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	return &Publisher{
		sinks:   sinks,
		queue:   make(chan monitor.Data, size),
		timeout: timeout,
		logger:  logging.OrNop(logger).Named("telemetry"),
	}
}

// Enqueue hands d to the publisher. It never blocks; a full queue drops d.
func (p *Publisher) Enqueue(d monitor.Data) bool {
	select {
	case p.queue <- d:
		return true
	default:
		if n := p.dropped.Add(1); n == 1 || n%100 == 0 {
			p.logger.Warn("telemetry queue full, dropping export", zap.Uint64("dropped", n))
		}
		return false
	}
}

// Run writes queued exports until ctx is done.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d := <-p.queue:
			p.write(ctx, d)
		}
	}
}

func (p *Publisher) write(ctx context.Context, d monitor.Data) {
	for _, sink := range p.sinks {
		wctx, cancel := context.WithTimeout(ctx, p.timeout)
		err := sink.Write(wctx, d)
		cancel()
		if err != nil {
			p.failed.Add(1)
			p.logger.Warn("sink write failed", zap.String("sink", sink.Name()), zap.Error(err))
		}
	}
}

// Dropped returns how many exports were dropped on a full queue.
func (p *Publisher) Dropped() uint64 {
	return p.dropped.Load()
}

// Failed returns how many sink writes failed.
func (p *Publisher) Failed() uint64 {
	return p.failed.Load()
}
