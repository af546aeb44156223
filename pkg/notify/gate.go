// Package notify delivers alarm alerts through a pluggable transport.
package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/itohio/envmon/pkg/logging"
)

// DefaultTimeout bounds one send when the gate has no timeout configured.
const DefaultTimeout = 5 * time.Second

// Sender is an alert transport.
type Sender interface {
	Send(ctx context.Context, msg string) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg string) error

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, msg string) error {
	return f(ctx, msg)
}

// Gate calls a Sender under a timeout and turns every failure, including a
// panic, into a false result. It keeps no queue and never retries.
type Gate struct {
	sender  Sender
	timeout time.Duration
	logger  *zap.Logger
}

// NewGate creates a gate. A zero timeout selects DefaultTimeout.
func NewGate(sender Sender, timeout time.Duration, logger *zap.Logger) *Gate {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Gate{
		sender:  sender,
		timeout: timeout,
		logger:  logging.OrNop(logger).Named("notify"),
	}
}

// Notify sends msg and reports whether the transport accepted it.
func (g *Gate) Notify(ctx context.Context, msg string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("alert sender panicked", zap.Any("panic", r))
			ok = false
		}
	}()

	if g.sender == nil {
		g.logger.Warn("no alert sender configured", zap.String("message", msg))
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := g.sender.Send(ctx, msg); err != nil {
		g.logger.Warn("alert send failed", zap.String("message", msg), zap.Error(err))
		return false
	}
	return true
}

// Log writes alerts to a logger. It always succeeds.
type Log struct {
	logger *zap.Logger
}

// NewLog creates a log sender.
func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logging.OrNop(logger).Named("alert")}
}

// Send logs msg at warn level.
func (l *Log) Send(ctx context.Context, msg string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("log alert: %w", err)
	}
	l.logger.Warn(msg)
	return nil
}
