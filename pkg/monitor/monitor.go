// Package monitor runs the sampling cycle: acquire, condition, evaluate,
// step the alarm and publish.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/itohio/envmon/pkg/alarm"
	"github.com/itohio/envmon/pkg/config"
	"github.com/itohio/envmon/pkg/logging"
	"github.com/itohio/envmon/pkg/sample"
	"github.com/itohio/envmon/pkg/sensor"
	"github.com/itohio/envmon/pkg/snapshot"
)

// DefaultInterval is the cycle period used when none is configured.
const DefaultInterval = 100 * time.Millisecond

// Sources are the acquisition backends and actuators the cycle uses.
// Only Backend is required.
type Sources struct {
	Backend sensor.Backend
	GPS     sensor.GPS
	Buzzer  sensor.Buzzer
	Pulse   sensor.PulseSource
}

// Monitor owns the snapshot, thresholds and alarm state and drives them
// from a single periodic cycle.
type Monitor struct {
	interval     time.Duration
	publishEvery int

	backend sensor.Backend
	gps     sensor.GPS
	sampler *sample.Sampler

	store      *snapshot.Store
	pulse      snapshot.Pulse
	thresholds *alarm.ConfigStore
	machine    *alarm.Machine

	logger *zap.Logger
	now    func() time.Time

	cycles uint64

	callbacks []func(Data)
	cbMu      sync.RWMutex
}

// New creates a monitor from the monitor and alarm sections of cfg.
func New(cfg *config.Config, src Sources, notifier alarm.Notifier, logger *zap.Logger) (*Monitor, error) {
	if src.Backend == nil {
		return nil, errors.New("monitor: no sensor backend")
	}
	logger = logging.OrNop(logger)

	thresholds, err := alarm.NewConfigStore(alarm.Thresholds{
		GasPct:            cfg.Alarm.GasThresholdPct,
		SoundDB:           cfg.Alarm.SoundThresholdDB,
		SoundCorrectionDB: cfg.Alarm.SoundCorrectionDB,
	})
	if err != nil {
		return nil, fmt.Errorf("monitor: %w", err)
	}

	interval := cfg.Monitor.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	m := &Monitor{
		interval:     interval,
		publishEvery: cfg.Monitor.PublishEvery,
		backend:      src.Backend,
		gps:          src.GPS,
		sampler:      sample.NewSampler(src.Backend, sensor.Sound, cfg.Monitor.SoundWindow),
		store:        snapshot.NewStore(),
		thresholds:   thresholds,
		machine:      alarm.NewMachine(cfg.Alarm.Armed, src.Buzzer, notifier, logger),
		logger:       logger.Named("monitor"),
		now:          time.Now,
	}

	if src.Pulse != nil {
		src.Pulse.OnPulse(m.pulse.Mark)
	}

	return m, nil
}

// Run cycles every interval until ctx is done. Cycles never overlap; a
// cycle that overruns delays the next tick.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("sampling started", zap.Duration("interval", m.interval))

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("sampling stopped")
			return ctx.Err()
		case <-ticker.C:
			m.Cycle(ctx)
		}
	}
}

// Cycle runs one acquisition-to-actuation pass and returns the new state.
func (m *Monitor) Cycle(ctx context.Context) alarm.State {
	th := m.thresholds.Get()

	// Only the cycle writes the snapshot, so acquiring into a copy and
	// swapping it in keeps readers off the lock during the sound window.
	next := m.store.Get()
	m.acquire(&next, th)
	m.store.Update(func(s *snapshot.Snapshot) {
		*s = next.Clone()
	})

	trigger := alarm.Evaluate(next, th)
	state := m.machine.Step(ctx, trigger, alarm.Reading{GasPct: next.GasPct, SoundDB: next.SoundDB})

	m.cycles++
	if m.publishEvery > 0 && m.cycles%uint64(m.publishEvery) == 0 {
		m.notifyCallbacks(newData(next, th, m.machine.Status(), m.pulse.Peek(), m.now()))
	}
	return state
}

// acquire reads every channel into s. Unavailable readings keep the
// previous value.
func (m *Monitor) acquire(s *snapshot.Snapshot, th alarm.Thresholds) {
	if v, err := m.backend.ReadTemperature(); err == nil {
		s.SetTemperature(v)
	} else {
		m.unavailable("temperature", err)
	}
	if v, err := m.backend.ReadHumidity(); err == nil {
		s.SetHumidity(v)
	} else {
		m.unavailable("humidity", err)
	}

	if raw, err := m.readCode(sensor.Light); err == nil {
		s.Lux = sample.Lux(raw)
	} else {
		m.unavailable("light", err)
	}

	if raw, err := m.readCode(sensor.Gas); err == nil {
		s.GasRaw = raw
		s.GasPct = sample.GasPercent(raw)
	} else {
		m.unavailable("gas", err)
	}

	if peak, err := m.sampler.PeakToPeak(); err == nil {
		s.SoundDB = sample.Decibel(peak, th.SoundCorrectionDB)
	} else {
		m.unavailable("sound", err)
	}

	if motion, err := m.backend.ReadDigital(sensor.Motion); err == nil {
		s.Motion = motion
	} else {
		m.unavailable("motion", err)
	}

	if m.gps != nil {
		s.ApplyGPS(m.gps.Poll())
	}
}

func (m *Monitor) readCode(ch sensor.Channel) (int, error) {
	raw, err := m.backend.ReadAnalog(ch)
	if err != nil {
		return 0, err
	}
	if raw < 0 || raw > sensor.MaxCode {
		return 0, fmt.Errorf("%w: %s code %d", sensor.ErrUnavailable, ch, raw)
	}
	return raw, nil
}

func (m *Monitor) unavailable(channel string, err error) {
	m.logger.Debug("reading unavailable", zap.String("channel", channel), zap.Error(err))
}

// Data returns the combined export and consumes the timing pulse.
func (m *Monitor) Data() Data {
	return m.view(m.pulse.Consume())
}

// Peek returns the combined export without consuming the timing pulse.
func (m *Monitor) Peek() Data {
	return m.view(m.pulse.Peek())
}

func (m *Monitor) view(pps bool) Data {
	return newData(m.store.Get(), m.thresholds.Get(), m.machine.Status(), pps, m.now())
}

// SetThreshold replaces one threshold.
func (m *Monitor) SetThreshold(field alarm.Field, value float64) error {
	if err := m.thresholds.Set(field, value); err != nil {
		return err
	}
	m.logger.Info("threshold updated", zap.String("field", string(field)), zap.Float64("value", value))
	return nil
}

// Thresholds returns the current thresholds.
func (m *Monitor) Thresholds() alarm.Thresholds {
	return m.thresholds.Get()
}

// SetArmed arms or disarms the alarm. Disarming silences the buzzer at once.
func (m *Monitor) SetArmed(armed bool) bool {
	return m.machine.SetArmed(armed)
}

// Status returns the alarm flags.
func (m *Monitor) Status() alarm.Status {
	return m.machine.Status()
}

// OnUpdate registers a callback invoked with a fresh export every
// publish_every cycles. It runs on the cycle goroutine and must return
// quickly.
func (m *Monitor) OnUpdate(callback func(Data)) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.callbacks = append(m.callbacks, callback)
}

func (m *Monitor) notifyCallbacks(d Data) {
	m.cbMu.RLock()
	callbacks := make([]func(Data), len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.cbMu.RUnlock()

	for _, cb := range callbacks {
		if cb != nil {
			cb(d)
		}
	}
}
