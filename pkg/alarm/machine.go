package alarm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/itohio/envmon/pkg/logging"
	"github.com/itohio/envmon/pkg/sensor"
)

// State is the alarm lifecycle state, derived from Status flags.
type State int

// Alarm states.
const (
	Disarmed State = iota
	ArmedIdle
	ArmedActive
)

func (s State) String() string {
	switch s {
	case Disarmed:
		return "DISARMED"
	case ArmedIdle:
		return "ARMED_IDLE"
	case ArmedActive:
		return "ARMED_ACTIVE"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Status is a consistent copy of the alarm flags.
type Status struct {
	Armed            bool
	Active           bool
	NotificationSent bool

	// Episode identifies the current active episode; empty when idle.
	Episode string
	// Cause holds the channels that started the episode.
	Cause Trigger
	// Since is when the episode started.
	Since time.Time
}

// State derives the lifecycle state.
func (s Status) State() State {
	switch {
	case !s.Armed:
		return Disarmed
	case s.Active:
		return ArmedActive
	default:
		return ArmedIdle
	}
}

// Notifier sends one alert and reports success. It must not panic.
type Notifier interface {
	Notify(ctx context.Context, msg string) bool
}

// Reading is what the alert message reports.
type Reading struct {
	GasPct  int
	SoundDB float64
}

// Message summarises the channels that caused an episode.
func Message(cause Trigger, r Reading) string {
	var parts []string
	if cause.Gas {
		parts = append(parts, fmt.Sprintf("gas %d%%", r.GasPct))
	}
	if cause.Sound {
		parts = append(parts, fmt.Sprintf("noise %.1f dB", r.SoundDB))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("Alert! gas %d%%, noise %.1f dB", r.GasPct, r.SoundDB)
	}
	return "Alert! " + strings.Join(parts, " and ") + "!"
}

// Machine owns the alarm lifecycle: DISARMED, ARMED_IDLE and ARMED_ACTIVE.
// An active alarm latches until disarmed. At most one alert is delivered
// per episode; a failed send is retried on the next Step.
type Machine struct {
	mu      sync.Mutex
	status  Status
	message string

	buzzer   sensor.Buzzer
	notifier Notifier
	logger   *zap.Logger

	newID func() string
	now   func() time.Time
}

// NewMachine creates a machine in ARMED_IDLE or DISARMED.
func NewMachine(armed bool, buzzer sensor.Buzzer, notifier Notifier, logger *zap.Logger) *Machine {
	return &Machine{
		status:   Status{Armed: armed},
		buzzer:   buzzer,
		notifier: notifier,
		logger:   logging.OrNop(logger).Named("alarm"),
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

// Status returns a copy of the current flags.
func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Arm moves DISARMED to ARMED_IDLE and clears NotificationSent.
// Arming an armed machine does nothing. Reports whether the state changed.
func (m *Machine) Arm() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status.Armed {
		return false
	}
	m.status = Status{Armed: true}
	m.message = ""
	m.logger.Info("alarm armed")
	return true
}

// Disarm moves any state to DISARMED, clearing the episode and silencing
// the buzzer in one step. Reports whether the state changed.
func (m *Machine) Disarm() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.status
	m.status = Status{}
	m.message = ""
	m.setBuzzer(false)

	if !prev.Armed {
		return false
	}
	m.logger.Info("alarm disarmed",
		zap.String("from", prev.State().String()),
		zap.String("episode", prev.Episode),
		zap.Bool("notification_sent", prev.NotificationSent),
	)
	return true
}

// SetArmed arms or disarms.
func (m *Machine) SetArmed(armed bool) bool {
	if armed {
		return m.Arm()
	}
	return m.Disarm()
}

// Step runs one evaluation cycle: it starts an episode when armed and
// triggered, re-asserts the buzzer and sends the alert if the episode is
// still unnotified. The send runs without holding the lock so Disarm is
// never delayed by a slow transport.
func (m *Machine) Step(ctx context.Context, trigger Trigger, r Reading) State {
	m.mu.Lock()
	if m.status.Armed && !m.status.Active && trigger.Any() {
		m.status.Active = true
		m.status.NotificationSent = false
		m.status.Episode = m.newID()
		m.status.Cause = trigger
		m.status.Since = m.now()
		m.message = Message(trigger, r)
		m.logger.Info("alarm triggered",
			zap.String("episode", m.status.Episode),
			zap.String("trigger", trigger.String()),
			zap.Int("gas_pct", r.GasPct),
			zap.Float64("sound_db", r.SoundDB),
		)
	}

	state := m.status.State()
	m.setBuzzer(state == ArmedActive)

	pending := state == ArmedActive && !m.status.NotificationSent
	episode := m.status.Episode
	msg := m.message
	m.mu.Unlock()

	if !pending || m.notifier == nil {
		return state
	}

	ok := m.notifier.Notify(ctx, msg)

	m.mu.Lock()
	defer m.mu.Unlock()

	if !ok {
		m.logger.Debug("alert not delivered, retrying next cycle", zap.String("episode", episode))
		return m.status.State()
	}
	// The episode may have been disarmed while sending.
	if m.status.Active && m.status.Episode == episode {
		m.status.NotificationSent = true
		m.logger.Info("alert delivered", zap.String("episode", episode))
	}
	return m.status.State()
}

// setBuzzer must be called with mu held.
func (m *Machine) setBuzzer(on bool) {
	if m.buzzer == nil {
		return
	}
	if err := m.buzzer.SetBuzzer(on); err != nil {
		m.logger.Debug("buzzer write failed", zap.Bool("on", on), zap.Error(err))
	}
}
