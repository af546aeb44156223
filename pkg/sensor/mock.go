package sensor

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/itohio/envmon/pkg/config"
)

// dhtGlitchEvery makes every Nth temperature/humidity read fail like a
// DHT11 checksum error.
const dhtGlitchEvery = 20

// Mock simulates the sensor hub, GPS receiver and buzzer for development.
type Mock struct {
	cfg *config.MockConfig

	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool
	done      chan struct{}

	now   func() time.Time
	rng   *rand.Rand
	start time.Time
	reads int

	buzzer  bool
	onPulse func()
}

// NewMock creates a new simulated device.
func NewMock(cfg *config.MockConfig) *Mock {
	if cfg == nil {
		def := config.Default().Mock
		cfg = &def
	}

	return &Mock{
		cfg:   cfg,
		now:   time.Now,
		rng:   rand.New(rand.NewSource(1)),
		start: time.Now(),
	}
}

// Connect starts the simulated PPS source.
func (m *Mock) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return fmt.Errorf("already connected")
	}

	m.connected = true
	m.start = m.now()
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.done = make(chan struct{})

	go m.generatePulses()

	return nil
}

// Close stops the simulated device.
func (m *Mock) Close() error {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return nil
	}
	m.cancel()
	m.connected = false
	done := m.done
	m.mu.Unlock()

	<-done
	return nil
}

// IsConnected returns whether the device is currently connected.
func (m *Mock) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// OnPulse registers the PPS callback.
func (m *Mock) OnPulse(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onPulse = fn
}

// SetBuzzer records the buzzer state.
func (m *Mock) SetBuzzer(on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buzzer = on
	return nil
}

// Buzzer returns the last commanded buzzer state.
func (m *Mock) Buzzer() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.buzzer
}

// ReadTemperature simulates a DHT11 temperature in °C.
func (m *Mock) ReadTemperature() (float64, error) {
	elapsed, glitch := m.tick()
	if glitch {
		return 0, ErrUnavailable
	}
	return 21 + 2*math.Sin(2*math.Pi*elapsed.Seconds()/600), nil
}

// ReadHumidity simulates a DHT11 relative humidity in %.
func (m *Mock) ReadHumidity() (float64, error) {
	elapsed, glitch := m.tick()
	if glitch {
		return 0, ErrUnavailable
	}
	return 45 + 5*math.Cos(2*math.Pi*elapsed.Seconds()/600), nil
}

// ReadAnalog simulates the analog channels.
func (m *Mock) ReadAnalog(ch Channel) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elapsed := m.now().Sub(m.start)

	switch ch {
	case Light:
		// Slow day/night swing around mid scale.
		v := 2048 + 1500*math.Sin(2*math.Pi*elapsed.Seconds()/300) + float64(m.rng.Intn(41)-20)
		return clampCode(v), nil
	case Gas:
		if m.leaking(elapsed) {
			return clampCode(float64(m.cfg.GasPeak + m.rng.Intn(41) - 20)), nil
		}
		return clampCode(float64(m.cfg.GasBaseline + m.rng.Intn(41) - 20)), nil
	case Sound:
		amplitude := m.cfg.SoundNoise
		// Occasional loud burst.
		if int(elapsed.Seconds())%45 == 44 {
			amplitude = 1800
		}
		if amplitude <= 0 {
			return 2048, nil
		}
		return clampCode(float64(2048 + m.rng.Intn(2*amplitude+1) - amplitude)), nil
	default:
		return 0, fmt.Errorf("%w: unknown %s", ErrUnavailable, ch)
	}
}

// ReadDigital simulates the PIR: three seconds of motion every twenty.
func (m *Mock) ReadDigital(pin Pin) (bool, error) {
	if pin != Motion {
		return false, fmt.Errorf("%w: unknown %s", ErrUnavailable, pin)
	}

	m.mu.RLock()
	elapsed := m.now().Sub(m.start)
	m.mu.RUnlock()

	return int(elapsed.Seconds())%20 < 3, nil
}

// Poll simulates a receiver with a fix: every call reports the current
// time and a slightly jittered position.
func (m *Mock) Poll() GPSUpdate {
	m.mu.Lock()
	now := m.now().UTC()
	jitterLat := (m.rng.Float64() - 0.5) * 1e-5
	jitterLng := (m.rng.Float64() - 0.5) * 1e-5
	m.mu.Unlock()

	t := FormatTime(now.Hour(), now.Minute(), now.Second())
	d := FormatDate(now.Day(), int(now.Month()), now.Year())
	speed := 0.0
	sats := 8
	hdop := 0.9
	valid := true

	return GPSUpdate{
		Location:   &LatLng{Lat: m.cfg.Latitude + jitterLat, Lng: m.cfg.Longitude + jitterLng},
		SpeedKmph:  &speed,
		Time:       &t,
		Date:       &d,
		Satellites: &sats,
		HDOP:       &hdop,
		Valid:      &valid,
	}
}

// tick advances the DHT read counter.
func (m *Mock) tick() (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	return m.now().Sub(m.start), m.reads%dhtGlitchEvery == 0
}

func (m *Mock) leaking(elapsed time.Duration) bool {
	if m.cfg.LeakPeriod <= 0 || m.cfg.LeakDuration <= 0 {
		return false
	}
	return elapsed%m.cfg.LeakPeriod >= m.cfg.LeakPeriod-m.cfg.LeakDuration
}

// generatePulses fires the PPS callback every PulsePeriod.
func (m *Mock) generatePulses() {
	defer close(m.done)

	if m.cfg.PulsePeriod <= 0 {
		<-m.ctx.Done()
		return
	}

	ticker := time.NewTicker(m.cfg.PulsePeriod)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.mu.RLock()
			fn := m.onPulse
			m.mu.RUnlock()
			if fn != nil {
				fn()
			}
		}
	}
}

func clampCode(v float64) int {
	if v < 0 {
		return 0
	}
	if v > MaxCode {
		return MaxCode
	}
	return int(v)
}
