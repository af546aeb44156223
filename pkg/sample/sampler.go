package sample

import (
	"time"

	"github.com/itohio/envmon/pkg/sensor"
)

// DefaultWindow is the acoustic aggregation window.
const DefaultWindow = 30 * time.Millisecond

// AnalogReader is the subset of sensor.Backend the sampler needs.
type AnalogReader interface {
	ReadAnalog(ch sensor.Channel) (int, error)
}

// Sampler measures peak-to-peak amplitude on one analog channel by reading
// it repeatedly for a fixed window. It blocks the caller for the window.
type Sampler struct {
	src    AnalogReader
	ch     sensor.Channel
	window time.Duration
	now    func() time.Time
}

// NewSampler creates a sampler. A zero window selects DefaultWindow.
func NewSampler(src AnalogReader, ch sensor.Channel, window time.Duration) *Sampler {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Sampler{
		src:    src,
		ch:     ch,
		window: window,
		now:    time.Now,
	}
}

// Window returns the aggregation window.
func (s *Sampler) Window() time.Duration {
	return s.window
}

// PeakToPeak returns max-min over one window, or 0 when the amplitude is
// below NoiseFloor. Failed reads inside the window are skipped; a window
// without a single good read returns sensor.ErrUnavailable.
func (s *Sampler) PeakToPeak() (int, error) {
	signalMax := 0
	signalMin := sensor.MaxCode
	reads := 0

	start := s.now()
	for s.now().Sub(start) < s.window {
		v, err := s.src.ReadAnalog(s.ch)
		if err != nil {
			continue
		}
		reads++
		if v > signalMax {
			signalMax = v
		}
		if v < signalMin {
			signalMin = v
		}
	}

	if reads == 0 {
		return 0, sensor.ErrUnavailable
	}

	peak := signalMax - signalMin
	if peak < NoiseFloor {
		peak = 0
	}
	return peak, nil
}
