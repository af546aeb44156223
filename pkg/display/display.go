// Package display renders monitor exports as status text and keeps a
// short trend history for the desktop panel.
package display

import (
	"fmt"
	"sync"
	"time"

	"github.com/itohio/envmon/pkg/alarm"
	"github.com/itohio/envmon/pkg/monitor"
)

// Lines renders the six-line status layout of the front-panel display.
func Lines(d monitor.Data) []string {
	return []string{
		fmt.Sprintf("T:%sC | H:%s%%", optional(d.Temperature), optional(d.Humidity)),
		fmt.Sprintf("Gas:%d%% | Lux:%.0f", d.GasPct, d.Lux),
		fmt.Sprintf("Noise:%.1f dB", d.SoundDB),
		fmt.Sprintf("Time:%s", d.Time),
		alarmLine(d.State()),
		fmt.Sprintf("Motion:%s", yesNo(d.Motion)),
	}
}

func optional(v *float64) string {
	if v == nil {
		return "--.-"
	}
	return fmt.Sprintf("%.1f", *v)
}

func alarmLine(s alarm.State) string {
	switch s {
	case alarm.ArmedActive:
		return "!!! ALERT !!!"
	case alarm.ArmedIdle:
		return "Alarm: ARMED"
	default:
		return "Alarm: OFF"
	}
}

func yesNo(b bool) string {
	if b {
		return "YES"
	}
	return "NO"
}

// Point is one trend sample.
type Point struct {
	Timestamp time.Time
	GasPct    int
	SoundDB   float64
	Active    bool
}

// History is a time-windowed FIFO of trend points, oldest first.
type History struct {
	mu     sync.RWMutex
	window time.Duration
	points []Point

	gasThreshold   int
	soundThreshold float64
}

// NewHistory creates a history keeping window worth of points.
func NewHistory(window time.Duration) *History {
	return &History{
		window:         window,
		gasThreshold:   alarm.DefaultGasPct,
		soundThreshold: alarm.DefaultSoundDB,
	}
}

// Add appends d and drops points older than the window, measured from
// d's timestamp.
func (h *History) Add(d monitor.Data) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.points = append(h.points, Point{
		Timestamp: d.Timestamp,
		GasPct:    d.GasPct,
		SoundDB:   d.SoundDB,
		Active:    d.AlarmActive,
	})
	h.gasThreshold = d.GasThreshold
	h.soundThreshold = d.DBThreshold

	cutoff := d.Timestamp.Add(-h.window)
	first := 0
	for first < len(h.points) && !h.points[first].Timestamp.After(cutoff) {
		first++
	}
	if first > 0 {
		h.points = append(h.points[:0], h.points[first:]...)
	}
}

// Points returns a copy of the points, oldest first.
func (h *History) Points() []Point {
	h.mu.RLock()
	defer h.mu.RUnlock()

	result := make([]Point, len(h.points))
	copy(result, h.points)
	return result
}

// Thresholds returns the limits reported with the newest point.
func (h *History) Thresholds() (gasPct int, soundDB float64) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.gasThreshold, h.soundThreshold
}

// Window returns the history window.
func (h *History) Window() time.Duration {
	return h.window
}
