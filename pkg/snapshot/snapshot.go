// Package snapshot holds the latest calibrated reading of every sensor channel.
package snapshot

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/itohio/envmon/pkg/sensor"
)

const (
	// NoTime and NoDate are reported until the receiver delivers a time or date.
	NoTime = "--:--:--"
	NoDate = "--/--/----"

	// NoHDOP is the dilution of precision reported without a fix.
	NoHDOP = 99.0
)

// GPS is the last known receiver state. Fields update independently and
// are never expired.
type GPS struct {
	Lat        float64
	Lng        float64
	SpeedKmph  float64
	Time       string
	Date       string
	Satellites int
	HDOP       float64
	Valid      bool
}

// Snapshot is the latest known value of every channel.
// Temperature and Humidity stay nil until the first valid driver read.
type Snapshot struct {
	Temperature *float64
	Humidity    *float64
	Lux         float64
	GasRaw      int
	GasPct      int
	SoundDB     float64
	Motion      bool
	GPS         GPS
}

// New returns a snapshot with power-on defaults.
func New() Snapshot {
	return Snapshot{
		Lux: 10,
		GPS: GPS{
			Time: NoTime,
			Date: NoDate,
			HDOP: NoHDOP,
		},
	}
}

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	c := s
	if s.Temperature != nil {
		v := *s.Temperature
		c.Temperature = &v
	}
	if s.Humidity != nil {
		v := *s.Humidity
		c.Humidity = &v
	}
	return c
}

// SetTemperature stores a finite reading and ignores anything else.
func (s *Snapshot) SetTemperature(v float64) bool {
	if !finite(v) {
		return false
	}
	s.Temperature = &v
	return true
}

// SetHumidity stores a finite reading and ignores anything else.
func (s *Snapshot) SetHumidity(v float64) bool {
	if !finite(v) {
		return false
	}
	s.Humidity = &v
	return true
}

// ApplyGPS copies the fields the receiver reported as updated.
// Non-finite numbers are dropped so stale values survive.
func (s *Snapshot) ApplyGPS(u sensor.GPSUpdate) {
	if u.Location != nil && finite(u.Location.Lat) && finite(u.Location.Lng) {
		s.GPS.Lat = u.Location.Lat
		s.GPS.Lng = u.Location.Lng
	}
	if u.SpeedKmph != nil && finite(*u.SpeedKmph) {
		s.GPS.SpeedKmph = *u.SpeedKmph
	}
	if u.Time != nil {
		s.GPS.Time = *u.Time
	}
	if u.Date != nil {
		s.GPS.Date = *u.Date
	}
	if u.Satellites != nil && *u.Satellites >= 0 {
		s.GPS.Satellites = *u.Satellites
	}
	if u.HDOP != nil && finite(*u.HDOP) {
		s.GPS.HDOP = *u.HDOP
	}
	if u.Valid != nil {
		s.GPS.Valid = *u.Valid
	}
}

// Store guards one snapshot. Updates replace the whole field group under
// one lock so readers never see a half-written cycle.
type Store struct {
	mu sync.RWMutex
	s  Snapshot
}

// NewStore creates a store holding New().
func NewStore() *Store {
	return &Store{s: New()}
}

// Get returns a copy of the current snapshot.
func (st *Store) Get() Snapshot {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.s.Clone()
}

// Update applies fn to the snapshot under the write lock.
func (st *Store) Update(fn func(s *Snapshot)) {
	st.mu.Lock()
	defer st.mu.Unlock()
	fn(&st.s)
}

// Pulse is a one-shot flag set by the timing pulse and cleared only by
// whoever consumes it.
type Pulse struct {
	flag atomic.Bool
}

// Mark sets the flag. Safe to call from any goroutine.
func (p *Pulse) Mark() {
	p.flag.Store(true)
}

// Consume reports whether the flag was set and clears it.
func (p *Pulse) Consume() bool {
	return p.flag.CompareAndSwap(true, false)
}

// Peek reports the flag without clearing it.
func (p *Pulse) Peek() bool {
	return p.flag.Load()
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
