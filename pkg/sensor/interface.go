package sensor

import (
	"errors"
	"fmt"
)

// ErrUnavailable is returned when a driver has no valid reading to offer.
var ErrUnavailable = errors.New("reading unavailable")

// ErrNotConnected is returned when a device is used before Connect.
var ErrNotConnected = errors.New("not connected")

// Channel identifies an analog input (12-bit, 0-4095).
type Channel int

// Analog channels.
const (
	Light Channel = iota // photoresistor
	Gas                  // MQ gas sensor
	Sound                // KY-037 analog output
)

func (c Channel) String() string {
	switch c {
	case Light:
		return "light"
	case Gas:
		return "gas"
	case Sound:
		return "sound"
	default:
		return fmt.Sprintf("channel(%d)", int(c))
	}
}

// Pin identifies a digital input.
type Pin int

// Digital inputs.
const (
	Motion Pin = iota // PIR output
)

func (p Pin) String() string {
	if p == Motion {
		return "motion"
	}
	return fmt.Sprintf("pin(%d)", int(p))
}

// MaxCode is the largest 12-bit ADC code.
const MaxCode = 4095

// Backend supplies raw readings on demand. Implementations must not block
// for longer than it takes to copy a cached value.
type Backend interface {
	ReadTemperature() (float64, error)
	ReadHumidity() (float64, error)
	ReadAnalog(ch Channel) (int, error)
	ReadDigital(pin Pin) (bool, error)
}

// LatLng is a position in decimal degrees.
type LatLng struct {
	Lat float64
	Lng float64
}

// GPSUpdate carries the GPS fields that changed since the previous poll.
// A nil field was not updated.
type GPSUpdate struct {
	Location   *LatLng
	SpeedKmph  *float64
	Time       *string // HH:MM:SS
	Date       *string // DD/MM/YYYY
	Satellites *int
	HDOP       *float64
	Valid      *bool
}

// Empty reports whether no field was updated.
func (u GPSUpdate) Empty() bool {
	return u.Location == nil && u.SpeedKmph == nil && u.Time == nil && u.Date == nil &&
		u.Satellites == nil && u.HDOP == nil && u.Valid == nil
}

// GPS yields partial fixes.
type GPS interface {
	Poll() GPSUpdate
}

// Buzzer drives the alarm actuator.
type Buzzer interface {
	SetBuzzer(on bool) error
}

// PulseSource invokes the registered callback on every timing pulse. The
// callback may run on any goroutine.
type PulseSource interface {
	OnPulse(fn func())
}

// Device is a backend with a connection lifecycle.
type Device interface {
	Connect() error
	Close() error
	IsConnected() bool
}

// FormatTime renders a GPS time of day as HH:MM:SS.
func FormatTime(hour, minute, second int) string {
	return fmt.Sprintf("%02d:%02d:%02d", hour, minute, second)
}

// FormatDate renders a GPS date as DD/MM/YYYY.
func FormatDate(day, month, year int) string {
	return fmt.Sprintf("%02d/%02d/%04d", day, month, year)
}

var (
	_ Backend     = (*Hub)(nil)
	_ Buzzer      = (*Hub)(nil)
	_ PulseSource = (*Hub)(nil)
	_ Device      = (*Hub)(nil)

	_ GPS    = (*SerialGPS)(nil)
	_ Device = (*SerialGPS)(nil)

	_ Backend     = (*Mock)(nil)
	_ GPS         = (*Mock)(nil)
	_ Buzzer      = (*Mock)(nil)
	_ PulseSource = (*Mock)(nil)
	_ Device      = (*Mock)(nil)
)
