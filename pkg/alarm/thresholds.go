// Package alarm decides when the environment is unsafe and drives the
// buzzer and the one-shot alert for each alarm episode.
package alarm

import (
	"errors"
	"fmt"
	"math"
	"sync"
)

var (
	// ErrOutOfRange rejects a threshold outside its domain.
	ErrOutOfRange = errors.New("threshold out of range")
	// ErrUnknownField rejects a write to a field that does not exist.
	ErrUnknownField = errors.New("unknown threshold field")
)

// Field names a tunable threshold.
type Field string

// Tunable fields.
const (
	FieldGas             Field = "gas"
	FieldSoundThreshold  Field = "sound_threshold"
	FieldSoundCorrection Field = "sound_correction"
)

// Domains of the tunable fields.
const (
	MinGasPct       = 0
	MaxGasPct       = 100
	MinSoundDB      = 0.0
	MaxSoundDB      = 100.0
	MinCorrectionDB = -100.0
	MaxCorrectionDB = 100.0
)

// Power-on thresholds.
const (
	DefaultGasPct       = 60
	DefaultSoundDB      = 65.0
	DefaultCorrectionDB = -50.0
)

// Thresholds are the live-tunable alarm limits.
type Thresholds struct {
	GasPct            int
	SoundDB           float64
	SoundCorrectionDB float64
}

// DefaultThresholds returns the power-on limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		GasPct:            DefaultGasPct,
		SoundDB:           DefaultSoundDB,
		SoundCorrectionDB: DefaultCorrectionDB,
	}
}

// Validate checks every field against its domain.
func (t Thresholds) Validate() error {
	if err := check(FieldGas, float64(t.GasPct)); err != nil {
		return err
	}
	if err := check(FieldSoundThreshold, t.SoundDB); err != nil {
		return err
	}
	return check(FieldSoundCorrection, t.SoundCorrectionDB)
}

func check(field Field, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s=%v is not finite", ErrOutOfRange, field, v)
	}

	var lo, hi float64
	switch field {
	case FieldGas:
		if v != math.Trunc(v) {
			return fmt.Errorf("%w: %s=%v is not a whole percentage", ErrOutOfRange, field, v)
		}
		lo, hi = MinGasPct, MaxGasPct
	case FieldSoundThreshold:
		lo, hi = MinSoundDB, MaxSoundDB
	case FieldSoundCorrection:
		lo, hi = MinCorrectionDB, MaxCorrectionDB
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}

	if v < lo || v > hi {
		return fmt.Errorf("%w: %s=%v outside [%v, %v]", ErrOutOfRange, field, v, lo, hi)
	}
	return nil
}

// ConfigStore holds the thresholds shared by the cycle and the network
// layer. Fields are replaced one at a time, never partially.
type ConfigStore struct {
	mu sync.RWMutex
	t  Thresholds
}

// NewConfigStore creates a store. Invalid initial thresholds are rejected.
func NewConfigStore(t Thresholds) (*ConfigStore, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &ConfigStore{t: t}, nil
}

// Get returns a consistent copy.
func (c *ConfigStore) Get() Thresholds {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.t
}

// Set replaces one field. On error the store is unchanged.
func (c *ConfigStore) Set(field Field, value float64) error {
	if err := check(field, value); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch field {
	case FieldGas:
		c.t.GasPct = int(value)
	case FieldSoundThreshold:
		c.t.SoundDB = value
	case FieldSoundCorrection:
		c.t.SoundCorrectionDB = value
	}
	return nil
}
