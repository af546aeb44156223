// Package sample converts raw sensor codes into calibrated physical units.
package sample

import (
	"math"

	"github.com/itohio/envmon/pkg/sensor"
)

const (
	// MinLux and MaxLux bound the photoresistor mapping.
	MinLux = 10.0
	MaxLux = 50000.0

	// MinDB and MaxDB bound the acoustic level.
	MinDB = 0.0
	MaxDB = 100.0

	// NoiseFloor is the smallest peak-to-peak amplitude (counts) treated as sound.
	NoiseFloor = 10
)

// Lux converts a photoresistor code to illuminance. Higher codes are darker.
func Lux(raw int) float64 {
	raw = clampInt(raw, 0, sensor.MaxCode)
	lux := float64(sensor.MaxCode-raw)/sensor.MaxCode*(MaxLux-MinLux) + MinLux
	return clamp(lux, MinLux, MaxLux)
}

// GasPercent rescales a gas sensor code to 0-100 with integer truncation.
func GasPercent(raw int) int {
	return raw * 100 / sensor.MaxCode
}

// Decibel converts a peak-to-peak amplitude to a pseudo-decibel level.
// Peaks of 1 or less are silence.
func Decibel(peak int, correction float64) float64 {
	if peak <= 1 {
		return 0
	}
	db := 20*math.Log10(float64(peak)) + correction
	if math.IsNaN(db) {
		return 0
	}
	return clamp(db, MinDB, MaxDB)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
