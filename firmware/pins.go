//go:build tinygo

package main

import "machine"

const (
	// Sampling configuration
	SOUND_INTERVAL_US = 2000 // Acoustic sample interval (~500 Hz)
	FRAME_INTERVAL_MS = 100  // Slow sensor frame interval
	DHT_INTERVAL_MS   = 2000 // DHT11 needs at least 1s between reads

	// ADC configuration
	ADC_REFERENCE_MV = 3300 // Reference voltage in millivolts (3.3V)
	ADC_RESOLUTION   = 12   // ADC resolution in bits (12-bit = 0-4095)

	// Analog inputs
	PIN_LDR   = machine.A0
	PIN_GAS   = machine.A1
	PIN_SOUND = machine.A2 // KY-037 A0

	// Digital inputs
	PIN_PIR = machine.D3
	PIN_PPS = machine.D4 // GPS PPS, rising edge
	PIN_DHT = machine.D5

	// Outputs
	PIN_BUZZER = machine.D6

	// Serial configuration
	// Sound lines "S,4095\n" are 7 bytes at 500/s = 3,500 bytes/sec, plus
	// frames "F,1234567890123456,4095,4095,1,-12.5,100.0\n" (~45 bytes) at
	// 10/s = 450 bytes/sec. UART 8N1 at 115200 moves 11,520 bytes/sec,
	// ~2.9x headroom.
	UART_BAUD_RATE = 115200
)
