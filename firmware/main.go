//go:build tinygo

//go:generate tinygo flash -target=xiao

package main

import (
	"machine"
	"runtime/volatile"
	"time"

	"tinygo.org/x/drivers/dht"
)

var (
	adcLight machine.ADC
	adcGas   machine.ADC
	adcSound machine.ADC
	uart     = machine.UART0

	climate dht.Device

	// Latest DHT11 reading; valid is false after a failed read
	temperature float32
	humidity    float32
	climateOK   bool

	// Set from the PPS interrupt, cleared by the main loop
	ppsPending volatile.Register8

	// Timing
	lastSound time.Time
	lastFrame time.Time
	lastDHT   time.Time

	// Serial buffer for reading lines
	serialBuffer [8]byte
	serialPos    int
)

func main() {
	PIN_BUZZER.Configure(machine.PinConfig{Mode: machine.PinOutput})
	PIN_BUZZER.Low()

	PIN_PIR.Configure(machine.PinConfig{Mode: machine.PinInput})
	PIN_PPS.Configure(machine.PinConfig{Mode: machine.PinInputPulldown})
	PIN_PPS.SetInterrupt(machine.PinRising, func(machine.Pin) {
		ppsPending.Set(1)
	})

	machine.InitADC()
	adcConfig := machine.ADCConfig{
		Reference:  ADC_REFERENCE_MV,
		Resolution: ADC_RESOLUTION,
	}
	adcLight = machine.ADC{Pin: PIN_LDR}
	adcGas = machine.ADC{Pin: PIN_GAS}
	adcSound = machine.ADC{Pin: PIN_SOUND}
	adcLight.Configure(adcConfig)
	adcGas.Configure(adcConfig)
	adcSound.Configure(adcConfig)

	climate = dht.New(PIN_DHT, dht.DHT11)

	uart.Configure(machine.UARTConfig{
		BaudRate: UART_BAUD_RATE,
	})

	for {
		now := time.Now()

		processSerial()

		if ppsPending.Get() != 0 {
			ppsPending.Set(0)
			print("P\n")
		}

		if now.Sub(lastSound) >= SOUND_INTERVAL_US*time.Microsecond {
			print("S,")
			print(code(adcSound.Get()))
			print("\n")
			lastSound = now
		}

		if now.Sub(lastDHT) >= DHT_INTERVAL_MS*time.Millisecond {
			readClimate()
			lastDHT = now
		}

		if now.Sub(lastFrame) >= FRAME_INTERVAL_MS*time.Millisecond {
			outputFrame(now)
			lastFrame = now
		}

		time.Sleep(100 * time.Microsecond)
	}
}

// code scales a 16-bit ADC result to the 12-bit range the host expects.
func code(v uint16) uint16 {
	return v >> 4
}

func readClimate() {
	t, err := climate.TemperatureFloat(dht.C)
	if err != nil {
		climateOK = false
		return
	}
	h, err := climate.HumidityFloat()
	if err != nil {
		climateOK = false
		return
	}
	temperature, humidity, climateOK = t, h, true
}

// outputFrame prints "F,unix_micros,light,gas,pir,temp,hum\n" with temp
// and hum as "nan" when the DHT11 read failed.
func outputFrame(now time.Time) {
	print("F,")
	print(now.UnixNano() / 1000)
	print(",")
	print(code(adcLight.Get()))
	print(",")
	print(code(adcGas.Get()))
	print(",")
	if PIN_PIR.Get() {
		print("1")
	} else {
		print("0")
	}
	print(",")
	printClimate(temperature)
	print(",")
	printClimate(humidity)
	print("\n")
}

// printClimate prints v with one decimal, or "nan".
func printClimate(v float32) {
	if !climateOK {
		print("nan")
		return
	}
	tenths := int32(v * 10)
	if tenths < 0 {
		print("-")
		tenths = -tenths
	}
	print(tenths / 10)
	print(".")
	print(tenths % 10)
}

// processSerial handles "B0" and "B1" buzzer commands.
func processSerial() {
	for uart.Buffered() > 0 {
		data, err := uart.ReadByte()
		if err != nil {
			break
		}

		if data == '\n' || data == '\r' {
			if serialPos == 2 && serialBuffer[0] == 'B' {
				setBuzzer(serialBuffer[1])
			}
			serialPos = 0
			continue
		}

		if data == ' ' || data == '\t' {
			continue
		}

		if serialPos < len(serialBuffer) {
			serialBuffer[serialPos] = data
			serialPos++
		}
	}
}

func setBuzzer(state byte) {
	switch state {
	case '1':
		PIN_BUZZER.High()
	case '0':
		PIN_BUZZER.Low()
	}
}
