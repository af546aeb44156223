package sensor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"github.com/itohio/envmon/pkg/logging"
)

const (
	// DefaultBaudRate is the sensor hub link speed.
	DefaultBaudRate = 115200
	// DefaultStaleAfter is how long a hub frame stays usable.
	DefaultStaleAfter = 2 * time.Second
	// soundQueueSize bounds the acoustic samples buffered between reads.
	soundQueueSize = 256
)

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{
			Name:        name,
			Description: name,
		})
	}

	return result, nil
}

// frame is the latest slow-sensor report from the hub.
type frame struct {
	At          time.Time // host receive time
	Device      time.Time // MCU timestamp
	Light       int
	Gas         int
	Motion      bool
	Temperature float64 // NaN when the MCU driver failed
	Humidity    float64 // NaN when the MCU driver failed
}

// lineKind tags a parsed hub line.
type lineKind byte

const (
	lineFrame lineKind = 'F'
	lineSound lineKind = 'S'
	linePulse lineKind = 'P'
)

// hubLine is one decoded MCU line.
type hubLine struct {
	Kind  lineKind
	Frame frame
	Sound int
}

// Hub is a sensor hub microcontroller on a serial line. A reader goroutine
// decodes the line protocol into a cache; Read* methods only copy cached
// values and never touch the port.
type Hub struct {
	port       string
	baudRate   int
	staleAfter time.Duration
	logger     *zap.Logger
	now        func() time.Time

	conn      serial.Port
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool
	done      chan struct{}

	last      frame
	haveFrame bool

	sound     []int
	lastSound int
	soundAt   time.Time
	haveSound bool

	onPulse func()
}

// NewHub creates a Hub for the given port. Zero values select defaults.
func NewHub(port string, baudRate int, staleAfter time.Duration, logger *zap.Logger) *Hub {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if staleAfter == 0 {
		staleAfter = DefaultStaleAfter
	}

	return &Hub{
		port:       port,
		baudRate:   baudRate,
		staleAfter: staleAfter,
		logger:     logging.OrNop(logger).With(zap.String("port", port)),
		now:        time.Now,
		sound:      make([]int, 0, soundQueueSize),
	}
}

// Connect opens the serial port and starts decoding lines.
func (h *Hub) Connect() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.connected {
		return fmt.Errorf("already connected")
	}

	conn, err := serial.Open(h.port, &serial.Mode{BaudRate: h.baudRate})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", h.port, err)
	}

	h.conn = conn
	h.ctx, h.cancel = context.WithCancel(context.Background())
	h.done = make(chan struct{})
	h.connected = true

	go h.readLines(conn)

	return nil
}

// Close stops the reader and closes the port.
func (h *Hub) Close() error {
	h.mu.Lock()
	if !h.connected {
		h.mu.Unlock()
		return nil
	}

	h.cancel()
	var err error
	if h.conn != nil {
		err = h.conn.Close()
		h.conn = nil
	}
	h.connected = false
	done := h.done
	h.mu.Unlock()

	// The reader unblocks once the port is closed.
	<-done

	if err != nil {
		return fmt.Errorf("failed to close serial port %s: %w", h.port, err)
	}
	return nil
}

// IsConnected returns whether the port is open.
func (h *Hub) IsConnected() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.connected
}

// SetBuzzer sends the buzzer command to the MCU.
func (h *Hub) SetBuzzer(on bool) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.connected {
		return ErrNotConnected
	}

	cmd := "B0\n"
	if on {
		cmd = "B1\n"
	}
	if _, err := h.conn.Write([]byte(cmd)); err != nil {
		return fmt.Errorf("failed to send buzzer command: %w", err)
	}

	return nil
}

// OnPulse registers the PPS callback.
func (h *Hub) OnPulse(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onPulse = fn
}

// ReadTemperature returns the latest DHT temperature in °C.
func (h *Hub) ReadTemperature() (float64, error) {
	f, err := h.freshFrame()
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f.Temperature) {
		return 0, ErrUnavailable
	}
	return f.Temperature, nil
}

// ReadHumidity returns the latest DHT relative humidity in %.
func (h *Hub) ReadHumidity() (float64, error) {
	f, err := h.freshFrame()
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f.Humidity) {
		return 0, ErrUnavailable
	}
	return f.Humidity, nil
}

// ReadAnalog returns a 12-bit code. The sound channel yields streamed
// samples in arrival order and repeats the newest one once the queue is
// drained.
func (h *Hub) ReadAnalog(ch Channel) (int, error) {
	if ch == Sound {
		return h.nextSound()
	}

	f, err := h.freshFrame()
	if err != nil {
		return 0, err
	}

	switch ch {
	case Light:
		return f.Light, nil
	case Gas:
		return f.Gas, nil
	default:
		return 0, fmt.Errorf("%w: unknown %s", ErrUnavailable, ch)
	}
}

// ReadDigital returns a digital input level.
func (h *Hub) ReadDigital(pin Pin) (bool, error) {
	if pin != Motion {
		return false, fmt.Errorf("%w: unknown %s", ErrUnavailable, pin)
	}

	f, err := h.freshFrame()
	if err != nil {
		return false, err
	}
	return f.Motion, nil
}

func (h *Hub) freshFrame() (frame, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.haveFrame || h.now().Sub(h.last.At) > h.staleAfter {
		return frame{}, ErrUnavailable
	}
	return h.last, nil
}

func (h *Hub) nextSound() (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.haveSound || h.now().Sub(h.soundAt) > h.staleAfter {
		return 0, ErrUnavailable
	}
	if len(h.sound) > 0 {
		h.lastSound = h.sound[0]
		h.sound = h.sound[1:]
	}
	return h.lastSound, nil
}

// readLines decodes lines until the port closes.
func (h *Hub) readLines(r io.Reader) {
	defer close(h.done)
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("panic in hub reader", zap.Any("panic", rec))
		}
	}()

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		select {
		case <-h.ctx.Done():
			return
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := h.handleLine(line); err != nil {
			h.logger.Debug("dropping hub line", zap.String("line", line), zap.Error(err))
		}
	}

	if err := scanner.Err(); err != nil && h.ctx.Err() == nil {
		h.logger.Warn("hub read failed", zap.Error(err))
	}
}

// handleLine applies one protocol line to the cache.
func (h *Hub) handleLine(line string) error {
	msg, err := parseLine(line)
	if err != nil {
		return err
	}

	h.mu.Lock()
	now := h.now()
	var pulse func()
	switch msg.Kind {
	case lineFrame:
		msg.Frame.At = now
		h.last = msg.Frame
		h.haveFrame = true
	case lineSound:
		if len(h.sound) == soundQueueSize {
			h.sound = h.sound[1:]
		}
		h.sound = append(h.sound, msg.Sound)
		h.soundAt = now
		h.haveSound = true
	case linePulse:
		pulse = h.onPulse
	}
	h.mu.Unlock()

	if pulse != nil {
		pulse()
	}
	return nil
}

// parseLine parses a line from the MCU.
// Formats:
//
//	F,unix_micros,light,gas,pir,temp,hum   e.g. F,1234567890123,2048,900,1,21.5,nan
//	S,code                                 e.g. S,2051
//	P
func parseLine(line string) (hubLine, error) {
	parts := strings.Split(line, ",")
	switch parts[0] {
	case "P":
		if len(parts) != 1 {
			return hubLine{}, fmt.Errorf("invalid pulse line: expected no fields, got %d", len(parts)-1)
		}
		return hubLine{Kind: linePulse}, nil

	case "S":
		if len(parts) != 2 {
			return hubLine{}, fmt.Errorf("invalid sound line: expected 1 field, got %d", len(parts)-1)
		}
		code, err := parseCode(parts[1])
		if err != nil {
			return hubLine{}, fmt.Errorf("invalid sound sample: %w", err)
		}
		return hubLine{Kind: lineSound, Sound: code}, nil

	case "F":
		if len(parts) != 7 {
			return hubLine{}, fmt.Errorf("invalid frame: expected 6 fields, got %d", len(parts)-1)
		}
		micros, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return hubLine{}, fmt.Errorf("invalid timestamp: %w", err)
		}
		light, err := parseCode(parts[2])
		if err != nil {
			return hubLine{}, fmt.Errorf("invalid light: %w", err)
		}
		gas, err := parseCode(parts[3])
		if err != nil {
			return hubLine{}, fmt.Errorf("invalid gas: %w", err)
		}
		if parts[4] != "0" && parts[4] != "1" {
			return hubLine{}, fmt.Errorf("invalid pir state %q", parts[4])
		}
		temp, err := parseMaybeNaN(parts[5])
		if err != nil {
			return hubLine{}, fmt.Errorf("invalid temperature: %w", err)
		}
		hum, err := parseMaybeNaN(parts[6])
		if err != nil {
			return hubLine{}, fmt.Errorf("invalid humidity: %w", err)
		}

		return hubLine{
			Kind: lineFrame,
			Frame: frame{
				Device:      time.Unix(0, micros*1000),
				Light:       light,
				Gas:         gas,
				Motion:      parts[4] == "1",
				Temperature: temp,
				Humidity:    hum,
			},
		}, nil
	}

	return hubLine{}, fmt.Errorf("unknown line type %q", parts[0])
}

func parseCode(s string) (int, error) {
	v, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, err
	}
	if v > MaxCode {
		return 0, fmt.Errorf("code out of range: %d (max %d)", v, MaxCode)
	}
	return int(v), nil
}

// parseMaybeNaN accepts a decimal or "nan". Infinities are rejected.
func parseMaybeNaN(s string) (float64, error) {
	if strings.EqualFold(s, "nan") {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return v, nil
}
