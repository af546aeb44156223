package sensor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	nmea "github.com/adrianmo/go-nmea"
	"go.bug.st/serial"
	"go.uber.org/zap"

	"github.com/itohio/envmon/pkg/logging"
)

// DefaultGPSBaudRate is the NEO-6M factory baud rate.
const DefaultGPSBaudRate = 9600

// knotsToKmph converts speed over ground.
const knotsToKmph = 1.852

// SerialGPS decodes NMEA sentences from a UART receiver. Fields are
// accumulated as they arrive and handed out once by Poll.
type SerialGPS struct {
	port     string
	baudRate int
	logger   *zap.Logger

	conn      serial.Port
	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool
	done      chan struct{}

	pending GPSUpdate
}

// NewSerialGPS creates a receiver on the given port.
func NewSerialGPS(port string, baudRate int, logger *zap.Logger) *SerialGPS {
	if baudRate == 0 {
		baudRate = DefaultGPSBaudRate
	}
	return &SerialGPS{
		port:     port,
		baudRate: baudRate,
		logger:   logging.OrNop(logger).With(zap.String("port", port)),
	}
}

// Connect opens the UART and starts decoding.
func (g *SerialGPS) Connect() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.connected {
		return fmt.Errorf("already connected")
	}

	conn, err := serial.Open(g.port, &serial.Mode{BaudRate: g.baudRate})
	if err != nil {
		return fmt.Errorf("failed to open gps port %s: %w", g.port, err)
	}

	g.conn = conn
	g.ctx, g.cancel = context.WithCancel(context.Background())
	g.done = make(chan struct{})
	g.connected = true

	go g.readSentences(conn)

	return nil
}

// Close stops decoding and closes the UART.
func (g *SerialGPS) Close() error {
	g.mu.Lock()
	if !g.connected {
		g.mu.Unlock()
		return nil
	}

	g.cancel()
	err := g.conn.Close()
	g.conn = nil
	g.connected = false
	done := g.done
	g.mu.Unlock()

	<-done

	if err != nil {
		return fmt.Errorf("failed to close gps port %s: %w", g.port, err)
	}
	return nil
}

// IsConnected returns whether the UART is open.
func (g *SerialGPS) IsConnected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.connected
}

// Poll returns the fields updated since the previous call.
func (g *SerialGPS) Poll() GPSUpdate {
	g.mu.Lock()
	defer g.mu.Unlock()

	u := g.pending
	g.pending = GPSUpdate{}
	return u
}

func (g *SerialGPS) readSentences(r io.Reader) {
	defer close(g.done)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		select {
		case <-g.ctx.Done():
			return
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := g.handleSentence(line); err != nil {
			g.logger.Debug("dropping nmea sentence", zap.String("sentence", line), zap.Error(err))
		}
	}

	if err := scanner.Err(); err != nil && g.ctx.Err() == nil {
		g.logger.Warn("gps read failed", zap.Error(err))
	}
}

// handleSentence merges one sentence into the pending update. Unsupported
// sentence types are ignored.
func (g *SerialGPS) handleSentence(line string) error {
	s, err := nmea.Parse(line)
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	switch m := s.(type) {
	case nmea.RMC:
		if m.Time.Valid {
			t := FormatTime(m.Time.Hour, m.Time.Minute, m.Time.Second)
			g.pending.Time = &t
		}
		if m.Date.Valid {
			d := FormatDate(m.Date.DD, m.Date.MM, 2000+m.Date.YY)
			g.pending.Date = &d
		}
		if m.Validity == nmea.ValidRMC {
			g.pending.Location = &LatLng{Lat: m.Latitude, Lng: m.Longitude}
			speed := m.Speed * knotsToKmph
			g.pending.SpeedKmph = &speed
		}
	case nmea.GGA:
		sats := int(m.NumSatellites)
		g.pending.Satellites = &sats
		valid := m.FixQuality != nmea.Invalid
		g.pending.Valid = &valid
		if valid {
			hdop := m.HDOP
			g.pending.HDOP = &hdop
		}
	}

	return nil
}
