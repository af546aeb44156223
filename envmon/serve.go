package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/itohio/envmon/pkg/api"
	"github.com/itohio/envmon/pkg/broker"
	"github.com/itohio/envmon/pkg/config"
	"github.com/itohio/envmon/pkg/monitor"
	"github.com/itohio/envmon/pkg/notify"
	"github.com/itohio/envmon/pkg/sensor"
	"github.com/itohio/envmon/pkg/telemetry"
)

type serveFlags struct {
	mock bool
	port string
	addr string
}

func newServeCmd(global *globalFlags) *cobra.Command {
	flags := &serveFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the monitor and its HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := global.load()
			if err != nil {
				return err
			}
			flags.apply(cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, err := newLogger(cfg, "envmon")
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			return serve(cmd.Context(), cfg, logger)
		},
	}

	cmd.Flags().BoolVar(&flags.mock, "mock", false, "Use simulated sensors instead of the serial hub")
	cmd.Flags().StringVarP(&flags.port, "port", "p", "", "Sensor hub serial port override (e.g., COM3 or /dev/ttyACM0)")
	cmd.Flags().StringVar(&flags.addr, "addr", "", "HTTP listen address override")

	return cmd
}

func (f *serveFlags) apply(cfg *config.Config) {
	if f.mock {
		cfg.Sensors.Backend = config.BackendMock
	}
	if f.port != "" {
		cfg.Sensors.Hub.Port = f.port
	}
	if f.addr != "" {
		cfg.HTTP.Addr = f.addr
	}
}

// serve wires the sensors, notifier, telemetry and API around one monitor
// and runs them until ctx is done.
func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	src, devices, err := openSources(cfg, logger)
	if err != nil {
		return err
	}
	defer closeDevices(devices, logger)

	var pub broker.Publisher
	if cfg.MQTT.Broker != "" {
		client, err := broker.New(&cfg.MQTT, logger)
		if err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
		defer client.Close()
		pub = client
	}

	sender, err := notify.NewSender(&cfg.Notify, &cfg.MQTT, pub, logger)
	if err != nil {
		return err
	}
	gate := notify.NewGate(sender, cfg.Monitor.NotifyTimeout, logger)

	mon, err := monitor.New(cfg, src, gate, logger)
	if err != nil {
		return err
	}

	sinks, closeSinks := openSinks(ctx, cfg, pub, logger)
	defer closeSinks()

	runners := []func(context.Context) error{
		mon.Run,
		api.NewServer(mon, &cfg.HTTP, logger).Run,
	}
	if len(sinks) > 0 && cfg.Monitor.PublishEvery > 0 {
		publisher := telemetry.NewPublisher(sinks, 0, 0, logger)
		mon.OnUpdate(func(d monitor.Data) { publisher.Enqueue(d) })
		runners = append(runners, publisher.Run)
	}

	logger.Info("envmon started",
		zap.String("backend", cfg.Sensors.Backend),
		zap.String("notify", cfg.Notify.Kind),
		zap.Int("sinks", len(sinks)),
		zap.String("http", cfg.HTTP.Addr),
	)
	return runAll(ctx, runners...)
}

// openSources connects the configured backend and optional GPS receiver.
// The returned devices must be closed by the caller.
func openSources(cfg *config.Config, logger *zap.Logger) (monitor.Sources, []sensor.Device, error) {
	if cfg.Sensors.Backend == config.BackendMock {
		mock := sensor.NewMock(&cfg.Mock)
		if err := mock.Connect(); err != nil {
			return monitor.Sources{}, nil, fmt.Errorf("mock sensors: %w", err)
		}
		logger.Info("using simulated sensors")
		return monitor.Sources{Backend: mock, GPS: mock, Buzzer: mock, Pulse: mock}, []sensor.Device{mock}, nil
	}

	hub := sensor.NewHub(cfg.Sensors.Hub.Port, cfg.Sensors.Hub.BaudRate, cfg.Sensors.Hub.StaleAfter, logger)
	if err := hub.Connect(); err != nil {
		return monitor.Sources{}, nil, fmt.Errorf("sensor hub on %s: %w", cfg.Sensors.Hub.Port, err)
	}
	src := monitor.Sources{Backend: hub, Buzzer: hub, Pulse: hub}
	devices := []sensor.Device{hub}

	if cfg.Sensors.GPS.Enabled {
		gps := sensor.NewSerialGPS(cfg.Sensors.GPS.Port, cfg.Sensors.GPS.BaudRate, logger)
		if err := gps.Connect(); err != nil {
			// The monitor runs without a fix; time and position stay at defaults.
			logger.Warn("gps unavailable", zap.String("port", cfg.Sensors.GPS.Port), zap.Error(err))
		} else {
			src.GPS = gps
			devices = append(devices, gps)
		}
	}

	return src, devices, nil
}

func closeDevices(devices []sensor.Device, logger *zap.Logger) {
	for _, d := range devices {
		if err := d.Close(); err != nil {
			logger.Warn("close device", zap.Error(err))
		}
	}
}

// openSinks builds the telemetry sinks enabled in cfg. An unreachable
// Redis is logged and kept; writes retry on every export.
func openSinks(ctx context.Context, cfg *config.Config, pub broker.Publisher, logger *zap.Logger) ([]telemetry.Sink, func()) {
	var sinks []telemetry.Sink
	closeFn := func() {}

	if pub != nil && cfg.MQTT.TelemetryTopic != "" {
		sinks = append(sinks, telemetry.NewMQTTSink(pub, cfg.MQTT.TelemetryTopic))
	}

	if cfg.Redis.Addr != "" {
		client := telemetry.NewRedisClient(&cfg.Redis)
		sink := telemetry.NewRedisSink(client, &cfg.Redis)
		if err := sink.Ping(ctx); err != nil {
			logger.Warn("redis unreachable", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		sinks = append(sinks, sink)
		closeFn = func() {
			if err := client.Close(); err != nil {
				logger.Warn("close redis", zap.Error(err))
			}
		}
	}

	return sinks, closeFn
}

// runAll runs every fn until ctx is done or one fails, then waits for the
// rest. Context cancellation is not reported as an error.
func runAll(ctx context.Context, fns ...func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for _, fn := range fns {
		fn := fn
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := fn(ctx)
			if err == nil || errors.Is(err, context.Canceled) {
				return
			}
			mu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
			cancel()
		}()
	}
	wg.Wait()
	return firstErr
}
