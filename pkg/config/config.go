package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend names accepted in SensorsConfig.Backend.
const (
	BackendMock   = "mock"
	BackendSerial = "serial"
)

// Notifier names accepted in NotifyConfig.Kind.
const (
	NotifyLog      = "log"
	NotifyPushover = "pushover"
	NotifyMQTT     = "mqtt"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid configuration")

// Config represents the application configuration.
type Config struct {
	Monitor MonitorConfig `yaml:"monitor"`
	Alarm   AlarmConfig   `yaml:"alarm"`
	Sensors SensorsConfig `yaml:"sensors"`
	Mock    MockConfig    `yaml:"mock"`
	HTTP    HTTPConfig    `yaml:"http"`
	Notify  NotifyConfig  `yaml:"notify"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Redis   RedisConfig   `yaml:"redis"`
	Log     LogConfig     `yaml:"log"`
}

// MonitorConfig contains sampling cycle parameters.
type MonitorConfig struct {
	Interval      time.Duration `yaml:"interval"`       // Cycle period (100ms-1s)
	SoundWindow   time.Duration `yaml:"sound_window"`   // Acoustic peak-to-peak window
	NotifyTimeout time.Duration `yaml:"notify_timeout"` // Upper bound for one alert send
	PublishEvery  int           `yaml:"publish_every"`  // Telemetry publish period in cycles (0 = off)
}

// AlarmConfig contains the thresholds the engine starts with.
type AlarmConfig struct {
	GasThresholdPct   int     `yaml:"gas_threshold_pct"`
	SoundThresholdDB  float64 `yaml:"sound_threshold_db"`
	SoundCorrectionDB float64 `yaml:"sound_correction_db"`
	Armed             bool    `yaml:"armed"`
}

// SensorsConfig selects and configures acquisition backends.
type SensorsConfig struct {
	Backend string          `yaml:"backend"`
	Hub     SerialConfig    `yaml:"hub"`
	GPS     GPSSerialConfig `yaml:"gps"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port       string        `yaml:"port"`
	BaudRate   int           `yaml:"baud_rate"`
	StaleAfter time.Duration `yaml:"stale_after"` // Frames older than this read as unavailable
}

// GPSSerialConfig contains the NMEA receiver port configuration.
type GPSSerialConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// MockConfig contains simulated sensor configuration.
type MockConfig struct {
	GasBaseline  int           `yaml:"gas_baseline"`  // Raw gas code at rest
	GasPeak      int           `yaml:"gas_peak"`      // Raw gas code during a leak
	LeakPeriod   time.Duration `yaml:"leak_period"`   // Time between simulated leaks (0 = never)
	LeakDuration time.Duration `yaml:"leak_duration"` // Duration of a simulated leak
	SoundNoise   int           `yaml:"sound_noise"`   // Acoustic noise amplitude (counts)
	PulsePeriod  time.Duration `yaml:"pulse_period"`  // PPS period (0 = no pulses)
	Latitude     float64       `yaml:"latitude"`
	Longitude    float64       `yaml:"longitude"`
}

// HTTPConfig contains the local network API configuration.
type HTTPConfig struct {
	Addr        string   `yaml:"addr"`
	AssetsDir   string   `yaml:"assets_dir"`
	User        string   `yaml:"user"`
	Password    string   `yaml:"password"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// NotifyConfig selects the alert transport.
type NotifyConfig struct {
	Kind     string         `yaml:"kind"`
	Pushover PushoverConfig `yaml:"pushover"`
}

// PushoverConfig contains Pushover API credentials.
type PushoverConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
	User  string `yaml:"user"`
}

// MQTTConfig contains broker configuration shared by telemetry and alerts.
type MQTTConfig struct {
	Broker         string `yaml:"broker"` // Empty disables MQTT
	ClientID       string `yaml:"client_id"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	QoS            byte   `yaml:"qos"`
	TelemetryTopic string `yaml:"telemetry_topic"`
	AlertTopic     string `yaml:"alert_topic"`
}

// RedisConfig contains the telemetry cache configuration.
type RedisConfig struct {
	Addr      string        `yaml:"addr"` // Empty disables Redis
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	LatestKey string        `yaml:"latest_key"`
	Stream    string        `yaml:"stream"`
	MaxLen    int64         `yaml:"max_len"`
	TTL       time.Duration `yaml:"ttl"`
}

// LogConfig contains logger configuration.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Monitor: MonitorConfig{
			Interval:      100 * time.Millisecond,
			SoundWindow:   30 * time.Millisecond,
			NotifyTimeout: 5 * time.Second,
			PublishEvery:  10, // once a second at the default interval
		},
		Alarm: AlarmConfig{
			GasThresholdPct:   60,
			SoundThresholdDB:  65,
			SoundCorrectionDB: -50,
			Armed:             true,
		},
		Sensors: SensorsConfig{
			Backend: BackendMock,
			Hub: SerialConfig{
				Port:       "/dev/ttyACM0",
				BaudRate:   115200,
				StaleAfter: 2 * time.Second,
			},
			GPS: GPSSerialConfig{
				Enabled:  false,
				Port:     "/dev/ttyS0",
				BaudRate: 9600,
			},
		},
		Mock: MockConfig{
			GasBaseline:  800,
			GasPeak:      3000,
			LeakPeriod:   60 * time.Second,
			LeakDuration: 5 * time.Second,
			SoundNoise:   40,
			PulsePeriod:  time.Second,
			Latitude:     48.8566,
			Longitude:    2.3522,
		},
		HTTP: HTTPConfig{
			Addr:        ":8080",
			AssetsDir:   "./data",
			User:        "admin",
			Password:    "admin",
			CORSOrigins: []string{"*"},
		},
		Notify: NotifyConfig{
			Kind: NotifyLog,
			Pushover: PushoverConfig{
				URL: "https://api.pushover.net/1/messages.json",
			},
		},
		MQTT: MQTTConfig{
			ClientID:       "envmon",
			QoS:            1,
			TelemetryTopic: "envmon/telemetry",
			AlertTopic:     "envmon/alert",
		},
		Redis: RedisConfig{
			LatestKey: "envmon:latest",
			Stream:    "envmon:telemetry",
			MaxLen:    10000,
			TTL:       time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks ranges that cannot be repaired with defaults.
func (c *Config) Validate() error {
	if c.Monitor.Interval < 100*time.Millisecond || c.Monitor.Interval > time.Second {
		return fmt.Errorf("%w: monitor.interval %s outside [100ms, 1s]", ErrInvalid, c.Monitor.Interval)
	}
	if c.Monitor.SoundWindow >= c.Monitor.Interval {
		return fmt.Errorf("%w: monitor.sound_window %s must fit in the cycle interval", ErrInvalid, c.Monitor.SoundWindow)
	}
	if c.Alarm.GasThresholdPct < 0 || c.Alarm.GasThresholdPct > 100 {
		return fmt.Errorf("%w: alarm.gas_threshold_pct %d outside [0, 100]", ErrInvalid, c.Alarm.GasThresholdPct)
	}
	if !inRange(c.Alarm.SoundThresholdDB, 0, 100) {
		return fmt.Errorf("%w: alarm.sound_threshold_db %v outside [0, 100]", ErrInvalid, c.Alarm.SoundThresholdDB)
	}
	if !inRange(c.Alarm.SoundCorrectionDB, -100, 100) {
		return fmt.Errorf("%w: alarm.sound_correction_db %v outside [-100, 100]", ErrInvalid, c.Alarm.SoundCorrectionDB)
	}

	switch c.Sensors.Backend {
	case BackendMock, BackendSerial:
	default:
		return fmt.Errorf("%w: unknown sensors.backend %q", ErrInvalid, c.Sensors.Backend)
	}

	switch c.Notify.Kind {
	case NotifyLog:
	case NotifyPushover:
		if c.Notify.Pushover.Token == "" || c.Notify.Pushover.User == "" {
			return fmt.Errorf("%w: notify.pushover needs token and user", ErrInvalid)
		}
	case NotifyMQTT:
		if c.MQTT.Broker == "" {
			return fmt.Errorf("%w: notify.kind mqtt needs mqtt.broker", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown notify.kind %q", ErrInvalid, c.Notify.Kind)
	}

	if c.MQTT.QoS > 2 {
		return fmt.Errorf("%w: mqtt.qos %d", ErrInvalid, c.MQTT.QoS)
	}

	return nil
}

func inRange(v, lo, hi float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= lo && v <= hi
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Monitor.Interval == 0 {
		c.Monitor.Interval = def.Monitor.Interval
	}
	if c.Monitor.SoundWindow == 0 {
		c.Monitor.SoundWindow = def.Monitor.SoundWindow
	}
	if c.Monitor.NotifyTimeout == 0 {
		c.Monitor.NotifyTimeout = def.Monitor.NotifyTimeout
	}

	if c.Sensors.Backend == "" {
		c.Sensors.Backend = def.Sensors.Backend
	}
	if c.Sensors.Hub.Port == "" {
		c.Sensors.Hub.Port = def.Sensors.Hub.Port
	}
	if c.Sensors.Hub.BaudRate == 0 {
		c.Sensors.Hub.BaudRate = def.Sensors.Hub.BaudRate
	}
	if c.Sensors.Hub.StaleAfter == 0 {
		c.Sensors.Hub.StaleAfter = def.Sensors.Hub.StaleAfter
	}
	if c.Sensors.GPS.Port == "" {
		c.Sensors.GPS.Port = def.Sensors.GPS.Port
	}
	if c.Sensors.GPS.BaudRate == 0 {
		c.Sensors.GPS.BaudRate = def.Sensors.GPS.BaudRate
	}

	if c.HTTP.Addr == "" {
		c.HTTP.Addr = def.HTTP.Addr
	}
	if c.HTTP.AssetsDir == "" {
		c.HTTP.AssetsDir = def.HTTP.AssetsDir
	}
	if len(c.HTTP.CORSOrigins) == 0 {
		c.HTTP.CORSOrigins = def.HTTP.CORSOrigins
	}

	if c.Notify.Kind == "" {
		c.Notify.Kind = def.Notify.Kind
	}
	if c.Notify.Pushover.URL == "" {
		c.Notify.Pushover.URL = def.Notify.Pushover.URL
	}

	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = def.MQTT.ClientID
	}
	if c.MQTT.TelemetryTopic == "" {
		c.MQTT.TelemetryTopic = def.MQTT.TelemetryTopic
	}
	if c.MQTT.AlertTopic == "" {
		c.MQTT.AlertTopic = def.MQTT.AlertTopic
	}

	if c.Redis.LatestKey == "" {
		c.Redis.LatestKey = def.Redis.LatestKey
	}
	if c.Redis.Stream == "" {
		c.Redis.Stream = def.Redis.Stream
	}
	if c.Redis.MaxLen == 0 {
		c.Redis.MaxLen = def.Redis.MaxLen
	}
	if c.Redis.TTL == 0 {
		c.Redis.TTL = def.Redis.TTL
	}

	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
}
