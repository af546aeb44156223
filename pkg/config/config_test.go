package config

import (
	"math"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.NotNil(t, cfg)
	assert.Equal(t, 100*time.Millisecond, cfg.Monitor.Interval)
	assert.Equal(t, 30*time.Millisecond, cfg.Monitor.SoundWindow)
	assert.Equal(t, 60, cfg.Alarm.GasThresholdPct)
	assert.Equal(t, float64(65), cfg.Alarm.SoundThresholdDB)
	assert.Equal(t, float64(-50), cfg.Alarm.SoundCorrectionDB)
	assert.True(t, cfg.Alarm.Armed)
	assert.Equal(t, BackendMock, cfg.Sensors.Backend)
	assert.Equal(t, 9600, cfg.Sensors.GPS.BaudRate)
	assert.Equal(t, NotifyLog, cfg.Notify.Kind)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileNotExists(t *testing.T) {
	cfg, err := Load("nonexistent.yaml")
	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Equal(t, "/dev/ttyACM0", cfg.Sensors.Hub.Port)
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	yamlContent := `
monitor:
  interval: 250ms
  sound_window: 30ms
  notify_timeout: 3s

alarm:
  gas_threshold_pct: 45
  sound_threshold_db: 70.5
  sound_correction_db: -40
  armed: false

sensors:
  backend: serial
  hub:
    port: "/dev/ttyUSB1"
    baud_rate: 57600
  gps:
    enabled: true
    port: "/dev/ttyAMA0"

notify:
  kind: pushover
  pushover:
    token: tok
    user: usr

redis:
  addr: "localhost:6379"
`

	_, err = tmpfile.WriteString(yamlContent)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, 250*time.Millisecond, cfg.Monitor.Interval)
	assert.Equal(t, 3*time.Second, cfg.Monitor.NotifyTimeout)
	assert.Equal(t, 45, cfg.Alarm.GasThresholdPct)
	assert.Equal(t, 70.5, cfg.Alarm.SoundThresholdDB)
	assert.Equal(t, float64(-40), cfg.Alarm.SoundCorrectionDB)
	assert.False(t, cfg.Alarm.Armed)
	assert.Equal(t, BackendSerial, cfg.Sensors.Backend)
	assert.Equal(t, "/dev/ttyUSB1", cfg.Sensors.Hub.Port)
	assert.Equal(t, 57600, cfg.Sensors.Hub.BaudRate)
	assert.True(t, cfg.Sensors.GPS.Enabled)
	assert.Equal(t, "/dev/ttyAMA0", cfg.Sensors.GPS.Port)
	assert.Equal(t, 9600, cfg.Sensors.GPS.BaudRate) // default
	assert.Equal(t, "tok", cfg.Notify.Pushover.Token)
	assert.Equal(t, "https://api.pushover.net/1/messages.json", cfg.Notify.Pushover.URL) // default
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "envmon:latest", cfg.Redis.LatestKey) // default
	assert.NoError(t, cfg.Validate())
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	_, err = tmpfile.WriteString("invalid: yaml: content: [")
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_PartialYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	yamlContent := `
http:
  addr: ":9000"
`

	_, err = tmpfile.WriteString(yamlContent)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	// Should use defaults for missing fields
	assert.Equal(t, ":9000", cfg.HTTP.Addr)
	assert.Equal(t, 60, cfg.Alarm.GasThresholdPct)              // default
	assert.True(t, cfg.Alarm.Armed)                             // default
	assert.Equal(t, 100*time.Millisecond, cfg.Monitor.Interval) // default
}

func TestSave(t *testing.T) {
	cfg := Default()
	cfg.Sensors.Hub.Port = "/dev/ttyUSB0"
	cfg.Alarm.GasThresholdPct = 75

	tmpfile, err := os.CreateTemp("", "test_save_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	err = cfg.Save(tmpfile.Name())
	require.NoError(t, err)

	loaded, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", loaded.Sensors.Hub.Port)
	assert.Equal(t, 75, loaded.Alarm.GasThresholdPct)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{
			name:   "interval too short",
			mutate: func(c *Config) { c.Monitor.Interval = 50 * time.Millisecond },
		},
		{
			name:   "interval too long",
			mutate: func(c *Config) { c.Monitor.Interval = 2 * time.Second },
		},
		{
			name:   "sound window exceeds cycle",
			mutate: func(c *Config) { c.Monitor.SoundWindow = 150 * time.Millisecond },
		},
		{
			name:   "gas threshold above 100",
			mutate: func(c *Config) { c.Alarm.GasThresholdPct = 101 },
		},
		{
			name:   "sound threshold NaN",
			mutate: func(c *Config) { c.Alarm.SoundThresholdDB = math.NaN() },
		},
		{
			name:   "correction out of range",
			mutate: func(c *Config) { c.Alarm.SoundCorrectionDB = -200 },
		},
		{
			name:   "unknown backend",
			mutate: func(c *Config) { c.Sensors.Backend = "gpio" },
		},
		{
			name:   "pushover without credentials",
			mutate: func(c *Config) { c.Notify.Kind = NotifyPushover },
		},
		{
			name:   "mqtt notifier without broker",
			mutate: func(c *Config) { c.Notify.Kind = NotifyMQTT },
		},
		{
			name:   "bad qos",
			mutate: func(c *Config) { c.MQTT.QoS = 3 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}
