package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestDefaultConfigIsValid ensures the zero-file configuration starts.
func TestDefaultConfigIsValid(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	require.NoError(t, Validate(&cfg))

	require.Equal(t, 40*time.Millisecond, cfg.Trigger.CheckPeriod())
	require.Equal(t, 400*time.Millisecond, cfg.Trigger.Cooldown())
	require.Equal(t, 80*time.Millisecond, cfg.Trigger.Settle())
	require.Equal(t, 25*time.Millisecond, cfg.Trigger.StepGap())
	require.Equal(t, 20*time.Millisecond, cfg.Calibration.Delay())
	require.Equal(t, time.Second, cfg.HTTP.StreamInterval())
}

func TestParseOverridesOnlyGivenKeys(t *testing.T) {
	t.Parallel()

	cfg, err := Parse([]byte(`
trigger:
  delta: 0.08
  start_armed: true
mqtt:
  prefix: studio/lights
`))
	require.NoError(t, err)

	require.Equal(t, 0.08, cfg.Trigger.Delta)
	require.True(t, cfg.Trigger.StartArmed)
	require.Equal(t, "studio/lights", cfg.MQTT.Prefix)

	// Untouched keys keep their defaults.
	def := DefaultConfig()
	require.Equal(t, def.Trigger.AlphaIdle, cfg.Trigger.AlphaIdle)
	require.Equal(t, def.MQTT.Broker, cfg.MQTT.Broker)
	require.Equal(t, def.GPIO, cfg.GPIO)
}

func TestParseEmpty(t *testing.T) {
	t.Parallel()

	cfg, err := Parse(nil)
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("trigger:\n  delat: 0.1\n"))
	require.Error(t, err)
}

func TestParseRejectsTrailingDocument(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("logging:\n  level: info\n---\nlogging:\n  level: debug\n"))
	require.ErrorContains(t, err, "trailing document")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"empty device", func(c *Config) { c.Sensor.Device = "" }, ErrSensorDevice},
		{"zero full scale", func(c *Config) { c.Sensor.FullScale = 0 }, ErrFullScale},
		{"same pins", func(c *Config) { c.GPIO.LEDPin = c.GPIO.BuzzerPin }, ErrPin},
		{"negative pin", func(c *Config) { c.GPIO.BuzzerPin = -1 }, ErrPin},
		{"zero pwm", func(c *Config) { c.GPIO.LEDPWMHz = 0 }, ErrLEDPWM},
		{"zero delta", func(c *Config) { c.Trigger.Delta = 0 }, ErrDelta},
		{"alpha above one", func(c *Config) { c.Trigger.AlphaArmed = 1.5 }, ErrAlpha},
		{"zero period", func(c *Config) { c.Trigger.CheckPeriodMS = 0 }, ErrPeriod},
		{"negative cooldown", func(c *Config) { c.Trigger.CooldownMS = -1 }, ErrNegativeDelay},
		{"no samples", func(c *Config) { c.Calibration.CommandSamples = 0 }, ErrSamples},
		{"zero duty", func(c *Config) { c.Player.Duty = 0 }, ErrDuty},
		{"inverted brightness", func(c *Config) { c.Player.BrightnessMin = 0.9; c.Player.BrightnessMax = 0.1 }, ErrBrightness},
		{"mqtt without broker", func(c *Config) { c.MQTT.Broker = "" }, ErrBroker},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, ErrLogLevel},
		{"zero stream interval", func(c *Config) { c.HTTP.StreamIntervalMS = 0 }, ErrStreamInterval},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tt.mutate(&cfg)
			require.ErrorIs(t, Validate(&cfg), tt.want)
		})
	}
}

func TestValidateAllowsDisabledSurfaces(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.MQTT.Enabled = false
	cfg.MQTT.Broker = ""
	cfg.HTTP.Addr = ""
	cfg.HTTP.StreamIntervalMS = 0
	require.NoError(t, Validate(&cfg))
}

func TestValidateReportsEveryProblem(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Sensor.Device = ""
	cfg.Player.Duty = 2

	err := Validate(&cfg)
	require.ErrorIs(t, err, ErrSensorDevice)
	require.ErrorIs(t, err, ErrDuty)
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http:\n  addr: \":9090\"\nlogging:\n  level: debug\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTP.Addr)
	require.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadInvalidFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("player:\n  duty: 0\n"), 0o600))

	_, err := Load(path)
	require.ErrorIs(t, err, ErrDuty)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestExpandPath(t *testing.T) {
	t.Parallel()

	require.Equal(t, "/etc/x.yaml", ExpandPath("/etc/x.yaml"))

	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	require.Equal(t, filepath.Join(home, "x.yaml"), ExpandPath("~/x.yaml"))
}
