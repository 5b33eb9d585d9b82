package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/light-orchestra/internal/adc"
	"github.com/sweeney/light-orchestra/internal/gpio"
	"github.com/sweeney/light-orchestra/internal/logger"
)

// DefaultConfigFilename is looked up when no path is given and the file exists.
const DefaultConfigFilename = "/etc/light-orchestra/config.yaml"

// Config is the top-level configuration.
type Config struct {
	Sensor      SensorConfig      `yaml:"sensor"`
	GPIO        GPIOConfig        `yaml:"gpio"`
	Trigger     TriggerConfig     `yaml:"trigger"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Player      PlayerConfig      `yaml:"player"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	HTTP        HTTPConfig        `yaml:"http"`
	Terminal    TerminalConfig    `yaml:"terminal"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// SensorConfig selects the light sensor.
type SensorConfig struct {
	// Device is the IIO sysfs raw value file.
	Device    string `yaml:"device"`
	FullScale int    `yaml:"full_scale"`
}

// GPIOConfig selects the buzzer and LED lines.
type GPIOConfig struct {
	Chip      string `yaml:"chip"`
	BuzzerPin int    `yaml:"buzzer_pin"`
	LEDPin    int    `yaml:"led_pin"`
	LEDPWMHz  int    `yaml:"led_pwm_hz"`
}

// TriggerConfig tunes baseline tracking and triggering.
type TriggerConfig struct {
	Delta         float64 `yaml:"delta"`
	AlphaIdle     float64 `yaml:"alpha_idle"`
	AlphaArmed    float64 `yaml:"alpha_armed"`
	CooldownMS    int     `yaml:"cooldown_ms"`
	CheckPeriodMS int     `yaml:"check_period_ms"`
	SettleMS      int     `yaml:"settle_ms"`
	StepGapMS     int     `yaml:"step_gap_ms"`
	StartArmed    bool    `yaml:"start_armed"`
}

// CalibrationConfig sizes the calibration bursts.
type CalibrationConfig struct {
	StartupSamples int `yaml:"startup_samples"`
	CommandSamples int `yaml:"command_samples"`
	DelayMS        int `yaml:"delay_ms"`
}

// PlayerConfig controls melody rendering.
type PlayerConfig struct {
	Duty             float64 `yaml:"duty"`
	RandomBrightness bool    `yaml:"random_brightness"`
	BrightnessMin    float64 `yaml:"brightness_min"`
	BrightnessMax    float64 `yaml:"brightness_max"`
	// Seed for melody selection; 0 seeds from the clock.
	Seed int64 `yaml:"seed"`
}

// MQTTConfig configures event publishing and remote commands.
type MQTTConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Broker     string `yaml:"broker"`
	ClientID   string `yaml:"client_id"`
	Prefix     string `yaml:"prefix"`
	Username   string `yaml:"username,omitempty"`
	Password   string `yaml:"password,omitempty"`
	OutboxSize int    `yaml:"outbox_size"`
	Commands   bool   `yaml:"commands"`
}

// HTTPConfig configures the status and command server.
type HTTPConfig struct {
	// Addr is the listen address; empty disables the server.
	Addr             string `yaml:"addr"`
	StreamIntervalMS int    `yaml:"stream_interval_ms"`
}

// TerminalConfig controls the stdin command reader.
type TerminalConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LoggingConfig sets the log level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Validation errors.
var (
	ErrSensorDevice   = errors.New("sensor.device must be set")
	ErrFullScale      = errors.New("sensor.full_scale must be positive")
	ErrPin            = errors.New("gpio pins must be non-negative and distinct")
	ErrLEDPWM         = errors.New("gpio.led_pwm_hz must be positive")
	ErrDelta          = errors.New("trigger.delta must be in (0,1]")
	ErrAlpha          = errors.New("trigger alphas must be in [0,1]")
	ErrPeriod         = errors.New("trigger.check_period_ms must be positive")
	ErrNegativeDelay  = errors.New("trigger and calibration delays must not be negative")
	ErrSamples        = errors.New("calibration sample counts must be positive")
	ErrDuty           = errors.New("player.duty must be in (0,1]")
	ErrBrightness     = errors.New("player brightness range must satisfy 0 <= min <= max <= 1")
	ErrBroker         = errors.New("mqtt.broker must be set when mqtt is enabled")
	ErrLogLevel       = errors.New("logging.level must be one of debug, info, warn, error")
	ErrStreamInterval = errors.New("http.stream_interval_ms must be positive")
)

// DefaultConfig returns a fully-populated, valid configuration.
func DefaultConfig() Config {
	return Config{
		Sensor: SensorConfig{
			Device:    adc.DefaultDevice,
			FullScale: adc.DefaultFullScale,
		},
		GPIO: GPIOConfig{
			Chip:      gpio.DefaultChip,
			BuzzerPin: gpio.DefaultPinBuzzer,
			LEDPin:    gpio.DefaultPinLED,
			LEDPWMHz:  gpio.DefaultLEDPWMHz,
		},
		Trigger: TriggerConfig{
			Delta:         0.05,
			AlphaIdle:     0.02,
			AlphaArmed:    0.005,
			CooldownMS:    400,
			CheckPeriodMS: 40,
			SettleMS:      80,
			StepGapMS:     25,
		},
		Calibration: CalibrationConfig{
			StartupSamples: 25,
			CommandSamples: 40,
			DelayMS:        20,
		},
		Player: PlayerConfig{
			Duty:          0.48,
			BrightnessMin: 0.2,
			BrightnessMax: 0.95,
		},
		MQTT: MQTTConfig{
			Enabled:    true,
			Broker:     "tcp://127.0.0.1:1883",
			ClientID:   "light-orchestra",
			Prefix:     "light-orchestra",
			OutboxSize: 100,
			Commands:   true,
		},
		HTTP: HTTPConfig{
			Addr:             ":8080",
			StreamIntervalMS: 1000,
		},
		Terminal: TerminalConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads path on top of DefaultConfig and validates the result.
// An empty path returns the defaults, or DefaultConfigFilename when it exists.
func Load(path string) (Config, error) {
	if path == "" {
		if _, err := os.Stat(DefaultConfigFilename); err != nil {
			cfg := DefaultConfig()
			return cfg, Validate(&cfg)
		}
		path = DefaultConfigFilename
	}

	b, err := os.ReadFile(filepath.Clean(ExpandPath(path)))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg, err := Parse(b)
	if err != nil {
		return Config{}, err
	}
	if err := Validate(&cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML on top of DefaultConfig. Unknown keys are an error.
func Parse(b []byte) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace and comments may follow the document.
	var extra yaml.Node
	if err := dec.Decode(&extra); err == nil {
		return Config{}, errors.New("decode config yaml: unexpected trailing document")
	}
	return cfg, nil
}

// Validate checks cfg and reports every problem found.
func Validate(cfg *Config) error {
	var errs []error
	check := func(ok bool, err error) {
		if !ok {
			errs = append(errs, err)
		}
	}

	check(cfg.Sensor.Device != "", ErrSensorDevice)
	check(cfg.Sensor.FullScale > 0, ErrFullScale)

	g := cfg.GPIO
	check(g.BuzzerPin >= 0 && g.LEDPin >= 0 && g.BuzzerPin != g.LEDPin, ErrPin)
	check(g.LEDPWMHz > 0, ErrLEDPWM)

	tr := cfg.Trigger
	check(tr.Delta > 0 && tr.Delta <= 1, ErrDelta)
	check(inUnit(tr.AlphaIdle) && inUnit(tr.AlphaArmed), ErrAlpha)
	check(tr.CheckPeriodMS > 0, ErrPeriod)
	check(tr.CooldownMS >= 0 && tr.SettleMS >= 0 && tr.StepGapMS >= 0 && cfg.Calibration.DelayMS >= 0, ErrNegativeDelay)
	check(cfg.Calibration.StartupSamples > 0 && cfg.Calibration.CommandSamples > 0, ErrSamples)

	p := cfg.Player
	check(p.Duty > 0 && p.Duty <= 1, ErrDuty)
	check(p.BrightnessMin >= 0 && p.BrightnessMin <= p.BrightnessMax && p.BrightnessMax <= 1, ErrBrightness)

	check(!cfg.MQTT.Enabled || cfg.MQTT.Broker != "", ErrBroker)
	check(cfg.HTTP.Addr == "" || cfg.HTTP.StreamIntervalMS > 0, ErrStreamInterval)

	if _, ok := logger.ParseLogLevel(cfg.Logging.Level); !ok {
		errs = append(errs, ErrLogLevel)
	}

	return errors.Join(errs...)
}

func inUnit(v float64) bool {
	return v >= 0 && v <= 1
}

// Durations.

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// Cooldown returns the trigger cooldown.
func (t TriggerConfig) Cooldown() time.Duration { return ms(t.CooldownMS) }

// CheckPeriod returns the tick period.
func (t TriggerConfig) CheckPeriod() time.Duration { return ms(t.CheckPeriodMS) }

// Settle returns the delay after an autonomous melody.
func (t TriggerConfig) Settle() time.Duration { return ms(t.SettleMS) }

// StepGap returns the silence between melody steps.
func (t TriggerConfig) StepGap() time.Duration { return ms(t.StepGapMS) }

// Delay returns the delay between calibration samples.
func (c CalibrationConfig) Delay() time.Duration { return ms(c.DelayMS) }

// StreamInterval returns the websocket push interval.
func (h HTTPConfig) StreamInterval() time.Duration { return ms(h.StreamIntervalMS) }

// ExpandPath expands a leading "~/" to the user's home directory.
func ExpandPath(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[2:])
}
