// Command light-orchestra watches an ambient light sensor and plays a short
// melody on a buzzer when the light jumps. It also accepts operator commands
// from the terminal, HTTP and MQTT.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sweeney/light-orchestra/internal/adc"
	"github.com/sweeney/light-orchestra/internal/config"
	"github.com/sweeney/light-orchestra/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// flags are command-line overrides for the config file.
type flags struct {
	configPath string
	sensor     string
	broker     string
	noMQTT     bool
	httpAddr   string
	armed      bool
	noTerminal bool
	logLevel   string
	seed       int64
}

func newRootCmd() *cobra.Command {
	var f flags

	root := &cobra.Command{
		Use:   "light-orchestra",
		Short: "Play a melody whenever the ambient light jumps",
		Long: `light-orchestra samples a light sensor, keeps a slowly adapting baseline
and, while armed, plays a random melody on the buzzer when the light rises
sharply above it.

Commands (start, stop, calibrate, play <hz> <ms>, quit) are read from the
terminal, from the HTTP endpoints and from the MQTT commands topic.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, &f)
			if err != nil {
				return err
			}
			return daemon(cmd.Context(), cfg)
		},
	}

	f.register(root)
	root.AddCommand(newSampleCmd(&f))
	root.AddCommand(version.NewCommand())

	return root
}

// register binds the flags to root. Persistent flags also apply to sample.
func (f *flags) register(root *cobra.Command) {
	root.PersistentFlags().StringVarP(&f.configPath, "config", "c", "",
		fmt.Sprintf("path to configuration file (default %s if present)", config.DefaultConfigFilename))
	root.PersistentFlags().StringVar(&f.sensor, "sensor", adc.DefaultDevice, "IIO raw channel file of the light sensor")
	root.PersistentFlags().StringVar(&f.logLevel, "log-level", "info", "log level: debug, info, warn, error")

	root.Flags().StringVar(&f.broker, "broker", "", "MQTT broker address, e.g. tcp://127.0.0.1:1883")
	root.Flags().BoolVar(&f.noMQTT, "no-mqtt", false, "disable MQTT publishing and commands")
	root.Flags().StringVar(&f.httpAddr, "http", "", `HTTP listen address ("" in config disables)`)
	root.Flags().BoolVar(&f.armed, "armed", false, "start with autonomous triggering armed")
	root.Flags().BoolVar(&f.noTerminal, "no-terminal", false, "do not read commands from stdin")
	root.Flags().Int64Var(&f.seed, "seed", 0, "melody picker seed (0 picks one from the clock)")
}

// loadConfig reads the config file and applies only the flags the user set,
// so file values are not clobbered by flag defaults.
func loadConfig(cmd *cobra.Command, f *flags) (config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return config.Config{}, err
	}

	changed := cmd.Flags().Changed
	if changed("sensor") {
		cfg.Sensor.Device = f.sensor
	}
	if changed("log-level") {
		cfg.Logging.Level = f.logLevel
	}
	if changed("broker") {
		cfg.MQTT.Broker = f.broker
	}
	if changed("no-mqtt") {
		cfg.MQTT.Enabled = !f.noMQTT
	}
	if changed("http") {
		cfg.HTTP.Addr = f.httpAddr
	}
	if changed("armed") {
		cfg.Trigger.StartArmed = f.armed
	}
	if changed("no-terminal") {
		cfg.Terminal.Enabled = !f.noTerminal
	}
	if changed("seed") {
		cfg.Player.Seed = f.seed
	}

	if err := config.Validate(&cfg); err != nil {
		return config.Config{}, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}

func newSampleCmd(f *flags) *cobra.Command {
	var (
		count    int
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Print normalized light sensor readings and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			sensor, err := adc.NewRealSensor(cfg.Sensor.Device, cfg.Sensor.FullScale)
			if err != nil {
				return fmt.Errorf("init sensor: %w", err)
			}
			defer sensor.Close()

			return printSamples(cmd, sensor, count, interval)
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of readings")
	cmd.Flags().DurationVar(&interval, "interval", 100*time.Millisecond, "delay between readings")

	return cmd
}

func printSamples(cmd *cobra.Command, sensor adc.Sensor, count int, interval time.Duration) error {
	for i := 0; i < count; i++ {
		if i > 0 {
			select {
			case <-cmd.Context().Done():
				return nil
			case <-time.After(interval):
			}
		}
		v, err := sensor.Read()
		if err != nil {
			return fmt.Errorf("read sensor: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%.3f\n", v)
	}
	return nil
}
