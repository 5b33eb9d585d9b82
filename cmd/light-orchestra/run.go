package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sweeney/light-orchestra/internal/adc"
	"github.com/sweeney/light-orchestra/internal/arbiter"
	"github.com/sweeney/light-orchestra/internal/clock"
	"github.com/sweeney/light-orchestra/internal/command"
	"github.com/sweeney/light-orchestra/internal/config"
	"github.com/sweeney/light-orchestra/internal/control"
	"github.com/sweeney/light-orchestra/internal/gpio"
	"github.com/sweeney/light-orchestra/internal/logger"
	"github.com/sweeney/light-orchestra/internal/logic"
	"github.com/sweeney/light-orchestra/internal/mqtt"
	"github.com/sweeney/light-orchestra/internal/player"
	"github.com/sweeney/light-orchestra/internal/status"
	"github.com/sweeney/light-orchestra/internal/version"
	"github.com/sweeney/light-orchestra/internal/web"
)

// Shutdown reasons carried in the SHUTDOWN system event.
const (
	reasonQuit      = "QUIT"
	reasonSIGINT    = "SIGINT"
	reasonSIGTERM   = "SIGTERM"
	reasonCancelled = "CANCELLED"
)

// actuatorWarnInterval limits actuator fault warnings.
const actuatorWarnInterval = 10 * time.Second

// publisher is an MQTT publisher that can also report its connection state.
type publisher interface {
	mqtt.Publisher
	mqtt.ConnectionStatus
}

// daemon opens the hardware and runs until quit or a signal.
func daemon(ctx context.Context, cfg config.Config) error {
	sensor, err := adc.NewRealSensor(cfg.Sensor.Device, cfg.Sensor.FullScale)
	if err != nil {
		return fmt.Errorf("init sensor: %w", err)
	}
	defer sensor.Close()

	act, err := gpio.NewRealActuator(cfg.GPIO.Chip, cfg.GPIO.BuzzerPin, cfg.GPIO.LEDPin, cfg.GPIO.LEDPWMHz)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer func() {
		if err := act.Close(); err != nil {
			logger.WarnKV(ctx, "release gpio", "error", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)

	return run(ctx, cfg, sensor, act, os.Stdin, sig)
}

// run wires the control loop to its command sources and status consumers.
// It returns after runLoop does and every surface has shut down.
func run(ctx context.Context, cfg config.Config, sensor adc.Sensor, act gpio.Actuator, stdin io.Reader, sig <-chan os.Signal) error {
	if lvl, ok := logger.ParseLogLevel(cfg.Logging.Level); ok {
		logger.SetLevel(lvl)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	clk := clock.Real{}
	out := gpio.NewSafe(act, actuatorWarnInterval)
	defer out.Off()

	seed := cfg.Player.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	picker := logic.NewPicker(logic.Catalog, rand.New(rand.NewSource(seed)))
	seq := player.New(out, clk, picker, player.Config{
		Duty:             cfg.Player.Duty,
		RandomBrightness: cfg.Player.RandomBrightness,
		BrightnessMin:    cfg.Player.BrightnessMin,
		BrightnessMax:    cfg.Player.BrightnessMax,
	})

	arb := arbiter.New(gctx, out, clk.Now)
	defer arb.Close()

	mailbox := command.NewMailbox()
	loopCfg := control.DefaultConfig()
	loopCfg.TriggerDelta = cfg.Trigger.Delta
	loopCfg.AlphaIdle = cfg.Trigger.AlphaIdle
	loopCfg.AlphaArmed = cfg.Trigger.AlphaArmed
	loopCfg.Cooldown = cfg.Trigger.Cooldown()
	loopCfg.StepGap = cfg.Trigger.StepGap()
	loopCfg.SettleDelay = cfg.Trigger.Settle()
	loopCfg.CalibrationSamples = cfg.Calibration.CommandSamples
	loopCfg.CalibrationDelay = cfg.Calibration.Delay()
	loopCfg.StartArmed = cfg.Trigger.StartArmed

	loop := control.New(loopCfg, control.Deps{
		Sensor:    sensor,
		Out:       out,
		Clock:     clk,
		Sequencer: seq,
		Arbiter:   arb,
		Mailbox:   mailbox,
	})

	_, calErr := loop.Calibrate(gctx, cfg.Calibration.StartupSamples, cfg.Calibration.Delay())
	if calErr != nil {
		logger.WarnKV(ctx, "startup calibration failed, baseline will adapt", "error", calErr)
	}

	broker := ""
	if cfg.MQTT.Enabled {
		broker = cfg.MQTT.Broker
	}
	tracker := status.NewTracker(time.Now(), status.Config{
		CheckPeriodMs: int64(cfg.Trigger.CheckPeriodMS),
		CooldownMs:    int64(cfg.Trigger.CooldownMS),
		TriggerDelta:  cfg.Trigger.Delta,
		Sensor:        cfg.Sensor.Device,
		Broker:        broker,
		Prefix:        cfg.MQTT.Prefix,
		HTTPAddr:      cfg.HTTP.Addr,
	})
	tracker.SetCalibrated(calErr == nil)
	tracker.Update(loop.Snapshot())
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	pub := newPublisher(ctx, cfg.MQTT, mailbox)
	defer pub.Close()

	// Publish startup event with full status snapshot
	tracker.SetMQTTConnected(pub.IsConnected())
	snap := tracker.Snapshot()
	if err := pub.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      mqtt.EventStartup,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, mqtt.EventStartup, ""),
	}); err != nil {
		logger.WarnKV(ctx, "failed to publish startup event", "error", err)
	}

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, mailbox, cfg.HTTP.StreamInterval())
		g.Go(func() error {
			logger.InfoKV(ctx, "http status server listening", "addr", cfg.HTTP.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			return srv.Shutdown(shutdownCtx)
		})
	}

	// The terminal reader blocks in Read and cannot be interrupted, so it is
	// not part of the group.
	if cfg.Terminal.Enabled && stdin != nil {
		go func() {
			if err := command.ReadTerminal(gctx, stdin, mailbox); err != nil {
				logger.WarnKV(ctx, "terminal input stopped", "error", err)
			}
		}()
	}

	logger.InfoKV(ctx, "started",
		"version", version.Short(),
		"mode", string(loop.Mode()),
		"baseline", loop.Snapshot().Baseline,
		"check_period", cfg.Trigger.CheckPeriod(),
		"mqtt", broker,
		"http", cfg.HTTP.Addr,
	)

	ticker := time.NewTicker(cfg.Trigger.CheckPeriod())
	defer ticker.Stop()

	g.Go(func() error {
		defer cancel()
		return runLoop(gctx, loop, pub, pub, tracker, ticker.C, sig)
	})
	return g.Wait()
}

// newPublisher connects to the broker when MQTT is enabled. A failed
// connection is logged and the daemon continues without MQTT.
func newPublisher(ctx context.Context, cfg config.MQTTConfig, mailbox *command.Mailbox) publisher {
	if !cfg.Enabled {
		return mqtt.NopPublisher{}
	}
	opts := mqtt.Options{
		Broker:     cfg.Broker,
		ClientID:   cfg.ClientID,
		Prefix:     cfg.Prefix,
		Username:   cfg.Username,
		Password:   cfg.Password,
		OutboxSize: cfg.OutboxSize,
	}
	if cfg.Commands {
		opts.Commands = mailbox
	}
	p, err := mqtt.NewRealPublisher(opts)
	if err != nil {
		logger.WarnKV(ctx, "mqtt unavailable, continuing without it", "broker", cfg.Broker, "error", err)
		return mqtt.NopPublisher{}
	}
	return p
}

func runLoop(ctx context.Context, loop *control.Loop, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, tick <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			logger.InfoKV(ctx, "received signal, shutting down", "signal", s.String())
			publishShutdown(ctx, publisher, mqttStatus, tracker, signalReason(s))
			return nil

		case <-ctx.Done():
			publishShutdown(ctx, publisher, mqttStatus, tracker, reasonCancelled)
			return nil

		case <-tick:
			res := loop.Tick(ctx)

			if res.Command != nil {
				tracker.RecordCommand(*res.Command)
			}
			if res.Fired {
				if err := publisher.Publish(res.Event); err != nil {
					// Don't stop playing on publish failure
					logger.WarnKV(ctx, "publish error", "error", err)
				}
			}

			tracker.Update(loop.Snapshot())
			if mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}

			if res.Quit {
				logger.InfoKV(ctx, "quit command received, shutting down")
				publishShutdown(ctx, publisher, mqttStatus, tracker, reasonQuit)
				return nil
			}
		}
	}
}

func publishShutdown(ctx context.Context, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, reason string) {
	if mqttStatus != nil {
		tracker.SetMQTTConnected(mqttStatus.IsConnected())
	}
	snap := tracker.Snapshot()
	event := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      mqtt.EventShutdown,
		Reason:     reason,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, mqtt.EventShutdown, reason),
	}
	if err := publisher.PublishSystem(event); err != nil {
		logger.WarnKV(ctx, "failed to publish shutdown event", "error", err)
		return
	}
	logger.InfoKV(ctx, "published shutdown event", "reason", reason)
}

func signalReason(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return reasonSIGINT
	case syscall.SIGTERM:
		return reasonSIGTERM
	default:
		return "UNKNOWN"
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
