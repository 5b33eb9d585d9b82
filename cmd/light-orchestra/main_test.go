package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/sweeney/light-orchestra/internal/adc"
	"github.com/sweeney/light-orchestra/internal/arbiter"
	"github.com/sweeney/light-orchestra/internal/clock"
	"github.com/sweeney/light-orchestra/internal/command"
	"github.com/sweeney/light-orchestra/internal/config"
	"github.com/sweeney/light-orchestra/internal/control"
	"github.com/sweeney/light-orchestra/internal/gpio"
	"github.com/sweeney/light-orchestra/internal/logic"
	"github.com/sweeney/light-orchestra/internal/mqtt"
	"github.com/sweeney/light-orchestra/internal/player"
	"github.com/sweeney/light-orchestra/internal/status"
)

// TestEnvVarNames verifies the env var constants match what pi-helper writes
// to /run/pi-helper.env.
func TestEnvVarNames(t *testing.T) {
	want := map[string]string{
		"NETWORK_TYPE":        envNetworkType,
		"NETWORK_IP":          envNetworkIP,
		"NETWORK_STATUS":      envNetworkStatus,
		"NETWORK_GATEWAY":     envNetworkGateway,
		"NETWORK_WIFI_STATUS": envNetworkWifiStatus,
		"NETWORK_WIFI_SSID":   envNetworkWifiSSID,
	}
	for canonical, got := range want {
		if got != canonical {
			t.Errorf("env var constant: got %q, want %q", got, canonical)
		}
	}
}

func TestReadNetworkInfoAllSet(t *testing.T) {
	t.Setenv(envNetworkType, "wifi")
	t.Setenv(envNetworkIP, "192.168.1.100")
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkGateway, "192.168.1.1")
	t.Setenv(envNetworkWifiStatus, "connected")
	t.Setenv(envNetworkWifiSSID, "MyNetwork")

	info := readNetworkInfo()
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo")
	}
	want := status.NetworkInfo{
		Type:       "wifi",
		IP:         "192.168.1.100",
		Status:     "connected",
		Gateway:    "192.168.1.1",
		WifiStatus: "connected",
		SSID:       "MyNetwork",
	}
	if *info != want {
		t.Errorf("got %+v, want %+v", *info, want)
	}
}

func TestReadNetworkInfoNoneSet(t *testing.T) {
	t.Setenv(envNetworkStatus, "")
	if info := readNetworkInfo(); info != nil {
		t.Errorf("expected nil when NETWORK_STATUS is unset, got %+v", info)
	}
}

func TestSignalReason(t *testing.T) {
	tests := []struct {
		sig  os.Signal
		want string
	}{
		{syscall.SIGINT, "SIGINT"},
		{syscall.SIGTERM, "SIGTERM"},
		{syscall.SIGHUP, "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := signalReason(tt.sig); got != tt.want {
			t.Errorf("signalReason(%v) = %q, want %q", tt.sig, got, tt.want)
		}
	}
}

// --- runLoop tests ---

type harness struct {
	sensor  *adc.FakeSensor
	act     *gpio.FakeActuator
	mailbox *command.Mailbox
	loop    *control.Loop
	tracker *status.Tracker
	pub     *mqtt.FakePublisher
}

func newHarness(t *testing.T, armed bool, samples ...float64) *harness {
	t.Helper()
	clk := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	sensor := adc.NewFakeSensor(samples...)
	act := gpio.NewFakeActuator()
	out := gpio.NewSafe(act, time.Minute)
	picker := logic.NewPicker(logic.Catalog, rand.New(rand.NewSource(1)))
	arb := arbiter.New(context.Background(), out, clk.Now)
	t.Cleanup(arb.Close)

	cfg := control.DefaultConfig()
	cfg.StartArmed = armed
	mb := command.NewMailbox()
	loop := control.New(cfg, control.Deps{
		Sensor:    sensor,
		Out:       out,
		Clock:     clk,
		Sequencer: player.New(out, clk, picker, player.DefaultConfig()),
		Arbiter:   arb,
		Mailbox:   mb,
	})
	loop.SetBaseline(0.5)

	return &harness{
		sensor:  sensor,
		act:     act,
		mailbox: mb,
		loop:    loop,
		tracker: status.NewTracker(time.Now(), status.Config{}),
		pub:     mqtt.NewFakePublisher(),
	}
}

// drive runs runLoop for nTicks and then delivers sig, if any.
func (h *harness) drive(t *testing.T, nTicks int, sig os.Signal) error {
	t.Helper()
	tick := make(chan time.Time)
	sigCh := make(chan os.Signal, 1)

	errCh := make(chan error, 1)
	go func() {
		errCh <- runLoop(context.Background(), h.loop, h.pub, h.pub, h.tracker, tick, sigCh)
	}()

	for i := 0; i < nTicks; i++ {
		select {
		case tick <- time.Time{}:
		case err := <-errCh:
			return err
		}
	}
	if sig != nil {
		sigCh <- sig
	}

	select {
	case err := <-errCh:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("runLoop did not return")
		return nil
	}
}

func TestRunLoopNoEventsAtBaseline(t *testing.T) {
	h := newHarness(t, true, 0.5, 0.5, 0.5, 0.5)

	if err := h.drive(t, 4, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(h.pub.Events) != 0 {
		t.Errorf("expected 0 trigger events, got %d", len(h.pub.Events))
	}
	if len(h.pub.SystemEvents) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(h.pub.SystemEvents))
	}
	if h.pub.SystemEvents[0].Event != mqtt.EventShutdown {
		t.Errorf("expected SHUTDOWN event, got %q", h.pub.SystemEvents[0].Event)
	}
}

func TestRunLoopPublishesTrigger(t *testing.T) {
	h := newHarness(t, true, 0.5, 0.56, 0.5, 0.5)

	if err := h.drive(t, 4, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(h.pub.Events) != 1 {
		t.Fatalf("expected 1 trigger event, got %d", len(h.pub.Events))
	}
	ev := h.pub.Events[0]
	if ev.Sample != 0.56 {
		t.Errorf("Sample: got %v, want 0.56", ev.Sample)
	}
	if ev.Sequence == "" {
		t.Error("expected a sequence name")
	}

	snap := h.tracker.Snapshot()
	if snap.Triggers != 1 {
		t.Errorf("tracker Triggers: got %d, want 1", snap.Triggers)
	}
	if snap.LastTrigger == nil || snap.LastTrigger.Sequence != ev.Sequence {
		t.Errorf("tracker LastTrigger: got %+v", snap.LastTrigger)
	}
}

func TestRunLoopIdleDoesNotTrigger(t *testing.T) {
	h := newHarness(t, false, 0.5, 0.9, 0.9, 0.9)

	if err := h.drive(t, 4, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if len(h.pub.Events) != 0 {
		t.Errorf("expected no trigger events while idle, got %d", len(h.pub.Events))
	}
	if h.act.Sounding() {
		t.Error("buzzer sounding while idle")
	}
}

func TestRunLoopPublishError(t *testing.T) {
	h := newHarness(t, true, 0.5, 0.56, 0.5, 0.5, 0.5, 0.5)
	h.pub.PublishError = errors.New("broker down")

	if err := h.drive(t, 6, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(h.pub.SystemEvents) != 1 {
		t.Errorf("expected loop to keep running and shut down cleanly, got %d system events", len(h.pub.SystemEvents))
	}
	if h.tracker.Snapshot().Triggers != 1 {
		t.Error("trigger not recorded when publish failed")
	}
}

func TestRunLoopShutdownSIGINT(t *testing.T) {
	h := newHarness(t, true, 0.5)

	if err := h.drive(t, 2, syscall.SIGINT); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(h.pub.SystemEvents) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(h.pub.SystemEvents))
	}
	se := h.pub.SystemEvents[0]
	if se.Event != mqtt.EventShutdown {
		t.Errorf("expected SHUTDOWN, got %q", se.Event)
	}
	if se.Reason != "SIGINT" {
		t.Errorf("expected reason SIGINT, got %q", se.Reason)
	}
	if !se.Retained {
		t.Error("expected Retained=true for SHUTDOWN")
	}
	if len(se.RawPayload) == 0 {
		t.Error("expected status payload on SHUTDOWN")
	}
}

func TestRunLoopQuitCommand(t *testing.T) {
	h := newHarness(t, true, 0.5)
	h.mailbox.Offer(command.Parse("quit"))

	// No signal: the quit command alone must end the loop.
	if err := h.drive(t, 1, nil); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(h.pub.SystemEvents) != 1 || h.pub.SystemEvents[0].Reason != "QUIT" {
		t.Fatalf("expected SHUTDOWN with reason QUIT, got %+v", h.pub.SystemEvents)
	}
	snap := h.tracker.Snapshot()
	if snap.Commands != 1 {
		t.Errorf("Commands: got %d, want 1", snap.Commands)
	}
	if snap.LastCommand != "quit" {
		t.Errorf("LastCommand: got %q, want quit", snap.LastCommand)
	}
}

func TestRunLoopCommandsUpdateTracker(t *testing.T) {
	h := newHarness(t, false, 0.5)
	h.pub.Connected = true
	h.mailbox.Offer(command.Parse("start"))

	if err := h.drive(t, 2, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	snap := h.tracker.Snapshot()
	if snap.Mode != logic.ModeArmed {
		t.Errorf("Mode: got %q, want ARMED", snap.Mode)
	}
	if !snap.MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}
	if snap.LastCommand != "start" {
		t.Errorf("LastCommand: got %q, want start", snap.LastCommand)
	}
}

func TestRunLoopContextCancelled(t *testing.T) {
	h := newHarness(t, true, 0.5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := runLoop(ctx, h.loop, h.pub, nil, h.tracker, make(chan time.Time), make(chan os.Signal))
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if len(h.pub.SystemEvents) != 1 || h.pub.SystemEvents[0].Reason != "CANCELLED" {
		t.Fatalf("expected SHUTDOWN with reason CANCELLED, got %+v", h.pub.SystemEvents)
	}
}

// --- run tests ---

func testConfig() config.Config {
	cfg := config.DefaultConfig()
	cfg.MQTT.Enabled = false
	cfg.HTTP.Addr = ""
	cfg.Trigger.CheckPeriodMS = 1
	cfg.Calibration.DelayMS = 0
	cfg.Player.Seed = 1
	return cfg
}

func TestRunQuitFromTerminal(t *testing.T) {
	sensor := adc.NewFakeSensor(0.4)
	act := gpio.NewFakeActuator()
	cfg := testConfig()

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(context.Background(), cfg, sensor, act, bytes.NewBufferString("quit\n"), nil)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after quit")
	}

	if sensor.Reads < cfg.Calibration.StartupSamples {
		t.Errorf("expected startup calibration to read %d samples, got %d", cfg.Calibration.StartupSamples, sensor.Reads)
	}
	if act.Sounding() {
		t.Error("buzzer left sounding after shutdown")
	}
	if act.Brightness() != 0 {
		t.Errorf("indicator left at %v after shutdown", act.Brightness())
	}
}

func TestRunStopsOnSignal(t *testing.T) {
	sensor := adc.NewFakeSensor(0.4)
	act := gpio.NewFakeActuator()
	cfg := testConfig()
	cfg.Terminal.Enabled = false

	sig := make(chan os.Signal, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- run(context.Background(), cfg, sensor, act, nil, sig)
	}()
	sig <- syscall.SIGTERM

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after SIGTERM")
	}
}

func TestRunSurvivesCalibrationFailure(t *testing.T) {
	sensor := adc.NewFakeSensor()
	sensor.SetError(errors.New("adc unplugged"))
	cfg := testConfig()

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(context.Background(), cfg, sensor, gpio.NewFakeActuator(), bytes.NewBufferString("quit\n"), nil)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return")
	}
}

// --- CLI tests ---

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadConfigAppliesOnlyChangedFlags(t *testing.T) {
	path := writeFile(t, "config.yaml", "mqtt:\n  broker: tcp://file:1883\nhttp:\n  addr: \":9000\"\n")

	var f flags
	cmd := &cobra.Command{Use: "test"}
	f.register(cmd)
	if err := cmd.ParseFlags([]string{"--config", path, "--no-mqtt", "--armed", "--seed", "42"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(cmd, &f)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.MQTT.Enabled {
		t.Error("expected --no-mqtt to disable MQTT")
	}
	if cfg.MQTT.Broker != "tcp://file:1883" {
		t.Errorf("broker from file overwritten: %q", cfg.MQTT.Broker)
	}
	if cfg.HTTP.Addr != ":9000" {
		t.Errorf("http addr from file overwritten by flag default: %q", cfg.HTTP.Addr)
	}
	if !cfg.Trigger.StartArmed {
		t.Error("expected --armed")
	}
	if cfg.Player.Seed != 42 {
		t.Errorf("Seed: got %d, want 42", cfg.Player.Seed)
	}
}

func TestLoadConfigRejectsInvalidFlag(t *testing.T) {
	path := writeFile(t, "config.yaml", "logging:\n  level: info\n")

	var f flags
	cmd := &cobra.Command{Use: "test"}
	f.register(cmd)
	if err := cmd.ParseFlags([]string{"-c", path, "--log-level", "chatty"}); err != nil {
		t.Fatal(err)
	}
	_, err := loadConfig(cmd, &f)
	if !errors.Is(err, config.ErrLogLevel) {
		t.Errorf("expected ErrLogLevel, got %v", err)
	}
}

func TestSampleCommand(t *testing.T) {
	channel := writeFile(t, "in_voltage0_raw", "2048\n")
	cfgPath := writeFile(t, "config.yaml", "sensor:\n  full_scale: 4096\n")

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"sample", "-c", cfgPath, "--sensor", channel, "-n", "2", "--interval", "1ms"})

	if err := root.Execute(); err != nil {
		t.Fatalf("sample: %v", err)
	}
	if got := out.String(); got != "0.500\n0.500\n" {
		t.Errorf("output: got %q", got)
	}
}

func TestSampleCommandMissingSensor(t *testing.T) {
	cfgPath := writeFile(t, "config.yaml", "sensor:\n  full_scale: 4096\n")

	root := newRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"sample", "-c", cfgPath, "--sensor", filepath.Join(t.TempDir(), "missing")})

	if err := root.Execute(); err == nil {
		t.Fatal("expected error for missing sensor channel")
	}
}
