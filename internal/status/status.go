// Package status provides a thread-safe status tracker for the daemon.
// It is read by the HTTP handlers, the websocket stream and the MQTT
// lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/light-orchestra/internal/command"
	"github.com/sweeney/light-orchestra/internal/control"
	"github.com/sweeney/light-orchestra/internal/logic"
)

// NetworkInfo contains network state as reported by the host helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	CheckPeriodMs int64
	CooldownMs    int64
	TriggerDelta  float64
	Sensor        string
	Broker        string
	Prefix        string
	HTTPAddr      string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Mode        logic.Mode
	Baseline    float64
	Sample      float64
	Calibrated  bool
	TaskActive  bool
	TaskID      string
	TaskLabel   string
	Triggers    int
	LastTrigger *logic.TriggerEvent

	Commands    int
	LastCommand string

	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Mode:      logic.ModeIdle,
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update copies the control loop state. Called from the run loop every tick.
func (t *Tracker) Update(ls control.Snapshot) {
	t.mu.Lock()
	t.snap.Mode = ls.Mode
	t.snap.Baseline = ls.Baseline
	t.snap.Sample = ls.Sample
	t.snap.TaskActive = ls.TaskActive
	t.snap.TaskID = ls.TaskID
	t.snap.TaskLabel = ls.TaskLabel
	t.snap.Triggers = ls.Triggers
	t.snap.LastTrigger = ls.LastTrigger
	t.mu.Unlock()
}

// SetCalibrated marks the startup calibration as done.
func (t *Tracker) SetCalibrated(v bool) {
	t.mu.Lock()
	t.snap.Calibrated = v
	t.mu.Unlock()
}

// RecordCommand counts a consumed command.
func (t *Tracker) RecordCommand(c command.Command) {
	t.mu.Lock()
	t.snap.Commands++
	t.snap.LastCommand = c.String()
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	if s.LastTrigger != nil {
		ev := *s.LastTrigger
		s.LastTrigger = &ev
	}
	s.Now = time.Now()
	return s
}
