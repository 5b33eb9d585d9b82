package status

import (
	"encoding/json"
	"math"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Mode          string       `json:"mode"`
	Armed         bool         `json:"armed"`
	Ready         bool         `json:"ready"`
	Light         LightJSON    `json:"light"`
	Task          TaskJSON     `json:"task"`
	Triggers      int          `json:"triggers"`
	LastTrigger   *TriggerJSON `json:"last_trigger,omitempty"`
	Commands      int          `json:"commands"`
	LastCommand   string       `json:"last_command,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// LightJSON is the current reading.
type LightJSON struct {
	Sample   float64 `json:"sample"`
	Baseline float64 `json:"baseline"`
}

// TaskJSON describes the commanded task slot.
type TaskJSON struct {
	Active bool   `json:"active"`
	ID     string `json:"id,omitempty"`
	Label  string `json:"label,omitempty"`
}

// TriggerJSON is the last trigger event.
type TriggerJSON struct {
	Timestamp string  `json:"timestamp"`
	Delta     float64 `json:"delta"`
	Sequence  string  `json:"sequence"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	CheckPeriodMs int64   `json:"check_period_ms"`
	CooldownMs    int64   `json:"cooldown_ms"`
	TriggerDelta  float64 `json:"trigger_delta"`
	Sensor        string  `json:"sensor"`
	Broker        string  `json:"broker"`
	Prefix        string  `json:"prefix,omitempty"`
	HTTPAddr      string  `json:"http_addr"`
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func buildInner(snap Snapshot) StatusInner {
	mode := string(snap.Mode)
	if mode == "" {
		mode = "UNKNOWN"
	}

	inner := StatusInner{
		Mode:          mode,
		Armed:         mode == "ARMED",
		Ready:         snap.Calibrated,
		Light:         LightJSON{Sample: round3(snap.Sample), Baseline: round3(snap.Baseline)},
		Task:          TaskJSON{Active: snap.TaskActive, ID: snap.TaskID, Label: snap.TaskLabel},
		Triggers:      snap.Triggers,
		Commands:      snap.Commands,
		LastCommand:   snap.LastCommand,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			CheckPeriodMs: snap.Config.CheckPeriodMs,
			CooldownMs:    snap.Config.CooldownMs,
			TriggerDelta:  snap.Config.TriggerDelta,
			Sensor:        snap.Config.Sensor,
			Broker:        snap.Config.Broker,
			Prefix:        snap.Config.Prefix,
			HTTPAddr:      snap.Config.HTTPAddr,
		},
	}
	if ev := snap.LastTrigger; ev != nil {
		inner.LastTrigger = &TriggerJSON{
			Timestamp: ev.Timestamp.UTC().Format(time.RFC3339Nano),
			Delta:     round3(ev.Delta),
			Sequence:  ev.Sequence,
		}
	}
	if n := snap.Network; n != nil {
		inner.Network = &NetworkJSON{
			Type:       n.Type,
			IP:         n.IP,
			Status:     n.Status,
			Gateway:    n.Gateway,
			WifiStatus: n.WifiStatus,
			SSID:       n.SSID,
		}
	}
	return inner
}

// FormatJSON returns the indented JSON status for the web endpoint.
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the compact JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
