// Package mqtt publishes light triggers and lifecycle events to a broker and
// receives operator commands from it.
package mqtt

import (
	"encoding/json"
	"math"
	"time"

	"github.com/sweeney/light-orchestra/internal/logic"
)

// DefaultPrefix is the topic prefix used when none is configured.
const DefaultPrefix = "light-orchestra"

// Topics are the topics under one prefix.
type Topics struct {
	Events   string
	System   string
	Commands string
}

// TopicsFor derives the topic set for prefix.
func TopicsFor(prefix string) Topics {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Topics{
		Events:   prefix + "/events",
		System:   prefix + "/system",
		Commands: prefix + "/commands",
	}
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a trigger event. Failures are reported, never fatal.
	Publish(event logic.TriggerEvent) error

	// PublishSystem sends a system lifecycle event.
	PublishSystem(event SystemEvent) error

	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// System event names.
const (
	EventStartup     = "STARTUP"
	EventShutdown    = "SHUTDOWN"
	EventReconnected = "RECONNECTED"
)

// EventTrigger is the event name carried in trigger payloads.
const EventTrigger = "TRIGGER"

// SystemEvent is a lifecycle event (startup, shutdown, reconnect).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string
	Reason     string // e.g. "SIGTERM", "QUIT" (shutdown only)
	RawPayload []byte // pre-formatted JSON; returned as-is by FormatSystemPayload
	Retained   bool
}

// Payload is the trigger event message.
type Payload struct {
	Light LightPayload `json:"light"`
}

// LightPayload contains the trigger details.
type LightPayload struct {
	Timestamp string  `json:"timestamp"`
	Event     string  `json:"event"`
	Sample    float64 `json:"sample"`
	Baseline  float64 `json:"baseline"`
	Delta     float64 `json:"delta"`
	Sequence  string  `json:"sequence"`
}

// FormatPayload creates the JSON payload for a trigger event.
func FormatPayload(event logic.TriggerEvent) ([]byte, error) {
	return json.Marshal(Payload{
		Light: LightPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339Nano),
			Event:     EventTrigger,
			Sample:    round3(event.Sample),
			Baseline:  round3(event.Baseline),
			Delta:     round3(event.Delta),
			Sequence:  event.Sequence,
		},
	})
}

// SystemPayload is the message for simple system events (LWT, RECONNECTED)
// that carry no status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	return json.Marshal(SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	})
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// NopPublisher discards everything. It stands in when MQTT is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(logic.TriggerEvent) error { return nil }
func (NopPublisher) PublishSystem(SystemEvent) error  { return nil }
func (NopPublisher) Close() error                     { return nil }
func (NopPublisher) IsConnected() bool                { return false }
