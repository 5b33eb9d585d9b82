// Package command defines the operator commands and the single-slot mailbox
// through which terminal, HTTP and MQTT sources hand them to the control loop.
package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sweeney/light-orchestra/internal/logic"
)

// Kind identifies a command.
type Kind string

const (
	KindStart        Kind = "start"
	KindStop         Kind = "stop"
	KindCalibrate    Kind = "calibrate"
	KindPlay         Kind = "play"
	KindQuit         Kind = "quit"
	KindUnrecognized Kind = "unrecognized"
)

// Sources.
const (
	SourceTerminal = "terminal"
	SourceHTTP     = "http"
	SourceMQTT     = "mqtt"
)

// MaxPlayDuration bounds a commanded tone.
const MaxPlayDuration = 5 * time.Minute

// Command is a parsed operator command.
type Command struct {
	Kind Kind

	// Play parameters.
	FrequencyHz uint32
	Duration    time.Duration
	Duty        float64

	// Text is the raw input; Err explains why it was not recognized.
	Text   string
	Err    error
	Source string
}

// MaxFrequencyHz bounds a commanded tone.
const MaxFrequencyHz = 20000

// Play builds a validated play command. A zero duty selects the default.
func Play(freqHz float64, d time.Duration, duty float64) (Command, error) {
	if math.IsNaN(freqHz) || freqHz < 0 || freqHz > MaxFrequencyHz {
		return Command{}, fmt.Errorf("frequency %v out of range", freqHz)
	}
	if d < 0 || d > MaxPlayDuration {
		return Command{}, fmt.Errorf("duration %v out of range", d)
	}
	if duty == 0 {
		duty = logic.CommandDuty
	}
	if duty < 0 || duty > 1 {
		return Command{}, fmt.Errorf("duty %v out of range", duty)
	}
	return Command{
		Kind:        KindPlay,
		FrequencyHz: uint32(freqHz),
		Duration:    d,
		Duty:        duty,
	}, nil
}

// Sequence returns the one-step sequence a play command renders.
func (c Command) Sequence() logic.Sequence {
	return logic.Sequence{
		Name:  "command",
		Steps: []logic.Step{{FrequencyHz: c.FrequencyHz, Duration: c.Duration}},
	}
}

// String renders the command for logs.
func (c Command) String() string {
	switch c.Kind {
	case KindPlay:
		return fmt.Sprintf("play %dHz %v duty=%.2f", c.FrequencyHz, c.Duration, c.Duty)
	case KindUnrecognized:
		return fmt.Sprintf("unrecognized %q", c.Text)
	default:
		return string(c.Kind)
	}
}

// Parse interprets one line of terminal-style text:
//
//	on | start
//	off | stop
//	cal | recal | calibrate
//	play <hz> <ms> [duty]   (alias: tone)
//	quit | exit
//
// Anything else yields a KindUnrecognized command.
func Parse(text string) Command {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(text)))
	if len(fields) == 0 {
		return unrecognized(text, errors.New("empty command"))
	}

	switch fields[0] {
	case "on", "start":
		return Command{Kind: KindStart, Text: text}
	case "off", "stop":
		return Command{Kind: KindStop, Text: text}
	case "cal", "recal", "calibrate":
		return Command{Kind: KindCalibrate, Text: text}
	case "quit", "exit":
		return Command{Kind: KindQuit, Text: text}
	case "play", "tone":
		return parsePlay(text, fields[1:])
	}
	return unrecognized(text, errors.New("unknown command; use on | off | cal | play <hz> <ms> | quit"))
}

func parsePlay(text string, args []string) Command {
	if len(args) < 2 || len(args) > 3 {
		return unrecognized(text, errors.New("usage: play <hz> <ms> [duty]"))
	}
	freq, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return unrecognized(text, fmt.Errorf("frequency: %w", err))
	}
	msec, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return unrecognized(text, fmt.Errorf("duration: %w", err))
	}
	var duty float64
	if len(args) == 3 {
		if duty, err = strconv.ParseFloat(args[2], 64); err != nil {
			return unrecognized(text, fmt.Errorf("duty: %w", err))
		}
	}

	c, err := Play(freq, time.Duration(msec*float64(time.Millisecond)), duty)
	if err != nil {
		return unrecognized(text, err)
	}
	c.Text = text
	return c
}

// jsonCommand is the structured payload accepted over MQTT.
type jsonCommand struct {
	Command    string  `json:"command"`
	Frequency  float64 `json:"frequency"`
	DurationMs float64 `json:"duration_ms"`
	Duty       float64 `json:"duty"`
}

// ParsePayload accepts either a JSON object
// {"command":"play","frequency":440,"duration_ms":500,"duty":0.5}
// or terminal-style text.
func ParsePayload(payload []byte) Command {
	trimmed := strings.TrimSpace(string(payload))
	if !strings.HasPrefix(trimmed, "{") {
		return Parse(trimmed)
	}

	var jc jsonCommand
	if err := json.Unmarshal([]byte(trimmed), &jc); err != nil {
		return unrecognized(trimmed, fmt.Errorf("invalid JSON: %w", err))
	}

	kind := strings.ToLower(strings.TrimSpace(jc.Command))
	if kind != "play" && kind != "tone" {
		c := Parse(kind)
		c.Text = trimmed
		return c
	}
	c, err := Play(jc.Frequency, time.Duration(jc.DurationMs*float64(time.Millisecond)), jc.Duty)
	if err != nil {
		return unrecognized(trimmed, err)
	}
	c.Text = trimmed
	return c
}

func unrecognized(text string, err error) Command {
	return Command{Kind: KindUnrecognized, Text: text, Err: err}
}
