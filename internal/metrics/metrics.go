// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "light_orchestra"

var (
	// Control loop
	TicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "loop",
		Name:      "ticks_total",
		Help:      "Total control loop ticks",
	})

	TickLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "loop",
		Name:      "tick_duration_seconds",
		Help:      "Control loop tick duration, including autonomous playback",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.04, 0.1, 0.5, 1, 2.5},
	})

	Armed = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "loop",
		Name:      "armed",
		Help:      "1 while autonomous triggering is armed",
	})

	// Signal
	Baseline = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "signal",
		Name:      "baseline",
		Help:      "Current ambient light baseline [0,1]",
	})

	Sample = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "signal",
		Name:      "sample",
		Help:      "Last light sample [0,1]",
	})

	SensorFaults = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "signal",
		Name:      "sensor_faults_total",
		Help:      "Sensor reads that failed and fell back to the last sample",
	})

	Calibrations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "signal",
		Name:      "calibrations_total",
		Help:      "Baseline calibrations",
	})

	// Triggers and playback
	TriggersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "trigger",
		Name:      "fired_total",
		Help:      "Trigger events acted upon",
	})

	SequencePlays = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "player",
		Name:      "sequences_total",
		Help:      "Sequence playbacks by sequence name and outcome",
	}, []string{"sequence", "outcome"})

	ActuatorFaults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "actuator",
		Name:      "faults_total",
		Help:      "Actuator writes that failed",
	}, []string{"op"})

	// Commands
	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "command",
		Name:      "received_total",
		Help:      "Commands consumed by the control loop, by kind",
	}, []string{"kind"})

	CommandsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "command",
		Name:      "superseded_total",
		Help:      "Pending commands overwritten by a newer one before the loop consumed them",
	})

	CommandsDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "command",
		Name:      "discarded_total",
		Help:      "Unrecognized commands dropped because a valid command was pending",
	})

	// Arbiter
	TaskActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "arbiter",
		Name:      "task_active",
		Help:      "1 while a commanded task owns the actuator",
	})

	TasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "arbiter",
		Name:      "tasks_total",
		Help:      "Commanded tasks by outcome",
	}, []string{"outcome"})

	// MQTT
	MQTTPublishErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "mqtt",
		Name:      "publish_errors_total",
		Help:      "MQTT publish failures",
	})
)

// Task outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeCancelled = "cancelled"
)

// SetBool sets g to 1 or 0.
func SetBool(g prometheus.Gauge, v bool) {
	if v {
		g.Set(1)
		return
	}
	g.Set(0)
}
