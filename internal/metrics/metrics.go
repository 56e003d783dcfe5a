package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"viera/internal/viera"
)

const metricPrefix = "viera_"

var (
	registerOnce sync.Once

	dispatchTotal   *prometheus.CounterVec
	dispatchLatency *prometheus.HistogramVec
	actionTotal     *prometheus.CounterVec
	powerState      *prometheus.GaugeVec
	mqttMessages    *prometheus.CounterVec
)

// Init registers the hub metrics with the default registry.
func Init() {
	registerOnce.Do(func() {
		dispatchTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "dispatch_total",
				Help: "Total dispatches by device, operation, command and outcome",
			},
			[]string{"device", "op", "command", "outcome"},
		)
		dispatchLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "dispatch_latency_seconds",
				Help:    "Dispatch latency in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"device", "op", "outcome"},
		)
		actionTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "actions_total",
				Help: "Total hub actions by device, action and result",
			},
			[]string{"device", "action", "result"},
		)
		powerState = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "power_state",
				Help: "Last probed power state (1 on, 0 off)",
			},
			[]string{"device"},
		)
		mqttMessages = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "mqtt_messages_total",
				Help: "MQTT messages by direction",
			},
			[]string{"direction"},
		)

		prometheus.MustRegister(
			dispatchTotal,
			dispatchLatency,
			actionTotal,
			powerState,
			mqttMessages,
		)
	})
}

// ObserveDispatch records one probe or command dispatch.
func ObserveDispatch(device, op, command, outcome string, elapsed time.Duration) {
	if command == "" {
		command = "none"
	}
	if dispatchTotal != nil {
		dispatchTotal.WithLabelValues(device, op, command, outcome).Inc()
	}
	if dispatchLatency != nil {
		dispatchLatency.WithLabelValues(device, op, outcome).Observe(elapsed.Seconds())
	}
}

// DispatchObserver returns a client hook that feeds ObserveDispatch.
func DispatchObserver(device string) viera.ObserveFunc {
	return func(op string, cmd *viera.Command, res viera.Result) {
		command := ""
		if cmd != nil {
			command = cmd.String()
		}
		ObserveDispatch(device, op, command, res.Outcome.String(), res.Elapsed)
	}
}

// IncAction counts an action processed by the hub.
func IncAction(device, action string, success bool) {
	result := "success"
	if !success {
		result = "error"
	}
	if actionTotal != nil {
		actionTotal.WithLabelValues(device, action, result).Inc()
	}
}

// SetPowerState records the last probed power state of a device.
func SetPowerState(device string, on bool) {
	if powerState == nil {
		return
	}
	value := 0.0
	if on {
		value = 1
	}
	powerState.WithLabelValues(device).Set(value)
}

// ForgetDevice drops the power gauge of a removed device.
func ForgetDevice(device string) {
	if powerState != nil {
		powerState.DeleteLabelValues(device)
	}
}

// IncMQTT counts an inbound or outbound MQTT message.
func IncMQTT(direction string) {
	if mqttMessages != nil {
		mqttMessages.WithLabelValues(direction).Inc()
	}
}
