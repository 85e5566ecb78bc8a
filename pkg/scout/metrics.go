package scout

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ospreylabs/go-scout/pkg/drive"
)

var (
	moveOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scout",
		Subsystem: "move",
		Name:      "outcomes_total",
		Help:      "Terminal outcomes of move operations, by operation and outcome.",
	}, []string{"op", "outcome"})

	moveErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scout",
		Subsystem: "move",
		Name:      "errors_total",
		Help:      "Move operations aborted by an error (transform lookup, cancellation).",
	}, []string{"op"})

	velocityCommands = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "scout",
		Subsystem: "control",
		Name:      "velocity_commands_total",
		Help:      "Velocity commands published to the base.",
	})

	linearVelocity = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "scout",
		Subsystem: "control",
		Name:      "linear_velocity",
		Help:      "Last commanded linear velocity.",
	})

	angularVelocity = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "scout",
		Subsystem: "control",
		Name:      "angular_velocity",
		Help:      "Last commanded angular rate.",
	})
)

func recordOutcome(op string, outcome drive.Outcome) {
	moveOutcomes.WithLabelValues(op, string(outcome)).Inc()
}

func recordError(op string) {
	moveErrors.WithLabelValues(op).Inc()
}

// instrumentedSink counts and gauges every velocity command on its way to
// the real sink.
type instrumentedSink struct {
	next drive.VelocitySink
}

// InstrumentSink wraps a velocity sink with command metrics.
func InstrumentSink(next drive.VelocitySink) drive.VelocitySink {
	return &instrumentedSink{next: next}
}

func (s *instrumentedSink) Publish(linear, angular float64) {
	velocityCommands.Inc()
	linearVelocity.Set(linear)
	angularVelocity.Set(angular)
	s.next.Publish(linear, angular)
}

// TeeSink fans a velocity command out to several sinks, in order. The drive
// loop stays the single writer; fanout only duplicates its output.
type TeeSink []drive.VelocitySink

// Publish implements drive.VelocitySink.
func (t TeeSink) Publish(linear, angular float64) {
	for _, s := range t {
		s.Publish(linear, angular)
	}
}
