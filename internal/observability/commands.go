package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/famledger/famledger/internal/shared"
)

// OutcomeOK labels successful commands; failures use the error kind.
const OutcomeOK = "ok"

// CommandMetrics counts engine commands and their latency.
type CommandMetrics struct {
	total    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var (
	defaultOnce     sync.Once
	defaultCommands *CommandMetrics
)

// NewCommandMetrics registers the collectors on registerer. A nil
// registerer uses the process default, registered once.
func NewCommandMetrics(registerer prometheus.Registerer) *CommandMetrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultCommands = buildCommandMetrics(prometheus.DefaultRegisterer)
		})
		return defaultCommands
	}
	return buildCommandMetrics(registerer)
}

func buildCommandMetrics(registerer prometheus.Registerer) *CommandMetrics {
	total := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "famledger_commands_total",
		Help: "Engine commands by name and outcome.",
	}, []string{"command", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "famledger_command_duration_seconds",
		Help:    "Engine command latency by name.",
		Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
	}, []string{"command"})
	registerer.MustRegister(total, duration)
	return &CommandMetrics{total: total, duration: duration}
}

// Tracker times one command.
type Tracker struct {
	metrics *CommandMetrics
	command string
	start   time.Time
}

// Track starts timing command. It is safe on a nil receiver.
func (m *CommandMetrics) Track(command string) *Tracker {
	return &Tracker{metrics: m, command: command, start: time.Now()}
}

// End records the outcome and returns err unchanged.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil {
		return err
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = shared.KindOf(err)
	}
	t.metrics.total.WithLabelValues(t.command, outcome).Inc()
	t.metrics.duration.WithLabelValues(t.command).Observe(time.Since(t.start).Seconds())
	return err
}
