package ikemetrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// -------------------------------------------------------------------------
// Prometheus Metric Constants
// -------------------------------------------------------------------------

const (
	namespace = "goike"
	subsystem = "ike"
)

// Label names for IKE metrics.
const (
	labelExchange  = "exchange"
	labelStatus    = "status"
	labelReason    = "reason"
	labelPhase     = "phase"
	labelFromState = "from_state"
	labelToState   = "to_state"
)

// -------------------------------------------------------------------------
// Collector — Prometheus IKE Engine Metrics
// -------------------------------------------------------------------------

// Collector holds all IKE dispatch Prometheus metrics and implements
// ike.MetricsReporter.
//
// Every metric is labeled by exchange type so main mode, aggressive mode
// and the phase-2 exchanges can be told apart:
//   - Dispatch counters track outcomes and failure reasons.
//   - Suspension and retry counters show how often steps wait or re-match.
//   - State transition counters record completed rules.
//   - The negotiations gauge tracks registered negotiations.
type Collector struct {
	// Negotiations tracks the number of registered negotiations.
	Negotiations *prometheus.GaugeVec

	// Dispatches counts completed Dispatch calls by status
	// (success, connected, suspended, failed).
	Dispatches *prometheus.CounterVec

	// Failures counts failed dispatches by notify code name.
	Failures *prometheus.CounterVec

	// NoMatch counts dispatches for which no transition rule matched.
	NoMatch *prometheus.CounterVec

	// Suspensions counts RetryLater results by phase (input, output).
	Suspensions *prometheus.CounterVec

	// Retries counts RetryNow re-dispatches by phase.
	Retries *prometheus.CounterVec

	// DroppedRetries counts output-phase RetryNow requests ignored because
	// no outbound packet was requested.
	DroppedRetries *prometheus.CounterVec

	// StateTransitions counts rule completions labeled with old and new
	// state.
	StateTransitions *prometheus.CounterVec
}

// NewCollector creates a Collector with all IKE metrics registered against
// the provided prometheus.Registerer. If reg is nil,
// prometheus.DefaultRegisterer is used.
//
// All metrics carry the "goike_ike_" prefix.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.Negotiations,
		c.Dispatches,
		c.Failures,
		c.NoMatch,
		c.Suspensions,
		c.Retries,
		c.DroppedRetries,
		c.StateTransitions,
	)

	return c
}

// newMetrics creates all Prometheus metric vectors without registering them.
func newMetrics() *Collector {
	exchangeLabels := []string{labelExchange}
	phaseLabels := []string{labelExchange, labelPhase}

	return &Collector{
		Negotiations: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "negotiations",
			Help:      "Number of registered IKE negotiations.",
		}, exchangeLabels),

		Dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "dispatches_total",
			Help:      "Total dispatch calls by outcome.",
		}, []string{labelExchange, labelStatus}),

		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "failures_total",
			Help:      "Total failed dispatches by notify code.",
		}, []string{labelExchange, labelReason}),

		NoMatch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "no_match_total",
			Help:      "Total dispatches for which no transition rule matched.",
		}, exchangeLabels),

		Suspensions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "suspensions_total",
			Help:      "Total steps that suspended waiting for an external answer.",
		}, phaseLabels),

		Retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "retries_total",
			Help:      "Total immediate re-dispatches requested by steps.",
		}, phaseLabels),

		DroppedRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "dropped_retries_total",
			Help:      "Total output-phase retries ignored without an outbound packet.",
		}, exchangeLabels),

		StateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "state_transitions_total",
			Help:      "Total negotiation state transitions.",
		}, []string{labelExchange, labelFromState, labelToState}),
	}
}

// -------------------------------------------------------------------------
// Negotiation Lifecycle
// -------------------------------------------------------------------------

// RegisterNegotiation increments the negotiations gauge for the exchange.
func (c *Collector) RegisterNegotiation(exchange string) {
	c.Negotiations.WithLabelValues(exchange).Inc()
}

// UnregisterNegotiation decrements the negotiations gauge for the exchange.
func (c *Collector) UnregisterNegotiation(exchange string) {
	c.Negotiations.WithLabelValues(exchange).Dec()
}

// -------------------------------------------------------------------------
// Dispatch Outcomes
// -------------------------------------------------------------------------

// RecordDispatch counts one Dispatch call.
func (c *Collector) RecordDispatch(exchange, status string) {
	c.Dispatches.WithLabelValues(exchange, status).Inc()
}

// IncFailures counts a failed dispatch by notify code name.
func (c *Collector) IncFailures(exchange, reason string) {
	c.Failures.WithLabelValues(exchange, reason).Inc()
}

// IncNoMatch counts a dispatch that matched no rule.
func (c *Collector) IncNoMatch(exchange string) {
	c.NoMatch.WithLabelValues(exchange).Inc()
}

// -------------------------------------------------------------------------
// Suspension and Retry
// -------------------------------------------------------------------------

// IncSuspensions counts a RetryLater result.
func (c *Collector) IncSuspensions(exchange, phase string) {
	c.Suspensions.WithLabelValues(exchange, phase).Inc()
}

// IncRetries counts a RetryNow re-dispatch.
func (c *Collector) IncRetries(exchange, phase string) {
	c.Retries.WithLabelValues(exchange, phase).Inc()
}

// IncDroppedRetries counts an ignored output-phase RetryNow.
func (c *Collector) IncDroppedRetries(exchange string) {
	c.DroppedRetries.WithLabelValues(exchange).Inc()
}

// -------------------------------------------------------------------------
// State Transitions
// -------------------------------------------------------------------------

// RecordStateTransition increments the state transition counter with the
// old and new state labels.
func (c *Collector) RecordStateTransition(exchange, from, to string) {
	c.StateTransitions.WithLabelValues(exchange, from, to).Inc()
}
