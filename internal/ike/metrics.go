package ike

// MetricsReporter receives engine events for monitoring. The ikemetrics
// Collector implements it; labels are plain strings so the metrics package
// does not depend on this one.
type MetricsReporter interface {
	// RecordDispatch counts one completed Dispatch call by exchange and
	// status ("success", "connected", "suspended", "failed").
	RecordDispatch(exchange, status string)

	// IncFailures counts a failed dispatch by notify code name.
	IncFailures(exchange, reason string)

	// IncNoMatch counts dispatches for which no rule matched.
	IncNoMatch(exchange string)

	// IncSuspensions counts RetryLater results by phase ("input", "output").
	IncSuspensions(exchange, phase string)

	// IncRetries counts RetryNow re-dispatches by phase.
	IncRetries(exchange, phase string)

	// IncDroppedRetries counts output-phase RetryNow requests that were not
	// honored because the caller asked for no outbound packet.
	IncDroppedRetries(exchange string)

	// RecordStateTransition counts a rule completion moving from one state
	// to another.
	RecordStateTransition(exchange, from, to string)

	// RegisterNegotiation and UnregisterNegotiation track active
	// negotiations per exchange.
	RegisterNegotiation(exchange string)
	UnregisterNegotiation(exchange string)
}

// noopMetrics is the default MetricsReporter.
type noopMetrics struct{}

func (noopMetrics) RecordDispatch(string, string)               {}
func (noopMetrics) IncFailures(string, string)                  {}
func (noopMetrics) IncNoMatch(string)                           {}
func (noopMetrics) IncSuspensions(string, string)               {}
func (noopMetrics) IncRetries(string, string)                   {}
func (noopMetrics) IncDroppedRetries(string)                    {}
func (noopMetrics) RecordStateTransition(string, string, string) {}
func (noopMetrics) RegisterNegotiation(string)                  {}
func (noopMetrics) UnregisterNegotiation(string)                {}
