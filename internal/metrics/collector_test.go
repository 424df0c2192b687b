package ikemetrics_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/dantte-lp/goike/internal/ike"
	ikemetrics "github.com/dantte-lp/goike/internal/metrics"
)

var _ ike.MetricsReporter = (*ikemetrics.Collector)(nil)

func TestNewCollector(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := ikemetrics.NewCollector(reg)

	if c.Negotiations == nil {
		t.Error("Negotiations is nil")
	}
	counters := []*prometheus.CounterVec{
		c.Dispatches, c.Failures, c.NoMatch, c.Suspensions,
		c.Retries, c.DroppedRetries, c.StateTransitions,
	}
	for i, vec := range counters {
		if vec == nil {
			t.Errorf("counter %d is nil", i)
		}
	}

	if _, err := reg.Gather(); err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
}

func TestNegotiationGauge(t *testing.T) {
	t.Parallel()

	c := ikemetrics.NewCollector(prometheus.NewRegistry())

	c.RegisterNegotiation("main")
	c.RegisterNegotiation("main")
	c.RegisterNegotiation("quick")
	c.UnregisterNegotiation("main")

	if v := gaugeValue(t, c.Negotiations, "main"); v != 1 {
		t.Errorf("main negotiations = %v, want 1", v)
	}
	if v := gaugeValue(t, c.Negotiations, "quick"); v != 1 {
		t.Errorf("quick negotiations = %v, want 1", v)
	}
}

func TestDispatchCounters(t *testing.T) {
	t.Parallel()

	c := ikemetrics.NewCollector(prometheus.NewRegistry())

	c.RecordDispatch("main", "success")
	c.RecordDispatch("main", "success")
	c.RecordDispatch("main", "failed")
	c.IncFailures("main", "NO-PROPOSAL-CHOSEN")
	c.IncNoMatch("info")
	c.IncSuspensions("aggressive", "output")
	c.IncRetries("main", "input")
	c.IncDroppedRetries("quick")
	c.RecordStateTransition("main", "MM_SA_I", "MM_KE_I")

	tests := []struct {
		name   string
		vec    *prometheus.CounterVec
		labels []string
		want   float64
	}{
		{"success dispatches", c.Dispatches, []string{"main", "success"}, 2},
		{"failed dispatches", c.Dispatches, []string{"main", "failed"}, 1},
		{"failures", c.Failures, []string{"main", "NO-PROPOSAL-CHOSEN"}, 1},
		{"no match", c.NoMatch, []string{"info"}, 1},
		{"suspensions", c.Suspensions, []string{"aggressive", "output"}, 1},
		{"retries", c.Retries, []string{"main", "input"}, 1},
		{"dropped retries", c.DroppedRetries, []string{"quick"}, 1},
		{"transitions", c.StateTransitions, []string{"main", "MM_SA_I", "MM_KE_I"}, 1},
	}

	for _, tt := range tests {
		if v := counterValue(t, tt.vec, tt.labels...); v != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, v, tt.want)
		}
	}
}

// TestCollectorWithEngine wires the collector into an engine and checks
// the counters a suspension, a resume and a failure produce.
func TestCollectorWithEngine(t *testing.T) {
	t.Parallel()

	c := ikemetrics.NewCollector(prometheus.NewRegistry())

	calls := 0
	steps := make(ike.Steps)
	for _, id := range ike.AllSteps() {
		steps[id] = func(context.Context, *ike.Packet, *ike.Packet, *ike.SA, *ike.Negotiation, *ike.TransitionRule) ike.StepResult {
			return ike.Success
		}
	}
	steps[ike.StepOutSAProposal] = func(_ context.Context, _, out *ike.Packet, _ *ike.SA, _ *ike.Negotiation, _ *ike.TransitionRule) ike.StepResult {
		calls++
		if calls == 1 {
			return ike.RetryLater
		}
		if err := out.AddPayload(ike.Payload{Type: ike.PayloadSA}); err != nil {
			return ike.Failure(ike.NotifyOutOfMemory)
		}
		return ike.Success
	}

	e, err := ike.NewEngine(ike.DefaultTable(), steps, slog.New(slog.DiscardHandler), ike.WithMetrics(c))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	sa := ike.NewSA(ike.Cookies{Initiator: ike.Cookie{1}}, ike.HashSHA1)
	neg := ike.NewNegotiation(sa, ike.ExchangeIdentityProtection, ike.StateStartSANegotiationI, 0)
	ctx := context.Background()

	if _, err := e.Dispatch(ctx, nil, neg, true); err != nil {
		t.Fatalf("first Dispatch: %v", err)
	}
	neg.ClearLock(ike.LockWaitingPMReply)
	if _, err := e.Dispatch(ctx, nil, neg, true); err != nil {
		t.Fatalf("second Dispatch: %v", err)
	}

	// MM_SA_I with no inbound packet matches nothing.
	if _, err := e.Dispatch(ctx, nil, neg, true); !errors.Is(err, ike.NotifyNoStateMatched) {
		t.Fatalf("third Dispatch err = %v, want NO-STATE-MATCHED", err)
	}

	checks := []struct {
		name   string
		vec    *prometheus.CounterVec
		labels []string
		want   float64
	}{
		{"suspended", c.Dispatches, []string{"main", "suspended"}, 1},
		{"success", c.Dispatches, []string{"main", "success"}, 1},
		{"failed", c.Dispatches, []string{"main", "failed"}, 1},
		{"output suspension", c.Suspensions, []string{"main", "output"}, 1},
		{"transition", c.StateTransitions, []string{"main", "START_SA_NEGOTIATION_I", "MM_SA_I"}, 1},
		{"no match", c.NoMatch, []string{"main"}, 1},
		{"failure reason", c.Failures, []string{"main", "NO-STATE-MATCHED"}, 1},
	}
	for _, tt := range checks {
		if v := counterValue(t, tt.vec, tt.labels...); v != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, v, tt.want)
		}
	}
}

// -------------------------------------------------------------------------
// Helpers
// -------------------------------------------------------------------------

// gaugeValue reads the current value of a GaugeVec with the given labels.
func gaugeValue(t *testing.T, vec *prometheus.GaugeVec, labels ...string) float64 {
	t.Helper()

	gauge, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues(%v): %v", labels, err)
	}

	m := &dto.Metric{}
	if err := gauge.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}

	return m.GetGauge().GetValue()
}

// counterValue reads the current value of a CounterVec with the given labels.
func counterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()

	counter, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues(%v): %v", labels, err)
	}

	m := &dto.Metric{}
	if err := counter.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}

	return m.GetCounter().GetValue()
}
