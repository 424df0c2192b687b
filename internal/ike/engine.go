package ike

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// DefaultMaxRestarts bounds the RetryNow re-dispatches of one Dispatch
// call. The default table needs at most one (MM_SA_I auth discovery).
const DefaultMaxRestarts = 8

// -------------------------------------------------------------------------
// Dispatch Result
// -------------------------------------------------------------------------

// Status is the non-failure outcome of a Dispatch call.
type Status uint8

const (
	// StatusSuccess means the matched rule ran to completion.
	StatusSuccess Status = iota

	// StatusConnected means the rule ran to completion and its last step
	// reported the negotiation complete.
	StatusConnected

	// StatusSuspended means a step returned RetryLater. The negotiation
	// carries LockWaitingPMReply until it is dispatched again.
	StatusSuspended
)

// String returns the lowercase status name used in logs and metrics.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusConnected:
		return "connected"
	case StatusSuspended:
		return "suspended"
	default:
		return fmt.Sprintf(unknownFmt, s)
	}
}

// Result is returned by a successful Dispatch call.
type Result struct {
	Status Status

	// Outbound is the packet to send, or nil. Ownership passes to the
	// caller; it is also recorded in the negotiation's outbound log.
	Outbound *Packet

	// Rule is the last rule matched, nil only if no rule ran.
	Rule *TransitionRule

	// Restarts is the number of RetryNow re-dispatches performed.
	Restarts int
}

// -------------------------------------------------------------------------
// Engine
// -------------------------------------------------------------------------

// Engine runs a transition table against negotiations.
//
// An Engine is immutable after construction and safe for concurrent use
// on different negotiations. A single negotiation must not be dispatched
// concurrently.
type Engine struct {
	table       Table
	steps       Steps
	alloc       Allocator
	maxRestarts int
	metrics     MetricsReporter
	logger      *slog.Logger
}

// Option configures optional Engine parameters.
type Option func(*Engine)

// WithMetrics attaches a MetricsReporter. If mr is nil, a no-op reporter is
// used.
func WithMetrics(mr MetricsReporter) Option {
	return func(e *Engine) {
		if mr != nil {
			e.metrics = mr
		}
	}
}

// WithAllocator replaces the default pool allocator.
func WithAllocator(a Allocator) Option {
	return func(e *Engine) {
		if a != nil {
			e.alloc = a
		}
	}
}

// WithMaxRestarts sets the RetryNow bound for one Dispatch call.
func WithMaxRestarts(n int) Option {
	return func(e *Engine) {
		e.maxRestarts = n
	}
}

// NewEngine creates an Engine for table, resolving every step the table
// names through steps. It fails with ErrMissingStep if any is unresolved.
// A nil logger selects slog.Default().
func NewEngine(table Table, steps Steps, logger *slog.Logger, opts ...Option) (*Engine, error) {
	if len(table) == 0 {
		return nil, ErrEmptyTable
	}
	if missing := steps.Missing(table); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrMissingStep, missing)
	}
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		table:       table,
		steps:       steps,
		alloc:       NewPoolAllocator(DefaultPayloadCapacity, DefaultAuxCapacity),
		maxRestarts: DefaultMaxRestarts,
		metrics:     noopMetrics{},
		logger:      logger.With(slog.String("component", "ike.engine")),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.maxRestarts < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMaxRestarts, e.maxRestarts)
	}
	return e, nil
}

// Table returns the engine's transition table.
func (e *Engine) Table() Table { return e.table }

// Allocator returns the engine's packet allocator.
func (e *Engine) Allocator() Allocator { return e.alloc }

// -------------------------------------------------------------------------
// Dispatch
// -------------------------------------------------------------------------

// Dispatch processes one event for neg.
//
// in is the newly received packet or nil. A nil in re-uses the most recent
// logged inbound packet for matching, which is how a suspended negotiation
// continues. wantOut reports whether the caller will send an outbound
// packet; when false, output steps still run but build nothing.
//
// Failures are returned as a NotifyCode error. Steps that ran before the
// failure keep their effects; the negotiation's state does not advance.
func (e *Engine) Dispatch(ctx context.Context, in *Packet, neg *Negotiation, wantOut bool) (Result, error) {
	if neg == nil {
		return Result{}, ErrNilNegotiation
	}

	if in != nil {
		neg.inbound = append(neg.inbound, in)
	} else {
		in = neg.lastInbound()
	}

	// A packet saved by a suspended output phase is resumed, not rebuilt.
	var out *Packet
	if neg.cursor.InOutput() {
		out = neg.takePending()
		if out != nil && !wantOut {
			e.alloc.Release(out)
			out = nil
		}
	}

	fields := FieldsPresent(in)
	x := neg.Exchange.String()

	e.logger.DebugContext(ctx, "dispatch",
		slog.String("fields", fields.String()),
		slog.String("state", neg.state.String()),
		slog.String("cursor", neg.cursor.String()),
		slog.String("exchange", x),
		slog.String("auth", neg.AuthMethod.String()),
		slog.Bool("initiator", neg.Initiator),
	)

	res, err := e.dispatch(ctx, in, out, neg, fields, wantOut)
	if err != nil {
		var code NotifyCode
		if errors.As(err, &code) {
			e.metrics.IncFailures(x, code.String())
		}
		e.metrics.RecordDispatch(x, "failed")
		return res, err
	}
	e.metrics.RecordDispatch(x, res.Status.String())
	return res, nil
}

// dispatch is the restart loop. Each iteration matches a rule and runs it;
// a RetryNow result starts the next iteration.
func (e *Engine) dispatch(
	ctx context.Context, in, out *Packet, neg *Negotiation, fields FieldMask, wantOut bool,
) (Result, error) {
	x := neg.Exchange.String()
	var res Result

	for restarts := 0; ; restarts++ {
		if restarts > e.maxRestarts {
			e.release(out)
			e.logger.WarnContext(ctx, "restart limit exceeded",
				slog.Int("max_restarts", e.maxRestarts),
				slog.String("state", neg.state.String()),
			)
			return res, NotifyRestartLimit
		}
		res.Restarts = restarts

		rule, idx := e.table.Match(neg, fields)
		if rule == nil {
			e.release(out)
			e.metrics.IncNoMatch(x)
			e.logger.DebugContext(ctx, "no state matched",
				slog.String("state", neg.state.String()),
				slog.String("fields", fields.String()),
			)
			return res, NotifyNoStateMatched
		}
		res.Rule = rule

		e.logger.DebugContext(ctx, "matched rule",
			slog.Int("index", idx),
			slog.String("rule", rule.String()),
		)

		status, retry, err := e.run(ctx, in, &out, neg, rule, wantOut)
		if err != nil {
			return res, err
		}
		if retry {
			continue
		}

		res.Status = status
		if status != StatusSuspended {
			res.Outbound = out
		}
		return res, nil
	}
}

// run executes one matched rule from the negotiation's cursor. retry
// reports that the dispatch loop must re-match.
//
// The cursor only moves forward on RetryLater. Failure and an input-phase
// Connected put it back where the call found it.
func (e *Engine) run(
	ctx context.Context, in *Packet, out **Packet, neg *Negotiation, rule *TransitionRule, wantOut bool,
) (status Status, retry bool, err error) {
	x := neg.Exchange.String()
	entry := neg.cursor

	// Input phase.
	if !neg.cursor.InOutput() {
		start := 0
		if neg.cursor.phase == PhaseInput {
			start = neg.cursor.index
		}
		for i := start; i < len(rule.Input); i++ {
			neg.cursor = InputAt(i)
			r := e.call(ctx, rule.Input[i], i, in, nil, neg, rule)

			switch r.Outcome {
			case OutcomeSuccess:
			case OutcomeRetryLater:
				neg.SetLock(LockWaitingPMReply)
				e.metrics.IncSuspensions(x, "input")
				return StatusSuspended, false, nil
			case OutcomeRetryNow:
				neg.cursor = NotStarted()
				e.metrics.IncRetries(x, "input")
				return StatusSuccess, true, nil
			case OutcomeConnected:
				// Reported to the caller as is; the rule does not complete.
				neg.cursor = entry
				return StatusConnected, false, nil
			default:
				neg.cursor = entry
				e.logger.DebugContext(ctx, "input step failed",
					slog.String("step", rule.Input[i].String()),
					slog.String("reason", r.Reason.String()),
				)
				return StatusSuccess, false, r.Reason
			}
		}
		neg.cursor = InputDone()
	}

	// Output phase.
	if wantOut && *out == nil {
		p, aerr := e.alloc.Allocate(e.header(neg))
		if aerr != nil {
			neg.cursor = entry
			e.logger.WarnContext(ctx, "outbound allocation failed", slog.String("error", aerr.Error()))
			return StatusSuccess, false, NotifyOutOfMemory
		}
		*out = p
	}

	start := 0
	if neg.cursor.phase == PhaseOutput {
		start = neg.cursor.index
	}
	last := Success
	rerun := false
	for i := start; i < len(rule.Output); i++ {
		neg.cursor = OutputAt(i)
		r := e.call(ctx, rule.Output[i], i, in, *out, neg, rule)
		last = r

		switch r.Outcome {
		case OutcomeSuccess, OutcomeConnected:
			continue
		case OutcomeRetryLater:
			neg.pending = *out
			*out = nil
			neg.SetLock(LockWaitingPMReply)
			e.metrics.IncSuspensions(x, "output")
			return StatusSuspended, false, nil
		case OutcomeRetryNow:
			rerun = true
		default:
			neg.cursor = entry
			e.logger.DebugContext(ctx, "output step failed",
				slog.String("step", rule.Output[i].String()),
				slog.String("reason", r.Reason.String()),
			)
			e.release(*out)
			*out = nil
			return StatusSuccess, false, r.Reason
		}
		break
	}
	neg.cursor = OutputDone()

	if *out != nil && !rerun {
		if (*out).NumPayloads() == 0 {
			e.release(*out)
			*out = nil
		} else {
			neg.outbound = append(neg.outbound, *out)
		}
	}

	from := neg.state
	neg.state = rule.NextState
	neg.cursor = NotStarted()
	e.metrics.RecordStateTransition(x, from.String(), neg.state.String())
	e.logger.DebugContext(ctx, "all done",
		slog.String("from", from.String()),
		slog.String("to", neg.state.String()),
	)

	if rerun {
		if wantOut {
			e.release(*out)
			*out = nil
			e.metrics.IncRetries(x, "output")
			return StatusSuccess, true, nil
		}
		// Not honored without an outbound destination.
		e.metrics.IncDroppedRetries(x)
		e.logger.DebugContext(ctx, "output retry dropped, no outbound requested",
			slog.String("state", neg.state.String()),
		)
	}

	if last.Outcome == OutcomeConnected {
		return StatusConnected, false, nil
	}
	return StatusSuccess, false, nil
}

// call invokes one step and traces it.
func (e *Engine) call(
	ctx context.Context, id StepID, i int, in, out *Packet, neg *Negotiation, rule *TransitionRule,
) StepResult {
	r := e.steps[id](ctx, in, out, neg.sa, neg, rule)
	e.logger.DebugContext(ctx, "step",
		slog.Int("index", i),
		slog.String("step", id.String()),
		slog.String("result", r.String()),
	)
	return r
}

// header builds the outbound header from the SA and negotiation.
func (e *Engine) header(neg *Negotiation) Header {
	return Header{
		Cookies:      neg.sa.Cookies(),
		MajorVersion: MajorVersion,
		MinorVersion: MinorVersion,
		Exchange:     neg.Exchange,
		MessageID:    neg.MessageID,
	}
}

func (e *Engine) release(p *Packet) {
	if p != nil {
		e.alloc.Release(p)
	}
}
