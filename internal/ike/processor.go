package ike

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Processor errors.
var (
	// ErrNegotiationBusy indicates the negotiation is waiting for an
	// external answer or is being dispatched by another caller.
	ErrNegotiationBusy = errors.New("negotiation busy")

	// ErrNegotiationDeleted indicates the negotiation was aborted.
	ErrNegotiationDeleted = errors.New("negotiation deleted")

	// ErrPhase1Completion indicates the SA's phase-1 negotiation failed to
	// reach done before a phase-2 packet was dispatched.
	ErrPhase1Completion = errors.New("complete phase 1")
)

// Sender is the outbound collaborator: it encodes and transmits packets
// and notifications. Implementations must not call back into the
// Processor for the same negotiation.
type Sender interface {
	// SendPacket transmits an outbound packet produced by neg.
	SendPacket(ctx context.Context, neg *Negotiation, p *Packet) error

	// SendNotify reports a status or failure for neg. For NotifyConnected
	// this announces the completed negotiation; for errors it is the
	// notification sent to the peer before teardown.
	SendNotify(ctx context.Context, neg *Negotiation, code NotifyCode) error
}

// Processor drives an Engine from packet arrivals and external answers
// and hands results to a Sender.
type Processor struct {
	engine *Engine
	sender Sender
	logger *slog.Logger
}

// NewProcessor creates a Processor. A nil logger selects slog.Default().
func NewProcessor(engine *Engine, sender Sender, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		engine: engine,
		sender: sender,
		logger: logger.With(slog.String("component", "ike.processor")),
	}
}

// Engine returns the processor's engine.
func (p *Processor) Engine() *Engine { return p.engine }

// Start dispatches a locally initiated negotiation with no inbound packet
// and sends its first message.
func (p *Processor) Start(ctx context.Context, neg *Negotiation) error {
	res, err := p.engine.Dispatch(ctx, nil, neg, true)
	return p.deliver(ctx, neg, res, err)
}

// ProcessPacket dispatches a received packet for neg.
//
// The packet is dropped with ErrNegotiationBusy while neg waits for an
// external answer. A packet with a non-zero message id proves the peer
// received our last phase-1 message, so a phase-1 negotiation waiting for
// done is completed first.
func (p *Processor) ProcessPacket(ctx context.Context, neg *Negotiation, pkt *Packet) error {
	if neg.Deleted() {
		return ErrNegotiationDeleted
	}
	if neg.HasLock(LockWaitingPMReply) {
		p.logger.DebugContext(ctx, "negotiation waiting for external answer, packet dropped",
			slog.Uint64("message_id", uint64(pkt.Header.MessageID)),
		)
		return ErrNegotiationBusy
	}

	if pkt.Header.MessageID != 0 {
		if err := p.completePhase1(ctx, neg); err != nil {
			return err
		}
	}

	res, err := p.engine.Dispatch(ctx, pkt, neg, true)
	return p.deliver(ctx, neg, res, err)
}

// Restart continues neg after the external answer its suspended step was
// waiting for has arrived.
func (p *Processor) Restart(ctx context.Context, neg *Negotiation) error {
	neg.ClearLock(LockWaitingPMReply)
	if neg.Deleted() {
		p.logger.DebugContext(ctx, "negotiation deleted while waiting, restart ignored")
		return nil
	}

	wantOut := !neg.HasLock(LockWaitingForDone)
	res, err := p.engine.Dispatch(ctx, nil, neg, wantOut)
	return p.deliver(ctx, neg, res, err)
}

// completePhase1 steps the phase-1 negotiation of neg's SA to done if it
// is waiting for done.
func (p *Processor) completePhase1(ctx context.Context, neg *Negotiation) error {
	p1 := neg.SA().Phase1()
	if p1 == nil || p1 == neg || !p1.HasLock(LockWaitingForDone) {
		return nil
	}
	if !p1.mu.TryLock() {
		return nil
	}
	defer p1.mu.Unlock()

	res, err := p.engine.Dispatch(ctx, nil, p1, false)
	if err != nil {
		var code NotifyCode
		if errors.As(err, &code) {
			p.notify(ctx, p1, code)
		}
		return fmt.Errorf("%w: %w", ErrPhase1Completion, err)
	}
	if res.Status == StatusConnected {
		p.notify(ctx, p1, NotifyConnected)
	}
	return nil
}

// deliver hands a dispatch result to the sender.
func (p *Processor) deliver(ctx context.Context, neg *Negotiation, res Result, err error) error {
	if err != nil {
		var code NotifyCode
		if errors.As(err, &code) {
			p.notify(ctx, neg, code)
		}
		return err
	}

	if res.Status == StatusSuspended {
		return nil
	}

	if res.Outbound != nil {
		if serr := p.sender.SendPacket(ctx, neg, res.Outbound); serr != nil {
			return fmt.Errorf("send packet: %w", serr)
		}
	}

	if res.Status == StatusConnected {
		p.notify(ctx, neg, NotifyConnected)
	}
	return nil
}

func (p *Processor) notify(ctx context.Context, neg *Negotiation, code NotifyCode) {
	if err := p.sender.SendNotify(ctx, neg, code); err != nil {
		p.logger.WarnContext(ctx, "send notify failed",
			slog.String("code", code.String()),
			slog.String("error", err.Error()),
		)
	}
}
