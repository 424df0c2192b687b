package ike_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/dantte-lp/goike/internal/ike"
)

func newTestProcessor(t *testing.T, table ike.Table, steps ike.Steps, sender ike.Sender) *ike.Processor {
	t.Helper()
	return ike.NewProcessor(newTestEngine(t, table, steps), sender, slog.New(slog.DiscardHandler))
}

func TestProcessorStartSendsPacketAndConnected(t *testing.T) {
	t.Parallel()

	steps := passSteps().With(ike.Steps{
		ike.StepOutSAProposal: addPayload(ike.PayloadSA),
		ike.StepOutWaitDone:   result(ike.Connected),
	})
	sender := &recordingSender{}
	p := newTestProcessor(t, ike.Table{mmStartRule(ike.StepOutSAProposal, ike.StepOutWaitDone)}, steps, sender)

	if err := p.Start(context.Background(), newMainModeInitiator()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	packets, notifys := sender.sent()
	if len(packets) != 1 || packets[0].NumPayloads() != 1 {
		t.Errorf("sent packets = %v, want one with one payload", packets)
	}
	if len(notifys) != 1 || notifys[0] != ike.NotifyConnected {
		t.Errorf("notifys = %v, want [CONNECTED]", notifys)
	}
}

func TestProcessorFailureNotifies(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{}
	p := newTestProcessor(t, ike.Table{mmStartRule()}, passSteps(), sender)
	neg := ike.NewNegotiation(testSA(), ike.ExchangeIdentityProtection, ike.StateMMKER, 0)

	err := p.ProcessPacket(context.Background(), neg, packet(ike.ExchangeIdentityProtection, 0, ike.PayloadHash))
	if !errors.Is(err, ike.NotifyNoStateMatched) {
		t.Fatalf("err = %v, want NO-STATE-MATCHED", err)
	}
	packets, notifys := sender.sent()
	if len(packets) != 0 {
		t.Errorf("sent %d packets on failure", len(packets))
	}
	if len(notifys) != 1 || notifys[0] != ike.NotifyNoStateMatched {
		t.Errorf("notifys = %v, want [NO-STATE-MATCHED]", notifys)
	}
}

func TestProcessorDropsWhileWaiting(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{}
	p := newTestProcessor(t, ike.DefaultTable(), passSteps(), sender)
	neg := ike.NewNegotiation(testSA(), ike.ExchangeIdentityProtection, ike.StateStartSANegotiationR, 0)
	neg.SetLock(ike.LockWaitingPMReply)

	err := p.ProcessPacket(context.Background(), neg, packet(ike.ExchangeIdentityProtection, 0, ike.PayloadSA))
	if !errors.Is(err, ike.ErrNegotiationBusy) {
		t.Fatalf("err = %v, want ErrNegotiationBusy", err)
	}
	if neg.State() != ike.StateStartSANegotiationR {
		t.Errorf("state = %s, want unchanged", neg.State())
	}
	if len(neg.InboundLog()) != 0 {
		t.Error("dropped packet was logged")
	}
	if packets, notifys := sender.sent(); len(packets)+len(notifys) != 0 {
		t.Errorf("sender called: %v %v", packets, notifys)
	}
}

func TestProcessorDeletedNegotiation(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{}
	p := newTestProcessor(t, ike.DefaultTable(), passSteps(), sender)
	neg := ike.NewNegotiation(testSA(), ike.ExchangeQuickMode, ike.StateDeleted, 3)
	neg.SetLock(ike.LockWaitingPMReply)

	if err := p.Restart(context.Background(), neg); err != nil {
		t.Errorf("Restart of deleted negotiation: %v", err)
	}
	if neg.HasLock(ike.LockWaitingPMReply) {
		t.Error("Restart did not clear LockWaitingPMReply")
	}
	err := p.ProcessPacket(context.Background(), neg, packet(ike.ExchangeQuickMode, 3, ike.PayloadHash))
	if !errors.Is(err, ike.ErrNegotiationDeleted) {
		t.Errorf("ProcessPacket err = %v, want ErrNegotiationDeleted", err)
	}
	if packets, notifys := sender.sent(); len(packets)+len(notifys) != 0 {
		t.Errorf("sender called: %v %v", packets, notifys)
	}
}

// TestProcessorRestartResumes suspends an output step and resumes it.
func TestProcessorRestartResumes(t *testing.T) {
	t.Parallel()

	calls := 0
	waitOnce := func(_ context.Context, _, out *ike.Packet, _ *ike.SA, _ *ike.Negotiation, _ *ike.TransitionRule) ike.StepResult {
		calls++
		if calls == 1 {
			return ike.RetryLater
		}
		if err := out.AddPayload(ike.Payload{Type: ike.PayloadSA}); err != nil {
			return ike.Failure(ike.NotifyOutOfMemory)
		}
		return ike.Success
	}
	sender := &recordingSender{}
	p := newTestProcessor(t, ike.Table{mmStartRule(ike.StepOutSAProposal)},
		passSteps().With(ike.Steps{ike.StepOutSAProposal: waitOnce}), sender)
	neg := newMainModeInitiator()
	ctx := context.Background()

	if err := p.Start(ctx, neg); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if packets, _ := sender.sent(); len(packets) != 0 {
		t.Fatal("suspended dispatch sent a packet")
	}

	if err := p.Restart(ctx, neg); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	packets, _ := sender.sent()
	if len(packets) != 1 {
		t.Fatalf("sent %d packets, want 1", len(packets))
	}
	if neg.HasLock(ike.LockWaitingPMReply) {
		t.Error("LockWaitingPMReply still set")
	}
	if neg.State() != ike.StateMMSAI {
		t.Errorf("state = %s, want MM_SA_I", neg.State())
	}
}

// TestProcessorRestartWaitingForDone resumes a negotiation that waits for
// done: its output steps must run without a packet.
func TestProcessorRestartWaitingForDone(t *testing.T) {
	t.Parallel()

	var sawOut []bool
	record := func(_ context.Context, _, out *ike.Packet, _ *ike.SA, neg *ike.Negotiation, _ *ike.TransitionRule) ike.StepResult {
		sawOut = append(sawOut, out != nil)
		if len(sawOut) == 1 {
			return ike.RetryLater
		}
		return ike.Success
	}
	sender := &recordingSender{}
	p := newTestProcessor(t, ike.Table{mmStartRule(ike.StepOutSAProposal)},
		passSteps().With(ike.Steps{ike.StepOutSAProposal: record}), sender)
	neg := newMainModeInitiator()
	ctx := context.Background()

	if err := p.Start(ctx, neg); err != nil {
		t.Fatalf("Start: %v", err)
	}
	neg.SetLock(ike.LockWaitingForDone)
	if err := p.Restart(ctx, neg); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if len(sawOut) != 2 || !sawOut[0] || sawOut[1] {
		t.Errorf("outbound seen = %v, want [true false]", sawOut)
	}
	if neg.PendingOutbound() != nil {
		t.Error("pending packet kept after restart without outbound")
	}
	if packets, _ := sender.sent(); len(packets) != 0 {
		t.Errorf("sent %d packets, want 0", len(packets))
	}
}

// TestProcessorCompletesPhase1 delivers the first quick mode packet while
// the phase-1 responder waits for done.
func TestProcessorCompletesPhase1(t *testing.T) {
	t.Parallel()

	done := func(_ context.Context, _, out *ike.Packet, sa *ike.SA, neg *ike.Negotiation, _ *ike.TransitionRule) ike.StepResult {
		if out != nil {
			return ike.Failure(ike.NotifyInvalidExchangeType)
		}
		neg.ClearLock(ike.LockWaitingForDone)
		sa.MarkPhase1Done()
		return ike.Connected
	}
	sender := &recordingSender{}
	p := newTestProcessor(t, ike.DefaultTable(), passSteps().With(ike.Steps{ike.StepOutDone: done}), sender)

	sa := testSA()
	p1 := ike.NewNegotiation(sa, ike.ExchangeIdentityProtection, ike.StateMMFinalR, 0)
	p1.SetLock(ike.LockWaitingForDone)
	if sa.Phase1() != p1 {
		t.Fatal("main mode negotiation not registered as the SA's phase 1")
	}
	qm := ike.NewNegotiation(sa, ike.ExchangeQuickMode, ike.StateStartQMR, 5)

	pkt := packet(ike.ExchangeQuickMode, 5, ike.PayloadHash, ike.PayloadSA, ike.PayloadNonce)
	if err := p.ProcessPacket(context.Background(), qm, pkt); err != nil {
		t.Fatalf("ProcessPacket: %v", err)
	}

	if p1.State() != ike.StateDone || p1.HasLock(ike.LockWaitingForDone) {
		t.Errorf("phase 1 = %s %s, want DONE without WaitingForDone", p1.State(), p1.Locks())
	}
	if !sa.Phase1Done() {
		t.Error("SA phase 1 not done")
	}
	if qm.State() != ike.StateQMHashSAR {
		t.Errorf("quick mode state = %s, want QM_HASH_SA_R", qm.State())
	}
	if _, notifys := sender.sent(); len(notifys) != 1 || notifys[0] != ike.NotifyConnected {
		t.Errorf("notifys = %v, want [CONNECTED] for phase 1", notifys)
	}
}

// failingSender rejects every packet.
type failingSender struct{ recordingSender }

var errLinkDown = errors.New("link down")

func (*failingSender) SendPacket(context.Context, *ike.Negotiation, *ike.Packet) error {
	return errLinkDown
}

func TestProcessorSendError(t *testing.T) {
	t.Parallel()

	steps := passSteps().With(ike.Steps{ike.StepOutSAProposal: addPayload(ike.PayloadSA)})
	p := newTestProcessor(t, ike.Table{mmStartRule(ike.StepOutSAProposal)}, steps, &failingSender{})

	if err := p.Start(context.Background(), newMainModeInitiator()); !errors.Is(err, errLinkDown) {
		t.Errorf("err = %v, want wrapped errLinkDown", err)
	}
}
