package ike_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/dantte-lp/goike/internal/ike"
)

// -------------------------------------------------------------------------
// Test Helpers — Manager
// -------------------------------------------------------------------------

func newTestManager(t *testing.T, table ike.Table, steps ike.Steps, sender ike.Sender) *ike.Manager {
	t.Helper()
	proc := newTestProcessor(t, table, steps, sender)
	return ike.NewManager(proc, slog.New(slog.DiscardHandler))
}

func cookiesN(n int) ike.Cookies {
	var c ike.Cookies
	c.Initiator[0] = byte(n >> 8)
	c.Initiator[1] = byte(n)
	c.Initiator[7] = 0xaa
	return c
}

// -------------------------------------------------------------------------
// SA registry
// -------------------------------------------------------------------------

func TestManagerSALookup(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, ike.DefaultTable(), passSteps(), &recordingSender{})
	initiator := ike.Cookies{Initiator: testCookies().Initiator}

	sa, err := m.CreateSA(initiator, ike.HashSHA1)
	if err != nil {
		t.Fatalf("CreateSA: %v", err)
	}
	if _, err := m.CreateSA(initiator, ike.HashSHA1); !errors.Is(err, ike.ErrDuplicateSA) {
		t.Errorf("duplicate CreateSA err = %v, want ErrDuplicateSA", err)
	}

	got, err := m.LookupSA(initiator)
	if err != nil || got != sa {
		t.Fatalf("LookupSA with zero responder = %v, %v", got, err)
	}

	// The first non-zero responder cookie is learned.
	full := testCookies()
	if got, err := m.LookupSA(full); err != nil || got != sa {
		t.Fatalf("LookupSA learning responder = %v, %v", got, err)
	}
	if sa.Cookies() != full {
		t.Errorf("SA cookies = %v, want %v", sa.Cookies(), full)
	}

	wrong := full
	wrong.Responder[0] ^= 0xff
	if _, err := m.LookupSA(wrong); !errors.Is(err, ike.ErrResponderCookieMismatch) {
		t.Errorf("mismatched responder err = %v, want ErrResponderCookieMismatch", err)
	}

	if _, err := m.LookupSA(cookiesN(9)); !errors.Is(err, ike.ErrUnknownSA) {
		t.Errorf("unknown initiator err = %v, want ErrUnknownSA", err)
	}
}

func TestManagerNegotiationRegistry(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, ike.DefaultTable(), passSteps(), &recordingSender{})
	sa, err := m.CreateSA(testCookies(), ike.HashSHA1)
	if err != nil {
		t.Fatalf("CreateSA: %v", err)
	}

	neg, err := m.NewNegotiation(sa, ike.ExchangeQuickMode, ike.StateStartQMI, 42)
	if err != nil {
		t.Fatalf("NewNegotiation: %v", err)
	}
	if _, err := m.NewNegotiation(sa, ike.ExchangeQuickMode, ike.StateStartQMI, 42); !errors.Is(err, ike.ErrDuplicateNegotiation) {
		t.Errorf("duplicate err = %v, want ErrDuplicateNegotiation", err)
	}
	if got, ok := m.Negotiation(sa, 42); !ok || got != neg {
		t.Errorf("Negotiation(42) = %v, %v", got, ok)
	}
	if m.Active() != 1 {
		t.Errorf("Active = %d, want 1", m.Active())
	}

	m.DeleteSA(sa)
	if m.Active() != 0 {
		t.Errorf("Active after DeleteSA = %d, want 0", m.Active())
	}
	if !neg.Deleted() {
		t.Error("negotiation not deleted with its SA")
	}
	if _, err := m.LookupSA(testCookies()); !errors.Is(err, ike.ErrUnknownSA) {
		t.Errorf("LookupSA after DeleteSA err = %v, want ErrUnknownSA", err)
	}
}

// -------------------------------------------------------------------------
// Routing
// -------------------------------------------------------------------------

func TestManagerAcceptAndRoute(t *testing.T) {
	t.Parallel()

	steps := passSteps().With(ike.Steps{
		ike.StepOutSAValues: addPayload(ike.PayloadSA),
		ike.StepOutKE:       addPayload(ike.PayloadKE),
	})
	sender := &recordingSender{}
	m := newTestManager(t, ike.DefaultTable(), steps, sender)
	ctx := context.Background()

	first := packet(ike.ExchangeIdentityProtection, 0, ike.PayloadSA, ike.PayloadVID)
	first.Header.Cookies.Responder = ike.Cookie{}
	neg, err := m.Accept(ctx, first, testCookies().Responder, ike.HashSHA256)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if neg.Initiator {
		t.Error("accepted negotiation is marked initiator")
	}
	if neg.State() != ike.StateMMSAR {
		t.Errorf("state = %s, want MM_SA_R", neg.State())
	}
	if packets, _ := sender.sent(); len(packets) != 1 {
		t.Fatalf("sent %d packets, want 1", len(packets))
	}

	// Second main mode packet arrives through Route.
	neg.AuthMethod = ike.AuthMethodPreSharedKey
	second := packet(ike.ExchangeIdentityProtection, 0, ike.PayloadKE, ike.PayloadNonce)
	if err := m.Route(ctx, second); err != nil {
		t.Fatalf("Route: %v", err)
	}
	if neg.State() != ike.StateMMKER {
		t.Errorf("state = %s, want MM_KE_R", neg.State())
	}

	// Unknown message id with an exchange that cannot start a negotiation.
	stray := packet(ike.ExchangeIdentityProtection, 77, ike.PayloadHash)
	if err := m.Route(ctx, stray); !errors.Is(err, ike.ErrUnknownNegotiation) {
		t.Errorf("stray err = %v, want ErrUnknownNegotiation", err)
	}

	// An informational packet creates a responder negotiation that the
	// unprotected delete rule finishes and the manager reaps.
	before := m.Active()
	del := packet(ike.ExchangeInformational, 99, ike.PayloadDelete)
	if err := m.Route(ctx, del); err != nil {
		t.Fatalf("Route delete: %v", err)
	}
	if m.Active() != before {
		t.Errorf("Active = %d, want %d after finished informational", m.Active(), before)
	}

	// Quick mode cannot start before phase 1 is done.
	qm := packet(ike.ExchangeQuickMode, 5, ike.PayloadHash, ike.PayloadSA, ike.PayloadNonce)
	if err := m.Route(ctx, qm); !errors.Is(err, ike.NotifyNoStateMatched) {
		t.Errorf("early quick mode err = %v, want NO-STATE-MATCHED", err)
	}
	if m.Active() != before {
		t.Errorf("Active = %d, want %d after failed quick mode", m.Active(), before)
	}
	if _, ok := m.Negotiation(neg.SA(), 5); ok {
		t.Error("failed quick mode negotiation is still registered")
	}

	// The same message id can start over once the failure is forgotten.
	if err := m.Route(ctx, qm); !errors.Is(err, ike.NotifyNoStateMatched) {
		t.Errorf("repeated quick mode err = %v, want NO-STATE-MATCHED", err)
	}

	if _, err := m.Accept(ctx, packet(ike.ExchangeQuickMode, 0, ike.PayloadSA), ike.Cookie{1}, ike.HashSHA1); !errors.Is(err, ike.ErrUnknownNegotiation) {
		t.Errorf("Accept quick mode err = %v, want ErrUnknownNegotiation", err)
	}
}

// -------------------------------------------------------------------------
// Serialization and abort
// -------------------------------------------------------------------------

// TestManagerBusyDuringDispatch blocks a step and delivers a second packet
// to the same negotiation concurrently.
func TestManagerBusyDuringDispatch(t *testing.T) {
	t.Parallel()

	entered := make(chan struct{})
	release := make(chan struct{})
	block := func(context.Context, *ike.Packet, *ike.Packet, *ike.SA, *ike.Negotiation, *ike.TransitionRule) ike.StepResult {
		close(entered)
		<-release
		return ike.Success
	}
	m := newTestManager(t, ike.Table{mmStartRule(ike.StepOutSAProposal)},
		passSteps().With(ike.Steps{ike.StepOutSAProposal: block}), &recordingSender{})

	sa, err := m.CreateSA(testCookies(), ike.HashSHA1)
	if err != nil {
		t.Fatalf("CreateSA: %v", err)
	}
	neg, err := m.NewNegotiation(sa, ike.ExchangeIdentityProtection, ike.StateStartSANegotiationI, 0)
	if err != nil {
		t.Fatalf("NewNegotiation: %v", err)
	}

	ctx := context.Background()
	done := make(chan error, 1)
	go func() { done <- m.Initiate(ctx, neg) }()

	<-entered
	err = m.Deliver(ctx, neg, packet(ike.ExchangeIdentityProtection, 0, ike.PayloadSA))
	if !errors.Is(err, ike.ErrNegotiationBusy) {
		t.Errorf("concurrent Deliver err = %v, want ErrNegotiationBusy", err)
	}
	if err := m.Initiate(ctx, neg); !errors.Is(err, ike.ErrNegotiationBusy) {
		t.Errorf("concurrent Initiate err = %v, want ErrNegotiationBusy", err)
	}
	close(release)

	if err := <-done; err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if neg.State() != ike.StateMMSAI {
		t.Errorf("state = %s, want MM_SA_I", neg.State())
	}
}

// countingAllocator records releases.
type countingAllocator struct {
	*ike.PoolAllocator
	mu       sync.Mutex
	released []*ike.Packet
}

func (a *countingAllocator) Release(p *ike.Packet) {
	a.mu.Lock()
	a.released = append(a.released, p)
	a.mu.Unlock()
	a.PoolAllocator.Release(p)
}

func TestManagerAbortReleasesPending(t *testing.T) {
	t.Parallel()

	alloc := &countingAllocator{PoolAllocator: ike.NewPoolAllocator(ike.DefaultPayloadCapacity, ike.DefaultAuxCapacity)}
	wait := func(_ context.Context, _, out *ike.Packet, _ *ike.SA, _ *ike.Negotiation, _ *ike.TransitionRule) ike.StepResult {
		if err := out.AddPayload(ike.Payload{Type: ike.PayloadSA}); err != nil {
			return ike.Failure(ike.NotifyOutOfMemory)
		}
		return ike.RetryLater
	}
	e := newTestEngine(t, ike.Table{mmStartRule(ike.StepOutSAProposal)},
		passSteps().With(ike.Steps{ike.StepOutSAProposal: wait}), ike.WithAllocator(alloc))
	sender := &recordingSender{}
	m := ike.NewManager(ike.NewProcessor(e, sender, slog.New(slog.DiscardHandler)), slog.New(slog.DiscardHandler))

	sa, err := m.CreateSA(testCookies(), ike.HashSHA1)
	if err != nil {
		t.Fatalf("CreateSA: %v", err)
	}
	neg, err := m.NewNegotiation(sa, ike.ExchangeIdentityProtection, ike.StateStartSANegotiationI, 0)
	if err != nil {
		t.Fatalf("NewNegotiation: %v", err)
	}
	ctx := context.Background()

	if err := m.Initiate(ctx, neg); err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	pending := neg.PendingOutbound()
	if pending == nil {
		t.Fatal("no pending packet after suspension")
	}

	m.Abort(neg)

	if !neg.Deleted() || neg.PendingOutbound() != nil {
		t.Errorf("after Abort: state %s, pending %v", neg.State(), neg.PendingOutbound())
	}
	alloc.mu.Lock()
	released := append([]*ike.Packet(nil), alloc.released...)
	alloc.mu.Unlock()
	if len(released) != 1 || released[0] != pending {
		t.Errorf("released %v, want the pending packet", released)
	}
	if m.Active() != 0 {
		t.Errorf("Active = %d, want 0", m.Active())
	}

	// The external answer arriving later must be a no-op.
	if err := m.Resume(ctx, neg); err != nil {
		t.Errorf("Resume after Abort: %v", err)
	}
	if packets, notifys := sender.sent(); len(packets)+len(notifys) != 0 {
		t.Errorf("sender called after abort: %v %v", packets, notifys)
	}
}

// TestManagerConcurrentNegotiations runs many independent negotiations
// through one manager at once.
func TestManagerConcurrentNegotiations(t *testing.T) {
	t.Parallel()

	const n = 64

	steps := passSteps().With(ike.Steps{ike.StepOutSAProposal: addPayload(ike.PayloadSA)})
	sender := &recordingSender{}
	m := newTestManager(t, ike.Table{mmStartRule(ike.StepOutSAProposal)}, steps, sender)

	negs := make([]*ike.Negotiation, n)
	for i := range n {
		sa, err := m.CreateSA(cookiesN(i), ike.HashSHA1)
		if err != nil {
			t.Fatalf("CreateSA %d: %v", i, err)
		}
		negs[i], err = m.NewNegotiation(sa, ike.ExchangeIdentityProtection, ike.StateStartSANegotiationI, 0)
		if err != nil {
			t.Fatalf("NewNegotiation %d: %v", i, err)
		}
	}

	g, ctx := errgroup.WithContext(context.Background())
	for i, neg := range negs {
		g.Go(func() error {
			if err := m.Initiate(ctx, neg); err != nil {
				return fmt.Errorf("negotiation %d: %w", i, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	for i, neg := range negs {
		if neg.State() != ike.StateMMSAI {
			t.Errorf("negotiation %d state = %s, want MM_SA_I", i, neg.State())
		}
	}
	if packets, _ := sender.sent(); len(packets) != n {
		t.Errorf("sent %d packets, want %d", len(packets), n)
	}
}
