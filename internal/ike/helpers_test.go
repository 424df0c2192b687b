package ike_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/dantte-lp/goike/internal/ike"
)

// -------------------------------------------------------------------------
// Test Helpers — Steps, Engines, Senders
// -------------------------------------------------------------------------

// passSteps returns a registry in which every known step succeeds without
// touching the packet.
func passSteps() ike.Steps {
	s := make(ike.Steps)
	for _, id := range ike.AllSteps() {
		s[id] = pass
	}
	return s
}

func pass(context.Context, *ike.Packet, *ike.Packet, *ike.SA, *ike.Negotiation, *ike.TransitionRule) ike.StepResult {
	return ike.Success
}

// result returns a step that always returns r.
func result(r ike.StepResult) ike.StepFunc {
	return func(context.Context, *ike.Packet, *ike.Packet, *ike.SA, *ike.Negotiation, *ike.TransitionRule) ike.StepResult {
		return r
	}
}

// addPayload returns an output step that appends a payload of type pt when
// an outbound packet is being built.
func addPayload(pt ike.PayloadType) ike.StepFunc {
	return func(_ context.Context, _, out *ike.Packet, _ *ike.SA, _ *ike.Negotiation, _ *ike.TransitionRule) ike.StepResult {
		if out == nil {
			return ike.Success
		}
		if err := out.AddPayload(ike.Payload{Type: pt, Data: []byte{byte(pt)}}); err != nil {
			return ike.Failure(ike.NotifyOutOfMemory)
		}
		return ike.Success
	}
}

// testCookies returns a fixed cookie pair.
func testCookies() ike.Cookies {
	return ike.Cookies{
		Initiator: ike.Cookie{1, 2, 3, 4, 5, 6, 7, 8},
		Responder: ike.Cookie{9, 10, 11, 12, 13, 14, 15, 16},
	}
}

// testSA returns a fresh SA with SHA-1 and the fixed cookies.
func testSA() *ike.SA {
	return ike.NewSA(testCookies(), ike.HashSHA1)
}

// newTestEngine builds an engine with a discarding logger.
func newTestEngine(t *testing.T, table ike.Table, steps ike.Steps, opts ...ike.Option) *ike.Engine {
	t.Helper()
	e, err := ike.NewEngine(table, steps, slog.New(slog.DiscardHandler), opts...)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

// packet builds an inbound packet carrying one payload of each type.
func packet(x ike.ExchangeType, msgID uint32, types ...ike.PayloadType) *ike.Packet {
	payloads := make([]ike.Payload, 0, len(types))
	for _, pt := range types {
		payloads = append(payloads, ike.Payload{Type: pt})
	}
	return ike.NewPacket(ike.Header{
		Cookies:   testCookies(),
		Exchange:  x,
		MessageID: msgID,
	}, payloads...)
}

// recordingSender records everything the processor hands it.
type recordingSender struct {
	mu      sync.Mutex
	packets []*ike.Packet
	notifys []ike.NotifyCode
}

func (s *recordingSender) SendPacket(_ context.Context, _ *ike.Negotiation, p *ike.Packet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.packets = append(s.packets, p)
	return nil
}

func (s *recordingSender) SendNotify(_ context.Context, _ *ike.Negotiation, code ike.NotifyCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifys = append(s.notifys, code)
	return nil
}

func (s *recordingSender) sent() ([]*ike.Packet, []ike.NotifyCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*ike.Packet(nil), s.packets...), append([]ike.NotifyCode(nil), s.notifys...)
}
