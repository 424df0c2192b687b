package ike

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Manager errors.
var (
	// ErrUnknownSA indicates no SA matches the packet's cookies.
	ErrUnknownSA = errors.New("unknown SA")

	// ErrDuplicateSA indicates an SA with the same initiator cookie exists.
	ErrDuplicateSA = errors.New("duplicate SA")

	// ErrUnknownNegotiation indicates no negotiation matches the message id.
	ErrUnknownNegotiation = errors.New("unknown negotiation")

	// ErrDuplicateNegotiation indicates a negotiation with the same message
	// id already exists under the SA.
	ErrDuplicateNegotiation = errors.New("duplicate negotiation")

	// ErrResponderCookieMismatch indicates a packet whose responder cookie
	// differs from the SA's.
	ErrResponderCookieMismatch = errors.New("responder cookie mismatch")
)

// negotiationKey identifies a negotiation: the SA's initiator cookie plus
// the message id.
type negotiationKey struct {
	initiator Cookie
	messageID uint32
}

// Manager owns SAs and their negotiations, routes packets to them and
// serializes dispatch per negotiation. Dispatches on different
// negotiations may run concurrently.
type Manager struct {
	proc *Processor

	mu           sync.RWMutex
	sas          map[Cookie]*SA
	negotiations map[negotiationKey]*Negotiation

	metrics MetricsReporter
	logger  *slog.Logger
}

// ManagerOption configures optional Manager parameters.
type ManagerOption func(*Manager)

// WithManagerMetrics sets the MetricsReporter for negotiation lifecycle
// events. If mr is nil, a no-op reporter is used.
func WithManagerMetrics(mr MetricsReporter) ManagerOption {
	return func(m *Manager) {
		if mr != nil {
			m.metrics = mr
		}
	}
}

// NewManager creates a Manager that dispatches through proc. A nil logger
// selects slog.Default().
func NewManager(proc *Processor, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		proc:         proc,
		sas:          make(map[Cookie]*SA),
		negotiations: make(map[negotiationKey]*Negotiation),
		metrics:      noopMetrics{},
		logger:       logger.With(slog.String("component", "ike.manager")),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// -------------------------------------------------------------------------
// SA Lifecycle
// -------------------------------------------------------------------------

// CreateSA registers a new SA. The initiator cookie must be unique.
func (m *Manager) CreateSA(cookies Cookies, hash HashAlgorithm) (*SA, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sas[cookies.Initiator]; ok {
		return nil, fmt.Errorf("%w: %x", ErrDuplicateSA, cookies.Initiator)
	}
	sa := NewSA(cookies, hash)
	m.sas[cookies.Initiator] = sa
	return sa, nil
}

// LookupSA finds the SA for cookies. A zero responder cookie matches any
// SA with that initiator cookie; a non-zero one must match the SA's, or
// fill it in if the SA does not have one yet.
func (m *Manager) LookupSA(cookies Cookies) (*SA, error) {
	m.mu.RLock()
	sa, ok := m.sas[cookies.Initiator]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %x", ErrUnknownSA, cookies.Initiator)
	}
	if cookies.Responder == (Cookie{}) {
		return sa, nil
	}
	if sa.setResponderCookie(cookies.Responder) {
		m.logger.Debug("responder cookie learned", slog.String("responder", fmt.Sprintf("%x", cookies.Responder)))
		return sa, nil
	}
	if sa.Cookies().Responder != cookies.Responder {
		return nil, fmt.Errorf("%w: %x", ErrResponderCookieMismatch, cookies.Responder)
	}
	return sa, nil
}

// DeleteSA aborts every negotiation of the SA and forgets it.
func (m *Manager) DeleteSA(sa *SA) {
	c := sa.Cookies()

	m.mu.Lock()
	var negs []*Negotiation
	for k, neg := range m.negotiations {
		if k.initiator == c.Initiator {
			negs = append(negs, neg)
		}
	}
	delete(m.sas, c.Initiator)
	m.mu.Unlock()

	for _, neg := range negs {
		m.Abort(neg)
	}
}

// -------------------------------------------------------------------------
// Negotiation Lifecycle
// -------------------------------------------------------------------------

// NewNegotiation creates and registers a negotiation under sa.
func (m *Manager) NewNegotiation(sa *SA, x ExchangeType, start State, messageID uint32) (*Negotiation, error) {
	key := negotiationKey{initiator: sa.Cookies().Initiator, messageID: messageID}

	m.mu.Lock()
	if _, ok := m.negotiations[key]; ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: message id %#08x", ErrDuplicateNegotiation, messageID)
	}
	neg := NewNegotiation(sa, x, start, messageID)
	m.negotiations[key] = neg
	m.mu.Unlock()

	m.metrics.RegisterNegotiation(x.String())
	m.logger.Debug("negotiation created",
		slog.String("exchange", x.String()),
		slog.String("state", start.String()),
		slog.Uint64("message_id", uint64(messageID)),
	)
	return neg, nil
}

// Negotiation returns the negotiation under sa with the given message id.
func (m *Manager) Negotiation(sa *SA, messageID uint32) (*Negotiation, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	neg, ok := m.negotiations[negotiationKey{initiator: sa.Cookies().Initiator, messageID: messageID}]
	return neg, ok
}

// Active returns the number of registered negotiations.
func (m *Manager) Active() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.negotiations)
}

// Negotiations returns the registered negotiations in no particular order.
func (m *Manager) Negotiations() []*Negotiation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	negs := make([]*Negotiation, 0, len(m.negotiations))
	for _, neg := range m.negotiations {
		negs = append(negs, neg)
	}
	return negs
}

// Abort cancels neg outside any dispatch: it waits for an in-flight
// dispatch to finish, marks the negotiation deleted, releases its pending
// outbound packet and forgets it. A later Resume is a no-op.
func (m *Manager) Abort(neg *Negotiation) {
	neg.mu.Lock()
	if p := neg.takePending(); p != nil {
		m.proc.Engine().Allocator().Release(p)
	}
	neg.state = StateDeleted
	neg.cursor = NotStarted()
	neg.mu.Unlock()

	m.forget(neg)
	m.logger.Debug("negotiation aborted", slog.Uint64("message_id", uint64(neg.MessageID)))
}

// forget removes neg from the registry if it is still registered.
func (m *Manager) forget(neg *Negotiation) {
	key := negotiationKey{initiator: neg.SA().Cookies().Initiator, messageID: neg.MessageID}

	m.mu.Lock()
	cur, ok := m.negotiations[key]
	if ok && cur == neg {
		delete(m.negotiations, key)
	}
	m.mu.Unlock()

	if ok && cur == neg {
		m.metrics.UnregisterNegotiation(neg.Exchange.String())
	}
}

// reap forgets neg once it has finished or its dispatch failed with a
// notify code. The phase-1 negotiation always stays registered; DeleteSA
// removes it.
func (m *Manager) reap(neg *Negotiation, err error) {
	if neg.sa.Phase1() == neg {
		return
	}

	var code NotifyCode
	if err != nil && !errors.Is(err, ErrPhase1Completion) && errors.As(err, &code) {
		m.logger.Debug("negotiation failed, forgetting it",
			slog.String("exchange", neg.Exchange.String()),
			slog.Uint64("message_id", uint64(neg.MessageID)),
			slog.String("reason", code.String()),
		)
		m.forget(neg)
		return
	}

	if neg.State() == StateDone && !neg.HasLock(LockWaitingForDone) {
		m.forget(neg)
	}
}

// -------------------------------------------------------------------------
// Dispatch
// -------------------------------------------------------------------------

// Initiate sends the first message of a locally started negotiation.
func (m *Manager) Initiate(ctx context.Context, neg *Negotiation) error {
	if !neg.mu.TryLock() {
		return ErrNegotiationBusy
	}
	defer neg.mu.Unlock()

	err := m.proc.Start(ctx, neg)
	m.reap(neg, err)
	return err
}

// Deliver dispatches pkt to neg. It fails with ErrNegotiationBusy if
// another dispatch of neg is in flight or neg waits for an external answer.
func (m *Manager) Deliver(ctx context.Context, neg *Negotiation, pkt *Packet) error {
	if !neg.mu.TryLock() {
		return ErrNegotiationBusy
	}
	defer neg.mu.Unlock()

	err := m.proc.ProcessPacket(ctx, neg, pkt)
	m.reap(neg, err)
	return err
}

// Resume continues a negotiation whose external answer has arrived.
func (m *Manager) Resume(ctx context.Context, neg *Negotiation) error {
	neg.mu.Lock()
	defer neg.mu.Unlock()

	err := m.proc.Restart(ctx, neg)
	m.reap(neg, err)
	return err
}

// Route finds or creates the negotiation for a received packet and
// dispatches it.
//
// The SA must already exist (see Accept for a responder's first packet).
// A packet with an unknown non-zero message id starts a responder
// negotiation of the packet's exchange type.
func (m *Manager) Route(ctx context.Context, pkt *Packet) error {
	sa, err := m.LookupSA(pkt.Header.Cookies)
	if err != nil {
		return err
	}

	neg, ok := m.Negotiation(sa, pkt.Header.MessageID)
	if !ok {
		start, known := responderStart(pkt.Header.Exchange)
		if pkt.Header.MessageID == 0 || !known {
			return fmt.Errorf("%w: message id %#08x, exchange %s",
				ErrUnknownNegotiation, pkt.Header.MessageID, pkt.Header.Exchange)
		}
		neg, err = m.NewNegotiation(sa, pkt.Header.Exchange, start, pkt.Header.MessageID)
		if err != nil {
			return err
		}
	}
	return m.Deliver(ctx, neg, pkt)
}

// Accept handles the first packet of a peer-initiated phase 1: it creates
// the SA with responder cookie and a responder negotiation, then
// dispatches the packet.
func (m *Manager) Accept(ctx context.Context, pkt *Packet, responder Cookie, hash HashAlgorithm) (*Negotiation, error) {
	x := pkt.Header.Exchange
	if x != ExchangeIdentityProtection && x != ExchangeAggressive {
		return nil, fmt.Errorf("%w: %s cannot start an SA", ErrUnknownNegotiation, x)
	}
	sa, err := m.CreateSA(Cookies{Initiator: pkt.Header.Cookies.Initiator, Responder: responder}, hash)
	if err != nil {
		return nil, err
	}
	neg, err := m.NewNegotiation(sa, x, StateStartSANegotiationR, 0)
	if err != nil {
		return nil, err
	}
	return neg, m.Deliver(ctx, neg, pkt)
}

// responderStart returns the initial responder state for a negotiation
// started by a peer packet with a non-zero message id. Informational
// exchanges start in DONE so both the phase-1 protected rules and the
// any-state rules can match.
func responderStart(x ExchangeType) (State, bool) {
	switch x {
	case ExchangeQuickMode:
		return StateStartQMR, true
	case ExchangeNewGroupMode:
		return StateStartNGMR, true
	case ExchangeTransaction:
		return StateStartCfgR, true
	case ExchangeInformational:
		return StateDone, true
	default:
		return 0, false
	}
}
