package ike

import (
	"crypto/rand"
	"fmt"
	"sync"
	"sync/atomic"
)

// -------------------------------------------------------------------------
// Security Association
// -------------------------------------------------------------------------

// SA is one ISAKMP security association: the phase-1 relationship shared
// by every negotiation that runs under it.
//
// Cookies and the hash algorithm are fixed at construction. The only
// mutation reachable from steps is MarkPhase1Done. The responder cookie
// may be filled in once by the manager when the responder's first reply
// arrives.
type SA struct {
	mu      sync.Mutex
	cookies Cookies
	hash    HashAlgorithm

	phase1Done atomic.Bool

	// phase1 is the negotiation that establishes the SA. Processor uses it
	// to complete a phase 1 that is waiting for done when phase 2 traffic
	// arrives.
	phase1 *Negotiation
}

// NewSA creates an SA with the given cookies and negotiated hash algorithm.
func NewSA(cookies Cookies, hash HashAlgorithm) *SA {
	return &SA{cookies: cookies, hash: hash}
}

// NewInitiatorCookie returns a random initiator cookie.
func NewInitiatorCookie() (Cookie, error) {
	var c Cookie
	if _, err := rand.Read(c[:]); err != nil {
		return c, fmt.Errorf("generate cookie: %w", err)
	}
	return c, nil
}

// Cookies returns the SA's cookie pair.
func (sa *SA) Cookies() Cookies {
	sa.mu.Lock()
	defer sa.mu.Unlock()
	return sa.cookies
}

// HashAlgorithm returns the SA's negotiated hash algorithm.
func (sa *SA) HashAlgorithm() HashAlgorithm {
	return sa.hash
}

// Phase1Done reports whether phase 1 of the SA has completed.
func (sa *SA) Phase1Done() bool {
	return sa.phase1Done.Load()
}

// MarkPhase1Done records phase-1 completion. It reports false if phase 1
// was already marked done.
func (sa *SA) MarkPhase1Done() bool {
	return sa.phase1Done.CompareAndSwap(false, true)
}

// Phase1 returns the SA's phase-1 negotiation, or nil.
func (sa *SA) Phase1() *Negotiation {
	sa.mu.Lock()
	defer sa.mu.Unlock()
	return sa.phase1
}

// setResponderCookie fills in the responder cookie if it is still zero.
func (sa *SA) setResponderCookie(c Cookie) bool {
	sa.mu.Lock()
	defer sa.mu.Unlock()
	if sa.cookies.Responder != (Cookie{}) {
		return false
	}
	sa.cookies.Responder = c
	return true
}

func (sa *SA) setPhase1(neg *Negotiation) {
	sa.mu.Lock()
	defer sa.mu.Unlock()
	if sa.phase1 == nil {
		sa.phase1 = neg
	}
}

// -------------------------------------------------------------------------
// Negotiation
// -------------------------------------------------------------------------

// LockFlags are scheduling flags on a negotiation.
type LockFlags uint8

const (
	// LockWaitingPMReply is set while a step waits for an external answer.
	// The negotiation must not be dispatched with new input until the
	// answer triggers a restart.
	LockWaitingPMReply LockFlags = 1 << iota

	// LockWaitingForDone is set on a phase-1 negotiation that sent its last
	// message and waits for proof the peer received it.
	LockWaitingForDone
)

// String lists the set flags.
func (f LockFlags) String() string {
	switch f {
	case 0:
		return "-"
	case LockWaitingPMReply:
		return "WAITING_PM_REPLY"
	case LockWaitingForDone:
		return "WAITING_FOR_DONE"
	case LockWaitingPMReply | LockWaitingForDone:
		return "WAITING_PM_REPLY|WAITING_FOR_DONE"
	default:
		return fmt.Sprintf(unknownFmt, uint8(f))
	}
}

// Negotiation is one in-flight exchange under an SA.
//
// The engine owns State, Cursor and PendingOutbound. Steps may set
// AuthMethod and use the scratch fields. A negotiation must only be
// dispatched by one goroutine at a time; Manager enforces that.
type Negotiation struct {
	sa *SA

	// Exchange is the exchange type the negotiation runs.
	Exchange ExchangeType

	// AuthMethod is the phase-1 authentication class. Input steps set it
	// once the peer's proposal reveals it.
	AuthMethod AuthMethod

	// MessageID is 0 for phase 1 and a random id for later exchanges.
	MessageID uint32

	// Initiator reports whether this end started the exchange.
	Initiator bool

	// Values is per-negotiation scratch space for step implementations.
	Values map[string][]byte

	state   State
	cursor  Cursor
	locks   LockFlags
	pending *Packet

	inbound  []*Packet
	outbound []*Packet

	// mu serializes dispatch. See Manager.
	mu sync.Mutex
}

// NewNegotiation creates a negotiation in state start under sa. A phase-1
// exchange (main or aggressive mode) becomes the SA's phase-1 negotiation.
func NewNegotiation(sa *SA, x ExchangeType, start State, messageID uint32) *Negotiation {
	neg := &Negotiation{
		sa:        sa,
		Exchange:  x,
		MessageID: messageID,
		Initiator: isInitiatorState(start),
		Values:    make(map[string][]byte),
		state:     start,
	}
	if x == ExchangeIdentityProtection || x == ExchangeAggressive {
		sa.setPhase1(neg)
	}
	return neg
}

func isInitiatorState(s State) bool {
	switch s {
	case StateStartSANegotiationI, StateStartQMI, StateStartNGMI, StateStartCfgI:
		return true
	default:
		return false
	}
}

// SA returns the negotiation's security association.
func (n *Negotiation) SA() *SA { return n.sa }

// State returns the current state.
func (n *Negotiation) State() State { return n.state }

// Cursor returns the resumption point inside the current rule.
func (n *Negotiation) Cursor() Cursor { return n.cursor }

// Locks returns the current lock flags.
func (n *Negotiation) Locks() LockFlags { return n.locks }

// HasLock reports whether every flag in f is set.
func (n *Negotiation) HasLock(f LockFlags) bool { return n.locks&f == f }

// SetLock sets f. Steps use it for LockWaitingForDone.
func (n *Negotiation) SetLock(f LockFlags) { n.locks |= f }

// ClearLock clears f.
func (n *Negotiation) ClearLock(f LockFlags) { n.locks &^= f }

// PendingOutbound returns the outbound packet saved by a suspended output
// phase, or nil.
func (n *Negotiation) PendingOutbound() *Packet { return n.pending }

// InboundLog returns the inbound packets dispatched so far, oldest first.
func (n *Negotiation) InboundLog() []*Packet { return n.inbound }

// OutboundLog returns the outbound packets produced so far, oldest first.
func (n *Negotiation) OutboundLog() []*Packet { return n.outbound }

// lastInbound returns the most recent inbound packet, or nil.
func (n *Negotiation) lastInbound() *Packet {
	if len(n.inbound) == 0 {
		return nil
	}
	return n.inbound[len(n.inbound)-1]
}

// takePending removes and returns the pending outbound packet.
func (n *Negotiation) takePending() *Packet {
	p := n.pending
	n.pending = nil
	return p
}

// Deleted reports whether the negotiation has been aborted.
func (n *Negotiation) Deleted() bool { return n.state == StateDeleted }
