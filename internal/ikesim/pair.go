// Package ikesim runs an initiator and a responder engine against each
// other in process.
//
// The reference steps build packets with the payload kinds the default
// transition table expects and placeholder bodies. Only SA payloads carry
// meaning (the RFC 2409 auth method value) and NAT-D payloads carry real
// RFC 3947 hashes. No cryptography is performed.
package ikesim

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"

	"github.com/dantte-lp/goike/internal/config"
	"github.com/dantte-lp/goike/internal/ike"
)

// Peer names used in transcripts.
const (
	PeerInitiator = "initiator"
	PeerResponder = "responder"
)

const (
	// quickModeMessageID is the message id of the simulated quick mode.
	quickModeMessageID = 1

	// maxEvents bounds the deliveries and lookup answers of one settle
	// pass.
	maxEvents = 64
)

// Simulation errors.
var (
	// ErrUnsupportedExchange indicates a phase-1 exchange other than main
	// or aggressive mode.
	ErrUnsupportedExchange = errors.New("phase 1 exchange must be main or aggressive")

	// ErrNoAuthMethod indicates the options leave the auth method unknown.
	ErrNoAuthMethod = errors.New("auth method must be set")

	// ErrStalled indicates the peers kept exchanging without settling.
	ErrStalled = errors.New("simulation did not settle")

	// ErrNotConnected indicates a peer finished without every negotiation
	// reporting CONNECTED.
	ErrNotConnected = errors.New("negotiation not connected")
)

// Addresses the peers claim for NAT-D (RFC 5737 documentation ranges).
//
//nolint:gochecknoglobals // fixed simulation addresses.
var (
	initiatorAddr = netip.MustParseAddrPort("192.0.2.1:500")
	responderAddr = netip.MustParseAddrPort("198.51.100.1:500")
)

// -------------------------------------------------------------------------
// Options
// -------------------------------------------------------------------------

// Options describes one simulated negotiation.
type Options struct {
	Exchange     ike.ExchangeType
	Auth         ike.AuthMethod
	Hash         ike.HashAlgorithm
	PreSharedKey []byte

	// SuspendPSK makes the first pre-shared key lookup of each negotiation
	// suspend until the harness answers it.
	SuspendPSK bool

	// QuickMode runs one quick mode exchange after phase 1.
	QuickMode bool

	MaxRestarts     int
	PayloadCapacity int
	AuxCapacity     int
}

// DefaultOptions returns main mode with a pre-shared key and SHA-1,
// followed by quick mode.
func DefaultOptions() Options {
	return Options{
		Exchange:        ike.ExchangeIdentityProtection,
		Auth:            ike.AuthMethodPreSharedKey,
		Hash:            ike.HashSHA1,
		PreSharedKey:    []byte("goike"),
		QuickMode:       true,
		MaxRestarts:     ike.DefaultMaxRestarts,
		PayloadCapacity: ike.DefaultPayloadCapacity,
		AuxCapacity:     ike.DefaultAuxCapacity,
	}
}

// OptionsFromConfig builds Options from the simulation and engine
// configuration sections.
func OptionsFromConfig(sim config.SimulationConfig, eng config.EngineConfig) (Options, error) {
	opts := DefaultOptions()

	var err error
	if opts.Exchange, err = sim.ExchangeType(); err != nil {
		return Options{}, err
	}
	if opts.Auth, err = sim.Auth(); err != nil {
		return Options{}, err
	}
	if opts.Hash, err = sim.HashAlgorithm(); err != nil {
		return Options{}, err
	}
	opts.SuspendPSK = sim.SuspendPSK
	opts.QuickMode = sim.QuickMode
	opts.MaxRestarts = eng.MaxRestarts
	opts.PayloadCapacity = eng.PayloadCapacity
	opts.AuxCapacity = eng.AuxCapacity
	return opts, nil
}

// -------------------------------------------------------------------------
// Peer
// -------------------------------------------------------------------------

// Peer is one end of a simulated negotiation. It implements ike.Sender by
// putting packets on the pair's in-memory wire.
type Peer struct {
	name   string
	opts   Options
	local  netip.AddrPort
	remote netip.AddrPort
	cookie ike.Cookie

	pair *Pair
	mgr  *ike.Manager
	sa   *ike.SA

	// lookups holds negotiations suspended on the pre-shared key, oldest
	// first.
	lookups []*ike.Negotiation
}

// Name returns "initiator" or "responder".
func (p *Peer) Name() string { return p.name }

// Manager returns the peer's negotiation manager.
func (p *Peer) Manager() *ike.Manager { return p.mgr }

// SA returns the peer's ISAKMP SA, or nil before phase 1 has started.
func (p *Peer) SA() *ike.SA { return p.sa }

// SendPacket copies the packet onto the wire towards the other peer.
func (p *Peer) SendPacket(_ context.Context, neg *ike.Negotiation, pkt *ike.Packet) error {
	payloads := make([]ike.Payload, len(pkt.Payloads))
	types := make([]ike.PayloadType, len(pkt.Payloads))
	for i, pl := range pkt.Payloads {
		payloads[i] = ike.Payload{Type: pl.Type, Data: bytes.Clone(pl.Data)}
		types[i] = pl.Type
	}

	p.pair.transcript.add(Entry{
		Kind:      EntryPacket,
		Peer:      p.name,
		Exchange:  pkt.Header.Exchange,
		MessageID: pkt.Header.MessageID,
		State:     neg.State(),
		Payloads:  types,
	})
	p.pair.wire = append(p.pair.wire, delivery{
		to:  p.pair.other(p),
		pkt: ike.NewPacket(pkt.Header, payloads...),
	})
	return nil
}

// SendNotify records a status or failure in the transcript.
func (p *Peer) SendNotify(_ context.Context, neg *ike.Negotiation, code ike.NotifyCode) error {
	p.pair.transcript.add(Entry{
		Kind:      EntryNotify,
		Peer:      p.name,
		Exchange:  neg.Exchange,
		MessageID: neg.MessageID,
		State:     neg.State(),
		Notify:    code,
	})
	return nil
}

// initiate creates the SA and the phase-1 negotiation and sends the first
// message. In main mode the auth method stays unknown until the
// responder's choice arrives; aggressive mode fixes it up front.
func (p *Peer) initiate(ctx context.Context) error {
	sa, err := p.mgr.CreateSA(ike.Cookies{Initiator: p.cookie}, p.opts.Hash)
	if err != nil {
		return err
	}
	p.sa = sa

	neg, err := p.mgr.NewNegotiation(sa, p.opts.Exchange, ike.StateStartSANegotiationI, 0)
	if err != nil {
		return err
	}
	if p.opts.Exchange == ike.ExchangeAggressive {
		neg.AuthMethod = p.opts.Auth
	}
	return p.mgr.Initiate(ctx, neg)
}

// initiateQuickMode starts a quick mode negotiation under the peer's SA.
func (p *Peer) initiateQuickMode(ctx context.Context) error {
	neg, err := p.mgr.NewNegotiation(p.sa, ike.ExchangeQuickMode, ike.StateStartQMI, quickModeMessageID)
	if err != nil {
		return err
	}
	return p.mgr.Initiate(ctx, neg)
}

// receive dispatches a packet from the wire. The responder's first phase-1
// packet creates its SA.
func (p *Peer) receive(ctx context.Context, pkt *ike.Packet) error {
	if p.sa == nil && pkt.Header.MessageID == 0 {
		neg, err := p.mgr.Accept(ctx, pkt, p.cookie, p.opts.Hash)
		if neg != nil {
			p.sa = neg.SA()
		}
		return err
	}

	err := p.mgr.Route(ctx, pkt)
	if errors.Is(err, ike.ErrNegotiationBusy) {
		p.pair.transcript.add(Entry{
			Kind:      EntryDropped,
			Peer:      p.name,
			Exchange:  pkt.Header.Exchange,
			MessageID: pkt.Header.MessageID,
			Payloads:  payloadTypes(pkt),
		})
		return nil
	}
	return err
}

func (p *Peer) queueLookup(neg *ike.Negotiation) {
	p.lookups = append(p.lookups, neg)
}

// answerLookup answers the oldest pending pre-shared key lookup and
// resumes its negotiation. It reports false when nothing was pending.
func (p *Peer) answerLookup(ctx context.Context) (bool, error) {
	if len(p.lookups) == 0 {
		return false, nil
	}
	neg := p.lookups[0]
	p.lookups = p.lookups[1:]

	neg.Values[ValuePSK] = bytes.Clone(p.opts.PreSharedKey)
	p.pair.transcript.add(Entry{
		Kind:      EntryLookup,
		Peer:      p.name,
		Exchange:  neg.Exchange,
		MessageID: neg.MessageID,
		State:     neg.State(),
	})
	return true, p.mgr.Resume(ctx, neg)
}

// finish resumes every negotiation waiting for done. No outbound packet
// is built; the done steps report CONNECTED.
func (p *Peer) finish(ctx context.Context) error {
	for _, neg := range p.mgr.Negotiations() {
		if !neg.HasLock(ike.LockWaitingForDone) {
			continue
		}
		if err := p.mgr.Resume(ctx, neg); err != nil {
			return fmt.Errorf("%s: finish %s: %w", p.name, neg.Exchange, err)
		}
	}
	return nil
}

func payloadTypes(pkt *ike.Packet) []ike.PayloadType {
	types := make([]ike.PayloadType, len(pkt.Payloads))
	for i, pl := range pkt.Payloads {
		types[i] = pl.Type
	}
	return types
}

// -------------------------------------------------------------------------
// Pair
// -------------------------------------------------------------------------

// delivery is a packet in flight.
type delivery struct {
	to  *Peer
	pkt *ike.Packet
}

// Pair is an initiator and a responder connected by an in-memory wire.
// A Pair runs once and is not safe for concurrent use; independent pairs
// may run concurrently.
type Pair struct {
	Initiator *Peer
	Responder *Peer

	opts       Options
	wire       []delivery
	transcript Transcript
	logger     *slog.Logger
}

// NewPair builds both peers, each with its own engine, processor and
// manager over the default transition table. mr may be nil; a nil logger
// selects slog.Default().
func NewPair(opts Options, logger *slog.Logger, mr ike.MetricsReporter) (*Pair, error) {
	if opts.Exchange != ike.ExchangeIdentityProtection && opts.Exchange != ike.ExchangeAggressive {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedExchange, opts.Exchange)
	}
	if opts.Auth == ike.AuthMethodUnknown {
		return nil, ErrNoAuthMethod
	}
	if len(opts.PreSharedKey) == 0 {
		opts.PreSharedKey = DefaultOptions().PreSharedKey
	}
	if logger == nil {
		logger = slog.Default()
	}

	pr := &Pair{opts: opts, logger: logger.With(slog.String("component", "ikesim"))}

	var err error
	if pr.Initiator, err = pr.newPeer(PeerInitiator, initiatorAddr, responderAddr, mr); err != nil {
		return nil, err
	}
	if pr.Responder, err = pr.newPeer(PeerResponder, responderAddr, initiatorAddr, mr); err != nil {
		return nil, err
	}
	return pr, nil
}

func (pr *Pair) newPeer(name string, local, remote netip.AddrPort, mr ike.MetricsReporter) (*Peer, error) {
	cookie, err := ike.NewInitiatorCookie()
	if err != nil {
		return nil, err
	}
	p := &Peer{
		name:   name,
		opts:   pr.opts,
		local:  local,
		remote: remote,
		cookie: cookie,
		pair:   pr,
	}

	logger := pr.logger.With(slog.String("peer", name))
	engine, err := ike.NewEngine(ike.DefaultTable(), p.steps(), logger,
		ike.WithMetrics(mr),
		ike.WithMaxRestarts(pr.opts.MaxRestarts),
		ike.WithAllocator(ike.NewPoolAllocator(pr.opts.PayloadCapacity, pr.opts.AuxCapacity)),
	)
	if err != nil {
		return nil, fmt.Errorf("%s engine: %w", name, err)
	}
	p.mgr = ike.NewManager(ike.NewProcessor(engine, p, logger), logger, ike.WithManagerMetrics(mr))
	return p, nil
}

func (pr *Pair) other(p *Peer) *Peer {
	if p == pr.Initiator {
		return pr.Responder
	}
	return pr.Initiator
}

// Transcript returns the record of the run so far.
func (pr *Pair) Transcript() *Transcript { return &pr.transcript }

// Close deletes both peers' SAs, aborting whatever they still hold. The
// pair's negotiations leave the metrics gauge.
func (pr *Pair) Close() {
	for _, p := range []*Peer{pr.Initiator, pr.Responder} {
		if p.sa != nil {
			p.mgr.DeleteSA(p.sa)
		}
		p.lookups = nil
	}
	pr.wire = nil
}

// Run negotiates phase 1, then quick mode if enabled, and completes every
// negotiation still waiting for done. It fails if a dispatch fails or a
// peer does not report CONNECTED for each of its negotiations.
func (pr *Pair) Run(ctx context.Context) (*Transcript, error) {
	pr.logger.DebugContext(ctx, "simulation starting",
		slog.String("exchange", pr.opts.Exchange.String()),
		slog.String("auth", pr.opts.Auth.String()),
		slog.Bool("suspend_psk", pr.opts.SuspendPSK),
		slog.Bool("quick_mode", pr.opts.QuickMode),
	)

	if err := pr.Initiator.initiate(ctx); err != nil {
		return &pr.transcript, fmt.Errorf("initiate phase 1: %w", err)
	}
	if err := pr.settle(ctx); err != nil {
		return &pr.transcript, err
	}

	want := 1
	if pr.opts.QuickMode {
		if err := pr.Initiator.initiateQuickMode(ctx); err != nil {
			return &pr.transcript, fmt.Errorf("initiate quick mode: %w", err)
		}
		if err := pr.settle(ctx); err != nil {
			return &pr.transcript, err
		}
		want++
	}

	for _, p := range []*Peer{pr.Initiator, pr.Responder} {
		if err := p.finish(ctx); err != nil {
			return &pr.transcript, err
		}
	}

	for _, p := range []*Peer{pr.Initiator, pr.Responder} {
		got := 0
		for _, code := range pr.transcript.Notifies(p.name) {
			if code == ike.NotifyConnected {
				got++
			}
		}
		if got != want {
			return &pr.transcript, fmt.Errorf("%w: %s reported %d of %d", ErrNotConnected, p.name, got, want)
		}
	}

	pr.logger.DebugContext(ctx, "simulation complete",
		slog.Int("packets", pr.transcript.Count(EntryPacket)),
		slog.Int("lookups", pr.transcript.Count(EntryLookup)),
	)
	return &pr.transcript, nil
}

// settle delivers packets in flight and answers pending lookups until the
// pair goes quiet.
func (pr *Pair) settle(ctx context.Context) error {
	for range maxEvents {
		if err := ctx.Err(); err != nil {
			return err
		}

		if len(pr.wire) > 0 {
			d := pr.wire[0]
			pr.wire = pr.wire[1:]
			if err := d.to.receive(ctx, d.pkt); err != nil {
				return fmt.Errorf("%s: %w", d.to.name, err)
			}
			continue
		}

		answered := false
		for _, p := range []*Peer{pr.Initiator, pr.Responder} {
			ok, err := p.answerLookup(ctx)
			if err != nil {
				return fmt.Errorf("%s: resume after lookup: %w", p.name, err)
			}
			answered = answered || ok
		}
		if !answered {
			return nil
		}
	}
	return ErrStalled
}
