package ikesim

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"net/netip"

	"github.com/dantte-lp/goike/internal/ike"
)

// Negotiation.Values keys written by the reference steps.
const (
	// ValuePSK holds the pre-shared key once the lookup has answered.
	ValuePSK = "psk"

	// ValueNATDetected is set when no received NAT-D hash matches the
	// local address.
	ValueNATDetected = "nat-detected"

	// ValueNATDChecked is set once NAT-D payloads have been verified.
	ValueNATDChecked = "natd-checked"
)

// vendorID is the placeholder VID payload body.
//
//nolint:gochecknoglobals // constant payload body.
var vendorID = []byte("goike-sim")

// steps returns the reference step registry for p. Every step the default
// table names is present; steps without an observable effect succeed.
func (p *Peer) steps() ike.Steps {
	s := make(ike.Steps, len(ike.AllSteps()))
	for _, id := range ike.AllSteps() {
		s[id] = pass
	}

	return s.With(ike.Steps{
		// Input.
		ike.StepInSAProposal: readSA,
		ike.StepInSAValue:    readSA,
		ike.StepInRetryNow:   retryNow,
		ike.StepInNATD:       p.checkNATD,

		// Phase 1 output.
		ike.StepOutSAProposal:      p.addSA(func(*ike.Negotiation) ike.AuthMethod { return p.opts.Auth }),
		ike.StepOutSAValues:        p.addSA(func(neg *ike.Negotiation) ike.AuthMethod { return neg.AuthMethod }),
		ike.StepOutKE:              add(ike.PayloadKE),
		ike.StepOutNonce:           add(ike.PayloadNonce),
		ike.StepOutID:              add(ike.PayloadID),
		ike.StepOutVIDs:            addData(ike.PayloadVID, vendorID),
		ike.StepOutCerts:           unlessAuth(ike.AuthMethodPreSharedKey, add(ike.PayloadCert)),
		ike.StepOutCR:              onlyAuth(ike.AuthMethodSignatures, add(ike.PayloadCR)),
		ike.StepOutHashKey:         onlyAuth(ike.AuthMethodPublicKeyEncryption, add(ike.PayloadHash)),
		ike.StepOutSigOrHash:       p.sigOrHash,
		ike.StepOutSig:             add(ike.PayloadSig),
		ike.StepOutHash:            p.withKey(add(ike.PayloadHash)),
		ike.StepOutGetPreSharedKey: p.withKey(pass),
		ike.StepOutCalcSKEYID:      p.withKey(pass),
		ike.StepOutNATD:            p.addNATD,
		ike.StepOutWaitDone:        waitDone(true),
		ike.StepOutDone:            done,

		// Quick mode, new group mode and configuration mode.
		ike.StepOutQMHash1:       add(ike.PayloadHash),
		ike.StepOutQMHash2:       add(ike.PayloadHash),
		ike.StepOutQMHash3:       add(ike.PayloadHash),
		ike.StepOutQMSAProposals: add(ike.PayloadSA),
		ike.StepOutQMSAValues:    add(ike.PayloadSA),
		ike.StepOutQMNonce:       add(ike.PayloadNonce),
		ike.StepOutQMWaitDone:    waitDone(false),
		ike.StepOutQMDone:        done,
		ike.StepOutGenHash:       add(ike.PayloadHash),
		ike.StepOutNGMSAProposal: add(ike.PayloadSA),
		ike.StepOutNGMSAValues:   add(ike.PayloadSA),
		ike.StepOutNGMWaitDone:   waitDone(false),
		ike.StepOutNGMDone:       done,
		ike.StepOutCfgAttr:       add(ike.PayloadAttr),
		ike.StepOutCfgWaitDone:   waitDone(false),
		ike.StepOutCfgDone:       done,
	})
}

func pass(context.Context, *ike.Packet, *ike.Packet, *ike.SA, *ike.Negotiation, *ike.TransitionRule) ike.StepResult {
	return ike.Success
}

func retryNow(context.Context, *ike.Packet, *ike.Packet, *ike.SA, *ike.Negotiation, *ike.TransitionRule) ike.StepResult {
	return ike.RetryNow
}

// -------------------------------------------------------------------------
// Payload Builders
// -------------------------------------------------------------------------

func add(pt ike.PayloadType) ike.StepFunc {
	return addData(pt, []byte{byte(pt)})
}

// addData appends a payload with a copy of data. Without an outbound packet
// it does nothing.
func addData(pt ike.PayloadType, data []byte) ike.StepFunc {
	return func(_ context.Context, _, out *ike.Packet, _ *ike.SA, _ *ike.Negotiation, _ *ike.TransitionRule) ike.StepResult {
		if out == nil {
			return ike.Success
		}
		return appendPayload(out, pt, bytes.Clone(data))
	}
}

func appendPayload(out *ike.Packet, pt ike.PayloadType, data []byte) ike.StepResult {
	buf, err := out.AddAux(data)
	if err != nil {
		return ike.Failure(ike.NotifyOutOfMemory)
	}
	if err := out.AddPayload(ike.Payload{Type: pt, Data: buf}); err != nil {
		return ike.Failure(ike.NotifyOutOfMemory)
	}
	return ike.Success
}

func onlyAuth(a ike.AuthMethod, step ike.StepFunc) ike.StepFunc {
	return func(ctx context.Context, in, out *ike.Packet, sa *ike.SA, neg *ike.Negotiation, rule *ike.TransitionRule) ike.StepResult {
		if neg.AuthMethod != a {
			return ike.Success
		}
		return step(ctx, in, out, sa, neg, rule)
	}
}

func unlessAuth(a ike.AuthMethod, step ike.StepFunc) ike.StepFunc {
	return func(ctx context.Context, in, out *ike.Packet, sa *ike.SA, neg *ike.Negotiation, rule *ike.TransitionRule) ike.StepResult {
		if neg.AuthMethod == a {
			return ike.Success
		}
		return step(ctx, in, out, sa, neg, rule)
	}
}

// -------------------------------------------------------------------------
// Proposal
// -------------------------------------------------------------------------

// addSA returns a step that appends an SA payload announcing the auth
// method chosen by method. The body is the RFC 2409 attribute value.
func (p *Peer) addSA(method func(*ike.Negotiation) ike.AuthMethod) ike.StepFunc {
	return func(_ context.Context, _, out *ike.Packet, _ *ike.SA, neg *ike.Negotiation, _ *ike.TransitionRule) ike.StepResult {
		if out == nil {
			return ike.Success
		}
		return appendPayload(out, ike.PayloadSA, binary.BigEndian.AppendUint16(nil, method(neg).Wire()))
	}
}

// readSA reads the peer's SA payload and sets the negotiation's auth
// method.
func readSA(_ context.Context, in, _ *ike.Packet, _ *ike.SA, neg *ike.Negotiation, _ *ike.TransitionRule) ike.StepResult {
	if in == nil {
		return ike.Failure(ike.NotifyPayloadMalformed)
	}
	pl, ok := in.First(ike.PayloadSA)
	if !ok || len(pl.Data) < 2 {
		return ike.Failure(ike.NotifyBadProposalSyntax)
	}
	a, ok := ike.AuthMethodFromWire(binary.BigEndian.Uint16(pl.Data))
	if !ok {
		return ike.Failure(ike.NotifyNoProposalChosen)
	}
	neg.AuthMethod = a
	return ike.Success
}

// -------------------------------------------------------------------------
// Authentication
// -------------------------------------------------------------------------

// withKey runs step once the pre-shared key is known. For other auth
// methods step runs directly.
//
// With SuspendPSK the first lookup of each negotiation suspends and is
// queued on the peer; Peer.answerLookup stores the key and resumes.
func (p *Peer) withKey(step ike.StepFunc) ike.StepFunc {
	return func(ctx context.Context, in, out *ike.Packet, sa *ike.SA, neg *ike.Negotiation, rule *ike.TransitionRule) ike.StepResult {
		if neg.AuthMethod != ike.AuthMethodPreSharedKey || neg.Values[ValuePSK] != nil {
			return step(ctx, in, out, sa, neg, rule)
		}
		if p.opts.SuspendPSK {
			p.queueLookup(neg)
			return ike.RetryLater
		}
		neg.Values[ValuePSK] = bytes.Clone(p.opts.PreSharedKey)
		return step(ctx, in, out, sa, neg, rule)
	}
}

// sigOrHash appends SIG for signature authentication and HASH otherwise.
func (p *Peer) sigOrHash(ctx context.Context, in, out *ike.Packet, sa *ike.SA, neg *ike.Negotiation, rule *ike.TransitionRule) ike.StepResult {
	if neg.AuthMethod == ike.AuthMethodSignatures {
		return add(ike.PayloadSig)(ctx, in, out, sa, neg, rule)
	}
	return p.withKey(add(ike.PayloadHash))(ctx, in, out, sa, neg, rule)
}

// -------------------------------------------------------------------------
// NAT Detection — RFC 3947 Section 3
// -------------------------------------------------------------------------

// addNATD appends the NAT-D payloads for the remote and the local address.
// NAT-D travels with the key exchange, so packets without KE are left
// alone.
func (p *Peer) addNATD(_ context.Context, _, out *ike.Packet, sa *ike.SA, _ *ike.Negotiation, _ *ike.TransitionRule) ike.StepResult {
	if out == nil {
		return ike.Success
	}
	if _, ok := out.First(ike.PayloadKE); !ok {
		return ike.Success
	}
	for _, addr := range []netip.AddrPort{p.remote, p.local} {
		h, err := ike.NATDHash(sa, addr)
		if err != nil {
			return ike.Failure(notifyOf(err))
		}
		if r := appendPayload(out, ike.PayloadNATD, h); r.Outcome != ike.OutcomeSuccess {
			return r
		}
	}
	return ike.Success
}

// checkNATD compares the received NAT-D hashes with the hash of the local
// address. A mismatch records a NAT between the peers; it is not an error.
func (p *Peer) checkNATD(_ context.Context, in, _ *ike.Packet, sa *ike.SA, neg *ike.Negotiation, _ *ike.TransitionRule) ike.StepResult {
	if in == nil {
		return ike.Success
	}
	var received [][]byte
	for _, pl := range in.Payloads {
		if pl.Type == ike.PayloadNATD {
			received = append(received, pl.Data)
		}
	}
	if len(received) == 0 {
		return ike.Success
	}
	want, err := ike.NATDHash(sa, p.local)
	if err != nil {
		return ike.Failure(notifyOf(err))
	}
	neg.Values[ValueNATDChecked] = []byte{1}
	for _, h := range received {
		if bytes.Equal(h, want) {
			return ike.Success
		}
	}
	neg.Values[ValueNATDetected] = []byte{1}
	return ike.Success
}

// -------------------------------------------------------------------------
// Completion
// -------------------------------------------------------------------------

// waitDone marks the negotiation as waiting for done. For phase 1 the SA
// becomes usable at this point.
func waitDone(phase1 bool) ike.StepFunc {
	return func(_ context.Context, _, _ *ike.Packet, sa *ike.SA, neg *ike.Negotiation, _ *ike.TransitionRule) ike.StepResult {
		neg.SetLock(ike.LockWaitingForDone)
		if phase1 {
			sa.MarkPhase1Done()
		}
		return ike.Success
	}
}

func done(_ context.Context, _, _ *ike.Packet, _ *ike.SA, neg *ike.Negotiation, _ *ike.TransitionRule) ike.StepResult {
	neg.ClearLock(ike.LockWaitingForDone)
	return ike.Connected
}

// notifyOf recovers the notify code carried by err.
func notifyOf(err error) ike.NotifyCode {
	var code ike.NotifyCode
	if errors.As(err, &code) {
		return code
	}
	return ike.NotifyAuthenticationFailed
}
