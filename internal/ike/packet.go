package ike

import (
	"errors"
	"sync"
)

// -------------------------------------------------------------------------
// Payload Types — RFC 2408 Section 3.1, RFC 3947
// -------------------------------------------------------------------------

// PayloadType is the ISAKMP Next Payload type of a payload.
type PayloadType uint8

const (
	PayloadSA        PayloadType = 1
	PayloadProposal  PayloadType = 2
	PayloadTransform PayloadType = 3
	PayloadKE        PayloadType = 4
	PayloadID        PayloadType = 5
	PayloadCert      PayloadType = 6
	PayloadCR        PayloadType = 7
	PayloadHash      PayloadType = 8
	PayloadSig       PayloadType = 9
	PayloadNonce     PayloadType = 10
	PayloadNotify    PayloadType = 11
	PayloadDelete    PayloadType = 12
	PayloadVID       PayloadType = 13
	PayloadAttr      PayloadType = 14

	// PayloadNATD and PayloadNATOA are the RFC 3947 NAT-Traversal payloads.
	PayloadNATD  PayloadType = 20
	PayloadNATOA PayloadType = 21

	// PayloadPrivate is the first private-use payload type.
	PayloadPrivate PayloadType = 128
)

// String returns the short payload name.
func (p PayloadType) String() string {
	switch p {
	case PayloadSA:
		return "SA"
	case PayloadProposal:
		return "P"
	case PayloadTransform:
		return "T"
	case PayloadKE:
		return "KE"
	case PayloadID:
		return "ID"
	case PayloadCert:
		return "CERT"
	case PayloadCR:
		return "CR"
	case PayloadHash:
		return "HASH"
	case PayloadSig:
		return "SIG"
	case PayloadNonce:
		return "NONCE"
	case PayloadNotify:
		return "N"
	case PayloadDelete:
		return "D"
	case PayloadVID:
		return "VID"
	case PayloadAttr:
		return "ATTR"
	case PayloadNATD:
		return "NAT-D"
	case PayloadNATOA:
		return "NAT-OA"
	default:
		if p >= PayloadPrivate {
			return "PRIVATE"
		}
		return "UNKNOWN"
	}
}

// Payload is one decoded payload. The engine only looks at Type; Data is
// owned by the codec and the steps.
type Payload struct {
	Type PayloadType
	Data []byte
}

// -------------------------------------------------------------------------
// Packet
// -------------------------------------------------------------------------

// CookieLength is the ISAKMP cookie length in bytes (RFC 2408 Section 3.1).
const CookieLength = 8

// Cookie is an ISAKMP initiator or responder cookie.
type Cookie [CookieLength]byte

// Cookies is the cookie pair that identifies an ISAKMP SA.
type Cookies struct {
	Initiator Cookie
	Responder Cookie
}

// Header is the ISAKMP fixed header minus lengths and next-payload.
type Header struct {
	Cookies      Cookies
	MajorVersion uint8
	MinorVersion uint8
	Exchange     ExchangeType
	Flags        uint8
	MessageID    uint32
}

// ISAKMP version implemented by this engine (RFC 2408 Section 3.1).
const (
	MajorVersion uint8 = 1
	MinorVersion uint8 = 0
)

// Outbound packet sizing. Payload and auxiliary buffer capacity are reserved
// up front when an outbound packet is allocated.
const (
	// DefaultPayloadCapacity bounds the payloads one outbound packet carries.
	DefaultPayloadCapacity = 32

	// DefaultAuxCapacity bounds the auxiliary backing buffers (encoded
	// payload bodies kept alive until the packet is encoded).
	DefaultAuxCapacity = 16
)

// Packet errors.
var (
	// ErrPayloadCapacity indicates an outbound packet is full.
	ErrPayloadCapacity = errors.New("outbound packet payload capacity exceeded")

	// ErrAuxCapacity indicates the auxiliary buffer list is full.
	ErrAuxCapacity = errors.New("outbound packet auxiliary buffer capacity exceeded")
)

// Packet is a decoded inbound packet or an outbound packet under
// construction.
type Packet struct {
	Header   Header
	Payloads []Payload

	// aux holds backing buffers for outbound payloads.
	aux [][]byte

	// payloadCap and auxCap are fixed at allocation for outbound packets.
	// Zero means unbounded (inbound packets).
	payloadCap int
	auxCap     int
}

// NewPacket returns an inbound-style packet with the given header and
// payloads. Used by decoders and tests.
func NewPacket(h Header, payloads ...Payload) *Packet {
	return &Packet{Header: h, Payloads: payloads}
}

// AddPayload appends a payload to an outbound packet.
func (p *Packet) AddPayload(pl Payload) error {
	if p.payloadCap > 0 && len(p.Payloads) >= p.payloadCap {
		return ErrPayloadCapacity
	}
	p.Payloads = append(p.Payloads, pl)
	return nil
}

// AddAux records a backing buffer that must stay alive until the packet is
// encoded and returns it.
func (p *Packet) AddAux(buf []byte) ([]byte, error) {
	if p.auxCap > 0 && len(p.aux) >= p.auxCap {
		return nil, ErrAuxCapacity
	}
	p.aux = append(p.aux, buf)
	return buf, nil
}

// NumPayloads returns the number of payloads in the packet.
func (p *Packet) NumPayloads() int {
	return len(p.Payloads)
}

// NumAux returns the number of auxiliary buffers held by the packet.
func (p *Packet) NumAux() int {
	return len(p.aux)
}

// PayloadCapacity returns the payload capacity reserved at allocation, or 0
// for inbound packets.
func (p *Packet) PayloadCapacity() int {
	return p.payloadCap
}

// First returns the first payload of type t, if any.
func (p *Packet) First(t PayloadType) (Payload, bool) {
	for _, pl := range p.Payloads {
		if pl.Type == t {
			return pl, true
		}
	}
	return Payload{}, false
}

// -------------------------------------------------------------------------
// Allocator
// -------------------------------------------------------------------------

// Allocator provides outbound packets to the engine and takes back the ones
// the engine discards. An allocation error is reported to the caller as
// NotifyOutOfMemory.
type Allocator interface {
	Allocate(h Header) (*Packet, error)
	Release(p *Packet)
}

// PoolAllocator is the default Allocator. It reuses discarded packets
// through a sync.Pool and pre-sizes payload and auxiliary capacity.
type PoolAllocator struct {
	payloadCap int
	auxCap     int
	pool       sync.Pool
}

// NewPoolAllocator returns a PoolAllocator. Non-positive capacities select
// DefaultPayloadCapacity and DefaultAuxCapacity.
func NewPoolAllocator(payloadCap, auxCap int) *PoolAllocator {
	if payloadCap <= 0 {
		payloadCap = DefaultPayloadCapacity
	}
	if auxCap <= 0 {
		auxCap = DefaultAuxCapacity
	}
	a := &PoolAllocator{payloadCap: payloadCap, auxCap: auxCap}
	a.pool.New = func() any {
		return &Packet{
			Payloads: make([]Payload, 0, payloadCap),
			aux:      make([][]byte, 0, auxCap),
		}
	}
	return a
}

// Allocate returns an empty outbound packet carrying h.
func (a *PoolAllocator) Allocate(h Header) (*Packet, error) {
	p, ok := a.pool.Get().(*Packet)
	if !ok {
		return nil, ErrAllocation
	}
	p.Header = h
	p.payloadCap = a.payloadCap
	p.auxCap = a.auxCap
	return p, nil
}

// Release clears p and returns it to the pool. p must not be used after.
func (a *PoolAllocator) Release(p *Packet) {
	if p == nil {
		return
	}
	clear(p.Payloads)
	p.Payloads = p.Payloads[:0]
	clear(p.aux)
	p.aux = p.aux[:0]
	p.Header = Header{}
	a.pool.Put(p)
}
