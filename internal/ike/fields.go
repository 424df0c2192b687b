package ike

import "strings"

// FieldMask is a set of payload kinds. The engine computes one for each
// inbound packet and compares it against a rule's mandatory and optional
// field sets.
type FieldMask uint16

// Payload kinds tracked by FieldMask.
const (
	FieldSA FieldMask = 1 << iota
	FieldKE
	FieldID
	FieldCert
	FieldCR
	FieldHash
	FieldSig
	FieldNonce
	FieldN
	FieldD
	FieldVID
	FieldAttr
	FieldNATD
	FieldNATOA
)

// FieldNone is the empty mask.
const FieldNone FieldMask = 0

// fieldOrder fixes the order of names in FieldMask.String.
//
//nolint:gochecknoglobals // ordered name table.
var fieldOrder = []struct {
	bit  FieldMask
	name string
}{
	{FieldSA, "SA"},
	{FieldKE, "KE"},
	{FieldID, "ID"},
	{FieldCert, "CERT"},
	{FieldCR, "CR"},
	{FieldHash, "HASH"},
	{FieldSig, "SIG"},
	{FieldNonce, "NONCE"},
	{FieldN, "N"},
	{FieldD, "D"},
	{FieldVID, "VID"},
	{FieldAttr, "ATTR"},
	{FieldNATD, "NATD"},
	{FieldNATOA, "NATOA"},
}

// payloadFields maps each tracked payload type to its bit. Payload types
// not listed (proposal, transform, private) do not affect matching.
//
//nolint:gochecknoglobals // lookup table.
var payloadFields = map[PayloadType]FieldMask{
	PayloadSA:     FieldSA,
	PayloadKE:     FieldKE,
	PayloadID:     FieldID,
	PayloadCert:   FieldCert,
	PayloadCR:     FieldCR,
	PayloadHash:   FieldHash,
	PayloadSig:    FieldSig,
	PayloadNonce:  FieldNonce,
	PayloadNotify: FieldN,
	PayloadDelete: FieldD,
	PayloadVID:    FieldVID,
	PayloadAttr:   FieldAttr,
	PayloadNATD:   FieldNATD,
	PayloadNATOA:  FieldNATOA,
}

// FieldsPresent returns the mask of payload kinds present in pkt. A nil
// packet yields FieldNone.
func FieldsPresent(pkt *Packet) FieldMask {
	if pkt == nil {
		return FieldNone
	}
	var f FieldMask
	for _, pl := range pkt.Payloads {
		f |= payloadFields[pl.Type]
	}
	return f
}

// Has reports whether every bit of m is set in f.
func (f FieldMask) Has(m FieldMask) bool {
	return f&m == m
}

// String lists the names of the set bits separated by spaces, "-" for the
// empty mask.
func (f FieldMask) String() string {
	if f == FieldNone {
		return "-"
	}
	names := make([]string, 0, len(fieldOrder))
	for _, e := range fieldOrder {
		if f&e.bit != 0 {
			names = append(names, e.name)
		}
	}
	return strings.Join(names, " ")
}

// ParseFieldMask parses a list of field names as produced by String. Names
// may be separated by spaces, commas or '|'. "-" and "" yield FieldNone.
func ParseFieldMask(s string) (FieldMask, error) {
	var f FieldMask
	for _, name := range strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ',' || r == '|'
	}) {
		if name == "-" {
			continue
		}
		bit, ok := fieldByName(strings.ToUpper(name))
		if !ok {
			return FieldNone, &UnknownFieldError{Name: name}
		}
		f |= bit
	}
	return f, nil
}

func fieldByName(name string) (FieldMask, bool) {
	for _, e := range fieldOrder {
		if e.name == name {
			return e.bit, true
		}
	}
	return FieldNone, false
}

// UnknownFieldError reports a field name ParseFieldMask does not recognize.
type UnknownFieldError struct {
	Name string
}

func (e *UnknownFieldError) Error() string {
	return "unknown payload field " + `"` + e.Name + `"`
}

// Unwrap makes UnknownFieldError match ErrUnknownField.
func (e *UnknownFieldError) Unwrap() error {
	return ErrUnknownField
}
