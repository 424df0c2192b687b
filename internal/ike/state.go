package ike

import "fmt"

// unknownFmt is the format string for unrecognized enum values.
const unknownFmt = "Unknown(%d)"

// -------------------------------------------------------------------------
// Negotiation States
// -------------------------------------------------------------------------

// State is a negotiation's position in the transition table. Suffix I marks
// the initiator side, R the responder side.
type State uint8

const (
	StateStartSANegotiationI State = iota + 1
	StateStartSANegotiationR

	// Main mode (identity protection).
	StateMMSAI
	StateMMSAR
	StateMMKEI
	StateMMKER
	StateMMFinalI
	StateMMFinalR
	StateMMDoneI

	// Aggressive mode.
	StateAMSAI
	StateAMSAR
	StateAMFinalI
	StateAMDoneR

	// Quick mode.
	StateStartQMI
	StateStartQMR
	StateQMHashSAI
	StateQMHashSAR
	StateQMHashI
	StateQMDoneR

	// New group mode.
	StateStartNGMI
	StateStartNGMR
	StateNGMHashSAI
	StateNGMHashSAR
	StateNGMDoneI

	// Configuration mode.
	StateStartCfgI
	StateStartCfgR
	StateCfgHashAttrI
	StateCfgHashAttrR
	StateCfgDoneI

	// Terminal states.
	StateDone
	StateDeleted
)

//nolint:gochecknoglobals // name table for String().
var stateNames = map[State]string{
	StateStartSANegotiationI: "START_SA_NEGOTIATION_I",
	StateStartSANegotiationR: "START_SA_NEGOTIATION_R",
	StateMMSAI:               "MM_SA_I",
	StateMMSAR:               "MM_SA_R",
	StateMMKEI:               "MM_KE_I",
	StateMMKER:               "MM_KE_R",
	StateMMFinalI:            "MM_FINAL_I",
	StateMMFinalR:            "MM_FINAL_R",
	StateMMDoneI:             "MM_DONE_I",
	StateAMSAI:               "AM_SA_I",
	StateAMSAR:               "AM_SA_R",
	StateAMFinalI:            "AM_FINAL_I",
	StateAMDoneR:             "AM_DONE_R",
	StateStartQMI:            "START_QM_I",
	StateStartQMR:            "START_QM_R",
	StateQMHashSAI:           "QM_HASH_SA_I",
	StateQMHashSAR:           "QM_HASH_SA_R",
	StateQMHashI:             "QM_HASH_I",
	StateQMDoneR:             "QM_DONE_R",
	StateStartNGMI:           "START_NGM_I",
	StateStartNGMR:           "START_NGM_R",
	StateNGMHashSAI:          "NGM_HASH_SA_I",
	StateNGMHashSAR:          "NGM_HASH_SA_R",
	StateNGMDoneI:            "NGM_DONE_I",
	StateStartCfgI:           "START_CFG_I",
	StateStartCfgR:           "START_CFG_R",
	StateCfgHashAttrI:        "CFG_HASH_ATTR_I",
	StateCfgHashAttrR:        "CFG_HASH_ATTR_R",
	StateCfgDoneI:            "CFG_DONE_I",
	StateDone:                "DONE",
	StateDeleted:             "DELETED",
}

// String returns the state name as used in the transition table.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf(unknownFmt, s)
}

// ParseState maps a state name (as returned by String) back to a State.
func ParseState(name string) (State, error) {
	for s, n := range stateNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownState, name)
}

// Terminal reports whether no further transitions are expected from s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateDeleted
}

// -------------------------------------------------------------------------
// Exchange Types — RFC 2408 Section 3.1, RFC 2409
// -------------------------------------------------------------------------

// ExchangeType is the ISAKMP exchange type carried in the packet header.
type ExchangeType uint8

const (
	// ExchangeIdentityProtection is main mode (RFC 2409 Section 5).
	ExchangeIdentityProtection ExchangeType = 2

	// ExchangeAggressive is aggressive mode (RFC 2409 Section 5).
	ExchangeAggressive ExchangeType = 4

	// ExchangeInformational is the informational exchange (RFC 2408 Section 4.8).
	ExchangeInformational ExchangeType = 5

	// ExchangeTransaction is configuration mode
	// (draft-ietf-ipsec-isakmp-mode-cfg).
	ExchangeTransaction ExchangeType = 6

	// ExchangeQuickMode is quick mode (RFC 2409 Section 5.5).
	ExchangeQuickMode ExchangeType = 32

	// ExchangeNewGroupMode is new group mode (RFC 2409 Section 5.6).
	ExchangeNewGroupMode ExchangeType = 33
)

// String returns the short exchange name.
func (x ExchangeType) String() string {
	switch x {
	case ExchangeIdentityProtection:
		return "main"
	case ExchangeAggressive:
		return "aggressive"
	case ExchangeInformational:
		return "info"
	case ExchangeTransaction:
		return "cfg"
	case ExchangeQuickMode:
		return "quick"
	case ExchangeNewGroupMode:
		return "ngm"
	default:
		return fmt.Sprintf(unknownFmt, x)
	}
}

// ParseExchangeType maps a short exchange name back to an ExchangeType.
func ParseExchangeType(name string) (ExchangeType, error) {
	for _, x := range []ExchangeType{
		ExchangeIdentityProtection, ExchangeAggressive, ExchangeInformational,
		ExchangeTransaction, ExchangeQuickMode, ExchangeNewGroupMode,
	} {
		if x.String() == name {
			return x, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownExchange, name)
}

// -------------------------------------------------------------------------
// Authentication Method Classes
// -------------------------------------------------------------------------

// AuthMethod is the class of phase-1 authentication a negotiation uses.
// The wire-level methods of RFC 2409 Appendix A collapse onto three classes
// because the transition table only distinguishes message flows, not
// algorithms.
//
// AuthMethodUnknown is the value before an input step has read the peer's
// proposal. A negotiation in that state only matches rules whose auth
// requirement is a wildcard.
type AuthMethod uint8

const (
	AuthMethodUnknown AuthMethod = iota
	AuthMethodPreSharedKey
	AuthMethodSignatures
	AuthMethodPublicKeyEncryption
)

// String returns the auth method class name.
func (a AuthMethod) String() string {
	switch a {
	case AuthMethodUnknown:
		return "unknown"
	case AuthMethodPreSharedKey:
		return "pre-shared-key"
	case AuthMethodSignatures:
		return "signatures"
	case AuthMethodPublicKeyEncryption:
		return "public-key-encryption"
	default:
		return fmt.Sprintf(unknownFmt, a)
	}
}

// ParseAuthMethod maps an auth method name back to an AuthMethod.
func ParseAuthMethod(name string) (AuthMethod, error) {
	switch name {
	case "unknown", "":
		return AuthMethodUnknown, nil
	case "pre-shared-key", "psk":
		return AuthMethodPreSharedKey, nil
	case "signatures", "sig":
		return AuthMethodSignatures, nil
	case "public-key-encryption", "pke":
		return AuthMethodPublicKeyEncryption, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownAuthMethod, name)
	}
}

// Wire returns the RFC 2409 Appendix A attribute value announcing a: 1 for
// pre-shared key, 3 for RSA signatures, 4 for RSA encryption, 0 otherwise.
func (a AuthMethod) Wire() uint16 {
	switch a {
	case AuthMethodPreSharedKey:
		return 1
	case AuthMethodSignatures:
		return 3
	case AuthMethodPublicKeyEncryption:
		return 4
	default:
		return 0
	}
}

// AuthMethodFromWire maps an RFC 2409 Appendix A authentication method
// attribute value to its class. ok is false for values the engine has no
// message flow for.
func AuthMethodFromWire(v uint16) (AuthMethod, bool) {
	switch v {
	case 1: // pre-shared key
		return AuthMethodPreSharedKey, true
	case 2, 3: // DSS signatures, RSA signatures
		return AuthMethodSignatures, true
	case 4, 5: // encryption with RSA, revised encryption with RSA
		return AuthMethodPublicKeyEncryption, true
	default:
		return AuthMethodUnknown, false
	}
}
