package ike

import "strings"

// -------------------------------------------------------------------------
// Wildcards
// -------------------------------------------------------------------------

// StateMatch is a rule's state requirement: any state, or one state.
type StateMatch struct {
	any   bool
	state State
}

// AnyState matches every state.
func AnyState() StateMatch { return StateMatch{any: true} }

// InState matches exactly s.
func InState(s State) StateMatch { return StateMatch{state: s} }

// Matches reports whether s satisfies the requirement.
func (m StateMatch) Matches(s State) bool { return m.any || m.state == s }

// IsAny reports whether m is the wildcard.
func (m StateMatch) IsAny() bool { return m.any }

// State returns the required state. Meaningless when IsAny is true.
func (m StateMatch) State() State { return m.state }

func (m StateMatch) String() string {
	if m.any {
		return "ANY"
	}
	return m.state.String()
}

// ExchangeMatch is a rule's exchange requirement: any exchange, or one.
type ExchangeMatch struct {
	any      bool
	exchange ExchangeType
}

// AnyExchange matches every exchange type.
func AnyExchange() ExchangeMatch { return ExchangeMatch{any: true} }

// OnExchange matches exactly x.
func OnExchange(x ExchangeType) ExchangeMatch { return ExchangeMatch{exchange: x} }

// Matches reports whether x satisfies the requirement.
func (m ExchangeMatch) Matches(x ExchangeType) bool { return m.any || m.exchange == x }

// IsAny reports whether m is the wildcard.
func (m ExchangeMatch) IsAny() bool { return m.any }

func (m ExchangeMatch) String() string {
	if m.any {
		return "ANY"
	}
	return m.exchange.String()
}

// authMatchKind distinguishes the three forms of AuthMatch.
type authMatchKind uint8

const (
	authAny authMatchKind = iota
	authPhase1
	authMethod
)

// AuthMatch is a rule's authentication requirement: any method, a
// completed phase 1 on the negotiation's SA, or one method class.
type AuthMatch struct {
	kind   authMatchKind
	method AuthMethod
}

// AnyAuth matches every authentication method, including unknown.
func AnyAuth() AuthMatch { return AuthMatch{kind: authAny} }

// Phase1Done matches when the negotiation's SA has completed phase 1.
func Phase1Done() AuthMatch { return AuthMatch{kind: authPhase1} }

// WithAuth matches negotiations whose auth method is exactly a.
func WithAuth(a AuthMethod) AuthMatch { return AuthMatch{kind: authMethod, method: a} }

// Matches reports whether a negotiation with auth method a, on an SA whose
// phase 1 is (or is not) done, satisfies the requirement.
func (m AuthMatch) Matches(a AuthMethod, phase1Done bool) bool {
	switch m.kind {
	case authAny:
		return true
	case authPhase1:
		return phase1Done
	default:
		return m.method == a
	}
}

func (m AuthMatch) String() string {
	switch m.kind {
	case authAny:
		return "ANY"
	case authPhase1:
		return "PHASE_1"
	default:
		return m.method.String()
	}
}

// FieldSpec is a rule's mandatory or optional field set: any fields, or an
// explicit mask.
type FieldSpec struct {
	any  bool
	mask FieldMask
}

// AnyFields is the field wildcard.
func AnyFields() FieldSpec { return FieldSpec{any: true} }

// Fields is an explicit field set.
func Fields(m FieldMask) FieldSpec { return FieldSpec{mask: m} }

// IsAny reports whether f is the wildcard.
func (f FieldSpec) IsAny() bool { return f.any }

// Mask returns the explicit mask. Meaningless when IsAny is true.
func (f FieldSpec) Mask() FieldMask { return f.mask }

// allowed returns the bits a spec permits; the wildcard permits all.
func (f FieldSpec) allowed() FieldMask {
	if f.any {
		return ^FieldNone
	}
	return f.mask
}

func (f FieldSpec) String() string {
	if f.any {
		return "ANY"
	}
	return f.mask.String()
}

// -------------------------------------------------------------------------
// Transition Rules
// -------------------------------------------------------------------------

// TransitionRule is one row of the transition table.
type TransitionRule struct {
	State     StateMatch
	NextState State
	Auth      AuthMatch
	Exchange  ExchangeMatch
	Mandatory FieldSpec
	Optional  FieldSpec
	Input     []StepID
	Output    []StepID
}

// Matches reports whether the rule applies to neg with inbound field mask f.
//
// All mandatory fields must be present, and no field outside the union of
// mandatory and optional may appear. A wildcard on either side lifts the
// corresponding check.
func (r *TransitionRule) Matches(neg *Negotiation, f FieldMask) bool {
	if !r.State.Matches(neg.State()) {
		return false
	}
	if !r.Exchange.Matches(neg.Exchange) {
		return false
	}
	if !r.Auth.Matches(neg.AuthMethod, neg.SA().Phase1Done()) {
		return false
	}
	if !r.Mandatory.IsAny() && !f.Has(r.Mandatory.Mask()) {
		return false
	}
	if !r.Optional.IsAny() && f&^(r.Mandatory.allowed()|r.Optional.allowed()) != 0 {
		return false
	}
	return true
}

// String formats the rule on one line for logs and the CLI.
func (r *TransitionRule) String() string {
	var b strings.Builder
	b.WriteString(r.State.String())
	b.WriteString(" -> ")
	b.WriteString(r.NextState.String())
	b.WriteString(" [")
	b.WriteString(r.Exchange.String())
	b.WriteString(", ")
	b.WriteString(r.Auth.String())
	b.WriteString(", mand=")
	b.WriteString(r.Mandatory.String())
	b.WriteString(", opt=")
	b.WriteString(r.Optional.String())
	b.WriteString("]")
	return b.String()
}

// Table is an ordered list of transition rules. The first matching rule
// wins, so specific rules must precede general ones.
type Table []TransitionRule

// Match returns the first rule that applies to neg with field mask f and
// its index, or (nil, -1).
func (t Table) Match(neg *Negotiation, f FieldMask) (*TransitionRule, int) {
	for i := range t {
		if t[i].Matches(neg, f) {
			return &t[i], i
		}
	}
	return nil, -1
}
