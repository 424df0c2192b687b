package ike

import "fmt"

// Phase identifies the half of a rule a cursor points into.
type Phase uint8

const (
	PhaseNotStarted Phase = iota
	PhaseInput
	PhaseInputDone
	PhaseOutput
	PhaseOutputDone
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseNotStarted:
		return "NotStarted"
	case PhaseInput:
		return "Input"
	case PhaseInputDone:
		return "InputDone"
	case PhaseOutput:
		return "Output"
	case PhaseOutputDone:
		return "OutputDone"
	default:
		return fmt.Sprintf(unknownFmt, p)
	}
}

// Cursor is the resumption point inside the matched rule's step lists.
// The zero value is NotStarted. Index is meaningful only in the Input and
// Output phases.
type Cursor struct {
	phase Phase
	index int
}

// NotStarted returns the cursor of a negotiation that has not begun the
// current rule.
func NotStarted() Cursor { return Cursor{} }

// InputAt returns a cursor at input step i.
func InputAt(i int) Cursor { return Cursor{phase: PhaseInput, index: i} }

// InputDone returns the cursor after the last input step.
func InputDone() Cursor { return Cursor{phase: PhaseInputDone} }

// OutputAt returns a cursor at output step i.
func OutputAt(i int) Cursor { return Cursor{phase: PhaseOutput, index: i} }

// OutputDone returns the cursor after the last output step.
func OutputDone() Cursor { return Cursor{phase: PhaseOutputDone} }

// Phase returns the cursor's phase.
func (c Cursor) Phase() Phase { return c.phase }

// Index returns the step index for Input and Output cursors, 0 otherwise.
func (c Cursor) Index() int { return c.index }

// InOutput reports whether the cursor is past the input phase.
func (c Cursor) InOutput() bool {
	return c.phase >= PhaseInputDone
}

// Before reports whether c precedes d in execution order.
func (c Cursor) Before(d Cursor) bool {
	if c.phase != d.phase {
		return c.phase < d.phase
	}
	return c.index < d.index
}

// String formats the cursor as Phase or Phase(i).
func (c Cursor) String() string {
	switch c.phase {
	case PhaseInput, PhaseOutput:
		return fmt.Sprintf("%s(%d)", c.phase, c.index)
	default:
		return c.phase.String()
	}
}
