package ike

import "errors"

// Lookup and parse errors.
var (
	// ErrUnknownState indicates a state name that ParseState does not know.
	ErrUnknownState = errors.New("unknown state")

	// ErrUnknownExchange indicates an exchange name ParseExchangeType does
	// not know.
	ErrUnknownExchange = errors.New("unknown exchange type")

	// ErrUnknownAuthMethod indicates an auth method name ParseAuthMethod
	// does not know.
	ErrUnknownAuthMethod = errors.New("unknown auth method")

	// ErrUnknownField indicates a payload field name ParseFieldMask does
	// not know.
	ErrUnknownField = errors.New("unknown payload field")

	// ErrUnknownHash indicates a hash algorithm name ParseHashAlgorithm does
	// not know.
	ErrUnknownHash = errors.New("unknown hash algorithm")
)

// Engine construction and dispatch errors.
var (
	// ErrMissingStep indicates the table names a step with no registered
	// handler.
	ErrMissingStep = errors.New("transition table references unregistered step")

	// ErrEmptyTable indicates an engine was built without rules.
	ErrEmptyTable = errors.New("transition table is empty")

	// ErrInvalidMaxRestarts indicates a negative restart bound.
	ErrInvalidMaxRestarts = errors.New("max restarts must be >= 0")

	// ErrNilNegotiation indicates Dispatch was called without a negotiation.
	ErrNilNegotiation = errors.New("nil negotiation")

	// ErrAllocation indicates the allocator could not produce a packet.
	ErrAllocation = errors.New("outbound packet allocation failed")
)
