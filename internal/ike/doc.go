// Package ike implements the ISAKMP/IKEv1 negotiation dispatch engine
// (RFC 2408, RFC 2409).
//
// This includes the transition table, rule matching, two-phase step
// execution with suspension and immediate retry, the packet-driven
// processor, negotiation bookkeeping, and the NAT-D hash (RFC 3947).
// Cryptography and payload encoding are supplied by step handlers.
package ike
