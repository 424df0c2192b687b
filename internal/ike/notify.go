package ike

import "fmt"

// -------------------------------------------------------------------------
// Notify Message Types — RFC 2408 Section 3.14.1
// -------------------------------------------------------------------------

// NotifyCode is an ISAKMP Notify Message Type (RFC 2408 Section 3.14.1).
//
// The engine reuses the wire vocabulary as its internal result type. Values
// 1-16383 are errors, 16384 and above are status notifications. The engine's
// own internal reasons live in the private-use error range (8192-16383) so
// they can never collide with a code received from a peer.
//
// NotifyCode implements error; a failed dispatch returns its reason as a
// NotifyCode and callers recover it with errors.As.
type NotifyCode uint16

// Error notifications (RFC 2408 Section 3.14.1).
const (
	NotifyInvalidPayloadType       NotifyCode = 1
	NotifyDOINotSupported          NotifyCode = 2
	NotifySituationNotSupported    NotifyCode = 3
	NotifyInvalidCookie            NotifyCode = 4
	NotifyInvalidMajorVersion      NotifyCode = 5
	NotifyInvalidMinorVersion      NotifyCode = 6
	NotifyInvalidExchangeType      NotifyCode = 7
	NotifyInvalidFlags             NotifyCode = 8
	NotifyInvalidMessageID         NotifyCode = 9
	NotifyInvalidProtocolID        NotifyCode = 10
	NotifyInvalidSPI               NotifyCode = 11
	NotifyInvalidTransformID       NotifyCode = 12
	NotifyAttributesNotSupported   NotifyCode = 13
	NotifyNoProposalChosen         NotifyCode = 14
	NotifyBadProposalSyntax        NotifyCode = 15
	NotifyPayloadMalformed         NotifyCode = 16
	NotifyInvalidKeyInformation    NotifyCode = 17
	NotifyInvalidIDInformation     NotifyCode = 18
	NotifyInvalidCertEncoding      NotifyCode = 19
	NotifyInvalidCertificate       NotifyCode = 20
	NotifyCertTypeUnsupported      NotifyCode = 21
	NotifyInvalidCertAuthority     NotifyCode = 22
	NotifyInvalidHashInformation   NotifyCode = 23
	NotifyAuthenticationFailed     NotifyCode = 24
	NotifyInvalidSignature         NotifyCode = 25
	NotifyAddressNotification      NotifyCode = 26
	NotifyNotifySALifetime         NotifyCode = 27
	NotifyCertificateUnavailable   NotifyCode = 28
	NotifyUnsupportedExchangeType  NotifyCode = 29
	NotifyUnequalPayloadLengths    NotifyCode = 30
)

// Internal reasons in the private-use error range. These never appear on
// the wire.
const (
	// NotifyNoStateMatched means no transition rule fits the negotiation's
	// (state, exchange, auth method, field presence) tuple.
	NotifyNoStateMatched NotifyCode = 8192

	// NotifyOutOfMemory means the outbound packet or its backing storage
	// could not be allocated.
	NotifyOutOfMemory NotifyCode = 8193

	// NotifyRestartLimit means the dispatch loop was asked to re-match more
	// times than Config.MaxRestarts allows in a single call. It indicates a
	// table whose steps keep returning RetryNow.
	NotifyRestartLimit NotifyCode = 8194

	// NotifyAborted means the negotiation was aborted while an external
	// answer was outstanding.
	NotifyAborted NotifyCode = 8195
)

// Status notifications (RFC 2408 Section 3.14.1, RFC 2407 Section 4.6.3).
const (
	// NotifyConnected signals that the negotiation completed and the
	// resulting SA is usable.
	NotifyConnected NotifyCode = 16384

	// NotifyResponderLifetime is the IPsec DOI RESPONDER-LIFETIME status.
	NotifyResponderLifetime NotifyCode = 24576

	// NotifyReplayStatus is the IPsec DOI REPLAY-STATUS status.
	NotifyReplayStatus NotifyCode = 24577

	// NotifyInitialContact is the IPsec DOI INITIAL-CONTACT status.
	NotifyInitialContact NotifyCode = 24578
)

//nolint:gochecknoglobals // name table for String().
var notifyNames = map[NotifyCode]string{
	NotifyInvalidPayloadType:      "INVALID-PAYLOAD-TYPE",
	NotifyDOINotSupported:         "DOI-NOT-SUPPORTED",
	NotifySituationNotSupported:   "SITUATION-NOT-SUPPORTED",
	NotifyInvalidCookie:           "INVALID-COOKIE",
	NotifyInvalidMajorVersion:     "INVALID-MAJOR-VERSION",
	NotifyInvalidMinorVersion:     "INVALID-MINOR-VERSION",
	NotifyInvalidExchangeType:     "INVALID-EXCHANGE-TYPE",
	NotifyInvalidFlags:            "INVALID-FLAGS",
	NotifyInvalidMessageID:        "INVALID-MESSAGE-ID",
	NotifyInvalidProtocolID:       "INVALID-PROTOCOL-ID",
	NotifyInvalidSPI:              "INVALID-SPI",
	NotifyInvalidTransformID:      "INVALID-TRANSFORM-ID",
	NotifyAttributesNotSupported:  "ATTRIBUTES-NOT-SUPPORTED",
	NotifyNoProposalChosen:        "NO-PROPOSAL-CHOSEN",
	NotifyBadProposalSyntax:       "BAD-PROPOSAL-SYNTAX",
	NotifyPayloadMalformed:        "PAYLOAD-MALFORMED",
	NotifyInvalidKeyInformation:   "INVALID-KEY-INFORMATION",
	NotifyInvalidIDInformation:    "INVALID-ID-INFORMATION",
	NotifyInvalidCertEncoding:     "INVALID-CERT-ENCODING",
	NotifyInvalidCertificate:      "INVALID-CERTIFICATE",
	NotifyCertTypeUnsupported:     "CERT-TYPE-UNSUPPORTED",
	NotifyInvalidCertAuthority:    "INVALID-CERT-AUTHORITY",
	NotifyInvalidHashInformation:  "INVALID-HASH-INFORMATION",
	NotifyAuthenticationFailed:    "AUTHENTICATION-FAILED",
	NotifyInvalidSignature:        "INVALID-SIGNATURE",
	NotifyAddressNotification:     "ADDRESS-NOTIFICATION",
	NotifyNotifySALifetime:        "NOTIFY-SA-LIFETIME",
	NotifyCertificateUnavailable:  "CERTIFICATE-UNAVAILABLE",
	NotifyUnsupportedExchangeType: "UNSUPPORTED-EXCHANGE-TYPE",
	NotifyUnequalPayloadLengths:   "UNEQUAL-PAYLOAD-LENGTHS",
	NotifyNoStateMatched:          "NO-STATE-MATCHED",
	NotifyOutOfMemory:             "OUT-OF-MEMORY",
	NotifyRestartLimit:            "RESTART-LIMIT",
	NotifyAborted:                 "ABORTED",
	NotifyConnected:               "CONNECTED",
	NotifyResponderLifetime:       "RESPONDER-LIFETIME",
	NotifyReplayStatus:            "REPLAY-STATUS",
	NotifyInitialContact:          "INITIAL-CONTACT",
}

// String returns the RFC name of the notify code.
func (c NotifyCode) String() string {
	if name, ok := notifyNames[c]; ok {
		return name
	}
	return fmt.Sprintf(unknownFmt, uint16(c))
}

// Error implements the error interface.
func (c NotifyCode) Error() string {
	return "ike: " + c.String()
}

// IsStatus reports whether c is a status notification rather than an error.
func (c NotifyCode) IsStatus() bool {
	return c >= NotifyConnected
}

// IsInternal reports whether c is one of the engine's private reasons.
func (c NotifyCode) IsInternal() bool {
	return c >= NotifyNoStateMatched && c < NotifyConnected
}
