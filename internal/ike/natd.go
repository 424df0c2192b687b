package ike

import (
	"crypto/md5"  //nolint:gosec // RFC 2409 negotiable hash.
	"crypto/sha1" //nolint:gosec // RFC 2409 negotiable hash.
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"hash"
	"net/netip"
)

// HashAlgorithm is the phase-1 hash algorithm negotiated for an SA
// (RFC 2409 Appendix A, RFC 4868 for SHA-2).
type HashAlgorithm uint8

const (
	HashUnknown HashAlgorithm = iota
	HashMD5
	HashSHA1
	HashSHA256
	HashSHA384
	HashSHA512
)

// String returns the lowercase algorithm name.
func (h HashAlgorithm) String() string {
	switch h {
	case HashMD5:
		return "md5"
	case HashSHA1:
		return "sha1"
	case HashSHA256:
		return "sha256"
	case HashSHA384:
		return "sha384"
	case HashSHA512:
		return "sha512"
	default:
		return fmt.Sprintf(unknownFmt, h)
	}
}

// ParseHashAlgorithm maps an algorithm name to a HashAlgorithm.
func ParseHashAlgorithm(name string) (HashAlgorithm, error) {
	for h := HashMD5; h <= HashSHA512; h++ {
		if h.String() == name {
			return h, nil
		}
	}
	return HashUnknown, fmt.Errorf("%w: %q", ErrUnknownHash, name)
}

func (h HashAlgorithm) hasher() (hash.Hash, bool) {
	switch h {
	case HashMD5:
		return md5.New(), true //nolint:gosec // negotiated algorithm.
	case HashSHA1:
		return sha1.New(), true //nolint:gosec // negotiated algorithm.
	case HashSHA256:
		return sha256.New(), true
	case HashSHA384:
		return sha512.New384(), true
	case HashSHA512:
		return sha512.New(), true
	default:
		return nil, false
	}
}

// NATDHash computes the RFC 3947 Section 3.2 NAT-D payload value
// HASH(CKY-I | CKY-R | IP | Port) with the SA's hash algorithm. The address
// is encoded in its natural length (4 bytes for IPv4, 16 for IPv6) and the
// port in network byte order.
//
// An SA without a usable hash algorithm yields NotifyAuthenticationFailed.
func NATDHash(sa *SA, addr netip.AddrPort) ([]byte, error) {
	h, ok := sa.HashAlgorithm().hasher()
	if !ok {
		return nil, NotifyAuthenticationFailed
	}
	c := sa.Cookies()
	h.Write(c.Initiator[:])
	h.Write(c.Responder[:])
	h.Write(addr.Addr().Unmap().AsSlice())
	var port [2]byte
	binary.BigEndian.PutUint16(port[:], addr.Port())
	h.Write(port[:])
	return h.Sum(nil), nil
}
