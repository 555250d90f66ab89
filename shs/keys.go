package shs

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"fmt"

	"filippo.io/edwards25519"
)

const sha256Size = sha256.Size

// ctEqual reports whether a and b are equal, in constant time, so that
// handshake authentication checks do not leak timing information about how
// many leading bytes matched.
func ctEqual(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// NetId is the 32-byte symmetric value shared by every peer of one network.
// Peers that disagree on NetId fail the handshake at message 1 or 2.
type NetId [32]byte

// h is the SHA-256 hash used throughout the key schedule (spec's H).
func h(parts ...[]byte) []byte {
	d := sha256.New()
	for _, p := range parts {
		d.Write(p)
	}
	sum := d.Sum(nil)
	return sum
}

// mac computes HMAC-SHA-512-256 with NetId as key, truncated the way
// crypto/sha512.New512_256 already produces a 32-byte digest natively.
func mac(netID NetId, msg []byte) []byte {
	m := hmac.New(sha512.New512_256, netID[:])
	m.Write(msg)
	return m.Sum(nil)
}

// ed25519PrivateToCurve25519 derives the X25519 private scalar corresponding
// to an Ed25519 signing key, by hashing the 32-byte seed and clamping per
// RFC 7748. This is the standard conversion: it only works for a key the
// caller holds the seed for.
func ed25519PrivateToCurve25519(priv ed25519.PrivateKey) []byte {
	digest := sha512.Sum512(priv.Seed())
	defer wipe(digest[:])

	digest[0] &= 248
	digest[31] &= 127
	digest[31] |= 64

	out := make([]byte, 32)
	copy(out, digest[:32])
	return out
}

// ed25519PublicToCurve25519 converts an Ed25519 public key (an Edwards
// point) to its Montgomery u-coordinate, the form X25519 operates on. Unlike
// ed25519PrivateToCurve25519 this needs no private material, so it is how a
// peer's long-term identity key is turned into a Curve25519 DH key.
func ed25519PublicToCurve25519(pub ed25519.PublicKey) ([]byte, error) {
	if len(pub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("shs: invalid ed25519 public key length %d", len(pub))
	}
	p, err := new(edwards25519.Point).SetBytes(pub)
	if err != nil {
		return nil, fmt.Errorf("shs: not a valid curve point: %w", err)
	}
	return p.BytesMontgomery(), nil
}

// wipe zeroes key material. Callers defer this on every buffer that holds a
// secret scalar or derived key once it is no longer needed.
func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
