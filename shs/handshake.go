// Package shs implements the Secret Handshake mutual-authentication
// ladder and the box-stream framing layer that rides on top of it.
//
// The handshake is a typed state machine: each state is a distinct Go type,
// and a transition method returns the next state (or an error). Calling
// transitions out of order does not compile, since each method exists only
// on its own state type. A state value is not marked as used: calling the
// same transition a second time on it is not detected.
package shs

import (
	"crypto/ed25519"
)

const (
	// ClientHelloSize is the wire size of message 1.
	ClientHelloSize = 64
	// ServerHelloSize is the wire size of message 2.
	ServerHelloSize = 64
	// ClientAuthSize is the wire size of message 3.
	ClientAuthSize = 112
	// ServerAcceptSize is the wire size of message 4.
	ServerAcceptSize = 80

	secretboxOverhead = 16
	clientAuthPlain   = ed25519.SignatureSize + ed25519.PublicKeySize // 96
	serverAcceptPlain = ed25519.SignatureSize                        // 64
)

// SharedSecret is the triple of Curve25519 DH outputs both peers derive
// independently; a successful pair of handshakes always computes an
// identical triple. Field names follow spec notation: lowercase letters
// are ephemeral keys, uppercase are long-term keys.
type SharedSecret struct {
	EphEph    [32]byte // ab  = X25519(client_eph, server_eph)
	EphStatic [32]byte // aB  = X25519(client_eph, server_static)
	StaticEph [32]byte // Ab  = X25519(client_static, server_eph)
}

// HandshakeComplete is the terminal record produced by both sides of a
// successful handshake.
type HandshakeComplete struct {
	NetId NetId

	Pk          ed25519.PublicKey
	EphemeralPk [32]byte

	PeerPk          ed25519.PublicKey
	PeerEphemeralPk [32]byte

	SharedSecret SharedSecret
}

// ExportKey derives an application-facing channel-binding token from the
// completed handshake via HKDF-SHA256. It is additive: it does not feed
// back into the box-stream key schedule (see boxKeys in boxstream.go),
// which stays a bare SHA-256 cascade to match the wire protocol bit for
// bit. Two peers that completed matching handshakes always derive an
// identical export key.
func (hc *HandshakeComplete) ExportKey() []byte {
	return exportKey(hc)
}

func generateEphemeral() (priv, pub [32]byte, err error) {
	if _, err = readRandom(priv[:]); err != nil {
		return priv, pub, err
	}
	pubSlice, err := curveX25519(priv[:], curveBasepoint())
	if err != nil {
		return priv, pub, err
	}
	copy(pub[:], pubSlice)
	return priv, pub, nil
}
