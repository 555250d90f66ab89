package shs

import (
	"crypto/ed25519"
	"fmt"
)

// ClientHandshake is the initial client state (C0). NewClientHandshake
// generates a fresh ephemeral keypair immediately, matching the spec's
// "new_client(...) also generates a fresh ephemeral keypair".
type ClientHandshake struct {
	netID     NetId
	pk        ed25519.PublicKey
	sk        ed25519.PrivateKey
	serverPk  ed25519.PublicKey
	ephPriv   [32]byte
	ephPub    [32]byte
}

// NewClientHandshake creates C0 for a client that expects to be talking to
// the peer holding serverPk.
func NewClientHandshake(netID NetId, pk ed25519.PublicKey, sk ed25519.PrivateKey, serverPk ed25519.PublicKey) (*ClientHandshake, error) {
	ephPriv, ephPub, err := generateEphemeral()
	if err != nil {
		return nil, fmt.Errorf("shs: generate client ephemeral: %w", err)
	}
	return &ClientHandshake{
		netID:    netID,
		pk:       pk,
		sk:       sk,
		serverPk: serverPk,
		ephPriv:  ephPriv,
		ephPub:   ephPub,
	}, nil
}

// SendBytes is the size of the buffer the next transition writes.
func (c *ClientHandshake) SendBytes() int { return ClientHelloSize }

// ClientHelloSent is the state after message 1 has been produced.
type ClientHelloSent struct {
	netID    NetId
	pk       ed25519.PublicKey
	sk       ed25519.PrivateKey
	serverPk ed25519.PublicKey
	ephPriv  [32]byte
	ephPub   [32]byte
}

// SendClientHello writes ClientHelloSize bytes into buf and transitions to
// ClientHelloSent. buf must be exactly SendBytes() long.
func (c *ClientHandshake) SendClientHello(buf []byte) (*ClientHelloSent, error) {
	if len(buf) != ClientHelloSize {
		return nil, fmt.Errorf("shs: client hello buffer must be %d bytes, got %d", ClientHelloSize, len(buf))
	}
	copy(buf[:32], mac(c.netID, c.ephPub[:]))
	copy(buf[32:64], c.ephPub[:])

	return &ClientHelloSent{
		netID:    c.netID,
		pk:       c.pk,
		sk:       c.sk,
		serverPk: c.serverPk,
		ephPriv:  c.ephPriv,
		ephPub:   c.ephPub,
	}, nil
}

// RecvBytes is the size of the buffer the next transition consumes.
func (c *ClientHelloSent) RecvBytes() int { return ServerHelloSize }

// ClientHelloReceived is the state after message 2 has been validated and
// the first two DH outputs (ab, aB) computed.
type ClientHelloReceived struct {
	netID      NetId
	pk         ed25519.PublicKey
	sk         ed25519.PrivateKey
	serverPk   ed25519.PublicKey
	ephPub     [32]byte
	serverEph  [32]byte
	ab, aB     [32]byte
}

// RecvServerHello validates message 2 (the MAC over the server's ephemeral
// public key) and derives ab and aB. Failure is ErrBadNetId: either the
// peer used a different NetId, or the bytes were corrupted in transit.
func (c *ClientHelloSent) RecvServerHello(buf []byte) (*ClientHelloReceived, error) {
	if len(buf) != ServerHelloSize {
		return nil, fmt.Errorf("shs: server hello buffer must be %d bytes, got %d", ServerHelloSize, len(buf))
	}
	var serverEph [32]byte
	copy(serverEph[:], buf[32:64])

	expectedMAC := mac(c.netID, serverEph[:])
	if !ctEqual(expectedMAC, buf[:32]) {
		return nil, ErrBadNetId
	}

	abSlice, err := curveX25519(c.ephPriv[:], serverEph[:])
	if err != nil {
		return nil, fmt.Errorf("shs: derive ab: %w", err)
	}
	var ab [32]byte
	copy(ab[:], abSlice)

	serverPkCurve, err := ed25519PublicToCurve25519(c.serverPk)
	if err != nil {
		return nil, fmt.Errorf("shs: convert expected server key: %w", err)
	}
	aBSlice, err := curveX25519(c.ephPriv[:], serverPkCurve)
	if err != nil {
		return nil, fmt.Errorf("shs: derive aB: %w", err)
	}
	var aB [32]byte
	copy(aB[:], aBSlice)

	wipe(c.ephPriv[:])

	return &ClientHelloReceived{
		netID:     c.netID,
		pk:        c.pk,
		sk:        c.sk,
		serverPk:  c.serverPk,
		ephPub:    c.ephPub,
		serverEph: serverEph,
		ab:        ab,
		aB:        aB,
	}, nil
}

// SendBytes is the size of the buffer the next transition writes.
func (c *ClientHelloReceived) SendBytes() int { return ClientAuthSize }

// ClientAuthSent is the state after message 3 has been produced; it holds
// everything needed to validate message 4.
type ClientAuthSent struct {
	netID     NetId
	pk        ed25519.PublicKey
	sk        ed25519.PrivateKey
	ephPub    [32]byte
	serverPk  ed25519.PublicKey
	serverEph [32]byte
	ab, aB    [32]byte
	sigA      []byte
}

// SendClientAuth signs the transcript, seals it under H(netID||ab||aB) and
// writes ClientAuthSize bytes into buf.
func (c *ClientHelloReceived) SendClientAuth(buf []byte) (*ClientAuthSent, error) {
	if len(buf) != ClientAuthSize {
		return nil, fmt.Errorf("shs: client auth buffer must be %d bytes, got %d", ClientAuthSize, len(buf))
	}

	sigA := ed25519.Sign(c.sk, clientAuthTranscript(c.netID, c.serverPk, c.ab[:]))

	plaintext := make([]byte, 0, clientAuthPlain)
	plaintext = append(plaintext, sigA...)
	plaintext = append(plaintext, c.pk...)

	key := h(c.netID[:], c.ab[:], c.aB[:])
	sealed := sealFixedNonce(key, plaintext)
	if len(sealed) != ClientAuthSize {
		return nil, fmt.Errorf("shs: unexpected sealed client auth size %d", len(sealed))
	}
	copy(buf, sealed)

	return &ClientAuthSent{
		netID:     c.netID,
		pk:        c.pk,
		sk:        c.sk,
		ephPub:    c.ephPub,
		serverPk:  c.serverPk,
		serverEph: c.serverEph,
		ab:        c.ab,
		aB:        c.aB,
		sigA:      sigA,
	}, nil
}

// RecvBytes is the size of the buffer the next transition consumes.
func (c *ClientAuthSent) RecvBytes() int { return ServerAcceptSize }

// RecvServerAccept validates message 4 and, on success, derives Ab and
// yields the terminal HandshakeComplete. Failure is ErrBadServerAccept:
// either the peer does not hold the private key for the expected serverPk
// (e.g. the caller configured the wrong PeerPublicKey), or the bytes were
// corrupted in transit.
func (c *ClientAuthSent) RecvServerAccept(buf []byte) (*HandshakeComplete, error) {
	if len(buf) != ServerAcceptSize {
		return nil, fmt.Errorf("shs: server accept buffer must be %d bytes, got %d", ServerAcceptSize, len(buf))
	}

	skCurve := ed25519PrivateToCurve25519(c.sk)
	defer wipe(skCurve)
	AbSlice, err := curveX25519(skCurve, c.serverEph[:])
	if err != nil {
		return nil, fmt.Errorf("shs: derive Ab: %w", err)
	}
	var Ab [32]byte
	copy(Ab[:], AbSlice)

	key := h(c.netID[:], c.ab[:], c.aB[:], Ab[:])
	plaintext, ok := openFixedNonce(key, buf)
	if !ok || len(plaintext) != serverAcceptPlain {
		return nil, ErrBadServerAccept
	}
	sigB := plaintext

	transcript := serverAcceptTranscript(c.netID, c.sigA, c.pk, c.ab[:])
	if !ed25519.Verify(c.serverPk, transcript, sigB) {
		return nil, ErrBadServerAccept
	}

	return &HandshakeComplete{
		NetId:           c.netID,
		Pk:              c.pk,
		EphemeralPk:     c.ephPub,
		PeerPk:          c.serverPk,
		PeerEphemeralPk: c.serverEph,
		SharedSecret: SharedSecret{
			EphEph:    c.ab,
			EphStatic: c.aB,
			StaticEph: Ab,
		},
	}, nil
}

func clientAuthTranscript(netID NetId, serverPk ed25519.PublicKey, ab []byte) []byte {
	out := make([]byte, 0, len(netID)+len(serverPk)+sha256Size)
	out = append(out, netID[:]...)
	out = append(out, serverPk...)
	out = append(out, h(ab)...)
	return out
}

func serverAcceptTranscript(netID NetId, sigA []byte, clientPk ed25519.PublicKey, ab []byte) []byte {
	out := make([]byte, 0, len(netID)+len(sigA)+len(clientPk)+sha256Size)
	out = append(out, netID[:]...)
	out = append(out, sigA...)
	out = append(out, clientPk...)
	out = append(out, h(ab)...)
	return out
}
