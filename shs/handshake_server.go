package shs

import (
	"crypto/ed25519"
	"fmt"
)

// ServerHandshake is the initial server state (S0).
type ServerHandshake struct {
	netID   NetId
	pk      ed25519.PublicKey
	sk      ed25519.PrivateKey
	ephPriv [32]byte
	ephPub  [32]byte
}

// NewServerHandshake creates S0, generating a fresh ephemeral keypair.
func NewServerHandshake(netID NetId, pk ed25519.PublicKey, sk ed25519.PrivateKey) (*ServerHandshake, error) {
	ephPriv, ephPub, err := generateEphemeral()
	if err != nil {
		return nil, fmt.Errorf("shs: generate server ephemeral: %w", err)
	}
	return &ServerHandshake{
		netID:   netID,
		pk:      pk,
		sk:      sk,
		ephPriv: ephPriv,
		ephPub:  ephPub,
	}, nil
}

// RecvBytes is the size of the buffer the first transition consumes.
func (s *ServerHandshake) RecvBytes() int { return ClientHelloSize }

// ServerHelloReceived is the state after message 1 has been validated and
// ab computed.
type ServerHelloReceived struct {
	netID     NetId
	pk        ed25519.PublicKey
	sk        ed25519.PrivateKey
	ephPriv   [32]byte
	ephPub    [32]byte
	clientEph [32]byte
	ab        [32]byte
}

// RecvClientHello validates message 1 and derives ab. Failure is
// ErrBadNetId.
func (s *ServerHandshake) RecvClientHello(buf []byte) (*ServerHelloReceived, error) {
	if len(buf) != ClientHelloSize {
		return nil, fmt.Errorf("shs: client hello buffer must be %d bytes, got %d", ClientHelloSize, len(buf))
	}
	var clientEph [32]byte
	copy(clientEph[:], buf[32:64])

	expectedMAC := mac(s.netID, clientEph[:])
	if !ctEqual(expectedMAC, buf[:32]) {
		return nil, ErrBadNetId
	}

	abSlice, err := curveX25519(s.ephPriv[:], clientEph[:])
	if err != nil {
		return nil, fmt.Errorf("shs: derive ab: %w", err)
	}
	var ab [32]byte
	copy(ab[:], abSlice)

	return &ServerHelloReceived{
		netID:     s.netID,
		pk:        s.pk,
		sk:        s.sk,
		ephPriv:   s.ephPriv,
		ephPub:    s.ephPub,
		clientEph: clientEph,
		ab:        ab,
	}, nil
}

// SendBytes is the size of the buffer the next transition writes.
func (s *ServerHelloReceived) SendBytes() int { return ServerHelloSize }

// ServerHelloSent is the state after message 2 has been produced.
type ServerHelloSent struct {
	netID     NetId
	pk        ed25519.PublicKey
	sk        ed25519.PrivateKey
	ephPriv   [32]byte
	ephPub    [32]byte
	clientEph [32]byte
	ab        [32]byte
}

// SendServerHello writes ServerHelloSize bytes into buf.
func (s *ServerHelloReceived) SendServerHello(buf []byte) (*ServerHelloSent, error) {
	if len(buf) != ServerHelloSize {
		return nil, fmt.Errorf("shs: server hello buffer must be %d bytes, got %d", ServerHelloSize, len(buf))
	}
	copy(buf[:32], mac(s.netID, s.ephPub[:]))
	copy(buf[32:64], s.ephPub[:])

	return &ServerHelloSent{
		netID:     s.netID,
		pk:        s.pk,
		sk:        s.sk,
		ephPriv:   s.ephPriv,
		ephPub:    s.ephPub,
		clientEph: s.clientEph,
		ab:        s.ab,
	}, nil
}

// RecvBytes is the size of the buffer the next transition consumes.
func (s *ServerHelloSent) RecvBytes() int { return ClientAuthSize }

// ServerAuthReceived is the state after message 3 has been validated.
type ServerAuthReceived struct {
	netID     NetId
	pk        ed25519.PublicKey
	sk        ed25519.PrivateKey
	ephPub    [32]byte
	clientEph [32]byte
	clientPk  ed25519.PublicKey
	ab, aB, Ab [32]byte
	sigA      []byte
}

// RecvClientAuth opens message 3 and verifies the client's signature over
// the transcript. Failure is ErrBadClientAuth: either the client does not
// hold the signing key it claims to, or the bytes were corrupted.
func (s *ServerHelloSent) RecvClientAuth(buf []byte) (*ServerAuthReceived, error) {
	if len(buf) != ClientAuthSize {
		return nil, fmt.Errorf("shs: client auth buffer must be %d bytes, got %d", ClientAuthSize, len(buf))
	}

	skCurve := ed25519PrivateToCurve25519(s.sk)
	defer wipe(skCurve)
	aBSlice, err := curveX25519(skCurve, s.clientEph[:])
	if err != nil {
		return nil, fmt.Errorf("shs: derive aB: %w", err)
	}
	var aB [32]byte
	copy(aB[:], aBSlice)

	key := h(s.netID[:], s.ab[:], aB[:])
	plaintext, ok := openFixedNonce(key, buf)
	if !ok {
		return nil, ErrBadClientAuth
	}
	if len(plaintext) != clientAuthPlain {
		return nil, ErrBadClientAuth
	}
	sigA := plaintext[:ed25519.SignatureSize]
	clientPk := ed25519.PublicKey(plaintext[ed25519.SignatureSize:])

	transcript := clientAuthTranscript(s.netID, s.pk, s.ab[:])
	if !ed25519.Verify(clientPk, transcript, sigA) {
		return nil, ErrBadClientAuth
	}

	clientPkCurve, err := ed25519PublicToCurve25519(clientPk)
	if err != nil {
		return nil, fmt.Errorf("shs: convert client key: %w", err)
	}
	AbSlice, err := curveX25519(s.ephPriv[:], clientPkCurve)
	if err != nil {
		return nil, fmt.Errorf("shs: derive Ab: %w", err)
	}
	var Ab [32]byte
	copy(Ab[:], AbSlice)
	wipe(s.ephPriv[:])

	sigACopy := make([]byte, len(sigA))
	copy(sigACopy, sigA)
	clientPkCopy := make(ed25519.PublicKey, len(clientPk))
	copy(clientPkCopy, clientPk)

	return &ServerAuthReceived{
		netID:     s.netID,
		pk:        s.pk,
		sk:        s.sk,
		ephPub:    s.ephPub,
		clientEph: s.clientEph,
		clientPk:  clientPkCopy,
		ab:        s.ab,
		aB:        aB,
		Ab:        Ab,
		sigA:      sigACopy,
	}, nil
}

// SendBytes is the size of the buffer the final transition writes.
func (s *ServerAuthReceived) SendBytes() int { return ServerAcceptSize }

// SendServerAccept signs the transcript, seals message 4 into buf and
// yields the terminal HandshakeComplete.
func (s *ServerAuthReceived) SendServerAccept(buf []byte) (*HandshakeComplete, error) {
	if len(buf) != ServerAcceptSize {
		return nil, fmt.Errorf("shs: server accept buffer must be %d bytes, got %d", ServerAcceptSize, len(buf))
	}

	sigB := ed25519.Sign(s.sk, serverAcceptTranscript(s.netID, s.sigA, s.clientPk, s.ab[:]))

	key := h(s.netID[:], s.ab[:], s.aB[:], s.Ab[:])
	sealed := sealFixedNonce(key, sigB)
	if len(sealed) != ServerAcceptSize {
		return nil, fmt.Errorf("shs: unexpected sealed server accept size %d", len(sealed))
	}
	copy(buf, sealed)

	return &HandshakeComplete{
		NetId:           s.netID,
		Pk:              s.pk,
		EphemeralPk:     s.ephPub,
		PeerPk:          s.clientPk,
		PeerEphemeralPk: s.clientEph,
		SharedSecret: SharedSecret{
			EphEph:    s.ab,
			EphStatic: s.aB,
			StaticEph: s.Ab,
		},
	}, nil
}
