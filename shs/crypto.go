package shs

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

func readRandom(dst []byte) (int, error) {
	return io.ReadFull(rand.Reader, dst)
}

func curveBasepoint() []byte {
	return curve25519.Basepoint
}

func curveX25519(scalar, point []byte) ([]byte, error) {
	out, err := curve25519.X25519(scalar, point)
	if err != nil {
		return nil, fmt.Errorf("shs: x25519: %w", err)
	}
	return out, nil
}

// zeroNonce is the fixed 24-byte nonce used to seal the two encrypted
// handshake messages (ClientAuth, ServerAccept). Each is sealed under its
// own freshly-derived key, so nonce reuse across them is not a concern.
var zeroNonce [24]byte

func sealFixedNonce(key, plaintext []byte) []byte {
	var k [32]byte
	copy(k[:], key)
	defer wipe(k[:])
	return secretbox.Seal(nil, plaintext, &zeroNonce, &k)
}

func openFixedNonce(key, ciphertext []byte) ([]byte, bool) {
	var k [32]byte
	copy(k[:], key)
	defer wipe(k[:])
	return secretbox.Open(nil, ciphertext, &zeroNonce, &k)
}

// secretboxSeal and secretboxOpen wrap nacl/secretbox for the box-stream
// framer, which uses an explicit advancing nonce rather than the fixed
// nonce the handshake's two encrypted messages use.
func secretboxSeal(key [32]byte, nonce *[24]byte, plaintext []byte) []byte {
	return secretbox.Seal(nil, plaintext, nonce, &key)
}

func secretboxOpen(key [32]byte, nonce *[24]byte, ciphertext []byte) ([]byte, bool) {
	return secretbox.Open(nil, ciphertext, nonce, &key)
}

// exportKey derives an HKDF-SHA256 expansion of the box-stream root key K
// for use outside the protocol (see HandshakeComplete.ExportKey).
func exportKey(hc *HandshakeComplete) []byte {
	root := boxRootKey(hc)
	r := hkdf.New(sha256.New, root, nil, []byte("shs-export-v1"))
	out := make([]byte, 32)
	if _, err := io.ReadFull(r, out); err != nil {
		panic(fmt.Sprintf("shs: hkdf export: %v", err))
	}
	return out
}
