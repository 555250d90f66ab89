// Package keystore persists a node's long-term Ed25519 identity and the
// network identifier it joins under, the way relaydns/core/cryptoops's
// Credential wraps a signing key with a derived display ID. Identity
// storage is deliberately kept out of package shs (see spec's "deliberately
// out of scope" list); shs only ever consumes raw ed25519 keys.
package keystore

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/rand"
	"encoding/base32"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/blake2b"
)

var idMagic = []byte("SHSNET_IDENTITY_V1")

var base32Encoding = base32.NewEncoding("ABCDEFGHIJKLMNOPQRSTUVWXYZ234567").WithPadding(base32.NoPadding)

// DisplayID derives a short, human-shareable identifier for a public key,
// using BLAKE2b's native keying instead of a separate HMAC construction
// (mirroring relaydns/core/cryptoops.DeriveID's HMAC-SHA256 shape, but with
// the domain-stack hash SPEC_FULL.md wires in for this role). It is a
// courtesy label only: the handshake authenticates the full 32-byte key,
// never the abbreviated ID.
func DisplayID(pub ed25519.PublicKey) string {
	h, err := blake2b.New256(idMagic)
	if err != nil {
		panic(fmt.Sprintf("keystore: blake2b: %v", err))
	}
	h.Write(pub)
	return base32Encoding.EncodeToString(h.Sum(nil))
}

// Identity is a node's long-term keypair plus the network it has joined.
type Identity struct {
	NetID      [32]byte
	PublicKey  ed25519.PublicKey
	PrivateKey ed25519.PrivateKey
}

// ID returns the identity's display ID.
func (id *Identity) ID() string { return DisplayID(id.PublicKey) }

// Generate creates a fresh identity for the given network.
func Generate(netID [32]byte) (*Identity, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("keystore: generate key: %w", err)
	}
	return &Identity{NetID: netID, PublicKey: pub, PrivateKey: priv}, nil
}

type keyFile struct {
	NetID      string `json:"net_id"`
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key"`
	Checksum   string `json:"checksum"`
}

// checksum binds all three fields together with BLAKE2b-256, so a
// keyfile edited or truncated out of band is rejected at Load rather than
// silently producing a broken identity.
func checksum(netID [32]byte, pub ed25519.PublicKey, priv ed25519.PrivateKey) []byte {
	h, err := blake2b.New256(nil)
	if err != nil {
		panic(fmt.Sprintf("keystore: blake2b: %v", err))
	}
	h.Write(netID[:])
	h.Write(pub)
	h.Write(priv)
	return h.Sum(nil)
}

// Save writes id to path as JSON with 0600 permissions.
func Save(path string, id *Identity) error {
	sum := checksum(id.NetID, id.PublicKey, id.PrivateKey)
	kf := keyFile{
		NetID:      hex.EncodeToString(id.NetID[:]),
		PublicKey:  hex.EncodeToString(id.PublicKey),
		PrivateKey: hex.EncodeToString(id.PrivateKey),
		Checksum:   hex.EncodeToString(sum),
	}
	data, err := json.MarshalIndent(kf, "", "  ")
	if err != nil {
		return fmt.Errorf("keystore: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("keystore: write %s: %w", path, err)
	}
	return nil
}

// Load reads and validates an identity previously written by Save.
func Load(path string) (*Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("keystore: read %s: %w", path, err)
	}
	var kf keyFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("keystore: parse %s: %w", path, err)
	}

	netIDBytes, err := hex.DecodeString(kf.NetID)
	if err != nil || len(netIDBytes) != 32 {
		return nil, errors.New("keystore: malformed net_id")
	}
	pubBytes, err := hex.DecodeString(kf.PublicKey)
	if err != nil || len(pubBytes) != ed25519.PublicKeySize {
		return nil, errors.New("keystore: malformed public_key")
	}
	privBytes, err := hex.DecodeString(kf.PrivateKey)
	if err != nil || len(privBytes) != ed25519.PrivateKeySize {
		return nil, errors.New("keystore: malformed private_key")
	}
	wantSum, err := hex.DecodeString(kf.Checksum)
	if err != nil {
		return nil, errors.New("keystore: malformed checksum")
	}

	var netID [32]byte
	copy(netID[:], netIDBytes)

	gotSum := checksum(netID, pubBytes, privBytes)
	if !hmac.Equal(gotSum, wantSum) {
		return nil, fmt.Errorf("keystore: %s failed checksum validation", path)
	}

	return &Identity{
		NetID:      netID,
		PublicKey:  pubBytes,
		PrivateKey: privBytes,
	}, nil
}
