package keystore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGenerateSaveLoadRoundTrip(t *testing.T) {
	var netID [32]byte
	netID[0] = 0xAA

	id, err := Generate(netID)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "identity.json")
	if err := Save(path, id); err != nil {
		t.Fatalf("save: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("keyfile perm = %o, want 0600", perm)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.NetID != id.NetID {
		t.Fatalf("net id mismatch after round trip")
	}
	if loaded.ID() != id.ID() {
		t.Fatalf("display id mismatch: %s != %s", loaded.ID(), id.ID())
	}
	if string(loaded.PrivateKey) != string(id.PrivateKey) {
		t.Fatalf("private key mismatch after round trip")
	}
}

func TestLoadRejectsTamperedKeyfile(t *testing.T) {
	var netID [32]byte
	id, err := Generate(netID)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "identity.json")
	if err := Save(path, id); err != nil {
		t.Fatalf("save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	// Flip a hex digit in the stored public key without touching the checksum.
	corrupted := []byte(string(data))
	for i, b := range corrupted {
		if b == 'a' {
			corrupted[i] = 'b'
			break
		}
	}
	if err := os.WriteFile(path, corrupted, 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatalf("expected tampered keyfile to fail checksum validation")
	}
}

func TestDisplayIDIsStableAndKeyDependent(t *testing.T) {
	a, err := Generate([32]byte{})
	if err != nil {
		t.Fatal(err)
	}
	b, err := Generate([32]byte{})
	if err != nil {
		t.Fatal(err)
	}

	if DisplayID(a.PublicKey) != a.ID() {
		t.Fatalf("DisplayID and Identity.ID disagree")
	}
	if a.ID() == b.ID() {
		t.Fatalf("two distinct keys produced the same display id")
	}
}
