package shs

import "testing"

func TestNonceAdvanceSimple(t *testing.T) {
	var n nonce192
	n.advance(2)
	want := nonce192{23: 2}
	if n != want {
		t.Fatalf("got %x, want %x", n, want)
	}
}

func TestNonceAdvanceCarries(t *testing.T) {
	var n nonce192
	n[23] = 0xFF
	n.advance(1)
	want := nonce192{22: 1}
	if n != want {
		t.Fatalf("got %x, want %x", n, want)
	}
}

func TestNonceAdvanceCarriesAcrossMultipleBytes(t *testing.T) {
	var n nonce192
	for i := range n {
		n[i] = 0xFF
	}
	n.advance(1)
	var want nonce192 // wraps to all-zero
	if n != want {
		t.Fatalf("got %x, want %x", n, want)
	}
}

func TestNonceCloneDoesNotMutate(t *testing.T) {
	var n nonce192
	n[23] = 5
	clone := n.clone(2)

	if n[23] != 5 {
		t.Fatalf("clone mutated receiver: n[23] = %d", n[23])
	}
	if clone[23] != 7 {
		t.Fatalf("clone[23] = %d, want 7", clone[23])
	}
}

func TestNonceBytesAliasesUnderlying(t *testing.T) {
	var n nonce192
	p := n.bytes()
	p[0] = 9
	if n[0] != 9 {
		t.Fatalf("bytes() did not alias the receiver")
	}
}

func TestNonceSequenceIsStrictlyIncreasing(t *testing.T) {
	var n nonce192
	prev := n
	for i := 0; i < 5; i++ {
		n.advance(2)
		if n == prev {
			t.Fatalf("nonce did not change on iteration %d", i)
		}
		prev = n
	}
	if n != (nonce192{23: 10}) {
		t.Fatalf("got %x after 5 advances of 2", n)
	}
}
