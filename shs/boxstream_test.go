package shs

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"
)

func completedPair(t *testing.T) (*HandshakeComplete, *HandshakeComplete) {
	t.Helper()
	var netID NetId
	copy(netID[:], bytes.Repeat([]byte{0x11}, 32))

	clientPub, clientPriv := mustKeypair(t, 3)
	serverPub, serverPriv := mustKeypair(t, 4)

	client, server, clientErr, serverErr := runHandshake(t, netID, clientPub, clientPriv, serverPub, serverPriv, serverPub)
	if clientErr != nil || serverErr != nil {
		t.Fatalf("setup handshake failed: client=%v server=%v", clientErr, serverErr)
	}
	return client, server
}

func TestBoxStreamRoundTrip(t *testing.T) {
	client, server := completedPair(t)

	a, b := newPipePair()
	clientWriter, clientReader, err := NewSplit(client, a, MaxFrameBody)
	if err != nil {
		t.Fatalf("client split: %v", err)
	}
	serverWriter, serverReader, err := NewSplit(server, b, MaxFrameBody)
	if err != nil {
		t.Fatalf("server split: %v", err)
	}

	msg := []byte("hello from client")
	errCh := make(chan error, 1)
	go func() {
		_, err := clientWriter.Write(msg)
		errCh <- err
	}()

	got := make([]byte, len(msg))
	if _, err := io.ReadFull(serverReader, got); err != nil {
		t.Fatalf("server read: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("client write: %v", err)
	}
	if !bytes.Equal(got, msg) {
		t.Fatalf("got %q, want %q", got, msg)
	}

	reply := []byte("hello from server")
	go func() {
		_, err := serverWriter.Write(reply)
		errCh <- err
	}()
	got2 := make([]byte, len(reply))
	if _, err := io.ReadFull(clientReader, got2); err != nil {
		t.Fatalf("client read: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("server write: %v", err)
	}
	if !bytes.Equal(got2, reply) {
		t.Fatalf("got %q, want %q", got2, reply)
	}
}

func TestBoxStreamGoodbyeYieldsEOF(t *testing.T) {
	client, server := completedPair(t)

	a, b := newPipePair()
	clientWriter, _, err := NewSplit(client, a, MaxFrameBody)
	if err != nil {
		t.Fatalf("client split: %v", err)
	}
	_, serverReader, err := NewSplit(server, b, MaxFrameBody)
	if err != nil {
		t.Fatalf("server split: %v", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- clientWriter.Goodbye() }()

	buf := make([]byte, 16)
	n, err := serverReader.Read(buf)
	if err != io.EOF {
		t.Fatalf("expected io.EOF after goodbye, got n=%d err=%v", n, err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("goodbye: %v", err)
	}

	// Reading again must keep returning EOF, not block or panic.
	if _, err := serverReader.Read(buf); err != io.EOF {
		t.Fatalf("expected repeated io.EOF, got %v", err)
	}
}

func TestBoxStreamChunksAtMaxFrameBody(t *testing.T) {
	client, server := completedPair(t)

	a, b := newPipePair()
	const maxFrame = 16
	clientWriter, _, err := NewSplit(client, a, maxFrame)
	if err != nil {
		t.Fatalf("client split: %v", err)
	}
	_, serverReader, err := NewSplit(server, b, MaxFrameBody)
	if err != nil {
		t.Fatalf("server split: %v", err)
	}

	payload := bytes.Repeat([]byte{0xAB}, 50)
	errCh := make(chan error, 1)
	go func() { _, err := clientWriter.Write(payload); errCh <- err }()

	got := make([]byte, len(payload))
	if _, err := io.ReadFull(serverReader, got); err != nil {
		t.Fatalf("server read: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("client write: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch after chunked transfer")
	}
}

func TestBoxStreamCorruptedHeaderFails(t *testing.T) {
	client, server := completedPair(t)

	a, b := newPipePair()
	clientWriter, _, err := NewSplit(client, a, MaxFrameBody)
	if err != nil {
		t.Fatalf("client split: %v", err)
	}
	_, serverReader, err := NewSplit(server, b, MaxFrameBody)
	if err != nil {
		t.Fatalf("server split: %v", err)
	}

	// Splice a byte-flipping writer between the pipe halves by racing the
	// write against a reader-side corruption: instead, corrupt at the
	// transport by wrapping the writer's connection.
	corrupt := &bitFlippingWriter{w: a}
	clientWriter.conn = corrupt

	errCh := make(chan error, 1)
	go func() { _, err := clientWriter.Write([]byte("x")); errCh <- err }()

	buf := make([]byte, 1)
	_, readErr := serverReader.Read(buf)
	if readErr != ErrBadHeader {
		t.Fatalf("expected ErrBadHeader, got %v", readErr)
	}
	// Nobody reads the body any more; close the server end so the
	// writer's pending body write returns.
	b.Close()
	<-errCh
}

type bitFlippingWriter struct {
	w     io.Writer
	wrote bool
}

func (c *bitFlippingWriter) Write(p []byte) (int, error) {
	if !c.wrote {
		c.wrote = true
		flipped := make([]byte, len(p))
		copy(flipped, p)
		flipped[0] ^= 0xFF
		return c.w.Write(flipped)
	}
	return c.w.Write(p)
}

func TestBoxStreamOversizedMaxFrameRejected(t *testing.T) {
	client, _ := completedPair(t)
	a, _ := newPipePair()
	if _, _, err := NewSplit(client, a, MaxFrameBody+1); err == nil {
		t.Fatalf("expected error for maxFrameBody > MaxFrameBody")
	}
	if _, _, err := NewSplit(client, a, 0); err == nil {
		t.Fatalf("expected error for maxFrameBody == 0")
	}
}

func TestBoxStreamHeaderEncodesLength(t *testing.T) {
	client, server := completedPair(t)
	a, b := newPipePair()
	clientWriter, _, err := NewSplit(client, a, MaxFrameBody)
	if err != nil {
		t.Fatalf("client split: %v", err)
	}
	_, serverReader, err := NewSplit(server, b, MaxFrameBody)
	if err != nil {
		t.Fatalf("server split: %v", err)
	}

	body := []byte("0123456789")
	go clientWriter.writeFrame(body)

	header := make([]byte, headerCipherSize)
	if _, err := io.ReadFull(serverReader.conn, header); err != nil {
		t.Fatalf("read header: %v", err)
	}
	plain, ok := secretboxOpen(serverReader.key, serverReader.nonce.bytes(), header)
	if !ok {
		t.Fatalf("failed to open header")
	}
	gotLen := binary.BigEndian.Uint16(plain[:2])
	if int(gotLen) != len(body) {
		t.Fatalf("header length = %d, want %d", gotLen, len(body))
	}
}
