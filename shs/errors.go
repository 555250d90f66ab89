package shs

import "errors"

// Error kinds for the handshake and box-stream state machines. Every
// authentication failure ends the session. The handshake state or
// box-stream half that returned the error is not marked as failed; it is
// left as it was before the call.
var (
	ErrBadNetId        = errors.New("shs: network identifier MAC mismatch")
	ErrBadClientAuth   = errors.New("shs: client auth open or signature failed")
	ErrBadServerAccept = errors.New("shs: server accept open or signature failed")

	ErrBadHeader = errors.New("shs: box-stream header authentication failed")
	ErrBadBody   = errors.New("shs: box-stream body authentication failed")

	// ErrClosed is returned by Writer.Write after the writer has sent a
	// goodbye frame. (A Reader that received a goodbye returns io.EOF.)
	ErrClosed = errors.New("shs: box-stream closed")

	// ErrFrameTooLarge is returned by NewSplit when the configured maximum
	// frame body size falls outside 1..=4096.
	ErrFrameTooLarge = errors.New("shs: max frame body size outside 1..4096")
)
