package qcicada

import "errors"

// Error kinds, matched with errors.Is. Every failure a Device returns wraps
// exactly one of these, so callers can branch on "device said no"
// (ErrRejected) versus "could not talk to the device" (ErrComm) versus the
// rest.
var (
	// ErrInvalidArgument reports a caller mistake — an out-of-range read
	// length, a key of the wrong size, an unregistered opcode. Raised
	// before any I/O or cryptographic work happens.
	ErrInvalidArgument = errors.New("qcicada: invalid argument")

	// ErrComm reports a communication failure: a write error, a read that
	// timed out with nothing, or a short payload. Retrying is the
	// caller's decision; this layer never retries on its own.
	ErrComm = errors.New("qcicada: communication failure")

	// ErrRejected reports a NACK — the device understood the command and
	// refused it (busy, startup test running, unsupported request). A
	// recoverable outcome, distinct from a transport problem.
	ErrRejected = errors.New("qcicada: command rejected by device")

	// ErrDesync reports a response byte that is neither the expected
	// success code nor NACK. The byte stream can no longer be trusted
	// framewise; the session should be closed and reopened.
	ErrDesync = errors.New("qcicada: protocol desynchronized")

	// ErrVerification reports an invalid signature or certificate, or a
	// device identity that cannot be established. Security-relevant and
	// never folded into a communication failure.
	ErrVerification = errors.New("qcicada: verification failed")

	// ErrClosed reports an operation on a closed Device.
	ErrClosed = errors.New("qcicada: device closed")
)
