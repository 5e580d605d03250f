package qcicada

import "time"

// Transport is the byte-stream duplex channel a Device speaks QCC over.
// The qcserial package provides the serial-port implementation; tests and
// simulators substitute their own.
type Transport interface {
	// Write sends p and blocks until the transport has accepted all of it
	// or an error occurs.
	Write(p []byte) (int, error)

	// Read fills p with up to len(p) bytes, blocking no longer than the
	// configured read timeout. Returning 0 bytes with a nil error means
	// the timeout elapsed with nothing to read.
	Read(p []byte) (int, error)

	// SetReadTimeout bounds subsequent Read calls.
	SetReadTimeout(d time.Duration) error

	// Flush discards buffered input that has not been read yet (stale
	// responses, leftover streamed data) and pushes any pending output
	// onto the wire.
	Flush() error

	// Close releases the transport. Reads and writes after Close fail.
	Close() error
}
