package qcicada

import (
	"fmt"
	"time"

	"github.com/qcicada/qcicada-go/qcc"
)

// Timeouts are the read deadlines the command session works with. The
// defaults match QCicada firmware timing; raise them for slow links.
type Timeouts struct {
	// Response bounds the wait for the one-byte response code after a
	// command is written.
	Response time.Duration

	// PayloadFloor and PayloadPerByte bound the wait for a declared
	// response payload: max(PayloadFloor, PayloadPerByte×size).
	PayloadFloor   time.Duration
	PayloadPerByte time.Duration

	// DataFloor and DataPerByte bound the second-phase read of one-shot,
	// signed, and continuous data: DataFloor + DataPerByte×length.
	DataFloor   time.Duration
	DataPerByte time.Duration

	// Drain bounds each STOP drain read.
	Drain time.Duration
}

// DefaultTimeouts returns the timeouts a freshly constructed Device uses.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Response:       3 * time.Second,
		PayloadFloor:   500 * time.Millisecond,
		PayloadPerByte: time.Millisecond,
		DataFloor:      500 * time.Millisecond,
		DataPerByte:    100 * time.Microsecond,
		Drain:          500 * time.Millisecond,
	}
}

func (t Timeouts) payload(size int) time.Duration {
	if d := time.Duration(size) * t.PayloadPerByte; d > t.PayloadFloor {
		return d
	}
	return t.PayloadFloor
}

func (t Timeouts) data(n int) time.Duration {
	return t.DataFloor + time.Duration(n)*t.DataPerByte
}

// drainChunkLen is sized so the drain read can swallow two full in-flight
// generation blocks and still capture the trailing ACK and its payload.
const drainChunkLen = qcc.MaxBlockSize*2 + qcc.StatusLen + 1

// command runs one QCC exchange: flush, write the frame, read the one-byte
// response code, then read the declared payload. STOP goes through the drain
// sub-protocol instead. The caller must hold d.mu.
//
// Returns the response payload (nil for zero-length responses) or an error
// wrapping ErrInvalidArgument, ErrComm, ErrRejected, or ErrDesync.
func (d *Device) command(cmd qcc.Command, payload []byte) ([]byte, error) {
	resp, ok := qcc.SuccessResponse(cmd)
	if !ok {
		return nil, fmt.Errorf("%w: opcode 0x%02X is not registered", ErrInvalidArgument, byte(cmd))
	}
	if d.closed {
		return nil, ErrClosed
	}

	if err := d.tr.Flush(); err != nil {
		return nil, fmt.Errorf("%w: flush: %w", ErrComm, err)
	}
	frame := qcc.BuildCommand(cmd, payload)
	if _, err := d.tr.Write(frame); err != nil {
		return nil, fmt.Errorf("%w: write command 0x%02X: %w", ErrComm, byte(cmd), err)
	}

	if cmd == qcc.CmdStop {
		return nil, d.stopDrain()
	}

	var code [1]byte
	n, err := d.readExact(code[:], d.timeouts.Response)
	if err != nil {
		return nil, fmt.Errorf("%w: read response code: %w", ErrComm, err)
	}
	if n == 0 {
		// Silence: a timeout is indistinguishable from a lost NACK.
		return nil, fmt.Errorf("%w: no response to command 0x%02X", ErrComm, byte(cmd))
	}

	switch code[0] {
	case byte(resp):
		size, _ := qcc.PayloadSize(resp)
		if size == 0 {
			return nil, nil
		}
		buf := make([]byte, size)
		n, err := d.readExact(buf, d.timeouts.payload(size))
		if err != nil {
			return nil, fmt.Errorf("%w: read payload: %w", ErrComm, err)
		}
		if n != size {
			return nil, fmt.Errorf("%w: payload for response 0x%02X: got %d of %d bytes", ErrComm, code[0], n, size)
		}
		return buf, nil
	case byte(qcc.RespNack):
		return nil, fmt.Errorf("%w: command 0x%02X", ErrRejected, byte(cmd))
	default:
		return nil, fmt.Errorf("%w: response byte 0x%02X to command 0x%02X", ErrDesync, code[0], byte(cmd))
	}
}

// stopDrain absorbs whatever continuous-mode data is still in flight after a
// STOP frame and looks for the ACK the device appends once its buffer is
// flushed. Because streamed bytes keep arriving while STOP travels, the ACK
// position is only known relative to the end of a bounded read: the marker
// byte sits StatusLen+1 bytes from the end of the chunk. A second attempt
// catches a second in-flight burst.
func (d *Device) stopDrain() error {
	chunk := make([]byte, drainChunkLen)
	for attempt := 0; attempt < d.drainAttempts; attempt++ {
		n, err := d.readExact(chunk, d.timeouts.Drain)
		if err != nil {
			return fmt.Errorf("%w: drain after stop: %w", ErrComm, err)
		}
		if n == 1 && chunk[0] == byte(qcc.RespNack) {
			return fmt.Errorf("%w: stop", ErrRejected)
		}
		if n < qcc.StatusLen+1 {
			return fmt.Errorf("%w: drained %d bytes after stop, need at least %d", ErrComm, n, qcc.StatusLen+1)
		}
		if chunk[n-1-qcc.StatusLen] == byte(qcc.RespAck) {
			return nil
		}
	}
	return fmt.Errorf("%w: no ack in drained stream after %d attempts", ErrComm, d.drainAttempts)
}

// readData performs the second-phase read of one-shot, signed, or continuous
// data. A short read is a failure, never a partial result. The caller must
// hold d.mu.
func (d *Device) readData(n int, timeout time.Duration) ([]byte, error) {
	buf := make([]byte, n)
	got, err := d.readExact(buf, timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: read data: %w", ErrComm, err)
	}
	if got != n {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrComm, n, got)
	}
	return buf, nil
}

// readExact fills buf from the transport until it is full or the timeout
// budget is spent, re-arming the transport deadline with the remaining
// budget on each pass. Returns how many bytes landed.
func (d *Device) readExact(buf []byte, timeout time.Duration) (int, error) {
	deadline := time.Now().Add(timeout)
	total := 0
	for total < len(buf) {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		if err := d.tr.SetReadTimeout(remaining); err != nil {
			return total, err
		}
		n, err := d.tr.Read(buf[total:])
		if err != nil {
			return total, err
		}
		if n == 0 {
			break // transport timeout, budget spent
		}
		total += n
	}
	return total, nil
}
