package qcserial

import (
	"fmt"
	"runtime"
	"time"

	"go.bug.st/serial"

	"github.com/qcicada/qcicada-go/qcc"
)

// BaudRate is the fixed line rate of the QCicada USB bridge.
const BaudRate = 1_000_000

const (
	wakeSettle  = 500 * time.Millisecond
	wakeTimeout = 300 * time.Millisecond
	openSettle  = 100 * time.Millisecond

	// The macOS FTDI driver drops bytes with read timeouts below half a
	// second and holds small writes in its buffer until pushed.
	darwinMinReadTimeout = 500 * time.Millisecond
	darwinWriteSettle    = 50 * time.Millisecond
)

// Port is a serial connection to a QCicada device. It implements
// qcicada.Transport.
type Port struct {
	port   serial.Port
	name   string
	darwin bool
}

// Open opens the named serial port at the device line rate and runs the
// wake sequence: a STOP opcode halts any continuous stream left over from a
// previous session, then stale bytes are drained so the first command starts
// on a clean line.
func Open(name string) (*Port, error) {
	mode := &serial.Mode{
		BaudRate: BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	sp, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("qcserial: open %s: %w", name, err)
	}
	p := &Port{port: sp, name: name, darwin: runtime.GOOS == "darwin"}
	if err := p.wake(); err != nil {
		sp.Close()
		return nil, fmt.Errorf("qcserial: wake %s: %w", name, err)
	}
	return p, nil
}

// Name returns the port name this connection was opened on.
func (p *Port) Name() string { return p.name }

func (p *Port) wake() error {
	if _, err := p.Write([]byte{byte(qcc.CmdStop)}); err != nil {
		return err
	}
	time.Sleep(wakeSettle)
	if err := p.SetReadTimeout(wakeTimeout); err != nil {
		return err
	}
	buf := make([]byte, qcc.MaxBlockSize)
	for {
		n, err := p.port.Read(buf)
		if err != nil || n == 0 {
			break
		}
	}
	if err := p.port.ResetInputBuffer(); err != nil {
		return err
	}
	time.Sleep(openSettle)
	return nil
}

// Write sends data to the device.
func (p *Port) Write(data []byte) (int, error) {
	n, err := p.port.Write(data)
	if err != nil {
		return n, err
	}
	if p.darwin {
		if err := p.port.Drain(); err != nil {
			return n, err
		}
		time.Sleep(darwinWriteSettle)
	}
	return n, nil
}

// Read reads whatever the device has sent, up to len(data) bytes. It
// returns n == 0 with a nil error when the read timeout elapses first.
func (p *Port) Read(data []byte) (int, error) {
	return p.port.Read(data)
}

// SetReadTimeout bounds how long subsequent Reads wait for data.
func (p *Port) SetReadTimeout(d time.Duration) error {
	if p.darwin && d < darwinMinReadTimeout {
		d = darwinMinReadTimeout
	}
	return p.port.SetReadTimeout(d)
}

// Flush pushes pending output to the device and discards unread input.
func (p *Port) Flush() error {
	if err := p.port.Drain(); err != nil {
		return err
	}
	return p.port.ResetInputBuffer()
}

// Close releases the serial port.
func (p *Port) Close() error {
	return p.port.Close()
}
