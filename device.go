package qcicada

import (
	"fmt"
	"math"
	"sync"

	"github.com/qcicada/qcicada-go/qcc"
	"github.com/qcicada/qcicada-go/qccert"
)

// Device is the typed interface to one QCicada QRNG. It owns its Transport
// exclusively and serializes every command exchange — including the data
// phase of one-shot, signed, and continuous reads — behind one mutex, so a
// Device is safe for concurrent use. The protocol itself stays strictly
// half-duplex: responses carry no correlation IDs, so exchanges must never
// interleave on the wire.
type Device struct {
	mu            sync.Mutex
	tr            Transport
	timeouts      Timeouts
	drainAttempts int
	closed        bool
}

// NewDevice wraps an open transport in a Device with default timeouts.
func NewDevice(tr Transport) *Device {
	return &Device{
		tr:            tr,
		timeouts:      DefaultTimeouts(),
		drainAttempts: 2,
	}
}

// SetTimeouts replaces the session timeouts.
func (d *Device) SetTimeouts(t Timeouts) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.timeouts = t
}

// SetDrainAttempts sets how many STOP drain reads are tried before giving
// up. The default of 2 absorbs one extra in-flight burst; raise it on links
// with heavier streaming backlogs.
func (d *Device) SetDrainAttempts(n int) {
	if n < 1 {
		n = 1
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.drainAttempts = n
}

// GetInfo reads the device identification: versions, serial string, and
// hardware info string.
func (d *Device) GetInfo() (qcc.DeviceInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	data, err := d.command(qcc.CmdGetInfo, nil)
	if err != nil {
		return qcc.DeviceInfo{}, fmt.Errorf("get info: %w", err)
	}
	info, err := qcc.ParseInfo(data)
	if err != nil {
		return qcc.DeviceInfo{}, fmt.Errorf("get info: %w", err)
	}
	return info, nil
}

// GetStatus reads the current device status flags and ready-byte count.
func (d *Device) GetStatus() (qcc.DeviceStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	data, err := d.command(qcc.CmdGetStatus, nil)
	if err != nil {
		return qcc.DeviceStatus{}, fmt.Errorf("get status: %w", err)
	}
	status, err := qcc.ParseStatus(data)
	if err != nil {
		return qcc.DeviceStatus{}, fmt.Errorf("get status: %w", err)
	}
	return status, nil
}

// GetConfig reads the device configuration block.
func (d *Device) GetConfig() (qcc.DeviceConfig, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	data, err := d.command(qcc.CmdGetConfig, nil)
	if err != nil {
		return qcc.DeviceConfig{}, fmt.Errorf("get config: %w", err)
	}
	cfg, err := qcc.ParseConfig(data)
	if err != nil {
		return qcc.DeviceConfig{}, fmt.Errorf("get config: %w", err)
	}
	return cfg, nil
}

// SetConfig writes a full configuration block. The protocol has no partial
// update; use GetConfig, modify, SetConfig.
func (d *Device) SetConfig(cfg qcc.DeviceConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.command(qcc.CmdSetConfig, qcc.SerializeConfig(cfg)); err != nil {
		return fmt.Errorf("set config: %w", err)
	}
	return nil
}

// SetPostprocess changes only the post-processing mode, preserving the rest
// of the configuration via read-modify-write. The two round trips are not
// atomic: a concurrent external config change between them is overwritten
// (last write wins).
func (d *Device) SetPostprocess(mode qcc.PostProcess) error {
	cfg, err := d.GetConfig()
	if err != nil {
		return err
	}
	cfg.PostProcess = mode
	return d.SetConfig(cfg)
}

// GetStatistics reads the generation statistics kept since the last reset.
func (d *Device) GetStatistics() (qcc.DeviceStatistics, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	data, err := d.command(qcc.CmdGetStatistics, nil)
	if err != nil {
		return qcc.DeviceStatistics{}, fmt.Errorf("get statistics: %w", err)
	}
	stats, err := qcc.ParseStatistics(data)
	if err != nil {
		return qcc.DeviceStatistics{}, fmt.Errorf("get statistics: %w", err)
	}
	return stats, nil
}

// Random reads n random bytes using one-shot mode. n must be between 1 and
// 65535; n = 0 returns an empty slice without touching the device at all.
func (d *Device) Random(n int) ([]byte, error) {
	if n == 0 {
		return []byte{}, nil
	}
	if n < 1 || n > qcc.MaxReadLen {
		return nil, fmt.Errorf("%w: n must be 1-%d, got %d", ErrInvalidArgument, qcc.MaxReadLen, n)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	frame := qcc.BuildStartOneShot(uint16(n))
	if _, err := d.command(qcc.CmdStart, frame[1:]); err != nil {
		return nil, fmt.Errorf("start one-shot read: %w", err)
	}
	data, err := d.readData(n, d.timeouts.data(n))
	if err != nil {
		return nil, fmt.Errorf("one-shot read: %w", err)
	}
	return data, nil
}

// FillBytes fills buf with random bytes, chunking reads so callers are not
// bound by the 65535-byte protocol limit.
func (d *Device) FillBytes(buf []byte) error {
	offset := 0
	for offset < len(buf) {
		chunk := len(buf) - offset
		if chunk > qcc.MaxReadLen {
			chunk = qcc.MaxReadLen
		}
		data, err := d.Random(chunk)
		if err != nil {
			return err
		}
		copy(buf[offset:], data)
		offset += len(data)
	}
	return nil
}

// Read implements io.Reader. Each call performs at most one one-shot read of
// up to 65535 bytes, so large consumers should wrap the Device in io.ReadFull
// or bufio.
func (d *Device) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	chunk := len(p)
	if chunk > qcc.MaxReadLen {
		chunk = qcc.MaxReadLen
	}
	data, err := d.Random(chunk)
	if err != nil {
		return 0, err
	}
	return copy(p, data), nil
}

// SignedRead reads n random bytes together with the device's ECDSA signature
// over them. n must be between 1 and 65535. The signature is not checked
// here; use SignedReadVerified for that.
func (d *Device) SignedRead(n int) (qcc.SignedRead, error) {
	if n < 1 || n > qcc.MaxReadLen {
		return qcc.SignedRead{}, fmt.Errorf("%w: n must be 1-%d, got %d", ErrInvalidArgument, qcc.MaxReadLen, n)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	frame := qcc.BuildSignedRead(uint16(n))
	if _, err := d.command(qcc.CmdSignedRead, frame[1:]); err != nil {
		return qcc.SignedRead{}, fmt.Errorf("start signed read: %w", err)
	}
	buf, err := d.readData(n+qcc.SignatureLen, d.timeouts.data(n))
	if err != nil {
		return qcc.SignedRead{}, fmt.Errorf("signed read: %w", err)
	}
	var sr qcc.SignedRead
	sr.Data = buf[:n]
	copy(sr.Signature[:], buf[n:])
	return sr, nil
}

// SignedReadVerified performs a signed read and verifies the signature over
// the returned data against devicePubKey (64 raw bytes, x||y). A signature
// that does not verify is an ErrVerification, distinct from any
// communication failure.
func (d *Device) SignedReadVerified(n int, devicePubKey []byte) (qcc.SignedRead, error) {
	if len(devicePubKey) != qcc.KeyLen {
		return qcc.SignedRead{}, fmt.Errorf("%w: device public key must be %d bytes, got %d", ErrInvalidArgument, qcc.KeyLen, len(devicePubKey))
	}
	sr, err := d.SignedRead(n)
	if err != nil {
		return qcc.SignedRead{}, err
	}
	ok, err := qccert.VerifySignature(devicePubKey, sr.Data, sr.Signature[:])
	if err != nil {
		return qcc.SignedRead{}, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	if !ok {
		return qcc.SignedRead{}, fmt.Errorf("%w: signed read signature", ErrVerification)
	}
	return sr, nil
}

// StartContinuous switches the device into continuous generation. Stream
// data with ReadContinuous and end the mode with Stop.
func (d *Device) StartContinuous() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	frame := qcc.BuildStartContinuous()
	if _, err := d.command(qcc.CmdStart, frame[1:]); err != nil {
		return fmt.Errorf("start continuous mode: %w", err)
	}
	return nil
}

// ReadContinuous reads exactly n bytes from an active continuous stream.
func (d *Device) ReadContinuous(n int) ([]byte, error) {
	if n == 0 {
		return []byte{}, nil
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: n must be positive, got %d", ErrInvalidArgument, n)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	data, err := d.readData(n, d.timeouts.data(n))
	if err != nil {
		return nil, fmt.Errorf("continuous read: %w", err)
	}
	return data, nil
}

// Stop halts any active generation. It is safe to call in any mode; the
// drain logic absorbs whatever streamed data is still in flight before
// locating the ACK.
func (d *Device) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.command(qcc.CmdStop, nil); err != nil {
		return fmt.Errorf("stop: %w", err)
	}
	return nil
}

// GetDevPubKey retrieves the device's ECDSA P-256 public key, 64 raw bytes
// (x||y). The key is as-claimed; GetVerifiedPubKey checks it against a CA.
func (d *Device) GetDevPubKey() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	data, err := d.command(qcc.CmdGetDevPubKey, nil)
	if err != nil {
		return nil, fmt.Errorf("get device public key: %w", err)
	}
	return data, nil
}

// GetDevCertificate retrieves the CA's signature over the device identity,
// 64 raw bytes (r||s).
func (d *Device) GetDevCertificate() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	data, err := d.command(qcc.CmdGetCertificate, nil)
	if err != nil {
		return nil, fmt.Errorf("get device certificate: %w", err)
	}
	return data, nil
}

// GetVerifiedPubKey fetches the device's claimed identity (info, public key,
// certificate) and validates the certificate chain against caPubKey — the
// caller's own trust anchor, never something read from the device. The
// device public key is returned only when the full chain checks out.
func (d *Device) GetVerifiedPubKey(caPubKey []byte) ([]byte, error) {
	if len(caPubKey) != qcc.KeyLen {
		return nil, fmt.Errorf("%w: CA public key must be %d bytes, got %d", ErrInvalidArgument, qcc.KeyLen, len(caPubKey))
	}

	info, err := d.GetInfo()
	if err != nil {
		return nil, err
	}
	devPubKey, err := d.GetDevPubKey()
	if err != nil {
		return nil, err
	}
	certificate, err := d.GetDevCertificate()
	if err != nil {
		return nil, err
	}

	major, minor, ok := qccert.ParseHwVersion(info.HardwareInfo)
	if !ok || major < 0 || major > math.MaxUint8 || minor < 0 || minor > math.MaxUint8 {
		return nil, fmt.Errorf("%w: cannot parse hardware version from %q", ErrVerification, info.HardwareInfo)
	}
	serial, ok := qccert.ParseSerialInt(info.Serial)
	if !ok || serial < 0 || int64(serial) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: cannot parse serial number from %q", ErrVerification, info.Serial)
	}

	valid, err := qccert.VerifyCertificate(caPubKey, devPubKey, certificate, uint8(major), uint8(minor), uint32(serial))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	if !valid {
		return nil, fmt.Errorf("%w: device certificate", ErrVerification)
	}
	return devPubKey, nil
}

// Reset restarts the device's startup test and clears its statistics.
func (d *Device) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.command(qcc.CmdReset, nil); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return nil
}

// Reboot restarts the device. The transport usually drops before any
// acknowledgment arrives, so a failed write or a silent response is normal
// here and not reported as an error. Reopen the connection afterwards.
func (d *Device) Reboot() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if err := d.tr.Flush(); err != nil {
		return fmt.Errorf("%w: flush: %w", ErrComm, err)
	}
	frame := qcc.BuildReboot()
	_, _ = d.tr.Write(frame)
	_ = d.tr.SetReadTimeout(d.timeouts.DataFloor)
	var b [1]byte
	_, _ = d.tr.Read(b[:])
	return nil
}

// Close releases the underlying transport. Every later operation fails with
// ErrClosed.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.tr.Close()
}
