package qcsim

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/qcicada/qcicada-go/qcc"
	"github.com/qcicada/qcicada-go/qccert"
)

// Identity reported by every simulated device.
const (
	SerialNumber = "QC000217"
	HardwareInfo = "CICADA-QRNG-1.2"

	hwMajor   = 1
	hwMinor   = 2
	serialInt = 217

	coreVersion     = 0x0001_0004
	firmwareVersion = 0x0002_0001
)

// stopTail is how many in-flight stream bytes a STOP still delivers ahead of
// its acknowledgement when continuous mode is active.
const stopTail = 192

var errClosed = errors.New("qcsim: simulator closed")

// Simulator is an in-memory QCicada device. It implements qcicada.Transport:
// command frames written to it are answered through Read exactly as the
// hardware answers on the serial line, including the raw stream of continuous
// mode. Output bytes are drawn from a seeded generator, so two simulators
// with the same seed produce the same random data. The device and CA key
// pairs are generated fresh per simulator.
//
// A Simulator is safe for concurrent use, though the command protocol itself
// assumes one exchange at a time, which qcicada.Device enforces.
type Simulator struct {
	mu  sync.Mutex
	rng *mathrand.Rand

	deviceKey   *ecdsa.PrivateKey
	caKey       *ecdsa.PrivateKey
	devicePub   []byte
	certificate []byte

	config qcc.DeviceConfig
	stats  qcc.DeviceStatistics

	pending   bytes.Buffer // partial command frames from the host
	inbox     bytes.Buffer // response bytes waiting to be read
	streaming bool
	closed    bool
}

// New creates a simulator whose random output is determined by seed.
func New(seed int64) (*Simulator, error) {
	deviceKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("qcsim: device key: %w", err)
	}
	caKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("qcsim: ca key: %w", err)
	}

	s := &Simulator{
		rng:       mathrand.New(mathrand.NewSource(seed)),
		deviceKey: deviceKey,
		caKey:     caKey,
		devicePub: rawPublicKey(&deviceKey.PublicKey),
		config:    defaultConfig(),
		stats:     freshStatistics(),
	}

	certData, err := qccert.BuildCertificateData(hwMajor, hwMinor, serialInt, s.devicePub)
	if err != nil {
		return nil, fmt.Errorf("qcsim: certificate data: %w", err)
	}
	s.certificate, err = signRaw(caKey, certData)
	if err != nil {
		return nil, fmt.Errorf("qcsim: certificate: %w", err)
	}
	return s, nil
}

// CAPublicKey returns the raw 64-byte public key of the simulator's CA, for
// verifying the device certificate.
func (s *Simulator) CAPublicKey() []byte {
	return append([]byte(nil), rawPublicKey(&s.caKey.PublicKey)...)
}

// Info returns the identity the simulator reports over GET_INFO.
func (s *Simulator) Info() qcc.DeviceInfo {
	return qcc.DeviceInfo{
		CoreVersion:     coreVersion,
		FirmwareVersion: firmwareVersion,
		Serial:          SerialNumber,
		HardwareInfo:    HardwareInfo,
	}
}

// Streaming reports whether continuous mode is active.
func (s *Simulator) Streaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streaming
}

// Write accepts command frames from the host. Responses become available on
// Read as soon as a complete frame has arrived.
func (s *Simulator) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, errClosed
	}
	s.pending.Write(p)
	s.dispatch()
	return len(p), nil
}

// Read hands out queued response bytes. During continuous mode with no
// response pending it fills p with stream data; otherwise an empty line
// reads as n == 0 with a nil error, the transport's timeout signal.
func (s *Simulator) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, errClosed
	}
	if s.inbox.Len() > 0 {
		return s.inbox.Read(p)
	}
	if s.streaming && len(p) > 0 {
		s.rng.Read(p)
		s.stats.GeneratedBytes += uint64(len(p))
		return len(p), nil
	}
	return 0, nil
}

// SetReadTimeout is a no-op: the simulator answers immediately or not at all.
func (s *Simulator) SetReadTimeout(time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	return nil
}

// Flush discards response bytes the host has not read yet.
func (s *Simulator) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	s.inbox.Reset()
	return nil
}

// Close shuts the simulator down. Further calls fail.
func (s *Simulator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// dispatch consumes complete command frames from the pending buffer. Callers
// hold s.mu.
func (s *Simulator) dispatch() {
	for {
		buf := s.pending.Bytes()
		if len(buf) == 0 {
			return
		}
		need, known := commandLen(qcc.Command(buf[0]))
		if !known {
			s.pending.Next(1)
			s.nack()
			continue
		}
		if len(buf) < need {
			return
		}
		frame := make([]byte, need)
		copy(frame, buf[:need])
		s.pending.Next(need)
		s.handle(frame)
	}
}

// commandLen gives the full frame length for an opcode, including the opcode
// byte itself.
func commandLen(c qcc.Command) (int, bool) {
	switch c {
	case qcc.CmdGetStatus, qcc.CmdStop, qcc.CmdGetConfig, qcc.CmdGetStatistics,
		qcc.CmdReset, qcc.CmdGetInfo, qcc.CmdGetDevPubKey, qcc.CmdGetCertificate:
		return 1, true
	case qcc.CmdStart:
		return 4, true
	case qcc.CmdSignedRead:
		return 3, true
	case qcc.CmdSetConfig:
		return 1 + qcc.ConfigLen, true
	case qcc.CmdReboot:
		return 3, true
	}
	return 0, false
}

func (s *Simulator) handle(frame []byte) {
	switch qcc.Command(frame[0]) {
	case qcc.CmdGetStatus:
		s.ack()

	case qcc.CmdStart:
		mode := frame[1]
		n := int(binary.LittleEndian.Uint16(frame[2:4]))
		switch mode {
		case 0: // continuous
			s.streaming = true
			s.ack()
		case 1: // one-shot
			s.ack()
			s.emitRandom(n)
		default:
			s.nack()
		}

	case qcc.CmdStop:
		if s.streaming {
			s.streaming = false
			s.emitRandom(stopTail)
		}
		s.ack()

	case qcc.CmdGetConfig:
		s.respond(qcc.RespConfig, qcc.SerializeConfig(s.config))

	case qcc.CmdSetConfig:
		cfg, err := qcc.ParseConfig(frame[1:])
		if err != nil {
			s.nack()
			return
		}
		s.config = cfg
		s.ack()

	case qcc.CmdGetStatistics:
		s.respond(qcc.RespStatistics, encodeStatistics(s.stats))

	case qcc.CmdReset:
		s.streaming = false
		s.config = defaultConfig()
		s.stats = freshStatistics()
		s.ack()

	case qcc.CmdGetInfo:
		s.respond(qcc.RespInfo, encodeInfo())

	case qcc.CmdSignedRead:
		n := int(binary.LittleEndian.Uint16(frame[1:3]))
		if n == 0 {
			s.nack()
			return
		}
		data := make([]byte, n)
		s.rng.Read(data)
		s.stats.GeneratedBytes += uint64(n)
		sig, err := signRaw(s.deviceKey, data)
		if err != nil {
			s.nack()
			return
		}
		s.inbox.WriteByte(byte(qcc.RespSignedReadOK))
		s.inbox.Write(data)
		s.inbox.Write(sig)

	case qcc.CmdGetDevPubKey:
		s.respond(qcc.RespDevPubKey, s.devicePub)

	case qcc.CmdReboot:
		if !bytes.Equal(frame, qcc.BuildReboot()) {
			s.nack()
			return
		}
		s.streaming = false
		s.config = defaultConfig()
		s.stats = freshStatistics()
		s.inbox.Reset()
		s.inbox.WriteByte(byte(qcc.RespReboot))

	case qcc.CmdGetCertificate:
		s.respond(qcc.RespCertificate, s.certificate)
	}
}

func (s *Simulator) ack() {
	s.respond(qcc.RespAck, encodeStatus())
}

func (s *Simulator) nack() {
	s.inbox.WriteByte(byte(qcc.RespNack))
}

func (s *Simulator) respond(code qcc.Response, payload []byte) {
	s.inbox.WriteByte(byte(code))
	s.inbox.Write(payload)
}

// emitRandom queues n generator bytes as raw data after a response.
func (s *Simulator) emitRandom(n int) {
	if n <= 0 {
		return
	}
	data := make([]byte, n)
	s.rng.Read(data)
	s.inbox.Write(data)
	s.stats.GeneratedBytes += uint64(n)
}

func defaultConfig() qcc.DeviceConfig {
	return qcc.DeviceConfig{
		PostProcess:           qcc.PostProcessSHA256,
		InitialLevel:          1.0,
		StartupTest:           true,
		AutoCalibration:       true,
		RepetitionCount:       true,
		AdaptiveProportion:    true,
		BitCount:              true,
		NLSBits:               4,
		HashInputSize:         64,
		BlockSize:             qcc.MaxBlockSize,
		AutocalibrationTarget: 512,
	}
}

func freshStatistics() qcc.DeviceStatistics {
	return qcc.DeviceStatistics{
		Speed:         248_000,
		SensorAverage: 512,
		LedLevel:      1.45,
	}
}

func encodeStatus() []byte {
	out := make([]byte, qcc.StatusLen)
	out[0] = 0x01 // initialized, no faults
	binary.LittleEndian.PutUint32(out[1:], qcc.MaxReadLen)
	return out
}

func encodeInfo() []byte {
	out := make([]byte, qcc.InfoLen)
	binary.LittleEndian.PutUint32(out[0:4], coreVersion)
	binary.LittleEndian.PutUint32(out[4:8], firmwareVersion)
	copy(out[8:32], SerialNumber)
	copy(out[32:56], HardwareInfo)
	return out
}

func encodeStatistics(st qcc.DeviceStatistics) []byte {
	out := make([]byte, qcc.StatisticsLen)
	binary.LittleEndian.PutUint64(out[0:8], st.GeneratedBytes)
	binary.LittleEndian.PutUint32(out[8:12], st.RepetitionFailures)
	binary.LittleEndian.PutUint32(out[12:16], st.AdaptiveFailures)
	binary.LittleEndian.PutUint32(out[16:20], st.BitCountFailures)
	binary.LittleEndian.PutUint32(out[20:24], st.Speed)
	binary.LittleEndian.PutUint16(out[24:26], st.SensorAverage)
	binary.LittleEndian.PutUint32(out[26:30], math.Float32bits(st.LedLevel))
	return out
}

func rawPublicKey(pub *ecdsa.PublicKey) []byte {
	return elliptic.Marshal(elliptic.P256(), pub.X, pub.Y)[1:]
}

func signRaw(key *ecdsa.PrivateKey, message []byte) ([]byte, error) {
	digest := sha256.Sum256(message)
	r, v, err := ecdsa.Sign(rand.Reader, key, digest[:])
	if err != nil {
		return nil, err
	}
	sig := make([]byte, qcc.SignatureLen)
	r.FillBytes(sig[:qcc.SignatureLen/2])
	v.FillBytes(sig[qcc.SignatureLen/2:])
	return sig, nil
}
