package qcc

import "fmt"

// PostProcess selects the conditioning the device applies to raw entropy
// samples before output.
type PostProcess byte

const (
	PostProcessSHA256     PostProcess = 0 // SHA-256 conditioned output
	PostProcessRawNoise   PostProcess = 1 // unconditioned noise samples
	PostProcessRawSamples PostProcess = 2 // raw ADC samples
)

// ParsePostProcess converts a wire byte into a PostProcess value. Unknown
// values are an error, never mapped to a default.
func ParsePostProcess(b byte) (PostProcess, error) {
	switch p := PostProcess(b); p {
	case PostProcessSHA256, PostProcessRawNoise, PostProcessRawSamples:
		return p, nil
	default:
		return 0, fmt.Errorf("%w: 0x%02X", ErrUnknownPostProcess, b)
	}
}

func (p PostProcess) String() string {
	switch p {
	case PostProcessSHA256:
		return "sha256"
	case PostProcessRawNoise:
		return "raw-noise"
	case PostProcessRawSamples:
		return "raw-samples"
	default:
		return fmt.Sprintf("postprocess(0x%02X)", byte(p))
	}
}

// DeviceStatus is the 5-byte ACK payload: one flag byte followed by the
// number of conditioned bytes ready for immediate reading.
type DeviceStatus struct {
	Initialized           bool // bit 0
	StartupTestInProgress bool // bit 1
	VoltageLow            bool // bit 2
	VoltageHigh           bool // bit 3
	VoltageUndefined      bool // bit 4
	BitCount              bool // bit 5, bit-count health test tripped
	RepetitionCount       bool // bit 6, repetition-count health test tripped
	AdaptiveProportion    bool // bit 7, adaptive-proportion health test tripped
	ReadyBytes            uint32
}

// DeviceConfig is the device's 12-byte configuration block. The protocol has
// no partial update: changing one field means reading the full config,
// altering the field, and writing the whole block back.
type DeviceConfig struct {
	PostProcess  PostProcess
	InitialLevel float32

	// Flag byte, bits 0..5.
	StartupTest        bool
	AutoCalibration    bool
	RepetitionCount    bool
	AdaptiveProportion bool
	BitCount           bool
	GenerateOnError    bool

	NLSBits               uint8
	HashInputSize         uint8
	BlockSize             uint16
	AutocalibrationTarget uint16
}

// DeviceStatistics is the 30-byte STATISTICS payload: lifetime generation
// counter, health-test failure counters, output speed in bits/s, sensor
// interface average, and the LED control level.
type DeviceStatistics struct {
	GeneratedBytes     uint64
	RepetitionFailures uint32
	AdaptiveFailures   uint32
	BitCountFailures   uint32
	Speed              uint32
	SensorAverage      uint16
	LedLevel           float32
}

// DeviceInfo is the 56-byte INFO payload. Serial and HardwareInfo are
// NUL-padded on the wire; parsing strips the padding.
type DeviceInfo struct {
	CoreVersion     uint32
	FirmwareVersion uint32
	Serial          string
	HardwareInfo    string
}

// SignedRead is the result of a SIGNED_READ: the requested random bytes plus
// the device's raw r||s signature over them.
type SignedRead struct {
	Data      []byte
	Signature [SignatureLen]byte
}
