package qcc

import (
	"encoding/binary"
	"math"
)

// BuildCommand returns the wire frame for cmd: the opcode followed by the
// payload, if any. QCC frames carry no length prefix, checksum, or framing
// bytes — payload lengths are implied by the opcode.
func BuildCommand(cmd Command, payload []byte) []byte {
	frame := make([]byte, 0, 1+len(payload))
	frame = append(frame, byte(cmd))
	return append(frame, payload...)
}

// BuildStartOneShot returns a START frame requesting a bounded read of
// length bytes that terminates on its own.
func BuildStartOneShot(length uint16) []byte {
	payload := make([]byte, 3)
	payload[0] = 1 // one-shot mode
	binary.LittleEndian.PutUint16(payload[1:], length)
	return BuildCommand(CmdStart, payload)
}

// BuildStartContinuous returns a START frame opening an unbounded stream.
// The length field is ignored by the device in continuous mode and is sent
// as zero.
func BuildStartContinuous() []byte {
	return BuildCommand(CmdStart, []byte{0, 0, 0})
}

// BuildSignedRead returns a SIGNED_READ frame requesting length random
// bytes followed by the device's signature over them.
func BuildSignedRead(length uint16) []byte {
	payload := make([]byte, 2)
	binary.LittleEndian.PutUint16(payload, length)
	return BuildCommand(CmdSignedRead, payload)
}

// BuildReboot returns a REBOOT frame. The fixed magic marker keeps stray
// bytes on the wire from being taken for a reboot request.
func BuildReboot() []byte {
	return BuildCommand(CmdReboot, rebootMagic[:])
}

// BuildSetConfig returns a SET_CONFIG frame carrying the full serialized
// configuration block.
func BuildSetConfig(cfg DeviceConfig) []byte {
	return BuildCommand(CmdSetConfig, SerializeConfig(cfg))
}

// SerializeConfig encodes cfg into its fixed 12-byte wire form. It is the
// exact inverse of ParseConfig for every valid configuration.
func SerializeConfig(cfg DeviceConfig) []byte {
	out := make([]byte, ConfigLen)
	out[0] = byte(cfg.PostProcess)
	binary.LittleEndian.PutUint32(out[1:5], math.Float32bits(cfg.InitialLevel))
	out[5] = packConfigFlags(cfg)
	out[6] = cfg.NLSBits
	out[7] = cfg.HashInputSize
	binary.LittleEndian.PutUint16(out[8:10], cfg.BlockSize)
	binary.LittleEndian.PutUint16(out[10:12], cfg.AutocalibrationTarget)
	return out
}

func packConfigFlags(cfg DeviceConfig) byte {
	var b byte
	if cfg.StartupTest {
		b |= 1 << 0
	}
	if cfg.AutoCalibration {
		b |= 1 << 1
	}
	if cfg.RepetitionCount {
		b |= 1 << 2
	}
	if cfg.AdaptiveProportion {
		b |= 1 << 3
	}
	if cfg.BitCount {
		b |= 1 << 4
	}
	if cfg.GenerateOnError {
		b |= 1 << 5
	}
	return b
}
