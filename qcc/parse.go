package qcc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrShortPayload reports a payload shorter than the declared size for
	// its response code. Parsers never pad or truncate to compensate.
	ErrShortPayload = errors.New("qcc: payload shorter than declared size")

	// ErrUnknownPostProcess reports a postprocess byte outside the known
	// enumeration.
	ErrUnknownPostProcess = errors.New("qcc: unknown postprocess mode")
)

// ParseStatus decodes the 5-byte ACK payload. Extra trailing bytes are
// ignored; fewer than 5 is an error.
func ParseStatus(data []byte) (DeviceStatus, error) {
	if len(data) < StatusLen {
		return DeviceStatus{}, fmt.Errorf("%w: status needs %d bytes, got %d", ErrShortPayload, StatusLen, len(data))
	}
	flags := data[0]
	return DeviceStatus{
		Initialized:           flags&(1<<0) != 0,
		StartupTestInProgress: flags&(1<<1) != 0,
		VoltageLow:            flags&(1<<2) != 0,
		VoltageHigh:           flags&(1<<3) != 0,
		VoltageUndefined:      flags&(1<<4) != 0,
		BitCount:              flags&(1<<5) != 0,
		RepetitionCount:       flags&(1<<6) != 0,
		AdaptiveProportion:    flags&(1<<7) != 0,
		ReadyBytes:            binary.LittleEndian.Uint32(data[1:5]),
	}, nil
}

// ParseConfig decodes the 12-byte CONFIG payload. An unknown postprocess
// byte is an error.
func ParseConfig(data []byte) (DeviceConfig, error) {
	if len(data) < ConfigLen {
		return DeviceConfig{}, fmt.Errorf("%w: config needs %d bytes, got %d", ErrShortPayload, ConfigLen, len(data))
	}
	pp, err := ParsePostProcess(data[0])
	if err != nil {
		return DeviceConfig{}, err
	}
	flags := data[5]
	return DeviceConfig{
		PostProcess:           pp,
		InitialLevel:          math.Float32frombits(binary.LittleEndian.Uint32(data[1:5])),
		StartupTest:           flags&(1<<0) != 0,
		AutoCalibration:       flags&(1<<1) != 0,
		RepetitionCount:       flags&(1<<2) != 0,
		AdaptiveProportion:    flags&(1<<3) != 0,
		BitCount:              flags&(1<<4) != 0,
		GenerateOnError:       flags&(1<<5) != 0,
		NLSBits:               data[6],
		HashInputSize:         data[7],
		BlockSize:             binary.LittleEndian.Uint16(data[8:10]),
		AutocalibrationTarget: binary.LittleEndian.Uint16(data[10:12]),
	}, nil
}

// ParseStatistics decodes the 30-byte STATISTICS payload.
func ParseStatistics(data []byte) (DeviceStatistics, error) {
	if len(data) < StatisticsLen {
		return DeviceStatistics{}, fmt.Errorf("%w: statistics needs %d bytes, got %d", ErrShortPayload, StatisticsLen, len(data))
	}
	return DeviceStatistics{
		GeneratedBytes:     binary.LittleEndian.Uint64(data[0:8]),
		RepetitionFailures: binary.LittleEndian.Uint32(data[8:12]),
		AdaptiveFailures:   binary.LittleEndian.Uint32(data[12:16]),
		BitCountFailures:   binary.LittleEndian.Uint32(data[16:20]),
		Speed:              binary.LittleEndian.Uint32(data[20:24]),
		SensorAverage:      binary.LittleEndian.Uint16(data[24:26]),
		LedLevel:           math.Float32frombits(binary.LittleEndian.Uint32(data[26:30])),
	}, nil
}

// ParseInfo decodes the 56-byte INFO payload. The serial and hardware-info
// fields are NUL-terminated within their fixed 24-byte widths; a field with
// no NUL fills the entire width.
func ParseInfo(data []byte) (DeviceInfo, error) {
	if len(data) < InfoLen {
		return DeviceInfo{}, fmt.Errorf("%w: info needs %d bytes, got %d", ErrShortPayload, InfoLen, len(data))
	}
	return DeviceInfo{
		CoreVersion:     binary.LittleEndian.Uint32(data[0:4]),
		FirmwareVersion: binary.LittleEndian.Uint32(data[4:8]),
		Serial:          fixedString(data[8 : 8+infoStringLen]),
		HardwareInfo:    fixedString(data[8+infoStringLen : 8+2*infoStringLen]),
	}, nil
}

// fixedString interprets b as a NUL-terminated string in a fixed-width
// field. Without a NUL the whole field is the value.
func fixedString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
