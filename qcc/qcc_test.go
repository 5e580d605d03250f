package qcc

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksum8(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want byte
	}{
		{"empty", nil, 0xFF},
		{"single", []byte{0x01}, 0xFE},
		{"sums to ff", []byte{0x80, 0x7F}, 0x00},
		{"wraps mod 256", []byte{0xFF, 0x01}, 0xFF},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Checksum8(tc.data))
		})
	}
}

func TestBuildCommand(t *testing.T) {
	assert.Equal(t, []byte{0x01}, BuildCommand(CmdGetStatus, nil))
	assert.Equal(t, []byte{0x08, 0xAA, 0xBB}, BuildCommand(CmdSetConfig, []byte{0xAA, 0xBB}))
}

func TestBuildStart(t *testing.T) {
	assert.Equal(t, []byte{0x04, 0x01, 0x20, 0x00}, BuildStartOneShot(32))
	assert.Equal(t, []byte{0x04, 0x01, 0xFF, 0xFF}, BuildStartOneShot(65535))
	assert.Equal(t, []byte{0x04, 0x00, 0x00, 0x00}, BuildStartContinuous())
}

func TestBuildSignedRead(t *testing.T) {
	assert.Equal(t, []byte{0x51, 0x00, 0x01}, BuildSignedRead(256))
}

func TestBuildReboot(t *testing.T) {
	frame := BuildReboot()
	require.Len(t, frame, 3)
	assert.Equal(t, byte(CmdReboot), frame[0])
	// Magic marker must be stable across calls.
	assert.Equal(t, frame, BuildReboot())
}

func TestCommandTables(t *testing.T) {
	cases := []struct {
		cmd  Command
		resp Response
		size int
	}{
		{CmdGetStatus, RespAck, 5},
		{CmdStart, RespAck, 5},
		{CmdStop, RespAck, 5},
		{CmdGetConfig, RespConfig, 12},
		{CmdSetConfig, RespAck, 5},
		{CmdGetStatistics, RespStatistics, 30},
		{CmdReset, RespAck, 5},
		{CmdGetInfo, RespInfo, 56},
		{CmdSignedRead, RespSignedReadOK, 0},
		{CmdGetDevPubKey, RespDevPubKey, 64},
		{CmdReboot, RespReboot, 0},
		{CmdGetCertificate, RespCertificate, 64},
	}
	for _, tc := range cases {
		resp, ok := SuccessResponse(tc.cmd)
		require.True(t, ok, "command 0x%02X not registered", byte(tc.cmd))
		assert.Equal(t, tc.resp, resp)
		size, ok := PayloadSize(resp)
		require.True(t, ok, "response 0x%02X not registered", byte(resp))
		assert.Equal(t, tc.size, size)
	}

	size, ok := PayloadSize(RespNack)
	require.True(t, ok)
	assert.Equal(t, 0, size)

	_, ok = SuccessResponse(Command(0x7E))
	assert.False(t, ok)
	_, ok = PayloadSize(Response(0x7E))
	assert.False(t, ok)
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus([]byte{0x01, 0x40, 0x34, 0x00, 0x00})
	require.NoError(t, err)
	assert.True(t, st.Initialized)
	assert.False(t, st.StartupTestInProgress)
	assert.False(t, st.VoltageLow)
	assert.False(t, st.VoltageHigh)
	assert.False(t, st.VoltageUndefined)
	assert.False(t, st.BitCount)
	assert.False(t, st.RepetitionCount)
	assert.False(t, st.AdaptiveProportion)
	assert.Equal(t, uint32(13376), st.ReadyBytes)

	st, err = ParseStatus([]byte{0xFF, 0x00, 0x00, 0x00, 0x00})
	require.NoError(t, err)
	assert.True(t, st.Initialized)
	assert.True(t, st.StartupTestInProgress)
	assert.True(t, st.VoltageLow)
	assert.True(t, st.VoltageHigh)
	assert.True(t, st.VoltageUndefined)
	assert.True(t, st.BitCount)
	assert.True(t, st.RepetitionCount)
	assert.True(t, st.AdaptiveProportion)
}

func TestParseConfigLayout(t *testing.T) {
	data := []byte{
		0x00,                   // postprocess sha256
		0x00, 0x00, 0xC0, 0x3F, // initial level 1.5
		0x15,       // startup_test | repetition_count | bit_count
		0x03,       // n_lsbits
		0x20,       // hash input size 32
		0x00, 0x10, // block size 4096
		0xF4, 0x01, // autocalibration target 500
	}
	cfg, err := ParseConfig(data)
	require.NoError(t, err)
	assert.Equal(t, PostProcessSHA256, cfg.PostProcess)
	assert.InDelta(t, 1.5, cfg.InitialLevel, 1e-6)
	assert.True(t, cfg.StartupTest)
	assert.False(t, cfg.AutoCalibration)
	assert.True(t, cfg.RepetitionCount)
	assert.False(t, cfg.AdaptiveProportion)
	assert.True(t, cfg.BitCount)
	assert.False(t, cfg.GenerateOnError)
	assert.Equal(t, uint8(3), cfg.NLSBits)
	assert.Equal(t, uint8(32), cfg.HashInputSize)
	assert.Equal(t, uint16(4096), cfg.BlockSize)
	assert.Equal(t, uint16(500), cfg.AutocalibrationTarget)

	assert.Equal(t, data, SerializeConfig(cfg))
}

func TestConfigRoundTrip(t *testing.T) {
	cases := []DeviceConfig{
		{},
		{
			PostProcess:           PostProcessSHA256,
			InitialLevel:          0.75,
			StartupTest:           true,
			AutoCalibration:       true,
			RepetitionCount:       true,
			AdaptiveProportion:    true,
			BitCount:              true,
			GenerateOnError:       true,
			NLSBits:               8,
			HashInputSize:         64,
			BlockSize:             4096,
			AutocalibrationTarget: 65535,
		},
		{
			PostProcess:   PostProcessRawNoise,
			InitialLevel:  -3.25,
			BitCount:      true,
			NLSBits:       1,
			HashInputSize: 255,
			BlockSize:     1,
		},
		{
			PostProcess:           PostProcessRawSamples,
			InitialLevel:          1e-4,
			GenerateOnError:       true,
			AutocalibrationTarget: 1,
		},
	}
	for _, want := range cases {
		wire := SerializeConfig(want)
		require.Len(t, wire, ConfigLen)
		got, err := ParseConfig(wire)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestParseStatistics(t *testing.T) {
	data := make([]byte, StatisticsLen)
	binary.LittleEndian.PutUint64(data[0:8], 1<<40)
	binary.LittleEndian.PutUint32(data[8:12], 3)
	binary.LittleEndian.PutUint32(data[12:16], 5)
	binary.LittleEndian.PutUint32(data[16:20], 7)
	binary.LittleEndian.PutUint32(data[20:24], 250000)
	binary.LittleEndian.PutUint16(data[24:26], 2048)
	binary.LittleEndian.PutUint32(data[26:30], 0x3F000000) // 0.5

	st, err := ParseStatistics(data)
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<40), st.GeneratedBytes)
	assert.Equal(t, uint32(3), st.RepetitionFailures)
	assert.Equal(t, uint32(5), st.AdaptiveFailures)
	assert.Equal(t, uint32(7), st.BitCountFailures)
	assert.Equal(t, uint32(250000), st.Speed)
	assert.Equal(t, uint16(2048), st.SensorAverage)
	assert.InDelta(t, 0.5, st.LedLevel, 1e-6)
}

func TestParseInfo(t *testing.T) {
	data := make([]byte, InfoLen)
	binary.LittleEndian.PutUint32(data[0:4], 0x00010002)
	binary.LittleEndian.PutUint32(data[4:8], 0x00030004)
	copy(data[8:32], "QC0000000217")
	copy(data[32:56], "CICADA-QRNG-1.1")

	info, err := ParseInfo(data)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x00010002), info.CoreVersion)
	assert.Equal(t, uint32(0x00030004), info.FirmwareVersion)
	assert.Equal(t, "QC0000000217", info.Serial)
	assert.Equal(t, "CICADA-QRNG-1.1", info.HardwareInfo)
}

func TestParseInfoUnterminatedStrings(t *testing.T) {
	data := make([]byte, InfoLen)
	for i := 8; i < InfoLen; i++ {
		data[i] = 'A'
	}
	info, err := ParseInfo(data)
	require.NoError(t, err)
	// No NUL means the field fills its entire width.
	assert.Len(t, info.Serial, 24)
	assert.Len(t, info.HardwareInfo, 24)
}

func TestParseShortPayloads(t *testing.T) {
	_, err := ParseStatus(make([]byte, StatusLen-1))
	assert.ErrorIs(t, err, ErrShortPayload)
	_, err = ParseConfig(make([]byte, ConfigLen-1))
	assert.ErrorIs(t, err, ErrShortPayload)
	_, err = ParseStatistics(make([]byte, StatisticsLen-1))
	assert.ErrorIs(t, err, ErrShortPayload)
	_, err = ParseInfo(make([]byte, InfoLen-1))
	assert.ErrorIs(t, err, ErrShortPayload)
}

func TestParsersIgnoreTrailingBytes(t *testing.T) {
	status := append([]byte{0x01, 0x40, 0x34, 0x00, 0x00}, 0xDE, 0xAD)
	st, err := ParseStatus(status)
	require.NoError(t, err)
	assert.Equal(t, uint32(13376), st.ReadyBytes)

	cfg := SerializeConfig(DeviceConfig{PostProcess: PostProcessRawNoise, BlockSize: 512})
	parsed, err := ParseConfig(append(cfg, 0xFF, 0xFF, 0xFF))
	require.NoError(t, err)
	assert.Equal(t, uint16(512), parsed.BlockSize)
}

func TestParsePostProcess(t *testing.T) {
	for b, want := range map[byte]PostProcess{
		0: PostProcessSHA256,
		1: PostProcessRawNoise,
		2: PostProcessRawSamples,
	} {
		got, err := ParsePostProcess(b)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParsePostProcess(3)
	assert.ErrorIs(t, err, ErrUnknownPostProcess)

	_, err = ParseConfig(append([]byte{0x09}, make([]byte, ConfigLen-1)...))
	assert.ErrorIs(t, err, ErrUnknownPostProcess)
}
