package qcsim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qcicada "github.com/qcicada/qcicada-go"
	"github.com/qcicada/qcicada-go/qcc"
)

func newSimDevice(t *testing.T, seed int64) (*Simulator, *qcicada.Device) {
	t.Helper()
	sim, err := New(seed)
	require.NoError(t, err)
	dev := qcicada.NewDevice(sim)
	t.Cleanup(func() { dev.Close() })
	return sim, dev
}

func TestDeviceIdentity(t *testing.T) {
	sim, dev := newSimDevice(t, 1)

	info, err := dev.GetInfo()
	require.NoError(t, err)
	assert.Equal(t, sim.Info(), info)
	assert.Equal(t, SerialNumber, info.Serial)
	assert.Equal(t, HardwareInfo, info.HardwareInfo)
}

func TestDeviceStatus(t *testing.T) {
	_, dev := newSimDevice(t, 1)

	st, err := dev.GetStatus()
	require.NoError(t, err)
	assert.True(t, st.Initialized)
	assert.False(t, st.VoltageLow)
	assert.Equal(t, uint32(qcc.MaxReadLen), st.ReadyBytes)
}

func TestRandomIsSeedDeterministic(t *testing.T) {
	_, devA := newSimDevice(t, 42)
	_, devB := newSimDevice(t, 42)
	_, devC := newSimDevice(t, 43)

	a, err := devA.Random(64)
	require.NoError(t, err)
	b, err := devB.Random(64)
	require.NoError(t, err)
	c, err := devC.Random(64)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestRandomAdvancesStream(t *testing.T) {
	_, dev := newSimDevice(t, 7)

	first, err := dev.Random(32)
	require.NoError(t, err)
	second, err := dev.Random(32)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestStatisticsCountGeneratedBytes(t *testing.T) {
	_, dev := newSimDevice(t, 7)

	before, err := dev.GetStatistics()
	require.NoError(t, err)
	require.Zero(t, before.GeneratedBytes)
	assert.NotZero(t, before.Speed)

	_, err = dev.Random(1000)
	require.NoError(t, err)

	after, err := dev.GetStatistics()
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), after.GeneratedBytes)
}

func TestConfigRoundTrip(t *testing.T) {
	_, dev := newSimDevice(t, 7)

	cfg, err := dev.GetConfig()
	require.NoError(t, err)
	assert.Equal(t, qcc.PostProcessSHA256, cfg.PostProcess)
	assert.Equal(t, uint16(qcc.MaxBlockSize), cfg.BlockSize)

	require.NoError(t, dev.SetPostprocess(qcc.PostProcessRawNoise))

	got, err := dev.GetConfig()
	require.NoError(t, err)
	assert.Equal(t, qcc.PostProcessRawNoise, got.PostProcess)
	// Everything but the postprocess selector must be untouched.
	got.PostProcess = cfg.PostProcess
	assert.Equal(t, cfg, got)
}

func TestResetRestoresDefaults(t *testing.T) {
	_, dev := newSimDevice(t, 7)

	require.NoError(t, dev.SetPostprocess(qcc.PostProcessRawSamples))
	require.NoError(t, dev.Reset())

	cfg, err := dev.GetConfig()
	require.NoError(t, err)
	assert.Equal(t, qcc.PostProcessSHA256, cfg.PostProcess)

	stats, err := dev.GetStatistics()
	require.NoError(t, err)
	assert.Zero(t, stats.GeneratedBytes)
}

func TestSignedReadVerifies(t *testing.T) {
	_, dev := newSimDevice(t, 11)

	pub, err := dev.GetDevPubKey()
	require.NoError(t, err)
	require.Len(t, pub, qcc.KeyLen)

	sr, err := dev.SignedReadVerified(256, pub)
	require.NoError(t, err)
	assert.Len(t, sr.Data, 256)
}

func TestCertificateChain(t *testing.T) {
	sim, dev := newSimDevice(t, 11)

	pub, err := dev.GetVerifiedPubKey(sim.CAPublicKey())
	require.NoError(t, err)

	direct, err := dev.GetDevPubKey()
	require.NoError(t, err)
	assert.Equal(t, direct, pub)
}

func TestCertificateRejectsForeignCA(t *testing.T) {
	simA, _ := newSimDevice(t, 11)
	_, devB := newSimDevice(t, 12)

	_, err := devB.GetVerifiedPubKey(simA.CAPublicKey())
	assert.ErrorIs(t, err, qcicada.ErrVerification)
}

func TestContinuousMode(t *testing.T) {
	sim, dev := newSimDevice(t, 21)

	require.NoError(t, dev.StartContinuous())
	assert.True(t, sim.Streaming())

	a, err := dev.ReadContinuous(4096)
	require.NoError(t, err)
	b, err := dev.ReadContinuous(4096)
	require.NoError(t, err)
	assert.Len(t, a, 4096)
	assert.NotEqual(t, a, b)

	require.NoError(t, dev.Stop())
	assert.False(t, sim.Streaming())

	// The line is usable for normal commands again.
	_, err = dev.GetInfo()
	require.NoError(t, err)
}

func TestStopWithoutStream(t *testing.T) {
	_, dev := newSimDevice(t, 21)
	require.NoError(t, dev.Stop())
}

func TestRebootClearsDeviceState(t *testing.T) {
	sim, dev := newSimDevice(t, 21)

	require.NoError(t, dev.StartContinuous())
	require.NoError(t, dev.SetPostprocess(qcc.PostProcessRawNoise))
	require.NoError(t, dev.Reboot())

	assert.False(t, sim.Streaming())
	cfg, err := dev.GetConfig()
	require.NoError(t, err)
	assert.Equal(t, qcc.PostProcessSHA256, cfg.PostProcess)
}

func TestClosedSimulatorFailsCommands(t *testing.T) {
	sim, err := New(3)
	require.NoError(t, err)
	dev := qcicada.NewDevice(sim)
	require.NoError(t, sim.Close())

	_, err = dev.GetInfo()
	assert.ErrorIs(t, err, qcicada.ErrComm)
}
