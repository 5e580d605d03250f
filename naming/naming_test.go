package naming

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var stamp = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

func TestBuildBaseName(t *testing.T) {
	name, err := BuildBaseName(stamp, SourceHardware, 256, 60)
	require.NoError(t, err)
	assert.Equal(t, "20250314T092653_qrng_s256_i60", name)

	name, err = BuildBaseName(stamp, SourceSimulator, 32, 1)
	require.NoError(t, err)
	assert.Equal(t, "20250314T092653_sim_s32_i1", name)
}

func TestBuildBaseNameRejectsBadInput(t *testing.T) {
	_, err := BuildBaseName(stamp, Source("floppy"), 256, 60)
	assert.Error(t, err)

	_, err = BuildBaseName(stamp, SourceHardware, 0, 60)
	assert.Error(t, err)

	_, err = BuildBaseName(stamp, SourceHardware, 256, 0)
	assert.Error(t, err)
}

func TestWithExt(t *testing.T) {
	assert.Equal(t, "base.bin", WithExt("base", "bin"))
	assert.Equal(t, "base.bin", WithExt("base", ".bin"))
	assert.Equal(t, "base", WithExt("base", ""))
}

func TestJoinDir(t *testing.T) {
	assert.Equal(t, "name.bin", JoinDir("", "name.bin"))
	assert.Equal(t, filepath.Join("out", "name.bin"), JoinDir("out", "name.bin"))
}

func TestBuildBinCSVPaths(t *testing.T) {
	binPath, csvPath, err := BuildBinCSVPaths("data", stamp, SourceHardware, 128, 5)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("data", "20250314T092653_qrng_s128_i5.bin"), binPath)
	assert.Equal(t, filepath.Join("data", "20250314T092653_qrng_s128_i5.csv"), csvPath)
}
