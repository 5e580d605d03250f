package qccert

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) (*ecdsa.PrivateKey, []byte) {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	pub := make([]byte, 64)
	priv.PublicKey.X.FillBytes(pub[:32])
	priv.PublicKey.Y.FillBytes(pub[32:])
	return priv, pub
}

func signRaw(t *testing.T, priv *ecdsa.PrivateKey, message []byte) []byte {
	t.Helper()
	digest := sha256.Sum256(message)
	r, s, err := ecdsa.Sign(rand.Reader, priv, digest[:])
	require.NoError(t, err)
	sig := make([]byte, 64)
	r.FillBytes(sig[:32])
	s.FillBytes(sig[32:])
	return sig
}

func TestBuildCertificateData(t *testing.T) {
	key := bytes.Repeat([]byte{0xAB}, 64)
	blob, err := BuildCertificateData(1, 2, 217, key)
	require.NoError(t, err)
	require.Len(t, blob, CertificateDataLen)
	assert.Equal(t, []byte{0x00, 0x00}, blob[0:2], "reserved bytes")
	assert.Equal(t, byte(1), blob[2])
	assert.Equal(t, byte(2), blob[3])
	assert.Equal(t, []byte{0xD9, 0x00, 0x00, 0x00}, blob[4:8], "serial, little endian")
	assert.Equal(t, key, blob[8:])
}

func TestBuildCertificateDataLength(t *testing.T) {
	_, err := BuildCertificateData(1, 1, 1, make([]byte, 63))
	assert.ErrorIs(t, err, ErrLength)
	_, err = BuildCertificateData(1, 1, 1, make([]byte, 65))
	assert.ErrorIs(t, err, ErrLength)
}

func TestVerifySignature(t *testing.T) {
	priv, pub := testKey(t)
	message := []byte("field measurement batch 7")
	sig := signRaw(t, priv, message)

	ok, err := VerifySignature(pub, message, sig)
	require.NoError(t, err)
	assert.True(t, ok)

	// Tampered message.
	ok, err = VerifySignature(pub, []byte("field measurement batch 8"), sig)
	require.NoError(t, err)
	assert.False(t, ok)

	// Tampered signature.
	bad := append([]byte(nil), sig...)
	bad[10] ^= 0x01
	ok, err = VerifySignature(pub, message, bad)
	require.NoError(t, err)
	assert.False(t, ok)

	// Wrong key.
	_, otherPub := testKey(t)
	ok, err = VerifySignature(otherPub, message, sig)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifySignatureBadPoint(t *testing.T) {
	// 64 bytes that are not a P-256 point: verification fails, no error.
	notAPoint := bytes.Repeat([]byte{0xFF}, 64)
	ok, err := VerifySignature(notAPoint, []byte("x"), make([]byte, 64))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifySignatureLength(t *testing.T) {
	_, pub := testKey(t)
	_, err := VerifySignature(pub[:63], []byte("x"), make([]byte, 64))
	assert.ErrorIs(t, err, ErrLength)
	_, err = VerifySignature(pub, []byte("x"), make([]byte, 63))
	assert.ErrorIs(t, err, ErrLength)
}

func TestVerifyCertificate(t *testing.T) {
	ca, caPub := testKey(t)
	_, devPub := testKey(t)

	blob, err := BuildCertificateData(1, 1, 217, devPub)
	require.NoError(t, err)
	cert := signRaw(t, ca, blob)

	ok, err := VerifyCertificate(caPub, devPub, cert, 1, 1, 217)
	require.NoError(t, err)
	assert.True(t, ok)

	// Any single altered identity field must break the chain.
	for name, check := range map[string]func() (bool, error){
		"hw major": func() (bool, error) { return VerifyCertificate(caPub, devPub, cert, 2, 1, 217) },
		"hw minor": func() (bool, error) { return VerifyCertificate(caPub, devPub, cert, 1, 2, 217) },
		"serial":   func() (bool, error) { return VerifyCertificate(caPub, devPub, cert, 1, 1, 218) },
		"device key": func() (bool, error) {
			altered := append([]byte(nil), devPub...)
			altered[0] ^= 0x01
			return VerifyCertificate(caPub, altered, cert, 1, 1, 217)
		},
	} {
		ok, err := check()
		require.NoError(t, err, name)
		assert.False(t, ok, name)
	}

	// Certificate issued by a different CA.
	otherCA, _ := testKey(t)
	forged := signRaw(t, otherCA, blob)
	ok, err = VerifyCertificate(caPub, devPub, forged, 1, 1, 217)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyCertificateLength(t *testing.T) {
	_, caPub := testKey(t)
	_, devPub := testKey(t)
	_, err := VerifyCertificate(caPub, devPub, make([]byte, 63), 1, 1, 1)
	assert.ErrorIs(t, err, ErrLength)
	_, err = VerifyCertificate(caPub, devPub[:10], make([]byte, 64), 1, 1, 1)
	assert.ErrorIs(t, err, ErrLength)
	_, err = VerifyCertificate(caPub[:10], devPub, make([]byte, 64), 1, 1, 1)
	assert.ErrorIs(t, err, ErrLength)
}

func TestParseHwVersion(t *testing.T) {
	cases := []struct {
		in           string
		major, minor int
		ok           bool
	}{
		{"CICADA-QRNG-1.1", 1, 1, true},
		{"CICADA-QRNG-2.10", 2, 10, true},
		{"CICADA-QRNG-3.0.7", 3, 0, true}, // extra components ignored
		{"CICADA-QRNG-1", 0, 0, false},    // missing dot
		{"CICADA-QRNG-a.b", 0, 0, false},
		{"CICADA-QRNG-1.x", 0, 0, false},
		{"QRNG-1.1", 0, 0, false}, // wrong prefix
		{"", 0, 0, false},
	}
	for _, tc := range cases {
		major, minor, ok := ParseHwVersion(tc.in)
		assert.Equal(t, tc.ok, ok, "input %q", tc.in)
		assert.Equal(t, tc.major, major, "input %q", tc.in)
		assert.Equal(t, tc.minor, minor, "input %q", tc.in)
	}
}

func TestParseSerialInt(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"QC0000000217", 217, true},
		{"QC0", 0, true},
		{"QC123456", 123456, true},
		{"XC0000000217", 0, false},
		{"QCabc", 0, false},
		{"QC", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseSerialInt(tc.in)
		assert.Equal(t, tc.ok, ok, "input %q", tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
	}
}
