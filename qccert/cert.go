package qccert

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/qcicada/qcicada-go/qcc"
)

// CertificateDataLen is the size of the blob a device certificate signs:
// two reserved zero bytes, the hardware version, the serial integer, and
// the device public key.
const CertificateDataLen = 8 + qcc.KeyLen

// ErrLength reports a key, signature, or certificate argument whose byte
// length does not match its fixed wire size. Length is validated before any
// cryptographic operation; all other verification problems yield a false
// result, not an error.
var ErrLength = errors.New("qccert: wrong fixed-length argument")

// BuildCertificateData returns the 72-byte blob the CA signs when issuing a
// device certificate: u16(0) || hwMajor || hwMinor || u32 serial (little
// endian) || devicePubKey. The same construction is used on both the issuing
// and the verifying side.
func BuildCertificateData(hwMajor, hwMinor uint8, serial uint32, devicePubKey []byte) ([]byte, error) {
	if len(devicePubKey) != qcc.KeyLen {
		return nil, fmt.Errorf("%w: device public key must be %d bytes, got %d", ErrLength, qcc.KeyLen, len(devicePubKey))
	}
	blob := make([]byte, CertificateDataLen)
	blob[2] = hwMajor
	blob[3] = hwMinor
	binary.LittleEndian.PutUint32(blob[4:8], serial)
	copy(blob[8:], devicePubKey)
	return blob, nil
}

// VerifySignature checks a raw r||s signature over message against a raw
// x||y public key using ECDSA-P256 with SHA-256. Any cryptographic failure —
// including a public key that is not a valid curve point — returns false
// without an error; only arguments of the wrong fixed length are errors.
func VerifySignature(pubKey, message, signature []byte) (bool, error) {
	if len(pubKey) != qcc.KeyLen {
		return false, fmt.Errorf("%w: public key must be %d bytes, got %d", ErrLength, qcc.KeyLen, len(pubKey))
	}
	if len(signature) != qcc.SignatureLen {
		return false, fmt.Errorf("%w: signature must be %d bytes, got %d", ErrLength, qcc.SignatureLen, len(signature))
	}

	// Raw keys are the coordinates only; the curve library wants the
	// uncompressed point form with its 0x04 tag.
	point := make([]byte, 1+qcc.KeyLen)
	point[0] = 0x04
	copy(point[1:], pubKey)
	x, y := elliptic.Unmarshal(elliptic.P256(), point)
	if x == nil {
		return false, nil
	}

	digest := sha256.Sum256(message)
	r := new(big.Int).SetBytes(signature[:qcc.SignatureLen/2])
	s := new(big.Int).SetBytes(signature[qcc.SignatureLen/2:])
	pub := &ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}
	return ecdsa.Verify(pub, digest[:], r, s), nil
}

// VerifyCertificate checks that certificate is the CA's signature over the
// identity (hwMajor, hwMinor, serial, devicePubKey). The CA public key is the
// trust anchor and must come from the caller's own provisioning, never from
// the device being verified.
func VerifyCertificate(caPubKey, devicePubKey, certificate []byte, hwMajor, hwMinor uint8, serial uint32) (bool, error) {
	if len(certificate) != qcc.CertificateLen {
		return false, fmt.Errorf("%w: certificate must be %d bytes, got %d", ErrLength, qcc.CertificateLen, len(certificate))
	}
	blob, err := BuildCertificateData(hwMajor, hwMinor, serial, devicePubKey)
	if err != nil {
		return false, err
	}
	return VerifySignature(caPubKey, blob, certificate)
}
