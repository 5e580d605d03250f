// qcverify exercises the QCicada attestation chain: it validates the device
// certificate against a CA public key, and performs a signed read whose
// signature is checked against the certified device key. Without a CA key it
// trusts the device key it fetches and only verifies the read signature.
package main

import (
	"bytes"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"

	qcicada "github.com/qcicada/qcicada-go"
	"github.com/qcicada/qcicada-go/qcc"
	"github.com/qcicada/qcicada-go/qcserial"
	"github.com/qcicada/qcicada-go/qcsim"
)

func main() {
	n := flag.Int("n", 1024, "number of bytes for the signed read")
	port := flag.String("port", "", "serial port to open (default: first detected device)")
	useSim := flag.Bool("sim", false, "use the in-memory simulator instead of hardware")
	seed := flag.Int64("seed", 1, "simulator seed (with -sim)")
	caFile := flag.String("ca", "", "file holding the CA public key (64 raw bytes or hex)")
	flag.Parse()

	var sim *qcsim.Simulator
	var dev *qcicada.Device
	var err error
	if *useSim {
		sim, err = qcsim.New(*seed)
		if err != nil {
			log.Fatalf("simulator: %v", err)
		}
		dev = qcicada.NewDevice(sim)
	} else if *port != "" {
		dev, err = qcserial.OpenDevice(*port)
	} else {
		dev, err = qcserial.OpenFirst()
	}
	if err != nil {
		log.Fatalf("open device: %v", err)
	}
	defer dev.Close()

	caKey, err := loadCAKey(*caFile, sim)
	if err != nil {
		log.Fatalf("ca key: %v", err)
	}

	var pub []byte
	if caKey != nil {
		pub, err = dev.GetVerifiedPubKey(caKey)
		if err != nil {
			log.Fatalf("certificate check failed: %v", err)
		}
		fmt.Println("device certificate: OK")
	} else {
		pub, err = dev.GetDevPubKey()
		if err != nil {
			log.Fatalf("get device key: %v", err)
		}
		fmt.Println("device certificate: skipped (no CA key given, trusting device key)")
	}
	fmt.Printf("device key: %s\n", hex.EncodeToString(pub))

	sr, err := dev.SignedReadVerified(*n, pub)
	if err != nil {
		log.Fatalf("signed read failed: %v", err)
	}
	fmt.Printf("signed read: OK (%d bytes, signature %s...)\n", len(sr.Data), hex.EncodeToString(sr.Signature[:8]))
}

// loadCAKey reads a CA public key from file, accepting either the 64 raw
// bytes or their hex encoding. With the simulator and no file, the
// simulator's own CA is used.
func loadCAKey(path string, sim *qcsim.Simulator) ([]byte, error) {
	if path == "" {
		if sim != nil {
			return sim.CAPublicKey(), nil
		}
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(raw) == qcc.KeyLen {
		return raw, nil
	}
	decoded, err := hex.DecodeString(string(bytes.TrimSpace(raw)))
	if err != nil {
		return nil, fmt.Errorf("%s is neither %d raw bytes nor a hex key: %w", path, qcc.KeyLen, err)
	}
	if len(decoded) != qcc.KeyLen {
		return nil, fmt.Errorf("%s decodes to %d bytes, want %d", path, len(decoded), qcc.KeyLen)
	}
	return decoded, nil
}
