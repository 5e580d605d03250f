// qcread reads random bytes from a QCicada device and writes them to stdout
// as hex or to a file as raw bytes. It supports one-shot reads, signed reads,
// and the continuous stream, and can run against the in-memory simulator
// with -sim for working without hardware.
package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	qcicada "github.com/qcicada/qcicada-go"
	"github.com/qcicada/qcicada-go/qcc"
	"github.com/qcicada/qcicada-go/qcserial"
	"github.com/qcicada/qcicada-go/qcsim"
)

func main() {
	n := flag.Int("n", 256, "number of bytes to read")
	port := flag.String("port", "", "serial port to open (default: first detected device)")
	useSim := flag.Bool("sim", false, "use the in-memory simulator instead of hardware")
	seed := flag.Int64("seed", 1, "simulator seed (with -sim)")
	signed := flag.Bool("signed", false, "use a signed read and verify the signature")
	continuous := flag.Bool("continuous", false, "stream until interrupted (ignores -n per batch size)")
	out := flag.String("out", "", "write raw bytes to this file instead of hex to stdout")
	flag.Parse()

	dev, err := openDevice(*useSim, *seed, *port)
	if err != nil {
		log.Fatalf("open device: %v", err)
	}
	defer dev.Close()

	write := writerFor(*out)

	if *continuous {
		streamUntilInterrupted(dev, write)
		return
	}

	var data []byte
	if *signed {
		pub, err := dev.GetDevPubKey()
		if err != nil {
			log.Fatalf("get device key: %v", err)
		}
		sr, err := dev.SignedReadVerified(*n, pub)
		if err != nil {
			log.Fatalf("signed read: %v", err)
		}
		data = sr.Data
		log.Printf("signature verified over %d bytes", len(sr.Data))
	} else {
		data, err = dev.Random(*n)
		if err != nil {
			log.Fatalf("read: %v", err)
		}
	}
	if err := write(data); err != nil {
		log.Fatalf("write output: %v", err)
	}
}

func openDevice(useSim bool, seed int64, port string) (*qcicada.Device, error) {
	if useSim {
		sim, err := qcsim.New(seed)
		if err != nil {
			return nil, err
		}
		return qcicada.NewDevice(sim), nil
	}
	if port != "" {
		return qcserial.OpenDevice(port)
	}
	return qcserial.OpenFirst()
}

// writerFor returns a sink that appends raw bytes to the named file, or hex
// lines to stdout when name is empty.
func writerFor(name string) func([]byte) error {
	if name == "" {
		return func(b []byte) error {
			_, err := fmt.Println(hex.EncodeToString(b))
			return err
		}
	}
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		log.Fatalf("open output: %v", err)
	}
	w := bufio.NewWriter(f)
	return func(b []byte) error {
		if _, err := w.Write(b); err != nil {
			return err
		}
		if err := w.Flush(); err != nil {
			return err
		}
		return f.Sync()
	}
}

func streamUntilInterrupted(dev *qcicada.Device, write func([]byte) error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := dev.StartContinuous(); err != nil {
		log.Fatalf("start stream: %v", err)
	}
	log.Printf("streaming in %d-byte blocks. press Ctrl+C to stop...", qcc.MaxBlockSize)

	total := 0
	for ctx.Err() == nil {
		block, err := dev.ReadContinuous(qcc.MaxBlockSize)
		if err != nil {
			dev.Stop()
			log.Fatalf("stream read: %v", err)
		}
		if err := write(block); err != nil {
			dev.Stop()
			log.Fatalf("write output: %v", err)
		}
		total += len(block)
	}

	if err := dev.Stop(); err != nil {
		log.Fatalf("stop stream: %v", err)
	}
	log.Printf("stopped after %d bytes", total)
}
