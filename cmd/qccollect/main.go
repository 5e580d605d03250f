// qccollect samples a QCicada device at a fixed cadence and records the
// output for statistical review: raw bytes to a .bin file and a per-sample
// ones count to a .csv, named so qcxlsx can recover the capture parameters.
// It reads hardware by default and the in-memory simulator with -source sim.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"math/bits"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	qcicada "github.com/qcicada/qcicada-go"
	"github.com/qcicada/qcicada-go/naming"
	"github.com/qcicada/qcicada-go/qcserial"
	"github.com/qcicada/qcicada-go/qcsim"
)

func main() {
	configPath := flag.String("config", "", "TOML config file (flags override it)")
	source := flag.String("source", "qrng", "data source: qrng|sim")
	port := flag.String("port", "", "serial port to open (default: first detected device)")
	serial := flag.String("serial", "", "open the device with this serial number")
	sampleBytes := flag.Int("bytes", 256, "bytes per sample")
	intervalSec := flag.Int("interval", 1, "seconds between samples")
	outDir := flag.String("outdir", "data", "output directory")
	signed := flag.Bool("signed", false, "use signed reads and verify every sample")
	seed := flag.Int64("seed", 1, "simulator seed (with -source sim)")
	flag.Parse()

	initLogger()

	cfg := defaultCollectConfig()
	if *configPath != "" {
		var err error
		cfg, err = loadCollectConfig(*configPath)
		if err != nil {
			log.Fatal().Err(err).Msg("config")
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "source":
			cfg.Source = *source
		case "port":
			cfg.Port = *port
		case "serial":
			cfg.Serial = *serial
		case "bytes":
			cfg.SampleBytes = *sampleBytes
		case "interval":
			cfg.Interval = time.Duration(*intervalSec) * time.Second
		case "outdir":
			cfg.OutDir = *outDir
		case "signed":
			cfg.Signed = *signed
		case "seed":
			cfg.Seed = *seed
		}
	})

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("collector stopped")
	}
}

func initLogger() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Str("app", "qccollect").Logger()
}

func run(cfg collectConfig) error {
	var src naming.Source
	switch cfg.Source {
	case string(naming.SourceHardware):
		src = naming.SourceHardware
	case string(naming.SourceSimulator):
		src = naming.SourceSimulator
	default:
		return fmt.Errorf("invalid source %q (allowed: qrng, sim)", cfg.Source)
	}
	if cfg.SampleBytes <= 0 || cfg.SampleBytes > 65535 {
		return fmt.Errorf("sample bytes must be in 1..65535, got %d", cfg.SampleBytes)
	}
	intervalSec, err := cfg.intervalSeconds()
	if err != nil {
		return err
	}

	dev, err := openSource(cfg)
	if err != nil {
		return fmt.Errorf("open %s: %w", cfg.Source, err)
	}
	defer dev.Close()

	var devicePub []byte
	if cfg.Signed {
		devicePub, err = dev.GetDevPubKey()
		if err != nil {
			return fmt.Errorf("get device key: %w", err)
		}
		log.Info().Hex("device_key", devicePub[:8]).Msg("verifying every sample against device key")
	}

	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		return fmt.Errorf("create outdir: %w", err)
	}
	binPath, csvPath, err := naming.BuildBinCSVPaths(cfg.OutDir, time.Now(), src, cfg.SampleBytes, intervalSec)
	if err != nil {
		return err
	}

	binFile, err := os.OpenFile(binPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open bin file: %w", err)
	}
	defer binFile.Close()
	binBuf := bufio.NewWriter(binFile)
	defer binBuf.Flush()

	csvFile, err := os.OpenFile(csvPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open csv file: %w", err)
	}
	defer csvFile.Close()
	csvBuf := bufio.NewWriter(csvFile)
	defer csvBuf.Flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	log.Info().
		Str("source", cfg.Source).
		Int("bytes", cfg.SampleBytes).
		Dur("interval", cfg.Interval).
		Str("bin", binPath).
		Str("csv", csvPath).
		Msg("collecting, press Ctrl+C to stop")

	sample := 0
	for {
		if ctx.Err() != nil {
			break
		}

		batch, err := readSample(dev, cfg, devicePub)
		if err != nil {
			return fmt.Errorf("sample %d: %w", sample+1, err)
		}

		if _, err := binBuf.Write(batch); err != nil {
			return fmt.Errorf("write bin: %w", err)
		}
		if err := binBuf.Flush(); err != nil {
			return fmt.Errorf("flush bin: %w", err)
		}

		ones := countOnes(batch)
		sample++
		ts := time.Now().Format("20060102T15:04:05")
		if _, err := fmt.Fprintf(csvBuf, "%s,%d\n", ts, ones); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
		if err := csvBuf.Flush(); err != nil {
			return fmt.Errorf("flush csv: %w", err)
		}

		log.Info().Int("sample", sample).Int("ones", ones).Int("of_bits", len(batch)*8).Msg("collected")

		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
	}

	if stats, err := dev.GetStatistics(); err == nil {
		log.Info().Uint64("device_generated_bytes", stats.GeneratedBytes).Msg("device statistics")
	}
	log.Info().Int("samples", sample).Msg("capture finished")
	return nil
}

func openSource(cfg collectConfig) (*qcicada.Device, error) {
	if cfg.Source == string(naming.SourceSimulator) {
		sim, err := qcsim.New(cfg.Seed)
		if err != nil {
			return nil, err
		}
		return qcicada.NewDevice(sim), nil
	}
	switch {
	case cfg.Serial != "":
		return qcserial.OpenBySerial(cfg.Serial)
	case cfg.Port != "":
		return qcserial.OpenDevice(cfg.Port)
	default:
		return qcserial.OpenFirst()
	}
}

func readSample(dev *qcicada.Device, cfg collectConfig, devicePub []byte) ([]byte, error) {
	if cfg.Signed {
		sr, err := dev.SignedReadVerified(cfg.SampleBytes, devicePub)
		if err != nil {
			return nil, err
		}
		return sr.Data, nil
	}
	return dev.Random(cfg.SampleBytes)
}

// countOnes counts the set bits across the whole sample.
func countOnes(buf []byte) int {
	total := 0
	for _, b := range buf {
		total += bits.OnesCount8(b)
	}
	return total
}
