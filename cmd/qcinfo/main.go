// qcinfo prints what a QCicada device reports about itself: identity,
// status, configuration, and lifetime statistics. It can also reset the
// statistics counters or reboot the device.
package main

import (
	"flag"
	"fmt"
	"log"

	qcicada "github.com/qcicada/qcicada-go"
	"github.com/qcicada/qcicada-go/qcserial"
)

func main() {
	port := flag.String("port", "", "serial port to open (default: first detected device)")
	serial := flag.String("serial", "", "open the device with this serial number")
	showStatus := flag.Bool("status", false, "print device status")
	showConfig := flag.Bool("config", false, "print device configuration")
	showStats := flag.Bool("stats", false, "print device statistics")
	doReset := flag.Bool("reset", false, "reset statistics counters and health state")
	doReboot := flag.Bool("reboot", false, "reboot the device and exit")
	flag.Parse()

	dev, err := openDevice(*port, *serial)
	if err != nil {
		log.Fatalf("open device: %v", err)
	}
	defer dev.Close()

	if *doReboot {
		if err := dev.Reboot(); err != nil {
			log.Fatalf("reboot: %v", err)
		}
		fmt.Println("reboot requested; the device re-enumerates in a few seconds")
		return
	}

	info, err := dev.GetInfo()
	if err != nil {
		log.Fatalf("get info: %v", err)
	}
	fmt.Printf("serial:   %s\n", info.Serial)
	fmt.Printf("hardware: %s\n", info.HardwareInfo)
	fmt.Printf("core:     %d\n", info.CoreVersion)
	fmt.Printf("firmware: %d\n", info.FirmwareVersion)

	if *doReset {
		if err := dev.Reset(); err != nil {
			log.Fatalf("reset: %v", err)
		}
		fmt.Println("statistics reset")
	}

	if *showStatus {
		st, err := dev.GetStatus()
		if err != nil {
			log.Fatalf("get status: %v", err)
		}
		fmt.Printf("initialized: %v\n", st.Initialized)
		fmt.Printf("startup test running: %v\n", st.StartupTestInProgress)
		fmt.Printf("voltage low/high/undefined: %v/%v/%v\n", st.VoltageLow, st.VoltageHigh, st.VoltageUndefined)
		fmt.Printf("health trips (bitcount/repetition/adaptive): %v/%v/%v\n", st.BitCount, st.RepetitionCount, st.AdaptiveProportion)
		fmt.Printf("ready bytes: %d\n", st.ReadyBytes)
	}

	if *showConfig {
		cfg, err := dev.GetConfig()
		if err != nil {
			log.Fatalf("get config: %v", err)
		}
		fmt.Printf("postprocess: %s\n", cfg.PostProcess)
		fmt.Printf("initial level: %g\n", cfg.InitialLevel)
		fmt.Printf("startup test: %v  auto calibration: %v\n", cfg.StartupTest, cfg.AutoCalibration)
		fmt.Printf("health tests (repetition/adaptive/bitcount): %v/%v/%v\n", cfg.RepetitionCount, cfg.AdaptiveProportion, cfg.BitCount)
		fmt.Printf("generate on error: %v\n", cfg.GenerateOnError)
		fmt.Printf("lsbits: %d  hash input: %d  block size: %d  autocal target: %d\n",
			cfg.NLSBits, cfg.HashInputSize, cfg.BlockSize, cfg.AutocalibrationTarget)
	}

	if *showStats {
		st, err := dev.GetStatistics()
		if err != nil {
			log.Fatalf("get statistics: %v", err)
		}
		fmt.Printf("generated bytes: %d\n", st.GeneratedBytes)
		fmt.Printf("failures (repetition/adaptive/bitcount): %d/%d/%d\n", st.RepetitionFailures, st.AdaptiveFailures, st.BitCountFailures)
		fmt.Printf("speed: %d bits/s\n", st.Speed)
		fmt.Printf("sensor average: %d  led level: %g\n", st.SensorAverage, st.LedLevel)
	}
}

func openDevice(port, serial string) (*qcicada.Device, error) {
	switch {
	case serial != "":
		return qcserial.OpenBySerial(serial)
	case port != "":
		return qcserial.OpenDevice(port)
	default:
		return qcserial.OpenFirst()
	}
}
