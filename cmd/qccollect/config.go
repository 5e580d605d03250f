package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// collectConfig holds the effective collector settings after merging a
// config file over the defaults. Flags given on the command line override
// both.
type collectConfig struct {
	Source      string
	Port        string
	Serial      string
	SampleBytes int
	Interval    time.Duration
	OutDir      string
	Signed      bool
	Seed        int64
}

func defaultCollectConfig() collectConfig {
	return collectConfig{
		Source:      "qrng",
		SampleBytes: 256,
		Interval:    time.Second,
		OutDir:      "data",
		Seed:        1,
	}
}

type fileConfig struct {
	Source      string `toml:"source"`
	Port        string `toml:"port"`
	Serial      string `toml:"serial"`
	SampleBytes int    `toml:"sample_bytes"`
	Interval    string `toml:"interval"`
	IntervalS   int    `toml:"interval_s"`
	OutDir      string `toml:"out_dir"`
	Signed      bool   `toml:"signed"`
	Seed        int64  `toml:"seed"`
}

func loadCollectConfig(path string) (collectConfig, error) {
	cfg := defaultCollectConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return collectConfig{}, fmt.Errorf("load collector config: %w", err)
	}

	if meta.IsDefined("source") {
		cfg.Source = strings.TrimSpace(raw.Source)
	}
	if meta.IsDefined("port") {
		cfg.Port = strings.TrimSpace(raw.Port)
	}
	if meta.IsDefined("serial") {
		cfg.Serial = strings.TrimSpace(raw.Serial)
	}
	if meta.IsDefined("sample_bytes") {
		cfg.SampleBytes = raw.SampleBytes
	}
	if meta.IsDefined("interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Interval))
		if err != nil {
			return collectConfig{}, fmt.Errorf("parse interval: %w", err)
		}
		cfg.Interval = d
	}
	if meta.IsDefined("interval_s") {
		cfg.Interval = time.Duration(raw.IntervalS) * time.Second
	}
	if meta.IsDefined("out_dir") {
		cfg.OutDir = strings.TrimSpace(raw.OutDir)
	}
	if meta.IsDefined("signed") {
		cfg.Signed = raw.Signed
	}
	if meta.IsDefined("seed") {
		cfg.Seed = raw.Seed
	}

	return cfg, nil
}

// intervalSeconds converts the collection cadence to the whole seconds the
// file naming convention carries.
func (c collectConfig) intervalSeconds() (int, error) {
	if c.Interval < time.Second || c.Interval%time.Second != 0 {
		return 0, fmt.Errorf("interval must be a whole number of seconds >= 1s, got %s", c.Interval)
	}
	return int(c.Interval / time.Second), nil
}
