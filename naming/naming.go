// Package naming builds the file names used for QCicada capture sessions,
// so collected data stays identifiable by source, sample size, and cadence.
package naming

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Source identifies where random data came from. Allowed values are "qrng"
// (QCicada hardware) and "sim" (the device simulator).
type Source string

const (
	SourceHardware  Source = "qrng"
	SourceSimulator Source = "sim"
)

// Validate checks whether s is one of the allowed source identifiers.
func (s Source) Validate() error {
	if s == SourceHardware || s == SourceSimulator {
		return nil
	}
	return fmt.Errorf("invalid source: %q (allowed: qrng, sim)", string(s))
}

// BuildBaseName builds the base filename using the convention:
//
//	YYYYMMDDTHHMMSS_{source}_s{bytes}_i{interval}
//
// where bytes > 0 is the sample size in bytes per collection and
// interval > 0 is the collection cadence in seconds. The timestamp comes
// from the provided time instant.
func BuildBaseName(now time.Time, source Source, sampleBytes int, intervalSeconds int) (string, error) {
	if err := source.Validate(); err != nil {
		return "", err
	}
	if sampleBytes <= 0 {
		return "", errors.New("sampleBytes must be > 0")
	}
	if intervalSeconds <= 0 {
		return "", errors.New("intervalSeconds must be > 0")
	}
	stamp := now.Format("20060102T150405")
	return fmt.Sprintf("%s_%s_s%d_i%d", stamp, string(source), sampleBytes, intervalSeconds), nil
}

// WithExt appends an extension (without leading dot) to a base name.
// If ext contains a leading dot, it is preserved once. Empty ext returns base.
func WithExt(base string, ext string) string {
	if ext == "" {
		return base
	}
	extClean := ext
	if strings.HasPrefix(ext, ".") {
		extClean = strings.TrimPrefix(ext, ".")
	}
	return base + "." + extClean
}

// JoinDir builds a path joining an optional directory with the filename.
// If dir is empty, it returns name as-is.
func JoinDir(dir string, name string) string {
	if dir == "" {
		return name
	}
	return filepath.Join(dir, name)
}

// BuildBinCSVNames builds both .bin and .csv filenames (without directory)
// based on the convention.
func BuildBinCSVNames(now time.Time, source Source, sampleBytes int, intervalSeconds int) (binName string, csvName string, err error) {
	base, err := BuildBaseName(now, source, sampleBytes, intervalSeconds)
	if err != nil {
		return "", "", err
	}
	return WithExt(base, ".bin"), WithExt(base, ".csv"), nil
}

// BuildBinCSVPaths builds full paths for .bin and .csv inside dir (dir may
// be empty).
func BuildBinCSVPaths(dir string, now time.Time, source Source, sampleBytes int, intervalSeconds int) (binPath string, csvPath string, err error) {
	binName, csvName, err := BuildBinCSVNames(now, source, sampleBytes, intervalSeconds)
	if err != nil {
		return "", "", err
	}
	return JoinDir(dir, binName), JoinDir(dir, csvName), nil
}
