package qccert

import (
	"strconv"
	"strings"
)

// HwVersionPrefix is the literal every QCicada hardware-info string starts
// with; the dotted version follows it.
const HwVersionPrefix = "CICADA-QRNG-"

// SerialPrefix is the literal every QCicada serial string starts with; the
// numeric serial follows it.
const SerialPrefix = "QC"

// ParseHwVersion extracts the hardware major/minor version from a device's
// self-reported hardware-info string, e.g. "CICADA-QRNG-1.1" -> (1, 1).
// A wrong prefix, a missing dot, or non-numeric components yield ok=false;
// there is no partial result.
func ParseHwVersion(hwInfo string) (major, minor int, ok bool) {
	rest, found := strings.CutPrefix(hwInfo, HwVersionPrefix)
	if !found {
		return 0, 0, false
	}
	parts := strings.Split(rest, ".")
	if len(parts) < 2 {
		return 0, 0, false
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	minor, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	return major, minor, true
}

// ParseSerialInt extracts the numeric serial from a device's self-reported
// serial string, e.g. "QC0000000217" -> 217. A wrong prefix or non-numeric
// remainder yields ok=false.
func ParseSerialInt(serial string) (int, bool) {
	rest, found := strings.CutPrefix(serial, SerialPrefix)
	if !found {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return n, true
}
