//go:build !windows

package qcserial

import (
	"path/filepath"
	"runtime"
	"sort"
)

// fallbackPorts matches device nodes by name when USB metadata is not
// available from the enumerator.
func fallbackPorts() ([]string, error) {
	pattern := "/dev/ttyUSB*"
	if runtime.GOOS == "darwin" {
		pattern = "/dev/cu.usbserial-*"
	}
	names, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}
