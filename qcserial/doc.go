// Package qcserial connects QCicada command sessions to physical devices.
// It opens USB serial ports at the device line rate, runs the wake sequence
// that clears any leftover stream, and discovers attached hardware by port
// metadata or by probing.
package qcserial
