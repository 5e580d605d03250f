// Package qcc implements the QCC binary command/response protocol spoken by
// QCicada quantum random number generators: command frame construction,
// fixed-layout response payload parsing, and configuration serialization.
// The package is pure — no I/O and no state — so it can be exercised without
// a device.
package qcc
