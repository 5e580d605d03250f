// Package qcicada drives QCicada quantum random number generators over a
// byte-stream transport, speaking the QCC command/response protocol.
//
// The typical entry point is a Device built on a serial port (see the
// qcserial package) or on any other Transport implementation:
//
//	dev := qcicada.NewDevice(tr)
//	data, err := dev.Random(32)
//
// Wire encoding lives in the qcc package, certificate and signature
// verification in qccert.
package qcicada
