// Package qcsim is an in-memory QCicada device. It speaks the full QCC
// command set over the qcicada.Transport interface, generates deterministic
// pseudorandom output from a seed, and signs reads and its certificate with
// real ECDSA keys, so code built against a physical device can run against
// the simulator unchanged.
package qcsim
