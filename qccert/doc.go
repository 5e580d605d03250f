// Package qccert verifies the provenance chain of QCicada devices: the
// CA-issued device certificate (an ECDSA-P256/SHA-256 signature over the
// device's hardware identity and public key, not an X.509 structure) and the
// per-read signatures produced by SIGNED_READ. Keys and signatures travel in
// raw fixed-width form, 64 bytes each.
package qccert
