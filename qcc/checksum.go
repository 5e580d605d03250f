package qcc

// Checksum8 returns the ones'-complement of the mod-256 sum of data. It is
// used for firmware-chunk integrity checks, not for command framing.
func Checksum8(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return ^sum
}
