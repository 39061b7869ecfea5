package encryption

import (
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// Keccak256 computes the Keccak-256 hash of the concatenated inputs.
func Keccak256(data ...[]byte) []byte {
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	return d.Sum(nil)
}

// PublicKeyHash fingerprints a stored public key so a sealed ballot records which
// key verified it without repeating the whole PEM.
func PublicKeyHash(publicKeyPEM string) string {
	return hex.EncodeToString(Keccak256([]byte(publicKeyPEM)))
}
