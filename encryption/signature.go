package encryption

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"

	"github.com/pkg/errors"
)

// Sign hashes data with SHA-256 and signs the digest with RSASSA-PKCS1-v1_5,
// which is deterministic for a given key and message.
func Sign(data []byte, privateKeyPEM []byte) ([]byte, error) {
	priv, err := ParsePrivateKey(privateKeyPEM)
	if err != nil {
		return nil, err
	}

	digest := sha256.Sum256(data)
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, digest[:])
	if err != nil {
		return nil, errors.Wrap(ErrInvalidKeyMaterial, err.Error())
	}
	return sig, nil
}

// Verify reports whether signature is a valid signature of data under the given
// public key. Malformed keys and signatures are treated as a mismatch.
func Verify(data, signature []byte, publicKeyPEM []byte) bool {
	pub, err := ParsePublicKey(publicKeyPEM)
	if err != nil {
		return false
	}
	return VerifyWithKey(data, signature, pub)
}

// VerifyWithKey is Verify for an already parsed key.
func VerifyWithKey(data, signature []byte, pub *rsa.PublicKey) bool {
	if pub == nil || len(signature) == 0 {
		return false
	}
	digest := sha256.Sum256(data)
	return rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], signature) == nil
}
