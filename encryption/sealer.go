package encryption

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// SecretKeySize selects AES-256.
const SecretKeySize = 32

var (
	ErrPadding           = errors.New("invalid padding: envelope tampered with or wrong key")
	ErrMalformedEnvelope = errors.New("malformed envelope")
)

// SecretKey is the ballot box wide symmetric key. It is created once at start-up
// and must stay the same for as long as any sealed ballot must be readable.
type SecretKey [SecretKeySize]byte

// NewSecretKey draws a random key.
func NewSecretKey() (SecretKey, error) {
	var key SecretKey
	if _, err := io.ReadFull(rand.Reader, key[:]); err != nil {
		return SecretKey{}, errors.Wrap(ErrKeyGeneration, err.Error())
	}
	return key, nil
}

// SecretKeyFromHex parses a hex encoded key.
func SecretKeyFromHex(s string) (SecretKey, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return SecretKey{}, errors.Wrap(ErrInvalidKeyMaterial, err.Error())
	}
	if len(raw) != SecretKeySize {
		return SecretKey{}, errors.Wrapf(ErrInvalidKeyMaterial, "secret key must be %d bytes, got %d", SecretKeySize, len(raw))
	}
	var key SecretKey
	copy(key[:], raw)
	return key, nil
}

func (k SecretKey) Hex() string {
	return hex.EncodeToString(k[:])
}

// Sealer encrypts ballots under a SecretKey with AES-CBC. It holds no mutable
// state and may be shared between goroutines.
type Sealer struct {
	block cipher.Block
}

func NewSealer(key SecretKey) (*Sealer, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, errors.Wrap(err, "failed to create cipher")
	}
	return &Sealer{block: block}, nil
}

// Seal returns hex(IV) followed by hex(ciphertext). Every call uses a fresh
// random IV.
func (s *Sealer) Seal(plaintext []byte) (string, error) {
	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", errors.Wrap(err, "failed to generate IV")
	}

	padded := pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(s.block, iv).CryptBlocks(ciphertext, padded)

	return hex.EncodeToString(iv) + hex.EncodeToString(ciphertext), nil
}

// Open reverses Seal.
func (s *Sealer) Open(envelope string) ([]byte, error) {
	raw, err := hex.DecodeString(envelope)
	if err != nil {
		return nil, errors.Wrap(ErrMalformedEnvelope, err.Error())
	}
	if len(raw) < 2*aes.BlockSize || len(raw)%aes.BlockSize != 0 {
		return nil, errors.Wrapf(ErrMalformedEnvelope, "length %d", len(raw))
	}

	iv, ciphertext := raw[:aes.BlockSize], raw[aes.BlockSize:]
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(s.block, iv).CryptBlocks(plaintext, ciphertext)

	return unpad(plaintext, aes.BlockSize)
}

// PKCS#7
func pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	out := make([]byte, len(data), len(data)+n)
	copy(out, data)
	return append(out, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, ErrPadding
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, ErrPadding
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, ErrPadding
		}
	}
	return data[:len(data)-n], nil
}
