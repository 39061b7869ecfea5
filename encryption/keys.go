package encryption

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"

	"github.com/pkg/errors"
)

// VoterKeyBits is the modulus size of every voter key pair.
const VoterKeyBits = 2048

var (
	ErrKeyGeneration      = errors.New("key generation failed")
	ErrInvalidKeyMaterial = errors.New("invalid key material")
)

// KeyPair holds both halves of a voter key in PEM text. The private half is
// returned to the caller and never stored by this module.
type KeyPair struct {
	PublicKeyPEM  string
	PrivateKeyPEM string
}

// IssueKeyPair generates a fresh RSA key pair.
func IssueKeyPair() (*KeyPair, error) {
	priv, err := rsa.GenerateKey(rand.Reader, VoterKeyBits)
	if err != nil {
		return nil, errors.Wrap(ErrKeyGeneration, err.Error())
	}

	pub, err := PublicKeyPEM(&priv.PublicKey)
	if err != nil {
		return nil, errors.Wrap(ErrKeyGeneration, err.Error())
	}

	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(priv),
	})

	return &KeyPair{
		PublicKeyPEM:  pub,
		PrivateKeyPEM: string(privPEM),
	}, nil
}

// PublicKeyPEM encodes pub as a PKIX "PUBLIC KEY" block.
func PublicKeyPEM(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal public key")
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})), nil
}

// ParsePrivateKey accepts PKCS#1 and PKCS#8 encoded RSA private keys.
func ParsePrivateKey(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.Wrap(ErrInvalidKeyMaterial, "no PEM block found")
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, errors.Wrap(ErrInvalidKeyMaterial, err.Error())
		}
		return key, nil
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, errors.Wrap(ErrInvalidKeyMaterial, err.Error())
		}
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.Wrap(ErrInvalidKeyMaterial, "not an RSA key")
		}
		return rsaKey, nil
	default:
		return nil, errors.Wrapf(ErrInvalidKeyMaterial, "unexpected PEM block %q", block.Type)
	}
}

// ParsePublicKey accepts PKIX and PKCS#1 encoded RSA public keys.
func ParsePublicKey(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.Wrap(ErrInvalidKeyMaterial, "no PEM block found")
	}

	switch block.Type {
	case "PUBLIC KEY":
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, errors.Wrap(ErrInvalidKeyMaterial, err.Error())
		}
		rsaKey, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, errors.Wrap(ErrInvalidKeyMaterial, "not an RSA key")
		}
		return rsaKey, nil
	case "RSA PUBLIC KEY":
		key, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, errors.Wrap(ErrInvalidKeyMaterial, err.Error())
		}
		return key, nil
	default:
		return nil, errors.Wrapf(ErrInvalidKeyMaterial, "unexpected PEM block %q", block.Type)
	}
}

// SamePublicKey compares key material rather than PEM text, so different
// encodings of one key still match.
func SamePublicKey(a, b *rsa.PublicKey) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Equal(b)
}
