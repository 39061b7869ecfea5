package config

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"sealed-ballot/encryption"
	"sealed-ballot/storage"
)

// ReceiptCredentials is the on-disk form of the ballot box receipt key.
type ReceiptCredentials struct {
	Address    string `json:"address"`
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key"`
}

// ErrSecretKeyMissing means the ballot secret key file is not where the
// configuration says it is.
var ErrSecretKeyMissing = errors.New("secret key file missing")

// LoadSecretKey reads the ballot secret key from SecretKeyFile. It never
// creates a key; a missing file is ErrSecretKeyMissing.
func (c *Config) LoadSecretKey() (encryption.SecretKey, error) {
	if c.SecretKeyFile == "" {
		return encryption.SecretKey{}, errors.Wrap(ErrSecretKeyMissing, "no secret key file configured")
	}

	data, err := os.ReadFile(c.SecretKeyFile)
	if os.IsNotExist(err) {
		return encryption.SecretKey{}, errors.Wrapf(ErrSecretKeyMissing, "secret key file %s", c.SecretKeyFile)
	}
	if err != nil {
		return encryption.SecretKey{}, errors.Wrap(err, "failed to read secret key file")
	}
	key, err := encryption.SecretKeyFromHex(string(data))
	if err != nil {
		return encryption.SecretKey{}, errors.Wrapf(err, "failed to parse secret key file %s", c.SecretKeyFile)
	}
	return key, nil
}

// PrepareSecretKey loads the secret key for a ballot box about to accept
// ballots into store. A new key is generated only while store holds no sealed
// ballot, since envelopes already sealed could never be opened with it.
// Without SecretKeyFile the new key lives only as long as the process.
func (c *Config) PrepareSecretKey(ctx context.Context, store storage.Store) (encryption.SecretKey, error) {
	key, err := c.LoadSecretKey()
	if err == nil || !errors.Is(err, ErrSecretKeyMissing) {
		return key, err
	}

	// Refuse to replace the key under existing envelopes
	ballots, err := store.ListSealedBallots(ctx)
	if err != nil {
		return encryption.SecretKey{}, errors.Wrap(err, "failed to count sealed ballots")
	}
	if n := len(ballots); n > 0 {
		path := c.SecretKeyFile
		if path == "" {
			path = "(none configured)"
		}
		return encryption.SecretKey{}, errors.Wrapf(ErrSecretKeyMissing,
			"store holds %d sealed ballots but secret key file %s is missing", n, path)
	}

	key, err = encryption.NewSecretKey()
	if err != nil {
		return encryption.SecretKey{}, err
	}
	if c.SecretKeyFile == "" {
		return key, nil
	}
	if err := writeNewFile(c.SecretKeyFile, []byte(key.Hex()+"\n")); err != nil {
		return encryption.SecretKey{}, errors.Wrap(err, "failed to save secret key")
	}
	return key, nil
}

// LoadReceiptSigner restores the ballot box receipt key from ReceiptKeyFile or
// generates and saves a new one.
func (c *Config) LoadReceiptSigner() (*encryption.ReceiptSigner, error) {
	if c.ReceiptKeyFile == "" {
		return encryption.GenerateReceiptSigner()
	}

	if data, err := os.ReadFile(c.ReceiptKeyFile); err == nil {
		var creds ReceiptCredentials
		if err := json.Unmarshal(data, &creds); err != nil {
			return nil, errors.Wrap(err, "failed to parse receipt credentials")
		}
		privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(creds.PrivateKey, "0x"))
		if err != nil {
			return nil, errors.Wrap(err, "failed to restore receipt private key")
		}
		return encryption.NewReceiptSigner(privateKey), nil
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "failed to read receipt credentials")
	}

	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, errors.Wrap(encryption.ErrKeyGeneration, err.Error())
	}
	creds := ReceiptCredentials{
		Address:    crypto.PubkeyToAddress(privateKey.PublicKey).Hex(),
		PublicKey:  hexutil.Encode(crypto.FromECDSAPub(&privateKey.PublicKey)),
		PrivateKey: hexutil.Encode(crypto.FromECDSA(privateKey)),
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal receipt credentials")
	}
	if err := writeNewFile(c.ReceiptKeyFile, data); err != nil {
		return nil, errors.Wrap(err, "failed to save receipt credentials")
	}
	return encryption.NewReceiptSigner(privateKey), nil
}

// writeNewFile creates path with owner-only permissions and refuses to
// overwrite an existing file.
func writeNewFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
