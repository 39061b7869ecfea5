package encryption

import (
	"crypto/ecdsa"
	"encoding/hex"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"sealed-ballot/models"
)

// ReceiptSigner countersigns sealed ballots with the ballot box's own secp256k1
// key. The receipt digest covers the stored signature and envelope text.
type ReceiptSigner struct {
	key *ecdsa.PrivateKey
}

func NewReceiptSigner(key *ecdsa.PrivateKey) *ReceiptSigner {
	return &ReceiptSigner{key: key}
}

// GenerateReceiptSigner creates a signer with a throwaway key.
func GenerateReceiptSigner() (*ReceiptSigner, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, errors.Wrap(ErrKeyGeneration, err.Error())
	}
	return &ReceiptSigner{key: key}, nil
}

// Address identifies the box key; receipts are checked against it.
func (rs *ReceiptSigner) Address() string {
	return crypto.PubkeyToAddress(rs.key.PublicKey).Hex()
}

func (rs *ReceiptSigner) Issue(signature, envelope string) (models.Receipt, error) {
	digest := ReceiptDigest(signature, envelope)
	sig, err := crypto.Sign(digest, rs.key)
	if err != nil {
		return models.Receipt{}, errors.Wrap(err, "failed to countersign receipt")
	}
	return models.Receipt{
		Code:         base58.Encode(digest),
		Digest:       hex.EncodeToString(digest),
		BoxSignature: hexutil.Encode(sig),
	}, nil
}

// Verify checks that the receipt was countersigned by this box and that its
// code matches its digest.
func (rs *ReceiptSigner) Verify(r models.Receipt) bool {
	digest, err := hex.DecodeString(r.Digest)
	if err != nil || len(digest) != 32 {
		return false
	}
	if base58.Encode(digest) != r.Code {
		return false
	}
	sig, err := hexutil.Decode(r.BoxSignature)
	if err != nil {
		return false
	}
	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return false
	}
	return crypto.PubkeyToAddress(*pub) == crypto.PubkeyToAddress(rs.key.PublicKey)
}

// Covers reports whether r was issued for exactly this signature and envelope.
func (rs *ReceiptSigner) Covers(r models.Receipt, signature, envelope string) bool {
	return r.Digest == hex.EncodeToString(ReceiptDigest(signature, envelope)) && rs.Verify(r)
}

func ReceiptDigest(signature, envelope string) []byte {
	return Keccak256([]byte(signature), []byte("|"), []byte(envelope))
}
