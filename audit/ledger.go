// Package audit chains committed sealed ballots into a hash-linked ledger. A
// ledger root published at some point in time pins the exact set, order and
// content of every ballot cast up to then.
package audit

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/pkg/errors"

	"sealed-ballot/models"
)

var ErrLedgerBroken = errors.New("ledger validation failed")

// Entry is one link of the ledger, covering one sealed ballot.
type Entry struct {
	Index      uint64 `json:"index"`
	Sequence   uint64 `json:"sequence"`
	BallotID   string `json:"ballot_id"`
	Timestamp  int64  `json:"timestamp"`
	ContentSum []byte `json:"content_sum"`
	PrevHash   []byte `json:"prev_hash"`
	Hash       []byte `json:"hash"`
}

type Ledger struct {
	Entries []*Entry `json:"entries"`
}

// Build chains ballots in the order given, which should be store order.
func Build(ballots []*models.SealedBallot) *Ledger {
	l := &Ledger{Entries: make([]*Entry, 0, len(ballots))}
	for _, b := range ballots {
		l.append(b)
	}
	return l
}

func (l *Ledger) append(b *models.SealedBallot) {
	e := &Entry{
		Index:      uint64(len(l.Entries)),
		Sequence:   b.Sequence,
		BallotID:   b.ID,
		Timestamp:  b.CastAt.Unix(),
		ContentSum: contentSum(b),
		PrevHash:   l.head(),
	}
	e.Hash = e.calculateHash()
	l.Entries = append(l.Entries, e)
}

func (l *Ledger) head() []byte {
	if len(l.Entries) == 0 {
		return make([]byte, sha256.Size)
	}
	return l.Entries[len(l.Entries)-1].Hash
}

// Root is the hex hash of the last entry, or of the zero hash when empty.
func (l *Ledger) Root() string {
	return hex.EncodeToString(l.head())
}

// RootAt returns the root the ledger had when it held count entries.
func (l *Ledger) RootAt(count int) (string, error) {
	if count < 0 || count > len(l.Entries) {
		return "", errors.Errorf("ledger has %d entries, asked for root at %d", len(l.Entries), count)
	}
	if count == 0 {
		return hex.EncodeToString(make([]byte, sha256.Size)), nil
	}
	return hex.EncodeToString(l.Entries[count-1].Hash), nil
}

// Validate recomputes every link.
func (l *Ledger) Validate() error {
	prev := make([]byte, sha256.Size)
	var lastSequence uint64
	for i, e := range l.Entries {
		if e.Index != uint64(i) {
			return errors.Wrapf(ErrLedgerBroken, "entry %d has index %d", i, e.Index)
		}
		if !bytes.Equal(e.PrevHash, prev) {
			return errors.Wrapf(ErrLedgerBroken, "entry %d has invalid previous hash link", i)
		}
		if !bytes.Equal(e.calculateHash(), e.Hash) {
			return errors.Wrapf(ErrLedgerBroken, "entry %d has invalid hash", i)
		}
		if i > 0 && e.Sequence <= lastSequence {
			return errors.Wrapf(ErrLedgerBroken, "entry %d is out of sequence", i)
		}
		lastSequence = e.Sequence
		prev = e.Hash
	}
	return nil
}

// Matches rebuilds a ledger from ballots and reports whether it reproduces
// publishedRoot at count entries.
func Matches(ballots []*models.SealedBallot, publishedRoot string, count int) bool {
	root, err := Build(ballots).RootAt(count)
	if err != nil {
		return false
	}
	return root == publishedRoot
}

func (e *Entry) calculateHash() []byte {
	buffer := new(bytes.Buffer)
	binary.Write(buffer, binary.BigEndian, e.Index)
	binary.Write(buffer, binary.BigEndian, e.Sequence)
	binary.Write(buffer, binary.BigEndian, e.Timestamp)
	buffer.WriteString(e.BallotID)
	buffer.Write(e.ContentSum)
	buffer.Write(e.PrevHash)

	hash := sha256.Sum256(buffer.Bytes())
	return hash[:]
}

func contentSum(b *models.SealedBallot) []byte {
	h := sha256.New()
	h.Write([]byte(b.IdentityID))
	h.Write([]byte{0})
	h.Write([]byte(b.Signature))
	h.Write([]byte{0})
	h.Write([]byte(b.Envelope))
	h.Write([]byte{0})
	h.Write([]byte(b.Receipt.Digest))
	h.Write([]byte{0})
	h.Write([]byte(b.PublicKeyHash))
	h.Write([]byte{0})
	h.Write([]byte(b.Plaintext))
	return h.Sum(nil)
}
