package service

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"sealed-ballot/audit"
	"sealed-ballot/ballot"
	"sealed-ballot/encryption"
	"sealed-ballot/models"
)

// BallotAudit is the verification result for one stored ballot.
type BallotAudit struct {
	BallotID       string          `json:"ballot_id"`
	IdentityID     string          `json:"identity_id"`
	Sequence       uint64          `json:"sequence"`
	CastAt         time.Time       `json:"cast_at"`
	Label          string          `json:"label"`
	Answers        []models.Answer `json:"answers"`
	Opened         bool            `json:"opened"`
	SignatureValid bool            `json:"signature_valid"`
	KeyHashValid   bool            `json:"key_hash_valid"`
	ReceiptValid   bool            `json:"receipt_valid"`
	Problem        string          `json:"problem,omitempty"`
}

func (b *BallotAudit) Valid() bool {
	return b.Opened && b.SignatureValid && b.KeyHashValid && b.ReceiptValid
}

type AuditReport struct {
	Ballots        []BallotAudit `json:"ballots"`
	ValidBallots   int           `json:"valid_ballots"`
	InvalidBallots int           `json:"invalid_ballots"`
	LedgerRoot     string        `json:"ledger_root"`
	LedgerSize     int           `json:"ledger_size"`
	ReceiptAddress string        `json:"receipt_address"`
}

// Audit opens every envelope and re-verifies it against the voter's registered
// public key and the ballot box receipt.
func (vs *VotingService) Audit(ctx context.Context) (*AuditReport, error) {
	ballots, err := vs.store.ListSealedBallots(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load sealed ballots")
	}

	ledger := audit.Build(ballots)
	report := &AuditReport{
		Ballots:        make([]BallotAudit, 0, len(ballots)),
		LedgerRoot:     ledger.Root(),
		LedgerSize:     len(ledger.Entries),
		ReceiptAddress: vs.receipts.Address(),
	}
	for _, sb := range ballots {
		entry, err := vs.auditBallot(ctx, sb)
		if err != nil {
			return nil, err
		}
		if entry.Valid() {
			report.ValidBallots++
		} else {
			report.InvalidBallots++
		}
		report.Ballots = append(report.Ballots, entry)
	}
	return report, nil
}

func (vs *VotingService) auditBallot(ctx context.Context, sb *models.SealedBallot) (BallotAudit, error) {
	entry := BallotAudit{
		BallotID:   sb.ID,
		IdentityID: sb.IdentityID,
		Sequence:   sb.Sequence,
		CastAt:     sb.CastAt,
	}
	entry.ReceiptValid = vs.receipts.Covers(sb.Receipt, sb.Signature, sb.Envelope)

	canonical, err := vs.sealer.Open(sb.Envelope)
	if err != nil {
		entry.Problem = err.Error()
		return entry, nil
	}
	entry.Opened = true
	entry.Label, entry.Answers = ballot.Decode(canonical)

	identity, err := vs.store.GetIdentity(ctx, sb.IdentityID)
	if err != nil {
		if ctx.Err() != nil {
			return entry, err
		}
		entry.Problem = "identity record missing"
		return entry, nil
	}
	entry.KeyHashValid = encryption.PublicKeyHash(identity.PublicKey) == sb.PublicKeyHash

	signature, err := decodeSignature(sb.Signature)
	if err != nil {
		entry.Problem = "signature is not hex"
		return entry, nil
	}
	entry.SignatureValid = encryption.Verify(canonical, signature, []byte(identity.PublicKey))
	if !entry.SignatureValid {
		entry.Problem = "signature does not verify against the registered public key"
	} else if sb.Plaintext != "" && sb.Plaintext != string(canonical) {
		entry.Problem = "retained plaintext differs from the envelope"
		entry.SignatureValid = false
	}
	if entry.Problem == "" && !entry.ReceiptValid {
		entry.Problem = "receipt does not cover this ballot"
	}
	return entry, nil
}

// LedgerRoot is the current root of the hash-linked ballot ledger, suitable for
// publishing.
func (vs *VotingService) LedgerRoot(ctx context.Context) (string, int, error) {
	ballots, err := vs.store.ListSealedBallots(ctx)
	if err != nil {
		return "", 0, errors.Wrap(err, "failed to load sealed ballots")
	}
	return audit.Build(ballots).Root(), len(ballots), nil
}

// MatchesLedger reports whether the stored ballots reproduce a previously
// published root for the first count ballots.
func (vs *VotingService) MatchesLedger(ctx context.Context, publishedRoot string, count int) (bool, error) {
	ballots, err := vs.store.ListSealedBallots(ctx)
	if err != nil {
		return false, errors.Wrap(err, "failed to load sealed ballots")
	}
	return audit.Matches(ballots, publishedRoot, count), nil
}
