package service

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"sealed-ballot/ballot"
	"sealed-ballot/encryption"
	"sealed-ballot/models"
	"sealed-ballot/storage"
)

type Options struct {
	Definition      *ballot.Definition
	Session         *VotingSession
	Metrics         *Metrics
	Logger          *zap.Logger
	RetainPlaintext bool
}

// VotingService runs the casting protocol on top of a Store. It holds no lock of
// its own: the store transaction is what keeps a voter to one ballot.
type VotingService struct {
	store           storage.Store
	sealer          *encryption.Sealer
	receipts        *encryption.ReceiptSigner
	definition      *ballot.Definition
	votingSession   *VotingSession
	metrics         *Metrics
	logger          *zap.Logger
	retainPlaintext bool
	issueKeyPair    func() (*encryption.KeyPair, error)
}

func NewVotingService(store storage.Store, sealer *encryption.Sealer, receipts *encryption.ReceiptSigner, opts Options) *VotingService {
	vs := &VotingService{
		store:           store,
		sealer:          sealer,
		receipts:        receipts,
		definition:      opts.Definition,
		votingSession:   opts.Session,
		metrics:         opts.Metrics,
		logger:          opts.Logger,
		retainPlaintext: opts.RetainPlaintext,
		issueKeyPair:    encryption.IssueKeyPair,
	}
	if vs.definition == nil {
		vs.definition = ballot.DefaultDefinition()
	}
	if vs.votingSession == nil {
		vs.votingSession = NewVotingSession(0)
	}
	if vs.metrics == nil {
		vs.metrics = NewMetrics(nil)
	}
	if vs.logger == nil {
		vs.logger = zap.NewNop()
	}
	return vs
}

func (vs *VotingService) Definition() *ballot.Definition {
	return vs.definition
}

// ReceiptAddress identifies the key the ballot box countersigns receipts with.
func (vs *VotingService) ReceiptAddress() string {
	return vs.receipts.Address()
}

func (vs *VotingService) IsVotingActive() bool {
	return vs.votingSession.IsActive()
}

func (vs *VotingService) EndVotingSession() {
	vs.votingSession.End()
	vs.logger.Info("voting session ended")
}

// Enrol creates an account and its identity in NO_KEYS state. Only the identity
// is stored; the account is returned for the registration layer to keep.
func (vs *VotingService) Enrol(ctx context.Context, username string) (*models.Account, *models.Identity, error) {
	if err := verifyUsername(username); err != nil {
		return nil, nil, errors.Wrapf(err, "username %q", username)
	}
	account, identity := models.NewAccount(username)
	if err := vs.store.CreateIdentity(ctx, identity); err != nil {
		return nil, nil, errors.Wrap(err, "failed to store identity")
	}
	vs.metrics.RecordEnrolment()
	vs.logger.Info("account enrolled",
		zap.String("account", account.ID),
		zap.String("identity", identity.ID))
	return account, identity, nil
}

// IssueKeys generates a fresh voter key pair and registers its public half.
// Issuing again before voting replaces the registered key; after voting it is
// refused. The private half is returned once and never kept.
func (vs *VotingService) IssueKeys(ctx context.Context, identityID string) (*encryption.KeyPair, error) {
	// No key generation for voters who cannot use the key
	identity, err := vs.loadIdentity(ctx, identityID)
	if err != nil {
		return nil, err
	}
	if identity.HasVoted() {
		return nil, errors.Wrapf(ErrAlreadyVoted, "identity %s", identityID)
	}

	pair, err := vs.issueKeyPair()
	if err != nil {
		vs.logger.Error("key generation failed", zap.Error(err))
		return nil, err
	}

	// A cast may have committed while the key was generated
	err = vs.store.UpdateIdentity(ctx, identityID, func(identity *models.Identity) error {
		if identity.HasVoted() {
			return ErrAlreadyVoted
		}
		identity.PublicKey = pair.PublicKeyPEM
		identity.State = models.StateKeysIssued
		identity.KeysIssuedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return nil, vs.identityError(identityID, err)
	}

	vs.metrics.RecordKeysIssued()
	vs.logger.Info("voter keys issued",
		zap.String("identity", identityID),
		zap.String("public_key_hash", encryption.PublicKeyHash(pair.PublicKeyPEM)))
	return pair, nil
}

// Cast encodes, signs, verifies, seals and commits one ballot for identityID.
// Nothing is persisted unless every step succeeds.
func (vs *VotingService) Cast(ctx context.Context, identityID string, privateKeyPEM []byte, answers map[string]string) (*models.SealedBallot, error) {
	start := time.Now()
	sealed, err := vs.cast(ctx, identityID, privateKeyPEM, answers)
	vs.metrics.RecordCast(castOutcome(err), time.Since(start))
	if err != nil {
		vs.logger.Warn("cast rejected",
			zap.String("identity", identityID),
			zap.Error(err))
		return nil, err
	}
	vs.logger.Info("ballot sealed",
		zap.String("identity", identityID),
		zap.String("ballot", sealed.ID),
		zap.Uint64("sequence", sealed.Sequence),
		zap.String("receipt", sealed.Receipt.Code))
	return sealed, nil
}

func (vs *VotingService) cast(ctx context.Context, identityID string, privateKeyPEM []byte, answers map[string]string) (*models.SealedBallot, error) {
	if !vs.votingSession.IsActive() {
		return nil, ErrVotingClosed
	}

	// Early rejection; the store commit decides
	identity, err := vs.loadIdentity(ctx, identityID)
	if err != nil {
		return nil, err
	}
	if identity.HasVoted() {
		return nil, errors.Wrapf(ErrAlreadyVoted, "identity %s", identityID)
	}
	if !identity.HasKeys() {
		return nil, errors.Wrapf(ErrKeysNotIssued, "identity %s", identityID)
	}

	ordered, err := vs.definition.Validate(answers)
	if err != nil {
		return nil, err
	}
	canonical, err := ballot.Encode(identity.Label, ordered)
	if err != nil {
		return nil, err
	}

	// Sign and check against the registered key before sealing
	signature, err := encryption.Sign(canonical, privateKeyPEM)
	if err != nil {
		return nil, err
	}
	if !encryption.Verify(canonical, signature, []byte(identity.PublicKey)) {
		return nil, errors.Wrapf(ErrKeyMismatch, "identity %s", identityID)
	}

	envelope, err := vs.sealer.Seal(canonical)
	if err != nil {
		return nil, errors.Wrap(err, "failed to seal ballot")
	}

	// Countersign
	signatureHex := encodeSignature(signature)
	receipt, err := vs.receipts.Issue(signatureHex, envelope)
	if err != nil {
		return nil, err
	}

	sealed := &models.SealedBallot{
		ID:            uuid.New().String(),
		IdentityID:    identityID,
		Signature:     signatureHex,
		Envelope:      envelope,
		PublicKeyHash: encryption.PublicKeyHash(identity.PublicKey),
		Receipt:       receipt,
		CastAt:        time.Now().UTC(),
	}
	if vs.retainPlaintext {
		sealed.Plaintext = string(canonical)
	}

	// Commit ballot and VOTED together; a concurrent cast or re-key loses here
	if err := vs.store.CreateSealedBallot(ctx, sealed, identity.PublicKey); err != nil {
		switch {
		case errors.Is(err, storage.ErrConstraintViolation):
			return nil, errors.Wrapf(ErrAlreadyVoted, "identity %s", identityID)
		case errors.Is(err, storage.ErrKeyChanged):
			return nil, errors.Wrapf(ErrKeyMismatch, "identity %s: key re-issued during cast", identityID)
		case errors.Is(err, storage.ErrNotFound):
			return nil, errors.Wrapf(ErrUnknownIdentity, "identity %s", identityID)
		}
		return nil, errors.Wrap(err, "failed to commit sealed ballot")
	}
	return sealed, nil
}

// Ballot returns the voter's own sealed ballot.
func (vs *VotingService) Ballot(ctx context.Context, identityID string) (*models.SealedBallot, error) {
	if _, err := vs.loadIdentity(ctx, identityID); err != nil {
		return nil, err
	}
	sealed, err := vs.store.GetSealedBallot(ctx, identityID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, errors.Wrapf(ErrNoBallot, "identity %s", identityID)
	}
	return sealed, err
}

// Identity returns the identity record, public key included.
func (vs *VotingService) Identity(ctx context.Context, identityID string) (*models.Identity, error) {
	return vs.loadIdentity(ctx, identityID)
}

// VerifyReceipt checks that receipt was countersigned by this ballot box.
func (vs *VotingService) VerifyReceipt(receipt models.Receipt) bool {
	return vs.receipts.Verify(receipt)
}

func (vs *VotingService) loadIdentity(ctx context.Context, identityID string) (*models.Identity, error) {
	identity, err := vs.store.GetIdentity(ctx, identityID)
	if err != nil {
		return nil, vs.identityError(identityID, err)
	}
	return identity, nil
}

func (vs *VotingService) identityError(identityID string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return errors.Wrapf(ErrUnknownIdentity, "identity %s", identityID)
	}
	return err
}

func encodeSignature(signature []byte) string {
	return hex.EncodeToString(signature)
}

func decodeSignature(signature string) ([]byte, error) {
	return hex.DecodeString(signature)
}

func castOutcome(err error) string {
	switch {
	case err == nil:
		return outcomeAccepted
	case errors.Is(err, ErrAlreadyVoted):
		return outcomeAlreadyVote
	case errors.Is(err, ErrKeysNotIssued):
		return outcomeNoKeys
	case errors.Is(err, ErrKeyMismatch), errors.Is(err, encryption.ErrInvalidKeyMaterial):
		return outcomeMismatch
	case errors.Is(err, ballot.ErrIncompleteBallot), errors.Is(err, ballot.ErrUnknownAnswer), errors.Is(err, ballot.ErrInvalidBallot):
		return outcomeInvalid
	case errors.Is(err, ErrVotingClosed):
		return outcomeClosed
	default:
		return outcomeError
	}
}
