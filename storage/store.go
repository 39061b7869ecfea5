// Package storage is the persistence collaborator of the ballot box. Every Store
// commits a sealed ballot and the VOTED transition of its identity in one atomic
// unit; that unit is the only thing serialising concurrent casts.
package storage

import (
	"context"

	"github.com/pkg/errors"

	"sealed-ballot/models"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyExists       = errors.New("already exists")
	ErrConstraintViolation = errors.New("identity already has a sealed ballot")
	ErrKeyChanged          = errors.New("registered public key changed")
)

type Store interface {
	CreateIdentity(ctx context.Context, identity *models.Identity) error
	GetIdentity(ctx context.Context, id string) (*models.Identity, error)
	// UpdateIdentity runs fn on a copy of the identity inside a transaction and
	// stores the result unless fn fails.
	UpdateIdentity(ctx context.Context, id string, fn func(*models.Identity) error) error
	// CreateSealedBallot inserts ballot and marks its identity VOTED. It fails
	// with ErrConstraintViolation if the identity already voted and with
	// ErrKeyChanged if the identity's public key is no longer expectedPublicKey.
	// On success ballot.Sequence is set.
	CreateSealedBallot(ctx context.Context, ballot *models.SealedBallot, expectedPublicKey string) error
	GetSealedBallot(ctx context.Context, identityID string) (*models.SealedBallot, error)
	// ListSealedBallots returns all ballots ordered by Sequence.
	ListSealedBallots(ctx context.Context) ([]*models.SealedBallot, error)
	Close() error
}

// checkBallotCommit holds the commit preconditions shared by all stores.
func checkBallotCommit(identity *models.Identity, hasBallot bool, expectedPublicKey string) error {
	if identity.HasVoted() || hasBallot {
		return ErrConstraintViolation
	}
	if identity.State != models.StateKeysIssued || identity.PublicKey != expectedPublicKey {
		return ErrKeyChanged
	}
	return nil
}

func cloneIdentity(i *models.Identity) *models.Identity {
	c := *i
	return &c
}

func cloneBallot(b *models.SealedBallot) *models.SealedBallot {
	c := *b
	return &c
}
