package service

import (
	"context"

	"github.com/pkg/errors"

	"sealed-ballot/ballot"
	"sealed-ballot/encryption"
	"sealed-ballot/storage"
)

var (
	ErrAlreadyVoted    = errors.New("identity has already voted")
	ErrKeysNotIssued   = errors.New("no keys issued for identity")
	ErrKeyMismatch     = errors.New("private key does not match the registered public key")
	ErrUnknownIdentity = errors.New("unknown identity")
	ErrVotingClosed    = errors.New("voting session has ended")
	ErrInvalidUsername = errors.New("invalid username")
	ErrNoBallot        = errors.New("identity has not cast a ballot")
)

// UserMessage turns an error returned by the service into the sentence shown to
// the voter. Each error kind gets its own message.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAlreadyVoted), errors.Is(err, storage.ErrConstraintViolation):
		return "You have already voted. Each voter can cast exactly one ballot."
	case errors.Is(err, ErrKeysNotIssued):
		return "You need to generate your voting keys before casting a ballot."
	case errors.Is(err, ErrKeyMismatch), errors.Is(err, storage.ErrKeyChanged):
		return "The private key you provided does not match the public key registered for you."
	case errors.Is(err, ErrUnknownIdentity), errors.Is(err, storage.ErrNotFound):
		return "We could not find your voter record."
	case errors.Is(err, ErrNoBallot):
		return "You have not cast a ballot yet."
	case errors.Is(err, ErrVotingClosed):
		return "The voting period has ended."
	case errors.Is(err, ErrInvalidUsername):
		return "Usernames may only contain letters, digits and the characters _ . @ + -."
	case errors.Is(err, storage.ErrAlreadyExists):
		return "That voter record already exists."
	case errors.Is(err, encryption.ErrInvalidKeyMaterial):
		return "The private key file could not be read. Upload the .key file you downloaded."
	case errors.Is(err, encryption.ErrKeyGeneration):
		return "Your voting keys could not be generated. Please try again later."
	case errors.Is(err, ballot.ErrIncompleteBallot):
		return "Please answer every question before submitting."
	case errors.Is(err, ballot.ErrUnknownAnswer):
		return "One of your answers is not a valid option."
	case errors.Is(err, ballot.ErrInvalidBallot):
		return "Your ballot could not be encoded."
	case errors.Is(err, encryption.ErrPadding), errors.Is(err, encryption.ErrMalformedEnvelope):
		return "A stored ballot could not be opened."
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "The request was cancelled before it completed."
	default:
		return "An unexpected error occurred. Please try again."
	}
}
