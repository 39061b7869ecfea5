package service

import (
	"context"

	"go.uber.org/zap"

	"sealed-ballot/ballot"
	"sealed-ballot/encryption"
	"sealed-ballot/models"
)

// CheckKeyValidity reports whether an uploaded private key file would be accepted
// for identityID. Nothing is stored; the key is dropped when the call returns.
func (vs *VotingService) CheckKeyValidity(ctx context.Context, identityID string, uploaded []byte) (models.KeyStatus, error) {
	identity, err := vs.loadIdentity(ctx, identityID)
	if err != nil {
		return "", err
	}

	privateKey, err := encryption.ParsePrivateKey(uploaded)
	if err != nil {
		return models.KeyMalformed, nil
	}

	if identity.PublicKey == "" {
		return models.KeyNoKeyRegistered, nil
	}
	registered, err := encryption.ParsePublicKey([]byte(identity.PublicKey))
	if err != nil {
		vs.logger.Error("registered public key does not parse",
			zap.String("identity", identityID), zap.Error(err))
		return "", err
	}
	if !encryption.SamePublicKey(&privateKey.PublicKey, registered) {
		return models.KeyDoesNotMatchRegistered, nil
	}
	if identity.HasVoted() {
		return models.KeyValidButAlreadyUsed, nil
	}
	return models.KeyValidAndUnused, nil
}

// KeyStatusMessage is the text shown next to a key check result.
func KeyStatusMessage(status models.KeyStatus) string {
	switch status {
	case models.KeyValidAndUnused:
		return "This key is yours and is ready to cast your ballot."
	case models.KeyValidButAlreadyUsed:
		return "This key is yours, but it has already been used to vote."
	case models.KeyDoesNotMatchRegistered:
		return "This is a valid key, but it does not belong to you."
	case models.KeyNoKeyRegistered:
		return "You have not generated voting keys yet."
	case models.KeyMalformed:
		return "The uploaded file is not a readable private key."
	default:
		return ""
	}
}

func verifyUsername(username string) error {
	if !ballot.ValidLabel(username) {
		return ErrInvalidUsername
	}
	return nil
}
