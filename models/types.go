package models

// KeyStatus is the outcome of checking an uploaded private key against an identity.
type KeyStatus string

const (
	KeyValidAndUnused         KeyStatus = "valid_and_unused"
	KeyValidButAlreadyUsed    KeyStatus = "valid_but_already_used"
	KeyDoesNotMatchRegistered KeyStatus = "does_not_match_registered_key"
	KeyNoKeyRegistered        KeyStatus = "no_key_registered"
	KeyMalformed              KeyStatus = "malformed"
)
