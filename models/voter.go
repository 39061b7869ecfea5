package models

import (
	"time"

	"github.com/google/uuid"
)

// IdentityState is the voter lifecycle: NO_KEYS -> KEYS_ISSUED -> VOTED.
type IdentityState string

const (
	StateNoKeys     IdentityState = "NO_KEYS"
	StateKeysIssued IdentityState = "KEYS_ISSUED"
	StateVoted      IdentityState = "VOTED"
)

// Identity is the voter principal. Only the public half of the voter key pair is
// ever stored here.
type Identity struct {
	ID           string        `json:"id"`
	Label        string        `json:"label"`
	State        IdentityState `json:"state"`
	PublicKey    string        `json:"public_key,omitempty"`
	KeysIssuedAt time.Time     `json:"keys_issued_at,omitempty"`
	VotedAt      time.Time     `json:"voted_at,omitempty"`
}

func (i *Identity) HasVoted() bool {
	return i.State == StateVoted
}

func (i *Identity) HasKeys() bool {
	return i.State != StateNoKeys && i.PublicKey != ""
}

// Account is the login-side record. It is always created together with its
// Identity through NewAccount. The ballot box persists only the Identity;
// storing and authenticating accounts belongs to the registration layer in
// front of it, which keeps the account it gets back from enrolment.
type Account struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	IdentityID string    `json:"identity_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewAccount returns a fresh account and the identity that belongs to it. The
// identity label is the username, so it ends up verbatim in the canonical ballot.
func NewAccount(username string) (*Account, *Identity) {
	now := time.Now().UTC()
	identity := &Identity{
		ID:    uuid.New().String(),
		Label: username,
		State: StateNoKeys,
	}
	account := &Account{
		ID:         uuid.New().String(),
		Username:   username,
		IdentityID: identity.ID,
		CreatedAt:  now,
	}
	return account, identity
}
