package models

import "time"

// Answer is one question -> answer-code pair of a ballot.
type Answer struct {
	Question string `json:"question" yaml:"question"`
	Code     string `json:"code" yaml:"code"`
}

// SealedBallot is the persisted record of a cast vote. Envelope and Signature are
// printable text; Plaintext stays empty unless plaintext retention is enabled.
type SealedBallot struct {
	ID            string    `json:"id"`
	IdentityID    string    `json:"identity_id"`
	Sequence      uint64    `json:"sequence"`
	Plaintext     string    `json:"plaintext,omitempty"`
	Signature     string    `json:"signature"`
	Envelope      string    `json:"envelope"`
	PublicKeyHash string    `json:"public_key_hash"`
	Receipt       Receipt   `json:"receipt"`
	CastAt        time.Time `json:"cast_at"`
}

// Receipt lets a voter prove the ballot box accepted a specific sealed ballot.
type Receipt struct {
	Code         string `json:"code"`
	Digest       string `json:"digest"`
	BoxSignature string `json:"box_signature"`
}
