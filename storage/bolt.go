package storage

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"sealed-ballot/models"
)

var (
	identitiesBucket = []byte("identities")
	ballotsBucket    = []byte("ballots")
)

// BoltStore persists to a bbolt file. bbolt allows one writer at a time, and
// CreateSealedBallot does its checks and both writes in a single Update.
type BoltStore struct {
	db *bolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open bolt database")
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{identitiesBucket, ballotsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create buckets")
	}

	return &BoltStore{db: db}, nil
}

func getJSON(b *bolt.Bucket, key string, v interface{}) (bool, error) {
	raw := b.Get([]byte(key))
	if raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, errors.Wrapf(err, "failed to unmarshal %s", key)
	}
	return true, nil
}

func putJSON(b *bolt.Bucket, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal %s", key)
	}
	return b.Put([]byte(key), raw)
}

func (s *BoltStore) CreateIdentity(ctx context.Context, identity *models.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(identitiesBucket)
		if b.Get([]byte(identity.ID)) != nil {
			return errors.Wrapf(ErrAlreadyExists, "identity %s", identity.ID)
		}
		return putJSON(b, identity.ID, identity)
	})
}

func (s *BoltStore) GetIdentity(ctx context.Context, id string) (*models.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var identity models.Identity
	err := s.db.View(func(tx *bolt.Tx) error {
		found, err := getJSON(tx.Bucket(identitiesBucket), id, &identity)
		if err != nil {
			return err
		}
		if !found {
			return errors.Wrapf(ErrNotFound, "identity %s", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

func (s *BoltStore) UpdateIdentity(ctx context.Context, id string, fn func(*models.Identity) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(identitiesBucket)
		var identity models.Identity
		found, err := getJSON(b, id, &identity)
		if err != nil {
			return err
		}
		if !found {
			return errors.Wrapf(ErrNotFound, "identity %s", id)
		}
		if err := fn(&identity); err != nil {
			return err
		}
		identity.ID = id
		return putJSON(b, id, &identity)
	})
}

func (s *BoltStore) CreateSealedBallot(ctx context.Context, ballot *models.SealedBallot, expectedPublicKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var sequence uint64
	err := s.db.Update(func(tx *bolt.Tx) error {
		identities := tx.Bucket(identitiesBucket)
		ballots := tx.Bucket(ballotsBucket)

		var identity models.Identity
		found, err := getJSON(identities, ballot.IdentityID, &identity)
		if err != nil {
			return err
		}
		if !found {
			return errors.Wrapf(ErrNotFound, "identity %s", ballot.IdentityID)
		}
		// Prevent double voting
		hasBallot := ballots.Get([]byte(ballot.IdentityID)) != nil
		if err := checkBallotCommit(&identity, hasBallot, expectedPublicKey); err != nil {
			return err
		}

		sequence, err = ballots.NextSequence()
		if err != nil {
			return err
		}
		stored := cloneBallot(ballot)
		stored.Sequence = sequence
		if err := putJSON(ballots, ballot.IdentityID, stored); err != nil {
			return err
		}

		// Same transaction as the ballot
		identity.State = models.StateVoted
		identity.VotedAt = ballot.CastAt
		return putJSON(identities, identity.ID, &identity)
	})
	if err != nil {
		return err
	}
	ballot.Sequence = sequence
	return nil
}

func (s *BoltStore) GetSealedBallot(ctx context.Context, identityID string) (*models.SealedBallot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var ballot models.SealedBallot
	err := s.db.View(func(tx *bolt.Tx) error {
		found, err := getJSON(tx.Bucket(ballotsBucket), identityID, &ballot)
		if err != nil {
			return err
		}
		if !found {
			return errors.Wrapf(ErrNotFound, "ballot of %s", identityID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ballot, nil
}

func (s *BoltStore) ListSealedBallots(ctx context.Context) ([]*models.SealedBallot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var ballots []*models.SealedBallot
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(ballotsBucket).ForEach(func(k, v []byte) error {
			var b models.SealedBallot
			if err := json.Unmarshal(v, &b); err != nil {
				return errors.Wrapf(err, "failed to unmarshal ballot %s", k)
			}
			ballots = append(ballots, &b)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(ballots, func(i, j int) bool {
		return ballots[i].Sequence < ballots[j].Sequence
	})
	return ballots, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
