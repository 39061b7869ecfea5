package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"sealed-ballot/models"
)

// snapshot is the whole ballot box state; JSONStore writes it to disk as is.
type snapshot struct {
	Identities map[string]*models.Identity     `json:"identities"`
	Ballots    map[string]*models.SealedBallot `json:"ballots"`
	Sequence   uint64                          `json:"sequence"`
}

func newSnapshot() *snapshot {
	return &snapshot{
		Identities: make(map[string]*models.Identity),
		Ballots:    make(map[string]*models.SealedBallot),
	}
}

// MemStore keeps everything in memory behind one mutex. The mutex is the
// transaction boundary.
type MemStore struct {
	mu      sync.RWMutex
	data    *snapshot
	persist func(*snapshot) error
}

func NewMemStore() *MemStore {
	return &MemStore{data: newSnapshot()}
}

func (s *MemStore) commit() error {
	if s.persist == nil {
		return nil
	}
	return s.persist(s.data)
}

func (s *MemStore) CreateIdentity(ctx context.Context, identity *models.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data.Identities[identity.ID]; exists {
		return errors.Wrapf(ErrAlreadyExists, "identity %s", identity.ID)
	}
	s.data.Identities[identity.ID] = cloneIdentity(identity)
	if err := s.commit(); err != nil {
		delete(s.data.Identities, identity.ID)
		return err
	}
	return nil
}

func (s *MemStore) GetIdentity(ctx context.Context, id string) (*models.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	identity, ok := s.data.Identities[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "identity %s", id)
	}
	return cloneIdentity(identity), nil
}

func (s *MemStore) UpdateIdentity(ctx context.Context, id string, fn func(*models.Identity) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.data.Identities[id]
	if !ok {
		return errors.Wrapf(ErrNotFound, "identity %s", id)
	}
	updated := cloneIdentity(current)
	if err := fn(updated); err != nil {
		return err
	}
	updated.ID = id

	s.data.Identities[id] = updated
	if err := s.commit(); err != nil {
		s.data.Identities[id] = current
		return err
	}
	return nil
}

func (s *MemStore) CreateSealedBallot(ctx context.Context, ballot *models.SealedBallot, expectedPublicKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.data.Identities[ballot.IdentityID]
	if !ok {
		return errors.Wrapf(ErrNotFound, "identity %s", ballot.IdentityID)
	}
	// Prevent double voting and casts under a replaced key
	_, hasBallot := s.data.Ballots[ballot.IdentityID]
	if err := checkBallotCommit(identity, hasBallot, expectedPublicKey); err != nil {
		return err
	}

	voted := cloneIdentity(identity)
	voted.State = models.StateVoted
	voted.VotedAt = ballot.CastAt

	stored := cloneBallot(ballot)
	stored.Sequence = s.data.Sequence + 1

	s.data.Sequence++
	s.data.Ballots[ballot.IdentityID] = stored
	s.data.Identities[ballot.IdentityID] = voted
	// Roll back both records if they could not be persisted
	if err := s.commit(); err != nil {
		s.data.Sequence--
		delete(s.data.Ballots, ballot.IdentityID)
		s.data.Identities[ballot.IdentityID] = identity
		return err
	}

	ballot.Sequence = stored.Sequence
	return nil
}

func (s *MemStore) GetSealedBallot(ctx context.Context, identityID string) (*models.SealedBallot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ballot, ok := s.data.Ballots[identityID]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "ballot of %s", identityID)
	}
	return cloneBallot(ballot), nil
}

func (s *MemStore) ListSealedBallots(ctx context.Context) ([]*models.SealedBallot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ballots := make([]*models.SealedBallot, 0, len(s.data.Ballots))
	for _, b := range s.data.Ballots {
		ballots = append(ballots, cloneBallot(b))
	}
	sort.Slice(ballots, func(i, j int) bool {
		return ballots[i].Sequence < ballots[j].Sequence
	})
	return ballots, nil
}

func (s *MemStore) Close() error {
	return nil
}
