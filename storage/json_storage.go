package storage

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"sealed-ballot/models"
)

const stateFileName = "ballot_box.json"

// JSONStore is a MemStore that rewrites a single JSON file after every change.
// Writes go to a temporary file first and are renamed into place, so a crash
// leaves either the old or the new state on disk.
type JSONStore struct {
	*MemStore
	basePath string
}

func NewJSONStore(basePath string) (*JSONStore, error) {
	// Create storage directory if it doesn't exist
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create directory")
	}

	store := &JSONStore{
		MemStore: NewMemStore(),
		basePath: basePath,
	}

	// Load existing state, if any
	data, err := store.loadFromFile()
	if err != nil {
		return nil, err
	}
	store.data = data
	// Every committed change is written back to disk
	store.persist = store.saveToFile

	return store, nil
}

func (s *JSONStore) path() string {
	return filepath.Join(s.basePath, stateFileName)
}

func (s *JSONStore) loadFromFile() (*snapshot, error) {
	raw, err := os.ReadFile(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return newSnapshot(), nil
		}
		return nil, errors.Wrap(err, "failed to read state file")
	}

	data := newSnapshot()
	if err := json.Unmarshal(raw, data); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal state file")
	}
	if data.Identities == nil {
		data.Identities = make(map[string]*models.Identity)
	}
	if data.Ballots == nil {
		data.Ballots = make(map[string]*models.SealedBallot)
	}
	return data, nil
}

func (s *JSONStore) saveToFile(data *snapshot) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal state")
	}

	path := s.path()
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, raw, 0o600); err != nil {
		return errors.Wrap(err, "failed to write state file")
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return errors.Wrap(err, "failed to save state file")
	}
	return nil
}
