// Package config holds the ballot box runtime settings and builds the pieces
// they describe: logger, store, secret key, receipt key and question set.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"sealed-ballot/ballot"
	"sealed-ballot/storage"
)

const (
	DriverMemory = "memory"
	DriverJSON   = "json"
	DriverBolt   = "bolt"

	boltFileName       = "ballot_box.db"
	secretKeyFileName  = "ballot_secret.key"
	receiptKeyFileName = "receipt_key.json"
)

type Config struct {
	ListenAddress   string
	StorageDriver   string
	DataDir         string
	SecretKeyFile   string
	ReceiptKeyFile  string
	QuestionsFile   string
	RetainPlaintext bool
	SessionDuration time.Duration
	EnableAudit     bool
	LogLevel        string
}

func Default() *Config {
	return &Config{
		ListenAddress: "localhost:8080",
		StorageDriver: DriverJSON,
		DataDir:       "data",
		LogLevel:      "info",
	}
}

// BindFlags registers every setting on fs, using the current values as
// defaults.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.ListenAddress, "listen", c.ListenAddress, "HTTP listen address")
	fs.StringVar(&c.StorageDriver, "storage", c.StorageDriver, "Storage driver: memory, json or bolt")
	fs.StringVar(&c.DataDir, "data-dir", c.DataDir, "Directory for ballot box state and key files")
	fs.StringVar(&c.SecretKeyFile, "secret-key-file", c.SecretKeyFile, "Ballot secret key file (hex), created by serve while the store is empty")
	fs.StringVar(&c.ReceiptKeyFile, "receipt-key-file", c.ReceiptKeyFile, "Ballot box receipt key file, created if missing")
	fs.StringVar(&c.QuestionsFile, "questions", c.QuestionsFile, "YAML question definition; built-in set when empty")
	fs.BoolVar(&c.RetainPlaintext, "retain-plaintext", c.RetainPlaintext, "Store the canonical ballot text next to the envelope")
	fs.DurationVar(&c.SessionDuration, "session", c.SessionDuration, "Voting session duration; 0 keeps the session open")
	fs.BoolVar(&c.EnableAudit, "enable-audit", c.EnableAudit, "Expose the audit report over HTTP")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level: debug, info, warn or error")
}

// Validate checks the settings and fills in key file paths under DataDir for
// persistent drivers.
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case DriverMemory, DriverJSON, DriverBolt:
	default:
		return errors.Errorf("unknown storage driver %q", c.StorageDriver)
	}
	if c.StorageDriver != DriverMemory && c.DataDir == "" {
		return errors.Errorf("storage driver %s needs a data directory", c.StorageDriver)
	}
	if c.SessionDuration < 0 {
		return errors.New("session duration must not be negative")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}

	if c.StorageDriver != DriverMemory {
		if c.SecretKeyFile == "" {
			c.SecretKeyFile = filepath.Join(c.DataDir, secretKeyFileName)
		}
		if c.ReceiptKeyFile == "" {
			c.ReceiptKeyFile = filepath.Join(c.DataDir, receiptKeyFileName)
		}
	}
	return nil
}

// OpenStore opens the configured storage driver.
func (c *Config) OpenStore() (storage.Store, error) {
	switch c.StorageDriver {
	case DriverMemory:
		return storage.NewMemStore(), nil
	case DriverJSON:
		store, err := storage.NewJSONStore(c.DataDir)
		if err != nil {
			return nil, err
		}
		return store, nil
	case DriverBolt:
		if err := os.MkdirAll(c.DataDir, 0o755); err != nil {
			return nil, errors.Wrap(err, "failed to create data directory")
		}
		store, err := storage.NewBoltStore(filepath.Join(c.DataDir, boltFileName))
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, errors.Errorf("unknown storage driver %q", c.StorageDriver)
	}
}

func (c *Config) LoadDefinition() (*ballot.Definition, error) {
	if c.QuestionsFile == "" {
		return ballot.DefaultDefinition(), nil
	}
	return ballot.LoadDefinition(c.QuestionsFile)
}
