package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"sealed-ballot/encryption"
	"sealed-ballot/models"
	"sealed-ballot/storage"
)

func TestBindFlags(t *testing.T) {
	cfg := Default()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg.BindFlags(fs)

	require.NoError(t, fs.Parse([]string{
		"--storage", "bolt",
		"--data-dir", "/tmp/box",
		"--retain-plaintext",
		"--session", "2h",
		"--enable-audit",
		"--log-level", "debug",
	}))
	require.Equal(t, DriverBolt, cfg.StorageDriver)
	require.Equal(t, "/tmp/box", cfg.DataDir)
	require.True(t, cfg.RetainPlaintext)
	require.True(t, cfg.EnableAudit)
	require.Equal(t, 2*time.Hour, cfg.SessionDuration)
	require.Equal(t, "localhost:8080", cfg.ListenAddress)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.DataDir = "/var/lib/box"
	require.NoError(t, cfg.Validate())
	require.Equal(t, filepath.Join("/var/lib/box", secretKeyFileName), cfg.SecretKeyFile)
	require.Equal(t, filepath.Join("/var/lib/box", receiptKeyFileName), cfg.ReceiptKeyFile)

	mem := Default()
	mem.StorageDriver = DriverMemory
	require.NoError(t, mem.Validate())
	require.Empty(t, mem.SecretKeyFile)

	for name, mutate := range map[string]func(*Config){
		"driver":    func(c *Config) { c.StorageDriver = "postgres" },
		"data dir":  func(c *Config) { c.DataDir = "" },
		"session":   func(c *Config) { c.SessionDuration = -time.Minute },
		"log level": func(c *Config) { c.LogLevel = "loud" },
	} {
		cfg := Default()
		mutate(cfg)
		require.Error(t, cfg.Validate(), name)
	}
}

func TestOpenStore(t *testing.T) {
	for _, driver := range []string{DriverMemory, DriverJSON, DriverBolt} {
		cfg := Default()
		cfg.StorageDriver = driver
		cfg.DataDir = t.TempDir()
		require.NoError(t, cfg.Validate())

		store, err := cfg.OpenStore()
		require.NoError(t, err, driver)
		require.NoError(t, store.Close())
	}

	cfg := Default()
	cfg.StorageDriver = DriverMemory
	store, err := cfg.OpenStore()
	require.NoError(t, err)
	require.IsType(t, &storage.MemStore{}, store)
}

func TestLoadSecretKey(t *testing.T) {
	cfg := Default()
	cfg.SecretKeyFile = filepath.Join(t.TempDir(), "keys", "secret.key")

	_, err := cfg.LoadSecretKey()
	require.ErrorIs(t, err, ErrSecretKeyMissing)
	_, err = os.Stat(cfg.SecretKeyFile)
	require.True(t, os.IsNotExist(err))

	key, err := encryption.NewSecretKey()
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.SecretKeyFile), 0o700))
	require.NoError(t, os.WriteFile(cfg.SecretKeyFile, []byte(key.Hex()+"\n"), 0o600))
	loaded, err := cfg.LoadSecretKey()
	require.NoError(t, err)
	require.Equal(t, key, loaded)

	require.NoError(t, os.WriteFile(cfg.SecretKeyFile, []byte("short"), 0o600))
	_, err = cfg.LoadSecretKey()
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrSecretKeyMissing)

	_, err = Default().LoadSecretKey()
	require.ErrorIs(t, err, ErrSecretKeyMissing)
}

func TestPrepareSecretKey(t *testing.T) {
	ctx := context.Background()

	t.Run("empty store creates key file", func(t *testing.T) {
		cfg := Default()
		cfg.DataDir = t.TempDir()
		require.NoError(t, cfg.Validate())
		store, err := cfg.OpenStore()
		require.NoError(t, err)
		defer store.Close()

		first, err := cfg.PrepareSecretKey(ctx, store)
		require.NoError(t, err)
		info, err := os.Stat(cfg.SecretKeyFile)
		require.NoError(t, err)
		require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

		second, err := cfg.PrepareSecretKey(ctx, store)
		require.NoError(t, err)
		require.Equal(t, first, second)
	})

	t.Run("sealed ballots without key file", func(t *testing.T) {
		cfg := Default()
		cfg.DataDir = t.TempDir()
		require.NoError(t, cfg.Validate())
		store, err := cfg.OpenStore()
		require.NoError(t, err)
		defer store.Close()

		_, identity := models.NewAccount("alice")
		identity.State = models.StateKeysIssued
		identity.PublicKey = "-----BEGIN PUBLIC KEY-----\nalice\n-----END PUBLIC KEY-----\n"
		require.NoError(t, store.CreateIdentity(ctx, identity))
		require.NoError(t, store.CreateSealedBallot(ctx, &models.SealedBallot{
			ID:         "ballot-alice",
			IdentityID: identity.ID,
			Signature:  "aa",
			Envelope:   "bb",
			CastAt:     time.Now().UTC(),
		}, identity.PublicKey))

		_, err = cfg.PrepareSecretKey(ctx, store)
		require.ErrorIs(t, err, ErrSecretKeyMissing)
		require.Contains(t, err.Error(), "store holds 1 sealed ballots")
		_, err = os.Stat(cfg.SecretKeyFile)
		require.True(t, os.IsNotExist(err), "no key file may be written over existing envelopes")
	})

	t.Run("ephemeral key for empty memory store", func(t *testing.T) {
		cfg := Default()
		cfg.StorageDriver = DriverMemory
		require.NoError(t, cfg.Validate())
		store, err := cfg.OpenStore()
		require.NoError(t, err)

		a, err := cfg.PrepareSecretKey(ctx, store)
		require.NoError(t, err)
		b, err := cfg.PrepareSecretKey(ctx, store)
		require.NoError(t, err)
		require.NotEqual(t, a, b)
	})
}

func TestLoadReceiptSigner(t *testing.T) {
	cfg := Default()
	cfg.ReceiptKeyFile = filepath.Join(t.TempDir(), "receipt.json")

	first, err := cfg.LoadReceiptSigner()
	require.NoError(t, err)
	second, err := cfg.LoadReceiptSigner()
	require.NoError(t, err)
	require.Equal(t, first.Address(), second.Address())

	receipt, err := first.Issue("abcd", "ef01")
	require.NoError(t, err)
	require.True(t, second.Verify(receipt))

	require.NoError(t, os.WriteFile(cfg.ReceiptKeyFile, []byte("{"), 0o600))
	_, err = cfg.LoadReceiptSigner()
	require.Error(t, err)
}

func TestLoadDefinition(t *testing.T) {
	cfg := Default()
	def, err := cfg.LoadDefinition()
	require.NoError(t, err)
	require.Len(t, def.Questions, 4)

	cfg.QuestionsFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = cfg.LoadDefinition()
	require.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("warn")
	require.NoError(t, err)
	require.NotNil(t, logger)

	_, err = NewLogger("verbose")
	require.Error(t, err)
}
