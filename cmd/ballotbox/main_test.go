package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"sealed-ballot/config"
	"sealed-ballot/encryption"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestKeygenAndVerify(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, "keygen", "--storage", "memory", "--out", dir, "--name", "alice")
	require.NoError(t, err)
	require.Contains(t, out, "alice_private.key")

	privateKey, err := os.ReadFile(filepath.Join(dir, "alice_private.key"))
	require.NoError(t, err)
	info, err := os.Stat(filepath.Join(dir, "alice_private.key"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	const canonical = "USUARIO:alice|P1:ALTO|P2:FACIL|P3:MUCHO|P4:RAPIDO"
	signature, err := encryption.Sign([]byte(canonical), privateKey)
	require.NoError(t, err)

	publicKey := filepath.Join(dir, "alice_public.pem")
	out, err = run(t, "verify", "--storage", "memory", "--public-key", publicKey, "--signature", hex.EncodeToString(signature), canonical)
	require.NoError(t, err)
	require.Contains(t, out, "signature valid")

	_, err = run(t, "verify", "--storage", "memory", "--public-key", publicKey, "--signature", hex.EncodeToString(signature), canonical+"|P5:X")
	require.Error(t, err)
}

func TestOpen(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "secret.key")
	key, err := encryption.NewSecretKey()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(keyFile, []byte(key.Hex()), 0o600))

	sealer, err := encryption.NewSealer(key)
	require.NoError(t, err)
	envelope, err := sealer.Seal([]byte("USUARIO:bob|P1:BAJO"))
	require.NoError(t, err)

	out, err := run(t, "open", "--storage", "memory", "--secret-key-file", keyFile, envelope)
	require.NoError(t, err)
	require.Equal(t, "USUARIO:bob|P1:BAJO", strings.TrimSpace(out))
}

// castInto runs a json ballot box in dir, casts one ballot and returns the
// resulting ledger root. cfg is restored when the test ends.
func castInto(t *testing.T, dir string) string {
	t.Helper()
	saved := *cfg
	t.Cleanup(func() { *cfg = saved })

	ctx := context.Background()
	*cfg = *config.Default()
	cfg.DataDir = dir
	require.NoError(t, cfg.Validate())

	box, err := openBallotBox(ctx, true)
	require.NoError(t, err)
	defer box.Close()
	_, identity, err := box.service.Enrol(ctx, "alice")
	require.NoError(t, err)
	pair, err := box.service.IssueKeys(ctx, identity.ID)
	require.NoError(t, err)
	_, err = box.service.Cast(ctx, identity.ID, []byte(pair.PrivateKeyPEM), map[string]string{
		"P1": "ALTO", "P2": "FACIL", "P3": "MUCHO", "P4": "RAPIDO",
	})
	require.NoError(t, err)

	root, _, err := box.service.LedgerRoot(ctx)
	require.NoError(t, err)
	return root
}

func TestSecretKeyNotRecreatedOverSealedBallots(t *testing.T) {
	dir := t.TempDir()
	castInto(t, dir)
	require.NoError(t, os.Remove(cfg.SecretKeyFile))

	_, err := openBallotBox(context.Background(), true)
	require.ErrorIs(t, err, config.ErrSecretKeyMissing)
	require.Contains(t, err.Error(), "store holds 1 sealed ballots")
	_, statErr := os.Stat(cfg.SecretKeyFile)
	require.True(t, os.IsNotExist(statErr))

	_, err = run(t, "audit", "--data-dir", dir)
	require.ErrorIs(t, err, config.ErrSecretKeyMissing)
	_, err = run(t, "open", "--data-dir", dir)
	require.ErrorIs(t, err, config.ErrSecretKeyMissing)
	_, statErr = os.Stat(cfg.SecretKeyFile)
	require.True(t, os.IsNotExist(statErr))
}

func TestAuditPublishedRoot(t *testing.T) {
	t.Cleanup(func() { publishedRoot, publishedCount = "", 0 })
	dir := t.TempDir()
	root := castInto(t, dir)

	out, err := run(t, "audit", "--data-dir", dir, "--root", root)
	require.NoError(t, err)
	require.Contains(t, out, `"valid_ballots": 1`)
	require.Contains(t, out, "published root matches at 1 ballots")

	_, err = run(t, "audit", "--data-dir", dir, "--root", strings.Repeat("0", 64))
	require.Error(t, err)
	require.Contains(t, err.Error(), "do not reproduce published root")

	_, err = run(t, "audit", "--data-dir", dir, "--root", root, "--count", "2")
	require.Error(t, err)
}
