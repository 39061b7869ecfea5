package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"sealed-ballot/models"
	"sealed-ballot/storage"
)

func castAll(t *testing.T, env *testEnv, votes map[string]map[string]string) {
	t.Helper()
	for username, answers := range votes {
		identity, pair := env.voter(t, username)
		_, err := env.svc.Cast(context.Background(), identity.ID, []byte(pair.PrivateKeyPEM), answers)
		require.NoError(t, err)
	}
}

func optionCount(t *testing.T, results *Results, question, code string) OptionCount {
	t.Helper()
	for _, q := range results.Questions {
		if q.Question != question {
			continue
		}
		for _, o := range q.Options {
			if o.Code == code {
				return o
			}
		}
	}
	t.Fatalf("no count for %s:%s", question, code)
	return OptionCount{}
}

func TestTally(t *testing.T) {
	for _, retain := range []bool{false, true} {
		env := newTestEnv(t, nil, Options{RetainPlaintext: retain})
		castAll(t, env, map[string]map[string]string{
			"alice": aliceAnswers,
			"bob":   {"P1": "ALTO", "P2": "DIFICIL", "P3": "NO-DUDA", "P4": "LENTO"},
			"carol": {"P1": "BAJO", "P2": "FACIL", "P3": "MUCHO", "P4": "RAPIDO"},
		})

		results, err := env.svc.Tally(context.Background())
		require.NoError(t, err)
		require.Equal(t, 3, results.TotalBallots)
		require.Equal(t, 3, results.Counted)
		require.Zero(t, results.Unreadable)
		require.Len(t, results.Questions, 4)
		require.Equal(t, "P1", results.Questions[0].Question)

		alto := optionCount(t, results, "P1", "ALTO")
		require.Equal(t, 2, alto.Count)
		require.Equal(t, env.svc.Definition().Label("P1", "ALTO"), alto.Label)
		require.Equal(t, 0, optionCount(t, results, "P1", "MEDIO").Count)
		require.Equal(t, 1, optionCount(t, results, "P3", "NO-DUDA").Count)
		require.Equal(t, 2, optionCount(t, results, "P4", "RAPIDO").Count)
	}
}

func TestTally_Empty(t *testing.T) {
	env := newTestEnv(t, nil, Options{})
	results, err := env.svc.Tally(context.Background())
	require.NoError(t, err)
	require.Zero(t, results.TotalBallots)
	for _, q := range results.Questions {
		for _, o := range q.Options {
			require.Zero(t, o.Count)
		}
	}
}

// tamperingStore hands out a first ballot whose envelope or retained
// plaintext has been replaced.
type tamperingStore struct {
	storage.Store
	envelope  string
	plaintext string
}

func (s *tamperingStore) ListSealedBallots(ctx context.Context) ([]*models.SealedBallot, error) {
	ballots, err := s.Store.ListSealedBallots(ctx)
	if err != nil {
		return nil, err
	}
	if len(ballots) > 0 && s.envelope != "" {
		ballots[0].Envelope = s.envelope
	}
	if len(ballots) > 0 && s.plaintext != "" {
		ballots[0].Plaintext = s.plaintext
	}
	return ballots, nil
}

func TestTally_SkipsUnreadable(t *testing.T) {
	store := &tamperingStore{Store: storage.NewMemStore()}
	env := newTestEnv(t, store, Options{})
	castAll(t, env, map[string]map[string]string{"alice": aliceAnswers})

	store.envelope = "zz"
	results, err := env.svc.Tally(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, results.TotalBallots)
	require.Equal(t, 1, results.Unreadable)
	require.Zero(t, results.Counted)
}
