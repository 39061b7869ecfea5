package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestVotingSession(t *testing.T) {
	open := NewVotingSession(0)
	require.True(t, open.IsActive())
	_, end := open.Window()
	require.True(t, end.IsZero())
	open.End()
	require.False(t, open.IsActive())

	bounded := NewVotingSession(time.Hour)
	start, end := bounded.Window()
	require.Equal(t, time.Hour, end.Sub(start))
	require.True(t, bounded.IsActive())

	expired := NewVotingSession(-time.Second)
	require.True(t, expired.IsActive(), "a non-positive duration leaves the window open")
}
