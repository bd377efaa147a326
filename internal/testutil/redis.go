package testutil

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/romp/internal/store"
	"github.com/dyluth/romp/pkg/blackboard"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// NewClient starts a miniredis server and returns a blackboard client for it.
// Both are closed when the test ends.
func NewClient(t *testing.T) (*blackboard.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	client, err := blackboard.NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, mr
}

// NewBoard returns a miniredis-backed store board writing as agentID.
func NewBoard(t *testing.T, agentID string, mode blackboard.ScopeMode) (*store.Board, *blackboard.Client) {
	t.Helper()

	client, _ := NewClient(t)
	board, err := store.NewBoard(client, store.Options{AgentID: agentID, ScopeMode: mode})
	require.NoError(t, err)
	return board, client
}
