package store_test

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/voteparty/knockout/party"
	"github.com/voteparty/knockout/store"
)

func testSnapshot(t *testing.T) *party.Snapshot {
	t.Helper()
	admin := common.BytesToAddress([]byte{0x1})
	e, err := party.New(party.Parameters{
		Name:              "persisted",
		Admin:             admin,
		RoundDuration:     time.Minute,
		MaxVotesPerRound:  3,
		DefaultVoteWeight: 1,
	})
	require.NoError(t, err)

	voter := common.BytesToAddress([]byte{0xA})
	now := time.Unix(5000, 0)
	require.NoError(t, e.Register(voter, now))
	_, err = e.StartNextRound(admin, now)
	require.NoError(t, err)
	require.NoError(t, e.CastVote(voter, []party.Identity{common.BytesToAddress([]byte{0xB})}, now))

	snap, err := e.Snapshot()
	require.NoError(t, err)
	return snap
}

func TestMemoryStore(t *testing.T) {
	s := store.NewMemory()
	_, found, err := s.Load()
	require.NoError(t, err)
	require.False(t, found)

	snap := testSnapshot(t)
	require.NoError(t, s.Save(snap))

	loaded, found, err := s.Load()
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, snap.Registered, loaded.Registered)
	require.Equal(t, snap.Cumulative, loaded.Cumulative)
	require.NoError(t, s.Close())
}

func TestLevelDBStore(t *testing.T) {
	dir := t.TempDir()
	s, err := store.OpenLevelDB(dir)
	require.NoError(t, err)

	_, found, err := s.Load()
	require.NoError(t, err)
	require.False(t, found)

	snap := testSnapshot(t)
	require.NoError(t, s.Save(snap))
	require.NoError(t, s.Close())

	// the snapshot survives reopening the database
	s, err = store.OpenLevelDB(dir)
	require.NoError(t, err)
	defer s.Close()

	loaded, found, err := s.Load()
	require.NoError(t, err)
	require.True(t, found)

	restored, err := party.Restore(party.Parameters{
		Name:              "persisted",
		Admin:             common.BytesToAddress([]byte{0x1}),
		RoundDuration:     time.Minute,
		MaxVotesPerRound:  3,
		DefaultVoteWeight: 1,
	}, loaded)
	require.NoError(t, err)
	require.Equal(t, 1, restored.RoundCount())
	require.EqualValues(t, 1, restored.CandidateTotalVotes(common.BytesToAddress([]byte{0xB})))
}
