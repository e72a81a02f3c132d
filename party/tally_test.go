package party_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/voteparty/knockout/party"
)

func addr(b byte) party.Identity {
	return common.BytesToAddress([]byte{b})
}

func TestTallyOrdering(t *testing.T) {
	tally := party.NewTally()
	a, b, c := addr(0xA), addr(0xB), addr(0xC)
	tally.Add(a, 3)
	tally.Add(b, 2)
	tally.Add(c, 1)

	page, err := tally.CandidatesInOrder(2, 1)
	require.NoError(t, err)
	require.Equal(t, []party.Candidate{{Address: a, Votes: 3}, {Address: b, Votes: 2}}, page)

	page, err = tally.CandidatesInOrder(2, 2)
	require.NoError(t, err)
	require.Equal(t, []party.Candidate{{Address: c, Votes: 1}, {}}, page)
}

func TestTallyInsertionTieBreak(t *testing.T) {
	tally := party.NewTally()
	b, c := addr(0xB), addr(0xC)
	tally.Add(b, 2)
	// c ties with b and must be ranked after it
	tally.Add(c, 2)

	require.Equal(t, 1, tally.Position(b))
	require.Equal(t, 2, tally.Position(c))
}

func TestTallyIncrementTieBreak(t *testing.T) {
	tally := party.NewTally()
	a, b := addr(0xA), addr(0xB)
	tally.Add(a, 2)
	tally.Add(b, 1)
	// b draws level with a but does not overtake it
	tally.Add(b, 1)
	require.Equal(t, 1, tally.Position(a))
	require.Equal(t, 2, tally.Position(b))

	// b pulls strictly ahead and must now lead
	tally.Add(b, 1)
	require.Equal(t, 1, tally.Position(b))
	require.Equal(t, 2, tally.Position(a))
}

func TestTallyBubbleUpAcrossList(t *testing.T) {
	tally := party.NewTally()
	a, b, c, d := addr(0xA), addr(0xB), addr(0xC), addr(0xD)
	tally.Add(a, 4)
	tally.Add(b, 3)
	tally.Add(c, 2)
	tally.Add(d, 1)

	// the tail entry rises all the way to the head
	tally.Add(d, 9)
	page, err := tally.CandidatesInOrder(4, 1)
	require.NoError(t, err)
	require.Equal(t, []party.Candidate{
		{Address: d, Votes: 10},
		{Address: a, Votes: 4},
		{Address: b, Votes: 3},
		{Address: c, Votes: 2},
	}, page)

	// and the new tail entry keeps the tail sentinel consistent
	require.Equal(t, 4, tally.Position(c))
}

func TestTallyPaginationCompleteness(t *testing.T) {
	tally := party.NewTally()
	for i := byte(1); i <= 7; i++ {
		tally.Add(addr(i), uint64(i))
	}

	var all []party.Candidate
	for page := 1; page <= 3; page++ {
		entries, err := tally.CandidatesInOrder(3, page)
		require.NoError(t, err)
		require.Len(t, entries, 3)
		all = append(all, entries...)
	}

	// concatenated pages reconstruct the full ordered list, zero-padded only
	// on the final page
	for i := 0; i < 7; i++ {
		require.Equal(t, uint64(7-i), all[i].Votes)
	}
	require.Equal(t, party.Candidate{}, all[7])
	require.Equal(t, party.Candidate{}, all[8])
}

func TestTallyRejectsZeroPagination(t *testing.T) {
	tally := party.NewTally()
	_, err := tally.CandidatesInOrder(0, 1)
	require.ErrorIs(t, err, party.ErrInvalidPagination)
	_, err = tally.CandidatesInOrder(1, 0)
	require.ErrorIs(t, err, party.ErrInvalidPagination)
}

func TestTallyLookups(t *testing.T) {
	tally := party.NewTally()
	a, ghost := addr(0xA), addr(0xF)
	require.Zero(t, tally.Len())
	require.Zero(t, tally.Votes(ghost))
	require.Zero(t, tally.Position(ghost))
	require.False(t, tally.HasVotes(ghost))

	tally.Add(a, 2)
	tally.Add(a, 3)
	require.Equal(t, 1, tally.Len())
	require.EqualValues(t, 5, tally.Votes(a))
	require.True(t, tally.HasVotes(a))
	require.Equal(t, 1, tally.Position(a))
}
