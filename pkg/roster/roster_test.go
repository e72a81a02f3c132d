package roster_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/voteparty/knockout/pkg/roster"
)

func TestRoster(t *testing.T) {
	r := roster.New()
	a := common.BytesToAddress([]byte{0xA})
	b := common.BytesToAddress([]byte{0xB})

	require.Zero(t, r.Len())
	require.False(t, r.Contains(a))

	require.True(t, r.Add(a))
	require.False(t, r.Add(a), "membership is permanent, re-adding must fail")
	require.True(t, r.Add(b))

	require.True(t, r.Contains(a))
	require.Equal(t, 2, r.Len())
	require.Equal(t, []common.Address{a, b}, r.Members(), "members keep registration order")
}
