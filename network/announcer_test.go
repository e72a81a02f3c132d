package network_test

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	mocknet "github.com/libp2p/go-libp2p/p2p/net/mock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/voteparty/knockout/network"
	"github.com/voteparty/knockout/party"
)

func setupAnnouncers(ctx context.Context, t *testing.T, n int) []*network.Announcer {
	t.Helper()
	mn, err := mocknet.FullMeshLinked(n)
	require.NoError(t, err)

	announcers := make([]*network.Announcer, n)
	for i := range announcers {
		ps, err := pubsub.NewGossipSub(ctx, mn.Hosts()[i])
		require.NoError(t, err)
		announcers[i], err = network.NewAnnouncer(ps, "gossip-party", zerolog.Nop())
		require.NoError(t, err)
	}

	require.NoError(t, mn.ConnectAllButSelf())
	return announcers
}

type watcher struct {
	votes chan *party.VoteCast
	ends  chan *party.RoundEnded
}

func newWatcher() *watcher {
	return &watcher{
		votes: make(chan *party.VoteCast, 1),
		ends:  make(chan *party.RoundEnded, 1),
	}
}

func (w *watcher) OnUserRegistered(context.Context, *party.UserRegistered) error { return nil }
func (w *watcher) OnRoundStarted(context.Context, *party.RoundStarted) error     { return nil }

func (w *watcher) OnRoundEnded(ctx context.Context, ev *party.RoundEnded) error {
	select {
	case w.ends <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *watcher) OnVoteCast(ctx context.Context, ev *party.VoteCast) error {
	select {
	case w.votes <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *watcher) OnCandidateEliminated(context.Context, *party.CandidateEliminated) error {
	return nil
}

func TestAnnouncerPropagatesEvents(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	announcers := setupAnnouncers(ctx, t, 2)
	a0, a1 := announcers[0], announcers[1]
	t.Cleanup(func() {
		require.NoError(t, a0.Close())
		require.NoError(t, a1.Close())
	})

	w0, w1 := newWatcher(), newWatcher()
	a0.Watch(w0)
	a1.Watch(w1)

	sent := party.VoteCast{
		Voter:      common.BytesToAddress([]byte{0xA}),
		RoundIndex: 2,
		Recipients: []party.Identity{common.BytesToAddress([]byte{0xB})},
	}
	a0.OnVoteCast(sent)

	// both the publisher and the remote peer observe the event
	for _, w := range []*watcher{w0, w1} {
		select {
		case got := <-w.votes:
			require.Equal(t, &sent, got)
		case <-ctx.Done():
			t.Fatal("timed out waiting for vote announcement")
		}
	}

	a1.OnRoundEnded(party.RoundEnded{Number: 1})
	select {
	case got := <-w0.ends:
		require.Equal(t, &party.RoundEnded{Number: 1}, got)
	case <-ctx.Done():
		t.Fatal("timed out waiting for round end announcement")
	}
}
