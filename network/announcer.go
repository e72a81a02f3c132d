// Package network broadcasts party events to interested peers over libp2p
// gossipsub. Each party publishes on its own topic; observer nodes subscribe
// with a Watcher to mirror the party's progress without holding its state.
package network

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/rs/zerolog"

	"github.com/voteparty/knockout/party"
)

const (
	topicPrefix    = "knockout/v1/"
	publishTimeout = 10 * time.Second
)

type messageType uint8

const (
	userRegisteredType messageType = iota + 1
	roundStartedType
	roundEndedType
	voteCastType
	candidateEliminatedType
)

type message struct {
	Type                messageType                `json:"type"`
	UserRegistered      *party.UserRegistered      `json:"user_registered,omitempty"`
	RoundStarted        *party.RoundStarted        `json:"round_started,omitempty"`
	RoundEnded          *party.RoundEnded          `json:"round_ended,omitempty"`
	VoteCast            *party.VoteCast            `json:"vote_cast,omitempty"`
	CandidateEliminated *party.CandidateEliminated `json:"candidate_eliminated,omitempty"`
}

// Announcer publishes party events on a gossipsub topic. It implements
// party.Notifier; publishing happens on its own goroutine so the engine's
// synchronous event delivery never blocks on the network.
type Announcer struct {
	ps     *pubsub.PubSub
	tp     *pubsub.Topic
	sub    *pubsub.Subscription
	logger zerolog.Logger
}

var _ party.Notifier = (*Announcer)(nil)

// NewAnnouncer joins the topic for partyName.
func NewAnnouncer(ps *pubsub.PubSub, partyName string, logger zerolog.Logger) (*Announcer, error) {
	topic, err := ps.Join(topicPrefix + partyName)
	if err != nil {
		return nil, err
	}
	a := &Announcer{
		ps:     ps,
		tp:     topic,
		logger: logger,
	}
	a.ensureSubscribed()
	return a, nil
}

func (a *Announcer) OnUserRegistered(ev party.UserRegistered) {
	a.publish(message{Type: userRegisteredType, UserRegistered: &ev})
}

func (a *Announcer) OnRoundStarted(ev party.RoundStarted) {
	a.publish(message{Type: roundStartedType, RoundStarted: &ev})
}

func (a *Announcer) OnRoundEnded(ev party.RoundEnded) {
	a.publish(message{Type: roundEndedType, RoundEnded: &ev})
}

func (a *Announcer) OnVoteCast(ev party.VoteCast) {
	a.publish(message{Type: voteCastType, VoteCast: &ev})
}

func (a *Announcer) OnCandidateEliminated(ev party.CandidateEliminated) {
	a.publish(message{Type: candidateEliminatedType, CandidateEliminated: &ev})
}

func (a *Announcer) publish(msg message) {
	data, err := json.Marshal(msg)
	if err != nil {
		a.logger.Error().Err(err).Msg("encoding event announcement")
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		// only publish once at least one peer is listening
		opt := pubsub.WithReadiness(pubsub.MinTopicSize(1))
		if err := a.tp.Publish(ctx, data, opt); err != nil {
			a.logger.Warn().Err(err).Msg("publishing event announcement")
		}
	}()
}

// Watcher receives events announced by a remote party host. Returning a
// non-nil error rejects the message as invalid, which gossipsub uses to
// penalize the sender.
type Watcher interface {
	OnUserRegistered(context.Context, *party.UserRegistered) error
	OnRoundStarted(context.Context, *party.RoundStarted) error
	OnRoundEnded(context.Context, *party.RoundEnded) error
	OnVoteCast(context.Context, *party.VoteCast) error
	OnCandidateEliminated(context.Context, *party.CandidateEliminated) error
}

// Watch registers w to receive every event published on the topic.
func (a *Announcer) Watch(w Watcher) {
	// error can be safely ignored, the validator name cannot collide
	_ = a.ps.RegisterTopicValidator(a.tp.String(), func(ctx context.Context, _ peer.ID, pmsg *pubsub.Message) pubsub.ValidationResult {
		var msg message
		if err := json.Unmarshal(pmsg.Data, &msg); err != nil {
			return pubsub.ValidationReject
		}

		var err error
		switch msg.Type {
		case userRegisteredType:
			err = w.OnUserRegistered(ctx, msg.UserRegistered)
		case roundStartedType:
			err = w.OnRoundStarted(ctx, msg.RoundStarted)
		case roundEndedType:
			err = w.OnRoundEnded(ctx, msg.RoundEnded)
		case voteCastType:
			err = w.OnVoteCast(ctx, msg.VoteCast)
		case candidateEliminatedType:
			err = w.OnCandidateEliminated(ctx, msg.CandidateEliminated)
		default:
			return pubsub.ValidationReject
		}
		if err != nil {
			return pubsub.ValidationReject
		}
		return pubsub.ValidationAccept
	})
}

// Close leaves the topic.
func (a *Announcer) Close() (err error) {
	if a.sub != nil {
		a.sub.Cancel()
	}
	err = errors.Join(err, a.ps.UnregisterTopicValidator(a.tp.String()))
	err = errors.Join(err, a.tp.Close())
	return err
}

// ensureSubscribed maintains one and only one subscription for the topic.
// PubSub requires at least one subscription in order to deliver messages to
// validators; the subscription itself discards everything.
func (a *Announcer) ensureSubscribed() {
	sub, err := a.tp.Subscribe()
	if err != nil {
		return // safe to ignore
	}
	a.sub = sub

	go func() {
		for {
			if _, err := sub.Next(context.Background()); err != nil {
				// happens when the subscription is cancelled
				return
			}
		}
	}()
}
