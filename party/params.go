package party

import (
	"errors"
	"fmt"
	"time"
)

// Parameters configure a party. They are set once at initialization and are
// immutable thereafter.
type Parameters struct {
	// Name identifies the party. It namespaces event announcements.
	Name string

	// Admin is the identity permitted to start rounds when
	// AllowPublicStartAndEnd is disabled.
	Admin Identity

	// Metadata is an opaque tag carried alongside the party, for example a
	// content hash describing it. The engine never inspects it.
	Metadata string

	// HouseSplit and WinnerSplit are payout percentages. They are carried for
	// the host's settlement layer and not consumed by the engine.
	HouseSplit  uint32
	WinnerSplit uint32

	// RoundDuration is the length of each voting window.
	RoundDuration time.Duration

	// TotalRounds is the number of rounds the party plans to run. The engine
	// does not stop the ledger at this bound; the host decides when to stop
	// starting rounds.
	TotalRounds uint32

	// MaxVotesPerRound caps the cumulative number of recipients a voter may
	// name across all of their ballots within one round.
	MaxVotesPerRound uint32

	// DefaultVoteWeight is the weight applied per recipient. When elimination
	// is enabled the weight is fixed at 1 and this field is ignored.
	DefaultVoteWeight uint64

	// AllowLateEntrants keeps registration open after the first round starts.
	// Ignored when elimination is enabled, which always closes registration
	// the instant round one opens.
	AllowLateEntrants bool

	// AllowPublicStartAndEnd lets any caller start the next round.
	AllowPublicStartAndEnd bool

	// EliminationNumerator is the percentile of candidates cut after every
	// round, 0-100. Zero disables elimination entirely.
	EliminationNumerator uint64

	// EliminateTop cuts the leaders instead of the stragglers, for
	// vote-the-leader-off game modes.
	EliminateTop bool
}

// Validate checks the parameter set for configuration errors.
func (p Parameters) Validate() error {
	if p.RoundDuration <= 0 {
		return errors.New("round duration must be positive")
	}
	if p.MaxVotesPerRound == 0 {
		return errors.New("max votes per round must be at least 1")
	}
	if p.DefaultVoteWeight == 0 {
		return errors.New("default vote weight must be at least 1")
	}
	if p.EliminationNumerator > 100 {
		return fmt.Errorf("elimination numerator %d exceeds 100", p.EliminationNumerator)
	}
	if p.HouseSplit > 100 || p.WinnerSplit > 100 || p.HouseSplit+p.WinnerSplit > 100 {
		return fmt.Errorf("splits %d/%d exceed 100 percent", p.HouseSplit, p.WinnerSplit)
	}
	return nil
}

// eliminationEnabled reports whether this party runs the elimination variant.
func (p Parameters) eliminationEnabled() bool {
	return p.EliminationNumerator > 0
}

// voteWeight is the weight applied to each recipient of a ballot. The
// elimination variant pins it to 1 so that percentile cuts operate on raw
// recipient counts.
func (p Parameters) voteWeight() uint64 {
	if p.eliminationEnabled() {
		return 1
	}
	return p.DefaultVoteWeight
}
