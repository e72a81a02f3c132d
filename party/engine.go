package party

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/voteparty/knockout/pkg/roster"
)

// Engine is the round controller: it validates registrations and ballots
// against the ledger and the elimination predicate, applies votes to the
// current round's tally and the cumulative tally in lockstep, and drives
// round transitions.
//
// Engine can be viewed as a single-threaded state machine. Every public
// operation takes the current time as an argument and executes atomically:
// validation runs in full before any state is mutated, so a failed call
// leaves no trace. The engine holds no locks; the host must serialize calls.
type Engine struct {
	params Parameters

	ledger *Ledger

	// cumulative aggregates vote counts across every round, written in
	// lockstep with the per-round tallies
	cumulative *Tally

	roster *roster.Roster

	// ballotsUsed tracks, per round index, how much of each voter's vote
	// budget has been spent
	ballotsUsed map[int]map[Identity]uint32

	// eliminated memoizes positive elimination results: candidate to the
	// zero-based index of the round whose cut removed them. Safe to cache
	// because elimination is permanent.
	eliminated map[Identity]int

	policy policy

	notifier Notifier
	metrics  *metrics
	logger   zerolog.Logger

	// depth guards against re-entrant calls from notifiers observing
	// partially-updated state
	depth int
}

// New creates an engine for a fresh party.
func New(params Parameters, opts ...Option) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	e := &Engine{
		params:      params,
		ledger:      NewLedger(params.RoundDuration),
		cumulative:  NewTally(),
		roster:      roster.New(),
		ballotsUsed: make(map[int]map[Identity]uint32),
		eliminated:  make(map[Identity]int),
		policy: policy{
			numerator: params.EliminationNumerator,
			top:       params.EliminateTop,
		},
		notifier: NopNotifier{},
		logger:   zerolog.New(os.Stdout),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Params returns the immutable party configuration.
func (e *Engine) Params() Parameters {
	return e.params
}

// Register adds caller to the party roster. Registration is only open while
// no round has started, unless late entrants are permitted and elimination is
// disabled.
func (e *Engine) Register(caller Identity, now time.Time) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()

	if e.ledger.Len() > 0 && !(e.params.AllowLateEntrants && !e.params.eliminationEnabled()) {
		return ErrRegistrationClosed
	}
	if !e.roster.Add(caller) {
		return ErrAlreadyRegistered
	}

	if e.metrics != nil {
		e.metrics.registrations.Inc()
	}
	e.logger.Info().Stringer("address", caller).Msg("user registered")
	e.notifier.OnUserRegistered(UserRegistered{Address: caller})
	return nil
}

// RoundInfo describes one round. Number is 1-based, Index is the zero-based
// ledger position.
type RoundInfo struct {
	Number int       `json:"number"`
	Index  int       `json:"index"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Active bool      `json:"active"`
	Over   bool      `json:"over"`
}

// StartNextRound appends and opens the next round. Unless public start is
// permitted, only the administrator may call it. Fails with
// ErrPreviousRoundNotOver while the current round's window is still open.
func (e *Engine) StartNextRound(caller Identity, now time.Time) (RoundInfo, error) {
	if err := e.enter(); err != nil {
		return RoundInfo{}, err
	}
	defer e.exit()

	if !e.params.AllowPublicStartAndEnd && caller != e.params.Admin {
		return RoundInfo{}, ErrNotAdmin
	}

	previous := e.ledger.Len()
	idx, r, err := e.ledger.StartNext(now)
	if err != nil {
		return RoundInfo{}, err
	}

	if e.metrics != nil {
		e.metrics.rounds.Inc()
	}
	e.logger.Info().
		Int("round", idx+1).
		Time("start", r.Start()).
		Time("end", r.End()).
		Msg("round started")

	if previous > 0 {
		// starting a successor is the first moment a finished round is
		// observed, announce its end before the new round's start
		e.notifier.OnRoundEnded(RoundEnded{Number: previous})
	}
	e.notifier.OnRoundStarted(RoundStarted{
		Number: idx + 1,
		Start:  r.Start(),
		End:    r.End(),
	})
	return e.roundInfo(idx, now), nil
}

// CastVote applies a ballot from voter naming the given recipients. Each
// recipient consumes one unit of the voter's per-round budget and receives
// the configured vote weight in both the current round's tally and the
// cumulative tally. Ballots either apply in full or not at all.
func (e *Engine) CastVote(voter Identity, recipients []Identity, now time.Time) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()

	if e.ledger.Len() == 0 {
		return ErrNoRoundsStarted
	}
	idx := e.ledger.CurrentIndex()
	r := e.ledger.Current()
	if !r.Active(now) {
		return ErrRoundNotActive
	}
	// implied by the window check above; kept so an expired round has its
	// own failure
	if r.Over(now) {
		return ErrRoundOver
	}
	if !e.roster.Contains(voter) {
		return ErrNotRegistered
	}
	used := e.ballotsUsed[idx][voter]
	if used+uint32(len(recipients)) > e.params.MaxVotesPerRound {
		return fmt.Errorf("%w: %d of %d votes already cast, ballot names %d recipients",
			ErrTooManyVotes, used, e.params.MaxVotesPerRound, len(recipients))
	}
	if e.params.eliminationEnabled() {
		if e.isEliminated(voter, now) {
			return ErrVoterEliminated
		}
		for _, recipient := range recipients {
			if e.isEliminated(recipient, now) {
				return fmt.Errorf("%w: %s", ErrRecipientEliminated, recipient)
			}
		}
	}

	// validation complete, commit
	if e.ballotsUsed[idx] == nil {
		e.ballotsUsed[idx] = make(map[Identity]uint32)
	}
	e.ballotsUsed[idx][voter] = used + uint32(len(recipients))
	weight := e.params.voteWeight()
	for _, recipient := range recipients {
		r.Tally().Add(recipient, weight)
		e.cumulative.Add(recipient, weight)
	}

	if e.metrics != nil {
		e.metrics.ballots.Inc()
		e.metrics.votes.Add(float64(len(recipients)))
		e.metrics.candidates.Set(float64(e.cumulative.Len()))
	}
	e.logger.Debug().
		Stringer("voter", voter).
		Int("round", idx+1).
		Int("recipients", len(recipients)).
		Msg("vote cast")
	e.notifier.OnVoteCast(VoteCast{
		Voter:      voter,
		RoundIndex: idx,
		Recipients: recipients,
	})
	return nil
}

// IsEliminated reports whether addr fell in the elimination zone of any
// finished round. Elimination is permanent: once true it stays true.
func (e *Engine) IsEliminated(addr Identity, now time.Time) bool {
	if err := e.enter(); err != nil {
		return false
	}
	defer e.exit()
	return e.isEliminated(addr, now)
}

func (e *Engine) isEliminated(addr Identity, now time.Time) bool {
	if !e.params.eliminationEnabled() {
		return false
	}
	if _, ok := e.eliminated[addr]; ok {
		return true
	}
	total := uint64(e.roster.Len())
	for i := 0; i < e.ledger.Len(); i++ {
		r := e.ledger.Round(i)
		if !r.Over(now) {
			continue
		}
		if e.policy.eliminated(r.Tally(), total, addr) {
			e.eliminated[addr] = i
			if e.metrics != nil {
				e.metrics.eliminations.Inc()
			}
			e.logger.Info().Stringer("address", addr).Int("round", i+1).Msg("candidate eliminated")
			e.notifier.OnCandidateEliminated(CandidateEliminated{Address: addr, RoundIndex: i})
			return true
		}
	}
	return false
}

// CurrentRound describes the latest round. Fails with ErrNoRoundsStarted on
// an empty ledger.
func (e *Engine) CurrentRound(now time.Time) (RoundInfo, error) {
	if err := e.enter(); err != nil {
		return RoundInfo{}, err
	}
	defer e.exit()
	if e.ledger.Len() == 0 {
		return RoundInfo{}, ErrNoRoundsStarted
	}
	return e.roundInfo(e.ledger.CurrentIndex(), now), nil
}

// RoundCount returns the number of rounds started so far.
func (e *Engine) RoundCount() int {
	return e.ledger.Len()
}

// IsRegistered reports whether addr has completed registration.
func (e *Engine) IsRegistered(addr Identity) bool {
	return e.roster.Contains(addr)
}

// RegisteredCount returns the number of registered identities.
func (e *Engine) RegisteredCount() int {
	return e.roster.Len()
}

// Votes returns addr's vote count within round, zero for unknown rounds or
// candidates.
func (e *Engine) Votes(addr Identity, round int) uint64 {
	r := e.ledger.Round(round)
	if r == nil {
		return 0
	}
	return r.Tally().Votes(addr)
}

// CandidateTotalVotes returns addr's vote count accumulated across every
// round.
func (e *Engine) CandidateTotalVotes(addr Identity) uint64 {
	return e.cumulative.Votes(addr)
}

// VotesCastInRound returns how much of their vote budget addr spent in round.
func (e *Engine) VotesCastInRound(addr Identity, round int) uint32 {
	return e.ballotsUsed[round][addr]
}

// CandidatesInOrder pages through the cumulative tally in rank order.
func (e *Engine) CandidatesInOrder(pageSize, page int) ([]Candidate, error) {
	return e.cumulative.CandidatesInOrder(pageSize, page)
}

// RoundCandidatesInOrder pages through a single round's tally in rank order.
// Unknown rounds yield an all-empty page.
func (e *Engine) RoundCandidatesInOrder(round, pageSize, page int) ([]Candidate, error) {
	r := e.ledger.Round(round)
	if r == nil {
		if pageSize < 1 || page < 1 {
			return nil, fmt.Errorf("%w: got pageSize=%d page=%d", ErrInvalidPagination, pageSize, page)
		}
		return make([]Candidate, pageSize), nil
	}
	return r.Tally().CandidatesInOrder(pageSize, page)
}

// Position returns addr's 1-based rank in the cumulative tally, zero when
// unranked.
func (e *Engine) Position(addr Identity) int {
	return e.cumulative.Position(addr)
}

// RoundPosition returns addr's 1-based rank within round, zero when unranked
// or the round is unknown.
func (e *Engine) RoundPosition(addr Identity, round int) int {
	r := e.ledger.Round(round)
	if r == nil {
		return 0
	}
	return r.Tally().Position(addr)
}

// HasReceivedVotes reports whether addr holds any votes in the cumulative
// tally.
func (e *Engine) HasReceivedVotes(addr Identity) bool {
	return e.cumulative.HasVotes(addr)
}

// TotalNodeCount returns the number of candidates ever ranked in the
// cumulative tally.
func (e *Engine) TotalNodeCount() int {
	return e.cumulative.Len()
}

func (e *Engine) roundInfo(idx int, now time.Time) RoundInfo {
	r := e.ledger.Round(idx)
	return RoundInfo{
		Number: idx + 1,
		Index:  idx,
		Start:  r.Start(),
		End:    r.End(),
		Active: r.Active(now),
		Over:   r.Over(now),
	}
}

func (e *Engine) enter() error {
	if e.depth > 0 {
		return ErrReentrantCall
	}
	e.depth++
	return nil
}

func (e *Engine) exit() {
	e.depth--
}
