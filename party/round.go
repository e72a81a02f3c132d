package party

import "time"

// Round is one fixed-duration voting window. It is immutable once created
// except for the tally it owns, which mutates as votes are cast. Rounds never
// end early and are never rolled back.
type Round struct {
	tally *Tally
	start time.Time
	end   time.Time
}

// Tally returns the round's own ranked tally.
func (r *Round) Tally() *Tally { return r.tally }

// Start returns the opening instant of the voting window.
func (r *Round) Start() time.Time { return r.start }

// End returns the closing instant of the voting window.
func (r *Round) End() time.Time { return r.end }

// Active reports whether now falls within [start, end).
func (r *Round) Active(now time.Time) bool {
	return !now.Before(r.start) && now.Before(r.end)
}

// Over reports whether the window has elapsed.
func (r *Round) Over(now time.Time) bool {
	return !now.Before(r.end)
}

// Ledger is the append-only ordered sequence of rounds. A new round may only
// be appended once the previous one is over. The current round is always the
// last element.
//
// Round indices are zero-based; the round number reported in events is
// 1-based. Both conventions are deliberate and must not be conflated.
type Ledger struct {
	rounds   []*Round
	duration time.Duration
}

// NewLedger returns an empty ledger whose rounds will run for duration.
func NewLedger(duration time.Duration) *Ledger {
	return &Ledger{duration: duration}
}

// StartNext appends a fresh round beginning at now. It fails with
// ErrPreviousRoundNotOver unless the ledger is empty or the last round's
// window has elapsed. The returned index is zero-based.
func (l *Ledger) StartNext(now time.Time) (int, *Round, error) {
	if n := len(l.rounds); n > 0 && !l.rounds[n-1].Over(now) {
		return 0, nil, ErrPreviousRoundNotOver
	}
	r := &Round{
		tally: NewTally(),
		start: now,
		end:   now.Add(l.duration),
	}
	l.rounds = append(l.rounds, r)
	return len(l.rounds) - 1, r, nil
}

// Len returns the number of rounds started so far.
func (l *Ledger) Len() int { return len(l.rounds) }

// CurrentIndex returns the zero-based index of the current round, zero when
// the ledger is empty.
func (l *Ledger) CurrentIndex() int {
	if len(l.rounds) == 0 {
		return 0
	}
	return len(l.rounds) - 1
}

// Current returns the last round, nil when the ledger is empty.
func (l *Ledger) Current() *Round {
	if len(l.rounds) == 0 {
		return nil
	}
	return l.rounds[len(l.rounds)-1]
}

// Round returns the round at the zero-based index i, nil when out of range.
func (l *Ledger) Round(i int) *Round {
	if i < 0 || i >= len(l.rounds) {
		return nil
	}
	return l.rounds[i]
}

// Active reports whether round i exists and its window contains now.
func (l *Ledger) Active(i int, now time.Time) bool {
	r := l.Round(i)
	return r != nil && r.Active(now)
}

// Over reports whether round i exists and its window has elapsed.
func (l *Ledger) Over(i int, now time.Time) bool {
	r := l.Round(i)
	return r != nil && r.Over(now)
}
