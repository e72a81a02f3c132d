package party

import (
	"fmt"
	"time"
)

// Snapshot is a serializable capture of the full engine state, sufficient to
// rebuild it after a restart. Tallies are stored in rank order; replaying the
// entries through Add reproduces the exact ordering, ties included.
type Snapshot struct {
	Registered  []Identity                  `json:"registered"`
	Rounds      []RoundSnapshot             `json:"rounds"`
	Cumulative  []Candidate                 `json:"cumulative"`
	BallotsUsed map[int]map[Identity]uint32 `json:"ballots_used"`
	Eliminated  map[Identity]int            `json:"eliminated"`
}

// RoundSnapshot captures one round's window and tally.
type RoundSnapshot struct {
	Start time.Time   `json:"start"`
	End   time.Time   `json:"end"`
	Tally []Candidate `json:"tally"`
}

// Snapshot captures the engine state. The returned value shares nothing with
// the engine and is safe to serialize on another goroutine.
func (e *Engine) Snapshot() (*Snapshot, error) {
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.exit()

	snap := &Snapshot{
		Registered:  e.roster.Members(),
		Rounds:      make([]RoundSnapshot, 0, e.ledger.Len()),
		Cumulative:  e.cumulative.inOrder(),
		BallotsUsed: make(map[int]map[Identity]uint32, len(e.ballotsUsed)),
		Eliminated:  make(map[Identity]int, len(e.eliminated)),
	}
	for i := 0; i < e.ledger.Len(); i++ {
		r := e.ledger.Round(i)
		snap.Rounds = append(snap.Rounds, RoundSnapshot{
			Start: r.Start(),
			End:   r.End(),
			Tally: r.Tally().inOrder(),
		})
	}
	for round, used := range e.ballotsUsed {
		byVoter := make(map[Identity]uint32, len(used))
		for voter, n := range used {
			byVoter[voter] = n
		}
		snap.BallotsUsed[round] = byVoter
	}
	for addr, round := range e.eliminated {
		snap.Eliminated[addr] = round
	}
	return snap, nil
}

// Restore rebuilds an engine from a snapshot taken with the same parameters.
func Restore(params Parameters, snap *Snapshot, opts ...Option) (*Engine, error) {
	e, err := New(params, opts...)
	if err != nil {
		return nil, err
	}
	for _, addr := range snap.Registered {
		if !e.roster.Add(addr) {
			return nil, fmt.Errorf("snapshot registers %s twice", addr)
		}
	}
	for _, rs := range snap.Rounds {
		e.ledger.rounds = append(e.ledger.rounds, &Round{
			tally: tallyFromSnapshot(rs.Tally),
			start: rs.Start,
			end:   rs.End,
		})
	}
	e.cumulative = tallyFromSnapshot(snap.Cumulative)
	for round, used := range snap.BallotsUsed {
		if round < 0 || round >= e.ledger.Len() {
			return nil, fmt.Errorf("snapshot holds ballots for unknown round index %d", round)
		}
		byVoter := make(map[Identity]uint32, len(used))
		for voter, n := range used {
			byVoter[voter] = n
		}
		e.ballotsUsed[round] = byVoter
	}
	for addr, round := range snap.Eliminated {
		e.eliminated[addr] = round
	}
	return e, nil
}
