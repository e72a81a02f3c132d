// Package party implements a multi-round elimination voting engine. Participants
// register before the first round opens, rounds run on fixed time windows, and
// registered participants spend a bounded per-round vote budget on candidates.
// When a round's window elapses, a percentile cut over that round's ranked tally
// removes candidates from all future participation, both as voters and as vote
// recipients.
//
// The engine is a single-threaded state machine: the host must serialize calls
// and supply the current time with each one. There is no internal locking and
// no background work; a call-depth guard rejects re-entrant calls from event
// notifiers.
package party
