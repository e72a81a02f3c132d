package party

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Identity is the externally authenticated principal of a voter or candidate.
// The host is expected to have verified ownership of the address before any
// call reaches the engine.
type Identity = common.Address

// Candidate is one ranked entry of a Tally: an identity and its accumulated
// vote count. The zero value marks an empty pagination slot.
type Candidate struct {
	Address Identity `json:"address"`
	Votes   uint64   `json:"votes"`
}

// nilRef is the null sentinel of the arena. Slot 0 is never occupied.
const nilRef = 0

type node struct {
	addr  Identity
	votes uint64
	prev  uint32
	next  uint32
}

// Tally is the ranked vote structure: a doubly-linked list of candidates
// ordered by vote count descending, backed by an append-only arena with an
// identity index for constant-time lookup. Ties are broken by insertion
// recency, an entry inserted later is placed after every existing entry with
// an equal count. Entries are never removed, only reordered, so the arena
// needs no free list.
//
// A Tally is not safe for concurrent use.
type Tally struct {
	// arena[0] is reserved as the nil sentinel, entry ids are arena indices
	arena []node
	index map[Identity]uint32
	head  uint32
	tail  uint32
}

// NewTally returns an empty tally.
func NewTally() *Tally {
	return &Tally{
		arena: make([]node, 1),
		index: make(map[Identity]uint32),
	}
}

// Add records amount votes for addr. A new candidate is inserted at the
// position its count warrants; an existing candidate has its count increased
// and is bubbled toward the head one adjacent swap at a time. amount must be
// positive, a zero amount is ignored.
func (t *Tally) Add(addr Identity, amount uint64) {
	if amount == 0 {
		return
	}
	if id, ok := t.index[addr]; ok {
		t.arena[id].votes += amount
		t.bubbleUp(id)
		return
	}
	t.insert(addr, amount)
}

func (t *Tally) insert(addr Identity, amount uint64) {
	id := uint32(len(t.arena))
	t.arena = append(t.arena, node{addr: addr, votes: amount})
	t.index[addr] = id

	// scan from the head past every entry with an equal or greater count so
	// that the new entry loses ties to earlier equal-valued entries
	at := t.head
	for at != nilRef && t.arena[at].votes >= amount {
		at = t.arena[at].next
	}

	switch {
	case t.head == nilRef:
		t.head, t.tail = id, id
	case at == nilRef:
		// ranked below every existing entry
		t.arena[t.tail].next = id
		t.arena[id].prev = t.tail
		t.tail = id
	default:
		prev := t.arena[at].prev
		t.arena[id].prev = prev
		t.arena[id].next = at
		t.arena[at].prev = id
		if prev == nilRef {
			t.head = id
		} else {
			t.arena[prev].next = id
		}
	}
}

// bubbleUp restores ordering after id's count increased. A single pass is
// sufficient: only one entry's key changed and it can only have grown. An
// entry that draws level with its predecessor stays behind it, which keeps
// the earlier-inserted entry ahead on ties.
func (t *Tally) bubbleUp(id uint32) {
	for {
		prev := t.arena[id].prev
		if prev == nilRef || t.arena[prev].votes >= t.arena[id].votes {
			return
		}
		t.swapWithPrev(id)
	}
}

// swapWithPrev exchanges id with its immediate predecessor, updating the
// head and tail sentinels when the moved entry becomes or stops being a
// boundary element.
func (t *Tally) swapWithPrev(id uint32) {
	prev := t.arena[id].prev
	before := t.arena[prev].prev
	after := t.arena[id].next

	if before == nilRef {
		t.head = id
	} else {
		t.arena[before].next = id
	}
	t.arena[id].prev = before
	t.arena[id].next = prev
	t.arena[prev].prev = id
	t.arena[prev].next = after
	if after == nilRef {
		t.tail = prev
	} else {
		t.arena[after].prev = prev
	}
}

// CandidatesInOrder returns the page-th page (1-based) of pageSize entries in
// list order. The result always holds exactly pageSize slots, zero-padded
// past the end of the data. Zero pageSize or page is rejected, not clamped.
func (t *Tally) CandidatesInOrder(pageSize, page int) ([]Candidate, error) {
	if pageSize < 1 || page < 1 {
		return nil, fmt.Errorf("%w: got pageSize=%d page=%d", ErrInvalidPagination, pageSize, page)
	}
	out := make([]Candidate, pageSize)
	at := t.head
	for skip := (page - 1) * pageSize; skip > 0 && at != nilRef; skip-- {
		at = t.arena[at].next
	}
	for i := 0; i < pageSize && at != nilRef; i++ {
		out[i] = Candidate{Address: t.arena[at].addr, Votes: t.arena[at].votes}
		at = t.arena[at].next
	}
	return out, nil
}

// Len returns the number of candidates ever inserted. It never decreases.
func (t *Tally) Len() int {
	return len(t.arena) - 1
}

// Votes returns the accumulated count for addr, zero if never inserted.
func (t *Tally) Votes(addr Identity) uint64 {
	id, ok := t.index[addr]
	if !ok {
		return 0
	}
	return t.arena[id].votes
}

// HasVotes reports whether addr has received at least one vote.
func (t *Tally) HasVotes(addr Identity) bool {
	return t.Votes(addr) > 0
}

// Position returns the 1-based rank of addr in list order, or zero if addr
// has no votes or was never inserted. It walks the list from the head: this
// is a read path, not a hot path.
func (t *Tally) Position(addr Identity) int {
	id, ok := t.index[addr]
	if !ok || t.arena[id].votes == 0 {
		return 0
	}
	pos := 1
	for at := t.head; at != nilRef; at = t.arena[at].next {
		if at == id {
			return pos
		}
		pos++
	}
	return 0
}

// inOrder returns every candidate in list order. Used for snapshotting.
func (t *Tally) inOrder() []Candidate {
	out := make([]Candidate, 0, t.Len())
	for at := t.head; at != nilRef; at = t.arena[at].next {
		out = append(out, Candidate{Address: t.arena[at].addr, Votes: t.arena[at].votes})
	}
	return out
}

// tallyFromSnapshot rebuilds a tally by replaying adds in list order. The
// snapshot is non-increasing and ties are stored in rank order, so replaying
// it reproduces the exact ordering.
func tallyFromSnapshot(entries []Candidate) *Tally {
	t := NewTally()
	for _, c := range entries {
		t.Add(c.Address, c.Votes)
	}
	return t
}
